package config

import (
	"flag"
	"fmt"
	"os"
)

// MergeFromFlags parses command-line flags and overrides config values
func (c *Config) MergeFromFlags() error {
	fs := flag.NewFlagSet("parenc", flag.ContinueOnError)
	fs.Usage = printUsage

	// Config file override (handled by LoadConfig before this function is called)
	_ = fs.String("config", "", "Path to config file (default: search standard locations)")

	// Paths
	temp := fs.String("temp", "", "Temporary working directory shared with the split stage (default: from config)")
	manifest := fs.String("manifest", "", "Chunk manifest path (default: <temp>/chunks.json)")

	// Execution settings
	workers := fs.Int("workers", -1, "Number of parallel workers (0 = auto-detect, default: from config)")
	passes := fs.Int("passes", -1, "Encode passes per chunk (default: from config)")

	// Verbosity shortcuts
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	verbose := fs.Bool("verbose", false, "Per-worker progress output and debug logging")
	verbosity := fs.String("verbosity", "", "Verbosity: quiet, normal, verbose (default: from config)")

	// Affinity
	wrapCores := fs.Bool("wrap-cores", false, "Wrap affinity core indices modulo the host core count instead of the worker count")

	// Observability
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090 (default: disabled)")
	logFormat := fs.String("log-format", "", "Log format: text or json (default: from config)")

	// Video settings
	videoCodec := fs.String("video-codec", "", "Video codec passed to the encoder (default: from config)")
	videoQuantizer := fs.Int("video-quantizer", -1, "Default quantizer for chunks that carry none (default: from config)")
	videoPreset := fs.String("video-preset", "", "Encoder speed preset (default: from config)")

	// Behavioral flags
	dryRun := fs.Bool("dry-run", false, "Show configuration without encoding")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	// Override with flag values (only if explicitly set)
	if *temp != "" {
		c.Temp = *temp
	}
	if *manifest != "" {
		c.Manifest = *manifest
	}

	if *workers >= 0 {
		c.Workers = *workers
	}
	if *passes > 0 {
		c.Passes = *passes
	}

	// Handle verbosity shortcuts
	if *quiet {
		c.Verbosity = VerbosityQuiet
	} else if *verbose {
		c.Verbosity = VerbosityVerbose
	} else if *verbosity != "" {
		c.Verbosity = Verbosity(*verbosity)
	}

	if *wrapCores {
		c.AffinityWrapCores = true
	}

	if *metricsAddr != "" {
		c.MetricsAddr = *metricsAddr
	}
	if *logFormat != "" {
		c.LogFormat = *logFormat
	}

	if *videoCodec != "" {
		c.Video.Codec = *videoCodec
	}
	if *videoQuantizer >= 0 {
		c.Video.Quantizer = *videoQuantizer
	}
	if *videoPreset != "" {
		c.Video.Preset = *videoPreset
	}

	if *dryRun {
		c.DryRun = true
	}

	return nil
}

// printUsage prints help text
func printUsage() {
	fmt.Fprintf(os.Stderr, `parenc - parallel chunked encoding engine

USAGE:
  parenc -temp DIR [OPTIONS]

CONFIGURATION:
  -config string
        Path to config file (default: search ./parenc.yaml, ~/.parenc/config.yaml, /etc/parenc/config.yaml)
  -temp string
        Temporary working directory shared with the split stage (default: .parenc)
  -manifest string
        Chunk manifest path (default: <temp>/chunks.json)

EXECUTION SETTINGS:
  -workers int
        Number of parallel workers (0 = auto-detect CPU count)
  -passes int
        Encode passes per chunk (default: 1)
  -wrap-cores
        Wrap affinity core indices modulo the host core count

VIDEO SETTINGS:
  -video-codec string
        Video codec passed to the encoder (default: libaom-av1)
  -video-quantizer int
        Default quantizer for chunks that carry none (default: 30)
  -video-preset string
        Encoder speed preset (default: 6)

OBSERVABILITY:
  -metrics-addr string
        Serve Prometheus metrics on this address, e.g. :9090
  -log-format string
        Log format: text or json (default: text)
  -quiet
        Suppress progress output
  -verbose
        Per-worker progress output and debug logging

BEHAVIORAL FLAGS:
  -dry-run
        Show effective configuration without encoding

EXAMPLES:
  # Resume the run prepared in ./work with 8 workers
  parenc -temp ./work -workers 8

  # Two-pass encode, per-worker progress
  parenc -temp ./work -passes 2 -verbose

  # Expose metrics while encoding
  parenc -temp ./work -metrics-addr :9090

CONFIGURATION FILES:
  Config files are searched in order:
    1. ./parenc.yaml
    2. ~/.parenc/config.yaml
    3. /etc/parenc/config.yaml

  Priority: CLI flags > environment (PARENC_*) > config file > defaults

`)
}

// PrintConfig prints the effective configuration
func (c *Config) PrintConfig() {
	fmt.Println("Effective configuration:")
	fmt.Printf("  Temp:          %s\n", c.Temp)
	fmt.Printf("  Manifest:      %s\n", c.ManifestPath())
	fmt.Printf("  Workers:       %d\n", c.Workers)
	fmt.Printf("  Passes:        %d\n", c.Passes)
	fmt.Printf("  Verbosity:     %s\n", c.Verbosity)
	fmt.Printf("  Wrap cores:    %v\n", c.AffinityWrapCores)
	if c.MetricsAddr != "" {
		fmt.Printf("  Metrics:       %s\n", c.MetricsAddr)
	}

	fmt.Println("  Video:")
	fmt.Printf("    Codec:       %s\n", c.Video.Codec)
	fmt.Printf("    Quantizer:   %d\n", c.Video.Quantizer)
	fmt.Printf("    Preset:      %s\n", c.Video.Preset)
}
