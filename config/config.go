package config

import "path/filepath"

// Verbosity controls how much progress output the engine produces.
type Verbosity string

const (
	VerbosityQuiet   Verbosity = "quiet"
	VerbosityNormal  Verbosity = "normal"
	VerbosityVerbose Verbosity = "verbose"
)

// Config holds all engine configuration options
type Config struct {
	// Temp is the working directory shared with the external splitting
	// stage; it holds the chunk manifest and the checkpoint file.
	Temp string `yaml:"temp"`

	// Manifest is the chunk manifest path. Empty means <temp>/chunks.json.
	Manifest string `yaml:"manifest"`

	// Execution settings
	Workers int `yaml:"workers"` // 0 = auto-detect
	Passes  int `yaml:"passes"`  // encode passes per chunk, >= 1

	// Verbosity selects the progress reporting mode: quiet, normal
	// (single aggregate bar) or verbose (per-worker bars).
	Verbosity Verbosity `yaml:"verbosity"`

	// AffinityWrapCores switches the affinity planner to wrap raw core
	// indices modulo the host core count instead of the worker count.
	AffinityWrapCores bool `yaml:"affinity_wrap_cores"`

	// MetricsAddr enables the Prometheus endpoint when non-empty,
	// e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	// LogFormat selects the log handler: "text" or "json".
	LogFormat string `yaml:"log_format"`

	// Video settings consumed by the encode command builder
	Video VideoConfig `yaml:"video"`

	// Behavioral flags
	DryRun bool `yaml:"dry_run"` // Show config without encoding
}

// VideoConfig holds per-pass encoder settings
type VideoConfig struct {
	Codec     string `yaml:"codec"`     // e.g., "libaom-av1", "libsvtav1"
	Quantizer int    `yaml:"quantizer"` // default CRF/CQ when a chunk carries none
	Preset    string `yaml:"preset"`    // encoder speed preset
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Temp:     ".parenc",
		Manifest: "", // resolved against Temp

		Workers: 0, // Auto-detect CPU count
		Passes:  1,

		Verbosity: VerbosityNormal,

		AffinityWrapCores: false,
		MetricsAddr:       "",
		LogFormat:         "text",

		Video: VideoConfig{
			Codec:     "libaom-av1",
			Quantizer: 30,
			Preset:    "6",
		},

		DryRun: false,
	}
}

// ManifestPath returns the effective chunk manifest path.
func (c *Config) ManifestPath() string {
	if c.Manifest != "" {
		return c.Manifest
	}
	return filepath.Join(c.Temp, "chunks.json")
}

// LogLevel maps the verbosity setting to a logger level string.
func (c *Config) LogLevel() string {
	switch c.Verbosity {
	case VerbosityQuiet:
		return "error"
	case VerbosityVerbose:
		return "debug"
	default:
		return "info"
	}
}

// VerbosityValues returns valid verbosity values
func VerbosityValues() []string {
	return []string{
		string(VerbosityQuiet),
		string(VerbosityNormal),
		string(VerbosityVerbose),
	}
}

// IsValidVerbosity checks if verbosity is valid
func IsValidVerbosity(v Verbosity) bool {
	for _, valid := range VerbosityValues() {
		if string(v) == valid {
			return true
		}
	}
	return false
}
