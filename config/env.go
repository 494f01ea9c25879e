package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// MergeFromEnv overlays configuration from the environment. A .env file in
// the working directory is loaded first if present (it never overrides
// variables already set in the process environment), then PARENC_* variables
// override the current config values.
func (c *Config) MergeFromEnv() {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	c.Temp = getEnv("PARENC_TEMP", c.Temp)
	c.Manifest = getEnv("PARENC_MANIFEST", c.Manifest)
	c.Workers = getEnvInt("PARENC_WORKERS", c.Workers)
	c.Passes = getEnvInt("PARENC_PASSES", c.Passes)
	c.Verbosity = Verbosity(getEnv("PARENC_VERBOSITY", string(c.Verbosity)))
	c.MetricsAddr = getEnv("PARENC_METRICS_ADDR", c.MetricsAddr)
	c.LogFormat = getEnv("PARENC_LOG_FORMAT", c.LogFormat)

	c.Video.Codec = getEnv("PARENC_VIDEO_CODEC", c.Video.Codec)
	c.Video.Quantizer = getEnvInt("PARENC_VIDEO_QUANTIZER", c.Video.Quantizer)
	c.Video.Preset = getEnv("PARENC_VIDEO_PRESET", c.Video.Preset)

	if s := os.Getenv("PARENC_AFFINITY_WRAP_CORES"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			c.AffinityWrapCores = b
		}
	}
}

// getEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty.
func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// getEnvInt returns the integer value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid integer.
func getEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
