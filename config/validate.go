package config

import (
	"fmt"
	"strings"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.Temp == "" {
		errors = append(errors, "temp directory is required")
	}

	// Workers must be resolved to a positive count by this point
	if c.Workers <= 0 {
		errors = append(errors, "workers must be positive (use 0 for auto-detect)")
	}

	if c.Passes < 1 {
		errors = append(errors, "passes must be at least 1")
	}

	if !IsValidVerbosity(c.Verbosity) {
		errors = append(errors, fmt.Sprintf("invalid verbosity '%s', must be one of: %s",
			c.Verbosity, strings.Join(VerbosityValues(), ", ")))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s', must be text or json", c.LogFormat))
	}

	if err := c.Video.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("video config: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks if video configuration is valid
func (vc *VideoConfig) Validate() error {
	var errors []string

	if vc.Codec == "" {
		errors = append(errors, "codec is required")
	}

	// AV1 quantizer range
	if vc.Quantizer < 0 || vc.Quantizer > 63 {
		errors = append(errors, "quantizer must be between 0 and 63")
	}

	if vc.Preset == "" {
		errors = append(errors, "preset is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}
