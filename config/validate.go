package config

import (
	"fmt"
	"os"
	"strings"

	"timelapse/sink"
	"timelapse/source"
	"timelapse/transform"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	// Required fields
	if c.Input == "" {
		errors = append(errors, "input directory is required")
	} else if info, err := os.Stat(c.Input); err != nil {
		errors = append(errors, fmt.Sprintf("input directory does not exist: %s", c.Input))
	} else if !info.IsDir() {
		errors = append(errors, fmt.Sprintf("input is not a directory: %s", c.Input))
	}

	if strings.TrimSpace(c.Output) == "" {
		errors = append(errors, "output file is required")
	}

	if c.Days <= 0 {
		errors = append(errors, "days must be positive")
	}
	if c.FPS <= 0 {
		errors = append(errors, "fps must be positive")
	}
	if c.ResizeRatio < 1 {
		errors = append(errors, "resize ratio must be at least 1")
	}

	if _, err := transform.ParseFilter(c.Filter); err != nil {
		errors = append(errors, err.Error())
	}
	if c.FontPath != "" {
		if _, err := os.Stat(c.FontPath); err != nil {
			errors = append(errors, fmt.Sprintf("font file does not exist: %s", c.FontPath))
		}
	}

	if !isOneOf(c.MalformedNames, source.MalformedPolicyValues()) {
		errors = append(errors, fmt.Sprintf("invalid malformed_names '%s', must be one of: %s",
			c.MalformedNames, strings.Join(source.MalformedPolicyValues(), ", ")))
	}

	// Validate workers (0 is valid, means auto-detect)
	if c.Workers < 0 {
		errors = append(errors, "workers cannot be negative (use 0 for auto-detect)")
	}
	if c.Lookahead < -1 {
		errors = append(errors, "lookahead must be -1 (unbounded), 0 (auto) or positive")
	}
	if c.ProgressPeriod < 0 {
		errors = append(errors, "progress period cannot be negative")
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "poll interval must be positive")
	}

	if err := c.Encoder.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("encoder config: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks if encoder configuration is valid
func (ec *EncoderConfig) Validate() error {
	var errors []string

	if !sink.IsValidKind(ec.Sink) {
		errors = append(errors, fmt.Sprintf("invalid sink '%s', must be one of: %s",
			ec.Sink, strings.Join(sink.KindValues(), ", ")))
	}

	if ec.CRF < 0 || ec.CRF > 51 {
		errors = append(errors, "CRF must be between 0 and 51")
	}

	if !IsValidPreset(ec.Preset) {
		errors = append(errors, fmt.Sprintf("invalid preset '%s', must be one of: %s",
			ec.Preset, strings.Join(PresetValues(), ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

func isOneOf(value string, valid []string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}
