package config

import (
	"runtime"
	"time"
)

// Config holds all timelapse configuration options
type Config struct {
	// Required fields
	Input  string `yaml:"input"`  // directory with photos
	Output string `yaml:"output"` // video file

	// Selection and rendering
	Days           int    `yaml:"days"`            // window length ending now
	FPS            int    `yaml:"fps"`             // output frame rate
	ResizeRatio    int    `yaml:"resize_ratio"`    // integer downscale divisor
	FontPath       string `yaml:"font_path"`       // "" = bundled Go Regular
	Filter         string `yaml:"filter"`          // resize filter name
	MalformedNames string `yaml:"malformed_names"` // "fail" or "skip"

	// Execution settings
	Workers        int           `yaml:"workers"`         // 0 = auto-detect
	Lookahead      int           `yaml:"lookahead"`       // 0 = 2x workers, -1 = unbounded
	ProgressPeriod time.Duration `yaml:"progress_period"` // minimum gap between progress reports
	PollInterval   time.Duration `yaml:"poll_interval"`   // pool health check interval

	// Encoder settings
	Encoder EncoderConfig `yaml:"encoder"`

	// Behavioral flags
	Verify      bool   `yaml:"verify"`       // Probe the output after encoding
	MetricsAddr string `yaml:"metrics_addr"` // e.g. ":9090", "" = disabled
	Verbose     bool   `yaml:"verbose"`      // Show detailed logs
	DryRun      bool   `yaml:"dry_run"`      // Show config without encoding
}

// EncoderConfig holds video encoder settings
type EncoderConfig struct {
	Sink   string `yaml:"sink"`        // "auto", "ffmpeg", "mjpeg"
	Binary string `yaml:"ffmpeg_path"` // "" = ffmpeg on PATH
	CRF    int    `yaml:"crf"`         // x264 Constant Rate Factor (0-51)
	Preset string `yaml:"preset"`      // x264 speed preset
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		// Required - must be provided by user
		Input:  "",
		Output: "output.mp4",

		Days:           1,
		FPS:            10,
		ResizeRatio:    4,
		FontPath:       "",
		Filter:         "hamming",
		MalformedNames: "fail",

		Workers:        0, // Auto-detect CPU count
		Lookahead:      0, // Twice the workers
		ProgressPeriod: time.Second,
		PollInterval:   time.Second,

		Encoder: EncoderConfig{
			Sink:   "auto",
			Binary: "",
			CRF:    23,
			Preset: "medium",
		},

		Verify:      false,
		MetricsAddr: "",
		Verbose:     false,
		DryRun:      false,
	}
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	copy := *c
	copy.Encoder = c.Encoder
	return &copy
}

// ResolveWorkers replaces an auto worker count with one worker per CPU,
// leaving one CPU for the encoder.
func (c *Config) ResolveWorkers() {
	if c.Workers == 0 {
		c.Workers = max(runtime.NumCPU()-1, 1)
	}
}

// EffectiveLookahead returns the lookahead with the auto value resolved.
// Call after ResolveWorkers.
func (c *Config) EffectiveLookahead() int {
	if c.Lookahead == 0 {
		return 2 * max(c.Workers, 1)
	}
	return c.Lookahead
}

// PresetValues returns valid x264 presets
func PresetValues() []string {
	return []string{
		"ultrafast", "superfast", "veryfast", "faster", "fast",
		"medium", "slow", "slower", "veryslow", "placebo",
	}
}

// IsValidPreset checks if preset is valid
func IsValidPreset(preset string) bool {
	for _, valid := range PresetValues() {
		if preset == valid {
			return true
		}
	}
	return false
}
