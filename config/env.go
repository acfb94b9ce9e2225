package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by MergeFromEnv. The first five keep the names
// used by the chat bot deployment, including its typo.
const (
	EnvProgressPeriod = "TIMELAPSE_PROG_PERIOD"
	EnvResizeRatio    = "TIMELAPSE_PESIZE_RATIO"
	EnvCRF            = "TIMELAPSE_CODEC_OPT"
	EnvFPS            = "TIMELAPSE_FPS"
	EnvWorkers        = "TIMELAPSE_NUM_PROCS"
	EnvDays           = "TIMELAPSE_DAYS"
	EnvOutput         = "TIMELAPSE_OUTPUT"
	EnvLookahead      = "TIMELAPSE_LOOKAHEAD"
	EnvSink           = "TIMELAPSE_SINK"
	EnvFont           = "TIMELAPSE_FONT"
)

// MergeFromEnv overrides config values from TIMELAPSE_* environment
// variables. Unset or empty variables are ignored.
func (c *Config) MergeFromEnv() error {
	return c.mergeFromLookup(os.LookupEnv)
}

func (c *Config) mergeFromLookup(lookup func(string) (string, bool)) error {
	var errors []string

	getInt := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
	getString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	period := -1
	getInt(EnvProgressPeriod, &period)
	if period >= 0 {
		c.ProgressPeriod = time.Duration(period) * time.Second
	}

	getInt(EnvResizeRatio, &c.ResizeRatio)
	getInt(EnvCRF, &c.Encoder.CRF)
	getInt(EnvFPS, &c.FPS)
	getInt(EnvWorkers, &c.Workers)
	getInt(EnvDays, &c.Days)
	getInt(EnvLookahead, &c.Lookahead)
	getString(EnvOutput, &c.Output)
	getString(EnvSink, &c.Encoder.Sink)
	getString(EnvFont, &c.FontPath)

	if len(errors) > 0 {
		return fmt.Errorf("invalid environment:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}
