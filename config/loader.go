package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadConfig loads configuration with priority: CLI flags > Environment >
// Config file > Defaults
func LoadConfig() (*Config, error) {
	// 1. Start with defaults
	cfg := DefaultConfig()

	// 2. Check if -config flag was provided (quick parse to extract it)
	configPath := configFlag(os.Args[1:])

	// If no config flag, try to find config file in standard locations
	if configPath == "" {
		configPath = FindConfigFile()
	}

	// Load config file if found
	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		// Merge file config (overwrites defaults)
		cfg = fileCfg
	}

	// 3. Environment
	if err := cfg.MergeFromEnv(); err != nil {
		return nil, err
	}

	// 4. Merge CLI flags (highest priority, overwrites everything)
	if err := cfg.MergeFromFlags(); err != nil {
		return nil, err
	}

	cfg.ResolveWorkers()

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configFlag extracts the value of -config (or --config, -config=PATH).
func configFlag(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if len(name) == len(arg) {
			continue
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if value, ok := strings.CutPrefix(name, "config="); ok {
			return value
		}
	}
	return ""
}
