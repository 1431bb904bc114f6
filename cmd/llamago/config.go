package main

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is an optional project-local TOML file that supplies defaults;
// CLI flags always override values loaded here.
type fileConfig struct {
	Temperature float32 `toml:"temperature"`
	TopP        float32 `toml:"topp"`
	Steps       int     `toml:"steps"`
	Seed        uint64  `toml:"seed"`
	LogLevel    string  `toml:"log-level"`
}

// loadFileConfig reads path if it exists; a missing file is not an error.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
