// Package config loads botty's optional ambient startup file,
// botty.yaml (SPEC_FULL.md §10). It is deliberately thin: spec.md's
// "configuration loading is out of scope" excludes a project/agent
// definition format, not ambient server defaults such as the socket
// path or default transcript capacity.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds bottyd's ambient startup defaults, overridable by flags.
type Config struct {
	SocketPath         string `yaml:"socket_path"`
	Root               string `yaml:"root"`
	DefaultRows        int    `yaml:"default_rows"`
	DefaultCols        int    `yaml:"default_cols"`
	TranscriptCapacity int    `yaml:"transcript_capacity"`
	ExitWhenEmpty      bool   `yaml:"exit_when_empty"`
}

// Default returns the built-in defaults used when no botty.yaml is
// present and no flag overrides a field.
func Default() Config {
	return Config{
		DefaultRows:        24,
		DefaultCols:        80,
		TranscriptCapacity: 1 << 20,
	}
}

// Load reads path (if it exists) and overlays it onto Default(). A
// missing file is not an error: botty.yaml is entirely optional.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
