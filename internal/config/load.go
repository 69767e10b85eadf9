package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are the config file names Discover looks for, in order.
var DefaultFiles = []string{"assetpipe.yaml", "assetpipe.yml", "assetpipe.jsonc", "assetpipe.json"}

// Parse decodes a config document. The format is chosen from the file
// extension: YAML for .yaml/.yml, JSON with comments for .json/.jsonc.
func Parse(name string, data []byte) (*Config, error) {
	var cfg Config

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Load reads, decodes and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}

	// a relative context is relative to the file declaring it
	if !filepath.IsAbs(cfg.Context) {
		cfg.Context = filepath.Join(filepath.Dir(path), cfg.Context)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when set, falling back to Default with a warning
// when the file is missing, malformed or invalid.
func LoadOrDefault(path string) *Config {
	if path == "" {
		log.Debug().Msg("No config file, using built-in configuration")
		return Default()
	}

	cfg, err := Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to load config, using built-in configuration")
		return Default()
	}

	return cfg
}

// Discover returns the first of DefaultFiles present in dir, or "" when none is.
func Discover(dir string) string {
	for _, name := range DefaultFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
