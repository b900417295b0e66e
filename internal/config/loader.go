//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "pgedge-ask-gateway.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/pgedge/" + ConfigFileName

	// DotEnvFile is the environment file read from the working directory.
	DotEnvFile = ".env"
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/pgedge/pgedge-ask-gateway.yaml
//  3. pgedge-ask-gateway.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	return loadFromFile(configPath)
}

// LoadEnvFiles loads environment variables from the given files, or from
// .env in the working directory when none are given. Missing files are
// ignored; variables already set in the environment win.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DotEnvFile}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// findConfigFile finds the configuration file using the search order.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no configuration file found; searched: %v", searchPaths)
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile loads and parses the configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration data, applies defaults and validates
// the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills knowledge base settings left unspecified.
func applyDefaults(cfg *Config) {
	for i := range cfg.KnowledgeBases {
		kb := &cfg.KnowledgeBases[i]

		if kb.ZoneID == "" {
			kb.ZoneID = cfg.Defaults.ZoneID
		}

		if kb.TopK == 0 {
			kb.TopK = cfg.Defaults.TopK
		}

		kb.Mode = strings.ToLower(strings.TrimSpace(kb.Mode))
		if kb.Mode == "" {
			kb.Mode = DefaultMode(kb.Name)
		}
	}

	if cfg.Suggestions.Source == "" {
		cfg.Suggestions.Source = SuggestionSourceStatic
	}

	db := &cfg.Suggestions.Database
	if db.Port == 0 {
		db.Port = 5432
	}
	if db.SSLMode == "" {
		db.SSLMode = "prefer"
	}
	if db.Table == "" {
		db.Table = "chat_suggestions"
	}
}
