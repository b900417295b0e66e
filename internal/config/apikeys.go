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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvNucliaAPIKey is the environment variable holding the service account
// key shared by all knowledge bases. A knowledge-base-specific key is read
// from EnvNucliaAPIKey + "_" + NAME first.
const EnvNucliaAPIKey = "NUCLIA_API_KEY"

// DefaultNucliaKeyFile is the key file looked up in the home directory.
const DefaultNucliaKeyFile = ".nuclia-api-key"

// APIKeyLoader resolves the service account key of a knowledge base from
// its configuration, environment variables, or the default file location.
type APIKeyLoader struct {
	getenv  func(string) string
	homeDir func() (string, error)
}

// NewAPIKeyLoader creates a loader reading the process environment.
func NewAPIKeyLoader() *APIKeyLoader {
	return &APIKeyLoader{
		getenv:  os.Getenv,
		homeDir: os.UserHomeDir,
	}
}

// LoadKey loads the API key for a knowledge base with the following
// priority:
//  1. api_key set inline in the configuration
//  2. api_key_file set in the configuration
//  3. NUCLIA_API_KEY_<NAME>
//  4. NUCLIA_API_KEY
//  5. ~/.nuclia-api-key
func (l *APIKeyLoader) LoadKey(kb KnowledgeBase) (string, error) {
	if key := strings.TrimSpace(kb.APIKey); key != "" {
		return key, nil
	}

	if kb.APIKeyFile != "" {
		return readKeyFile(expandPath(kb.APIKeyFile), kb.Name)
	}

	scoped := KnowledgeBaseKeyEnv(kb.Name)
	if key := strings.TrimSpace(l.getenv(scoped)); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(l.getenv(EnvNucliaAPIKey)); key != "" {
		return key, nil
	}

	homeDir, err := l.homeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(homeDir, DefaultNucliaKeyFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf(
			"API key for knowledge base %s not found: set %s or %s, or create %s",
			kb.Name, scoped, EnvNucliaAPIKey, path)
	}

	return readKeyFile(path, kb.Name)
}

// LoadKeys loads the keys of every knowledge base, keyed by name. The first
// failure is returned.
func (l *APIKeyLoader) LoadKeys(kbs []KnowledgeBase) (map[string]string, error) {
	keys := make(map[string]string, len(kbs))
	for _, kb := range kbs {
		key, err := l.LoadKey(kb)
		if err != nil {
			return nil, err
		}
		keys[kb.Name] = key
	}
	return keys, nil
}

// KnowledgeBaseKeyEnv returns the environment variable holding the key of a
// single knowledge base, e.g. NUCLIA_API_KEY_CHARTS.
func KnowledgeBaseKeyEnv(name string) string {
	var b strings.Builder
	b.WriteString(EnvNucliaAPIKey)
	b.WriteByte('_')
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// readKeyFile reads an API key from a file.
func readKeyFile(path, kbName string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("API key file for knowledge base %s not found: %s", kbName, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read API key for knowledge base %s: %w", kbName, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file for knowledge base %s is empty: %s", kbName, path)
	}

	return key, nil
}
