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

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateDefaults()...)
	errs = append(errs, c.validateKnowledgeBases()...)
	errs = append(errs, c.validateSuggestions()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.CORS.Enabled {
		for i, origin := range c.Server.CORS.AllowedOrigins {
			if origin != "*" && !strings.HasPrefix(origin, "http://") &&
				!strings.HasPrefix(origin, "https://") {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("server.cors.allowed_origins[%d]", i),
					Message: "must be \"*\" or an http or https origin",
				})
			}
		}
	}

	if c.Server.TLS.Enabled {
		errs = append(errs, requireFile("server.tls.cert_file", c.Server.TLS.CertFile)...)
		errs = append(errs, requireFile("server.tls.key_file", c.Server.TLS.KeyFile)...)
	}

	return errs
}

// requireFile reports a missing setting or a setting naming a file that
// does not exist.
func requireFile(field, path string) ValidationErrors {
	if path == "" {
		return ValidationErrors{{
			Field:   field,
			Message: "required when TLS is enabled",
		}}
	}
	if _, err := os.Stat(expandPath(path)); err != nil {
		return ValidationErrors{{
			Field:   field,
			Message: fmt.Sprintf("file not found: %s", path),
		}}
	}
	return nil
}

func (c *Config) validateDefaults() ValidationErrors {
	if c.Defaults.TopK < 0 {
		return ValidationErrors{{
			Field:   "defaults.top_k",
			Message: "must be non-negative",
		}}
	}
	return nil
}

// validateKnowledgeBases validates all knowledge base configurations.
func (c *Config) validateKnowledgeBases() ValidationErrors {
	var errs ValidationErrors

	names := make(map[string]bool)
	for i, kb := range c.KnowledgeBases {
		if kb.Name != "" && names[kb.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("knowledge_bases[%d].name", i),
				Message: fmt.Sprintf("duplicate knowledge base name: %s", kb.Name),
			})
		}
		names[kb.Name] = true

		errs = append(errs, validateKnowledgeBase(i, kb)...)
	}

	for _, required := range RequiredKnowledgeBases {
		if !names[required] {
			errs = append(errs, ValidationError{
				Field:   "knowledge_bases",
				Message: fmt.Sprintf("knowledge base %q must be configured", required),
			})
		}
	}

	return errs
}

// validateKnowledgeBase validates a single knowledge base configuration.
func validateKnowledgeBase(index int, kb KnowledgeBase) ValidationErrors {
	var errs ValidationErrors
	prefix := fmt.Sprintf("knowledge_bases[%d]", index)

	if kb.Name == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".name",
			Message: "required",
		})
	}

	if kb.ZoneID == "" && kb.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".zone_id",
			Message: "required (or set defaults.zone_id)",
		})
	}

	if kb.KnowledgeBoxID == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".knowledge_box_id",
			Message: "required",
		})
	}

	if kb.Mode != ModeStream && kb.Mode != ModeSchema {
		errs = append(errs, ValidationError{
			Field:   prefix + ".mode",
			Message: fmt.Sprintf("must be one of: %s, %s", ModeStream, ModeSchema),
		})
	}

	if kb.TopK < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".top_k",
			Message: "must be non-negative",
		})
	}

	if kb.BaseURL != "" && !strings.HasPrefix(kb.BaseURL, "http://") &&
		!strings.HasPrefix(kb.BaseURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   prefix + ".base_url",
			Message: "must be an http or https URL",
		})
	}

	return errs
}

func (c *Config) validateSuggestions() ValidationErrors {
	var errs ValidationErrors

	switch c.Suggestions.Source {
	case SuggestionSourceStatic:
		for name := range c.Suggestions.Items {
			if _, ok := c.FindKnowledgeBase(name); !ok {
				errs = append(errs, ValidationError{
					Field:   "suggestions.items." + name,
					Message: "unknown knowledge base",
				})
			}
		}
	case SuggestionSourcePostgres:
		errs = append(errs, validateDatabase("suggestions.database", c.Suggestions.Database)...)
	default:
		errs = append(errs, ValidationError{
			Field: "suggestions.source",
			Message: fmt.Sprintf("must be one of: %s, %s",
				SuggestionSourceStatic, SuggestionSourcePostgres),
		})
	}

	return errs
}

// validateDatabase validates database configuration.
func validateDatabase(prefix string, db DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".host",
			Message: "required",
		})
	}

	if db.Database == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".database",
			Message: "required",
		})
	}

	if db.Port < 1 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".port",
			Message: "must be between 1 and 65535",
		})
	}

	if db.Table == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".table",
			Message: "required",
		})
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"allow":       true,
		"prefer":      true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if db.SSLMode != "" && !validSSLModes[db.SSLMode] {
		errs = append(errs, ValidationError{
			Field:   prefix + ".ssl_mode",
			Message: "must be one of: disable, allow, prefer, require, verify-ca, verify-full",
		})
	}

	return errs
}
