//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// pgEdge Ask Gateway.
package config

// Names of the knowledge bases the gateway requires.
const (
	KnowledgeBaseDefault = "default"
	KnowledgeBaseCharts  = "charts"
	KnowledgeBaseVerse   = "verse"
)

// RequiredKnowledgeBases lists the knowledge bases every configuration must
// define.
var RequiredKnowledgeBases = []string{
	KnowledgeBaseDefault,
	KnowledgeBaseCharts,
	KnowledgeBaseVerse,
}

// Ask modes.
const (
	ModeStream = "stream"
	ModeSchema = "schema"
)

// Suggestion sources.
const (
	SuggestionSourceStatic   = "static"
	SuggestionSourcePostgres = "postgres"
)

// Config is the root configuration structure for the gateway.
type Config struct {
	Server         ServerConfig      `yaml:"server"`
	Defaults       Defaults          `yaml:"defaults"`
	KnowledgeBases []KnowledgeBase   `yaml:"knowledge_bases"`
	Suggestions    SuggestionsConfig `yaml:"suggestions"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port"`
	TLS           TLSConfig  `yaml:"tls"`
	CORS          CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Defaults contains default values that can be overridden per knowledge
// base.
type Defaults struct {
	TopK   int    `yaml:"top_k"`
	ZoneID string `yaml:"zone_id"`
}

// KnowledgeBase binds a gateway name to a remote knowledge box.
type KnowledgeBase struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	ZoneID         string `yaml:"zone_id"`
	KnowledgeBoxID string `yaml:"knowledge_box_id"`
	APIKey         string `yaml:"api_key"`      // Inline service account key
	APIKeyFile     string `yaml:"api_key_file"` // Path to a file holding the key
	Mode           string `yaml:"mode"`         // "stream" or "schema"
	TopK           int    `yaml:"top_k"`
	BaseURL        string `yaml:"base_url"` // Optional override of the zone URL
}

// SuggestionsConfig selects where canned prompt suggestions come from.
type SuggestionsConfig struct {
	Source   string              `yaml:"source"`
	Items    map[string][]string `yaml:"items"` // Static suggestions per knowledge base
	Database DatabaseConfig      `yaml:"database"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	Table    string `yaml:"table"`

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Defaults: Defaults{
			TopK: 5,
		},
		Suggestions: SuggestionsConfig{
			Source: SuggestionSourceStatic,
		},
	}
}

// FindKnowledgeBase returns the knowledge base with the given name.
func (c *Config) FindKnowledgeBase(name string) (KnowledgeBase, bool) {
	for _, kb := range c.KnowledgeBases {
		if kb.Name == name {
			return kb, true
		}
	}
	return KnowledgeBase{}, false
}

// DefaultMode returns the mode used when a knowledge base sets none.
// Charts answers need a schema-constrained response, which the remote
// service cannot stream.
func DefaultMode(name string) string {
	if name == KnowledgeBaseCharts {
		return ModeSchema
	}
	return ModeStream
}
