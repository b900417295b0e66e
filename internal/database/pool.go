//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package database provides PostgreSQL connectivity for the gateway's
// read-only lookups.
package database

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
)

// Pool wraps a pgxpool connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	config config.DatabaseConfig
}

// NewPool creates a new database connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	connStr := buildConnectionString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{
		pool:   pool,
		config: cfg,
	}, nil
}

// buildConnectionString constructs a PostgreSQL keyword/value connection
// string. Values are quoted so passwords may contain spaces or quotes.
func buildConnectionString(cfg config.DatabaseConfig) string {
	var parts []string

	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteValue(value))
		}
	}

	add("host", cfg.Host)
	parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	add("dbname", cfg.Database)

	// Username: config > PGUSER > USER
	username := cfg.Username
	if username == "" {
		username = os.Getenv("PGUSER")
	}
	if username == "" {
		username = os.Getenv("USER")
	}
	add("user", username)

	add("password", cfg.Password)
	add("sslmode", cfg.SSLMode)

	// Certificate-based authentication
	add("sslcert", cfg.SSLCert)
	add("sslkey", cfg.SSLKey)
	add("sslrootcert", cfg.SSLRootCA)

	return strings.Join(parts, " ")
}

// quoteValue quotes a connection string value when it contains characters
// that would otherwise end it.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Ping verifies the database connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Pool returns the underlying pgxpool.Pool for direct access.
func (p *Pool) Pool() *pgxpool.Pool {
	return p.pool
}
