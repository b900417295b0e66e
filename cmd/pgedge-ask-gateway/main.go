//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-ask-gateway/internal/ask"
	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
	"github.com/pgEdge/pgedge-ask-gateway/internal/server"
	"github.com/pgEdge/pgedge-ask-gateway/internal/suggestions"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "pgedge-ask-gateway",
		Short: "Ask questions of hosted knowledge bases",
		Long: `pgEdge Ask Gateway answers questions from hosted RAG knowledge bases.

Without a subcommand it runs the HTTP API. The configuration file is
searched for in this order:
    1. the --config flag
    2. /etc/pgedge/pgedge-ask-gateway.yaml
    3. pgedge-ask-gateway.yaml (in binary directory)

A .env file in the working directory is loaded before anything else.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newOpenAPICmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newOpenAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openapi",
		Short: "Output the OpenAPI v3 document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(server.BuildOpenAPISpec()); err != nil {
				return fmt.Errorf("failed to encode OpenAPI document: %w", err)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pgEdge Ask Gateway\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", gitCommit)
		},
	}
}

// newLogger creates the text logger and installs it as the default.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger, nil
}

func runServe(ctx context.Context, opts *globalOptions) error {
	logger, err := newLogger(os.Stdout, opts.logLevel)
	if err != nil {
		return err
	}

	if err := serve(ctx, opts.configPath, logger); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}
	return nil
}

func serve(ctx context.Context, configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		"knowledge_bases", len(cfg.KnowledgeBases),
		"suggestions", cfg.Suggestions.Source)

	kbm, err := ask.NewManagerWithLogger(ask.ManagerConfig{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create knowledge base manager: %w", err)
	}
	defer func() {
		if err := kbm.Close(); err != nil {
			logger.Error("failed to close knowledge base manager", "error", err)
		}
	}()

	store, err := suggestions.NewStore(ctx, cfg.Suggestions, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, kbm, store, logger)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}
