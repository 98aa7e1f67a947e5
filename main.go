package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tagpipe/config"
	"tagpipe/logger"
	"tagpipe/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tagpipe",
		Short:         "Parse, repair and re-serialize weighted image prompt tags",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCmd(),
		newTokenizeCmd(),
		newRepairCmd(),
		newSerializeCmd(),
		newEditCmd(),
		newFormatsCmd(),
		newVersionCmd(),
	)
	return root
}

// loadRuntime loads configuration and the structured logger shared by all commands
func loadRuntime() (*config.Config, *logger.ObservabilityLogger, error) {
	cfg, err := config.LoadConfigWithEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	obsLogger, err := logger.NewObservabilityLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, warning := range cfg.Warnings {
		obsLogger.Warn(logger.ComponentConfig, logger.CategoryWarning, "", warning, nil)
	}
	return cfg, obsLogger, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(VersionString())

			cfg, obsLogger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer obsLogger.Close()

			commit, _ := buildStamp()
			obsLogger.Info(logger.ComponentServer, logger.CategoryRequest, "", "tagpipe configuration loaded", map[string]interface{}{
				"port":             cfg.Port,
				"default_format":   cfg.DefaultFormat.String(),
				"output_language":  cfg.OutputLanguage.String(),
				"long_entry_limit": cfg.LongEntryLimit,
				"flux_high":        cfg.FormatOptions.FluxHighThreshold,
				"flux_low":         cfg.FormatOptions.FluxLowThreshold,
				"version":          Version,
				"git_commit":       commit,
			})

			handler := server.NewHandler(cfg, obsLogger)

			// Reasonable timeouts; every request is a small synchronous transform
			srv := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      handler.Routes(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				obsLogger.Info(logger.ComponentServer, logger.CategoryRequest, "", "tagpipe started", map[string]interface{}{
					"address": fmt.Sprintf("http://localhost:%s", cfg.Port),
				})
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					obsLogger.Error(logger.ComponentServer, logger.CategoryError, "", "Server failed", map[string]interface{}{"error": err.Error()})
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obsLogger.Info(logger.ComponentServer, logger.CategoryRequest, "", "tagpipe shutting down", nil)
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), VersionString())
		},
	}
}
