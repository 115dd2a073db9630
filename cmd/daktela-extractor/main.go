// Command daktela-extractor extracts tables from a Daktela instance
// into CSV files with manifests.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jsvoboda/daktela-extractor/internal/extractor"
	"github.com/jsvoboda/daktela-extractor/pkg/clients"
	"github.com/jsvoboda/daktela-extractor/pkg/config"
	"github.com/jsvoboda/daktela-extractor/pkg/daktela"
	"github.com/jsvoboda/daktela-extractor/pkg/errors"
	"github.com/jsvoboda/daktela-extractor/pkg/logger"
	"github.com/jsvoboda/daktela-extractor/pkg/sink"
)

// Set via ldflags at build time.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Local .env files are a development convenience; absence is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "daktela-extractor",
		Short: "Daktela CRM data extractor",
		Long:  "Extracts tables from the Daktela API v6 into CSV files with manifests.",
	}
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		exitCode := 2
		if errors.IsUserError(err) {
			exitCode = 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode)
	}
}

func newExtractCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run a full extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Errors are reported once, by main.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return runExtract(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "path to configuration file")
	return cmd
}

func runExtract(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logCfg := logger.Config{Level: "info", Encoding: "json"}
	if cfg.Debug {
		logCfg = logger.Config{Level: "debug", Encoding: "console", Development: true}
	}
	if err := logger.Init(logCfg); err != nil {
		return err
	}
	defer logger.Sync()

	// The run id travels in the context; log sites pick it up through
	// logger.WithContext.
	runID := time.Now().UTC().Format("20060102-150405")
	ctx := context.WithValue(cmd.Context(), logger.RunIDKey, runID)
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		return err
	}

	httpClient := clients.NewHTTPClient(clients.DefaultHTTPConfig(), log)
	client := daktela.New(cfg.BaseURL(), cfg.Username, cfg.Password,
		daktela.WithHTTPClient(httpClient),
		daktela.WithLogger(log))
	output := sink.NewWriter(cfg.OutputDir, log)

	runner := extractor.New(cfg, client, output, log)
	return runner.Run(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("daktela-extractor %s (built %s)\n", version, buildTime)
		},
	}
}
