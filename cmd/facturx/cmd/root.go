package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	cfgFile      string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "facturx",
	Short: "Generate and check Factur-X (EN16931) invoices",
	Long: `facturx turns JSON invoice records into Factur-X PDF/A-3 documents
carrying a CII XML attachment, and checks them against the French rules
before they are issued.

Examples:
  # Check an invoice before issuing it
  facturx dry-run invoice.json

  # Produce the Factur-X PDF
  facturx generate invoice.json -o facture.pdf

  # Produce a credit note
  facturx generate avoir.json --credit-note

  # Print the CII XML only
  facturx xml invoice.json

  # Run the HTTP API
  facturx serve`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, yaml, table)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (env: LOG_LEVEL)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = os.Getenv("FACTURX_CONFIG")
	}
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}
}

// loadConfig reads the configuration; flags win over file and env
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	cfg.App.Version = version
	return cfg, nil
}

// cliLogger logs to stderr so stdout stays clean for documents and reports
func cliLogger() *logger.Logger {
	level := "warn"
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	return logger.NewWithWriter(logger.Config{Level: level}, zerolog.ConsoleWriter{Out: os.Stderr})
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
