package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/server"
)

var (
	serverAddr  string
	serverDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for generating and checking invoices.

The API provides endpoints for:
  - POST /v1/invoice/generate      - JSON invoice to Factur-X PDF
  - POST /v1/invoice/dry-run       - Check an invoice without producing it
  - POST /v1/invoice/validate-xml  - Serialize and schema-check the XML
  - POST /v1/credit-note/generate  - JSON credit note to Factur-X PDF
  - POST /v1/credit-note/dry-run   - Check a credit note
  - POST /v1/documents/check       - Check an existing XML or Factur-X PDF
  - GET  /v1/invoices              - List stored documents
  - GET  /v1/invoices/:name        - Download a stored document
  - GET  /health                   - Health check

Requests to /v1 need an X-API-Key header when CLIENTS is set.

Examples:
  # Start server on default port
  facturx serve

  # Start on a custom port with a config file
  facturx serve --address :9000 --config config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (env: HTTP_ADDRESS)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.HTTP.Address = serverAddr
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	log.Info().
		Str("storage", cfg.Storage.Backend).
		Bool("auth", cfg.Auth.AuthEnabled()).
		Str("version", cfg.App.Version).
		Msg("starting facturx")

	srv := server.NewServer(&server.Config{
		Address:      cfg.HTTP.Address,
		Version:      cfg.App.Version,
		Clients:      cfg.Auth.Clients,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Debug:        serverDebug,
	}, newPipeline(cfg, store, log), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
