// Package server exposes the generation pipeline and the dry run over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/validation"
)

// PreviewLimit caps the XML preview returned by validate-xml and dry-run
const PreviewLimit = 2000

// DefaultMaxBodyBytes caps request bodies when Config.MaxBodyBytes is unset
const DefaultMaxBodyBytes = 10 << 20

// Config holds server configuration
type Config struct {
	Address      string
	Version      string
	Clients      map[string]string // client name -> API key; empty disables auth
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *processor.Pipeline
	dryRun   *validation.Engine
	preview  *validation.Engine
	log      *logger.Logger
	srv      *http.Server
}

// NewServer creates a new API server
func NewServer(config *Config, pipeline *processor.Pipeline, log *logger.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("http")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))

	if len(config.Clients) == 0 {
		log.Warn().Msg("no API clients configured, authentication disabled")
	}

	s := &Server{
		config:   config,
		router:   router,
		pipeline: pipeline,
		dryRun:   validation.NewEngine(),
		preview:  validation.NewEngine(validation.WithPreview(PreviewLimit)),
		log:      log,
	}

	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         config.Address,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/v1")
	v1.Use(APIKeyAuth(s.config.Clients))
	v1.Use(BodyLimit(s.config.MaxBodyBytes))
	{
		v1.POST("/invoice/generate", s.handleGenerateInvoice)
		v1.POST("/invoice/dry-run", s.handleDryRunInvoice)
		v1.POST("/invoice/validate-xml", s.handleValidateXML)

		v1.POST("/credit-note/generate", s.handleGenerateCreditNote)
		v1.POST("/credit-note/dry-run", s.handleDryRunCreditNote)

		v1.POST("/documents/check", s.handleCheckDocument)

		v1.GET("/invoices", s.handleListInvoices)
		v1.GET("/invoices/:name", s.handleGetInvoice)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.log.Info().Str("address", s.config.Address).Msg("listening")
	return s.srv.ListenAndServe()
}

// Shutdown stops a server started with Run
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}
