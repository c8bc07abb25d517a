package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/corpus"
	"github.com/helixbyte/ragserve/pkg/pipeline"
	"github.com/helixbyte/ragserve/pkg/registry"
)

// Server is the API server for the document question answering service.
type Server struct {
	config   Config
	chunker  chunker.Chunker
	corpus   corpus.Corpus
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The corpus and registry are injected so
// they can be shared with other components. A nil gatherer disables /metrics.
func NewServer(config Config, ck chunker.Chunker, c corpus.Corpus, reg *registry.Registry, pl *pipeline.Pipeline, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		chunker:  ck,
		corpus:   c,
		registry: reg,
		pipeline: pl,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/ingest", s.handleIngest)
	app.Post("/ask", s.handleAsk)
	app.Post("/summarize", s.handleSummarize)
	app.Post("/compare", s.handleCompare)
	app.Get("/documents", s.handleListDocuments)
	app.Get("/similarity", s.handleSimilarity)

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
