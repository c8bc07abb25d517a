// Package servecmder provides the serve command running the API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/api"
	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/config"
	"github.com/helixbyte/ragserve/pkg/corpus"
	"github.com/helixbyte/ragserve/pkg/embeddings/ollama"
	"github.com/helixbyte/ragserve/pkg/generation"
	genollama "github.com/helixbyte/ragserve/pkg/generation/ollama"
	"github.com/helixbyte/ragserve/pkg/logger"
	"github.com/helixbyte/ragserve/pkg/pipeline"
	"github.com/helixbyte/ragserve/pkg/registry"
	vectorutils "github.com/helixbyte/ragserve/pkg/vector/utils"
)

type ServeCommander struct {
	listen    string
	configDir string
	debug     bool
	logger    *zap.Logger
}

const serveLongDesc string = `Run the ragserve API server.

Configuration is resolved from defaults, an optional config.toml, and
RAGSERVE_-prefixed environment variables. A .env file in the working
directory is loaded if present.`

const serveShortDesc string = "Run the ragserve API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for the API server to listen on (overrides config)")
	cmd.Flags().StringVarP(&cmder.configDir, "config", "c", "", "Directory to search for config.toml")

	return cmd
}

func (c *ServeCommander) run() error {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.listen != "" {
		cfg.API.Listen = c.listen
	}

	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx := context.Background()

	embedder, err := ollama.NewEmbedder(ollama.Config{
		BaseURL:    cfg.Embedding.Target,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	reg := registry.New()

	corp, err := c.createCorpus(ctx, cfg, embedder, reg)
	if err != nil {
		return err
	}
	defer corp.Close()

	runtime, err := genollama.NewRuntime(genollama.Config{
		BaseURL: cfg.Generation.Target,
		Model:   cfg.Generation.Model,
	})
	if err != nil {
		return fmt.Errorf("creating model runtime: %w", err)
	}

	promReg := prometheus.NewRegistry()

	engine := generation.NewEngine(runtime, generation.Config{
		Timeout:               cfg.Generation.Timeout,
		MaxConcurrent:         cfg.Generation.MaxConcurrent,
		MaxInputTokens:        cfg.Generation.MaxInputTokens,
		GPUMemoryLimitMB:      cfg.Generation.GPUMemoryLimitMB,
		ReleaseCacheAfterCall: cfg.Generation.ReleaseCacheAfterCall,
		Registerer:            promReg,
	}, c.logger)
	defer engine.Close()

	pl := pipeline.New(corp, reg, engine, c.logger)

	ck := chunker.NewTextChunker(chunker.Config{
		Size:    cfg.Chunking.Size,
		Overlap: cfg.Chunking.Overlap,
	})

	apiConfig := api.Config{
		ListenAddr: cfg.API.Listen,
	}
	server := api.NewServer(apiConfig, ck, corp, reg, pl, promReg, c.logger)

	c.logger.Info("starting ragserve",
		zap.String("listen", cfg.API.Listen),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.String("isolation", cfg.Corpus.Isolation),
		zap.String("generation_model", cfg.Generation.Model),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *ServeCommander) createCorpus(ctx context.Context, cfg *config.Config, embedder *ollama.Embedder, reg *registry.Registry) (corpus.Corpus, error) {
	opts := &vectorutils.NewIndexOpts{
		Provider:   cfg.VectorStore.Provider,
		Target:     cfg.VectorStore.Target,
		Collection: cfg.VectorStore.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     c.logger,
	}

	if cfg.Corpus.Isolation == "isolated" {
		c.logger.Info("using isolated corpus, one index per document")
		return corpus.NewIsolated(embedder, vectorutils.NewIndexFactory(opts), reg, c.logger), nil
	}

	index, err := vectorutils.NewIndex(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	c.logger.Info("using pooled corpus, shared index with scope filter")
	return corpus.NewPooled(embedder, index, reg, c.logger), nil
}
