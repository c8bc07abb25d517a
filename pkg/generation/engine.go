// Package generation runs bounded-time, concurrency-limited inference against
// a single lazily loaded generation model shared by the whole process.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// State is the engine lifecycle state.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Config holds configuration for the engine.
type Config struct {
	// Timeout is the wall-clock budget per Generate call. The clock starts
	// when the call enters the engine, so permit waiting counts against it.
	Timeout time.Duration

	// MaxConcurrent caps simultaneous inferences (defaults to 2).
	MaxConcurrent int

	// MaxInputTokens is the prompt truncation budget (defaults to 2048).
	MaxInputTokens int

	// GPUMemoryLimitMB is the accelerator memory ceiling passed to the
	// backend at load time. Zero means no ceiling.
	GPUMemoryLimitMB int

	// ReleaseCacheAfterCall releases accelerator caches after each
	// successful generation to bound peak memory across repeated calls.
	ReleaseCacheAfterCall bool

	// Registerer receives the engine's Prometheus counters. May be nil.
	Registerer prometheus.Registerer
}

// Engine serializes model loading and bounds concurrent inference with a
// weighted permit pool. The loaded model handle is read-only after load.
type Engine struct {
	backend Backend
	cfg     Config
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *Metrics

	state atomic.Int32

	// loadCh is a one-slot token channel guarding the load critical
	// section. Callers that arrive during LOADING block here until the
	// first loader finishes, then share the same handle.
	loadCh chan struct{}
	info   ModelInfo
}

// NewEngine creates an engine over the given backend. The model is not
// loaded until the first Generate call.
func NewEngine(backend Backend, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	e := &Engine{
		backend: backend,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  logger,
		metrics: NewMetrics(cfg.Registerer),
		loadCh:  make(chan struct{}, 1),
	}
	e.loadCh <- struct{}{}
	return e
}

// State reports the engine lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// ensureLoaded loads the model exactly once. The first caller pays the load
// cost; concurrent callers block until the handle is ready. GPU placement is
// attempted first, with a CPU fallback that does not fail the triggering
// request.
func (e *Engine) ensureLoaded(ctx context.Context) (ModelInfo, error) {
	if e.State() == StateReady {
		return e.info, nil
	}

	select {
	case <-e.loadCh:
	case <-ctx.Done():
		return ModelInfo{}, fmt.Errorf("%w: waiting for model load: %v", ErrTimeout, ctx.Err())
	}
	defer func() { e.loadCh <- struct{}{} }()

	// A concurrent loader may have finished while we waited.
	if e.State() == StateReady {
		return e.info, nil
	}

	e.state.Store(int32(StateLoading))
	start := time.Now()

	info, err := e.backend.Load(ctx, LoadOptions{
		Device:           DeviceGPU,
		GPUMemoryLimitMB: e.cfg.GPUMemoryLimitMB,
	})
	if err != nil && errors.Is(err, ErrAccelerator) {
		e.logger.Warn("accelerator placement failed, falling back to cpu",
			zap.Error(err),
		)
		info, err = e.backend.Load(ctx, LoadOptions{Device: DeviceCPU})
	}
	if err != nil {
		e.state.Store(int32(StateUnloaded))
		return ModelInfo{}, fmt.Errorf("loading generation model: %w", err)
	}

	e.info = info
	e.state.Store(int32(StateReady))

	e.logger.Info("generation model loaded",
		zap.String("model", info.Model),
		zap.String("device", string(info.Device)),
		zap.Bool("encoder_decoder", info.IsEncoderDecoder),
		zap.Duration("took", time.Since(start)),
	)

	return info, nil
}

// Generate runs one bounded inference. The timeout covers the whole call:
// model load wait, permit wait, and inference. On timeout the caller gets
// ErrTimeout while the detached worker finishes in the background, releases
// its permit, and has its result discarded.
func (e *Engine) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	info, err := e.ensureLoaded(ctx)
	if err != nil {
		return "", err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.metrics.Timeouts.Inc()
		return "", fmt.Errorf("%w: waiting for generation permit: %v", ErrTimeout, err)
	}

	truncated := e.truncate(prompt)

	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)

	// Inference is not cancellable mid-flight, so it runs on a detached
	// worker with an uncancelled context. The permit is held until the
	// worker finishes even if the caller has already given up, keeping
	// memory pressure bounded. The buffered channel lets an abandoned
	// worker exit without a receiver.
	go func() {
		defer e.sem.Release(1)
		text, inferErr := e.backend.Infer(context.WithoutCancel(ctx), InferRequest{
			Prompt:       truncated,
			MaxNewTokens: maxNewTokens,
		})
		resCh <- result{text: text, err: inferErr}
	}()

	select {
	case <-ctx.Done():
		e.metrics.Timeouts.Inc()
		e.logger.Warn("generation abandoned on timeout",
			zap.Duration("timeout", e.cfg.Timeout),
		)
		return "", fmt.Errorf("%w: exceeded %s", ErrTimeout, e.cfg.Timeout)
	case res := <-resCh:
		if res.err != nil {
			if errors.Is(res.err, ErrResourceExhausted) {
				e.metrics.OOMs.Inc()
				e.releaseCache()
				return "", res.err
			}
			return "", fmt.Errorf("inference failed: %w", res.err)
		}

		out := decodeOutput(info, truncated, res.text)
		e.metrics.Generations.Inc()

		if e.cfg.ReleaseCacheAfterCall {
			e.releaseCache()
		}

		return out, nil
	}
}

// truncate bounds the prompt to the input token budget. Truncation is
// silent toward the caller but logged and counted.
func (e *Engine) truncate(prompt string) string {
	tokens := strings.Fields(prompt)
	if len(tokens) <= e.cfg.MaxInputTokens {
		return prompt
	}

	e.metrics.Truncations.Inc()
	e.logger.Info("prompt truncated to input budget",
		zap.Int("tokens", len(tokens)),
		zap.Int("budget", e.cfg.MaxInputTokens),
	)

	return strings.Join(tokens[:e.cfg.MaxInputTokens], " ")
}

// decodeOutput applies the architecture-specific decoding strategy:
// encoder-decoder models return the full output sequence, decoder-only
// models echo the prompt and only the new tokens are returned.
func decodeOutput(info ModelInfo, prompt, raw string) string {
	if info.IsEncoderDecoder {
		return strings.TrimSpace(raw)
	}
	if after, ok := strings.CutPrefix(raw, prompt); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(raw)
}

func (e *Engine) releaseCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.backend.ReleaseCache(ctx); err != nil {
		e.logger.Debug("cache release failed", zap.Error(err))
	}
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}
