// Package ollama implements pkg/generation's Backend against an Ollama
// model runtime.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helixbyte/ragserve/pkg/generation"
)

const (
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// keepAlive keeps the model resident between calls; ReleaseCache
	// overrides it with zero to evict.
	keepAlive = "10m"
)

// encoderDecoderFamilies are model families that decode the full output
// sequence instead of echoing the input prefix.
var encoderDecoderFamilies = map[string]bool{
	"t5":      true,
	"flan-t5": true,
	"bart":    true,
	"mt5":     true,
}

// Runtime wraps Ollama's generate API as a generation.Backend.
type Runtime struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama runtime.
type Config struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the generation model identifier.
	Model string
}

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Stream    bool           `json:"stream"`
	KeepAlive any            `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type showRequest struct {
	Model string `json:"model"`
}

type showResponse struct {
	Details struct {
		Family   string   `json:"family"`
		Families []string `json:"families"`
	} `json:"details"`
}

// NewRuntime creates a Backend talking to an Ollama server.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("generation model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Runtime{
		baseURL: baseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}, nil
}

// Load pulls the model into memory on the requested device and inspects its
// architecture.
func (r *Runtime) Load(ctx context.Context, opts generation.LoadOptions) (generation.ModelInfo, error) {
	options := map[string]any{}
	if opts.Device == generation.DeviceCPU {
		// num_gpu 0 forces CPU-only placement.
		options["num_gpu"] = 0
	}

	// An empty prompt makes /api/generate load the model without
	// producing output.
	req := generateRequest{
		Model:     r.model,
		Prompt:    "",
		Stream:    false,
		KeepAlive: keepAlive,
		Options:   options,
	}

	if err := r.post(ctx, "/api/generate", req, nil); err != nil {
		if opts.Device == generation.DeviceGPU && looksLikeAcceleratorFailure(err) {
			return generation.ModelInfo{}, fmt.Errorf("%w: %v", generation.ErrAccelerator, err)
		}
		return generation.ModelInfo{}, fmt.Errorf("loading model %s: %w", r.model, err)
	}

	var show showResponse
	if err := r.post(ctx, "/api/show", showRequest{Model: r.model}, &show); err != nil {
		return generation.ModelInfo{}, fmt.Errorf("inspecting model %s: %w", r.model, err)
	}

	return generation.ModelInfo{
		Model:            r.model,
		IsEncoderDecoder: isEncoderDecoder(show),
		Device:           opts.Device,
	}, nil
}

// Infer runs one deterministic (greedy) generation.
func (r *Runtime) Infer(ctx context.Context, req generation.InferRequest) (string, error) {
	body := generateRequest{
		Model:     r.model,
		Prompt:    req.Prompt,
		Stream:    false,
		KeepAlive: keepAlive,
		Options: map[string]any{
			"temperature": 0,
			"top_k":       1,
			"seed":        42,
			"num_predict": req.MaxNewTokens,
		},
	}

	var resp generateResponse
	if err := r.post(ctx, "/api/generate", body, &resp); err != nil {
		if looksLikeOOM(err) {
			return "", fmt.Errorf("%w: %v", generation.ErrResourceExhausted, err)
		}
		return "", err
	}

	return resp.Response, nil
}

// ReleaseCache evicts the model from accelerator memory. It is reloaded
// lazily on the next call.
func (r *Runtime) ReleaseCache(ctx context.Context) error {
	req := generateRequest{
		Model:     r.model,
		KeepAlive: 0,
	}
	return r.post(ctx, "/api/generate", req, nil)
}

// Close releases resources held by the runtime.
func (r *Runtime) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

func (r *Runtime) post(ctx context.Context, path string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func isEncoderDecoder(show showResponse) bool {
	if encoderDecoderFamilies[strings.ToLower(show.Details.Family)] {
		return true
	}
	for _, f := range show.Details.Families {
		if encoderDecoderFamilies[strings.ToLower(f)] {
			return true
		}
	}
	return false
}

func looksLikeOOM(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") ||
		strings.Contains(msg, "oom") ||
		strings.Contains(msg, "cuda error")
}

func looksLikeAcceleratorFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cuda") ||
		strings.Contains(msg, "gpu") ||
		strings.Contains(msg, "vram") ||
		looksLikeOOM(err)
}

// Ensure Runtime implements generation.Backend
var _ generation.Backend = (*Runtime)(nil)
