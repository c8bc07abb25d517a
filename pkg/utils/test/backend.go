package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/helixbyte/ragserve/pkg/generation"
)

// MockBackend is a scriptable generation.Backend for engine tests.
type MockBackend struct {
	mu sync.Mutex

	// Response is returned from Infer.
	Response string

	// EchoPrompt prepends the prompt to Response, mimicking decoder-only
	// output.
	EchoPrompt bool

	// IsEncoderDecoder is reported from Load.
	IsEncoderDecoder bool

	// FailGPULoad makes GPU loads fail with generation.ErrAccelerator.
	FailGPULoad bool

	// LoadDelay and InferDelay simulate slow operations.
	LoadDelay  time.Duration
	InferDelay time.Duration

	// InferErr, when set, is returned from Infer.
	InferErr error

	// LastPrompt records the most recent Infer prompt.
	LastPrompt string

	loadCalls    atomic.Int32
	inferCalls   atomic.Int32
	releaseCalls atomic.Int32
}

func NewMockBackend() *MockBackend {
	return &MockBackend{Response: "mock output"}
}

func (m *MockBackend) Load(_ context.Context, opts generation.LoadOptions) (generation.ModelInfo, error) {
	m.loadCalls.Add(1)

	if m.LoadDelay > 0 {
		time.Sleep(m.LoadDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailGPULoad && opts.Device == generation.DeviceGPU {
		return generation.ModelInfo{}, fmt.Errorf("%w: mock gpu failure", generation.ErrAccelerator)
	}

	return generation.ModelInfo{
		Model:            "mock-model",
		IsEncoderDecoder: m.IsEncoderDecoder,
		Device:           opts.Device,
	}, nil
}

func (m *MockBackend) Infer(_ context.Context, req generation.InferRequest) (string, error) {
	m.inferCalls.Add(1)

	m.mu.Lock()
	delay := m.InferDelay
	inferErr := m.InferErr
	response := m.Response
	echo := m.EchoPrompt
	m.LastPrompt = req.Prompt
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if inferErr != nil {
		return "", inferErr
	}
	if echo {
		return req.Prompt + " " + response, nil
	}
	return response, nil
}

func (m *MockBackend) ReleaseCache(context.Context) error {
	m.releaseCalls.Add(1)
	return nil
}

func (m *MockBackend) Close() error {
	return nil
}

// Set mutates scripted fields under the backend's lock, so tests can change
// behavior between calls without racing in-flight workers.
func (m *MockBackend) Set(fn func(*MockBackend)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *MockBackend) LoadCalls() int    { return int(m.loadCalls.Load()) }
func (m *MockBackend) InferCalls() int   { return int(m.inferCalls.Load()) }
func (m *MockBackend) ReleaseCalls() int { return int(m.releaseCalls.Load()) }

var _ generation.Backend = (*MockBackend)(nil)
