package generation

import "context"

// Device is a compute device for model placement.
type Device string

const (
	// DeviceGPU requests accelerator placement.
	DeviceGPU Device = "gpu"

	// DeviceCPU requests the default compute device.
	DeviceCPU Device = "cpu"
)

// ModelInfo describes a loaded generation model.
type ModelInfo struct {
	// Model is the model identifier.
	Model string

	// IsEncoderDecoder selects the output decoding strategy: encoder-
	// decoder models return the full output sequence, decoder-only models
	// echo the input prefix.
	IsEncoderDecoder bool

	// Device is where the model ended up after load.
	Device Device
}

// LoadOptions control model loading.
type LoadOptions struct {
	// Device is the requested placement.
	Device Device

	// GPUMemoryLimitMB is the accelerator memory ceiling. Zero means no
	// ceiling. Backends may ignore it.
	GPUMemoryLimitMB int
}

// InferRequest is a single inference call.
type InferRequest struct {
	// Prompt is the already-truncated input text.
	Prompt string

	// MaxNewTokens bounds the generated output length.
	MaxNewTokens int
}

// Backend is the black-box model runtime behind the engine. Implementations
// must be safe for concurrent Infer calls and must not mutate loaded weights.
type Backend interface {
	// Load loads the model onto the requested device and reports its
	// architecture. Returns an error wrapping ErrAccelerator when GPU
	// placement fails, so the engine can retry on CPU.
	Load(ctx context.Context, opts LoadOptions) (ModelInfo, error)

	// Infer runs one generation with deterministic (greedy) decoding.
	// Errors wrapping ErrResourceExhausted signal accelerator memory
	// exhaustion.
	Infer(ctx context.Context, req InferRequest) (string, error)

	// ReleaseCache releases accelerator memory caches, best effort.
	ReleaseCache(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
