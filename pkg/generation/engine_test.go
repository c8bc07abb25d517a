package generation_test

import (
	"context"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/helixbyte/ragserve/pkg/generation"
	"github.com/helixbyte/ragserve/pkg/logger"
	testutils "github.com/helixbyte/ragserve/pkg/utils/test"
)

var _ = Describe("Engine", func() {
	var (
		backend *testutils.MockBackend
		ctx     context.Context
	)

	newEngine := func(cfg generation.Config) *generation.Engine {
		return generation.NewEngine(backend, cfg, logger.Nop())
	}

	BeforeEach(func() {
		backend = testutils.NewMockBackend()
		ctx = context.Background()
	})

	Describe("lazy loading", func() {
		It("starts unloaded and becomes ready after the first call", func() {
			e := newEngine(generation.Config{Timeout: time.Second})
			Expect(e.State()).To(Equal(generation.StateUnloaded))

			_, err := e.Generate(ctx, "hello", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.State()).To(Equal(generation.StateReady))
			Expect(backend.LoadCalls()).To(Equal(1))
		})

		It("loads exactly once under concurrent callers", func() {
			backend.Set(func(b *testutils.MockBackend) { b.LoadDelay = 50 * time.Millisecond })
			e := newEngine(generation.Config{Timeout: 5 * time.Second, MaxConcurrent: 4})

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := e.Generate(ctx, "concurrent", 16)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			Expect(backend.LoadCalls()).To(Equal(1))
			Expect(backend.InferCalls()).To(Equal(8))
		})

		It("falls back to cpu when accelerator placement fails", func() {
			backend.Set(func(b *testutils.MockBackend) { b.FailGPULoad = true })
			e := newEngine(generation.Config{Timeout: time.Second})

			_, err := e.Generate(ctx, "hello", 16)
			Expect(err).NotTo(HaveOccurred())
			// One failed GPU attempt plus the CPU retry.
			Expect(backend.LoadCalls()).To(Equal(2))
		})
	})

	Describe("output decoding", func() {
		It("strips the echoed prompt prefix for decoder-only models", func() {
			backend.Set(func(b *testutils.MockBackend) {
				b.EchoPrompt = true
				b.Response = "the answer"
			})
			e := newEngine(generation.Config{Timeout: time.Second})

			out, err := e.Generate(ctx, "what is it?", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("the answer"))
		})

		It("returns the full output for encoder-decoder models", func() {
			backend.Set(func(b *testutils.MockBackend) {
				b.IsEncoderDecoder = true
				b.Response = "  full sequence  "
			})
			e := newEngine(generation.Config{Timeout: time.Second})

			out, err := e.Generate(ctx, "prompt", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("full sequence"))
		})

		It("is deterministic for identical inputs", func() {
			e := newEngine(generation.Config{Timeout: time.Second})

			first, err := e.Generate(ctx, "same prompt", 16)
			Expect(err).NotTo(HaveOccurred())
			second, err := e.Generate(ctx, "same prompt", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal(second))
		})
	})

	Describe("prompt truncation", func() {
		It("bounds the prompt to the input token budget", func() {
			e := newEngine(generation.Config{Timeout: time.Second, MaxInputTokens: 10})

			long := strings.Repeat("word ", 100)
			_, err := e.Generate(ctx, long, 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Fields(backend.LastPrompt)).To(HaveLen(10))
		})

		It("leaves short prompts untouched", func() {
			e := newEngine(generation.Config{Timeout: time.Second, MaxInputTokens: 10})

			_, err := e.Generate(ctx, "short prompt", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.LastPrompt).To(Equal("short prompt"))
		})
	})

	Describe("timeouts", func() {
		It("returns ErrTimeout within the budget and recovers for the next call", func() {
			backend.Set(func(b *testutils.MockBackend) { b.InferDelay = 500 * time.Millisecond })
			e := newEngine(generation.Config{Timeout: 100 * time.Millisecond})

			start := time.Now()
			_, err := e.Generate(ctx, "slow", 16)
			Expect(err).To(MatchError(generation.ErrTimeout))
			Expect(time.Since(start)).To(BeNumerically("<", 450*time.Millisecond))

			// The abandoned worker drains; a normal request right after
			// must succeed.
			backend.Set(func(b *testutils.MockBackend) { b.InferDelay = 0 })
			out, err := e.Generate(ctx, "fast", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("mock output"))
		})

		It("counts permit waiting against the timeout", func() {
			backend.Set(func(b *testutils.MockBackend) { b.InferDelay = 300 * time.Millisecond })
			e := newEngine(generation.Config{Timeout: 100 * time.Millisecond, MaxConcurrent: 1})

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				// Occupies the single permit past its own deadline.
				_, err := e.Generate(ctx, "holder", 16)
				Expect(err).To(MatchError(generation.ErrTimeout))
			}()

			time.Sleep(20 * time.Millisecond)

			_, err := e.Generate(ctx, "waiter", 16)
			Expect(err).To(MatchError(generation.ErrTimeout))
			wg.Wait()
		})
	})

	Describe("resource exhaustion", func() {
		It("surfaces ErrResourceExhausted and releases caches", func() {
			backend.Set(func(b *testutils.MockBackend) {
				b.InferErr = generation.ErrResourceExhausted
			})
			e := newEngine(generation.Config{Timeout: time.Second})

			_, err := e.Generate(ctx, "big", 16)
			Expect(err).To(MatchError(generation.ErrResourceExhausted))
			Expect(backend.ReleaseCalls()).To(BeNumerically(">=", 1))

			// The engine keeps serving after an OOM.
			backend.Set(func(b *testutils.MockBackend) { b.InferErr = nil })
			_, err = e.Generate(ctx, "small", 16)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("cache release after calls", func() {
		It("releases accelerator caches when configured", func() {
			e := newEngine(generation.Config{Timeout: time.Second, ReleaseCacheAfterCall: true})

			_, err := e.Generate(ctx, "hello", 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.ReleaseCalls()).To(Equal(1))
		})
	})
})
