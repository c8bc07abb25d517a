package pipeline_test

import (
	"context"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/corpus"
	"github.com/helixbyte/ragserve/pkg/logger"
	"github.com/helixbyte/ragserve/pkg/pipeline"
	"github.com/helixbyte/ragserve/pkg/registry"
	testutils "github.com/helixbyte/ragserve/pkg/utils/test"
	"github.com/helixbyte/ragserve/pkg/vector/memory"
)

// scriptedGenerator records the prompts and budgets it is asked for.
type scriptedGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
	budgets  []int
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, maxNewTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.budgets = append(g.budgets, maxNewTokens)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func (g *scriptedGenerator) lastBudget() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.budgets) == 0 {
		return 0
	}
	return g.budgets[len(g.budgets)-1]
}

var _ = Describe("Pipeline", func() {
	var (
		ctx context.Context
		c   *corpus.Pooled
		reg *registry.Registry
		gen *scriptedGenerator
		p   *pipeline.Pipeline
	)

	ingest := func(filename string, texts ...string) string {
		chunks := make([]chunker.Chunk, len(texts))
		for i, t := range texts {
			chunks[i] = chunker.Chunk{Text: t, Sequence: i}
		}
		id, err := c.Ingest(ctx, filename, chunks)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	BeforeEach(func() {
		ctx = context.Background()
		ix, err := memory.NewIndex(testutils.MockEmbedderDimensions, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		reg = registry.New()
		c = corpus.NewPooled(testutils.NewMockEmbedder(), ix, reg, logger.Nop())
		gen = &scriptedGenerator{response: "generated answer"}
		p = pipeline.New(c, reg, gen, logger.Nop())
	})

	Describe("Ask", func() {
		It("rejects blank questions", func() {
			_, err := p.Ask(ctx, "   \t ", nil)
			Expect(err).To(MatchError(pipeline.ErrValidation))
			Expect(gen.calls()).To(BeZero())
		})

		It("rejects oversized questions", func() {
			_, err := p.Ask(ctx, strings.Repeat("q", 2001), nil)
			Expect(err).To(MatchError(pipeline.ErrValidation))
		})

		It("asks for an upload before any document exists", func() {
			answer, err := p.Ask(ctx, "what is this about?", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("Please upload a PDF first!"))
			Expect(gen.calls()).To(BeZero())
		})

		It("answers from retrieved context", func() {
			ingest("doc.pdf", "solar panels convert light", "wind turbines spin")

			answer, err := p.Ask(ctx, "solar panels convert light", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("generated answer"))

			prompt := gen.lastPrompt()
			Expect(prompt).To(ContainSubstring("Use ONLY the provided context"))
			Expect(prompt).To(ContainSubstring("solar panels convert light"))
			Expect(prompt).To(ContainSubstring("Question: solar panels convert light"))
			Expect(gen.lastBudget()).To(Equal(256))
		})

		It("short-circuits when the scope matches nothing", func() {
			ingest("doc.pdf", "solar panels convert light")

			answer, err := p.Ask(ctx, "anything", []string{"unknown-id"})
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("No relevant context found."))
			Expect(gen.calls()).To(BeZero())
		})
	})

	Describe("Summarize", func() {
		It("asks for an upload before any document exists", func() {
			summary, err := p.Summarize(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(Equal("Please upload a PDF first!"))
		})

		It("summarizes retrieved context in bullet points", func() {
			ingest("doc.pdf", "chapter one", "chapter two")

			summary, err := p.Summarize(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(Equal("generated answer"))
			Expect(gen.lastPrompt()).To(ContainSubstring("6-8 concise bullet points"))
			Expect(gen.lastBudget()).To(Equal(220))
		})
	})

	Describe("Compare", func() {
		It("guides the caller when fewer than two ids are given", func() {
			ingest("doc.pdf", "content")

			out, err := p.Compare(ctx, []string{"only-one"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Provide at least two document ids to compare."))
			Expect(gen.calls()).To(BeZero())
		})

		It("compares context drawn from both documents", func() {
			id1 := ingest("a.pdf", "alpha findings")
			id2 := ingest("b.pdf", "beta findings")

			out, err := p.Compare(ctx, []string{id1, id2})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("generated answer"))
			Expect(gen.lastPrompt()).To(ContainSubstring("similarities and differences"))
			Expect(gen.lastBudget()).To(Equal(600))
		})

		It("reports missing context for unknown ids", func() {
			ingest("doc.pdf", "content")

			out, err := p.Compare(ctx, []string{"ghost-1", "ghost-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("No document context available to compare."))
			Expect(gen.calls()).To(BeZero())
		})
	})
})
