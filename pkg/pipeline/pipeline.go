// Package pipeline composes retrieval and generation into the question
// answering, summarization and comparison operations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/corpus"
	"github.com/helixbyte/ragserve/pkg/registry"
	"github.com/helixbyte/ragserve/pkg/utils"
)

// ErrValidation is returned for malformed user input.
var ErrValidation = errors.New("invalid request")

// maxQuestionLength bounds question length in characters.
const maxQuestionLength = 2000

// Retrieval depths per operation.
const (
	askTopK     = 4
	summaryTopK = 6
	compareTopK = 15
)

// New-token budgets per operation.
const (
	askMaxNewTokens     = 256
	summaryMaxNewTokens = 220
	compareMaxNewTokens = 600
)

// Generator produces text from a prompt. Satisfied by *generation.Engine.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error)
}

// Pipeline answers questions over ingested documents by retrieving relevant
// chunks and prompting the generation engine with them.
type Pipeline struct {
	corpus   corpus.Corpus
	registry *registry.Registry
	engine   Generator
	logger   *zap.Logger
}

// New creates a pipeline over the given corpus, registry and engine.
func New(c corpus.Corpus, reg *registry.Registry, engine Generator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		corpus:   c,
		registry: reg,
		engine:   engine,
		logger:   logger,
	}
}

// Ask answers a question from retrieved context, restricted to the scoped
// documents when scope is non-empty. When retrieval yields nothing the fixed
// no-context message is returned without invoking the engine.
func (p *Pipeline) Ask(ctx context.Context, question string, scope []string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	if utf8.RuneCountInString(question) > maxQuestionLength {
		return "", fmt.Errorf("%w: question exceeds %d characters", ErrValidation, maxQuestionLength)
	}

	if p.registry.Len() == 0 {
		return noDocumentsMessage, nil
	}

	contextText, err := p.contextFor(ctx, question, askTopK, scope)
	if err != nil {
		return "", err
	}
	if contextText == "" {
		return noContextMessage, nil
	}

	return p.engine.Generate(ctx, qaPrompt(contextText, question), askMaxNewTokens)
}

// Summarize produces a bullet-point summary of the scoped documents.
func (p *Pipeline) Summarize(ctx context.Context, scope []string) (string, error) {
	if p.registry.Len() == 0 {
		return noDocumentsMessage, nil
	}

	contextText, err := p.contextFor(ctx, summaryQuery, summaryTopK, scope)
	if err != nil {
		return "", err
	}
	if contextText == "" {
		return noSummaryContextMessage, nil
	}

	return p.engine.Generate(ctx, summaryPrompt(contextText), summaryMaxNewTokens)
}

// Compare contrasts the given documents. Fewer than two ids yields a guidance
// message rather than an error.
func (p *Pipeline) Compare(ctx context.Context, ids []string) (string, error) {
	if len(ids) < 2 {
		return compareGuidanceMessage, nil
	}

	contextText, err := p.contextFor(ctx, compareQuery, compareTopK, ids)
	if err != nil {
		return "", err
	}
	if contextText == "" {
		return noCompareContextMessage, nil
	}

	return p.engine.Generate(ctx, comparePrompt(contextText), compareMaxNewTokens)
}

// contextFor retrieves the topK most relevant chunks and joins their texts in
// retrieval order. Returns "" when nothing matched.
func (p *Pipeline) contextFor(ctx context.Context, query string, topK int, scope []string) (string, error) {
	matches, err := p.corpus.Retrieve(ctx, query, topK, scope)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	if len(matches) == 0 {
		p.logger.Debug("retrieval produced no context",
			zap.String("query", query),
			zap.Strings("scope", scope),
		)
		return "", nil
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	joined := strings.Join(texts, "\n\n")

	p.logger.Debug("assembled retrieval context",
		zap.Int("chunks", len(matches)),
		zap.String("preview", utils.Truncate(joined, 120)),
	)

	return joined, nil
}
