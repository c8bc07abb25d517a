package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/generation"
	"github.com/helixbyte/ragserve/pkg/pipeline"
	"github.com/helixbyte/ragserve/pkg/registry"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IngestRequest names the document file to ingest.
type IngestRequest struct {
	FilePath string `json:"file_path"`
}

// IngestResponse carries the id of the newly ingested document.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
}

// AskRequest is a question, optionally scoped to specific documents.
type AskRequest struct {
	Question string   `json:"question"`
	Scope    []string `json:"scope,omitempty"`
}

// AskResponse carries the generated answer.
type AskResponse struct {
	Answer string `json:"answer"`
}

// SummarizeRequest optionally scopes the summary to specific documents.
type SummarizeRequest struct {
	Scope []string `json:"scope,omitempty"`
}

// SummarizeResponse carries the generated summary.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// CompareRequest names the documents to compare.
type CompareRequest struct {
	IDs []string `json:"ids"`
}

// CompareResponse carries the generated comparison.
type CompareResponse struct {
	Comparison string `json:"comparison"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngest chunks the named file and adds it to the corpus.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}
	if req.FilePath == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "file_path is required"})
	}

	chunks, err := s.chunker.Chunk(req.FilePath)
	if err != nil {
		return s.fail(c, err)
	}

	docID, err := s.corpus.Ingest(c.Context(), req.FilePath, chunks)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(IngestResponse{DocumentID: docID})
}

// handleAsk answers a question from retrieved document context.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	answer, err := s.pipeline.Ask(c.Context(), req.Question, req.Scope)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(AskResponse{Answer: answer})
}

// handleSummarize produces a bullet-point summary of the scoped documents.
func (s *Server) handleSummarize(c *fiber.Ctx) error {
	var req SummarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	summary, err := s.pipeline.Summarize(c.Context(), req.Scope)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(SummarizeResponse{Summary: summary})
}

// handleCompare contrasts the named documents.
func (s *Server) handleCompare(c *fiber.Ctx) error {
	var req CompareRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	comparison, err := s.pipeline.Compare(c.Context(), req.IDs)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(CompareResponse{Comparison: comparison})
}

// handleListDocuments returns the registered documents keyed by id.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	docs := s.registry.List()
	return c.JSON(fiber.Map{
		"count":     len(docs),
		"documents": docs,
	})
}

// handleSimilarity returns the pairwise cosine similarity matrix of all
// registered documents.
func (s *Server) handleSimilarity(c *fiber.Ctx) error {
	matrix, err := s.registry.PairwiseSimilarity()
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{"similarity": matrix})
}

// fail maps domain errors onto HTTP statuses. Unclassified errors are logged
// in full and reported opaquely.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var status int
	message := err.Error()

	switch {
	case errors.Is(err, pipeline.ErrValidation),
		errors.Is(err, chunker.ErrNoChunks),
		errors.Is(err, registry.ErrInsufficientData):
		status = fiber.StatusBadRequest
	case errors.Is(err, chunker.ErrFileNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, registry.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, generation.ErrTimeout):
		status = fiber.StatusGatewayTimeout
	case errors.Is(err, generation.ErrResourceExhausted):
		status = fiber.StatusServiceUnavailable
	default:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		status = fiber.StatusInternalServerError
		message = "internal error"
	}

	return c.Status(status).JSON(ErrorResponse{Error: message})
}
