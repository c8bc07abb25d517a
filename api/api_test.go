package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/helixbyte/ragserve/pkg/chunker"
	"github.com/helixbyte/ragserve/pkg/corpus"
	"github.com/helixbyte/ragserve/pkg/generation"
	"github.com/helixbyte/ragserve/pkg/logger"
	"github.com/helixbyte/ragserve/pkg/pipeline"
	"github.com/helixbyte/ragserve/pkg/registry"
	testutils "github.com/helixbyte/ragserve/pkg/utils/test"
	"github.com/helixbyte/ragserve/pkg/vector/memory"
)

var _ = Describe("Server", func() {
	var (
		server  *Server
		backend *testutils.MockBackend
		reg     *registry.Registry
		tmpDir  string
	)

	newServer := func(engineCfg generation.Config) *Server {
		ix, err := memory.NewIndex(testutils.MockEmbedderDimensions, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		reg = registry.New()
		c := corpus.NewPooled(testutils.NewMockEmbedder(), ix, reg, logger.Nop())
		engine := generation.NewEngine(backend, engineCfg, logger.Nop())
		pl := pipeline.New(c, reg, engine, logger.Nop())
		ck := chunker.NewTextChunker(chunker.Config{Size: 50, Overlap: 10})

		return NewServer(Config{ListenAddr: ":0"}, ck, c, reg, pl, engineCfg.Registerer.(prometheus.Gatherer), logger.Nop())
	}

	do := func(method, path string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}

	writeDoc := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	ingest := func(path string) string {
		resp := do(http.MethodPost, "/ingest", IngestRequest{FilePath: path})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var out IngestResponse
		decode(resp, &out)
		Expect(out.DocumentID).NotTo(BeEmpty())
		return out.DocumentID
	}

	BeforeEach(func() {
		backend = testutils.NewMockBackend()
		tmpDir = GinkgoT().TempDir()
		server = newServer(generation.Config{
			Timeout:    time.Second,
			Registerer: prometheus.NewRegistry(),
		})
	})

	Describe("GET /ping", func() {
		It("responds pong", func() {
			resp := do(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /ingest", func() {
		It("ingests a document and registers it", func() {
			ingest(writeDoc("doc.txt", "solar power is the conversion of sunlight into electricity"))

			var listing struct {
				Count int `json:"count"`
			}
			resp := do(http.MethodGet, "/documents", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &listing)
			Expect(listing.Count).To(Equal(1))
		})

		It("rejects a missing file_path", func() {
			resp := do(http.MethodPost, "/ingest", IngestRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for a nonexistent file", func() {
			resp := do(http.MethodPost, "/ingest", IngestRequest{FilePath: filepath.Join(tmpDir, "ghost.txt")})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("rejects a file with no extractable text", func() {
			resp := do(http.MethodPost, "/ingest", IngestRequest{FilePath: writeDoc("empty.txt", "   ")})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /ask", func() {
		It("rejects blank questions", func() {
			resp := do(http.MethodPost, "/ask", AskRequest{Question: "   "})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("prompts for an upload when nothing is ingested", func() {
			resp := do(http.MethodPost, "/ask", AskRequest{Question: "what is this?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out AskResponse
			decode(resp, &out)
			Expect(out.Answer).To(Equal("Please upload a PDF first!"))
		})

		It("answers from ingested content", func() {
			ingest(writeDoc("doc.txt", "the mitochondria is the powerhouse of the cell"))

			resp := do(http.MethodPost, "/ask", AskRequest{Question: "what is the mitochondria?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out AskResponse
			decode(resp, &out)
			Expect(out.Answer).To(Equal("mock output"))
		})

		It("maps generation timeouts to 504", func() {
			backend.Set(func(b *testutils.MockBackend) { b.InferDelay = 500 * time.Millisecond })
			server = newServer(generation.Config{
				Timeout:    50 * time.Millisecond,
				Registerer: prometheus.NewRegistry(),
			})
			ingest(writeDoc("doc.txt", "some content to retrieve"))

			resp := do(http.MethodPost, "/ask", AskRequest{Question: "some content to retrieve"})
			Expect(resp.StatusCode).To(Equal(http.StatusGatewayTimeout))
		})

		It("maps resource exhaustion to 503", func() {
			backend.Set(func(b *testutils.MockBackend) { b.InferErr = generation.ErrResourceExhausted })
			ingest(writeDoc("doc.txt", "some content to retrieve"))

			resp := do(http.MethodPost, "/ask", AskRequest{Question: "some content to retrieve"})
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("POST /summarize", func() {
		It("summarizes ingested content", func() {
			ingest(writeDoc("doc.txt", "chapter one covers the basics of thermodynamics"))

			resp := do(http.MethodPost, "/summarize", SummarizeRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out SummarizeResponse
			decode(resp, &out)
			Expect(out.Summary).To(Equal("mock output"))
		})
	})

	Describe("POST /compare", func() {
		It("guides the caller when fewer than two ids are given", func() {
			ingest(writeDoc("doc.txt", "lone document content"))

			resp := do(http.MethodPost, "/compare", CompareRequest{IDs: []string{"one"}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out CompareResponse
			decode(resp, &out)
			Expect(out.Comparison).To(Equal("Provide at least two document ids to compare."))
		})

		It("compares two ingested documents", func() {
			id1 := ingest(writeDoc("a.txt", "alpha document findings"))
			id2 := ingest(writeDoc("b.txt", "beta document findings"))

			resp := do(http.MethodPost, "/compare", CompareRequest{IDs: []string{id1, id2}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out CompareResponse
			decode(resp, &out)
			Expect(out.Comparison).To(Equal("mock output"))
		})
	})

	Describe("GET /similarity", func() {
		It("requires at least two documents", func() {
			ingest(writeDoc("doc.txt", "lone document content"))

			resp := do(http.MethodGet, "/similarity", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns a symmetric matrix with a unit diagonal", func() {
			id1 := ingest(writeDoc("a.txt", "alpha document findings"))
			id2 := ingest(writeDoc("b.txt", "beta document findings"))

			resp := do(http.MethodGet, "/similarity", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out struct {
				Similarity map[string]map[string]float64 `json:"similarity"`
			}
			decode(resp, &out)
			Expect(out.Similarity[id1][id1]).To(BeNumerically("~", 1.0, 1e-9))
			Expect(out.Similarity[id1][id2]).To(Equal(out.Similarity[id2][id1]))
		})
	})

	Describe("GET /metrics", func() {
		It("exposes prometheus metrics", func() {
			resp := do(http.MethodGet, "/metrics", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
