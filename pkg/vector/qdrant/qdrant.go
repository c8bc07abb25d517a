// Package qdrant provides a vector.Index backed by a Qdrant server.
// Scope filtering happens server-side through a payload match condition,
// so filtered searches are filter-before-search.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/vector"
)

const defaultGRPCPort = 6334

// Index implements vector.Index against a Qdrant collection.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant index.
type Config struct {
	// Target is the Qdrant gRPC endpoint as "host:port".
	// The port defaults to 6334 when omitted.
	Target string

	// Collection is the collection name. Created on startup if missing.
	Collection string

	// Dimensions is the vector dimensionality of the collection.
	Dimensions int
}

// NewIndex connects to Qdrant and ensures the collection exists.
func NewIndex(ctx context.Context, c Config, logger *zap.Logger) (*Index, error) {
	if c.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions must be positive, got %d", c.Dimensions)
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant at %s: %v", vector.ErrConnection, c.Target, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %s: %v", vector.ErrConnection, c.Collection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", c.Collection, err)
		}
	}

	logger.Info("qdrant index initialized",
		zap.String("target", c.Target),
		zap.String("collection", c.Collection),
		zap.Int("dimensions", c.Dimensions),
	)

	return &Index{
		client:     client,
		collection: c.Collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

func splitTarget(target string) (string, int, error) {
	if target == "" {
		return "localhost", defaultGRPCPort, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// Bare hostname, no port.
		return target, defaultGRPCPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	return host, port, nil
}

// Add upserts chunks with their embeddings into the collection.
func (ix *Index) Add(ctx context.Context, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != ix.dimensions {
			return fmt.Errorf("%w: chunk %s/%d has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, ch.DocumentID, ch.Sequence, len(ch.Embedding), ix.dimensions)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": ch.DocumentID,
				"sequence":    int64(ch.Sequence),
				"text":        ch.Text,
			}),
		})
	}

	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	ix.logger.Debug("added chunks to qdrant",
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Search finds the topK most similar chunks, filtered server-side when a
// scope is given.
func (ix *Index) Search(ctx context.Context, embedding []float32, topK int, filter *vector.Filter) ([]vector.Match, error) {
	if len(embedding) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), ix.dimensions)
	}
	if topK <= 0 {
		topK = 10
	}

	var qFilter *qdrant.Filter
	if filter != nil && len(filter.DocumentIDs) > 0 {
		qFilter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("document_id", filter.DocumentIDs...),
			},
		}
	}

	points, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         qFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", ix.collection, err)
	}

	matches := make([]vector.Match, 0, len(points))
	for _, p := range points {
		m := vector.Match{Score: p.GetScore()}
		payload := p.GetPayload()
		if v, ok := payload["document_id"]; ok {
			m.DocumentID = v.GetStringValue()
		}
		if v, ok := payload["sequence"]; ok {
			m.Sequence = int(v.GetIntegerValue())
		}
		if v, ok := payload["text"]; ok {
			m.Text = v.GetStringValue()
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// Count reports the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	count, err := ix.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ix.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", ix.collection, err)
	}
	return int(count), nil
}

// Close releases the client connection.
func (ix *Index) Close() error {
	return ix.client.Close()
}

var _ vector.Index = (*Index)(nil)
