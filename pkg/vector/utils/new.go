package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/vector"
	"github.com/helixbyte/ragserve/pkg/vector/memory"
	"github.com/helixbyte/ragserve/pkg/vector/qdrant"
	"github.com/helixbyte/ragserve/pkg/vector/sqlitevec"
)

type NewIndexOpts struct {
	Provider   string
	Target     string
	Collection string
	Dimensions int
	Logger     *zap.Logger
}

// NewIndex constructs the configured vector index implementation.
func NewIndex(ctx context.Context, o *NewIndexOpts) (vector.Index, error) {
	switch o.Provider {
	case "memory":
		return memory.NewIndex(o.Dimensions, o.Logger)
	case "sqlitevec":
		return sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewIndex(ctx, qdrant.Config{
			Target:     o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.Provider)
	}
}

// NewIndexFactory returns a factory producing one exclusive index per name.
// Used by the isolated corpus mode, where every document gets its own index.
// Remote providers scope the name into the collection so tenants never share
// a search space.
func NewIndexFactory(o *NewIndexOpts) func(ctx context.Context, name string) (vector.Index, error) {
	return func(ctx context.Context, name string) (vector.Index, error) {
		scoped := *o
		if o.Provider == "qdrant" {
			scoped.Collection = fmt.Sprintf("%s_%s", o.Collection, name)
		}
		return NewIndex(ctx, &scoped)
	}
}
