// Package sqlitevec provides a SQLite-backed vector index using sqlite-vec.
// With the default ":memory:" path it keeps the no-persistence contract while
// still delegating KNN search to the extension.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/helixbyte/ragserve/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec.
type Index struct {
	db         *sql.DB
	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Defaults to ":memory:".
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions int
}

// NewIndex creates a new SQLite vector index backed by sqlite-vec.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	dbPath := c.DBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}

	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions must be positive, got %d", c.Dimensions)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database must stay on one connection or every new
	// connection sees a fresh empty database.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so chunk text and metadata
	// live in a companion table joined by rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			text TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", dbPath),
		zap.Int("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Add appends chunks with their embeddings to the index.
func (ix *Index) Add(ctx context.Context, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, ch := range chunks {
		if len(ch.Embedding) != ix.dimensions {
			return fmt.Errorf("%w: chunk %s/%d has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, ch.DocumentID, ch.Sequence, len(ch.Embedding), ix.dimensions)
		}
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ch := range chunks {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO vec_chunks(document_id, sequence, text) VALUES (?, ?, ?)`,
			ch.DocumentID, ch.Sequence, ch.Text,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s/%d: %w", ch.DocumentID, ch.Sequence, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for chunk %s/%d: %w", ch.DocumentID, ch.Sequence, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(ch.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for chunk %s/%d: %w", ch.DocumentID, ch.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	ix.logger.Debug("added chunks to sqlite-vec",
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Search finds the topK most similar chunks, optionally restricted to a set
// of document ids via a rowid pre-filter on the KNN query.
func (ix *Index) Search(ctx context.Context, embedding []float32, topK int, filter *vector.Filter) ([]vector.Match, error) {
	if len(embedding) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), ix.dimensions)
	}
	if topK <= 0 {
		topK = 10
	}

	args := []any{serializeFloat32(embedding), topK}
	scopeClause := ""
	if filter != nil && len(filter.DocumentIDs) > 0 {
		placeholders := make([]string, len(filter.DocumentIDs))
		for i, id := range filter.DocumentIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		scopeClause = fmt.Sprintf(
			`AND ve.rowid IN (SELECT rowid FROM vec_chunks WHERE document_id IN (%s))`,
			strings.Join(placeholders, ","),
		)
	}

	query := fmt.Sprintf(`
		SELECT
			c.document_id,
			c.sequence,
			c.text,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_chunks c ON c.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			%s
		ORDER BY ve.distance
	`, scopeClause)

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var m vector.Match
		var distance float64
		if err := rows.Scan(&m.DocumentID, &m.Sequence, &m.Text, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		// Cosine distance to similarity.
		m.Score = float32(1.0 - distance)
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	ix.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// Count reports the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Close releases resources held by the index.
func (ix *Index) Close() error {
	return ix.db.Close()
}

var _ vector.Index = (*Index)(nil)
