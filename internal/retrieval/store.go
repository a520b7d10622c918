// Package retrieval implements the vector retrieval backend over SQLite with
// the sqlite-vec extension, plus the query embedder it depends on.
package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	vec.Auto()
}

const schema = `
CREATE TABLE IF NOT EXISTS passages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	text      TEXT NOT NULL,
	topic     TEXT NOT NULL,
	subtopic  TEXT NOT NULL DEFAULT '',
	tags      TEXT NOT NULL DEFAULT '',
	source    TEXT NOT NULL DEFAULT '',
	embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_topic ON passages(topic);
`

// Embedder turns text into an embedding vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is a passage store backed by SQLite + sqlite-vec. Chunk ingestion is
// owned by the document pipeline; the store only needs the table to exist and
// provides an insert helper for seeding and tests.
type Store struct {
	db       *sql.DB
	embedder Embedder
}

// Open opens (and if needed initializes) the passage database.
func Open(path string, embedder Embedder) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open passage database: %w", err)
	}
	// SQLite is single-writer; one pooled connection also keeps an
	// in-memory database coherent across queries.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize passage schema: %w", err)
	}
	return &Store{db: db, embedder: embedder}, nil
}

// DB exposes the underlying database for collaborators that derive data from
// the same corpus, such as the taxonomy provider.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports backend liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert adds one passage with a pre-computed embedding.
func (s *Store) Insert(ctx context.Context, text string, meta model.PassageMetadata, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (text, topic, subtopic, tags, source, embedding) VALUES (?, ?, ?, ?, ?, ?)`,
		text, meta.Topic, meta.Subtopic, strings.Join(meta.Tags, ","), meta.Source, encodeFloat32(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert passage: %w", err)
	}
	return nil
}

// Search embeds the query and returns the k nearest passages satisfying the
// filter, ordered by cosine distance ascending. Scores are raw distances;
// relevance thresholding is the caller's concern.
func (s *Store) Search(ctx context.Context, query string, filter model.FilterExpr, k int) ([]model.Passage, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	where, args := compileFilter(filter)
	sqlQuery := fmt.Sprintf(`
		SELECT text, topic, subtopic, tags, source,
		       vec_distance_cosine(embedding, ?) AS distance
		FROM passages
		%s
		ORDER BY distance ASC
		LIMIT ?`, where)

	queryArgs := append([]any{encodeFloat32(embedding)}, args...)
	queryArgs = append(queryArgs, k)

	rows, err := s.db.QueryContext(ctx, sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("passage search failed: %w", err)
	}
	defer rows.Close()

	var passages []model.Passage
	for rows.Next() {
		var p model.Passage
		var tags string
		var distance sql.NullFloat64
		if err := rows.Scan(&p.Text, &p.Metadata.Topic, &p.Metadata.Subtopic, &tags, &p.Metadata.Source, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		if tags != "" {
			p.Metadata.Tags = strings.Split(tags, ",")
		}
		if distance.Valid {
			p.Score = distance.Float64
		} else {
			p.Score = math.MaxFloat64
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("passage search failed: %w", err)
	}

	return passages, nil
}

// encodeFloat32 serializes an embedding as the little-endian BLOB format
// sqlite-vec expects.
func encodeFloat32(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
