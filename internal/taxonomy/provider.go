// Package taxonomy provides the topic/subtopic/tag vocabulary derived from
// the knowledge corpus.
package taxonomy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

// Provider exposes the current taxonomy snapshot.
type Provider interface {
	Snapshot(ctx context.Context) (model.TaxonomySnapshot, error)
}

// Static is a fixed-snapshot provider, used as fallback and in tests.
type Static struct {
	Taxonomy model.TaxonomySnapshot
}

// Snapshot returns the fixed taxonomy.
func (s Static) Snapshot(ctx context.Context) (model.TaxonomySnapshot, error) {
	return s.Taxonomy, nil
}

// SQLProvider derives the vocabulary from the passage store's metadata
// columns: distinct topics, subtopics and the union of tag sets.
type SQLProvider struct {
	db *sql.DB
}

// NewSQLProvider creates a provider reading from the passage database.
func NewSQLProvider(db *sql.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

// Snapshot scans the corpus metadata. An empty corpus yields an empty
// snapshot; substituting the default topic set is the assembler's job.
func (p *SQLProvider) Snapshot(ctx context.Context) (model.TaxonomySnapshot, error) {
	var snapshot model.TaxonomySnapshot

	topics, err := p.distinct(ctx, "topic")
	if err != nil {
		return snapshot, fmt.Errorf("failed to read topics: %w", err)
	}
	snapshot.Topics = topics

	subtopics, err := p.distinct(ctx, "subtopic")
	if err != nil {
		return snapshot, fmt.Errorf("failed to read subtopics: %w", err)
	}
	snapshot.Subtopics = subtopics

	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT tags FROM passages WHERE tags != ''`)
	if err != nil {
		return snapshot, fmt.Errorf("failed to read tags: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return snapshot, fmt.Errorf("failed to scan tags: %w", err)
		}
		for _, tag := range strings.Split(joined, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			snapshot.Tags = append(snapshot.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return snapshot, fmt.Errorf("failed to read tags: %w", err)
	}

	return snapshot, nil
}

func (p *SQLProvider) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT %s FROM passages WHERE %s != '' ORDER BY %s`, column, column, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
