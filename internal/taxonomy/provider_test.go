package taxonomy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/internal/retrieval"
)

type nopEmbedder struct{}

func (nopEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0, 0, 0, 0}, nil
}

func TestSQLProviderSnapshot(t *testing.T) {
	store, err := retrieval.Open(":memory:", nopEmbedder{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	vec := []float32{1, 0, 0, 0}

	require.NoError(t, store.Insert(ctx, "a",
		model.PassageMetadata{Topic: "Software", Subtopic: "correo", Tags: []string{"smtp", "IMAP"}}, vec))
	require.NoError(t, store.Insert(ctx, "b",
		model.PassageMetadata{Topic: "Software", Subtopic: "vpn", Tags: []string{"imap", "red"}}, vec))
	require.NoError(t, store.Insert(ctx, "c",
		model.PassageMetadata{Topic: "Hardware", Subtopic: "impresora"}, vec))

	provider := NewSQLProvider(store.DB())
	snapshot, err := provider.Snapshot(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Software", "Hardware"}, snapshot.Topics)
	assert.ElementsMatch(t, []string{"correo", "vpn", "impresora"}, snapshot.Subtopics)
	// Tag union deduplicates case-insensitively.
	assert.Len(t, snapshot.Tags, 3)
	assert.Contains(t, snapshot.Tags, "smtp")
	assert.Contains(t, snapshot.Tags, "red")
}

func TestSQLProviderEmptyCorpus(t *testing.T) {
	store, err := retrieval.Open(":memory:", nopEmbedder{})
	require.NoError(t, err)
	defer store.Close()

	provider := NewSQLProvider(store.DB())
	snapshot, err := provider.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty())
}

func TestStaticProvider(t *testing.T) {
	p := Static{Taxonomy: model.DefaultTaxonomy()}
	snapshot, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snapshot.Topics, "Abuso del sistema")
}
