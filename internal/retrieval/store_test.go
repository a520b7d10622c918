package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

// fixedEmbedder maps known texts to fixed vectors.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 0}, nil
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"correo":    {1, 0, 0, 0},
		"smtp":      {0.9, 0.1, 0, 0},
		"impresora": {0, 0, 1, 0},
	}}
	store, err := Open(":memory:", embedder)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSearchOrdersByDistance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "smtp",
		model.PassageMetadata{Topic: "Software", Subtopic: "correo", Tags: []string{"smtp"}},
		[]float32{0.9, 0.1, 0, 0}))
	require.NoError(t, store.Insert(ctx, "impresora",
		model.PassageMetadata{Topic: "Hardware", Subtopic: "impresora"},
		[]float32{0, 0, 1, 0}))

	passages, err := store.Search(ctx, "correo", nil, 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "smtp", passages[0].Text)
	assert.Less(t, passages[0].Score, passages[1].Score)
	assert.Equal(t, []string{"smtp"}, passages[0].Metadata.Tags)
}

func TestStoreSearchAppliesFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "smtp",
		model.PassageMetadata{Topic: "Software", Subtopic: "correo"},
		[]float32{0.9, 0.1, 0, 0}))
	require.NoError(t, store.Insert(ctx, "impresora",
		model.PassageMetadata{Topic: "Hardware", Subtopic: "impresora"},
		[]float32{0, 0, 1, 0}))

	passages, err := store.Search(ctx, "correo", model.TopicIs("Hardware"), 10)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "impresora", passages[0].Text)

	passages, err = store.Search(ctx, "correo",
		model.And{model.TopicIs("Software"), model.SubtopicIs("vpn")}, 10)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestStoreSearchTagFilterMatchesToken(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "smtp",
		model.PassageMetadata{Topic: "Software", Subtopic: "correo", Tags: []string{"smtp", "imap"}},
		[]float32{0.9, 0.1, 0, 0}))

	passages, err := store.Search(ctx, "correo", model.TagAny{"imap"}, 10)
	require.NoError(t, err)
	assert.Len(t, passages, 1)

	// "map" is a substring of "imap" but not a stored tag.
	passages, err = store.Search(ctx, "correo", model.TagAny{"map"}, 10)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestStorePing(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
