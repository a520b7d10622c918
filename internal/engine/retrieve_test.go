package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

func TestBuildTiersFullCascade(t *testing.T) {
	tiers := buildTiers("Software", "correo", []string{"smtp", "imap"})
	require.Len(t, tiers, 3)

	// Tier 1 matches only the exact topic and subtopic.
	meta := model.PassageMetadata{Topic: "Software", Subtopic: "correo"}
	assert.True(t, tiers[0].filter.Match(meta))
	assert.False(t, tiers[0].filter.Match(model.PassageMetadata{Topic: "Software", Subtopic: "vpn"}))

	// Tier 2 relaxes the subtopic but requires a tag overlap.
	tagged := model.PassageMetadata{Topic: "Software", Subtopic: "vpn", Tags: []string{"imap"}}
	assert.True(t, tiers[1].filter.Match(tagged))
	assert.False(t, tiers[1].filter.Match(model.PassageMetadata{Topic: "Software", Subtopic: "vpn"}))

	// Tier 3 keeps only the topic constraint.
	assert.True(t, tiers[2].filter.Match(model.PassageMetadata{Topic: "Software"}))
	assert.False(t, tiers[2].filter.Match(model.PassageMetadata{Topic: "Hardware"}))
}

func TestBuildTiersWithoutTags(t *testing.T) {
	tiers := buildTiers("Software", "correo", nil)
	require.Len(t, tiers, 2)
	assert.Equal(t, "1", tiers[0].name)
	assert.Equal(t, "3", tiers[1].name)
}

func TestBuildTiersGeneralSubtopicFoldsToTopicOnly(t *testing.T) {
	// With no entity the subtopic tier and the topic-only tier coincide;
	// only one topic-level attempt remains.
	tiers := buildTiers("Software", "general", nil)
	require.Len(t, tiers, 1)
	assert.True(t, tiers[0].filter.Match(model.PassageMetadata{Topic: "Software", Subtopic: "anything"}))

	tiers = buildTiers("Software", "", []string{"red"})
	require.Len(t, tiers, 2)
}

func TestThresholdFilter(t *testing.T) {
	candidates := []model.Passage{
		{Text: "a", Score: 0.20},
		{Text: "b", Score: 0.449},
		{Text: "c", Score: 0.45},
		{Text: "d", Score: 0.80},
	}

	kept := thresholdFilter(candidates, 0.45)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].Text)
	assert.Equal(t, "b", kept[1].Text)
}

func TestThresholdFilterBoundaryIsExclusive(t *testing.T) {
	kept := thresholdFilter([]model.Passage{{Score: 0.45}}, 0.45)
	assert.Empty(t, kept)
}

func TestThresholdFilterPreservesOrdering(t *testing.T) {
	candidates := []model.Passage{
		{Text: "first", Score: 0.10},
		{Text: "second", Score: 0.30},
		{Text: "third", Score: 0.40},
	}
	kept := thresholdFilter(candidates, 0.45)
	require.Len(t, kept, 3)
	assert.Equal(t, "first", kept[0].Text)
	assert.Equal(t, "third", kept[2].Text)
}
