package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

func TestParseInterpretation(t *testing.T) {
	interp, err := parseInterpretation(`{"topic": "Software", "subtopic": "correo", "route": "search", "confidence": "high", "tags": ["smtp"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Software", interp.Topic)
	assert.Equal(t, "correo", interp.Subtopic)
	assert.Equal(t, model.RouteSearch, interp.Route)
	assert.Equal(t, model.ConfidenceHigh, interp.Confidence)
	assert.Equal(t, []string{"smtp"}, interp.Tags)
}

func TestParseInterpretationStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"topic\": \"Hardware\", \"subtopic\": \"impresora\", \"route\": \"escalate-human\", \"confidence\": \"medium\"}\n```"
	interp, err := parseInterpretation(raw)
	require.NoError(t, err)
	assert.Equal(t, "Hardware", interp.Topic)
	assert.Equal(t, model.RouteEscalateHuman, interp.Route)
	assert.Equal(t, model.ConfidenceMedium, interp.Confidence)
}

func TestParseInterpretationNormalizesGeneralSubtopic(t *testing.T) {
	for _, sub := range []string{"", "general", "General", "GENERAL"} {
		interp, err := parseInterpretation(`{"topic": "Software", "subtopic": "` + sub + `", "route": "clarify", "confidence": "low"}`)
		require.NoError(t, err)
		assert.Equal(t, model.SubtopicGeneral, interp.Subtopic)
	}
}

func TestParseInterpretationRejectsMalformed(t *testing.T) {
	_, err := parseInterpretation("I think this is about email configuration.")
	assert.Error(t, err)
}

func TestParseInterpretationRejectsMissingTopic(t *testing.T) {
	_, err := parseInterpretation(`{"subtopic": "correo", "route": "search", "confidence": "high"}`)
	assert.Error(t, err)
}

func TestParseInterpretationRejectsUnknownRoute(t *testing.T) {
	_, err := parseInterpretation(`{"topic": "Software", "route": "retry", "confidence": "high"}`)
	assert.Error(t, err)
}

func TestParseInterpretationDefaultsUnknownConfidenceLow(t *testing.T) {
	interp, err := parseInterpretation(`{"topic": "Software", "subtopic": "correo", "route": "search", "confidence": "certain"}`)
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceLow, interp.Confidence)

	interp, err = parseInterpretation(`{"topic": "Software", "subtopic": "correo", "route": "search"}`)
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceLow, interp.Confidence)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

func TestFormatHistoryTruncatesToLastN(t *testing.T) {
	var turns []model.Turn
	for i := 0; i < 15; i++ {
		turns = append(turns, model.Turn{Speaker: model.SpeakerUser, Text: "m"})
	}
	out := formatHistory(turns, 10)
	assert.Equal(t, 10, countLines(out))
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
