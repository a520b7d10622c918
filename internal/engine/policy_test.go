package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		route      model.Route
		confidence model.Confidence
		subtopic   string
		attempts   int
		want       model.RoutingDecision
		wantRule   string
	}{
		{
			name:       "search with entity and confidence",
			route:      model.RouteSearch,
			confidence: model.ConfidenceHigh,
			subtopic:   "correo",
			want:       model.DecisionSearch,
			wantRule:   ruleSearch,
		},
		{
			name:       "attempt ceiling overrides everything",
			route:      model.RouteSearch,
			confidence: model.ConfidenceHigh,
			subtopic:   "correo",
			attempts:   2,
			want:       model.DecisionEscalate,
			wantRule:   ruleAttemptCeiling,
		},
		{
			name:       "interpreter clarify wins over confidence",
			route:      model.RouteClarify,
			confidence: model.ConfidenceLow,
			subtopic:   "correo",
			want:       model.DecisionClarify,
			wantRule:   ruleInterpreterClarify,
		},
		{
			name:       "general subtopic forces clarification",
			route:      model.RouteSearch,
			confidence: model.ConfidenceHigh,
			subtopic:   "general",
			want:       model.DecisionClarify,
			wantRule:   ruleNoEntity,
		},
		{
			name:       "empty subtopic counts as no entity",
			route:      model.RouteSearch,
			confidence: model.ConfidenceHigh,
			subtopic:   "",
			want:       model.DecisionClarify,
			wantRule:   ruleNoEntity,
		},
		{
			name:       "low confidence escalates even on a search route",
			route:      model.RouteSearch,
			confidence: model.ConfidenceLow,
			subtopic:   "correo",
			want:       model.DecisionEscalate,
			wantRule:   ruleLowConfidence,
		},
		{
			name:       "medium confidence still searches",
			route:      model.RouteSearch,
			confidence: model.ConfidenceMedium,
			subtopic:   "correo",
			want:       model.DecisionSearch,
			wantRule:   ruleSearch,
		},
		{
			name:       "escalate-human route",
			route:      model.RouteEscalateHuman,
			confidence: model.ConfidenceHigh,
			subtopic:   "impresora",
			want:       model.DecisionEscalate,
			wantRule:   ruleEscalateRoute,
		},
		{
			name:       "out-of-domain route",
			route:      model.RouteEscalateOutOfDomain,
			confidence: model.ConfidenceHigh,
			subtopic:   "correo",
			want:       model.DecisionEscalate,
			wantRule:   ruleEscalateRoute,
		},
		{
			name:       "attempts above limit also escalate",
			route:      model.RouteClarify,
			confidence: model.ConfidenceHigh,
			subtopic:   "general",
			attempts:   3,
			want:       model.DecisionEscalate,
			wantRule:   ruleAttemptCeiling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := Decide(tt.route, tt.confidence, tt.subtopic, tt.attempts, 2)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestDecideSubtopicCaseInsensitive(t *testing.T) {
	got, rule := Decide(model.RouteSearch, model.ConfidenceHigh, "General", 0, 2)
	assert.Equal(t, model.DecisionClarify, got)
	assert.Equal(t, ruleNoEntity, rule)
}
