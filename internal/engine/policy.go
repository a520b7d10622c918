package engine

import (
	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// Routing policy rule labels, in evaluation order.
const (
	ruleAttemptCeiling     = "attempt-ceiling"
	ruleInterpreterClarify = "interpreter-clarify"
	ruleNoEntity           = "no-entity"
	ruleLowConfidence      = "low-confidence"
	ruleSearch             = "search"
	ruleEscalateRoute      = "escalate-route"
)

// Decide is the routing policy: a pure function of the interpreter output and
// the session counters. Rules are evaluated in strict priority order; the
// first match wins. The attempt-ceiling and confidence checks deliberately
// dominate the interpreter's recommendation, because the interpreter can be
// wrong or can loop if obeyed blindly.
func Decide(route model.Route, confidence model.Confidence, subtopic string, attempts, limit int) (model.RoutingDecision, string) {
	switch {
	case attempts >= limit:
		return model.DecisionEscalate, ruleAttemptCeiling
	case route == model.RouteClarify:
		return model.DecisionClarify, ruleInterpreterClarify
	case model.IsGeneralSubtopic(subtopic):
		return model.DecisionClarify, ruleNoEntity
	case confidence == model.ConfidenceLow:
		return model.DecisionEscalate, ruleLowConfidence
	case route == model.RouteSearch:
		return model.DecisionSearch, ruleSearch
	default:
		return model.DecisionEscalate, ruleEscalateRoute
	}
}

// runRoute applies the routing policy and transitions to the matching
// terminal branch or the search path.
func (e *Engine) runRoute(p *pass) (node, error) {
	decision, rule := Decide(
		p.interp.Route,
		p.interp.Confidence,
		p.interp.Subtopic,
		p.prior.ClarificationAttempts,
		e.opts.ClarificationLimit,
	)
	metrics.RoutingRuleHits.WithLabelValues(rule).Inc()
	e.logger.Debug("routing decision",
		zap.String("conversation_id", p.conversationID),
		zap.String("decision", string(decision)),
		zap.String("rule", rule),
	)

	switch decision {
	case model.DecisionClarify:
		return nodeClarify, nil
	case model.DecisionSearch:
		return nodeRewrite, nil
	default:
		return nodeEscalate, nil
	}
}
