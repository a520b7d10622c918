package model

import (
	"strings"
)

// Confidence is the interpreter's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Route is the interpreter's recommended next action, before the routing
// policy gets to override it.
type Route string

const (
	RouteSearch              Route = "search"
	RouteClarify             Route = "clarify"
	RouteEscalateHuman       Route = "escalate-human"
	RouteEscalateOutOfDomain Route = "escalate-out-of-domain"
)

// RoutingDecision is the policy's verdict for the current turn.
type RoutingDecision string

const (
	DecisionSearch   RoutingDecision = "search"
	DecisionClarify  RoutingDecision = "clarify"
	DecisionEscalate RoutingDecision = "escalate"
)

// SubtopicGeneral is the placeholder the interpreter emits when the utterance
// names no specific entity. Comparison is case-insensitive.
const SubtopicGeneral = "general"

// TurnState is the per-conversation session state carried across invocations.
// The engine receives it as an immutable snapshot and returns a new value; the
// caller owns persistence and per-conversation serialization.
type TurnState struct {
	Version               int        `json:"version"`
	CurrentTopic          string     `json:"current_topic,omitempty"`
	CurrentSubtopic       string     `json:"current_subtopic,omitempty"`
	Route                 Route      `json:"route,omitempty"`
	Confidence            Confidence `json:"confidence,omitempty"`
	TopicLocked           bool       `json:"topic_locked"`
	ClarificationAttempts int        `json:"clarification_attempts"`
}

// IsGeneralSubtopic reports whether the resolved subtopic names no entity.
func IsGeneralSubtopic(subtopic string) bool {
	return subtopic == "" || strings.EqualFold(subtopic, SubtopicGeneral)
}
