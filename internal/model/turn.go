// Package model defines data structures for the support routing engine.
package model

import (
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// Turn is a single utterance in a conversation. Turns are immutable once
// appended to the conversation log.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Speaker        Speaker   `json:"speaker"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`

	// Sequence is assigned by the conversation log on append.
	Sequence uint64 `json:"sequence,omitempty"`
}

// PostTurnRequest is the request to process a new user turn.
type PostTurnRequest struct {
	Text string `json:"text"`
}

// PostTurnResponse is the reply produced for a turn.
type PostTurnResponse struct {
	Reply      string            `json:"reply"`
	Decision   RoutingDecision   `json:"decision"`
	State      TurnState         `json:"state"`
	Escalation *EscalationTarget `json:"escalation,omitempty"`
}

// ListTurnsResponse is the response for reading conversation history.
type ListTurnsResponse struct {
	Turns        []Turn `json:"turns"`
	HasMore      bool   `json:"has_more"`
	LastSequence uint64 `json:"last_sequence"`
}
