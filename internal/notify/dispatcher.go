// Package notify delivers escalation notifications to human queues.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helpdesk-ai/support-engine/internal/model"
	natsclient "github.com/helpdesk-ai/support-engine/internal/nats"
)

// Dispatcher delivers escalation notifications. Fire-and-forget with
// at-least-once delivery assumed by the caller.
type Dispatcher interface {
	Notify(ctx context.Context, target model.EscalationTarget, conversationID, summary string) error
}

// Notification is the payload published for each escalation.
type Notification struct {
	Team        model.Team        `json:"team"`
	TicketID    string            `json:"ticket_id"`
	TicketState model.TicketState `json:"ticket_state"`
	Summary     string            `json:"summary"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NATSDispatcher publishes notifications to per-team NATS subjects, where
// the agent-facing transports (Telegram bridge, dashboard) consume them.
type NATSDispatcher struct {
	client *natsclient.Client
}

// NewNATSDispatcher creates a dispatcher over an established client.
func NewNATSDispatcher(client *natsclient.Client) *NATSDispatcher {
	return &NATSDispatcher{client: client}
}

// Subject returns the notification subject for a team.
func Subject(team model.Team) string {
	return fmt.Sprintf("notify.%s", team)
}

// Notify publishes one escalation notification.
func (d *NATSDispatcher) Notify(ctx context.Context, target model.EscalationTarget, conversationID, summary string) error {
	payload := Notification{
		Team:        target.Team,
		TicketID:    conversationID,
		TicketState: target.TicketState,
		Summary:     summary,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := d.client.Conn().Publish(Subject(target.Team), data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
