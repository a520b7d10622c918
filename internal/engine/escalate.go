package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// TargetForTopic maps a topic to the human queue that owns it and the ticket
// state that queue implies. Anything outside the known topics lands in the
// generic support queue.
func TargetForTopic(topic string) model.EscalationTarget {
	switch {
	case strings.EqualFold(topic, "Software"):
		return model.EscalationTarget{Team: model.TeamAdminIntake, TicketState: model.TicketEscalatedAdmin}
	case strings.EqualFold(topic, "Hardware"):
		return model.EscalationTarget{Team: model.TeamTechnician, TicketState: model.TicketEscalated}
	case strings.EqualFold(topic, "Abuso del sistema"), strings.EqualFold(topic, "Abuso"):
		return model.EscalationTarget{Team: model.TeamControl, TicketState: model.TicketEscalated}
	default:
		return model.EscalationTarget{Team: model.TeamGeneralSupport, TicketState: model.TicketEscalated}
	}
}

// teamLabel is the user-facing name of a queue.
func teamLabel(team model.Team) string {
	switch team {
	case model.TeamTechnician:
		return "el equipo técnico"
	case model.TeamAdminIntake:
		return "la mesa de entrada"
	case model.TeamControl:
		return "el equipo de control"
	default:
		return "el equipo de soporte"
	}
}

const maxSummaryLen = 200

// runEscalate selects the escalation target by topic, emits one notification
// request and composes the user-facing handoff message. The composer itself
// is stateless; deduplication for already-escalated tickets is the caller's
// job, via the dispatcher it injects.
func (e *Engine) runEscalate(ctx context.Context, p *pass) (node, error) {
	topic := p.interp.Topic
	if topic == "" {
		topic = p.prior.CurrentTopic
	}
	target := TargetForTopic(topic)

	summary := p.userText
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}

	if err := e.dispatcher.Notify(ctx, target, p.conversationID, summary); err != nil {
		metrics.NotificationFailures.Inc()
		e.logger.Warn("escalation notification failed",
			zap.String("conversation_id", p.conversationID),
			zap.String("team", string(target.Team)),
			zap.Error(err),
		)
	}
	metrics.EscalationsTotal.WithLabelValues(string(target.Team)).Inc()

	reply := fmt.Sprintf(
		"No he podido resolver tu consulta. He escalado el ticket %s a %s; un agente la revisará a la brevedad.",
		p.conversationID, teamLabel(target.Team),
	)

	p.result = &Result{
		Reply:      reply,
		Decision:   model.DecisionEscalate,
		State:      p.nextState(p.prior.TopicLocked),
		Escalation: &target,
	}
	return nodeDone, nil
}
