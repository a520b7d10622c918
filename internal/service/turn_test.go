package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ai/support-engine/internal/engine"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
)

// memoryLog is an in-memory ConversationLog.
type memoryLog struct {
	turns     map[string][]model.Turn
	appendErr error
}

func newMemoryLog() *memoryLog {
	return &memoryLog{turns: make(map[string][]model.Turn)}
}

func (m *memoryLog) Append(_ context.Context, turn *model.Turn) (uint64, error) {
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	seq := uint64(len(m.turns[turn.ConversationID]) + 1)
	turn.Sequence = seq
	m.turns[turn.ConversationID] = append(m.turns[turn.ConversationID], *turn)
	return seq, nil
}

func (m *memoryLog) Page(_ context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Turn, uint64, bool, error) {
	all := m.turns[conversationID]
	var page []model.Turn
	var last uint64
	for _, t := range all {
		if t.Sequence <= afterSequence {
			continue
		}
		if len(page) == limit {
			return page, last, true, nil
		}
		page = append(page, t)
		last = t.Sequence
	}
	return page, last, false, nil
}

// scriptedEngine returns canned results, recording the prior state it saw.
type scriptedEngine struct {
	result *engine.Result
	err    error
	priors []model.TurnState
}

func (s *scriptedEngine) ProcessTurn(_ context.Context, _, _ string, prior model.TurnState) (*engine.Result, error) {
	s.priors = append(s.priors, prior)
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	res.State.Version = prior.Version + 1
	return &res, nil
}

type recordingDispatcher struct {
	count int
}

func (r *recordingDispatcher) Notify(_ context.Context, _ model.EscalationTarget, _, _ string) error {
	r.count++
	return nil
}

func TestProcessOpensTicketAndAppendsTurns(t *testing.T) {
	tickets := newTicketService()
	log := newMemoryLog()
	eng := &scriptedEngine{result: &engine.Result{
		Reply:    "respuesta",
		Decision: model.DecisionSearch,
		State:    model.TurnState{CurrentTopic: "Software", TopicLocked: true},
	}}
	svc := NewTurnService(log, tickets, eng, logger.NewNop())

	ticket, resp, err := svc.Process(context.Background(), "user-1", "¿cómo configuro el correo?")
	require.NoError(t, err)
	assert.Equal(t, "respuesta", resp.Reply)

	// User turn then system turn, on the ticket's conversation.
	turns := log.turns[ticket.ID]
	require.Len(t, turns, 2)
	assert.Equal(t, model.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, model.SpeakerSystem, turns[1].Speaker)

	// The state delta was applied.
	got, err := tickets.Get(context.Background(), "user-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Software", got.TurnState.CurrentTopic)
	assert.Equal(t, model.TicketInProgress, got.State)
}

func TestProcessContinuesActiveTicket(t *testing.T) {
	tickets := newTicketService()
	log := newMemoryLog()
	eng := &scriptedEngine{result: &engine.Result{
		Reply:    "ok",
		Decision: model.DecisionClarify,
		State:    model.TurnState{ClarificationAttempts: 1},
	}}
	svc := NewTurnService(log, tickets, eng, logger.NewNop())

	first, _, err := svc.Process(context.Background(), "user-1", "no anda")
	require.NoError(t, err)
	second, _, err := svc.Process(context.Background(), "user-1", "sigue sin andar")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	// The second invocation received the state persisted by the first.
	require.Len(t, eng.priors, 2)
	assert.Equal(t, 0, eng.priors[0].Version)
	assert.Equal(t, 1, eng.priors[1].Version)
}

func TestProcessEngineFailureLeavesStateUntouched(t *testing.T) {
	tickets := newTicketService()
	log := newMemoryLog()
	eng := &scriptedEngine{err: errors.New("backends down")}
	svc := NewTurnService(log, tickets, eng, logger.NewNop())

	ticket, resp, err := svc.Process(context.Background(), "user-1", "hola")
	require.Error(t, err)
	assert.Nil(t, resp)

	// No state delta, no system reply in the log.
	got, gerr := tickets.Get(context.Background(), "user-1", ticket.ID)
	require.NoError(t, gerr)
	assert.Equal(t, model.TurnState{}, got.TurnState)
	for _, turn := range log.turns[ticket.ID] {
		assert.Equal(t, model.SpeakerUser, turn.Speaker)
	}
}

func TestProcessSurvivesLogAppendFailure(t *testing.T) {
	tickets := newTicketService()
	log := newMemoryLog()
	log.appendErr = errors.New("stream unavailable")
	eng := &scriptedEngine{result: &engine.Result{
		Reply:    "respuesta",
		Decision: model.DecisionSearch,
		State:    model.TurnState{},
	}}
	svc := NewTurnService(log, tickets, eng, logger.NewNop())

	_, resp, err := svc.Process(context.Background(), "user-1", "hola")
	require.NoError(t, err)
	assert.Equal(t, "respuesta", resp.Reply)
}

func TestHistoryIsOwnerScoped(t *testing.T) {
	tickets := newTicketService()
	log := newMemoryLog()
	eng := &scriptedEngine{result: &engine.Result{Reply: "ok", Decision: model.DecisionSearch}}
	svc := NewTurnService(log, tickets, eng, logger.NewNop())

	ticket, _, err := svc.Process(context.Background(), "user-1", "hola")
	require.NoError(t, err)

	resp, err := svc.History(context.Background(), "user-1", ticket.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, resp.Turns, 2)

	_, err = svc.History(context.Background(), "user-2", ticket.ID, 0, 10)
	assert.Error(t, err)
}

func TestTechnicianReplyAppendsAndReopens(t *testing.T) {
	tickets := newTicketService()
	log := newMemoryLog()
	svc := NewTurnService(log, tickets, &scriptedEngine{result: &engine.Result{Reply: "ok"}}, logger.NewNop())

	ticket, err := tickets.Create(context.Background(), "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)
	target := model.EscalationTarget{Team: model.TeamTechnician, TicketState: model.TicketEscalated}
	require.NoError(t, tickets.ApplyTurnOutcome(ticket.ID, model.TurnState{Version: 1}, &target))

	got, err := svc.TechnicianReply(context.Background(), ticket.ID, "ya está resuelto")
	require.NoError(t, err)
	assert.Equal(t, model.TicketInProgress, got.State)

	turns := log.turns[ticket.ID]
	require.Len(t, turns, 1)
	assert.Equal(t, model.SpeakerSystem, turns[0].Speaker)
	assert.Equal(t, "ya está resuelto", turns[0].Text)
}

func TestDedupDispatcherSuppressesSecondNotification(t *testing.T) {
	tickets := newTicketService()
	inner := &recordingDispatcher{}
	d := NewDedupDispatcher(tickets, inner)
	ctx := context.Background()

	ticket, err := tickets.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)

	target := model.EscalationTarget{Team: model.TeamTechnician, TicketState: model.TicketEscalated}

	// First escalation goes through.
	require.NoError(t, d.Notify(ctx, target, ticket.ID, "resumen"))
	assert.Equal(t, 1, inner.count)

	require.NoError(t, tickets.ApplyTurnOutcome(ticket.ID, model.TurnState{Version: 1}, &target))

	// The ticket now sits in a human queue; further turns stay silent.
	require.NoError(t, d.Notify(ctx, target, ticket.ID, "resumen"))
	assert.Equal(t, 1, inner.count)

	// Unknown conversations are forwarded, dedup only knows tracked tickets.
	require.NoError(t, d.Notify(ctx, target, "unknown", "resumen"))
	assert.Equal(t, 2, inner.count)
}
