package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
)

func newTicketService() *TicketService {
	return NewTicketService(logger.NewNop())
}

func TestTicketLifecycle(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{Description: "no anda el correo"})
	require.NoError(t, err)
	assert.Equal(t, model.TicketNew, ticket.State)

	got, err := svc.Get(ctx, "user-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)

	// Other users cannot see it.
	_, err = svc.Get(ctx, "user-2", ticket.ID)
	assert.Error(t, err)

	// Rating closes the ticket and discards the session state.
	rated, err := svc.Rate(ctx, "user-1", ticket.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, model.TicketClosed, rated.State)
	assert.Equal(t, 4, rated.Rating)
	assert.Equal(t, model.TurnState{}, rated.TurnState)
}

func TestRateRejectsOutOfRange(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)

	_, err = svc.Rate(ctx, "user-1", ticket.ID, 0)
	assert.Error(t, err)
	_, err = svc.Rate(ctx, "user-1", ticket.ID, 6)
	assert.Error(t, err)
}

func TestActivePicksLatestOpenTicket(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	_, ok := svc.Active(ctx, "user-1")
	assert.False(t, ok)

	first, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx, "user-1", first.ID))

	// A closed ticket is not continued; the next turn opens a fresh one.
	_, ok = svc.Active(ctx, "user-1")
	assert.False(t, ok)

	second, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)

	active, ok := svc.Active(ctx, "user-1")
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestEscalatedTicketStaysActive(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)

	target := model.EscalationTarget{Team: model.TeamTechnician, TicketState: model.TicketEscalated}
	require.NoError(t, svc.ApplyTurnOutcome(ticket.ID, model.TurnState{Version: 1}, &target))

	active, ok := svc.Active(ctx, "user-1")
	require.True(t, ok)
	assert.Equal(t, ticket.ID, active.ID)
	assert.Equal(t, model.TicketEscalated, active.State)
}

func TestApplyTurnOutcome(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)

	// A plain turn moves the ticket from new to in-progress.
	state := model.TurnState{Version: 1, CurrentTopic: "Software"}
	require.NoError(t, svc.ApplyTurnOutcome(ticket.ID, state, nil))

	got, err := svc.Get(ctx, "user-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketInProgress, got.State)
	assert.Equal(t, state, got.TurnState)

	// An escalation sets the queue's ticket state.
	target := model.EscalationTarget{Team: model.TeamAdminIntake, TicketState: model.TicketEscalatedAdmin}
	require.NoError(t, svc.ApplyTurnOutcome(ticket.ID, model.TurnState{Version: 2}, &target))

	got, err = svc.Get(ctx, "user-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketEscalatedAdmin, got.State)

	// A second escalation does not downgrade or re-set the state.
	other := model.EscalationTarget{Team: model.TeamTechnician, TicketState: model.TicketEscalated}
	require.NoError(t, svc.ApplyTurnOutcome(ticket.ID, model.TurnState{Version: 3}, &other))

	got, err = svc.Get(ctx, "user-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketEscalatedAdmin, got.State)
	assert.Equal(t, 3, got.TurnState.Version)
}

func TestMarkTechnicianReply(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
	require.NoError(t, err)

	target := model.EscalationTarget{Team: model.TeamTechnician, TicketState: model.TicketEscalated}
	require.NoError(t, svc.ApplyTurnOutcome(ticket.ID, model.TurnState{Version: 1}, &target))

	got, err := svc.MarkTechnicianReply(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketInProgress, got.State)

	require.NoError(t, svc.Close(ctx, "user-1", ticket.ID))
	_, err = svc.MarkTechnicianReply(ctx, ticket.ID)
	assert.Error(t, err)
}

func TestListPaginates(t *testing.T) {
	svc := newTicketService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, "user-1", &model.CreateTicketRequest{})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "user-2", &model.CreateTicketRequest{})
	require.NoError(t, err)

	resp, err := svc.List(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Tickets, 2)
	assert.Equal(t, 5, resp.Total)
	assert.True(t, resp.HasMore)

	resp, err = svc.List(ctx, "user-1", 2, 4)
	require.NoError(t, err)
	assert.Len(t, resp.Tickets, 1)
	assert.False(t, resp.HasMore)
}
