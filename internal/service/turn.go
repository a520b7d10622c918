package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/engine"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/internal/notify"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
)

// ConversationLog is the append-only turn store.
type ConversationLog interface {
	Append(ctx context.Context, turn *model.Turn) (uint64, error)
	Page(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Turn, uint64, bool, error)
}

// TurnProcessor runs one utterance through the routing graph.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, conversationID, userText string, prior model.TurnState) (*engine.Result, error)
}

// TurnService drives turn processing: it resolves the active ticket,
// serializes turns per conversation, invokes the engine and applies the
// returned state delta atomically. A hard engine failure means no reply and
// no delta.
type TurnService struct {
	log     ConversationLog
	tickets *TicketService
	engine  TurnProcessor
	logger  *logger.Logger

	// one lock per conversation id: a conversation never processes two
	// turns concurrently.
	locks sync.Map
}

// NewTurnService creates a new turn service.
func NewTurnService(log ConversationLog, tickets *TicketService, eng TurnProcessor, l *logger.Logger) *TurnService {
	return &TurnService{
		log:     log,
		tickets: tickets,
		engine:  eng,
		logger:  l,
	}
}

func (s *TurnService) lockFor(conversationID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Process handles one user utterance: attach to the user's active ticket (or
// open one), append the user turn, run the routing graph, apply the state
// delta and append the reply.
func (s *TurnService) Process(ctx context.Context, userID, text string) (*model.Ticket, *model.PostTurnResponse, error) {
	ticket, ok := s.tickets.Active(ctx, userID)
	if !ok {
		var err error
		ticket, err = s.tickets.Create(ctx, userID, &model.CreateTicketRequest{Description: text})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open ticket: %w", err)
		}
	}

	mu := s.lockFor(ticket.ID)
	mu.Lock()
	defer mu.Unlock()

	userTurn := &model.Turn{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: ticket.ID,
		Speaker:        model.SpeakerUser,
		Text:           text,
		CreatedAt:      time.Now(),
	}
	if _, err := s.log.Append(ctx, userTurn); err != nil {
		// History will miss this turn, but the utterance still reaches the
		// engine directly; not worth failing the whole turn over.
		s.logger.Warn("failed to append user turn",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}

	result, err := s.engine.ProcessTurn(ctx, ticket.ID, text, ticket.TurnState)
	if err != nil {
		// No reply produced; no partial state delta is applied.
		return ticket, nil, fmt.Errorf("turn processing failed: %w", err)
	}

	if err := s.tickets.ApplyTurnOutcome(ticket.ID, result.State, result.Escalation); err != nil {
		return ticket, nil, fmt.Errorf("failed to apply turn outcome: %w", err)
	}

	systemTurn := &model.Turn{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: ticket.ID,
		Speaker:        model.SpeakerSystem,
		Text:           result.Reply,
		CreatedAt:      time.Now(),
	}
	if _, err := s.log.Append(ctx, systemTurn); err != nil {
		s.logger.Warn("failed to append system turn",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}

	return ticket, &model.PostTurnResponse{
		Reply:      result.Reply,
		Decision:   result.Decision,
		State:      result.State,
		Escalation: result.Escalation,
	}, nil
}

// History reads a page of a ticket's turn log.
func (s *TurnService) History(ctx context.Context, userID, ticketID string, afterSequence uint64, limit int) (*model.ListTurnsResponse, error) {
	if _, err := s.tickets.Get(ctx, userID, ticketID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	turns, lastSeq, hasMore, err := s.log.Page(ctx, ticketID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return &model.ListTurnsResponse{
		Turns:        turns,
		HasMore:      hasMore,
		LastSequence: lastSeq,
	}, nil
}

// TechnicianReply appends a human agent's answer to the ticket and moves it
// back to in-progress.
func (s *TurnService) TechnicianReply(ctx context.Context, ticketID, text string) (*model.Ticket, error) {
	ticket, err := s.tickets.MarkTechnicianReply(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	turn := &model.Turn{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: ticketID,
		Speaker:        model.SpeakerSystem,
		Text:           text,
		CreatedAt:      time.Now(),
	}
	if _, err := s.log.Append(ctx, turn); err != nil {
		return nil, fmt.Errorf("failed to append technician reply: %w", err)
	}

	return ticket, nil
}

// DedupDispatcher suppresses duplicate escalation notifications for tickets
// already sitting in a human queue. The escalation composer is stateless and
// safe to re-run; dedup belongs to the caller, which owns the persisted
// ticket state.
type DedupDispatcher struct {
	tickets *TicketService
	next    notify.Dispatcher
}

// NewDedupDispatcher wraps a dispatcher with ticket-state deduplication.
func NewDedupDispatcher(tickets *TicketService, next notify.Dispatcher) *DedupDispatcher {
	return &DedupDispatcher{tickets: tickets, next: next}
}

// Notify forwards the notification unless the ticket is already escalated.
func (d *DedupDispatcher) Notify(ctx context.Context, target model.EscalationTarget, conversationID, summary string) error {
	if state, ok := d.tickets.State(conversationID); ok && state.IsEscalated() {
		return nil
	}
	return d.next.Notify(ctx, target, conversationID, summary)
}
