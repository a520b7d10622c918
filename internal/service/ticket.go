// Package service provides business logic on top of the routing engine.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// TicketService owns ticket lifecycle and the persisted per-conversation
// TurnState. Storage is in-memory (would be replaced with a database in
// production), guarded by a single RWMutex.
type TicketService struct {
	logger *logger.Logger

	tickets map[string]*model.Ticket
	mu      sync.RWMutex
}

// NewTicketService creates a new ticket service.
func NewTicketService(log *logger.Logger) *TicketService {
	return &TicketService{
		logger:  log,
		tickets: make(map[string]*model.Ticket),
	}
}

// Create opens a new ticket for a user.
func (s *TicketService) Create(ctx context.Context, userID string, req *model.CreateTicketRequest) (*model.Ticket, error) {
	now := time.Now()

	ticket := &model.Ticket{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		UserID:             userID,
		State:              model.TicketNew,
		InitialDescription: req.Description,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	s.mu.Lock()
	s.tickets[ticket.ID] = ticket
	s.mu.Unlock()

	metrics.TicketsTotal.Inc()
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", userID),
	)

	return ticket, nil
}

// Get retrieves a ticket by ID, scoped to its owner.
func (s *TicketService) Get(ctx context.Context, userID, ticketID string) (*model.Ticket, error) {
	s.mu.RLock()
	ticket, exists := s.tickets[ticketID]
	s.mu.RUnlock()

	if !exists || ticket.UserID != userID {
		return nil, fmt.Errorf("ticket not found")
	}

	return ticket, nil
}

// List retrieves a user's tickets, newest first.
func (s *TicketService) List(ctx context.Context, userID string, limit, offset int) (*model.ListTicketsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []model.Ticket
	for _, ticket := range s.tickets {
		if ticket.UserID == userID {
			tickets = append(tickets, *ticket)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})

	total := len(tickets)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &model.ListTicketsResponse{
		Tickets: tickets[start:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// Active returns the user's open ticket, if any. New turns attach to it; a
// closed or rated ticket means the next turn starts a fresh conversation.
func (s *TicketService) Active(ctx context.Context, userID string) (*model.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Ticket
	for _, ticket := range s.tickets {
		if ticket.UserID != userID || !ticket.State.IsActive() {
			continue
		}
		if latest == nil || ticket.CreatedAt.After(latest.CreatedAt) {
			latest = ticket
		}
	}
	return latest, latest != nil
}

// Rate closes a ticket with a user rating; the TurnState is discarded with
// the conversation.
func (s *TicketService) Rate(ctx context.Context, userID, ticketID string, rating int) (*model.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, exists := s.tickets[ticketID]
	if !exists || ticket.UserID != userID {
		return nil, fmt.Errorf("ticket not found")
	}

	ticket.Rating = rating
	ticket.State = model.TicketClosed
	ticket.TurnState = model.TurnState{}
	ticket.UpdatedAt = time.Now()

	return ticket, nil
}

// Close closes a ticket without a rating.
func (s *TicketService) Close(ctx context.Context, userID, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, exists := s.tickets[ticketID]
	if !exists || ticket.UserID != userID {
		return fmt.Errorf("ticket not found")
	}

	ticket.State = model.TicketClosed
	ticket.TurnState = model.TurnState{}
	ticket.UpdatedAt = time.Now()

	return nil
}

// MarkTechnicianReply moves a ticket back to in-progress after a human agent
// answered; the ball is on the user's side again. TurnState is untouched.
func (s *TicketService) MarkTechnicianReply(ctx context.Context, ticketID string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, exists := s.tickets[ticketID]
	if !exists {
		return nil, fmt.Errorf("ticket not found")
	}
	if ticket.State == model.TicketClosed {
		return nil, fmt.Errorf("ticket is closed")
	}

	ticket.State = model.TicketInProgress
	ticket.UpdatedAt = time.Now()

	return ticket, nil
}

// State reports the current lifecycle state of a ticket.
func (s *TicketService) State(ticketID string) (model.TicketState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, exists := s.tickets[ticketID]
	if !exists {
		return "", false
	}
	return ticket.State, true
}

// ApplyTurnOutcome persists the engine's state delta atomically: the new
// TurnState always, and the escalated ticket state when the turn escalated a
// ticket not already sitting in a human queue.
func (s *TicketService) ApplyTurnOutcome(ticketID string, state model.TurnState, escalation *model.EscalationTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, exists := s.tickets[ticketID]
	if !exists {
		return fmt.Errorf("ticket not found")
	}

	ticket.TurnState = state
	if escalation != nil && !ticket.State.IsEscalated() {
		ticket.State = escalation.TicketState
	}
	if ticket.State == model.TicketNew {
		ticket.State = model.TicketInProgress
	}
	ticket.UpdatedAt = time.Now()

	return nil
}
