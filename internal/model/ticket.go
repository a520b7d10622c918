package model

import (
	"time"
)

// TicketState is the lifecycle state of a support ticket.
type TicketState string

const (
	TicketNew            TicketState = "nuevo"
	TicketInProgress     TicketState = "en_proceso"
	TicketEscalated      TicketState = "escalado"
	TicketEscalatedAdmin TicketState = "escalado_admin"
	TicketResolvedBot    TicketState = "resuelto_bot"
	TicketResolvedTech   TicketState = "resuelto_tecnico"
	TicketClosed         TicketState = "cerrado"
)

// IsEscalated reports whether the ticket already sits in a human queue.
func (s TicketState) IsEscalated() bool {
	return s == TicketEscalated || s == TicketEscalatedAdmin
}

// IsActive reports whether new turns should attach to this ticket rather
// than open a fresh one.
func (s TicketState) IsActive() bool {
	switch s {
	case TicketNew, TicketInProgress, TicketEscalated, TicketEscalatedAdmin:
		return true
	default:
		return false
	}
}

// Team is a human escalation queue.
type Team string

const (
	TeamTechnician     Team = "equipo_tecnico"
	TeamAdminIntake    Team = "mesa_de_entrada"
	TeamControl        Team = "equipo_de_control"
	TeamGeneralSupport Team = "soporte_general"
)

// EscalationTarget is the queue and resulting ticket state chosen when
// automation cannot resolve a query.
type EscalationTarget struct {
	Team        Team        `json:"team"`
	TicketState TicketState `json:"ticket_state"`
}

// Ticket is a support conversation plus its lifecycle state. The ticket ID is
// the conversation ID for the turn log and the routing engine.
type Ticket struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	State              TicketState `json:"state"`
	InitialDescription string      `json:"initial_description,omitempty"`
	Rating             int         `json:"rating,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`

	// TurnState is the engine session state persisted between turns.
	TurnState TurnState `json:"turn_state"`
}

// CreateTicketRequest is the request to open a ticket explicitly.
type CreateTicketRequest struct {
	Description string `json:"description,omitempty"`
}

// RateTicketRequest closes a ticket with a user rating (1-5).
type RateTicketRequest struct {
	Rating int `json:"rating"`
}

// TechnicianReplyRequest appends a human agent reply to a ticket.
type TechnicianReplyRequest struct {
	Text string `json:"text"`
}

// ListTicketsResponse is the response for listing a user's tickets.
type ListTicketsResponse struct {
	Tickets []Ticket `json:"tickets"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}
