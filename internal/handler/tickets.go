// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/middleware"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/internal/service"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
)

// TicketHandler handles ticket endpoints.
type TicketHandler struct {
	tickets *service.TicketService
	turns   *service.TurnService
	logger  *logger.Logger
}

// NewTicketHandler creates a new ticket handler.
func NewTicketHandler(tickets *service.TicketService, turns *service.TurnService, log *logger.Logger) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		turns:   turns,
		logger:  log,
	}
}

// Create handles POST /api/v1/tickets
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.tickets.Create(ctx, userID, &req)
	if err != nil {
		h.logger.Error("failed to create ticket",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create ticket")
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}

// List handles GET /api/v1/tickets
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	resp, err := h.tickets.List(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list tickets",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/tickets/:id
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateTicketID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.tickets.Get(ctx, userID, ticketID)
	if err != nil {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// Rate handles POST /api/v1/tickets/:id/rating. Rating a ticket closes it.
func (h *TicketHandler) Rate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateTicketID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.RateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateRating(req.Rating); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.tickets.Rate(ctx, userID, ticketID, req.Rating)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// Close handles DELETE /api/v1/tickets/:id
func (h *TicketHandler) Close(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateTicketID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tickets.Close(ctx, userID, ticketID); err != nil {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TechnicianReply handles POST /api/v1/tickets/:id/reply. Requires the
// agent scope.
func (h *TicketHandler) TechnicianReply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateTicketID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.TechnicianReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTurnText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.turns.TechnicianReply(ctx, ticketID, req.Text)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}
