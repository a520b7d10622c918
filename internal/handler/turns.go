package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/engine"
	"github.com/helpdesk-ai/support-engine/internal/middleware"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/internal/service"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
)

// TurnHandler handles turn processing and history endpoints.
type TurnHandler struct {
	turns  *service.TurnService
	logger *logger.Logger
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(turns *service.TurnService, log *logger.Logger) *TurnHandler {
	return &TurnHandler{
		turns:  turns,
		logger: log,
	}
}

// Post handles POST /api/v1/turns. The turn attaches to the caller's active
// ticket, or opens a new one when none is active.
func (h *TurnHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.PostTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTurnText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, resp, err := h.turns.Process(ctx, userID, req.Text)
	if err != nil {
		if errors.Is(err, engine.ErrBackendsUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		h.logger.Error("turn processing failed",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process turn")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket_id":  ticket.ID,
		"state":      ticket.State,
		"reply":      resp.Reply,
		"decision":   resp.Decision,
		"escalation": resp.Escalation,
	})
}

// History handles GET /api/v1/tickets/:id/turns
func (h *TurnHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateTicketID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var afterSequence uint64
	if a := r.URL.Query().Get("after"); a != "" {
		if parsed, err := strconv.ParseUint(a, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	resp, err := h.turns.History(ctx, userID, ticketID, afterSequence, limit)
	if err != nil {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
