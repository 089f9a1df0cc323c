package handler

import (
	"log/slog"
	"net/http"

	"github.com/earnit-app/earnit/internal/auth"
	"github.com/earnit-app/earnit/internal/engine"
)

type NotificationHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewNotificationHandler(eng *engine.Engine, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{engine: eng, logger: logger.With("component", "notification_handler")}
}

// ListPending returns the admin queue: pending reward requests and unresolved
// goal notifications for the family.
func (h *NotificationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.ListPending(auth.FamilyID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}
