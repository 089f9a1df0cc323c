package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/earnit-app/earnit/internal/store"
)

type InviteHandler struct {
	members *store.MemberStore
	logger  *slog.Logger
}

func NewInviteHandler(members *store.MemberStore, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{members: members, logger: logger.With("component", "invite_handler")}
}

type acceptRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// Accept consumes an invite code and creates the member. This route is
// unauthenticated by design: the caller has no session yet. It sits behind
// the rate limiter to keep codes from being guessable in bulk.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Code == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "code and display_name are required")
		return
	}

	member, err := h.members.AcceptInvite(req.Code, req.DisplayName, time.Now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}
