package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/earnit-app/earnit/internal/auth"
	"github.com/earnit-app/earnit/internal/engine"
	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/store"
	"github.com/earnit-app/earnit/internal/websocket"
)

type BonusHandler struct {
	members *store.MemberStore
	engine  *engine.Engine
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewBonusHandler(members *store.MemberStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *BonusHandler {
	return &BonusHandler{members: members, engine: eng, hub: hub, logger: logger.With("component", "bonus_handler")}
}

type bonusRequest struct {
	MemberID int64  `json:"member_id"`
	Points   int    `json:"points"`
	Reason   string `json:"reason"`
}

type bonusResponse struct {
	Bonus            *model.BonusGrant       `json:"bonus"`
	GoalNotification *model.GoalNotification `json:"goal_notification,omitempty"`
}

// Grant issues a signed bonus to a member of the admin's family. Negative
// points are penalties.
func (h *BonusHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	familyID := auth.FamilyID(r.Context())
	member, err := h.members.Get(req.MemberID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if member == nil || member.FamilyID != familyID {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	adminID := auth.MemberID(r.Context())
	bonus, notification, err := h.engine.GrantBonus(req.MemberID, req.Points, strings.TrimSpace(req.Reason), adminID, time.Now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(familyID, websocket.NewMessage("bonus", "created", bonus.ID, req.MemberID))
		if notification != nil {
			h.hub.Broadcast(familyID, websocket.NewMessage("goal_notification", "created", notification.ID, req.MemberID))
		}
	}
	writeJSON(w, http.StatusCreated, bonusResponse{Bonus: bonus, GoalNotification: notification})
}
