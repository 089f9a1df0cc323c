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

type GoalHandler struct {
	goals   *store.GoalStore
	members *store.MemberStore
	engine  *engine.Engine
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewGoalHandler(goals *store.GoalStore, members *store.MemberStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{
		goals:   goals,
		members: members,
		engine:  eng,
		hub:     hub,
		logger:  logger.With("component", "goal_handler"),
	}
}

// goalMember resolves the {id} path member, allowing self-access for kids and
// family-wide access for admins.
func (h *GoalHandler) goalMember(w http.ResponseWriter, r *http.Request) *model.Member {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	if id != auth.MemberID(r.Context()) && !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return nil
	}
	member, err := h.members.Get(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil
	}
	if member == nil || member.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "member not found")
		return nil
	}
	return member
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	member := h.goalMember(w, r)
	if member == nil {
		return
	}

	goal, err := h.goals.Get(member.ID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if goal == nil {
		writeError(w, http.StatusNotFound, "no goal set")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type goalRequest struct {
	Title         string `json:"title"`
	TotalCost     int    `json:"total_cost"`
	ParentPercent int    `json:"parent_percent"`
	PhotoURL      string `json:"photo_url"`
	Link          string `json:"link"`
}

type goalResponse struct {
	Goal             *model.Goal             `json:"goal"`
	GoalNotification *model.GoalNotification `json:"goal_notification,omitempty"`
}

func (h *GoalHandler) Set(w http.ResponseWriter, r *http.Request) {
	member := h.goalMember(w, r)
	if member == nil {
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	goal, notification, err := h.engine.SetGoal(member.ID, strings.TrimSpace(req.Title), req.TotalCost, req.ParentPercent, req.PhotoURL, req.Link, time.Now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(member.FamilyID, websocket.NewMessage("goal", "updated", goal.ID, member.ID))
		if notification != nil {
			h.hub.Broadcast(member.FamilyID, websocket.NewMessage("goal_notification", "created", notification.ID, member.ID))
		}
	}
	writeJSON(w, http.StatusOK, goalResponse{Goal: goal, GoalNotification: notification})
}

// familyNotification loads the goal notification and confirms its member is
// in the caller's family.
func (h *GoalHandler) familyNotification(w http.ResponseWriter, r *http.Request) *model.GoalNotification {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	n, err := h.goals.GetNotification(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return nil
	}
	member, err := h.members.Get(n.MemberID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil
	}
	if member == nil || member.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "notification not found")
		return nil
	}
	return n
}

// Resolve marks the notification handled and clears the member's goal.
func (h *GoalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	n := h.familyNotification(w, r)
	if n == nil {
		return
	}

	if err := h.engine.ResolveGoalNotification(n.ID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(auth.FamilyID(r.Context()), websocket.NewMessage("goal_notification", "resolved", n.ID, n.MemberID))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// Dismiss marks the notification read without touching the goal.
func (h *GoalHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	n := h.familyNotification(w, r)
	if n == nil {
		return
	}

	if err := h.engine.DismissGoalNotification(n.ID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(auth.FamilyID(r.Context()), websocket.NewMessage("goal_notification", "dismissed", n.ID, n.MemberID))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
