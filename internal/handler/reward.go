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

type RewardHandler struct {
	rewards *store.RewardStore
	ledger  *store.LedgerStore
	members *store.MemberStore
	engine  *engine.Engine
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(rewards *store.RewardStore, ledger *store.LedgerStore, members *store.MemberStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{
		rewards: rewards,
		ledger:  ledger,
		members: members,
		engine:  eng,
		hub:     hub,
		logger:  logger.With("component", "reward_handler"),
	}
}

func (h *RewardHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

type rewardRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Cost             int    `json:"cost"`
	RequiresApproval bool   `json:"requires_approval"`
	CooldownDays     int    `json:"cooldown_days"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	familyID := auth.FamilyID(r.Context())
	reward, err := h.rewards.Create(familyID, strings.TrimSpace(req.Name), req.Description, req.Cost, req.RequiresApproval, req.CooldownDays)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("reward", "created", reward.ID, 0))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// familyReward loads the reward and confirms it belongs to the caller's
// family, hiding other families' rewards behind a 404.
func (h *RewardHandler) familyReward(w http.ResponseWriter, r *http.Request) *model.Reward {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	reward, err := h.rewards.Get(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil
	}
	if reward == nil || reward.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "reward not found")
		return nil
	}
	return reward
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.familyReward(w, r)
	if existing == nil {
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reward, err := h.rewards.Update(existing.ID, strings.TrimSpace(req.Name), req.Description, req.Cost, req.RequiresApproval, req.CooldownDays)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(reward.FamilyID, websocket.NewMessage("reward", "updated", reward.ID, 0))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.familyReward(w, r)
	if existing == nil {
		return
	}

	if err := h.rewards.Delete(existing.ID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(existing.FamilyID, websocket.NewMessage("reward", "deleted", existing.ID, 0))
	w.WriteHeader(http.StatusNoContent)
}

// Redeem spends the acting member's points on the reward, either directly or
// through a pending approval request.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	rewardID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	memberID := auth.MemberID(r.Context())
	familyID := auth.FamilyID(r.Context())
	result, err := h.engine.RequestRedemption(memberID, rewardID, familyID, time.Now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if result.Purchase != nil {
		h.broadcast(familyID, websocket.NewMessage("purchase", "created", result.Purchase.ID, memberID))
	} else {
		h.broadcast(familyID, websocket.NewMessage("reward_request", "created", result.Request.ID, memberID))
	}
	writeJSON(w, http.StatusCreated, result)
}

// familyRequest loads the request and confirms the member it belongs to is in
// the admin's family.
func (h *RewardHandler) familyRequest(w http.ResponseWriter, r *http.Request) *model.RewardRequest {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	req, err := h.ledger.GetRequest(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "request not found")
		return nil
	}
	member, err := h.members.Get(req.MemberID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil
	}
	if member == nil || member.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "request not found")
		return nil
	}
	return req
}

func (h *RewardHandler) Approve(w http.ResponseWriter, r *http.Request) {
	req := h.familyRequest(w, r)
	if req == nil {
		return
	}

	adminID := auth.MemberID(r.Context())
	familyID := auth.FamilyID(r.Context())
	purchase, err := h.engine.ApproveRequest(req.ID, adminID, time.Now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("reward_request", "approved", req.ID, req.MemberID))
	writeJSON(w, http.StatusOK, purchase)
}

type rejectResponse struct {
	Refund           *model.BonusGrant       `json:"refund"`
	GoalNotification *model.GoalNotification `json:"goal_notification,omitempty"`
}

func (h *RewardHandler) Reject(w http.ResponseWriter, r *http.Request) {
	req := h.familyRequest(w, r)
	if req == nil {
		return
	}

	adminID := auth.MemberID(r.Context())
	familyID := auth.FamilyID(r.Context())
	refund, notification, err := h.engine.RejectRequest(req.ID, adminID, time.Now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("reward_request", "rejected", req.ID, req.MemberID))
	if notification != nil {
		h.broadcast(familyID, websocket.NewMessage("goal_notification", "created", notification.ID, req.MemberID))
	}
	writeJSON(w, http.StatusOK, rejectResponse{Refund: refund, GoalNotification: notification})
}
