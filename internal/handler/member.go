package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/earnit-app/earnit/internal/auth"
	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/store"
)

type MemberHandler struct {
	members *store.MemberStore
	ledger  *store.LedgerStore
	logger  *slog.Logger
}

func NewMemberHandler(members *store.MemberStore, ledger *store.LedgerStore, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: members, ledger: ledger, logger: logger.With("component", "member_handler")}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// pathMember resolves {id}, allowing self-access and admin access within the
// family.
func (h *MemberHandler) pathMember(w http.ResponseWriter, r *http.Request) *model.Member {
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

// Points returns the member's account summary.
func (h *MemberHandler) Points(w http.ResponseWriter, r *http.Request) {
	member := h.pathMember(w, r)
	if member == nil {
		return
	}

	summary, err := h.ledger.Summary(member.ID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *MemberHandler) Completions(w http.ResponseWriter, r *http.Request) {
	member := h.pathMember(w, r)
	if member == nil {
		return
	}

	completions, err := h.ledger.ListCompletions(member.ID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if completions == nil {
		completions = []model.TaskCompletion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

func (h *MemberHandler) Bonuses(w http.ResponseWriter, r *http.Request) {
	member := h.pathMember(w, r)
	if member == nil {
		return
	}

	bonuses, err := h.ledger.ListBonuses(member.ID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if bonuses == nil {
		bonuses = []model.BonusGrant{}
	}
	writeJSON(w, http.StatusOK, bonuses)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN sets or clears the member's PIN. Kids may change their own; admins
// may change anyone's in the family.
func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	member := h.pathMember(w, r)
	if member == nil {
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.members.SetPIN(member.ID, req.PIN); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	member := h.pathMember(w, r)
	if member == nil {
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ok, err := h.members.VerifyPIN(member.ID, req.PIN)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "incorrect PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}
