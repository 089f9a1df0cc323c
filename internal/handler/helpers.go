// Package handler exposes the JSON API. Handlers parse and authorize the
// request, call into the engine or a store, map domain errors to statuses,
// and broadcast change messages for the family's other devices.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/earnit-app/earnit/internal/points"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the typed domain errors onto HTTP statuses: bad input
// is 400, missing entities 404, and every violated business rule 409. Anything
// unrecognized is logged and reported as 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		valErr     *points.ValidationError
		limitErr   *points.LimitExceededError
		balanceErr *points.InsufficientBalanceError
		cdErr      *points.CooldownActiveError
		stateErr   *points.InvalidStateError
		goalErr    *points.GoalPendingError
	)
	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Error())
	case errors.Is(err, points.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &limitErr):
		writeError(w, http.StatusConflict, limitErr.Error())
	case errors.As(err, &balanceErr):
		writeError(w, http.StatusConflict, balanceErr.Error())
	case errors.As(err, &cdErr):
		writeError(w, http.StatusConflict, cdErr.Error())
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, stateErr.Error())
	case errors.As(err, &goalErr):
		writeError(w, http.StatusConflict, goalErr.Error())
	case errors.Is(err, points.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent update, try again")
	default:
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
