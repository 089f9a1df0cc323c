package handler

import (
	"log/slog"
	"net/http"

	"github.com/earnit-app/earnit/internal/backup"
	"github.com/earnit-app/earnit/internal/model"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, logger: logger.With("component", "backup_handler")}
}

// Now triggers an immediate snapshot.
func (h *BackupHandler) Now(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	rec, err := h.manager.Run(r.Context())
	if err != nil {
		h.logger.Error("manual backup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *BackupHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.manager.History(50)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if history == nil {
		history = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, history)
}
