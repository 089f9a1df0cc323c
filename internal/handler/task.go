package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/earnit-app/earnit/internal/auth"
	"github.com/earnit-app/earnit/internal/engine"
	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/store"
	"github.com/earnit-app/earnit/internal/websocket"
)

type TaskHandler struct {
	tasks  *store.TaskStore
	engine *engine.Engine
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTaskHandler(tasks *store.TaskStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, engine: eng, hub: hub, logger: logger.With("component", "task_handler")}
}

func (h *TaskHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

type taskRequest struct {
	Title     string `json:"title"`
	Points    int    `json:"points"`
	MaxPerDay int    `json:"max_per_day"`
	Frequency string `json:"frequency"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MaxPerDay == 0 {
		req.MaxPerDay = 1
	}
	if req.Frequency == "" {
		req.Frequency = model.FrequencyDaily
	}

	familyID := auth.FamilyID(r.Context())
	task, err := h.tasks.Create(familyID, strings.TrimSpace(req.Title), req.Points, req.MaxPerDay, req.Frequency)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("task", "created", task.ID, 0))
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	familyID := auth.FamilyID(r.Context())
	existing, err := h.tasks.Get(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil || existing.FamilyID != familyID {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	task, err := h.tasks.Update(id, strings.TrimSpace(req.Title), req.Points, req.MaxPerDay, req.Frequency)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("task", "updated", id, 0))
	writeJSON(w, http.StatusOK, task)
}

type completeRequest struct {
	WithPhotos bool `json:"with_photos"`
}

type completeResponse struct {
	Completion       *model.TaskCompletion   `json:"completion"`
	GoalNotification *model.GoalNotification `json:"goal_notification,omitempty"`
}

// Complete records a task completion for the acting member. With photos
// requested, the server mints opaque refs the client uploads against.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req completeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	var photoBefore, photoAfter string
	if req.WithPhotos {
		photoBefore = "photos/" + uuid.NewString()
		photoAfter = "photos/" + uuid.NewString()
	}

	memberID := auth.MemberID(r.Context())
	familyID := auth.FamilyID(r.Context())
	completion, notification, err := h.engine.RecordCompletion(memberID, taskID, familyID, time.Now(), photoBefore, photoAfter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("completion", "created", completion.ID, memberID))
	if notification != nil {
		h.broadcast(familyID, websocket.NewMessage("goal_notification", "created", notification.ID, memberID))
	}
	writeJSON(w, http.StatusCreated, completeResponse{Completion: completion, GoalNotification: notification})
}
