package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/earnit-app/earnit/internal/backup"
	"github.com/earnit-app/earnit/internal/engine"
	"github.com/earnit-app/earnit/internal/handler"
	"github.com/earnit-app/earnit/internal/middleware"
	"github.com/earnit-app/earnit/internal/store"
	ws "github.com/earnit-app/earnit/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	taskH         *handler.TaskHandler
	rewardH       *handler.RewardHandler
	bonusH        *handler.BonusHandler
	goalH         *handler.GoalHandler
	memberH       *handler.MemberHandler
	notificationH *handler.NotificationHandler
	inviteH       *handler.InviteHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	backupManager *backup.Manager
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	memberStore := store.NewMemberStore(db)
	taskStore := store.NewTaskStore(db)
	rewardStore := store.NewRewardStore(db)
	ledgerStore := store.NewLedgerStore(db)
	goalStore := store.NewGoalStore(db)
	sessionStore := store.NewSessionStore(db)
	backupStore := store.NewBackupStore(db)

	eng := engine.New(ledgerStore, goalStore, logger)
	backupMgr := backup.NewManager(backupCfg, db, backupStore, logger)

	return &Server{
		db:            db,
		hub:           hub,
		taskH:         handler.NewTaskHandler(taskStore, eng, hub, logger),
		rewardH:       handler.NewRewardHandler(rewardStore, ledgerStore, memberStore, eng, hub, logger),
		bonusH:        handler.NewBonusHandler(memberStore, eng, hub, logger),
		goalH:         handler.NewGoalHandler(goalStore, memberStore, eng, hub, logger),
		memberH:       handler.NewMemberHandler(memberStore, ledgerStore, logger),
		notificationH: handler.NewNotificationHandler(eng, logger),
		inviteH:       handler.NewInviteHandler(memberStore, logger),
		backupH:       handler.NewBackupHandler(backupMgr, logger),
		sessionStore:  sessionStore,
		backupManager: backupMgr,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager for the scheduled snapshot loop.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/invites/accept", s.rateLimitedHandler(s.inviteH.Accept))

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}

	mux.Handle("GET /ws", ws.Handler(s.hub, s.logger))

	// Member routes
	mux.Handle("GET /api/members", admin(s.memberH.List))
	mux.HandleFunc("GET /api/members/{id}/points", s.memberH.Points)
	mux.HandleFunc("GET /api/members/{id}/completions", s.memberH.Completions)
	mux.HandleFunc("GET /api/members/{id}/bonuses", s.memberH.Bonuses)
	mux.HandleFunc("POST /api/members/{id}/pin", s.memberH.SetPIN)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.memberH.VerifyPIN)

	// Task routes
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.Handle("POST /api/tasks", admin(s.taskH.Create))
	mux.Handle("PUT /api/tasks/{id}", admin(s.taskH.Update))
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)

	// Reward routes
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("POST /api/rewards", admin(s.rewardH.Create))
	mux.Handle("PUT /api/rewards/{id}", admin(s.rewardH.Update))
	mux.Handle("DELETE /api/rewards/{id}", admin(s.rewardH.Delete))
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.Handle("POST /api/requests/{id}/approve", admin(s.rewardH.Approve))
	mux.Handle("POST /api/requests/{id}/reject", admin(s.rewardH.Reject))

	// Bonus routes
	mux.Handle("POST /api/bonuses", admin(s.bonusH.Grant))

	// Goal routes
	mux.HandleFunc("GET /api/goals/{id}", s.goalH.Get)
	mux.HandleFunc("PUT /api/goals/{id}", s.goalH.Set)
	mux.Handle("POST /api/goal-notifications/{id}/resolve", admin(s.goalH.Resolve))
	mux.Handle("POST /api/goal-notifications/{id}/dismiss", admin(s.goalH.Dismiss))

	// Admin notification queue
	mux.Handle("GET /api/notifications", admin(s.notificationH.ListPending))

	// Backup routes
	mux.Handle("POST /api/backup/now", admin(s.backupH.Now))
	mux.Handle("GET /api/backup/history", admin(s.backupH.History))
}
