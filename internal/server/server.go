package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/choreward/choreward/internal/handler"
	"github.com/choreward/choreward/internal/invite"
	"github.com/choreward/choreward/internal/middleware"
	"github.com/choreward/choreward/internal/store"
	"github.com/choreward/choreward/internal/stream"
	ws "github.com/choreward/choreward/internal/websocket"
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	broker         *stream.Broker
	choreH         *handler.ChoreHandler
	authH          *handler.AuthHandler
	sessionStore   *store.SessionStore
	householdStore *store.HouseholdStore
	rateLimiter    *middleware.RateLimiter
	logger         *slog.Logger
}

func New(db *sql.DB, inviteSecret string, logger *slog.Logger) *Server {
	choreStore := store.NewChoreStore(db)
	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db)

	broker := stream.NewBroker()
	hub := ws.NewHub(choreStore, broker, logger.With("component", "websocket"))
	invites := invite.NewIssuer(inviteSecret)

	return &Server{
		db:             db,
		hub:            hub,
		broker:         broker,
		choreH:         handler.NewChoreHandler(choreStore, householdStore, broker, logger.With("component", "chore")),
		authH:          handler.NewAuthHandler(userStore, householdStore, sessionStore, invites, logger.With("component", "auth")),
		sessionStore:   sessionStore,
		householdStore: householdStore,
		rateLimiter:    middleware.NewRateLimiter(),
		logger:         logger,
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

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("POST /login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("POST /invite/accept", s.rateLimited(s.authH.InviteAccept))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.householdStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.Handle("POST /api/invite", middleware.RequireAdmin(http.HandlerFunc(s.authH.Invite)))

	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/steal", s.choreH.Steal)
	mux.HandleFunc("POST /api/chores/{id}/force", s.choreH.Force)
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
