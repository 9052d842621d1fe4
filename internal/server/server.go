// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/markb/ripple/internal/auth"
	"github.com/markb/ripple/internal/db"
	"github.com/markb/ripple/internal/log"
	"github.com/markb/ripple/internal/realtime"
	"github.com/markb/ripple/internal/store"
)

type Server struct {
	db          *db.DB
	router      *chi.Mux
	authService *auth.Service
	store       *store.Store

	realtimeService *realtime.Service
	dispatcher      *realtime.Dispatcher

	// HTTP server for graceful shutdown
	httpServer *http.Server
}

func New(database *db.DB, jwtSecret string) *Server {
	realtimeService := realtime.NewService()

	s := &Server{
		db:              database,
		router:          chi.NewRouter(),
		authService:     auth.NewService(database, jwtSecret),
		store:           store.New(database),
		realtimeService: realtimeService,
		dispatcher:      realtime.NewDispatcher(realtimeService.Gateway()),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// CORS middleware for browser-based apps
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	// Auth routes
	s.router.Route("/auth/v1", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/token", s.handleToken)
	})

	// Realtime routes. The websocket upgrade and notify endpoints skip the
	// auth middleware: identity arrives on the join frame from the
	// already-authenticated caller context, and notify is the internal
	// dispatch boundary for backend code.
	s.router.Route("/realtime/v1", func(r chi.Router) {
		r.Get("/websocket", s.realtimeService.HandleWebSocket)
		r.Post("/notify", s.handleNotify)
		r.Get("/status", s.handleRealtimeStatus)
	})

	// Application routes: persist first, then dispatch
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/notifications", s.handleCreateNotification)
		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/read", s.handleMarkNotificationRead)
		r.Get("/notifications/unread_count", s.handleUnreadNotificationCount)
		r.Post("/messages", s.handleCreateMessage)
		r.Get("/messages/unread_count", s.handleUnreadMessageCount)
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// Realtime returns the realtime service, for callers that emit directly.
func (s *Server) Realtime() *realtime.Service {
	return s.realtimeService
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errCode, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
