// Package web exposes the calendar over HTTP.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"daybook/internal/auth"
	"daybook/internal/service"
)

// SessionCookie is the name of the login session cookie.
const SessionCookie = "daybook_session"

// maxBodySize bounds JSON and iCalendar request bodies.
const maxBodySize = 5 << 20

// Options configures a Server.
type Options struct {
	// CookieSecure marks the session cookie Secure (HTTPS only).
	CookieSecure bool
	SessionTTL   time.Duration
}

// Server provides the HTTP API.
type Server struct {
	svc      *service.Service
	sessions auth.Sessions
	validate *validator.Validate
	opts     Options
	router   *mux.Router
}

// NewServer constructs a Server and registers its routes.
func NewServer(svc *service.Service, sessions auth.Sessions, opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	s := &Server{
		svc:      svc,
		sessions: sessions,
		validate: newValidator(),
		opts:     opts,
		router:   mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestLogger)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/api/register", s.handleRegister).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)

	// /api/schedules is the older name of the same collection.
	for _, prefix := range []string{"/events", "/schedules"} {
		api.HandleFunc(prefix, s.handleListEvents).Methods(http.MethodGet)
		api.HandleFunc(prefix, s.handleCreateEvent).Methods(http.MethodPost)
		api.HandleFunc(prefix+"/book", s.handleBook).Methods(http.MethodPost)
		api.HandleFunc(prefix+"/export.ics", s.handleExport).Methods(http.MethodGet)
		api.HandleFunc(prefix+"/import", s.handleImport).Methods(http.MethodPost)
		api.HandleFunc(prefix+"/{id:[0-9]+}", s.handleGetEvent).Methods(http.MethodGet)
		api.HandleFunc(prefix+"/{id:[0-9]+}", s.handleUpdateEvent).Methods(http.MethodPut)
		api.HandleFunc(prefix+"/{id:[0-9]+}", s.handleDeleteEvent).Methods(http.MethodDelete)
	}
	api.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/users", s.handleAdminUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{username}", s.handleAdminDeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{username}/reset-password", s.handleAdminResetPassword).Methods(http.MethodPost)
	admin.HandleFunc("/users/{username}/toggle", s.handleAdminToggle).Methods(http.MethodPost)
	admin.HandleFunc("/stats", s.handleAdminStats).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
