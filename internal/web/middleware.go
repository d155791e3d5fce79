package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"daybook/internal/auth"
	appLog "daybook/internal/log"
)

type ctxKey int

const usernameKey ctxKey = iota

// currentUser returns the authenticated username put in the context by
// requireUser.
func currentUser(r *http.Request) string {
	name, _ := r.Context().Value(usernameKey).(string)
	return name
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs every request with its status, duration and a request
// id, which is echoed in the X-Request-ID response header.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
	})
}

// requireUser resolves the caller from the session cookie, the X-API-Key
// header or an Authorization bearer key, in that order.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if username, ok := s.sessionUser(ctx, r); ok {
			u, err := s.svc.Authorize(ctx, username)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, withUser(r, u.Username))
			return
		}

		u, err := s.svc.AuthenticateKey(ctx, apiKey(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, withUser(r, u.Username))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.RequireAdmin(currentUser(r)); err != nil {
			writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionUser returns the username of a live session cookie.
func (s *Server) sessionUser(ctx context.Context, r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	username, err := s.sessions.Lookup(ctx, c.Value)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			appLog.Error("session lookup failed", err)
		}
		return "", false
	}
	return username, true
}

func apiKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func withUser(r *http.Request, username string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), usernameKey, username))
}
