package web

import (
	"net/http"
	"strings"

	appLog "daybook/internal/log"
)

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	u, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	token, err := s.sessions.Create(r.Context(), u.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, s.sessionCookie(token, int(s.opts.SessionTTL.Seconds())))
	appLog.Info("user logged in", "username", u.Username)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Login successful",
		"username": u.Username,
		"is_admin": s.svc.IsAdmin(u.Username),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := s.sessions.Delete(r.Context(), c.Value); err != nil {
			appLog.Error("session delete failed", err)
		}
	}
	http.SetCookie(w, s.sessionCookie("", -1))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	username, ok := s.sessionUser(r.Context(), r)
	if ok {
		if _, err := s.svc.Authorize(r.Context(), username); err != nil {
			ok = false
		}
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"username": nil, "is_admin": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": username,
		"is_admin": s.svc.IsAdmin(username),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !s.validateRequest(w, &req) {
		return
	}
	u, err := s.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	appLog.Info("user registered", "username", u.Username)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Registration successful",
		"username": u.Username,
		"api_key":  u.APIKey,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Profile(r.Context(), currentUser(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": u.Username,
		"api_key":  u.APIKey,
	})
}

// sessionCookie builds the session cookie. A negative maxAge expires it.
func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
