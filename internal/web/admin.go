package web

import (
	"net/http"

	"github.com/gorilla/mux"

	appLog "daybook/internal/log"
)

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,password"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if err := s.svc.DeleteUser(r.Context(), username); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted"})
}

func (s *Server) handleAdminResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) || !s.validateRequest(w, &req) {
		return
	}
	username := mux.Vars(r)["username"]
	if err := s.svc.ResetPassword(r.Context(), username, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	appLog.Info("password reset", "username", username, "by", currentUser(r))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful"})
}

func (s *Server) handleAdminToggle(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	enabled, err := s.svc.ToggleUser(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User status updated",
		"enabled": enabled,
	})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
