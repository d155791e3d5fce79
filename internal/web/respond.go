package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"daybook/internal/auth"
	appLog "daybook/internal/log"
	"daybook/internal/schedule"
	"daybook/internal/service"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// kinds are the error sentinels whose wrapped detail is safe to show to
// clients, with the status each maps to.
var kinds = []struct {
	err    error
	status int
}{
	{schedule.ErrConflictDetected, http.StatusConflict},
	{schedule.ErrNoAvailableSlot, http.StatusConflict},
	{schedule.ErrInvalidFormat, http.StatusBadRequest},
	{schedule.ErrInvalidRecurrenceField, http.StatusBadRequest},
	{schedule.ErrInvalidInterval, http.StatusBadRequest},
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrUserExists, http.StatusBadRequest},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
}

// writeServiceError maps an error from the service or scheduling core to a
// status and a {"message"} body. Unknown errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *schedule.ConflictError
	if errors.As(err, &conflict) {
		writeError(w, http.StatusConflict, conflict.Error())
		return
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			writeError(w, k.status, detail(err, k.err))
			return
		}
	}
	appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path, "user", currentUser(r))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// detail strips the "<kind>: " prefix fmt.Errorf("%w: ...") leaves in front
// of the client-facing message.
func detail(err, kind error) string {
	msg := err.Error()
	prefix := kind.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

const (
	msgUsername = "Username must be 4-20 chars (letters, numbers, underscore)"
	msgPassword = "Password must be at least 8 chars and include letters and numbers"
	msgRequired = "All fields are required"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return auth.ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return auth.ValidPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := schedule.AtClock(time.Time{}, fl.Field().String())
		return err == nil
	})
	return v
}

// validateRequest checks a request struct and writes a 400 with a readable message
// on failure.
func (s *Server) validateRequest(w http.ResponseWriter, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	writeError(w, http.StatusBadRequest, fieldMessage(verrs[0]))
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "username":
		return msgUsername
	case "password":
		return msgPassword
	case "clock":
		return fmt.Sprintf("%s must be HH:MM", fe.Field())
	case "required":
		switch fe.Field() {
		case "title", "location", "description":
			return msgRequired
		case "username":
			return msgUsername
		case "password", "new_password":
			return msgPassword
		}
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
