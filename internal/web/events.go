package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"daybook/internal/model"
	"daybook/internal/service"
)

type bookRequest struct {
	Date        string               `json:"date" validate:"required"`
	Duration    int                  `json:"duration" validate:"gt=0,lte=1440"`
	WindowStart string               `json:"window_start" validate:"omitempty,clock"`
	WindowEnd   string               `json:"window_end" validate:"omitempty,clock"`
	Title       string               `json:"title" validate:"required"`
	Location    string               `json:"location" validate:"required"`
	Description string               `json:"description" validate:"required"`
	Recurrence  *model.RawRecurrence `json:"recurrence"`
}

type importURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func eventID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil
}

// handleListEvents returns the stored events, or with ?expand=1 the
// occurrences between the optional start and end bounds.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username := currentUser(r)

	if expand, _ := strconv.ParseBool(q.Get("expand")); expand {
		occ, err := s.svc.Occurrences(r.Context(), username, q.Get("start"), q.Get("end"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": occ})
		return
	}

	items, err := s.svc.Items(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in model.EventInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ev, err := s.svc.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Schedule item not found")
		return
	}
	ev, err := s.svc.Get(r.Context(), currentUser(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Schedule item not found")
		return
	}
	var patch model.EventPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	ev, err := s.svc.Update(r.Context(), currentUser(r), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Schedule item not found")
		return
	}
	if err := s.svc.Delete(r.Context(), currentUser(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Deleted"})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !decodeJSON(w, r, &req) || !s.validateRequest(w, &req) {
		return
	}
	ev, err := s.svc.Book(r.Context(), currentUser(r), service.BookRequest{
		Date:        req.Date,
		Duration:    req.Duration,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)
	body, err := s.svc.Export(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, username))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// handleImport accepts either a raw iCalendar body or a JSON {"url": ...}
// naming a feed to download.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)

	var (
		res service.ImportResult
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req importURLRequest
		if !decodeJSON(w, r, &req) || !s.validateRequest(w, &req) {
			return
		}
		res, err = s.svc.ImportURL(r.Context(), username, req.URL)
	} else {
		body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if readErr != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "Calendar file is too large")
			return
		}
		res, err = s.svc.Import(r.Context(), username, body)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
