package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"omnidesk/internal/access"
	"omnidesk/internal/availability"
	"omnidesk/internal/db"
	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
	"omnidesk/internal/service"
)

// StatusRequest is the body of PATCH /api/v1/calendar/events/{id}/status.
type StatusRequest struct {
	Status model.EventStatus `json:"status"`
}

// GET /api/v1/calendar/month?month=YYYY-MM
func (s *HTTPServer) handleMonth(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_month")

	data, err := s.calendar.LoadMonth(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GET /api/v1/calendar/grid?month=YYYY-MM
func (s *HTTPServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_grid")

	view, err := s.calendar.MonthView(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/v1/calendar/day?date=YYYY-MM-DD
func (s *HTTPServer) handleDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_day")

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	view, err := s.calendar.DayView(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/v1/calendar/events
func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_create_event")

	var req service.NewEventInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}

	e, err := s.calendar.CreateEvent(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// PATCH /api/v1/calendar/events/{id}/status
func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_update_status")

	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := s.calendar.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DELETE /api/v1/calendar/events/{id}
func (s *HTTPServer) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_delete_event")

	if err := s.calendar.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/calendar/export.xlsx?month=YYYY-MM
func (s *HTTPServer) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_export_xlsx")
	month := r.URL.Query().Get("month")
	s.writeExport(w, r.Context(), month,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("calendar-%s.xlsx", month),
		s.calendar.ExportMonthXLSX)
}

// GET /api/v1/calendar/export.ics?month=YYYY-MM
func (s *HTTPServer) handleExportICS(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_export_ics")
	month := r.URL.Query().Get("month")
	s.writeExport(w, r.Context(), month,
		"text/calendar; charset=utf-8",
		fmt.Sprintf("calendar-%s.ics", month),
		s.calendar.ExportMonthICS)
}

type exportFunc func(ctx context.Context, w io.Writer, monthKey string) error

func (s *HTTPServer) writeExport(w http.ResponseWriter, ctx context.Context, month, contentType, filename string, export exportFunc) {
	// Buffer the file so that failures still produce a JSON error.
	var buf bytes.Buffer
	if err := export(ctx, &buf, month); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, availability.ErrSlotConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, availability.ErrDayOff),
		errors.Is(err, availability.ErrOutsideHours),
		errors.Is(err, availability.ErrTooSoon),
		errors.Is(err, availability.ErrTooFar):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, availability.ErrInvalidSlot),
		errors.Is(err, service.ErrInvalidMonth),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, access.ErrInvalidEmployee):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
