package api

import (
	"net/http"

	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
)

// OverrideRequest is the body of PUT /api/v1/schedule/overrides/{date}.
type OverrideRequest struct {
	IsDayOff  bool   `json:"isDayOff"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// GET /api/v1/schedule
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_get")

	sched, err := s.calendar.GetSchedule(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// PUT /api/v1/schedule
func (s *HTTPServer) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_put")

	var ws model.WeeklySchedule
	if !decodeJSON(w, r, &ws) {
		return
	}
	if err := s.calendar.ReplaceWeeklySchedule(r.Context(), ws); err != nil {
		s.writeServiceError(w, err)
		return
	}

	sched, err := s.calendar.GetSchedule(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// PUT /api/v1/schedule/days/{weekday}
func (s *HTTPServer) handlePutDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_day_put")

	var ds model.DaySchedule
	if !decodeJSON(w, r, &ds) {
		return
	}
	if err := s.calendar.SetDaySchedule(r.Context(), model.Weekday(r.PathValue("weekday")), ds); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// PUT /api/v1/schedule/overrides/{date}
func (s *HTTPServer) handlePutOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_override_put")

	var req OverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o := model.ScheduleOverride{
		Date:      r.PathValue("date"),
		IsDayOff:  req.IsDayOff,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}
	if err := s.calendar.SetOverride(r.Context(), o); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// DELETE /api/v1/schedule/overrides/{date}
func (s *HTTPServer) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_override_delete")

	if err := s.calendar.DeleteOverride(r.Context(), r.PathValue("date")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
