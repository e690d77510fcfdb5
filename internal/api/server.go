// Package api exposes the calendar over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"omnidesk/internal/access"
	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
	"omnidesk/internal/service"
)

// Headers read by the server.
const (
	HeaderAPIKey = "x-api-key"
	HeaderUserID = "X-User-ID"
)

// PageGuard decides whether a user may open a dashboard page.
type PageGuard interface {
	RequirePage(ctx context.Context, userID string, page model.Page) error
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the HTTP server.
type Config struct {
	Address string
	APIKeys []string
}

// HTTPServer serves the calendar API.
type HTTPServer struct {
	server    *http.Server
	calendar  *service.CalendarService
	guard     PageGuard
	employees EmployeeManager
	apiKeys   []string
	pingers   map[string]Pinger
	logger    zerolog.Logger
}

// NewHTTPServer wires the routes. pingers are checked by /readyz by name.
func NewHTTPServer(cfg Config, calendar *service.CalendarService, guard PageGuard, pingers map[string]Pinger, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		calendar: calendar,
		guard:    guard,
		apiKeys:  cfg.APIKeys,
		pingers:  pingers,
		logger:   zerolog.Nop(),
	}
	if logger != nil {
		s.logger = logger.With().Str("component", "api").Logger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	calendarRoute := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.authenticated(s.requirePage(model.PageCalendar, h)))
	}
	settingsRoute := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.authenticated(s.requirePage(model.PageSettings, h)))
	}

	calendarRoute("GET /api/v1/calendar/month", s.handleMonth)
	calendarRoute("GET /api/v1/calendar/grid", s.handleGrid)
	calendarRoute("GET /api/v1/calendar/day", s.handleDay)
	calendarRoute("POST /api/v1/calendar/events", s.handleCreateEvent)
	calendarRoute("PATCH /api/v1/calendar/events/{id}/status", s.handleUpdateStatus)
	calendarRoute("DELETE /api/v1/calendar/events/{id}", s.handleDeleteEvent)
	calendarRoute("GET /api/v1/calendar/export.xlsx", s.handleExportXLSX)
	calendarRoute("GET /api/v1/calendar/export.ics", s.handleExportICS)

	settingsRoute("GET /api/v1/schedule", s.handleGetSchedule)
	settingsRoute("PUT /api/v1/schedule", s.handlePutSchedule)
	settingsRoute("PUT /api/v1/schedule/overrides/{date}", s.handlePutOverride)
	settingsRoute("PUT /api/v1/schedule/days/{weekday}", s.handlePutDay)
	settingsRoute("DELETE /api/v1/schedule/overrides/{date}", s.handleDeleteOverride)

	if m, ok := guard.(EmployeeManager); ok {
		s.employees = m
		employeesRoute := func(pattern string, h http.HandlerFunc) {
			mux.Handle(pattern, s.authenticated(s.requirePage(model.PageEmployees, h)))
		}
		employeesRoute("GET /api/v1/employees", s.handleListEmployees)
		employeesRoute("PUT /api/v1/employees/{id}", s.handlePutEmployee)
		employeesRoute("DELETE /api/v1/employees/{id}", s.handleDeleteEmployee)
		employeesRoute("PUT /api/v1/employees/{id}/pages", s.handlePutPages)
		employeesRoute("POST /api/v1/employees/{id}/block", s.handleBlockEmployee)
		employeesRoute("DELETE /api/v1/employees/{id}/block", s.handleUnblockEmployee)
	}

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("Starting calendar API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validKey(r.Header.Get(HeaderAPIKey)) {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, k := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func (s *HTTPServer) requirePage(page model.Page, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.guard != nil {
			err := s.guard.RequirePage(r.Context(), r.Header.Get(HeaderUserID), page)
			if access.IsAccessDenied(err) {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			if err != nil {
				s.logger.Error().Err(err).Msg("Access check failed")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		}
		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("healthz")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("readyz")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.pingers))
	status := http.StatusOK
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": checks})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
