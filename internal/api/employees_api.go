package api

import (
	"context"
	"net/http"

	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
)

// EmployeeManager manages dashboard accounts. Employee routes are served
// only when the page guard implements it.
type EmployeeManager interface {
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	SaveEmployee(ctx context.Context, e *model.Employee) error
	GrantPages(ctx context.Context, userID string, pages []model.Page) error
	Block(ctx context.Context, userID, reason string) error
	Unblock(ctx context.Context, userID string) error
	RemoveEmployee(ctx context.Context, userID string) error
}

// EmployeeRequest is the body of PUT /api/v1/employees/{id}.
type EmployeeRequest struct {
	Name  string       `json:"name"`
	Role  model.Role   `json:"role"`
	Pages []model.Page `json:"pages"`
}

// PagesRequest is the body of PUT /api/v1/employees/{id}/pages.
type PagesRequest struct {
	Pages []model.Page `json:"pages"`
}

// BlockRequest is the body of POST /api/v1/employees/{id}/block.
type BlockRequest struct {
	Reason string `json:"reason"`
}

// GET /api/v1/employees
func (s *HTTPServer) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("employees_list")

	list, err := s.employees.ListEmployees(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// PUT /api/v1/employees/{id}
func (s *HTTPServer) handlePutEmployee(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("employees_put")

	var req EmployeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e := &model.Employee{UserID: r.PathValue("id"), Name: req.Name, Role: req.Role, Pages: req.Pages}
	if err := s.employees.SaveEmployee(r.Context(), e); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// PUT /api/v1/employees/{id}/pages
func (s *HTTPServer) handlePutPages(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("employees_pages")

	var req PagesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.employees.GrantPages(r.Context(), r.PathValue("id"), req.Pages); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/employees/{id}/block
func (s *HTTPServer) handleBlockEmployee(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("employees_block")

	var req BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.employees.Block(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/employees/{id}/block
func (s *HTTPServer) handleUnblockEmployee(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("employees_unblock")

	if err := s.employees.Unblock(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/employees/{id}
func (s *HTTPServer) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("employees_delete")

	if err := s.employees.RemoveEmployee(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
