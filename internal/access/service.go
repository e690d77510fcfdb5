// Package access decides which dashboard pages an account may open.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"omnidesk/internal/db"
	"omnidesk/internal/model"
)

// ErrInvalidEmployee is returned for employee records that cannot be saved.
var ErrInvalidEmployee = errors.New("invalid employee")

// EmployeeStore persists employees.
type EmployeeStore interface {
	GetEmployee(ctx context.Context, userID string) (*model.Employee, error)
	UpsertEmployee(ctx context.Context, e *model.Employee) error
	BlockEmployee(ctx context.Context, userID string, blocked bool, reason string) error
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	RemoveEmployee(ctx context.Context, userID string) error
}

// Service checks page permissions.
type Service struct {
	store  EmployeeStore
	owners map[string]bool
	logger zerolog.Logger
}

// NewService creates a new access control service. owners always have
// full access, even without an employee record.
func NewService(store EmployeeStore, owners []string, logger zerolog.Logger) *Service {
	s := &Service{
		store:  store,
		owners: make(map[string]bool, len(owners)),
		logger: logger.With().Str("component", "access").Logger(),
	}
	for _, id := range owners {
		s.owners[id] = true
	}
	return s
}

// CanAccessPage reports whether userID may open page. Owners and admins may
// open every page; employees only the pages granted to them. Blocked and
// unknown users are denied.
func (s *Service) CanAccessPage(ctx context.Context, userID string, page model.Page) (bool, error) {
	ok, _, err := s.check(ctx, userID, page)
	return ok, err
}

// RequirePage returns *AccessDeniedError when userID may not open page.
func (s *Service) RequirePage(ctx context.Context, userID string, page model.Page) error {
	ok, reason, err := s.check(ctx, userID, page)
	if err != nil {
		return fmt.Errorf("checking access: %w", err)
	}
	if !ok {
		s.logger.Debug().Str("user_id", userID).Str("page", string(page)).Str("reason", reason).Msg("access denied")
		return &AccessDeniedError{Reason: reason}
	}
	return nil
}

func (s *Service) check(ctx context.Context, userID string, page model.Page) (bool, string, error) {
	if userID == "" {
		return false, "user id is required", nil
	}
	if s.owners[userID] {
		return true, "", nil
	}

	emp, err := s.store.GetEmployee(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return false, "unknown user", nil
	}
	if err != nil {
		return false, "", err
	}

	switch {
	case emp.IsBlocked:
		if emp.BlockReason != "" {
			return false, "access blocked: " + emp.BlockReason, nil
		}
		return false, "access blocked", nil
	case emp.Role == model.RoleOwner || emp.Role == model.RoleAdmin:
		return true, "", nil
	case emp.HasPage(page):
		return true, "", nil
	default:
		return false, fmt.Sprintf("no access to %s", page), nil
	}
}

// ListEmployees returns every stored employee.
func (s *Service) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	list, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Employee{}
	}
	return list, nil
}

// SaveEmployee creates or updates the name, role and pages of an employee.
// The blocked state of an existing record is kept.
func (s *Service) SaveEmployee(ctx context.Context, e *model.Employee) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidEmployee)
	}
	if e.Role == "" {
		e.Role = model.RoleEmployee
	}
	if !e.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidEmployee, e.Role)
	}
	if err := validatePages(e.Pages); err != nil {
		return err
	}

	existing, err := s.store.GetEmployee(ctx, e.UserID)
	switch {
	case err == nil:
		e.IsBlocked, e.BlockReason = existing.IsBlocked, existing.BlockReason
	case !errors.Is(err, db.ErrNotFound):
		return err
	}
	if err := s.store.UpsertEmployee(ctx, e); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", e.UserID).
		Str("role", string(e.Role)).
		Msg("employee saved")
	return nil
}

// RemoveEmployee deletes the record of userID. Owners keep their access.
func (s *Service) RemoveEmployee(ctx context.Context, userID string) error {
	if err := s.store.RemoveEmployee(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("employee removed")
	return nil
}

func validatePages(pages []model.Page) error {
	for _, p := range pages {
		if !p.Valid() {
			return fmt.Errorf("%w: unknown page %q", ErrInvalidEmployee, p)
		}
	}
	return nil
}

// GrantPages replaces the pages of an employee, creating the record when
// it does not exist.
func (s *Service) GrantPages(ctx context.Context, userID string, pages []model.Page) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidEmployee)
	}
	if err := validatePages(pages); err != nil {
		return err
	}
	emp, err := s.store.GetEmployee(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		emp = &model.Employee{UserID: userID, Role: model.RoleEmployee}
	} else if err != nil {
		return err
	}

	emp.Pages = pages
	if err := s.store.UpsertEmployee(ctx, emp); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("pages", len(pages)).
		Msg("pages granted")
	return nil
}

// Block denies all access to userID.
func (s *Service) Block(ctx context.Context, userID, reason string) error {
	if s.owners[userID] {
		return fmt.Errorf("%w: owner %s cannot be blocked", ErrInvalidEmployee, userID)
	}
	if err := s.store.BlockEmployee(ctx, userID, true, reason); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("reason", reason).
		Msg("user blocked")
	return nil
}

// Unblock restores access of userID.
func (s *Service) Unblock(ctx context.Context, userID string) error {
	if err := s.store.BlockEmployee(ctx, userID, false, ""); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Msg("user unblocked")
	return nil
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
