package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"omnidesk/internal/model"
)

// GetEmployee returns an employee by user ID.
func (db *DB) GetEmployee(ctx context.Context, userID string) (*model.Employee, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, name, role, pages, is_blocked, block_reason, created_at, updated_at
		FROM employees WHERE user_id = ?`, userID)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// UpsertEmployee creates or updates an employee, keeping created_at.
func (db *DB) UpsertEmployee(ctx context.Context, e *model.Employee) error {
	if e == nil || e.UserID == "" {
		return fmt.Errorf("employee user id is required")
	}
	if e.Role == "" {
		e.Role = model.RoleEmployee
	}
	if !e.Role.Valid() {
		return fmt.Errorf("invalid role %q", e.Role)
	}
	for _, p := range e.Pages {
		if !p.Valid() {
			return fmt.Errorf("invalid page %q", p)
		}
	}

	now := formatTS(time.Now())
	_, err := db.ExecContext(ctx, `
		INSERT INTO employees (user_id, name, role, pages, is_blocked, block_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM employees WHERE user_id = ?), ?), ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			pages = excluded.pages,
			is_blocked = excluded.is_blocked,
			block_reason = excluded.block_reason,
			updated_at = excluded.updated_at`,
		e.UserID, nullString(e.Name), string(e.Role), joinPages(e.Pages), e.IsBlocked, nullString(e.BlockReason),
		e.UserID, now, now,
	)
	return err
}

// BlockEmployee sets or clears the blocked flag.
func (db *DB) BlockEmployee(ctx context.Context, userID string, blocked bool, reason string) error {
	if !blocked {
		reason = ""
	}
	res, err := db.ExecContext(ctx,
		`UPDATE employees SET is_blocked = ?, block_reason = ?, updated_at = ? WHERE user_id = ?`,
		blocked, nullString(reason), formatTS(time.Now()), userID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RemoveEmployee deletes an employee.
func (db *DB) RemoveEmployee(ctx context.Context, userID string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM employees WHERE user_id = ?", userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListEmployees returns all employees ordered by user ID.
func (db *DB) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, name, role, pages, is_blocked, block_reason, created_at, updated_at
		FROM employees ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEmployee(s scanner) (*model.Employee, error) {
	var (
		e                   model.Employee
		name, pages, reason sql.NullString
		role                string
		created, updated    string
	)
	if err := s.Scan(&e.UserID, &name, &role, &pages, &e.IsBlocked, &reason, &created, &updated); err != nil {
		return nil, err
	}
	e.Name = name.String
	e.Role = model.Role(role)
	e.Pages = splitPages(pages.String)
	e.BlockReason = reason.String
	e.CreatedAt, _ = parseTS(created)
	e.UpdatedAt, _ = parseTS(updated)
	return &e, nil
}

func joinPages(pages []model.Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func splitPages(s string) []model.Page {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	pages := make([]model.Page, 0, len(parts))
	for _, p := range parts {
		pages = append(pages, model.Page(p))
	}
	return pages
}
