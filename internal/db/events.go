package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"omnidesk/internal/model"
)

const eventColumns = `id, title, client_name, client_phone, starts_at, ends_at,
	duration_minutes, timezone, status, comment, created_at, updated_at`

// CreateEvent inserts an event, assigning an ID and timestamps. An empty
// status becomes scheduled.
func (db *DB) CreateEvent(ctx context.Context, e *model.CalendarEvent) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if e.StartsAtUTC.IsZero() {
		return fmt.Errorf("event start is required")
	}
	if e.Status == "" {
		e.Status = model.StatusScheduled
	}
	if !e.Status.Valid() {
		return fmt.Errorf("invalid status %q", e.Status)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	now := time.Now().UTC().Truncate(time.Second)
	e.CreatedAt, e.UpdatedAt = now, now

	var endsAt sql.NullString
	if !e.EndsAtUTC.IsZero() {
		endsAt = sql.NullString{String: formatTS(e.EndsAtUTC), Valid: true}
	}
	var duration sql.NullInt64
	if e.DurationMinutes != nil {
		duration = sql.NullInt64{Int64: int64(*e.DurationMinutes), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullString(e.Title), nullString(e.ClientName), nullString(e.ClientPhone),
		formatTS(e.StartsAtUTC), endsAt, duration, nullString(e.Timezone),
		string(e.Status), nullString(e.Comment), formatTS(now), formatTS(now),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (db *DB) GetEvent(ctx context.Context, id string) (*model.CalendarEvent, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListEventsBetween returns events starting in [from, to), ordered by start.
func (db *DB) ListEventsBetween(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE starts_at >= ? AND starts_at < ?
		ORDER BY starts_at, id`,
		formatTS(from), formatTS(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.CalendarEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateEventStatus changes the status of an event and stamps updated_at
// with at.
func (db *DB) UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE calendar_events SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTS(at), id,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteEvent removes an event.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvent(s scanner) (*model.CalendarEvent, error) {
	var (
		e                                 model.CalendarEvent
		title, client, phone, tz, comment sql.NullString
		startsAt, created, updated        string
		endsAt                            sql.NullString
		duration                          sql.NullInt64
		status                            string
	)
	if err := s.Scan(&e.ID, &title, &client, &phone, &startsAt, &endsAt,
		&duration, &tz, &status, &comment, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if e.StartsAtUTC, err = parseTS(startsAt); err != nil {
		return nil, fmt.Errorf("event %s: bad starts_at: %w", e.ID, err)
	}
	if endsAt.Valid {
		if e.EndsAtUTC, err = parseTS(endsAt.String); err != nil {
			return nil, fmt.Errorf("event %s: bad ends_at: %w", e.ID, err)
		}
	}
	if duration.Valid {
		e.DurationMinutes = model.Minutes(int(duration.Int64))
	}
	e.Title = title.String
	e.ClientName = client.String
	e.ClientPhone = phone.String
	e.Timezone = tz.String
	e.Status = model.EventStatus(status)
	e.Comment = comment.String
	e.CreatedAt, _ = parseTS(created)
	e.UpdatedAt, _ = parseTS(updated)
	return &e, nil
}
