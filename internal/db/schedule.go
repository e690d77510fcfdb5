package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"omnidesk/internal/model"
)

// GetWeeklySchedule returns the stored weekly schedule. Weekdays without a
// row are absent from the map.
func (db *DB) GetWeeklySchedule(ctx context.Context) (model.WeeklySchedule, error) {
	rows, err := db.QueryContext(ctx, `SELECT weekday, is_day_off, start_time, end_time FROM weekly_schedule`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ws := make(model.WeeklySchedule, len(model.Weekdays))
	for rows.Next() {
		var (
			day        string
			s          model.DaySchedule
			start, end sql.NullString
		)
		if err := rows.Scan(&day, &s.IsDayOff, &start, &end); err != nil {
			return nil, err
		}
		s.StartTime = start.String
		s.EndTime = end.String
		ws[model.Weekday(day)] = s
	}
	return ws, rows.Err()
}

// SetDaySchedule creates or replaces the schedule of one weekday.
func (db *DB) SetDaySchedule(ctx context.Context, day model.Weekday, s model.DaySchedule) error {
	return setDaySchedule(ctx, db.DB, day, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setDaySchedule(ctx context.Context, ex execer, day model.Weekday, s model.DaySchedule) error {
	if !day.Valid() {
		return fmt.Errorf("unknown weekday %q", day)
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO weekly_schedule (weekday, is_day_off, start_time, end_time, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(weekday) DO UPDATE SET
			is_day_off = excluded.is_day_off,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`,
		string(day), s.IsDayOff, nullString(s.StartTime), nullString(s.EndTime), formatTS(time.Now()),
	)
	return err
}

// ReplaceWeeklySchedule atomically replaces the whole weekly schedule.
func (db *DB) ReplaceWeeklySchedule(ctx context.Context, ws model.WeeklySchedule) error {
	for day := range ws {
		if !day.Valid() {
			return fmt.Errorf("unknown weekday %q", day)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_schedule`); err != nil {
		return fmt.Errorf("clear weekly schedule: %w", err)
	}
	for _, day := range model.Weekdays {
		s, ok := ws[day]
		if !ok {
			continue
		}
		if err := setDaySchedule(ctx, tx, day, s); err != nil {
			return fmt.Errorf("set %s: %w", day, err)
		}
	}
	return tx.Commit()
}

// GetScheduleOverride returns the override for a date.
func (db *DB) GetScheduleOverride(ctx context.Context, date string) (*model.ScheduleOverride, error) {
	row := db.QueryRowContext(ctx, `
		SELECT date, is_day_off, start_time, end_time, reason, updated_at
		FROM schedule_overrides WHERE date = ?`, date)
	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// UpsertScheduleOverride creates or updates an override for a date.
func (db *DB) UpsertScheduleOverride(ctx context.Context, o *model.ScheduleOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	if _, err := time.Parse("2006-01-02", o.Date); err != nil {
		return fmt.Errorf("invalid override date %q", o.Date)
	}

	o.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	_, err := db.ExecContext(ctx, `
		INSERT INTO schedule_overrides (date, is_day_off, start_time, end_time, reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			is_day_off = excluded.is_day_off,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		o.Date, o.IsDayOff, nullString(o.StartTime), nullString(o.EndTime), nullString(o.Reason), formatTS(o.UpdatedAt),
	)
	return err
}

// SetDayOff marks a specific date as closed.
func (db *DB) SetDayOff(ctx context.Context, date, reason string) error {
	return db.UpsertScheduleOverride(ctx, &model.ScheduleOverride{Date: date, IsDayOff: true, Reason: reason})
}

// SetSpecialHours sets special working hours for a specific date.
func (db *DB) SetSpecialHours(ctx context.Context, date, startTime, endTime, reason string) error {
	return db.UpsertScheduleOverride(ctx, &model.ScheduleOverride{
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		Reason:    reason,
	})
}

// DeleteScheduleOverride removes an override for a specific date.
func (db *DB) DeleteScheduleOverride(ctx context.Context, date string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM schedule_overrides WHERE date = ?", date)
	return err
}

// ListScheduleOverrides returns overrides with from <= date < to, ordered by
// date. Dates are "YYYY-MM-DD"; empty bounds are open.
func (db *DB) ListScheduleOverrides(ctx context.Context, from, to string) ([]model.ScheduleOverride, error) {
	if to == "" {
		to = "9999-12-31"
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, is_day_off, start_time, end_time, reason, updated_at
		FROM schedule_overrides
		WHERE date >= ? AND date < ?
		ORDER BY date`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []model.ScheduleOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	return overrides, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOverride(s scanner) (*model.ScheduleOverride, error) {
	var (
		o                  model.ScheduleOverride
		start, end, reason sql.NullString
		updated            string
	)
	if err := s.Scan(&o.Date, &o.IsDayOff, &start, &end, &reason, &updated); err != nil {
		return nil, err
	}
	o.StartTime = start.String
	o.EndTime = end.String
	o.Reason = reason.String
	o.UpdatedAt, _ = parseTS(updated)
	return &o, nil
}
