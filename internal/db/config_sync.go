package db

import (
	"context"
	"fmt"

	"omnidesk/internal/config"
)

// SyncScheduleFromConfig applies business.yaml to the database: the weekly
// schedule is replaced and holidays and special hours are upserted as
// overrides. Overrides created through the API are left untouched.
func (db *DB) SyncScheduleFromConfig(ctx context.Context, cfg *config.BusinessConfig) error {
	if cfg == nil {
		return fmt.Errorf("business config is nil")
	}

	if len(cfg.Schedule) > 0 {
		if err := db.ReplaceWeeklySchedule(ctx, cfg.Schedule); err != nil {
			return fmt.Errorf("sync weekly schedule: %w", err)
		}
	}

	for _, o := range cfg.Overrides() {
		var err error
		if o.IsDayOff {
			err = db.SetDayOff(ctx, o.Date, o.Reason)
		} else {
			err = db.SetSpecialHours(ctx, o.Date, o.StartTime, o.EndTime, o.Reason)
		}
		if err != nil {
			return fmt.Errorf("sync override %s: %w", o.Date, err)
		}
	}
	return nil
}
