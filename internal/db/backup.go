package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const backupPrefix = "calendar_"

// Backup writes a consistent copy of the database into dir and returns its
// path.
func (db *DB) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	dest := filepath.Join(dir, backupPrefix+time.Now().Format("20060102_150405.000")+".db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return dest, nil
}

// CleanupBackups removes backups in dir older than retention. It returns the
// number of removed files.
func CleanupBackups(dir string, retention time.Duration, now time.Time) (int, error) {
	if retention <= 0 {
		return 0, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := now.Add(-retention)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), backupPrefix) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// BackupScheduler runs database backups on a cron schedule.
type BackupScheduler struct {
	db        *DB
	dir       string
	retention time.Duration
	cron      *cron.Cron
	logger    zerolog.Logger
}

// NewBackupScheduler parses a standard five-field cron expression.
func NewBackupScheduler(db *DB, expr, dir string, retentionDays int, logger *zerolog.Logger) (*BackupScheduler, error) {
	s := &BackupScheduler{
		db:        db,
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		cron:      cron.New(),
		logger:    zerolog.Nop(),
	}
	if logger != nil {
		s.logger = logger.With().Str("component", "backup").Logger()
	}
	if _, err := s.cron.AddFunc(expr, s.runOnce); err != nil {
		return nil, fmt.Errorf("parse backup schedule %q: %w", expr, err)
	}
	return s, nil
}

// Start runs the scheduler until ctx is done.
func (s *BackupScheduler) Start(ctx context.Context) {
	s.logger.Info().Str("dir", s.dir).Msg("Backup scheduler started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Backup scheduler stopped")
}

// Next returns the next scheduled run after now.
func (s *BackupScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *BackupScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	path, err := s.db.Backup(ctx, s.dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled backup failed")
		return
	}
	s.logger.Info().Str("path", path).Msg("Backup completed")

	removed, err := CleanupBackups(s.dir, s.retention, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Backup cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Old backups deleted")
	}
}
