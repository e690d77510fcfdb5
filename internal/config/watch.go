package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchBusiness loads business.yaml, hands it to onUpdate and then polls the
// file's modification time, reloading it on change until ctx is done.
// A file that fails to load or validate keeps the previous config in effect.
func WatchBusiness(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*BusinessConfig)) error {
	if path == "" {
		path = "configs/business.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadBusinessConfig(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	onUpdate(cfg)

	w := &businessWatcher{path: path, lastMod: info.ModTime(), onUpdate: onUpdate, logger: zerolog.Nop()}
	if logger != nil {
		w.logger = logger.With().Str("component", "business-watch").Str("path", path).Logger()
	}
	go w.run(ctx, interval)
	return nil
}

type businessWatcher struct {
	path     string
	lastMod  time.Time
	onUpdate func(*BusinessConfig)
	logger   zerolog.Logger
}

func (w *businessWatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reloads the file when its mod time moved forward.
func (w *businessWatcher) poll() bool {
	info, err := os.Stat(w.path)
	if err != nil || !info.ModTime().After(w.lastMod) {
		return false
	}
	cfg, err := LoadBusinessConfig(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Business config reload failed, keeping previous")
		return false
	}
	w.lastMod = info.ModTime()
	w.logger.Info().Str("summary", cfg.String()).Msg("Business config reloaded")
	w.onUpdate(cfg)
	return true
}
