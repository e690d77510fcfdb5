package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"omnidesk/internal/access"
	"omnidesk/internal/api"
	"omnidesk/internal/availability"
	"omnidesk/internal/config"
	"omnidesk/internal/db"
	"omnidesk/internal/events"
	"omnidesk/internal/metrics"
	"omnidesk/internal/notify"
	"omnidesk/internal/service"
)

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// .env is optional.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if len(cfg.API.Keys) == 0 {
		logger.Fatal().Msg("set api.keys in config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(&logger)
	calendar := service.NewCalendarService(database, bus, service.Options{
		Timezone:    cfg.Calendar.Timezone,
		SlotMinutes: cfg.Calendar.SlotMinutes,
		Rules: availability.BookingRules{
			MinAdvance: cfg.BookingMinAdvance(),
			MaxAdvance: cfg.BookingMaxAdvance(),
		},
	}, &logger)

	err = config.WatchBusiness(ctx, cfg.Calendar.BusinessConfigPath, cfg.WatchInterval(), &logger, func(bc *config.BusinessConfig) {
		syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := database.SyncScheduleFromConfig(syncCtx, bc); err != nil {
			logger.Error().Err(err).Msg("failed to sync business config")
			return
		}
		calendar.ApplyBusinessConfig(bc)
		logger.Info().Str("config", bc.String()).Msg("business config applied")
	})
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("path", cfg.Calendar.BusinessConfigPath).Msg("business config not found, using stored schedule")
	} else if err != nil {
		logger.Fatal().Err(err).Msg("failed to load business config")
	}

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.NotifyChats) > 0 {
		bot, err := notify.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		notifier := notify.NewNotifier(bot, notify.Config{
			Chats:         cfg.Telegram.NotifyChats,
			RatePerSecond: cfg.Telegram.RatePerSecond,
			Burst:         cfg.Telegram.RateBurst,
		}, &logger)
		notifier.Subscribe(bus)
		go notifier.Run(ctx)
		logger.Info().Int("chats", len(cfg.Telegram.NotifyChats)).Msg("telegram notifications enabled")
	}

	if cfg.Backup.Enabled {
		scheduler, err := db.NewBackupScheduler(database, cfg.Backup.Schedule, cfg.Backup.Path, cfg.Backup.RetentionDays, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("backup scheduler error")
		}
		go scheduler.Start(ctx)
		logger.Info().Time("next", scheduler.Next()).Msg("backups scheduled")
	}

	pingers := map[string]api.Pinger{"sqlite": database}
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pingers["redis"] = redisPinger{rdb: rdb}
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	guard := access.NewService(database, cfg.Owners, logger)
	server := api.NewHTTPServer(api.Config{Address: cfg.HTTP.Address, APIKeys: cfg.API.Keys}, calendar, guard, pingers, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown error")
		}
	}()

	logger.Info().Str("timezone", cfg.Calendar.Timezone).Msg("calendar service started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("calendar service stopped")
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
