// Package notify sends booking notifications to manager Telegram chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"omnidesk/internal/events"
	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
	"omnidesk/internal/slots"
	"omnidesk/internal/timekey"
)

// BotAPI is the subset of tgbotapi.BotAPI the notifier needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBotAPI connects to Telegram.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Config controls the notifier.
type Config struct {
	Chats         []int64
	RatePerSecond float64
	Burst         int
	SendTimeout   time.Duration
	MaxRetryAfter time.Duration
	// QueueSize bounds messages waiting for Run. Messages beyond it are dropped.
	QueueSize int
}

// ErrQueueFull is returned when a message cannot be queued.
var ErrQueueFull = errors.New("notification queue is full")

// Notifier posts calendar changes to manager chats.
type Notifier struct {
	bot     BotAPI
	cfg     Config
	limiter *rate.Limiter
	queue   chan string
	logger  zerolog.Logger
}

// NewNotifier creates a notifier. Sends to all chats share one rate limit.
// Messages from the bus are delivered by Run.
func NewNotifier(bot BotAPI, cfg Config, logger *zerolog.Logger) *Notifier {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	n := &Notifier{
		bot:     bot,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		queue:   make(chan string, cfg.QueueSize),
		logger:  zerolog.Nop(),
	}
	if logger != nil {
		n.logger = logger.With().Str("component", "notify").Logger()
	}
	return n
}

// Subscribe hooks the notifier to calendar events on the bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventCreated, n.handle)
	bus.Subscribe(events.EventStatusChanged, n.handle)
}

func (n *Notifier) handle(e events.Event) error {
	p, err := e.DecodeCalendar()
	if err != nil {
		return err
	}

	var text string
	switch e.Type {
	case events.EventCreated:
		text = FormatCreated(p)
	case events.EventStatusChanged:
		text = FormatStatusChanged(p)
	default:
		return nil
	}
	return n.Enqueue(text)
}

// Enqueue queues text for delivery without waiting for Telegram.
func (n *Notifier) Enqueue(text string) error {
	select {
	case n.queue <- text:
		return nil
	default:
		metrics.IncNotification("dropped")
		return ErrQueueFull
	}
}

// Run delivers queued messages until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info().Int("chats", len(n.cfg.Chats)).Msg("Notifier started")
	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Int("pending", len(n.queue)).Msg("Notifier stopped")
			return
		case text := <-n.queue:
			sendCtx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
			_ = n.Broadcast(sendCtx, text)
			cancel()
		}
	}
}

// Broadcast sends text to every configured chat and returns the joined
// errors of failed chats.
func (n *Notifier) Broadcast(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.cfg.Chats {
		if err := n.send(ctx, chatID, text); err != nil {
			metrics.IncNotification("failed")
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Notification failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		metrics.IncNotification("sent")
	}
	return errors.Join(errs...)
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	for attempt := 0; ; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}

		// Telegram answers 429 with a retry_after hint; honor it once.
		var tgErr *tgbotapi.Error
		if attempt > 0 || !errors.As(err, &tgErr) || tgErr.RetryAfter <= 0 {
			return err
		}
		wait := time.Duration(tgErr.RetryAfter) * time.Second
		if wait > n.cfg.MaxRetryAfter {
			return err
		}
		n.logger.Info().Dur("retry_after", wait).Int64("chat_id", chatID).Msg("Rate limited by Telegram, waiting")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// FormatCreated renders a new booking summary.
func FormatCreated(p events.CalendarPayload) string {
	var b strings.Builder
	b.WriteString("New booking\n")
	writeEventLines(&b, p)
	return b.String()
}

// FormatStatusChanged renders a status transition.
func FormatStatusChanged(p events.CalendarPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking status: %s -> %s\n", statusLabel(p.PreviousStatus), statusLabel(p.Event.Status))
	writeEventLines(&b, p)
	return b.String()
}

func writeEventLines(b *strings.Builder, p events.CalendarPayload) {
	e := p.Event
	tz := e.TimezoneOr(p.Timezone)
	fmt.Fprintf(b, "Date: %s %s (%s)\n",
		timekey.DateKeyInTimezone(e.StartsAtUTC, tz), timekey.TimeKeyInTimezone(e.StartsAtUTC, tz), orUTC(tz))
	if !e.EndsAtUTC.IsZero() || e.DurationMinutes != nil {
		fmt.Fprintf(b, "Duration: %s\n", slots.FormatDuration(int(e.Duration(0)/time.Minute)))
	}
	if e.Title != "" {
		fmt.Fprintf(b, "Title: %s\n", e.Title)
	}
	if e.ClientName != "" {
		fmt.Fprintf(b, "Client: %s\n", e.ClientName)
	}
	if e.ClientPhone != "" {
		fmt.Fprintf(b, "Phone: %s\n", e.ClientPhone)
	}
	if e.Comment != "" {
		fmt.Fprintf(b, "Comment: %s\n", e.Comment)
	}
}

func statusLabel(s model.EventStatus) string {
	if s == "" {
		return "none"
	}
	return strings.ReplaceAll(string(s), "_", " ")
}

func orUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
