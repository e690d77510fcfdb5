// Command calctl inspects and books calendar slots through the calendar API.
//
//	calctl -date 2026-03-02                 free and busy slots of a day
//	calctl -month 2026-03                   month grid with event counts
//	calctl -date 2026-03-02 -book 10:00     book a slot
//	calctl -event <id> -status confirmed    change the status of an event
//	calctl -health                          check that the API is up
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"omnidesk/internal/availability"
	"omnidesk/internal/calapi"
	"omnidesk/internal/calendar"
	"omnidesk/internal/model"
	"omnidesk/internal/service"
	"omnidesk/internal/slots"
	"omnidesk/internal/timekey"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL  = flag.String("url", envOr("CALENDAR_API_URL", "http://localhost:8080"), "calendar API base URL")
		apiKey   = flag.String("key", os.Getenv("CALENDAR_API_KEY"), "API key")
		userID   = flag.String("user", os.Getenv("CALENDAR_USER_ID"), "acting user ID")
		redisURL = flag.String("redis", os.Getenv("CALENDAR_REDIS_ADDR"), "redis address for the month cache")
		date     = flag.String("date", "", "day to show, YYYY-MM-DD")
		month    = flag.String("month", "", "month to show, YYYY-MM")
		book     = flag.String("book", "", "book the slot starting at HH:MM on -date")
		duration = flag.Int("duration", 0, "booking duration in minutes (default: slot length)")
		title    = flag.String("title", "", "booking title")
		client   = flag.String("client", "", "client name")
		phone    = flag.String("phone", "", "client phone")
		eventID  = flag.String("event", "", "event ID for -status")
		status   = flag.String("status", "", "new event status")
		health   = flag.Bool("health", false, "check API health")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	c := calapi.NewClient(strings.TrimRight(*baseURL, "/"), *apiKey, *userID)
	if *redisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisURL})
		defer rdb.Close()
		c.UseRedisCache(rdb, time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch {
	case *health:
		if err = c.HealthCheck(ctx); err == nil {
			fmt.Fprintln(os.Stdout, "ok")
		}
	case *status != "":
		if *eventID == "" {
			logger.Fatal().Msg("-status needs -event")
		}
		err = setStatus(ctx, os.Stdout, c, *eventID, model.EventStatus(*status))
	case *book != "":
		if *date == "" {
			logger.Fatal().Msg("-book needs -date")
		}
		err = bookSlot(ctx, os.Stdout, c, service.NewEventInput{
			SlotRequest: availability.SlotRequest{Date: *date, Time: *book, DurationMinutes: *duration},
			Title:       *title,
			ClientName:  *client,
			ClientPhone: *phone,
		})
	case *date != "":
		err = showDay(ctx, os.Stdout, c, *date, &logger)
	case *month != "":
		err = showMonth(ctx, os.Stdout, c, *month)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("calctl failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// showDay fetches the month payload and computes the day locally.
func showDay(ctx context.Context, w io.Writer, c *calapi.Client, dateKey string, logger *zerolog.Logger) error {
	monthKey, ok := calendar.MonthOf(dateKey)
	if !ok {
		return fmt.Errorf("bad date %q, expected YYYY-MM-DD", dateKey)
	}
	data, err := c.FetchMonth(ctx, monthKey)
	if err != nil {
		return err
	}

	view := availability.NewPlanner(nil, availability.BookingRules{}, logger).DayView(data, dateKey)
	printDay(w, view, data.SlotMinutes)
	return nil
}

func printDay(w io.Writer, view availability.DayView, slotMinutes int) {
	fmt.Fprintf(w, "%s (%s)\n", view.Date, view.Weekday)
	if view.Override != nil && view.Override.Reason != "" {
		fmt.Fprintf(w, "  note: %s\n", view.Override.Reason)
	}
	if view.IsDayOff {
		fmt.Fprintln(w, "  closed")
		return
	}
	if len(view.Slots) == 0 {
		fmt.Fprintln(w, "  no slots")
		return
	}

	for _, s := range view.Slots {
		state := "free"
		if s.IsBlocked {
			state = "busy"
		}
		fmt.Fprintf(w, "  %s  %s\n", s.TimeLabel, state)
	}

	for _, run := range slots.ConsecutiveRuns(view.Slots, slotMinutes) {
		first, last := run[0].StartMinutes, run[len(run)-1].StartMinutes+slotMinutes
		fmt.Fprintf(w, "  free %s-%s (%s)\n",
			timekey.FormatMinutesToTime(first), timekey.FormatMinutesToTime(last), slots.FormatDuration(last-first))
	}
}

func showMonth(ctx context.Context, w io.Writer, c *calapi.Client, monthKey string) error {
	data, err := c.FetchMonth(ctx, monthKey)
	if err != nil {
		return err
	}
	view := availability.NewPlanner(nil, availability.BookingRules{}, nil).MonthView(data, monthKey)
	printMonth(w, view)
	return nil
}

func printMonth(w io.Writer, view availability.MonthView) {
	fmt.Fprintf(w, "%s\n  Mo   Tu   We   Th   Fr   Sa   Su\n", view.Month)
	for i, cell := range view.Grid {
		switch {
		case !cell.IsCurrentMonth:
			fmt.Fprint(w, "  .  ")
		case view.Counts[cell.DateKey] > 0:
			fmt.Fprintf(w, "%3d*%d", cell.DayNumber, min(view.Counts[cell.DateKey], 9))
		default:
			fmt.Fprintf(w, "%3d  ", cell.DayNumber)
		}
		if i%7 == 6 {
			fmt.Fprintln(w)
		}
	}
}

// bookSlot books on the slot grid of the day. The server repeats the check.
func bookSlot(ctx context.Context, w io.Writer, c *calapi.Client, in service.NewEventInput) error {
	view, err := c.FetchDay(ctx, in.Date)
	if err != nil {
		return err
	}
	if err := checkFree(view, in.Time, in.DurationMinutes); err != nil {
		return err
	}

	e, err := c.CreateEvent(ctx, in)
	if calapi.IsConflict(err) {
		return fmt.Errorf("%s %s is already taken", in.Date, in.Time)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "booked %s at %s %s (%s)\n", e.ID, in.Date, in.Time, e.Status)
	return nil
}

func checkFree(view *availability.DayView, hhmm string, durationMinutes int) error {
	start, ok := timekey.ParseTimeToMinutes(hhmm)
	if !ok {
		return fmt.Errorf("bad time %q, expected HH:MM", hhmm)
	}
	if view.IsDayOff {
		return fmt.Errorf("%s is closed", view.Date)
	}
	if view.SlotMinutes <= 0 {
		return nil
	}
	if durationMinutes == 0 {
		durationMinutes = view.SlotMinutes
	}
	count := (durationMinutes + view.SlotMinutes - 1) / view.SlotMinutes
	if !slots.CanBookConsecutive(view.Slots, start, count, view.SlotMinutes) {
		return fmt.Errorf("%s %s is not free for %s", view.Date, hhmm, slots.FormatDuration(durationMinutes))
	}
	return nil
}

func setStatus(ctx context.Context, w io.Writer, c *calapi.Client, id string, status model.EventStatus) error {
	e, err := c.UpdateStatus(ctx, id, status)
	if calapi.IsConflict(err) {
		return fmt.Errorf("event %s cannot be reopened, its time is taken", id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s is now %s\n", e.ID, e.Status)
	return nil
}
