package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"omnidesk/internal/model"
)

const (
	icsProductID = "-//omnidesk//calendar//EN"
	icsDomain    = "calendar.omnidesk"

	propTimezoneName = "X-WR-TIMEZONE"
)

// WriteICS writes events as an iCalendar feed named after tz. Canceled
// events are exported with STATUS:CANCELLED so subscribers drop them.
func WriteICS(out io.Writer, events []model.CalendarEvent, tz string, slotMinutes int, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	if tz != "" {
		prop := ical.NewProp(propTimezoneName)
		prop.Value = tz
		cal.Props.Set(prop)
	}

	stamp := now.UTC()
	for _, e := range events {
		cal.Children = append(cal.Children, icsEvent(e, slotMinutes, stamp).Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	_, err := buf.WriteTo(out)
	return err
}

func icsEvent(e model.CalendarEvent, slotMinutes int, stamp time.Time) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", e.ID, icsDomain))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ev.Props.SetDateTime(ical.PropDateTimeStart, e.StartsAtUTC.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, e.End(slotMinutes).UTC())
	ev.Props.SetText(ical.PropSummary, summary(e))
	ev.Props.SetText(ical.PropStatus, icsStatus(e.Status))

	var desc []string
	if e.ClientPhone != "" {
		desc = append(desc, "Phone: "+e.ClientPhone)
	}
	if e.Comment != "" {
		desc = append(desc, e.Comment)
	}
	if len(desc) > 0 {
		ev.Props.SetText(ical.PropDescription, strings.Join(desc, "\n"))
	}
	return ev
}

func summary(e model.CalendarEvent) string {
	switch {
	case e.Title != "" && e.ClientName != "":
		return e.Title + " - " + e.ClientName
	case e.Title != "":
		return e.Title
	case e.ClientName != "":
		return e.ClientName
	default:
		return "Booking"
	}
}

func icsStatus(s model.EventStatus) string {
	switch s {
	case model.StatusConfirmed, model.StatusCompleted:
		return "CONFIRMED"
	case model.StatusCanceled:
		return "CANCELLED"
	default:
		return "TENTATIVE"
	}
}
