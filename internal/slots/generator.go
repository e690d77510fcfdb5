package slots

import (
	"fmt"

	"omnidesk/internal/model"
	"omnidesk/internal/timekey"
)

// SlotCandidate is one bookable window of a day.
type SlotCandidate struct {
	TimeLabel    string `json:"timeLabel"` // "10:00"
	StartMinutes int    `json:"startMinutes"`
	IsBlocked    bool   `json:"isBlocked"`
}

// GenerateSlots enumerates fixed-size slots inside the day's business hours
// in ascending order and marks the ones overlapping a busy range.
//
// A day off, an unparseable schedule, an empty opening window or a
// non-positive slot size all yield no slots. A slot must fit completely
// before closing time.
func GenerateSlots(day model.DaySchedule, slotMinutes int, busy []BusyRange) []SlotCandidate {
	if day.IsDayOff || slotMinutes <= 0 {
		return nil
	}

	start, ok := timekey.ParseTimeToMinutes(day.StartTime)
	if !ok {
		return nil
	}
	end, ok := timekey.ParseTimeToMinutes(day.EndTime)
	if !ok || end <= start {
		return nil
	}

	out := make([]SlotCandidate, 0, (end-start)/slotMinutes)
	for cursor := start; cursor+slotMinutes <= end; cursor += slotMinutes {
		slotEnd := cursor + slotMinutes
		out = append(out, SlotCandidate{
			TimeLabel:    timekey.FormatMinutesToTime(cursor),
			StartMinutes: cursor,
			IsBlocked:    overlapsAny(cursor, slotEnd, busy),
		})
	}
	return out
}

func overlapsAny(start, end int, busy []BusyRange) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// FreeSlots returns only the slots that are not blocked.
func FreeSlots(slots []SlotCandidate) []SlotCandidate {
	var free []SlotCandidate
	for _, s := range slots {
		if !s.IsBlocked {
			free = append(free, s)
		}
	}
	return free
}

// ConsecutiveRuns groups free slots that follow each other without a gap.
func ConsecutiveRuns(slots []SlotCandidate, slotMinutes int) [][]SlotCandidate {
	free := FreeSlots(slots)
	if len(free) == 0 {
		return nil
	}

	var groups [][]SlotCandidate
	current := []SlotCandidate{free[0]}
	for _, s := range free[1:] {
		last := current[len(current)-1]
		if s.StartMinutes == last.StartMinutes+slotMinutes {
			current = append(current, s)
			continue
		}
		groups = append(groups, current)
		current = []SlotCandidate{s}
	}
	return append(groups, current)
}

// CanBookConsecutive reports whether count free slots follow each other
// starting at startMinutes.
func CanBookConsecutive(slots []SlotCandidate, startMinutes, count, slotMinutes int) bool {
	if count <= 0 {
		return false
	}
	return maxFreeRun(slots, startMinutes, slotMinutes) >= count
}

// DurationOptions lists the durations (in minutes) that can be booked from
// startMinutes without hitting a blocked slot or closing time.
func DurationOptions(slots []SlotCandidate, startMinutes, slotMinutes int) []int {
	n := maxFreeRun(slots, startMinutes, slotMinutes)
	if n == 0 {
		return nil
	}
	options := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		options = append(options, i*slotMinutes)
	}
	return options
}

func maxFreeRun(slots []SlotCandidate, startMinutes, slotMinutes int) int {
	idx := -1
	for i, s := range slots {
		if s.StartMinutes == startMinutes {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0
	}

	run := 0
	for i := idx; i < len(slots); i++ {
		if slots[i].IsBlocked {
			break
		}
		if i > idx && slots[i].StartMinutes != slots[i-1].StartMinutes+slotMinutes {
			break
		}
		run++
	}
	return run
}

// FormatDuration renders minutes as "45 min", "1 h" or "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
