package timekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/model"
)

func TestParseTimeToMinutes(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"12:05", 725, true},
		{"9:30", 0, false},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"12:5", 0, false},
		{"12:05:00", 0, false},
		{" 12:05", 0, false},
		{"ab:cd", 0, false},
		{"12-05", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTimeToMinutes(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMinutesToTime(t *testing.T) {
	assert.Equal(t, "00:00", FormatMinutesToTime(0))
	assert.Equal(t, "09:05", FormatMinutesToTime(545))
	assert.Equal(t, "23:59", FormatMinutesToTime(1439))
}

func TestTimeRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m++ {
		got, ok := ParseTimeToMinutes(FormatMinutesToTime(m))
		require.True(t, ok, m)
		require.Equal(t, m, got)
	}
}

func TestDateAndTimeKeys(t *testing.T) {
	// 2026-03-01 23:30 UTC is already March 2nd in Tokyo (UTC+9).
	instant := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-01", DateKeyInTimezone(instant, "UTC"))
	assert.Equal(t, "23:30", TimeKeyInTimezone(instant, "UTC"))
	assert.Equal(t, "2026-03-02", DateKeyInTimezone(instant, "Asia/Tokyo"))
	assert.Equal(t, "08:30", TimeKeyInTimezone(instant, "Asia/Tokyo"))
	assert.Equal(t, "2026-03-01", DateKeyInTimezone(instant, ""))
}

func TestTimeKeyFollowsDST(t *testing.T) {
	// Berlin is UTC+1 in winter and UTC+2 in summer.
	winter := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	summer := time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "10:00", TimeKeyInTimezone(winter, "Europe/Berlin"))
	assert.Equal(t, "11:00", TimeKeyInTimezone(summer, "Europe/Berlin"))
}

func TestKeysInvalidInput(t *testing.T) {
	assert.Empty(t, DateKeyInTimezone(time.Time{}, "UTC"))
	assert.Empty(t, TimeKeyInTimezone(time.Time{}, "UTC"))

	instant := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Empty(t, DateKeyInTimezone(instant, "Mars/Olympus"))
	assert.Empty(t, TimeKeyInTimezone(instant, "Mars/Olympus"))
}

func TestWeekdayOf(t *testing.T) {
	tests := []struct {
		dateKey string
		want    model.Weekday
	}{
		{"2026-03-02", model.Monday},
		{"2026-03-04", model.Wednesday},
		{"2026-03-07", model.Saturday},
		{"2026-03-08", model.Sunday},
		{"2024-02-29", model.Thursday},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekdayOf(tt.dateKey, "Europe/Berlin"), tt.dateKey)
	}
}

func TestWeekdayOfFallsBackToMonday(t *testing.T) {
	for _, key := range []string{"", "2026-13-01", "2026-02-30", "02.03.2026", "2026-3-7"} {
		wd, ok := ParseWeekday(key, "UTC")
		assert.False(t, ok, key)
		assert.Equal(t, model.Monday, wd, key)
		assert.Equal(t, model.Monday, WeekdayOf(key, "UTC"), key)
	}

	// An unknown timezone does not change the calendar weekday.
	assert.Equal(t, model.Sunday, WeekdayOf("2026-03-08", "Nowhere/Land"))
}

func TestParseInstant(t *testing.T) {
	got := ParseInstant("2026-03-02T10:00:00+03:00")
	assert.True(t, got.Equal(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)))
	assert.True(t, ParseInstant("yesterday").IsZero())
}

func TestLoadLocationCaches(t *testing.T) {
	loc1, ok := LoadLocation("America/New_York")
	require.True(t, ok)
	loc2, ok := LoadLocation("America/New_York")
	require.True(t, ok)
	assert.Same(t, loc1, loc2)

	utc, ok := LoadLocation("")
	assert.True(t, ok)
	assert.Equal(t, time.UTC, utc)
}
