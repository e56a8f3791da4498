//go:build unit

package calendar_test

import (
	"testing"
	"time"

	"consult-engine/internal/domain/calendar"
	"consult-engine/internal/domain/slot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday 2026-03-10.
var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func weekdayCalendar(t *testing.T, opts ...func(*[]calendar.Override, *[]calendar.BlockedPeriod)) *calendar.Calendar {
	t.Helper()
	var overrides []calendar.Override
	var blocked []calendar.BlockedPeriod
	for _, opt := range opts {
		opt(&overrides, &blocked)
	}
	// 09:00-12:00 and 13:00-17:00 every Tuesday.
	cal, err := calendar.New(uuid.New(), []calendar.Window{
		{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 9 * 60, EndMin: 12 * 60}},
		{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 13 * 60, EndMin: 17 * 60}},
	}, overrides, blocked)
	require.NoError(t, err)
	return cal
}

func TestCalendarNew(t *testing.T) {
	id := uuid.New()

	t.Run("overlapping weekly windows are rejected", func(t *testing.T) {
		_, err := calendar.New(id, []calendar.Window{
			{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 540, EndMin: 720}},
			{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 700, EndMin: 800}},
		}, nil, nil)
		assert.ErrorIs(t, err, calendar.ErrOverlappingWindow)
	})

	t.Run("same span on different weekdays is fine", func(t *testing.T) {
		_, err := calendar.New(id, []calendar.Window{
			{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 540, EndMin: 720}},
			{Weekday: time.Wednesday, Span: calendar.Span{StartMin: 540, EndMin: 720}},
		}, nil, nil)
		assert.NoError(t, err)
	})

	t.Run("inverted span is rejected", func(t *testing.T) {
		_, err := calendar.New(id, []calendar.Window{
			{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 720, EndMin: 540}},
		}, nil, nil)
		assert.ErrorIs(t, err, calendar.ErrInvalidSpan)
	})

	t.Run("span past midnight is rejected", func(t *testing.T) {
		_, err := calendar.New(id, []calendar.Window{
			{Weekday: time.Tuesday, Span: calendar.Span{StartMin: 1400, EndMin: 1500}},
		}, nil, nil)
		assert.ErrorIs(t, err, calendar.ErrInvalidSpan)
	})

	t.Run("inverted blocked period is rejected", func(t *testing.T) {
		_, err := calendar.New(id, nil, nil, []calendar.BlockedPeriod{
			{From: day.Add(2 * time.Hour), To: day.Add(time.Hour)},
		})
		assert.ErrorIs(t, err, calendar.ErrInvalidPeriod)
	})
}

func TestCalendarSpansOn(t *testing.T) {
	t.Run("weekly windows apply on their weekday", func(t *testing.T) {
		cal := weekdayCalendar(t)
		spans := cal.SpansOn(day)
		require.Len(t, spans, 2)
		assert.Equal(t, 9*60, spans[0].StartMin)

		assert.Empty(t, cal.SpansOn(day.AddDate(0, 0, 1)))
	})

	t.Run("override replaces the weekly windows", func(t *testing.T) {
		cal := weekdayCalendar(t, func(o *[]calendar.Override, _ *[]calendar.BlockedPeriod) {
			*o = append(*o, calendar.Override{
				Date:  day,
				Spans: []calendar.Span{{StartMin: 10 * 60, EndMin: 11 * 60}},
			})
		})
		spans := cal.SpansOn(day)
		require.Len(t, spans, 1)
		assert.Equal(t, 10*60, spans[0].StartMin)
	})

	t.Run("empty override closes the day", func(t *testing.T) {
		cal := weekdayCalendar(t, func(o *[]calendar.Override, _ *[]calendar.BlockedPeriod) {
			*o = append(*o, calendar.Override{Date: day})
		})
		assert.Empty(t, cal.SpansOn(day))
	})
}

func TestCalendarSlotsBetween(t *testing.T) {
	t.Run("materializes duration-stepped slots inside windows", func(t *testing.T) {
		cal := weekdayCalendar(t)
		keys := cal.SlotsBetween(day, day.AddDate(0, 0, 1), 30*time.Minute)

		// 09:00-12:00 yields 6 thirty-minute slots, 13:00-17:00 yields 8.
		require.Len(t, keys, 14)
		assert.Equal(t, day.Add(9*time.Hour), keys[0].StartAt())
		last := keys[len(keys)-1]
		assert.Equal(t, day.Add(16*time.Hour+30*time.Minute), last.StartAt())
	})

	t.Run("clamps to the requested range", func(t *testing.T) {
		cal := weekdayCalendar(t)
		keys := cal.SlotsBetween(day.Add(10*time.Hour), day.Add(11*time.Hour), 30*time.Minute)
		require.Len(t, keys, 2)
		assert.Equal(t, day.Add(10*time.Hour), keys[0].StartAt())
	})

	t.Run("skips blocked periods", func(t *testing.T) {
		cal := weekdayCalendar(t, func(_ *[]calendar.Override, b *[]calendar.BlockedPeriod) {
			*b = append(*b, calendar.BlockedPeriod{
				From: day.Add(9 * time.Hour),
				To:   day.Add(12 * time.Hour),
			})
		})
		keys := cal.SlotsBetween(day, day.AddDate(0, 0, 1), 30*time.Minute)
		require.Len(t, keys, 8)
		assert.Equal(t, day.Add(13*time.Hour), keys[0].StartAt())
	})

	t.Run("slot longer than the window yields nothing", func(t *testing.T) {
		cal := weekdayCalendar(t)
		keys := cal.SlotsBetween(day, day.AddDate(0, 0, 1), 5*time.Hour)
		assert.Empty(t, keys)
	})
}

func TestCalendarContains(t *testing.T) {
	cal := weekdayCalendar(t, func(_ *[]calendar.Override, b *[]calendar.BlockedPeriod) {
		*b = append(*b, calendar.BlockedPeriod{
			From: day.Add(14 * time.Hour),
			To:   day.Add(15 * time.Hour),
		})
	})

	key := func(t *testing.T, start time.Time, d time.Duration) slot.Key {
		t.Helper()
		k, err := slot.NewKey(cal.ConsultantID(), start, d)
		require.NoError(t, err)
		return k
	}

	tests := []struct {
		name  string
		start time.Time
		d     time.Duration
		want  bool
	}{
		{name: "inside a window", start: day.Add(10 * time.Hour), d: 30 * time.Minute, want: true},
		{name: "fills a window exactly", start: day.Add(9 * time.Hour), d: 3 * time.Hour, want: true},
		{name: "outside any window", start: day.Add(8 * time.Hour), d: 30 * time.Minute, want: false},
		{name: "straddles a window boundary", start: day.Add(11*time.Hour + 45*time.Minute), d: 30 * time.Minute, want: false},
		{name: "overlaps a blocked period", start: day.Add(13*time.Hour + 45*time.Minute), d: 30 * time.Minute, want: false},
		{name: "wrong weekday", start: day.AddDate(0, 0, 1).Add(10 * time.Hour), d: 30 * time.Minute, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Contains(key(t, tt.start, tt.d)))
		})
	}
}
