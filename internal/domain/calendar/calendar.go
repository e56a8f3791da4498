// Package calendar models consultant availability: weekly recurring windows,
// date-specific overrides and blocked periods. Calendars are immutable value
// objects; live slot state (holds, bookings) is owned by the slot ledger.
package calendar

import (
	"errors"
	"sort"
	"time"

	"consult-engine/internal/domain/slot"

	"github.com/google/uuid"
)

var (
	ErrInvalidSpan       = errors.New("window end must be after start")
	ErrOverlappingWindow = errors.New("availability windows overlap")
	ErrInvalidPeriod     = errors.New("blocked period end must be after start")
)

// Span is a minutes-from-midnight interval within a single day.
type Span struct {
	StartMin int
	EndMin   int
}

func (s Span) valid() bool {
	return s.StartMin >= 0 && s.EndMin <= 24*60 && s.StartMin < s.EndMin
}

func (s Span) overlaps(other Span) bool {
	return s.StartMin < other.EndMin && other.StartMin < s.EndMin
}

// Window is a weekly recurring availability span.
type Window struct {
	Weekday time.Weekday
	Span    Span
}

// Override replaces the weekly windows for one calendar date. An override
// with no spans closes the day.
type Override struct {
	Date  time.Time // date component only, UTC
	Spans []Span
}

// BlockedPeriod removes availability regardless of windows (holidays,
// buffers around other commitments).
type BlockedPeriod struct {
	From time.Time
	To   time.Time
}

type Calendar struct {
	consultantID uuid.UUID
	weekly       []Window
	overrides    map[string]Override // keyed by yyyy-mm-dd
	blocked      []BlockedPeriod
}

func New(consultantID uuid.UUID, weekly []Window, overrides []Override, blocked []BlockedPeriod) (*Calendar, error) {
	byDay := map[time.Weekday][]Span{}
	for _, w := range weekly {
		if !w.Span.valid() {
			return nil, ErrInvalidSpan
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w.Span)
	}
	for _, spans := range byDay {
		if hasOverlap(spans) {
			return nil, ErrOverlappingWindow
		}
	}

	ovr := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		for _, s := range o.Spans {
			if !s.valid() {
				return nil, ErrInvalidSpan
			}
		}
		if hasOverlap(o.Spans) {
			return nil, ErrOverlappingWindow
		}
		ovr[dateKey(o.Date)] = o
	}

	for _, b := range blocked {
		if !b.To.After(b.From) {
			return nil, ErrInvalidPeriod
		}
	}

	return &Calendar{
		consultantID: consultantID,
		weekly:       weekly,
		overrides:    ovr,
		blocked:      blocked,
	}, nil
}

func (c *Calendar) ConsultantID() uuid.UUID { return c.consultantID }

// SpansOn returns the effective availability spans for a date after override
// application.
func (c *Calendar) SpansOn(date time.Time) []Span {
	if o, ok := c.overrides[dateKey(date)]; ok {
		return sortedSpans(o.Spans)
	}
	var spans []Span
	for _, w := range c.weekly {
		if w.Weekday == date.Weekday() {
			spans = append(spans, w.Span)
		}
	}
	return sortedSpans(spans)
}

// SlotsBetween materializes candidate slot keys of the given duration inside
// [from, to), stepping by duration, skipping blocked periods. The ledger
// subtracts live holds and bookings afterwards.
func (c *Calendar) SlotsBetween(from, to time.Time, duration time.Duration) []slot.Key {
	var keys []slot.Key
	from = from.UTC()
	to = to.UTC()

	for day := truncateDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, span := range c.SpansOn(day) {
			start := day.Add(time.Duration(span.StartMin) * time.Minute)
			end := day.Add(time.Duration(span.EndMin) * time.Minute)
			for s := start; !s.Add(duration).After(end); s = s.Add(duration) {
				if s.Before(from) || s.Add(duration).After(to) {
					continue
				}
				if c.isBlocked(s, s.Add(duration)) {
					continue
				}
				key, err := slot.NewKey(c.consultantID, s, duration)
				if err != nil {
					continue
				}
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// Contains reports whether the slot fits entirely inside availability and
// clear of blocked periods.
func (c *Calendar) Contains(key slot.Key) bool {
	day := truncateDay(key.StartAt())
	startMin := int(key.StartAt().Sub(day) / time.Minute)
	endMin := startMin + int(key.Duration()/time.Minute)
	for _, span := range c.SpansOn(day) {
		if startMin >= span.StartMin && endMin <= span.EndMin {
			return !c.isBlocked(key.StartAt(), key.EndAt())
		}
	}
	return false
}

func (c *Calendar) isBlocked(start, end time.Time) bool {
	for _, b := range c.blocked {
		if start.Before(b.To) && b.From.Before(end) {
			return true
		}
	}
	return false
}

func hasOverlap(spans []Span) bool {
	sorted := sortedSpans(spans)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].overlaps(sorted[i]) {
			return true
		}
	}
	return false
}

func sortedSpans(spans []Span) []Span {
	out := make([]Span, len(spans))
	copy(out, spans)
	sort.Slice(out, func(i, j int) bool { return out[i].StartMin < out[j].StartMin })
	return out
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
