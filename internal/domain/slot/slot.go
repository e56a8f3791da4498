package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDuration = errors.New("slot duration must be positive")
	ErrStartInPast     = errors.New("slot start cannot be in the past")
)

// Key is the slot identity: at most one live Hold or one Booking may
// reference a given Key at any instant. ServiceType deliberately stays out of
// the identity; two services competing for the same consultant minute must
// still collide.
type Key struct {
	consultantID uuid.UUID
	startAt      time.Time
	duration     time.Duration
}

func NewKey(consultantID uuid.UUID, startAt time.Time, duration time.Duration) (Key, error) {
	if duration <= 0 {
		return Key{}, ErrInvalidDuration
	}
	return Key{
		consultantID: consultantID,
		startAt:      startAt.UTC().Truncate(time.Minute),
		duration:     duration,
	}, nil
}

func (k Key) ConsultantID() uuid.UUID { return k.consultantID }
func (k Key) StartAt() time.Time      { return k.startAt }
func (k Key) EndAt() time.Time        { return k.startAt.Add(k.duration) }
func (k Key) Duration() time.Duration { return k.duration }
func (k Key) DurationMinutes() int32  { return int32(k.duration / time.Minute) }

// String renders the conditional-write row key.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d", k.consultantID, k.startAt.Format(time.RFC3339), k.DurationMinutes())
}

func (k Key) Equal(other Key) bool {
	return k.consultantID == other.consultantID &&
		k.startAt.Equal(other.startAt) &&
		k.duration == other.duration
}

type State string

const (
	StateOpen    State = "open"
	StateHeld    State = "held"
	StateBooked  State = "booked"
	StateBlocked State = "blocked"
)

// Hold is a time-limited exclusive reservation on a slot. It is never
// mutated after creation; expiry, release and promotion are ledger-side
// state transitions keyed by the hold ID.
type Hold struct {
	ID          uuid.UUID
	Key         Key
	ClientID    uuid.UUID
	ServiceType string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (h Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// Remaining is the hold lifetime left at now; zero when expired.
func (h Hold) Remaining(now time.Time) time.Duration {
	if h.Expired(now) {
		return 0
	}
	return h.ExpiresAt.Sub(now)
}
