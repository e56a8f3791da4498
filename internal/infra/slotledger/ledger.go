// Package slotledger is the authoritative store of slot claims. The
// TryAcquire/Promote pair is the engine's only serialization point: both are
// single atomic conditional writes keyed by slot identity and hold ID, so a
// given slot is granted to at most one paying client no matter how many
// request workers race for it.
package slotledger

import (
	"context"
	"time"

	"consult-engine/internal/domain/slot"
	"consult-engine/internal/pkg/errs"

	"github.com/google/uuid"
)

// ExpiredHold is what the sweeper hands back for each reaped hold so the
// lifecycle layer can run its compensations (cancel the pending booking).
type ExpiredHold struct {
	HoldID   uuid.UUID
	ClientID uuid.UUID
	Key      slot.Key
}

type Ledger interface {
	// TryAcquire succeeds only if no live hold or booking exists for the
	// slot key. An expired hold counts as absent within the same atomic
	// operation. Losers get errs.ErrSlotTaken immediately.
	TryAcquire(ctx context.Context, key slot.Key, holdID, clientID uuid.UUID, serviceType string, ttl time.Duration) (slot.Hold, error)

	// Promote atomically swaps a live hold to the permanent booked state.
	// Fails closed with errs.ErrHoldExpired when the hold lapsed or never
	// existed; promoting an already promoted hold is a success no-op.
	Promote(ctx context.Context, holdID uuid.UUID) error

	// Release frees a held claim. Idempotent: released, promoted or unknown
	// holds are a no-op.
	Release(ctx context.Context, holdID uuid.UUID) error

	// ReleaseBooked frees a promoted claim (cancellation, reschedule).
	ReleaseBooked(ctx context.Context, holdID uuid.UUID) error

	// ClaimedKeys returns live claims for a consultant within [from, to),
	// keyed by slot.Key.String(). Expired holds are excluded.
	ClaimedKeys(ctx context.Context, consultantID uuid.UUID, from, to time.Time) (map[string]slot.State, error)

	// SweepExpired releases every expired hold and reports what was reaped.
	SweepExpired(ctx context.Context) ([]ExpiredHold, error)
}

var (
	errSlotTaken   = errs.ErrSlotTaken
	errHoldExpired = errs.ErrHoldExpired
)
