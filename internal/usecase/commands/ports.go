package commands

import (
	"context"
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/calendar"
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/repository"
	"consult-engine/internal/infra/slotledger"

	"github.com/google/uuid"
)

//go:generate mockgen -source=ports.go -destination=../../../tests/mock/commands/ports_mock.go -package=commandsmock

// SlotLedger is the sole serialization point; see slotledger.Ledger.
type SlotLedger = slotledger.Ledger

type BookingRepository interface {
	Create(ctx context.Context, db infra.DBTX, b *booking.Booking) error
	Update(ctx context.Context, db infra.DBTX, b *booking.Booking, expectedVersion int64) error
	FindByID(ctx context.Context, db infra.DBTX, id uuid.UUID) (*booking.Booking, error)
	FindByHoldID(ctx context.Context, db infra.DBTX, holdID uuid.UUID) (*booking.Booking, error)
	FindByIntentID(ctx context.Context, db infra.DBTX, intentID string) (*booking.Booking, error)
	DueForReminder(ctx context.Context, db infra.DBTX, now time.Time, lead time.Duration) ([]*booking.Booking, error)
	DueToStart(ctx context.Context, db infra.DBTX, now time.Time) ([]*booking.Booking, error)
	DueForAutoRelease(ctx context.Context, db infra.DBTX, now time.Time, after time.Duration) ([]*booking.Booking, error)
	StalePendingPayment(ctx context.Context, db infra.DBTX, cutoff time.Time) ([]*booking.Booking, error)
}

type EscrowRepository interface {
	Load(ctx context.Context, db infra.DBTX, bookingID uuid.UUID, currency string, status escrow.Status) (*escrow.Ledger, error)
	Append(ctx context.Context, db infra.DBTX, entries []escrow.Entry) error
}

type ConsultantRepository interface {
	FindByID(ctx context.Context, db infra.DBTX, id uuid.UUID) (*consultant.Consultant, error)
	LoadCalendar(ctx context.Context, db infra.DBTX, consultantID uuid.UUID) (*calendar.Calendar, error)
}

type IdempotencyRepository interface {
	TryInsert(ctx context.Context, db infra.DBTX, key, clientID uuid.UUID, endpoint, requestHash string, expiresAt time.Time) (bool, error)
	Get(ctx context.Context, db infra.DBTX, key, clientID uuid.UUID) (*repository.IdempotencyRecord, error)
	MarkCompleted(ctx context.Context, db infra.DBTX, key, clientID, resultBookingID uuid.UUID) error
}

type PaymentEventRepository interface {
	Seen(ctx context.Context, db infra.DBTX, intentID, outcome string) (bool, error)
	TryRecord(ctx context.Context, db infra.DBTX, intentID, outcome string) (bool, error)
}
