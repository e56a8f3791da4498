package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/infra/gateway"
	"consult-engine/internal/infra/uow"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/pkg/errs"
	"consult-engine/internal/pkg/refcode"

	"github.com/google/uuid"
)

const idempotencyKeyTTL = 24 * time.Hour

// BookingLifecycle orchestrates the booking state machine end to end:
// reserve, collect payment into escrow, settle, and compensate when any step
// fails. All money movement goes through the escrow ledger inside a
// transaction; the slot ledger and the payment gateway sit outside it and are
// compensated explicitly.
type BookingLifecycle struct {
	runner       uow.Runner
	bookings     BookingRepository
	escrows      EscrowRepository
	consultants  ConsultantRepository
	idem         IdempotencyRepository
	payEvents    PaymentEventRepository
	ledger       SlotLedger
	gateway      gateway.PaymentGateway
	publisher    events.Publisher
	reservations *ReservationCoordinator
	clk          clock.Clock
	catalog      consultant.ServiceCatalog
	fees         escrow.FeeSchedule
	cancellation escrow.CancellationSchedule
	holdCfg      config.HoldConfig
	escrowCfg    config.EscrowConfig
}

type LifecycleDeps struct {
	Runner       uow.Runner
	Bookings     BookingRepository
	Escrows      EscrowRepository
	Consultants  ConsultantRepository
	Idempotency  IdempotencyRepository
	PayEvents    PaymentEventRepository
	Ledger       SlotLedger
	Gateway      gateway.PaymentGateway
	Publisher    events.Publisher
	Reservations *ReservationCoordinator
	Clock        clock.Clock
	Catalog      consultant.ServiceCatalog
	Fees         escrow.FeeSchedule
	Cancellation escrow.CancellationSchedule
	HoldCfg      config.HoldConfig
	EscrowCfg    config.EscrowConfig
}

func NewBookingLifecycle(d LifecycleDeps) *BookingLifecycle {
	return &BookingLifecycle{
		runner:       d.Runner,
		bookings:     d.Bookings,
		escrows:      d.Escrows,
		consultants:  d.Consultants,
		idem:         d.Idempotency,
		payEvents:    d.PayEvents,
		ledger:       d.Ledger,
		gateway:      d.Gateway,
		publisher:    d.Publisher,
		reservations: d.Reservations,
		clk:          d.Clock,
		catalog:      d.Catalog,
		fees:         d.Fees,
		cancellation: d.Cancellation,
		holdCfg:      d.HoldCfg,
		escrowCfg:    d.EscrowCfg,
	}
}

type CreateBookingInput struct {
	IdempotencyKey uuid.UUID
	ClientID       uuid.UUID
	ConsultantID   uuid.UUID
	ServiceType    string
	StartAt        time.Time
}

func (in CreateBookingInput) hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d",
		in.ClientID, in.ConsultantID, in.ServiceType, in.StartAt.UTC().Unix())))
	return hex.EncodeToString(sum[:])
}

// CreateBookingResult carries the created (or replayed) booking, or the
// alternative slots offered when the requested one was taken.
type CreateBookingResult struct {
	Booking      *booking.Booking
	Alternatives []slot.Key
	Replayed     bool
	// HoldExpiresAt is the payment deadline for a freshly created booking;
	// zero on replay.
	HoldExpiresAt time.Time
}

// CreateBooking runs the happy path of the reservation flow: claim the key
// under an idempotency guard, acquire the slot, open a payment intent bounded
// by the hold TTL, and persist the pending booking. Any failure after the
// slot is held releases the hold before returning.
func (m *BookingLifecycle) CreateBooking(ctx context.Context, in CreateBookingInput) (CreateBookingResult, error) {
	if in.IdempotencyKey == uuid.Nil {
		return CreateBookingResult{}, errs.ErrIdempotencyKeyRequired
	}

	now := m.clk.Now()
	requestHash := in.hash()
	inserted, err := m.idem.TryInsert(ctx, m.runner.DB(),
		in.IdempotencyKey, in.ClientID, "create_booking", requestHash, now.Add(idempotencyKeyTTL))
	if err != nil {
		return CreateBookingResult{}, errs.Mark(err, errs.ErrIdempotencyCheckFailed)
	}
	if !inserted {
		return m.replayCreate(ctx, in, requestHash)
	}

	cons, err := m.consultants.FindByID(ctx, m.runner.DB(), in.ConsultantID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return CreateBookingResult{}, errs.Mark(err, errs.ErrConsultantNotFound)
		}
		return CreateBookingResult{}, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	duration, err := m.catalog.DurationFor(in.ServiceType)
	if err != nil {
		return CreateBookingResult{}, errs.Mark(err, errs.ErrDomainValidation)
	}
	amount := cons.PriceFor(duration)

	hold, alts, err := m.reservations.Reserve(ctx, in.ConsultantID, in.ClientID, in.ServiceType, in.StartAt)
	if err != nil {
		return CreateBookingResult{Alternatives: alts}, err
	}

	intentID, err := m.openIntent(ctx, hold, amount, cons.Currency())
	if err != nil {
		m.releaseHold(ctx, hold.ID)
		return CreateBookingResult{}, errs.Mark(err, errs.ErrPaymentFailed)
	}

	code, err := refcode.New()
	if err != nil {
		m.releaseHold(ctx, hold.ID)
		return CreateBookingResult{}, err
	}
	b, err := booking.New(code, hold, in.ServiceType, amount, cons.Currency(), intentID, m.clk.Now())
	if err != nil {
		m.releaseHold(ctx, hold.ID)
		return CreateBookingResult{}, errs.Mark(err, errs.ErrDomainValidation)
	}

	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		if err := m.bookings.Create(ctx, db, b); err != nil {
			return err
		}
		return m.idem.MarkCompleted(ctx, db, in.IdempotencyKey, in.ClientID, b.ID())
	})
	if err != nil {
		m.releaseHold(ctx, hold.ID)
		return CreateBookingResult{}, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	m.publisher.Publish(ctx, events.RKBookingCreated, m.snapshot(b))
	return CreateBookingResult{Booking: b, HoldExpiresAt: hold.ExpiresAt}, nil
}

// replayCreate resolves a reused idempotency key: same request hash replays
// the stored result, a different hash is a client bug surfaced as a conflict.
func (m *BookingLifecycle) replayCreate(ctx context.Context, in CreateBookingInput, requestHash string) (CreateBookingResult, error) {
	rec, err := m.idem.Get(ctx, m.runner.DB(), in.IdempotencyKey, in.ClientID)
	if err != nil {
		return CreateBookingResult{}, errs.Mark(err, errs.ErrIdempotencyCheckFailed)
	}
	if rec.RequestHash != requestHash {
		return CreateBookingResult{}, errs.ErrIdempotencyConflict
	}
	if rec.Status != "completed" || rec.ResultBookingID == nil {
		return CreateBookingResult{}, errs.ErrIdempotencyInProgress
	}
	b, err := m.bookings.FindByID(ctx, m.runner.DB(), *rec.ResultBookingID)
	if err != nil {
		return CreateBookingResult{}, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return CreateBookingResult{Booking: b, Replayed: true}, nil
}

// openIntent deadlines the gateway call by the remaining hold TTL minus a
// safety margin, so a capture can never arrive for a hold that has already
// lapsed without the race being detected at promote time.
func (m *BookingLifecycle) openIntent(ctx context.Context, hold slot.Hold, amountCents int64, currency string) (string, error) {
	remaining := hold.Remaining(m.clk.Now()) - m.holdCfg.GatewayMargin
	if remaining <= 0 {
		return "", errs.New("hold too short for gateway round trip")
	}
	ctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	return m.gateway.CreateIntent(ctx, amountCents, currency, map[string]string{
		"hold_id":       hold.ID.String(),
		"consultant_id": hold.Key.ConsultantID().String(),
		"client_id":     hold.ClientID.String(),
	})
}

func (m *BookingLifecycle) findBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, err := m.bookings.FindByID(ctx, m.runner.DB(), id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrBookingNotFound)
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return b, nil
}

func (m *BookingLifecycle) snapshot(b *booking.Booking) events.BookingSnapshot {
	p := b.Payment()
	var reason *string
	if r := b.CancelReason(); r != nil {
		s := string(*r)
		reason = &s
	}
	return events.BookingSnapshot{
		BookingID:        b.ID(),
		ReferenceCode:    b.ReferenceCode(),
		ConsultantID:     b.ConsultantID(),
		ClientID:         b.ClientID(),
		StartAt:          b.SlotKey().StartAt(),
		DurationMin:      b.SlotKey().DurationMinutes(),
		ServiceType:      b.ServiceType(),
		Status:           b.Status().String(),
		EscrowStatus:     p.EscrowStatus.String(),
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		PlatformFee:      p.PlatformFeeCents,
		ConsultantPayout: p.ConsultantPayout,
		CancelReason:     reason,
		RescheduledFrom:  b.RescheduledFrom(),
		Version:          b.Version(),
		OccurredAt:       m.clk.Now(),
	}
}
