package booking

import (
	"errors"
	"time"

	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/domain/slot"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrNotYetEnded       = errors.New("scheduled end time has not passed")
	ErrInvalidAmount     = errors.New("booking amount must be positive")
)

// Payment is the money sub-record of a booking. The fee/payout split is
// computed deterministically at capture and never changes afterwards; actual
// money movement lives in the escrow ledger.
type Payment struct {
	AmountCents       int64
	Currency          string
	PlatformFeeCents  int64
	ConsultantPayout  int64
	EscrowStatus      escrow.Status
	ProcessorIntentID string
}

// Booking is the durable record once a hold is promoted (and the pending
// record before that). It is never deleted; cancellation is a terminal state.
// Every mutation bumps version — all writes are compare-and-swap on it.
type Booking struct {
	id                uuid.UUID
	referenceCode     string
	consultantID      uuid.UUID
	clientID          uuid.UUID
	slotKey           slot.Key
	serviceType       string
	holdID            uuid.UUID
	status            Status
	payment           Payment
	deliveryConfirmed bool
	deliveredBy       *Actor
	cancelReason      *CancelReason
	rescheduledFrom   *uuid.UUID
	escrowRootID      uuid.UUID
	version           int64
	createdAt         time.Time
	updatedAt         time.Time
}

func New(
	referenceCode string,
	hold slot.Hold,
	serviceType string,
	amountCents int64,
	currency string,
	intentID string,
	now time.Time,
) (*Booking, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	id := uuid.New()
	return &Booking{
		id:            id,
		escrowRootID:  id,
		referenceCode: referenceCode,
		consultantID:  hold.Key.ConsultantID(),
		clientID:      hold.ClientID,
		slotKey:       hold.Key,
		serviceType:   serviceType,
		holdID:        hold.ID,
		status:        StatusPendingPayment,
		payment: Payment{
			AmountCents:       amountCents,
			Currency:          currency,
			EscrowStatus:      escrow.StatusAwaitingCapture,
			ProcessorIntentID: intentID,
		},
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func Reconstruct(
	id uuid.UUID,
	referenceCode string,
	consultantID, clientID uuid.UUID,
	slotKey slot.Key,
	serviceType string,
	holdID uuid.UUID,
	status Status,
	payment Payment,
	deliveryConfirmed bool,
	deliveredBy *Actor,
	cancelReason *CancelReason,
	rescheduledFrom *uuid.UUID,
	escrowRootID uuid.UUID,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                id,
		referenceCode:     referenceCode,
		consultantID:      consultantID,
		clientID:          clientID,
		slotKey:           slotKey,
		serviceType:       serviceType,
		holdID:            holdID,
		status:            status,
		payment:           payment,
		deliveryConfirmed: deliveryConfirmed,
		deliveredBy:       deliveredBy,
		cancelReason:      cancelReason,
		rescheduledFrom:   rescheduledFrom,
		escrowRootID:      escrowRootID,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

func (b *Booking) ID() uuid.UUID               { return b.id }
func (b *Booking) ReferenceCode() string       { return b.referenceCode }
func (b *Booking) ConsultantID() uuid.UUID     { return b.consultantID }
func (b *Booking) ClientID() uuid.UUID         { return b.clientID }
func (b *Booking) SlotKey() slot.Key           { return b.slotKey }
func (b *Booking) ServiceType() string         { return b.serviceType }
func (b *Booking) HoldID() uuid.UUID           { return b.holdID }
func (b *Booking) Status() Status              { return b.status }
func (b *Booking) Payment() Payment            { return b.payment }
func (b *Booking) DeliveryConfirmed() bool     { return b.deliveryConfirmed }
func (b *Booking) DeliveredBy() *Actor         { return b.deliveredBy }
func (b *Booking) CancelReason() *CancelReason { return b.cancelReason }
func (b *Booking) RescheduledFrom() *uuid.UUID { return b.rescheduledFrom }

// EscrowRootID identifies the escrow ledger sub-sequence this booking
// settles against. It equals the booking's own ID except along a reschedule
// chain, where the captured funds stay on the original ledger.
func (b *Booking) EscrowRootID() uuid.UUID { return b.escrowRootID }
func (b *Booking) Version() int64          { return b.version }
func (b *Booking) CreatedAt() time.Time    { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time    { return b.updatedAt }

// LinkReschedule ties a replacement booking to its predecessor and carries
// the escrow ledger and split forward without any money movement.
func (b *Booking) LinkReschedule(prev *Booking) {
	id := prev.ID()
	b.rescheduledFrom = &id
	b.escrowRootID = prev.EscrowRootID()
	b.payment = prev.Payment()
	b.status = StatusConfirmed
}

// Confirm promotes a pending booking after payment capture, recording the
// fee/payout split computed by the escrow policy.
func (b *Booking) Confirm(feeCents, payoutCents int64, now time.Time) error {
	if b.status != StatusPendingPayment {
		return ErrInvalidTransition
	}
	b.status = StatusConfirmed
	b.payment.EscrowStatus = escrow.StatusCaptured
	b.payment.PlatformFeeCents = feeCents
	b.payment.ConsultantPayout = payoutCents
	b.touch(now)
	return nil
}

func (b *Booking) MarkReminded(now time.Time) error {
	if b.status != StatusConfirmed {
		return ErrInvalidTransition
	}
	b.status = StatusReminded
	b.touch(now)
	return nil
}

func (b *Booking) Start(now time.Time) error {
	if b.status != StatusConfirmed && b.status != StatusReminded {
		return ErrInvalidTransition
	}
	b.status = StatusInProgress
	b.touch(now)
	return nil
}

// Complete records delivery confirmation. Valid from Confirmed, Reminded or
// InProgress, and only once the scheduled end has passed.
func (b *Booking) Complete(confirmedBy Actor, now time.Time) error {
	switch b.status {
	case StatusConfirmed, StatusReminded, StatusInProgress:
	default:
		return ErrInvalidTransition
	}
	if now.Before(b.slotKey.EndAt()) {
		return ErrNotYetEnded
	}
	b.status = StatusCompleted
	b.deliveryConfirmed = true
	b.deliveredBy = &confirmedBy
	b.payment.EscrowStatus = escrow.StatusReleased
	b.touch(now)
	return nil
}

func (b *Booking) Cancel(reason CancelReason, escrowStatus escrow.Status, now time.Time) error {
	switch b.status {
	case StatusPendingPayment, StatusConfirmed, StatusReminded:
	default:
		return ErrInvalidTransition
	}
	b.status = StatusCancelled
	b.cancelReason = &reason
	b.payment.EscrowStatus = escrowStatus
	b.touch(now)
	return nil
}

func (b *Booking) MarkNoShow(escrowStatus escrow.Status, now time.Time) error {
	if b.status != StatusConfirmed && b.status != StatusReminded {
		return ErrInvalidTransition
	}
	if now.Before(b.slotKey.EndAt()) {
		return ErrNotYetEnded
	}
	b.status = StatusNoShow
	b.payment.EscrowStatus = escrowStatus
	b.touch(now)
	return nil
}

// MarkRescheduled closes this booking in favor of its replacement. The slot
// is released by the caller; escrow stays captured and carries over.
func (b *Booking) MarkRescheduled(now time.Time) error {
	if b.status != StatusConfirmed && b.status != StatusReminded {
		return ErrInvalidTransition
	}
	b.status = StatusRescheduled
	b.touch(now)
	return nil
}

func (b *Booking) Dispute(now time.Time) error {
	switch b.status {
	case StatusConfirmed, StatusReminded, StatusInProgress, StatusCompleted, StatusNoShow:
	default:
		return ErrInvalidTransition
	}
	b.payment.EscrowStatus = escrow.StatusDisputed
	b.touch(now)
	return nil
}

func (b *Booking) ResolveDispute(outcome escrow.Status, now time.Time) error {
	if b.payment.EscrowStatus != escrow.StatusDisputed {
		return ErrInvalidTransition
	}
	if outcome != escrow.StatusReleased && outcome != escrow.StatusRefunded {
		return ErrInvalidTransition
	}
	b.payment.EscrowStatus = outcome
	b.touch(now)
	return nil
}

// ScheduledEndPassed reports whether the meeting window is over.
func (b *Booking) ScheduledEndPassed(now time.Time) bool {
	return !now.Before(b.slotKey.EndAt())
}

func (b *Booking) touch(now time.Time) {
	b.version++
	b.updatedAt = now
}
