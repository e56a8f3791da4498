package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/pkg/errs"
	"consult-engine/internal/pkg/refcode"

	"github.com/google/uuid"
)

// Cancel terminates a booking before delivery. A pending booking just
// releases its hold; a confirmed one settles the escrow per the cancellation
// schedule, with the retained remainder split between platform fee and
// consultant compensation. The gateway refund goes out after the commit.
func (m *BookingLifecycle) Cancel(ctx context.Context, bookingID uuid.UUID, reason booking.CancelReason) error {
	b, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	now := m.clk.Now()
	if b.Status() == booking.StatusPendingPayment {
		m.releaseHold(ctx, b.HoldID())
		err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
			expected := b.Version()
			if err := b.Cancel(reason, escrow.StatusAwaitingCapture, now); err != nil {
				return err
			}
			return m.bookings.Update(ctx, db, b, expected)
		})
		if err != nil {
			return m.mapTransitionErr(err)
		}
		m.publisher.Publish(ctx, events.RKBookingCancelled, m.snapshot(b))
		return nil
	}

	if b.Payment().EscrowStatus == escrow.StatusDisputed {
		return errs.ErrEscrowFrozen
	}

	var refundCents int64
	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}
		captured := led.Balance()
		refundCents = m.cancellation.RefundAmount(captured, now, b.SlotKey().StartAt())
		retainedFee, _, err := m.fees.Split(captured-refundCents, m.feeTier(b.ServiceType()))
		if err != nil {
			return err
		}
		entries, err := led.Refund(refundCents, retainedFee, now)
		if err != nil {
			return err
		}
		expected := b.Version()
		if err := b.Cancel(reason, escrow.StatusRefunded, now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, entries)
	})
	if err != nil {
		return m.mapTransitionErr(err)
	}

	if err := m.ledger.ReleaseBooked(ctx, b.HoldID()); err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	m.refund(ctx, b.Payment().ProcessorIntentID, refundCents, b.ID())
	m.publisher.Publish(ctx, events.RKBookingCancelled, m.snapshot(b))
	return nil
}

// RescheduleResult mirrors CreateBookingResult: either the replacement
// booking or the alternatives offered when the new slot was contested.
type RescheduleResult struct {
	Booking      *booking.Booking
	Alternatives []slot.Key
}

// Reschedule moves a confirmed booking to a new slot atomically from the
// client's point of view: the new slot is acquired and promoted first, the
// replacement booking committed, and only then is the old slot released. A
// failure at any step leaves the original booking untouched. No money moves;
// the escrow ledger carries over through the escrow root.
func (m *BookingLifecycle) Reschedule(ctx context.Context, bookingID uuid.UUID, newStartAt time.Time) (RescheduleResult, error) {
	orig, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return RescheduleResult{}, err
	}
	if orig.Status() != booking.StatusConfirmed && orig.Status() != booking.StatusReminded {
		return RescheduleResult{}, errs.ErrInvalidTransition
	}
	if orig.Payment().EscrowStatus == escrow.StatusDisputed {
		return RescheduleResult{}, errs.ErrEscrowFrozen
	}

	hold, alts, err := m.reservations.Reserve(ctx, orig.ConsultantID(), orig.ClientID(), orig.ServiceType(), newStartAt)
	if err != nil {
		return RescheduleResult{Alternatives: alts}, err
	}

	// Payment is already captured, so the new claim skips the held phase.
	if err := m.ledger.Promote(ctx, hold.ID); err != nil {
		m.releaseHold(ctx, hold.ID)
		return RescheduleResult{}, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	now := m.clk.Now()
	code, err := refcode.New()
	if err != nil {
		m.releaseBooked(ctx, hold.ID)
		return RescheduleResult{}, err
	}
	p := orig.Payment()
	next, err := booking.New(code, hold, orig.ServiceType(), p.AmountCents, p.Currency, p.ProcessorIntentID, now)
	if err != nil {
		m.releaseBooked(ctx, hold.ID)
		return RescheduleResult{}, errs.Mark(err, errs.ErrDomainValidation)
	}
	next.LinkReschedule(orig)

	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		if err := m.bookings.Create(ctx, db, next); err != nil {
			return err
		}
		expected := orig.Version()
		if err := orig.MarkRescheduled(now); err != nil {
			return err
		}
		return m.bookings.Update(ctx, db, orig, expected)
	})
	if err != nil {
		m.releaseBooked(ctx, hold.ID)
		return RescheduleResult{}, m.mapTransitionErr(err)
	}

	if err := m.ledger.ReleaseBooked(ctx, orig.HoldID()); err != nil {
		return RescheduleResult{Booking: next}, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	m.publisher.Publish(ctx, events.RKBookingConfirmed, m.snapshot(next))
	return RescheduleResult{Booking: next}, nil
}

// MarkDelivered confirms the consultation happened and releases escrow: the
// platform fee out, the remainder to the consultant payout.
func (m *BookingLifecycle) MarkDelivered(ctx context.Context, bookingID uuid.UUID, confirmedBy booking.Actor) error {
	b, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Payment().EscrowStatus == escrow.StatusDisputed {
		return errs.ErrEscrowFrozen
	}

	now := m.clk.Now()
	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}
		entries, err := led.Release(b.Payment().PlatformFeeCents, now)
		if err != nil {
			return err
		}
		expected := b.Version()
		if err := b.Complete(confirmedBy, now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, entries)
	})
	if err != nil {
		return m.mapTransitionErr(err)
	}

	// The window is in the past; dropping the claim keeps the ledger small.
	m.releaseBooked(ctx, b.HoldID())
	m.publisher.Publish(ctx, events.RKBookingDelivered, m.snapshot(b))
	return nil
}

// MarkNoShow records a missed consultation once the window has passed.
// Whether the client is refunded is a deployment policy; without refunds the
// escrow settles exactly like a delivered booking.
func (m *BookingLifecycle) MarkNoShow(ctx context.Context, bookingID uuid.UUID) error {
	b, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Payment().EscrowStatus == escrow.StatusDisputed {
		return errs.ErrEscrowFrozen
	}

	now := m.clk.Now()
	var refundCents int64
	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}

		var entries []escrow.Entry
		outcome := escrow.StatusReleased
		if m.escrowCfg.NoShowRefunds {
			refundCents = led.Balance()
			entries, err = led.Refund(refundCents, 0, now)
			outcome = escrow.StatusRefunded
		} else {
			entries, err = led.Release(b.Payment().PlatformFeeCents, now)
		}
		if err != nil {
			return err
		}

		expected := b.Version()
		if err := b.MarkNoShow(outcome, now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, entries)
	})
	if err != nil {
		return m.mapTransitionErr(err)
	}

	if err := m.ledger.ReleaseBooked(ctx, b.HoldID()); err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	m.refund(ctx, b.Payment().ProcessorIntentID, refundCents, b.ID())
	m.publisher.Publish(ctx, events.RKBookingNoShow, m.snapshot(b))
	return nil
}

// Dispute freezes the escrow pending external resolution. Settlement
// operations refuse to touch a disputed booking until it resolves.
func (m *BookingLifecycle) Dispute(ctx context.Context, bookingID uuid.UUID) error {
	b, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	now := m.clk.Now()
	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}
		entries, err := led.Dispute(now)
		if err != nil {
			return err
		}
		expected := b.Version()
		if err := b.Dispute(now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, entries)
	})
	if err != nil {
		return m.mapTransitionErr(err)
	}

	m.publisher.Publish(ctx, events.RKBookingDisputed, m.snapshot(b))
	return nil
}

// ResolveDispute settles a frozen escrow per the external ruling: released
// pays out the consultant, refunded returns everything to the client.
func (m *BookingLifecycle) ResolveDispute(ctx context.Context, bookingID uuid.UUID, outcome escrow.Status) error {
	if outcome != escrow.StatusReleased && outcome != escrow.StatusRefunded {
		return errs.ErrInvalidTransition
	}
	b, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	now := m.clk.Now()
	var refundCents int64
	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}

		var entries []escrow.Entry
		if outcome == escrow.StatusRefunded {
			refundCents = led.Balance()
			entries, err = led.Refund(refundCents, 0, now)
		} else {
			entries, err = led.Release(b.Payment().PlatformFeeCents, now)
		}
		if err != nil {
			return err
		}

		expected := b.Version()
		if err := b.ResolveDispute(outcome, now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, entries)
	})
	if err != nil {
		return m.mapTransitionErr(err)
	}

	m.refund(ctx, b.Payment().ProcessorIntentID, refundCents, b.ID())
	m.publisher.Publish(ctx, events.RKBookingDisputed, m.snapshot(b))
	return nil
}

func (m *BookingLifecycle) releaseBooked(ctx context.Context, holdID uuid.UUID) {
	if err := m.ledger.ReleaseBooked(ctx, holdID); err != nil {
		slog.Error("failed to release booked claim", "hold_id", holdID.String(), "error", err.Error())
	}
}

// mapTransitionErr keeps domain transition and ledger invariant failures
// recognizable to callers instead of burying them under the generic database
// error mark.
func (m *BookingLifecycle) mapTransitionErr(err error) error {
	switch {
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, escrow.ErrInvalidTransition),
		errors.Is(err, booking.ErrNotYetEnded):
		return errs.Mark(err, errs.ErrInvalidTransition)
	case errors.Is(err, escrow.ErrLedgerImbalance),
		errors.Is(err, escrow.ErrLedgerClosed):
		return errs.Mark(err, errs.ErrLedgerImbalance)
	default:
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
}
