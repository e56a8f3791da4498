package commands

import (
	"context"
	"errors"
	"log/slog"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/pkg/errs"

	"github.com/google/uuid"
)

const (
	outcomeCaptured = "captured"
	outcomeFailed   = "failed"
)

// errEventReplayed aborts a transaction whose (intent, outcome) row was
// already claimed by an earlier or concurrent delivery.
var errEventReplayed = errs.New("payment event already recorded")

// claimEvent writes the dedupe row on db so it commits or rolls back with the
// state changes it guards. A transient failure takes the row down with it and
// the gateway's redelivery gets a clean run.
func (m *BookingLifecycle) claimEvent(ctx context.Context, db infra.DBTX, intentID, outcome string) error {
	fresh, err := m.payEvents.TryRecord(ctx, db, intentID, outcome)
	if err != nil {
		return err
	}
	if !fresh {
		return errEventReplayed
	}
	return nil
}

// OnPaymentCaptured processes an async capture result from the gateway.
// Replayed deliveries are dropped by the (intent, outcome) event record. The
// promote is the decisive step: if the hold is still live the booking is
// confirmed and the funds land in escrow; if it lapsed first, the capture
// lost the race and is refunded in full.
func (m *BookingLifecycle) OnPaymentCaptured(ctx context.Context, intentID string, amountCents int64) error {
	seen, err := m.payEvents.Seen(ctx, m.runner.DB(), intentID, outcomeCaptured)
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if seen {
		return nil
	}

	b, err := m.bookings.FindByIntentID(ctx, m.runner.DB(), intentID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, errs.ErrBookingNotFound)
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if b.Status() != booking.StatusPendingPayment {
		// The direct confirm endpoint and the webhook funnel into the same
		// path; whichever arrives second finds the work already done.
		return nil
	}

	if err := m.ledger.Promote(ctx, b.HoldID()); err != nil {
		if errors.Is(err, errs.ErrHoldExpired) {
			return m.refundCaptureRaceLoss(ctx, b, amountCents)
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	now := m.clk.Now()
	fee, payout, err := m.fees.Split(amountCents, m.feeTier(b.ServiceType()))
	if err != nil {
		return errs.Mark(err, errs.ErrDomainValidation)
	}

	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		if err := m.claimEvent(ctx, db, intentID, outcomeCaptured); err != nil {
			return err
		}
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}
		entries, err := led.Capture(amountCents, now)
		if err != nil {
			return err
		}
		expected := b.Version()
		if err := b.Confirm(fee, payout, now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, entries)
	})
	if errors.Is(err, errEventReplayed) {
		return nil
	}
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	m.publisher.Publish(ctx, events.RKPaymentCaptured, m.snapshot(b))
	m.publisher.Publish(ctx, events.RKBookingConfirmed, m.snapshot(b))
	return nil
}

// refundCaptureRaceLoss settles a capture that arrived after its hold
// expired: the money flows through the ledger (capture then full refund) so
// the audit trail shows it, the booking cancels, and the gateway refund goes
// out after the commit.
func (m *BookingLifecycle) refundCaptureRaceLoss(ctx context.Context, b *booking.Booking, amountCents int64) error {
	now := m.clk.Now()
	err := m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		if err := m.claimEvent(ctx, db, b.Payment().ProcessorIntentID, outcomeCaptured); err != nil {
			return err
		}
		led, err := m.escrows.Load(ctx, db, b.EscrowRootID(), b.Payment().Currency, b.Payment().EscrowStatus)
		if err != nil {
			return err
		}
		captured, err := led.Capture(amountCents, now)
		if err != nil {
			return err
		}
		refunded, err := led.Refund(amountCents, 0, now)
		if err != nil {
			return err
		}
		expected := b.Version()
		if err := b.Cancel(booking.ReasonSlotExpiredDuringPayment, escrow.StatusRefunded, now); err != nil {
			return err
		}
		if err := m.bookings.Update(ctx, db, b, expected); err != nil {
			return err
		}
		return m.escrows.Append(ctx, db, append(captured, refunded...))
	})
	if errors.Is(err, errEventReplayed) {
		return nil
	}
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	m.refund(ctx, b.Payment().ProcessorIntentID, amountCents, b.ID())
	m.publisher.Publish(ctx, events.RKBookingCancelled, m.snapshot(b))
	return errs.ErrPaymentCaptureRaceLoss
}

// OnPaymentFailed processes a declined payment. A terminal decline releases
// the hold and cancels the booking immediately; a retryable decline keeps the
// hold so the client can retry until the TTL runs out.
func (m *BookingLifecycle) OnPaymentFailed(ctx context.Context, intentID string, terminal bool) error {
	seen, err := m.payEvents.Seen(ctx, m.runner.DB(), intentID, outcomeFailed)
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if seen {
		return nil
	}

	b, err := m.bookings.FindByIntentID(ctx, m.runner.DB(), intentID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, errs.ErrBookingNotFound)
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if b.Status() != booking.StatusPendingPayment {
		return nil
	}
	if !terminal {
		// Nothing changes on a retryable decline, and recording it would
		// mask a terminal decline arriving later for the same intent.
		return nil
	}

	now := m.clk.Now()
	err = m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		if err := m.claimEvent(ctx, db, intentID, outcomeFailed); err != nil {
			return err
		}
		expected := b.Version()
		if err := b.Cancel(booking.ReasonPaymentFailed, escrow.StatusAwaitingCapture, now); err != nil {
			return err
		}
		return m.bookings.Update(ctx, db, b, expected)
	})
	if errors.Is(err, errEventReplayed) {
		return nil
	}
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	m.releaseHold(ctx, b.HoldID())
	m.publisher.Publish(ctx, events.RKBookingCancelled, m.snapshot(b))
	return nil
}

// ConfirmPayment is the synchronous confirmation endpoint for gateways
// without webhooks. It funnels into the same capture path so both entry
// points share the dedupe and the race handling.
func (m *BookingLifecycle) ConfirmPayment(ctx context.Context, bookingID uuid.UUID) error {
	b, err := m.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	return m.OnPaymentCaptured(ctx, b.Payment().ProcessorIntentID, b.Payment().AmountCents)
}

// feeTier resolves the fee-schedule tier from the service type, falling back
// to the standard tier for services without a dedicated rate.
func (m *BookingLifecycle) feeTier(serviceType string) string {
	if m.fees.HasTier(serviceType) {
		return serviceType
	}
	return "standard"
}

func (m *BookingLifecycle) releaseHold(ctx context.Context, holdID uuid.UUID) {
	if err := m.ledger.Release(ctx, holdID); err != nil {
		slog.Error("failed to release hold", "hold_id", holdID.String(), "error", err.Error())
	}
}

// refund calls the gateway after the owning transaction committed. A failure
// here means money is owed to the client with the ledger already settled, so
// it is logged loudly for the reconciliation job rather than rolled back.
func (m *BookingLifecycle) refund(ctx context.Context, intentID string, amountCents int64, bookingID uuid.UUID) {
	if amountCents <= 0 {
		return
	}
	if err := m.gateway.Refund(ctx, intentID, amountCents); err != nil {
		slog.Error("gateway refund failed after ledger settlement",
			"booking_id", bookingID.String(),
			"intent_id", intentID,
			"amount_cents", amountCents,
			"error", err.Error())
	}
}
