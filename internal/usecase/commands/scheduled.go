package commands

import (
	"context"
	"log/slog"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/infra/slotledger"
)

// BookingLifecycle implements slotledger.Handler: the sweeper drives hold
// expiry compensation and the periodic maintenance passes from the same tick.
var _ slotledger.Handler = (*BookingLifecycle)(nil)

// HoldsExpired cancels the pending booking behind each reaped hold. The slot
// itself is already free; this is pure booking-side compensation, so one
// failing booking never blocks the rest of the batch.
func (m *BookingLifecycle) HoldsExpired(ctx context.Context, reaped []slotledger.ExpiredHold) {
	for _, exp := range reaped {
		b, err := m.bookings.FindByHoldID(ctx, m.runner.DB(), exp.HoldID)
		if err != nil {
			if !infra.IsKind(err, infra.KindNotFound) {
				slog.Error("failed to load booking for expired hold",
					"hold_id", exp.HoldID.String(), "error", err.Error())
			}
			continue
		}
		m.cancelExpiredPending(ctx, b)
	}
}

func (m *BookingLifecycle) cancelExpiredPending(ctx context.Context, b *booking.Booking) {
	if b.Status() != booking.StatusPendingPayment {
		return
	}
	now := m.clk.Now()
	err := m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
		expected := b.Version()
		if err := b.Cancel(booking.ReasonHoldExpired, escrow.StatusAwaitingCapture, now); err != nil {
			return err
		}
		return m.bookings.Update(ctx, db, b, expected)
	})
	if err != nil {
		if !infra.IsKind(err, infra.KindConflict) {
			slog.Error("failed to cancel booking for expired hold",
				"booking_id", b.ID().String(), "error", err.Error())
		}
		return
	}
	m.publisher.Publish(ctx, events.RKBookingCancelled, m.snapshot(b))
}

// RunScheduledWork runs the time-driven passes: stale-pending reconciliation,
// reminders ahead of the session, in-progress marking once the window opens,
// and escrow auto-release for bookings the consultant never confirmed.
func (m *BookingLifecycle) RunScheduledWork(ctx context.Context) {
	m.reapStalePending(ctx)
	m.sendReminders(ctx)
	m.startDueBookings(ctx)
	m.autoReleaseEscrow(ctx)
}

// reapStalePending catches pending bookings whose hold is already gone but
// whose cancellation never ran, e.g. a crash between the ledger sweep and the
// booking update. The hold TTL bounds how long a booking can legitimately
// stay pending, so anything older has no hold left to wait for.
func (m *BookingLifecycle) reapStalePending(ctx context.Context) {
	cutoff := m.clk.Now().Add(-m.holdCfg.TTL)
	stale, err := m.bookings.StalePendingPayment(ctx, m.runner.DB(), cutoff)
	if err != nil {
		slog.Error("stale pending query failed", "error", err.Error())
		return
	}
	for _, b := range stale {
		m.cancelExpiredPending(ctx, b)
	}
}

func (m *BookingLifecycle) sendReminders(ctx context.Context) {
	now := m.clk.Now()
	due, err := m.bookings.DueForReminder(ctx, m.runner.DB(), now, m.escrowCfg.ReminderLead)
	if err != nil {
		slog.Error("reminder query failed", "error", err.Error())
		return
	}
	for _, b := range due {
		m.flagCalendarConflict(ctx, b)
		err := m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
			expected := b.Version()
			if err := b.MarkReminded(now); err != nil {
				return err
			}
			return m.bookings.Update(ctx, db, b, expected)
		})
		if err != nil {
			// A version conflict means another instance got there first.
			if !infra.IsKind(err, infra.KindConflict) {
				slog.Error("failed to mark booking reminded",
					"booking_id", b.ID().String(), "error", err.Error())
			}
			continue
		}
		m.publisher.Publish(ctx, events.RKBookingReminded, m.snapshot(b))
	}
}

// flagCalendarConflict surfaces bookings whose slot no longer fits the
// consultant's edited calendar. Paid claims are grandfathered, never
// auto-cancelled; the event hands the case to manual review.
func (m *BookingLifecycle) flagCalendarConflict(ctx context.Context, b *booking.Booking) {
	cal, err := m.consultants.LoadCalendar(ctx, m.runner.DB(), b.ConsultantID())
	if err != nil {
		slog.Error("calendar load failed during conflict check",
			"consultant_id", b.ConsultantID().String(), "error", err.Error())
		return
	}
	if !cal.Contains(b.SlotKey()) {
		m.publisher.Publish(ctx, events.RKCalendarConflict, m.snapshot(b))
	}
}

func (m *BookingLifecycle) startDueBookings(ctx context.Context) {
	now := m.clk.Now()
	due, err := m.bookings.DueToStart(ctx, m.runner.DB(), now)
	if err != nil {
		slog.Error("due-to-start query failed", "error", err.Error())
		return
	}
	for _, b := range due {
		err := m.runner.WithinTx(ctx, func(ctx context.Context, db infra.DBTX) error {
			expected := b.Version()
			if err := b.Start(now); err != nil {
				return err
			}
			return m.bookings.Update(ctx, db, b, expected)
		})
		if err != nil && !infra.IsKind(err, infra.KindConflict) {
			slog.Error("failed to start booking",
				"booking_id", b.ID().String(), "error", err.Error())
		}
	}
}

// autoReleaseEscrow settles bookings whose window ended AutoReleaseAfter ago
// with no delivery confirmation and no dispute, releasing funds to the
// consultant on the system's authority.
func (m *BookingLifecycle) autoReleaseEscrow(ctx context.Context) {
	due, err := m.bookings.DueForAutoRelease(ctx, m.runner.DB(), m.clk.Now(), m.escrowCfg.AutoReleaseAfter)
	if err != nil {
		slog.Error("auto-release query failed", "error", err.Error())
		return
	}
	for _, b := range due {
		if err := m.MarkDelivered(ctx, b.ID(), booking.ActorSystem); err != nil {
			slog.Error("escrow auto-release failed",
				"booking_id", b.ID().String(), "error", err.Error())
		}
	}
}
