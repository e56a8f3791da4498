//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnPaymentCaptured(t *testing.T) {
	ctx := context.Background()
	slotStart := baseTime.Add(6 * time.Hour)

	t.Run("capture confirms the booking and funds escrow", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)
		p := b.Payment()

		require.NoError(t, e.lifecycle.OnPaymentCaptured(ctx, p.ProcessorIntentID, p.AmountCents))

		assert.Equal(t, booking.StatusConfirmed, b.Status())
		assert.Equal(t, escrow.StatusCaptured, b.Payment().EscrowStatus)
		assert.Equal(t, int64(1500), b.Payment().PlatformFeeCents)
		assert.Equal(t, int64(8500), b.Payment().ConsultantPayout)
		assert.Equal(t, int64(10000), e.escrows.balance(b.EscrowRootID()))
		assert.Contains(t, e.pub.routingKeys(), events.RKPaymentCaptured)
		assert.Contains(t, e.pub.routingKeys(), events.RKBookingConfirmed)

		// The slot claim is now permanent.
		assert.False(t, e.slotFree(t, slotStart))
	})

	t.Run("redelivered capture is absorbed by the event record", func(t *testing.T) {
		e := newEnv(t)
		b := e.createConfirmed(t, slotStart)
		versionBefore := b.Version()

		require.NoError(t, e.lifecycle.OnPaymentCaptured(ctx, b.Payment().ProcessorIntentID, 10000))
		assert.Equal(t, versionBefore, b.Version())
		assert.Equal(t, int64(10000), e.escrows.balance(b.EscrowRootID()))
	})

	t.Run("transient failure does not poison the redelivery", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)
		p := b.Payment()

		e.runner.txErr = errs.New("tx fail")
		err := e.lifecycle.OnPaymentCaptured(ctx, p.ProcessorIntentID, p.AmountCents)
		require.ErrorIs(t, err, errs.ErrDatabaseOperationFailed)
		assert.Equal(t, booking.StatusPendingPayment, b.Status())

		// The event record went down with the transaction, so the gateway's
		// retry completes the capture instead of being absorbed.
		e.runner.txErr = nil
		require.NoError(t, e.lifecycle.OnPaymentCaptured(ctx, p.ProcessorIntentID, p.AmountCents))
		assert.Equal(t, booking.StatusConfirmed, b.Status())
		assert.Equal(t, int64(10000), e.escrows.balance(b.EscrowRootID()))
		assert.Equal(t, int64(0), e.gw.refunded(p.ProcessorIntentID))
	})

	t.Run("capture after hold expiry refunds in full", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)
		p := b.Payment()

		e.clk.Advance(e.holdCfg.TTL + time.Second)
		err := e.lifecycle.OnPaymentCaptured(ctx, p.ProcessorIntentID, p.AmountCents)
		assert.ErrorIs(t, err, errs.ErrPaymentCaptureRaceLoss)

		assert.Equal(t, booking.StatusCancelled, b.Status())
		require.NotNil(t, b.CancelReason())
		assert.Equal(t, booking.ReasonSlotExpiredDuringPayment, *b.CancelReason())
		assert.Equal(t, escrow.StatusRefunded, b.Payment().EscrowStatus)

		// The money flowed through the ledger and back out.
		assert.Equal(t, int64(0), e.escrows.balance(b.EscrowRootID()))
		assert.Equal(t, int64(10000), e.gw.refunded(p.ProcessorIntentID))
		assert.Contains(t, e.pub.routingKeys(), events.RKBookingCancelled)
	})

	t.Run("capture for an unknown intent", func(t *testing.T) {
		e := newEnv(t)
		err := e.lifecycle.OnPaymentCaptured(ctx, "pi_unknown", 10000)
		assert.ErrorIs(t, err, errs.ErrBookingNotFound)
	})
}

func TestOnPaymentFailed(t *testing.T) {
	ctx := context.Background()
	slotStart := baseTime.Add(6 * time.Hour)

	t.Run("retryable decline keeps the hold alive", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)

		require.NoError(t, e.lifecycle.OnPaymentFailed(ctx, b.Payment().ProcessorIntentID, false))
		assert.Equal(t, booking.StatusPendingPayment, b.Status())
		assert.False(t, e.slotFree(t, slotStart))

		// A terminal decline for the same intent still lands afterwards.
		require.NoError(t, e.lifecycle.OnPaymentFailed(ctx, b.Payment().ProcessorIntentID, true))
		assert.Equal(t, booking.StatusCancelled, b.Status())
	})

	t.Run("transient failure does not poison a terminal decline retry", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)

		e.runner.txErr = errs.New("tx fail")
		err := e.lifecycle.OnPaymentFailed(ctx, b.Payment().ProcessorIntentID, true)
		require.ErrorIs(t, err, errs.ErrDatabaseOperationFailed)
		assert.Equal(t, booking.StatusPendingPayment, b.Status())

		e.runner.txErr = nil
		require.NoError(t, e.lifecycle.OnPaymentFailed(ctx, b.Payment().ProcessorIntentID, true))
		assert.Equal(t, booking.StatusCancelled, b.Status())
		assert.True(t, e.slotFree(t, slotStart))
	})

	t.Run("terminal decline cancels and frees the slot", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)

		require.NoError(t, e.lifecycle.OnPaymentFailed(ctx, b.Payment().ProcessorIntentID, true))
		assert.Equal(t, booking.StatusCancelled, b.Status())
		require.NotNil(t, b.CancelReason())
		assert.Equal(t, booking.ReasonPaymentFailed, *b.CancelReason())
		assert.True(t, e.slotFree(t, slotStart))
		assert.Contains(t, e.pub.routingKeys(), events.RKBookingCancelled)
	})

	t.Run("failure after confirmation is a no-op", func(t *testing.T) {
		e := newEnv(t)
		b := e.createConfirmed(t, slotStart)

		require.NoError(t, e.lifecycle.OnPaymentFailed(ctx, b.Payment().ProcessorIntentID, true))
		assert.Equal(t, booking.StatusConfirmed, b.Status())
	})
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	slotStart := baseTime.Add(6 * time.Hour)

	t.Run("confirm endpoint funnels into the capture path", func(t *testing.T) {
		e := newEnv(t)
		b := e.createPending(t, slotStart)

		require.NoError(t, e.lifecycle.ConfirmPayment(ctx, b.ID()))
		assert.Equal(t, booking.StatusConfirmed, b.Status())
		assert.Equal(t, int64(10000), e.escrows.balance(b.EscrowRootID()))

		// A later webhook delivery for the same intent changes nothing.
		require.NoError(t, e.lifecycle.OnPaymentCaptured(ctx, b.Payment().ProcessorIntentID, 10000))
		assert.Equal(t, int64(10000), e.escrows.balance(b.EscrowRootID()))
	})

	t.Run("unknown booking", func(t *testing.T) {
		e := newEnv(t)
		err := e.lifecycle.ConfirmPayment(ctx, uuid.New())
		assert.ErrorIs(t, err, errs.ErrBookingNotFound)
	})
}
