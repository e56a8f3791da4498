//go:build unit

package slotledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra/slotledger"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holdTTL = 10 * time.Minute

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*slotledger.MemoryLedger, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(baseTime)
	return slotledger.NewMemoryLedger(clk), clk
}

func newKey(t *testing.T, consultantID uuid.UUID, offset time.Duration) slot.Key {
	t.Helper()
	key, err := slot.NewKey(consultantID, baseTime.Add(offset), 30*time.Minute)
	require.NoError(t, err)
	return key
}

func TestTryAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire grants a hold with the configured TTL", func(t *testing.T) {
		led, _ := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		hold, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)
		assert.True(t, hold.Key.Equal(key))
		assert.Equal(t, baseTime.Add(holdTTL), hold.ExpiresAt)
	})

	t.Run("second acquire on a live hold loses", func(t *testing.T) {
		led, _ := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		_, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)

		_, err = led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		assert.ErrorIs(t, err, errs.ErrSlotTaken)
	})

	t.Run("expired hold counts as absent", func(t *testing.T) {
		led, clk := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		first, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)

		clk.Advance(holdTTL + time.Second)
		_, err = led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)

		// The displaced hold cannot come back through promotion.
		assert.ErrorIs(t, led.Promote(ctx, first.ID), errs.ErrHoldExpired)
	})

	t.Run("booked slot never expires out", func(t *testing.T) {
		led, clk := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		hold, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)
		require.NoError(t, led.Promote(ctx, hold.ID))

		clk.Advance(48 * time.Hour)
		_, err = led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		assert.ErrorIs(t, err, errs.ErrSlotTaken)
	})

	t.Run("exactly one winner under contention", func(t *testing.T) {
		led, _ := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		const workers = 64
		var wg sync.WaitGroup
		var mu sync.Mutex
		var wins, losses int

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				default:
					losses++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, workers-1, losses)
	})
}

func TestPromote(t *testing.T) {
	ctx := context.Background()

	t.Run("promote swaps held to booked", func(t *testing.T) {
		led, clk := newLedger(t)
		consultantID := uuid.New()
		key := newKey(t, consultantID, time.Hour)

		hold, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)
		require.NoError(t, led.Promote(ctx, hold.ID))

		clk.Advance(time.Minute)
		claims, err := led.ClaimedKeys(ctx, consultantID, baseTime, baseTime.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, slot.StateBooked, claims[key.String()])
	})

	t.Run("promote is idempotent", func(t *testing.T) {
		led, _ := newLedger(t)
		hold, err := led.TryAcquire(ctx, newKey(t, uuid.New(), time.Hour), uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)

		require.NoError(t, led.Promote(ctx, hold.ID))
		assert.NoError(t, led.Promote(ctx, hold.ID))
	})

	t.Run("promote after expiry fails closed", func(t *testing.T) {
		led, clk := newLedger(t)
		hold, err := led.TryAcquire(ctx, newKey(t, uuid.New(), time.Hour), uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)

		clk.Advance(holdTTL)
		assert.ErrorIs(t, led.Promote(ctx, hold.ID), errs.ErrHoldExpired)
	})

	t.Run("promote of an unknown hold fails closed", func(t *testing.T) {
		led, _ := newLedger(t)
		assert.ErrorIs(t, led.Promote(ctx, uuid.New()), errs.ErrHoldExpired)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("release frees the slot for the next acquirer", func(t *testing.T) {
		led, _ := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		hold, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)
		require.NoError(t, led.Release(ctx, hold.ID))

		_, err = led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		assert.NoError(t, err)
	})

	t.Run("release does not touch booked claims", func(t *testing.T) {
		led, _ := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		hold, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)
		require.NoError(t, led.Promote(ctx, hold.ID))
		require.NoError(t, led.Release(ctx, hold.ID))

		_, err = led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		assert.ErrorIs(t, err, errs.ErrSlotTaken)
	})

	t.Run("release booked frees a promoted claim", func(t *testing.T) {
		led, _ := newLedger(t)
		key := newKey(t, uuid.New(), time.Hour)

		hold, err := led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		require.NoError(t, err)
		require.NoError(t, led.Promote(ctx, hold.ID))
		require.NoError(t, led.ReleaseBooked(ctx, hold.ID))

		_, err = led.TryAcquire(ctx, key, uuid.New(), uuid.New(), "standard", holdTTL)
		assert.NoError(t, err)
	})

	t.Run("release of unknown hold is a no-op", func(t *testing.T) {
		led, _ := newLedger(t)
		assert.NoError(t, led.Release(ctx, uuid.New()))
		assert.NoError(t, led.ReleaseBooked(ctx, uuid.New()))
	})
}

func TestClaimedKeys(t *testing.T) {
	ctx := context.Background()
	led, clk := newLedger(t)
	consultantID := uuid.New()

	held := newKey(t, consultantID, time.Hour)
	booked := newKey(t, consultantID, 2*time.Hour)
	other := newKey(t, uuid.New(), time.Hour)

	_, err := led.TryAcquire(ctx, held, uuid.New(), uuid.New(), "standard", holdTTL)
	require.NoError(t, err)
	hold, err := led.TryAcquire(ctx, booked, uuid.New(), uuid.New(), "standard", holdTTL)
	require.NoError(t, err)
	require.NoError(t, led.Promote(ctx, hold.ID))
	_, err = led.TryAcquire(ctx, other, uuid.New(), uuid.New(), "standard", holdTTL)
	require.NoError(t, err)

	claims, err := led.ClaimedKeys(ctx, consultantID, baseTime, baseTime.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, slot.StateHeld, claims[held.String()])
	assert.Equal(t, slot.StateBooked, claims[booked.String()])

	// Expired holds disappear from the view; booked claims stay.
	clk.Advance(holdTTL + time.Second)
	claims, err = led.ClaimedKeys(ctx, consultantID, baseTime, baseTime.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, slot.StateBooked, claims[booked.String()])
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	led, clk := newLedger(t)
	clientID := uuid.New()

	expiring := newKey(t, uuid.New(), time.Hour)
	hold, err := led.TryAcquire(ctx, expiring, uuid.New(), clientID, "standard", holdTTL)
	require.NoError(t, err)

	booked, err := led.TryAcquire(ctx, newKey(t, uuid.New(), 2*time.Hour), uuid.New(), uuid.New(), "standard", holdTTL)
	require.NoError(t, err)
	require.NoError(t, led.Promote(ctx, booked.ID))

	reaped, err := led.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, reaped)

	clk.Advance(holdTTL)
	reaped, err = led.SweepExpired(ctx)
	require.NoError(t, err)
	require.Len(t, reaped, 1)
	assert.Equal(t, hold.ID, reaped[0].HoldID)
	assert.Equal(t, clientID, reaped[0].ClientID)
	assert.True(t, reaped[0].Key.Equal(expiring))

	// The reaped slot is immediately acquirable again.
	_, err = led.TryAcquire(ctx, expiring, uuid.New(), uuid.New(), "standard", holdTTL)
	assert.NoError(t, err)
}

type recordingHandler struct {
	mu     sync.Mutex
	reaped []slotledger.ExpiredHold
	ticks  int
}

func (h *recordingHandler) HoldsExpired(_ context.Context, reaped []slotledger.ExpiredHold) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reaped = append(h.reaped, reaped...)
}

func (h *recordingHandler) RunScheduledWork(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks++
}

func TestSweeperSweep(t *testing.T) {
	ctx := context.Background()
	led, clk := newLedger(t)
	handler := &recordingHandler{}
	sweeper := slotledger.NewSweeper(led, handler, time.Hour)

	hold, err := led.TryAcquire(ctx, newKey(t, uuid.New(), time.Hour), uuid.New(), uuid.New(), "standard", holdTTL)
	require.NoError(t, err)

	sweeper.Sweep(ctx)
	assert.Empty(t, handler.reaped)
	assert.Equal(t, 1, handler.ticks)

	clk.Advance(holdTTL)
	sweeper.Sweep(ctx)
	require.Len(t, handler.reaped, 1)
	assert.Equal(t, hold.ID, handler.reaped[0].HoldID)
	assert.Equal(t, 2, handler.ticks)
}
