//go:build unit

package slot_test

import (
	"testing"
	"time"

	"consult-engine/internal/domain/slot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	id := uuid.New()
	start := time.Date(2026, 3, 10, 15, 0, 30, 0, time.FixedZone("JST", 9*3600))

	t.Run("normalizes to UTC and truncates to the minute", func(t *testing.T) {
		key, err := slot.NewKey(id, start, 30*time.Minute)
		require.NoError(t, err)

		assert.Equal(t, time.UTC, key.StartAt().Location())
		assert.Equal(t, 0, key.StartAt().Second())
		assert.Equal(t, key.StartAt().Add(30*time.Minute), key.EndAt())
		assert.Equal(t, int32(30), key.DurationMinutes())
	})

	t.Run("same instant in different zones yields equal keys", func(t *testing.T) {
		a, err := slot.NewKey(id, start, 30*time.Minute)
		require.NoError(t, err)
		b, err := slot.NewKey(id, start.UTC(), 30*time.Minute)
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.String(), b.String())
	})

	t.Run("different duration breaks equality", func(t *testing.T) {
		a, err := slot.NewKey(id, start, 30*time.Minute)
		require.NoError(t, err)
		b, err := slot.NewKey(id, start, 60*time.Minute)
		require.NoError(t, err)
		assert.False(t, a.Equal(b))
		assert.NotEqual(t, a.String(), b.String())
	})

	t.Run("non-positive duration is rejected", func(t *testing.T) {
		_, err := slot.NewKey(id, start, 0)
		assert.ErrorIs(t, err, slot.ErrInvalidDuration)
	})
}

func TestHoldExpiry(t *testing.T) {
	expiry := time.Date(2026, 3, 10, 15, 10, 0, 0, time.UTC)
	hold := slot.Hold{ID: uuid.New(), ExpiresAt: expiry}

	assert.False(t, hold.Expired(expiry.Add(-time.Second)))
	assert.True(t, hold.Expired(expiry))
	assert.True(t, hold.Expired(expiry.Add(time.Second)))

	assert.Equal(t, 5*time.Minute, hold.Remaining(expiry.Add(-5*time.Minute)))
	assert.Equal(t, time.Duration(0), hold.Remaining(expiry.Add(time.Minute)))
}
