//go:build unit

package escrow_test

import (
	"testing"
	"time"

	"consult-engine/internal/domain/escrow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeeSchedule(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "single tier", raw: "standard:15"},
		{name: "multiple tiers with spaces", raw: "standard:15, premium:20"},
		{name: "zero percent", raw: "standard:0"},
		{name: "hundred percent", raw: "standard:100"},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing percent", raw: "standard", wantErr: true},
		{name: "negative percent", raw: "standard:-1", wantErr: true},
		{name: "over hundred", raw: "standard:101", wantErr: true},
		{name: "non-numeric", raw: "standard:abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := escrow.ParseFeeSchedule(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, escrow.ErrInvalidFeeSchedule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFeeScheduleSplit(t *testing.T) {
	fees, err := escrow.ParseFeeSchedule("standard:15,premium:20")
	require.NoError(t, err)

	t.Run("split conserves the amount", func(t *testing.T) {
		fee, payout, err := fees.Split(10000, "standard")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), fee)
		assert.Equal(t, int64(8500), payout)
		assert.Equal(t, int64(10000), fee+payout)
	})

	t.Run("fee rounds down in the consultant's favor", func(t *testing.T) {
		fee, payout, err := fees.Split(999, "standard")
		require.NoError(t, err)
		assert.Equal(t, int64(149), fee)
		assert.Equal(t, int64(850), payout)
	})

	t.Run("unknown tier is rejected", func(t *testing.T) {
		_, _, err := fees.Split(10000, "enterprise")
		assert.ErrorIs(t, err, escrow.ErrUnknownServiceTier)
	})

	t.Run("has tier", func(t *testing.T) {
		assert.True(t, fees.HasTier("premium"))
		assert.False(t, fees.HasTier("enterprise"))
	})
}

func TestParseCancellationSchedule(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "standard schedule", raw: "24:100,12:50,0:0"},
		{name: "unordered input sorts fine", raw: "0:0,24:100,12:50"},
		{name: "single step", raw: "0:100"},
		{name: "empty", raw: "", wantErr: true},
		{name: "refund grows toward start", raw: "24:50,12:100", wantErr: true},
		{name: "negative hours", raw: "-1:50", wantErr: true},
		{name: "percent over hundred", raw: "24:150", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := escrow.ParseCancellationSchedule(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, escrow.ErrInvalidCancellationSchedule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCancellationScheduleRefund(t *testing.T) {
	sched, err := escrow.ParseCancellationSchedule("24:100,12:50,0:0")
	require.NoError(t, err)

	start := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		wantPct int
	}{
		{name: "more than a day ahead", now: start.Add(-30 * time.Hour), wantPct: 100},
		{name: "exactly 24 hours ahead", now: start.Add(-24 * time.Hour), wantPct: 100},
		{name: "between steps", now: start.Add(-13 * time.Hour), wantPct: 50},
		{name: "last minute", now: start.Add(-10 * time.Minute), wantPct: 0},
		{name: "at start", now: start, wantPct: 0},
		{name: "after start", now: start.Add(time.Hour), wantPct: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantPct, sched.RefundPercent(tt.now, start))
		})
	}

	t.Run("refund amount rounds down", func(t *testing.T) {
		amount := sched.RefundAmount(999, start.Add(-13*time.Hour), start)
		assert.Equal(t, int64(499), amount)
	})
}
