package escrow

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFeeSchedule          = errors.New("invalid fee schedule")
	ErrUnknownServiceTier          = errors.New("unknown service tier")
	ErrInvalidCancellationSchedule = errors.New("invalid cancellation schedule")
)

// FeeSchedule maps a service tier to the platform fee percentage applied at
// capture. The split is deterministic: fee + payout always equals the
// captured amount.
type FeeSchedule struct {
	percentByTier map[string]int
}

// ParseFeeSchedule parses "standard:15,premium:20".
func ParseFeeSchedule(raw string) (FeeSchedule, error) {
	byTier := map[string]int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tier, pctStr, ok := strings.Cut(part, ":")
		if !ok {
			return FeeSchedule{}, ErrInvalidFeeSchedule
		}
		pct, err := strconv.Atoi(strings.TrimSpace(pctStr))
		if err != nil || pct < 0 || pct > 100 {
			return FeeSchedule{}, ErrInvalidFeeSchedule
		}
		byTier[strings.TrimSpace(tier)] = pct
	}
	if len(byTier) == 0 {
		return FeeSchedule{}, ErrInvalidFeeSchedule
	}
	return FeeSchedule{percentByTier: byTier}, nil
}

// Split divides a captured amount into platform fee and consultant payout.
// The fee rounds down so rounding never shorts the consultant.
func (f FeeSchedule) Split(amountCents int64, tier string) (feeCents, payoutCents int64, err error) {
	pct, ok := f.percentByTier[tier]
	if !ok {
		return 0, 0, ErrUnknownServiceTier
	}
	fee := amountCents * int64(pct) / 100
	return fee, amountCents - fee, nil
}

func (f FeeSchedule) HasTier(tier string) bool {
	_, ok := f.percentByTier[tier]
	return ok
}

type cancellationStep struct {
	hoursBefore int
	refundPct   int
}

// CancellationSchedule is a monotonic refund schedule: the closer the
// cancellation is to the start time, the smaller the refund percentage.
type CancellationSchedule struct {
	steps []cancellationStep // sorted by hoursBefore descending
}

// ParseCancellationSchedule parses "24:100,12:50,0:0" (hoursBefore:refundPct)
// and rejects schedules where the refund grows as the start approaches.
func ParseCancellationSchedule(raw string) (CancellationSchedule, error) {
	var steps []cancellationStep
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hoursStr, pctStr, ok := strings.Cut(part, ":")
		if !ok {
			return CancellationSchedule{}, ErrInvalidCancellationSchedule
		}
		hours, err := strconv.Atoi(strings.TrimSpace(hoursStr))
		if err != nil || hours < 0 {
			return CancellationSchedule{}, ErrInvalidCancellationSchedule
		}
		pct, err := strconv.Atoi(strings.TrimSpace(pctStr))
		if err != nil || pct < 0 || pct > 100 {
			return CancellationSchedule{}, ErrInvalidCancellationSchedule
		}
		steps = append(steps, cancellationStep{hoursBefore: hours, refundPct: pct})
	}
	if len(steps) == 0 {
		return CancellationSchedule{}, ErrInvalidCancellationSchedule
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].hoursBefore > steps[j].hoursBefore })
	for i := 1; i < len(steps); i++ {
		if steps[i].refundPct > steps[i-1].refundPct {
			return CancellationSchedule{}, ErrInvalidCancellationSchedule
		}
	}
	return CancellationSchedule{steps: steps}, nil
}

// RefundPercent returns the refund percentage for a cancellation at now
// against the scheduled start. Past-start cancellations refund nothing.
func (c CancellationSchedule) RefundPercent(now, startAt time.Time) int {
	if !startAt.After(now) {
		return 0
	}
	hoursBefore := startAt.Sub(now).Hours()
	for _, step := range c.steps {
		if hoursBefore >= float64(step.hoursBefore) {
			return step.refundPct
		}
	}
	return 0
}

// RefundAmount applies the percentage to the captured amount, rounding down.
func (c CancellationSchedule) RefundAmount(capturedCents int64, now, startAt time.Time) int64 {
	return capturedCents * int64(c.RefundPercent(now, startAt)) / 100
}
