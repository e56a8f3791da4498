package commands

import (
	"context"
	"errors"
	"sort"
	"time"

	"consult-engine/internal/domain/calendar"
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/uow"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/pkg/errs"

	"github.com/google/uuid"
)

// ReservationCoordinator turns a requested slot into a time-limited hold.
// It never decides contention itself; the slot ledger's conditional write
// does, and this layer only prepares the attempt and softens a loss with
// nearby alternatives.
type ReservationCoordinator struct {
	runner      uow.Runner
	ledger      SlotLedger
	consultants ConsultantRepository
	catalog     consultant.ServiceCatalog
	clk         clock.Clock
	cfg         config.HoldConfig
}

func NewReservationCoordinator(
	runner uow.Runner,
	ledger SlotLedger,
	consultants ConsultantRepository,
	catalog consultant.ServiceCatalog,
	clk clock.Clock,
	cfg config.HoldConfig,
) *ReservationCoordinator {
	return &ReservationCoordinator{
		runner:      runner,
		ledger:      ledger,
		consultants: consultants,
		catalog:     catalog,
		clk:         clk,
		cfg:         cfg,
	}
}

// Reserve validates the slot against the consultant's calendar and attempts
// to acquire it. When the slot is already claimed it returns ErrSlotTaken
// together with up to MaxAlternatives open slots near the requested time,
// closest first.
func (c *ReservationCoordinator) Reserve(
	ctx context.Context,
	consultantID, clientID uuid.UUID,
	serviceType string,
	startAt time.Time,
) (slot.Hold, []slot.Key, error) {
	duration, err := c.catalog.DurationFor(serviceType)
	if err != nil {
		return slot.Hold{}, nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	now := c.clk.Now()
	if !startAt.After(now) {
		return slot.Hold{}, nil, errs.Mark(slot.ErrStartInPast, errs.ErrSlotUnavailable)
	}

	key, err := slot.NewKey(consultantID, startAt, duration)
	if err != nil {
		return slot.Hold{}, nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	cal, err := c.loadCalendar(ctx, consultantID)
	if err != nil {
		return slot.Hold{}, nil, err
	}
	if !cal.Contains(key) {
		return slot.Hold{}, nil, errs.ErrSlotUnavailable
	}

	hold, err := c.ledger.TryAcquire(ctx, key, uuid.New(), clientID, serviceType, c.cfg.TTL)
	if err != nil {
		if errors.Is(err, errs.ErrSlotTaken) {
			alts := c.alternatives(ctx, cal, key, duration)
			return slot.Hold{}, alts, err
		}
		return slot.Hold{}, nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return hold, nil, nil
}

// CancelHold releases a live hold. Idempotent through the ledger.
func (c *ReservationCoordinator) CancelHold(ctx context.Context, holdID uuid.UUID) error {
	return c.ledger.Release(ctx, holdID)
}

func (c *ReservationCoordinator) loadCalendar(ctx context.Context, consultantID uuid.UUID) (*calendar.Calendar, error) {
	if _, err := c.consultants.FindByID(ctx, c.runner.DB(), consultantID); err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrConsultantNotFound)
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	cal, err := c.consultants.LoadCalendar(ctx, c.runner.DB(), consultantID)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return cal, nil
}

// alternatives materializes calendar slots within AlternativeSpan of the
// contested start, drops anything already claimed, and ranks by distance.
// Best effort: a ledger read failure returns no alternatives rather than
// failing the reservation response.
func (c *ReservationCoordinator) alternatives(ctx context.Context, cal *calendar.Calendar, contested slot.Key, duration time.Duration) []slot.Key {
	if c.cfg.MaxAlternatives <= 0 {
		return nil
	}

	now := c.clk.Now()
	from := contested.StartAt().Add(-c.cfg.AlternativeSpan)
	if from.Before(now) {
		from = now
	}
	to := contested.StartAt().Add(c.cfg.AlternativeSpan + duration)

	claimed, err := c.ledger.ClaimedKeys(ctx, contested.ConsultantID(), from, to)
	if err != nil {
		return nil
	}

	var open []slot.Key
	for _, k := range cal.SlotsBetween(from, to, duration) {
		if k.Equal(contested) {
			continue
		}
		if _, taken := claimed[k.String()]; taken {
			continue
		}
		open = append(open, k)
	}

	sort.Slice(open, func(i, j int) bool {
		return absDuration(open[i].StartAt().Sub(contested.StartAt())) <
			absDuration(open[j].StartAt().Sub(contested.StartAt()))
	})
	if len(open) > c.cfg.MaxAlternatives {
		open = open[:c.cfg.MaxAlternatives]
	}
	return open
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
