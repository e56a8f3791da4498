package queries

import (
	"context"
	"log/slog"
	"time"

	"consult-engine/internal/domain/calendar"
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/matching"
	"consult-engine/internal/infra/uow"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/errs"

	"github.com/google/uuid"
)

// OpenSlot is a bookable slot offer: calendar availability minus live claims
// at query time. It is a snapshot, not a promise; the reservation attempt is
// what decides.
type OpenSlot struct {
	ConsultantID uuid.UUID `json:"consultant_id"`
	StartAt      time.Time `json:"start_at"`
	DurationMin  int32     `json:"duration_min"`
	ServiceType  string    `json:"service_type"`
}

// ConsultantSuggestion pairs a ranked consultant with their next open slots.
type ConsultantSuggestion struct {
	ConsultantID uuid.UUID  `json:"consultant_id"`
	Score        float64    `json:"score"`
	NextSlots    []OpenSlot `json:"next_slots"`
}

//go:generate mockgen -source=slots.go -destination=../../../tests/mock/queries/slots_mock.go -package=queriesmock

type SlotQueries interface {
	ListOpenSlots(ctx context.Context, consultantID uuid.UUID, serviceType string, from, to time.Time) ([]OpenSlot, error)
	SuggestConsultants(ctx context.Context, req matching.Requirements, from, to time.Time, slotsPer int) ([]ConsultantSuggestion, error)
}

type CalendarReader interface {
	LoadCalendar(ctx context.Context, db infra.DBTX, consultantID uuid.UUID) (*calendar.Calendar, error)
}

type ClaimReader interface {
	ClaimedKeys(ctx context.Context, consultantID uuid.UUID, from, to time.Time) (map[string]slot.State, error)
}

type slotQueriesImpl struct {
	runner    uow.Runner
	calendars CalendarReader
	claims    ClaimReader
	ranker    matching.Ranker
	catalog   consultant.ServiceCatalog
	clk       clock.Clock
}

func NewSlotQueries(
	runner uow.Runner,
	calendars CalendarReader,
	claims ClaimReader,
	ranker matching.Ranker,
	catalog consultant.ServiceCatalog,
	clk clock.Clock,
) SlotQueries {
	return &slotQueriesImpl{
		runner:    runner,
		calendars: calendars,
		claims:    claims,
		ranker:    ranker,
		catalog:   catalog,
		clk:       clk,
	}
}

func (q *slotQueriesImpl) ListOpenSlots(ctx context.Context, consultantID uuid.UUID, serviceType string, from, to time.Time) ([]OpenSlot, error) {
	duration, err := q.catalog.DurationFor(serviceType)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}
	if now := q.clk.Now(); from.Before(now) {
		from = now
	}
	if !to.After(from) {
		return nil, nil
	}

	cal, err := q.calendars.LoadCalendar(ctx, q.runner.DB(), consultantID)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	claimed, err := q.claims.ClaimedKeys(ctx, consultantID, from, to)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	var out []OpenSlot
	for _, k := range cal.SlotsBetween(from, to, duration) {
		if _, taken := claimed[k.String()]; taken {
			continue
		}
		out = append(out, OpenSlot{
			ConsultantID: k.ConsultantID(),
			StartAt:      k.StartAt(),
			DurationMin:  k.DurationMinutes(),
			ServiceType:  serviceType,
		})
	}
	return out, nil
}

// SuggestConsultants asks the matching service for a ranking and attaches
// each consultant's next open slots. A matching outage degrades to an empty
// suggestion list; the caller can still browse consultants directly.
func (q *slotQueriesImpl) SuggestConsultants(ctx context.Context, req matching.Requirements, from, to time.Time, slotsPer int) ([]ConsultantSuggestion, error) {
	ranked, err := q.ranker.GetRankedConsultants(ctx, req)
	if err != nil {
		slog.Warn("matching service unavailable", "error", err.Error())
		return nil, nil
	}
	if slotsPer <= 0 {
		slotsPer = 3
	}

	out := make([]ConsultantSuggestion, 0, len(ranked))
	for _, rc := range ranked {
		open, err := q.ListOpenSlots(ctx, rc.ConsultantID, req.ServiceType, from, to)
		if err != nil {
			slog.Warn("failed to list open slots for suggestion",
				"consultant_id", rc.ConsultantID.String(), "error", err.Error())
			continue
		}
		if len(open) > slotsPer {
			open = open[:slotsPer]
		}
		out = append(out, ConsultantSuggestion{
			ConsultantID: rc.ConsultantID,
			Score:        rc.Score,
			NextSlots:    open,
		})
	}
	return out, nil
}
