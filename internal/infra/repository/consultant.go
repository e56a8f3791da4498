package repository

import (
	"context"
	"encoding/json"
	"time"

	"consult-engine/internal/domain/calendar"
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type ConsultantRepository struct{}

func NewConsultantRepository() *ConsultantRepository {
	return &ConsultantRepository{}
}

func (r *ConsultantRepository) FindByID(ctx context.Context, db infra.DBTX, id uuid.UUID) (*consultant.Consultant, error) {
	var (
		displayName, serviceTier, currency string
		hourlyRateCents                    int64
	)
	err := db.QueryRow(ctx, `
		SELECT display_name, service_tier, hourly_rate_cents, currency
		FROM consultants
		WHERE id = $1 AND active`, id,
	).Scan(&displayName, &serviceTier, &hourlyRateCents, &currency)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("consultant not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find consultant", err)
	}
	return consultant.New(id, displayName, serviceTier, hourlyRateCents, currency)
}

// LoadCalendar assembles the immutable calendar value object from the weekly
// windows, date overrides and blocked periods.
func (r *ConsultantRepository) LoadCalendar(ctx context.Context, db infra.DBTX, consultantID uuid.UUID) (*calendar.Calendar, error) {
	weekly, err := r.loadWindows(ctx, db, consultantID)
	if err != nil {
		return nil, err
	}
	overrides, err := r.loadOverrides(ctx, db, consultantID)
	if err != nil {
		return nil, err
	}
	blocked, err := r.loadBlocked(ctx, db, consultantID)
	if err != nil {
		return nil, err
	}

	cal, err := calendar.New(consultantID, weekly, overrides, blocked)
	if err != nil {
		return nil, infra.WrapRepoErr("stored calendar is invalid", err)
	}
	return cal, nil
}

func (r *ConsultantRepository) loadWindows(ctx context.Context, db infra.DBTX, consultantID uuid.UUID) ([]calendar.Window, error) {
	rows, err := db.Query(ctx, `
		SELECT weekday, start_min, end_min
		FROM availability_windows
		WHERE consultant_id = $1`, consultantID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query availability windows", err)
	}
	defer rows.Close()

	var out []calendar.Window
	for rows.Next() {
		var weekday, startMin, endMin int
		if err := rows.Scan(&weekday, &startMin, &endMin); err != nil {
			return nil, infra.WrapRepoErr("failed to scan availability window", err)
		}
		out = append(out, calendar.Window{
			Weekday: time.Weekday(weekday),
			Span:    calendar.Span{StartMin: startMin, EndMin: endMin},
		})
	}
	return out, rows.Err()
}

func (r *ConsultantRepository) loadOverrides(ctx context.Context, db infra.DBTX, consultantID uuid.UUID) ([]calendar.Override, error) {
	rows, err := db.Query(ctx, `
		SELECT date, spans
		FROM calendar_overrides
		WHERE consultant_id = $1`, consultantID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query calendar overrides", err)
	}
	defer rows.Close()

	var out []calendar.Override
	for rows.Next() {
		var (
			date  pgtype.Date
			spans []byte
		)
		if err := rows.Scan(&date, &spans); err != nil {
			return nil, infra.WrapRepoErr("failed to scan calendar override", err)
		}
		o := calendar.Override{Date: date.Time}
		if err := json.Unmarshal(spans, &o.Spans); err != nil {
			return nil, infra.WrapRepoErr("failed to decode override spans", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ConsultantRepository) loadBlocked(ctx context.Context, db infra.DBTX, consultantID uuid.UUID) ([]calendar.BlockedPeriod, error) {
	rows, err := db.Query(ctx, `
		SELECT from_at, to_at
		FROM blocked_periods
		WHERE consultant_id = $1`, consultantID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query blocked periods", err)
	}
	defer rows.Close()

	var out []calendar.BlockedPeriod
	for rows.Next() {
		var from, to pgtype.Timestamptz
		if err := rows.Scan(&from, &to); err != nil {
			return nil, infra.WrapRepoErr("failed to scan blocked period", err)
		}
		out = append(out, calendar.BlockedPeriod{
			From: pgconv.TimeFromPgtype(from),
			To:   pgconv.TimeFromPgtype(to),
		})
	}
	return out, rows.Err()
}
