// Package readstore serves the query side: denormalized views read straight
// from the primary, bypassing the domain layer.
package readstore

import (
	"context"
	"time"

	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/pgconv"
	"consult-engine/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const bookingViewColumns = `
	b.id, b.reference_code, b.consultant_id, c.display_name, b.client_id,
	b.start_at, b.duration_min, b.service_type, b.status, b.escrow_status,
	b.amount_cents, b.currency, b.platform_fee_cents, b.consultant_payout_cents,
	b.cancel_reason, b.rescheduled_from, b.created_at, b.updated_at`

const bookingListColumns = `
	b.id, b.reference_code, b.consultant_id, c.display_name,
	b.start_at, b.duration_min, b.service_type, b.status, b.amount_cents,
	b.created_at`

type BookingReadStore struct {
	db infra.DBTX
}

func NewBookingReadStore(db infra.DBTX) *BookingReadStore {
	return &BookingReadStore{db: db}
}

func (r *BookingReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.BookingView, error) {
	return r.findOne(ctx, `
		SELECT `+bookingViewColumns+`
		FROM bookings b
		JOIN consultants c ON c.id = b.consultant_id
		WHERE b.id = $1`, id)
}

func (r *BookingReadStore) FindByReference(ctx context.Context, referenceCode string) (*queries.BookingView, error) {
	return r.findOne(ctx, `
		SELECT `+bookingViewColumns+`
		FROM bookings b
		JOIN consultants c ON c.id = b.consultant_id
		WHERE b.reference_code = $1`, referenceCode)
}

func (r *BookingReadStore) FindByClientFirstPage(ctx context.Context, clientID uuid.UUID, limit int32) ([]*queries.BookingListItem, error) {
	return r.findList(ctx, `
		SELECT `+bookingListColumns+`
		FROM bookings b
		JOIN consultants c ON c.id = b.consultant_id
		WHERE b.client_id = $1
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $2`, clientID, limit)
}

func (r *BookingReadStore) FindByClientKeyset(ctx context.Context, clientID uuid.UUID, lastCreatedAt time.Time, lastID uuid.UUID, limit int32) ([]*queries.BookingListItem, error) {
	return r.findList(ctx, `
		SELECT `+bookingListColumns+`
		FROM bookings b
		JOIN consultants c ON c.id = b.consultant_id
		WHERE b.client_id = $1
		  AND (b.created_at, b.id) < ($2, $3)
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $4`, clientID, lastCreatedAt, lastID, limit)
}

func (r *BookingReadStore) FindByConsultantBetween(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]*queries.BookingListItem, error) {
	return r.findList(ctx, `
		SELECT `+bookingListColumns+`
		FROM bookings b
		JOIN consultants c ON c.id = b.consultant_id
		WHERE b.consultant_id = $1
		  AND b.start_at >= $2 AND b.start_at < $3
		ORDER BY b.start_at`, consultantID, from, to)
}

func (r *BookingReadStore) FindEscrowStatement(ctx context.Context, bookingID uuid.UUID) (*queries.EscrowStatement, error) {
	var (
		escrowStatus string
		escrowRootID uuid.UUID
	)
	err := r.db.QueryRow(ctx, `
		SELECT escrow_status, escrow_root_id FROM bookings WHERE id = $1`, bookingID,
	).Scan(&escrowStatus, &escrowRootID)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking for statement", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT seq, kind, amount_cents, currency, note, created_at
		FROM escrow_entries
		WHERE booking_id = $1
		ORDER BY seq`, escrowRootID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load escrow statement", err)
	}
	defer rows.Close()

	stmt := &queries.EscrowStatement{BookingID: bookingID, EscrowStatus: escrowStatus}
	for rows.Next() {
		var (
			e         queries.EscrowEntryView
			note      pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&e.Seq, &e.Kind, &e.AmountCents, &e.Currency, &note, &createdAt); err != nil {
			return nil, infra.WrapRepoErr("failed to scan escrow entry", err)
		}
		e.Note = pgconv.StringPtrFromPgtype(note)
		e.CreatedAt = pgconv.TimeFromPgtype(createdAt)
		stmt.BalanceCents += e.AmountCents
		stmt.Entries = append(stmt.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate escrow entries", err)
	}
	return stmt, nil
}

func (r *BookingReadStore) findOne(ctx context.Context, sql string, args ...any) (*queries.BookingView, error) {
	var (
		v               queries.BookingView
		startAt         pgtype.Timestamptz
		createdAt       pgtype.Timestamptz
		updatedAt       pgtype.Timestamptz
		cancelReason    pgtype.Text
		rescheduledFrom pgtype.UUID
	)
	err := r.db.QueryRow(ctx, sql, args...).Scan(
		&v.ID, &v.ReferenceCode, &v.ConsultantID, &v.ConsultantName, &v.ClientID,
		&startAt, &v.DurationMin, &v.ServiceType, &v.Status, &v.EscrowStatus,
		&v.AmountCents, &v.Currency, &v.PlatformFeeCents, &v.ConsultantPayout,
		&cancelReason, &rescheduledFrom, &createdAt, &updatedAt,
	)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking view", err)
	}
	v.StartAt = pgconv.TimeFromPgtype(startAt)
	v.CreatedAt = pgconv.TimeFromPgtype(createdAt)
	v.UpdatedAt = pgconv.TimeFromPgtype(updatedAt)
	v.CancelReason = pgconv.StringPtrFromPgtype(cancelReason)
	v.RescheduledFrom = pgconv.UUIDPtrFromPgtype(rescheduledFrom)
	return &v, nil
}

func (r *BookingReadStore) findList(ctx context.Context, sql string, args ...any) ([]*queries.BookingListItem, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query booking list", err)
	}
	defer rows.Close()

	var out []*queries.BookingListItem
	for rows.Next() {
		var (
			item      queries.BookingListItem
			startAt   pgtype.Timestamptz
			createdAt pgtype.Timestamptz
		)
		err := rows.Scan(
			&item.ID, &item.ReferenceCode, &item.ConsultantID, &item.ConsultantName,
			&startAt, &item.DurationMin, &item.ServiceType, &item.Status,
			&item.AmountCents, &createdAt,
		)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan booking list item", err)
		}
		item.StartAt = pgconv.TimeFromPgtype(startAt)
		item.CreatedAt = pgconv.TimeFromPgtype(createdAt)
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate booking list", err)
	}
	return out, nil
}
