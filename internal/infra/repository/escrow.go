package repository

import (
	"context"

	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// EscrowRepository persists the append-only escrow ledger. Entries are never
// updated or deleted; the (booking_id, seq) primary key backs up the
// domain-level conservation check against concurrent writers.
type EscrowRepository struct{}

func NewEscrowRepository() *EscrowRepository {
	return &EscrowRepository{}
}

func (r *EscrowRepository) Load(ctx context.Context, db infra.DBTX, bookingID uuid.UUID, currency string, status escrow.Status) (*escrow.Ledger, error) {
	rows, err := db.Query(ctx, `
		SELECT booking_id, seq, kind, amount_cents, currency, note, created_at
		FROM escrow_entries
		WHERE booking_id = $1
		ORDER BY seq`, bookingID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load escrow entries", err)
	}
	defer rows.Close()

	var entries []escrow.Entry
	for rows.Next() {
		var (
			e         escrow.Entry
			kind      string
			note      pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&e.BookingID, &e.Seq, &kind, &e.AmountCents, &e.Currency, &note, &createdAt); err != nil {
			return nil, infra.WrapRepoErr("failed to scan escrow entry", err)
		}
		e.Kind = escrow.EntryKind(kind)
		if note.Valid {
			e.Note = note.String
		}
		e.CreatedAt = pgconv.TimeFromPgtype(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate escrow entries", err)
	}

	return escrow.Reconstruct(bookingID, currency, status, entries), nil
}

func (r *EscrowRepository) Append(ctx context.Context, db infra.DBTX, entries []escrow.Entry) error {
	for _, e := range entries {
		_, err := db.Exec(ctx, `
			INSERT INTO escrow_entries (booking_id, seq, kind, amount_cents, currency, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.BookingID, e.Seq, string(e.Kind), e.AmountCents, e.Currency,
			pgconv.StringPtrToPgtype(notePtr(e.Note)), e.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return infra.WrapRepoErr("escrow entry sequence conflict", err, infra.KindConflict)
			}
			return infra.WrapRepoErr("failed to append escrow entry", err)
		}
	}
	return nil
}

func notePtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
