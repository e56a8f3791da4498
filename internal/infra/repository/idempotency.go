package repository

import (
	"context"
	"time"

	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type IdempotencyRecord struct {
	Key             uuid.UUID
	ClientID        uuid.UUID
	Endpoint        string
	RequestHash     string
	Status          string // processing | completed
	ResultBookingID *uuid.UUID
	ExpiresAt       time.Time
}

type IdempotencyRepository struct{}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{}
}

// TryInsert claims the key in 'processing' state and reports whether this
// caller won the claim. A replayed key is not an error; the caller reads the
// record back and decides replay vs conflict.
func (r *IdempotencyRepository) TryInsert(ctx context.Context, db infra.DBTX, key, clientID uuid.UUID, endpoint, requestHash string, expiresAt time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO idempotency_keys (key, client_id, endpoint, request_hash, status, expires_at)
		VALUES ($1, $2, $3, $4, 'processing', $5)
		ON CONFLICT (key, client_id) DO NOTHING`,
		key, clientID, endpoint, requestHash, expiresAt,
	)
	if err != nil {
		return false, infra.WrapRepoErr("failed to insert idempotency key", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *IdempotencyRepository) Get(ctx context.Context, db infra.DBTX, key, clientID uuid.UUID) (*IdempotencyRecord, error) {
	var (
		rec             IdempotencyRecord
		resultBookingID pgtype.UUID
		expiresAt       pgtype.Timestamptz
	)
	err := db.QueryRow(ctx, `
		SELECT key, client_id, endpoint, request_hash, status, result_booking_id, expires_at
		FROM idempotency_keys
		WHERE key = $1 AND client_id = $2`, key, clientID,
	).Scan(&rec.Key, &rec.ClientID, &rec.Endpoint, &rec.RequestHash, &rec.Status, &resultBookingID, &expiresAt)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("idempotency key not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to get idempotency key", err)
	}
	rec.ResultBookingID = pgconv.UUIDPtrFromPgtype(resultBookingID)
	rec.ExpiresAt = pgconv.TimeFromPgtype(expiresAt)
	return &rec, nil
}

func (r *IdempotencyRepository) MarkCompleted(ctx context.Context, db infra.DBTX, key, clientID, resultBookingID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = 'completed', result_booking_id = $3
		WHERE key = $1 AND client_id = $2`,
		key, clientID, resultBookingID,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to complete idempotency key", err)
	}
	return nil
}
