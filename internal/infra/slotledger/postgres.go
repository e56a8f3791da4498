package slotledger

import (
	"context"
	"time"

	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger implements the conditional-write primitive on a single
// slot_claims row per slot identity. Acquire, promote, release and sweep all
// serialize through the row, never through an in-process lock.
type PostgresLedger struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

func NewPostgresLedger(pool *pgxpool.Pool, clk clock.Clock) *PostgresLedger {
	return &PostgresLedger{pool: pool, clock: clk}
}

// The upsert claims the row when it is absent, and steals it only from an
// expired hold. Expiry check and acquire are one atomic statement, so no new
// hold can be created while the current occupant is ambiguous.
const tryAcquireSQL = `
INSERT INTO slot_claims (
	slot_key, consultant_id, start_at, duration_min,
	hold_id, client_id, service_type, state, created_at, expires_at, version
) VALUES ($1, $2, $3, $4, $5, $6, $7, 'held', $8, $9, 1)
ON CONFLICT (slot_key) DO UPDATE SET
	hold_id = EXCLUDED.hold_id,
	client_id = EXCLUDED.client_id,
	service_type = EXCLUDED.service_type,
	state = 'held',
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at,
	version = slot_claims.version + 1
WHERE slot_claims.state = 'held' AND slot_claims.expires_at <= EXCLUDED.created_at
RETURNING expires_at`

func (l *PostgresLedger) TryAcquire(ctx context.Context, key slot.Key, holdID, clientID uuid.UUID, serviceType string, ttl time.Duration) (slot.Hold, error) {
	now := l.clock.Now()
	var expiresAt pgtype.Timestamptz
	err := l.pool.QueryRow(ctx, tryAcquireSQL,
		key.String(), key.ConsultantID(), key.StartAt(), key.DurationMinutes(),
		holdID, clientID, serviceType, now, now.Add(ttl),
	).Scan(&expiresAt)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return slot.Hold{}, errSlotTaken
		}
		return slot.Hold{}, infra.WrapRepoErr("failed to acquire slot claim", err)
	}

	return slot.Hold{
		ID:          holdID,
		Key:         key,
		ClientID:    clientID,
		ServiceType: serviceType,
		CreatedAt:   now,
		ExpiresAt:   pgconv.TimeFromPgtype(expiresAt),
	}, nil
}

// Matching an already booked row makes promotion idempotent; matching a live
// hold performs the swap. An expired or missing hold matches nothing and the
// caller must restart the flow.
const promoteSQL = `
UPDATE slot_claims SET
	state = 'booked',
	version = version + 1
WHERE hold_id = $1 AND (state = 'booked' OR (state = 'held' AND expires_at > $2))
RETURNING version`

func (l *PostgresLedger) Promote(ctx context.Context, holdID uuid.UUID) error {
	var version int64
	err := l.pool.QueryRow(ctx, promoteSQL, holdID, l.clock.Now()).Scan(&version)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return errHoldExpired
		}
		return infra.WrapRepoErr("failed to promote hold", err)
	}
	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, holdID uuid.UUID) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM slot_claims WHERE hold_id = $1 AND state = 'held'`, holdID)
	if err != nil {
		return infra.WrapRepoErr("failed to release hold", err)
	}
	return nil
}

func (l *PostgresLedger) ReleaseBooked(ctx context.Context, holdID uuid.UUID) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM slot_claims WHERE hold_id = $1 AND state = 'booked'`, holdID)
	if err != nil {
		return infra.WrapRepoErr("failed to release booked claim", err)
	}
	return nil
}

const claimedKeysSQL = `
SELECT slot_key, state
FROM slot_claims
WHERE consultant_id = $1
  AND start_at < $2
  AND start_at + make_interval(mins => duration_min) > $3
  AND (state = 'booked' OR (state = 'held' AND expires_at > $4))`

func (l *PostgresLedger) ClaimedKeys(ctx context.Context, consultantID uuid.UUID, from, to time.Time) (map[string]slot.State, error) {
	rows, err := l.pool.Query(ctx, claimedKeysSQL, consultantID, to, from, l.clock.Now())
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query slot claims", err)
	}
	defer rows.Close()

	out := map[string]slot.State{}
	for rows.Next() {
		var key string
		var state string
		if err := rows.Scan(&key, &state); err != nil {
			return nil, infra.WrapRepoErr("failed to scan slot claim", err)
		}
		out[key] = slot.State(state)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate slot claims", err)
	}
	return out, nil
}

const sweepSQL = `
DELETE FROM slot_claims
WHERE state = 'held' AND expires_at <= $1
RETURNING hold_id, client_id, consultant_id, start_at, duration_min`

func (l *PostgresLedger) SweepExpired(ctx context.Context) ([]ExpiredHold, error) {
	rows, err := l.pool.Query(ctx, sweepSQL, l.clock.Now())
	if err != nil {
		return nil, infra.WrapRepoErr("failed to sweep expired holds", err)
	}
	defer rows.Close()

	var reaped []ExpiredHold
	for rows.Next() {
		var (
			holdID, clientID, consultantID uuid.UUID
			startAt                        pgtype.Timestamptz
			durationMin                    int32
		)
		if err := rows.Scan(&holdID, &clientID, &consultantID, &startAt, &durationMin); err != nil {
			return nil, infra.WrapRepoErr("failed to scan expired hold", err)
		}
		key, err := slot.NewKey(consultantID, pgconv.TimeFromPgtype(startAt), time.Duration(durationMin)*time.Minute)
		if err != nil {
			continue
		}
		reaped = append(reaped, ExpiredHold{HoldID: holdID, ClientID: clientID, Key: key})
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate expired holds", err)
	}
	return reaped, nil
}
