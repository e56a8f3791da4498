package repository

import (
	"context"

	"consult-engine/internal/infra"
)

// PaymentEventRepository dedupes gateway callbacks. The (intent_id, outcome)
// primary key makes duplicate webhook deliveries observable as a replay, so
// the capture handler runs its side effects at most once per outcome. Seen
// answers the cheap early check; TryRecord claims the row inside the caller's
// transaction so the claim rolls back with the work it guards.
type PaymentEventRepository struct{}

func NewPaymentEventRepository() *PaymentEventRepository {
	return &PaymentEventRepository{}
}

// Seen reports whether this (intentID, outcome) pair was already processed.
func (r *PaymentEventRepository) Seen(ctx context.Context, db infra.DBTX, intentID, outcome string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_events WHERE intent_id = $1 AND outcome = $2
		)`, intentID, outcome,
	).Scan(&exists)
	if err != nil {
		return false, infra.WrapRepoErr("failed to check payment event", err)
	}
	return exists, nil
}

// TryRecord returns false when this (intentID, outcome) pair was already
// processed.
func (r *PaymentEventRepository) TryRecord(ctx context.Context, db infra.DBTX, intentID, outcome string) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO payment_events (intent_id, outcome)
		VALUES ($1, $2)
		ON CONFLICT (intent_id, outcome) DO NOTHING`,
		intentID, outcome,
	)
	if err != nil {
		return false, infra.WrapRepoErr("failed to record payment event", err)
	}
	return tag.RowsAffected() > 0, nil
}
