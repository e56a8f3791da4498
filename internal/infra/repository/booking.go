package repository

import (
	"context"
	"errors"
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/domain/slot"
	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const bookingColumns = `
	id, reference_code, consultant_id, client_id, start_at, duration_min,
	service_type, hold_id, status, amount_cents, currency, platform_fee_cents,
	consultant_payout_cents, escrow_status, processor_intent_id,
	delivery_confirmed, delivered_by, cancel_reason, rescheduled_from,
	escrow_root_id, version, created_at, updated_at`

type BookingRepository struct{}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{}
}

func (r *BookingRepository) Create(ctx context.Context, db infra.DBTX, b *booking.Booking) error {
	p := b.Payment()
	_, err := db.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		b.ID(), b.ReferenceCode(), b.ConsultantID(), b.ClientID(),
		b.SlotKey().StartAt(), b.SlotKey().DurationMinutes(),
		b.ServiceType(), b.HoldID(), b.Status().String(),
		p.AmountCents, p.Currency, p.PlatformFeeCents, p.ConsultantPayout,
		p.EscrowStatus.String(), p.ProcessorIntentID,
		b.DeliveryConfirmed(), actorPtrToText(b.DeliveredBy()), reasonPtrToText(b.CancelReason()),
		pgconv.UUIDPtrToPgtype(b.RescheduledFrom()), b.EscrowRootID(),
		b.Version(), b.CreatedAt(), b.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("booking already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create booking", err)
	}
	return nil
}

// Update is a compare-and-swap on the version column: writes for the same
// booking are applied in causal order, lost races surface as KindConflict.
func (r *BookingRepository) Update(ctx context.Context, db infra.DBTX, b *booking.Booking, expectedVersion int64) error {
	p := b.Payment()
	tag, err := db.Exec(ctx, `
		UPDATE bookings SET
			status = $2, platform_fee_cents = $3, consultant_payout_cents = $4,
			escrow_status = $5, delivery_confirmed = $6, delivered_by = $7,
			cancel_reason = $8, rescheduled_from = $9, escrow_root_id = $10,
			version = $11, updated_at = $12
		WHERE id = $1 AND version = $13`,
		b.ID(), b.Status().String(), p.PlatformFeeCents, p.ConsultantPayout,
		p.EscrowStatus.String(), b.DeliveryConfirmed(), actorPtrToText(b.DeliveredBy()),
		reasonPtrToText(b.CancelReason()), pgconv.UUIDPtrToPgtype(b.RescheduledFrom()),
		b.EscrowRootID(), b.Version(), b.UpdatedAt(), expectedVersion,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update booking", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("booking version conflict", nil, infra.KindConflict)
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, db infra.DBTX, id uuid.UUID) (*booking.Booking, error) {
	return r.findOne(ctx, db, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) FindByHoldID(ctx context.Context, db infra.DBTX, holdID uuid.UUID) (*booking.Booking, error) {
	return r.findOne(ctx, db, `SELECT `+bookingColumns+` FROM bookings WHERE hold_id = $1`, holdID)
}

func (r *BookingRepository) FindByIntentID(ctx context.Context, db infra.DBTX, intentID string) (*booking.Booking, error) {
	return r.findOne(ctx, db, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE processor_intent_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, intentID)
}

// DueForReminder lists confirmed bookings starting within the lead window.
func (r *BookingRepository) DueForReminder(ctx context.Context, db infra.DBTX, now time.Time, lead time.Duration) ([]*booking.Booking, error) {
	return r.findMany(ctx, db, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'confirmed' AND start_at > $1 AND start_at <= $2`,
		now, now.Add(lead))
}

// DueToStart lists confirmed or reminded bookings whose window is open now.
func (r *BookingRepository) DueToStart(ctx context.Context, db infra.DBTX, now time.Time) ([]*booking.Booking, error) {
	return r.findMany(ctx, db, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ('confirmed', 'reminded')
		  AND start_at <= $1
		  AND start_at + make_interval(mins => duration_min) > $1`,
		now)
}

// DueForAutoRelease lists captured bookings whose scheduled end passed more
// than the auto-release window ago with no dispute filed.
func (r *BookingRepository) DueForAutoRelease(ctx context.Context, db infra.DBTX, now time.Time, after time.Duration) ([]*booking.Booking, error) {
	return r.findMany(ctx, db, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ('confirmed', 'reminded', 'in_progress')
		  AND escrow_status = 'captured'
		  AND start_at + make_interval(mins => duration_min) <= $1`,
		now.Add(-after))
}

// StalePendingPayment lists bookings still awaiting payment past the point
// where their hold could possibly be alive. These only exist when the hold
// expiry cancellation was interrupted before it reached the booking.
func (r *BookingRepository) StalePendingPayment(ctx context.Context, db infra.DBTX, cutoff time.Time) ([]*booking.Booking, error) {
	return r.findMany(ctx, db, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending_payment' AND created_at <= $1`,
		cutoff)
}

func (r *BookingRepository) findOne(ctx context.Context, db infra.DBTX, sql string, args ...any) (*booking.Booking, error) {
	row := db.QueryRow(ctx, sql, args...)
	b, err := scanBooking(row)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking", err)
	}
	return b, nil
}

func (r *BookingRepository) findMany(ctx context.Context, db infra.DBTX, sql string, args ...any) ([]*booking.Booking, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query bookings", err)
	}
	defer rows.Close()

	var out []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan booking", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate bookings", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var (
		id, consultantID, clientID, holdID, escrowRootID uuid.UUID
		referenceCode, serviceType, status, currency     string
		escrowStatus, intentID                           string
		startAt, createdAt, updatedAt                    pgtype.Timestamptz
		durationMin                                      int32
		amountCents, feeCents, payoutCents, version      int64
		deliveryConfirmed                                bool
		deliveredBy, cancelReason                        pgtype.Text
		rescheduledFrom                                  pgtype.UUID
	)
	err := row.Scan(
		&id, &referenceCode, &consultantID, &clientID, &startAt, &durationMin,
		&serviceType, &holdID, &status, &amountCents, &currency, &feeCents,
		&payoutCents, &escrowStatus, &intentID, &deliveryConfirmed,
		&deliveredBy, &cancelReason, &rescheduledFrom, &escrowRootID,
		&version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	key, err := slot.NewKey(consultantID, pgconv.TimeFromPgtype(startAt), time.Duration(durationMin)*time.Minute)
	if err != nil {
		return nil, err
	}

	var actor *booking.Actor
	if deliveredBy.Valid {
		a := booking.Actor(deliveredBy.String)
		actor = &a
	}
	var reason *booking.CancelReason
	if cancelReason.Valid {
		cr := booking.CancelReason(cancelReason.String)
		reason = &cr
	}

	return booking.Reconstruct(
		id, referenceCode, consultantID, clientID, key, serviceType, holdID,
		booking.Status(status),
		booking.Payment{
			AmountCents:       amountCents,
			Currency:          currency,
			PlatformFeeCents:  feeCents,
			ConsultantPayout:  payoutCents,
			EscrowStatus:      escrow.Status(escrowStatus),
			ProcessorIntentID: intentID,
		},
		deliveryConfirmed, actor, reason,
		pgconv.UUIDPtrFromPgtype(rescheduledFrom), escrowRootID,
		version,
		pgconv.TimeFromPgtype(createdAt), pgconv.TimeFromPgtype(updatedAt),
	), nil
}

func actorPtrToText(a *booking.Actor) pgtype.Text {
	if a == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*a), Valid: true}
}

func reasonPtrToText(r *booking.CancelReason) pgtype.Text {
	if r == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*r), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
