package queries

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Read models (DTO for read side)
type BookingView struct {
	ID               uuid.UUID  `json:"id"`
	ReferenceCode    string     `json:"reference_code"`
	ConsultantID     uuid.UUID  `json:"consultant_id"`
	ConsultantName   string     `json:"consultant_name"`
	ClientID         uuid.UUID  `json:"client_id"`
	StartAt          time.Time  `json:"start_at"`
	DurationMin      int32      `json:"duration_min"`
	ServiceType      string     `json:"service_type"`
	Status           string     `json:"status"`
	EscrowStatus     string     `json:"escrow_status"`
	AmountCents      int64      `json:"amount_cents"`
	Currency         string     `json:"currency"`
	PlatformFeeCents int64      `json:"platform_fee_cents"`
	ConsultantPayout int64      `json:"consultant_payout_cents"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	RescheduledFrom  *uuid.UUID `json:"rescheduled_from,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type BookingListItem struct {
	ID             uuid.UUID `json:"id"`
	ReferenceCode  string    `json:"reference_code"`
	ConsultantID   uuid.UUID `json:"consultant_id"`
	ConsultantName string    `json:"consultant_name"`
	StartAt        time.Time `json:"start_at"`
	DurationMin    int32     `json:"duration_min"`
	ServiceType    string    `json:"service_type"`
	Status         string    `json:"status"`
	AmountCents    int64     `json:"amount_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// EscrowEntryView is one line of a booking's money statement.
type EscrowEntryView struct {
	Seq         int32     `json:"seq"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Note        *string   `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type EscrowStatement struct {
	BookingID    uuid.UUID         `json:"booking_id"`
	EscrowStatus string            `json:"escrow_status"`
	BalanceCents int64             `json:"balance_cents"`
	Entries      []EscrowEntryView `json:"entries"`
}

type BookingQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*BookingView, error)
	GetByReference(ctx context.Context, referenceCode string) (*BookingView, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, after *Cursor, limit int) ([]*BookingListItem, *Cursor, error)
	ListByConsultant(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]*BookingListItem, error)
	GetEscrowStatement(ctx context.Context, bookingID uuid.UUID) (*EscrowStatement, error)
}

type BookingViewRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BookingView, error)
	FindByReference(ctx context.Context, referenceCode string) (*BookingView, error)
	FindByClientFirstPage(ctx context.Context, clientID uuid.UUID, limit int32) ([]*BookingListItem, error)
	FindByClientKeyset(ctx context.Context, clientID uuid.UUID, lastCreatedAt time.Time, lastID uuid.UUID, limit int32) ([]*BookingListItem, error)
	FindByConsultantBetween(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]*BookingListItem, error)
	FindEscrowStatement(ctx context.Context, bookingID uuid.UUID) (*EscrowStatement, error)
}

type bookingQueriesImpl struct {
	repo BookingViewRepo
}

func NewBookingQueries(repo BookingViewRepo) BookingQueries {
	return &bookingQueriesImpl{repo: repo}
}

func (q *bookingQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*BookingView, error) {
	return q.repo.FindByID(ctx, id)
}

func (q *bookingQueriesImpl) GetByReference(ctx context.Context, referenceCode string) (*BookingView, error) {
	return q.repo.FindByReference(ctx, referenceCode)
}

func (q *bookingQueriesImpl) ListByClient(ctx context.Context, clientID uuid.UUID, after *Cursor, limit int) ([]*BookingListItem, *Cursor, error) {
	limit = ValidateLimit(limit)

	var (
		rows []*BookingListItem
		err  error
	)
	if after == nil || after.After == "" {
		rows, err = q.repo.FindByClientFirstPage(ctx, clientID, int32(limit))
	} else {
		lastCreatedAt, lastID, decodeErr := DecodeAfterCursor(after.After)
		if decodeErr != nil {
			return nil, nil, decodeErr
		}
		rows, err = q.repo.FindByClientKeyset(ctx, clientID, lastCreatedAt, lastID, int32(limit))
	}
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(rows) == limit {
		last := rows[len(rows)-1]
		next = &Cursor{After: EncodeAfterCursor(last.CreatedAt, last.ID)}
	}
	return rows, next, nil
}

func (q *bookingQueriesImpl) ListByConsultant(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]*BookingListItem, error) {
	return q.repo.FindByConsultantBetween(ctx, consultantID, from, to)
}

func (q *bookingQueriesImpl) GetEscrowStatement(ctx context.Context, bookingID uuid.UUID) (*EscrowStatement, error) {
	return q.repo.FindEscrowStatement(ctx, bookingID)
}
