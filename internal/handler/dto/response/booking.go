package response

import (
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type BookingResponse struct {
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

type BookingListResponse struct {
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

type BookingListPage struct {
	Items []*BookingListResponse `json:"items"`
	Next  *string                `json:"next,omitempty"`
}

// CreatedBookingResponse is the write-side acknowledgement: the pending
// booking, or the alternatives when the slot was contested.
type CreatedBookingResponse struct {
	ID            uuid.UUID  `json:"id"`
	ReferenceCode string     `json:"reference_code"`
	Status        string     `json:"status"`
	StartAt       time.Time  `json:"start_at"`
	DurationMin   int32      `json:"duration_min"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

type AlternativeSlot struct {
	StartAt     time.Time `json:"start_at"`
	DurationMin int32     `json:"duration_min"`
}

type SlotTakenResponse struct {
	Error        string            `json:"error"`
	Alternatives []AlternativeSlot `json:"alternatives"`
}

type EscrowStatementResponse struct {
	BookingID    uuid.UUID             `json:"booking_id"`
	EscrowStatus string                `json:"escrow_status"`
	BalanceCents int64                 `json:"balance_cents"`
	Entries      []EscrowEntryResponse `json:"entries"`
}

type EscrowEntryResponse struct {
	Seq         int32     `json:"seq"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Note        *string   `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromBookingView(rm *queries.BookingView) *BookingResponse {
	var resp BookingResponse
	// Field names align with the read model; copier keeps the mapping flat.
	_ = copier.Copy(&resp, rm)
	return &resp
}

func FromBookingListItem(rm *queries.BookingListItem) *BookingListResponse {
	var resp BookingListResponse
	_ = copier.Copy(&resp, rm)
	return &resp
}

func FromCreatedBooking(b *booking.Booking, holdExpiresAt *time.Time) *CreatedBookingResponse {
	p := b.Payment()
	return &CreatedBookingResponse{
		ID:            b.ID(),
		ReferenceCode: b.ReferenceCode(),
		Status:        b.Status().String(),
		StartAt:       b.SlotKey().StartAt(),
		DurationMin:   b.SlotKey().DurationMinutes(),
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		HoldExpiresAt: holdExpiresAt,
	}
}

func FromEscrowStatement(rm *queries.EscrowStatement) *EscrowStatementResponse {
	resp := &EscrowStatementResponse{
		BookingID:    rm.BookingID,
		EscrowStatus: rm.EscrowStatus,
		BalanceCents: rm.BalanceCents,
		Entries:      make([]EscrowEntryResponse, len(rm.Entries)),
	}
	for i, e := range rm.Entries {
		_ = copier.Copy(&resp.Entries[i], &e)
	}
	return resp
}
