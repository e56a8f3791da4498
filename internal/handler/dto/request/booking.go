package request

import (
	"time"

	"consult-engine/internal/domain/booking"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	ConsultantID uuid.UUID `json:"consultant_id" binding:"required"`
	ServiceType  string    `json:"service_type" binding:"required"`
	StartAt      time.Time `json:"start_at" binding:"required"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// CancelReason maps the caller's role to the recorded reason when the body
// does not carry one.
func (r CancelBookingRequest) CancelReason(role booking.Actor) booking.CancelReason {
	if r.Reason != nil {
		switch booking.CancelReason(*r.Reason) {
		case booking.ReasonClientRequest, booking.ReasonConsultantRequest, booking.ReasonAdminOverride:
			return booking.CancelReason(*r.Reason)
		}
	}
	switch role {
	case booking.ActorConsultant:
		return booking.ReasonConsultantRequest
	case booking.ActorAdmin:
		return booking.ReasonAdminOverride
	default:
		return booking.ReasonClientRequest
	}
}

type RescheduleBookingRequest struct {
	NewStartAt time.Time `json:"new_start_at" binding:"required"`
}

type ResolveDisputeRequest struct {
	// "released" pays out the consultant, "refunded" returns the funds.
	Outcome string `json:"outcome" binding:"required"`
}

// PaymentWebhookRequest is the gateway's async capture/decline notification.
type PaymentWebhookRequest struct {
	IntentID    string `json:"intent_id" binding:"required"`
	Outcome     string `json:"outcome" binding:"required"` // captured | failed
	AmountCents int64  `json:"amount_cents"`
	// Terminal marks a decline the client cannot retry (e.g. fraud block).
	Terminal bool `json:"terminal"`
}
