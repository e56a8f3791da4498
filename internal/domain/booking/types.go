package booking

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusReminded       Status = "reminded"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusNoShow         Status = "no_show"
	StatusCancelled      Status = "cancelled"
	StatusRescheduled    Status = "rescheduled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusReminded, StatusInProgress,
		StatusCompleted, StatusNoShow, StatusCancelled, StatusRescheduled:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCancelled, StatusRescheduled:
		return true
	default:
		return false
	}
}

type CancelReason string

const (
	ReasonClientRequest            CancelReason = "client_request"
	ReasonConsultantRequest        CancelReason = "consultant_request"
	ReasonAdminOverride            CancelReason = "admin_override"
	ReasonPaymentFailed            CancelReason = "payment_failed"
	ReasonHoldExpired              CancelReason = "hold_expired"
	ReasonSlotExpiredDuringPayment CancelReason = "slot_expired_during_payment"
)

type Actor string

const (
	ActorClient     Actor = "client"
	ActorConsultant Actor = "consultant"
	ActorAdmin      Actor = "admin"
	ActorSystem     Actor = "system"
)
