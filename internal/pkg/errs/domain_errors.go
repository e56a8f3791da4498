package errs

import "errors"

// Sentinel errors shared across the usecase layers. Races and payment
// declines are steady-state outcomes; callers branch on them with errors.Is.
var (
	// Slot / hold errors
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrSlotTaken       = errors.New("slot taken")
	ErrHoldExpired     = errors.New("hold expired or missing")

	// Booking errors
	ErrBookingNotFound    = errors.New("booking not found")
	ErrInvalidTransition  = errors.New("invalid booking transition")
	ErrConsultantNotFound = errors.New("consultant not found")

	// Payment / escrow errors
	ErrPaymentFailed          = errors.New("payment failed")
	ErrPaymentCaptureRaceLoss = errors.New("payment captured after hold expiry")
	ErrLedgerImbalance        = errors.New("escrow ledger reconciliation failure")
	ErrEscrowFrozen           = errors.New("escrow writes frozen for booking")

	// Idempotency errors
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrIdempotencyInProgress  = errors.New("idempotency in progress")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different request")
	ErrIdempotencyCheckFailed = errors.New("idempotency check failed")

	// Validation / operation errors
	ErrDomainValidation        = errors.New("domain validation error")
	ErrDatabaseOperationFailed = errors.New("database operation failed")
)
