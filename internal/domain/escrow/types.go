package escrow

type Status string

const (
	StatusAwaitingCapture Status = "awaiting_capture"
	StatusCaptured        Status = "captured"
	StatusReleased        Status = "released"
	StatusRefunded        Status = "refunded"
	StatusDisputed        Status = "disputed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusAwaitingCapture, StatusCaptured, StatusReleased, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// Terminal escrow states keep the payout frozen (Disputed) or settled.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusReleased, StatusRefunded:
		return true
	default:
		return false
	}
}

// canTransition encodes the one-way state machine. No state is re-enterable.
func canTransition(from, to Status) bool {
	switch from {
	case StatusAwaitingCapture:
		return to == StatusCaptured
	case StatusCaptured:
		return to == StatusReleased || to == StatusRefunded || to == StatusDisputed
	case StatusDisputed:
		// resolved externally into one of the settled states
		return to == StatusReleased || to == StatusRefunded
	default:
		return false
	}
}

type EntryKind string

const (
	// Inflow: funds captured from the client into escrow.
	EntryCaptured EntryKind = "captured"
	// Outflows: every settlement is expressed as money leaving escrow.
	EntryRefund         EntryKind = "refund"
	EntryFeeCollected   EntryKind = "fee_collected"
	EntryPayoutReleased EntryKind = "payout_released"
	// Zero-amount markers for the audit trail.
	EntryDisputeOpened EntryKind = "dispute_opened"
)
