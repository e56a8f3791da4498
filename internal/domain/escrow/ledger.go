// Package escrow holds the payment state machine and the append-only money
// ledger for a booking. The conservation invariant is enforced on every
// append as a fast local assertion: money captured into escrow must exactly
// equal money settled out of it, and the balance can never go negative.
package escrow

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid escrow transition")
	ErrLedgerImbalance   = errors.New("escrow ledger reconciliation failure")
	ErrLedgerClosed      = errors.New("escrow ledger already settled")
	ErrNotCaptured       = errors.New("escrow has no captured funds")
	ErrInvalidAmount     = errors.New("invalid ledger amount")
)

// Entry is one append-only money movement. AmountCents is signed relative to
// the escrow account: the capture is positive, settlements are negative,
// markers are zero.
type Entry struct {
	BookingID   uuid.UUID
	Seq         int32
	Kind        EntryKind
	AmountCents int64
	Currency    string
	Note        string
	CreatedAt   time.Time
}

// Ledger is the in-memory projection of a booking's escrow sub-sequence.
// Repositories reconstruct it from stored entries before any transition so
// the invariant check happens before the write, not as an async audit.
type Ledger struct {
	bookingID uuid.UUID
	currency  string
	status    Status
	entries   []Entry
}

func NewLedger(bookingID uuid.UUID, currency string) *Ledger {
	return &Ledger{
		bookingID: bookingID,
		currency:  currency,
		status:    StatusAwaitingCapture,
	}
}

func Reconstruct(bookingID uuid.UUID, currency string, status Status, entries []Entry) *Ledger {
	return &Ledger{
		bookingID: bookingID,
		currency:  currency,
		status:    status,
		entries:   entries,
	}
}

func (l *Ledger) BookingID() uuid.UUID { return l.bookingID }
func (l *Ledger) Status() Status       { return l.status }
func (l *Ledger) Currency() string     { return l.currency }

func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Balance is the signed sum of all entries: funds currently held in escrow.
func (l *Ledger) Balance() int64 {
	var sum int64
	for _, e := range l.entries {
		sum += e.AmountCents
	}
	return sum
}

// CapturedCents is the originally captured amount, zero before capture.
func (l *Ledger) CapturedCents() int64 {
	for _, e := range l.entries {
		if e.Kind == EntryCaptured {
			return e.AmountCents
		}
	}
	return 0
}

// Capture records the gateway capture and moves the state machine to
// Captured. The fee/payout split is computed by the caller (deterministic
// schedule) and recorded on the booking; the ledger records the inflow.
func (l *Ledger) Capture(amountCents int64, now time.Time) ([]Entry, error) {
	return l.run(StatusCaptured, func() ([]Entry, error) {
		if amountCents <= 0 {
			return nil, ErrInvalidAmount
		}
		return l.append(now, Entry{Kind: EntryCaptured, AmountCents: amountCents})
	})
}

// Release settles the full balance: platform fee out, remainder to the
// consultant payout. feeCents comes from the split recorded at capture.
func (l *Ledger) Release(feeCents int64, now time.Time) ([]Entry, error) {
	return l.run(StatusReleased, func() ([]Entry, error) {
		balance := l.Balance()
		if balance <= 0 {
			return nil, ErrNotCaptured
		}
		if feeCents < 0 || feeCents > balance {
			return nil, ErrInvalidAmount
		}
		return l.append(now,
			Entry{Kind: EntryFeeCollected, AmountCents: -feeCents},
			Entry{Kind: EntryPayoutReleased, AmountCents: -(balance - feeCents)},
		)
	})
}

// Refund settles per the cancellation schedule: refundCents back to the
// client; any retained remainder is split between platform fee and a
// consultant cancellation payout. refundCents == balance means a full refund.
func (l *Ledger) Refund(refundCents, retainedFeeCents int64, now time.Time) ([]Entry, error) {
	return l.run(StatusRefunded, func() ([]Entry, error) {
		balance := l.Balance()
		if balance <= 0 {
			return nil, ErrNotCaptured
		}
		if refundCents < 0 || refundCents > balance {
			return nil, ErrInvalidAmount
		}
		retained := balance - refundCents
		if retainedFeeCents < 0 || retainedFeeCents > retained {
			return nil, ErrInvalidAmount
		}

		entries := []Entry{{Kind: EntryRefund, AmountCents: -refundCents}}
		if retainedFeeCents > 0 {
			entries = append(entries, Entry{Kind: EntryFeeCollected, AmountCents: -retainedFeeCents})
		}
		if retained-retainedFeeCents > 0 {
			entries = append(entries, Entry{Kind: EntryPayoutReleased, AmountCents: -(retained - retainedFeeCents)})
		}
		return l.append(now, entries...)
	})
}

// Dispute freezes the payout pending external resolution. Zero-amount marker
// entry keeps the audit trail complete.
func (l *Ledger) Dispute(now time.Time) ([]Entry, error) {
	return l.run(StatusDisputed, func() ([]Entry, error) {
		if l.Balance() <= 0 {
			return nil, ErrNotCaptured
		}
		return l.append(now, Entry{Kind: EntryDisputeOpened})
	})
}

func (l *Ledger) transition(to Status) error {
	if !canTransition(l.status, to) {
		return ErrInvalidTransition
	}
	l.status = to
	return nil
}

// run executes fn after a transition, rolling the status back if the append
// is rejected so a failed write never leaves a half-applied state machine.
func (l *Ledger) run(to Status, fn func() ([]Entry, error)) ([]Entry, error) {
	prev := l.status
	if err := l.transition(to); err != nil {
		return nil, err
	}
	entries, err := fn()
	if err != nil {
		l.status = prev
		return nil, err
	}
	return entries, nil
}

// append validates conservation before accepting the batch: the balance may
// never go negative, a settled ledger takes no further entries, and a fully
// settled batch must zero out against the captured amount.
func (l *Ledger) append(now time.Time, entries ...Entry) ([]Entry, error) {
	if l.settled() && len(entries) > 0 {
		return nil, ErrLedgerClosed
	}

	balance := l.Balance()
	seq := int32(len(l.entries))
	appended := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.BookingID = l.bookingID
		e.Currency = l.currency
		e.Seq = seq
		e.CreatedAt = now
		seq++
		balance += e.AmountCents
		if balance < 0 {
			return nil, ErrLedgerImbalance
		}
		appended = append(appended, e)
	}

	if l.status.IsTerminal() && balance != 0 {
		// Terminal states must reconcile exactly to the captured amount.
		return nil, ErrLedgerImbalance
	}

	l.entries = append(l.entries, appended...)
	return appended, nil
}

func (l *Ledger) settled() bool {
	return l.status.IsTerminal() && l.Balance() == 0 && len(l.entries) > 0
}
