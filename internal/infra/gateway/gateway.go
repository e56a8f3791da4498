// Package gateway adapts the external payment processor contract. Only the
// escrow contract is specified: create an intent, receive an async capture
// result, refund. No processor SDK is bound here; production deployments
// plug a real adapter behind the same interface.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"consult-engine/internal/pkg/errs"
)

var ErrUnknownIntent = errs.New("unknown payment intent")

type PaymentGateway interface {
	// CreateIntent opens a payment for async capture. The context deadline
	// must be bounded by the remaining hold TTL minus a safety margin.
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (string, error)

	// Refund returns captured funds to the client. Refunding an unknown
	// intent is an error; refunding twice is the processor's problem to
	// dedupe, ours is never to ask twice (ledger state guards that).
	Refund(ctx context.Context, intentID string, amountCents int64) error
}

// LocalGateway is the in-process adapter used in dev mode and tests. It
// hands out intent IDs and accounts refunds; capture results arrive through
// the webhook endpoint exactly as with a real processor.
type LocalGateway struct {
	mu      sync.Mutex
	intents map[string]*intentRecord
}

type intentRecord struct {
	AmountCents   int64
	Currency      string
	Metadata      map[string]string
	RefundedCents int64
}

func NewLocalGateway() *LocalGateway {
	return &LocalGateway{intents: make(map[string]*intentRecord)}
}

func (g *LocalGateway) CreateIntent(_ context.Context, amountCents int64, currency string, metadata map[string]string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", errs.Wrap(err, "failed to generate intent id")
	}
	id := "pi_" + hex.EncodeToString(buf)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id] = &intentRecord{
		AmountCents: amountCents,
		Currency:    currency,
		Metadata:    metadata,
	}
	return id, nil
}

func (g *LocalGateway) Refund(_ context.Context, intentID string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.intents[intentID]
	if !ok {
		return ErrUnknownIntent
	}
	rec.RefundedCents += amountCents
	return nil
}

// RefundedCents exposes accounting for tests.
func (g *LocalGateway) RefundedCents(intentID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec, ok := g.intents[intentID]; ok {
		return rec.RefundedCents
	}
	return 0
}
