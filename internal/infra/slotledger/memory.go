package slotledger

import (
	"context"
	"sync"
	"time"

	"consult-engine/internal/domain/slot"
	"consult-engine/internal/pkg/clock"

	"github.com/google/uuid"
)

type claim struct {
	key         slot.Key
	holdID      uuid.UUID
	clientID    uuid.UUID
	serviceType string
	state       slot.State
	createdAt   time.Time
	expiresAt   time.Time
}

func (c *claim) live(now time.Time) bool {
	if c.state == slot.StateBooked {
		return true
	}
	return c.state == slot.StateHeld && now.Before(c.expiresAt)
}

// MemoryLedger keeps claims in a mutex-guarded map. Used in dev mode and in
// the concurrency tests; semantics match the Postgres ledger exactly.
type MemoryLedger struct {
	mu     sync.Mutex
	byKey  map[string]*claim
	byHold map[uuid.UUID]*claim
	clock  clock.Clock
}

func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	return &MemoryLedger{
		byKey:  make(map[string]*claim),
		byHold: make(map[uuid.UUID]*claim),
		clock:  clk,
	}
}

func (l *MemoryLedger) TryAcquire(_ context.Context, key slot.Key, holdID, clientID uuid.UUID, serviceType string, ttl time.Duration) (slot.Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if existing, ok := l.byKey[key.String()]; ok {
		if existing.live(now) {
			return slot.Hold{}, errSlotTaken
		}
		delete(l.byHold, existing.holdID)
	}

	c := &claim{
		key:         key,
		holdID:      holdID,
		clientID:    clientID,
		serviceType: serviceType,
		state:       slot.StateHeld,
		createdAt:   now,
		expiresAt:   now.Add(ttl),
	}
	l.byKey[key.String()] = c
	l.byHold[holdID] = c

	return slot.Hold{
		ID:          holdID,
		Key:         key,
		ClientID:    clientID,
		ServiceType: serviceType,
		CreatedAt:   now,
		ExpiresAt:   c.expiresAt,
	}, nil
}

func (l *MemoryLedger) Promote(_ context.Context, holdID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byHold[holdID]
	if !ok {
		return errHoldExpired
	}
	if c.state == slot.StateBooked {
		return nil
	}
	if !c.live(l.clock.Now()) {
		return errHoldExpired
	}
	c.state = slot.StateBooked
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, holdID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byHold[holdID]
	if !ok || c.state != slot.StateHeld {
		return nil
	}
	l.drop(c)
	return nil
}

func (l *MemoryLedger) ReleaseBooked(_ context.Context, holdID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byHold[holdID]
	if !ok || c.state != slot.StateBooked {
		return nil
	}
	l.drop(c)
	return nil
}

func (l *MemoryLedger) ClaimedKeys(_ context.Context, consultantID uuid.UUID, from, to time.Time) (map[string]slot.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	out := map[string]slot.State{}
	for k, c := range l.byKey {
		if c.key.ConsultantID() != consultantID || !c.live(now) {
			continue
		}
		if c.key.StartAt().Before(to) && c.key.EndAt().After(from) {
			out[k] = c.state
		}
	}
	return out, nil
}

func (l *MemoryLedger) SweepExpired(_ context.Context) ([]ExpiredHold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var reaped []ExpiredHold
	for _, c := range l.byKey {
		if c.state == slot.StateHeld && !now.Before(c.expiresAt) {
			reaped = append(reaped, ExpiredHold{HoldID: c.holdID, ClientID: c.clientID, Key: c.key})
			l.drop(c)
		}
	}
	return reaped, nil
}

func (l *MemoryLedger) drop(c *claim) {
	delete(l.byKey, c.key.String())
	delete(l.byHold, c.holdID)
}
