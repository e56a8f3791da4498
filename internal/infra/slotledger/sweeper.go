package slotledger

import (
	"context"
	"log/slog"
	"time"
)

// Handler receives the sweeper's findings. Implemented by the booking
// lifecycle commands: expired holds cancel their pending bookings, and the
// periodic tick drives reminders and escrow auto-release.
type Handler interface {
	HoldsExpired(ctx context.Context, reaped []ExpiredHold)
	RunScheduledWork(ctx context.Context)
}

// Sweeper enforces hold TTLs from a timer, not from request handling, so a
// hold expires even when its client walked away. Expiry goes through the
// ledger's conditional-write primitive and therefore never races Promote.
type Sweeper struct {
	ledger   Ledger
	handler  Handler
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewSweeper(ledger Ledger, handler Handler, interval time.Duration) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		handler:  handler,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) Stop() {
	close(s.done)
	<-s.stopped
}

func (s *Sweeper) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep runs one pass; exported so tests can drive it without the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	reaped, err := s.ledger.SweepExpired(ctx)
	if err != nil {
		slog.Error("hold sweep failed", "error", err.Error())
		return
	}
	if len(reaped) > 0 {
		slog.Info("released expired holds", "count", len(reaped))
		s.handler.HoldsExpired(ctx, reaped)
	}
	s.handler.RunScheduledWork(ctx)
}
