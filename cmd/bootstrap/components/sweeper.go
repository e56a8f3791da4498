package components

import (
	"context"

	"consult-engine/internal/infra/slotledger"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/usecase/commands"

	"go.uber.org/fx"
)

// SweeperModule runs hold expiry on the application lifecycle: started after
// everything is wired, stopped before the pool closes.
var SweeperModule = fx.Module("sweeper",
	fx.Provide(NewSweeper),
	fx.Invoke(runSweeper),
)

func NewSweeper(ledger slotledger.Ledger, lifecycle *commands.BookingLifecycle, cfg config.Config) *slotledger.Sweeper {
	return slotledger.NewSweeper(ledger, lifecycle, cfg.Hold.SweepInterval)
}

func runSweeper(lc fx.Lifecycle, sweeper *slotledger.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}
