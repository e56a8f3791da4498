package bootstrap

import (
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/pkg/errs"

	"go.uber.org/fx"
)

// PolicyModule parses the money policies once at startup so a broken
// schedule fails the boot, never a settlement.
var PolicyModule = fx.Module("policy",
	fx.Provide(
		NewFeeSchedule,
		NewCancellationSchedule,
		NewServiceCatalog,
	),
)

func NewFeeSchedule(cfg config.Config) (escrow.FeeSchedule, error) {
	fees, err := escrow.ParseFeeSchedule(cfg.Escrow.FeeSchedule)
	if err != nil {
		return escrow.FeeSchedule{}, errs.Wrap(err, "invalid ESCROW_FEE_SCHEDULE")
	}
	if !fees.HasTier("standard") {
		return escrow.FeeSchedule{}, errs.New("fee schedule must define the 'standard' tier")
	}
	if cfg.Escrow.RescheduleFeeMode != "none" {
		// Only the free-reschedule policy is implemented today.
		return escrow.FeeSchedule{}, errs.Newf("unsupported RESCHEDULE_FEE_MODE %q", cfg.Escrow.RescheduleFeeMode)
	}
	return fees, nil
}

func NewCancellationSchedule(cfg config.Config) (escrow.CancellationSchedule, error) {
	sched, err := escrow.ParseCancellationSchedule(cfg.Escrow.CancellationSchedule)
	if err != nil {
		return escrow.CancellationSchedule{}, errs.Wrap(err, "invalid ESCROW_CANCELLATION_SCHEDULE")
	}
	return sched, nil
}

func NewServiceCatalog(cfg config.Config) (consultant.ServiceCatalog, error) {
	catalog, err := consultant.ParseServiceCatalog(cfg.Services.Catalog)
	if err != nil {
		return nil, errs.Wrap(err, "invalid SERVICE_CATALOG")
	}
	return catalog, nil
}
