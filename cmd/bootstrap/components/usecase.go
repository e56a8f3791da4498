package components

import (
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/infra/gateway"
	"consult-engine/internal/infra/matching"
	"consult-engine/internal/infra/slotledger"
	"consult-engine/internal/infra/uow"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/usecase/commands"
	"consult-engine/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	func(l slotledger.Ledger) queries.ClaimReader { return l },
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		NewReservationCoordinator,
		NewBookingLifecycle,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewBookingQueries,
		NewSlotQueries,
	),
)

func NewReservationCoordinator(
	runner uow.Runner,
	ledger slotledger.Ledger,
	consultants commands.ConsultantRepository,
	catalog consultant.ServiceCatalog,
	clk clock.Clock,
	cfg config.Config,
) *commands.ReservationCoordinator {
	return commands.NewReservationCoordinator(runner, ledger, consultants, catalog, clk, cfg.Hold)
}

func NewBookingLifecycle(
	runner uow.Runner,
	bookings commands.BookingRepository,
	escrows commands.EscrowRepository,
	consultants commands.ConsultantRepository,
	idem commands.IdempotencyRepository,
	payEvents commands.PaymentEventRepository,
	ledger slotledger.Ledger,
	gw gateway.PaymentGateway,
	publisher events.Publisher,
	reservations *commands.ReservationCoordinator,
	clk clock.Clock,
	catalog consultant.ServiceCatalog,
	fees escrow.FeeSchedule,
	cancellation escrow.CancellationSchedule,
	cfg config.Config,
) *commands.BookingLifecycle {
	return commands.NewBookingLifecycle(commands.LifecycleDeps{
		Runner:       runner,
		Bookings:     bookings,
		Escrows:      escrows,
		Consultants:  consultants,
		Idempotency:  idem,
		PayEvents:    payEvents,
		Ledger:       ledger,
		Gateway:      gw,
		Publisher:    publisher,
		Reservations: reservations,
		Clock:        clk,
		Catalog:      catalog,
		Fees:         fees,
		Cancellation: cancellation,
		HoldCfg:      cfg.Hold,
		EscrowCfg:    cfg.Escrow,
	})
}

func NewSlotQueries(
	runner uow.Runner,
	calendars queries.CalendarReader,
	claims queries.ClaimReader,
	ranker matching.Ranker,
	catalog consultant.ServiceCatalog,
	clk clock.Clock,
) queries.SlotQueries {
	return queries.NewSlotQueries(runner, calendars, claims, ranker, catalog, clk)
}
