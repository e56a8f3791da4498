package components

import (
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/readstore"
	repo_impl "consult-engine/internal/infra/repository"
	"consult-engine/internal/usecase/commands"
	"consult-engine/internal/usecase/queries"

	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		fx.Annotate(
			repo_impl.NewBookingRepository,
			fx.As(new(commands.BookingRepository)),
		),
		fx.Annotate(
			repo_impl.NewEscrowRepository,
			fx.As(new(commands.EscrowRepository)),
		),
		fx.Annotate(
			repo_impl.NewConsultantRepository,
			fx.As(new(commands.ConsultantRepository)),
			fx.As(new(queries.CalendarReader)),
		),
		fx.Annotate(
			repo_impl.NewIdempotencyRepository,
			fx.As(new(commands.IdempotencyRepository)),
		),
		fx.Annotate(
			repo_impl.NewPaymentEventRepository,
			fx.As(new(commands.PaymentEventRepository)),
		),
		// Read-side store for queries
		fx.Annotate(
			NewBookingReadStore,
			fx.As(new(queries.BookingViewRepo)),
		),
	),
)

func NewBookingReadStore(db infra.DBTX) *readstore.BookingReadStore {
	return readstore.NewBookingReadStore(db)
}
