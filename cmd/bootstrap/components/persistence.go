package components

import (
	"context"
	"log/slog"

	"consult-engine/internal/infra"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/infra/gateway"
	"consult-engine/internal/infra/matching"
	"consult-engine/internal/infra/slotledger"
	"consult-engine/internal/infra/uow"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,
		fx.Annotate(
			uow.NewPostgresRunner,
			fx.As(new(uow.Runner)),
		),
		fx.Annotate(
			NewSlotLedger,
			fx.As(new(slotledger.Ledger)),
		),
		fx.Annotate(
			NewEventPublisher,
			fx.As(new(events.Publisher)),
		),
		fx.Annotate(
			NewPaymentGateway,
			fx.As(new(gateway.PaymentGateway)),
		),
		fx.Annotate(
			NewRanker,
			fx.As(new(matching.Ranker)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) infra.DBTX {
	return pool
}

func NewSlotLedger(pool *pgxpool.Pool, clk clock.Clock) *slotledger.PostgresLedger {
	return slotledger.NewPostgresLedger(pool, clk)
}

// NewEventPublisher connects to the broker when one is configured and
// otherwise degrades to the no-op publisher, keeping single-binary dev
// setups broker-free.
func NewEventPublisher(lc fx.Lifecycle, cfg config.Config) (events.Publisher, error) {
	if cfg.Events.AMQPURL == "" {
		slog.Info("no AMQP broker configured, booking events disabled")
		return events.NopPublisher{}, nil
	}

	pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}

// NewPaymentGateway binds the in-process gateway. Production deployments
// swap this provider for a processor adapter behind the same interface.
func NewPaymentGateway() *gateway.LocalGateway {
	return gateway.NewLocalGateway()
}

func NewRanker(cfg config.Config) matching.Ranker {
	if cfg.Matching.BaseURL == "" {
		return matching.NopRanker{}
	}
	return matching.NewHTTPClient(cfg.Matching.BaseURL, cfg.Matching.Timeout)
}
