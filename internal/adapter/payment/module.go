package payment

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/withdrawgate/internal/config"
	"github.com/polkiloo/withdrawgate/internal/usecase"
)

// Module exposes the payment rail client to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (usecase.PaymentExecutor, error) {
	return NewHTTPClient(p.Config.PaymentGatewayAddress, p.Logger)
}
