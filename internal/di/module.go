package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/withdrawgate/internal/adapter/notify"
	"github.com/polkiloo/withdrawgate/internal/adapter/payment"
	"github.com/polkiloo/withdrawgate/internal/app"
	"github.com/polkiloo/withdrawgate/internal/config"
	"github.com/polkiloo/withdrawgate/internal/logger"
	"github.com/polkiloo/withdrawgate/internal/pkg/auth"
	"github.com/polkiloo/withdrawgate/internal/server/http/handlers"
	"github.com/polkiloo/withdrawgate/internal/server/http/router"
	"github.com/polkiloo/withdrawgate/internal/storage/postgres"
	"github.com/polkiloo/withdrawgate/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		payment.Module,
		notify.Module,
		usecase.Module,
		fx.Provide(func(f *app.PayoutFacade) handlers.PayoutFacade { return f }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
