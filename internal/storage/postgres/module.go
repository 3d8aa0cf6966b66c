package postgres

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/withdrawgate/internal/config"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// Module wires PostgreSQL storage and repository adapters.
var Module = fx.Options(
	fx.Provide(newStorage),
	fx.Provide(
		func(s *Storage) repository.WithdrawalRepository { return s.Withdrawals() },
		func(s *Storage) repository.EscrowRepository { return s.Escrows() },
		func(s *Storage) repository.PaymentAttemptRepository { return s.PaymentAttempts() },
		func(s *Storage) repository.AdminActionLog { return s.AdminActions() },
		func(s *Storage) repository.AdminVerifier { return s.Admins() },
		func(s *Storage) repository.UserDirectory { return s.Users() },
		func(s *Storage) repository.SecurityRepository { return s.Security() },
		func(s *Storage) repository.EarningsProvider { return s.Earnings() },
	),
	fx.Invoke(registerLifecycle),
)

type storageParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

func newStorage(p storageParams) (*Storage, error) {
	return New(p.Ctx, p.Config.DatabaseURI, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, storage *Storage) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			storage.Close()
			return nil
		},
	})
}
