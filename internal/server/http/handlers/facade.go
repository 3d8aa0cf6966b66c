package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/server/http/middleware"
)

// WithdrawalFacade covers the account holder endpoints.
type WithdrawalFacade interface {
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error)
	CancelWithdrawal(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error)
	UserWithdrawal(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error)
	UserWithdrawals(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error)
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// AdminFacade covers the operator endpoints.
type AdminFacade interface {
	PendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	Withdrawal(ctx context.Context, withdrawalID int64) (*model.Withdrawal, error)
	WithdrawalStats(ctx context.Context) (model.WithdrawalStats, error)
	Escrow(ctx context.Context, escrowID int64) (*model.Escrow, error)
	Decide(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error)
	SetMaintenance(ctx context.Context, adminID int64, enabled bool) error
	SetEmergencyStop(ctx context.Context, adminID int64, enabled bool) error
	Switches() model.RuntimeSwitches
}

// PayoutFacade aggregates the full set of operations used across handlers.
type PayoutFacade interface {
	middleware.TokenParser
	WithdrawalFacade
	AdminFacade
}
