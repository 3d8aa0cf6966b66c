package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// ReserveParams describes a new withdrawal and the balance it reserves.
type ReserveParams struct {
	UserID    int64
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	ToAddress string
	// DailyLimit, when set, is re-checked under the balance lock.
	DailyLimit *DailyLimit
}

// DailyLimit caps settlement-bound withdrawals created since Since.
type DailyLimit struct {
	Cap   decimal.Decimal
	Since time.Time
}

// RestoreParams moves an open withdrawal into a terminal status and returns
// its amount to the user. From lists the statuses the request may be in;
// UserID, when non-zero, restricts the match to the owner.
type RestoreParams struct {
	WithdrawalID int64
	From         []model.WithdrawalStatus
	To           model.WithdrawalStatus
	ActorID      *int64
	UserID       int64
}

// WithdrawalRepository owns withdrawal rows and the available balance.
type WithdrawalRepository interface {
	Reserve(ctx context.Context, p ReserveParams) (*model.Withdrawal, error)
	Restore(ctx context.Context, p RestoreParams) (*model.Withdrawal, error)
	Available(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetByID(ctx context.Context, id int64) (*model.Withdrawal, error)
	ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error)
	SumSettlementBound(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)
	// ListByUser pages through a user's withdrawals, newest first.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error)
	Stats(ctx context.Context, topUsers int) (model.WithdrawalStats, error)
}
