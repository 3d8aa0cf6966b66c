package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountChecker reports whether withdrawals are blocked for the account.
type AccountChecker interface {
	CheckAccount(ctx context.Context, userID int64) (ok bool, message string, err error)
}

// RecoveryChecker reports an active credential-recovery flow.
type RecoveryChecker interface {
	CheckRecoveryActive(ctx context.Context, userID int64) (ok bool, message string, err error)
}

// FraudChecker reports a high-risk fraud signal.
type FraudChecker interface {
	CheckFraud(ctx context.Context, userID int64) (ok bool, message string, err error)
}

// EarningsProvider computes what the user earned since the given instant.
type EarningsProvider interface {
	DailyEarned(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)
}
