package usecase

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// WithdrawalLedger is the only place the available balance moves.
type WithdrawalLedger struct {
	withdrawals repository.WithdrawalRepository
	logger      *slog.Logger
}

// NewWithdrawalLedger constructs WithdrawalLedger.
func NewWithdrawalLedger(withdrawals repository.WithdrawalRepository, logger *slog.Logger) *WithdrawalLedger {
	return &WithdrawalLedger{withdrawals: withdrawals, logger: logger}
}

// Reserve deducts the gross amount and creates a pending withdrawal atomically.
func (l *WithdrawalLedger) Reserve(ctx context.Context, p repository.ReserveParams) (*model.Withdrawal, error) {
	w, err := l.withdrawals.Reserve(ctx, p)
	if err != nil {
		return nil, err
	}
	l.logger.Info("withdrawal reserved",
		slog.Int64("withdrawal_id", w.ID),
		slog.Int64("user_id", w.UserID),
		slog.String("amount", w.Amount.String()),
	)
	return w, nil
}

// Restore moves an open withdrawal to a terminal status and credits its amount back.
// A second call for the same withdrawal fails with ErrConcurrentStateChange.
func (l *WithdrawalLedger) Restore(ctx context.Context, p repository.RestoreParams) (*model.Withdrawal, error) {
	w, err := l.withdrawals.Restore(ctx, p)
	if err != nil {
		return nil, err
	}
	l.logger.Info("withdrawal restored",
		slog.Int64("withdrawal_id", w.ID),
		slog.Int64("user_id", w.UserID),
		slog.String("status", string(w.Status)),
		slog.String("amount", w.Amount.String()),
	)
	return w, nil
}

// Available returns the user's spendable balance.
func (l *WithdrawalLedger) Available(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return l.withdrawals.Available(ctx, userID)
}
