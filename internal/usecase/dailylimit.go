package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

const dailyWindow = 24 * time.Hour

// DailyLimitGuard caps withdrawals at what the user earned over the rolling day.
type DailyLimitGuard struct {
	earnings    repository.EarningsProvider
	withdrawals repository.WithdrawalRepository
	enabled     bool
	now         func() time.Time
}

// NewDailyLimitGuard constructs DailyLimitGuard.
func NewDailyLimitGuard(earnings repository.EarningsProvider, withdrawals repository.WithdrawalRepository, policy Policy) *DailyLimitGuard {
	return &DailyLimitGuard{
		earnings:    earnings,
		withdrawals: withdrawals,
		enabled:     policy.DailyLimitEnabled,
		now:         time.Now,
	}
}

// Check computes the user's remaining allowance for the rolling 24h window.
// A disabled guard never reports the limit as exceeded.
func (g *DailyLimitGuard) Check(ctx context.Context, userID int64, amount decimal.Decimal) (model.DailyLimitCheck, error) {
	if !g.enabled {
		return model.DailyLimitCheck{}, nil
	}
	since := g.now().Add(-dailyWindow)

	dailyCap, err := g.earnings.DailyEarned(ctx, userID, since)
	if err != nil {
		return model.DailyLimitCheck{}, fmt.Errorf("daily earnings: %w", err)
	}
	withdrawn, err := g.withdrawals.SumSettlementBound(ctx, userID, since)
	if err != nil {
		return model.DailyLimitCheck{}, fmt.Errorf("withdrawn today: %w", err)
	}

	return model.EvaluateDailyLimit(dailyCap, withdrawn, amount), nil
}

// Bound returns the cap Reserve must enforce atomically, or nil when the
// guard is disabled.
func (g *DailyLimitGuard) Bound(check model.DailyLimitCheck) *repository.DailyLimit {
	if !g.enabled {
		return nil
	}
	return &repository.DailyLimit{Cap: check.DailyCap, Since: g.now().Add(-dailyWindow)}
}
