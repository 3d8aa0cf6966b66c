package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// Observers receives audit and notification side effects of transitions.
// Failures are logged and never change the outcome of a transition.
type Observers struct {
	audit    repository.AdminActionLog
	users    repository.UserDirectory
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewObservers constructs Observers.
func NewObservers(audit repository.AdminActionLog, users repository.UserDirectory, notifier Notifier, logger *slog.Logger) *Observers {
	return &Observers{audit: audit, users: users, notifier: notifier, logger: logger, now: time.Now}
}

// Record appends an admin action entry.
func (o *Observers) Record(ctx context.Context, adminID *int64, action string, targetID int64, details map[string]any) {
	entry := model.AdminActionEntry{
		AdminID:   adminID,
		Action:    action,
		TargetID:  targetID,
		Details:   details,
		CreatedAt: o.now(),
	}
	if err := o.audit.Record(ctx, entry); err != nil {
		o.logger.Error("record admin action failed",
			slog.String("action", action),
			slog.Int64("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}
}

// Settled audits and announces an approved withdrawal.
func (o *Observers) Settled(ctx context.Context, w *model.Withdrawal, details map[string]any) {
	txHash := ""
	if w.TxHash != nil {
		txHash = *w.TxHash
	}
	if details == nil {
		details = map[string]any{}
	}
	details["tx_hash"] = txHash
	details["amount"] = w.Amount.String()
	details["net_amount"] = w.NetAmount().String()
	o.Record(ctx, w.DecidedByID, model.AdminActionWithdrawalApproved, w.ID, details)

	o.notify(ctx, w, func(telegramID int64) error {
		return o.notifier.NotifySettled(ctx, telegramID, w.NetAmount(), txHash)
	})
}

// Rejected audits and announces a rejected withdrawal.
func (o *Observers) Rejected(ctx context.Context, w *model.Withdrawal, reason string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = reason
	details["amount"] = w.Amount.String()
	o.Record(ctx, w.DecidedByID, model.AdminActionWithdrawalRejected, w.ID, details)

	o.notify(ctx, w, func(telegramID int64) error {
		return o.notifier.NotifyRejected(ctx, telegramID, w.Amount)
	})
}

func (o *Observers) notify(ctx context.Context, w *model.Withdrawal, send func(telegramID int64) error) {
	telegramID, err := o.users.TelegramID(ctx, w.UserID)
	if err != nil {
		o.logger.Warn("resolve notification recipient failed",
			slog.Int64("user_id", w.UserID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := send(telegramID); err != nil {
		o.logger.Warn("withdrawal notification failed",
			slog.Int64("withdrawal_id", w.ID),
			slog.String("error", err.Error()),
		)
	}
}

func amountDetails(amount decimal.Decimal) map[string]any {
	return map[string]any{"amount": amount.String()}
}
