package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// PaymentExecutor sends net amounts to external wallets.
type PaymentExecutor interface {
	SendPayment(ctx context.Context, order model.PaymentOrder) (*model.PaymentReceipt, error)
	// LookupPayment reports a previously sent payment by reference. It returns
	// errors.ErrPaymentNotFound when the rail has no record of it.
	LookupPayment(ctx context.Context, reference string) (*model.PaymentReceipt, error)
}

// Notifier delivers user-facing withdrawal outcomes.
type Notifier interface {
	NotifySettled(ctx context.Context, telegramID int64, amount decimal.Decimal, txHash string) error
	NotifyRejected(ctx context.Context, telegramID int64, amount decimal.Decimal) error
}
