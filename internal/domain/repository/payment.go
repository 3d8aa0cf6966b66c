package repository

import (
	"context"
	"time"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// PaymentAttemptRepository guards outbound payments. At most one attempt per
// withdrawal may be in flight.
type PaymentAttemptRepository interface {
	// Claim records an in-flight attempt if the withdrawal is still in the
	// expected status (and the escrow, if any, is still pending).
	Claim(ctx context.Context, attempt model.PaymentAttempt, expect model.WithdrawalStatus) (*model.PaymentAttempt, error)
	// Settle marks the attempt succeeded and the withdrawal (and escrow) approved in one transaction.
	Settle(ctx context.Context, reference, txHash string) (*model.Withdrawal, error)
	MarkFailed(ctx context.Context, reference, reason string) error
	MarkAbandoned(ctx context.Context, reference, reason string) error
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error)
}
