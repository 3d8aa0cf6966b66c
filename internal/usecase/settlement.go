package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// SettleRequest describes one payment for an open withdrawal.
type SettleRequest struct {
	WithdrawalID int64
	EscrowID     *int64
	AdminID      int64
	ToAddress    string
	NetAmount    decimal.Decimal
	Expect       model.WithdrawalStatus
}

// Settler sends payments and persists their outcome. The external call is
// made outside of any database transaction; the in-flight attempt row is what
// prevents two approvers from paying the same withdrawal.
type Settler struct {
	attempts     repository.PaymentAttemptRepository
	executor     PaymentExecutor
	switches     *Switches
	observers    *Observers
	logger       *slog.Logger
	newReference func() string
}

// NewSettler constructs Settler.
func NewSettler(attempts repository.PaymentAttemptRepository, executor PaymentExecutor, switches *Switches, observers *Observers, logger *slog.Logger) *Settler {
	return &Settler{
		attempts:     attempts,
		executor:     executor,
		switches:     switches,
		observers:    observers,
		logger:       logger,
		newReference: func() string { return uuid.NewString() },
	}
}

// Execute claims the withdrawal, sends the net amount and flips it to APPROVED.
// A rail failure leaves the withdrawal in its pre-call status. Only a definite
// rejection closes the attempt; an unknown outcome keeps it in flight.
func (s *Settler) Execute(ctx context.Context, req SettleRequest) (*model.Withdrawal, error) {
	if s.switches.Maintenance() {
		return nil, domainErrors.ErrMaintenanceMode
	}

	attempt, err := s.attempts.Claim(ctx, model.PaymentAttempt{
		Reference:    s.newReference(),
		WithdrawalID: req.WithdrawalID,
		EscrowID:     req.EscrowID,
		AdminID:      req.AdminID,
		ToAddress:    req.ToAddress,
		NetAmount:    req.NetAmount,
		Status:       model.PaymentAttemptInFlight,
	}, req.Expect)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		slog.Int64("withdrawal_id", req.WithdrawalID),
		slog.String("reference", attempt.Reference),
		slog.Int64("admin_id", req.AdminID),
	)

	receipt, err := s.executor.SendPayment(ctx, model.PaymentOrder{
		Reference: attempt.Reference,
		ToAddress: attempt.ToAddress,
		Amount:    attempt.NetAmount,
	})
	if err != nil {
		if !errors.Is(err, domainErrors.ErrPaymentRejected) {
			// The rail may have paid. The attempt stays in flight until the
			// reconciler looks the reference up.
			log.Warn("payment outcome unknown, left for reconciliation", slog.String("error", err.Error()))
			return nil, &domainErrors.PaymentExecutionError{Reason: err.Error()}
		}
		log.Error("payment rejected by rail", slog.String("error", err.Error()))
		if markErr := s.attempts.MarkFailed(context.WithoutCancel(ctx), attempt.Reference, err.Error()); markErr != nil {
			log.Error("mark payment attempt failed", slog.String("error", markErr.Error()))
		}
		return nil, &domainErrors.PaymentExecutionError{Reason: err.Error()}
	}

	w, err := s.attempts.Settle(context.WithoutCancel(ctx), attempt.Reference, receipt.TxHash)
	if err != nil {
		log.Error("payment sent but settlement not persisted",
			slog.String("tx_hash", receipt.TxHash),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	log.Info("withdrawal settled", slog.String("tx_hash", receipt.TxHash), slog.String("net_amount", attempt.NetAmount.String()))
	s.observers.Settled(ctx, w, settleDetails(req.EscrowID, attempt.Reference))
	return w, nil
}

// Reconcile resolves an in-flight attempt left behind by a crash between
// sending and persisting. The tx hash reported by the rail is the idempotency key.
// It returns the settled withdrawal, or nil when the attempt was abandoned.
func (s *Settler) Reconcile(ctx context.Context, attempt model.PaymentAttempt) (*model.Withdrawal, error) {
	log := s.logger.With(
		slog.Int64("withdrawal_id", attempt.WithdrawalID),
		slog.String("reference", attempt.Reference),
	)

	receipt, err := s.executor.LookupPayment(ctx, attempt.Reference)
	if errors.Is(err, domainErrors.ErrPaymentNotFound) {
		if err := s.attempts.MarkAbandoned(ctx, attempt.Reference, "payment not found on rail"); err != nil {
			return nil, err
		}
		log.Warn("payment attempt abandoned")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	w, err := s.attempts.Settle(ctx, attempt.Reference, receipt.TxHash)
	if err != nil {
		return nil, err
	}

	log.Info("withdrawal settled by reconciliation", slog.String("tx_hash", receipt.TxHash))
	details := settleDetails(attempt.EscrowID, attempt.Reference)
	details["reconciled"] = true
	s.observers.Settled(ctx, w, details)
	return w, nil
}

// StaleAttempts lists in-flight attempts older than the given age.
func (s *Settler) StaleAttempts(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	return s.attempts.ListStale(ctx, olderThan, limit)
}

func settleDetails(escrowID *int64, reference string) map[string]any {
	details := map[string]any{"reference": reference}
	if escrowID != nil {
		details["escrow_id"] = *escrowID
	}
	return details
}
