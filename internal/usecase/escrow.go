package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// DualControlEscrow requires a second, distinct admin for high-value withdrawals.
type DualControlEscrow struct {
	escrows     repository.EscrowRepository
	withdrawals repository.WithdrawalRepository
	ledger      *WithdrawalLedger
	settler     *Settler
	observers   *Observers
	threshold   decimal.Decimal
	expiry      time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewDualControlEscrow constructs DualControlEscrow.
func NewDualControlEscrow(
	escrows repository.EscrowRepository,
	withdrawals repository.WithdrawalRepository,
	ledger *WithdrawalLedger,
	settler *Settler,
	observers *Observers,
	policy Policy,
	logger *slog.Logger,
) *DualControlEscrow {
	return &DualControlEscrow{
		escrows:     escrows,
		withdrawals: withdrawals,
		ledger:      ledger,
		settler:     settler,
		observers:   observers,
		threshold:   policy.DualControlThreshold,
		expiry:      policy.EscrowExpiry,
		logger:      logger,
		now:         time.Now,
	}
}

// RequiresEscrow reports whether the amount is at or above the dual-control threshold.
func (e *DualControlEscrow) RequiresEscrow(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(e.threshold)
}

// Initiate opens a pending escrow for the withdrawal. A retry by the same
// admin returns the existing escrow; another admin gets EscrowConflictError.
func (e *DualControlEscrow) Initiate(ctx context.Context, withdrawalID, adminID int64) (*model.Escrow, error) {
	w, err := e.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if !w.Status.IsOpen() {
		return nil, domainErrors.ErrConcurrentStateChange
	}
	if !e.RequiresEscrow(w.Amount) {
		return nil, &domainErrors.ValidationError{Field: "amount", Reason: "below dual control threshold " + e.threshold.String()}
	}

	existing, err := e.escrows.GetPendingByTarget(ctx, withdrawalID)
	switch {
	case err == nil:
		if !existing.ExpiredAt(e.now()) {
			return e.reuse(existing, adminID)
		}
		if err := e.expire(ctx, existing); err != nil && !errors.Is(err, domainErrors.ErrConcurrentStateChange) {
			return nil, err
		}
	case !errors.Is(err, domainErrors.ErrNotFound):
		return nil, err
	}

	now := e.now()
	created, err := e.escrows.Create(ctx, model.Escrow{
		OperationType: model.EscrowOperationWithdrawalApproval,
		TargetID:      w.ID,
		Snapshot: model.EscrowSnapshot{
			Amount:    w.Amount,
			Fee:       w.Fee,
			UserID:    w.UserID,
			ToAddress: w.ToAddress,
		},
		InitiatorID: adminID,
		Status:      model.EscrowStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.expiry),
	})
	if errors.Is(err, domainErrors.ErrEscrowConflict) {
		current, lookupErr := e.escrows.GetPendingByTarget(ctx, withdrawalID)
		if lookupErr != nil {
			return nil, err
		}
		return e.reuse(current, adminID)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("escrow initiated",
		slog.Int64("escrow_id", created.ID),
		slog.Int64("withdrawal_id", w.ID),
		slog.Int64("admin_id", adminID),
		slog.String("amount", w.Amount.String()),
	)
	e.observers.Record(ctx, &adminID, model.AdminActionEscrowInitiated, w.ID, map[string]any{
		"escrow_id":  created.ID,
		"amount":     w.Amount.String(),
		"expires_at": created.ExpiresAt,
	})
	return created, nil
}

func (e *DualControlEscrow) reuse(existing *model.Escrow, adminID int64) (*model.Escrow, error) {
	if existing.InitiatorID != adminID {
		return nil, &domainErrors.EscrowConflictError{EscrowID: existing.ID, InitiatorID: existing.InitiatorID}
	}
	return existing, nil
}

// Approve pays the amount frozen in the escrow snapshot and approves both
// the escrow and its withdrawal. The initiator can never approve.
func (e *DualControlEscrow) Approve(ctx context.Context, escrowID, approverID int64) (*model.DecisionOutcome, error) {
	escrow, err := e.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.InitiatorID == approverID {
		return nil, domainErrors.ErrSelfApproval
	}
	if err := e.ensurePending(ctx, escrow); err != nil {
		return nil, err
	}

	w, err := e.settler.Execute(ctx, SettleRequest{
		WithdrawalID: escrow.TargetID,
		EscrowID:     &escrow.ID,
		AdminID:      approverID,
		ToAddress:    escrow.Snapshot.ToAddress,
		NetAmount:    escrow.Snapshot.NetAmount(),
		Expect:       model.WithdrawalStatusEscrowPending,
	})
	if err != nil {
		return nil, err
	}

	approved, err := e.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	return &model.DecisionOutcome{Withdrawal: w, Escrow: approved}, nil
}

// Reject cancels the escrow and its withdrawal, returning the amount to the user.
// Either admin may reject. An overdue escrow is expired instead.
func (e *DualControlEscrow) Reject(ctx context.Context, escrowID, adminID int64, reason string) (*model.DecisionOutcome, error) {
	escrow, err := e.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if err := e.ensurePending(ctx, escrow); err != nil {
		return nil, err
	}

	w, err := e.ledger.Restore(ctx, repository.RestoreParams{
		WithdrawalID: escrow.TargetID,
		From:         []model.WithdrawalStatus{model.WithdrawalStatusEscrowPending},
		To:           model.WithdrawalStatusRejected,
		ActorID:      &adminID,
	})
	if err != nil {
		return nil, err
	}

	e.observers.Record(ctx, &adminID, model.AdminActionEscrowRejected, escrow.TargetID, map[string]any{
		"escrow_id": escrow.ID,
		"reason":    reason,
	})
	e.observers.Rejected(ctx, w, reason, map[string]any{"escrow_id": escrow.ID})

	rejected, err := e.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	return &model.DecisionOutcome{Withdrawal: w, Escrow: rejected}, nil
}

// GetByID returns an escrow record.
func (e *DualControlEscrow) GetByID(ctx context.Context, id int64) (*model.Escrow, error) {
	return e.escrows.GetByID(ctx, id)
}

// ensurePending evaluates expiry lazily: an overdue pending escrow is flipped
// to EXPIRED here and the caller gets ErrEscrowExpired.
func (e *DualControlEscrow) ensurePending(ctx context.Context, escrow *model.Escrow) error {
	switch escrow.Status {
	case model.EscrowStatusPending:
	case model.EscrowStatusExpired:
		return domainErrors.ErrEscrowExpired
	default:
		return domainErrors.ErrConcurrentStateChange
	}

	if !escrow.ExpiredAt(e.now()) {
		return nil
	}
	if err := e.expire(ctx, escrow); err != nil && !errors.Is(err, domainErrors.ErrConcurrentStateChange) {
		return err
	}
	return domainErrors.ErrEscrowExpired
}

func (e *DualControlEscrow) expire(ctx context.Context, escrow *model.Escrow) error {
	if _, err := e.escrows.Expire(ctx, escrow.ID); err != nil {
		return err
	}
	e.logger.Info("escrow expired",
		slog.Int64("escrow_id", escrow.ID),
		slog.Int64("withdrawal_id", escrow.TargetID),
	)
	e.observers.Record(ctx, nil, model.AdminActionEscrowExpired, escrow.TargetID, map[string]any{
		"escrow_id":  escrow.ID,
		"expires_at": escrow.ExpiresAt,
	})
	return nil
}
