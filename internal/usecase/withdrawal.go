package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

const (
	maxPendingPage     = 100
	defaultHistoryPage = 20
	statsTopUsers      = 10
)

// WithdrawalStateMachine owns the withdrawal lifecycle. Every persisted
// transition is a compare-and-set on the current status.
type WithdrawalStateMachine struct {
	withdrawals repository.WithdrawalRepository
	gate        *SecurityGate
	limits      *DailyLimitGuard
	ledger      *WithdrawalLedger
	escrow      *DualControlEscrow
	settler     *Settler
	observers   *Observers
	policy      Policy
	logger      *slog.Logger
}

// WithdrawalStateMachineParams groups collaborators of the state machine.
type WithdrawalStateMachineParams struct {
	fx.In

	Withdrawals repository.WithdrawalRepository
	Gate        *SecurityGate
	Limits      *DailyLimitGuard
	Ledger      *WithdrawalLedger
	Escrow      *DualControlEscrow
	Settler     *Settler
	Observers   *Observers
	Policy      Policy
	Logger      *slog.Logger
}

// NewWithdrawalStateMachine constructs WithdrawalStateMachine.
func NewWithdrawalStateMachine(p WithdrawalStateMachineParams) *WithdrawalStateMachine {
	return &WithdrawalStateMachine{
		withdrawals: p.Withdrawals,
		gate:        p.Gate,
		limits:      p.Limits,
		ledger:      p.Ledger,
		escrow:      p.Escrow,
		settler:     p.Settler,
		observers:   p.Observers,
		policy:      p.Policy,
		logger:      p.Logger,
	}
}

// Request validates input, runs the security and daily-limit gates and only
// then reserves the balance. A failed gate leaves the ledger untouched.
func (m *WithdrawalStateMachine) Request(ctx context.Context, userID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error) {
	if err := ValidateAmount(amount, m.policy.MinWithdrawalAmount); err != nil {
		return nil, err
	}
	address, err := NormalizeAddress(toAddress)
	if err != nil {
		return nil, err
	}

	verdict, err := m.gate.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		return nil, &domainErrors.SecurityBlockedError{Check: verdict.Check, Reason: verdict.Reason}
	}

	limit, err := m.limits.Check(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if limit.Exceeded {
		m.logger.Info("daily withdrawal limit exceeded",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()),
			slog.String("remaining", limit.Remaining.String()),
		)
		return nil, &domainErrors.DailyLimitExceededError{Check: limit}
	}

	w, err := m.ledger.Reserve(ctx, repository.ReserveParams{
		UserID:     userID,
		Amount:     amount,
		Fee:        CalculateFee(amount, m.policy.FeePercent),
		ToAddress:  address,
		DailyLimit: m.limits.Bound(limit),
	})
	var exceeded *domainErrors.DailyLimitExceededError
	if errors.As(err, &exceeded) {
		m.logger.Info("daily withdrawal limit exceeded under lock",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()),
			slog.String("remaining", exceeded.Check.Remaining.String()),
		)
	}
	return w, err
}

// Cancel lets the owner withdraw a request that is still PENDING.
func (m *WithdrawalStateMachine) Cancel(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error) {
	w, err := m.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, domainErrors.ErrNotFound
	}
	if w.Status != model.WithdrawalStatusPending {
		return nil, domainErrors.ErrConcurrentStateChange
	}

	cancelled, err := m.ledger.Restore(ctx, repository.RestoreParams{
		WithdrawalID: withdrawalID,
		From:         []model.WithdrawalStatus{model.WithdrawalStatusPending},
		To:           model.WithdrawalStatusCancelled,
		UserID:       userID,
	})
	if err != nil {
		return nil, err
	}

	m.observers.Record(ctx, nil, model.AdminActionWithdrawalCancelled, cancelled.ID, amountDetails(cancelled.Amount))
	return cancelled, nil
}

// Reject returns the reserved amount to the user. Rejection never moves money
// externally, so no threshold applies.
func (m *WithdrawalStateMachine) Reject(ctx context.Context, adminID, withdrawalID int64, reason string) (*model.Withdrawal, error) {
	w, err := m.ledger.Restore(ctx, repository.RestoreParams{
		WithdrawalID: withdrawalID,
		From:         []model.WithdrawalStatus{model.WithdrawalStatusPending, model.WithdrawalStatusEscrowPending},
		To:           model.WithdrawalStatusRejected,
		ActorID:      &adminID,
	})
	if err != nil {
		return nil, err
	}

	m.observers.Rejected(ctx, w, reason, nil)
	return w, nil
}

// Approve settles a withdrawal below the dual-control threshold directly and
// routes anything at or above it into an escrow.
func (m *WithdrawalStateMachine) Approve(ctx context.Context, adminID, withdrawalID int64) (*model.DecisionOutcome, error) {
	w, err := m.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if !w.Status.IsOpen() {
		return nil, domainErrors.ErrConcurrentStateChange
	}

	if m.escrow.RequiresEscrow(w.Amount) {
		escrow, err := m.escrow.Initiate(ctx, withdrawalID, adminID)
		if err != nil {
			return nil, err
		}
		current, err := m.withdrawals.GetByID(ctx, withdrawalID)
		if err != nil {
			return nil, err
		}
		return &model.DecisionOutcome{Withdrawal: current, Escrow: escrow}, nil
	}

	if w.Status != model.WithdrawalStatusPending {
		return nil, domainErrors.ErrConcurrentStateChange
	}

	settled, err := m.settler.Execute(ctx, SettleRequest{
		WithdrawalID: w.ID,
		AdminID:      adminID,
		ToAddress:    w.ToAddress,
		NetAmount:    w.NetAmount(),
		Expect:       model.WithdrawalStatusPending,
	})
	if err != nil {
		return nil, err
	}
	return &model.DecisionOutcome{Withdrawal: settled}, nil
}

// Get returns a withdrawal by id.
func (m *WithdrawalStateMachine) Get(ctx context.Context, id int64) (*model.Withdrawal, error) {
	return m.withdrawals.GetByID(ctx, id)
}

// GetOwned returns a withdrawal only if it belongs to the user.
func (m *WithdrawalStateMachine) GetOwned(ctx context.Context, userID, id int64) (*model.Withdrawal, error) {
	w, err := m.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, domainErrors.ErrNotFound
	}
	return w, nil
}

// ListPending returns open withdrawals oldest first.
func (m *WithdrawalStateMachine) ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	if limit <= 0 || limit > maxPendingPage {
		limit = maxPendingPage
	}
	return m.withdrawals.ListPending(ctx, limit)
}

// History pages through the user's own withdrawals, newest first.
func (m *WithdrawalStateMachine) History(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error) {
	if limit <= 0 {
		limit = defaultHistoryPage
	}
	if limit > maxPendingPage {
		limit = maxPendingPage
	}
	if offset < 0 {
		offset = 0
	}
	return m.withdrawals.ListByUser(ctx, userID, limit, offset)
}

// Stats reports totals per status and the users with the most approved volume.
func (m *WithdrawalStateMachine) Stats(ctx context.Context) (model.WithdrawalStats, error) {
	return m.withdrawals.Stats(ctx, statsTopUsers)
}

// Available returns the user's spendable balance.
func (m *WithdrawalStateMachine) Available(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return m.ledger.Available(ctx, userID)
}
