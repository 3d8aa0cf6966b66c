package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/pkg/auth"
	"github.com/polkiloo/withdrawgate/internal/usecase"
)

// PayoutFacade is the single entry point used by the HTTP layer and the reconciler.
type PayoutFacade struct {
	tokens     auth.Strategy
	machine    *usecase.WithdrawalStateMachine
	decisions  *usecase.DecisionRegistry
	escrow     *usecase.DualControlEscrow
	operations *usecase.OperationsUseCase
	settler    *usecase.Settler
}

func NewPayoutFacade(
	tokens auth.Strategy,
	machine *usecase.WithdrawalStateMachine,
	decisions *usecase.DecisionRegistry,
	escrow *usecase.DualControlEscrow,
	operations *usecase.OperationsUseCase,
	settler *usecase.Settler,
) *PayoutFacade {
	return &PayoutFacade{
		tokens:     tokens,
		machine:    machine,
		decisions:  decisions,
		escrow:     escrow,
		operations: operations,
		settler:    settler,
	}
}

func (f *PayoutFacade) ParseToken(token string) (auth.Principal, error) {
	return f.tokens.ParseToken(token)
}

func (f *PayoutFacade) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error) {
	return f.machine.Request(ctx, userID, amount, toAddress)
}

func (f *PayoutFacade) CancelWithdrawal(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error) {
	return f.machine.Cancel(ctx, userID, withdrawalID)
}

func (f *PayoutFacade) UserWithdrawal(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error) {
	return f.machine.GetOwned(ctx, userID, withdrawalID)
}

func (f *PayoutFacade) UserWithdrawals(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error) {
	return f.machine.History(ctx, userID, limit, offset)
}

func (f *PayoutFacade) WithdrawalStats(ctx context.Context) (model.WithdrawalStats, error) {
	return f.machine.Stats(ctx)
}

func (f *PayoutFacade) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return f.machine.Available(ctx, userID)
}

func (f *PayoutFacade) PendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	return f.machine.ListPending(ctx, limit)
}

func (f *PayoutFacade) Withdrawal(ctx context.Context, withdrawalID int64) (*model.Withdrawal, error) {
	return f.machine.Get(ctx, withdrawalID)
}

func (f *PayoutFacade) Escrow(ctx context.Context, escrowID int64) (*model.Escrow, error) {
	return f.escrow.GetByID(ctx, escrowID)
}

// Decide applies an admin decision through the registry.
func (f *PayoutFacade) Decide(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
	return f.decisions.Decide(ctx, d)
}

func (f *PayoutFacade) SetMaintenance(ctx context.Context, adminID int64, enabled bool) error {
	return f.operations.SetMaintenance(ctx, adminID, enabled)
}

func (f *PayoutFacade) SetEmergencyStop(ctx context.Context, adminID int64, enabled bool) error {
	return f.operations.SetEmergencyStop(ctx, adminID, enabled)
}

func (f *PayoutFacade) Switches() model.RuntimeSwitches {
	return model.RuntimeSwitches{Maintenance: f.operations.Maintenance(), EmergencyStop: f.operations.EmergencyStop()}
}

func (f *PayoutFacade) StaleAttempts(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	return f.settler.StaleAttempts(ctx, olderThan, limit)
}

func (f *PayoutFacade) Reconcile(ctx context.Context, attempt model.PaymentAttempt) (*model.Withdrawal, error) {
	return f.settler.Reconcile(ctx, attempt)
}
