package test

import (
	"context"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/pkg/auth"
)

// TokenParserStub returns a configured principal or error.
type TokenParserStub struct {
	Principal auth.Principal
	Err       error
}

// ParseToken returns the configured principal.
func (s TokenParserStub) ParseToken(string) (auth.Principal, error) {
	if s.Err != nil {
		return auth.Principal{}, s.Err
	}
	return s.Principal, nil
}

// PayoutFacadeStub implements the HTTP facade with overridable behaviour.
// Tokens "user" and "admin" resolve to principals 1 and 2 by default.
type PayoutFacadeStub struct {
	ParseFn       func(string) (auth.Principal, error)
	RequestFn     func(context.Context, int64, decimal.Decimal, string) (*model.Withdrawal, error)
	CancelFn      func(context.Context, int64, int64) (*model.Withdrawal, error)
	UserGetFn     func(context.Context, int64, int64) (*model.Withdrawal, error)
	HistoryFn     func(context.Context, int64, int, int) ([]model.Withdrawal, error)
	StatsFn       func(context.Context) (model.WithdrawalStats, error)
	BalanceFn     func(context.Context, int64) (decimal.Decimal, error)
	PendingFn     func(context.Context, int) ([]model.Withdrawal, error)
	GetFn         func(context.Context, int64) (*model.Withdrawal, error)
	EscrowFn      func(context.Context, int64) (*model.Escrow, error)
	DecideFn      func(context.Context, model.Decision) (*model.DecisionOutcome, error)
	MaintenanceFn func(context.Context, int64, bool) error
	StopFn        func(context.Context, int64, bool) error
	SwitchesValue model.RuntimeSwitches
}

func (s *PayoutFacadeStub) ParseToken(token string) (auth.Principal, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	switch token {
	case "user":
		return auth.Principal{ID: 1, Role: auth.RoleUser}, nil
	case "admin":
		return auth.Principal{ID: 2, Role: auth.RoleAdmin}, nil
	default:
		return auth.Principal{}, auth.ErrInvalidToken
	}
}

func (s *PayoutFacadeStub) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error) {
	if s.RequestFn != nil {
		return s.RequestFn(ctx, userID, amount, toAddress)
	}
	return &model.Withdrawal{ID: 1, UserID: userID, Amount: amount, ToAddress: toAddress, Status: model.WithdrawalStatusPending}, nil
}

func (s *PayoutFacadeStub) CancelWithdrawal(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error) {
	if s.CancelFn != nil {
		return s.CancelFn(ctx, userID, withdrawalID)
	}
	return &model.Withdrawal{ID: withdrawalID, UserID: userID, Status: model.WithdrawalStatusCancelled}, nil
}

func (s *PayoutFacadeStub) UserWithdrawal(ctx context.Context, userID, withdrawalID int64) (*model.Withdrawal, error) {
	if s.UserGetFn != nil {
		return s.UserGetFn(ctx, userID, withdrawalID)
	}
	return &model.Withdrawal{ID: withdrawalID, UserID: userID, Status: model.WithdrawalStatusPending}, nil
}

func (s *PayoutFacadeStub) UserWithdrawals(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error) {
	if s.HistoryFn != nil {
		return s.HistoryFn(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (s *PayoutFacadeStub) WithdrawalStats(ctx context.Context) (model.WithdrawalStats, error) {
	if s.StatsFn != nil {
		return s.StatsFn(ctx)
	}
	return model.WithdrawalStats{}, nil
}

func (s *PayoutFacadeStub) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if s.BalanceFn != nil {
		return s.BalanceFn(ctx, userID)
	}
	return decimal.Zero, nil
}

func (s *PayoutFacadeStub) PendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	if s.PendingFn != nil {
		return s.PendingFn(ctx, limit)
	}
	return nil, nil
}

func (s *PayoutFacadeStub) Withdrawal(ctx context.Context, withdrawalID int64) (*model.Withdrawal, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, withdrawalID)
	}
	return &model.Withdrawal{ID: withdrawalID, Status: model.WithdrawalStatusPending}, nil
}

func (s *PayoutFacadeStub) Escrow(ctx context.Context, escrowID int64) (*model.Escrow, error) {
	if s.EscrowFn != nil {
		return s.EscrowFn(ctx, escrowID)
	}
	return nil, domainErrors.ErrNotFound
}

func (s *PayoutFacadeStub) Decide(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
	if s.DecideFn != nil {
		return s.DecideFn(ctx, d)
	}
	return &model.DecisionOutcome{Withdrawal: &model.Withdrawal{ID: d.WithdrawalID, Status: model.WithdrawalStatusApproved}}, nil
}

func (s *PayoutFacadeStub) SetMaintenance(ctx context.Context, adminID int64, enabled bool) error {
	if s.MaintenanceFn != nil {
		return s.MaintenanceFn(ctx, adminID, enabled)
	}
	s.SwitchesValue.Maintenance = enabled
	return nil
}

func (s *PayoutFacadeStub) SetEmergencyStop(ctx context.Context, adminID int64, enabled bool) error {
	if s.StopFn != nil {
		return s.StopFn(ctx, adminID, enabled)
	}
	s.SwitchesValue.EmergencyStop = enabled
	return nil
}

func (s *PayoutFacadeStub) Switches() model.RuntimeSwitches {
	return s.SwitchesValue
}
