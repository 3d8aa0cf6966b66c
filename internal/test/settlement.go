package test

import (
	"context"
	"sync"
	"time"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// SettlementFacadeStub feeds stale attempts to the reconciler and records resolutions.
type SettlementFacadeStub struct {
	StaleFn     func(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error)
	ReconcileFn func(ctx context.Context, attempt model.PaymentAttempt) (*model.Withdrawal, error)

	mu         sync.Mutex
	reconciled []string
	cutoffs    []time.Time
}

// StaleAttempts delegates to StaleFn and records the cutoff.
func (s *SettlementFacadeStub) StaleAttempts(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	s.mu.Lock()
	s.cutoffs = append(s.cutoffs, olderThan)
	s.mu.Unlock()
	if s.StaleFn != nil {
		return s.StaleFn(ctx, olderThan, limit)
	}
	return nil, nil
}

// Reconcile records the reference and delegates to ReconcileFn.
func (s *SettlementFacadeStub) Reconcile(ctx context.Context, attempt model.PaymentAttempt) (*model.Withdrawal, error) {
	s.mu.Lock()
	s.reconciled = append(s.reconciled, attempt.Reference)
	s.mu.Unlock()
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, attempt)
	}
	return &model.Withdrawal{ID: attempt.WithdrawalID, Status: model.WithdrawalStatusApproved}, nil
}

// Reconciled returns the references resolved so far.
func (s *SettlementFacadeStub) Reconciled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reconciled...)
}

// Cutoffs returns the staleness cutoffs passed to StaleAttempts.
func (s *SettlementFacadeStub) Cutoffs() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.cutoffs...)
}
