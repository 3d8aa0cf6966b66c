package usecase

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	testhelpers "github.com/polkiloo/withdrawgate/internal/test"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type pipelineOptions struct {
	policy   Policy
	security testhelpers.SecurityStub
	earnings testhelpers.EarningsStub
	admins   testhelpers.AdminVerifierStub
}

type pipeline struct {
	ledger    *testhelpers.MemoryLedger
	executor  *testhelpers.PaymentExecutorStub
	notifier  *testhelpers.NotifierStub
	audit     *testhelpers.AuditLogStub
	switches  *Switches
	clock     *fakeClock
	gate      *SecurityGate
	limits    *DailyLimitGuard
	settler   *Settler
	escrow    *DualControlEscrow
	machine   *WithdrawalStateMachine
	registry  *DecisionRegistry
	observers *Observers
}

func defaultPolicy() Policy {
	return Policy{
		DualControlThreshold: dec("1000"),
		EscrowExpiry:         24 * time.Hour,
		MinWithdrawalAmount:  dec("10"),
		FeePercent:           dec("1"),
	}
}

func newPipeline(t *testing.T, opts ...func(*pipelineOptions)) *pipeline {
	t.Helper()

	o := pipelineOptions{policy: defaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	logger := discardLogger()
	clock := newFakeClock()
	ledger := testhelpers.NewMemoryLedger()
	ledger.Now = clock.Now

	p := &pipeline{
		ledger:   ledger,
		executor: &testhelpers.PaymentExecutorStub{},
		notifier: &testhelpers.NotifierStub{},
		audit:    &testhelpers.AuditLogStub{},
		switches: &Switches{},
		clock:    clock,
	}

	p.observers = NewObservers(p.audit, testhelpers.UserDirectoryStub{}, p.notifier, logger)
	p.observers.now = clock.Now

	p.gate = NewSecurityGate(p.switches, o.security, logger)
	p.limits = NewDailyLimitGuard(o.earnings, ledger.Withdrawals(), o.policy)
	p.limits.now = clock.Now

	var refs atomic.Int64
	p.settler = NewSettler(ledger.PaymentAttempts(), p.executor, p.switches, p.observers, logger)
	p.settler.newReference = func() string { return fmt.Sprintf("ref-%d", refs.Add(1)) }

	walletLedger := NewWithdrawalLedger(ledger.Withdrawals(), logger)
	p.escrow = NewDualControlEscrow(ledger.Escrows(), ledger.Withdrawals(), walletLedger, p.settler, p.observers, o.policy, logger)
	p.escrow.now = clock.Now

	p.machine = NewWithdrawalStateMachine(WithdrawalStateMachineParams{
		Withdrawals: ledger.Withdrawals(),
		Gate:        p.gate,
		Limits:      p.limits,
		Ledger:      walletLedger,
		Escrow:      p.escrow,
		Settler:     p.settler,
		Observers:   p.observers,
		Policy:      o.policy,
		Logger:      logger,
	})
	p.registry = NewDecisionRegistry(o.admins, p.machine, p.escrow, logger)
	return p
}
