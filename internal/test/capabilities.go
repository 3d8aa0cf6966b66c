package test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// PaymentExecutorStub records payment orders and answers with predictable receipts.
type PaymentExecutorStub struct {
	SendFn   func(context.Context, model.PaymentOrder) (*model.PaymentReceipt, error)
	LookupFn func(context.Context, string) (*model.PaymentReceipt, error)

	mu   sync.Mutex
	sent []model.PaymentOrder
}

// SendPayment records the order and returns a receipt unless overridden.
func (s *PaymentExecutorStub) SendPayment(ctx context.Context, order model.PaymentOrder) (*model.PaymentReceipt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, order)
	s.mu.Unlock()
	if s.SendFn != nil {
		return s.SendFn(ctx, order)
	}
	return &model.PaymentReceipt{Reference: order.Reference, TxHash: "0xhash-" + order.Reference}, nil
}

// LookupPayment delegates to override or reports the payment as unknown.
func (s *PaymentExecutorStub) LookupPayment(ctx context.Context, reference string) (*model.PaymentReceipt, error) {
	if s.LookupFn != nil {
		return s.LookupFn(ctx, reference)
	}
	return nil, domainErrors.ErrPaymentNotFound
}

// Sent returns every order passed to SendPayment.
func (s *PaymentExecutorStub) Sent() []model.PaymentOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PaymentOrder(nil), s.sent...)
}

// SettledNotice is a recorded settlement notification.
type SettledNotice struct {
	TelegramID int64
	Amount     decimal.Decimal
	TxHash     string
}

// RejectedNotice is a recorded rejection notification.
type RejectedNotice struct {
	TelegramID int64
	Amount     decimal.Decimal
}

// NotifierStub captures notifications.
type NotifierStub struct {
	Err error

	mu       sync.Mutex
	settled  []SettledNotice
	rejected []RejectedNotice
}

// NotifySettled records the notice.
func (n *NotifierStub) NotifySettled(ctx context.Context, telegramID int64, amount decimal.Decimal, txHash string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, SettledNotice{TelegramID: telegramID, Amount: amount, TxHash: txHash})
	return n.Err
}

// NotifyRejected records the notice.
func (n *NotifierStub) NotifyRejected(ctx context.Context, telegramID int64, amount decimal.Decimal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, RejectedNotice{TelegramID: telegramID, Amount: amount})
	return n.Err
}

// Settled returns recorded settlement notices.
func (n *NotifierStub) Settled() []SettledNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SettledNotice(nil), n.settled...)
}

// Rejected returns recorded rejection notices.
func (n *NotifierStub) Rejected() []RejectedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]RejectedNotice(nil), n.rejected...)
}

// AuditLogStub stores admin action entries.
type AuditLogStub struct {
	Err error

	mu      sync.Mutex
	entries []model.AdminActionEntry
}

// Record appends the entry.
func (a *AuditLogStub) Record(ctx context.Context, entry model.AdminActionEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.entries = append(a.entries, entry)
	return nil
}

// Entries returns the recorded entries.
func (a *AuditLogStub) Entries() []model.AdminActionEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.AdminActionEntry(nil), a.entries...)
}

// Actions returns the recorded action names in order.
func (a *AuditLogStub) Actions() []string {
	var out []string
	for _, e := range a.Entries() {
		out = append(out, e.Action)
	}
	return out
}

// AdminVerifierStub accepts every admin unless configured otherwise.
type AdminVerifierStub struct {
	VerifyFn func(context.Context, int64) error
}

// VerifyAdmin delegates to override.
func (s AdminVerifierStub) VerifyAdmin(ctx context.Context, adminID int64) error {
	if s.VerifyFn != nil {
		return s.VerifyFn(ctx, adminID)
	}
	return nil
}

// UserDirectoryStub maps user ids to telegram ids as id+1000 by default.
type UserDirectoryStub struct {
	Err error
}

// TelegramID returns the notification address.
func (s UserDirectoryStub) TelegramID(ctx context.Context, userID int64) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return userID + 1000, nil
}

// SecurityStub lets every check pass unless a function is supplied.
type SecurityStub struct {
	AccountFn  func(context.Context, int64) (bool, string, error)
	RecoveryFn func(context.Context, int64) (bool, string, error)
	FraudFn    func(context.Context, int64) (bool, string, error)
}

// CheckAccount reports whether withdrawals are blocked.
func (s SecurityStub) CheckAccount(ctx context.Context, userID int64) (bool, string, error) {
	if s.AccountFn != nil {
		return s.AccountFn(ctx, userID)
	}
	return true, "", nil
}

// CheckRecoveryActive reports an active recovery flow.
func (s SecurityStub) CheckRecoveryActive(ctx context.Context, userID int64) (bool, string, error) {
	if s.RecoveryFn != nil {
		return s.RecoveryFn(ctx, userID)
	}
	return true, "", nil
}

// CheckFraud reports a fraud signal.
func (s SecurityStub) CheckFraud(ctx context.Context, userID int64) (bool, string, error) {
	if s.FraudFn != nil {
		return s.FraudFn(ctx, userID)
	}
	return true, "", nil
}

// EarningsStub returns a fixed daily earned amount.
type EarningsStub struct {
	Amount decimal.Decimal
	Err    error
}

// DailyEarned returns the configured amount.
func (s EarningsStub) DailyEarned(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	return s.Amount, s.Err
}
