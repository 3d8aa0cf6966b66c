package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus describes the withdrawal request lifecycle.
type WithdrawalStatus string

const (
	WithdrawalStatusPending       WithdrawalStatus = "PENDING"
	WithdrawalStatusEscrowPending WithdrawalStatus = "ESCROW_PENDING"
	WithdrawalStatusApproved      WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected      WithdrawalStatus = "REJECTED"
	WithdrawalStatusCancelled     WithdrawalStatus = "CANCELLED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending: {
		WithdrawalStatusEscrowPending,
		WithdrawalStatusApproved,
		WithdrawalStatusRejected,
		WithdrawalStatusCancelled,
	},
	// Expired escrow sends the request back to PENDING for a fresh initiation.
	WithdrawalStatusEscrowPending: {
		WithdrawalStatusApproved,
		WithdrawalStatusRejected,
		WithdrawalStatusPending,
	},
}

// IsTerminal reports whether no further transition is allowed.
func (s WithdrawalStatus) IsTerminal() bool {
	return len(withdrawalTransitions[s]) == 0
}

// IsOpen reports whether the request still awaits a decision.
func (s WithdrawalStatus) IsOpen() bool {
	return s == WithdrawalStatusPending || s == WithdrawalStatusEscrowPending
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SettlementBoundStatuses are counted against the daily limit.
func SettlementBoundStatuses() []WithdrawalStatus {
	return []WithdrawalStatus{WithdrawalStatusPending, WithdrawalStatusEscrowPending, WithdrawalStatusApproved}
}

// Withdrawal is a user request to move funds from the internal balance to an external wallet.
// Amount is the gross sum reserved on the ledger; only NetAmount is ever sent externally.
type Withdrawal struct {
	ID          int64
	UserID      int64
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	ToAddress   string
	Status      WithdrawalStatus
	TxHash      *string
	CreatedAt   time.Time
	DecidedAt   *time.Time
	DecidedByID *int64
}

// NetAmount returns the amount transferred to the external wallet.
func (w *Withdrawal) NetAmount() decimal.Decimal {
	return w.Amount.Sub(w.Fee)
}

// StatusTotal aggregates withdrawals sharing a status.
type StatusTotal struct {
	Status WithdrawalStatus
	Count  int64
	Amount decimal.Decimal
}

// UserTotal aggregates the approved withdrawals of one user.
type UserTotal struct {
	UserID int64
	Count  int64
	Amount decimal.Decimal
}

// WithdrawalStats is the platform-wide withdrawal report.
// TopUsers is ordered by approved amount, largest first.
type WithdrawalStats struct {
	ByStatus []StatusTotal
	TopUsers []UserTotal
}

// Total returns the aggregate for a status, zero when none exist.
func (s WithdrawalStats) Total(status WithdrawalStatus) StatusTotal {
	for _, t := range s.ByStatus {
		if t.Status == status {
			return t
		}
	}
	return StatusTotal{Status: status, Amount: decimal.Zero}
}
