package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowOperationWithdrawalApproval is the only operation guarded by dual control.
const EscrowOperationWithdrawalApproval = "WITHDRAWAL_APPROVAL"

// EscrowStatus describes dual-control escrow lifecycle.
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "PENDING"
	EscrowStatusApproved EscrowStatus = "APPROVED"
	EscrowStatusRejected EscrowStatus = "REJECTED"
	EscrowStatusExpired  EscrowStatus = "EXPIRED"
)

// EscrowSnapshot freezes what is being approved at initiation time.
type EscrowSnapshot struct {
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	UserID    int64           `json:"user_id"`
	ToAddress string          `json:"to_address"`
}

// NetAmount returns the amount the approval will send externally.
func (s EscrowSnapshot) NetAmount() decimal.Decimal {
	return s.Amount.Sub(s.Fee)
}

// Escrow is a pending high-value action waiting for a second, distinct admin.
type Escrow struct {
	ID            int64
	OperationType string
	TargetID      int64
	Snapshot      EscrowSnapshot
	InitiatorID   int64
	ApproverID    *int64
	Status        EscrowStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// ExpiredAt reports whether the escrow deadline has passed at the given instant.
func (e *Escrow) ExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
