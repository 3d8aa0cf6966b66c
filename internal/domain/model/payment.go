package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAttemptStatus tracks a single call to the payment rail.
type PaymentAttemptStatus string

const (
	PaymentAttemptInFlight  PaymentAttemptStatus = "IN_FLIGHT"
	PaymentAttemptSucceeded PaymentAttemptStatus = "SUCCEEDED"
	PaymentAttemptFailed    PaymentAttemptStatus = "FAILED"
	PaymentAttemptAbandoned PaymentAttemptStatus = "ABANDONED"
)

// PaymentAttempt records an outbound payment so a crash between sending and
// persisting the outcome can be reconciled by reference.
type PaymentAttempt struct {
	Reference    string
	WithdrawalID int64
	EscrowID     *int64
	AdminID      int64
	ToAddress    string
	NetAmount    decimal.Decimal
	Status       PaymentAttemptStatus
	TxHash       *string
	Error        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentOrder is what the payment rail is asked to execute.
type PaymentOrder struct {
	Reference string
	ToAddress string
	Amount    decimal.Decimal
}

// PaymentReceipt is returned by the payment rail on success.
type PaymentReceipt struct {
	Reference string
	TxHash    string
}
