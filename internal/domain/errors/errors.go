package errors

import (
	"errors"
	"fmt"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrValidation            = errors.New("validation failed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrSecurityBlocked       = errors.New("withdrawal blocked by security check")
	ErrDailyLimitExceeded    = errors.New("daily withdrawal limit exceeded")
	ErrMaintenanceMode       = errors.New("blockchain maintenance mode")
	ErrPaymentExecution      = errors.New("payment execution failed")
	ErrEscrowConflict        = errors.New("escrow already initiated by another admin")
	ErrSelfApproval          = errors.New("initiator cannot approve own escrow")
	ErrEscrowExpired         = errors.New("escrow expired")
	ErrConcurrentStateChange = errors.New("withdrawal state changed concurrently")
	ErrUnknownDecision       = errors.New("unknown decision")
	ErrPaymentNotFound       = errors.New("payment not found on rail")
	ErrPaymentRejected       = errors.New("payment rejected by rail")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SecurityBlockedError carries the user-facing reason of a security veto.
type SecurityBlockedError struct {
	Check  model.SecurityCheck
	Reason string
}

func (e *SecurityBlockedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Check, e.Reason)
}

func (e *SecurityBlockedError) Unwrap() error { return ErrSecurityBlocked }

// DailyLimitExceededError carries the computed allowance.
type DailyLimitExceededError struct {
	Check model.DailyLimitCheck
}

func (e *DailyLimitExceededError) Error() string {
	return fmt.Sprintf("daily limit exceeded: cap %s, withdrawn %s, remaining %s",
		e.Check.DailyCap, e.Check.WithdrawnToday, e.Check.Remaining)
}

func (e *DailyLimitExceededError) Unwrap() error { return ErrDailyLimitExceeded }

// PaymentExecutionError wraps a payment rail failure. State is left untouched.
type PaymentExecutionError struct {
	Reason string
}

func (e *PaymentExecutionError) Error() string {
	return "payment execution failed: " + e.Reason
}

func (e *PaymentExecutionError) Unwrap() error { return ErrPaymentExecution }

// EscrowConflictError names the escrow held by a different initiator.
type EscrowConflictError struct {
	EscrowID    int64
	InitiatorID int64
}

func (e *EscrowConflictError) Error() string {
	return fmt.Sprintf("escrow %d is pending, initiated by admin %d", e.EscrowID, e.InitiatorID)
}

func (e *EscrowConflictError) Unwrap() error { return ErrEscrowConflict }
