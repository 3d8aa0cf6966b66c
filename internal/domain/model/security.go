package model

import "github.com/shopspring/decimal"

// SecurityCheck names a pre-withdrawal security check.
type SecurityCheck string

const (
	SecurityCheckEmergencyStop SecurityCheck = "emergency_stop"
	SecurityCheckUserBlocked   SecurityCheck = "user_blocked"
	SecurityCheckRecovery      SecurityCheck = "credential_recovery"
	SecurityCheckFraud         SecurityCheck = "fraud"
)

// SecurityVerdict is the result of the security gate.
type SecurityVerdict struct {
	Allowed bool
	Check   SecurityCheck
	Reason  string
}

// DailyLimitCheck describes the user's rolling 24h allowance.
type DailyLimitCheck struct {
	Exceeded       bool
	DailyCap       decimal.Decimal
	WithdrawnToday decimal.Decimal
	Remaining      decimal.Decimal
}

// EvaluateDailyLimit compares amount against what is left of dailyCap once
// withdrawn is taken out. Remaining never goes below zero.
func EvaluateDailyLimit(dailyCap, withdrawn, amount decimal.Decimal) DailyLimitCheck {
	remaining := dailyCap.Sub(withdrawn)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return DailyLimitCheck{
		Exceeded:       amount.GreaterThan(remaining),
		DailyCap:       dailyCap,
		WithdrawnToday: withdrawn,
		Remaining:      remaining,
	}
}

// RuntimeSwitches reports the operator switches at a point in time.
type RuntimeSwitches struct {
	Maintenance   bool
	EmergencyStop bool
}
