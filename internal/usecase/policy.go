package usecase

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/config"
)

// Policy holds the withdrawal limits and dual-control parameters.
type Policy struct {
	DualControlThreshold decimal.Decimal
	EscrowExpiry         time.Duration
	MinWithdrawalAmount  decimal.Decimal
	FeePercent           decimal.Decimal
	DailyLimitEnabled    bool
}

// NewPolicy extracts withdrawal policy from configuration.
func NewPolicy(cfg *config.Config) Policy {
	return Policy{
		DualControlThreshold: cfg.DualControlThreshold,
		EscrowExpiry:         cfg.EscrowExpiry,
		MinWithdrawalAmount:  cfg.MinWithdrawalAmount,
		FeePercent:           cfg.WithdrawalFeePercent,
		DailyLimitEnabled:    cfg.DailyLimitEnabled,
	}
}

// Switches are operator kill switches that can be flipped at runtime.
type Switches struct {
	maintenance   atomic.Bool
	emergencyStop atomic.Bool
}

// NewSwitches seeds switches from configuration.
func NewSwitches(cfg *config.Config) *Switches {
	s := &Switches{}
	s.maintenance.Store(cfg.MaintenanceMode)
	s.emergencyStop.Store(cfg.EmergencyStop)
	return s
}

// Maintenance reports whether outbound payments are paused.
func (s *Switches) Maintenance() bool { return s.maintenance.Load() }

// SetMaintenance toggles blockchain maintenance mode.
func (s *Switches) SetMaintenance(on bool) { s.maintenance.Store(on) }

// EmergencyStop reports whether new withdrawal requests are paused.
func (s *Switches) EmergencyStop() bool { return s.emergencyStop.Load() }

// SetEmergencyStop toggles the emergency stop.
func (s *Switches) SetEmergencyStop(on bool) { s.emergencyStop.Store(on) }
