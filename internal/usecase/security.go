package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

const emergencyStopReason = "withdrawals are temporarily paused"

// SecurityGate runs the pre-withdrawal checks in order and stops at the first block.
type SecurityGate struct {
	switches *Switches
	accounts repository.AccountChecker
	recovery repository.RecoveryChecker
	fraud    repository.FraudChecker
	logger   *slog.Logger
}

// NewSecurityGate constructs SecurityGate from the security repository.
func NewSecurityGate(switches *Switches, checks repository.SecurityRepository, logger *slog.Logger) *SecurityGate {
	return &SecurityGate{
		switches: switches,
		accounts: checks,
		recovery: checks,
		fraud:    checks,
		logger:   logger,
	}
}

type securityCheckFn func(ctx context.Context, userID int64) (bool, string, error)

// Evaluate returns an allowed verdict or the first failing check with its message.
func (g *SecurityGate) Evaluate(ctx context.Context, userID int64) (model.SecurityVerdict, error) {
	if g.switches.EmergencyStop() {
		return model.SecurityVerdict{Check: model.SecurityCheckEmergencyStop, Reason: emergencyStopReason}, nil
	}

	checks := []struct {
		name model.SecurityCheck
		fn   securityCheckFn
	}{
		{model.SecurityCheckUserBlocked, g.accounts.CheckAccount},
		{model.SecurityCheckRecovery, g.recovery.CheckRecoveryActive},
		{model.SecurityCheckFraud, g.fraud.CheckFraud},
	}

	for _, check := range checks {
		ok, message, err := check.fn(ctx, userID)
		if err != nil {
			return model.SecurityVerdict{}, fmt.Errorf("%s check: %w", check.name, err)
		}
		if !ok {
			g.logger.Warn("withdrawal blocked by security gate",
				slog.Int64("user_id", userID),
				slog.String("check", string(check.name)),
				slog.String("reason", message),
			)
			return model.SecurityVerdict{Check: check.name, Reason: message}, nil
		}
	}

	return model.SecurityVerdict{Allowed: true}, nil
}
