package usecase

import "go.uber.org/fx"

// Module provides the withdrawal pipeline to the fx container.
var Module = fx.Provide(
	NewPolicy,
	NewSwitches,
	NewObservers,
	NewSecurityGate,
	NewDailyLimitGuard,
	NewWithdrawalLedger,
	NewSettler,
	NewDualControlEscrow,
	NewWithdrawalStateMachine,
	NewDecisionRegistry,
	NewOperationsUseCase,
)
