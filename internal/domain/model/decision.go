package model

// DecisionKind enumerates admin decisions on a withdrawal.
type DecisionKind int

const (
	DecisionApprove DecisionKind = iota + 1
	DecisionReject
	DecisionInitiateEscrow
	DecisionApproveEscrow
	DecisionRejectEscrow
)

// DecisionKinds lists every decision kind the pipeline must handle.
func DecisionKinds() []DecisionKind {
	return []DecisionKind{
		DecisionApprove,
		DecisionReject,
		DecisionInitiateEscrow,
		DecisionApproveEscrow,
		DecisionRejectEscrow,
	}
}

func (k DecisionKind) String() string {
	switch k {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	case DecisionInitiateEscrow:
		return "initiate_escrow"
	case DecisionApproveEscrow:
		return "approve_escrow"
	case DecisionRejectEscrow:
		return "reject_escrow"
	default:
		return "unknown"
	}
}

// Decision is an admin action. WithdrawalID is used by withdrawal-level kinds,
// EscrowID by escrow-level kinds.
type Decision struct {
	Kind         DecisionKind
	AdminID      int64
	WithdrawalID int64
	EscrowID     int64
	Reason       string
}

// DecisionOutcome reports the state after a decision was applied.
type DecisionOutcome struct {
	Withdrawal *Withdrawal
	Escrow     *Escrow
}
