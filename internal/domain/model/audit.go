package model

import "time"

// AdminAction names recorded in the admin action log.
const (
	AdminActionWithdrawalApproved  = "WITHDRAWAL_APPROVED"
	AdminActionWithdrawalRejected  = "WITHDRAWAL_REJECTED"
	AdminActionWithdrawalCancelled = "WITHDRAWAL_CANCELLED"
	AdminActionEscrowInitiated     = "ESCROW_INITIATED"
	AdminActionEscrowRejected      = "ESCROW_REJECTED"
	AdminActionEscrowExpired       = "ESCROW_EXPIRED"
	AdminActionMaintenanceToggled  = "MAINTENANCE_TOGGLED"
	AdminActionEmergencyStop       = "EMERGENCY_STOP_TOGGLED"
)

// AdminActionEntry is an append-only audit record. AdminID is nil for
// user-initiated transitions such as cancellation.
type AdminActionEntry struct {
	AdminID   *int64
	Action    string
	TargetID  int64
	Details   map[string]any
	CreatedAt time.Time
}
