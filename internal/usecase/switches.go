package usecase

import (
	"context"
	"log/slog"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// OperationsUseCase lets admins flip runtime switches.
type OperationsUseCase struct {
	switches  *Switches
	admins    repository.AdminVerifier
	observers *Observers
	logger    *slog.Logger
}

// NewOperationsUseCase constructs OperationsUseCase.
func NewOperationsUseCase(switches *Switches, admins repository.AdminVerifier, observers *Observers, logger *slog.Logger) *OperationsUseCase {
	return &OperationsUseCase{switches: switches, admins: admins, observers: observers, logger: logger}
}

// SetMaintenance toggles blockchain maintenance mode on behalf of an admin.
func (u *OperationsUseCase) SetMaintenance(ctx context.Context, adminID int64, enabled bool) error {
	if err := u.admins.VerifyAdmin(ctx, adminID); err != nil {
		return err
	}
	previous := u.switches.Maintenance()
	u.switches.SetMaintenance(enabled)

	u.logger.Warn("maintenance mode toggled", slog.Int64("admin_id", adminID), slog.Bool("enabled", enabled))
	u.observers.Record(ctx, &adminID, model.AdminActionMaintenanceToggled, 0, map[string]any{
		"previous": previous,
		"enabled":  enabled,
	})
	return nil
}

// SetEmergencyStop pauses or resumes new withdrawal requests.
func (u *OperationsUseCase) SetEmergencyStop(ctx context.Context, adminID int64, enabled bool) error {
	if err := u.admins.VerifyAdmin(ctx, adminID); err != nil {
		return err
	}
	previous := u.switches.EmergencyStop()
	u.switches.SetEmergencyStop(enabled)

	u.logger.Warn("emergency stop toggled", slog.Int64("admin_id", adminID), slog.Bool("enabled", enabled))
	u.observers.Record(ctx, &adminID, model.AdminActionEmergencyStop, 0, map[string]any{
		"previous": previous,
		"enabled":  enabled,
	})
	return nil
}

// Maintenance reports the current maintenance mode.
func (u *OperationsUseCase) Maintenance() bool {
	return u.switches.Maintenance()
}

// EmergencyStop reports whether new requests are paused.
func (u *OperationsUseCase) EmergencyStop() bool {
	return u.switches.EmergencyStop()
}
