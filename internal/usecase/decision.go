package usecase

import (
	"context"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// DecisionHandler applies one kind of admin decision.
type DecisionHandler func(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error)

// DecisionRegistry dispatches admin decisions by kind after verifying the admin.
type DecisionRegistry struct {
	admins   repository.AdminVerifier
	handlers map[model.DecisionKind]DecisionHandler
	logger   *slog.Logger
}

// NewDecisionRegistry registers a handler for every decision kind.
func NewDecisionRegistry(admins repository.AdminVerifier, machine *WithdrawalStateMachine, escrow *DualControlEscrow, logger *slog.Logger) *DecisionRegistry {
	return &DecisionRegistry{
		admins: admins,
		logger: logger,
		handlers: map[model.DecisionKind]DecisionHandler{
			model.DecisionApprove: func(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
				return machine.Approve(ctx, d.AdminID, d.WithdrawalID)
			},
			model.DecisionReject: func(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
				w, err := machine.Reject(ctx, d.AdminID, d.WithdrawalID, d.Reason)
				if err != nil {
					return nil, err
				}
				return &model.DecisionOutcome{Withdrawal: w}, nil
			},
			model.DecisionInitiateEscrow: func(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
				e, err := escrow.Initiate(ctx, d.WithdrawalID, d.AdminID)
				if err != nil {
					return nil, err
				}
				w, err := machine.Get(ctx, d.WithdrawalID)
				if err != nil {
					return nil, err
				}
				return &model.DecisionOutcome{Withdrawal: w, Escrow: e}, nil
			},
			model.DecisionApproveEscrow: func(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
				return escrow.Approve(ctx, d.EscrowID, d.AdminID)
			},
			model.DecisionRejectEscrow: func(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
				return escrow.Reject(ctx, d.EscrowID, d.AdminID, d.Reason)
			},
		},
	}
}

// Handles reports whether a handler is registered for the kind.
func (r *DecisionRegistry) Handles(kind model.DecisionKind) bool {
	_, ok := r.handlers[kind]
	return ok
}

// Decide verifies the admin and applies the decision.
func (r *DecisionRegistry) Decide(ctx context.Context, d model.Decision) (*model.DecisionOutcome, error) {
	handler, ok := r.handlers[d.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domainErrors.ErrUnknownDecision, d.Kind)
	}
	if err := r.admins.VerifyAdmin(ctx, d.AdminID); err != nil {
		return nil, err
	}

	outcome, err := handler(ctx, d)
	if err != nil {
		r.logger.Warn("admin decision failed",
			slog.String("decision", d.Kind.String()),
			slog.Int64("admin_id", d.AdminID),
			slog.Int64("withdrawal_id", d.WithdrawalID),
			slog.Int64("escrow_id", d.EscrowID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return outcome, nil
}
