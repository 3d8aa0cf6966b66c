package repository

import (
	"context"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// EscrowRepository persists dual-control escrow records.
type EscrowRepository interface {
	// Create stores a pending escrow and moves its target from PENDING to
	// ESCROW_PENDING in the same transaction.
	Create(ctx context.Context, escrow model.Escrow) (*model.Escrow, error)
	GetByID(ctx context.Context, id int64) (*model.Escrow, error)
	GetPendingByTarget(ctx context.Context, targetID int64) (*model.Escrow, error)
	// Expire flips a pending escrow to EXPIRED and returns its target to PENDING.
	Expire(ctx context.Context, id int64) (*model.Escrow, error)
}
