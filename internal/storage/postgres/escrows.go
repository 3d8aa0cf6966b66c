package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

type escrowRepository struct {
	storage *Storage
}

const escrowColumns = `id, operation_type, target_id, operation_data::text, initiator_id, approver_id, status, created_at, expires_at`

func scanEscrow(row rowScanner) (*model.Escrow, error) {
	var (
		e            model.Escrow
		data, status string
	)
	if err := row.Scan(&e.ID, &e.OperationType, &e.TargetID, &data, &e.InitiatorID, &e.ApproverID, &status, &e.CreatedAt, &e.ExpiresAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &e.Snapshot); err != nil {
		return nil, fmt.Errorf("escrow %d operation data: %w", e.ID, err)
	}
	e.Status = model.EscrowStatus(status)
	return &e, nil
}

// Create inserts a pending escrow and moves the withdrawal into ESCROW_PENDING.
func (r *escrowRepository) Create(ctx context.Context, escrow model.Escrow) (*model.Escrow, error) {
	data, err := json.Marshal(escrow.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode operation data: %w", err)
	}

	var created *model.Escrow
	err = r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		_, status, err := lockWithdrawal(ctx, tx, escrow.TargetID)
		if err != nil {
			return err
		}

		const pending = `SELECT EXISTS (SELECT 1 FROM escrows WHERE target_id=$1 AND status='PENDING')`
		var exists bool
		if err := tx.QueryRow(ctx, pending, escrow.TargetID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domainErrors.ErrEscrowConflict
		}
		if status != model.WithdrawalStatusPending {
			return domainErrors.ErrConcurrentStateChange
		}

		const insert = `INSERT INTO escrows (operation_type, target_id, operation_data, initiator_id, status, created_at, expires_at)
                        VALUES ($1, $2, $3::jsonb, $4, 'PENDING', $5, $6)
                        RETURNING id`
		e := escrow
		e.Status = model.EscrowStatusPending
		if err := tx.QueryRow(ctx, insert, e.OperationType, e.TargetID, string(data), e.InitiatorID, e.CreatedAt, e.ExpiresAt).Scan(&e.ID); err != nil {
			if isUniqueViolation(err) {
				return domainErrors.ErrEscrowConflict
			}
			return err
		}

		const move = `UPDATE withdrawals SET status='ESCROW_PENDING' WHERE id=$1 AND status='PENDING'`
		if _, err := tx.Exec(ctx, move, e.TargetID); err != nil {
			return err
		}
		created = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *escrowRepository) GetByID(ctx context.Context, id int64) (*model.Escrow, error) {
	const query = `SELECT ` + escrowColumns + ` FROM escrows WHERE id=$1`
	return r.getOne(ctx, query, id)
}

func (r *escrowRepository) GetPendingByTarget(ctx context.Context, targetID int64) (*model.Escrow, error) {
	const query = `SELECT ` + escrowColumns + ` FROM escrows WHERE target_id=$1 AND status='PENDING'`
	return r.getOne(ctx, query, targetID)
}

func (r *escrowRepository) getOne(ctx context.Context, query string, arg int64) (*model.Escrow, error) {
	e, err := scanEscrow(r.storage.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Expire flips a pending escrow to EXPIRED and returns its withdrawal to PENDING.
// Locks follow the withdrawal-then-escrow order used by every other transaction.
func (r *escrowRepository) Expire(ctx context.Context, id int64) (*model.Escrow, error) {
	var expired *model.Escrow
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		var targetID int64
		if err := tx.QueryRow(ctx, `SELECT target_id FROM escrows WHERE id=$1`, id).Scan(&targetID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}
		if _, _, err := lockWithdrawal(ctx, tx, targetID); err != nil {
			return err
		}

		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM escrows WHERE id=$1 FOR UPDATE`, id).Scan(&status); err != nil {
			return err
		}
		if model.EscrowStatus(status) != model.EscrowStatusPending {
			return domainErrors.ErrConcurrentStateChange
		}
		inFlight, err := hasInFlightAttempt(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if inFlight {
			return domainErrors.ErrConcurrentStateChange
		}

		const update = `UPDATE escrows SET status='EXPIRED' WHERE id=$1 RETURNING ` + escrowColumns
		e, err := scanEscrow(tx.QueryRow(ctx, update, id))
		if err != nil {
			return err
		}

		const revert = `UPDATE withdrawals SET status='PENDING' WHERE id=$1 AND status='ESCROW_PENDING'`
		if _, err := tx.Exec(ctx, revert, targetID); err != nil {
			return err
		}
		expired = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
