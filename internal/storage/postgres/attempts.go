package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

type paymentAttemptRepository struct {
	storage *Storage
}

const attemptColumns = `reference, withdrawal_id, escrow_id, admin_id, to_address, net_amount::text, status, tx_hash, error, created_at, updated_at`

func scanAttempt(row rowScanner) (*model.PaymentAttempt, error) {
	var (
		a              model.PaymentAttempt
		amount, status string
	)
	if err := row.Scan(&a.Reference, &a.WithdrawalID, &a.EscrowID, &a.AdminID, &a.ToAddress, &amount, &status, &a.TxHash, &a.Error, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.NetAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("payment attempt %s amount: %w", a.Reference, err)
	}
	a.Status = model.PaymentAttemptStatus(status)
	return &a, nil
}

// Claim records an in-flight attempt. The partial unique index on
// payment_attempts(withdrawal_id) rejects a second concurrent claim.
func (r *paymentAttemptRepository) Claim(ctx context.Context, attempt model.PaymentAttempt, expect model.WithdrawalStatus) (*model.PaymentAttempt, error) {
	var claimed *model.PaymentAttempt
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		_, status, err := lockWithdrawal(ctx, tx, attempt.WithdrawalID)
		if err != nil {
			return err
		}
		if status != expect {
			return domainErrors.ErrConcurrentStateChange
		}

		if attempt.EscrowID != nil {
			var (
				targetID     int64
				escrowStatus string
				overdue      bool
			)
			const lockEscrow = `SELECT target_id, status, expires_at < NOW() FROM escrows WHERE id=$1 FOR UPDATE`
			err := tx.QueryRow(ctx, lockEscrow, *attempt.EscrowID).Scan(&targetID, &escrowStatus, &overdue)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domainErrors.ErrConcurrentStateChange
				}
				return err
			}
			if model.EscrowStatus(escrowStatus) != model.EscrowStatusPending || targetID != attempt.WithdrawalID {
				return domainErrors.ErrConcurrentStateChange
			}
			if overdue {
				return domainErrors.ErrEscrowExpired
			}
		}

		const insert = `INSERT INTO payment_attempts (reference, withdrawal_id, escrow_id, admin_id, to_address, net_amount, status)
                        VALUES ($1, $2, $3, $4, $5, $6::numeric, 'IN_FLIGHT')
                        RETURNING created_at, updated_at`
		a := attempt
		a.Status = model.PaymentAttemptInFlight
		err = tx.QueryRow(ctx, insert, a.Reference, a.WithdrawalID, a.EscrowID, a.AdminID, a.ToAddress, a.NetAmount.String()).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domainErrors.ErrConcurrentStateChange
			}
			return err
		}
		claimed = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Settle approves the withdrawal (and its escrow) for a confirmed payment.
// Settling an already succeeded attempt returns the withdrawal unchanged.
func (r *paymentAttemptRepository) Settle(ctx context.Context, reference, txHash string) (*model.Withdrawal, error) {
	var settled *model.Withdrawal
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		var (
			withdrawalID, adminID int64
			escrowID              *int64
			status                string
		)
		const lockAttempt = `SELECT withdrawal_id, escrow_id, admin_id, status FROM payment_attempts WHERE reference=$1 FOR UPDATE`
		if err := tx.QueryRow(ctx, lockAttempt, reference).Scan(&withdrawalID, &escrowID, &adminID, &status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}

		if model.PaymentAttemptStatus(status) == model.PaymentAttemptSucceeded {
			w, err := scanWithdrawal(tx.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id=$1`, withdrawalID))
			if err != nil {
				return err
			}
			settled = w
			return nil
		}

		_, current, err := lockWithdrawal(ctx, tx, withdrawalID)
		if err != nil {
			return err
		}
		if model.PaymentAttemptStatus(status) != model.PaymentAttemptInFlight || !current.IsOpen() {
			return domainErrors.ErrConcurrentStateChange
		}

		const approve = `UPDATE withdrawals SET status='APPROVED', tx_hash=$2, decided_at=NOW(), decided_by=$3
                         WHERE id=$1 RETURNING ` + withdrawalColumns
		w, err := scanWithdrawal(tx.QueryRow(ctx, approve, withdrawalID, txHash, adminID))
		if err != nil {
			return err
		}

		if escrowID != nil {
			const approveEscrow = `UPDATE escrows SET status='APPROVED', approver_id=$2 WHERE id=$1 AND status='PENDING'`
			if _, err := tx.Exec(ctx, approveEscrow, *escrowID, adminID); err != nil {
				return err
			}
		}

		const succeed = `UPDATE payment_attempts SET status='SUCCEEDED', tx_hash=$2, updated_at=NOW() WHERE reference=$1`
		if _, err := tx.Exec(ctx, succeed, reference, txHash); err != nil {
			return err
		}
		settled = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (r *paymentAttemptRepository) MarkFailed(ctx context.Context, reference, reason string) error {
	return r.finish(ctx, reference, model.PaymentAttemptFailed, reason)
}

func (r *paymentAttemptRepository) MarkAbandoned(ctx context.Context, reference, reason string) error {
	return r.finish(ctx, reference, model.PaymentAttemptAbandoned, reason)
}

func (r *paymentAttemptRepository) finish(ctx context.Context, reference string, status model.PaymentAttemptStatus, reason string) error {
	const update = `UPDATE payment_attempts SET status=$2, error=$3, updated_at=NOW()
                    WHERE reference=$1 AND status='IN_FLIGHT'`
	tag, err := r.storage.pool.Exec(ctx, update, reference, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.storage.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE reference=$1)`, reference).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domainErrors.ErrNotFound
	}
	return domainErrors.ErrConcurrentStateChange
}

func (r *paymentAttemptRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	const query = `SELECT ` + attemptColumns + `
                   FROM payment_attempts
                   WHERE status='IN_FLIGHT' AND created_at < $1
                   ORDER BY created_at
                   LIMIT $2`
	rows, err := r.storage.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
