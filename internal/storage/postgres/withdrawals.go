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
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

type withdrawalRepository struct {
	storage *Storage
}

const withdrawalColumns = `id, user_id, amount::text, fee::text, to_address, status, tx_hash, created_at, decided_at, decided_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWithdrawal(row rowScanner) (*model.Withdrawal, error) {
	var (
		w           model.Withdrawal
		amount, fee string
		status      string
	)
	if err := row.Scan(&w.ID, &w.UserID, &amount, &fee, &w.ToAddress, &status, &w.TxHash, &w.CreatedAt, &w.DecidedAt, &w.DecidedByID); err != nil {
		return nil, err
	}
	var err error
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("withdrawal %d amount: %w", w.ID, err)
	}
	if w.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("withdrawal %d fee: %w", w.ID, err)
	}
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}

func scanDecimal(row rowScanner) (decimal.Decimal, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// lockWithdrawal takes a row lock on the withdrawal for the rest of the transaction.
func lockWithdrawal(ctx context.Context, tx pgx.Tx, id int64) (userID int64, status model.WithdrawalStatus, err error) {
	const query = `SELECT user_id, status FROM withdrawals WHERE id=$1 FOR UPDATE`
	var raw string
	if err := tx.QueryRow(ctx, query, id).Scan(&userID, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", domainErrors.ErrNotFound
		}
		return 0, "", err
	}
	return userID, model.WithdrawalStatus(raw), nil
}

func hasInFlightAttempt(ctx context.Context, tx pgx.Tx, withdrawalID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE withdrawal_id=$1 AND status='IN_FLIGHT')`
	var exists bool
	if err := tx.QueryRow(ctx, query, withdrawalID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *withdrawalRepository) Reserve(ctx context.Context, p repository.ReserveParams) (*model.Withdrawal, error) {
	var created *model.Withdrawal
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		available, err := scanDecimal(tx.QueryRow(ctx, `SELECT available::text FROM balances WHERE user_id=$1 FOR UPDATE`, p.UserID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrInsufficientBalance
			}
			return err
		}
		if available.LessThan(p.Amount) {
			return domainErrors.ErrInsufficientBalance
		}
		if p.DailyLimit != nil {
			withdrawn, err := scanDecimal(tx.QueryRow(ctx, sumSettlementBound, p.UserID, p.DailyLimit.Since))
			if err != nil {
				return err
			}
			if check := model.EvaluateDailyLimit(p.DailyLimit.Cap, withdrawn, p.Amount); check.Exceeded {
				return &domainErrors.DailyLimitExceededError{Check: check}
			}
		}

		const debit = `UPDATE balances SET available = available - $2::numeric WHERE user_id=$1`
		if _, err := tx.Exec(ctx, debit, p.UserID, p.Amount.String()); err != nil {
			return err
		}

		const insert = `INSERT INTO withdrawals (user_id, amount, fee, to_address, status)
                        VALUES ($1, $2::numeric, $3::numeric, $4, $5)
                        RETURNING id, created_at`
		w := model.Withdrawal{
			UserID:    p.UserID,
			Amount:    p.Amount,
			Fee:       p.Fee,
			ToAddress: p.ToAddress,
			Status:    model.WithdrawalStatusPending,
		}
		if err := tx.QueryRow(ctx, insert, p.UserID, p.Amount.String(), p.Fee.String(), p.ToAddress, string(w.Status)).Scan(&w.ID, &w.CreatedAt); err != nil {
			return err
		}
		created = &w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *withdrawalRepository) Restore(ctx context.Context, p repository.RestoreParams) (*model.Withdrawal, error) {
	var restored *model.Withdrawal
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		owner, status, err := lockWithdrawal(ctx, tx, p.WithdrawalID)
		if err != nil {
			return err
		}
		if p.UserID != 0 && owner != p.UserID {
			return domainErrors.ErrNotFound
		}
		if !statusIn(status, p.From) {
			return domainErrors.ErrConcurrentStateChange
		}
		inFlight, err := hasInFlightAttempt(ctx, tx, p.WithdrawalID)
		if err != nil {
			return err
		}
		if inFlight {
			return domainErrors.ErrConcurrentStateChange
		}

		const update = `UPDATE withdrawals SET status=$2, decided_at=NOW(), decided_by=$3
                        WHERE id=$1 RETURNING ` + withdrawalColumns
		w, err := scanWithdrawal(tx.QueryRow(ctx, update, p.WithdrawalID, string(p.To), p.ActorID))
		if err != nil {
			return err
		}

		const credit = `INSERT INTO balances (user_id, available)
                        VALUES ($1, $2::numeric)
                        ON CONFLICT (user_id) DO UPDATE SET available = balances.available + EXCLUDED.available`
		if _, err := tx.Exec(ctx, credit, w.UserID, w.Amount.String()); err != nil {
			return err
		}

		const dropEscrow = `UPDATE escrows SET status='REJECTED' WHERE target_id=$1 AND status='PENDING'`
		if _, err := tx.Exec(ctx, dropEscrow, p.WithdrawalID); err != nil {
			return err
		}
		restored = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (r *withdrawalRepository) Available(ctx context.Context, userID int64) (decimal.Decimal, error) {
	available, err := scanDecimal(r.storage.pool.QueryRow(ctx, `SELECT available::text FROM balances WHERE user_id=$1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return available, nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id=$1`
	w, err := scanWithdrawal(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *withdrawalRepository) ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + `
                   FROM withdrawals WHERE status IN ('PENDING', 'ESCROW_PENDING')
                   ORDER BY created_at, id LIMIT $1`
	return r.queryWithdrawals(ctx, query, limit)
}

func (r *withdrawalRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + `
                   FROM withdrawals WHERE user_id=$1
                   ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	return r.queryWithdrawals(ctx, query, userID, limit, offset)
}

func (r *withdrawalRepository) queryWithdrawals(ctx context.Context, query string, args ...any) ([]model.Withdrawal, error) {
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *withdrawalRepository) Stats(ctx context.Context, topUsers int) (model.WithdrawalStats, error) {
	var stats model.WithdrawalStats

	const byStatus = `SELECT status, COUNT(*), COALESCE(SUM(amount), 0)::text
                      FROM withdrawals GROUP BY status ORDER BY status`
	rows, err := r.storage.pool.Query(ctx, byStatus)
	if err != nil {
		return stats, err
	}
	stats.ByStatus, err = scanTotals(rows, scanStatusTotal)
	if err != nil {
		return stats, err
	}

	const byUser = `SELECT user_id, COUNT(*), SUM(amount)::text
                    FROM withdrawals WHERE status='APPROVED'
                    GROUP BY user_id ORDER BY SUM(amount) DESC, user_id LIMIT $1`
	rows, err = r.storage.pool.Query(ctx, byUser, topUsers)
	if err != nil {
		return stats, err
	}
	stats.TopUsers, err = scanTotals(rows, scanUserTotal)
	return stats, err
}

func scanStatusTotal(row rowScanner) (model.StatusTotal, error) {
	var (
		t              model.StatusTotal
		status, amount string
	)
	if err := row.Scan(&status, &t.Count, &amount); err != nil {
		return t, err
	}
	t.Status = model.WithdrawalStatus(status)
	total, err := decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("%s total: %w", status, err)
	}
	t.Amount = total
	return t, nil
}

func scanUserTotal(row rowScanner) (model.UserTotal, error) {
	var (
		t      model.UserTotal
		amount string
	)
	if err := row.Scan(&t.UserID, &t.Count, &amount); err != nil {
		return t, err
	}
	total, err := decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("user %d total: %w", t.UserID, err)
	}
	t.Amount = total
	return t, nil
}

func scanTotals[T any](rows pgx.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const sumSettlementBound = `SELECT COALESCE(SUM(amount), 0)::text FROM withdrawals
                   WHERE user_id=$1 AND created_at >= $2 AND status IN ('PENDING', 'ESCROW_PENDING', 'APPROVED')`

func (r *withdrawalRepository) SumSettlementBound(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	return scanDecimal(r.storage.pool.QueryRow(ctx, sumSettlementBound, userID, since))
}

func statusIn(status model.WithdrawalStatus, set []model.WithdrawalStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
