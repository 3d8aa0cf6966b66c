package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

const (
	msgAccountMissing   = "account not found"
	msgAccountBlocked   = "withdrawals are blocked for this account"
	msgRecoveryActive   = "credential recovery in progress, withdrawals are temporarily locked"
	msgFraudHighRisk    = "account flagged for manual review"
	highRiskLevel       = "high"
	fraudBlockReasonFmt = "fraud: %s"
)

type adminActionRepository struct {
	storage *Storage
}

type adminRepository struct {
	storage *Storage
}

type userDirectory struct {
	storage *Storage
}

type securityRepository struct {
	storage *Storage
}

type earningsRepository struct {
	storage *Storage
}

// --- AdminActionLog implementation ---

func (r *adminActionRepository) Record(ctx context.Context, entry model.AdminActionEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const query = `INSERT INTO admin_actions (admin_id, action, target_id, details, created_at)
                   VALUES ($1, $2, $3, $4::jsonb, $5)`
	_, err = r.storage.pool.Exec(ctx, query, entry.AdminID, entry.Action, entry.TargetID, string(payload), createdAt)
	return err
}

// --- AdminVerifier implementation ---

func (r *adminRepository) VerifyAdmin(ctx context.Context, adminID int64) error {
	var active bool
	err := r.storage.pool.QueryRow(ctx, `SELECT active FROM admins WHERE id=$1`, adminID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrForbidden
		}
		return err
	}
	if !active {
		return domainErrors.ErrForbidden
	}
	return nil
}

// --- UserDirectory implementation ---

func (r *userDirectory) TelegramID(ctx context.Context, userID int64) (int64, error) {
	var telegramID *int64
	err := r.storage.pool.QueryRow(ctx, `SELECT telegram_id FROM users WHERE id=$1`, userID).Scan(&telegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domainErrors.ErrNotFound
		}
		return 0, err
	}
	if telegramID == nil {
		return 0, domainErrors.ErrNotFound
	}
	return *telegramID, nil
}

// --- SecurityRepository implementation ---

func (r *securityRepository) CheckAccount(ctx context.Context, userID int64) (bool, string, error) {
	var (
		blocked bool
		reason  string
	)
	const query = `SELECT withdrawal_blocked, COALESCE(blocked_reason, '') FROM users WHERE id=$1`
	if err := r.storage.pool.QueryRow(ctx, query, userID).Scan(&blocked, &reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, msgAccountMissing, nil
		}
		return false, "", err
	}
	if blocked {
		return false, msgAccountBlocked, nil
	}
	return true, "", nil
}

func (r *securityRepository) CheckRecoveryActive(ctx context.Context, userID int64) (bool, string, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM credential_recoveries WHERE user_id=$1 AND active)`
	var active bool
	if err := r.storage.pool.QueryRow(ctx, query, userID).Scan(&active); err != nil {
		return false, "", err
	}
	if active {
		return false, msgRecoveryActive, nil
	}
	return true, "", nil
}

// CheckFraud blocks on a high risk flag and marks the account as blocked in the same transaction.
func (r *securityRepository) CheckFraud(ctx context.Context, userID int64) (bool, string, error) {
	flagged := false
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		const query = `SELECT reason FROM user_risk_flags
                       WHERE user_id=$1 AND risk_level=$2
                       ORDER BY created_at DESC LIMIT 1`
		var reason string
		if err := tx.QueryRow(ctx, query, userID, highRiskLevel).Scan(&reason); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		flagged = true

		const block = `UPDATE users SET withdrawal_blocked=TRUE, blocked_reason=$2 WHERE id=$1`
		_, err := tx.Exec(ctx, block, userID, fmt.Sprintf(fraudBlockReasonFmt, reason))
		return err
	})
	if err != nil {
		return false, "", err
	}
	if flagged {
		r.storage.logger.WarnContext(ctx, "account blocked by fraud check", slog.Int64("user_id", userID))
		return false, msgFraudHighRisk, nil
	}
	return true, "", nil
}

// --- EarningsProvider implementation ---

func (r *earningsRepository) DailyEarned(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0)::text FROM user_earnings WHERE user_id=$1 AND earned_at >= $2`
	return scanDecimal(r.storage.pool.QueryRow(ctx, query, userID, since))
}
