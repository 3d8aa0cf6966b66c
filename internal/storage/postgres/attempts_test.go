package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

var attemptColumnNames = []string{"reference", "withdrawal_id", "escrow_id", "admin_id", "to_address", "net_amount", "status", "tx_hash", "error", "created_at", "updated_at"}

func lockedWithdrawal(userID int64, status string) *pgxmockv3.Rows {
	return pgxmockv3.NewRows([]string{"user_id", "status"}).AddRow(userID, status)
}

func escrowLockRows(targetID int64, status string, overdue bool) *pgxmockv3.Rows {
	return pgxmockv3.NewRows([]string{"target_id", "status", "overdue"}).AddRow(targetID, status, overdue)
}

func TestPaymentAttemptRepositoryClaim(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &paymentAttemptRepository{storage: storage}

	now := time.Now()
	escrowID := int64(5)
	attempt := model.PaymentAttempt{
		Reference:    "ref-1",
		WithdrawalID: 1,
		EscrowID:     &escrowID,
		AdminID:      20,
		ToAddress:    testAddress,
		NetAmount:    decimal.RequireFromString("1485"),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "ESCROW_PENDING"))
	mock.ExpectQuery("SELECT target_id, status, expires_at").WithArgs(int64(5)).WillReturnRows(
		escrowLockRows(1, "PENDING", false))
	mock.ExpectQuery("INSERT INTO payment_attempts").WithArgs("ref-1", int64(1), &escrowID, int64(20), testAddress, "1485").WillReturnRows(
		pgxmockv3.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	claimed, err := repo.Claim(context.Background(), attempt, model.WithdrawalStatusEscrowPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed.Status != model.PaymentAttemptInFlight || !claimed.CreatedAt.Equal(now) {
		t.Fatalf("unexpected attempt: %+v", claimed)
	}

	direct := attempt
	direct.EscrowID = nil

	cases := []struct {
		name    string
		attempt model.PaymentAttempt
		expect  model.WithdrawalStatus
		setup   func()
		want    error
	}{
		{
			name:    "withdrawal missing",
			attempt: direct,
			expect:  model.WithdrawalStatusPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnError(pgx.ErrNoRows)
			},
			want: domainErrors.ErrNotFound,
		},
		{
			name:    "status moved",
			attempt: direct,
			expect:  model.WithdrawalStatusPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "REJECTED"))
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
		{
			name:    "escrow missing",
			attempt: attempt,
			expect:  model.WithdrawalStatusEscrowPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "ESCROW_PENDING"))
				mock.ExpectQuery("SELECT target_id, status, expires_at").WithArgs(int64(5)).WillReturnError(pgx.ErrNoRows)
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
		{
			name:    "escrow expired",
			attempt: attempt,
			expect:  model.WithdrawalStatusEscrowPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "ESCROW_PENDING"))
				mock.ExpectQuery("SELECT target_id, status, expires_at").WithArgs(int64(5)).WillReturnRows(
					escrowLockRows(1, "EXPIRED", false))
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
		{
			name:    "escrow past its deadline",
			attempt: attempt,
			expect:  model.WithdrawalStatusEscrowPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "ESCROW_PENDING"))
				mock.ExpectQuery("SELECT target_id, status, expires_at").WithArgs(int64(5)).WillReturnRows(escrowLockRows(1, "PENDING", true))
			},
			want: domainErrors.ErrEscrowExpired,
		},
		{
			name:    "escrow for another withdrawal",
			attempt: attempt,
			expect:  model.WithdrawalStatusEscrowPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "ESCROW_PENDING"))
				mock.ExpectQuery("SELECT target_id, status, expires_at").WithArgs(int64(5)).WillReturnRows(
					escrowLockRows(2, "PENDING", false))
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
		{
			name:    "second claim loses on unique index",
			attempt: direct,
			expect:  model.WithdrawalStatusPending,
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "PENDING"))
				mock.ExpectQuery("INSERT INTO payment_attempts").WithArgs("ref-1", int64(1), (*int64)(nil), int64(20), testAddress, "1485").WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectBegin()
			tc.setup()
			mock.ExpectRollback()
			if _, err := repo.Claim(context.Background(), tc.attempt, tc.expect); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "PENDING"))
	mock.ExpectQuery("INSERT INTO payment_attempts").WithArgs("ref-1", int64(1), (*int64)(nil), int64(20), testAddress, "1485").WillReturnError(errors.New("insert"))
	mock.ExpectRollback()
	if _, err := repo.Claim(context.Background(), direct, model.WithdrawalStatusPending); err == nil || errors.Is(err, domainErrors.ErrConcurrentStateChange) {
		t.Fatalf("expected raw insert error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPaymentAttemptRepositorySettle(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &paymentAttemptRepository{storage: storage}

	now := time.Now()
	escrowID := int64(5)
	attemptRow := func(escrow *int64, status string) *pgxmockv3.Rows {
		return pgxmockv3.NewRows([]string{"withdrawal_id", "escrow_id", "admin_id", "status"}).AddRow(int64(1), escrow, int64(20), status)
	}

	t.Run("escrow approval", func(t *testing.T) {
		approved := withdrawalRow(1, 7, "1500", "15", "APPROVED", now)
		hash := "0xfeed"
		row := approved
		row[6] = &hash

		mock.ExpectBegin()
		mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-1").WillReturnRows(attemptRow(&escrowID, "IN_FLIGHT"))
		mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "ESCROW_PENDING"))
		mock.ExpectQuery("UPDATE withdrawals SET status='APPROVED'").WithArgs(int64(1), "0xfeed", int64(20)).WillReturnRows(newWithdrawalRows(row))
		mock.ExpectExec("UPDATE escrows SET status='APPROVED'").WithArgs(int64(5), int64(20)).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE payment_attempts SET status='SUCCEEDED'").WithArgs("ref-1", "0xfeed").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		w, err := repo.Settle(context.Background(), "ref-1", "0xfeed")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.Status != model.WithdrawalStatusApproved || w.TxHash == nil || *w.TxHash != "0xfeed" {
			t.Fatalf("unexpected withdrawal: %+v", w)
		}
	})

	t.Run("direct approval skips escrow", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-2").WillReturnRows(attemptRow(nil, "IN_FLIGHT"))
		mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "PENDING"))
		mock.ExpectQuery("UPDATE withdrawals SET status='APPROVED'").WithArgs(int64(1), "0xbeef", int64(20)).WillReturnRows(
			newWithdrawalRows(withdrawalRow(1, 7, "100", "1", "APPROVED", now)))
		mock.ExpectExec("UPDATE payment_attempts SET status='SUCCEEDED'").WithArgs("ref-2", "0xbeef").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		if _, err := repo.Settle(context.Background(), "ref-2", "0xbeef"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("already settled is idempotent", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-3").WillReturnRows(attemptRow(nil, "SUCCEEDED"))
		mock.ExpectQuery("FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(
			newWithdrawalRows(withdrawalRow(1, 7, "100", "1", "APPROVED", now)))
		mock.ExpectCommit()

		w, err := repo.Settle(context.Background(), "ref-3", "0xbeef")
		if err != nil || w.Status != model.WithdrawalStatusApproved {
			t.Fatalf("unexpected result %+v err=%v", w, err)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()
		if _, err := repo.Settle(context.Background(), "missing", "0x"); !errors.Is(err, domainErrors.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("failed attempt", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-4").WillReturnRows(attemptRow(nil, "FAILED"))
		mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "PENDING"))
		mock.ExpectRollback()
		if _, err := repo.Settle(context.Background(), "ref-4", "0x"); !errors.Is(err, domainErrors.ErrConcurrentStateChange) {
			t.Fatalf("expected concurrent change, got %v", err)
		}
	})

	t.Run("withdrawal already terminal", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-5").WillReturnRows(attemptRow(nil, "IN_FLIGHT"))
		mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(lockedWithdrawal(7, "REJECTED"))
		mock.ExpectRollback()
		if _, err := repo.Settle(context.Background(), "ref-5", "0x"); !errors.Is(err, domainErrors.ErrConcurrentStateChange) {
			t.Fatalf("expected concurrent change, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPaymentAttemptRepositoryFinish(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &paymentAttemptRepository{storage: storage}

	mock.ExpectExec("UPDATE payment_attempts SET status=").WithArgs("ref-1", "FAILED", "rpc timeout").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	if err := repo.MarkFailed(context.Background(), "ref-1", "rpc timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE payment_attempts SET status=").WithArgs("ref-2", "ABANDONED", "unknown on rail").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	if err := repo.MarkAbandoned(context.Background(), "ref-2", "unknown on rail"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE payment_attempts SET status=").WithArgs("ref-3", "FAILED", "x").WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-3").WillReturnRows(pgxmockv3.NewRows([]string{"exists"}).AddRow(false))
	if err := repo.MarkFailed(context.Background(), "ref-3", "x"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("UPDATE payment_attempts SET status=").WithArgs("ref-4", "FAILED", "x").WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM payment_attempts WHERE reference=").WithArgs("ref-4").WillReturnRows(pgxmockv3.NewRows([]string{"exists"}).AddRow(true))
	if err := repo.MarkFailed(context.Background(), "ref-4", "x"); !errors.Is(err, domainErrors.ErrConcurrentStateChange) {
		t.Fatalf("expected concurrent change, got %v", err)
	}

	mock.ExpectExec("UPDATE payment_attempts SET status=").WithArgs("ref-5", "FAILED", "x").WillReturnError(errors.New("update"))
	if err := repo.MarkFailed(context.Background(), "ref-5", "x"); err == nil {
		t.Fatal("expected update error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPaymentAttemptRepositoryListStale(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &paymentAttemptRepository{storage: storage}

	cutoff := time.Now().Add(-5 * time.Minute)
	created := cutoff.Add(-time.Minute)
	escrowID := int64(5)

	mock.ExpectQuery("FROM payment_attempts WHERE status='IN_FLIGHT'").WithArgs(cutoff, 16).WillReturnRows(
		pgxmockv3.NewRows(attemptColumnNames).
			AddRow("ref-1", int64(1), nil, int64(20), testAddress, "99", "IN_FLIGHT", nil, nil, created, created).
			AddRow("ref-2", int64(2), &escrowID, int64(30), testAddress, "1485", "IN_FLIGHT", nil, nil, created, created))
	stale, err := repo.ListStale(context.Background(), cutoff, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stale) != 2 || stale[0].EscrowID != nil || stale[1].EscrowID == nil || *stale[1].EscrowID != 5 {
		t.Fatalf("unexpected attempts: %+v", stale)
	}
	if !stale[1].NetAmount.Equal(decimal.NewFromInt(1485)) {
		t.Fatalf("unexpected amount %s", stale[1].NetAmount)
	}

	mock.ExpectQuery("FROM payment_attempts WHERE status='IN_FLIGHT'").WithArgs(cutoff, 16).WillReturnError(errors.New("query"))
	if _, err := repo.ListStale(context.Background(), cutoff, 16); err == nil {
		t.Fatal("expected query error")
	}

	mock.ExpectQuery("FROM payment_attempts WHERE status='IN_FLIGHT'").WithArgs(cutoff, 16).WillReturnRows(
		pgxmockv3.NewRows(attemptColumnNames).
			AddRow("ref-1", int64(1), nil, int64(20), testAddress, "bad", "IN_FLIGHT", nil, nil, created, created))
	if _, err := repo.ListStale(context.Background(), cutoff, 16); err == nil {
		t.Fatal("expected amount parse error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPaymentAttemptRepositoryListStaleRowsError(t *testing.T) {
	storage := &Storage{pool: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	repo := &paymentAttemptRepository{storage: storage}

	if _, err := repo.ListStale(context.Background(), time.Now(), 1); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}
