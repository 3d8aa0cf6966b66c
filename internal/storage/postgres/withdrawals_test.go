package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

func TestWithdrawalRepositoryReserve(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	params := repository.ReserveParams{
		UserID:    7,
		Amount:    decimal.RequireFromString("100"),
		Fee:       decimal.RequireFromString("1"),
		ToAddress: testAddress,
	}
	createdAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("150.5"))
	mock.ExpectExec("UPDATE balances SET available = available -").WithArgs(int64(7), "100").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO withdrawals").WithArgs(int64(7), "100", "1", testAddress, "PENDING").WillReturnRows(
		pgxmockv3.NewRows([]string{"id", "created_at"}).AddRow(int64(3), createdAt))
	mock.ExpectCommit()

	w, err := repo.Reserve(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ID != 3 || w.Status != model.WithdrawalStatusPending || !w.NetAmount().Equal(decimal.RequireFromString("99")) {
		t.Fatalf("unexpected withdrawal: %+v", w)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("99.99"))
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), params); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), params); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance for missing row, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnError(errors.New("select"))
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), params); err == nil {
		t.Fatal("expected select error")
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("500"))
	mock.ExpectExec("UPDATE balances SET available = available -").WithArgs(int64(7), "100").WillReturnError(errors.New("debit"))
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), params); err == nil {
		t.Fatal("expected debit error")
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("500"))
	mock.ExpectExec("UPDATE balances SET available = available -").WithArgs(int64(7), "100").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO withdrawals").WithArgs(int64(7), "100", "1", testAddress, "PENDING").WillReturnError(errors.New("insert"))
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), params); err == nil {
		t.Fatal("expected insert error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryReserveDailyLimit(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	since := time.Now().Add(-24 * time.Hour)
	params := repository.ReserveParams{
		UserID:     7,
		Amount:     decimal.RequireFromString("80"),
		Fee:        decimal.RequireFromString("0.8"),
		ToAddress:  testAddress,
		DailyLimit: &repository.DailyLimit{Cap: decimal.RequireFromString("100"), Since: since},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("500"))
	mock.ExpectQuery("FROM withdrawals WHERE user_id=").WithArgs(int64(7), since).WillReturnRows(
		pgxmockv3.NewRows([]string{"sum"}).AddRow("80"))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), params)
	var exceeded *domainErrors.DailyLimitExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected DailyLimitExceededError, got %v", err)
	}
	if !exceeded.Check.Remaining.Equal(decimal.RequireFromString("20")) || !exceeded.Check.WithdrawnToday.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("unexpected check: %+v", exceeded.Check)
	}

	createdAt := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("500"))
	mock.ExpectQuery("FROM withdrawals WHERE user_id=").WithArgs(int64(7), since).WillReturnRows(
		pgxmockv3.NewRows([]string{"sum"}).AddRow("20"))
	mock.ExpectExec("UPDATE balances SET available = available -").WithArgs(int64(7), "80").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO withdrawals").WithArgs(int64(7), "80", "0.8", testAddress, "PENDING").WillReturnRows(
		pgxmockv3.NewRows([]string{"id", "created_at"}).AddRow(int64(4), createdAt))
	mock.ExpectCommit()
	if _, err := repo.Reserve(context.Background(), params); err != nil {
		t.Fatalf("expected reservation within cap, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(7)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("500"))
	mock.ExpectQuery("FROM withdrawals WHERE user_id=").WithArgs(int64(7), since).WillReturnError(errors.New("sum"))
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), params); err == nil {
		t.Fatal("expected sum error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryRestore(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	adminID := int64(10)
	now := time.Now()
	open := []model.WithdrawalStatus{model.WithdrawalStatusPending, model.WithdrawalStatusEscrowPending}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(
		pgxmockv3.NewRows([]string{"user_id", "status"}).AddRow(int64(7), "ESCROW_PENDING"))
	mock.ExpectQuery("FROM payment_attempts WHERE withdrawal_id=").WithArgs(int64(1)).WillReturnRows(
		pgxmockv3.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE withdrawals SET status=").WithArgs(int64(1), "REJECTED", &adminID).WillReturnRows(
		newWithdrawalRows(withdrawalRow(1, 7, "100", "1", "REJECTED", now)))
	mock.ExpectExec("INSERT INTO balances").WithArgs(int64(7), "100").WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE escrows SET status='REJECTED'").WithArgs(int64(1)).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	w, err := repo.Restore(context.Background(), repository.RestoreParams{
		WithdrawalID: 1,
		From:         open,
		To:           model.WithdrawalStatusRejected,
		ActorID:      &adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Status != model.WithdrawalStatusRejected || !w.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected withdrawal: %+v", w)
	}

	cases := []struct {
		name   string
		params repository.RestoreParams
		setup  func()
		want   error
	}{
		{
			name:   "missing row",
			params: repository.RestoreParams{WithdrawalID: 2, From: open, To: model.WithdrawalStatusRejected},
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(2)).WillReturnError(pgx.ErrNoRows)
			},
			want: domainErrors.ErrNotFound,
		},
		{
			name:   "other owner",
			params: repository.RestoreParams{WithdrawalID: 3, From: open, To: model.WithdrawalStatusCancelled, UserID: 8},
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(3)).WillReturnRows(
					pgxmockv3.NewRows([]string{"user_id", "status"}).AddRow(int64(7), "PENDING"))
			},
			want: domainErrors.ErrNotFound,
		},
		{
			name:   "already terminal",
			params: repository.RestoreParams{WithdrawalID: 4, From: open, To: model.WithdrawalStatusRejected},
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(4)).WillReturnRows(
					pgxmockv3.NewRows([]string{"user_id", "status"}).AddRow(int64(7), "REJECTED"))
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
		{
			name:   "payment in flight",
			params: repository.RestoreParams{WithdrawalID: 5, From: open, To: model.WithdrawalStatusRejected},
			setup: func() {
				mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(5)).WillReturnRows(
					pgxmockv3.NewRows([]string{"user_id", "status"}).AddRow(int64(7), "PENDING"))
				mock.ExpectQuery("FROM payment_attempts WHERE withdrawal_id=").WithArgs(int64(5)).WillReturnRows(
					pgxmockv3.NewRows([]string{"exists"}).AddRow(true))
			},
			want: domainErrors.ErrConcurrentStateChange,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectBegin()
			tc.setup()
			mock.ExpectRollback()
			if _, err := repo.Restore(context.Background(), tc.params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status FROM withdrawals WHERE id=").WithArgs(int64(6)).WillReturnRows(
		pgxmockv3.NewRows([]string{"user_id", "status"}).AddRow(int64(7), "PENDING"))
	mock.ExpectQuery("FROM payment_attempts WHERE withdrawal_id=").WithArgs(int64(6)).WillReturnRows(
		pgxmockv3.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE withdrawals SET status=").WithArgs(int64(6), "CANCELLED", (*int64)(nil)).WillReturnRows(
		newWithdrawalRows(withdrawalRow(6, 7, "40", "0", "CANCELLED", now)))
	mock.ExpectExec("INSERT INTO balances").WithArgs(int64(7), "40").WillReturnError(errors.New("credit"))
	mock.ExpectRollback()
	if _, err := repo.Restore(context.Background(), repository.RestoreParams{WithdrawalID: 6, From: open, To: model.WithdrawalStatusCancelled, UserID: 7}); err == nil {
		t.Fatal("expected credit error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryAvailable(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(1)).WillReturnRows(
		pgxmockv3.NewRows([]string{"available"}).AddRow("12.34000000"))
	available, err := repo.Available(context.Background(), 1)
	if err != nil || !available.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("unexpected available %s err=%v", available, err)
	}

	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(2)).WillReturnError(pgx.ErrNoRows)
	available, err = repo.Available(context.Background(), 2)
	if err != nil || !available.IsZero() {
		t.Fatalf("expected zero for missing balance, got %s err=%v", available, err)
	}

	mock.ExpectQuery("SELECT available::text FROM balances WHERE user_id=").WithArgs(int64(3)).WillReturnError(errors.New("boom"))
	if _, err := repo.Available(context.Background(), 3); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryGetByID(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	now := time.Now()
	hash := "0xabc"
	decidedBy := int64(10)
	row := withdrawalRow(1, 7, "100", "1", "APPROVED", now)
	row[6], row[8], row[9] = &hash, &now, &decidedBy

	mock.ExpectQuery("FROM withdrawals WHERE id=").WithArgs(int64(1)).WillReturnRows(newWithdrawalRows(row))
	w, err := repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.TxHash == nil || *w.TxHash != hash || w.DecidedByID == nil || *w.DecidedByID != decidedBy {
		t.Fatalf("unexpected withdrawal: %+v", w)
	}

	mock.ExpectQuery("FROM withdrawals WHERE id=").WithArgs(int64(2)).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), 2); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery("FROM withdrawals WHERE id=").WithArgs(int64(3)).WillReturnRows(
		newWithdrawalRows(withdrawalRow(3, 7, "not-a-number", "1", "PENDING", now)))
	if _, err := repo.GetByID(context.Background(), 3); err == nil {
		t.Fatal("expected amount parse error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryListPending(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	now := time.Now()
	mock.ExpectQuery("FROM withdrawals WHERE status IN").WithArgs(10).WillReturnRows(newWithdrawalRows(
		withdrawalRow(1, 7, "100", "1", "PENDING", now),
		withdrawalRow(2, 8, "1500", "15", "ESCROW_PENDING", now),
	))
	list, err := repo.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[1].Status != model.WithdrawalStatusEscrowPending {
		t.Fatalf("unexpected list: %+v", list)
	}

	mock.ExpectQuery("FROM withdrawals WHERE status IN").WithArgs(10).WillReturnError(errors.New("query"))
	if _, err := repo.ListPending(context.Background(), 10); err == nil {
		t.Fatal("expected query error")
	}

	mock.ExpectQuery("FROM withdrawals WHERE status IN").WithArgs(10).WillReturnRows(
		pgxmockv3.NewRows(withdrawalColumnNames).AddRow("bad", int64(7), "100", "1", testAddress, "PENDING", nil, now, nil, nil))
	if _, err := repo.ListPending(context.Background(), 10); err == nil {
		t.Fatal("expected scan error")
	}

	mock.ExpectQuery("FROM withdrawals WHERE status IN").WithArgs(10).WillReturnRows(
		newWithdrawalRows(
			withdrawalRow(1, 7, "100", "1", "PENDING", now),
			withdrawalRow(2, 7, "50", "1", "PENDING", now),
		).RowError(1, errors.New("row")))
	if _, err := repo.ListPending(context.Background(), 10); err == nil || err.Error() != "row" {
		t.Fatalf("expected row error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryListPendingRowsError(t *testing.T) {
	storage := &Storage{pool: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	repo := &withdrawalRepository{storage: storage}

	if _, err := repo.ListPending(context.Background(), 1); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}

func TestWithdrawalRepositorySumSettlementBound(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("FROM withdrawals WHERE user_id=").WithArgs(int64(7), since).WillReturnRows(
		pgxmockv3.NewRows([]string{"sum"}).AddRow("250.5"))
	total, err := repo.SumSettlementBound(context.Background(), 7, since)
	if err != nil || !total.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("unexpected total %s err=%v", total, err)
	}

	mock.ExpectQuery("FROM withdrawals WHERE user_id=").WithArgs(int64(7), since).WillReturnError(errors.New("sum"))
	if _, err := repo.SumSettlementBound(context.Background(), 7, since); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryListByUser(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	now := time.Now()
	mock.ExpectQuery("FROM withdrawals WHERE user_id=.*ORDER BY created_at DESC").WithArgs(int64(7), 20, 40).WillReturnRows(newWithdrawalRows(
		withdrawalRow(9, 7, "50", "0.5", "APPROVED", now),
		withdrawalRow(4, 7, "100", "1", "CANCELLED", now.Add(-time.Hour)),
	))
	list, err := repo.ListByUser(context.Background(), 7, 20, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID != 9 || list[1].Status != model.WithdrawalStatusCancelled {
		t.Fatalf("unexpected history: %+v", list)
	}

	mock.ExpectQuery("FROM withdrawals WHERE user_id=.*ORDER BY created_at DESC").WithArgs(int64(7), 20, 0).WillReturnError(errors.New("query"))
	if _, err := repo.ListByUser(context.Background(), 7, 20, 0); err == nil {
		t.Fatal("expected query error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalRepositoryStats(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{storage: storage}

	mock.ExpectQuery("GROUP BY status").WillReturnRows(
		pgxmockv3.NewRows([]string{"status", "count", "sum"}).
			AddRow("APPROVED", int64(3), "450.5").
			AddRow("PENDING", int64(1), "20"))
	mock.ExpectQuery("GROUP BY user_id").WithArgs(10).WillReturnRows(
		pgxmockv3.NewRows([]string{"user_id", "count", "sum"}).
			AddRow(int64(7), int64(2), "400").
			AddRow(int64(8), int64(1), "50.5"))

	stats, err := repo.Stats(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approved := stats.Total(model.WithdrawalStatusApproved)
	if approved.Count != 3 || !approved.Amount.Equal(decimal.RequireFromString("450.5")) {
		t.Fatalf("unexpected approved total: %+v", approved)
	}
	if rejected := stats.Total(model.WithdrawalStatusRejected); rejected.Count != 0 || !rejected.Amount.IsZero() {
		t.Fatalf("expected empty rejected total, got %+v", rejected)
	}
	if len(stats.TopUsers) != 2 || stats.TopUsers[0].UserID != 7 || !stats.TopUsers[1].Amount.Equal(decimal.RequireFromString("50.5")) {
		t.Fatalf("unexpected top users: %+v", stats.TopUsers)
	}

	cases := []struct {
		name  string
		setup func()
	}{
		{
			name: "status query",
			setup: func() {
				mock.ExpectQuery("GROUP BY status").WillReturnError(errors.New("status"))
			},
		},
		{
			name: "bad status amount",
			setup: func() {
				mock.ExpectQuery("GROUP BY status").WillReturnRows(
					pgxmockv3.NewRows([]string{"status", "count", "sum"}).AddRow("APPROVED", int64(1), "x"))
			},
		},
		{
			name: "user query",
			setup: func() {
				mock.ExpectQuery("GROUP BY status").WillReturnRows(pgxmockv3.NewRows([]string{"status", "count", "sum"}))
				mock.ExpectQuery("GROUP BY user_id").WithArgs(10).WillReturnError(errors.New("users"))
			},
		},
		{
			name: "user rows",
			setup: func() {
				mock.ExpectQuery("GROUP BY status").WillReturnRows(pgxmockv3.NewRows([]string{"status", "count", "sum"}))
				mock.ExpectQuery("GROUP BY user_id").WithArgs(10).WillReturnRows(
					pgxmockv3.NewRows([]string{"user_id", "count", "sum"}).
						AddRow(int64(7), int64(1), "1").
						AddRow(int64(8), int64(1), "2").
						RowError(1, errors.New("row")))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setup()
			if _, err := repo.Stats(context.Background(), 10); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
