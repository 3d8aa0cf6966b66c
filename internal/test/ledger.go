package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/domain/repository"
)

// MemoryLedger keeps balances, withdrawals, escrows and payment attempts in
// memory and applies the same status compare-and-set rules as the database.
type MemoryLedger struct {
	mu             sync.Mutex
	balances       map[int64]decimal.Decimal
	withdrawals    map[int64]*model.Withdrawal
	escrows        map[int64]*model.Escrow
	attempts       map[string]*model.PaymentAttempt
	attemptOrder   []string
	nextWithdrawal int64
	nextEscrow     int64

	// Now overrides the clock used for created/decided timestamps.
	Now func() time.Time
	// Err, when set, is returned by every repository call.
	Err error
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:    make(map[int64]decimal.Decimal),
		withdrawals: make(map[int64]*model.Withdrawal),
		escrows:     make(map[int64]*model.Escrow),
		attempts:    make(map[string]*model.PaymentAttempt),
	}
}

func (l *MemoryLedger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// SetBalance seeds the available balance of a user.
func (l *MemoryLedger) SetBalance(userID int64, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = amount
}

// Balance returns the available balance of a user.
func (l *MemoryLedger) Balance(userID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

// Seed stores a withdrawal as-is, without touching the balance.
func (l *MemoryLedger) Seed(w model.Withdrawal) *model.Withdrawal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w.ID == 0 {
		l.nextWithdrawal++
		w.ID = l.nextWithdrawal
	} else if w.ID > l.nextWithdrawal {
		l.nextWithdrawal = w.ID
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = l.now()
	}
	l.withdrawals[w.ID] = &w
	out := w
	return &out
}

// Withdrawal returns a snapshot of a stored withdrawal.
func (l *MemoryLedger) Withdrawal(id int64) (model.Withdrawal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.withdrawals[id]
	if !ok {
		return model.Withdrawal{}, false
	}
	return *w, true
}

// Escrow returns a snapshot of a stored escrow.
func (l *MemoryLedger) Escrow(id int64) (model.Escrow, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.escrows[id]
	if !ok {
		return model.Escrow{}, false
	}
	return *e, true
}

// EscrowsFor returns every escrow ever created for a withdrawal.
func (l *MemoryLedger) EscrowsFor(targetID int64) []model.Escrow {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Escrow
	for _, e := range l.escrows {
		if e.TargetID == targetID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingEscrows counts pending escrows for a withdrawal.
func (l *MemoryLedger) PendingEscrows(targetID int64) int {
	count := 0
	for _, e := range l.EscrowsFor(targetID) {
		if e.Status == model.EscrowStatusPending {
			count++
		}
	}
	return count
}

// Attempts returns payment attempts for a withdrawal.
func (l *MemoryLedger) Attempts(withdrawalID int64) []model.PaymentAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.PaymentAttempt
	for _, ref := range l.attemptOrder {
		if a := l.attempts[ref]; a.WithdrawalID == withdrawalID {
			out = append(out, *a)
		}
	}
	return out
}

// Withdrawals exposes the ledger as a WithdrawalRepository.
func (l *MemoryLedger) Withdrawals() repository.WithdrawalRepository { return memoryWithdrawals{l} }

// Escrows exposes the ledger as an EscrowRepository.
func (l *MemoryLedger) Escrows() repository.EscrowRepository { return memoryEscrows{l} }

// PaymentAttempts exposes the ledger as a PaymentAttemptRepository.
func (l *MemoryLedger) PaymentAttempts() repository.PaymentAttemptRepository {
	return memoryAttempts{l}
}

func (l *MemoryLedger) inFlight(withdrawalID int64) bool {
	for _, a := range l.attempts {
		if a.WithdrawalID == withdrawalID && a.Status == model.PaymentAttemptInFlight {
			return true
		}
	}
	return false
}

func (l *MemoryLedger) pendingEscrowFor(targetID int64) *model.Escrow {
	for _, e := range l.escrows {
		if e.TargetID == targetID && e.Status == model.EscrowStatusPending {
			return e
		}
	}
	return nil
}

type memoryWithdrawals struct{ l *MemoryLedger }

func (r memoryWithdrawals) Reserve(ctx context.Context, p repository.ReserveParams) (*model.Withdrawal, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	available, ok := l.balances[p.UserID]
	if !ok || available.LessThan(p.Amount) {
		return nil, domainErrors.ErrInsufficientBalance
	}
	if p.DailyLimit != nil {
		withdrawn := l.settlementBound(p.UserID, p.DailyLimit.Since)
		if check := model.EvaluateDailyLimit(p.DailyLimit.Cap, withdrawn, p.Amount); check.Exceeded {
			return nil, &domainErrors.DailyLimitExceededError{Check: check}
		}
	}
	l.balances[p.UserID] = available.Sub(p.Amount)

	l.nextWithdrawal++
	w := &model.Withdrawal{
		ID:        l.nextWithdrawal,
		UserID:    p.UserID,
		Amount:    p.Amount,
		Fee:       p.Fee,
		ToAddress: p.ToAddress,
		Status:    model.WithdrawalStatusPending,
		CreatedAt: l.now(),
	}
	l.withdrawals[w.ID] = w
	out := *w
	return &out, nil
}

func (r memoryWithdrawals) Restore(ctx context.Context, p repository.RestoreParams) (*model.Withdrawal, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	w, ok := l.withdrawals[p.WithdrawalID]
	if !ok || (p.UserID != 0 && w.UserID != p.UserID) {
		return nil, domainErrors.ErrNotFound
	}
	if !statusIn(w.Status, p.From) || l.inFlight(w.ID) {
		return nil, domainErrors.ErrConcurrentStateChange
	}

	now := l.now()
	w.Status = p.To
	w.DecidedAt = &now
	w.DecidedByID = p.ActorID
	l.balances[w.UserID] = l.balances[w.UserID].Add(w.Amount)
	if e := l.pendingEscrowFor(w.ID); e != nil {
		e.Status = model.EscrowStatusRejected
	}

	out := *w
	return &out, nil
}

func (r memoryWithdrawals) Available(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if r.l.Err != nil {
		return decimal.Zero, r.l.Err
	}
	return r.l.Balance(userID), nil
}

func (r memoryWithdrawals) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	if r.l.Err != nil {
		return nil, r.l.Err
	}
	w, ok := r.l.Withdrawal(id)
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &w, nil
}

func (r memoryWithdrawals) ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	var out []model.Withdrawal
	for _, w := range l.withdrawals {
		if w.Status.IsOpen() {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memoryWithdrawals) SumSettlementBound(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return decimal.Zero, l.Err
	}

	return l.settlementBound(userID, since), nil
}

func (l *MemoryLedger) settlementBound(userID int64, since time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, w := range l.withdrawals {
		if w.UserID == userID && !w.CreatedAt.Before(since) && statusIn(w.Status, model.SettlementBoundStatuses()) {
			total = total.Add(w.Amount)
		}
	}
	return total
}

func (r memoryWithdrawals) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Withdrawal, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	var out []model.Withdrawal
	for _, w := range l.withdrawals {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memoryWithdrawals) Stats(ctx context.Context, topUsers int) (model.WithdrawalStats, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return model.WithdrawalStats{}, l.Err
	}

	byStatus := map[model.WithdrawalStatus]*model.StatusTotal{}
	byUser := map[int64]*model.UserTotal{}
	for _, w := range l.withdrawals {
		st, ok := byStatus[w.Status]
		if !ok {
			st = &model.StatusTotal{Status: w.Status, Amount: decimal.Zero}
			byStatus[w.Status] = st
		}
		st.Count++
		st.Amount = st.Amount.Add(w.Amount)

		if w.Status != model.WithdrawalStatusApproved {
			continue
		}
		ut, ok := byUser[w.UserID]
		if !ok {
			ut = &model.UserTotal{UserID: w.UserID, Amount: decimal.Zero}
			byUser[w.UserID] = ut
		}
		ut.Count++
		ut.Amount = ut.Amount.Add(w.Amount)
	}

	var stats model.WithdrawalStats
	for _, st := range byStatus {
		stats.ByStatus = append(stats.ByStatus, *st)
	}
	sort.Slice(stats.ByStatus, func(i, j int) bool { return stats.ByStatus[i].Status < stats.ByStatus[j].Status })
	for _, ut := range byUser {
		stats.TopUsers = append(stats.TopUsers, *ut)
	}
	sort.Slice(stats.TopUsers, func(i, j int) bool {
		a, b := stats.TopUsers[i], stats.TopUsers[j]
		if a.Amount.Equal(b.Amount) {
			return a.UserID < b.UserID
		}
		return a.Amount.GreaterThan(b.Amount)
	})
	if len(stats.TopUsers) > topUsers {
		stats.TopUsers = stats.TopUsers[:topUsers]
	}
	return stats, nil
}

type memoryEscrows struct{ l *MemoryLedger }

func (r memoryEscrows) Create(ctx context.Context, e model.Escrow) (*model.Escrow, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	w, ok := l.withdrawals[e.TargetID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if l.pendingEscrowFor(e.TargetID) != nil {
		return nil, domainErrors.ErrEscrowConflict
	}
	if w.Status != model.WithdrawalStatusPending {
		return nil, domainErrors.ErrConcurrentStateChange
	}

	l.nextEscrow++
	e.ID = l.nextEscrow
	e.Status = model.EscrowStatusPending
	l.escrows[e.ID] = &e
	w.Status = model.WithdrawalStatusEscrowPending

	out := e
	return &out, nil
}

func (r memoryEscrows) GetByID(ctx context.Context, id int64) (*model.Escrow, error) {
	if r.l.Err != nil {
		return nil, r.l.Err
	}
	e, ok := r.l.Escrow(id)
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &e, nil
}

func (r memoryEscrows) GetPendingByTarget(ctx context.Context, targetID int64) (*model.Escrow, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	e := l.pendingEscrowFor(targetID)
	if e == nil {
		return nil, domainErrors.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (r memoryEscrows) Expire(ctx context.Context, id int64) (*model.Escrow, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	e, ok := l.escrows[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if e.Status != model.EscrowStatusPending || l.inFlight(e.TargetID) {
		return nil, domainErrors.ErrConcurrentStateChange
	}
	e.Status = model.EscrowStatusExpired
	if w, ok := l.withdrawals[e.TargetID]; ok && w.Status == model.WithdrawalStatusEscrowPending {
		w.Status = model.WithdrawalStatusPending
	}

	out := *e
	return &out, nil
}

type memoryAttempts struct{ l *MemoryLedger }

func (r memoryAttempts) Claim(ctx context.Context, a model.PaymentAttempt, expect model.WithdrawalStatus) (*model.PaymentAttempt, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	w, ok := l.withdrawals[a.WithdrawalID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if w.Status != expect || l.inFlight(w.ID) {
		return nil, domainErrors.ErrConcurrentStateChange
	}
	if a.EscrowID != nil {
		e, ok := l.escrows[*a.EscrowID]
		if !ok || e.Status != model.EscrowStatusPending || e.TargetID != w.ID {
			return nil, domainErrors.ErrConcurrentStateChange
		}
		if e.ExpiredAt(l.now()) {
			return nil, domainErrors.ErrEscrowExpired
		}
	}

	now := l.now()
	a.Status = model.PaymentAttemptInFlight
	a.CreatedAt = now
	a.UpdatedAt = now
	l.attempts[a.Reference] = &a
	l.attemptOrder = append(l.attemptOrder, a.Reference)

	out := a
	return &out, nil
}

func (r memoryAttempts) Settle(ctx context.Context, reference, txHash string) (*model.Withdrawal, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	a, ok := l.attempts[reference]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	w := l.withdrawals[a.WithdrawalID]
	if a.Status == model.PaymentAttemptSucceeded {
		out := *w
		return &out, nil
	}
	if a.Status != model.PaymentAttemptInFlight || !w.Status.IsOpen() {
		return nil, domainErrors.ErrConcurrentStateChange
	}

	now := l.now()
	hash := txHash
	adminID := a.AdminID
	w.Status = model.WithdrawalStatusApproved
	w.TxHash = &hash
	w.DecidedAt = &now
	w.DecidedByID = &adminID
	if a.EscrowID != nil {
		if e, ok := l.escrows[*a.EscrowID]; ok && e.Status == model.EscrowStatusPending {
			e.Status = model.EscrowStatusApproved
			e.ApproverID = &adminID
		}
	}
	a.Status = model.PaymentAttemptSucceeded
	a.TxHash = &hash
	a.UpdatedAt = now

	out := *w
	return &out, nil
}

func (r memoryAttempts) MarkFailed(ctx context.Context, reference, reason string) error {
	return r.finish(reference, model.PaymentAttemptFailed, reason)
}

func (r memoryAttempts) MarkAbandoned(ctx context.Context, reference, reason string) error {
	return r.finish(reference, model.PaymentAttemptAbandoned, reason)
}

func (r memoryAttempts) finish(reference string, status model.PaymentAttemptStatus, reason string) error {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}

	a, ok := l.attempts[reference]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if a.Status != model.PaymentAttemptInFlight {
		return domainErrors.ErrConcurrentStateChange
	}
	a.Status = status
	a.Error = &reason
	a.UpdatedAt = l.now()
	return nil
}

func (r memoryAttempts) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	var out []model.PaymentAttempt
	for _, a := range l.attempts {
		if a.Status == model.PaymentAttemptInFlight && a.CreatedAt.Before(olderThan) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func statusIn(status model.WithdrawalStatus, set []model.WithdrawalStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
