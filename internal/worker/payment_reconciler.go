package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/withdrawgate/internal/adapter/payment"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// SettlementFacade exposes the subset of application functionality required by the worker.
type SettlementFacade interface {
	StaleAttempts(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error)
	Reconcile(ctx context.Context, attempt model.PaymentAttempt) (*model.Withdrawal, error)
}

// PaymentReconciler polls for payments stuck in flight and resolves them
// against the payment rail concurrently.
type PaymentReconciler struct {
	facade       SettlementFacade
	pollInterval time.Duration
	staleAfter   time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger
	now          func() time.Time

	jobs    chan model.PaymentAttempt
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewPaymentReconciler constructs the reconciliation worker pool.
func NewPaymentReconciler(facade SettlementFacade, pollInterval, staleAfter time.Duration, batchSize, workers int, logger *slog.Logger) *PaymentReconciler {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &PaymentReconciler{
		facade:       facade,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		now:          time.Now,
		jobs:         make(chan model.PaymentAttempt, batchSize*workers),
		pending:      make(map[string]struct{}),
	}
}

// Start launches background processing.
func (p *PaymentReconciler) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *PaymentReconciler) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *PaymentReconciler) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *PaymentReconciler) fetchAndDispatch(ctx context.Context) {
	attempts, err := p.facade.StaleAttempts(ctx, p.now().Add(-p.staleAfter), p.batchSize)
	if err != nil {
		p.logger.Error("fetch stale payment attempts failed", slog.String("error", err.Error()))
		return
	}
	for _, attempt := range attempts {
		// A sweep can see an attempt that a worker is still resolving.
		if !p.claim(attempt.Reference) {
			continue
		}
		select {
		case <-ctx.Done():
			p.release(attempt.Reference)
			return
		case p.jobs <- attempt:
		}
	}
}

func (p *PaymentReconciler) claim(reference string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.pending[reference]; busy {
		return false
	}
	p.pending[reference] = struct{}{}
	return true
}

func (p *PaymentReconciler) release(reference string) {
	p.mu.Lock()
	delete(p.pending, reference)
	p.mu.Unlock()
}

func (p *PaymentReconciler) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case attempt, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleAttempt(ctx, attempt)
			p.release(attempt.Reference)
		}
	}
}

func (p *PaymentReconciler) handleAttempt(ctx context.Context, attempt model.PaymentAttempt) {
	log := p.logger.With(
		slog.String("reference", attempt.Reference),
		slog.Int64("withdrawal_id", attempt.WithdrawalID),
	)

	w, err := p.facade.Reconcile(ctx, attempt)
	if err != nil {
		var limited payment.TooManyRequestsError
		switch {
		case errors.As(err, &limited):
			log.Warn("payment rail rate limited", slog.Duration("retry_after", limited.RetryAfter))
			sleep(ctx, limited.RetryAfter)
		case errors.Is(err, payment.ErrPaymentPending):
			log.Debug("payment still pending on rail")
		default:
			log.Error("payment reconciliation failed", slog.String("error", err.Error()))
		}
		return
	}

	if w == nil {
		log.Warn("stale payment attempt abandoned")
		return
	}
	log.Info("stale payment attempt settled", slog.String("status", string(w.Status)))
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
