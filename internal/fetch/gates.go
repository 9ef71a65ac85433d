package fetch

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ConcurrencyGate bounds the number of in-flight fetches. A slot must be
// released when the fetch completes, regardless of outcome.
type ConcurrencyGate struct {
	sem *semaphore.Weighted
}

func NewConcurrencyGate(capacity int) *ConcurrencyGate {
	if capacity <= 0 {
		capacity = 5
	}
	return &ConcurrencyGate{sem: semaphore.NewWeighted(int64(capacity))}
}

func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *ConcurrencyGate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}

func (g *ConcurrencyGate) Release() {
	g.sem.Release(1)
}

// RateGate is a token bucket over requests per minute. Tokens regenerate by
// time alone; a consumed token is never handed back.
type RateGate struct {
	limiter *rate.Limiter
}

func NewRateGate(perMinute int) *RateGate {
	if perMinute <= 0 {
		perMinute = 100
	}
	return &RateGate{limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)}
}

func (g *RateGate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

func (g *RateGate) Allow() bool {
	return g.limiter.Allow()
}

// Gates couples the two independent gates a fetch must hold before it may
// proceed. Scoped per job, not globally.
type Gates struct {
	Concurrency *ConcurrencyGate
	Rate        *RateGate
}

func NewGates(maxConcurrency, perMinute int) *Gates {
	return &Gates{
		Concurrency: NewConcurrencyGate(maxConcurrency),
		Rate:        NewRateGate(perMinute),
	}
}

// Enter blocks until the caller holds both a concurrency slot and a rate
// token. The returned release func frees the slot only; the token is spent.
func (g *Gates) Enter(ctx context.Context) (func(), error) {
	if err := g.Concurrency.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := g.Rate.Wait(ctx); err != nil {
		g.Concurrency.Release()
		return nil, err
	}
	return g.Concurrency.Release, nil
}
