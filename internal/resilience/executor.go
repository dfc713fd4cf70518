// Package resilience bounds calls to external services: a concurrency cap,
// an optional request rate, a per-attempt timeout and exponential-backoff retries.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/justineyoo1/PDFResearchAssistant/config"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
)

// Policy configures an Executor.
type Policy struct {
	MaxAttempts       int
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	Multiplier        float64
	CallTimeout       time.Duration
	MaxConcurrency    int
	RequestsPerSecond float64
	Burst             int
}

// PolicyFromConfig converts the retry section of the configuration.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:       cfg.MaxAttempts,
		InitialInterval:   cfg.InitialInterval,
		MaxInterval:       cfg.MaxInterval,
		Multiplier:        cfg.Multiplier,
		CallTimeout:       cfg.CallTimeout,
		MaxConcurrency:    cfg.MaxConcurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}
}

// Executor runs operations under a Policy. It is safe for concurrent use.
type Executor struct {
	policy  Policy
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewExecutor(policy Policy, logger *slog.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 500 * time.Millisecond
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	if policy.MaxConcurrency < 1 {
		policy.MaxConcurrency = 1
	}

	e := &Executor{
		policy: policy,
		sem:    semaphore.NewWeighted(int64(policy.MaxConcurrency)),
		log:    logging.OrDiscard(logger),
	}
	if policy.RequestsPerSecond > 0 {
		burst := policy.Burst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), burst)
	}
	return e
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.policy.InitialInterval
	b.MaxInterval = e.policy.MaxInterval
	b.Multiplier = e.policy.Multiplier
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.policy.MaxAttempts-1)), ctx)
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// Only errors marked transient (see domain.IsTransient) and per-attempt
// timeouts are retried. Every returned error carries kind.
func (e *Executor) Do(ctx context.Context, kind domain.ErrorKind, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	operation := func() error {
		attempts++
		err := e.attempt(ctx, kind, op, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		e.log.Warn("retrying after transient failure",
			slog.String("op", op),
			slog.Int("attempt", attempts),
			slog.Duration("backoff", wait),
			slog.Any("error", err))
	}

	err := backoff.RetryNotify(operation, e.newBackOff(ctx), notify)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return domain.NewError(kind, op, ctx.Err())
	}
	if domain.IsTransient(err) {
		return domain.NewError(kind, op, fmt.Errorf("giving up after %d attempts: %w", attempts, err))
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == kind {
		return err
	}
	return domain.NewError(kind, op, err)
}

func (e *Executor) attempt(ctx context.Context, kind domain.ErrorKind, op string, fn func(ctx context.Context) error) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	callCtx := ctx
	if e.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.policy.CallTimeout)
		defer cancel()
	}

	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return domain.NewTransientError(kind, op, fmt.Errorf("call timed out after %s: %w", e.policy.CallTimeout, err))
	}
	return err
}
