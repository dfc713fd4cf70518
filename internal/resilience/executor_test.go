package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
		CallTimeout:     time.Second,
		MaxConcurrency:  4,
	}
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	e := NewExecutor(fastPolicy(), nil)
	calls := 0

	err := e.Do(context.Background(), domain.KindEmbedding, "embed", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.NewTransientError(domain.KindEmbedding, "embed", errors.New("503 service unavailable"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecutorStopsOnPermanentFailure(t *testing.T) {
	e := NewExecutor(fastPolicy(), nil)
	calls := 0

	err := e.Do(context.Background(), domain.KindEmbedding, "embed", func(ctx context.Context) error {
		calls++
		return domain.NewError(domain.KindEmbedding, "embed", errors.New("401 unauthorized"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, domain.IsKind(err, domain.KindEmbedding))
	assert.False(t, domain.IsTransient(err))
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	e := NewExecutor(fastPolicy(), nil)
	calls := 0
	cause := errors.New("rate limited")

	err := e.Do(context.Background(), domain.KindGeneration, "generate", func(ctx context.Context) error {
		calls++
		return domain.NewTransientError(domain.KindGeneration, "generate", cause)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, domain.IsKind(err, domain.KindGeneration))
	assert.False(t, domain.IsTransient(err), "exhausted retries are reported as final")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestExecutorWrapsPlainErrorsWithKind(t *testing.T) {
	e := NewExecutor(fastPolicy(), nil)

	err := e.Do(context.Background(), domain.KindGeneration, "generate", func(ctx context.Context) error {
		return errors.New("boom")
	})

	assert.True(t, domain.IsKind(err, domain.KindGeneration))
}

func TestExecutorTimeoutIsTransient(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 2
	p.CallTimeout = 10 * time.Millisecond
	e := NewExecutor(p, nil)
	calls := 0

	err := e.Do(context.Background(), domain.KindEmbedding, "embed", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, domain.IsKind(err, domain.KindEmbedding))
}

func TestExecutorHonorsCancellation(t *testing.T) {
	e := NewExecutor(fastPolicy(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := e.Do(ctx, domain.KindEmbedding, "embed", func(ctx context.Context) error {
		calls++
		cancel()
		return domain.NewTransientError(domain.KindEmbedding, "embed", errors.New("503"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutorBoundsConcurrency(t *testing.T) {
	p := fastPolicy()
	p.MaxConcurrency = 2
	e := NewExecutor(p, nil)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Do(context.Background(), domain.KindEmbedding, "embed", func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive, int32(2))
	assert.Greater(t, maxActive, int32(0))
}

func TestExecutorRateLimit(t *testing.T) {
	p := fastPolicy()
	p.RequestsPerSecond = 50
	p.Burst = 1
	e := NewExecutor(p, nil)

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, e.Do(context.Background(), domain.KindEmbedding, "embed", func(ctx context.Context) error { return nil }))
	}

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
