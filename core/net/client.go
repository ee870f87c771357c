// Package net provides the bounded, circuit-breaker-guarded wrapper
// around outbound chain lookups the auth issuer performs during
// challenge verification (spec.md §5: "The chain-lookup call in auth
// verification has a bounded timeout... exceeding it surfaces
// invalid_challenge with a retryable hint").
package net

import (
	"context"
	"sync"
	"time"

	"github.com/quasaranchor/anchor"
	anchorerrors "github.com/quasaranchor/anchor/errors"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultFailureLimit = 5
	defaultResetTimeout = 60 * time.Second
)

// BoundedFetcher wraps an anchor.AccountFetcher with a per-call timeout
// and a circuit breaker, so a slow or persistently failing Horizon
// endpoint degrades to a retryable invalid_challenge instead of hanging
// the auth-verify request.
type BoundedFetcher struct {
	inner   anchor.AccountFetcher
	timeout time.Duration
	breaker *circuitBreaker
}

// Option configures a BoundedFetcher.
type Option func(*BoundedFetcher)

// WithTimeout overrides the default 5s per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *BoundedFetcher) { f.timeout = d }
}

// NewBoundedFetcher wraps inner with the default timeout and circuit
// breaker, applying any options.
func NewBoundedFetcher(inner anchor.AccountFetcher, opts ...Option) *BoundedFetcher {
	f := &BoundedFetcher{
		inner:   inner,
		timeout: defaultTimeout,
		breaker: &circuitBreaker{failureLimit: defaultFailureLimit, resetTimeout: defaultResetTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchSigners satisfies anchor.AccountFetcher, translating a timeout or
// an open circuit into a retryable invalid_challenge error rather than
// the raw transport failure.
func (f *BoundedFetcher) FetchSigners(ctx context.Context, accountID string) ([]anchor.AccountSigner, anchor.AccountThresholds, error) {
	if !f.breaker.allowRequest() {
		return nil, anchor.AccountThresholds{}, anchorerrors.InvalidChallengeRetryable(
			"chainclient", "account lookup circuit breaker open", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type result struct {
		signers    []anchor.AccountSigner
		thresholds anchor.AccountThresholds
		err        error
	}
	resultCh := make(chan result, 1)
	go func() {
		signers, thresholds, err := f.inner.FetchSigners(ctx, accountID)
		resultCh <- result{signers, thresholds, err}
	}()

	select {
	case <-ctx.Done():
		f.breaker.recordFailure()
		return nil, anchor.AccountThresholds{}, anchorerrors.InvalidChallengeRetryable(
			"chainclient", "account lookup timed out", ctx.Err())
	case r := <-resultCh:
		if r.err != nil {
			f.breaker.recordFailure()
			return nil, anchor.AccountThresholds{}, r.err
		}
		f.breaker.recordSuccess()
		return r.signers, r.thresholds, nil
	}
}

type circuitBreaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailTime time.Time
	failureLimit int
	resetTimeout time.Duration
	open         bool
}

func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	if !cb.open {
		return true
	}
	return time.Since(cb.lastFailTime) > cb.resetTimeout
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailTime = time.Now()
	if cb.failures >= cb.failureLimit {
		cb.open = true
	}
}

var _ anchor.AccountFetcher = (*BoundedFetcher)(nil)
