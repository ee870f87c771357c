// Package memory provides the in-memory default implementations of the
// storage ports: the nonce registry (replay protection for SEP-10
// challenges) and the transfer store (spec.md §4.4).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quasaranchor/anchor"
	anchorerrors "github.com/quasaranchor/anchor/errors"
)

type nonceEntry struct {
	ExpiresAt time.Time
	Consumed  bool
}

// NonceStore is an in-memory anchor.NonceStore whose expired entries are
// removed only by an active sweeper goroutine (spec.md §4.2.1, §5);
// Consume and Has reject expired entries without deleting them.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]nonceEntry

	ttl    time.Duration
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewNonceStore creates an in-memory nonce store and starts its sweeper,
// which removes entries older than ttl every ttl interval (spec.md §5
// "The nonce sweeper wakes every TTL interval"). Call Stop to cancel it.
func NewNonceStore(ttl time.Duration) *NonceStore {
	s := &NonceStore{
		nonces: make(map[string]nonceEntry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *NonceStore) sweepLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *NonceStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.nonces {
		if now.After(entry.ExpiresAt) {
			delete(s.nonces, key)
		}
	}
}

// Stop cancels the sweeper and blocks until it has exited, satisfying
// the "cancellable on shutdown" requirement of spec.md §4.2.1.
func (s *NonceStore) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Add records nonce as issued. It is idempotent-hostile: adding an
// already-present nonce fails (spec.md §4.2.1).
func (s *NonceStore) Add(_ context.Context, nonce string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nonces[nonce]; exists {
		return anchorerrors.Conflict("store", "nonce already registered", nil)
	}
	s.nonces[nonce] = nonceEntry{ExpiresAt: expiresAt}
	return nil
}

// Has reports whether nonce is currently registered and not expired.
func (s *NonceStore) Has(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.nonces[nonce]
	if !exists {
		return false, nil
	}
	return time.Now().Before(entry.ExpiresAt), nil
}

// Consume marks nonce as used, returning true iff it was present, not
// expired, and not already consumed. Expired entries are left for the
// sweeper to remove.
func (s *NonceStore) Consume(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, exists := s.nonces[nonce]
	if !exists {
		return false, nil
	}
	if entry.Consumed || now.After(entry.ExpiresAt) {
		return false, nil
	}
	entry.Consumed = true
	s.nonces[nonce] = entry
	return true, nil
}

var _ anchor.NonceStore = (*NonceStore)(nil)
