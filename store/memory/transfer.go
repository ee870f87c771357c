package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quasaranchor/anchor"
	anchorerrors "github.com/quasaranchor/anchor/errors"
)

// TransferStore is the in-memory default anchor.TransferStore. It keeps
// the primary map plus three secondary indices (interactive token,
// on-chain tx id, external tx id) and guards CompleteInteractive's
// token-consume-and-transition under the same mutex as every other
// mutation, so the naive "read then write" replay race spec.md §5
// disallows cannot occur here.
type TransferStore struct {
	mu           sync.Mutex
	byID         map[string]*anchor.Transfer
	byToken      map[string]string // interactive token -> transfer id
	byOnChainID  map[string]string
	byExternalID map[string]string
}

// NewTransferStore creates an empty in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		byID:         make(map[string]*anchor.Transfer),
		byToken:      make(map[string]string),
		byOnChainID:  make(map[string]string),
		byExternalID: make(map[string]string),
	}
}

func clone(t *anchor.Transfer) *anchor.Transfer {
	cp := *t
	if t.Interactive != nil {
		tok := *t.Interactive
		cp.Interactive = &tok
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Create persists a new transfer, indexing its interactive token if
// present (invariant I1: a token maps to at most one transfer id).
func (s *TransferStore) Create(_ context.Context, t *anchor.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return anchorerrors.Conflict("store", "transfer id already exists", nil)
	}
	if t.Interactive != nil {
		if _, exists := s.byToken[t.Interactive.Value]; exists {
			return anchorerrors.Conflict("store", "interactive token already in use", nil)
		}
	}

	stored := clone(t)
	s.byID[stored.ID] = stored
	if stored.Interactive != nil {
		s.byToken[stored.Interactive.Value] = stored.ID
	}
	if stored.OnChainTxID != "" {
		s.byOnChainID[stored.OnChainTxID] = stored.ID
	}
	if stored.ExternalTxID != "" {
		s.byExternalID[stored.ExternalTxID] = stored.ID
	}
	return nil
}

func (s *TransferStore) GetByID(_ context.Context, id string) (*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, anchorerrors.NotFound("store", "transfer not found", nil)
	}
	return clone(t), nil
}

func (s *TransferStore) GetByInteractiveToken(_ context.Context, token string) (*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, anchorerrors.NotFound("store", "interactive token not found", nil)
	}
	return clone(s.byID[id]), nil
}

func (s *TransferStore) GetByOnChainID(_ context.Context, txID string) (*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOnChainID[txID]
	if !ok {
		return nil, nil
	}
	return clone(s.byID[id]), nil
}

func (s *TransferStore) GetByExternalID(_ context.Context, extID string) (*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternalID[extID]
	if !ok {
		return nil, nil
	}
	return clone(s.byID[id]), nil
}

// ListByAccount returns account's transfers sorted by CreatedAt
// descending, applying filters in order (asset code, kind,
// not-older-than) before limit, per spec.md §4.4. A non-positive limit
// is ignored (boundary behavior in spec.md §8).
func (s *TransferStore) ListByAccount(_ context.Context, account string, filters anchor.TransferFilters) ([]*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*anchor.Transfer
	for _, t := range s.byID {
		if t.Account != account {
			continue
		}
		if filters.AssetCode != "" && !sameAssetCode(t.AssetCode, filters.AssetCode) {
			continue
		}
		if filters.Kind != "" && t.Kind != filters.Kind {
			continue
		}
		if !filters.NotOlderThan.IsZero() && t.CreatedAt.Before(filters.NotOlderThan) {
			continue
		}
		matched = append(matched, clone(t))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}
	return matched, nil
}

func sameAssetCode(a, b string) bool {
	return equalFold(a, b)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Update applies update's non-nil fields, always refreshing UpdatedAt
// and preserving ID, and re-indexes the on-chain/external tx id
// secondary indices when those fields change.
func (s *TransferStore) Update(_ context.Context, id string, update *anchor.TransferUpdate) (*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, anchorerrors.NotFound("store", "transfer not found", nil)
	}
	s.applyUpdate(t, update)
	return clone(t), nil
}

func (s *TransferStore) applyUpdate(t *anchor.Transfer, update *anchor.TransferUpdate) {
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Amount != nil {
		t.Amount = *update.Amount
	}
	if update.OnChainTxID != nil {
		if t.OnChainTxID != "" {
			delete(s.byOnChainID, t.OnChainTxID)
		}
		t.OnChainTxID = *update.OnChainTxID
		if t.OnChainTxID != "" {
			s.byOnChainID[t.OnChainTxID] = t.ID
		}
	}
	if update.ExternalTxID != nil {
		if t.ExternalTxID != "" {
			delete(s.byExternalID, t.ExternalTxID)
		}
		t.ExternalTxID = *update.ExternalTxID
		if t.ExternalTxID != "" {
			s.byExternalID[t.ExternalTxID] = t.ID
		}
	}
	if update.StatusMsg != nil {
		t.StatusMsg = *update.StatusMsg
	}
	if update.Metadata != nil {
		t.Metadata = update.Metadata
	}
	if update.CompletedAt != nil {
		t.CompletedAt = *update.CompletedAt
	}
	t.UpdatedAt = time.Now()
}

func (s *TransferStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return anchorerrors.NotFound("store", "transfer not found", nil)
	}
	delete(s.byID, id)
	if t.Interactive != nil {
		delete(s.byToken, t.Interactive.Value)
	}
	if t.OnChainTxID != "" {
		delete(s.byOnChainID, t.OnChainTxID)
	}
	if t.ExternalTxID != "" {
		delete(s.byExternalID, t.ExternalTxID)
	}
	return nil
}

// CompleteInteractive is the single storage operation spec.md §9 ("Consume-
// or-fail on interactive token") requires in place of the naive
// read-check-write pattern: it validates the token against id under the
// store's one mutex, marks it consumed, and advances status to next, all
// as one atomic step. A second call with the same (id, token) pair fails
// (invariant I5, P6).
func (s *TransferStore) CompleteInteractive(_ context.Context, id, token string, now time.Time, next anchor.TransferStatus) (*anchor.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, anchorerrors.NotFound("store", "transfer not found", nil)
	}
	if t.Interactive == nil {
		return nil, anchorerrors.BadRequest("store", "transfer is not interactive", nil)
	}
	if !t.Interactive.Valid(now, token) {
		return nil, anchorerrors.BadRequest("store", "interactive token invalid, consumed, or expired", nil)
	}

	t.Interactive.Consumed = true
	if t.Status == anchor.StatusIncomplete {
		t.Status = next
	}
	t.UpdatedAt = now
	if t.Status.Terminal() {
		completed := now
		t.CompletedAt = &completed
	}
	return clone(t), nil
}

var _ anchor.TransferStore = (*TransferStore)(nil)
