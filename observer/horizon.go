package observer

import (
	"context"
	"sync"
	"time"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/base"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"
	"go.uber.org/zap"

	anchorerrors "github.com/quasaranchor/anchor/errors"
)

// HorizonObserver implements Observer by streaming payment operations from
// Horizon. It provides cursor management for resumability, reconnection
// with exponential backoff, and filtering capabilities — the transport
// the settlement reporter (AutoMatchPayments) rides on to report
// settlement back into the transfer engine, an out-of-scope pipeline per
// spec.md §1/§9 "on-chain settlement ... an external pipeline reports
// back".
type HorizonObserver struct {
	horizonURL string
	client     *horizonclient.Client
	handlers   []handlerEntry
	cursor     string
	log        *zap.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
	running  bool
}

// ObserverOption configures a HorizonObserver.
type ObserverOption func(*HorizonObserver)

// WithCursor sets the starting cursor for streaming. Use "now" to start
// from the current ledger, or a specific paging_token to resume.
func WithCursor(cursor string) ObserverOption {
	return func(h *HorizonObserver) { h.cursor = cursor }
}

// WithReconnectBackoff overrides the default 1s/60s exponential backoff
// bounds used when the stream drops (SettlementConfig.ReconnectBackoff).
func WithReconnectBackoff(initial, max time.Duration) ObserverOption {
	return func(h *HorizonObserver) {
		h.initialBackoff = initial
		h.maxBackoff = max
	}
}

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(log *zap.Logger) ObserverOption {
	return func(h *HorizonObserver) { h.log = log }
}

// NewHorizonObserver creates a HorizonObserver streaming from horizonURL,
// defaulting to cursor "now".
func NewHorizonObserver(horizonURL string, opts ...ObserverOption) *HorizonObserver {
	obs := &HorizonObserver{
		horizonURL:     horizonURL,
		client:         &horizonclient.Client{HorizonURL: horizonURL},
		cursor:         "now",
		log:            zap.NewNop(),
		initialBackoff: 1 * time.Second,
		maxBackoff:     60 * time.Second,
		stopChan:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

func (h *HorizonObserver) OnPayment(handler PaymentHandler, filters ...PaymentFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handlerEntry{handler: handler, filters: filters})
}

// Start streams payment operations from Horizon until ctx is cancelled
// or Stop is called, reconnecting with exponential backoff on stream
// failures.
func (h *HorizonObserver) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return anchorerrors.Conflict("observer", "observer already running", nil)
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	backoff := h.initialBackoff

	for {
		select {
		case <-h.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		h.mu.RLock()
		currentCursor := h.cursor
		h.mu.RUnlock()

		opRequest := horizonclient.OperationRequest{Cursor: currentCursor, Order: horizonclient.OrderAsc, Join: "transactions"}

		err := h.client.StreamPayments(ctx, opRequest, func(op operations.Operation) {
			backoff = h.initialBackoff

			evt := h.convertToPaymentEvent(op)
			if evt == nil {
				return
			}

			h.processEvent(*evt)

			h.mu.Lock()
			h.cursor = evt.Cursor
			h.mu.Unlock()
		})

		if err == nil {
			return nil
		}

		select {
		case <-h.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		h.log.Warn("horizon payment stream disconnected, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-h.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > h.maxBackoff {
			backoff = h.maxBackoff
		}
	}
}

// Stop gracefully stops streaming. Safe to call more than once.
func (h *HorizonObserver) Stop() error {
	h.stopOnce.Do(func() { close(h.stopChan) })
	return nil
}

func (h *HorizonObserver) convertToPaymentEvent(op operations.Operation) *PaymentEvent {
	b := op.GetBase()
	evt := &PaymentEvent{ID: b.ID, Cursor: b.PT, TransactionHash: b.TransactionHash}

	// The operation itself carries no memo; it lives on the enclosing
	// transaction, which StreamPayments only embeds because Start sets
	// Join: "transactions" on the OperationRequest.
	if b.Transaction != nil {
		evt.Memo = b.Transaction.Memo
	}

	switch op.GetType() {
	case "payment":
		payment, ok := op.(operations.Payment)
		if !ok {
			return nil
		}
		evt.From = payment.From
		evt.To = payment.To
		evt.Amount = payment.Amount
		evt.Asset = h.formatAsset(payment.Asset)

	case "create_account":
		create, ok := op.(operations.CreateAccount)
		if !ok {
			return nil
		}
		evt.From = create.Funder
		evt.To = create.Account
		evt.Amount = create.StartingBalance
		evt.Asset = "native"

	case "account_merge":
		merge, ok := op.(operations.AccountMerge)
		if !ok {
			return nil
		}
		evt.From = merge.Account
		evt.To = merge.Into
		evt.Asset = "native"
		evt.Amount = "0"

	default:
		return nil
	}

	return evt
}

func (h *HorizonObserver) formatAsset(asset base.Asset) string {
	if asset.Type == "native" {
		return "native"
	}
	return asset.Code + ":" + asset.Issuer
}

func (h *HorizonObserver) processEvent(evt PaymentEvent) {
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()

	for _, entry := range handlers {
		passes := true
		for _, filter := range entry.filters {
			if !filter(evt) {
				passes = false
				break
			}
		}
		if !passes {
			continue
		}
		if err := entry.handler(evt); err != nil {
			h.log.Warn("settlement handler failed", zap.String("payment_id", evt.ID), zap.Error(err))
		}
	}
}

var _ Observer = (*HorizonObserver)(nil)
