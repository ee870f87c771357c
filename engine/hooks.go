package engine

import (
	"sync"

	"github.com/quasaranchor/anchor"
)

// HookEvent is a named lifecycle event the transfer engine emits
// internally, distinct from the operator-supplied SEP-24/SEP-6 response
// hooks declared in SEP24Hooks/SEP6Hooks (spec.md §6.4).
type HookEvent string

const (
	HookDepositInitiated      HookEvent = "deposit:initiated"
	HookWithdrawalInitiated   HookEvent = "withdrawal:initiated"
	HookInteractiveCompleted  HookEvent = "interactive:completed"
	HookTransferStatusChanged HookEvent = "transfer:status_changed"
)

// HookRegistry is an observer-pattern event bus transfers are broadcast
// on, for operator-side telemetry or auditing that sits outside the
// request/response path. Handlers run sequentially in registration
// order and are not expected to mutate the transfer.
type HookRegistry struct {
	handlers map[HookEvent][]func(*anchor.Transfer)
	mu       sync.RWMutex
}

// NewHookRegistry creates an empty lifecycle event bus.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{handlers: make(map[HookEvent][]func(*anchor.Transfer))}
}

// On registers a handler for event.
func (r *HookRegistry) On(event HookEvent, handler func(*anchor.Transfer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], handler)
}

// Trigger runs event's handlers, in registration order, against
// transfer. A panicking handler propagates and halts the remainder.
func (r *HookRegistry) Trigger(event HookEvent, transfer *anchor.Transfer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, handler := range r.handlers[event] {
		handler(transfer)
	}
}
