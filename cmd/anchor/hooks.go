package main

import (
	"sync"

	"go.uber.org/zap"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/engine"
	"github.com/quasaranchor/anchor/internal/metrics"
)

// registerLifecycleHooks subscribes the operator-side telemetry the
// HookRegistry doc comment describes: structured log lines for every
// lifecycle event, and TransfersByStatus gauge bookkeeping that tracks
// each transfer's current status so the gauge reflects live counts
// rather than a running total.
func registerLifecycleHooks(hooks *engine.HookRegistry, log *zap.Logger) {
	var mu sync.Mutex
	lastStatus := make(map[string]anchor.TransferStatus)

	trackStatus := func(t *anchor.Transfer) {
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := lastStatus[t.ID]; ok {
			metrics.TransfersByStatus.WithLabelValues(string(t.Kind), string(prev)).Dec()
		}
		metrics.TransfersByStatus.WithLabelValues(string(t.Kind), string(t.Status)).Inc()
		if t.Status.Terminal() {
			delete(lastStatus, t.ID)
		} else {
			lastStatus[t.ID] = t.Status
		}
	}

	logEvent := func(event string) func(*anchor.Transfer) {
		return func(t *anchor.Transfer) {
			log.Info(event, zap.String("transfer_id", t.ID), zap.String("kind", string(t.Kind)), zap.String("status", string(t.Status)))
		}
	}

	for _, event := range []engine.HookEvent{
		engine.HookDepositInitiated,
		engine.HookWithdrawalInitiated,
		engine.HookInteractiveCompleted,
		engine.HookTransferStatusChanged,
	} {
		hooks.On(event, logEvent(string(event)))
		hooks.On(event, trackStatus)
	}
}
