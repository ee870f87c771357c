package observer

import (
	"context"

	"go.uber.org/zap"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/engine"
	anchorerrors "github.com/quasaranchor/anchor/errors"
)

// AutoMatchPayments registers a payment handler with obs that treats
// each payment's memo, when set, as a transfer id, and reports the
// payment hash back into the engine via UpdateStatus. This is the
// reference shape of the external settlement pipeline spec.md §1/§9
// describe but exclude from the core: the engine never watches the
// chain itself, it only records what this (or any) out-of-scope
// reporter tells it.
//
// The observer must already be configured with a cursor before Start is
// called; AutoMatchPayments only adds the matching handler.
func AutoMatchPayments(obs Observer, tm *engine.TransferManager, distributionAccount string, log *zap.Logger) error {
	if obs == nil {
		return anchorerrors.BadRequest("observer", "observer is required", nil)
	}
	if tm == nil {
		return anchorerrors.BadRequest("observer", "transfer manager is required", nil)
	}
	if distributionAccount == "" {
		return anchorerrors.BadRequest("observer", "distribution account is required", nil)
	}
	if log == nil {
		log = zap.NewNop()
	}

	obs.OnPayment(
		func(evt PaymentEvent) error {
			transferID := evt.Memo
			if transferID == "" {
				log.Debug("settlement payment carries no memo, skipping", zap.String("payment_id", evt.ID))
				return nil
			}

			ctx := context.Background()
			if _, err := tm.GetByID(ctx, transferID); err != nil {
				log.Debug("settlement payment memo did not match a known transfer", zap.String("payment_id", evt.ID), zap.String("memo", transferID))
				return nil
			}

			txHash := evt.TransactionHash
			if _, err := tm.UpdateStatus(ctx, transferID, anchor.StatusCompleted, &txHash, nil, nil); err != nil {
				log.Warn("failed to report settlement", zap.String("transfer_id", transferID), zap.Error(err))
				return nil
			}

			log.Info("settlement reported", zap.String("transfer_id", transferID), zap.String("amount", evt.Amount), zap.String("asset", evt.Asset))
			return nil
		},
		WithDestination(distributionAccount),
	)

	return nil
}
