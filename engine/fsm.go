// Package engine implements the anchor service's hard core: the SEP-10
// auth issuer and the SEP-24/SEP-6 transfer lifecycle manager.
package engine

import "github.com/quasaranchor/anchor"

// nextOnCompleteInteractive returns the status a transfer moves to when
// its interactive token is completed:
//
//	deposit,    incomplete -> pending_user_transfer_start
//	withdrawal, incomplete -> pending_anchor
//	anything else          -> unchanged (the token still gets consumed)
//
// Unlike update_status, which the operator can call at any time to set
// an arbitrary status, this is the engine's only built-in transition and
// it is fixed to these two entries.
func nextOnCompleteInteractive(kind anchor.TransferKind, from anchor.TransferStatus) anchor.TransferStatus {
	if from != anchor.StatusIncomplete {
		return from
	}
	if kind == anchor.KindDeposit {
		return anchor.StatusPendingUserTransferStart
	}
	return anchor.StatusPendingAnchor
}
