// Package anchor defines the domain model and collaborator contracts for
// the anchor service: transfers, assets, and the interfaces the engine
// delegates to (signing, persistence, replay protection, chain lookups).
// Nothing in this package does I/O; it is the vocabulary the rest of the
// repository is written against.
package anchor

import "time"

// TransferKind distinguishes deposits from withdrawals.
type TransferKind string

const (
	KindDeposit    TransferKind = "deposit"
	KindWithdrawal TransferKind = "withdrawal"
)

// TransferMode distinguishes SEP-24 interactive flows from SEP-6 programmatic ones.
type TransferMode string

const (
	ModeInteractive   TransferMode = "interactive"
	ModeProgrammatic  TransferMode = "programmatic"
)

// TransferStatus is the wire status of a transfer. See the state machine
// in engine/fsm.go for legal transitions.
type TransferStatus string

const (
	StatusIncomplete                TransferStatus = "incomplete"
	StatusPendingUserTransferStart  TransferStatus = "pending_user_transfer_start"
	StatusPendingAnchor             TransferStatus = "pending_anchor"
	StatusPendingExternal           TransferStatus = "pending_external"
	StatusPendingUser               TransferStatus = "pending_user"
	StatusCompleted                 TransferStatus = "completed"
	StatusError                     TransferStatus = "error"
	StatusRefunded                  TransferStatus = "refunded"
)

// Terminal reports whether status is in the terminal set {completed,
// error, refunded}, the statuses for which CompletedAt is set. The
// operator-side UpdateStatus can still move a transfer out of one.
func (s TransferStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusRefunded:
		return true
	default:
		return false
	}
}

// InteractiveToken binds the operator's hosted page back to a specific
// transfer. Single-use: Consumed flips to true exactly once, atomically
// with the status transition it authorizes (see TransferStore.CompleteInteractive).
type InteractiveToken struct {
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Valid reports whether the token can still authorize a completion call.
func (t *InteractiveToken) Valid(now time.Time, value string) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return t.Value == value && !t.Consumed && now.Before(t.ExpiresAt)
}

// Transfer is the canonical transfer record (spec.md §3).
type Transfer struct {
	ID          string
	Kind        TransferKind
	Mode        TransferMode
	Status      TransferStatus
	AssetCode   string
	AssetIssuer string
	Account     string // subject of the bearer token that created this transfer
	Amount      string
	Dest        string
	DestExtra   string
	MemoType    string
	Memo        string

	Interactive *InteractiveToken // present iff Mode == ModeInteractive
	RedirectURL string
	MoreInfoURL string

	OnChainTxID  string
	ExternalTxID string
	StatusMsg    string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	Metadata map[string]any
}

// StatusETA implements P7: the wire status_eta is 3 while incomplete, and
// absent (zero) for every other status.
func (t *Transfer) StatusETA() int {
	if t.Status == StatusIncomplete {
		return 3
	}
	return 0
}

// TransferUpdate carries partial mutation of a Transfer. Nil fields are
// left untouched by the store.
type TransferUpdate struct {
	Status       *TransferStatus
	Amount       *string
	OnChainTxID  *string
	ExternalTxID *string
	StatusMsg    *string
	Metadata     map[string]any
	CompletedAt  **time.Time // double pointer: non-nil outer means "set (possibly to nil)"
}

// TransferFilters narrows List results (spec.md §4.4).
type TransferFilters struct {
	AssetCode   string
	Kind        TransferKind
	NotOlderThan time.Time
	Limit       int
}

// AccountSigner is one entry of a Stellar account's signer set.
type AccountSigner struct {
	Key    string
	Weight int32
}

// AccountThresholds are a Stellar account's low/medium/high signing thresholds.
type AccountThresholds struct {
	Low    int32
	Medium int32
	High   int32
}
