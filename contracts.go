package anchor

import (
	"context"
	"time"
)

// Signer is the minimal contract for proving control of the operator's
// Stellar account: producing the address and signing a transaction
// envelope. The engine never manages key material directly.
type Signer interface {
	PublicKey() string
	SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// AccountFetcher looks up a Stellar account's signer set and thresholds,
// used by the auth issuer to verify challenge signatures (spec.md §4.2
// step 2). A nil fetcher or an account-not-found result both fall back to
// master-key-only, threshold-zero semantics.
type AccountFetcher interface {
	FetchSigners(ctx context.Context, accountID string) ([]AccountSigner, AccountThresholds, error)
}

// NonceStore tracks SEP-10 challenge nonces for replay protection
// (spec.md §4.2.1).
type NonceStore interface {
	Add(ctx context.Context, nonce string, expiresAt time.Time) error
	Has(ctx context.Context, nonce string) (bool, error)
	Consume(ctx context.Context, nonce string) (bool, error)
}

// TransferStore is the storage port of spec.md §4.4, implemented here by
// an in-memory default (store/memory) and substitutable with any
// persistent implementation that honors the same contract.
type TransferStore interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, id string) (*Transfer, error)
	GetByInteractiveToken(ctx context.Context, token string) (*Transfer, error)
	GetByOnChainID(ctx context.Context, txID string) (*Transfer, error)
	GetByExternalID(ctx context.Context, extID string) (*Transfer, error)
	ListByAccount(ctx context.Context, account string, filters TransferFilters) ([]*Transfer, error)
	Update(ctx context.Context, id string, update *TransferUpdate) (*Transfer, error)
	Delete(ctx context.Context, id string) error

	// CompleteInteractive atomically validates and consumes the interactive
	// token bound to id, advancing status per the state machine, in a
	// single mutation guard (spec.md §4.3 "Completion rule", §5).
	CompleteInteractive(ctx context.Context, id, token string, now time.Time, next TransferStatus) (*Transfer, error)
}

// JWTClaims are the bearer-token claims minted after SEP-10 verification
// (spec.md §3).
type JWTClaims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTIssuer mints bearer tokens.
type JWTIssuer interface {
	Issue(ctx context.Context, claims JWTClaims) (string, error)
}

// JWTVerifier validates bearer tokens and returns their claims.
type JWTVerifier interface {
	Verify(ctx context.Context, token string) (*JWTClaims, error)
}
