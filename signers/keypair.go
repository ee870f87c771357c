package signers

import (
	"context"
	"fmt"

	"github.com/quasaranchor/anchor"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

type keypairSigner struct {
	kp *keypair.Full
}

// FromSecret builds a Signer from a Stellar secret key (S...). Intended
// for the operator's own signing account where the secret is available
// in-process (e.g. from an environment variable or secrets manager —
// the secret storage mechanism itself is out of scope, spec.md §1).
func FromSecret(secret string) (anchor.Signer, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}
	return &keypairSigner{kp: kp}, nil
}

func (s *keypairSigner) PublicKey() string {
	return s.kp.Address()
}

func (s *keypairSigner) SignTransaction(_ context.Context, xdrEnvelope string, networkPassphrase string) (string, error) {
	parsed, err := txnbuild.TransactionFromXDR(xdrEnvelope)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction XDR: %w", err)
	}
	tx, ok := parsed.Transaction()
	if !ok {
		return "", fmt.Errorf("expected a Transaction, got a FeeBumpTransaction")
	}
	signed, err := tx.Sign(networkPassphrase, s.kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed.Base64()
}
