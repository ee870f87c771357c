package signers

import (
	"context"

	"github.com/quasaranchor/anchor"
)

type callbackSigner struct {
	publicKey string
	signFunc  func(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// FromCallback builds a Signer from a known public key and an arbitrary
// signing function, for wrapping an HSM or custodial signing API that
// returns the signed envelope itself.
func FromCallback(publicKey string, signFunc func(ctx context.Context, xdr string, networkPassphrase string) (string, error)) anchor.Signer {
	return &callbackSigner{publicKey: publicKey, signFunc: signFunc}
}

func (s *callbackSigner) PublicKey() string {
	return s.publicKey
}

func (s *callbackSigner) SignTransaction(ctx context.Context, xdrEnvelope string, networkPassphrase string) (string, error) {
	return s.signFunc(ctx, xdrEnvelope, networkPassphrase)
}
