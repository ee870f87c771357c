// Package account provides AccountFetcher implementations used by the
// SEP-10 auth issuer to look up a client account's signer set.
package account

import (
	"context"
	"fmt"

	"github.com/quasaranchor/anchor"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
)

// HorizonFetcher implements anchor.AccountFetcher against a Horizon server.
type HorizonFetcher struct {
	client *horizonclient.Client
}

// NewHorizonFetcher builds an AccountFetcher backed by horizonURL.
func NewHorizonFetcher(horizonURL string) *HorizonFetcher {
	return &HorizonFetcher{client: &horizonclient.Client{HorizonURL: horizonURL}}
}

// FetchSigners returns accountID's signer set and thresholds. A
// not-found account surfaces as an error; the bounded chain client
// passes it through unchanged and the auth issuer's signature check
// applies the master-key-only fallback spec.md §4.2 step 2 requires.
func (f *HorizonFetcher) FetchSigners(_ context.Context, accountID string) ([]anchor.AccountSigner, anchor.AccountThresholds, error) {
	account, err := f.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		return nil, anchor.AccountThresholds{}, fmt.Errorf("failed to fetch account %s: %w", accountID, err)
	}

	signers := make([]anchor.AccountSigner, len(account.Signers))
	for i, s := range account.Signers {
		signers[i] = anchor.AccountSigner{Key: s.Key, Weight: s.Weight}
	}
	thresholds := anchor.AccountThresholds{
		Low:    int32(account.Thresholds.LowThreshold),
		Medium: int32(account.Thresholds.MedThreshold),
		High:   int32(account.Thresholds.HighThreshold),
	}
	return signers, thresholds, nil
}
