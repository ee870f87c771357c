// Package signers provides Signer constructors.
//
//   - FromSecret wraps a Stellar secret key (S...) using stellar/go
//     keypair for signing. Intended for the operator's own signing
//     account.
//   - FromCallback wraps a custom signing function (e.g. HSM, custodial
//     API, external service), delegating signing to external
//     infrastructure.
//
// Both return anchor.Signer.
package signers
