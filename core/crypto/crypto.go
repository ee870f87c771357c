// Package crypto provides the random identifier primitives the engine
// needs: SEP-10 challenge nonces, transfer ids, and interactive tokens.
// Signature verification itself is left to the stellar/go keypair and
// txnbuild types the auth issuer already uses directly (engine/auth.go)
// rather than wrapped here a second time.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateChallengeNonce returns a cryptographically random value sized
// for embedding as a SEP-10 challenge's first ManageData operation value
// (48 random bytes, base64-encoded to 64 characters — spec.md §3 "48-byte
// random value").
func GenerateChallengeNonce() (string, error) {
	nonce := make([]byte, 48)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate challenge nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

// GenerateTransferID returns a 16-octet random identifier, hex-encoded
// to 32 characters, using a random (v4) UUID's raw bytes as the entropy
// source (spec.md §4.3 "16 random octets, hex-encoded").
func GenerateTransferID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// GenerateInteractiveToken returns a 32-octet random value, hex-encoded
// to 64 characters (spec.md §4.3 "32 random octets, hex-encoded").
func GenerateInteractiveToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate interactive token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateNumericMemo returns a random decimal string suitable for a
// Stellar "id"-type memo, used as the default withdrawal memo when no
// operator hook supplies one (spec.md §6.4 "random numeric memo of type
// id").
func GenerateNumericMemo() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate numeric memo: %w", err)
	}
	return fmt.Sprintf("%d", binary.BigEndian.Uint64(buf[:])), nil
}
