package engine

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/quasaranchor/anchor"
	corecrypto "github.com/quasaranchor/anchor/core/crypto"
	anchorerrors "github.com/quasaranchor/anchor/errors"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

const (
	challengeTimeout  = 5 * time.Minute
	challengeBaseFee  = int64(100)
	challengeOpSuffix = " auth"
	webAuthDomainKey  = "web_auth_domain"
)

type authClaimsContextKey struct{}

var claimsContextKey = authClaimsContextKey{}

// AuthConfig configures an AuthIssuer.
type AuthConfig struct {
	Domain            string
	NetworkPassphrase string
	Signer            anchor.Signer
	NonceStore        anchor.NonceStore
	JWTIssuer         anchor.JWTIssuer
	JWTVerifier       anchor.JWTVerifier
	AccountFetcher    anchor.AccountFetcher // optional: enables weighted multisig verification
}

// AuthIssuer is the SEP-10 challenge build/verify/token-mint subsystem
// (spec.md §4.2).
type AuthIssuer struct {
	domain            string
	networkPassphrase string
	signer            anchor.Signer
	nonceStore        anchor.NonceStore
	jwtIssuer         anchor.JWTIssuer
	jwtVerifier       anchor.JWTVerifier
	accountFetcher    anchor.AccountFetcher
}

// NewAuthIssuer validates config and builds an AuthIssuer.
func NewAuthIssuer(config AuthConfig) (*AuthIssuer, error) {
	if strings.TrimSpace(config.Domain) == "" {
		return nil, anchorerrors.BadRequest("auth", "domain is required", nil)
	}
	if strings.TrimSpace(config.NetworkPassphrase) == "" {
		return nil, anchorerrors.BadRequest("auth", "network passphrase is required", nil)
	}
	if config.Signer == nil {
		return nil, anchorerrors.BadRequest("auth", "signer is required", nil)
	}
	if config.NonceStore == nil {
		return nil, anchorerrors.BadRequest("auth", "nonce store is required", nil)
	}
	if config.JWTIssuer == nil {
		return nil, anchorerrors.BadRequest("auth", "JWT issuer is required", nil)
	}
	if config.JWTVerifier == nil {
		return nil, anchorerrors.BadRequest("auth", "JWT verifier is required", nil)
	}

	return &AuthIssuer{
		domain:            config.Domain,
		networkPassphrase: config.NetworkPassphrase,
		signer:            config.Signer,
		nonceStore:        config.NonceStore,
		jwtIssuer:         config.JWTIssuer,
		jwtVerifier:       config.JWTVerifier,
		accountFetcher:    config.AccountFetcher,
	}, nil
}

// CreateChallenge builds operation A of spec.md §4.2: a signed,
// zero-sequence challenge transaction naming account in its first
// operation, registers the embedded nonce, and returns the base64
// envelope.
func (a *AuthIssuer) CreateChallenge(ctx context.Context, account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", anchorerrors.BadRequest("auth", "account is required", nil)
	}
	if _, err := keypair.ParseAddress(account); err != nil {
		return "", anchorerrors.BadRequest("auth", "invalid account address", err)
	}

	nonce, err := corecrypto.GenerateChallengeNonce()
	if err != nil {
		return "", anchorerrors.Internal("auth", "failed to generate challenge nonce", err)
	}

	now := time.Now().UTC()
	maxTime := now.Add(challengeTimeout)
	if err := a.nonceStore.Add(ctx, nonce, maxTime); err != nil {
		return "", anchorerrors.Internal("auth", "failed to store nonce", err)
	}

	serverAccount := a.signer.PublicKey()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: serverAccount, Sequence: 0},
		IncrementSequenceNum: false,
		Operations: []txnbuild.Operation{
			&txnbuild.ManageData{Name: a.domain + challengeOpSuffix, Value: []byte(nonce), SourceAccount: account},
			&txnbuild.ManageData{Name: webAuthDomainKey, Value: []byte(a.domain), SourceAccount: serverAccount},
		},
		BaseFee: challengeBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimebounds(now.Unix(), maxTime.Unix()),
		},
	})
	if err != nil {
		return "", anchorerrors.Internal("auth", "failed to build challenge transaction", err)
	}

	xdr, err := tx.Base64()
	if err != nil {
		return "", anchorerrors.Internal("auth", "failed to encode challenge transaction", err)
	}

	signedXDR, err := a.signer.SignTransaction(ctx, xdr, a.networkPassphrase)
	if err != nil {
		return "", anchorerrors.Internal("auth", "failed to sign challenge transaction", err)
	}

	return signedXDR, nil
}

// VerifyChallenge is operation B of spec.md §4.2: re-parse the envelope,
// verify its structure and signatures, consume the nonce, and mint a
// bearer token for the account that signed.
func (a *AuthIssuer) VerifyChallenge(ctx context.Context, challengeXDR string) (string, string, error) {
	if strings.TrimSpace(challengeXDR) == "" {
		return "", "", anchorerrors.InvalidChallenge("auth", "challenge XDR is required", nil)
	}

	parsed, err := txnbuild.TransactionFromXDR(challengeXDR)
	if err != nil {
		return "", "", anchorerrors.InvalidChallenge("auth", "failed to parse challenge transaction", err)
	}

	tx, ok := parsed.Transaction()
	if !ok {
		return "", "", anchorerrors.InvalidChallenge("auth", "challenge transaction must not be a fee bump", nil)
	}

	operations := tx.Operations()
	if len(operations) < 2 {
		return "", "", anchorerrors.InvalidChallenge("auth", "challenge transaction must have at least two operations", nil)
	}

	firstOp, ok := operations[0].(*txnbuild.ManageData)
	if !ok {
		return "", "", anchorerrors.InvalidChallenge("auth", "first operation must be manage_data", nil)
	}
	if firstOp.Value == nil {
		return "", "", anchorerrors.InvalidChallenge("auth", "challenge nonce missing", nil)
	}
	if firstOp.Name != a.domain+challengeOpSuffix {
		return "", "", anchorerrors.InvalidChallenge("auth", "invalid challenge operation name", nil)
	}

	account := firstOp.SourceAccount
	if strings.TrimSpace(account) == "" {
		return "", "", anchorerrors.InvalidChallenge("auth", "first operation missing client account", nil)
	}

	txSourceAccount := tx.SourceAccount().AccountID
	if txSourceAccount != a.signer.PublicKey() {
		return "", "", anchorerrors.InvalidChallenge("auth", "challenge transaction source account must be the server signing key", nil)
	}

	secondOp, ok := operations[1].(*txnbuild.ManageData)
	if !ok {
		return "", "", anchorerrors.InvalidChallenge("auth", "second operation must be manage_data", nil)
	}
	if secondOp.Name != webAuthDomainKey {
		return "", "", anchorerrors.InvalidChallenge("auth", "web_auth_domain operation missing", nil)
	}
	if !bytes.Equal(secondOp.Value, []byte(a.domain)) {
		return "", "", anchorerrors.InvalidChallenge("auth", "web_auth_domain value mismatch", nil)
	}

	if err := verifyChallengeSignatures(ctx, tx, a.networkPassphrase, a.signer.PublicKey(), account, a.accountFetcher); err != nil {
		return "", "", err
	}

	// Nonce consumption happens after signature verification succeeds, so a
	// structurally invalid resubmission never burns a still-valid nonce.
	nonce := string(firstOp.Value)
	consumed, err := a.nonceStore.Consume(ctx, nonce)
	if err != nil {
		return "", "", anchorerrors.Internal("auth", "failed to consume nonce", err)
	}
	if !consumed {
		return "", "", anchorerrors.InvalidChallenge("auth", "nonce already used or expired", nil)
	}

	token, err := a.jwtIssuer.Issue(ctx, anchor.JWTClaims{Subject: account, Issuer: a.domain})
	if err != nil {
		return "", "", anchorerrors.Internal("auth", "failed to issue bearer token", err)
	}

	return token, account, nil
}

// RequireAuth is the bearer-token guard middleware of spec.md §4.2.2: it
// verifies the Authorization header and exposes the resulting claims to
// downstream handlers via ClaimsFromContext.
func (a *AuthIssuer) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			writeAuthError(w)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			writeAuthError(w)
			return
		}

		claims, err := a.jwtVerifier.Verify(r.Context(), token)
		if err != nil {
			writeAuthError(w)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"missing or invalid bearer token","code":"unauthorized"}`))
}

// ClaimsFromContext retrieves the authenticated subject's claims, set by
// RequireAuth.
func ClaimsFromContext(ctx context.Context) (*anchor.JWTClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*anchor.JWTClaims)
	return claims, ok
}

// verifyChallengeSignatures implements spec.md §4.2 step 3: the envelope
// must carry the server's signature plus client signatures whose summed
// weight meets the account's medium threshold. An AccountFetcher failure
// (account not found) falls back to master-key-only, threshold zero.
func verifyChallengeSignatures(ctx context.Context, tx *txnbuild.Transaction, networkPassphrase, serverPublicKey, clientAccount string, fetcher anchor.AccountFetcher) error {
	serverKP, err := keypair.ParseAddress(serverPublicKey)
	if err != nil {
		return anchorerrors.InvalidChallenge("auth", "invalid server public key", err)
	}

	type clientSigner struct {
		kp     keypair.KP
		weight int32
	}
	var clientSigners []clientSigner
	var medThreshold int32

	masterKeyFallback := func() error {
		kp, err := keypair.ParseAddress(clientAccount)
		if err != nil {
			return anchorerrors.InvalidChallenge("auth", "invalid client account address", err)
		}
		clientSigners = []clientSigner{{kp: kp, weight: 1}}
		medThreshold = 0
		return nil
	}

	if fetcher != nil {
		signers, thresholds, fetchErr := fetcher.FetchSigners(ctx, clientAccount)
		if fetchErr != nil {
			// A retryable fetch error (bounded-timeout or open circuit breaker,
			// core/net.BoundedFetcher) is not "account not found" and must not
			// be swallowed by the master-key-only fallback (spec.md §5).
			if structured, ok := anchorerrors.AsError(fetchErr); ok && structured.Retryable {
				return structured
			}
			if err := masterKeyFallback(); err != nil {
				return err
			}
		} else {
			medThreshold = thresholds.Medium
			clientSigners = make([]clientSigner, 0, len(signers))
			for _, s := range signers {
				kp, err := keypair.ParseAddress(s.Key)
				if err != nil {
					continue
				}
				clientSigners = append(clientSigners, clientSigner{kp: kp, weight: s.Weight})
			}
		}
	} else if err := masterKeyFallback(); err != nil {
		return err
	}

	sigs := tx.Signatures()
	if len(sigs) == 0 {
		return anchorerrors.InvalidChallenge("auth", "challenge transaction has no signatures", nil)
	}

	hash, err := tx.Hash(networkPassphrase)
	if err != nil {
		return anchorerrors.InvalidChallenge("auth", "failed to hash challenge transaction", err)
	}

	serverSigned := false
	var totalWeight int32
	seenHints := make(map[[4]byte]bool)

	for _, sig := range sigs {
		var hint [4]byte
		copy(hint[:], sig.Hint[:])
		if seenHints[hint] {
			return anchorerrors.InvalidChallenge("auth", "duplicate signature detected", nil)
		}
		seenHints[hint] = true

		if serverKP.Verify(hash[:], sig.Signature) == nil {
			serverSigned = true
			continue
		}

		matched := false
		for _, cs := range clientSigners {
			if cs.kp.Verify(hash[:], sig.Signature) == nil {
				totalWeight += cs.weight
				matched = true
				break
			}
		}
		if !matched {
			return anchorerrors.InvalidChallenge("auth", "transaction has unrecognized signatures", nil)
		}
	}

	if !serverSigned {
		return anchorerrors.InvalidChallenge("auth", "challenge transaction not signed by server", nil)
	}
	if totalWeight < medThreshold {
		return anchorerrors.Unauthorized("auth", "signature weight below account threshold", nil)
	}
	if medThreshold == 0 && totalWeight == 0 {
		return anchorerrors.Unauthorized("auth", "challenge transaction not signed by client", nil)
	}

	return nil
}
