package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/core/toml"
	"github.com/quasaranchor/anchor/engine"
	"github.com/quasaranchor/anchor/signers"
	"github.com/quasaranchor/anchor/store/memory"
)

const testNetworkPassphrase = "Test SDF Network ; September 2015"

const testSigningSecret = "SAPCL3RTB7VB3VQXIVIM4P6AH5C7ZQDHY772GOCAWASACCFFWOMQVP4S"

// testRouter assembles a full router backed by in-memory collaborators,
// mirroring the wiring cmd/anchor performs.
func testRouter(t *testing.T) (http.Handler, *engine.AuthIssuer, *anchor.AssetSet) {
	t.Helper()

	signer, err := signers.FromSecret(testSigningSecret)
	require.NoError(t, err)

	jwt, err := engine.NewJWT(strings.Repeat("b", 32), "anchor.example")
	require.NoError(t, err)

	nonces := memory.NewNonceStore(5 * time.Minute)
	t.Cleanup(nonces.Stop)
	authIssuer, err := engine.NewAuthIssuer(engine.AuthConfig{
		Domain:            "anchor.example",
		NetworkPassphrase: testNetworkPassphrase,
		Signer:            signer,
		NonceStore:        nonces,
		JWTIssuer:         jwt,
		JWTVerifier:       jwt,
	})
	require.NoError(t, err)

	usdc := &anchor.Asset{
		Code:      "USDC",
		Issuer:    "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5",
		Lifecycle: anchor.AssetLive,
		Deposit:   anchor.OperationProfile{Enabled: true},
		Withdraw:  anchor.OperationProfile{Enabled: true},
	}
	assets := anchor.NewAssetSet([]*anchor.Asset{usdc})

	store := memory.NewTransferStore()
	tm := engine.NewTransferManager(store, assets, engine.Config{
		Domain:         "anchor.example",
		SigningAccount: signer.PublicKey(),
	}, nil, engine.SEP24Hooks{InteractiveURL: "https://interactive.anchor.example/session"}, engine.SEP6Hooks{})

	publisher := toml.NewPublisher(toml.Config{
		SigningKey:        signer.PublicKey(),
		NetworkPassphrase: testNetworkPassphrase,
		Domain:            "anchor.example",
		Assets:            assets,
	})

	r := NewRouter(Modules{
		Discovery: NewDiscoveryModule(publisher),
		Auth:      NewAuthModule(authIssuer, testNetworkPassphrase),
		SEP24:     NewSEP24Module(tm, authIssuer, assets),
		SEP6:      NewSEP6Module(tm, authIssuer, assets),
	}, publisher)

	return r, authIssuer, assets
}

func TestDiscoveryMountsReflectRegisteredModules(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/stellar.toml", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "WEB_AUTH_ENDPOINT")
	require.Contains(t, body, "TRANSFER_SERVER_SEP0024")
	require.Contains(t, body, "TRANSFER_SERVER")
}

func TestSEP24InfoIsUnauthenticated(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sep24/info", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp sep24InfoResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Contains(t, resp.Deposit, "USDC")
}

func TestSEP24DepositInteractiveRejectsWithoutBearerToken(t *testing.T) {
	r, _, _ := testRouter(t)

	form := url.Values{"asset_code": {"USDC"}}
	req := httptest.NewRequest(http.MethodPost, "/sep24/transactions/deposit/interactive", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	require.NotEmpty(t, env.Code)
}

func TestSEP24DepositInteractiveSucceedsWithBearerToken(t *testing.T) {
	r, _, _ := testRouter(t)

	token := authenticate(t, r)

	form := url.Values{"asset_code": {"USDC"}, "amount": {"10"}}
	req := httptest.NewRequest(http.MethodPost, "/sep24/transactions/deposit/interactive", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp interactiveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "interactive_customer_info_needed", resp.Type)
	require.NotEmpty(t, resp.ID)
	require.NotEmpty(t, resp.URL)
}

func TestSEP6InfoIsUnauthenticated(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sep6/info", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestSEP6DepositRejectsWithoutBearerToken(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sep6/deposit?asset_code=USDC", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthChallengeRoundTrip(t *testing.T) {
	r, _, _ := testRouter(t)

	kp, err := keypair.Random()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth?account="+kp.Address(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var challenge challengeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&challenge))
	require.NotEmpty(t, challenge.Transaction)
	require.Equal(t, testNetworkPassphrase, challenge.NetworkPassphrase)
}

func TestMetricsEndpointIsExposed(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "# HELP")
}

// authenticate runs a full SEP-10 round trip against the live router:
// fetch the challenge, countersign it with a fresh client keypair, and
// exchange it for a bearer token, exactly as a wallet would.
func authenticate(t *testing.T, r http.Handler) string {
	t.Helper()

	kp, err := keypair.Random()
	require.NoError(t, err)

	challengeReq := httptest.NewRequest(http.MethodGet, "/auth?account="+kp.Address(), nil)
	challengeW := httptest.NewRecorder()
	r.ServeHTTP(challengeW, challengeReq)
	require.Equal(t, http.StatusOK, challengeW.Code)

	var challenge challengeResponse
	require.NoError(t, json.NewDecoder(challengeW.Body).Decode(&challenge))

	parsed, err := txnbuild.TransactionFromXDR(challenge.Transaction)
	require.NoError(t, err)
	tx, ok := parsed.Transaction()
	require.True(t, ok)

	signedTx, err := tx.Sign(testNetworkPassphrase, kp)
	require.NoError(t, err)
	signedXDR, err := signedTx.Base64()
	require.NoError(t, err)

	form := url.Values{"transaction": {signedXDR}}
	verifyReq := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
	verifyReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	verifyW := httptest.NewRecorder()
	r.ServeHTTP(verifyW, verifyReq)
	require.Equal(t, http.StatusOK, verifyW.Code)

	var verify verifyResponse
	require.NoError(t, json.NewDecoder(verifyW.Body).Decode(&verify))
	require.NotEmpty(t, verify.Token)
	return verify.Token
}
