package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quasaranchor/anchor/engine"
	"github.com/quasaranchor/anchor/internal/metrics"
)

// AuthModule mounts SEP-10 web authentication (spec.md §6.1).
type AuthModule struct {
	issuer            *engine.AuthIssuer
	networkPassphrase string
}

// NewAuthModule builds an AuthModule backed by issuer. networkPassphrase
// is echoed back on GET /auth per spec.md §6.1.
func NewAuthModule(issuer *engine.AuthIssuer, networkPassphrase string) *AuthModule {
	return &AuthModule{issuer: issuer, networkPassphrase: networkPassphrase}
}

// Register mounts GET/POST /auth.
func (m *AuthModule) Register(r chi.Router) {
	r.Get("/auth", m.getChallenge)
	r.Post("/auth", m.postChallenge)
}

type challengeResponse struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"network_passphrase"`
}

func (m *AuthModule) getChallenge(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	xdr, err := m.issuer.CreateChallenge(r.Context(), account)
	if err != nil {
		WriteError(w, err)
		return
	}
	metrics.AuthChallengesIssuedTotal.Inc()
	WriteJSON(w, http.StatusOK, challengeResponse{
		Transaction:       xdr,
		NetworkPassphrase: m.networkPassphrase,
	})
}

type verifyRequest struct {
	Transaction string `json:"transaction"`
}

type verifyResponse struct {
	Token string `json:"token"`
}

func (m *AuthModule) postChallenge(w http.ResponseWriter, r *http.Request) {
	txn, err := readTransactionField(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	token, _, err := m.issuer.VerifyChallenge(r.Context(), txn)
	if err != nil {
		metrics.AuthOutcomesTotal.WithLabelValues("rejected").Inc()
		WriteError(w, err)
		return
	}
	metrics.AuthOutcomesTotal.WithLabelValues("verified").Inc()
	WriteJSON(w, http.StatusOK, verifyResponse{Token: token})
}

// readTransactionField accepts both JSON and form-urlencoded bodies per
// spec.md §6.1 "POST /auth body { transaction } (JSON or
// form-urlencoded)".
func readTransactionField(r *http.Request) (string, error) {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		var req verifyRequest
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", badRequestf("invalid JSON body")
		}
		return req.Transaction, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", badRequestf("invalid form body")
	}
	return r.PostFormValue("transaction"), nil
}
