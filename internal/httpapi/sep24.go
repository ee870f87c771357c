package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go/keypair"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/engine"
	anchorerrors "github.com/quasaranchor/anchor/errors"
	"github.com/quasaranchor/anchor/internal/metrics"
)

// resolveOwner implements spec.md §4.5: the ambient token subject is
// always the transfer owner. A request-supplied account field is only
// checked for well-formedness — when present it never overrides the
// token subject.
func resolveOwner(subject, formAccount string) (string, error) {
	if strings.TrimSpace(formAccount) != "" {
		if _, err := keypair.ParseAddress(formAccount); err != nil {
			return "", badRequestf("account is not a well-formed Stellar address")
		}
	}
	return subject, nil
}

// SEP24Module mounts the hosted/interactive transfer surface (spec.md
// §6.1 "SEP-24").
type SEP24Module struct {
	tm     *engine.TransferManager
	auth   *engine.AuthIssuer
	assets *anchor.AssetSet
}

// NewSEP24Module builds a SEP24Module. auth gates the deposit, withdraw,
// and transaction-query routes; GET /sep24/info, GET /interactive,
// POST /interactive/complete (checked by its interactive token instead),
// and GET /transaction/more_info take no bearer token.
func NewSEP24Module(tm *engine.TransferManager, auth *engine.AuthIssuer, assets *anchor.AssetSet) *SEP24Module {
	return &SEP24Module{tm: tm, auth: auth, assets: assets}
}

// Register mounts the SEP-24 route group.
func (m *SEP24Module) Register(r chi.Router) {
	r.Get("/sep24/info", m.info)
	r.Get("/interactive", m.interactiveRedirect)
	r.Post("/interactive/complete", m.interactiveComplete)
	r.Get("/transaction/more_info", m.moreInfo)

	r.Group(func(r chi.Router) {
		r.Use(m.auth.RequireAuth)
		r.Post("/sep24/transactions/deposit/interactive", m.depositInteractive)
		r.Post("/sep24/transactions/withdraw/interactive", m.withdrawInteractive)
		r.Get("/sep24/transaction", m.getTransaction)
		r.Get("/sep24/transactions", m.listTransactions)
	})
}

type sep24AssetInfo struct {
	Enabled        bool                            `json:"enabled"`
	MinAmount      *float64                        `json:"min_amount,omitempty"`
	MaxAmount      *float64                        `json:"max_amount,omitempty"`
	FeeFixed       *float64                        `json:"fee_fixed,omitempty"`
	FeePercent     *float64                        `json:"fee_percent,omitempty"`
	RequiredFields map[string]anchor.RequiredField `json:"fields,omitempty"`
}

type sep24InfoResponse struct {
	Deposit  map[string]sep24AssetInfo `json:"deposit"`
	Withdraw map[string]sep24AssetInfo `json:"withdraw"`
}

func (m *SEP24Module) info(w http.ResponseWriter, r *http.Request) {
	resp := sep24InfoResponse{
		Deposit:  make(map[string]sep24AssetInfo),
		Withdraw: make(map[string]sep24AssetInfo),
	}
	for _, asset := range m.assets.All() {
		code := anchor.NormalizeAssetCode(asset.Code)
		resp.Deposit[code] = sep24AssetInfo{
			Enabled: asset.Deposit.Enabled, MinAmount: asset.Deposit.MinAmount, MaxAmount: asset.Deposit.MaxAmount,
			FeeFixed: asset.Deposit.FeeFixed, FeePercent: asset.Deposit.FeePercent, RequiredFields: asset.Deposit.RequiredFields,
		}
		resp.Withdraw[code] = sep24AssetInfo{
			Enabled: asset.Withdraw.Enabled, MinAmount: asset.Withdraw.MinAmount, MaxAmount: asset.Withdraw.MaxAmount,
			FeeFixed: asset.Withdraw.FeeFixed, FeePercent: asset.Withdraw.FeePercent, RequiredFields: asset.Withdraw.RequiredFields,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

type interactiveResponse struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

func (m *SEP24Module) depositInteractive(w http.ResponseWriter, r *http.Request) {
	claims, ok := engine.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, anchorerrors.Unauthorized("http", "authentication required", nil))
		return
	}
	if err := parseMultipartOrForm(r); err != nil {
		WriteError(w, err)
		return
	}

	account, err := resolveOwner(claims.Subject, r.FormValue("account"))
	if err != nil {
		WriteError(w, err)
		return
	}
	result, err := m.tm.InitiateDepositInteractive(r.Context(), engine.DepositInteractiveRequest{
		Account:   account,
		AssetCode: r.FormValue("asset_code"),
		Amount:    r.FormValue("amount"),
		Memo:      r.FormValue("memo"),
		MemoType:  r.FormValue("memo_type"),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	metrics.TransfersInitiatedTotal.WithLabelValues(string(anchor.KindDeposit), string(anchor.ModeInteractive)).Inc()
	WriteJSON(w, http.StatusOK, interactiveResponse{Type: result.Type, ID: result.ID, URL: result.URL})
}

func (m *SEP24Module) withdrawInteractive(w http.ResponseWriter, r *http.Request) {
	claims, ok := engine.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, anchorerrors.Unauthorized("http", "authentication required", nil))
		return
	}
	if err := parseMultipartOrForm(r); err != nil {
		WriteError(w, err)
		return
	}

	account, err := resolveOwner(claims.Subject, r.FormValue("account"))
	if err != nil {
		WriteError(w, err)
		return
	}
	result, err := m.tm.InitiateWithdrawalInteractive(r.Context(), engine.WithdrawalInteractiveRequest{
		Account:   account,
		AssetCode: r.FormValue("asset_code"),
		Amount:    r.FormValue("amount"),
		Dest:      r.FormValue("dest"),
		DestExtra: r.FormValue("dest_extra"),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	metrics.TransfersInitiatedTotal.WithLabelValues(string(anchor.KindWithdrawal), string(anchor.ModeInteractive)).Inc()
	WriteJSON(w, http.StatusOK, interactiveResponse{Type: result.Type, ID: result.ID, URL: result.URL})
}

func parseMultipartOrForm(r *http.Request) error {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return badRequestf("invalid multipart body")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return badRequestf("invalid form body")
	}
	return nil
}

type transactionView struct {
	ID                    string     `json:"id"`
	Kind                  string     `json:"kind"`
	Status                string     `json:"status"`
	StatusETA             int        `json:"status_eta,omitempty"`
	AmountIn              string     `json:"amount_in,omitempty"`
	AmountOut             string     `json:"amount_out,omitempty"`
	MoreInfoURL           string     `json:"more_info_url,omitempty"`
	StellarTransactionID  string     `json:"stellar_transaction_id,omitempty"`
	ExternalTransactionID string     `json:"external_transaction_id,omitempty"`
	Message               string     `json:"message,omitempty"`
	StartedAt             time.Time  `json:"started_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

func toTransactionView(t *anchor.Transfer) transactionView {
	return transactionView{
		ID: t.ID, Kind: string(t.Kind), Status: string(t.Status), StatusETA: t.StatusETA(),
		AmountIn: t.Amount, AmountOut: t.Amount, MoreInfoURL: t.MoreInfoURL,
		StellarTransactionID: t.OnChainTxID, ExternalTransactionID: t.ExternalTxID, Message: t.StatusMsg,
		StartedAt: t.CreatedAt, CompletedAt: t.CompletedAt,
	}
}

func (m *SEP24Module) getTransaction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		t   *anchor.Transfer
		err error
	)
	switch {
	case q.Get("id") != "":
		t, err = m.tm.GetByID(r.Context(), q.Get("id"))
	case q.Get("stellar_transaction_id") != "":
		t, err = m.tm.GetByOnChainID(r.Context(), q.Get("stellar_transaction_id"))
	case q.Get("external_transaction_id") != "":
		t, err = m.tm.GetByExternalID(r.Context(), q.Get("external_transaction_id"))
	default:
		WriteError(w, anchorerrors.BadRequest("http", "id, stellar_transaction_id, or external_transaction_id is required", nil))
		return
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	if t == nil {
		WriteError(w, anchorerrors.NotFound("http", "transaction not found", nil))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]transactionView{"transaction": toTransactionView(t)})
}

func (m *SEP24Module) listTransactions(w http.ResponseWriter, r *http.Request) {
	claims, ok := engine.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, anchorerrors.Unauthorized("http", "authentication required", nil))
		return
	}
	q := r.URL.Query()

	filters := anchor.TransferFilters{AssetCode: q.Get("asset_code")}
	if kind := q.Get("kind"); kind != "" {
		filters.Kind = anchor.TransferKind(kind)
	}
	if raw := q.Get("no_older_than"); raw != "" {
		if cutoff, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.NotOlderThan = cutoff
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filters.Limit = limit
		}
	}

	transfers, err := m.tm.ListByAccount(r.Context(), claims.Subject, filters)
	if err != nil {
		WriteError(w, err)
		return
	}
	views := make([]transactionView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, toTransactionView(t))
	}
	WriteJSON(w, http.StatusOK, map[string][]transactionView{"transactions": views})
}

// interactiveRedirect is the unauthenticated 302 hop of spec.md §6.1
// "GET /interactive?token=&transaction_id= → 302 to operator interactive
// URL with the same params". It looks up the transfer by transaction_id
// (404 if none exists), takes its stored RedirectURL (see
// engine.redirectURL), and sets transaction_id and token on it to the
// values the request carried.
func (m *SEP24Module) interactiveRedirect(w http.ResponseWriter, r *http.Request) {
	txID := r.URL.Query().Get("transaction_id")
	token := r.URL.Query().Get("token")
	t, err := m.tm.GetByID(r.Context(), txID)
	if err != nil || t == nil || t.RedirectURL == "" {
		WriteError(w, anchorerrors.NotFound("http", "transaction not found", nil))
		return
	}
	target, parseErr := url.Parse(t.RedirectURL)
	if parseErr != nil {
		WriteError(w, anchorerrors.Internal("http", "invalid stored redirect URL", parseErr))
		return
	}
	qv := target.Query()
	qv.Set("transaction_id", txID)
	qv.Set("token", token)
	target.RawQuery = qv.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

type completeRequest struct {
	TransactionID string `json:"transaction_id"`
	Token         string `json:"token"`
}

type completeResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// decodeCompleteRequest fills req from either a JSON or form-urlencoded
// body, matching the bodies the operator's interactive page may send
// back to the completion endpoint.
func decodeCompleteRequest(r *http.Request, req *completeRequest) error {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			return badRequestf("invalid JSON body")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return badRequestf("invalid form body")
	}
	req.TransactionID = r.PostFormValue("transaction_id")
	req.Token = r.PostFormValue("token")
	return nil
}

func (m *SEP24Module) interactiveComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeCompleteRequest(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	t, err := m.tm.CompleteInteractive(r.Context(), req.TransactionID, req.Token)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, completeResponse{Success: true, Status: string(t.Status)})
}

func (m *SEP24Module) moreInfo(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	t, err := m.tm.GetByID(r.Context(), id)
	if err != nil || t == nil {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}
	html, err := m.tm.RenderMoreInfo(r.Context(), t)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}
