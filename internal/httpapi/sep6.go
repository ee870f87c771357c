package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/engine"
	anchorerrors "github.com/quasaranchor/anchor/errors"
	"github.com/quasaranchor/anchor/internal/metrics"
)

// SEP6Module mounts the programmatic transfer surface (spec.md §6.1
// "SEP-6").
type SEP6Module struct {
	tm     *engine.TransferManager
	auth   *engine.AuthIssuer
	assets *anchor.AssetSet
}

// NewSEP6Module builds a SEP6Module. Every route but GET /sep6/info
// requires a bearer token per spec.md §4.5.
func NewSEP6Module(tm *engine.TransferManager, auth *engine.AuthIssuer, assets *anchor.AssetSet) *SEP6Module {
	return &SEP6Module{tm: tm, auth: auth, assets: assets}
}

// Register mounts the SEP-6 route group.
func (m *SEP6Module) Register(r chi.Router) {
	r.Get("/sep6/info", m.info)

	r.Group(func(r chi.Router) {
		r.Use(m.auth.RequireAuth)
		r.Get("/sep6/deposit", m.deposit)
		r.Get("/sep6/withdraw", m.withdraw)
	})
}

type sep6AssetInfo struct {
	Enabled                bool                             `json:"enabled"`
	AuthenticationRequired bool                             `json:"authentication_required"`
	MinAmount              *float64                         `json:"min_amount,omitempty"`
	MaxAmount              *float64                         `json:"max_amount,omitempty"`
	FeeFixed               *float64                         `json:"fee_fixed,omitempty"`
	FeePercent             *float64                         `json:"fee_percent,omitempty"`
	RequiredFields         map[string]anchor.RequiredField  `json:"fields,omitempty"`
}

type sep6InfoResponse struct {
	Deposit  map[string]sep6AssetInfo `json:"deposit"`
	Withdraw map[string]sep6AssetInfo `json:"withdraw"`
}

func (m *SEP6Module) info(w http.ResponseWriter, r *http.Request) {
	resp := sep6InfoResponse{
		Deposit:  make(map[string]sep6AssetInfo),
		Withdraw: make(map[string]sep6AssetInfo),
	}
	for _, asset := range m.assets.All() {
		code := anchor.NormalizeAssetCode(asset.Code)
		resp.Deposit[code] = sep6AssetInfo{
			Enabled: asset.Deposit.Enabled, AuthenticationRequired: true,
			MinAmount: asset.Deposit.MinAmount, MaxAmount: asset.Deposit.MaxAmount,
			FeeFixed: asset.Deposit.FeeFixed, FeePercent: asset.Deposit.FeePercent, RequiredFields: asset.Deposit.RequiredFields,
		}
		resp.Withdraw[code] = sep6AssetInfo{
			Enabled: asset.Withdraw.Enabled, AuthenticationRequired: true,
			MinAmount: asset.Withdraw.MinAmount, MaxAmount: asset.Withdraw.MaxAmount,
			FeeFixed: asset.Withdraw.FeeFixed, FeePercent: asset.Withdraw.FeePercent, RequiredFields: asset.Withdraw.RequiredFields,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

type depositResponse struct {
	ID         string         `json:"id"`
	How        string         `json:"how"`
	ETA        int            `json:"eta,omitempty"`
	MinAmount  *float64       `json:"min_amount,omitempty"`
	MaxAmount  *float64       `json:"max_amount,omitempty"`
	FeeFixed   *float64       `json:"fee_fixed,omitempty"`
	FeePercent *float64       `json:"fee_percent,omitempty"`
	ExtraInfo  map[string]any `json:"extra_info,omitempty"`
}

func (m *SEP6Module) deposit(w http.ResponseWriter, r *http.Request) {
	claims, ok := engine.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, anchorerrors.Unauthorized("http", "authentication required", nil))
		return
	}
	q := r.URL.Query()
	result, err := m.tm.InitiateDepositProgrammatic(r.Context(), engine.DepositProgrammaticRequest{
		Account:   claims.Subject,
		AssetCode: q.Get("asset_code"),
		Memo:      q.Get("memo"),
		MemoType:  q.Get("memo_type"),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	metrics.TransfersInitiatedTotal.WithLabelValues(string(anchor.KindDeposit), string(anchor.ModeProgrammatic)).Inc()
	WriteJSON(w, http.StatusOK, depositResponse{
		ID: result.ID, How: result.How, ETA: result.ETA,
		MinAmount: result.MinAmount, MaxAmount: result.MaxAmount,
		FeeFixed: result.FeeFixed, FeePercent: result.FeePercent, ExtraInfo: result.ExtraInfo,
	})
}

type withdrawResponse struct {
	AccountID  string   `json:"account_id"`
	MemoType   string   `json:"memo_type,omitempty"`
	Memo       string   `json:"memo,omitempty"`
	ID         string   `json:"id"`
	ETA        int      `json:"eta,omitempty"`
	MinAmount  *float64 `json:"min_amount,omitempty"`
	MaxAmount  *float64 `json:"max_amount,omitempty"`
	FeeFixed   *float64 `json:"fee_fixed,omitempty"`
	FeePercent *float64 `json:"fee_percent,omitempty"`
}

func (m *SEP6Module) withdraw(w http.ResponseWriter, r *http.Request) {
	claims, ok := engine.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, anchorerrors.Unauthorized("http", "authentication required", nil))
		return
	}
	q := r.URL.Query()
	result, err := m.tm.InitiateWithdrawalProgrammatic(r.Context(), engine.WithdrawalProgrammaticRequest{
		Account:   claims.Subject,
		AssetCode: q.Get("asset_code"),
		Type:      q.Get("type"),
		Dest:      q.Get("dest"),
		DestExtra: q.Get("dest_extra"),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	metrics.TransfersInitiatedTotal.WithLabelValues(string(anchor.KindWithdrawal), string(anchor.ModeProgrammatic)).Inc()
	WriteJSON(w, http.StatusOK, withdrawResponse{
		AccountID: result.AccountID, MemoType: result.MemoType, Memo: result.Memo, ID: result.ID, ETA: result.ETA,
		MinAmount: result.MinAmount, MaxAmount: result.MaxAmount, FeeFixed: result.FeeFixed, FeePercent: result.FeePercent,
	})
}
