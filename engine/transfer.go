package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/quasaranchor/anchor"
	corecrypto "github.com/quasaranchor/anchor/core/crypto"
	anchorerrors "github.com/quasaranchor/anchor/errors"
)

// interactiveTokenTTL is spec.md §4.3's "Interactive token: ... TTL 15
// minutes".
const interactiveTokenTTL = 15 * time.Minute

// Config carries the transfer engine's deployment-specific settings.
type Config struct {
	Domain         string // used to derive the more_info URL's scheme+host
	SigningAccount string // the operator account wallets are told to pay into
}

// SEP24Hooks are the operator-supplied collaborators the SEP-24 mount
// requires (spec.md §6.4): a base URL for the hosted interactive page,
// plus optional overrides for the initiation responses, completion, and
// the status page.
type SEP24Hooks struct {
	InteractiveURL        string // required, non-empty
	OnDeposit             func(ctx context.Context, req *DepositInteractiveRequest) (map[string]any, error)
	OnWithdraw            func(ctx context.Context, req *WithdrawalInteractiveRequest) (map[string]any, error)
	OnInteractiveComplete func(ctx context.Context, t *anchor.Transfer) (map[string]any, error)
	RenderMoreInfo        func(ctx context.Context, t *anchor.Transfer) (string, error)
}

// SEP6Hooks are the operator-supplied collaborators the SEP-6 mount
// accepts (spec.md §6.4); absent hooks fall back to the spec's default
// messages.
type SEP6Hooks struct {
	OnDeposit  func(ctx context.Context, req *DepositProgrammaticRequest) (*DepositHookResult, error)
	OnWithdraw func(ctx context.Context, req *WithdrawalProgrammaticRequest) (*WithdrawalHookResult, error)
}

// DepositHookResult lets an onDeposit hook override the default deposit
// instructions and attach extra_info fields.
type DepositHookResult struct {
	How       string
	ExtraInfo map[string]any
}

// WithdrawalHookResult lets an onWithdraw hook override the default
// random numeric memo.
type WithdrawalHookResult struct {
	Memo     string
	MemoType string
}

// TransferManager is the SEP-24/SEP-6 lifecycle engine (spec.md §4.3).
type TransferManager struct {
	store  anchor.TransferStore
	assets *anchor.AssetSet
	config Config
	hooks  *HookRegistry
	sep24  SEP24Hooks
	sep6   SEP6Hooks
}

// NewTransferManager builds a TransferManager. hooks may be nil (an
// empty registry is used).
func NewTransferManager(store anchor.TransferStore, assets *anchor.AssetSet, config Config, hooks *HookRegistry, sep24 SEP24Hooks, sep6 SEP6Hooks) *TransferManager {
	if hooks == nil {
		hooks = NewHookRegistry()
	}
	return &TransferManager{store: store, assets: assets, config: config, hooks: hooks, sep24: sep24, sep6: sep6}
}

// DepositInteractiveRequest initiates a SEP-24 deposit.
type DepositInteractiveRequest struct {
	Account   string
	AssetCode string
	Amount    string
	Memo      string
	MemoType  string
	Metadata  map[string]any
}

// DepositInteractiveResult matches the wire shape of
// POST /sep24/transactions/deposit/interactive.
type DepositInteractiveResult struct {
	ID   string
	Type string
	URL  string
}

// WithdrawalInteractiveRequest initiates a SEP-24 withdrawal.
type WithdrawalInteractiveRequest struct {
	Account   string
	AssetCode string
	Amount    string
	Dest      string
	DestExtra string
	Metadata  map[string]any
}

// WithdrawalInteractiveResult matches the wire shape of
// POST /sep24/transactions/withdraw/interactive.
type WithdrawalInteractiveResult struct {
	ID   string
	Type string
	URL  string
}

// DepositProgrammaticRequest initiates a SEP-6 deposit.
type DepositProgrammaticRequest struct {
	Account   string
	AssetCode string
	Memo      string
	MemoType  string
	Metadata  map[string]any
}

// DepositProgrammaticResult matches the wire shape of GET /sep6/deposit.
type DepositProgrammaticResult struct {
	ID         string
	How        string
	ETA        int
	MinAmount  *float64
	MaxAmount  *float64
	FeeFixed   *float64
	FeePercent *float64
	ExtraInfo  map[string]any
}

// WithdrawalProgrammaticRequest initiates a SEP-6 withdrawal.
type WithdrawalProgrammaticRequest struct {
	Account   string
	AssetCode string
	Type      string
	Dest      string
	DestExtra string
	Metadata  map[string]any
}

// WithdrawalProgrammaticResult matches the wire shape of GET /sep6/withdraw.
type WithdrawalProgrammaticResult struct {
	ID         string
	AccountID  string
	Memo       string
	MemoType   string
	ETA        int
	MinAmount  *float64
	MaxAmount  *float64
	FeeFixed   *float64
	FeePercent *float64
}

const (
	interactiveCustomerInfoNeeded = "interactive_customer_info_needed"
	depositETA                    = 5
	withdrawalETA                 = 5
)

func (tm *TransferManager) validateAsset(code string, kind anchor.TransferKind) (*anchor.Asset, error) {
	asset, ok := tm.assets.Lookup(code)
	if !ok {
		return nil, anchorerrors.BadRequest("engine", fmt.Sprintf("Asset %s not supported by anchor", code), nil)
	}
	profile := asset.Deposit
	if kind == anchor.KindWithdrawal {
		profile = asset.Withdraw
	}
	if !profile.Enabled {
		return nil, anchorerrors.BadRequest("engine", fmt.Sprintf("%s is disabled for asset %s", kind, code), nil)
	}
	return asset, nil
}

func (tm *TransferManager) moreInfoURL(id string) string {
	scheme := anchor.SchemeForDomain(tm.config.Domain)
	return fmt.Sprintf("%s://%s/sep24/transaction/more_info?id=%s", scheme, tm.config.Domain, id)
}

// redirectURL builds the /interactive redirect target, preserving
// transaction_id and token as literal, percent-encoded query parameters
// (spec.md §4.3 "Identifier and URL construction", §9 "Redirect endpoint").
func (tm *TransferManager) redirectURL(id, token string) (string, error) {
	if strings.TrimSpace(tm.sep24.InteractiveURL) == "" {
		return "", anchorerrors.Internal("engine", "interactive.url is not configured", nil)
	}
	base, err := url.Parse(tm.sep24.InteractiveURL)
	if err != nil {
		return "", anchorerrors.Internal("engine", "interactive.url is not a valid URL", err)
	}
	q := base.Query()
	q.Set("transaction_id", id)
	q.Set("token", token)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (tm *TransferManager) newInteractiveToken(now time.Time) (*anchor.InteractiveToken, error) {
	value, err := corecrypto.GenerateInteractiveToken()
	if err != nil {
		return nil, anchorerrors.Internal("engine", "failed to generate interactive token", err)
	}
	return &anchor.InteractiveToken{Value: value, CreatedAt: now, ExpiresAt: now.Add(interactiveTokenTTL)}, nil
}

// InitiateDepositInteractive begins a SEP-24 hosted deposit.
func (tm *TransferManager) InitiateDepositInteractive(ctx context.Context, req DepositInteractiveRequest) (*DepositInteractiveResult, error) {
	if strings.TrimSpace(req.Account) == "" || strings.TrimSpace(req.AssetCode) == "" {
		return nil, anchorerrors.BadRequest("engine", "account and asset_code are required", nil)
	}
	asset, err := tm.validateAsset(req.AssetCode, anchor.KindDeposit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := corecrypto.GenerateTransferID()
	token, err := tm.newInteractiveToken(now)
	if err != nil {
		return nil, err
	}
	redirect, err := tm.redirectURL(id, token.Value)
	if err != nil {
		return nil, err
	}

	t := &anchor.Transfer{
		ID: id, Kind: anchor.KindDeposit, Mode: anchor.ModeInteractive, Status: anchor.StatusIncomplete,
		AssetCode: anchor.NormalizeAssetCode(asset.Code), AssetIssuer: asset.Issuer,
		Account: req.Account, Amount: req.Amount, MemoType: req.MemoType, Memo: req.Memo,
		Interactive: token, RedirectURL: redirect, MoreInfoURL: tm.moreInfoURL(id),
		Metadata: req.Metadata, CreatedAt: now, UpdatedAt: now,
	}

	if tm.sep24.OnDeposit != nil {
		if _, err := tm.sep24.OnDeposit(ctx, &req); err != nil {
			return nil, wrapHookError(err)
		}
	}

	if err := tm.store.Create(ctx, t); err != nil {
		return nil, err
	}
	tm.hooks.Trigger(HookDepositInitiated, t)

	return &DepositInteractiveResult{ID: id, Type: interactiveCustomerInfoNeeded, URL: redirect}, nil
}

// InitiateWithdrawalInteractive begins a SEP-24 hosted withdrawal.
func (tm *TransferManager) InitiateWithdrawalInteractive(ctx context.Context, req WithdrawalInteractiveRequest) (*WithdrawalInteractiveResult, error) {
	if strings.TrimSpace(req.Account) == "" || strings.TrimSpace(req.AssetCode) == "" {
		return nil, anchorerrors.BadRequest("engine", "account and asset_code are required", nil)
	}
	if strings.TrimSpace(req.Dest) == "" {
		return nil, anchorerrors.BadRequest("engine", "dest is required", nil)
	}
	asset, err := tm.validateAsset(req.AssetCode, anchor.KindWithdrawal)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := corecrypto.GenerateTransferID()
	token, err := tm.newInteractiveToken(now)
	if err != nil {
		return nil, err
	}
	redirect, err := tm.redirectURL(id, token.Value)
	if err != nil {
		return nil, err
	}

	t := &anchor.Transfer{
		ID: id, Kind: anchor.KindWithdrawal, Mode: anchor.ModeInteractive, Status: anchor.StatusIncomplete,
		AssetCode: anchor.NormalizeAssetCode(asset.Code), AssetIssuer: asset.Issuer,
		Account: req.Account, Amount: req.Amount, Dest: req.Dest, DestExtra: req.DestExtra,
		Interactive: token, RedirectURL: redirect, MoreInfoURL: tm.moreInfoURL(id),
		Metadata: req.Metadata, CreatedAt: now, UpdatedAt: now,
	}

	if tm.sep24.OnWithdraw != nil {
		if _, err := tm.sep24.OnWithdraw(ctx, &req); err != nil {
			return nil, wrapHookError(err)
		}
	}

	if err := tm.store.Create(ctx, t); err != nil {
		return nil, err
	}
	tm.hooks.Trigger(HookWithdrawalInitiated, t)

	return &WithdrawalInteractiveResult{ID: id, Type: interactiveCustomerInfoNeeded, URL: redirect}, nil
}

// InitiateDepositProgrammatic begins a SEP-6 deposit, producing a
// how-to-pay instruction from the onDeposit hook or the spec's default.
func (tm *TransferManager) InitiateDepositProgrammatic(ctx context.Context, req DepositProgrammaticRequest) (*DepositProgrammaticResult, error) {
	if strings.TrimSpace(req.Account) == "" || strings.TrimSpace(req.AssetCode) == "" {
		return nil, anchorerrors.BadRequest("engine", "account and asset_code are required", nil)
	}
	asset, err := tm.validateAsset(req.AssetCode, anchor.KindDeposit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := corecrypto.GenerateTransferID()
	t := &anchor.Transfer{
		ID: id, Kind: anchor.KindDeposit, Mode: anchor.ModeProgrammatic, Status: anchor.StatusIncomplete,
		AssetCode: anchor.NormalizeAssetCode(asset.Code), AssetIssuer: asset.Issuer,
		Account: req.Account, MemoType: req.MemoType, Memo: req.Memo,
		MoreInfoURL: tm.moreInfoURL(id), Metadata: req.Metadata, CreatedAt: now, UpdatedAt: now,
	}

	how := fmt.Sprintf("send %s to %s", asset.Code, tm.config.SigningAccount)
	var extraInfo map[string]any
	if tm.sep6.OnDeposit != nil {
		hookResult, err := tm.sep6.OnDeposit(ctx, &req)
		if err != nil {
			return nil, wrapHookError(err)
		}
		if hookResult != nil {
			if hookResult.How != "" {
				how = hookResult.How
			}
			extraInfo = hookResult.ExtraInfo
		}
	}

	if err := tm.store.Create(ctx, t); err != nil {
		return nil, err
	}
	tm.hooks.Trigger(HookDepositInitiated, t)

	return &DepositProgrammaticResult{
		ID: id, How: how, ETA: depositETA,
		MinAmount: asset.Deposit.MinAmount, MaxAmount: asset.Deposit.MaxAmount,
		FeeFixed: asset.Deposit.FeeFixed, FeePercent: asset.Deposit.FeePercent,
		ExtraInfo: extraInfo,
	}, nil
}

// InitiateWithdrawalProgrammatic begins a SEP-6 withdrawal, producing a
// settlement memo from the onWithdraw hook or the spec's default random
// numeric memo.
func (tm *TransferManager) InitiateWithdrawalProgrammatic(ctx context.Context, req WithdrawalProgrammaticRequest) (*WithdrawalProgrammaticResult, error) {
	if strings.TrimSpace(req.Account) == "" || strings.TrimSpace(req.AssetCode) == "" {
		return nil, anchorerrors.BadRequest("engine", "account and asset_code are required", nil)
	}
	if strings.TrimSpace(req.Type) == "" {
		return nil, anchorerrors.BadRequest("engine", "type is required", nil)
	}
	if strings.TrimSpace(req.Dest) == "" {
		return nil, anchorerrors.BadRequest("engine", "dest is required", nil)
	}
	asset, err := tm.validateAsset(req.AssetCode, anchor.KindWithdrawal)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := corecrypto.GenerateTransferID()

	memo, memoType := "", "id"
	if tm.sep6.OnWithdraw != nil {
		hookResult, err := tm.sep6.OnWithdraw(ctx, &req)
		if err != nil {
			return nil, wrapHookError(err)
		}
		if hookResult != nil && hookResult.Memo != "" {
			memo, memoType = hookResult.Memo, hookResult.MemoType
		}
	}
	if memo == "" {
		memo, err = corecrypto.GenerateNumericMemo()
		if err != nil {
			return nil, anchorerrors.Internal("engine", "failed to generate withdrawal memo", err)
		}
	}

	t := &anchor.Transfer{
		ID: id, Kind: anchor.KindWithdrawal, Mode: anchor.ModeProgrammatic, Status: anchor.StatusIncomplete,
		AssetCode: anchor.NormalizeAssetCode(asset.Code), AssetIssuer: asset.Issuer,
		Account: req.Account, Dest: req.Dest, DestExtra: req.DestExtra, MemoType: memoType, Memo: memo,
		MoreInfoURL: tm.moreInfoURL(id), Metadata: req.Metadata, CreatedAt: now, UpdatedAt: now,
	}
	if err := tm.store.Create(ctx, t); err != nil {
		return nil, err
	}
	tm.hooks.Trigger(HookWithdrawalInitiated, t)

	return &WithdrawalProgrammaticResult{
		ID: id, AccountID: tm.config.SigningAccount, Memo: memo, MemoType: memoType, ETA: withdrawalETA,
		MinAmount: asset.Withdraw.MinAmount, MaxAmount: asset.Withdraw.MaxAmount,
		FeeFixed: asset.Withdraw.FeeFixed, FeePercent: asset.Withdraw.FeePercent,
	}, nil
}

// CompleteInteractive is spec.md §4.3's "Completion rule": the operator
// page reports back (id, token); a consumed-or-fail store mutation
// advances status atomically.
func (tm *TransferManager) CompleteInteractive(ctx context.Context, id, token string) (*anchor.Transfer, error) {
	existing, err := tm.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := nextOnCompleteInteractive(existing.Kind, existing.Status)

	updated, err := tm.store.CompleteInteractive(ctx, id, token, time.Now(), next)
	if err != nil {
		return nil, err
	}

	if tm.sep24.OnInteractiveComplete != nil {
		if _, err := tm.sep24.OnInteractiveComplete(ctx, updated); err != nil {
			return nil, wrapHookError(err)
		}
	}
	tm.hooks.Trigger(HookInteractiveCompleted, updated)
	tm.hooks.Trigger(HookTransferStatusChanged, updated)
	return updated, nil
}

// UpdateStatus is the operator-side status_update operation: it always
// sets status unconditionally, setting completed-at when the new status
// is terminal and clearing it otherwise (spec.md §4.3 "Status state
// machine").
func (tm *TransferManager) UpdateStatus(ctx context.Context, id string, status anchor.TransferStatus, onChainTxID, externalTxID, statusMsg *string) (*anchor.Transfer, error) {
	update := &anchor.TransferUpdate{
		Status:       &status,
		OnChainTxID:  onChainTxID,
		ExternalTxID: externalTxID,
		StatusMsg:    statusMsg,
	}
	var completedAt *time.Time
	if status.Terminal() {
		now := time.Now()
		completedAt = &now
	}
	update.CompletedAt = &completedAt

	updated, err := tm.store.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	tm.hooks.Trigger(HookTransferStatusChanged, updated)
	return updated, nil
}

// GetByID returns a transfer by its primary identifier.
func (tm *TransferManager) GetByID(ctx context.Context, id string) (*anchor.Transfer, error) {
	return tm.store.GetByID(ctx, id)
}

// GetByOnChainID returns a transfer by settlement tx hash, or nil if none matches.
func (tm *TransferManager) GetByOnChainID(ctx context.Context, txID string) (*anchor.Transfer, error) {
	return tm.store.GetByOnChainID(ctx, txID)
}

// GetByExternalID returns a transfer by off-chain settlement reference, or nil if none matches.
func (tm *TransferManager) GetByExternalID(ctx context.Context, extID string) (*anchor.Transfer, error) {
	return tm.store.GetByExternalID(ctx, extID)
}

// ListByAccount returns account's transfers per spec.md §4.4's filter-then-limit order.
func (tm *TransferManager) ListByAccount(ctx context.Context, account string, filters anchor.TransferFilters) ([]*anchor.Transfer, error) {
	return tm.store.ListByAccount(ctx, account, filters)
}

// RenderMoreInfo produces the HTML body for GET /transaction/more_info,
// delegating to the operator's hook when configured and falling back to
// a minimal default page when no hook is set or the hook fails
// (spec.md §6.1, §7 "the more_info page ... always succeeds").
func (tm *TransferManager) RenderMoreInfo(ctx context.Context, t *anchor.Transfer) (string, error) {
	if tm.sep24.RenderMoreInfo != nil {
		if html, err := tm.sep24.RenderMoreInfo(ctx, t); err == nil {
			return html, nil
		}
	}
	return fmt.Sprintf(
		"<!DOCTYPE html><html><body><p>id: %s</p><p>status: %s</p><p>kind: %s</p></body></html>",
		t.ID, t.Status, t.Kind,
	), nil
}

// wrapHookError distinguishes a structured error (passed through
// verbatim) from an unknown failure (wrapped as a 400-class opaque
// error with its message preserved), per spec.md §7/§9 "Hook errors".
func wrapHookError(err error) error {
	if _, ok := anchorerrors.AsError(err); ok {
		return err
	}
	return anchorerrors.BadRequest("hook", err.Error(), err)
}
