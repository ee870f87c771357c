package anchor

import "strings"

// AssetLifecycle is the operator-declared status of an asset.
type AssetLifecycle string

const (
	AssetLive    AssetLifecycle = "live"
	AssetTest    AssetLifecycle = "test"
	AssetDead    AssetLifecycle = "dead"
	AssetPrivate AssetLifecycle = "private"
)

// RequiredField describes one entry of an operation's required-field
// catalogue (spec.md §3).
type RequiredField struct {
	Description string
	Optional    bool
	Choices     []string
}

// OperationProfile is one of an asset's two operation profiles (deposit
// or withdraw).
type OperationProfile struct {
	Enabled        bool
	MinAmount      *float64
	MaxAmount      *float64
	FeeFixed       *float64
	FeePercent     *float64
	RequiredFields map[string]RequiredField
}

// Asset is the capability record keyed by asset code (spec.md §3).
// Code "native" (or its alias "XLM") denotes the chain token.
type Asset struct {
	Code            string
	Issuer          string
	DisplayName     string
	Description     string
	DisplayDecimals int // default 7
	Lifecycle       AssetLifecycle
	Deposit         OperationProfile
	Withdraw        OperationProfile
}

// IsNative reports whether code denotes the chain token, matching it
// case-sensitively against "native" or "XLM" per spec.md §3/§4.1.
func IsNative(code string) bool {
	return code == "native" || code == "XLM"
}

// NormalizeAssetCode folds XLM to the canonical "native" literal used in
// wire output, leaving every other code unchanged.
func NormalizeAssetCode(code string) string {
	if IsNative(code) {
		return "native"
	}
	return code
}

// AssetSet is a case-insensitive lookup of configured assets, keyed by
// asset code (spec.md §4.3 "Asset validation": "usdc" matches "USDC").
type AssetSet struct {
	byUpper map[string]*Asset
	ordered []*Asset
}

// NewAssetSet builds a lookup set from a list of assets, preserving
// configuration order for discovery-document rendering (spec.md §4.1).
func NewAssetSet(assets []*Asset) *AssetSet {
	s := &AssetSet{byUpper: make(map[string]*Asset, len(assets))}
	for _, a := range assets {
		s.byUpper[strings.ToUpper(a.Code)] = a
		s.ordered = append(s.ordered, a)
	}
	return s
}

// Lookup finds an asset by code, case-insensitively.
func (s *AssetSet) Lookup(code string) (*Asset, bool) {
	a, ok := s.byUpper[strings.ToUpper(code)]
	return a, ok
}

// All returns assets in configuration order.
func (s *AssetSet) All() []*Asset {
	return s.ordered
}

// Len reports the number of configured assets.
func (s *AssetSet) Len() int {
	return len(s.ordered)
}

// DisplayDecimalsOrDefault returns a's configured decimals, defaulting
// to 7 per spec.md §3.
func (a *Asset) DisplayDecimalsOrDefault() int {
	if a.DisplayDecimals > 0 {
		return a.DisplayDecimals
	}
	return 7
}
