// Package config loads the operator configuration surface (spec.md
// §6.3) from YAML, applies environment-variable overrides the way the
// teacher's deployment config does, and validates it with struct tags
// before the server wires any component against it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/stellar/go/keypair"
	"gopkg.in/yaml.v3"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/core/toml"
)

// Network is the operator's configured Stellar network (spec.md §6.3:
// "network ∈ {public, testnet, futurenet, standalone, mainnet}").
type Network string

const (
	NetworkPublic     Network = "public"
	NetworkMainnet    Network = "mainnet"
	NetworkTestnet    Network = "testnet"
	NetworkFuturenet  Network = "futurenet"
	NetworkStandalone Network = "standalone"
)

// Passphrases for each named network. public/mainnet both select the
// production passphrase (spec.md §6.3).
const (
	publicPassphrase     = "Public Global Stellar Network ; September 2015"
	testnetPassphrase    = "Test SDF Network ; September 2015"
	futurenetPassphrase  = "Test SDF Future Network ; October 2022"
	standalonePassphrase = "Standalone Network ; February 2017"
)

// Passphrase returns n's network passphrase.
func (n Network) Passphrase() string {
	switch n {
	case NetworkPublic, NetworkMainnet:
		return publicPassphrase
	case NetworkFuturenet:
		return futurenetPassphrase
	case NetworkStandalone:
		return standalonePassphrase
	default:
		return testnetPassphrase
	}
}

// IsProduction reports whether n is one of the production aliases,
// feeding the discovery document's default asset-status rule (spec.md
// §4.1 "Status derivation").
func (n Network) IsProduction() bool {
	return n == NetworkPublic || n == NetworkMainnet
}

// AssetConfig is one entry of the configured asset map (spec.md §3,
// §6.3 "assets map, non-empty").
type AssetConfig struct {
	Issuer          string                 `yaml:"issuer"`
	DisplayName     string                 `yaml:"display_name"`
	Description     string                 `yaml:"description"`
	DisplayDecimals int                    `yaml:"display_decimals"`
	Lifecycle       string                 `yaml:"lifecycle"`
	Deposit         OperationProfileConfig `yaml:"deposit"`
	Withdraw        OperationProfileConfig `yaml:"withdraw"`
}

// OperationProfileConfig mirrors anchor.OperationProfile for YAML
// decoding.
type OperationProfileConfig struct {
	Enabled        bool                       `yaml:"enabled"`
	MinAmount      *float64                   `yaml:"min_amount"`
	MaxAmount      *float64                   `yaml:"max_amount"`
	FeeFixed       *float64                   `yaml:"fee_fixed"`
	FeePercent     *float64                   `yaml:"fee_percent"`
	RequiredFields map[string]RequiredFieldConfig `yaml:"required_fields"`
}

// RequiredFieldConfig mirrors anchor.RequiredField for YAML decoding.
type RequiredFieldConfig struct {
	Description string   `yaml:"description"`
	Optional    bool     `yaml:"optional"`
	Choices     []string `yaml:"choices"`
}

// MetaConfig mirrors toml.OrgDoc for YAML decoding (spec.md §6.3 "meta
// documentation block").
type MetaConfig struct {
	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	Description     string `yaml:"description"`
	Logo            string `yaml:"logo"`
	PhysicalAddress string `yaml:"physical_address"`
	OfficialEmail   string `yaml:"official_email"`
	SupportEmail    string `yaml:"support_email"`
}

// StoreConfig selects the storage port implementation (spec.md §6.3
// "store (optional; defaults to in-memory)").
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=memory"`
}

// SettlementConfig configures the optional out-of-scope settlement
// reporter (SPEC_FULL §11.1): a Horizon payment stream that reports
// matched payments back into the transfer engine. Absent or disabled by
// default — the core never watches the chain itself.
type SettlementConfig struct {
	Enabled             bool   `yaml:"enabled"`
	HorizonURL          string `yaml:"horizon_url" validate:"required_if=Enabled true"`
	DistributionAccount string `yaml:"distribution_account" validate:"required_if=Enabled true"`

	// ReconnectInitialBackoff/ReconnectMaxBackoff tune the observer's
	// exponential reconnect delay (observer.WithReconnectBackoff) as Go
	// duration strings, e.g. "1s"/"60s". Both optional; unset keeps the
	// observer's own 1s/60s defaults.
	ReconnectInitialBackoff string `yaml:"reconnect_initial_backoff"`
	ReconnectMaxBackoff     string `yaml:"reconnect_max_backoff"`
}

// ReconnectBackoff parses ReconnectInitialBackoff/ReconnectMaxBackoff,
// falling back to the observer package's own 1s/60s defaults when unset.
func (s SettlementConfig) ReconnectBackoff() (time.Duration, time.Duration, error) {
	initial := time.Second
	max := 60 * time.Second
	if s.ReconnectInitialBackoff != "" {
		d, err := time.ParseDuration(s.ReconnectInitialBackoff)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid settlement.reconnect_initial_backoff: %w", err)
		}
		initial = d
	}
	if s.ReconnectMaxBackoff != "" {
		d, err := time.ParseDuration(s.ReconnectMaxBackoff)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid settlement.reconnect_max_backoff: %w", err)
		}
		max = d
	}
	return initial, max, nil
}

// Config is the full operator configuration surface: spec.md §6.3's
// domain fields plus the deployment-only fields SPEC_FULL.md §10.3
// adds (listen address, log mode, metrics address, interactive base
// URL) which carry no domain semantics.
type Config struct {
	Domain     string                 `yaml:"domain" validate:"required"`
	SecretKey  string                 `yaml:"secret_key" validate:"required,stellar_secret"`
	JWTSecret  string                 `yaml:"jwt_secret" validate:"required,min_octets32"`
	Network    Network                `yaml:"network" validate:"required,oneof=public testnet futurenet standalone mainnet"`
	Assets     map[string]AssetConfig `yaml:"assets" validate:"required,min=1,dive"`
	Meta       *MetaConfig            `yaml:"meta"`
	Store      StoreConfig            `yaml:"store"`
	Settlement SettlementConfig       `yaml:"settlement"`

	ListenAddr         string `yaml:"listen_addr"`
	LogLevel           string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogEnv             string `yaml:"log_env" validate:"omitempty,oneof=dev prod"`
	MetricsAddr        string `yaml:"metrics_addr"`
	InteractiveBaseURL string `yaml:"interactive_base_url"`

	// HorizonURL, when set, enables weighted-multisig verification during
	// SEP-10 challenge verification (spec.md §4.2 step 2) via a bounded,
	// circuit-breaker-guarded account lookup. Empty means master-key-only
	// verification.
	HorizonURL string `yaml:"horizon_url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("min_octets32", validateMinOctets32)
	_ = v.RegisterValidation("stellar_secret", validateStellarSecret)
	return v
}

func validateMinOctets32(fl validator.FieldLevel) bool {
	return len([]byte(fl.Field().String())) >= 32
}

func validateStellarSecret(fl validator.FieldLevel) bool {
	_, err := keypair.ParseFull(fl.Field().String())
	return err == nil
}

// Load loads a .env file from the working directory if one exists,
// reads path as YAML, applies environment-variable overrides, fills
// deployment defaults,
// and validates the result — the teacher's Load→applyEnvOverrides→
// Validate pipeline.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogEnv == "" {
		c.LogEnv = "dev"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("ANCHOR_DOMAIN"); ok {
		c.Domain = v
	}
	if v, ok := getEnvStr("ANCHOR_SECRET_KEY"); ok {
		c.SecretKey = v
	}
	if v, ok := getEnvStr("ANCHOR_JWT_SECRET"); ok {
		c.JWTSecret = v
	}
	if v, ok := getEnvStr("ANCHOR_NETWORK"); ok {
		c.Network = Network(strings.ToLower(v))
	}
	if v, ok := getEnvStr("ANCHOR_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := getEnvStr("ANCHOR_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnvStr("ANCHOR_LOG_ENV"); ok {
		c.LogEnv = strings.ToLower(v)
	}
	if v, ok := getEnvStr("ANCHOR_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := getEnvStr("ANCHOR_INTERACTIVE_BASE_URL"); ok {
		c.InteractiveBaseURL = v
	}
	if v, ok := getEnvStr("ANCHOR_HORIZON_URL"); ok {
		c.HorizonURL = v
	}
	if v, ok := getEnvStr("ANCHOR_STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := getEnvStr("ANCHOR_SETTLEMENT_ENABLED"); ok {
		c.Settlement.Enabled = strings.EqualFold(v, "true")
	}
	if v, ok := getEnvStr("ANCHOR_SETTLEMENT_HORIZON_URL"); ok {
		c.Settlement.HorizonURL = v
	}
	if v, ok := getEnvStr("ANCHOR_SETTLEMENT_DISTRIBUTION_ACCOUNT"); ok {
		c.Settlement.DistributionAccount = v
	}
	if v, ok := getEnvStr("ANCHOR_SETTLEMENT_RECONNECT_INITIAL_BACKOFF"); ok {
		c.Settlement.ReconnectInitialBackoff = v
	}
	if v, ok := getEnvStr("ANCHOR_SETTLEMENT_RECONNECT_MAX_BACKOFF"); ok {
		c.Settlement.ReconnectMaxBackoff = v
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// Validate runs struct-tag validation plus the per-asset lifecycle enum
// check tags cannot express. Per-asset numeric fields (amounts, fees,
// display decimals) are not range-checked.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for code, a := range c.Assets {
		switch anchor.AssetLifecycle(strings.ToLower(a.Lifecycle)) {
		case "", anchor.AssetLive, anchor.AssetTest, anchor.AssetDead, anchor.AssetPrivate:
		default:
			return fmt.Errorf("invalid config: asset %q: unknown lifecycle %q", code, a.Lifecycle)
		}
	}
	return nil
}

// NetworkPassphrase returns the passphrase for c.Network.
func (c *Config) NetworkPassphrase() string {
	return c.Network.Passphrase()
}

// SigningPublicKey derives the operator's public key from SecretKey.
// Validate already confirmed SecretKey parses.
func (c *Config) SigningPublicKey() string {
	kp, _ := keypair.ParseFull(c.SecretKey)
	return kp.Address()
}

// AssetSet builds the domain anchor.AssetSet from the configured asset
// map, keyed by the map key (not Issuer) per spec.md §3.
func (c *Config) AssetSet() *anchor.AssetSet {
	assets := make([]*anchor.Asset, 0, len(c.Assets))
	for code, a := range c.Assets {
		assets = append(assets, &anchor.Asset{
			Code:            code,
			Issuer:          a.Issuer,
			DisplayName:     a.DisplayName,
			Description:     a.Description,
			DisplayDecimals: a.DisplayDecimals,
			Lifecycle:       anchor.AssetLifecycle(strings.ToLower(a.Lifecycle)),
			Deposit:         toOperationProfile(a.Deposit),
			Withdraw:        toOperationProfile(a.Withdraw),
		})
	}
	return anchor.NewAssetSet(assets)
}

func toOperationProfile(p OperationProfileConfig) anchor.OperationProfile {
	fields := make(map[string]anchor.RequiredField, len(p.RequiredFields))
	for name, f := range p.RequiredFields {
		fields[name] = anchor.RequiredField{
			Description: f.Description,
			Optional:    f.Optional,
			Choices:     f.Choices,
		}
	}
	return anchor.OperationProfile{
		Enabled:        p.Enabled,
		MinAmount:      p.MinAmount,
		MaxAmount:      p.MaxAmount,
		FeeFixed:       p.FeeFixed,
		FeePercent:     p.FeePercent,
		RequiredFields: fields,
	}
}

// OrgDoc converts the optional Meta block to toml.OrgDoc, or nil if
// unconfigured (spec.md §4.1 "the documentation block iff configured").
func (c *Config) OrgDoc() *toml.OrgDoc {
	if c.Meta == nil {
		return nil
	}
	return &toml.OrgDoc{
		Name:            c.Meta.Name,
		URL:             c.Meta.URL,
		Description:     c.Meta.Description,
		Logo:            c.Meta.Logo,
		PhysicalAddress: c.Meta.PhysicalAddress,
		OfficialEmail:   c.Meta.OfficialEmail,
		SupportEmail:    c.Meta.SupportEmail,
	}
}

// PublisherConfig builds the toml.Config this operator configuration
// drives the discovery document with.
func (c *Config) PublisherConfig() toml.Config {
	return toml.Config{
		SigningKey:        c.SigningPublicKey(),
		NetworkPassphrase: c.NetworkPassphrase(),
		Domain:            c.Domain,
		Production:        c.Network.IsProduction(),
		Meta:              c.OrgDoc(),
		Assets:            c.AssetSet(),
	}
}
