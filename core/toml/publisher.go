package toml

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/quasaranchor/anchor"
)

// Config carries the operator settings the discovery document is
// rendered from: the signing key/passphrase pair, the domain used to
// derive endpoint URLs (spec.md §4.1 "URL derivation"), whether the
// configured network is the production one (for default asset status),
// the optional documentation block, and the configured asset set.
type Config struct {
	SigningKey        string
	NetworkPassphrase string
	Domain            string
	Production        bool
	Meta              *OrgDoc
	Assets            *anchor.AssetSet
}

// Publisher renders the SEP-1 discovery document once and serves the
// cached bytes until the mounted-module set changes (spec.md §4.1
// "Caching": "Mutation of the config or the mounted-module set
// invalidates the cache").
type Publisher struct {
	config Config

	mu       sync.Mutex
	mounts   MountSet
	cached   string
	hasCache bool
}

// NewPublisher builds a Publisher with no modules mounted yet; call
// SetMounts as each router group is mounted.
func NewPublisher(config Config) *Publisher {
	return &Publisher{config: config}
}

// SetMounts records which modules are mounted, invalidating the
// rendered-document cache if the set actually changed.
func (p *Publisher) SetMounts(mounts MountSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mounts.Equal(mounts) {
		return
	}
	p.mounts = mounts
	p.hasCache = false
}

// Render returns the cached discovery document, building and caching it
// on first call or after an invalidation.
func (p *Publisher) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasCache {
		return p.cached
	}
	p.cached = p.render()
	p.hasCache = true
	return p.cached
}

func (p *Publisher) render() string {
	var b strings.Builder

	writeString(&b, "SIGNING_KEY", p.config.SigningKey)
	writeString(&b, "NETWORK_PASSPHRASE", p.config.NetworkPassphrase)

	scheme := anchor.SchemeForDomain(p.config.Domain)
	if p.mounts.Auth {
		writeString(&b, "WEB_AUTH_ENDPOINT", endpointURL(scheme, p.config.Domain, "/auth"))
	}
	if p.mounts.SEP24 {
		writeString(&b, "TRANSFER_SERVER_SEP0024", endpointURL(scheme, p.config.Domain, "/sep24"))
	}
	if p.mounts.SEP6 {
		writeString(&b, "TRANSFER_SERVER", endpointURL(scheme, p.config.Domain, "/sep6"))
	}

	if m := p.config.Meta; m != nil {
		b.WriteString("\n[DOCUMENTATION]\n")
		writeStringIfNonEmpty(&b, "org_name", m.Name)
		writeStringIfNonEmpty(&b, "org_url", m.URL)
		writeStringIfNonEmpty(&b, "org_description", m.Description)
		writeStringIfNonEmpty(&b, "org_logo", m.Logo)
		writeStringIfNonEmpty(&b, "org_physical_address", m.PhysicalAddress)
		writeStringIfNonEmpty(&b, "org_official_email", m.OfficialEmail)
		writeStringIfNonEmpty(&b, "org_support_email", m.SupportEmail)
	}

	if p.config.Assets != nil {
		for _, asset := range p.config.Assets.All() {
			b.WriteString("\n[[CURRENCIES]]\n")
			writeString(&b, "code", anchor.NormalizeAssetCode(asset.Code))
			writeStringIfNonEmpty(&b, "issuer", asset.Issuer)
			if status := assetStatus(asset, p.config.Production); status != "" {
				writeString(&b, "status", status)
			}
			writeInt(&b, "display_decimals", asset.DisplayDecimalsOrDefault())
			writeStringIfNonEmpty(&b, "name", asset.DisplayName)
			writeStringIfNonEmpty(&b, "desc", asset.Description)
		}
	}

	return b.String()
}

// assetStatus implements spec.md §4.1 "Status derivation per asset".
func assetStatus(asset *anchor.Asset, production bool) string {
	switch asset.Lifecycle {
	case anchor.AssetLive, anchor.AssetTest:
		return string(asset.Lifecycle)
	case anchor.AssetDead, anchor.AssetPrivate:
		return ""
	default:
		if production {
			return string(anchor.AssetLive)
		}
		return string(anchor.AssetTest)
	}
}

func endpointURL(scheme, domain, path string) string {
	return fmt.Sprintf("%s://%s%s", scheme, domain, path)
}

func writeString(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s=%s\n", key, quoteString(value))
}

func writeStringIfNonEmpty(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	writeString(b, key, value)
}

func writeInt(b *strings.Builder, key string, value int) {
	fmt.Fprintf(b, "%s=%d\n", key, value)
}

// quoteString applies spec.md §4.1's string encoding rule: double-quoted
// with backslash escapes for backslash, double quote, newline, carriage
// return, and tab.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Handler serves the rendered document as GET /.well-known/stellar.toml
// (spec.md §6.1): plain text, CORS-open, cached per Render.
func (p *Publisher) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(p.Render()))
	}
}
