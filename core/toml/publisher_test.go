package toml

import (
	"strings"
	"testing"

	"github.com/quasaranchor/anchor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssets() *anchor.AssetSet {
	return anchor.NewAssetSet([]*anchor.Asset{
		{
			Code: "USDC", Issuer: "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5",
			DisplayName: "USD Coin", Description: "test USDC", DisplayDecimals: 2,
			Lifecycle: anchor.AssetTest,
		},
		{Code: "XLM", Lifecycle: anchor.AssetLive},
	})
}

func baseConfig() Config {
	return Config{
		SigningKey:        "GSIGNERXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		NetworkPassphrase: "Test SDF Network ; September 2015",
		Domain:            "example.com",
		Assets:            testAssets(),
	}
}

func TestPublisherRendersRequiredPairFirst(t *testing.T) {
	p := NewPublisher(baseConfig())
	doc := p.Render()
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	require.True(t, len(lines) >= 2)
	assert.True(t, strings.HasPrefix(lines[0], "SIGNING_KEY="))
	assert.True(t, strings.HasPrefix(lines[1], "NETWORK_PASSPHRASE="))
}

func TestPublisherMountTogglingP8(t *testing.T) {
	p := NewPublisher(baseConfig())
	p.SetMounts(MountSet{Auth: true})
	doc := p.Render()
	assert.Contains(t, doc, "WEB_AUTH_ENDPOINT")
	assert.NotContains(t, doc, "TRANSFER_SERVER_SEP0024")
	assert.NotContains(t, doc, "TRANSFER_SERVER=")

	p.SetMounts(MountSet{Auth: true, SEP24: true})
	doc = p.Render()
	assert.Contains(t, doc, "TRANSFER_SERVER_SEP0024")
}

func TestPublisherCacheInvalidatesOnMountChange(t *testing.T) {
	p := NewPublisher(baseConfig())
	first := p.Render()
	second := p.Render()
	assert.Equal(t, first, second)

	p.SetMounts(MountSet{SEP6: true})
	third := p.Render()
	assert.NotEqual(t, first, third)

	p.SetMounts(MountSet{SEP6: true})
	fourth := p.Render()
	assert.Equal(t, third, fourth)
}

func TestPublisherNativeNormalizationP9(t *testing.T) {
	p := NewPublisher(baseConfig())
	doc := p.Render()
	assert.Contains(t, doc, `code="native"`)
	assert.NotContains(t, doc, `code="XLM"`)

	currencyCount := strings.Count(doc, "[[CURRENCIES]]")
	assert.Equal(t, 2, currencyCount)
}

func TestPublisherAssetStatusDerivation(t *testing.T) {
	cfg := baseConfig()
	cfg.Production = false
	cfg.Assets = anchor.NewAssetSet([]*anchor.Asset{
		{Code: "USDC", Lifecycle: anchor.AssetLive},
		{Code: "BTC", Lifecycle: anchor.AssetDead},
		{Code: "ETH"},
	})
	p := NewPublisher(cfg)
	doc := p.Render()
	assert.Contains(t, doc, `status="live"`)
	assert.Contains(t, doc, `status="test"`)

	btcIdx := strings.Index(doc, `code="BTC"`)
	nextSection := strings.Index(doc[btcIdx:], "[[CURRENCIES]]")
	var btcBlock string
	if nextSection == -1 {
		btcBlock = doc[btcIdx:]
	} else {
		btcBlock = doc[btcIdx : btcIdx+nextSection]
	}
	assert.NotContains(t, btcBlock, "status=")
}

func TestPublisherEscapesSpecialCharacters(t *testing.T) {
	cfg := baseConfig()
	cfg.Meta = &OrgDoc{Name: "Quotes \"R\" Us\nLine2\tTabbed"}
	p := NewPublisher(cfg)
	doc := p.Render()
	assert.Contains(t, doc, `org_name="Quotes \"R\" Us\nLine2\tTabbed"`)
}

func TestPublisherHTTPSchemeForLocalhost(t *testing.T) {
	cfg := baseConfig()
	cfg.Domain = "localhost:8080"
	p := NewPublisher(cfg)
	p.SetMounts(MountSet{Auth: true})
	doc := p.Render()
	assert.Contains(t, doc, "http://localhost:8080/auth")
}

func TestRoundTripP10(t *testing.T) {
	p := NewPublisher(baseConfig())
	p.SetMounts(MountSet{Auth: true, SEP24: true, SEP6: true})
	first := p.Render()

	parsedFirst := parseKeys(first)
	reEmitted := reEmit(parsedFirst)
	parsedSecond := parseKeys(reEmitted)

	assert.Equal(t, parsedFirst.keySet(), parsedSecond.keySet())
}

// reEmit builds a document from a ParsedDocument using the same encoding
// rules Publisher.render uses, standing in for "a standard parser" on
// the re-emit half of P10 since no independent TOML library performs
// anchor-flavored emission either.
func reEmit(doc *ParsedDocument) string {
	var b strings.Builder
	for k, v := range doc.Keys {
		writeString(&b, k, v)
	}
	for _, curr := range doc.Currencies {
		b.WriteString("[[CURRENCIES]]\n")
		for k, v := range curr {
			writeString(&b, k, v)
		}
	}
	return b.String()
}
