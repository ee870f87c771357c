package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "SAPCL3RTB7VB3VQXIVIM4P6AH5C7ZQDHY772GOCAWASACCFFWOMQVP4S"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "01234567890123456789012345678901"
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
    lifecycle: test
`
	path := writeConfig(t, body)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, "Test SDF Network ; September 2015", c.NetworkPassphrase())
	assert.Equal(t, 1, c.AssetSet().Len())
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "short"
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`
	path := writeConfig(t, body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadAccepts32OctetJWTSecretBoundary(t *testing.T) {
	secret := "12345678901234567890123456789012" // 32 octets
	require.Len(t, []byte(secret), 32)
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "` + secret + `"
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`
	path := writeConfig(t, body)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, secret, c.JWTSecret)
}

func TestLoadRejects31OctetJWTSecretBoundary(t *testing.T) {
	secret := "1234567890123456789012345678901" // 31 octets
	require.Len(t, []byte(secret), 31)
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "` + secret + `"
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`
	path := writeConfig(t, body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedSecretKey(t *testing.T) {
	body := `
domain: example.com
secret_key: "not-a-real-secret"
jwt_secret: "01234567890123456789012345678901"
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`
	path := writeConfig(t, body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "01234567890123456789012345678901"
network: moonnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`
	path := writeConfig(t, body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmptyAssetMap(t *testing.T) {
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "01234567890123456789012345678901"
network: testnet
assets: {}
`
	path := writeConfig(t, body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrideTakesPrecedence(t *testing.T) {
	body := `
domain: example.com
secret_key: ` + validSecret + `
jwt_secret: "01234567890123456789012345678901"
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`
	path := writeConfig(t, body)
	t.Setenv("ANCHOR_DOMAIN", "override.example.com")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override.example.com", c.Domain)
}

func TestNetworkPassphraseMapping(t *testing.T) {
	cases := map[Network]string{
		NetworkPublic:     "Public Global Stellar Network ; September 2015",
		NetworkMainnet:    "Public Global Stellar Network ; September 2015",
		NetworkTestnet:    "Test SDF Network ; September 2015",
		NetworkFuturenet:  "Test SDF Future Network ; October 2022",
		NetworkStandalone: "Standalone Network ; February 2017",
	}
	for network, want := range cases {
		assert.Equal(t, want, network.Passphrase(), "network=%s", network)
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, NetworkPublic.IsProduction())
	assert.True(t, NetworkMainnet.IsProduction())
	assert.False(t, NetworkTestnet.IsProduction())
	assert.False(t, NetworkFuturenet.IsProduction())
	assert.False(t, NetworkStandalone.IsProduction())
}
