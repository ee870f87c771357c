package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfigBody = `
domain: anchor.example
secret_key: SAPCL3RTB7VB3VQXIVIM4P6AH5C7ZQDHY772GOCAWASACCFFWOMQVP4S
jwt_secret: 01234567890123456789012345678901
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
    deposit:
      enabled: true
    withdraw:
      enabled: true
`

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidateConfigCmdAcceptsValidFile(t *testing.T) {
	cfgPath = writeTestConfig(t, validConfigBody)
	cmd := newValidateConfigCmd()
	require.NoError(t, cmd.RunE(cmd, nil))
}

func TestValidateConfigCmdRejectsMissingDomain(t *testing.T) {
	cfgPath = writeTestConfig(t, `
secret_key: SAPCL3RTB7VB3VQXIVIM4P6AH5C7ZQDHY772GOCAWASACCFFWOMQVP4S
jwt_secret: 01234567890123456789012345678901
network: testnet
assets:
  USDC:
    issuer: GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5
`)
	cmd := newValidateConfigCmd()
	require.Error(t, cmd.RunE(cmd, nil))
}
