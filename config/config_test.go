package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./vault-data", cfg.DataDir)
	require.EqualValues(t, 30, cfg.Fees.MintBurnFeeBasisPoints)
	require.EqualValues(t, 28_800, cfg.Funding.FundingInterval)

	// The default file was written and loads back identically.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.toml")
	raw := `
DataDir = "/var/lib/vault"
MetricsAddress = ":9100"
MaxLeverage = 300000

[fees]
TaxBasisPoints = 50
MintBurnFeeBasisPoints = 25
SwapFeeBasisPoints = 30
MarginFeeBasisPoints = 10
LiquidationFeeUsd = "2000000000000000000000000000000"

[funding]
FundingInterval = 3600
FundingRateFactor = 600
StableFundingRateFactor = 300

[[tokens]]
Address = "0x0000000000000000000000000000000000000010"
Decimals = 6
Weight = 10000
IsStable = true

[[tokens]]
Address = "0x0000000000000000000000000000000000000011"
Decimals = 18
Weight = 25000
MinProfitBps = 75
IsShortable = true
MaxDebt = "120000000000000000000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/vault", cfg.DataDir)
	require.Len(t, cfg.Tokens, 2)
	require.True(t, cfg.Tokens[0].IsStable)
	require.EqualValues(t, 75, cfg.Tokens[1].MinProfitBps)

	addr, err := ParseAddress(cfg.Tokens[1].Address)
	require.NoError(t, err)
	require.Equal(t, byte(0x11), addr[19])
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	_, err := ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("not-hex")
	require.Error(t, err)
}
