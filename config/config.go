package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"perpvault/vault"
)

// Config captures the vault daemon's deployment settings: storage location,
// metrics listener and the governance parameters pushed into the engine at
// boot.
type Config struct {
	DataDir        string `toml:"DataDir"`
	MetricsAddress string `toml:"MetricsAddress"`
	Environment    string `toml:"Environment"`
	MaxLeverage    uint64 `toml:"MaxLeverage"`

	Fees    Fees    `toml:"fees"`
	Funding Funding `toml:"funding"`
	Tokens  []Token `toml:"tokens"`
}

// Fees mirrors vault.FeeParameters with string amounts for TOML friendliness.
type Fees struct {
	TaxBasisPoints           uint64 `toml:"TaxBasisPoints"`
	StableTaxBasisPoints     uint64 `toml:"StableTaxBasisPoints"`
	MintBurnFeeBasisPoints   uint64 `toml:"MintBurnFeeBasisPoints"`
	SwapFeeBasisPoints       uint64 `toml:"SwapFeeBasisPoints"`
	StableSwapFeeBasisPoints uint64 `toml:"StableSwapFeeBasisPoints"`
	MarginFeeBasisPoints     uint64 `toml:"MarginFeeBasisPoints"`
	LiquidationFeeUsd        string `toml:"LiquidationFeeUsd"`
	MinProfitTime            uint64 `toml:"MinProfitTime"`
	HasDynamicFees           bool   `toml:"HasDynamicFees"`
}

// Funding mirrors vault.FundingParameters.
type Funding struct {
	FundingInterval         uint64 `toml:"FundingInterval"`
	FundingRateFactor       uint64 `toml:"FundingRateFactor"`
	StableFundingRateFactor uint64 `toml:"StableFundingRateFactor"`
}

// Token is one whitelist entry.
type Token struct {
	Address      string `toml:"Address"`
	Decimals     uint8  `toml:"Decimals"`
	Weight       uint64 `toml:"Weight"`
	MinProfitBps uint64 `toml:"MinProfitBps"`
	MaxDebt      string `toml:"MaxDebt"`
	IsStable     bool   `toml:"IsStable"`
	IsShortable  bool   `toml:"IsShortable"`
	BufferAmount string `toml:"BufferAmount"`
}

// Load reads the configuration from the given path, writing the defaults
// when no file exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the baseline configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir:        "./vault-data",
		MetricsAddress: ":9464",
		Environment:    "dev",
		MaxLeverage:    vault.DefaultMaxLeverage,
		Fees: Fees{
			TaxBasisPoints:           50,
			StableTaxBasisPoints:     20,
			MintBurnFeeBasisPoints:   30,
			SwapFeeBasisPoints:       30,
			StableSwapFeeBasisPoints: 4,
			MarginFeeBasisPoints:     10,
			LiquidationFeeUsd:        vault.MaxLiquidationFeeUsd.String(),
		},
		Funding: Funding{
			FundingInterval:         vault.DefaultFundingInterval,
			FundingRateFactor:       vault.DefaultFundingFactor,
			StableFundingRateFactor: vault.DefaultStableFundingBps,
		},
	}
}

// Apply pushes the configuration through the engine's governance setters.
func (c *Config) Apply(engine *vault.Engine) error {
	if c == nil || engine == nil {
		return fmt.Errorf("config: nothing to apply")
	}
	liquidationFee, err := parseAmount(c.Fees.LiquidationFeeUsd)
	if err != nil {
		return fmt.Errorf("config: liquidation fee: %w", err)
	}
	if err := engine.SetFees(vault.FeeParameters{
		TaxBasisPoints:           c.Fees.TaxBasisPoints,
		StableTaxBasisPoints:     c.Fees.StableTaxBasisPoints,
		MintBurnFeeBasisPoints:   c.Fees.MintBurnFeeBasisPoints,
		SwapFeeBasisPoints:       c.Fees.SwapFeeBasisPoints,
		StableSwapFeeBasisPoints: c.Fees.StableSwapFeeBasisPoints,
		MarginFeeBasisPoints:     c.Fees.MarginFeeBasisPoints,
		LiquidationFeeUsd:        liquidationFee,
		MinProfitTime:            c.Fees.MinProfitTime,
		HasDynamicFees:           c.Fees.HasDynamicFees,
	}); err != nil {
		return err
	}
	if err := engine.SetFundingRate(c.Funding.FundingInterval, c.Funding.FundingRateFactor, c.Funding.StableFundingRateFactor); err != nil {
		return err
	}
	if c.MaxLeverage > 0 {
		if err := engine.SetMaxLeverage(c.MaxLeverage); err != nil {
			return err
		}
	}
	for _, token := range c.Tokens {
		addr, err := ParseAddress(token.Address)
		if err != nil {
			return fmt.Errorf("config: token %q: %w", token.Address, err)
		}
		maxDebt, err := parseAmount(token.MaxDebt)
		if err != nil {
			return fmt.Errorf("config: token %q max debt: %w", token.Address, err)
		}
		if err := engine.SetTokenConfig(addr, token.Decimals, token.Weight, token.MinProfitBps, maxDebt, token.IsStable, token.IsShortable); err != nil {
			return err
		}
		if strings.TrimSpace(token.BufferAmount) != "" {
			buffer, err := parseAmount(token.BufferAmount)
			if err != nil {
				return fmt.Errorf("config: token %q buffer: %w", token.Address, err)
			}
			if err := engine.SetBufferAmount(addr, buffer); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(raw string) (vault.Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return vault.Address{}, err
	}
	if len(decoded) != 20 {
		return vault.Address{}, fmt.Errorf("address must be 20 bytes, got %d", len(decoded))
	}
	var addr vault.Address
	copy(addr[:], decoded)
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
