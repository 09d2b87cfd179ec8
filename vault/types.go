package vault

import (
	"encoding/hex"
	"math/big"
)

// Address identifies an account or a token within the vault. Tokens and
// accounts share the 20-byte identity space used across the wider stack.
type Address [20]byte

// String renders the address as 0x-prefixed hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Fixed point scales shared by every monetary quantity in the vault. Prices
// and USD values are scaled by PricePrecision, funding rates by
// FundingRatePrecision and fee rates are expressed in basis points.
var (
	PricePrecision       = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	FundingRatePrecision = big.NewInt(1_000_000)
	BasisPointsDivisor   = big.NewInt(10_000)
)

// DebtTokenDecimals is the decimal scale of the dollar-pegged debt token.
const DebtTokenDecimals = 18

// Governance caps on configurable rates.
const (
	MaxFeeBasisPoints       = 500
	MaxFundingRateFactor    = 10_000
	MinFundingInterval      = 3600
	MinLeverageBasisPoints  = 10_000
	DefaultFundingInterval  = 8 * 3600
	DefaultMaxLeverage      = 50 * 10_000
	DefaultFundingFactor    = 600
	DefaultStableFundingBps = 600
)

// MaxLiquidationFeeUsd bounds the governance-set liquidation fee
// (100 USD at price precision).
var MaxLiquidationFeeUsd = new(big.Int).Mul(big.NewInt(100), PricePrecision)

// Asset captures both the governance configuration and the running ledger
// state for a whitelisted token. Amount fields are big integers at the
// token's native decimal scale unless stated otherwise.
type Asset struct {
	Token Address
	// Whitelisted marks the token as usable by swap, mint and position flows.
	// Cleared configs keep their slot in the registration list.
	Whitelisted bool
	// Decimals is the native decimal scale of token amounts.
	Decimals uint8
	// Weight steers the target debt distribution used by dynamic fees.
	Weight uint64
	// MinProfitBps is the anti-frontrun profit floor applied inside the
	// min-profit window after a position increase.
	MinProfitBps uint64
	// MaxDebt caps DebtAmount in debt-token units. Zero disables the cap.
	MaxDebt *big.Int
	// IsStable marks dollar-pegged tokens; they fund shorts and never back
	// long positions.
	IsStable bool
	// IsShortable marks tokens that may serve as short index assets.
	IsShortable bool
	// BufferAmount is the pool floor enforced after any pool decrease.
	BufferAmount *big.Int
	// MaxGlobalShortSize caps the aggregate short book in USD. Zero disables.
	MaxGlobalShortSize *big.Int

	// PoolAmount is the token liquidity backing swaps and leverage.
	PoolAmount *big.Int
	// ReservedAmount is locked for open positions' potential payouts.
	ReservedAmount *big.Int
	// DebtAmount is the debt-token units minted against this asset.
	DebtAmount *big.Int
	// GuaranteedUsd tracks size minus collateral across long positions
	// collateralised in this asset, at price precision.
	GuaranteedUsd *big.Int
	// FeeReserve accumulates fees in this asset's units.
	FeeReserve *big.Int
	// CumulativeFundingRate only ever grows, at funding-rate precision.
	CumulativeFundingRate *big.Int
	// LastFundingTime is quantised to the funding interval.
	LastFundingTime uint64
	// GlobalShortSize aggregates the short book keyed by this index asset,
	// in USD at price precision.
	GlobalShortSize *big.Int
	// GlobalShortAveragePrice is the volume-weighted short entry price.
	GlobalShortAveragePrice *big.Int
}

// ensureAmounts backfills nil big.Int fields so callers can mutate freely.
func (a *Asset) ensureAmounts() {
	if a == nil {
		return
	}
	if a.MaxDebt == nil {
		a.MaxDebt = big.NewInt(0)
	}
	if a.BufferAmount == nil {
		a.BufferAmount = big.NewInt(0)
	}
	if a.MaxGlobalShortSize == nil {
		a.MaxGlobalShortSize = big.NewInt(0)
	}
	if a.PoolAmount == nil {
		a.PoolAmount = big.NewInt(0)
	}
	if a.ReservedAmount == nil {
		a.ReservedAmount = big.NewInt(0)
	}
	if a.DebtAmount == nil {
		a.DebtAmount = big.NewInt(0)
	}
	if a.GuaranteedUsd == nil {
		a.GuaranteedUsd = big.NewInt(0)
	}
	if a.FeeReserve == nil {
		a.FeeReserve = big.NewInt(0)
	}
	if a.CumulativeFundingRate == nil {
		a.CumulativeFundingRate = big.NewInt(0)
	}
	if a.GlobalShortSize == nil {
		a.GlobalShortSize = big.NewInt(0)
	}
	if a.GlobalShortAveragePrice == nil {
		a.GlobalShortAveragePrice = big.NewInt(0)
	}
}

// Position is the state of one leveraged position, keyed by
// (account, collateral token, index token, side).
type Position struct {
	// Size is the notional in USD at price precision.
	Size *big.Int
	// Collateral is the margin in USD at price precision.
	Collateral *big.Int
	// AveragePrice is the volume-weighted entry price.
	AveragePrice *big.Int
	// EntryFundingRate snapshots the collateral asset's cumulative funding
	// rate at the last open or increase.
	EntryFundingRate *big.Int
	// ReserveAmount is the collateral-asset tokens earmarked from the pool.
	ReserveAmount *big.Int
	// RealisedPnl is signed USD at price precision.
	RealisedPnl *big.Int
	// LastIncreasedTime gates the min-profit window.
	LastIncreasedTime uint64
}

func (p *Position) ensureAmounts() {
	if p == nil {
		return
	}
	if p.Size == nil {
		p.Size = big.NewInt(0)
	}
	if p.Collateral == nil {
		p.Collateral = big.NewInt(0)
	}
	if p.AveragePrice == nil {
		p.AveragePrice = big.NewInt(0)
	}
	if p.EntryFundingRate == nil {
		p.EntryFundingRate = big.NewInt(0)
	}
	if p.ReserveAmount == nil {
		p.ReserveAmount = big.NewInt(0)
	}
	if p.RealisedPnl == nil {
		p.RealisedPnl = big.NewInt(0)
	}
}

// Copy returns a deep copy for defensive use by query callers.
func (p *Position) Copy() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{LastIncreasedTime: p.LastIncreasedTime}
	if p.Size != nil {
		clone.Size = new(big.Int).Set(p.Size)
	}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.AveragePrice != nil {
		clone.AveragePrice = new(big.Int).Set(p.AveragePrice)
	}
	if p.EntryFundingRate != nil {
		clone.EntryFundingRate = new(big.Int).Set(p.EntryFundingRate)
	}
	if p.ReserveAmount != nil {
		clone.ReserveAmount = new(big.Int).Set(p.ReserveAmount)
	}
	if p.RealisedPnl != nil {
		clone.RealisedPnl = new(big.Int).Set(p.RealisedPnl)
	}
	return clone
}

// FeeParameters groups the governance controlled fee rates. All bps values
// are bounded by MaxFeeBasisPoints; LiquidationFeeUsd is at price precision.
type FeeParameters struct {
	TaxBasisPoints           uint64
	StableTaxBasisPoints     uint64
	MintBurnFeeBasisPoints   uint64
	SwapFeeBasisPoints       uint64
	StableSwapFeeBasisPoints uint64
	MarginFeeBasisPoints     uint64
	LiquidationFeeUsd        *big.Int
	MinProfitTime            uint64
	HasDynamicFees           bool
}

// FundingParameters groups the utilisation-driven funding configuration.
// Factors are at funding-rate precision per interval of full utilisation.
type FundingParameters struct {
	FundingInterval         uint64
	FundingRateFactor       uint64
	StableFundingRateFactor uint64
}

// PriceOracle supplies min/max prices per token at price precision. The
// boolean knobs mirror the process-wide transient pricing flags.
type PriceOracle interface {
	GetPrice(token Address, maximise, includeAmm, useSwapPricing bool) (*big.Int, error)
}

// DebtToken is the dollar-pegged fungible token minted against the pool.
type DebtToken interface {
	Mint(to Address, amount *big.Int) error
	Burn(from Address, amount *big.Int) error
	TotalSupply() (*big.Int, error)
	BalanceOf(addr Address) (*big.Int, error)
}

// TokenLedger provides custodial balance queries and outbound transfers per
// token at native decimals. The vault never pulls funds; callers pre-credit
// the vault address and the balance tracker derives the inbound delta.
type TokenLedger interface {
	BalanceOf(token, holder Address) (*big.Int, error)
	Transfer(token, to Address, amount *big.Int) error
}

// State abstracts the persistence layer backing the engine, mirroring the
// narrow per-module state interfaces used across the stack.
type State interface {
	GetAsset(token Address) (*Asset, error)
	PutAsset(token Address, asset *Asset) error
	DeleteAsset(token Address) error
	WhitelistedTokens() ([]Address, error)
	AppendWhitelistedToken(token Address) error
	GetPosition(key PositionKey) (*Position, error)
	PutPosition(key PositionKey, position *Position) error
	DeletePosition(key PositionKey) error
	RecordedBalance(token Address) (*big.Int, error)
	SetRecordedBalance(token Address, balance *big.Int) error
}
