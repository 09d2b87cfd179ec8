package events

import "math/big"

const (
	// TypeBuyDebt is emitted when pooled assets are exchanged for freshly
	// minted debt tokens.
	TypeBuyDebt = "vault.buy_debt"
	// TypeSellDebt is emitted when debt tokens are redeemed against the pool.
	TypeSellDebt = "vault.sell_debt"
	// TypeSwap is emitted for every asset-to-asset swap.
	TypeSwap = "vault.swap"
	// TypeIncreasePosition marks an open or size increase of a position.
	TypeIncreasePosition = "vault.position.increase"
	// TypeDecreasePosition marks a partial or full close of a position.
	TypeDecreasePosition = "vault.position.decrease"
	// TypeLiquidatePosition marks a forced close via liquidation.
	TypeLiquidatePosition = "vault.position.liquidate"
	// TypeUpdatePosition reflects the stored state after a mutation.
	TypeUpdatePosition = "vault.position.update"
	// TypeClosePosition reflects the final state of a fully closed position.
	TypeClosePosition = "vault.position.close"
	// TypeUpdateFundingRate is emitted when a cumulative funding rate advances.
	TypeUpdateFundingRate = "vault.funding.update"
	// TypeUpdatePnl reports realised profit or loss on a decrease.
	TypeUpdatePnl = "vault.pnl.update"
	// TypeCollectSwapFees records fees retained from swap style operations.
	TypeCollectSwapFees = "vault.fees.swap"
	// TypeCollectMarginFees records position and funding fees.
	TypeCollectMarginFees = "vault.fees.margin"
	// TypeDirectPoolDeposit records a fee-less pool top-up.
	TypeDirectPoolDeposit = "vault.pool.direct_deposit"

	TypeIncreasePoolAmount     = "vault.pool.increase"
	TypeDecreasePoolAmount     = "vault.pool.decrease"
	TypeIncreaseDebtAmount     = "vault.debt.increase"
	TypeDecreaseDebtAmount     = "vault.debt.decrease"
	TypeIncreaseReservedAmount = "vault.reserved.increase"
	TypeDecreaseReservedAmount = "vault.reserved.decrease"
	TypeIncreaseGuaranteedUsd  = "vault.guaranteed.increase"
	TypeDecreaseGuaranteedUsd  = "vault.guaranteed.decrease"
)

type BuyDebt struct {
	Receiver    [20]byte
	Token       [20]byte
	TokenAmount *big.Int
	DebtAmount  *big.Int
	FeeBps      uint64
}

func (BuyDebt) EventType() string { return TypeBuyDebt }

func (e BuyDebt) Event() *Record {
	return &Record{
		Type: TypeBuyDebt,
		Attributes: map[string]string{
			"receiver":    formatAddress(e.Receiver),
			"token":       formatAddress(e.Token),
			"tokenAmount": formatAmount(e.TokenAmount),
			"debtAmount":  formatAmount(e.DebtAmount),
			"feeBps":      formatUint(e.FeeBps),
		},
	}
}

type SellDebt struct {
	Receiver    [20]byte
	Token       [20]byte
	DebtAmount  *big.Int
	TokenAmount *big.Int
	FeeBps      uint64
}

func (SellDebt) EventType() string { return TypeSellDebt }

func (e SellDebt) Event() *Record {
	return &Record{
		Type: TypeSellDebt,
		Attributes: map[string]string{
			"receiver":    formatAddress(e.Receiver),
			"token":       formatAddress(e.Token),
			"debtAmount":  formatAmount(e.DebtAmount),
			"tokenAmount": formatAmount(e.TokenAmount),
			"feeBps":      formatUint(e.FeeBps),
		},
	}
}

type Swap struct {
	Receiver           [20]byte
	TokenIn            [20]byte
	TokenOut           [20]byte
	AmountIn           *big.Int
	AmountOut          *big.Int
	AmountOutAfterFees *big.Int
	FeeBps             uint64
}

func (Swap) EventType() string { return TypeSwap }

func (e Swap) Event() *Record {
	return &Record{
		Type: TypeSwap,
		Attributes: map[string]string{
			"receiver":           formatAddress(e.Receiver),
			"tokenIn":            formatAddress(e.TokenIn),
			"tokenOut":           formatAddress(e.TokenOut),
			"amountIn":           formatAmount(e.AmountIn),
			"amountOut":          formatAmount(e.AmountOut),
			"amountOutAfterFees": formatAmount(e.AmountOutAfterFees),
			"feeBps":             formatUint(e.FeeBps),
		},
	}
}

type IncreasePosition struct {
	Key             [32]byte
	Account         [20]byte
	CollateralToken [20]byte
	IndexToken      [20]byte
	CollateralDelta *big.Int
	SizeDelta       *big.Int
	IsLong          bool
	Price           *big.Int
	Fee             *big.Int
}

func (IncreasePosition) EventType() string { return TypeIncreasePosition }

func (e IncreasePosition) Event() *Record {
	return &Record{
		Type:       TypeIncreasePosition,
		Attributes: positionChangeAttributes(e.Key, e.Account, e.CollateralToken, e.IndexToken, e.CollateralDelta, e.SizeDelta, e.IsLong, e.Price, e.Fee),
	}
}

type DecreasePosition struct {
	Key             [32]byte
	Account         [20]byte
	CollateralToken [20]byte
	IndexToken      [20]byte
	CollateralDelta *big.Int
	SizeDelta       *big.Int
	IsLong          bool
	Price           *big.Int
	Fee             *big.Int
}

func (DecreasePosition) EventType() string { return TypeDecreasePosition }

func (e DecreasePosition) Event() *Record {
	return &Record{
		Type:       TypeDecreasePosition,
		Attributes: positionChangeAttributes(e.Key, e.Account, e.CollateralToken, e.IndexToken, e.CollateralDelta, e.SizeDelta, e.IsLong, e.Price, e.Fee),
	}
}

func positionChangeAttributes(key [32]byte, account, collateralToken, indexToken [20]byte, collateralDelta, sizeDelta *big.Int, isLong bool, price, fee *big.Int) map[string]string {
	return map[string]string{
		"key":             formatKey(key),
		"account":         formatAddress(account),
		"collateralToken": formatAddress(collateralToken),
		"indexToken":      formatAddress(indexToken),
		"collateralDelta": formatAmount(collateralDelta),
		"sizeDelta":       formatAmount(sizeDelta),
		"isLong":          formatBool(isLong),
		"price":           formatAmount(price),
		"fee":             formatAmount(fee),
	}
}

type LiquidatePosition struct {
	Key             [32]byte
	Account         [20]byte
	CollateralToken [20]byte
	IndexToken      [20]byte
	IsLong          bool
	Size            *big.Int
	Collateral      *big.Int
	ReserveAmount   *big.Int
	RealisedPnl     *big.Int
	MarkPrice       *big.Int
}

func (LiquidatePosition) EventType() string { return TypeLiquidatePosition }

func (e LiquidatePosition) Event() *Record {
	return &Record{
		Type: TypeLiquidatePosition,
		Attributes: map[string]string{
			"key":             formatKey(e.Key),
			"account":         formatAddress(e.Account),
			"collateralToken": formatAddress(e.CollateralToken),
			"indexToken":      formatAddress(e.IndexToken),
			"isLong":          formatBool(e.IsLong),
			"size":            formatAmount(e.Size),
			"collateral":      formatAmount(e.Collateral),
			"reserveAmount":   formatAmount(e.ReserveAmount),
			"realisedPnl":     formatAmount(e.RealisedPnl),
			"markPrice":       formatAmount(e.MarkPrice),
		},
	}
}

type UpdatePosition struct {
	Key              [32]byte
	Size             *big.Int
	Collateral       *big.Int
	AveragePrice     *big.Int
	EntryFundingRate *big.Int
	ReserveAmount    *big.Int
	RealisedPnl      *big.Int
	MarkPrice        *big.Int
}

func (UpdatePosition) EventType() string { return TypeUpdatePosition }

func (e UpdatePosition) Event() *Record {
	return &Record{
		Type: TypeUpdatePosition,
		Attributes: map[string]string{
			"key":              formatKey(e.Key),
			"size":             formatAmount(e.Size),
			"collateral":       formatAmount(e.Collateral),
			"averagePrice":     formatAmount(e.AveragePrice),
			"entryFundingRate": formatAmount(e.EntryFundingRate),
			"reserveAmount":    formatAmount(e.ReserveAmount),
			"realisedPnl":      formatAmount(e.RealisedPnl),
			"markPrice":        formatAmount(e.MarkPrice),
		},
	}
}

type ClosePosition struct {
	Key              [32]byte
	Size             *big.Int
	Collateral       *big.Int
	AveragePrice     *big.Int
	EntryFundingRate *big.Int
	ReserveAmount    *big.Int
	RealisedPnl      *big.Int
}

func (ClosePosition) EventType() string { return TypeClosePosition }

func (e ClosePosition) Event() *Record {
	return &Record{
		Type: TypeClosePosition,
		Attributes: map[string]string{
			"key":              formatKey(e.Key),
			"size":             formatAmount(e.Size),
			"collateral":       formatAmount(e.Collateral),
			"averagePrice":     formatAmount(e.AveragePrice),
			"entryFundingRate": formatAmount(e.EntryFundingRate),
			"reserveAmount":    formatAmount(e.ReserveAmount),
			"realisedPnl":      formatAmount(e.RealisedPnl),
		},
	}
}

type UpdateFundingRate struct {
	Token       [20]byte
	FundingRate *big.Int
}

func (UpdateFundingRate) EventType() string { return TypeUpdateFundingRate }

func (e UpdateFundingRate) Event() *Record {
	return &Record{
		Type: TypeUpdateFundingRate,
		Attributes: map[string]string{
			"token":       formatAddress(e.Token),
			"fundingRate": formatAmount(e.FundingRate),
		},
	}
}

type UpdatePnl struct {
	Key       [32]byte
	HasProfit bool
	Delta     *big.Int
}

func (UpdatePnl) EventType() string { return TypeUpdatePnl }

func (e UpdatePnl) Event() *Record {
	return &Record{
		Type: TypeUpdatePnl,
		Attributes: map[string]string{
			"key":       formatKey(e.Key),
			"hasProfit": formatBool(e.HasProfit),
			"delta":     formatAmount(e.Delta),
		},
	}
}

type CollectSwapFees struct {
	Token     [20]byte
	FeeUsd    *big.Int
	FeeTokens *big.Int
}

func (CollectSwapFees) EventType() string { return TypeCollectSwapFees }

func (e CollectSwapFees) Event() *Record {
	return &Record{
		Type: TypeCollectSwapFees,
		Attributes: map[string]string{
			"token":     formatAddress(e.Token),
			"feeUsd":    formatAmount(e.FeeUsd),
			"feeTokens": formatAmount(e.FeeTokens),
		},
	}
}

type CollectMarginFees struct {
	Token     [20]byte
	FeeUsd    *big.Int
	FeeTokens *big.Int
}

func (CollectMarginFees) EventType() string { return TypeCollectMarginFees }

func (e CollectMarginFees) Event() *Record {
	return &Record{
		Type: TypeCollectMarginFees,
		Attributes: map[string]string{
			"token":     formatAddress(e.Token),
			"feeUsd":    formatAmount(e.FeeUsd),
			"feeTokens": formatAmount(e.FeeTokens),
		},
	}
}

type DirectPoolDeposit struct {
	Token  [20]byte
	Amount *big.Int
}

func (DirectPoolDeposit) EventType() string { return TypeDirectPoolDeposit }

func (e DirectPoolDeposit) Event() *Record {
	return &Record{
		Type: TypeDirectPoolDeposit,
		Attributes: map[string]string{
			"token":  formatAddress(e.Token),
			"amount": formatAmount(e.Amount),
		},
	}
}

// LedgerChange covers the inc/dec family for pool, debt, reserved and
// guaranteed-USD amounts. The Type field selects the concrete record.
type LedgerChange struct {
	Type   string
	Token  [20]byte
	Amount *big.Int
}

func (e LedgerChange) EventType() string { return e.Type }

func (e LedgerChange) Event() *Record {
	return &Record{
		Type: e.Type,
		Attributes: map[string]string{
			"token":  formatAddress(e.Token),
			"amount": formatAmount(e.Amount),
		},
	}
}
