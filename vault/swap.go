package vault

import (
	"math/big"

	"perpvault/events"
)

// Swap exchanges pre-credited input tokens for output tokens priced through
// the oracle. The fee is deducted from the output and retained in the output
// token's fee reserve. Returns the after-fee output amount.
func (e *Engine) Swap(tokenIn, tokenOut, receiver Address) (*big.Int, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.validate(e.isSwapEnabled, CodeSwapsNotEnabled); err != nil {
		return nil, err
	}
	if err := e.validate(tokenIn != tokenOut, CodeInvalidTokens); err != nil {
		return nil, err
	}
	e.useSwapPricing = true
	defer func() { e.useSwapPricing = false }()

	assetIn, err := e.loadWhitelisted(tokenIn)
	if err != nil {
		return nil, err
	}
	assetOut, err := e.loadWhitelisted(tokenOut)
	if err != nil {
		return nil, err
	}

	if err := e.updateCumulativeFundingRate(assetIn); err != nil {
		return nil, err
	}
	if err := e.updateCumulativeFundingRate(assetOut); err != nil {
		return nil, err
	}

	amountIn, err := e.transferIn(tokenIn)
	if err != nil {
		return nil, err
	}
	if err := e.validate(amountIn.Sign() > 0, CodeInvalidAmountIn); err != nil {
		return nil, err
	}

	priceIn, err := e.getMinPrice(tokenIn)
	if err != nil {
		return nil, err
	}
	priceOut, err := e.getMaxPrice(tokenOut)
	if err != nil {
		return nil, err
	}

	amountOut := new(big.Int).Mul(amountIn, priceIn)
	amountOut.Quo(amountOut, priceOut)
	amountOut = adjustForDecimals(amountOut, assetIn.Decimals, assetOut.Decimals)

	// The swap shifts attributed debt from the output asset to the input
	// asset at the input's spot value.
	debtDelta := new(big.Int).Mul(amountIn, priceIn)
	debtDelta.Quo(debtDelta, PricePrecision)
	debtDelta = adjustForDecimals(debtDelta, assetIn.Decimals, DebtTokenDecimals)

	feeBps, err := e.utils.GetSwapFeeBasisPoints(tokenIn, tokenOut, debtDelta)
	if err != nil {
		return nil, err
	}
	amountOutAfterFees, err := e.collectSwapFees(assetOut, amountOut, feeBps)
	if err != nil {
		return nil, err
	}

	if err := e.increaseDebt(assetIn, debtDelta); err != nil {
		return nil, err
	}
	e.decreaseDebt(assetOut, debtDelta)

	if err := e.increasePool(assetIn, amountIn); err != nil {
		return nil, err
	}
	if err := e.decreasePool(assetOut, amountOut); err != nil {
		return nil, err
	}

	if err := e.state.PutAsset(tokenIn, assetIn); err != nil {
		return nil, err
	}
	if err := e.state.PutAsset(tokenOut, assetOut); err != nil {
		return nil, err
	}
	if err := e.transferOut(tokenOut, amountOutAfterFees, receiver); err != nil {
		return nil, err
	}

	e.emit(events.Swap{
		Receiver:           [20]byte(receiver),
		TokenIn:            [20]byte(tokenIn),
		TokenOut:           [20]byte(tokenOut),
		AmountIn:           amountIn,
		AmountOut:          amountOut,
		AmountOutAfterFees: amountOutAfterFees,
		FeeBps:             feeBps,
	})
	e.observe("swap")
	return amountOutAfterFees, nil
}
