package vault

import (
	"math/big"

	"perpvault/events"
)

// BuyDebt exchanges pre-credited tokens for freshly minted debt tokens. The
// fee is charged against the input token; the after-fee amount joins the
// pool. Returns the minted debt amount.
func (e *Engine) BuyDebt(sender, token, receiver Address) (*big.Int, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.validateManager(sender); err != nil {
		return nil, err
	}
	e.useSwapPricing = true
	defer func() { e.useSwapPricing = false }()

	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return nil, err
	}

	tokenAmount, err := e.transferIn(token)
	if err != nil {
		return nil, err
	}
	if err := e.validate(tokenAmount.Sign() > 0, CodeInvalidTokenAmount); err != nil {
		return nil, err
	}

	if err := e.updateCumulativeFundingRate(asset); err != nil {
		return nil, err
	}

	price, err := e.getMinPrice(token)
	if err != nil {
		return nil, err
	}

	debtValue := new(big.Int).Mul(tokenAmount, price)
	debtValue.Quo(debtValue, PricePrecision)
	debtValue = adjustForDecimals(debtValue, asset.Decimals, DebtTokenDecimals)
	if err := e.validate(debtValue.Sign() > 0, CodeInvalidDebtAmount); err != nil {
		return nil, err
	}

	feeBps, err := e.utils.GetBuyDebtFeeBasisPoints(token, debtValue)
	if err != nil {
		return nil, err
	}
	amountAfterFees, err := e.collectSwapFees(asset, tokenAmount, feeBps)
	if err != nil {
		return nil, err
	}

	mintAmount := new(big.Int).Mul(amountAfterFees, price)
	mintAmount.Quo(mintAmount, PricePrecision)
	mintAmount = adjustForDecimals(mintAmount, asset.Decimals, DebtTokenDecimals)
	if err := e.validate(mintAmount.Sign() > 0, CodeInvalidMintAmount); err != nil {
		return nil, err
	}

	if err := e.increaseDebt(asset, mintAmount); err != nil {
		return nil, err
	}
	if err := e.increasePool(asset, amountAfterFees); err != nil {
		return nil, err
	}

	if err := e.state.PutAsset(token, asset); err != nil {
		return nil, err
	}
	if err := e.debtToken.Mint(receiver, mintAmount); err != nil {
		return nil, err
	}

	e.emit(events.BuyDebt{Receiver: [20]byte(receiver), Token: [20]byte(token), TokenAmount: tokenAmount, DebtAmount: mintAmount, FeeBps: feeBps})
	e.observe("buy_debt")
	return mintAmount, nil
}

// SellDebt redeems pre-credited debt tokens for pooled assets. The fee is
// charged against the output token. Returns the token amount paid out.
func (e *Engine) SellDebt(sender, token, receiver Address) (*big.Int, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, err
	}
	if e.debtToken == nil {
		return nil, errNilDebtToken
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.validateManager(sender); err != nil {
		return nil, err
	}
	e.useSwapPricing = true
	defer func() { e.useSwapPricing = false }()

	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return nil, err
	}

	debtAmount, err := e.transferIn(e.debtTokenAddr)
	if err != nil {
		return nil, err
	}
	if err := e.validate(debtAmount.Sign() > 0, CodeInvalidDebtAmount); err != nil {
		return nil, err
	}

	if err := e.updateCumulativeFundingRate(asset); err != nil {
		return nil, err
	}

	redemptionAmount, err := e.redemptionAmount(asset, debtAmount)
	if err != nil {
		return nil, err
	}
	if err := e.validate(redemptionAmount.Sign() > 0, CodeInvalidRedemptionAmount); err != nil {
		return nil, err
	}

	e.decreaseDebt(asset, debtAmount)
	if err := e.decreasePool(asset, redemptionAmount); err != nil {
		return nil, err
	}

	feeBps, err := e.utils.GetSellDebtFeeBasisPoints(token, debtAmount)
	if err != nil {
		return nil, err
	}
	amountOut, err := e.collectSwapFees(asset, redemptionAmount, feeBps)
	if err != nil {
		return nil, err
	}
	if err := e.validate(amountOut.Sign() > 0, CodeInvalidAmountOut); err != nil {
		return nil, err
	}

	if err := e.state.PutAsset(token, asset); err != nil {
		return nil, err
	}
	if err := e.debtToken.Burn(e.vaultAddr, debtAmount); err != nil {
		return nil, err
	}
	// The burn reduced the vault's debt-token balance out of band.
	if err := e.resyncBalance(e.debtTokenAddr); err != nil {
		return nil, err
	}
	if err := e.transferOut(token, amountOut, receiver); err != nil {
		return nil, err
	}

	e.emit(events.SellDebt{Receiver: [20]byte(receiver), Token: [20]byte(token), DebtAmount: debtAmount, TokenAmount: amountOut, FeeBps: feeBps})
	e.observe("sell_debt")
	return amountOut, nil
}

// DirectPoolDeposit adds pre-credited tokens to the pool without minting
// anything. Used to seed or donate liquidity.
func (e *Engine) DirectPoolDeposit(token Address) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return err
	}

	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return err
	}
	tokenAmount, err := e.transferIn(token)
	if err != nil {
		return err
	}
	if err := e.validate(tokenAmount.Sign() > 0, CodeInvalidTokenAmount); err != nil {
		return err
	}
	if err := e.increasePool(asset, tokenAmount); err != nil {
		return err
	}
	if err := e.state.PutAsset(token, asset); err != nil {
		return err
	}
	e.emit(events.DirectPoolDeposit{Token: [20]byte(token), Amount: tokenAmount})
	e.observe("direct_pool_deposit")
	return nil
}

// redemptionAmount converts debt units to tokens at the max price.
func (e *Engine) redemptionAmount(asset *Asset, debtAmount *big.Int) (*big.Int, error) {
	price, err := e.getMaxPrice(asset.Token)
	if err != nil {
		return nil, err
	}
	redemption := new(big.Int).Mul(debtAmount, PricePrecision)
	redemption.Quo(redemption, price)
	return adjustForDecimals(redemption, DebtTokenDecimals, asset.Decimals), nil
}
