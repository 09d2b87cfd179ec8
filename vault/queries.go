package vault

import "math/big"

// GetPosition returns a defensive copy of the stored position, or an empty
// position when none exists.
func (e *Engine) GetPosition(account, collateralToken, indexToken Address, isLong bool) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.loadPosition(positionKey(account, collateralToken, indexToken, isLong))
	if err != nil {
		return nil, err
	}
	return position.Copy(), nil
}

// GetPositionLeverage reports size over collateral in basis points.
func (e *Engine) GetPositionLeverage(account, collateralToken, indexToken Address, isLong bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.loadPosition(positionKey(account, collateralToken, indexToken, isLong))
	if err != nil {
		return nil, err
	}
	if err := e.validate(position.Collateral.Sign() > 0, CodeEmptyPosition); err != nil {
		return nil, err
	}
	leverage := new(big.Int).Mul(position.Size, BasisPointsDivisor)
	return leverage.Quo(leverage, position.Collateral), nil
}

// GetPositionDelta returns the unrealised PnL of a position at the current
// mark price.
func (e *Engine) GetPositionDelta(account, collateralToken, indexToken Address, isLong bool) (bool, *big.Int, error) {
	if e == nil || e.state == nil {
		return false, nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.loadPosition(positionKey(account, collateralToken, indexToken, isLong))
	if err != nil {
		return false, nil, err
	}
	if position.Size.Sign() == 0 {
		return false, big.NewInt(0), nil
	}
	indexAsset, err := e.loadAsset(indexToken)
	if err != nil {
		return false, nil, err
	}
	return e.getDelta(indexAsset, position.Size, position.AveragePrice, isLong, position.LastIncreasedTime)
}

// ValidateLiquidation classifies a position for callers deciding whether to
// liquidate: 0 healthy, 1 insolvent, 2 over-leveraged but solvent.
func (e *Engine) ValidateLiquidation(account, collateralToken, indexToken Address, isLong bool) (int, *big.Int, error) {
	if e == nil || e.state == nil {
		return 0, nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.loadPosition(positionKey(account, collateralToken, indexToken, isLong))
	if err != nil {
		return 0, nil, err
	}
	if err := e.validate(position.Size.Sign() > 0, CodeEmptyPosition); err != nil {
		return 0, nil, err
	}
	collateralAsset, indexAsset, err := e.loadPair(collateralToken, indexToken)
	if err != nil {
		return 0, nil, err
	}
	return e.validateLiquidationState(position, collateralAsset, indexAsset, isLong, false)
}

// GetRedemptionAmount converts debt units to the tokens a redemption would
// currently pay out, before fees.
func (e *Engine) GetRedemptionAmount(token Address, debtAmount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return nil, err
	}
	return e.redemptionAmount(asset, copyOrZero(debtAmount))
}

// GetRedemptionCollateral values the pool liquidity usable for redemptions:
// stable assets count their pool outright, others add the guaranteed USD and
// subtract the reserved tokens.
func (e *Engine) GetRedemptionCollateral(token Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return nil, err
	}
	if asset.IsStable {
		return new(big.Int).Set(asset.PoolAmount), nil
	}
	collateral, err := e.usdToTokenAtMinPrice(asset, asset.GuaranteedUsd)
	if err != nil {
		return nil, err
	}
	collateral.Add(collateral, asset.PoolAmount)
	return collateral.Sub(collateral, asset.ReservedAmount), nil
}

// GetRedemptionCollateralUsd values GetRedemptionCollateral at the min price.
func (e *Engine) GetRedemptionCollateralUsd(token Address) (*big.Int, error) {
	collateral, err := e.GetRedemptionCollateral(token)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return nil, err
	}
	price, err := e.getMinPrice(token)
	if err != nil {
		return nil, err
	}
	return tokenToUsd(asset, collateral, price), nil
}

// PoolAmount returns a token's pool balance.
func (e *Engine) PoolAmount(token Address) (*big.Int, error) {
	return e.assetAmount(token, func(a *Asset) *big.Int { return a.PoolAmount })
}

// ReservedAmount returns a token's reserved balance.
func (e *Engine) ReservedAmount(token Address) (*big.Int, error) {
	return e.assetAmount(token, func(a *Asset) *big.Int { return a.ReservedAmount })
}

// FeeReserve returns a token's accumulated fees.
func (e *Engine) FeeReserve(token Address) (*big.Int, error) {
	return e.assetAmount(token, func(a *Asset) *big.Int { return a.FeeReserve })
}

// GuaranteedUsd returns a token's guaranteed USD bookkeeping.
func (e *Engine) GuaranteedUsd(token Address) (*big.Int, error) {
	return e.assetAmount(token, func(a *Asset) *big.Int { return a.GuaranteedUsd })
}

// GlobalShortSize returns the aggregate short book for an index token.
func (e *Engine) GlobalShortSize(token Address) (*big.Int, error) {
	return e.assetAmount(token, func(a *Asset) *big.Int { return a.GlobalShortSize })
}

// GlobalShortAveragePrice returns the aggregate short entry price.
func (e *Engine) GlobalShortAveragePrice(token Address) (*big.Int, error) {
	return e.assetAmount(token, func(a *Asset) *big.Int { return a.GlobalShortAveragePrice })
}

func (e *Engine) assetAmount(token Address, pick func(*Asset) *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pick(asset)), nil
}
