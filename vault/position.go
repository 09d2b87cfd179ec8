package vault

import (
	"math/big"

	"perpvault/events"
)

// IncreasePosition opens or grows a leveraged position. Collateral is taken
// from the pre-credited inbound balance; sizeDelta is USD at price precision.
func (e *Engine) IncreasePosition(sender, account, collateralToken, indexToken Address, sizeDelta *big.Int, isLong bool) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.validate(e.isLeverageEnabled, CodeLeverageNotEnabled); err != nil {
		return err
	}
	if err := e.validateGasPrice(); err != nil {
		return err
	}
	if err := e.validateRouter(sender, account); err != nil {
		return err
	}
	sizeDelta = copyOrZero(sizeDelta)

	collateralAsset, indexAsset, err := e.loadPair(collateralToken, indexToken)
	if err != nil {
		return err
	}
	if err := e.validatePositionTokens(collateralAsset, indexAsset, isLong); err != nil {
		return err
	}
	if err := e.updateCumulativeFundingRate(collateralAsset); err != nil {
		return err
	}

	key := positionKey(account, collateralToken, indexToken, isLong)
	position, err := e.loadPosition(key)
	if err != nil {
		return err
	}

	price, err := e.markPrice(indexToken, isLong, true)
	if err != nil {
		return err
	}

	if position.Size.Sign() == 0 {
		position.AveragePrice = new(big.Int).Set(price)
	} else if sizeDelta.Sign() > 0 {
		position.AveragePrice, err = e.nextAveragePrice(indexAsset, position.Size, position.AveragePrice, isLong, price, sizeDelta, position.LastIncreasedTime)
		if err != nil {
			return err
		}
	}

	fee, err := e.collectMarginFees(collateralAsset, sizeDelta, position.Size, position.EntryFundingRate)
	if err != nil {
		return err
	}

	collateralDelta, err := e.transferIn(collateralToken)
	if err != nil {
		return err
	}
	collateralMinPrice, err := e.getMinPrice(collateralToken)
	if err != nil {
		return err
	}
	collateralDeltaUsd := tokenToUsd(collateralAsset, collateralDelta, collateralMinPrice)

	position.Collateral = new(big.Int).Add(position.Collateral, collateralDeltaUsd)
	if err := e.validate(position.Collateral.Cmp(fee) >= 0, CodeInsufficientCollateralForFees); err != nil {
		return err
	}
	position.Collateral = new(big.Int).Sub(position.Collateral, fee)
	position.EntryFundingRate = new(big.Int).Set(collateralAsset.CumulativeFundingRate)
	position.Size = new(big.Int).Add(position.Size, sizeDelta)
	position.LastIncreasedTime = e.now()

	if err := e.validate(position.Size.Sign() > 0, CodeInvalidPositionSize); err != nil {
		return err
	}
	if err := e.validatePosition(position.Size, position.Collateral); err != nil {
		return err
	}
	if _, _, err := e.validateLiquidationState(position, collateralAsset, indexAsset, isLong, true); err != nil {
		return err
	}

	// Reserve the maximum payout in collateral tokens.
	reserveDelta, err := e.usdToTokenAtMinPrice(collateralAsset, sizeDelta)
	if err != nil {
		return err
	}
	position.ReserveAmount = new(big.Int).Add(position.ReserveAmount, reserveDelta)
	if err := e.increaseReserved(collateralAsset, reserveDelta); err != nil {
		return err
	}

	if isLong {
		// Longs convert their collateral to pool liquidity; guaranteedUsd
		// tracks size minus collateral so the net change is
		// sizeDelta - (collateralUsd - fee).
		e.increaseGuaranteedUsd(collateralAsset, new(big.Int).Add(sizeDelta, fee))
		if err := e.decreaseGuaranteedUsd(collateralAsset, collateralDeltaUsd); err != nil {
			return err
		}
		if err := e.increasePool(collateralAsset, collateralDelta); err != nil {
			return err
		}
		feeTokens, err := e.usdToTokenAtMaxPrice(collateralAsset, fee)
		if err != nil {
			return err
		}
		if err := e.decreasePool(collateralAsset, feeTokens); err != nil {
			return err
		}
	} else {
		if indexAsset.GlobalShortSize.Sign() == 0 {
			indexAsset.GlobalShortAveragePrice = new(big.Int).Set(price)
		} else {
			indexAsset.GlobalShortAveragePrice = e.nextGlobalShortAveragePrice(indexAsset, price, sizeDelta)
		}
		if err := e.increaseGlobalShortSize(indexAsset, sizeDelta); err != nil {
			return err
		}
	}

	if err := e.state.PutPosition(key, position); err != nil {
		return err
	}
	if err := e.persistPair(collateralToken, collateralAsset, indexToken, indexAsset); err != nil {
		return err
	}

	e.emit(events.IncreasePosition{
		Key:             [32]byte(key),
		Account:         [20]byte(account),
		CollateralToken: [20]byte(collateralToken),
		IndexToken:      [20]byte(indexToken),
		CollateralDelta: collateralDeltaUsd,
		SizeDelta:       sizeDelta,
		IsLong:          isLong,
		Price:           price,
		Fee:             fee,
	})
	e.emit(events.UpdatePosition{
		Key:              [32]byte(key),
		Size:             position.Size,
		Collateral:       position.Collateral,
		AveragePrice:     position.AveragePrice,
		EntryFundingRate: position.EntryFundingRate,
		ReserveAmount:    position.ReserveAmount,
		RealisedPnl:      position.RealisedPnl,
		MarkPrice:        price,
	})
	e.observe("increase_position")
	return nil
}

// DecreasePosition shrinks or closes a position, returning the token amount
// paid to the receiver. collateralDelta and sizeDelta are USD at price
// precision.
func (e *Engine) DecreasePosition(sender, account, collateralToken, indexToken Address, collateralDelta, sizeDelta *big.Int, isLong bool, receiver Address) (*big.Int, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.validateGasPrice(); err != nil {
		return nil, err
	}
	if err := e.validateRouter(sender, account); err != nil {
		return nil, err
	}
	out, err := e.decreasePosition(account, collateralToken, indexToken, collateralDelta, sizeDelta, isLong, receiver)
	if err != nil {
		return nil, err
	}
	e.observe("decrease_position")
	return out, nil
}

func (e *Engine) decreasePosition(account, collateralToken, indexToken Address, collateralDelta, sizeDelta *big.Int, isLong bool, receiver Address) (*big.Int, error) {
	collateralDelta = copyOrZero(collateralDelta)
	sizeDelta = copyOrZero(sizeDelta)

	collateralAsset, indexAsset, err := e.loadPair(collateralToken, indexToken)
	if err != nil {
		return nil, err
	}
	if err := e.updateCumulativeFundingRate(collateralAsset); err != nil {
		return nil, err
	}

	key := positionKey(account, collateralToken, indexToken, isLong)
	position, err := e.loadPosition(key)
	if err != nil {
		return nil, err
	}
	if err := e.validate(position.Size.Sign() > 0, CodeEmptyPosition); err != nil {
		return nil, err
	}
	if err := e.validate(position.Size.Cmp(sizeDelta) >= 0, CodePositionSizeExceeded); err != nil {
		return nil, err
	}
	if err := e.validate(position.Collateral.Cmp(collateralDelta) >= 0, CodePositionCollateralExceeded); err != nil {
		return nil, err
	}

	collateral := new(big.Int).Set(position.Collateral)

	// Release the proportional share of the reservation.
	reserveDelta := new(big.Int).Mul(position.ReserveAmount, sizeDelta)
	reserveDelta.Quo(reserveDelta, position.Size)
	position.ReserveAmount = new(big.Int).Sub(position.ReserveAmount, reserveDelta)
	if err := e.decreaseReserved(collateralAsset, reserveDelta); err != nil {
		return nil, err
	}

	usdOut, usdOutAfterFee, err := e.reduceCollateral(key, position, collateralAsset, indexAsset, collateralDelta, sizeDelta, isLong)
	if err != nil {
		return nil, err
	}

	fullClose := position.Size.Cmp(sizeDelta) == 0
	fee := new(big.Int).Sub(usdOut, usdOutAfterFee)
	markPrice, err := e.markPrice(indexToken, isLong, false)
	if err != nil {
		return nil, err
	}

	if !fullClose {
		position.EntryFundingRate = new(big.Int).Set(collateralAsset.CumulativeFundingRate)
		position.Size = new(big.Int).Sub(position.Size, sizeDelta)
		if err := e.validatePosition(position.Size, position.Collateral); err != nil {
			return nil, err
		}
		if _, _, err := e.validateLiquidationState(position, collateralAsset, indexAsset, isLong, true); err != nil {
			return nil, err
		}
		if isLong {
			e.increaseGuaranteedUsd(collateralAsset, new(big.Int).Sub(collateral, position.Collateral))
			if err := e.decreaseGuaranteedUsd(collateralAsset, sizeDelta); err != nil {
				return nil, err
			}
		}
	} else {
		if isLong {
			e.increaseGuaranteedUsd(collateralAsset, collateral)
			if err := e.decreaseGuaranteedUsd(collateralAsset, sizeDelta); err != nil {
				return nil, err
			}
		}
	}

	if !isLong {
		e.decreaseGlobalShortSize(indexAsset, sizeDelta)
	}

	var amountOutAfterFees *big.Int
	if usdOut.Sign() > 0 {
		if isLong {
			tokensOut, err := e.usdToTokenAtMaxPrice(collateralAsset, usdOut)
			if err != nil {
				return nil, err
			}
			if err := e.decreasePool(collateralAsset, tokensOut); err != nil {
				return nil, err
			}
		}
		amountOutAfterFees, err = e.usdToTokenAtMaxPrice(collateralAsset, usdOutAfterFee)
		if err != nil {
			return nil, err
		}
	}

	// Persist only once every guard has passed so a failed decrease leaves
	// the stored position and ledger untouched.
	if fullClose {
		if err := e.state.DeletePosition(key); err != nil {
			return nil, err
		}
	} else {
		if err := e.state.PutPosition(key, position); err != nil {
			return nil, err
		}
	}
	if err := e.persistPair(collateralToken, collateralAsset, indexToken, indexAsset); err != nil {
		return nil, err
	}
	if amountOutAfterFees != nil && amountOutAfterFees.Sign() > 0 {
		if err := e.transferOut(collateralToken, amountOutAfterFees, receiver); err != nil {
			return nil, err
		}
	}

	e.emit(events.DecreasePosition{
		Key:             [32]byte(key),
		Account:         [20]byte(account),
		CollateralToken: [20]byte(collateralToken),
		IndexToken:      [20]byte(indexToken),
		CollateralDelta: collateralDelta,
		SizeDelta:       sizeDelta,
		IsLong:          isLong,
		Price:           markPrice,
		Fee:             fee,
	})
	if fullClose {
		e.emit(events.ClosePosition{
			Key:              [32]byte(key),
			Size:             new(big.Int).Set(sizeDelta),
			Collateral:       collateral,
			AveragePrice:     position.AveragePrice,
			EntryFundingRate: position.EntryFundingRate,
			ReserveAmount:    position.ReserveAmount,
			RealisedPnl:      position.RealisedPnl,
		})
	} else {
		e.emit(events.UpdatePosition{
			Key:              [32]byte(key),
			Size:             position.Size,
			Collateral:       position.Collateral,
			AveragePrice:     position.AveragePrice,
			EntryFundingRate: position.EntryFundingRate,
			ReserveAmount:    position.ReserveAmount,
			RealisedPnl:      position.RealisedPnl,
			MarkPrice:        markPrice,
		})
	}

	if amountOutAfterFees == nil {
		return big.NewInt(0), nil
	}
	return amountOutAfterFees, nil
}

// reduceCollateral splits a decrease into realised PnL, withdrawn collateral
// and fees. Returns the gross USD owed to the trader and the after-fee value.
func (e *Engine) reduceCollateral(key PositionKey, position *Position, collateralAsset, indexAsset *Asset, collateralDelta, sizeDelta *big.Int, isLong bool) (*big.Int, *big.Int, error) {
	fee, err := e.collectMarginFees(collateralAsset, sizeDelta, position.Size, position.EntryFundingRate)
	if err != nil {
		return nil, nil, err
	}

	hasProfit, delta, err := e.getDelta(indexAsset, position.Size, position.AveragePrice, isLong, position.LastIncreasedTime)
	if err != nil {
		return nil, nil, err
	}
	adjustedDelta := new(big.Int).Mul(sizeDelta, delta)
	adjustedDelta.Quo(adjustedDelta, position.Size)

	usdOut := big.NewInt(0)
	if hasProfit && adjustedDelta.Sign() > 0 {
		usdOut = new(big.Int).Set(adjustedDelta)
		position.RealisedPnl = new(big.Int).Add(position.RealisedPnl, adjustedDelta)
		// Short profits are paid out of the pool; long profits were funded
		// at open time through the guaranteed-USD accounting.
		if !isLong {
			tokens, err := e.usdToTokenAtMaxPrice(collateralAsset, adjustedDelta)
			if err != nil {
				return nil, nil, err
			}
			if err := e.decreasePool(collateralAsset, tokens); err != nil {
				return nil, nil, err
			}
		}
	}
	if !hasProfit && adjustedDelta.Sign() > 0 {
		position.Collateral = new(big.Int).Sub(position.Collateral, adjustedDelta)
		position.RealisedPnl = new(big.Int).Sub(position.RealisedPnl, adjustedDelta)
		// Short losses accrue to the pool.
		if !isLong {
			tokens, err := e.usdToTokenAtMaxPrice(collateralAsset, adjustedDelta)
			if err != nil {
				return nil, nil, err
			}
			if err := e.increasePool(collateralAsset, tokens); err != nil {
				return nil, nil, err
			}
		}
	}

	e.emit(events.UpdatePnl{Key: [32]byte(key), HasProfit: hasProfit, Delta: adjustedDelta})

	if collateralDelta.Sign() > 0 {
		usdOut = new(big.Int).Add(usdOut, collateralDelta)
		position.Collateral = new(big.Int).Sub(position.Collateral, collateralDelta)
	}

	if position.Size.Cmp(sizeDelta) == 0 {
		usdOut = new(big.Int).Add(usdOut, position.Collateral)
		position.Collateral = big.NewInt(0)
	}

	usdOutAfterFee := new(big.Int).Set(usdOut)
	if usdOut.Cmp(fee) > 0 {
		usdOutAfterFee = new(big.Int).Sub(usdOut, fee)
	} else {
		position.Collateral = new(big.Int).Sub(position.Collateral, fee)
		if isLong {
			feeTokens, err := e.usdToTokenAtMaxPrice(collateralAsset, fee)
			if err != nil {
				return nil, nil, err
			}
			if err := e.decreasePool(collateralAsset, feeTokens); err != nil {
				return nil, nil, err
			}
		}
	}

	return usdOut, usdOutAfterFee, nil
}

// LiquidatePosition force-closes an underwater position. Over-leveraged but
// solvent positions are closed back to the account instead of seized.
func (e *Engine) LiquidatePosition(sender, account, collateralToken, indexToken Address, isLong bool, feeReceiver Address) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := guardPause(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inPrivateLiquidationMode {
		if err := e.validate(e.liquidators[sender], CodeInvalidLiquidator); err != nil {
			return err
		}
	}

	// Drop AMM-influenced pricing while liquidating to resist manipulation.
	e.includeAmmPrice = false
	defer func() { e.includeAmmPrice = true }()

	collateralAsset, indexAsset, err := e.loadPair(collateralToken, indexToken)
	if err != nil {
		return err
	}
	if err := e.updateCumulativeFundingRate(collateralAsset); err != nil {
		return err
	}

	key := positionKey(account, collateralToken, indexToken, isLong)
	position, err := e.loadPosition(key)
	if err != nil {
		return err
	}
	if err := e.validate(position.Size.Sign() > 0, CodeEmptyPosition); err != nil {
		return err
	}

	liquidationState, marginFees, err := e.validateLiquidationState(position, collateralAsset, indexAsset, isLong, false)
	if err != nil {
		return err
	}
	if err := e.validate(liquidationState != 0, CodeCannotLiquidate); err != nil {
		return err
	}
	if liquidationState == 2 {
		// Over max leverage but solvent: close the whole position back to
		// the owner at market.
		if _, err := e.decreasePosition(account, collateralToken, indexToken, big.NewInt(0), position.Size, isLong, account); err != nil {
			return err
		}
		e.observe("liquidate_deleverage")
		return nil
	}

	feeTokens, err := e.usdToTokenAtMaxPrice(collateralAsset, marginFees)
	if err != nil {
		return err
	}
	collateralAsset.FeeReserve = new(big.Int).Add(collateralAsset.FeeReserve, feeTokens)
	e.emit(events.CollectMarginFees{Token: collateralAsset.Token, FeeUsd: marginFees, FeeTokens: feeTokens})
	e.observeAsset(collateralAsset)

	if err := e.decreaseReserved(collateralAsset, position.ReserveAmount); err != nil {
		return err
	}
	if isLong {
		if err := e.decreaseGuaranteedUsd(collateralAsset, new(big.Int).Sub(position.Size, position.Collateral)); err != nil {
			return err
		}
		if err := e.decreasePool(collateralAsset, feeTokens); err != nil {
			return err
		}
	}

	markPrice, err := e.markPrice(indexToken, isLong, false)
	if err != nil {
		return err
	}
	e.emit(events.LiquidatePosition{
		Key:             [32]byte(key),
		Account:         [20]byte(account),
		CollateralToken: [20]byte(collateralToken),
		IndexToken:      [20]byte(indexToken),
		IsLong:          isLong,
		Size:            position.Size,
		Collateral:      position.Collateral,
		ReserveAmount:   position.ReserveAmount,
		RealisedPnl:     position.RealisedPnl,
		MarkPrice:       markPrice,
	})

	if !isLong && marginFees.Cmp(position.Collateral) < 0 {
		// The only path where a short's residual collateral returns to the
		// pool.
		remainingCollateral := new(big.Int).Sub(position.Collateral, marginFees)
		tokens, err := e.usdToTokenAtMaxPrice(collateralAsset, remainingCollateral)
		if err != nil {
			return err
		}
		if err := e.increasePool(collateralAsset, tokens); err != nil {
			return err
		}
	}
	if !isLong {
		e.decreaseGlobalShortSize(indexAsset, position.Size)
	}

	liquidationFeeTokens, err := e.usdToTokenAtMaxPrice(collateralAsset, e.fee.LiquidationFeeUsd)
	if err != nil {
		return err
	}
	if err := e.decreasePool(collateralAsset, liquidationFeeTokens); err != nil {
		return err
	}

	if err := e.state.DeletePosition(key); err != nil {
		return err
	}
	if err := e.persistPair(collateralToken, collateralAsset, indexToken, indexAsset); err != nil {
		return err
	}
	if err := e.transferOut(collateralToken, liquidationFeeTokens, feeReceiver); err != nil {
		return err
	}
	e.observe("liquidate_position")
	return nil
}

// validateLiquidationState classifies a position: 0 healthy, 1 insolvent
// (seize), 2 over max leverage but solvent (deleverage). With raise set, the
// non-zero states become errors instead.
func (e *Engine) validateLiquidationState(position *Position, collateralAsset, indexAsset *Asset, isLong, raise bool) (int, *big.Int, error) {
	hasProfit, delta, err := e.getDelta(indexAsset, position.Size, position.AveragePrice, isLong, position.LastIncreasedTime)
	if err != nil {
		return 0, nil, err
	}
	marginFees := e.utils.GetFundingFee(position.Size, position.EntryFundingRate, collateralAsset.CumulativeFundingRate)
	marginFees = new(big.Int).Add(marginFees, e.utils.GetPositionFee(position.Size))

	if !hasProfit && position.Collateral.Cmp(delta) < 0 {
		if raise {
			return 0, nil, e.codeError(CodeLossesExceedCollateral)
		}
		return 1, marginFees, nil
	}

	remainingCollateral := new(big.Int).Set(position.Collateral)
	if !hasProfit {
		remainingCollateral.Sub(remainingCollateral, delta)
	}

	if remainingCollateral.Cmp(marginFees) < 0 {
		if raise {
			return 0, nil, e.codeError(CodeFeesExceedCollateral)
		}
		// Cap the seizable fees at what is left.
		return 1, remainingCollateral, nil
	}
	if remainingCollateral.Cmp(new(big.Int).Add(marginFees, e.fee.LiquidationFeeUsd)) < 0 {
		if raise {
			return 0, nil, e.codeError(CodeLiquidationFeesExceedCollateral)
		}
		return 1, marginFees, nil
	}

	leveraged := new(big.Int).Mul(remainingCollateral, new(big.Int).SetUint64(e.maxLeverage))
	notional := new(big.Int).Mul(position.Size, BasisPointsDivisor)
	if leveraged.Cmp(notional) < 0 {
		if raise {
			return 0, nil, e.codeError(CodeMaxLeverageExceeded)
		}
		return 2, marginFees, nil
	}

	return 0, marginFees, nil
}

// getDelta returns the unrealised PnL of a position at the current mark.
// Profits below the min-profit floor within the min-profit window are zeroed.
func (e *Engine) getDelta(indexAsset *Asset, size, averagePrice *big.Int, isLong bool, lastIncreasedTime uint64) (bool, *big.Int, error) {
	if err := e.validate(averagePrice != nil && averagePrice.Sign() > 0, CodeInvalidAveragePrice); err != nil {
		return false, nil, err
	}
	price, err := e.markPrice(indexAsset.Token, isLong, false)
	if err != nil {
		return false, nil, err
	}
	priceDelta := absDiff(averagePrice, price)
	delta := new(big.Int).Mul(size, priceDelta)
	delta.Quo(delta, averagePrice)

	var hasProfit bool
	if isLong {
		hasProfit = price.Cmp(averagePrice) > 0
	} else {
		hasProfit = averagePrice.Cmp(price) > 0
	}

	minBps := uint64(0)
	if e.now() <= lastIncreasedTime+e.fee.MinProfitTime {
		minBps = indexAsset.MinProfitBps
	}
	if hasProfit && minBps > 0 {
		scaled := new(big.Int).Mul(delta, BasisPointsDivisor)
		floor := new(big.Int).Mul(size, new(big.Int).SetUint64(minBps))
		if scaled.Cmp(floor) <= 0 {
			delta = big.NewInt(0)
		}
	}
	return hasProfit, delta, nil
}

// nextAveragePrice folds a size increase into the volume-weighted entry
// price so the position's PnL at the current mark is preserved.
func (e *Engine) nextAveragePrice(indexAsset *Asset, size, averagePrice *big.Int, isLong bool, nextPrice, sizeDelta *big.Int, lastIncreasedTime uint64) (*big.Int, error) {
	hasProfit, delta, err := e.getDelta(indexAsset, size, averagePrice, isLong, lastIncreasedTime)
	if err != nil {
		return nil, err
	}
	nextSize := new(big.Int).Add(size, sizeDelta)
	divisor := new(big.Int).Set(nextSize)
	if isLong == hasProfit {
		divisor.Add(divisor, delta)
	} else {
		divisor.Sub(divisor, delta)
	}
	next := new(big.Int).Mul(nextPrice, nextSize)
	return next.Quo(next, divisor), nil
}

// nextGlobalShortAveragePrice folds a short increase into the aggregate
// short book's average entry, the long formula with the sign flipped.
func (e *Engine) nextGlobalShortAveragePrice(indexAsset *Asset, nextPrice, sizeDelta *big.Int) *big.Int {
	size := indexAsset.GlobalShortSize
	averagePrice := indexAsset.GlobalShortAveragePrice
	priceDelta := absDiff(averagePrice, nextPrice)
	delta := new(big.Int).Mul(size, priceDelta)
	delta.Quo(delta, averagePrice)
	hasProfit := averagePrice.Cmp(nextPrice) > 0

	nextSize := new(big.Int).Add(size, sizeDelta)
	divisor := new(big.Int).Set(nextSize)
	if hasProfit {
		divisor.Sub(divisor, delta)
	} else {
		divisor.Add(divisor, delta)
	}
	next := new(big.Int).Mul(nextPrice, nextSize)
	return next.Quo(next, divisor)
}

// markPrice selects the oracle side that prices against the trader: opening
// longs and closing shorts use the max price, the mirror cases the min.
func (e *Engine) markPrice(indexToken Address, isLong, increasing bool) (*big.Int, error) {
	if isLong == increasing {
		return e.getMaxPrice(indexToken)
	}
	return e.getMinPrice(indexToken)
}

func (e *Engine) validatePosition(size, collateral *big.Int) error {
	if size.Sign() == 0 {
		return e.validate(collateral.Sign() == 0, CodePositionCollateralExceeded)
	}
	return e.validate(size.Cmp(collateral) >= 0, CodeSizeMustExceedCollateral)
}

func (e *Engine) validatePositionTokens(collateralAsset, indexAsset *Asset, isLong bool) error {
	if isLong {
		if err := e.validate(collateralAsset.Token == indexAsset.Token, CodeMismatchedTokens); err != nil {
			return err
		}
		if err := e.validate(collateralAsset.Whitelisted, CodeCollateralNotWhitelisted); err != nil {
			return err
		}
		return e.validate(!collateralAsset.IsStable, CodeCollateralMustNotBeStable)
	}
	if err := e.validate(collateralAsset.Whitelisted, CodeCollateralNotWhitelisted); err != nil {
		return err
	}
	if err := e.validate(collateralAsset.IsStable, CodeCollateralMustBeStable); err != nil {
		return err
	}
	if err := e.validate(!indexAsset.IsStable, CodeIndexMustNotBeStable); err != nil {
		return err
	}
	return e.validate(indexAsset.IsShortable, CodeIndexNotShortable)
}

func (e *Engine) loadPosition(key PositionKey) (*Position, error) {
	position, err := e.state.GetPosition(key)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{}
	}
	position.ensureAmounts()
	return position, nil
}

// loadPair loads the collateral and index assets, sharing one record when
// they coincide (always the case for longs).
func (e *Engine) loadPair(collateralToken, indexToken Address) (*Asset, *Asset, error) {
	collateralAsset, err := e.loadAsset(collateralToken)
	if err != nil {
		return nil, nil, err
	}
	if collateralToken == indexToken {
		return collateralAsset, collateralAsset, nil
	}
	indexAsset, err := e.loadAsset(indexToken)
	if err != nil {
		return nil, nil, err
	}
	return collateralAsset, indexAsset, nil
}

func (e *Engine) persistPair(collateralToken Address, collateralAsset *Asset, indexToken Address, indexAsset *Asset) error {
	if err := e.state.PutAsset(collateralToken, collateralAsset); err != nil {
		return err
	}
	if collateralToken == indexToken {
		return nil
	}
	return e.state.PutAsset(indexToken, indexAsset)
}
