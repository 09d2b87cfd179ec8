package vault

import (
	"math/big"

	"perpvault/events"
)

// Funding accrues per collateral asset, quantised to funding-interval
// boundaries. The grid aligns to wall time: lastFundingTime snaps to
// floor(now/interval)*interval on every accrual rather than stepping by whole
// intervals from the first observation.

func (e *Engine) updateCumulativeFundingRate(asset *Asset) error {
	interval := e.funding.FundingInterval
	if interval == 0 {
		return e.codeError(CodeInvalidFundingInterval)
	}
	now := e.now()
	if asset.LastFundingTime == 0 {
		asset.LastFundingTime = (now / interval) * interval
		return nil
	}
	if asset.LastFundingTime+interval > now {
		return nil
	}

	fundingRate := e.nextFundingRate(asset, now)
	if fundingRate.Sign() > 0 {
		asset.CumulativeFundingRate = new(big.Int).Add(asset.CumulativeFundingRate, fundingRate)
	}
	asset.LastFundingTime = (now / interval) * interval

	e.emit(events.UpdateFundingRate{Token: asset.Token, FundingRate: asset.CumulativeFundingRate})
	return nil
}

// nextFundingRate is the utilisation-proportional rate for the intervals
// elapsed since the last accrual. Zero while the pool is empty.
func (e *Engine) nextFundingRate(asset *Asset, now uint64) *big.Int {
	interval := e.funding.FundingInterval
	if asset.LastFundingTime+interval > now {
		return big.NewInt(0)
	}
	if asset.PoolAmount.Sign() == 0 {
		return big.NewInt(0)
	}
	intervals := (now - asset.LastFundingTime) / interval
	factor := e.funding.FundingRateFactor
	if asset.IsStable {
		factor = e.funding.StableFundingRateFactor
	}
	rate := new(big.Int).Mul(new(big.Int).SetUint64(factor), asset.ReservedAmount)
	rate.Mul(rate, new(big.Int).SetUint64(intervals))
	return rate.Quo(rate, asset.PoolAmount)
}

// GetNextFundingRate returns the rate the next accrual would add for a token.
func (e *Engine) GetNextFundingRate(token Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	return e.nextFundingRate(asset, e.now()), nil
}

// GetUtilisation reports reserved over pool at funding-rate precision.
func (e *Engine) GetUtilisation(token Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	if asset.PoolAmount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	utilisation := new(big.Int).Mul(asset.ReservedAmount, FundingRatePrecision)
	return utilisation.Quo(utilisation, asset.PoolAmount), nil
}

// CumulativeFundingRate returns the accrued funding scalar for a token.
func (e *Engine) CumulativeFundingRate(token Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(asset.CumulativeFundingRate), nil
}
