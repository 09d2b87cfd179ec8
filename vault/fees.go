package vault

import (
	"math/big"

	"perpvault/events"
)

// FeeModel computes fee rates and position fees from the vault's read-only
// view. The engine calls it through this narrow interface so governance can
// swap implementations without touching vault state.
type FeeModel interface {
	GetBuyDebtFeeBasisPoints(token Address, debtDelta *big.Int) (uint64, error)
	GetSellDebtFeeBasisPoints(token Address, debtDelta *big.Int) (uint64, error)
	GetSwapFeeBasisPoints(tokenIn, tokenOut Address, debtDelta *big.Int) (uint64, error)
	GetFeeBasisPoints(token Address, debtDelta *big.Int, baseBps, taxBps uint64, increment bool) (uint64, error)
	GetPositionFee(sizeDelta *big.Int) *big.Int
	GetFundingFee(size, entryFundingRate, cumulativeFundingRate *big.Int) *big.Int
}

// ReadView is the engine surface the default fee model depends on. Methods
// are plain reads; they assume the caller already holds the operation lock
// when invoked mid-operation.
type ReadView interface {
	TokenWeight(token Address) (uint64, error)
	StableToken(token Address) (bool, error)
	DebtAmount(token Address) (*big.Int, error)
	TotalWeights() uint64
	DebtSupply() (*big.Int, error)
	FeeParams() FeeParameters
}

// Utils is the default fee model. Rates either rebate moves that bring an
// asset's debt closer to its weight-derived target or tax moves that push it
// away.
type Utils struct {
	view ReadView
}

// NewUtils constructs the default fee model over the supplied view.
func NewUtils(view ReadView) *Utils {
	return &Utils{view: view}
}

func (u *Utils) GetBuyDebtFeeBasisPoints(token Address, debtDelta *big.Int) (uint64, error) {
	fee := u.view.FeeParams()
	return u.GetFeeBasisPoints(token, debtDelta, fee.MintBurnFeeBasisPoints, fee.TaxBasisPoints, true)
}

func (u *Utils) GetSellDebtFeeBasisPoints(token Address, debtDelta *big.Int) (uint64, error) {
	fee := u.view.FeeParams()
	return u.GetFeeBasisPoints(token, debtDelta, fee.MintBurnFeeBasisPoints, fee.TaxBasisPoints, false)
}

// GetSwapFeeBasisPoints prices a swap as a simultaneous debt increment on the
// input asset and decrement on the output asset, charging the worse of the
// two rates. Stable-to-stable swaps use the discounted pair.
func (u *Utils) GetSwapFeeBasisPoints(tokenIn, tokenOut Address, debtDelta *big.Int) (uint64, error) {
	inStable, err := u.view.StableToken(tokenIn)
	if err != nil {
		return 0, err
	}
	outStable, err := u.view.StableToken(tokenOut)
	if err != nil {
		return 0, err
	}
	fee := u.view.FeeParams()
	baseBps := fee.SwapFeeBasisPoints
	taxBps := fee.TaxBasisPoints
	if inStable && outStable {
		baseBps = fee.StableSwapFeeBasisPoints
		taxBps = fee.StableTaxBasisPoints
	}
	feeIn, err := u.GetFeeBasisPoints(tokenIn, debtDelta, baseBps, taxBps, true)
	if err != nil {
		return 0, err
	}
	feeOut, err := u.GetFeeBasisPoints(tokenOut, debtDelta, baseBps, taxBps, false)
	if err != nil {
		return 0, err
	}
	if feeIn > feeOut {
		return feeIn, nil
	}
	return feeOut, nil
}

// GetFeeBasisPoints returns the dynamic rate for moving a token's debt by
// debtDelta. Moves towards the weight-derived target earn a rebate bounded
// below by zero; moves away pay a tax proportional to the average deviation.
func (u *Utils) GetFeeBasisPoints(token Address, debtDelta *big.Int, baseBps, taxBps uint64, increment bool) (uint64, error) {
	fee := u.view.FeeParams()
	if !fee.HasDynamicFees {
		return baseBps, nil
	}
	initialAmount, err := u.view.DebtAmount(token)
	if err != nil {
		return 0, err
	}
	delta := copyOrZero(debtDelta)
	nextAmount := new(big.Int).Add(initialAmount, delta)
	if !increment {
		if delta.Cmp(initialAmount) > 0 {
			nextAmount = big.NewInt(0)
		} else {
			nextAmount = new(big.Int).Sub(initialAmount, delta)
		}
	}

	targetAmount, err := u.targetDebtAmount(token)
	if err != nil {
		return 0, err
	}
	if targetAmount.Sign() == 0 {
		return baseBps, nil
	}

	initialDiff := absDiff(initialAmount, targetAmount)
	nextDiff := absDiff(nextAmount, targetAmount)

	if nextDiff.Cmp(initialDiff) < 0 {
		rebate := new(big.Int).Mul(new(big.Int).SetUint64(taxBps), initialDiff)
		rebate.Quo(rebate, targetAmount)
		if rebate.Cmp(new(big.Int).SetUint64(baseBps)) >= 0 {
			return 0, nil
		}
		return baseBps - rebate.Uint64(), nil
	}

	averageDiff := new(big.Int).Add(initialDiff, nextDiff)
	averageDiff.Quo(averageDiff, big.NewInt(2))
	if averageDiff.Cmp(targetAmount) > 0 {
		averageDiff = targetAmount
	}
	tax := new(big.Int).Mul(new(big.Int).SetUint64(taxBps), averageDiff)
	tax.Quo(tax, targetAmount)
	return baseBps + tax.Uint64(), nil
}

// GetPositionFee charges the margin rate on the notional change. Computed as
// the complement of the after-fee amount so rounding matches the ledger.
func (u *Utils) GetPositionFee(sizeDelta *big.Int) *big.Int {
	if sizeDelta == nil || sizeDelta.Sign() == 0 {
		return big.NewInt(0)
	}
	fee := u.view.FeeParams()
	afterFee := new(big.Int).Mul(sizeDelta, new(big.Int).SetUint64(uint64(BasisPointsDivisor.Int64())-fee.MarginFeeBasisPoints))
	afterFee.Quo(afterFee, BasisPointsDivisor)
	return new(big.Int).Sub(sizeDelta, afterFee)
}

// GetFundingFee charges the funding accrued on the position size since its
// entry snapshot.
func (u *Utils) GetFundingFee(size, entryFundingRate, cumulativeFundingRate *big.Int) *big.Int {
	if size == nil || size.Sign() == 0 || entryFundingRate == nil || cumulativeFundingRate == nil {
		return big.NewInt(0)
	}
	fundingRate := new(big.Int).Sub(cumulativeFundingRate, entryFundingRate)
	if fundingRate.Sign() <= 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(size, fundingRate)
	return fee.Quo(fee, FundingRatePrecision)
}

// targetDebtAmount distributes the debt supply across assets by weight.
func (u *Utils) targetDebtAmount(token Address) (*big.Int, error) {
	supply, err := u.view.DebtSupply()
	if err != nil {
		return nil, err
	}
	if supply == nil || supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	totalWeights := u.view.TotalWeights()
	if totalWeights == 0 {
		return big.NewInt(0), nil
	}
	weight, err := u.view.TokenWeight(token)
	if err != nil {
		return nil, err
	}
	target := new(big.Int).Mul(supply, new(big.Int).SetUint64(weight))
	return target.Quo(target, new(big.Int).SetUint64(totalWeights)), nil
}

func absDiff(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Sub(a, b)
	}
	return new(big.Int).Sub(b, a)
}

// --- engine-side fee collection ---

// collectSwapFees retains the fee in the asset's own units and returns the
// after-fee amount.
func (e *Engine) collectSwapFees(asset *Asset, amount *big.Int, feeBps uint64) (*big.Int, error) {
	afterFee := new(big.Int).Mul(amount, new(big.Int).Sub(BasisPointsDivisor, new(big.Int).SetUint64(feeBps)))
	afterFee.Quo(afterFee, BasisPointsDivisor)
	feeAmount := new(big.Int).Sub(amount, afterFee)
	asset.FeeReserve = new(big.Int).Add(asset.FeeReserve, feeAmount)

	minPrice, err := e.getMinPrice(asset.Token)
	if err != nil {
		return nil, err
	}
	e.emit(events.CollectSwapFees{
		Token:     asset.Token,
		FeeUsd:    tokenToUsd(asset, feeAmount, minPrice),
		FeeTokens: feeAmount,
	})
	e.observeAsset(asset)
	return afterFee, nil
}

// collectMarginFees charges the position fee on the size change plus the
// funding accrued on the full size, retains the tokens in the fee reserve and
// returns the fee in USD.
func (e *Engine) collectMarginFees(asset *Asset, sizeDelta, size, entryFundingRate *big.Int) (*big.Int, error) {
	feeUsd := e.utils.GetPositionFee(sizeDelta)
	fundingFee := e.utils.GetFundingFee(size, entryFundingRate, asset.CumulativeFundingRate)
	feeUsd = new(big.Int).Add(feeUsd, fundingFee)

	feeTokens, err := e.usdToTokenAtMaxPrice(asset, feeUsd)
	if err != nil {
		return nil, err
	}
	asset.FeeReserve = new(big.Int).Add(asset.FeeReserve, feeTokens)

	e.emit(events.CollectMarginFees{Token: asset.Token, FeeUsd: feeUsd, FeeTokens: feeTokens})
	e.observeAsset(asset)
	return feeUsd, nil
}

// --- price-denominated conversions ---

// usdToTokenAtMaxPrice converts USD to the smallest defensible token amount.
func (e *Engine) usdToTokenAtMaxPrice(asset *Asset, usd *big.Int) (*big.Int, error) {
	if usd == nil || usd.Sign() == 0 {
		return big.NewInt(0), nil
	}
	price, err := e.getMaxPrice(asset.Token)
	if err != nil {
		return nil, err
	}
	return usdToToken(asset, usd, price), nil
}

// usdToTokenAtMinPrice converts USD to the largest defensible token amount.
func (e *Engine) usdToTokenAtMinPrice(asset *Asset, usd *big.Int) (*big.Int, error) {
	if usd == nil || usd.Sign() == 0 {
		return big.NewInt(0), nil
	}
	price, err := e.getMinPrice(asset.Token)
	if err != nil {
		return nil, err
	}
	return usdToToken(asset, usd, price), nil
}

// --- ReadView implementation ---

// TokenWeight implements ReadView.
func (e *Engine) TokenWeight(token Address) (uint64, error) {
	asset, err := e.loadAsset(token)
	if err != nil {
		return 0, err
	}
	return asset.Weight, nil
}

// StableToken implements ReadView.
func (e *Engine) StableToken(token Address) (bool, error) {
	asset, err := e.loadAsset(token)
	if err != nil {
		return false, err
	}
	return asset.IsStable, nil
}

// DebtAmount implements ReadView.
func (e *Engine) DebtAmount(token Address) (*big.Int, error) {
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(asset.DebtAmount), nil
}

// DebtSupply implements ReadView.
func (e *Engine) DebtSupply() (*big.Int, error) {
	if e.debtToken == nil {
		return nil, errNilDebtToken
	}
	return e.debtToken.TotalSupply()
}

// FeeParams implements ReadView.
func (e *Engine) FeeParams() FeeParameters {
	return e.fee
}
