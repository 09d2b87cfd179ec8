package vault

import (
	"math/big"

	"perpvault/events"
)

// Pool ledger mutation primitives. Each runs its invariant checks after the
// arithmetic; callers persist the asset once the whole operation has been
// computed, so a failed check leaves stored state untouched.

func (e *Engine) increasePool(asset *Asset, amount *big.Int) error {
	asset.PoolAmount = new(big.Int).Add(asset.PoolAmount, amount)
	balance, err := e.tokens.BalanceOf(asset.Token, e.vaultAddr)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	if err := e.validate(asset.PoolAmount.Cmp(balance) <= 0, CodeInsufficientPoolBalance); err != nil {
		return err
	}
	e.emit(events.LedgerChange{Type: events.TypeIncreasePoolAmount, Token: asset.Token, Amount: amount})
	e.observeAsset(asset)
	return nil
}

func (e *Engine) decreasePool(asset *Asset, amount *big.Int) error {
	if err := e.validate(asset.PoolAmount.Cmp(amount) >= 0, CodePoolExceeded); err != nil {
		return err
	}
	asset.PoolAmount = new(big.Int).Sub(asset.PoolAmount, amount)
	if err := e.validate(asset.ReservedAmount.Cmp(asset.PoolAmount) <= 0, CodeReserveExceedsPool); err != nil {
		return err
	}
	if err := e.validateBufferAmount(asset); err != nil {
		return err
	}
	e.emit(events.LedgerChange{Type: events.TypeDecreasePoolAmount, Token: asset.Token, Amount: amount})
	e.observeAsset(asset)
	return nil
}

func (e *Engine) increaseDebt(asset *Asset, amount *big.Int) error {
	asset.DebtAmount = new(big.Int).Add(asset.DebtAmount, amount)
	if asset.MaxDebt.Sign() != 0 {
		if err := e.validate(asset.DebtAmount.Cmp(asset.MaxDebt) <= 0, CodeMaxDebtExceeded); err != nil {
			return err
		}
	}
	e.emit(events.LedgerChange{Type: events.TypeIncreaseDebtAmount, Token: asset.Token, Amount: amount})
	e.observeAsset(asset)
	return nil
}

// decreaseDebt saturates at zero: multi-asset mints can legitimately push a
// single asset's attributed debt below zero.
func (e *Engine) decreaseDebt(asset *Asset, amount *big.Int) {
	if asset.DebtAmount.Cmp(amount) <= 0 {
		asset.DebtAmount = big.NewInt(0)
	} else {
		asset.DebtAmount = new(big.Int).Sub(asset.DebtAmount, amount)
	}
	e.emit(events.LedgerChange{Type: events.TypeDecreaseDebtAmount, Token: asset.Token, Amount: amount})
	e.observeAsset(asset)
}

func (e *Engine) increaseReserved(asset *Asset, amount *big.Int) error {
	asset.ReservedAmount = new(big.Int).Add(asset.ReservedAmount, amount)
	if err := e.validate(asset.ReservedAmount.Cmp(asset.PoolAmount) <= 0, CodeReserveExceedsPool); err != nil {
		return err
	}
	e.emit(events.LedgerChange{Type: events.TypeIncreaseReservedAmount, Token: asset.Token, Amount: amount})
	return nil
}

func (e *Engine) decreaseReserved(asset *Asset, amount *big.Int) error {
	if err := e.validate(asset.ReservedAmount.Cmp(amount) >= 0, CodeInsufficientReserve); err != nil {
		return err
	}
	asset.ReservedAmount = new(big.Int).Sub(asset.ReservedAmount, amount)
	e.emit(events.LedgerChange{Type: events.TypeDecreaseReservedAmount, Token: asset.Token, Amount: amount})
	return nil
}

func (e *Engine) increaseGuaranteedUsd(asset *Asset, usd *big.Int) {
	asset.GuaranteedUsd = new(big.Int).Add(asset.GuaranteedUsd, usd)
	e.emit(events.LedgerChange{Type: events.TypeIncreaseGuaranteedUsd, Token: asset.Token, Amount: usd})
}

func (e *Engine) decreaseGuaranteedUsd(asset *Asset, usd *big.Int) error {
	if err := e.validate(asset.GuaranteedUsd.Cmp(usd) >= 0, CodeGuaranteedExceeded); err != nil {
		return err
	}
	asset.GuaranteedUsd = new(big.Int).Sub(asset.GuaranteedUsd, usd)
	e.emit(events.LedgerChange{Type: events.TypeDecreaseGuaranteedUsd, Token: asset.Token, Amount: usd})
	return nil
}

func (e *Engine) increaseGlobalShortSize(asset *Asset, usd *big.Int) error {
	asset.GlobalShortSize = new(big.Int).Add(asset.GlobalShortSize, usd)
	if asset.MaxGlobalShortSize.Sign() != 0 {
		if err := e.validate(asset.GlobalShortSize.Cmp(asset.MaxGlobalShortSize) <= 0, CodeMaxShortsExceeded); err != nil {
			return err
		}
	}
	return nil
}

// decreaseGlobalShortSize saturates at zero to tolerate rounding drift in the
// aggregate short book.
func (e *Engine) decreaseGlobalShortSize(asset *Asset, usd *big.Int) {
	if asset.GlobalShortSize.Cmp(usd) <= 0 {
		asset.GlobalShortSize = big.NewInt(0)
		return
	}
	asset.GlobalShortSize = new(big.Int).Sub(asset.GlobalShortSize, usd)
}

func (e *Engine) validateBufferAmount(asset *Asset) error {
	return e.validate(asset.PoolAmount.Cmp(asset.BufferAmount) >= 0, CodePoolBelowBuffer)
}
