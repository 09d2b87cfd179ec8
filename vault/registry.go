package vault

import "math/big"

// SetTokenConfig adds or updates a whitelisted token. On an update the old
// weight is subtracted before the new one is added; on first registration the
// token is appended to the registration list. The oracle is queried once to
// validate the wiring before the config becomes visible.
func (e *Engine) SetTokenConfig(token Address, decimals uint8, weight, minProfitBps uint64, maxDebt *big.Int, isStable, isShortable bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// Validate the oracle wiring before anything becomes visible.
	if _, err := e.getMaxPrice(token); err != nil {
		return err
	}

	asset, err := e.loadAsset(token)
	if err != nil {
		return err
	}
	if !asset.Whitelisted {
		if err := e.state.AppendWhitelistedToken(token); err != nil {
			return err
		}
	} else {
		e.totalWeights -= asset.Weight
	}

	asset.Whitelisted = true
	asset.Decimals = decimals
	asset.Weight = weight
	asset.MinProfitBps = minProfitBps
	asset.MaxDebt = copyOrZero(maxDebt)
	asset.IsStable = isStable
	asset.IsShortable = isShortable

	if err := e.state.PutAsset(token, asset); err != nil {
		return err
	}
	e.totalWeights += weight
	return nil
}

// ClearTokenConfig removes a token from the whitelist. The registration list
// keeps the token's slot; guards on the ledger primitives prevent clearing a
// token that still backs open positions from going unnoticed.
func (e *Engine) ClearTokenConfig(token Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return err
	}
	e.totalWeights -= asset.Weight
	return e.state.DeleteAsset(token)
}

// AllWhitelistedTokensLength returns the registration list length, counting
// cleared slots.
func (e *Engine) AllWhitelistedTokensLength() (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tokens, err := e.state.WhitelistedTokens()
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// AllWhitelistedTokens returns the ordered registration list.
func (e *Engine) AllWhitelistedTokens() ([]Address, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.WhitelistedTokens()
}

// TotalWeights returns the sum of weights across whitelisted tokens.
func (e *Engine) TotalWeights() uint64 {
	if e == nil {
		return 0
	}
	return e.totalWeights
}
