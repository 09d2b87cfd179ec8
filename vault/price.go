package vault

import "math/big"

// The price adapter threads the two transient pricing flags through to the
// oracle: includeAmmPrice is dropped during liquidations to resist spot
// manipulation, useSwapPricing is raised inside swap and mint/redeem flows.

func (e *Engine) getMaxPrice(token Address) (*big.Int, error) {
	return e.getPrice(token, true)
}

func (e *Engine) getMinPrice(token Address) (*big.Int, error) {
	return e.getPrice(token, false)
}

func (e *Engine) getPrice(token Address, maximise bool) (*big.Int, error) {
	if e.oracle == nil {
		return nil, errNilOracle
	}
	price, err := e.oracle.GetPrice(token, maximise, e.includeAmmPrice, e.useSwapPricing)
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, e.codeError(CodeInvalidAveragePrice)
	}
	return price, nil
}

// GetMaxPrice exposes the maximised oracle price for a token.
func (e *Engine) GetMaxPrice(token Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getMaxPrice(token)
}

// GetMinPrice exposes the minimised oracle price for a token.
func (e *Engine) GetMinPrice(token Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getMinPrice(token)
}
