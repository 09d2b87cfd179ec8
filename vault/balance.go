package vault

import "math/big"

// The balance tracker never pulls funds. Callers pre-credit the vault
// address; transferIn derives the inbound amount by diffing the custodial
// balance against the last recorded one. If an operation fails after the
// diff was taken, the deposit stays unattributed and is claimed by the next
// operation on the same token.

// transferIn returns the inbound delta for the token and resyncs the
// recorded balance.
func (e *Engine) transferIn(token Address) (*big.Int, error) {
	actual, err := e.tokens.BalanceOf(token, e.vaultAddr)
	if err != nil {
		return nil, err
	}
	if actual == nil {
		actual = big.NewInt(0)
	}
	recorded, err := e.recordedBalance(token)
	if err != nil {
		return nil, err
	}
	if actual.Cmp(recorded) < 0 {
		return nil, e.codeError(CodeInsufficientPoolBalance)
	}
	if err := e.state.SetRecordedBalance(token, actual); err != nil {
		return nil, err
	}
	return new(big.Int).Sub(actual, recorded), nil
}

// transferOut pays the receiver and resyncs the recorded balance from the
// custodial source.
func (e *Engine) transferOut(token Address, amount *big.Int, receiver Address) error {
	if amount == nil || amount.Sign() == 0 {
		return e.resyncBalance(token)
	}
	if err := e.tokens.Transfer(token, receiver, amount); err != nil {
		return err
	}
	return e.resyncBalance(token)
}

// resyncBalance records the custodial balance without moving funds. Used
// after debt-token burns, which reduce the vault's balance out of band.
func (e *Engine) resyncBalance(token Address) error {
	actual, err := e.tokens.BalanceOf(token, e.vaultAddr)
	if err != nil {
		return err
	}
	if actual == nil {
		actual = big.NewInt(0)
	}
	return e.state.SetRecordedBalance(token, actual)
}

func (e *Engine) recordedBalance(token Address) (*big.Int, error) {
	recorded, err := e.state.RecordedBalance(token)
	if err != nil {
		return nil, err
	}
	if recorded == nil {
		return big.NewInt(0), nil
	}
	return recorded, nil
}
