package vault

import (
	"fmt"
	"math/big"
	"testing"
	"time"
)

type mockState struct {
	assets    map[Address]*Asset
	whitelist []Address
	positions map[PositionKey]*Position
	balances  map[Address]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		assets:    make(map[Address]*Asset),
		positions: make(map[PositionKey]*Position),
		balances:  make(map[Address]*big.Int),
	}
}

func (m *mockState) GetAsset(token Address) (*Asset, error) {
	asset, ok := m.assets[token]
	if !ok {
		return nil, nil
	}
	return copyAsset(asset), nil
}

func (m *mockState) PutAsset(token Address, asset *Asset) error {
	if asset == nil {
		return nil
	}
	m.assets[token] = copyAsset(asset)
	return nil
}

func (m *mockState) DeleteAsset(token Address) error {
	delete(m.assets, token)
	return nil
}

func (m *mockState) WhitelistedTokens() ([]Address, error) {
	return append([]Address(nil), m.whitelist...), nil
}

func (m *mockState) AppendWhitelistedToken(token Address) error {
	m.whitelist = append(m.whitelist, token)
	return nil
}

func (m *mockState) GetPosition(key PositionKey) (*Position, error) {
	position, ok := m.positions[key]
	if !ok {
		return nil, nil
	}
	return position.Copy(), nil
}

func (m *mockState) PutPosition(key PositionKey, position *Position) error {
	if position == nil {
		return nil
	}
	m.positions[key] = position.Copy()
	return nil
}

func (m *mockState) DeletePosition(key PositionKey) error {
	delete(m.positions, key)
	return nil
}

func (m *mockState) RecordedBalance(token Address) (*big.Int, error) {
	if balance, ok := m.balances[token]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetRecordedBalance(token Address, balance *big.Int) error {
	m.balances[token] = new(big.Int).Set(balance)
	return nil
}

func copyAsset(asset *Asset) *Asset {
	if asset == nil {
		return nil
	}
	clone := *asset
	clone.MaxDebt = copyOrZero(asset.MaxDebt)
	clone.BufferAmount = copyOrZero(asset.BufferAmount)
	clone.MaxGlobalShortSize = copyOrZero(asset.MaxGlobalShortSize)
	clone.PoolAmount = copyOrZero(asset.PoolAmount)
	clone.ReservedAmount = copyOrZero(asset.ReservedAmount)
	clone.DebtAmount = copyOrZero(asset.DebtAmount)
	clone.GuaranteedUsd = copyOrZero(asset.GuaranteedUsd)
	clone.FeeReserve = copyOrZero(asset.FeeReserve)
	clone.CumulativeFundingRate = copyOrZero(asset.CumulativeFundingRate)
	clone.GlobalShortSize = copyOrZero(asset.GlobalShortSize)
	clone.GlobalShortAveragePrice = copyOrZero(asset.GlobalShortAveragePrice)
	return &clone
}

type mockOracle struct {
	minPrices map[Address]*big.Int
	maxPrices map[Address]*big.Int
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		minPrices: make(map[Address]*big.Int),
		maxPrices: make(map[Address]*big.Int),
	}
}

func (o *mockOracle) setPrice(token Address, minPrice, maxPrice *big.Int) {
	o.minPrices[token] = new(big.Int).Set(minPrice)
	o.maxPrices[token] = new(big.Int).Set(maxPrice)
}

func (o *mockOracle) GetPrice(token Address, maximise, includeAmm, useSwapPricing bool) (*big.Int, error) {
	prices := o.minPrices
	if maximise {
		prices = o.maxPrices
	}
	price, ok := prices[token]
	if !ok {
		return nil, fmt.Errorf("oracle: no price for %s", token)
	}
	return new(big.Int).Set(price), nil
}

type mockLedger struct {
	vault    Address
	balances map[Address]map[Address]*big.Int
}

func newMockLedger(vaultAddr Address) *mockLedger {
	return &mockLedger{vault: vaultAddr, balances: make(map[Address]map[Address]*big.Int)}
}

func (l *mockLedger) credit(token, holder Address, amount *big.Int) {
	if l.balances[token] == nil {
		l.balances[token] = make(map[Address]*big.Int)
	}
	if l.balances[token][holder] == nil {
		l.balances[token][holder] = big.NewInt(0)
	}
	l.balances[token][holder] = new(big.Int).Add(l.balances[token][holder], amount)
}

func (l *mockLedger) debit(token, holder Address, amount *big.Int) error {
	balance := big.NewInt(0)
	if l.balances[token] != nil && l.balances[token][holder] != nil {
		balance = l.balances[token][holder]
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: insufficient balance")
	}
	l.balances[token][holder] = new(big.Int).Sub(balance, amount)
	return nil
}

func (l *mockLedger) BalanceOf(token, holder Address) (*big.Int, error) {
	if l.balances[token] != nil && l.balances[token][holder] != nil {
		return new(big.Int).Set(l.balances[token][holder]), nil
	}
	return big.NewInt(0), nil
}

func (l *mockLedger) Transfer(token, to Address, amount *big.Int) error {
	if err := l.debit(token, l.vault, amount); err != nil {
		return err
	}
	l.credit(token, to, amount)
	return nil
}

type mockDebtToken struct {
	ledger *mockLedger
	token  Address
	supply *big.Int
}

func newMockDebtToken(ledger *mockLedger, token Address) *mockDebtToken {
	return &mockDebtToken{ledger: ledger, token: token, supply: big.NewInt(0)}
}

func (t *mockDebtToken) Mint(to Address, amount *big.Int) error {
	t.ledger.credit(t.token, to, amount)
	t.supply = new(big.Int).Add(t.supply, amount)
	return nil
}

func (t *mockDebtToken) Burn(from Address, amount *big.Int) error {
	if err := t.ledger.debit(t.token, from, amount); err != nil {
		return err
	}
	t.supply = new(big.Int).Sub(t.supply, amount)
	return nil
}

func (t *mockDebtToken) TotalSupply() (*big.Int, error) {
	return new(big.Int).Set(t.supply), nil
}

func (t *mockDebtToken) BalanceOf(addr Address) (*big.Int, error) {
	return t.ledger.BalanceOf(t.token, addr)
}

type testEnv struct {
	engine   *Engine
	state    *mockState
	oracle   *mockOracle
	ledger   *mockLedger
	debt     *mockDebtToken
	now      uint64
	vault    Address
	debtAddr Address
}

func makeAddress(suffix byte) Address {
	var addr Address
	addr[len(addr)-1] = suffix
	return addr
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:    newMockState(),
		oracle:   newMockOracle(),
		now:      1_700_000_000,
		vault:    makeAddress(0x01),
		debtAddr: makeAddress(0xdd),
	}
	env.ledger = newMockLedger(env.vault)
	env.debt = newMockDebtToken(env.ledger, env.debtAddr)

	env.engine = NewEngine(env.vault, makeAddress(0x02))
	if err := env.engine.SetState(env.state); err != nil {
		t.Fatalf("set state: %v", err)
	}
	env.engine.SetTokenLedger(env.ledger)
	env.engine.SetClock(func() time.Time { return time.Unix(int64(env.now), 0) })

	liquidationFee := new(big.Int).Mul(big.NewInt(5), PricePrecision)
	var router Address
	if err := env.engine.Initialize(router, env.debt, env.debtAddr, env.oracle, liquidationFee, DefaultFundingFactor, DefaultStableFundingBps); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return env
}

func (env *testEnv) addToken(t *testing.T, token Address, decimals uint8, weight uint64, isStable, isShortable bool, price *big.Int) {
	t.Helper()
	env.oracle.setPrice(token, price, price)
	if err := env.engine.SetTokenConfig(token, decimals, weight, 0, big.NewInt(0), isStable, isShortable); err != nil {
		t.Fatalf("set token config: %v", err)
	}
}

func (env *testEnv) credit(token Address, amount *big.Int) {
	env.ledger.credit(token, env.vault, amount)
}

func (env *testEnv) asset(t *testing.T, token Address) *Asset {
	t.Helper()
	asset, err := env.state.GetAsset(token)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if asset == nil {
		t.Fatalf("asset %s missing", token)
	}
	asset.ensureAmounts()
	return asset
}

// usd scales a whole-dollar value to price precision.
func usd(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), PricePrecision)
}

func amount(v int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), pow10(decimals))
}

func assertEq(t *testing.T, got, want *big.Int, what string) {
	t.Helper()
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected %s: got %s want %s", what, got, want)
	}
}

func assertCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %d, got nil", code)
	}
	if CodeOf(err) != code {
		t.Fatalf("expected error code %d, got %d (%v)", code, CodeOf(err), err)
	}
}
