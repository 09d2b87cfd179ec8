package vault

import (
	"math/big"
	"sync"
	"time"

	"perpvault/events"
	"perpvault/observability/metrics"
)

const moduleName = "vault"

// Engine orchestrates the vault's state transitions: debt mint/redeem, swaps
// and the leveraged position lifecycle. Public operations are serialized by a
// mutex; internal helpers assume the lock is held.
type Engine struct {
	mu sync.Mutex

	state     State
	tokens    TokenLedger
	oracle    PriceOracle
	debtToken DebtToken

	vaultAddr     Address
	debtTokenAddr Address
	router        Address
	gov           Address

	emitter events.Emitter
	metrics *metrics.VaultMetrics
	pauses  PauseView
	clock   func() time.Time

	utils FeeModel

	fee         FeeParameters
	funding     FundingParameters
	maxLeverage uint64
	maxGasPrice *big.Int
	gasPrice    *big.Int

	totalWeights uint64

	initialized              bool
	inManagerMode            bool
	inPrivateLiquidationMode bool
	isSwapEnabled            bool
	isLeverageEnabled        bool

	// Transient pricing flags, bracketed around single operations. Safe
	// under the engine mutex; never persisted.
	includeAmmPrice bool
	useSwapPricing  bool

	managers    map[Address]bool
	liquidators map[Address]bool
	// approvedRouters[account][router] grants a delegate the right to act on
	// the account's positions.
	approvedRouters map[Address]map[Address]bool

	errorMessages map[Code]string
}

// NewEngine constructs an engine bound to the vault's custodial address and
// its governance account. State, ledger, oracle and debt token are wired via
// the setters before Initialize.
func NewEngine(vaultAddr, gov Address) *Engine {
	return &Engine{
		vaultAddr:         vaultAddr,
		gov:               gov,
		emitter:           events.NoopEmitter{},
		clock:             time.Now,
		isSwapEnabled:     true,
		isLeverageEnabled: true,
		includeAmmPrice:   true,
		maxLeverage:       DefaultMaxLeverage,
		managers:          make(map[Address]bool),
		liquidators:       make(map[Address]bool),
		approvedRouters:   make(map[Address]map[Address]bool),
		errorMessages:     make(map[Code]string),
	}
}

// SetState wires the engine to the external persistence layer and refreshes
// the derived weight totals.
func (e *Engine) SetState(state State) error {
	if e == nil {
		return errNilState
	}
	e.state = state
	return e.reloadTotalWeights()
}

// SetTokenLedger wires the custodial balance source.
func (e *Engine) SetTokenLedger(tokens TokenLedger) {
	if e == nil {
		return
	}
	e.tokens = tokens
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics attaches the optional operation counters.
func (e *Engine) SetMetrics(m *metrics.VaultMetrics) {
	if e == nil {
		return
	}
	e.metrics = m
}

// SetPauses wires the emergency-stop view consulted by every user operation.
func (e *Engine) SetPauses(p PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock overrides the time source (primarily for deterministic testing).
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

// SetGasPrice records the caller-observed gas price checked against the
// governance ceiling on position operations.
func (e *Engine) SetGasPrice(price *big.Int) {
	if e == nil {
		return
	}
	if price == nil {
		e.gasPrice = nil
		return
	}
	e.gasPrice = new(big.Int).Set(price)
}

// Initialize wires the collaborators and the base risk settings. It may be
// called once.
func (e *Engine) Initialize(router Address, debtToken DebtToken, debtTokenAddr Address, oracle PriceOracle, liquidationFeeUsd *big.Int, fundingRateFactor, stableFundingRateFactor uint64) error {
	if e == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validate(!e.initialized, CodeAlreadyInitialized); err != nil {
		return err
	}
	if err := e.validate(liquidationFeeUsd != nil && liquidationFeeUsd.Sign() > 0 && liquidationFeeUsd.Cmp(MaxLiquidationFeeUsd) <= 0, CodeInvalidLiquidationFeeUsd); err != nil {
		return err
	}
	if err := e.validate(fundingRateFactor <= MaxFundingRateFactor, CodeInvalidFundingRateFactor); err != nil {
		return err
	}
	if err := e.validate(stableFundingRateFactor <= MaxFundingRateFactor, CodeInvalidStableFundingRateFactor); err != nil {
		return err
	}
	e.initialized = true
	e.router = router
	e.debtToken = debtToken
	e.debtTokenAddr = debtTokenAddr
	e.oracle = oracle
	e.fee = FeeParameters{
		TaxBasisPoints:           50,
		StableTaxBasisPoints:     20,
		MintBurnFeeBasisPoints:   30,
		SwapFeeBasisPoints:       30,
		StableSwapFeeBasisPoints: 4,
		MarginFeeBasisPoints:     10,
		LiquidationFeeUsd:        new(big.Int).Set(liquidationFeeUsd),
	}
	e.funding = FundingParameters{
		FundingInterval:         DefaultFundingInterval,
		FundingRateFactor:       fundingRateFactor,
		StableFundingRateFactor: stableFundingRateFactor,
	}
	if e.utils == nil {
		e.utils = NewUtils(e)
	}
	return nil
}

// SetUtils swaps the fee model. The default Utils reads the engine through
// its narrow view interface.
func (e *Engine) SetUtils(utils FeeModel) {
	if e == nil || utils == nil {
		return
	}
	e.utils = utils
}

// SetGov transfers governance.
func (e *Engine) SetGov(gov Address) {
	if e == nil {
		return
	}
	e.gov = gov
}

// Gov returns the governance account.
func (e *Engine) Gov() Address {
	if e == nil {
		return Address{}
	}
	return e.gov
}

// SetPriceFeed swaps the price oracle.
func (e *Engine) SetPriceFeed(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetInManagerMode restricts debt mint/redeem to approved managers.
func (e *Engine) SetInManagerMode(enabled bool) {
	if e == nil {
		return
	}
	e.inManagerMode = enabled
}

// SetManager grants or revokes manager approval.
func (e *Engine) SetManager(addr Address, approved bool) {
	if e == nil {
		return
	}
	if approved {
		e.managers[addr] = true
		return
	}
	delete(e.managers, addr)
}

// SetInPrivateLiquidationMode restricts liquidations to approved liquidators.
func (e *Engine) SetInPrivateLiquidationMode(enabled bool) {
	if e == nil {
		return
	}
	e.inPrivateLiquidationMode = enabled
}

// SetLiquidator grants or revokes liquidator approval.
func (e *Engine) SetLiquidator(addr Address, approved bool) {
	if e == nil {
		return
	}
	if approved {
		e.liquidators[addr] = true
		return
	}
	delete(e.liquidators, addr)
}

// SetRouterApproval lets an account delegate position management to a router.
func (e *Engine) SetRouterApproval(account, router Address, approved bool) {
	if e == nil {
		return
	}
	if approved {
		if e.approvedRouters[account] == nil {
			e.approvedRouters[account] = make(map[Address]bool)
		}
		e.approvedRouters[account][router] = true
		return
	}
	delete(e.approvedRouters[account], router)
}

// SetIsSwapEnabled toggles the swap engine.
func (e *Engine) SetIsSwapEnabled(enabled bool) {
	if e == nil {
		return
	}
	e.isSwapEnabled = enabled
}

// SetIsLeverageEnabled toggles position opens and increases.
func (e *Engine) SetIsLeverageEnabled(enabled bool) {
	if e == nil {
		return
	}
	e.isLeverageEnabled = enabled
}

// SetMaxGasPrice sets the gas price ceiling. Zero disables the guard.
func (e *Engine) SetMaxGasPrice(price *big.Int) {
	if e == nil {
		return
	}
	if price == nil || price.Sign() == 0 {
		e.maxGasPrice = nil
		return
	}
	e.maxGasPrice = new(big.Int).Set(price)
}

// SetMaxLeverage bounds position leverage in basis points.
func (e *Engine) SetMaxLeverage(maxLeverage uint64) error {
	if e == nil {
		return errNilState
	}
	if err := e.validate(maxLeverage > MinLeverageBasisPoints, CodeInvalidMaxLeverage); err != nil {
		return err
	}
	e.maxLeverage = maxLeverage
	return nil
}

// SetFees replaces the fee parameters after validating every rate against its
// cap.
func (e *Engine) SetFees(fee FeeParameters) error {
	if e == nil {
		return errNilState
	}
	if err := e.validate(fee.TaxBasisPoints <= MaxFeeBasisPoints, CodeInvalidTaxBps); err != nil {
		return err
	}
	if err := e.validate(fee.StableTaxBasisPoints <= MaxFeeBasisPoints, CodeInvalidStableTaxBps); err != nil {
		return err
	}
	if err := e.validate(fee.MintBurnFeeBasisPoints <= MaxFeeBasisPoints, CodeInvalidMintBurnFeeBps); err != nil {
		return err
	}
	if err := e.validate(fee.SwapFeeBasisPoints <= MaxFeeBasisPoints, CodeInvalidSwapFeeBps); err != nil {
		return err
	}
	if err := e.validate(fee.StableSwapFeeBasisPoints <= MaxFeeBasisPoints, CodeInvalidStableSwapFeeBps); err != nil {
		return err
	}
	if err := e.validate(fee.MarginFeeBasisPoints <= MaxFeeBasisPoints, CodeInvalidMarginFeeBps); err != nil {
		return err
	}
	if err := e.validate(fee.LiquidationFeeUsd != nil && fee.LiquidationFeeUsd.Cmp(MaxLiquidationFeeUsd) <= 0, CodeInvalidLiquidationFeeUsd); err != nil {
		return err
	}
	e.fee = fee
	e.fee.LiquidationFeeUsd = new(big.Int).Set(fee.LiquidationFeeUsd)
	return nil
}

// SetFundingRate replaces the funding configuration.
func (e *Engine) SetFundingRate(interval, fundingRateFactor, stableFundingRateFactor uint64) error {
	if e == nil {
		return errNilState
	}
	if err := e.validate(interval >= MinFundingInterval, CodeInvalidFundingInterval); err != nil {
		return err
	}
	if err := e.validate(fundingRateFactor <= MaxFundingRateFactor, CodeInvalidFundingRateFactor); err != nil {
		return err
	}
	if err := e.validate(stableFundingRateFactor <= MaxFundingRateFactor, CodeInvalidStableFundingRateFactor); err != nil {
		return err
	}
	e.funding = FundingParameters{
		FundingInterval:         interval,
		FundingRateFactor:       fundingRateFactor,
		StableFundingRateFactor: stableFundingRateFactor,
	}
	return nil
}

// SetError installs or overrides the message for a numeric error code.
func (e *Engine) SetError(code Code, msg string) error {
	if e == nil {
		return errNilState
	}
	if err := e.validate(code > 0, CodeInvalidErrorCode); err != nil {
		return err
	}
	e.errorMessages[code] = msg
	return nil
}

// SetBufferAmount sets the pool floor for a token.
func (e *Engine) SetBufferAmount(token Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return err
	}
	asset.BufferAmount = copyOrZero(amount)
	return e.state.PutAsset(token, asset)
}

// SetMaxGlobalShortSize caps the aggregate short book for an index token.
// Zero disables the cap.
func (e *Engine) SetMaxGlobalShortSize(token Address, size *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return err
	}
	asset.MaxGlobalShortSize = copyOrZero(size)
	return e.state.PutAsset(token, asset)
}

// SetDebtAmount force-adjusts a token's debt bookkeeping to the target,
// emitting the matching increase or decrease record.
func (e *Engine) SetDebtAmount(token Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return err
	}
	target := copyOrZero(amount)
	current := asset.DebtAmount
	if target.Cmp(current) > 0 {
		if err := e.increaseDebt(asset, new(big.Int).Sub(target, current)); err != nil {
			return err
		}
	} else if target.Cmp(current) < 0 {
		e.decreaseDebt(asset, new(big.Int).Sub(current, target))
	}
	return e.state.PutAsset(token, asset)
}

// UpgradeVault transfers pooled tokens to a successor vault during a
// migration. The pool bookkeeping is reduced accordingly.
func (e *Engine) UpgradeVault(newVault, token Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validate(!newVault.IsZero(), CodeInvalidReceiver); err != nil {
		return err
	}
	asset, err := e.loadWhitelisted(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return e.codeError(CodeInvalidTokenAmount)
	}
	if err := e.decreasePool(asset, amount); err != nil {
		return err
	}
	if err := e.state.PutAsset(token, asset); err != nil {
		return err
	}
	return e.transferOut(token, amount, newVault)
}

// WithdrawFees transfers a token's whole fee reserve to the receiver and
// returns the amount moved.
func (e *Engine) WithdrawFees(token, receiver Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Set(asset.FeeReserve)
	if amount.Sign() == 0 {
		return amount, nil
	}
	asset.FeeReserve = big.NewInt(0)
	if err := e.state.PutAsset(token, asset); err != nil {
		return nil, err
	}
	if err := e.transferOut(token, amount, receiver); err != nil {
		return nil, err
	}
	e.observeAsset(asset)
	return amount, nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) observe(op string) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.ObserveOperation(op)
}

// observeAsset publishes an asset's ledger levels after a mutation. Gauges
// are lossy float views for dashboards; the ledger itself stays exact.
func (e *Engine) observeAsset(asset *Asset) {
	if e == nil || e.metrics == nil || asset == nil {
		return
	}
	token := asset.Token.String()
	e.metrics.SetPoolAmount(token, gaugeValue(asset.PoolAmount))
	e.metrics.SetDebtAmount(token, gaugeValue(asset.DebtAmount))
	e.metrics.SetFeeReserve(token, gaugeValue(asset.FeeReserve))
}

func gaugeValue(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (e *Engine) now() uint64 {
	ts := e.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) requireCollaborators() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.tokens == nil:
		return errNilTokenLedger
	case e.oracle == nil:
		return errNilOracle
	case !e.initialized:
		return e.codeError(CodeNotInitialized)
	}
	return nil
}

func (e *Engine) validateGasPrice() error {
	if e.maxGasPrice == nil || e.gasPrice == nil {
		return nil
	}
	return e.validate(e.gasPrice.Cmp(e.maxGasPrice) <= 0, CodeInvalidGasPrice)
}

func (e *Engine) validateManager(sender Address) error {
	if !e.inManagerMode {
		return nil
	}
	return e.validate(e.managers[sender], CodeForbidden)
}

func (e *Engine) validateRouter(sender, account Address) error {
	if sender == account || sender == e.router {
		return nil
	}
	return e.validate(e.approvedRouters[account][sender], CodeInvalidRouter)
}

func (e *Engine) loadAsset(token Address) (*Asset, error) {
	asset, err := e.state.GetAsset(token)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		asset = &Asset{Token: token}
	}
	asset.ensureAmounts()
	return asset, nil
}

func (e *Engine) loadWhitelisted(token Address) (*Asset, error) {
	asset, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	if !asset.Whitelisted {
		return nil, e.codeError(CodeTokenNotWhitelisted)
	}
	return asset, nil
}

func (e *Engine) reloadTotalWeights() error {
	if e.state == nil {
		e.totalWeights = 0
		return nil
	}
	tokens, err := e.state.WhitelistedTokens()
	if err != nil {
		return err
	}
	total := uint64(0)
	for _, token := range tokens {
		asset, err := e.loadAsset(token)
		if err != nil {
			return err
		}
		if asset.Whitelisted {
			total += asset.Weight
		}
	}
	e.totalWeights = total
	return nil
}

// adjustForDecimals rescales an amount between two decimal bases.
func adjustForDecimals(amount *big.Int, fromDecimals, toDecimals uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, pow10(toDecimals))
	return out.Quo(out, pow10(fromDecimals))
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// tokenToUsd converts a token amount to USD at the supplied price.
func tokenToUsd(asset *Asset, amount, price *big.Int) *big.Int {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, price)
	return out.Quo(out, pow10(asset.Decimals))
}

// usdToToken converts a USD value to token units at the supplied price.
func usdToToken(asset *Asset, usd, price *big.Int) *big.Int {
	if usd == nil || usd.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(usd, pow10(asset.Decimals))
	return out.Quo(out, price)
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
