package main

import (
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perpvault/config"
	"perpvault/events"
	"perpvault/observability/logging"
	"perpvault/observability/metrics"
	"perpvault/storage"
	"perpvault/vault"
)

func main() {
	configPath := flag.String("config", "vault.toml", "path to the vault configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("vaultd", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "err", err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	var vaultAddr, govAddr vault.Address
	vaultAddr[19] = 0x01
	govAddr[19] = 0x02

	engine := vault.NewEngine(vaultAddr, govAddr)
	if err := engine.SetState(vault.NewStore(db)); err != nil {
		logger.Error("wire state", "err", err)
		os.Exit(1)
	}

	// The daemon boots against in-process collaborators; deployments swap in
	// real custody and oracle adapters through the engine setters.
	ledger := newMemLedger(vaultAddr)
	oracle := newStaticOracle()
	debt := newMemDebtToken(ledger, debtTokenAddress())
	engine.SetTokenLedger(ledger)
	engine.SetEmitter(newLogEmitter(logger))
	engine.SetMetrics(metrics.Vault())

	liquidationFee, ok := new(big.Int).SetString(cfg.Fees.LiquidationFeeUsd, 10)
	if !ok || liquidationFee.Sign() == 0 {
		liquidationFee = new(big.Int).Set(vault.MaxLiquidationFeeUsd)
	}
	var router vault.Address
	if err := engine.Initialize(router, debt, debtTokenAddress(), oracle, liquidationFee, cfg.Funding.FundingRateFactor, cfg.Funding.StableFundingRateFactor); err != nil {
		logger.Error("initialize engine", "err", err)
		os.Exit(1)
	}
	if err := cfg.Apply(engine); err != nil {
		logger.Error("apply config", "err", err)
		os.Exit(1)
	}

	logger.Info("vault engine ready", "dataDir", cfg.DataDir, "tokens", len(cfg.Tokens))

	if cfg.MetricsAddress != "" {
		http.Handle("/metrics", promhttp.Handler())
		logger.Info("serving metrics", "addr", cfg.MetricsAddress)
		if err := http.ListenAndServe(cfg.MetricsAddress, nil); err != nil {
			logger.Error("metrics listener", "err", err)
			os.Exit(1)
		}
	}
}

func debtTokenAddress() vault.Address {
	var addr vault.Address
	addr[19] = 0xdd
	return addr
}

// logEmitter forwards vault events to the structured logger.
type logEmitter struct {
	logger interface {
		Info(msg string, args ...any)
	}
}

func newLogEmitter(logger interface {
	Info(msg string, args ...any)
}) *logEmitter {
	return &logEmitter{logger: logger}
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || evt == nil {
		return
	}
	l.logger.Info("vault event", "type", evt.EventType())
}

// memLedger is a reference in-process custody ledger. Outbound transfers
// always debit the vault's own holding.
type memLedger struct {
	mu       sync.RWMutex
	vault    vault.Address
	balances map[vault.Address]map[vault.Address]*big.Int
}

func newMemLedger(vaultAddr vault.Address) *memLedger {
	return &memLedger{vault: vaultAddr, balances: make(map[vault.Address]map[vault.Address]*big.Int)}
}

// Credit funds a holder, modelling the pre-credit step of every vault flow.
func (l *memLedger) Credit(token, holder vault.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[token] == nil {
		l.balances[token] = make(map[vault.Address]*big.Int)
	}
	if l.balances[token][holder] == nil {
		l.balances[token][holder] = big.NewInt(0)
	}
	l.balances[token][holder] = new(big.Int).Add(l.balances[token][holder], amount)
}

func (l *memLedger) BalanceOf(token, holder vault.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if holders, ok := l.balances[token]; ok {
		if balance, ok := holders[holder]; ok {
			return new(big.Int).Set(balance), nil
		}
	}
	return big.NewInt(0), nil
}

func (l *memLedger) Transfer(token, to vault.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := big.NewInt(0)
	if l.balances[token] != nil && l.balances[token][l.vault] != nil {
		balance = l.balances[token][l.vault]
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: insufficient balance for %s", token)
	}
	l.balances[token][l.vault] = new(big.Int).Sub(balance, amount)
	if l.balances[token][to] == nil {
		l.balances[token][to] = big.NewInt(0)
	}
	l.balances[token][to] = new(big.Int).Add(l.balances[token][to], amount)
	return nil
}

func (l *memLedger) debit(token, holder vault.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := big.NewInt(0)
	if l.balances[token] != nil && l.balances[token][holder] != nil {
		balance = l.balances[token][holder]
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: burn exceeds balance of %s", holder)
	}
	l.balances[token][holder] = new(big.Int).Sub(balance, amount)
	return nil
}

// staticOracle serves fixed prices installed at boot or via admin tooling.
type staticOracle struct {
	mu     sync.RWMutex
	prices map[vault.Address]*big.Int
}

func newStaticOracle() *staticOracle {
	return &staticOracle{prices: make(map[vault.Address]*big.Int)}
}

func (o *staticOracle) SetPrice(token vault.Address, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[token] = new(big.Int).Set(price)
}

func (o *staticOracle) GetPrice(token vault.Address, maximise, includeAmm, useSwapPricing bool) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if price, ok := o.prices[token]; ok {
		return new(big.Int).Set(price), nil
	}
	// Default to par so freshly configured tokens pass the registration
	// price check before a feed is installed.
	return new(big.Int).Set(vault.PricePrecision), nil
}

// memDebtToken is a reference in-process debt token. Balances live in the
// shared custody ledger so burns are visible to the vault's balance tracker.
type memDebtToken struct {
	mu     sync.Mutex
	ledger *memLedger
	token  vault.Address
	supply *big.Int
}

func newMemDebtToken(ledger *memLedger, token vault.Address) *memDebtToken {
	return &memDebtToken{ledger: ledger, token: token, supply: big.NewInt(0)}
}

func (t *memDebtToken) Mint(to vault.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.Credit(t.token, to, amount)
	t.supply = new(big.Int).Add(t.supply, amount)
	return nil
}

func (t *memDebtToken) Burn(from vault.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ledger.debit(t.token, from, amount); err != nil {
		return err
	}
	t.supply = new(big.Int).Sub(t.supply, amount)
	return nil
}

func (t *memDebtToken) TotalSupply() (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.supply), nil
}

func (t *memDebtToken) BalanceOf(addr vault.Address) (*big.Int, error) {
	return t.ledger.BalanceOf(t.token, addr)
}
