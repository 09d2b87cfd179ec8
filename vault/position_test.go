package vault

import (
	"math/big"
	"testing"
)

func setupLongMarket(t *testing.T) (*testEnv, Address) {
	t.Helper()
	env := newTestEnv(t)
	eth := makeAddress(0x11)
	env.oracle.setPrice(eth, usd(1999), usd(2000))
	if err := env.engine.SetTokenConfig(eth, 18, 10_000, 0, big.NewInt(0), false, true); err != nil {
		t.Fatalf("set token config: %v", err)
	}
	env.credit(eth, amount(10, 18))
	if err := env.engine.DirectPoolDeposit(eth); err != nil {
		t.Fatalf("seed eth pool: %v", err)
	}
	return env, eth
}

func setupShortMarket(t *testing.T) (*testEnv, Address, Address) {
	t.Helper()
	env := newTestEnv(t)
	usdc := makeAddress(0x10)
	btc := makeAddress(0x12)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))
	env.addToken(t, btc, 8, 10_000, false, true, usd(30_000))
	env.credit(usdc, amount(10_000, 6))
	if err := env.engine.DirectPoolDeposit(usdc); err != nil {
		t.Fatalf("seed usdc pool: %v", err)
	}
	return env, usdc, btc
}

func TestOpenLongPosition(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)

	env.credit(eth, amount(1, 18))
	if err := env.engine.IncreasePosition(user, user, eth, eth, usd(10_000), true); err != nil {
		t.Fatalf("increase position: %v", err)
	}

	position, err := env.engine.GetPosition(user, eth, eth, true)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, usd(10_000), "size")
	// 1 ETH at the min price 1999 minus the 10 USD position fee.
	assertEq(t, position.Collateral, usd(1989), "collateral")
	assertEq(t, position.AveragePrice, usd(2000), "average price")
	if position.Size.Cmp(position.Collateral) < 0 {
		t.Fatalf("size must cover collateral")
	}

	// 10000 USD reserved at the min price 1999.
	wantReserve, _ := new(big.Int).SetString("5002501250625312656", 10)
	assertEq(t, position.ReserveAmount, wantReserve, "reserve amount")

	asset := env.asset(t, eth)
	assertEq(t, asset.ReservedAmount, wantReserve, "reserved amount")
	// Guaranteed tracks size minus collateral.
	assertEq(t, asset.GuaranteedUsd, usd(8011), "guaranteed usd")
	wantGuaranteed := new(big.Int).Sub(position.Size, position.Collateral)
	assertEq(t, asset.GuaranteedUsd, wantGuaranteed, "guaranteed identity")

	// Pool gains the collateral and pays the 10 USD fee at the max price.
	wantPool := new(big.Int).Sub(amount(11, 18), big.NewInt(5_000_000_000_000_000))
	assertEq(t, asset.PoolAmount, wantPool, "pool amount")
	assertEq(t, asset.FeeReserve, big.NewInt(5_000_000_000_000_000), "fee reserve")

	leverage, err := env.engine.GetPositionLeverage(user, eth, eth, true)
	if err != nil {
		t.Fatalf("get leverage: %v", err)
	}
	// 10000 / 1989 in basis points.
	assertEq(t, leverage, big.NewInt(50276), "leverage")
}

func TestDecreaseLongWithProfit(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)
	env.credit(eth, amount(1, 18))
	if err := env.engine.IncreasePosition(user, user, eth, eth, usd(10_000), true); err != nil {
		t.Fatalf("increase position: %v", err)
	}

	env.oracle.setPrice(eth, usd(2200), usd(2200))
	out, err := env.engine.DecreasePosition(user, user, eth, eth, big.NewInt(0), usd(5000), true, user)
	if err != nil {
		t.Fatalf("decrease position: %v", err)
	}
	// 500 USD profit share minus the 5 USD close fee, at price 2200.
	assertEq(t, out, big.NewInt(225_000_000_000_000_000), "tokens out")

	position, err := env.engine.GetPosition(user, eth, eth, true)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, usd(5000), "size after decrease")
	assertEq(t, position.Collateral, usd(1989), "collateral untouched on profit")
	assertEq(t, position.RealisedPnl, usd(500), "realised pnl")

	asset := env.asset(t, eth)
	wantGuaranteed := new(big.Int).Sub(position.Size, position.Collateral)
	assertEq(t, asset.GuaranteedUsd, wantGuaranteed, "guaranteed identity after decrease")
	// Half the reservation was released.
	wantReserve, _ := new(big.Int).SetString("2501250625312656328", 10)
	assertEq(t, asset.ReservedAmount, wantReserve, "reserved after decrease")
}

func TestCloseLongDeletesPosition(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)
	env.credit(eth, amount(1, 18))
	if err := env.engine.IncreasePosition(user, user, eth, eth, usd(10_000), true); err != nil {
		t.Fatalf("increase position: %v", err)
	}

	if _, err := env.engine.DecreasePosition(user, user, eth, eth, big.NewInt(0), usd(10_000), true, user); err != nil {
		t.Fatalf("close position: %v", err)
	}

	position, err := env.engine.GetPosition(user, eth, eth, true)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, big.NewInt(0), "size after close")
	assertEq(t, position.Collateral, big.NewInt(0), "collateral after close")

	asset := env.asset(t, eth)
	assertEq(t, asset.ReservedAmount, big.NewInt(0), "reserved cleared")
	assertEq(t, asset.GuaranteedUsd, big.NewInt(0), "guaranteed cleared")
}

func TestCloseLongEnforcesBuffer(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)
	env.credit(eth, amount(1, 18))
	if err := env.engine.IncreasePosition(user, user, eth, eth, usd(10_000), true); err != nil {
		t.Fatalf("increase position: %v", err)
	}
	// The payout on close would pull the pool below this floor.
	if err := env.engine.SetBufferAmount(eth, big.NewInt(10_900_000_000_000_000_000)); err != nil {
		t.Fatalf("set buffer: %v", err)
	}

	_, err := env.engine.DecreasePosition(user, user, eth, eth, big.NewInt(0), usd(10_000), true, user)
	assertCode(t, err, CodePoolBelowBuffer)

	// The stored position and ledger survive the failed close.
	position, err := env.engine.GetPosition(user, eth, eth, true)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, usd(10_000), "position intact")
	asset := env.asset(t, eth)
	assertEq(t, asset.PoolAmount, big.NewInt(10_995_000_000_000_000_000), "pool unchanged")
}

func TestOpenShortPosition(t *testing.T) {
	env, usdc, btc := setupShortMarket(t)
	user := makeAddress(0x20)

	env.credit(usdc, amount(200, 6))
	if err := env.engine.IncreasePosition(user, user, usdc, btc, usd(1000), false); err != nil {
		t.Fatalf("increase short: %v", err)
	}

	position, err := env.engine.GetPosition(user, usdc, btc, false)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, usd(1000), "size")
	assertEq(t, position.Collateral, usd(199), "collateral after 1 USD fee")
	assertEq(t, position.AveragePrice, usd(30_000), "average price")
	assertEq(t, position.ReserveAmount, amount(1000, 6), "reserve in collateral tokens")

	asset := env.asset(t, btc)
	assertEq(t, asset.GlobalShortSize, usd(1000), "global short size")
	assertEq(t, asset.GlobalShortAveragePrice, usd(30_000), "global short average price")

	usdcAsset := env.asset(t, usdc)
	assertEq(t, usdcAsset.ReservedAmount, amount(1000, 6), "usdc reserved")
	// Short collateral stays outside the pool bookkeeping.
	assertEq(t, usdcAsset.PoolAmount, amount(10_000, 6), "usdc pool untouched")
	assertEq(t, usdcAsset.FeeReserve, amount(1, 6), "usdc fee reserve")
	assertEq(t, usdcAsset.GuaranteedUsd, big.NewInt(0), "no guaranteed usd on shorts")
}

func TestGlobalShortAveragePriceAggregates(t *testing.T) {
	env, usdc, btc := setupShortMarket(t)
	user := makeAddress(0x20)

	env.credit(usdc, amount(200, 6))
	if err := env.engine.IncreasePosition(user, user, usdc, btc, usd(1000), false); err != nil {
		t.Fatalf("first short: %v", err)
	}

	env.oracle.setPrice(btc, usd(33_000), usd(33_000))
	env.credit(usdc, amount(200, 6))
	if err := env.engine.IncreasePosition(user, user, usdc, btc, usd(500), false); err != nil {
		t.Fatalf("second short: %v", err)
	}

	asset := env.asset(t, btc)
	assertEq(t, asset.GlobalShortSize, usd(1500), "global short size")
	// 33000 * 1500 / (1500 + 100) with the book 100 USD under water.
	want := new(big.Int).Mul(big.NewInt(309_375), new(big.Int).Exp(big.NewInt(10), big.NewInt(29), nil))
	assertEq(t, asset.GlobalShortAveragePrice, want, "aggregated short entry")
}

func TestPartialDecreaseShortRealisesLoss(t *testing.T) {
	env, usdc, btc := setupShortMarket(t)
	user := makeAddress(0x20)
	env.credit(usdc, amount(200, 6))
	if err := env.engine.IncreasePosition(user, user, usdc, btc, usd(1000), false); err != nil {
		t.Fatalf("increase short: %v", err)
	}

	env.oracle.setPrice(btc, usd(31_500), usd(31_500))
	if _, err := env.engine.DecreasePosition(user, user, usdc, btc, big.NewInt(0), usd(500), false, user); err != nil {
		t.Fatalf("decrease short: %v", err)
	}

	position, err := env.engine.GetPosition(user, usdc, btc, false)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, usd(500), "size after decrease")
	// 25 USD loss realised plus the 0.5 USD close fee taken from collateral.
	wantCollateral := new(big.Int).Sub(usd(174), new(big.Int).Quo(PricePrecision, big.NewInt(2)))
	assertEq(t, position.Collateral, wantCollateral, "collateral after loss and fee")
	assertEq(t, position.RealisedPnl, new(big.Int).Neg(usd(25)), "realised loss")

	usdcAsset := env.asset(t, usdc)
	// The loss accrues to the pool at the max price.
	assertEq(t, usdcAsset.PoolAmount, amount(10_025, 6), "pool gains the loss")
	// Reservation released proportionally.
	assertEq(t, usdcAsset.ReservedAmount, amount(500, 6), "reserved halved")

	btcAsset := env.asset(t, btc)
	assertEq(t, btcAsset.GlobalShortSize, usd(500), "global short reduced")
}

func TestOverLeverageAtOpenReverts(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)

	// ~100x leverage against the 50x ceiling.
	env.credit(eth, big.NewInt(50_000_000_000_000_000))
	err := env.engine.IncreasePosition(user, user, eth, eth, usd(10_000), true)
	assertCode(t, err, CodeMaxLeverageExceeded)

	position, err := env.engine.GetPosition(user, eth, eth, true)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	assertEq(t, position.Size, big.NewInt(0), "no position stored")

	asset := env.asset(t, eth)
	assertEq(t, asset.ReservedAmount, big.NewInt(0), "no reservation")
	assertEq(t, asset.GuaranteedUsd, big.NewInt(0), "no guaranteed usd")
	assertEq(t, asset.PoolAmount, amount(10, 18), "pool unchanged")
}

func TestPositionTokenValidation(t *testing.T) {
	env := newTestEnv(t)
	usdc := makeAddress(0x10)
	eth := makeAddress(0x11)
	dai := makeAddress(0x13)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))
	env.addToken(t, eth, 18, 10_000, false, true, usd(2000))
	env.addToken(t, dai, 18, 10_000, true, false, usd(1))
	user := makeAddress(0x20)

	err := env.engine.IncreasePosition(user, user, usdc, usdc, usd(100), true)
	assertCode(t, err, CodeCollateralMustNotBeStable)

	err = env.engine.IncreasePosition(user, user, eth, usdc, usd(100), true)
	assertCode(t, err, CodeMismatchedTokens)

	err = env.engine.IncreasePosition(user, user, eth, eth, usd(100), false)
	assertCode(t, err, CodeCollateralMustBeStable)

	err = env.engine.IncreasePosition(user, user, usdc, dai, usd(100), false)
	assertCode(t, err, CodeIndexMustNotBeStable)

	notShortable := makeAddress(0x14)
	env.addToken(t, notShortable, 18, 10_000, false, false, usd(10))
	err = env.engine.IncreasePosition(user, user, usdc, notShortable, usd(100), false)
	assertCode(t, err, CodeIndexNotShortable)
}

func TestRouterApprovalRequired(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)
	router := makeAddress(0x30)

	env.credit(eth, amount(1, 18))
	err := env.engine.IncreasePosition(router, user, eth, eth, usd(5000), true)
	assertCode(t, err, CodeInvalidRouter)

	env.engine.SetRouterApproval(user, router, true)
	if err := env.engine.IncreasePosition(router, user, eth, eth, usd(5000), true); err != nil {
		t.Fatalf("approved router increase: %v", err)
	}
}

func TestLeverageDisabled(t *testing.T) {
	env, eth := setupLongMarket(t)
	env.engine.SetIsLeverageEnabled(false)
	user := makeAddress(0x20)
	err := env.engine.IncreasePosition(user, user, eth, eth, usd(1000), true)
	assertCode(t, err, CodeLeverageNotEnabled)
}

func TestGasPriceCeiling(t *testing.T) {
	env, eth := setupLongMarket(t)
	user := makeAddress(0x20)
	env.engine.SetMaxGasPrice(big.NewInt(100))
	env.engine.SetGasPrice(big.NewInt(250))
	err := env.engine.IncreasePosition(user, user, eth, eth, usd(5000), true)
	assertCode(t, err, CodeInvalidGasPrice)

	env.engine.SetGasPrice(big.NewInt(90))
	env.credit(eth, amount(1, 18))
	if err := env.engine.IncreasePosition(user, user, eth, eth, usd(5000), true); err != nil {
		t.Fatalf("increase under ceiling: %v", err)
	}
}
