package vault

import (
	"math/big"
	"testing"
)

func TestSwapEthForUsdc(t *testing.T) {
	env := newTestEnv(t)
	eth := makeAddress(0x11)
	usdc := makeAddress(0x10)
	env.addToken(t, eth, 18, 10_000, false, true, usd(2000))
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))

	// Seed output liquidity.
	env.credit(usdc, amount(100_000, 6))
	if err := env.engine.DirectPoolDeposit(usdc); err != nil {
		t.Fatalf("seed usdc: %v", err)
	}

	user := makeAddress(0x20)
	env.credit(eth, amount(1, 18))
	out, err := env.engine.Swap(eth, usdc, user)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	assertEq(t, out, big.NewInt(1_994_000_000), "amount out after fees")

	usdcAsset := env.asset(t, usdc)
	assertEq(t, usdcAsset.FeeReserve, big.NewInt(6_000_000), "usdc fee reserve")
	assertEq(t, usdcAsset.PoolAmount, big.NewInt(98_000_000_000), "usdc pool")

	ethAsset := env.asset(t, eth)
	assertEq(t, ethAsset.PoolAmount, amount(1, 18), "eth pool")
	assertEq(t, ethAsset.DebtAmount, amount(2000, 18), "eth debt")
	assertEq(t, usdcAsset.DebtAmount, big.NewInt(0), "usdc debt saturates at zero")

	balance, err := env.ledger.BalanceOf(usdc, user)
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	assertEq(t, balance, big.NewInt(1_994_000_000), "user usdc balance")
}

func TestSwapRoundTripLosesOnlyFees(t *testing.T) {
	env := newTestEnv(t)
	eth := makeAddress(0x11)
	usdc := makeAddress(0x10)
	env.addToken(t, eth, 18, 10_000, false, true, usd(2000))
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))

	env.credit(usdc, amount(100_000, 6))
	if err := env.engine.DirectPoolDeposit(usdc); err != nil {
		t.Fatalf("seed usdc: %v", err)
	}
	env.credit(eth, amount(100, 18))
	if err := env.engine.DirectPoolDeposit(eth); err != nil {
		t.Fatalf("seed eth: %v", err)
	}

	user := makeAddress(0x20)
	start := amount(1, 18)
	env.credit(eth, start)
	usdcOut, err := env.engine.Swap(eth, usdc, user)
	if err != nil {
		t.Fatalf("swap eth->usdc: %v", err)
	}

	if err := env.ledger.debit(usdc, user, usdcOut); err != nil {
		t.Fatalf("return usdc: %v", err)
	}
	env.ledger.credit(usdc, env.vault, usdcOut)
	ethOut, err := env.engine.Swap(usdc, eth, user)
	if err != nil {
		t.Fatalf("swap usdc->eth: %v", err)
	}

	if ethOut.Cmp(start) >= 0 {
		t.Fatalf("round trip must not profit: in %s out %s", start, ethOut)
	}
	// 30 bps each way at flat prices.
	want := new(big.Int).Mul(big.NewInt(997*997), pow10(12))
	assertEq(t, ethOut, want, "eth out after two fee legs")
}

func TestSwapSameTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	usdc := makeAddress(0x10)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))
	_, err := env.engine.Swap(usdc, usdc, makeAddress(0x20))
	assertCode(t, err, CodeInvalidTokens)
}

func TestSwapDisabled(t *testing.T) {
	env := newTestEnv(t)
	usdc := makeAddress(0x10)
	eth := makeAddress(0x11)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))
	env.addToken(t, eth, 18, 10_000, false, true, usd(2000))
	env.engine.SetIsSwapEnabled(false)
	_, err := env.engine.Swap(eth, usdc, makeAddress(0x20))
	assertCode(t, err, CodeSwapsNotEnabled)
}

func TestSwapEnforcesBuffer(t *testing.T) {
	env := newTestEnv(t)
	eth := makeAddress(0x11)
	usdc := makeAddress(0x10)
	env.addToken(t, eth, 18, 10_000, false, true, usd(2000))
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))

	env.credit(usdc, amount(3000, 6))
	if err := env.engine.DirectPoolDeposit(usdc); err != nil {
		t.Fatalf("seed usdc: %v", err)
	}
	if err := env.engine.SetBufferAmount(usdc, amount(2000, 6)); err != nil {
		t.Fatalf("set buffer: %v", err)
	}

	// 1 ETH would pull 2000 USDC out, leaving 1000 < buffer.
	env.credit(eth, amount(1, 18))
	_, err := env.engine.Swap(eth, usdc, makeAddress(0x20))
	assertCode(t, err, CodePoolBelowBuffer)
}
