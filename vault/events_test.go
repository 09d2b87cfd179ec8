package vault

import (
	"math/big"
	"testing"

	"perpvault/events"
)

func TestBuyDebtEmitsLedgerTrail(t *testing.T) {
	env := newTestEnv(t)
	sink := &events.CollectEmitter{}
	env.engine.SetEmitter(sink)

	usdc := makeAddress(0x10)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))

	user := makeAddress(0x20)
	env.credit(usdc, big.NewInt(100_000_000))
	if _, err := env.engine.BuyDebt(user, usdc, user); err != nil {
		t.Fatalf("buy debt: %v", err)
	}

	var types []string
	for _, evt := range sink.Events {
		types = append(types, evt.EventType())
	}
	want := []string{
		events.TypeCollectSwapFees,
		events.TypeIncreaseDebtAmount,
		events.TypeIncreasePoolAmount,
		events.TypeBuyDebt,
	}
	if len(types) != len(want) {
		t.Fatalf("unexpected event trail: %v", types)
	}
	for i, wantType := range want {
		if types[i] != wantType {
			t.Fatalf("event %d: got %s want %s", i, types[i], wantType)
		}
	}

	buy, ok := sink.Events[len(sink.Events)-1].(events.BuyDebt)
	if !ok {
		t.Fatalf("last event is not BuyDebt: %T", sink.Events[len(sink.Events)-1])
	}
	record := buy.Event()
	if record.Attributes["tokenAmount"] != "100000000" {
		t.Fatalf("unexpected tokenAmount attribute: %s", record.Attributes["tokenAmount"])
	}
	if record.Attributes["feeBps"] != "30" {
		t.Fatalf("unexpected feeBps attribute: %s", record.Attributes["feeBps"])
	}
}

func TestFeeReserveMonotonicAcrossFlows(t *testing.T) {
	env := newTestEnv(t)
	usdc := makeAddress(0x10)
	eth := makeAddress(0x11)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))
	env.addToken(t, eth, 18, 10_000, false, true, usd(2000))

	env.credit(usdc, amount(50_000, 6))
	if err := env.engine.DirectPoolDeposit(usdc); err != nil {
		t.Fatalf("seed usdc: %v", err)
	}

	last := big.NewInt(0)
	check := func(stage string) {
		asset := env.asset(t, usdc)
		if asset.FeeReserve.Cmp(last) < 0 {
			t.Fatalf("fee reserve shrank during %s: %s -> %s", stage, last, asset.FeeReserve)
		}
		last = new(big.Int).Set(asset.FeeReserve)
	}

	user := makeAddress(0x20)
	env.credit(usdc, big.NewInt(10_000_000))
	if _, err := env.engine.BuyDebt(user, usdc, user); err != nil {
		t.Fatalf("buy debt: %v", err)
	}
	check("buy debt")

	env.credit(eth, amount(1, 18))
	if _, err := env.engine.Swap(eth, usdc, user); err != nil {
		t.Fatalf("swap: %v", err)
	}
	check("swap")

	env.credit(usdc, amount(500, 6))
	if err := env.engine.IncreasePosition(user, user, usdc, eth, usd(2000), false); err != nil {
		t.Fatalf("open short: %v", err)
	}
	check("open short")

	if _, err := env.engine.DecreasePosition(user, user, usdc, eth, big.NewInt(0), usd(2000), false, user); err != nil {
		t.Fatalf("close short: %v", err)
	}
	check("close short")
}
