package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"perpvault/storage"
)

func TestStoreAssetRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	token := makeAddress(0x10)

	missing, err := store.GetAsset(token)
	require.NoError(t, err)
	require.Nil(t, missing)

	asset := &Asset{
		Token:                   token,
		Whitelisted:             true,
		Decimals:                6,
		Weight:                  10_000,
		MinProfitBps:            75,
		MaxDebt:                 debt18(1_000_000),
		IsStable:                true,
		BufferAmount:            big.NewInt(500),
		PoolAmount:              big.NewInt(123_456),
		ReservedAmount:          big.NewInt(789),
		DebtAmount:              debt18(42),
		GuaranteedUsd:           usd(17),
		FeeReserve:              big.NewInt(99),
		CumulativeFundingRate:   big.NewInt(1234),
		LastFundingTime:         1_700_000_000,
		GlobalShortSize:         usd(3),
		GlobalShortAveragePrice: usd(30_000),
	}
	asset.ensureAmounts()
	require.NoError(t, store.PutAsset(token, asset))

	loaded, err := store.GetAsset(token)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, asset.Whitelisted, loaded.Whitelisted)
	require.Equal(t, asset.Decimals, loaded.Decimals)
	require.Equal(t, asset.Weight, loaded.Weight)
	require.Equal(t, asset.MinProfitBps, loaded.MinProfitBps)
	require.Zero(t, asset.MaxDebt.Cmp(loaded.MaxDebt))
	require.Equal(t, asset.IsStable, loaded.IsStable)
	require.Zero(t, asset.PoolAmount.Cmp(loaded.PoolAmount))
	require.Zero(t, asset.ReservedAmount.Cmp(loaded.ReservedAmount))
	require.Zero(t, asset.DebtAmount.Cmp(loaded.DebtAmount))
	require.Zero(t, asset.GuaranteedUsd.Cmp(loaded.GuaranteedUsd))
	require.Zero(t, asset.CumulativeFundingRate.Cmp(loaded.CumulativeFundingRate))
	require.Equal(t, asset.LastFundingTime, loaded.LastFundingTime)
	require.Zero(t, asset.GlobalShortAveragePrice.Cmp(loaded.GlobalShortAveragePrice))

	require.NoError(t, store.DeleteAsset(token))
	deleted, err := store.GetAsset(token)
	require.NoError(t, err)
	require.Nil(t, deleted)
}

func TestStorePositionRoundTripKeepsSign(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	key := positionKey(makeAddress(0x20), makeAddress(0x10), makeAddress(0x12), false)

	position := &Position{
		Size:              usd(1000),
		Collateral:        usd(199),
		AveragePrice:      usd(30_000),
		EntryFundingRate:  big.NewInt(600),
		ReserveAmount:     big.NewInt(1_000_000_000),
		RealisedPnl:       new(big.Int).Neg(usd(25)),
		LastIncreasedTime: 1_700_000_123,
	}
	require.NoError(t, store.PutPosition(key, position))

	loaded, err := store.GetPosition(key)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, position.Size.Cmp(loaded.Size))
	require.Zero(t, position.RealisedPnl.Cmp(loaded.RealisedPnl))
	require.Negative(t, loaded.RealisedPnl.Sign())
	require.Equal(t, position.LastIncreasedTime, loaded.LastIncreasedTime)

	require.NoError(t, store.DeletePosition(key))
	deleted, err := store.GetPosition(key)
	require.NoError(t, err)
	require.Nil(t, deleted)
}

func TestStoreWhitelistOrder(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	first := makeAddress(0x10)
	second := makeAddress(0x11)

	tokens, err := store.WhitelistedTokens()
	require.NoError(t, err)
	require.Empty(t, tokens)

	require.NoError(t, store.AppendWhitelistedToken(first))
	require.NoError(t, store.AppendWhitelistedToken(second))

	tokens, err = store.WhitelistedTokens()
	require.NoError(t, err)
	require.Equal(t, []Address{first, second}, tokens)
}

func TestStoreRecordedBalance(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	token := makeAddress(0x10)

	balance, err := store.RecordedBalance(token)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, store.SetRecordedBalance(token, big.NewInt(123_456_789)))
	balance, err = store.RecordedBalance(token)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(123_456_789)))
}

func TestEngineRunsOverStore(t *testing.T) {
	db := storage.NewMemDB()
	env := newTestEnv(t)
	store := NewStore(db)
	require.NoError(t, env.engine.SetState(store))

	usdc := makeAddress(0x10)
	env.addToken(t, usdc, 6, 10_000, true, false, usd(1))

	user := makeAddress(0x20)
	env.credit(usdc, big.NewInt(100_000_000))
	minted, err := env.engine.BuyDebt(user, usdc, user)
	require.NoError(t, err)

	// The persisted ledger is visible to a fresh engine over the same db.
	fresh := NewEngine(env.vault, makeAddress(0x02))
	require.NoError(t, fresh.SetState(NewStore(db)))
	debt, err := fresh.DebtAmount(usdc)
	require.NoError(t, err)
	require.Zero(t, minted.Cmp(debt))
}
