package vault

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"perpvault/storage"
)

var (
	assetRecordPrefix    = []byte("vault/asset/")
	positionRecordPrefix = []byte("vault/position/")
	balanceRecordPrefix  = []byte("vault/balance/")
	tokenListKey         = []byte("vault/tokens")
)

// Store persists engine state as rlp-encoded records in the underlying
// key-value database. Amounts are stored as decimal strings so signed
// values survive the round trip; nil amounts are stored and loaded as zero.
type Store struct {
	db storage.Database
}

// NewStore constructs a store bound to the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

type storedAsset struct {
	Token                   [20]byte
	Whitelisted             bool
	Decimals                uint8
	Weight                  uint64
	MinProfitBps            uint64
	MaxDebt                 string
	IsStable                bool
	IsShortable             bool
	BufferAmount            string
	MaxGlobalShortSize      string
	PoolAmount              string
	ReservedAmount          string
	DebtAmount              string
	GuaranteedUsd           string
	FeeReserve              string
	CumulativeFundingRate   string
	LastFundingTime         uint64
	GlobalShortSize         string
	GlobalShortAveragePrice string
}

type storedPosition struct {
	Size              string
	Collateral        string
	AveragePrice      string
	EntryFundingRate  string
	ReserveAmount     string
	RealisedPnl       string
	LastIncreasedTime uint64
}

// GetAsset implements State. Missing records return nil without error.
func (s *Store) GetAsset(token Address) (*Asset, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	raw, err := s.db.Get(assetKey(token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAsset
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return fromStoredAsset(&stored)
}

// PutAsset implements State.
func (s *Store) PutAsset(token Address, asset *Asset) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	if asset == nil {
		return fmt.Errorf("store: asset must not be nil")
	}
	encoded, err := rlp.EncodeToBytes(toStoredAsset(token, asset))
	if err != nil {
		return err
	}
	return s.db.Put(assetKey(token), encoded)
}

// DeleteAsset implements State.
func (s *Store) DeleteAsset(token Address) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	return s.db.Delete(assetKey(token))
}

// WhitelistedTokens implements State, returning the append-only registration
// list.
func (s *Store) WhitelistedTokens() ([]Address, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	raw, err := s.db.Get(tokenListKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored [][20]byte
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	tokens := make([]Address, len(stored))
	for i, entry := range stored {
		tokens[i] = Address(entry)
	}
	return tokens, nil
}

// AppendWhitelistedToken implements State.
func (s *Store) AppendWhitelistedToken(token Address) error {
	tokens, err := s.WhitelistedTokens()
	if err != nil {
		return err
	}
	stored := make([][20]byte, 0, len(tokens)+1)
	for _, entry := range tokens {
		stored = append(stored, [20]byte(entry))
	}
	stored = append(stored, [20]byte(token))
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(tokenListKey, encoded)
}

// GetPosition implements State. Missing records return nil without error.
func (s *Store) GetPosition(key PositionKey) (*Position, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	raw, err := s.db.Get(positionStoreKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return fromStoredPosition(&stored)
}

// PutPosition implements State.
func (s *Store) PutPosition(key PositionKey, position *Position) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	if position == nil {
		return fmt.Errorf("store: position must not be nil")
	}
	encoded, err := rlp.EncodeToBytes(toStoredPosition(position))
	if err != nil {
		return err
	}
	return s.db.Put(positionStoreKey(key), encoded)
}

// DeletePosition implements State.
func (s *Store) DeletePosition(key PositionKey) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	return s.db.Delete(positionStoreKey(key))
}

// RecordedBalance implements State.
func (s *Store) RecordedBalance(token Address) (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	raw, err := s.db.Get(balanceKey(token))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(string(raw))
}

// SetRecordedBalance implements State.
func (s *Store) SetRecordedBalance(token Address, balance *big.Int) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return s.db.Put(balanceKey(token), []byte(balance.String()))
}

func assetKey(token Address) []byte {
	return appendHexKey(assetRecordPrefix, token[:])
}

func positionStoreKey(key PositionKey) []byte {
	return appendHexKey(positionRecordPrefix, key[:])
}

func balanceKey(token Address) []byte {
	return appendHexKey(balanceRecordPrefix, token[:])
}

func appendHexKey(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+hex.EncodedLen(len(suffix)))
	copy(buf, prefix)
	hex.Encode(buf[len(prefix):], suffix)
	return buf
}

func toStoredAsset(token Address, asset *Asset) *storedAsset {
	asset.ensureAmounts()
	return &storedAsset{
		Token:                   [20]byte(token),
		Whitelisted:             asset.Whitelisted,
		Decimals:                asset.Decimals,
		Weight:                  asset.Weight,
		MinProfitBps:            asset.MinProfitBps,
		MaxDebt:                 asset.MaxDebt.String(),
		IsStable:                asset.IsStable,
		IsShortable:             asset.IsShortable,
		BufferAmount:            asset.BufferAmount.String(),
		MaxGlobalShortSize:      asset.MaxGlobalShortSize.String(),
		PoolAmount:              asset.PoolAmount.String(),
		ReservedAmount:          asset.ReservedAmount.String(),
		DebtAmount:              asset.DebtAmount.String(),
		GuaranteedUsd:           asset.GuaranteedUsd.String(),
		FeeReserve:              asset.FeeReserve.String(),
		CumulativeFundingRate:   asset.CumulativeFundingRate.String(),
		LastFundingTime:         asset.LastFundingTime,
		GlobalShortSize:         asset.GlobalShortSize.String(),
		GlobalShortAveragePrice: asset.GlobalShortAveragePrice.String(),
	}
}

func fromStoredAsset(stored *storedAsset) (*Asset, error) {
	asset := &Asset{
		Token:           Address(stored.Token),
		Whitelisted:     stored.Whitelisted,
		Decimals:        stored.Decimals,
		Weight:          stored.Weight,
		MinProfitBps:    stored.MinProfitBps,
		IsStable:        stored.IsStable,
		IsShortable:     stored.IsShortable,
		LastFundingTime: stored.LastFundingTime,
	}
	var err error
	if asset.MaxDebt, err = parseAmount(stored.MaxDebt); err != nil {
		return nil, err
	}
	if asset.BufferAmount, err = parseAmount(stored.BufferAmount); err != nil {
		return nil, err
	}
	if asset.MaxGlobalShortSize, err = parseAmount(stored.MaxGlobalShortSize); err != nil {
		return nil, err
	}
	if asset.PoolAmount, err = parseAmount(stored.PoolAmount); err != nil {
		return nil, err
	}
	if asset.ReservedAmount, err = parseAmount(stored.ReservedAmount); err != nil {
		return nil, err
	}
	if asset.DebtAmount, err = parseAmount(stored.DebtAmount); err != nil {
		return nil, err
	}
	if asset.GuaranteedUsd, err = parseAmount(stored.GuaranteedUsd); err != nil {
		return nil, err
	}
	if asset.FeeReserve, err = parseAmount(stored.FeeReserve); err != nil {
		return nil, err
	}
	if asset.CumulativeFundingRate, err = parseAmount(stored.CumulativeFundingRate); err != nil {
		return nil, err
	}
	if asset.GlobalShortSize, err = parseAmount(stored.GlobalShortSize); err != nil {
		return nil, err
	}
	if asset.GlobalShortAveragePrice, err = parseAmount(stored.GlobalShortAveragePrice); err != nil {
		return nil, err
	}
	return asset, nil
}

func toStoredPosition(position *Position) *storedPosition {
	position.ensureAmounts()
	return &storedPosition{
		Size:              position.Size.String(),
		Collateral:        position.Collateral.String(),
		AveragePrice:      position.AveragePrice.String(),
		EntryFundingRate:  position.EntryFundingRate.String(),
		ReserveAmount:     position.ReserveAmount.String(),
		RealisedPnl:       position.RealisedPnl.String(),
		LastIncreasedTime: position.LastIncreasedTime,
	}
}

func fromStoredPosition(stored *storedPosition) (*Position, error) {
	position := &Position{LastIncreasedTime: stored.LastIncreasedTime}
	var err error
	if position.Size, err = parseAmount(stored.Size); err != nil {
		return nil, err
	}
	if position.Collateral, err = parseAmount(stored.Collateral); err != nil {
		return nil, err
	}
	if position.AveragePrice, err = parseAmount(stored.AveragePrice); err != nil {
		return nil, err
	}
	if position.EntryFundingRate, err = parseAmount(stored.EntryFundingRate); err != nil {
		return nil, err
	}
	if position.ReserveAmount, err = parseAmount(stored.ReserveAmount); err != nil {
		return nil, err
	}
	if position.RealisedPnl, err = parseAmount(stored.RealisedPnl); err != nil {
		return nil, err
	}
	return position, nil
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("store: invalid amount %q", raw)
	}
	return amount, nil
}
