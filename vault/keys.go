package vault

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PositionKey identifies a position by hashing its four coordinates. Any
// position with the same account, collateral token, index token and side maps
// to the same key for its whole lifetime.
type PositionKey [32]byte

func positionKey(account, collateralToken, indexToken Address, isLong bool) PositionKey {
	buf := make([]byte, 0, 61)
	buf = append(buf, account[:]...)
	buf = append(buf, collateralToken[:]...)
	buf = append(buf, indexToken[:]...)
	if isLong {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var key PositionKey
	copy(key[:], ethcrypto.Keccak256(buf))
	return key
}
