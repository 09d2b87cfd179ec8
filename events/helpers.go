package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return "0x" + hex.EncodeToString(addr[:])
}

func formatKey(key [32]byte) string {
	return "0x" + hex.EncodeToString(key[:])
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
