package vault

import (
	"errors"
	"fmt"
)

var (
	errNilState       = errors.New("vault engine: state not configured")
	errNilOracle      = errors.New("vault engine: price oracle not configured")
	errNilTokenLedger = errors.New("vault engine: token ledger not configured")
	errNilDebtToken   = errors.New("vault engine: debt token not configured")
)

// Code enumerates the numeric error codes carried by every revert. Messages
// are resolved through a registry populated by governance; unknown codes fall
// back to a generic rendering.
type Code uint16

const (
	CodeAlreadyInitialized Code = iota + 1
	CodeNotInitialized
	CodeForbidden
	CodeInvalidMaxLeverage
	CodeInvalidTaxBps
	CodeInvalidStableTaxBps
	CodeInvalidMintBurnFeeBps
	CodeInvalidSwapFeeBps
	CodeInvalidStableSwapFeeBps
	CodeInvalidMarginFeeBps
	CodeInvalidLiquidationFeeUsd
	CodeInvalidFundingInterval
	CodeInvalidFundingRateFactor
	CodeInvalidStableFundingRateFactor
	CodeTokenNotWhitelisted
	CodeInvalidTokenAmount
	CodeInvalidDebtAmount
	CodeInvalidRedemptionAmount
	CodeInvalidAmountOut
	CodeSwapsNotEnabled
	CodeInvalidTokens
	CodeInvalidAmountIn
	CodeLeverageNotEnabled
	CodeInvalidGasPrice
	CodeMismatchedTokens
	CodeCollateralNotWhitelisted
	CodeCollateralMustBeStable
	CodeCollateralMustNotBeStable
	CodeIndexMustNotBeStable
	CodeIndexNotShortable
	CodeInvalidPositionSize
	CodeEmptyPosition
	CodePositionSizeExceeded
	CodePositionCollateralExceeded
	CodeInvalidLiquidator
	CodeCannotLiquidate
	CodeInsufficientCollateralForFees
	CodeLossesExceedCollateral
	CodeFeesExceedCollateral
	CodeMaxLeverageExceeded
	CodeSizeMustExceedCollateral
	CodePoolExceeded
	CodeReserveExceedsPool
	CodeMaxDebtExceeded
	CodePoolBelowBuffer
	CodeInsufficientReserve
	CodeGuaranteedExceeded
	CodeMaxShortsExceeded
	CodeInsufficientPoolBalance
	CodeInvalidRouter
	CodeInvalidAveragePrice
	CodeLiquidationFeesExceedCollateral
	CodeInvalidMintAmount
	CodeInvalidReceiver
	CodeInvalidErrorCode
)

// defaultErrorMessages seeds the registry; governance may override any entry
// through SetError.
var defaultErrorMessages = map[Code]string{
	CodeAlreadyInitialized:              "already initialized",
	CodeNotInitialized:                  "not initialized",
	CodeForbidden:                       "forbidden",
	CodeInvalidMaxLeverage:              "invalid maxLeverage",
	CodeInvalidTaxBps:                   "invalid taxBasisPoints",
	CodeInvalidStableTaxBps:             "invalid stableTaxBasisPoints",
	CodeInvalidMintBurnFeeBps:           "invalid mintBurnFeeBasisPoints",
	CodeInvalidSwapFeeBps:               "invalid swapFeeBasisPoints",
	CodeInvalidStableSwapFeeBps:         "invalid stableSwapFeeBasisPoints",
	CodeInvalidMarginFeeBps:             "invalid marginFeeBasisPoints",
	CodeInvalidLiquidationFeeUsd:        "invalid liquidationFeeUsd",
	CodeInvalidFundingInterval:          "invalid fundingInterval",
	CodeInvalidFundingRateFactor:        "invalid fundingRateFactor",
	CodeInvalidStableFundingRateFactor:  "invalid stableFundingRateFactor",
	CodeTokenNotWhitelisted:             "token not whitelisted",
	CodeInvalidTokenAmount:              "invalid tokenAmount",
	CodeInvalidDebtAmount:               "invalid debtAmount",
	CodeInvalidRedemptionAmount:         "invalid redemptionAmount",
	CodeInvalidAmountOut:                "invalid amountOut",
	CodeSwapsNotEnabled:                 "swaps not enabled",
	CodeInvalidTokens:                   "invalid tokens",
	CodeInvalidAmountIn:                 "invalid amountIn",
	CodeLeverageNotEnabled:              "leverage not enabled",
	CodeInvalidGasPrice:                 "invalid gas price",
	CodeMismatchedTokens:                "mismatched tokens",
	CodeCollateralNotWhitelisted:        "collateralToken not whitelisted",
	CodeCollateralMustBeStable:          "collateralToken must be a stable token",
	CodeCollateralMustNotBeStable:       "collateralToken must not be a stable token",
	CodeIndexMustNotBeStable:            "indexToken must not be a stable token",
	CodeIndexNotShortable:               "indexToken not shortable",
	CodeInvalidPositionSize:             "invalid position size",
	CodeEmptyPosition:                   "empty position",
	CodePositionSizeExceeded:            "position size exceeded",
	CodePositionCollateralExceeded:      "position collateral exceeded",
	CodeInvalidLiquidator:               "invalid liquidator",
	CodeCannotLiquidate:                 "position cannot be liquidated",
	CodeInsufficientCollateralForFees:   "insufficient collateral for fees",
	CodeLossesExceedCollateral:          "losses exceed collateral",
	CodeFeesExceedCollateral:            "fees exceed collateral",
	CodeMaxLeverageExceeded:             "maxLeverage exceeded",
	CodeSizeMustExceedCollateral:        "size must be more than collateral",
	CodePoolExceeded:                    "poolAmount exceeded",
	CodeReserveExceedsPool:              "reserve exceeds pool",
	CodeMaxDebtExceeded:                 "max debt exceeded",
	CodePoolBelowBuffer:                 "poolAmount < buffer",
	CodeInsufficientReserve:             "insufficient reserve",
	CodeGuaranteedExceeded:              "guaranteedUsd exceeded",
	CodeMaxShortsExceeded:               "max shorts exceeded",
	CodeInsufficientPoolBalance:         "balance < poolAmount",
	CodeInvalidRouter:                   "invalid router",
	CodeInvalidAveragePrice:             "invalid averagePrice",
	CodeLiquidationFeesExceedCollateral: "liquidation fees exceed collateral",
	CodeInvalidMintAmount:               "invalid mintAmount",
	CodeInvalidReceiver:                 "invalid receiver",
	CodeInvalidErrorCode:                "invalid error code",
}

// VaultError carries a numeric code plus the registry-resolved message.
// Comparisons should use the Code field (or errors.As); messages are
// governance controlled and may change.
type VaultError struct {
	Code Code
	msg  string
}

func (e *VaultError) Error() string {
	if e == nil {
		return "vault: <nil>"
	}
	if e.msg == "" {
		return fmt.Sprintf("vault: error %d", e.Code)
	}
	return "vault: " + e.msg
}

// Is allows errors.Is comparisons against another *VaultError by code.
func (e *VaultError) Is(target error) bool {
	var other *VaultError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// ErrCode builds a bare comparison value for use with errors.Is.
func ErrCode(code Code) error {
	return &VaultError{Code: code}
}

// CodeOf extracts the numeric code from an error, or zero when the error is
// not a vault error.
func CodeOf(err error) Code {
	var verr *VaultError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return 0
}

func (e *Engine) codeError(code Code) error {
	msg := ""
	if e != nil {
		if override, ok := e.errorMessages[code]; ok {
			msg = override
		}
	}
	if msg == "" {
		msg = defaultErrorMessages[code]
	}
	return &VaultError{Code: code, msg: msg}
}

func (e *Engine) validate(cond bool, code Code) error {
	if cond {
		return nil
	}
	return e.codeError(code)
}
