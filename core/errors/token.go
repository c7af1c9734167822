package errors

import stderrors "errors"

// Transfer settlement failures. Every one of them aborts the call and reverts
// all state touched by it.
var (
	ErrInsufficientBalance   = stderrors.New("token: insufficient balance")
	ErrInsufficientAllowance = stderrors.New("token: insufficient allowance")
	ErrTradingLocked         = stderrors.New("token: trading locked until presale completes")
	ErrWalletCapExceeded     = stderrors.New("token: receiver wallet cap exceeded")
	ErrVestingLocked         = stderrors.New("token: amount exceeds unlocked vesting allowance")
	ErrLiquidityRestricted   = stderrors.New("token: liquidity provisioning restricted")
	ErrNotOwner              = stderrors.New("token: caller is not the owner")
	ErrAmountOverflow        = stderrors.New("token: amount exceeds 256 bits")
	ErrInvalidAmount         = stderrors.New("token: amount must not be negative")
	ErrZeroAddress           = stderrors.New("token: zero address")
	ErrPresaleCompleted      = stderrors.New("token: presale already completed")
	ErrAlreadyVested         = stderrors.New("token: private sale wallets already vested")
)

// Fee schedule failures.
var (
	ErrFeeCapExceeded  = stderrors.New("fees: total fee exceeds cap")
	ErrBelowMinimumFee = stderrors.New("fees: rate below component minimum")
	ErrUnknownFee      = stderrors.New("fees: unknown fee component")
)

// Dividend ledger failures.
var (
	ErrNoDividends     = stderrors.New("dividends: nothing to withdraw")
	ErrNoShareholders  = stderrors.New("dividends: no eligible shares")
	ErrClaimWaitBounds = stderrors.New("dividends: claim wait must be between 1 and 24 hours")
)
