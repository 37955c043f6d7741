package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller is neither the owner nor an
	// authorized executor.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadState is returned when the system is paused, the loan machine is in
	// the wrong state, or a nested request is detected during an active callback.
	ErrBadState = errors.New("bad state")
	// ErrInvalidRequest is returned for malformed requests: zero amounts,
	// over-cap borrow, unsupported asset, zero token addresses.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrExternalCall is returned when a venue or the lending facility call fails.
	ErrExternalCall = errors.New("external call failed")
	// ErrInvalidCallback is returned when the loan callback arrives from an
	// unexpected caller or in the wrong machine state.
	ErrInvalidCallback = errors.New("invalid loan callback")
	// ErrSlippage is returned when a leg's output balance is below the
	// request's minimum acceptable output.
	ErrSlippage = errors.New("slippage exceeded")
	// ErrInsufficientRepayment is returned when the final balance cannot cover
	// principal plus loan fee.
	ErrInsufficientRepayment = errors.New("insufficient repayment")
	// ErrInsufficientFunds is returned by the ledger when a transfer exceeds
	// the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientAllowance is returned by the ledger when a delegated
	// transfer exceeds the granted allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrLockHeld is returned when the whole-sequence exclusive lock is
	// already held by another party.
	ErrLockHeld = errors.New("lock already held")
	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned when a request carries an expiry that has passed
	// at entry.
	ErrExpired = errors.New("request expired")
)
