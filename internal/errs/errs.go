// Package errs collects the sentinel error values used across the core's
// error taxonomy (spec §7): Configuration, AuthFailure,
// CapabilityInsufficient, Transport, Protocol, Timeout, BusinessRule, and
// Journal. Callers wrap these with fmt.Errorf("...: %w", err) and unwrap
// with errors.Is.
package errs

import "errors"

var (
	// ErrConfiguration marks a fatal startup configuration problem.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthFailure marks rejected broker or LLM credentials.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrAccountBlocked marks a broker account blocked for trading.
	ErrAccountBlocked = errors.New("account blocked")

	// ErrUnreachable marks a broker endpoint that could not be reached.
	ErrUnreachable = errors.New("broker unreachable")

	// ErrCapabilityInsufficient marks a stream or action the account tier
	// forbids.
	ErrCapabilityInsufficient = errors.New("capability insufficient")

	// ErrNoStreamsRemain marks the fatal case where capability filtering
	// drops every requested stream.
	ErrNoStreamsRemain = errors.New("no streams remain after capability filtering")

	// ErrTransport marks a recoverable socket/DNS/TLS/5xx failure.
	ErrTransport = errors.New("transport error")

	// ErrProtocol marks a malformed frame or unknown message tag.
	ErrProtocol = errors.New("protocol error")

	// ErrTimeout marks any deadline elapsing.
	ErrTimeout = errors.New("deadline exceeded")

	// ErrJournal marks a journal write failure. Persistent journal errors
	// are fatal to the writer task.
	ErrJournal = errors.New("journal error")

	// ErrMarketClosed is a BusinessRule outcome: the market is not open.
	ErrMarketClosed = errors.New("market closed")

	// ErrLowConfidence is a BusinessRule outcome: decision confidence below
	// the order gateway's floor.
	ErrLowConfidence = errors.New("confidence below floor")

	// ErrRegimeIncompatible is a BusinessRule outcome: the action is
	// disallowed in the current regime.
	ErrRegimeIncompatible = errors.New("action incompatible with regime")

	// ErrInsufficientFunds is a BusinessRule outcome: required notional
	// exceeds available cash/buying power.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPermissionDenied is a BusinessRule outcome: the account lacks the
	// trading permission the order requires.
	ErrPermissionDenied = errors.New("trading permission denied")
)
