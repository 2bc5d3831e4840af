/*
errors.go - Failure and rejection taxonomy for the engine

TWO TIERS:
  1. Arithmetic failures - returned from Apply. The event is discarded and
     no state changes. Match with errors.Is(err, ErrAmountOverflow) or
     errors.Is(err, ErrAmountUnderflow).
  2. Business-rule rejections - NOT returned. The event is dropped, the
     reason is logged at debug level and counted in Stats.

SEE ALSO:
  - engine.go: produces both tiers
  - money/amount.go: ErrOverflow / ErrUnderflow
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/warp/payments-engine/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAmountOverflow means a balance would exceed the Amount range.
	ErrAmountOverflow = money.ErrOverflow

	// ErrAmountUnderflow means a balance would fall below the Amount range.
	ErrAmountUnderflow = money.ErrUnderflow

	// ErrUnknownEvent is returned for an Event type the engine cannot handle.
	// Only reachable through a programming error.
	ErrUnknownEvent = errors.New("unknown event type")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ArithmeticError names the event and balance that failed to update.
type ArithmeticError struct {
	Event  EventType
	Client ClientID
	Tx     TransactionID
	Field  string // "available", "held" or "total"
	Err    error
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s %s %s: %s: %v", e.Event, e.Client, e.Tx, e.Field, e.Err)
}

func (e *ArithmeticError) Unwrap() error { return e.Err }

// IsArithmetic reports whether err is an overflow or underflow.
func IsArithmetic(err error) bool {
	return errors.Is(err, ErrAmountOverflow) || errors.Is(err, ErrAmountUnderflow)
}

// =============================================================================
// REJECTIONS
// =============================================================================

// RejectReason explains why an event was silently dropped.
type RejectReason string

const (
	RejectUnknownAccount       RejectReason = "unknown_account"
	RejectUnknownTransaction   RejectReason = "unknown_transaction"
	RejectClientMismatch       RejectReason = "client_mismatch"
	RejectAccountLocked        RejectReason = "account_locked"
	RejectInvalidState         RejectReason = "invalid_state"
	RejectInsufficientFunds    RejectReason = "insufficient_funds"
	RejectNegativeAmount       RejectReason = "negative_amount"
	RejectDuplicateTransaction RejectReason = "duplicate_transaction"
)
