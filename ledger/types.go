/*
Package ledger replays client transaction events into account balances.

PURPOSE:
  The Engine owns every account and every deposit/withdrawal record of a
  run. Events are applied one at a time, in arrival order, with no
  lookahead. At end of stream the driver reads Snapshot().

KEY CONCEPTS IN THIS FILE (types.go):
  - ClientID / TransactionID: distinct nominal identifiers
  - Account: available, held, total, locked
  - TransactionRecord: a processed deposit or withdrawal and its dispute state

DISPUTE LIFECYCLE (per record):
  Processed --dispute--> InDispute --resolve|chargeback--> DisputeHandled

  DisputeHandled is terminal. A record can be disputed at most once.

INVARIANTS:
  1. total == available + held for every account after every event
  2. A locked account never changes again
  3. Rejected or failed events leave every table unchanged

SEE ALSO:
  - event.go: the five event kinds
  - engine.go: Apply and Snapshot
  - errors.go: arithmetic failures and rejection reasons
*/
package ledger

import (
	"fmt"

	"github.com/warp/payments-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ClientID identifies an account. Assigned by the input stream.
type ClientID uint16

// TransactionID identifies a deposit or withdrawal for the whole run.
type TransactionID uint32

func (c ClientID) String() string      { return fmt.Sprintf("client:%d", uint16(c)) }
func (t TransactionID) String() string { return fmt.Sprintf("tx:%d", uint32(t)) }

// =============================================================================
// TRANSACTION RECORD
// =============================================================================

type Kind uint8

const (
	KindDeposit Kind = iota + 1
	KindWithdrawal
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	default:
		return "unknown"
	}
}

type Status uint8

const (
	StatusProcessed Status = iota + 1
	StatusInDispute
	StatusDisputeHandled
)

func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusInDispute:
		return "in_dispute"
	case StatusDisputeHandled:
		return "dispute_handled"
	default:
		return "unknown"
	}
}

// TransactionRecord is a deposit or withdrawal that was applied.
// Records are never removed; only Status changes.
type TransactionRecord struct {
	ID     TransactionID
	Client ClientID
	Amount money.Amount
	Kind   Kind
	Status Status
}

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is one client's balances.
type Account struct {
	Client    ClientID
	Available money.Amount
	Held      money.Amount
	Total     money.Amount
	Locked    bool
}

// Balanced reports whether Total == Available + Held.
func (a Account) Balanced() bool {
	sum, err := money.CheckedAdd(a.Available, a.Held)
	return err == nil && sum.Equal(a.Total)
}
