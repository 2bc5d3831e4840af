package ledger

import (
	"fmt"

	"github.com/warp/payments-engine/money"
)

// EventType is the discriminator carried by every Event.
type EventType uint8

const (
	EventDeposit EventType = iota + 1
	EventWithdrawal
	EventDispute
	EventResolve
	EventChargeback
)

func (t EventType) String() string {
	switch t {
	case EventDeposit:
		return "deposit"
	case EventWithdrawal:
		return "withdrawal"
	case EventDispute:
		return "dispute"
	case EventResolve:
		return "resolve"
	case EventChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// ParseEventType maps the textual tag used by input streams.
func ParseEventType(s string) (EventType, bool) {
	switch s {
	case "deposit":
		return EventDeposit, true
	case "withdrawal":
		return EventWithdrawal, true
	case "dispute":
		return EventDispute, true
	case "resolve":
		return EventResolve, true
	case "chargeback":
		return EventChargeback, true
	}
	return 0, false
}

// Event is one entry of the input stream. The set of implementations is
// closed: only the types in this file satisfy it.
type Event interface {
	Type() EventType
	ClientID() ClientID
	TransactionID() TransactionID
	isEvent()
}

// Deposit credits Amount to the client's available and total funds.
type Deposit struct {
	Client ClientID
	Tx     TransactionID
	Amount money.Amount
}

// Withdrawal debits Amount from the client's available and total funds.
type Withdrawal struct {
	Client ClientID
	Tx     TransactionID
	Amount money.Amount
}

// Dispute moves a processed record's amount from available to held.
type Dispute struct {
	Client ClientID
	Tx     TransactionID
}

// Resolve releases a disputed record's amount from held back to available.
type Resolve struct {
	Client ClientID
	Tx     TransactionID
}

// Chargeback reverses a disputed record and locks the account.
type Chargeback struct {
	Client ClientID
	Tx     TransactionID
}

func (Deposit) Type() EventType    { return EventDeposit }
func (Withdrawal) Type() EventType { return EventWithdrawal }
func (Dispute) Type() EventType    { return EventDispute }
func (Resolve) Type() EventType    { return EventResolve }
func (Chargeback) Type() EventType { return EventChargeback }

func (e Deposit) ClientID() ClientID    { return e.Client }
func (e Withdrawal) ClientID() ClientID { return e.Client }
func (e Dispute) ClientID() ClientID    { return e.Client }
func (e Resolve) ClientID() ClientID    { return e.Client }
func (e Chargeback) ClientID() ClientID { return e.Client }

func (e Deposit) TransactionID() TransactionID    { return e.Tx }
func (e Withdrawal) TransactionID() TransactionID { return e.Tx }
func (e Dispute) TransactionID() TransactionID    { return e.Tx }
func (e Resolve) TransactionID() TransactionID    { return e.Tx }
func (e Chargeback) TransactionID() TransactionID { return e.Tx }

func (Deposit) isEvent()    {}
func (Withdrawal) isEvent() {}
func (Dispute) isEvent()    {}
func (Resolve) isEvent()    {}
func (Chargeback) isEvent() {}

// NewEvent builds the event for a parsed row. amount is ignored for
// dispute, resolve and chargeback.
func NewEvent(t EventType, client ClientID, tx TransactionID, amount money.Amount) (Event, error) {
	switch t {
	case EventDeposit:
		return Deposit{Client: client, Tx: tx, Amount: amount}, nil
	case EventWithdrawal:
		return Withdrawal{Client: client, Tx: tx, Amount: amount}, nil
	case EventDispute:
		return Dispute{Client: client, Tx: tx}, nil
	case EventResolve:
		return Resolve{Client: client, Tx: tx}, nil
	case EventChargeback:
		return Chargeback{Client: client, Tx: tx}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, t)
}

// HasAmount reports whether events of this type carry an amount.
func (t EventType) HasAmount() bool {
	return t == EventDeposit || t == EventWithdrawal
}
