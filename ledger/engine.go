/*
engine.go - Streaming replay of transaction events

PURPOSE:
  Engine applies events strictly in the order received. Each call to Apply
  runs to completion before the next; nothing is buffered, reordered or
  looked ahead at.

ALL-OR-NOTHING:
  Every handler computes the new account values into a local copy first.
  Only when every checked operation succeeded is the copy written back and
  the transaction record inserted or updated. A failed or rejected event
  therefore leaves accounts and records byte-identical.

ACCOUNT CREATION:
  Accounts are created by the first successful deposit for a client and
  never removed. Withdrawals, disputes, resolves and chargebacks never
  create accounts, so a client that only ever sent rejected events does
  not appear in Snapshot().

NEGATIVE BALANCES:
  A dispute may push Available below zero (the funds were already
  withdrawn). That is not a rejection. Withdrawals still require
  Available >= amount.

MEMORY:
  Transaction records are kept for the whole run because any past deposit
  or withdrawal may be disputed later.

CONCURRENCY:
  Engine is not safe for concurrent use. One engine serves one stream.
*/
package ledger

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/money"
)

// Engine owns the account and transaction tables of one run.
type Engine struct {
	accounts map[ClientID]*Account
	order    []ClientID

	records map[TransactionID]*TransactionRecord
	txOrder []TransactionID

	stats Stats
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for rejections and failures.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		accounts: make(map[ClientID]*Account),
		records:  make(map[TransactionID]*TransactionRecord),
		stats:    Stats{Rejected: make(map[RejectReason]int)},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply processes one event.
//
// Business-rule rejections return nil. A non-nil error is always an
// ArithmeticError (overflow or underflow) or ErrUnknownEvent, and in both
// cases no state was changed.
func (e *Engine) Apply(evt Event) error {
	var (
		reason RejectReason
		err    error
	)

	switch ev := evt.(type) {
	case Deposit:
		reason, err = e.deposit(ev)
	case Withdrawal:
		reason, err = e.withdraw(ev)
	case Dispute:
		reason, err = e.dispute(ev)
	case Resolve:
		reason, err = e.resolve(ev)
	case Chargeback:
		reason, err = e.chargeback(ev)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, evt)
	}

	switch {
	case err != nil:
		e.stats.Failed++
		e.log.Warn().
			Err(err).
			Str("event", evt.Type().String()).
			Uint16("client", uint16(evt.ClientID())).
			Uint32("tx", uint32(evt.TransactionID())).
			Msg("event discarded")
		return err
	case reason != "":
		e.stats.Rejected[reason]++
		e.log.Debug().
			Str("event", evt.Type().String()).
			Uint16("client", uint16(evt.ClientID())).
			Uint32("tx", uint32(evt.TransactionID())).
			Str("reason", string(reason)).
			Msg("event rejected")
		return nil
	}

	e.stats.Applied++
	return nil
}

// =============================================================================
// DEPOSIT / WITHDRAWAL
// =============================================================================

func (e *Engine) deposit(ev Deposit) (RejectReason, error) {
	acct, exists := e.accounts[ev.Client]
	if exists && acct.Locked {
		return RejectAccountLocked, nil
	}
	if ev.Amount.IsNegative() {
		return RejectNegativeAmount, nil
	}
	if _, dup := e.records[ev.Tx]; dup {
		return RejectDuplicateTransaction, nil
	}

	next := Account{Client: ev.Client}
	if exists {
		next = *acct
	}

	var err error
	if next.Available, err = money.CheckedAdd(next.Available, ev.Amount); err != nil {
		return "", arithmetic(ev, "available", err)
	}
	if next.Total, err = money.CheckedAdd(next.Total, ev.Amount); err != nil {
		return "", arithmetic(ev, "total", err)
	}

	e.putAccount(next)
	e.putRecord(ev.Tx, ev.Client, ev.Amount, KindDeposit)
	return "", nil
}

func (e *Engine) withdraw(ev Withdrawal) (RejectReason, error) {
	acct, exists := e.accounts[ev.Client]
	if !exists {
		return RejectUnknownAccount, nil
	}
	if acct.Locked {
		return RejectAccountLocked, nil
	}
	if ev.Amount.IsNegative() {
		return RejectNegativeAmount, nil
	}
	if _, dup := e.records[ev.Tx]; dup {
		return RejectDuplicateTransaction, nil
	}
	if acct.Available.LessThan(ev.Amount) {
		return RejectInsufficientFunds, nil
	}

	next := *acct

	var err error
	if next.Available, err = money.CheckedSub(next.Available, ev.Amount); err != nil {
		return "", arithmetic(ev, "available", err)
	}
	if next.Total, err = money.CheckedSub(next.Total, ev.Amount); err != nil {
		return "", arithmetic(ev, "total", err)
	}

	e.putAccount(next)
	e.putRecord(ev.Tx, ev.Client, ev.Amount, KindWithdrawal)
	return "", nil
}

// =============================================================================
// DISPUTE LIFECYCLE
// =============================================================================

func (e *Engine) dispute(ev Dispute) (RejectReason, error) {
	acct, rec, reason := e.lookup(ev.Client, ev.Tx, StatusProcessed)
	if reason != "" {
		return reason, nil
	}

	next := *acct

	var err error
	if next.Held, err = money.CheckedAdd(next.Held, rec.Amount); err != nil {
		return "", arithmetic(ev, "held", err)
	}
	// May go negative; only range failures reject.
	if next.Available, err = money.CheckedSub(next.Available, rec.Amount); err != nil {
		return "", arithmetic(ev, "available", err)
	}

	*acct = next
	rec.Status = StatusInDispute
	return "", nil
}

func (e *Engine) resolve(ev Resolve) (RejectReason, error) {
	acct, rec, reason := e.lookup(ev.Client, ev.Tx, StatusInDispute)
	if reason != "" {
		return reason, nil
	}

	next := *acct

	var err error
	if next.Held, err = money.CheckedSub(next.Held, rec.Amount); err != nil {
		return "", arithmetic(ev, "held", err)
	}
	if next.Available, err = money.CheckedAdd(next.Available, rec.Amount); err != nil {
		return "", arithmetic(ev, "available", err)
	}

	*acct = next
	rec.Status = StatusDisputeHandled
	return "", nil
}

func (e *Engine) chargeback(ev Chargeback) (RejectReason, error) {
	acct, rec, reason := e.lookup(ev.Client, ev.Tx, StatusInDispute)
	if reason != "" {
		return reason, nil
	}

	next := *acct

	var err error
	if next.Held, err = money.CheckedSub(next.Held, rec.Amount); err != nil {
		return "", arithmetic(ev, "held", err)
	}
	if next.Total, err = money.CheckedSub(next.Total, rec.Amount); err != nil {
		return "", arithmetic(ev, "total", err)
	}
	next.Locked = true

	*acct = next
	rec.Status = StatusDisputeHandled
	return "", nil
}

// lookup resolves the record and account targeted by a dispute, resolve or
// chargeback and checks the shared rejection rules.
func (e *Engine) lookup(client ClientID, tx TransactionID, want Status) (*Account, *TransactionRecord, RejectReason) {
	rec, ok := e.records[tx]
	if !ok {
		return nil, nil, RejectUnknownTransaction
	}
	if rec.Client != client {
		return nil, nil, RejectClientMismatch
	}
	acct, ok := e.accounts[client]
	if !ok {
		return nil, nil, RejectUnknownAccount
	}
	if acct.Locked {
		return nil, nil, RejectAccountLocked
	}
	if rec.Status != want {
		return nil, nil, RejectInvalidState
	}
	return acct, rec, ""
}

// =============================================================================
// TABLE WRITES
// =============================================================================

func (e *Engine) putAccount(next Account) {
	if acct, ok := e.accounts[next.Client]; ok {
		*acct = next
		return
	}
	e.accounts[next.Client] = &next
	e.order = append(e.order, next.Client)
}

func (e *Engine) putRecord(id TransactionID, client ClientID, amount money.Amount, kind Kind) {
	e.records[id] = &TransactionRecord{
		ID:     id,
		Client: client,
		Amount: amount,
		Kind:   kind,
		Status: StatusProcessed,
	}
	e.txOrder = append(e.txOrder, id)
}

func arithmetic(evt Event, field string, err error) error {
	return &ArithmeticError{
		Event:  evt.Type(),
		Client: evt.ClientID(),
		Tx:     evt.TransactionID(),
		Field:  field,
		Err:    err,
	}
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns every account in order of first appearance.
func (e *Engine) Snapshot() []Account {
	out := make([]Account, len(e.order))
	for i, c := range e.order {
		out[i] = *e.accounts[c]
	}
	return out
}

// Account returns a copy of one client's account.
func (e *Engine) Account(client ClientID) (Account, bool) {
	acct, ok := e.accounts[client]
	if !ok {
		return Account{}, false
	}
	return *acct, true
}

// Transaction returns a copy of one record.
func (e *Engine) Transaction(id TransactionID) (TransactionRecord, bool) {
	rec, ok := e.records[id]
	if !ok {
		return TransactionRecord{}, false
	}
	return *rec, true
}

// Transactions returns every record in the order it was applied.
func (e *Engine) Transactions() []TransactionRecord {
	out := make([]TransactionRecord, len(e.txOrder))
	for i, id := range e.txOrder {
		out[i] = *e.records[id]
	}
	return out
}

// Stats returns counters for the events seen so far.
func (e *Engine) Stats() Stats {
	s := Stats{
		Applied:  e.stats.Applied,
		Failed:   e.stats.Failed,
		Rejected: make(map[RejectReason]int, len(e.stats.Rejected)),
	}
	for k, v := range e.stats.Rejected {
		s.Rejected[k] = v
	}
	return s
}

// Stats counts event outcomes.
type Stats struct {
	Applied  int
	Failed   int
	Rejected map[RejectReason]int
}

// RejectedTotal sums rejections across reasons.
func (s Stats) RejectedTotal() int {
	n := 0
	for _, v := range s.Rejected {
		n += v
	}
	return n
}
