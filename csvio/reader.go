/*
Package csvio is the text driver around the ledger engine.

INPUT FORMAT:
  type,       client, tx, amount
  deposit,    1,      1,  1.0
  dispute,    1,      1,

  - header row is optional and recognised by a first field of "type"
  - whitespace around fields is ignored, blank lines are skipped
  - amount is required for deposit/withdrawal, ignored otherwise
  - client is a uint16, tx a uint32, amount at most four fractional digits

OUTPUT FORMAT:
  client,available,held,total,locked
  1,1.5000,0.0000,1.5000,false

ERRORS:
  A malformed row yields a *RowError and the reader stays usable; the next
  Read continues with the following row. Any other error comes from the
  underlying io.Reader and ends the stream.

SEE ALSO:
  - replay.go: the loop that feeds a Reader into an Engine
  - ledger/event.go: the events produced here
*/
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/money"
)

var (
	ErrFieldCount    = errors.New("expected at least 3 fields")
	ErrUnknownType   = errors.New("unknown transaction type")
	ErrInvalidClient = errors.New("invalid client id")
	ErrInvalidTx     = errors.New("invalid transaction id")
	ErrMissingAmount = errors.New("missing amount")
)

// RowError reports a row that could not be turned into an event.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader yields events from a transaction CSV, one row at a time.
type Reader struct {
	cr         *csv.Reader
	headerDone bool
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{cr: cr}
}

// Read returns the next event, io.EOF at end of input, or a *RowError for
// a row that was skipped.
func (r *Reader) Read() (ledger.Event, error) {
	for {
		record, err := r.cr.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &RowError{Line: perr.Line, Err: perr.Err}
			}
			return nil, err
		}

		if blank(record) {
			continue
		}
		if !r.headerDone {
			r.headerDone = true
			if strings.EqualFold(strings.TrimSpace(record[0]), "type") {
				continue
			}
		}

		line, _ := r.cr.FieldPos(0)
		evt, err := parseRecord(record)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		return evt, nil
	}
}

func parseRecord(record []string) (ledger.Event, error) {
	if len(record) < 3 {
		return nil, fmt.Errorf("%w, got %d", ErrFieldCount, len(record))
	}

	tag := strings.ToLower(strings.TrimSpace(record[0]))
	typ, ok := ledger.ParseEventType(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}

	client, err := strconv.ParseUint(strings.TrimSpace(record[1]), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClient, err)
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	amount := money.Zero
	if typ.HasAmount() {
		if len(record) < 4 || strings.TrimSpace(record[3]) == "" {
			return nil, fmt.Errorf("%w for %s", ErrMissingAmount, typ)
		}
		if amount, err = money.Parse(record[3]); err != nil {
			return nil, err
		}
	}

	return ledger.NewEvent(typ, ledger.ClientID(client), ledger.TransactionID(tx), amount)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
