package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/warp/payments-engine/ledger"
)

// Header is the first row written by WriteAccounts.
var Header = []string{"client", "available", "held", "total", "locked"}

// WriteAccounts writes one row per account, in the given order.
func WriteAccounts(w io.Writer, accounts []ledger.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, a := range accounts {
		record := []string{
			strconv.FormatUint(uint64(a.Client), 10),
			a.Available.String(),
			a.Held.String(),
			a.Total.String(),
			strconv.FormatBool(a.Locked),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write account %d: %w", a.Client, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
