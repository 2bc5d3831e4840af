/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  JSON shapes returned by the replay service. Amounts are strings with four
  fractional digits, exactly as in the CSV output, so clients never see a
  float.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/store/sqlite"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AccountDTO is one account row.
type AccountDTO struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// TransactionDTO is one deposit or withdrawal record.
type TransactionDTO struct {
	Tx     uint32 `json:"tx"`
	Client uint16 `json:"client"`
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
	Status string `json:"status"`
}

// StatsDTO summarises how the rows of a run were handled.
type StatsDTO struct {
	Rows      int            `json:"rows"`
	Malformed int            `json:"malformed"`
	Applied   int            `json:"applied"`
	Failed    int            `json:"failed"`
	Rejected  map[string]int `json:"rejected"`
}

// RunResponse is returned by POST /api/runs.
type RunResponse struct {
	RunID    string       `json:"run_id"`
	Saved    bool         `json:"saved"`
	Accounts []AccountDTO `json:"accounts"`
	Stats    StatsDTO     `json:"stats"`
}

// RunSummaryDTO is one entry of GET /api/runs.
type RunSummaryDTO struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Applied   int       `json:"applied"`
	Rejected  int       `json:"rejected"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  bool   `json:"store"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTOs(accounts []ledger.Account) []AccountDTO {
	out := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		out[i] = AccountDTO{
			Client:    uint16(a.Client),
			Available: a.Available.String(),
			Held:      a.Held.String(),
			Total:     a.Total.String(),
			Locked:    a.Locked,
		}
	}
	return out
}

func toTransactionDTOs(records []ledger.TransactionRecord) []TransactionDTO {
	out := make([]TransactionDTO, len(records))
	for i, r := range records {
		out[i] = TransactionDTO{
			Tx:     uint32(r.ID),
			Client: uint16(r.Client),
			Kind:   r.Kind.String(),
			Amount: r.Amount.String(),
			Status: r.Status.String(),
		}
	}
	return out
}

func toStatsDTO(rep csvio.Report) StatsDTO {
	rejected := make(map[string]int, len(rep.Stats.Rejected))
	for reason, n := range rep.Stats.Rejected {
		rejected[string(reason)] = n
	}
	return StatsDTO{
		Rows:      rep.Rows,
		Malformed: rep.Malformed,
		Applied:   rep.Stats.Applied,
		Failed:    rep.Stats.Failed,
		Rejected:  rejected,
	}
}

func toRunSummaryDTOs(runs []sqlite.RunSummary) []RunSummaryDTO {
	out := make([]RunSummaryDTO, len(runs))
	for i, r := range runs {
		out[i] = RunSummaryDTO{
			ID:        r.ID.String(),
			Source:    r.Source,
			Applied:   r.Applied,
			Rejected:  r.Rejected,
			Failed:    r.Failed,
			CreatedAt: r.CreatedAt,
		}
	}
	return out
}
