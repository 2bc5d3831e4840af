/*
handlers.go - HTTP API handlers for the replay service

PURPOSE:
  Exposes the ledger engine over HTTP. A client uploads a transaction CSV,
  the service replays it through a fresh engine and answers with the final
  accounts. Saved reports can be listed and read back.

ENGINE OWNERSHIP:
  Every POST /api/runs builds its own engine. Engines are never shared
  between requests and never outlive the request that built them.

CONTENT NEGOTIATION:
  Account responses are JSON unless the request sends Accept: text/csv, in
  which case the body is the same CSV the command-line driver prints.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unreadable upload, invalid run id
  - 404: Unknown run, or no report store configured
  - 413: Upload larger than the configured limit
  - 500: Store failures

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
  - csvio/replay.go: the replay loop
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/store/sqlite"
)

// DefaultMaxBodyBytes caps uploads when the handler is built without a limit.
const DefaultMaxBodyBytes = 64 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RunStore is the report sink used by the handlers. *sqlite.Store
// implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run sqlite.Run) error
	ListRuns(ctx context.Context) ([]sqlite.RunSummary, error)
	LoadAccounts(ctx context.Context, runID uuid.UUID) ([]ledger.Account, error)
	LoadTransactions(ctx context.Context, runID uuid.UUID) ([]ledger.TransactionRecord, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	store        RunStore
	log          zerolog.Logger
	maxBodyBytes int64
}

// NewHandler creates a handler. store may be nil, in which case runs are
// replayed but not saved.
func NewHandler(store RunStore, log zerolog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{store: store, log: log, maxBodyBytes: maxBodyBytes}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Store: h.store != nil})
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

// CreateRun handles POST /api/runs
//
// The request body is a transaction CSV. An optional ?source= query value
// labels the saved report.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.With().Str("request_id", middleware.GetReqID(ctx)).Logger()

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "upload"
	}

	engine := ledger.NewEngine(ledger.WithLogger(log))
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	rep, err := csvio.Replay(ctx, body, engine, log)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to replay transactions", err)
		return
	}

	run := sqlite.NewRun(source, engine)
	saved := false
	if h.store != nil {
		if err := h.store.SaveRun(ctx, run); err != nil {
			log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to save run")
			writeError(w, http.StatusInternalServerError, "Failed to save run", err)
			return
		}
		saved = true
	}

	w.Header().Set("X-Run-ID", run.ID.String())
	if wantsCSV(r) {
		writeCSV(w, run.Accounts)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		RunID:    run.ID.String(),
		Saved:    saved,
		Accounts: toAccountDTOs(run.Accounts),
		Stats:    toStatsDTO(rep),
	})
}

// ListRuns handles GET /api/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTOs(runs))
}

// GetRunAccounts handles GET /api/runs/{id}/accounts
func (h *Handler) GetRunAccounts(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	accounts, err := h.store.LoadAccounts(r.Context(), runID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	if wantsCSV(r) {
		writeCSV(w, accounts)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTOs(accounts))
}

// GetRunTransactions handles GET /api/runs/{id}/transactions
func (h *Handler) GetRunTransactions(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	records, err := h.store.LoadTransactions(r.Context(), runID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(records))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "No report store configured", nil)
		return false
	}
	return true
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if !h.requireStore(w) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to load run", err)
}

func wantsCSV(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func writeCSV(w http.ResponseWriter, accounts []ledger.Account) {
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	csvio.WriteAccounts(w, accounts)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
