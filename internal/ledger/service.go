// Package ledger provides the reconciler and read-only query facade over
// per-account delegation ledgers, plus the HTTP handlers embedding them.
//
// The ledger is a locally durable projection of the chain's append-only
// delegation log. Reconcile absorbs replayed, overlapping, and
// out-of-order batches for free: every insert is keyed on the source
// event ID, so duplicates are no-ops and retries are always safe.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/metrics"
	"github.com/evermark/curation-engine/internal/model"
	"github.com/evermark/curation-engine/internal/normalize"
	"github.com/evermark/curation-engine/internal/position"
	"github.com/evermark/curation-engine/internal/reward"
	"github.com/evermark/curation-engine/internal/store"
)

// putChunkSize bounds how many records go to the store per round-trip.
// Cancellation is honored between chunks; records already written stay
// (no rollback — a retried reconcile absorbs them as duplicates).
const putChunkSize = 100

// Service reconciles raw chain events into the durable ledger and serves
// read-only views over it. Reconcile calls for the same account are
// serialized; different accounts proceed in parallel.
type Service struct {
	store store.Store
	hub   *WSHub // optional, for ledger-update broadcasts

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex // accountID → reconcile lock
}

// NewService creates a new ledger service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{
		store: st,
		hub:   hub,
		locks: make(map[string]*sync.Mutex),
	}
}

// accountLock returns the reconcile lock for an account, creating it on
// first use. Locks are never removed; the set of active accounts per
// process is small.
func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	mu, ok := s.locks[accountID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[accountID] = mu
	}
	return mu
}

// Reconcile normalizes and inserts a batch of raw events into an
// account's ledger. Malformed events are counted as Rejected and skipped;
// already-present records are counted as Duplicates. Fully idempotent:
// reconciling the same batch twice yields Inserted=0 the second time.
//
// On store failure the summary reflects everything durably inserted
// before the failure; those records are retained, and the error covers
// the whole call.
func (s *Service) Reconcile(ctx context.Context, accountID string, events []model.RawEvent) (model.ReconcileSummary, error) {
	start := time.Now()
	defer func() {
		metrics.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	mu := s.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	var summary model.ReconcileSummary

	records := make([]model.DelegationRecord, 0, len(events))
	for _, ev := range events {
		rec, err := normalize.Normalize(ev)
		if err != nil {
			summary.Rejected++
			metrics.RecordsRejected.WithLabelValues(rejectionReason(err)).Inc()
			slog.Warn("event rejected", "account", accountID, "err", err)
			continue
		}
		records = append(records, rec)
	}

	batchID := uuid.New().String()

	for offset := 0; offset < len(records); offset += putChunkSize {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("reconcile %s: %w", accountID, err)
		}

		end := offset + putChunkSize
		if end > len(records) {
			end = len(records)
		}

		inserted, err := s.store.PutRecords(ctx, accountID, records[offset:end])
		for _, ok := range inserted {
			if ok {
				summary.Inserted++
				metrics.RecordsInserted.Inc()
			} else {
				summary.Duplicates++
				metrics.RecordsDuplicate.Inc()
			}
		}
		if err != nil {
			return summary, fmt.Errorf("reconcile %s: %w", accountID, err)
		}
	}

	slog.Info("reconcile complete",
		"batch_id", batchID,
		"account", accountID,
		"events", len(events),
		"inserted", summary.Inserted,
		"duplicates", summary.Duplicates,
		"rejected", summary.Rejected,
	)

	if s.hub != nil && summary.Inserted > 0 {
		s.hub.Broadcast(WSMessage{
			Type:       "ledger_updated",
			AccountID:  accountID,
			Inserted:   summary.Inserted,
			Duplicates: summary.Duplicates,
			Rejected:   summary.Rejected,
		})
	}

	return summary, nil
}

// rejectionReason maps normalizer errors to a bounded metric label set.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, normalize.ErrMissingAccount):
		return "missing_account"
	case errors.Is(err, normalize.ErrNonPositiveAmount):
		return "bad_amount"
	case errors.Is(err, normalize.ErrInvalidDirection):
		return "bad_direction"
	case errors.Is(err, normalize.ErrNegativeCycle):
		return "bad_cycle"
	default:
		return "other"
	}
}

// --- Query facade (read-only, no network I/O) ---

// SupportedItems returns the itemIDs the account currently supports
// (strictly positive net position).
func (s *Service) SupportedItems(ctx context.Context, accountID string) ([]string, error) {
	ledger, err := s.store.GetLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return position.SupportedItems(ledger), nil
}

// CycleDelegations returns the account's records for one cycle.
func (s *Service) CycleDelegations(ctx context.Context, accountID string, cycle int64) ([]model.DelegationRecord, error) {
	ledger, err := s.store.GetLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return position.CycleSlice(ledger, cycle), nil
}

// NetDelegations returns the account's net position per item.
func (s *Service) NetDelegations(ctx context.Context, accountID string) (map[string]decimal.Decimal, error) {
	ledger, err := s.store.GetLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return position.NetPositions(ledger), nil
}

// Stats derives RewardStats. The current cycle, total voting power, and
// current-cycle net delegated are authoritative values supplied by the
// caller; the local ledger feeds only the consistency lookback.
func (s *Service) Stats(ctx context.Context, accountID string, currentCycle int64, totalVotingPower, currentCycleNetDelegated decimal.Decimal) (model.RewardStats, error) {
	ledger, err := s.store.GetLedger(ctx, accountID)
	if err != nil {
		return model.RewardStats{}, err
	}
	return reward.Score(currentCycleNetDelegated, totalVotingPower, ledger, currentCycle), nil
}

// Refresh re-reads the account's ledger from the durable store, bypassing
// any cache layer. No network I/O.
func (s *Service) Refresh(ctx context.Context, accountID string) ([]model.DelegationRecord, error) {
	return s.store.RefreshLedger(ctx, accountID)
}

// Reset irreversibly deletes the account's ledger. Only ever invoked by
// an explicit user action.
func (s *Service) Reset(ctx context.Context, accountID string) error {
	if err := s.store.ClearLedger(ctx, accountID); err != nil {
		return err
	}
	slog.Info("ledger reset", "account", accountID)
	return nil
}

// --- HTTP Handlers ---

// ReconcileRequest is the JSON body for POST /accounts/{accountID}/reconcile.
type ReconcileRequest struct {
	Events []model.RawEvent `json:"events"`
}

// HandleReconcile handles POST /api/v1/accounts/{accountID}/reconcile
func (s *Service) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := s.Reconcile(r.Context(), accountID, req.Events)
	if err != nil {
		// Partial progress is durable; report the summary with the error
		// so callers can decide to retry (retry is always safe).
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleSupported handles GET /api/v1/accounts/{accountID}/supported
func (s *Service) HandleSupported(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	items, err := s.SupportedItems(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to load supported items", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// HandleDelegations handles GET /api/v1/accounts/{accountID}/delegations?cycle=N
func (s *Service) HandleDelegations(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	cycle, err := strconv.ParseInt(r.URL.Query().Get("cycle"), 10, 64)
	if err != nil || cycle < 0 {
		writeError(w, "cycle must be a non-negative integer", http.StatusBadRequest)
		return
	}

	records, err := s.CycleDelegations(r.Context(), accountID, cycle)
	if err != nil {
		writeError(w, "failed to load delegations", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.DelegationRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// HandleNet handles GET /api/v1/accounts/{accountID}/net
func (s *Service) HandleNet(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	nets, err := s.NetDelegations(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to load net delegations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nets)
}

// HandleStats handles GET /api/v1/accounts/{accountID}/stats with query
// parameters current_cycle, total_voting_power, and
// current_cycle_net_delegated — all supplied by the caller from the
// authoritative sources.
func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	q := r.URL.Query()

	currentCycle, err := strconv.ParseInt(q.Get("current_cycle"), 10, 64)
	if err != nil || currentCycle < 0 {
		writeError(w, "current_cycle must be a non-negative integer", http.StatusBadRequest)
		return
	}

	totalVotingPower, err := decimal.NewFromString(q.Get("total_voting_power"))
	if err != nil || totalVotingPower.IsNegative() {
		writeError(w, "total_voting_power must be a non-negative amount", http.StatusBadRequest)
		return
	}

	netDelegated, err := decimal.NewFromString(q.Get("current_cycle_net_delegated"))
	if err != nil || netDelegated.IsNegative() {
		writeError(w, "current_cycle_net_delegated must be a non-negative amount", http.StatusBadRequest)
		return
	}

	stats, err := s.Stats(r.Context(), accountID, currentCycle, totalVotingPower, netDelegated)
	if err != nil {
		writeError(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// HandleRefresh handles POST /api/v1/accounts/{accountID}/refresh
func (s *Service) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	records, err := s.Refresh(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to refresh ledger", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.DelegationRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// HandleReset handles DELETE /api/v1/accounts/{accountID}/ledger
func (s *Service) HandleReset(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	if err := s.Reset(r.Context(), accountID); err != nil {
		writeError(w, "failed to reset ledger", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
