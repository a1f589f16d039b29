package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/notify"
	"server/internal/reconcile"
)

// JobStore is the job persistence surface the handlers need.
type JobStore interface {
	Create(ctx context.Context, db infra.DBTX, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
}

// LedgerStore is the credit ledger surface the handlers need.
type LedgerStore interface {
	Debit(ctx context.Context, db infra.DBTX, userID, jobID string, cents int64) error
	Balance(ctx context.Context, db infra.DBTX, userID string) (int64, error)
}

// SweepRunner triggers one reconciliation sweep attempt.
type SweepRunner interface {
	Sweep(ctx context.Context) (reconcile.SweepResult, error)
}

// App bundles the dependencies of the HTTP surface.
type App struct {
	Jobs   JobStore
	Ledger LedgerStore
	DB     infra.DBTX
	Tx     infra.TxRunner
	Sweeps SweepRunner
	Hub    *notify.Hub
	Logger infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{"error": slug, "message": message})
}

// currentUserID trusts the identity header placed by the authenticating
// proxy; session handling itself lives outside this service.
func (a *App) currentUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
