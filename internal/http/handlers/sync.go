package handlers

import (
	"net/http"
)

// SyncTrigger runs one reconciliation sweep, typically invoked by a cron
// webhook. A sweep already running on another instance is a normal outcome
// reported as acquired=false, not an error.
func (a *App) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := a.Sweeps.Sweep(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("sync: sweep failed")
		a.error(w, http.StatusInternalServerError, "internal", "sweep failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"acquired":   result.Acquired,
		"reconciled": result.Reconciled,
		"failed":     result.Failed,
	})
}
