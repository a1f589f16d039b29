package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/integrity"
	"server/internal/reconcile"
)

type jobCreateRequest struct {
	AgentID        string          `json:"agentId"`
	Type           string          `json:"type"`
	Input          json.RawMessage `json:"input"`
	PriceCents     int64           `json:"priceCents"`
	PurchaseID     *string         `json:"purchaseId"`
	OrganizationID *string         `json:"organizationId"`
}

// JobsCreate starts a new job. The input digest is recorded at creation;
// for PAID jobs the price debit and the job insert commit in one
// transaction, so a job row can never exist without its debit entry.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.AgentID == "" || len(req.Input) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "agentId and input are required")
		return
	}

	inputHash, err := integrity.HashInput(req.Input)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "input is not valid JSON")
		return
	}

	job := &domain.Job{
		ID:             uuid.NewString(),
		AgentID:        req.AgentID,
		UserID:         userID,
		OrganizationID: req.OrganizationID,
		Type:           domain.JobType(req.Type),
		PurchaseID:     req.PurchaseID,
		Input:          req.Input,
		InputHash:      inputHash,
		PriceCents:     req.PriceCents,
	}
	if err := job.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid job")
		return
	}

	if job.Type != domain.JobTypePaid {
		if err := a.Jobs.Create(r.Context(), a.DB, job); err != nil {
			a.Logger.Error().Err(err).Msg("jobs: create failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
			return
		}
		a.json(w, http.StatusCreated, map[string]any{"id": job.ID, "inputHash": job.InputHash})
		return
	}

	err = a.Tx.InTx(r.Context(), func(db infra.DBTX) error {
		balance, err := a.Ledger.Balance(r.Context(), db, userID)
		if err != nil {
			return err
		}
		if balance < job.PriceCents {
			return domain.ErrInsufficientFunds
		}
		if err := a.Jobs.Create(r.Context(), db, job); err != nil {
			return err
		}
		return a.Ledger.Debit(r.Context(), db, userID, job.ID, job.PriceCents)
	})
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		a.error(w, http.StatusPaymentRequired, "insufficient_funds", "credit balance too low")
		return
	case err != nil:
		a.Logger.Error().Err(err).Msg("jobs: create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	a.json(w, http.StatusCreated, map[string]any{"id": job.ID, "inputHash": job.InputHash})
}

// JobsStatus returns the derived status projection for one job. Only the
// last successfully reconciled signals are visible; in-flight reconciliation
// failures never surface here.
func (a *App) JobsStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.UserID != a.currentUserID(r) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	a.json(w, http.StatusOK, reconcile.StatusData(job, time.Now()))
}
