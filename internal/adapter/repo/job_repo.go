package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
)

// JobRepositoryPG persists jobs in PostgreSQL. The signal and status columns
// are written only by the reconciliation path; Create takes an infra.DBTX so
// a PAID job's insert can share a transaction with its ledger debit.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `
id, agent_id, user_id, organization_id, job_type, purchase_id,
agent_job_status, on_chain_status,
pay_by_time, submit_result_time, unlock_time, external_dispute_unlock_time,
input, input_hash, result, result_hash, integrity_fault,
price_cents, status, created_at, updated_at, completed_at`

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, db infra.DBTX, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, agent_id, user_id, organization_id, job_type, purchase_id,
                  input, input_hash, price_cents, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := db.Exec(ctx, query,
		job.ID,
		job.AgentID,
		job.UserID,
		job.OrganizationID,
		job.Type,
		job.PurchaseID,
		job.Input,
		job.InputHash,
		job.PriceCents,
		domain.JobStatusQueued,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListNeedingReconciliation returns jobs whose outcome is not final yet, in
// least-recently-touched order.
func (r *JobRepositoryPG) ListNeedingReconciliation(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE completed_at IS NULL
   OR (job_type = 'PAID' AND status NOT IN ('PAID_OUT', 'REFUNDED'))
ORDER BY updated_at ASC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// UpdateReconciled writes back the merged signals, timings and status for a
// job. Callers hand it the same transaction as any ledger write the update
// accompanies.
func (r *JobRepositoryPG) UpdateReconciled(ctx context.Context, db infra.DBTX, job *domain.Job, status domain.JobStatus) error {
	query := `
UPDATE jobs
SET agent_job_status = $2,
    on_chain_status = $3,
    pay_by_time = $4,
    submit_result_time = $5,
    unlock_time = $6,
    external_dispute_unlock_time = $7,
    result = COALESCE($8, result),
    result_hash = COALESCE($9, result_hash),
    integrity_fault = $10,
    status = $11,
    completed_at = COALESCE($12, completed_at),
    updated_at = NOW()
WHERE id = $1;
`
	_, err := db.Exec(ctx, query,
		job.ID,
		signalToPtr(job.AgentStatus),
		signalToPtr(job.OnChainStatus),
		job.Timings.PayByTime,
		job.Timings.SubmitResultTime,
		job.Timings.UnlockTime,
		job.Timings.ExternalDisputeUnlockTime,
		nullableBytes(job.Result),
		job.ResultHash,
		job.IntegrityFault,
		status,
		job.CompletedAt,
	)
	return err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job         domain.Job
		agentStatus *string
		chainStatus *string
	)
	if err := row.Scan(
		&job.ID,
		&job.AgentID,
		&job.UserID,
		&job.OrganizationID,
		&job.Type,
		&job.PurchaseID,
		&agentStatus,
		&chainStatus,
		&job.Timings.PayByTime,
		&job.Timings.SubmitResultTime,
		&job.Timings.UnlockTime,
		&job.Timings.ExternalDisputeUnlockTime,
		&job.Input,
		&job.InputHash,
		&job.Result,
		&job.ResultHash,
		&job.IntegrityFault,
		&job.PriceCents,
		new(string), // stored status; derived again on read
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	if agentStatus != nil {
		job.AgentStatus = domain.Observed(domain.AgentJobStatus(*agentStatus))
	}
	if chainStatus != nil {
		job.OnChainStatus = domain.Observed(domain.OnChainStatus(*chainStatus))
	}
	return &job, nil
}

func signalToPtr[T ~string](s domain.Signal[T]) *string {
	v, ok := s.Value()
	if !ok {
		return nil
	}
	str := string(v)
	return &str
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobReader = (*JobRepositoryPG)(nil)
