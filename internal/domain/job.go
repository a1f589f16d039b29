package domain

import "time"

// JobType classifies how a job is paid for. Fixed at creation.
type JobType string

const (
	JobTypePaid JobType = "PAID"
	JobTypeFree JobType = "FREE"
	JobTypeDemo JobType = "DEMO"
)

// AgentJobStatus is the execution state the hired agent reports for a job.
// The agent is authoritative for execution progress only, never for settlement.
type AgentJobStatus string

const (
	AgentJobQueued    AgentJobStatus = "QUEUED"
	AgentJobRunning   AgentJobStatus = "RUNNING"
	AgentJobCompleted AgentJobStatus = "COMPLETED"
	AgentJobFailed    AgentJobStatus = "FAILED"
)

// OnChainStatus is the escrow/purchase state reported by the payment service.
type OnChainStatus string

const (
	OnChainCreated         OnChainStatus = "CREATED"
	OnChainFunded          OnChainStatus = "FUNDED"
	OnChainPaid            OnChainStatus = "PAID"
	OnChainResultSubmitted OnChainStatus = "RESULT_SUBMITTED"
	OnChainDisputed        OnChainStatus = "DISPUTED"
	OnChainReleased        OnChainStatus = "RELEASED"
	OnChainRefunded        OnChainStatus = "REFUNDED"
)

// JobStatus is the single externally visible state merged from all signals.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusDisputed   JobStatus = "DISPUTED"
	JobStatusPaidOut    JobStatus = "PAID_OUT"
	JobStatusRefunded   JobStatus = "REFUNDED"
)

// EscrowTimings carries the purchase milestones observed on chain.
// Invariant for PAID jobs: ExternalDisputeUnlockTime >= UnlockTime >=
// SubmitResultTime >= PayByTime wherever present.
type EscrowTimings struct {
	PayByTime                 *time.Time
	SubmitResultTime          *time.Time
	UnlockTime                *time.Time
	ExternalDisputeUnlockTime *time.Time
}

// Job is one unit of paid/free/demo work bought from an agent.
type Job struct {
	ID             string
	AgentID        string
	UserID         string
	OrganizationID *string
	Type           JobType

	// PurchaseID links a PAID job to its on-chain escrow record.
	PurchaseID *string

	AgentStatus   Signal[AgentJobStatus]
	OnChainStatus Signal[OnChainStatus]
	Timings       EscrowTimings

	Input      []byte
	InputHash  string
	Result     []byte
	ResultHash *string

	// IntegrityFault is set when a recomputed result digest did not match the
	// recorded one. Non-retryable; requires operator attention.
	IntegrityFault bool

	PriceCents int64

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// HasOnChainFields reports whether any escrow field is populated. FREE and
// DEMO jobs must never have any.
func (j *Job) HasOnChainFields() bool {
	return j.PurchaseID != nil ||
		j.OnChainStatus.IsObserved() ||
		j.Timings.PayByTime != nil ||
		j.Timings.SubmitResultTime != nil ||
		j.Timings.UnlockTime != nil ||
		j.Timings.ExternalDisputeUnlockTime != nil
}

// Validate checks the cross-field invariants that hold for every stored job.
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypePaid:
		if j.PriceCents <= 0 {
			return ErrInvalidJob
		}
	case JobTypeFree, JobTypeDemo:
		if j.HasOnChainFields() {
			return ErrInvalidJob
		}
	default:
		return ErrInvalidJob
	}
	return nil
}

// JobStatusData is the transient projection published to realtime clients.
// Never persisted; derived from the row on every read.
type JobStatusData struct {
	JobID            string    `json:"jobId"`
	JobStatus        JobStatus `json:"jobStatus"`
	JobStatusSettled bool      `json:"jobStatusSettled"`
}
