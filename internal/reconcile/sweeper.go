package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"server/internal/collab"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/integrity"
)

// SweepLockKey gates reconciliation sweeps across process instances.
const SweepLockKey = "job-status-sweep"

const maxConcurrentJobs = 4

// JobStore is the persistence surface a sweep needs.
type JobStore interface {
	ListNeedingReconciliation(ctx context.Context, limit int) ([]domain.Job, error)
	UpdateReconciled(ctx context.Context, db infra.DBTX, job *domain.Job, status domain.JobStatus) error
}

// AgentStatusFetcher asks the hired agent about a job.
type AgentStatusFetcher interface {
	FetchJobStatus(ctx context.Context, agentBaseURL, jobID string) (*collab.AgentStatusReport, error)
}

// PurchaseStateFetcher asks the payment service about an escrow record.
type PurchaseStateFetcher interface {
	FetchPurchaseState(ctx context.Context, purchaseID string) (*collab.PurchaseState, error)
}

// Locker is the advisory-lock protocol the sweep runs under.
type Locker interface {
	TryAcquire(ctx context.Context, key, holderID string) (bool, error)
	Renew(ctx context.Context, key, holderID string) (bool, error)
	Release(ctx context.Context, key, holderID string) error
	Timeout() time.Duration
}

// RefundWriter appends the refund entry for a job, idempotently.
type RefundWriter interface {
	Refund(ctx context.Context, db infra.DBTX, userID, jobID string, cents int64) (bool, error)
}

// SweepResult summarizes one sweep attempt.
type SweepResult struct {
	Acquired   bool
	Reconciled int
	Failed     int
}

// SweeperOptions wires a Sweeper.
type SweeperOptions struct {
	Jobs      JobStore
	Agents    AgentStatusFetcher
	Payments  PurchaseStateFetcher
	Locks     Locker
	Ledger    RefundWriter
	Tx        infra.TxRunner
	Publisher domain.StatusPublisher
	Logger    infra.Logger
	Metrics   *infra.Metrics

	// AgentBaseURL resolves an agent's API endpoint from its ID.
	AgentBaseURL func(agentID string) string

	BatchSize     int
	CollabTimeout time.Duration
}

// Sweeper runs lock-gated reconciliation sweeps: fetch both signals for each
// job needing attention, merge them, write ledger and status atomically, then
// publish the new projection.
type Sweeper struct {
	jobs      JobStore
	agents    AgentStatusFetcher
	payments  PurchaseStateFetcher
	locks     Locker
	ledger    RefundWriter
	tx        infra.TxRunner
	publisher domain.StatusPublisher
	logger    infra.Logger
	metrics   *infra.Metrics

	agentBaseURL  func(agentID string) string
	batchSize     int
	collabTimeout time.Duration
	now           func() time.Time
}

func NewSweeper(opts SweeperOptions) *Sweeper {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 50
	}
	collabTimeout := opts.CollabTimeout
	if collabTimeout <= 0 {
		collabTimeout = 10 * time.Second
	}
	return &Sweeper{
		jobs:          opts.Jobs,
		agents:        opts.Agents,
		payments:      opts.Payments,
		locks:         opts.Locks,
		ledger:        opts.Ledger,
		tx:            opts.Tx,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		agentBaseURL:  opts.AgentBaseURL,
		batchSize:     batch,
		collabTimeout: collabTimeout,
		now:           time.Now,
	}
}

// Sweep reconciles one batch of jobs under the sweep lock. Not acquiring the
// lock is the normal "another instance is on it" outcome: the result reports
// Acquired=false and the error is nil.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	holder := uuid.NewString()

	acquired, err := s.locks.TryAcquire(ctx, SweepLockKey, holder)
	if err != nil {
		return SweepResult{}, err
	}
	if !acquired {
		s.logger.Debug().Msg("sweep: lock held elsewhere, skipping cycle")
		if s.metrics != nil {
			s.metrics.SweepsSkipped.Add(ctx, 1)
		}
		return SweepResult{}, nil
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), SweepLockKey, holder); err != nil && !errors.Is(err, domain.ErrNotLockHolder) {
			s.logger.Error().Err(err).Msg("sweep: release lock failed")
		}
	}()

	if s.metrics != nil {
		s.metrics.SweepsRun.Add(ctx, 1)
	}

	jobs, err := s.jobs.ListNeedingReconciliation(ctx, s.batchSize)
	if err != nil {
		return SweepResult{Acquired: true}, err
	}

	// Keep the lock alive while the batch runs; if a renewal fails we have
	// lost the lock to expiry and must stop rather than double-process
	// against whoever reclaimed it.
	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		ticker := time.NewTicker(s.locks.Timeout() / 2)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				ok, err := s.locks.Renew(sweepCtx, SweepLockKey, holder)
				if err != nil || !ok {
					s.logger.Error().Err(err).Msg("sweep: lock renewal failed, aborting early")
					cancel()
					return
				}
			}
		}
	}()

	result := SweepResult{Acquired: true}
	var resultErr error

	g, gctx := errgroup.WithContext(sweepCtx)
	g.SetLimit(maxConcurrentJobs)
	outcomes := make([]error, len(jobs))
	for i := range jobs {
		i := i
		g.Go(func() error {
			outcomes[i] = s.reconcileJob(gctx, &jobs[i])
			return nil
		})
	}
	_ = g.Wait()
	cancel()
	<-renewDone

	for _, err := range outcomes {
		if err != nil {
			result.Failed++
			resultErr = err
			continue
		}
		result.Reconciled++
	}
	return result, resultErr
}

// reconcileJob runs fetch -> merge -> ledger+status write -> publish for one
// job, strictly in that order.
func (s *Sweeper) reconcileJob(ctx context.Context, job *domain.Job) error {
	prevStatus := ComputeJobStatus(job)

	s.observeAgent(ctx, job)
	if job.Type == domain.JobTypePaid {
		s.observePurchase(ctx, job)
	}

	if job.CompletedAt == nil {
		if agent, ok := job.AgentStatus.Value(); ok &&
			(agent == domain.AgentJobCompleted || agent == domain.AgentJobFailed) {
			done := s.now()
			job.CompletedAt = &done
		}
	}

	newStatus := ComputeJobStatus(job)

	err := s.tx.InTx(ctx, func(db infra.DBTX) error {
		if err := s.jobs.UpdateReconciled(ctx, db, job, newStatus); err != nil {
			return err
		}
		if newStatus == domain.JobStatusRefunded && job.Type == domain.JobTypePaid {
			issued, err := s.ledger.Refund(ctx, db, job.UserID, job.ID, job.PriceCents)
			if err != nil {
				return err
			}
			if issued {
				s.logger.Info().Str("job_id", job.ID).Int64("cents", job.PriceCents).Msg("sweep: refund issued")
				if s.metrics != nil {
					s.metrics.RefundsIssued.Add(ctx, 1)
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("sweep: reconcile write failed")
		return err
	}

	if s.metrics != nil {
		s.metrics.CountJob(ctx, string(job.Type))
	}

	if newStatus != prevStatus && s.publisher != nil {
		s.publisher.PublishJobStatus(job.AgentID, job.UserID, StatusData(job, s.now()))
	}
	return nil
}

// observeAgent polls the agent for its view of the job. A transient failure
// leaves the recorded signal untouched for this cycle.
func (s *Sweeper) observeAgent(ctx context.Context, job *domain.Job) {
	cctx, cancel := context.WithTimeout(ctx, s.collabTimeout)
	defer cancel()

	report, err := s.agents.FetchJobStatus(cctx, s.agentBaseURL(job.AgentID), job.ID)
	if err != nil {
		s.logger.Debug().Err(err).Str("job_id", job.ID).Msg("sweep: agent signal unknown this cycle")
		return
	}
	job.AgentStatus = domain.Observed(report.Status)

	if len(report.Result) == 0 {
		return
	}
	if job.ResultHash != nil {
		if !integrity.IsResultHashVerified(report.Result, *job.ResultHash, integrity.VerifyOptions{}) {
			// Distinct, non-retryable integrity fault: never folded into a
			// generic failure status.
			job.IntegrityFault = true
			s.logger.Error().Str("job_id", job.ID).Msg("sweep: result digest mismatch")
			if s.metrics != nil {
				s.metrics.IntegrityFaults.Add(ctx, 1)
			}
		}
		return
	}
	digest, err := integrity.HashResult(report.Result)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweep: result not hashable, ignoring")
		return
	}
	job.Result = report.Result
	job.ResultHash = &digest
}

// observePurchase polls the escrow record for a PAID job.
func (s *Sweeper) observePurchase(ctx context.Context, job *domain.Job) {
	if job.PurchaseID == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.collabTimeout)
	defer cancel()

	state, err := s.payments.FetchPurchaseState(cctx, *job.PurchaseID)
	if err != nil {
		s.logger.Debug().Err(err).Str("job_id", job.ID).Msg("sweep: on-chain signal unknown this cycle")
		return
	}
	job.OnChainStatus = domain.Observed(state.OnChainStatus)

	merged, err := MergeTimings(job.Timings, state.EscrowTimings())
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("sweep: rejected escrow timing update")
		if s.metrics != nil {
			s.metrics.TimingRegressions.Add(ctx, 1)
		}
		return
	}
	job.Timings = merged
}
