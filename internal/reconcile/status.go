// Package reconcile merges the independent signals about one job (the
// agent's self-reported execution status, the on-chain purchase state and
// the escrow clock) into the single status the rest of the system acts on.
package reconcile

import (
	"time"

	"server/internal/domain"
)

// ComputeJobStatus merges job type and both upstream signals into the
// externally visible status. Pure; never fails.
//
// For PAID jobs the on-chain signal overrides the agent's self-report: an
// agent claiming COMPLETED while the escrow is DISPUTED yields DISPUTED. A
// missing signal is treated as unknown and resolves to the most conservative
// non-terminal status.
func ComputeJobStatus(j *domain.Job) domain.JobStatus {
	switch j.Type {
	case domain.JobTypeDemo, domain.JobTypeFree:
		return statusFromAgent(j.AgentStatus)
	default:
		return paidStatus(j)
	}
}

func paidStatus(j *domain.Job) domain.JobStatus {
	if chain, ok := j.OnChainStatus.Value(); ok {
		// Settlement-terminal chain states win outright, whatever the
		// agent says about its own execution.
		switch chain {
		case domain.OnChainDisputed:
			return domain.JobStatusDisputed
		case domain.OnChainRefunded:
			return domain.JobStatusRefunded
		case domain.OnChainReleased:
			return domain.JobStatusPaidOut
		}
	} else {
		// Escrow not observed yet: the agent alone cannot move a PAID job
		// into a terminal state.
		if agent, ok := j.AgentStatus.Value(); ok && agent == domain.AgentJobQueued {
			return domain.JobStatusQueued
		}
		return domain.JobStatusProcessing
	}
	return statusFromAgent(j.AgentStatus)
}

func statusFromAgent(s domain.Signal[domain.AgentJobStatus]) domain.JobStatus {
	agent, ok := s.Value()
	if !ok {
		return domain.JobStatusProcessing
	}
	switch agent {
	case domain.AgentJobQueued:
		return domain.JobStatusQueued
	case domain.AgentJobCompleted:
		return domain.JobStatusCompleted
	case domain.AgentJobFailed:
		return domain.JobStatusFailed
	default:
		return domain.JobStatusProcessing
	}
}

// IsSettled reports whether the job's payment outcome is final at now.
//
// DEMO jobs settle immediately (no money moves). FREE jobs settle exactly
// when they actually finished. PAID jobs settle only once the external
// dispute window has elapsed; a job whose dispute-unlock time has not been
// observed yet is never settled, because an unobserved escrow record must
// not be read as "no dispute risk".
func IsSettled(j *domain.Job, now time.Time) bool {
	switch j.Type {
	case domain.JobTypeDemo:
		return true
	case domain.JobTypeFree:
		return j.CompletedAt != nil
	default:
		t := j.Timings.ExternalDisputeUnlockTime
		return t != nil && now.After(*t)
	}
}

// StatusData builds the realtime projection for a job at now.
func StatusData(j *domain.Job, now time.Time) domain.JobStatusData {
	return domain.JobStatusData{
		JobID:            j.ID,
		JobStatus:        ComputeJobStatus(j),
		JobStatusSettled: IsSettled(j, now),
	}
}

// MergeTimings folds newly observed escrow milestones into the recorded ones.
// Updates are monotonic: a field, once observed, may only move forward. A
// poll reporting an earlier instant returns ErrTimingRegression and leaves
// the recorded value untouched so operators can investigate.
func MergeTimings(current, observed domain.EscrowTimings) (domain.EscrowTimings, error) {
	merged := current
	var regression bool

	mergeField(&merged.PayByTime, observed.PayByTime, &regression)
	mergeField(&merged.SubmitResultTime, observed.SubmitResultTime, &regression)
	mergeField(&merged.UnlockTime, observed.UnlockTime, &regression)
	mergeField(&merged.ExternalDisputeUnlockTime, observed.ExternalDisputeUnlockTime, &regression)

	if regression {
		return current, domain.ErrTimingRegression
	}
	return merged, nil
}

func mergeField(dst **time.Time, observed *time.Time, regression *bool) {
	if observed == nil {
		return
	}
	if *dst == nil {
		v := *observed
		*dst = &v
		return
	}
	if observed.Before(**dst) {
		*regression = true
		return
	}
	v := *observed
	*dst = &v
}
