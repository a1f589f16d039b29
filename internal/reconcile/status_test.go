package reconcile

import (
	"errors"
	"testing"
	"time"

	"server/internal/domain"
)

func paidJob() *domain.Job {
	return &domain.Job{ID: "job-1", Type: domain.JobTypePaid, PriceCents: 500}
}

func TestOnChainDisputeOverridesAgentCompletion(t *testing.T) {
	j := paidJob()
	j.AgentStatus = domain.Observed(domain.AgentJobCompleted)
	j.OnChainStatus = domain.Observed(domain.OnChainDisputed)

	if got := ComputeJobStatus(j); got != domain.JobStatusDisputed {
		t.Fatalf("got %s, want DISPUTED", got)
	}
}

func TestComputeJobStatusPaid(t *testing.T) {
	cases := []struct {
		name  string
		agent domain.Signal[domain.AgentJobStatus]
		chain domain.Signal[domain.OnChainStatus]
		want  domain.JobStatus
	}{
		{"both unknown", domain.Unknown[domain.AgentJobStatus](), domain.Unknown[domain.OnChainStatus](), domain.JobStatusProcessing},
		{"agent queued, chain unknown", domain.Observed(domain.AgentJobQueued), domain.Unknown[domain.OnChainStatus](), domain.JobStatusQueued},
		{"agent completed, chain unknown stays non-terminal", domain.Observed(domain.AgentJobCompleted), domain.Unknown[domain.OnChainStatus](), domain.JobStatusProcessing},
		{"agent failed, chain unknown stays non-terminal", domain.Observed(domain.AgentJobFailed), domain.Unknown[domain.OnChainStatus](), domain.JobStatusProcessing},
		{"agent completed, chain paid", domain.Observed(domain.AgentJobCompleted), domain.Observed(domain.OnChainPaid), domain.JobStatusCompleted},
		{"agent failed, chain funded", domain.Observed(domain.AgentJobFailed), domain.Observed(domain.OnChainFunded), domain.JobStatusFailed},
		{"agent running, chain paid", domain.Observed(domain.AgentJobRunning), domain.Observed(domain.OnChainPaid), domain.JobStatusProcessing},
		{"agent unknown, chain paid", domain.Unknown[domain.AgentJobStatus](), domain.Observed(domain.OnChainPaid), domain.JobStatusProcessing},
		{"chain released wins", domain.Observed(domain.AgentJobRunning), domain.Observed(domain.OnChainReleased), domain.JobStatusPaidOut},
		{"chain refunded wins", domain.Observed(domain.AgentJobCompleted), domain.Observed(domain.OnChainRefunded), domain.JobStatusRefunded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := paidJob()
			j.AgentStatus = tc.agent
			j.OnChainStatus = tc.chain
			if got := ComputeJobStatus(j); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestComputeJobStatusDemoIgnoresChain(t *testing.T) {
	j := &domain.Job{ID: "demo-1", Type: domain.JobTypeDemo}
	j.AgentStatus = domain.Observed(domain.AgentJobCompleted)
	if got := ComputeJobStatus(j); got != domain.JobStatusCompleted {
		t.Fatalf("got %s, want COMPLETED", got)
	}

	j.AgentStatus = domain.Unknown[domain.AgentJobStatus]()
	if got := ComputeJobStatus(j); got != domain.JobStatusProcessing {
		t.Fatalf("unknown agent signal: got %s, want PROCESSING", got)
	}
}

func TestIsSettledPaidTracksDisputeWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	unlock := now.Add(48 * time.Hour)

	j := paidJob()
	if IsSettled(j, now) {
		t.Fatal("job with unobserved dispute-unlock time must never be settled")
	}

	j.Timings.ExternalDisputeUnlockTime = &unlock
	if IsSettled(j, now) {
		t.Fatal("settled before the dispute window elapsed")
	}
	if !IsSettled(j, unlock.Add(time.Second)) {
		t.Fatal("not settled after the dispute window elapsed")
	}
}

func TestIsSettledFreeFollowsCompletion(t *testing.T) {
	j := &domain.Job{ID: "free-1", Type: domain.JobTypeFree}
	j.AgentStatus = domain.Observed(domain.AgentJobCompleted)
	if IsSettled(j, time.Now()) {
		t.Fatal("free job settled without a completion timestamp")
	}
	done := time.Now()
	j.CompletedAt = &done
	if !IsSettled(j, time.Now()) {
		t.Fatal("finished free job not settled")
	}
}

func TestIsSettledDemoAlwaysTrue(t *testing.T) {
	j := &domain.Job{ID: "demo-1", Type: domain.JobTypeDemo}
	if !IsSettled(j, time.Now()) {
		t.Fatal("demo job not settled")
	}
}

func TestMergeTimingsMonotonic(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	later := t0.Add(time.Hour)
	earlier := t0.Add(-time.Hour)

	current := domain.EscrowTimings{ExternalDisputeUnlockTime: &t0}

	merged, err := MergeTimings(current, domain.EscrowTimings{ExternalDisputeUnlockTime: &later})
	if err != nil {
		t.Fatalf("forward update rejected: %v", err)
	}
	if !merged.ExternalDisputeUnlockTime.Equal(later) {
		t.Fatalf("got %v, want %v", merged.ExternalDisputeUnlockTime, later)
	}

	merged, err = MergeTimings(current, domain.EscrowTimings{ExternalDisputeUnlockTime: &earlier})
	if !errors.Is(err, domain.ErrTimingRegression) {
		t.Fatalf("backward update accepted: %v", err)
	}
	if !merged.ExternalDisputeUnlockTime.Equal(t0) {
		t.Fatal("recorded timing changed despite rejection")
	}
}

func TestMergeTimingsFillsUnobservedFields(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	observed := domain.EscrowTimings{
		PayByTime:        &t0,
		SubmitResultTime: timePtr(t0.Add(time.Hour)),
	}
	merged, err := MergeTimings(domain.EscrowTimings{}, observed)
	if err != nil {
		t.Fatal(err)
	}
	if merged.PayByTime == nil || merged.SubmitResultTime == nil {
		t.Fatal("observed fields not recorded")
	}
	if merged.UnlockTime != nil {
		t.Fatal("unobserved field invented")
	}
}

func timePtr(t time.Time) *time.Time { return &t }
