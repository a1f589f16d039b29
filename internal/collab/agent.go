// Package collab holds the HTTP clients for the two external parties a
// reconciliation consults: the hired agent's own service and the blockchain
// payment/escrow service. Any failure or malformed body is returned as an
// error; the sweep treats that as "unknown signal this cycle", never as
// ground truth.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

const maxBodyBytes = 1 << 20

// AgentStatusReport is the agent's self-reported view of one job.
type AgentStatusReport struct {
	Status domain.AgentJobStatus `json:"status"`
	Result json.RawMessage       `json:"result,omitempty"`
}

// AgentClient fetches job execution status from a hired agent's API.
type AgentClient struct {
	httpClient *http.Client
	logger     infra.Logger
}

// AgentClientOptions configures an AgentClient.
type AgentClientOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     infra.Logger
}

func NewAgentClient(opts AgentClientOptions) *AgentClient {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &AgentClient{httpClient: client, logger: opts.Logger}
}

// FetchJobStatus asks the agent at agentBaseURL about jobID.
func (c *AgentClient) FetchJobStatus(ctx context.Context, agentBaseURL, jobID string) (*AgentStatusReport, error) {
	endpoint, err := url.JoinPath(agentBaseURL, "jobs", jobID, "status")
	if err != nil {
		return nil, fmt.Errorf("agent status url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("agent status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent status call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent status call: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("agent status body: %w", err)
	}

	var report AgentStatusReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("agent status decode: %w", err)
	}
	switch report.Status {
	case domain.AgentJobQueued, domain.AgentJobRunning, domain.AgentJobCompleted, domain.AgentJobFailed:
	default:
		return nil, fmt.Errorf("agent status decode: unknown status %q", report.Status)
	}
	return &report, nil
}
