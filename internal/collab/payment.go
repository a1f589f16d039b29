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

// PurchaseState is the escrow record for one PAID job as reported by the
// payment service.
type PurchaseState struct {
	OnChainStatus domain.OnChainStatus `json:"onChainStatus"`
	Timings       purchaseTimings      `json:"timings"`
}

type purchaseTimings struct {
	PayByTime                 *time.Time `json:"payByTime"`
	SubmitResultTime          *time.Time `json:"submitResultTime"`
	UnlockTime                *time.Time `json:"unlockTime"`
	ExternalDisputeUnlockTime *time.Time `json:"externalDisputeUnlockTime"`
}

// EscrowTimings converts the wire shape into the domain one.
func (p *PurchaseState) EscrowTimings() domain.EscrowTimings {
	return domain.EscrowTimings{
		PayByTime:                 p.Timings.PayByTime,
		SubmitResultTime:          p.Timings.SubmitResultTime,
		UnlockTime:                p.Timings.UnlockTime,
		ExternalDisputeUnlockTime: p.Timings.ExternalDisputeUnlockTime,
	}
}

// PaymentClient fetches purchase/escrow state from the payment service.
type PaymentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     infra.Logger
}

// PaymentClientOptions configures a PaymentClient.
type PaymentClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     infra.Logger
}

func NewPaymentClient(opts PaymentClientOptions) (*PaymentClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("payment base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &PaymentClient{baseURL: opts.BaseURL, httpClient: client, logger: opts.Logger}, nil
}

// FetchPurchaseState reads the current escrow state for purchaseID.
func (c *PaymentClient) FetchPurchaseState(ctx context.Context, purchaseID string) (*PurchaseState, error) {
	endpoint, err := url.JoinPath(c.baseURL, "purchases", purchaseID)
	if err != nil {
		return nil, fmt.Errorf("purchase url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("purchase request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("purchase call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("purchase call: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("purchase body: %w", err)
	}

	var state PurchaseState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("purchase decode: %w", err)
	}
	if state.OnChainStatus == "" {
		return nil, fmt.Errorf("purchase decode: missing onChainStatus")
	}
	return &state, nil
}
