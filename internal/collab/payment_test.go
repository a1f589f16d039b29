package collab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

func TestFetchPurchaseState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/purchases/purchase-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"onChainStatus": "RELEASED",
			"timings": {
				"payByTime": "2026-01-01T00:00:00Z",
				"unlockTime": "2026-01-03T00:00:00Z",
				"externalDisputeUnlockTime": "2026-01-05T00:00:00Z"
			}
		}`))
	}))
	defer srv.Close()

	client, err := NewPaymentClient(PaymentClientOptions{BaseURL: srv.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}

	state, err := client.FetchPurchaseState(context.Background(), "purchase-1")
	if err != nil {
		t.Fatalf("FetchPurchaseState: %v", err)
	}
	if state.OnChainStatus != domain.OnChainReleased {
		t.Fatalf("onChainStatus = %q, want RELEASED", state.OnChainStatus)
	}

	timings := state.EscrowTimings()
	if timings.PayByTime == nil || !timings.PayByTime.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("payByTime = %v", timings.PayByTime)
	}
	if timings.SubmitResultTime != nil {
		t.Fatalf("submitResultTime = %v, want nil", timings.SubmitResultTime)
	}
	if timings.ExternalDisputeUnlockTime == nil {
		t.Fatal("expected externalDisputeUnlockTime")
	}
}

func TestFetchPurchaseStateRequiresStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timings":{}}`))
	}))
	defer srv.Close()

	client, err := NewPaymentClient(PaymentClientOptions{BaseURL: srv.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewPaymentClient: %v", err)
	}
	if _, err := client.FetchPurchaseState(context.Background(), "purchase-1"); err == nil {
		t.Fatal("expected error when onChainStatus is missing")
	}
}

func TestNewPaymentClientRequiresBaseURL(t *testing.T) {
	if _, err := NewPaymentClient(PaymentClientOptions{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
