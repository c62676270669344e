package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		if metrics.OperationsTotal == nil {
			t.Error("OperationsTotal is nil")
		}
		if metrics.OperationDuration == nil {
			t.Error("OperationDuration is nil")
		}
		if metrics.ProviderRequestsTotal == nil {
			t.Error("ProviderRequestsTotal is nil")
		}
		if metrics.ProviderRequestDuration == nil {
			t.Error("ProviderRequestDuration is nil")
		}
		if metrics.BillingGapsTotal == nil {
			t.Error("BillingGapsTotal is nil")
		}
		if metrics.SignupRollbacksTotal == nil {
			t.Error("SignupRollbacksTotal is nil")
		}
		if metrics.InviteMailTotal == nil {
			t.Error("InviteMailTotal is nil")
		}
		if metrics.CacheHitsTotal == nil {
			t.Error("CacheHitsTotal is nil")
		}
		if metrics.CacheMissesTotal == nil {
			t.Error("CacheMissesTotal is nil")
		}
		if metrics.ReconcileRunsTotal == nil {
			t.Error("ReconcileRunsTotal is nil")
		}
		if metrics.ReconcileDriftTotal == nil {
			t.Error("ReconcileDriftTotal is nil")
		}
	})

	t.Run("double registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.OperationsTotal.WithLabelValues("sign_up", "ok").Inc()
	metrics.OperationsTotal.WithLabelValues("sign_up", "ok").Inc()
	metrics.OperationsTotal.WithLabelValues("sign_up", "error").Inc()

	ok := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("sign_up", "ok"))
	if ok != 2 {
		t.Errorf("Expected 2 ok operations, got %v", ok)
	}

	failed := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("sign_up", "error"))
	if failed != 1 {
		t.Errorf("Expected 1 error operation, got %v", failed)
	}

	metrics.BillingGapsTotal.WithLabelValues("upgrade_plan").Inc()
	gaps := testutil.ToFloat64(metrics.BillingGapsTotal.WithLabelValues("upgrade_plan"))
	if gaps != 1 {
		t.Errorf("Expected 1 billing gap, got %v", gaps)
	}

	metrics.ReconcileOrgsChecked.Set(7)
	checked := testutil.ToFloat64(metrics.ReconcileOrgsChecked)
	if checked != 7 {
		t.Errorf("Expected 7 orgs checked, got %v", checked)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ProviderRequestsTotal.WithLabelValues("create_customer", "ok").Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}

	if !strings.Contains(string(body), "covault_billing_provider_requests_total") {
		t.Error("Expected provider request counter in metrics output")
	}
}
