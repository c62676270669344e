package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	checker.Liveness(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != StatusHealthy {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
}

func TestHealthChecker_Check(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("no dependencies is healthy", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, nil)
		status := checker.Check(ctx)
		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy, got %s", status.Status)
		}
		if len(status.Dependencies) != 0 {
			t.Errorf("Expected no dependency entries, got %d", len(status.Dependencies))
		}
	})

	t.Run("healthy database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		checker := NewHealthChecker(db, nil, nil)
		status := checker.Check(ctx)

		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy, got %s", status.Status)
		}
		if status.Dependencies["database"].Status != StatusHealthy {
			t.Errorf("Expected healthy database, got %s", status.Dependencies["database"].Status)
		}
	})

	t.Run("unreachable database is unhealthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		checker := NewHealthChecker(db, nil, nil)
		status := checker.Check(ctx)

		if status.Status != StatusUnhealthy {
			t.Errorf("Expected unhealthy, got %s", status.Status)
		}
	})

	t.Run("down redis degrades but does not fail", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		mr.Close()

		checker := NewHealthChecker(nil, client, nil)
		status := checker.Check(ctx)

		if status.Status != StatusDegraded {
			t.Errorf("Expected degraded, got %s", status.Status)
		}
	})

	t.Run("healthy redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		checker := NewHealthChecker(nil, client, nil)
		status := checker.Check(ctx)

		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy, got %s", status.Status)
		}
	})

	t.Run("unreachable billing provider is unhealthy", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, &stubPinger{err: errors.New("timeout")})
		status := checker.Check(ctx)

		if status.Status != StatusUnhealthy {
			t.Errorf("Expected unhealthy, got %s", status.Status)
		}
		if status.Dependencies["billing_provider"].Message != "timeout" {
			t.Errorf("Expected timeout message, got %q", status.Dependencies["billing_provider"].Message)
		}
	})

	t.Run("reachable billing provider", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, &stubPinger{})
		status := checker.Check(ctx)

		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy, got %s", status.Status)
		}
	})
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("healthy returns 200", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, &stubPinger{})

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		checker.Readiness(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("unhealthy returns 503", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, &stubPinger{err: errors.New("down")})

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		checker.Readiness(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", rec.Code)
		}
	})
}

func TestRegisterHealthRoutes(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(nil, nil, nil))

	server := httptest.NewServer(mux)
	defer server.Close()

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("Failed to fetch %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}
