package health

import (
	"context"
	"errors"
	"testing"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{}, &mockChecker{})

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	for name, result := range report.Checks {
		if result != CheckOK {
			t.Errorf("check %s = %s, expected ok", name, result)
		}
	}
	if len(report.Checks) != 3 {
		t.Errorf("expected 3 checks, got %d", len(report.Checks))
	}
}

func TestCheck_DatabaseDown(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("down")}, &mockChecker{}, &mockChecker{})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["database"] != CheckError {
		t.Errorf("expected database check error, got %s", report.Checks["database"])
	}
}

func TestCheck_GenerationDown(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{}, &mockChecker{err: errors.New("api down")})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["generation"] != CheckError {
		t.Errorf("expected generation check error, got %s", report.Checks["generation"])
	}
	if report.Checks["embedding"] != CheckOK {
		t.Errorf("embedding should still be ok, got %s", report.Checks["embedding"])
	}
}

func TestCheck_NilProviders(t *testing.T) {
	svc := New(&mockPinger{}, nil, nil)

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 1 {
		t.Errorf("expected only database check, got %v", report.Checks)
	}
}
