package healthprobe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestNew(t *testing.T) {
	hc := New()

	if hc == nil {
		t.Fatal("New() returned nil")
	}

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestSetReady(t *testing.T) {
	tests := []struct {
		name     string
		setReady bool
		expected bool
	}{
		{name: "set_ready_true", setReady: true, expected: true},
		{name: "set_ready_false", setReady: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			hc.SetReady(tt.setReady)

			if hc.ready.Load() != tt.expected {
				t.Errorf("SetReady(%v): ready = %v, want %v", tt.setReady, hc.ready.Load(), tt.expected)
			}
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	hc := New()

	rec := httptest.NewRecorder()
	hc.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	resp := decode(t, rec)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Uptime == "" {
		t.Error("expected uptime")
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		checks     map[string]Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "not_ready",
			ready:      false,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
		{
			name:       "ready_no_checks",
			ready:      true,
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:  "ready_checks_pass",
			ready: true,
			checks: map[string]Check{
				"websocket": func(context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:  "ready_check_fails",
			ready: true,
			checks: map[string]Check{
				"websocket":     func(context.Context) error { return nil },
				"session-store": func(context.Context) error { return errors.New("database is locked") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			hc.SetReady(tt.ready)
			for name, check := range tt.checks {
				hc.Register(name, check)
			}

			rec := httptest.NewRecorder()
			hc.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			resp := decode(t, rec)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("checks = %v, want %d entries", resp.Checks, len(tt.checks))
			}
		})
	}
}

func TestReady_CheckMessages(t *testing.T) {
	hc := New()
	hc.SetReady(true)
	hc.Register("ok", func(context.Context) error { return nil })
	hc.Register("bad", func(context.Context) error { return errors.New("not connected") })

	rec := httptest.NewRecorder()
	hc.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	resp := decode(t, rec)
	if resp.Checks["ok"] != "ok" {
		t.Errorf("ok check = %q", resp.Checks["ok"])
	}
	if resp.Checks["bad"] != "not connected" {
		t.Errorf("bad check = %q", resp.Checks["bad"])
	}
}
