package health

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pass(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, h http.Handler, path string) (int, report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func serve(checkers ...Checker) http.Handler {
	mux := http.NewServeMux()
	New(checkers...).Register(mux)
	return mux
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	code, rep := get(t, serve(Checker{Name: "audio", Check: failWith("gone")}), "/healthz")
	if code != http.StatusOK || rep.Status != "ok" || rep.Checks != nil {
		t.Errorf("healthz = %d %+v, want 200 ok without checks", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "audio", Check: pass},
				{Name: "journal", Check: pass},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"audio": "ok", "journal": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "audio", Check: failWith("audio device not connected")},
				{Name: "journal", Check: pass},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"audio": "fail: audio device not connected", "journal": "ok"},
		},
		{
			name: "all fail",
			checkers: []Checker{
				{Name: "journal", Check: failWith("connection refused")},
				{Name: "loop", Check: failWith("no progress for 1m0s")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"journal": "fail: connection refused", "loop": "fail: no progress for 1m0s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, rep := get(t, serve(tt.checkers...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Errorf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			if len(tt.wantChecks) > 0 && !maps.Equal(rep.Checks, tt.wantChecks) {
				t.Errorf("checks = %v, want %v", rep.Checks, tt.wantChecks)
			}
		})
	}
}

func TestReadyz_CancelledRequest(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "journal", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	// Each check waits for the other; serial execution would block until
	// the check timeout.
	h := serve(
		Checker{Name: "a", Check: func(ctx context.Context) error {
			select {
			case gate <- struct{}{}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		Checker{Name: "b", Check: func(ctx context.Context) error {
			select {
			case <-gate:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	)
	start := time.Now()
	if code, _ := get(t, h, "/readyz"); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("readyz took %v", d)
	}
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	hb := NewHeartbeat(time.Minute)
	hb.now = func() time.Time { return now }
	hb.Beat()
	check := hb.Checker("loop")

	if check.Name != "loop" {
		t.Errorf("Name = %q", check.Name)
	}
	if err := check.Check(context.Background()); err != nil {
		t.Fatalf("fresh heartbeat: %v", err)
	}

	now = now.Add(90 * time.Second)
	err := check.Check(context.Background())
	if err == nil || err.Error() != "no progress for 1m30s" {
		t.Fatalf("stale heartbeat: err = %v", err)
	}

	hb.Beat()
	if err := check.Check(context.Background()); err != nil {
		t.Fatalf("after beat: %v", err)
	}
}
