// Package health serves the liveness and readiness probes of the diagnostics
// server.
//
// GET /healthz answers 200 whenever the process can serve HTTP. GET /readyz
// runs every [Checker] concurrently and answers 200 only if all pass, 503
// otherwise. Both reply with {"status": "ok"|"fail", "checks": {...}}.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is one named readiness check. Check returns nil when healthy and
// must honour ctx.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probes for a fixed set of checkers.
type Handler struct {
	checkers []Checker
}

// New returns a Handler for checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts /healthz and /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, report{Status: "ok"})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := report{Status: "ok", Checks: h.run(r.Context())}
	code := http.StatusOK
	for _, v := range rep.Checks {
		if v != "ok" {
			rep.Status, code = "fail", http.StatusServiceUnavailable
			break
		}
	}
	reply(w, code, rep)
}

func (h *Handler) run(ctx context.Context) map[string]string {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(h.checkers))
	for i, c := range h.checkers {
		out[c.Name] = "ok"
		if errs[i] != nil {
			out[c.Name] = "fail: " + errs[i].Error()
		}
	}
	return out
}

func reply(w http.ResponseWriter, code int, rep report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}

// Heartbeat tracks whether a loop is still turning. The loop calls
// [Heartbeat.Beat] once per iteration.
type Heartbeat struct {
	maxAge time.Duration
	last   atomic.Int64
	now    func() time.Time
}

// NewHeartbeat returns a fresh Heartbeat that goes stale after maxAge
// without a beat.
func NewHeartbeat(maxAge time.Duration) *Heartbeat {
	hb := &Heartbeat{maxAge: maxAge, now: time.Now}
	hb.Beat()
	return hb
}

// Beat records progress.
func (hb *Heartbeat) Beat() { hb.last.Store(hb.now().UnixNano()) }

// Checker exposes the heartbeat as a readiness check.
func (hb *Heartbeat) Checker(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if age := hb.now().Sub(time.Unix(0, hb.last.Load())); age > hb.maxAge {
			return fmt.Errorf("no progress for %s", age.Truncate(time.Second))
		}
		return nil
	}}
}
