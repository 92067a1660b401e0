package resilience

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// transitions records OnStateChange calls as "from>to" strings.
type transitions struct {
	mu  sync.Mutex
	got []string
}

func (tr *transitions) record(_ string, from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, from.String()+">"+to.String())
}

func (tr *transitions) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return slices.Clone(tr.got)
}

func newTestBreaker(c *clock, tr *transitions) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:          "deepgram",
		MaxFailures:   2,
		ResetTimeout:  10 * time.Second,
		HalfOpenMax:   2,
		OnStateChange: tr.record,
		Now:           c.Now,
	})
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "tts"})
	if cb.cfg.MaxFailures != 5 || cb.cfg.ResetTimeout != 30*time.Second || cb.cfg.HalfOpenMax != 3 {
		t.Errorf("defaults = %+v", cb.cfg)
	}
	if cb.State() != StateClosed || cb.Name() != "tts" {
		t.Errorf("state = %v, name = %q", cb.State(), cb.Name())
	}
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	t.Parallel()
	c, tr := newClock(), &transitions{}
	cb := newTestBreaker(c, tr)

	// A success between failures keeps the run short of the limit.
	for _, fn := range []func() error{fail, succeed, fail} {
		_ = cb.Execute(fn)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}

	if err := cb.Execute(fail); !errors.Is(err, errTest) {
		t.Fatalf("Execute = %v, want the call's own error", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker: err = %v, called = %v", err, called)
	}

	c.Advance(10 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("after cool-down state = %v, want half-open", cb.State())
	}
	for range 2 {
		if err := cb.Execute(succeed); err != nil {
			t.Fatalf("probe: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after probes", cb.State())
	}

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if got := tr.list(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()
	c, tr := newClock(), &transitions{}
	cb := newTestBreaker(c, tr)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	c.Advance(15 * time.Second)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// The cool-down restarts from the failed probe.
	c.Advance(9 * time.Second)
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute = %v, want ErrCircuitOpen", err)
	}

	want := []string{"closed>open", "open>half-open", "half-open>open"}
	if got := tr.list(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestCircuitBreaker_ProbeBudget(t *testing.T) {
	t.Parallel()
	c := newClock()
	cb := newTestBreaker(c, &transitions{})
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	c.Advance(time.Minute)

	// Two probes are in flight; a third caller is turned away.
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("third probe: err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	c, tr := newClock(), &transitions{}
	cb := newTestBreaker(c, tr)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
	// The failure run starts over.
	_ = cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after one failure", cb.State())
	}

	// Resetting a closed breaker does not notify.
	cb.Reset()
	want := []string{"closed>open", "open>closed"}
	if got := tr.list(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(9):      "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d) = %q, want %q", s, got, want)
		}
	}
}
