package resilience

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: maxFailures, Timeout: time.Minute})
	cb.now = clock.now
	return cb
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := newTestBreaker(2, clock)
	fail := func() error { return errFlaky }

	_ = cb.Execute(fail)
	if cb.State() != StateClosed || cb.Failures() != 1 {
		t.Fatalf("state=%s failures=%d", cb.State(), cb.Failures())
	}
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state=%s, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker let call through: err=%v called=%v", err, called)
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := newTestBreaker(3, &fakeClock{})
	_ = cb.Execute(func() error { return errFlaky })
	_ = cb.Execute(func() error { return nil })
	if cb.Failures() != 0 {
		t.Errorf("failures = %d, want 0", cb.Failures())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "whisper", MaxFailures: 1, Timeout: time.Minute,
		OnStateChange: func(_ string, from, to State) { transitions = append(transitions, from.String()+">"+to.String()) },
	})
	cb.now = clock.now

	_ = cb.Execute(func() error { return errFlaky })
	clock.advance(time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state=%s, want half-open", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state=%s, want closed", cb.State())
	}
	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := newTestBreaker(1, clock)
	_ = cb.Execute(func() error { return errFlaky })
	clock.advance(time.Minute)
	_ = cb.Execute(func() error { return errFlaky })
	if cb.State() != StateOpen {
		t.Fatalf("state=%s, want open", cb.State())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := newTestBreaker(1, &fakeClock{})
	_ = cb.Execute(func() error { return errFlaky })
	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("after reset: state=%s failures=%d", cb.State(), cb.Failures())
	}
}

func TestStateString(t *testing.T) {
	if State(42).String() != "unknown" {
		t.Error("unexpected name for unknown state")
	}
}
