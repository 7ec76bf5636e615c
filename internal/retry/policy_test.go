package retry

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/clientboot/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed default mode got %s", p.Mode)
	}
	if p.Initial != 5*time.Second || p.Max != 5*time.Second {
		t.Fatalf("expected 5s initial and cap got %v/%v", p.Initial, p.Max)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected max retries 5 got %d", p.MaxRetries)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 5*time.Second, 2*time.Second, 3)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear mode got %s", p.Mode)
	}
	if p.MaxRetries != 3 {
		t.Fatalf("expected maxRetries 3 got %d", p.MaxRetries)
	}

	// A large initial without an explicit cap raises the cap instead of clamping.
	big := NewPolicy(config.RetryBackoffFixed, 20*time.Second, 0, 1)
	if big.Initial != 20*time.Second {
		t.Fatalf("expected initial 20s got %v", big.Initial)
	}
}

func TestFromCoordinator(t *testing.T) {
	p := FromCoordinator(config.CoordinatorConfig{Window: 100 * time.Millisecond, PollAttempts: 2, PollBackoff: config.RetryBackoffFixed})
	if p.Initial != 100*time.Millisecond || p.MaxRetries != 2 || p.Mode != config.RetryBackoffFixed {
		t.Fatalf("unexpected policy %+v", p)
	}
	if p.Max != 400*time.Millisecond {
		t.Fatalf("expected max of four windows got %v", p.Max)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed attempt %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}, {4, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct {
		attempt int
		want    time.Duration
	}{{1, 50 * time.Millisecond}, {2, 100 * time.Millisecond}, {3, 160 * time.Millisecond}, {64, 160 * time.Millisecond}}
	for _, c := range expCases {
		if got := exp.Delay(c.attempt); got != c.want {
			t.Fatalf("exp attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}
}

func TestDelayEdgeCases(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
	if d := p.Delay(-1); d != 0 {
		t.Fatalf("attempt -1 expected 0 got %v", d)
	}
}

func TestValidate(t *testing.T) {
	bad := []Policy{
		{Mode: config.RetryBackoffFixed, Initial: 0, Max: time.Second, MaxRetries: 1},
		{Mode: config.RetryBackoffFixed, Initial: time.Second, Max: 0, MaxRetries: 1},
		{Mode: config.RetryBackoffFixed, Initial: time.Second, Max: time.Second, MaxRetries: -1},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("unknown mode should fall back to fixed got %s", p.Mode)
	}
}

func TestWait(t *testing.T) {
	clk := clockwork.NewFakeClock()
	p := NewPolicy(config.RetryBackoffFixed, time.Second, time.Second, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Wait(ctx, clk, 1) }()

	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiter never blocked: %v", err)
	}
	clk.Advance(time.Second)
	if err := <-done; err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
}

func TestWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := DefaultPolicy()
	if err := p.Wait(ctx, clockwork.NewFakeClock(), 1); err == nil {
		t.Fatalf("expected context error")
	}
}
