package retry

import (
	"testing"
	"time"

	"github.com/qaops/migratrack/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("expected exponential default mode got %s", p.Mode)
	}
	if p.Initial != 2*time.Second {
		t.Fatalf("expected initial 2s got %v", p.Initial)
	}
	if p.Max != 30*time.Second {
		t.Fatalf("expected max 30s got %v", p.Max)
	}
	if p.MaxAttempts != 3 {
		t.Fatalf("expected max attempts 3 got %d", p.MaxAttempts)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Max != 2*time.Second {
		t.Fatalf("expected max 2s got %v", p.Max)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxAttempts != 5 {
		t.Fatalf("expected maxAttempts 5 got %d", p.MaxAttempts)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect the cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed retry %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		retry int
		want  time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}, {4, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.retry); got != c.want {
			t.Fatalf("linear retry %d expected %v got %v", c.retry, c.want, got)
		}
	}

	exp := NewPolicy(config.RetryBackoffExponential, 2*time.Second, 30*time.Second, 6)
	// doubling from the base: 2s, 4s, 8s, 16s, then capped at 30s
	expCases := []struct {
		retry int
		want  time.Duration
	}{{1, 2 * time.Second}, {2, 4 * time.Second}, {3, 8 * time.Second}, {4, 16 * time.Second}, {5, 30 * time.Second}}
	for _, c := range expCases {
		if got := exp.Delay(c.retry); got != c.want {
			t.Fatalf("exp retry %d expected %v got %v", c.retry, c.want, got)
		}
	}
}

// TestDelayEdgeCases ensures non-positive retry counts yield zero and don't panic.
func TestDelayEdgeCases(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 {
		t.Fatalf("retry 0 expected 0 got %v", d)
	}
	if d := p.Delay(-1); d != 0 {
		t.Fatalf("retry -1 expected 0 got %v", d)
	}
}

// TestFromConfig derives policy values straight from a fetch config block.
func TestFromConfig(t *testing.T) {
	fc := config.FetchConfig{
		Timeout:      "30s",
		MaxAttempts:  4,
		Backoff:      config.RetryBackoffLinear,
		InitialDelay: "1s",
		MaxDelay:     "10s",
	}
	p := FromConfig(fc)
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear got %s", p.Mode)
	}
	if p.Initial != time.Second || p.Max != 10*time.Second {
		t.Fatalf("unexpected delays: %v/%v", p.Initial, p.Max)
	}
	if p.MaxAttempts != 4 {
		t.Fatalf("expected 4 attempts got %d", p.MaxAttempts)
	}
}

// TestValidate covers validation error paths.
func TestValidate(t *testing.T) {
	badInitial := Policy{Mode: config.RetryBackoffLinear, Initial: 0, Max: time.Second, MaxAttempts: 1}
	if err := badInitial.Validate(); err == nil {
		t.Fatal("expected error for zero initial")
	}
	badMax := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 0, MaxAttempts: 1}
	if err := badMax.Validate(); err == nil {
		t.Fatal("expected error for zero max")
	}
	badAttempts := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxAttempts: 0}
	if err := badAttempts.Validate(); err == nil {
		t.Fatal("expected error for zero attempts")
	}
	good := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxAttempts: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

// TestUnknownModeFallsBack leaves mode default when an unknown string is supplied.
func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("unknown mode should fall back to exponential got %s", p.Mode)
	}
}
