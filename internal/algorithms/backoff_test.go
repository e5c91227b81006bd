package algorithms

import (
	"testing"
	"time"
)

func TestExponential_Delay(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		attempt int
		want    time.Duration
	}{
		{"first retry uses base", Config{Base: 10 * time.Millisecond}, 0, 10 * time.Millisecond},
		{"doubles per attempt", Config{Base: 10 * time.Millisecond}, 3, 80 * time.Millisecond},
		{"capped by max", Config{Base: time.Second, Max: 5 * time.Second}, 10, 5 * time.Second},
		{"no base means no delay", Config{}, 4, 0},
		{"negative attempt", Config{Base: time.Second}, -1, 0},
		{"huge attempt saturates", Config{Base: time.Second, Max: time.Minute}, 500, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.cfg).Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestExponential_OverflowClampsToMax(t *testing.T) {
	s := New(Config{Base: time.Hour})
	if got := s.Delay(60); got <= 0 {
		t.Fatalf("Delay(60) = %v, want a positive saturated delay", got)
	}
}

func TestJittered_StaysWithinSpread(t *testing.T) {
	s := New(Config{Kind: Jittered, Base: 100 * time.Millisecond, Max: time.Minute, Jitter: 0.2})

	for range 200 {
		got := s.Delay(1)
		if got < 160*time.Millisecond || got > 240*time.Millisecond {
			t.Fatalf("Delay(1) = %v, want within [160ms, 240ms]", got)
		}
	}
}

func TestJittered_ZeroJitterIsExponential(t *testing.T) {
	s := New(Config{Kind: Jittered, Base: 5 * time.Millisecond})
	if got := s.Delay(2); got != 20*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 20ms", got)
	}
}

func TestDecorrelated_Bounds(t *testing.T) {
	s := New(Config{Kind: Decorrelated, Base: 10 * time.Millisecond, Max: 200 * time.Millisecond})

	if got := s.Delay(0); got != 10*time.Millisecond {
		t.Fatalf("Delay(0) = %v, want base", got)
	}

	prev := 10 * time.Millisecond
	for attempt := 1; attempt < 50; attempt++ {
		got := s.Delay(attempt)
		if got < 10*time.Millisecond || got > 200*time.Millisecond {
			t.Fatalf("Delay(%d) = %v, out of [10ms, 200ms]", attempt, got)
		}
		if got > prev*3 {
			t.Fatalf("Delay(%d) = %v, more than 3x previous %v", attempt, got, prev)
		}
		prev = got
	}
}

func TestKind_String(t *testing.T) {
	for k, want := range map[Kind]string{
		Exponential:  "exponential",
		Jittered:     "jittered",
		Decorrelated: "decorrelated",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
