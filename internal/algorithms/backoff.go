// Package algorithms holds the retry delay strategies used by pool tasks.
package algorithms

import (
	"math/rand/v2"
	"time"
)

// maxShift caps the exponent so 1<<n never overflows an int64.
const maxShift = 62

// Kind selects a retry delay algorithm.
type Kind int

const (
	// Exponential doubles the delay on every attempt.
	Exponential Kind = iota
	// Jittered is Exponential with a random spread of +/- jitter.
	Jittered
	// Decorrelated picks each delay between the base and three times the previous one.
	Decorrelated
)

func (k Kind) String() string {
	switch k {
	case Jittered:
		return "jittered"
	case Decorrelated:
		return "decorrelated"
	default:
		return "exponential"
	}
}

// Strategy yields the delay before retry number attempt (0 = first retry).
// A Strategy is used by a single task at a time.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Config describes a backoff. Zero Max means no ceiling.
type Config struct {
	Kind   Kind
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// New builds a fresh strategy for one task.
func New(cfg Config) Strategy {
	if cfg.Max <= 0 {
		cfg.Max = time.Duration(1<<63 - 1)
	}
	switch cfg.Kind {
	case Jittered:
		return jittered{base: cfg.Base, max: cfg.Max, jitter: min(max(cfg.Jitter, 0), 1)}
	case Decorrelated:
		return &decorrelated{base: cfg.Base, max: cfg.Max, prev: cfg.Base}
	default:
		return exponential{base: cfg.Base, max: cfg.Max}
	}
}

type exponential struct {
	base, max time.Duration
}

func (e exponential) Delay(attempt int) time.Duration {
	return grow(e.base, e.max, attempt)
}

type jittered struct {
	base, max time.Duration
	jitter    float64
}

func (j jittered) Delay(attempt int) time.Duration {
	d := grow(j.base, j.max, attempt)
	if d <= 0 || j.jitter == 0 {
		return d
	}
	spread := 1 + (rand.Float64()*2-1)*j.jitter // #nosec G404 -- jitter does not need crypto randomness
	return min(time.Duration(float64(d)*spread), j.max)
}

type decorrelated struct {
	base, max time.Duration
	prev      time.Duration
}

func (d *decorrelated) Delay(attempt int) time.Duration {
	if attempt <= 0 || d.base <= 0 {
		d.prev = d.base
		return d.base
	}
	upper := min(d.prev*3, d.max)
	if upper <= d.base {
		d.prev = d.base
		return d.base
	}
	d.prev = d.base + rand.N(upper-d.base) // #nosec G404 -- jitter does not need crypto randomness
	return d.prev
}

// grow returns base * 2^attempt clamped to [0, ceiling].
func grow(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt < 0 || base <= 0 {
		return 0
	}
	if attempt > maxShift {
		return ceiling
	}
	d := base * time.Duration(int64(1)<<attempt)
	if d <= 0 || d/time.Duration(int64(1)<<attempt) != base || d > ceiling {
		return ceiling
	}
	return d
}
