package pool

import (
	"context"
	"sync"
)

// Alarm is a reusable gate that tasks wait on for an external event.
//
// Unlike a plain condition, an Alarm knows about pools: when the waiting
// code runs inside a pool task, the worker is registered as blocked and a
// stand-in takes its place, so the pool keeps its concurrency while the
// task waits. When the alarm fires the parked worker resumes only after
// some other worker retires in its favour.
//
// Buzz releases every current waiter and leaves the alarm released until
// Reset, so a Buzz that happens before Set is never lost. The zero value
// is ready to use.
type Alarm struct {
	mu       sync.Mutex
	released bool
	waiters  map[*parking]struct{}
}

// NewAlarm returns an armed alarm.
func NewAlarm() *Alarm {
	return &Alarm{}
}

// parking is one Set call waiting for release. w is nil for callers
// outside any pool task.
type parking struct {
	w     *worker
	ready chan struct{}
	once  sync.Once

	// compensated is guarded by the pool's mutex.
	compensated bool
}

func (p *parking) wake() {
	p.once.Do(func() { close(p.ready) })
}

// release hands the parking back to its pool, or wakes it directly.
func (p *parking) release() {
	if p.w == nil {
		p.wake()
		return
	}
	// A false return means WorkerPool.Wake got there first.
	_ = p.w.core.resume(p)
}

func (p *parking) abandon() {
	if p.w != nil {
		p.w.core.abandon(p)
	}
}

// Set waits until the alarm is released or ctx is done. It returns nil
// on release and ctx.Err() on cancellation; if both happen together the
// release wins.
//
// Calling Set with a context received by a pool task registers the wait
// with that task's pool.
func (a *Alarm) Set(ctx context.Context) error {
	if a.Released() {
		return nil
	}

	p := &parking{ready: make(chan struct{})}
	if s, ok := scopeFrom(ctx); ok && s.worker.parked.CompareAndSwap(false, true) {
		defer s.worker.parked.Store(false)
		p.w = s.worker
		p.w.core.park(p)
	}

	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		p.abandon()
		return nil
	}
	if a.waiters == nil {
		a.waiters = make(map[*parking]struct{})
	}
	a.waiters[p] = struct{}{}
	a.mu.Unlock()

	select {
	case <-p.ready:
		a.forget(p)
		return nil
	case <-ctx.Done():
	}

	if a.forget(p) {
		p.abandon()
		return ctx.Err()
	}
	// Buzz took this waiter first; wait out the hand-off.
	<-p.ready
	return nil
}

// forget drops p from the waiter set and reports whether it was there.
func (a *Alarm) forget(p *parking) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.waiters[p]
	delete(a.waiters, p)
	return ok
}

// Buzz releases the alarm and every waiter parked on it.
func (a *Alarm) Buzz() {
	a.mu.Lock()
	a.released = true
	waiters := a.waiters
	a.waiters = nil
	a.mu.Unlock()

	for p := range waiters {
		p.release()
	}
}

// Reset re-arms the alarm. Waiters released by an earlier Buzz still wake.
func (a *Alarm) Reset() {
	a.mu.Lock()
	a.released = false
	a.mu.Unlock()
}

// Released reports whether the alarm is currently released.
func (a *Alarm) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Waiters returns the number of callers currently parked in Set.
func (a *Alarm) Waiters() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.waiters)
}
