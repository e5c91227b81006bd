package pool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/utkarsh5026/handoff/internal/queue"
)

// WorkerPool runs tasks on a set of worker goroutines whose size stays
// elastic around a target: a worker that parks on an Alarm is covered by
// a stand-in, and the first worker to notice the parked one was released
// retires so it can resume.
//
// A WorkerPool has no Close. Once the handle is unreachable and its queue
// is empty, idle workers exit on their own.
type WorkerPool struct {
	c *core
}

// core is the state shared by the handle and its workers. Workers never
// reference the handle, so it can be collected while they idle.
type core struct {
	cfg     workerPoolConfig
	log     *zap.Logger
	metrics *metrics
	tasks   *queue.Queue[*task]

	// mu guards live, blocked, the pending FIFO and the compensated flag
	// of parkings. It may be held while taking the pending FIFO's own lock;
	// it is never held while taking the task queue's lock.
	mu      sync.Mutex
	live    map[uint64]*worker
	blocked map[uint64]*parking
	pending *queue.Queue[*parking]

	pendingCount atomic.Int64
	surplus      atomic.Int64
	nextID       atomic.Uint64
}

// NewWorkerPool starts a pool configured by opts.
//
// Example:
//
//	wp := pool.NewWorkerPool(pool.WithWorkerCount(4), pool.WithLogger(logger))
//	results, err := pool.Map(ctx, wp, inputs, square).Join(ctx)
func NewWorkerPool(opts ...WorkerPoolOption) *WorkerPool {
	cfg := newConfig(opts)
	c := &core{
		cfg:     cfg,
		log:     cfg.logger.With(zap.String("pool", cfg.name)),
		tasks:   queue.New[*task](),
		live:    make(map[uint64]*worker, cfg.workerCount),
		blocked: make(map[uint64]*parking),
		pending: queue.New[*parking](),
	}
	c.metrics = newMetrics(cfg.registerer, cfg.name, c)

	c.mu.Lock()
	for range cfg.workerCount {
		c.spawn()
	}
	c.mu.Unlock()

	wp := &WorkerPool{c: c}
	runtime.AddCleanup(wp, (*core).release, c)

	c.log.Debug("pool started",
		zap.Int("workers", cfg.workerCount),
		zap.Int("max_workers", cfg.maxWorkers))
	return wp
}

// New starts a pool with exactly workers workers.
func New(workers int, opts ...WorkerPoolOption) *WorkerPool {
	return NewWorkerPool(append([]WorkerPoolOption{WithWorkerCount(workers)}, opts...)...)
}

// Size returns the target number of workers.
func (wp *WorkerPool) Size() int { return wp.c.cfg.workerCount }

// Name returns the pool's label.
func (wp *WorkerPool) Name() string { return wp.c.cfg.name }

// Workers returns the number of live workers, parked ones included.
func (wp *WorkerPool) Workers() int { return wp.c.liveCount() }

// Blocked returns the number of workers parked on an alarm that has not
// released them yet.
func (wp *WorkerPool) Blocked() int { return wp.c.blockedCount() }

// Pending returns the number of released workers waiting for a hand-off.
func (wp *WorkerPool) Pending() int { return int(wp.c.pendingCount.Load()) }

// Active returns the number of workers free to run tasks.
func (wp *WorkerPool) Active() int {
	c := wp.c
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live) - len(c.blocked) - int(c.pendingCount.Load())
}

// Queued returns the number of tasks waiting for a worker.
func (wp *WorkerPool) Queued() int { return wp.c.tasks.Len() }

// Wake marks the worker with the given id as ready to resume, as if the
// alarm it parked on had been buzzed for it alone. It reports whether the
// worker was parked.
func (wp *WorkerPool) Wake(id uint64) bool {
	c := wp.c
	c.mu.Lock()
	p, ok := c.blocked[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return c.resume(p)
}

func (wp *WorkerPool) submit(t *task) {
	t.owner = wp
	wp.c.tasks.Push(t)
}

func (c *core) liveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *core) blockedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocked)
}

// spawn starts one worker. Caller holds c.mu.
func (c *core) spawn() *worker {
	w := &worker{id: c.nextID.Add(1), core: c, done: make(chan struct{})}
	c.live[w.id] = w
	go w.run()
	return w
}

// removeSelf deregisters w. Caller holds c.mu.
func (c *core) removeSelf(w *worker) {
	if _, ok := c.live[w.id]; !ok {
		invariant("worker %d retired twice", w.id)
	}
	delete(c.live, w.id)
}

// park registers p's worker as blocked and, capacity permitting, spawns a
// stand-in for it.
func (c *core) park(p *parking) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := p.w.id
	if _, dup := c.blocked[id]; dup {
		invariant("worker %d parked twice", id)
	}
	c.blocked[id] = p

	if c.cfg.maxWorkers > 0 && len(c.live) >= c.cfg.maxWorkers {
		c.log.Debug("worker parked without stand-in",
			zap.Uint64("worker", id), zap.Int("live", len(c.live)))
		return
	}
	p.compensated = true
	s := c.spawn()
	c.metrics.standIns.Inc()
	c.log.Debug("worker parked",
		zap.Uint64("worker", id), zap.Uint64("stand_in", s.id))
}

// resume moves a released parking to the pending FIFO so a worker hands
// off to it. Uncompensated parkings are woken directly. It reports false
// if p was not parked.
func (c *core) resume(p *parking) bool {
	c.mu.Lock()
	if c.blocked[p.w.id] != p {
		c.mu.Unlock()
		return false
	}
	delete(c.blocked, p.w.id)

	if !p.compensated {
		c.mu.Unlock()
		p.wake()
		return true
	}
	c.pending.Push(p)
	c.pendingCount.Add(1)
	c.mu.Unlock()

	c.tasks.WakeUp()
	return true
}

// abandon undoes park for a worker that stopped waiting on its own. Its
// stand-in stays alive and is owed a retirement.
func (c *core) abandon(p *parking) {
	c.mu.Lock()
	if c.blocked[p.w.id] != p {
		c.mu.Unlock()
		return
	}
	delete(c.blocked, p.w.id)
	compensated := p.compensated
	if compensated {
		c.surplus.Add(1)
	}
	c.mu.Unlock()

	if compensated {
		c.tasks.WakeUp()
	}
}

// claim retires w if the pool has a pending resumption or surplus
// workers. A pending parking is released on w's way out.
func (c *core) claim(w *worker) bool {
	c.mu.Lock()
	if p, ok := c.pending.TryPop(); ok {
		c.pendingCount.Add(-1)
		c.removeSelf(w)
		c.mu.Unlock()

		c.metrics.handoffs.Inc()
		c.log.Debug("worker handed off",
			zap.Uint64("worker", w.id), zap.Uint64("resumed", p.w.id))
		p.wake()
		return true
	}
	if c.surplus.Load() > 0 {
		c.surplus.Add(-1)
		c.removeSelf(w)
		c.mu.Unlock()

		c.log.Debug("surplus worker retired", zap.Uint64("worker", w.id))
		return true
	}
	c.mu.Unlock()
	return false
}

// release closes the task queue once the handle is gone.
func (c *core) release() {
	c.log.Debug("pool unreachable, releasing idle workers")
	c.tasks.Close()
}
