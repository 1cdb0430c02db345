// Package pool provides a fixed-size worker pool with an unbounded queue.
//
// Workers are long-lived goroutines that pull units from a shared FIFO
// queue and run them synchronously. A unit that panics is recovered in its
// worker; the panic is reported by Shutdown once every accepted unit has
// finished.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Unit is one self-contained piece of work. It is executed exactly once by
// exactly one worker.
type Unit func()

// ErrClosed is returned by Execute after Shutdown has been called.
var ErrClosed = errors.New("pool: closed")

// PanicError describes a unit that panicked while running.
type PanicError struct {
	Worker int
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pool: worker %d: unit panicked: %v", e.Worker, e.Value)
}

// Pool runs units on a fixed set of workers.
type Pool struct {
	size   int
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Unit
	closed bool

	// Recovered panics, guarded by mu
	panics []error

	wg        sync.WaitGroup
	completed atomic.Int64

	shutdownOnce sync.Once
	shutdownErr  error
}

// New starts a pool with n workers. It panics if n < 1.
func New(n int, logger *slog.Logger) *Pool {
	if n < 1 {
		panic(fmt.Sprintf("pool: size must be at least 1 (got %d)", n))
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		size:   n,
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker(i)
	}

	p.logger.Debug("pool_started", "workers", n)
	return p
}

// Execute enqueues u for the first free worker. It never blocks on queue
// capacity.
func (p *Pool) Execute(u Unit) error {
	if u == nil {
		return errors.New("pool: nil unit")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, u)
	p.cond.Signal()
	return nil
}

// Shutdown stops accepting units, waits for the queue to drain and for all
// workers to exit. It returns the joined panics of any units that failed.
// Calling Shutdown more than once returns the first result.
func (p *Pool) Shutdown() error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		pending := len(p.queue)
		p.cond.Broadcast()
		p.mu.Unlock()

		p.logger.Debug("pool_draining", "pending", pending)
		p.wg.Wait()

		p.mu.Lock()
		p.shutdownErr = errors.Join(p.panics...)
		p.mu.Unlock()

		p.logger.Debug("pool_stopped",
			"completed", p.completed.Load(),
			"panics", len(p.panics),
		)
	})
	return p.shutdownErr
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Completed returns how many units have finished running, including those
// that panicked.
func (p *Pool) Completed() int64 {
	return p.completed.Load()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		u, ok := p.next()
		if !ok {
			return
		}
		p.run(id, u)
	}
}

// next blocks until a unit is available or the pool is closed and drained.
func (p *Pool) next() (Unit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}

	u := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return u, true
}

func (p *Pool) run(id int, u Unit) {
	defer p.completed.Add(1)
	defer func() {
		if v := recover(); v != nil {
			perr := &PanicError{Worker: id, Value: v, Stack: debug.Stack()}
			p.logger.Error("unit_panicked", "worker", id, "panic", fmt.Sprint(v))

			p.mu.Lock()
			p.panics = append(p.panics, perr)
			p.mu.Unlock()
		}
	}()

	u()
}
