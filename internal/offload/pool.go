// Package offload runs blocking work (native pickers, disk I/O) on worker
// goroutines so the interactive caller only waits at a single await point.
package offload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxInFlight is the number of concurrently running tasks when none is
// configured.
const DefaultMaxInFlight = 4

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("offload pool closed")

// Offloader accepts units of blocking work.
type Offloader interface {
	Submit(ctx context.Context, fn func() error) (*Task, error)
}

// PanicError is the error a task completes with when its function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("offloaded task panicked: %v", e.Value)
}

// Task is a handle to submitted work.
type Task struct {
	done chan struct{}
	err  error
}

// Done is closed when the task finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finished and returns its error. There is no way
// to abort a task once it started; Wait always observes its completion.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Pool is a bounded worker pool.
type Pool struct {
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for panics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pool running at most maxInFlight tasks at a time.
// If maxInFlight is <= 0, it defaults to DefaultMaxInFlight.
func New(maxInFlight int64, opts ...Option) *Pool {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(maxInFlight),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit schedules fn. It blocks only while waiting for a free slot; if ctx
// ends first, or the pool is closed, the task is never started and Submit
// returns an error.
func (p *Pool) Submit(ctx context.Context, fn func() error) (*Task, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return nil, fmt.Errorf("acquiring worker: %w", err)
	}

	t := &Task{done: make(chan struct{})}
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				pe := &PanicError{Value: r, Stack: debug.Stack()}
				p.logger.Error("offloaded task panicked", "panic", r)
				t.err = pe
			}
		}()
		t.err = fn()
	}()
	return t, nil
}

// Close stops accepting new work and waits for running tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Run submits fn to o and waits for its result.
//
// Scheduling failures and panics are reported as *ExecError so callers can
// distinguish a misbehaving offload mechanism from fn's own errors, which are
// returned unchanged.
func Run[T any](ctx context.Context, o Offloader, fn func() (T, error)) (T, error) {
	var out T
	var fnErr error
	task, err := o.Submit(ctx, func() error {
		out, fnErr = fn()
		return nil
	})
	if err != nil {
		var zero T
		return zero, &ExecError{Err: err}
	}
	if err := task.Wait(); err != nil {
		var zero T
		return zero, &ExecError{Err: err}
	}
	return out, fnErr
}

// ExecError reports that the offload mechanism itself failed: the task could
// not be scheduled or it panicked.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string { return e.Err.Error() }

func (e *ExecError) Unwrap() error { return e.Err }
