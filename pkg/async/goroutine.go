package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/covault/covault/pkg/observability"
)

// SafeGo runs fn on its own goroutine with a timeout-bounded context and
// panic recovery. Use it instead of a bare `go func()` for fire-and-forget
// work such as invite mail dispatch.
//
// Panics and returned errors are logged through the structured logger
// attached to parentCtx (observability.WithLogger); without one, the
// default logger is used. Callers that need the error itself must capture
// it inside fn.
//
// Example:
//
//	SafeGo(ctx, 10*time.Second, "invite mail", func(ctx context.Context) error {
//	    return mailer.SendOrganizationInvite(ctx, orgName, member, token)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		logger := observability.FromContext(ctx).WithField("task", taskName)
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("background task failed")
		}
	}()
}

// SafeGoNoError is SafeGo for functions with nothing to report.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// WorkerPool runs submitted tasks on a fixed number of workers, each task
// under its own timeout, with panic recovery and error collection.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines reading from a buffered work
// channel. The pool context derives from ctx, so cancellation and any
// attached logger both flow into task contexts.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, "drift check", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return checkSubscription(ctx, orgID)
//	})
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	// doneCh closes only after every worker has returned.
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pool.worker(i)
			}()
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task for execution. It fails once the pool has shut
// down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool shut down")
	default:
	}

	// Shutdown can close workCh between the check above and the send
	// below; a send on a closed channel panics, so swallow that race.
	defer func() {
		recover()
	}()

	select {
	case p.workCh <- fn:
		return nil
	case <-p.doneCh:
		return fmt.Errorf("worker pool shut down")
	}
}

// Shutdown stops intake, waits up to timeout for queued tasks to drain,
// then cancels the pool context. Safe to call more than once.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		// Batch closes workCh itself before waiting; tolerate the
		// second close.
		func() {
			defer func() {
				recover()
			}()
			close(p.workCh)
		}()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

// Errors exposes the collection channel. Reads must not block; use a
// select with a default case.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) worker(id int) {
	logger := observability.FromContext(p.ctx).WithFields(map[string]interface{}{
		"task":   p.taskName,
		"worker": id,
	})

	// Last-resort recovery; run has its own for task panics.
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("worker panicked")
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(fn, logger)
		}
	}
}

// run executes one task under the pool's per-task timeout.
func (p *WorkerPool) run(fn func(context.Context) error, logger *observability.Logger) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.report(logger, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.report(logger, err)
	}
}

// report queues err for collection. When the buffer is full the error is
// logged and dropped rather than blocking the worker.
func (p *WorkerPool) report(logger *observability.Logger, err error) {
	select {
	case p.errCh <- err:
	default:
		logger.WithError(err).Warn("error buffer full, dropping task error")
	}
}

// Batch runs fn over items on a temporary worker pool and returns every
// error the tasks reported. A submission failure aborts the batch and is
// returned as the sole error.
//
// Example:
//
//	errs := Batch(ctx, orgs, 4, "drift check", 30*time.Second,
//	    func(ctx context.Context, org *Organization) error {
//	        return checkSubscription(ctx, org)
//	    })
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout)
	defer pool.Shutdown(5 * time.Second)

	for _, item := range items {
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			return []error{err}
		}
	}

	// Closing the work channel lets the workers drain the queue; doneCh
	// closes once they have all returned.
	close(pool.workCh)
	<-pool.doneCh
	pool.cancel()

	// Every report happened before doneCh closed, so a non-blocking
	// drain collects them all.
	var errs []error
	for {
		select {
		case err := <-pool.errCh:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}
