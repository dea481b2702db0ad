package research

import (
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Runner tracks in-process background jobs so shutdown can drain them.
// Jobs run detached from any request; their only observable output is
// what they write to the cache.
type Runner struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// NewRunner creates an idle runner
func NewRunner() *Runner {
	return &Runner{}
}

// Go schedules fn on its own goroutine. It returns false once the runner
// is draining, so callers can reject new work during shutdown.
func (r *Runner) Go(fn func()) bool {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		fn()
	}()
	return true
}

// Drain stops accepting new jobs and waits for running ones to finish,
// up to the timeout. Jobs still running after the timeout are abandoned.
func (r *Runner) Drain(timeout time.Duration) {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		fiberlog.Info("Runner: all background jobs finished")
	case <-time.After(timeout):
		fiberlog.Warnf("Runner: drain timed out after %v, abandoning remaining jobs", timeout)
	}
}
