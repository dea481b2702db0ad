package usage

import (
	"context"
	"sync"

	"github.com/talentforge/research-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker writes invocation records off the request path through a bounded
// queue. When the buffer is full, records are dropped rather than letting
// analytics backpressure slow generation.
type Worker struct {
	service  *Service
	tasks    chan models.InvocationRecord
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorker creates a worker pool of the given size and buffer
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	w := &Worker{
		service: service,
		tasks:   make(chan models.InvocationRecord, bufferSize),
		stopped: make(chan struct{}),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Record enqueues one invocation record. It never blocks.
func (w *Worker) Record(record models.InvocationRecord) {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s/%s] Usage worker stopped, dropping invocation record", record.TenantID, record.Task)
		return
	case w.tasks <- record:
	default:
		fiberlog.Warnf("[%s/%s] Usage buffer full, dropping invocation record", record.TenantID, record.Task)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopped:
			return
		case record := <-w.tasks:
			if err := w.service.RecordInvocation(context.Background(), record); err != nil {
				fiberlog.Errorf("[%s/%s] Failed to record invocation: %v", record.TenantID, record.Task, err)
			}
		}
	}
}

// Stop stops the worker pool and waits for in-flight writes
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.wg.Wait()
	})
}
