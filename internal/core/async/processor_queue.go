package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/homework-solver/internal/core"
)

// Job is one path waiting to be processed.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// PathProcessor is what the queue workers run; *core.Processor satisfies it.
type PathProcessor interface {
	Process(ctx context.Context, path string) (core.ProcessResult, error)
}

type ProcessorQueue struct {
	proc    PathProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch     chan Job
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds a single document run. Zero means no limit.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc PathProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		ch:      make(chan Job, 256),
		ctx:     ctx,
		cancel:  cancel,
		pending: map[string]struct{}{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.mu.Lock()
					delete(q.pending, job.Path)
					q.mu.Unlock()
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	if q.ctx.Err() != nil {
		q.logger.Warn("dropping job: queue cancelled", "worker_id", workerID, "path", job.Path)
		return
	}
	ctx, cancel := q.ctx, context.CancelFunc(func() {})
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(q.ctx, q.timeout)
	}
	defer cancel()

	res, err := q.proc.Process(ctx, job.Path)
	wait := time.Since(job.SubmittedAt)
	switch {
	case err != nil:
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path,
			"document_id", res.DocumentID, "status", res.Status, "error", err)
	case res.Skipped:
		q.logger.Info("processing skipped", "worker_id", workerID, "path", job.Path,
			"document_id", res.DocumentID, "reason", res.Reason)
	default:
		q.logger.Info("processed file successfully", "worker_id", workerID, "path", job.Path,
			"document_id", res.DocumentID, "result_path", res.ResultPath, "since_enqueue_ms", wait.Milliseconds())
	}
}

// Enqueue adds path unless it is already waiting in the queue. It reports whether
// the path was added.
func (q *ProcessorQueue) Enqueue(_ context.Context, path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", path)
		return false
	}
	if _, dup := q.pending[path]; dup {
		q.logger.Debug("already queued", "path", path)
		return false
	}
	q.pending[path] = struct{}{}
	job := Job{Path: path, SubmittedAt: time.Now()}
	select {
	case q.ch <- job:
		q.logger.Info("queued file for processing", "path", path)
	default:
		q.logger.Warn("queue full, applying backpressure", "path", path)
		q.ch <- job
	}
	return true
}

// Len is the number of paths waiting for a worker.
func (q *ProcessorQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Shutdown stops intake and waits for queued work to drain. If ctx ends first the
// in-flight documents are cancelled; their claims are released for the next run.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
	q.cancel()
}
