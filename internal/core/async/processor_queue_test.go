package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/homework-solver/internal/core"
)

type blockingProcessor struct {
	mu      sync.Mutex
	seen    []string
	release chan struct{}
}

func (b *blockingProcessor) Process(ctx context.Context, path string) (core.ProcessResult, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return core.ProcessResult{}, ctx.Err()
	}
	b.mu.Lock()
	b.seen = append(b.seen, path)
	b.mu.Unlock()
	return core.ProcessResult{DocumentID: path}, nil
}

func (b *blockingProcessor) processed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen...)
}

func TestQueueCollapsesDuplicatePaths(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil)

	assert.True(t, q.Enqueue(context.Background(), "/w/a.pdf"))
	// wait until the worker holds a.pdf so the queue itself is empty
	assert.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)

	assert.True(t, q.Enqueue(context.Background(), "/w/b.pdf"))
	assert.False(t, q.Enqueue(context.Background(), "/w/b.pdf"), "already waiting")
	assert.True(t, q.Enqueue(context.Background(), "/w/a.pdf"), "a.pdf is running, not waiting")
	assert.Equal(t, 2, q.Len())

	close(proc.release)
	q.Shutdown(context.Background())
	assert.Equal(t, []string{"/w/a.pdf", "/w/b.pdf", "/w/a.pdf"}, proc.processed())
	assert.False(t, q.Enqueue(context.Background(), "/w/c.pdf"), "closed queue rejects work")
}

func TestQueueShutdownDeadlineCancelsInFlight(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(2))
	q.Enqueue(context.Background(), "/w/a.pdf")
	q.Enqueue(context.Background(), "/w/b.pdf")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { q.Shutdown(ctx); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.Empty(t, proc.processed())
}

func TestQueueProcessTimeoutBoundsEachRun(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithQueueSize(1), WithProcessTimeout(30*time.Millisecond))
	assert.Equal(t, 1, cap(q.ch))

	// both runs hang until their own deadline; a full queue makes the second Enqueue wait
	assert.True(t, q.Enqueue(context.Background(), "/w/a.pdf"))
	assert.True(t, q.Enqueue(context.Background(), "/w/b.pdf"))

	done := make(chan struct{})
	go func() { q.Shutdown(context.Background()); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runs were not bounded by the process timeout")
	}
	assert.Empty(t, proc.processed())
}
