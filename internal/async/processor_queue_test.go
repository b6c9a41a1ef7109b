package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     []Job
	reqIDs   []string
	panicked []Job
	block    chan struct{}
	panicOn  int
	started  chan int
}

func (p *recordingProcessor) Process(ctx context.Context, job Job) error {
	if p.started != nil {
		p.started <- job.GenerationID
	}
	if job.GenerationID == p.panicOn {
		panic("boom")
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, job)
	p.reqIDs = append(p.reqIDs, common.RequestIDFromContext(ctx))
	return nil
}

func (p *recordingProcessor) HandlePanic(job Job, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicked = append(p.panicked, job)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueProcessesAllJobsBeforeShutdownReturns(t *testing.T) {
	p := &recordingProcessor{}
	q := NewProcessorQueue(p, quietLogger(), WithWorkers(3), WithQueueSize(10))

	for i := 1; i <= 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: i, RequestID: "r"}))
	}
	q.Shutdown(context.Background())

	assert.Len(t, p.seen, 10)
	for _, id := range p.reqIDs {
		assert.Equal(t, "r", id)
	}
	for _, j := range p.seen {
		assert.False(t, j.SubmittedAt.IsZero())
	}
}

func TestQueueFullIsNonBlocking(t *testing.T) {
	p := &recordingProcessor{block: make(chan struct{}), started: make(chan int, 2)}
	q := NewProcessorQueue(p, quietLogger(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: 1}))
	<-p.started // worker holds job 1
	require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: 2}))

	err := q.Enqueue(context.Background(), Job{GenerationID: 3})
	assert.True(t, errors.Is(err, ErrQueueFull))

	close(p.block)
	q.Shutdown(context.Background())
	assert.Len(t, p.seen, 2)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingProcessor{}, quietLogger())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{GenerationID: 1}), ErrQueueClosed)
}

func TestPanicIsContainedAndReported(t *testing.T) {
	p := &recordingProcessor{panicOn: 1}
	q := NewProcessorQueue(p, quietLogger(), WithWorkers(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: 1}))
	require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: 2}))
	q.Shutdown(context.Background())

	require.Len(t, p.panicked, 1)
	assert.Equal(t, 1, p.panicked[0].GenerationID)
	require.Len(t, p.seen, 1)
	assert.Equal(t, 2, p.seen[0].GenerationID)
}

func TestProcessTimeoutCancelsJob(t *testing.T) {
	got := make(chan error, 1)
	proc := processorFunc(func(ctx context.Context, job Job) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: 1}))
	q.Shutdown(context.Background())

	assert.ErrorIs(t, <-got, context.DeadlineExceeded)
}

func TestShutdownDeadlineCancelsInFlight(t *testing.T) {
	got := make(chan error, 1)
	proc := processorFunc(func(ctx context.Context, job Job) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithProcessTimeout(time.Hour))
	require.NoError(t, q.Enqueue(context.Background(), Job{GenerationID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Shutdown(ctx)

	assert.ErrorIs(t, <-got, context.Canceled)
}

type processorFunc func(ctx context.Context, job Job) error

func (f processorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }
