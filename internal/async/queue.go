package async

import (
	"context"
	"errors"
	"time"
)

var (
	ErrQueueFull   = errors.New("generation queue is full")
	ErrQueueClosed = errors.New("generation queue is shutting down")
)

// Job asks for one generation attempt. The generation row already exists in
// processing state when a Job is enqueued.
type Job struct {
	GenerationID int
	DocumentID   int
	RequestID    string
	SubmittedAt  time.Time
}

// Queue never blocks the caller: Enqueue returns ErrQueueFull or ErrQueueClosed
// instead of waiting for capacity.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// JobProcessor runs one job to a terminal state.
type JobProcessor interface {
	Process(ctx context.Context, job Job) error
}

// PanicHandler is implemented by processors that record a terminal state for
// a job whose Process call panicked.
type PanicHandler interface {
	HandlePanic(job Job, recovered any)
}
