package core

import (
	"context"
	"sync"
)

// Completion signals the end of a batch of submissions, a reset or an
// initialization.
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func completedCompletion(err error) *Completion {
	c := newCompletion()
	c.complete(err)
	return c
}

func (c *Completion) complete(err error) {
	if c == nil {
		return
	}
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed when the work finished.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error once Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the work finished or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingSubmission is one queued input. Only the last submission of a
// batch carries the batch completion.
type PendingSubmission struct {
	Input      string
	Completion *Completion
}

// newBatch wraps inputs as pending submissions sharing one completion.
// An empty batch is already complete.
func newBatch(inputs []string) ([]PendingSubmission, *Completion) {
	completion := newCompletion()
	if len(inputs) == 0 {
		completion.complete(nil)
		return nil, completion
	}
	batch := make([]PendingSubmission, len(inputs))
	for i, input := range inputs {
		batch[i] = PendingSubmission{Input: input}
	}
	batch[len(batch)-1].Completion = completion
	return batch, completion
}

// submissionQueue is a FIFO of pending submissions. It is owned by the
// session loop.
type submissionQueue struct {
	items []PendingSubmission
}

func (q *submissionQueue) push(items ...PendingSubmission) {
	q.items = append(q.items, items...)
}

func (q *submissionQueue) pop() (PendingSubmission, bool) {
	if len(q.items) == 0 {
		return PendingSubmission{}, false
	}
	item := q.items[0]
	q.items[0] = PendingSubmission{}
	q.items = q.items[1:]
	return item, true
}

func (q *submissionQueue) len() int {
	return len(q.items)
}

// drain removes every queued submission.
func (q *submissionQueue) drain() []PendingSubmission {
	items := q.items
	q.items = nil
	return items
}
