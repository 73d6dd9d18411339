// Package claimqueue provides the bounded queue of pending index operations
// that the ingest path fills and the index writer drains.
package claimqueue

import (
	"context"
	"errors"

	"github.com/claimhub/search-service/pkg/types"
)

// ErrQueueFull means the queue is at capacity and the entry was not accepted.
var ErrQueueFull = errors.New("claim queue is full")

// Op is the kind of index operation an entry describes.
type Op int

const (
	// OpUpsert inserts or replaces the document for Entry.Claim.
	OpUpsert Op = iota
	// OpDelete removes the document identified by Entry.ClaimID.
	OpDelete
)

// Entry is one pending index operation. Claim is set for upserts, ClaimID for
// deletes.
type Entry struct {
	Op      Op
	Claim   *types.Claim
	ClaimID string
}

type (
	// Option modifies the config of a Queue
	Option func(*config)

	config struct {
		capacity int
	}

	// Queue is a bounded FIFO of index operations. Enqueue and dequeue are
	// safe for concurrent use; dequeue never blocks.
	Queue struct {
		entries chan Entry
	}
)

// WithCapacity sets the number of entries the queue can hold.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		c.capacity = capacity
	}
}

// New returns an empty queue.
func New(opts ...Option) *Queue {
	c := &config{capacity: 1 << 16}
	for _, opt := range opts {
		opt(c)
	}
	return &Queue{entries: make(chan Entry, c.capacity)}
}

// Put enqueues an entry, blocking until there is room or the context cancels.
func (q *Queue) Put(ctx context.Context, e Entry) error {
	select {
	case q.entries <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut enqueues an entry without blocking.
func (q *Queue) TryPut(e Entry) error {
	select {
	case q.entries <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// TryGet dequeues the next entry without blocking. The second return reports
// whether an entry was available.
func (q *Queue) TryGet() (Entry, bool) {
	select {
	case e := <-q.entries:
		return e, true
	default:
		return Entry{}, false
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return len(q.entries)
}
