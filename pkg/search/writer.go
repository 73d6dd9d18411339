package search

import (
	"context"
	"fmt"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/claimhub/search-service/pkg/internal/claimqueue"
	"github.com/claimhub/search-service/pkg/types"
)

// syncBatchSize caps the number of operations sent in one bulk request.
const syncBatchSize = 1000

type (
	// WriterOption modifies the config of a Writer
	WriterOption func(*writerConfig)

	writerConfig struct {
		syncTimeout time.Duration
	}

	// Writer drains the claim queue into the index. Queueing is cheap and
	// non-blocking for the ingester; all index traffic happens in SyncQueue.
	Writer struct {
		index    *Index
		queue    *claimqueue.Queue
		resolver *Resolver
		timeout  time.Duration
	}
)

// WithSyncTimeout bounds how long one SyncQueue pass may take.
func WithSyncTimeout(timeout time.Duration) WriterOption {
	return func(c *writerConfig) {
		c.syncTimeout = timeout
	}
}

// NewWriter returns a writer draining queue into index. The resolver's caches
// are purged after every sync since any write can change resolution winners.
func NewWriter(index *Index, queue *claimqueue.Queue, resolver *Resolver, opts ...WriterOption) *Writer {
	c := &writerConfig{syncTimeout: 600 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return &Writer{
		index:    index,
		queue:    queue,
		resolver: resolver,
		timeout:  c.syncTimeout,
	}
}

// Upsert queues a claim for indexing at the next sync.
func (w *Writer) Upsert(ctx context.Context, claim *types.Claim) error {
	return w.queue.Put(ctx, claimqueue.Entry{Op: claimqueue.OpUpsert, Claim: claim})
}

// Delete queues removal of a claim's document at the next sync.
func (w *Writer) Delete(ctx context.Context, claimID string) error {
	return w.queue.Put(ctx, claimqueue.Entry{Op: claimqueue.OpDelete, ClaimID: claimID})
}

// SyncQueue drains every queued operation into the index in bulk, refreshes
// and flushes so the writes are searchable and durable, then purges the
// resolution caches. Malformed claims and per-document index failures are
// logged and dropped rather than failing the sync.
func (w *Writer) SyncQueue(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	log.Infof("%d claims to sync", w.queue.Len())
	if err := w.index.Refresh(ctx); err != nil {
		return err
	}

	bulk := w.index.client.Bulk().Index(w.index.name)
	for {
		entry, ok := w.queue.TryGet()
		if !ok {
			break
		}
		switch entry.Op {
		case claimqueue.OpUpsert:
			doc, err := entry.Claim.Doc()
			if err != nil {
				log.Warnw("dropping malformed claim", "error", err)
				continue
			}
			bulk = bulk.Add(elastic.NewBulkUpdateRequest().
				Id(doc.ClaimID).
				Doc(doc).
				DocAsUpsert(true))
		case claimqueue.OpDelete:
			bulk = bulk.Add(elastic.NewBulkDeleteRequest().Id(entry.ClaimID))
		}
		if bulk.NumberOfActions() >= syncBatchSize {
			if err := w.sendBulk(ctx, bulk); err != nil {
				return err
			}
		}
	}
	if bulk.NumberOfActions() > 0 {
		if err := w.sendBulk(ctx, bulk); err != nil {
			return err
		}
	}

	if err := w.index.Refresh(ctx); err != nil {
		return err
	}
	if err := w.index.Flush(ctx); err != nil {
		return err
	}
	w.resolver.ClearCaches()
	return nil
}

func (w *Writer) sendBulk(ctx context.Context, bulk *elastic.BulkService) error {
	res, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk sync: %w", err)
	}
	for _, failed := range res.Failed() {
		reason := "unknown"
		if failed.Error != nil {
			reason = failed.Error.Reason
		}
		log.Warnw("failed to sync claim", "id", failed.Id, "reason", reason)
	}
	return nil
}

// DeleteAboveHeight removes every document above the given block height, used
// to rewind the index after a chain reorganization.
func (w *Writer) DeleteAboveHeight(ctx context.Context, height uint32) error {
	_, err := w.index.client.DeleteByQuery(w.index.name).
		Query(elastic.NewRangeQuery("height").Gt(height)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting above height %d: %w", height, err)
	}
	return w.index.Refresh(ctx)
}
