package storage

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/domain"
	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/workers"
)

// Store is the write side the processor persists through. *DB implements it.
type Store interface {
	UpsertProfile(ctx context.Context, rec ProfileRecord) error
	InsertPost(ctx context.Context, rec PostRecord) error
	ReplaceContacts(ctx context.Context, rec ContactListRecord) error
	InsertReaction(ctx context.Context, rec ReactionRecord) error
}

var _ Store = (*DB)(nil)

// Processor persists delivered events by kind on a worker pool.
type Processor struct {
	store   Store
	pool    *workers.WorkerPool
	ctx     context.Context
	cancel  context.CancelFunc
	backoff time.Duration
	log     *zap.Logger
}

var _ domain.EventProcessor = (*Processor)(nil)

// NewProcessor starts workerCount workers with a queue of queueSize events.
func NewProcessor(ctx context.Context, store Store, workerCount, queueSize int) *Processor {
	if workerCount < 1 {
		workerCount = constants.DefaultStoreWorkers
	}
	if queueSize < 1 {
		queueSize = constants.DefaultStoreQueue
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Processor{
		store:   store,
		pool:    workers.NewWorkerPool(workerCount, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		backoff: constants.ProcessRetryBackoff,
		log:     logger.New("storage"),
	}
}

// Process queues evt without blocking. A full queue drops it.
func (p *Processor) Process(evt *nostr.Event) {
	if !p.pool.AddJob(func() { p.persist(evt) }) {
		metrics.StorageQueueDrops.Inc()
		p.log.Warn("Storage queue full, dropping event",
			zap.String("event_id", evt.ID),
			zap.Int("kind", evt.Kind))
	}
}

// Pending is the number of events waiting to be written.
func (p *Processor) Pending() int { return p.pool.Pending() }

// Capacity is the size of the write queue.
func (p *Processor) Capacity() int { return p.pool.Capacity() }

// Dropped is the number of events not persisted because the queue was full.
func (p *Processor) Dropped() int64 { return p.pool.Dropped() }

// persist writes evt with retries and exponential backoff.
func (p *Processor) persist(evt *nostr.Event) {
	write, op := p.writer(evt)
	if write == nil {
		return
	}

	var err error
	for attempt := 0; attempt < constants.MaxProcessRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.backoff << (attempt - 1)):
			}
		}

		ctx, cancel := context.WithTimeout(p.ctx, constants.DBQueryTimeout)
		err = write(ctx)
		cancel()
		if err == nil {
			metrics.StorageOperations.WithLabelValues(op).Inc()
			p.log.Debug("Event stored",
				zap.String("event_id", evt.ID),
				zap.String("operation", op))
			return
		}
		if !errors.ShouldRetry(err, attempt+1, constants.MaxProcessRetries) {
			break
		}
	}

	metrics.StorageOperations.WithLabelValues("failed").Inc()
	p.log.Error("Failed to store event after retries",
		zap.String("event_id", evt.ID),
		zap.Int("kind", evt.Kind),
		zap.Error(err))
}

// writer maps evt to its store call. Unsupported or unusable events map to nil.
func (p *Processor) writer(evt *nostr.Event) (func(context.Context) error, string) {
	switch event.Kind(evt.Kind) {
	case event.KindMetadata:
		rec, err := profileRecord(evt)
		if err != nil {
			p.log.Debug("Skipping unreadable metadata", zap.String("event_id", evt.ID), zap.Error(err))
			return nil, ""
		}
		return func(ctx context.Context) error { return p.store.UpsertProfile(ctx, rec) }, "profile"

	case event.KindTextNote:
		rec := postRecord(evt)
		return func(ctx context.Context) error { return p.store.InsertPost(ctx, rec) }, "post"

	case event.KindContactList:
		rec := contactListRecord(evt)
		return func(ctx context.Context) error { return p.store.ReplaceContacts(ctx, rec) }, "contacts"

	case event.KindReaction:
		rec, ok := reactionRecord(evt)
		if !ok {
			return nil, ""
		}
		return func(ctx context.Context) error { return p.store.InsertReaction(ctx, rec) }, "reaction"
	}
	return nil, ""
}

// Wait blocks until every queued event was handled.
func (p *Processor) Wait() { p.pool.Wait() }

// Shutdown lets queued writes finish, then stops the workers.
func (p *Processor) Shutdown() {
	p.pool.Stop()
	p.cancel()
}
