package notify

import (
	"context"
	"time"

	"github.com/safar/go-storefront/internal/models"
	"go.uber.org/zap"
)

// OutboxStore is the order store side of the outbox.
type OutboxStore interface {
	PendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
}

// OutboxPoller drains the order outbox into the publisher. An event stays
// pending until the publisher accepts it, so delivery is at least once.
type OutboxPoller struct {
	store     OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewOutboxPoller(store OutboxStore, publisher Publisher, interval time.Duration, batchSize int, logger *zap.Logger) *OutboxPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processPending publishes one batch and returns how many events were marked.
func (p *OutboxPoller) processPending(ctx context.Context) int {
	events, err := p.store.PendingEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Warn("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.publisher.Publish(pubCtx, event)
		cancel()
		if err != nil {
			p.logger.Warn("order event not published",
				zap.Int64("event_id", event.ID),
				zap.String("order_number", event.AggregateID),
				zap.Error(err))
			continue
		}

		if err := p.store.MarkPublished(ctx, event.ID); err != nil {
			p.logger.Warn("failed to mark outbox event published",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
			continue
		}
		published++
	}
	return published
}
