package amqp

import (
	"context"

	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/store"
)

// RefreshHandler returns a handler that makes local listeners re-read the
// changed collection. Messages sent by origin itself are skipped because
// the local store already notified its listeners.
func RefreshHandler(r store.Refresher, origin string, logger *log.Logger, m *metrics.Metrics) func(context.Context, *ChangeMessage) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAMQP)
	return func(ctx context.Context, msg *ChangeMessage) error {
		if msg.Origin == origin {
			return nil
		}
		r.Refresh(ctx, msg.Path())
		m.ChangeConsumed()
		logger.DebugContext(ctx, "Refreshed collection from remote change",
			log.FieldStorePath, msg.Path().String(), "origin", msg.Origin, log.FieldOperation, msg.Op)
		return nil
	}
}
