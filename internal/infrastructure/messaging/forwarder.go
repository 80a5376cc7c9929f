package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/event"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Forwarder relays every dispatched domain event to an EventPublisher,
// routed by event type
type Forwarder struct {
	publisher port.EventPublisher
	logger    *zap.Logger
}

// NewForwarder creates a forwarder for publisher
func NewForwarder(publisher port.EventPublisher, logger *zap.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, logger: logger}
}

// Register subscribes the forwarder to all event types
func (f *Forwarder) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll("amqp-forwarder", f.Handle)
}

// Handle publishes evt. Publish failures are logged and swallowed so the
// remaining handlers still run.
func (f *Forwarder) Handle(ctx context.Context, evt *event.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		f.logger.Error("Failed to encode event", zap.Error(err), zap.String("event_id", evt.ID))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	headers := map[string]interface{}{
		"event_id":       evt.ID,
		"correlation_id": evt.CorrelationID,
		"request_id":     evt.RequestID,
	}
	if err := f.publisher.Publish(ctx, evt.Type.String(), body, headers); err != nil {
		f.logger.Error("Failed to publish event",
			zap.Error(err),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("request_id", evt.RequestID),
		)
	}
	return nil
}
