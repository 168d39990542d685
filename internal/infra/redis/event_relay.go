package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// DefaultEventChannel carries domain events between instances.
const DefaultEventChannel = "escola:events"

// EventRelay publishes domain events on a Redis channel and replays every
// message it receives into a local publisher, so each instance's broadcaster
// sees the events raised on all instances.
type EventRelay struct {
	client  *redis.Client
	channel string
	local   app.EventPublisher
	logger  *zap.Logger
}

func NewEventRelay(client *redis.Client, channel string, local app.EventPublisher, logger *zap.Logger) *EventRelay {
	if channel == "" {
		channel = DefaultEventChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelay{client: client, channel: channel, local: local, logger: logger}
}

// Publish sends evt to the channel. If Redis is unreachable the event is
// delivered locally only.
func (r *EventRelay) Publish(evt domain.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("marshal event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		r.logger.Warn("relay publish failed, delivering locally", zap.String("type", evt.Type), zap.Error(err))
		r.local.Publish(evt)
	}
}

// Run forwards channel messages to the local publisher until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
func (r *EventRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var evt domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				r.logger.Warn("drop malformed event", zap.Error(err))
				continue
			}
			r.local.Publish(evt)
		}
	}
}
