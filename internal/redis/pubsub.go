package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/stallpoint/stallpulse/internal/metrics"
	"github.com/stallpoint/stallpulse/internal/realtime"
)

// Pub/Sub channels shared by all instances.
const (
	eventsChannel = "realtime:events"
	menuChannel   = "realtime:menu"
)

// Delivery scopes inside an event envelope.
const (
	scopeBooth = "booth"
	scopeBrand = "brand"
)

type eventEnvelope struct {
	Scope string         `json:"scope"`
	Event realtime.Event `json:"event"`
}

type menuEnvelope struct {
	BrandID uuid.UUID          `json:"brandId"`
	Event   realtime.MenuEvent `json:"event"`
}

// Publisher implements realtime.Publisher over Redis Pub/Sub. Events are
// published to the shared channels and delivered to local clients by each
// instance's Bridge, including the publishing instance's own. When the
// publish fails the event falls back to direct local delivery so clients
// on this instance still see it.
type Publisher struct {
	rdb      *goredis.Client
	fallback *realtime.LocalPublisher
}

var _ realtime.Publisher = (*Publisher)(nil)

func NewPublisher(client *Client, fallback *realtime.LocalPublisher) *Publisher {
	return &Publisher{rdb: client.rdb, fallback: fallback}
}

func (p *Publisher) PublishEvent(ctx context.Context, ev realtime.Event) error {
	return p.publishEnvelope(ctx, eventEnvelope{Scope: scopeBooth, Event: ev}, func() {
		_ = p.fallback.PublishEvent(ctx, ev)
	})
}

func (p *Publisher) PublishBrandEvent(ctx context.Context, ev realtime.Event) error {
	return p.publishEnvelope(ctx, eventEnvelope{Scope: scopeBrand, Event: ev}, func() {
		_ = p.fallback.PublishBrandEvent(ctx, ev)
	})
}

func (p *Publisher) publishEnvelope(ctx context.Context, env eventEnvelope, deliverLocally func()) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, eventsChannel, data).Err(); err != nil {
		metrics.EventPublishFailures.WithLabelValues("redis").Inc()
		deliverLocally()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *Publisher) PublishMenuEvent(ctx context.Context, brandID uuid.UUID, ev realtime.MenuEvent) error {
	data, err := json.Marshal(menuEnvelope{BrandID: brandID, Event: ev})
	if err != nil {
		return fmt.Errorf("failed to marshal menu envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, menuChannel, data).Err(); err != nil {
		metrics.EventPublishFailures.WithLabelValues("redis").Inc()
		_ = p.fallback.PublishMenuEvent(ctx, brandID, ev)
		return fmt.Errorf("failed to publish menu event: %w", err)
	}
	return nil
}

// Bridge subscribes to the shared channels and delivers received events
// to this instance's broadcasters.
type Bridge struct {
	sub    *goredis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// StartBridge subscribes and starts the delivery goroutine. Call Close
// during shutdown.
func StartBridge(ctx context.Context, client *Client, local *realtime.LocalPublisher) *Bridge {
	sub := client.rdb.Subscribe(ctx, eventsChannel, menuChannel)

	subCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{sub: sub, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(b.done)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				metrics.PubSubMessagesReceived.WithLabelValues(msg.Channel).Inc()
				b.deliver(subCtx, local, msg)
			case <-subCtx.Done():
				return
			}
		}
	}()

	return b
}

func (b *Bridge) deliver(ctx context.Context, local *realtime.LocalPublisher, msg *goredis.Message) {
	switch msg.Channel {
	case eventsChannel:
		var env eventEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			slog.Error("Failed to unmarshal pubsub event", "error", err)
			return
		}
		if env.Scope == scopeBrand {
			_ = local.PublishBrandEvent(ctx, env.Event)
		} else {
			_ = local.PublishEvent(ctx, env.Event)
		}
	case menuChannel:
		var env menuEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			slog.Error("Failed to unmarshal pubsub menu event", "error", err)
			return
		}
		_ = local.PublishMenuEvent(ctx, env.BrandID, env.Event)
	}
}

// Close unsubscribes and waits for the delivery goroutine to exit.
func (b *Bridge) Close() {
	b.cancel()
	_ = b.sub.Close()
	<-b.done
}
