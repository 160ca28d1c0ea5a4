package realtime

import (
	"context"

	"github.com/google/uuid"
)

// Publisher is the collaborator boundary for event emission. Reconciliation
// and application code publish through it without knowing whether delivery
// is in-process or bridged to other instances over a broker.
type Publisher interface {
	// PublishEvent delivers to the event's booth channel and its brand-wide channel.
	PublishEvent(ctx context.Context, ev Event) error
	// PublishBrandEvent delivers to every channel of the event's brand.
	PublishBrandEvent(ctx context.Context, ev Event) error
	// PublishMenuEvent delivers a menu refresh on the menu stream.
	PublishMenuEvent(ctx context.Context, brandID uuid.UUID, ev MenuEvent) error
}

// LocalPublisher delivers straight to the in-process broadcasters. This is
// the single-instance deployment mode; an event published here never reaches
// clients connected to another instance.
type LocalPublisher struct {
	events *Broadcaster
	menu   *Broadcaster
}

// NewLocalPublisher wires a publisher to the two broadcaster instances.
func NewLocalPublisher(events, menu *Broadcaster) *LocalPublisher {
	return &LocalPublisher{events: events, menu: menu}
}

func (p *LocalPublisher) PublishEvent(_ context.Context, ev Event) error {
	p.events.Broadcast(ev)
	return nil
}

func (p *LocalPublisher) PublishBrandEvent(_ context.Context, ev Event) error {
	p.events.BroadcastToBrand(ev)
	return nil
}

func (p *LocalPublisher) PublishMenuEvent(_ context.Context, brandID uuid.UUID, ev MenuEvent) error {
	p.menu.BroadcastMenu(brandID, ev)
	return nil
}
