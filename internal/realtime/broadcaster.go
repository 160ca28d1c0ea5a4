package realtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/stallpoint/stallpulse/internal/metrics"
)

const (
	commandTimeout     = 5 * time.Second
	stopTimeout        = 10 * time.Second
	commandBufferSize  = 256
	depthWarnThreshold = 200 // ~80% of buffer
)

type channelClients map[*Client]struct{}

// --- Command types ---

type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	channel Channel
	client  *Client
	errCh   chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	channel Channel
	client  *Client
}

type deliverCmd struct {
	baseBroadcasterCmd
	targets   []Channel
	eventType string
	frame     []byte
}

type deliverBrandCmd struct {
	baseBroadcasterCmd
	brandID   uuid.UUID
	eventType string
	frame     []byte
}

type clientCountCmd struct {
	baseBroadcasterCmd
	channel Channel
	replyCh chan int
}

type channelsCmd struct {
	baseBroadcasterCmd
	replyCh chan []Channel
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the channel registry and fans events out to registered
// clients. It is an actor: a single goroutine owns the maps, and all access
// goes through the command channel, so no locking is needed.
type Broadcaster struct {
	cmdCh                chan broadcasterCmd
	clock                clockwork.Clock
	channels             map[Channel]channelClients
	done                 chan struct{}
	stopTimeout          time.Duration
	maxClientsPerChannel int
}

// NewBroadcaster creates and starts a broadcaster.
// maxClientsPerChannel bounds connections per channel (0 = unbounded).
func NewBroadcaster(clock clockwork.Clock, maxClientsPerChannel int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:                make(chan broadcasterCmd, commandBufferSize),
		clock:                clock,
		channels:             make(map[Channel]channelClients),
		done:                 make(chan struct{}),
		stopTimeout:          stopTimeout,
		maxClientsPerChannel: maxClientsPerChannel,
	}
	go b.run()
	return b
}

// Register adds a client under a channel, creating the channel set if
// absent. Returns an error if the channel is at capacity.
func (b *Broadcaster) Register(channel Channel, client *Client) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{channel: channel, client: client, errCh: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client from a channel. The channel set is deleted
// once empty, so the registry never holds a key with no clients. Idempotent.
func (b *Broadcaster) Unregister(channel Channel, client *Client) {
	b.cmdCh <- unregisterCmd{channel: channel, client: client}
}

// Broadcast delivers an event to the booth channel (when the event carries a
// booth id) and to the brand-wide channel. Clients whose send buffers are
// full or whose writers have died are pruned.
func (b *Broadcaster) Broadcast(ev Event) {
	frame, err := EncodeFrame(ev)
	if err != nil {
		slog.Error("Failed to encode broadcast frame", "event_type", ev.Type, "error", err)
		return
	}

	targets := make([]Channel, 0, 2)
	if ev.BoothID != nil {
		targets = append(targets, BoothChannel(ev.BrandID, *ev.BoothID))
	}
	targets = append(targets, BrandChannel(ev.BrandID))

	b.cmdCh <- deliverCmd{targets: targets, eventType: ev.Type, frame: frame}
}

// BroadcastToBrand delivers an event to every channel belonging to the
// event's brand, whatever booth it is registered under.
func (b *Broadcaster) BroadcastToBrand(ev Event) {
	frame, err := EncodeFrame(ev)
	if err != nil {
		slog.Error("Failed to encode broadcast frame", "event_type", ev.Type, "error", err)
		return
	}
	b.cmdCh <- deliverBrandCmd{brandID: ev.BrandID, eventType: ev.Type, frame: frame}
}

// BroadcastMenu delivers a menu event on this broadcaster. Menu events reach
// the booth channel when the event names a booth, falling back to brand-wide.
func (b *Broadcaster) BroadcastMenu(brandID uuid.UUID, ev MenuEvent) {
	frame, err := EncodeFrame(ev)
	if err != nil {
		slog.Error("Failed to encode menu frame", "error", err)
		return
	}

	targets := make([]Channel, 0, 2)
	if ev.BoothID != nil {
		targets = append(targets, BoothChannel(brandID, *ev.BoothID))
	}
	targets = append(targets, BrandChannel(brandID))

	b.cmdCh <- deliverCmd{targets: targets, eventType: EventMenuUpdate, frame: frame}
}

// ClientCount returns the number of clients registered under a channel.
// Returns -1 if the command times out.
func (b *Broadcaster) ClientCount(channel Channel) int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{channel: channel, replyCh: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Channels returns the channels that currently have registered clients.
func (b *Broadcaster) Channels() []Channel {
	replyCh := make(chan []Channel, 1)
	b.cmdCh <- channelsCmd{replyCh: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case channels := <-replyCh:
		return channels
	case <-timer.Chan():
		slog.Warn("Channels timed out", "timeout", commandTimeout)
		return nil
	}
}

// Stop shuts down the broadcaster, ending every client writer.
// Blocks until the actor goroutine has exited or the timeout is reached.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAllClients()
		}
	}()

	depthTicker := b.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			metrics.BroadcasterCommandChannelDepth.Set(float64(depth))
			if depth > depthWarnThreshold {
				slog.Warn("Broadcaster command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}

		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.channel, c.client)
			case deliverCmd:
				for _, target := range c.targets {
					b.handleDeliver(target, c.frame)
				}
				metrics.BroadcasterEventsTotal.WithLabelValues(c.eventType).Inc()
			case deliverBrandCmd:
				for channel := range b.channels {
					if channel.BrandID == c.brandID {
						b.handleDeliver(channel, c.frame)
					}
				}
				metrics.BroadcasterEventsTotal.WithLabelValues(c.eventType).Inc()
			case clientCountCmd:
				c.replyCh <- len(b.channels[c.channel])
			case channelsCmd:
				channels := make([]Channel, 0, len(b.channels))
				for channel := range b.channels {
					channels = append(channels, channel)
				}
				c.replyCh <- channels
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	clients, exists := b.channels[c.channel]
	if !exists {
		clients = make(channelClients)
		b.channels[c.channel] = clients
	}

	if b.maxClientsPerChannel > 0 && len(clients) >= b.maxClientsPerChannel {
		if !exists {
			delete(b.channels, c.channel)
		}
		slog.Warn("Rejecting client: max clients reached", "channel", c.channel.String(), "max_clients", b.maxClientsPerChannel)
		c.errCh <- fmt.Errorf("max clients per channel (%d) reached", b.maxClientsPerChannel)
		return
	}

	clients[c.client] = struct{}{}

	// Self-healing: once the client's writer dies (failed write or
	// heartbeat), remove it from the registry without waiting for the
	// next delivery to notice.
	go func(channel Channel, client *Client) {
		select {
		case <-client.Done():
			select {
			case b.cmdCh <- unregisterCmd{channel: channel, client: client}:
			case <-b.done:
			}
		case <-b.done:
		}
	}(c.channel, c.client)

	metrics.BroadcasterActiveChannels.Set(float64(len(b.channels)))
	metrics.BroadcasterConnectedClients.Inc()

	slog.Debug("Client registered", "channel", c.channel.String(), "total_clients", len(clients))
	c.errCh <- nil
}

func (b *Broadcaster) handleUnregister(channel Channel, client *Client) {
	clients, exists := b.channels[channel]
	if !exists {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	// Stop waits for the writer goroutine, which can be blocked inside a
	// write on a dying connection. Never block the actor on it.
	go client.Stop()

	metrics.BroadcasterConnectedClients.Dec()

	if len(clients) == 0 {
		delete(b.channels, channel)
		metrics.BroadcasterActiveChannels.Set(float64(len(b.channels)))
		slog.Debug("Last client disconnected", "channel", channel.String())
	} else {
		slog.Debug("Client unregistered", "channel", channel.String(), "remaining_clients", len(clients))
	}
}

func (b *Broadcaster) handleDeliver(channel Channel, frame []byte) {
	clients, exists := b.channels[channel]
	if !exists {
		return
	}

	var stale []*Client
	for client := range clients {
		// A refused send means the writer died or the client cannot
		// keep up with its buffer.
		if !client.Send(frame) {
			stale = append(stale, client)
		}
	}

	for _, client := range stale {
		slog.Warn("Pruning stale client", "channel", channel.String())
		metrics.BroadcasterEvictionsTotal.WithLabelValues("write_failure").Inc()
		b.handleUnregister(channel, client)
	}
}

func (b *Broadcaster) handleStop() {
	defer close(b.done)

	totalClients := 0
	for _, clients := range b.channels {
		totalClients += len(clients)
	}
	slog.Info("Broadcaster shutting down", "channels", len(b.channels), "total_clients", totalClients)

	b.closeAllClients()

	slog.Info("Broadcaster shutdown complete", "disconnected_clients", totalClients)
}

func (b *Broadcaster) closeAllClients() {
	for channel, clients := range b.channels {
		for client := range clients {
			go client.Stop()
		}
		delete(b.channels, channel)
	}
	metrics.BroadcasterActiveChannels.Set(0)
}
