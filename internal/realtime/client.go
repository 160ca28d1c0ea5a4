package realtime

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/stallpoint/stallpulse/internal/metrics"
)

const sendBufferSize = 16

// Flusher is the subset of http.Flusher the client writer needs.
type Flusher interface {
	Flush()
}

// Client owns one open event stream. A dedicated goroutine drains the send
// buffer and emits heartbeat frames; any write failure ends the goroutine,
// which is the disconnect-detection mechanism for stale connections.
type Client struct {
	id                uuid.UUID
	w                 io.Writer
	flusher           Flusher
	clock             clockwork.Clock
	heartbeatInterval time.Duration

	sendCh   chan []byte
	doneCh   chan struct{}
	deadCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClient starts the writer goroutine for one connection. flusher may be
// nil for writers that do not buffer.
func NewClient(w io.Writer, flusher Flusher, clock clockwork.Clock, heartbeatInterval time.Duration) *Client {
	c := &Client{
		id:                uuid.New(),
		w:                 w,
		flusher:           flusher,
		clock:             clock,
		heartbeatInterval: heartbeatInterval,
		sendCh:            make(chan []byte, sendBufferSize),
		doneCh:            make(chan struct{}),
		deadCh:            make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// ID is the per-connection client id, reported in the connected frame of
// the menu stream.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Done is closed once the writer goroutine has exited, whether from a write
// failure, an eviction, or Stop. Handlers select on it alongside the request
// context to unblock.
func (c *Client) Done() <-chan struct{} {
	return c.deadCh
}

// Send hands a frame to the writer goroutine, which is the only goroutine
// that ever touches the underlying connection. Reports false when the
// writer has died or the buffer is full.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.deadCh:
		return false
	default:
	}
	select {
	case c.sendCh <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) run() {
	defer close(c.deadCh)
	defer c.wg.Done()

	ticker := c.clock.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.sendCh:
			if !ok {
				return
			}
			if err := c.write(frame); err != nil {
				return
			}
		case <-ticker.Chan():
			if err := c.write(heartbeatFrame(c.clock.Now())); err != nil {
				metrics.StreamHeartbeatFailures.Inc()
				return
			}
		case <-c.doneCh:
			return
		}
	}
}

func (c *Client) write(frame []byte) error {
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	if c.flusher != nil {
		c.flusher.Flush()
	}
	return nil
}

// Stop ends the writer goroutine and waits for it to exit. Idempotent.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
	c.wg.Wait()
}
