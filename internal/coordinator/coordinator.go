// Package coordinator fans a published message out to every process in
// the fleet over the backing store's pub/sub, so that a message published
// on one process's Publisher reaches WS/poll subscribers connected to any
// other process (spec component "Coordinator").
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RelayChannel is the single channel every relay process publishes to and
// subscribes on.
const RelayChannel = "relay:messages"

// State is the Coordinator's lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Handler receives a decoded relay frame. Registered handlers are
// LocalHub.Broadcast and PollHub.Broadcast, invoked synchronously and in
// registration order; a handler panic is recovered and logged and does not
// stop the receive loop or block the remaining handlers.
type Handler func(topic string, event any)

type relayFrame struct {
	Topic   string `json:"topic"`
	Message any    `json:"message"`
}

// Coordinator publishes and receives relay frames over Redis pub/sub. It
// holds two independent connections: pubClient for Publish, and a
// dedicated subscriber connection opened by Start (a publisher connection
// cannot also be a subscriber on most backends).
type Coordinator struct {
	pubClient    *redis.Client
	newSubClient func(ctx context.Context) (*redis.Client, error)
	log          *slog.Logger

	mu       sync.Mutex
	state    State
	handlers []Handler
	cancel   context.CancelFunc
	sub      *redis.PubSub
	subConn  *redis.Client
}

// New returns a Coordinator that publishes over pubClient and opens a
// fresh dedicated connection via newSubClient each time Start is called.
func New(pubClient *redis.Client, newSubClient func(ctx context.Context) (*redis.Client, error), log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		pubClient:    pubClient,
		newSubClient: newSubClient,
		log:          log.With("component", "coordinator"),
	}
}

// Register adds a handler invoked for every inbound relay frame. Must be
// called before Start.
func (c *Coordinator) Register(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the dedicated subscriber connection, subscribes to
// RelayChannel, and runs the receive loop in a new goroutine.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Running || c.state == Starting {
		c.mu.Unlock()
		return fmt.Errorf("coordinator: already %s", c.state)
	}
	c.state = Starting
	c.mu.Unlock()

	subConn, err := c.newSubClient(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = Stopped
		c.mu.Unlock()
		return fmt.Errorf("coordinator: dedicated subscriber connection: %w", err)
	}

	sub := subConn.Subscribe(ctx, RelayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		subConn.Close()
		c.mu.Lock()
		c.state = Stopped
		c.mu.Unlock()
		return fmt.Errorf("coordinator: subscribe: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.subConn = subConn
	c.sub = sub
	c.cancel = cancel
	c.state = Running
	c.mu.Unlock()

	go c.receiveLoop(loopCtx, sub)
	return nil
}

func (c *Coordinator) receiveLoop(ctx context.Context, sub *redis.PubSub) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.mu.Lock()
				c.state = Stopping
				c.mu.Unlock()
				return
			}
			c.dispatch(msg.Payload)
		}
	}
}

func (c *Coordinator) dispatch(payload string) {
	var frame relayFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		c.log.Warn("discarding malformed relay frame", "error", err)
		return
	}

	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("relay handler panicked", "panic", r, "topic", frame.Topic)
				}
			}()
			h(frame.Topic, frame.Message)
		}()
	}
}

// Publish encodes {topic, event} as JSON and publishes it on RelayChannel
// over the publisher connection.
func (c *Coordinator) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(relayFrame{Topic: topic, Message: event})
	if err != nil {
		return fmt.Errorf("coordinator: marshal frame: %w", err)
	}
	if err := c.pubClient.Publish(ctx, RelayChannel, payload).Err(); err != nil {
		return fmt.Errorf("coordinator: publish: %w", err)
	}
	return nil
}

// Stop cancels the receive loop and closes the subscriber connection.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return nil
	}
	c.state = Stopping
	cancel := c.cancel
	sub := c.sub
	subConn := c.subConn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if sub != nil {
		err = sub.Close()
	}
	if subConn != nil {
		if cerr := subConn.Close(); err == nil {
			err = cerr
		}
	}

	c.mu.Lock()
	c.state = Stopped
	c.mu.Unlock()
	return err
}
