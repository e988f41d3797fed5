package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/subspace-cli/subspace/internal/logging"
)

const topic = "subspace.events"

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Tagged is a task event wrapped with the identity of its producer.
type Tagged struct {
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Event     json.RawMessage `json:"event"`
}

// Handler consumes tagged events. It is never called concurrently.
type Handler func(Tagged)

// Bus delivers tagged events from many publishers to one handler using
// watermill's gochannel.
type Bus struct {
	mu     sync.RWMutex
	closed bool

	pubsub *gochannel.GoChannel
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBus creates a bus and starts delivering to handler.
func NewBus(handler Handler) (*Bus, error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
			Persistent:                     false,
		},
		watermill.NopLogger{},
	)

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	b := &Bus{
		pubsub: pubsub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.deliver(messages, handler)
	return b, nil
}

func (b *Bus) deliver(messages <-chan *message.Message, handler Handler) {
	defer close(b.done)
	for msg := range messages {
		var t Tagged
		if err := json.Unmarshal(msg.Payload, &t); err != nil {
			logging.Warn().Err(err).Str("uuid", msg.UUID).Msg("dropping malformed event")
		} else {
			handler(t)
		}
		msg.Ack()
	}
}

// Publish sends t and returns once the handler has processed it.
func (b *Bus) Publish(t Tagged) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set("agent_id", t.AgentID)
	return b.pubsub.Publish(topic, msg)
}

// PublishEvent tags v as an event of the given task and publishes it.
func (b *Bus) PublishEvent(agentID, agentName string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(Tagged{AgentID: agentID, AgentName: agentName, Event: raw})
}

// Close stops delivery. Publishes that already returned have been handled.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	return err
}
