/*
Package event multiplexes events from concurrently running tasks into a single
ordered consumer.

# Architecture

A Bus wraps a watermill GoChannel with exactly one subscriber. Publishing blocks
until the subscriber has handled and acknowledged the message, which gives two
guarantees:

  - events from one task reach the handler in the order that task published them
  - the handler is never called concurrently, so it may write to a shared
    stream without locking

Events from different tasks interleave in arrival order.

# Tagged Events

Every event carries the identity of the task that produced it:

	{"agent_id": "coder-0", "agent_name": "coder", "event": {...}}

The inner event is opaque JSON and is forwarded unmodified apart from
whitespace.

# Usage

	bus, err := event.NewBus(func(t event.Tagged) {
		enc.Encode(t)
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	bus.Publish(event.Tagged{AgentID: "coder-0", AgentName: "coder", Event: raw})
*/
package event
