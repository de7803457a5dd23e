/*
Package events provides the in-memory event stream between command execution
and the broker's push relay.

The events package implements a lightweight pub/sub bus. The executor (and the
sessions it manages) publishes task-completion and nym-addressed events; the
push relay subscribes and turns each event into an outbound notification. The
bus is fully decoupled from the request path: publish is non-blocking and a
slow subscriber skips events instead of stalling the publisher.

# Event Shapes

Task-completion event:
  - TaskID: id of the accepted task
  - Success: final result

Owner event:
  - Owner: nym the event is attributed to
  - Payload, Instance: opaque frames forwarded to the client verbatim

Session lifecycle events (session.started, session.refreshed) are emitted for
observability only; the push relay ignores them.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			// handle event
		}
	}()

	broker.PublishTaskComplete("task-1", true)

# Delivery Semantics

Fire-and-forget: no acknowledgment, no retry, no replay. Events whose
recipient cannot keep up are dropped. This matches the broker's push contract,
which guarantees neither at-least-once nor at-most-once delivery.
*/
package events
