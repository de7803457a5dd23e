/*
Package broker implements the agent's message-routing core.

The Agent wires five cooperating pieces around two registries:

	client ──► frontend ROUTER ──► internal DEALER ──► backend REP pool
	  ▲            │                                        │
	  │            │ identity tag                           │ execute, interpret
	  └── replies ◄┴──────────── pushes ◄── push relay ◄── event stream

Frontend ingress: one CURVE-authenticated ROUTER socket bound to the primary
endpoint plus any additional configured endpoints. Every inbound message is
tagged with its transport-assigned connection identity and relayed verbatim;
the ROUTER is also the sole egress for replies and push notifications.

Internal dispatcher: a DEALER connected to every backend endpoint. libzmq
round-robins requests across the connected REP workers and fair-queues their
replies; the application does no load balancing of its own. A backend that
never replies leaves that request permanently unanswered.

Backend workers: one goroutine per endpoint, count derived from the available
hardware concurrency. Each worker records client-declared nym associations
before execution, delegates to the command executor, interprets the response
(task ownership, scaling triggers, new identifiers), and registers queued
tasks for later completion routing.

Push relay: consumes the event stream on its own goroutine and assembles
connection-addressed notification frames, queued to the relay goroutine over
an inproc pipe. Delivery is fire-and-forget.

Pool scaler: grows the logical session pool when a session-added response is
observed, persisting the new count synchronously before starting the session
and scheduling its refresh cycle.

Sockets are confined to the goroutine that created them. The registries are
the only request state shared between workers, each behind its own mutex.
*/
package broker
