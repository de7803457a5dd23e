/*
Package rpc defines the wire-level command and response model shared by the
broker, the command executor, and clients.

A Command is the deserialized form of the opaque request bytes a client sends
as the first body frame. A Response carries one Status per logical
sub-operation, optionally a list of created identifiers, and optionally a list
of accepted Task descriptors for work that completes asynchronously.

Session indices on the wire interleave the two session classes: even indices
are client sessions, odd indices are server sessions, and the per-class index
divides by two. The helpers in session.go convert between the two numbering
schemes.

The Executor and Sessions interfaces are the boundary to the wallet backend.
The broker never interprets executor failures beyond reading the response
status list; errors travel to the client verbatim inside the response.
*/
package rpc
