/*
Package registry holds the broker's two correlation tables.

TaskRegistry remembers which connection is waiting for which asynchronous
task, keyed by task id. A record is created when a command response reports
QUEUED with a task descriptor and consumed exactly once when the matching
completion event arrives.

ConnectionRegistry maps nym ids to the last-seen connection identity so
unsolicited push events can be routed to the right client link. Associate is
first-association-wins; Overwrite serves the associations a command claims
explicitly and always replaces the mapping.

Each table is guarded by its own mutex, held only across the map operation.
The broker never holds a registry lock across executor calls or socket I/O.
*/
package registry
