/*
Package session provides a reference implementation of the broker's session
and execution collaborators.

Manager tracks the logical client and server session contexts, implements the
rpc.Sessions lifecycle contract, and publishes lifecycle events. As an
rpc.Executor it answers session-administration commands (ADDCLIENTSESSION,
ADDSERVERSESSION, LISTCLIENTSESSIONS, LISTSERVERSESSIONS) locally; wallet
business commands report UNIMPLEMENTED, since real command execution belongs
to an external wallet backend linked in by the embedding process.
*/
package session
