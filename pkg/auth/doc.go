/*
Package auth implements the agent's connection authentication.

Gate is the policy: accept a connection iff it presents the CURVE mechanism
and a public key equal, Z85-encoded, to the single configured client key.
There is no rate limiting and no per-connection state.

Service wires the gate into libzmq through the ZeroMQ authentication protocol
(ZAP): a REP socket on inproc://zeromq.zap.01 that libzmq consults for every
new connection attempt on a socket carrying the agent's authentication domain.
Rejected connections never deliver a frame to the frontend.
*/
package auth
