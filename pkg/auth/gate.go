package auth

import (
	zmq "github.com/pebbe/zmq4"
)

// MechanismCurve is the only security mechanism the agent accepts
const MechanismCurve = "CURVE"

// Decision is the outcome of one authentication attempt
type Decision struct {
	Accepted bool
	Reason   string
}

// Gate validates the public key presented by a connecting client against the
// single configured client public key. It holds no per-connection state; the
// decision is a pure function of the mechanism and the presented key.
type Gate struct {
	clientPubkey string
}

// NewGate creates a gate accepting the given Z85-encoded client public key
func NewGate(clientPubkey string) *Gate {
	return &Gate{clientPubkey: clientPubkey}
}

// Authenticate decides whether a connection presenting the given mechanism
// and raw public key is allowed
func (g *Gate) Authenticate(mechanism string, presentedKey []byte) Decision {
	if mechanism != MechanismCurve {
		return Decision{Reason: "Unsupported mechanism"}
	}

	// CURVE keys are exactly 32 bytes on the wire
	if len(presentedKey) != 32 {
		return Decision{Reason: "Incorrect pubkey"}
	}

	if zmq.Z85encode(string(presentedKey)) != g.clientPubkey {
		return Decision{Reason: "Incorrect pubkey"}
	}

	return Decision{Accepted: true, Reason: "OK"}
}
