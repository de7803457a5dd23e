package rpc

import "fmt"

// Session index parity determines the session class: even indices are client
// sessions, odd indices are server sessions. The concrete mapping to the
// per-class index divides by two.

// IsClientSession reports whether a wire session index names a client session
func IsClientSession(session uint32) bool {
	return session%2 == 0
}

// IsServerSession reports whether a wire session index names a server session
func IsServerSession(session uint32) bool {
	return session%2 == 1
}

// ClientIndex maps a wire session index to a client session index
func ClientIndex(session uint32) (int, error) {
	if !IsClientSession(session) {
		return 0, fmt.Errorf("session %d is not a client session", session)
	}

	return int(session / 2), nil
}

// ServerIndex maps a wire session index to a server session index
func ServerIndex(session uint32) (int, error) {
	if !IsServerSession(session) {
		return 0, fmt.Errorf("session %d is not a server session", session)
	}

	return int(session / 2), nil
}

// ClientSession maps a client session index back to its wire session index
func ClientSession(index int) uint32 {
	return uint32(index) * 2
}

// ServerSession maps a server session index back to its wire session index
func ServerSession(index int) uint32 {
	return uint32(index)*2 + 1
}
