package registry

import (
	"sync"

	"github.com/walletd/agent/pkg/log"
)

// ConnectionRegistry maps nym ids to the connection identity push
// notifications for that nym should be delivered to. Identities are opaque
// transport handles and are not stable across reconnects; a stale entry means
// a push is silently undeliverable, which is an accepted limitation.
type ConnectionRegistry struct {
	mu          sync.Mutex
	connections map[string][]byte
}

// NewConnectionRegistry creates an empty connection registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string][]byte),
	}
}

// Associate records the connection for a nym unless the nym is already
// associated. First association wins; an empty nym id is ignored.
func (r *ConnectionRegistry) Associate(owner string, connection []byte) {
	if owner == "" {
		return
	}

	r.mu.Lock()
	_, exists := r.connections[owner]
	if !exists {
		r.connections[owner] = append([]byte(nil), connection...)
	}
	r.mu.Unlock()

	if !exists {
		clog1 := log.WithConnection(connection)
		clog1.Debug().
			Str("owner", owner).
			Msg("Connection is associated with nym")
	}
}

// Overwrite unconditionally records the connection for a nym. This is the
// write path for nyms a command explicitly claims: the most recent claiming
// connection always wins, replacing any earlier association.
func (r *ConnectionRegistry) Overwrite(owner string, connection []byte) {
	if owner == "" {
		return
	}

	r.mu.Lock()
	r.connections[owner] = append([]byte(nil), connection...)
	r.mu.Unlock()

	clog2 := log.WithConnection(connection)
	clog2.Debug().
		Str("owner", owner).
		Msg("Connection association replaced for nym")
}

// Resolve returns the connection identity associated with a nym
func (r *ConnectionRegistry) Resolve(owner string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[owner]
	if !ok {
		return nil, false
	}

	return connection, true
}

// Len returns the number of associated nyms
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.connections)
}
