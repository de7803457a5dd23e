package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/walletd/agent/pkg/events"
	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/metrics"
	"github.com/walletd/agent/pkg/rpc"
)

// Manager is a reference implementation of the session collaborator. It
// tracks which logical client and server session contexts are running and
// answers session-administration commands; wallet business commands report
// UNIMPLEMENTED because command execution proper belongs to an external
// wallet backend.
type Manager struct {
	mu      sync.Mutex
	clients map[int]bool
	servers map[int]bool
	broker  *events.Broker
}

// NewManager creates a session manager publishing lifecycle events on broker
func NewManager(broker *events.Broker) *Manager {
	return &Manager{
		clients: make(map[int]bool),
		servers: make(map[int]bool),
		broker:  broker,
	}
}

// StartClient starts the client session context at index
func (m *Manager) StartClient(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("invalid client session index %d", index)
	}

	m.mu.Lock()
	if m.clients[index] {
		m.mu.Unlock()
		return fmt.Errorf("client session %d already started", index)
	}
	m.clients[index] = true
	m.mu.Unlock()

	clog1 := log.WithSession(rpc.ClientSession(index))
	clog1.Info().Msg("Client session started")
	metrics.SessionsTotal.WithLabelValues("client").Inc()
	m.publish(events.EventSessionStarted)

	return nil
}

// StartServer starts the server session context at index
func (m *Manager) StartServer(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("invalid server session index %d", index)
	}

	m.mu.Lock()
	if m.servers[index] {
		m.mu.Unlock()
		return fmt.Errorf("server session %d already started", index)
	}
	m.servers[index] = true
	m.mu.Unlock()

	clog2 := log.WithSession(rpc.ServerSession(index))
	clog2.Info().Msg("Server session started")
	metrics.SessionsTotal.WithLabelValues("server").Inc()
	m.publish(events.EventSessionStarted)

	return nil
}

// Refresh synchronizes the state of one client session
func (m *Manager) Refresh(ctx context.Context, clientIndex int) error {
	m.mu.Lock()
	started := m.clients[clientIndex]
	m.mu.Unlock()

	if !started {
		return fmt.Errorf("client session %d is not started", clientIndex)
	}

	clog3 := log.WithSession(rpc.ClientSession(clientIndex))
	clog3.Debug().Msg("Client session refreshed")
	metrics.SessionRefreshes.Inc()
	m.publish(events.EventSessionRefreshed)

	return nil
}

// ClientCount returns the number of started client sessions
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.clients)
}

// ServerCount returns the number of started server sessions
func (m *Manager) ServerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.servers)
}

func (m *Manager) publish(eventType events.EventType) {
	if m.broker == nil {
		return
	}

	m.broker.Publish(&events.Event{Type: eventType})
}

// clientSessionList returns the wire session indices of started client
// sessions in ascending order
func (m *Manager) clientSessionList() []string {
	m.mu.Lock()
	indices := make([]int, 0, len(m.clients))
	for index := range m.clients {
		indices = append(indices, index)
	}
	m.mu.Unlock()

	sort.Ints(indices)

	sessions := make([]string, 0, len(indices))
	for _, index := range indices {
		sessions = append(sessions, strconv.FormatUint(uint64(rpc.ClientSession(index)), 10))
	}

	return sessions
}

func (m *Manager) serverSessionList() []string {
	m.mu.Lock()
	indices := make([]int, 0, len(m.servers))
	for index := range m.servers {
		indices = append(indices, index)
	}
	m.mu.Unlock()

	sort.Ints(indices)

	sessions := make([]string, 0, len(indices))
	for _, index := range indices {
		sessions = append(sessions, strconv.FormatUint(uint64(rpc.ServerSession(index)), 10))
	}

	return sessions
}
