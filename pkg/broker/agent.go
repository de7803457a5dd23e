package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/walletd/agent/pkg/auth"
	"github.com/walletd/agent/pkg/config"
	"github.com/walletd/agent/pkg/events"
	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/registry"
	"github.com/walletd/agent/pkg/rpc"
)

// ZapDomain is the authentication domain installed on the frontend socket
const ZapDomain = "agentd"

const (
	backendEndpointPrefix = "inproc://walletd/agent/backend/"
	pushQueueEndpoint     = "inproc://walletd/agent/push"
)

// Config holds everything the agent needs at construction time. Clients and
// Servers are the effective session counts after the settings store has been
// seeded; SocketPath is the primary frontend endpoint.
type Config struct {
	SocketPath string
	Endpoints  []string

	Workers int
	Clients int64
	Servers int64

	ServerPrivateKey string
	ServerPublicKey  string
	ClientPrivateKey string
	ClientPublicKey  string

	RefreshInterval time.Duration

	Settings *config.Store
	Executor rpc.Executor
	Sessions rpc.Sessions
	Events   *events.Broker
}

// Agent is the message-routing broker: an authenticated frontend ingress, an
// internal load-balancing relay across a pool of backend workers, the task
// and connection registries, a push relay, and the session pool scaler.
type Agent struct {
	cfg Config

	tasks       *registry.TaskRegistry
	connections *registry.ConnectionRegistry

	backendEndpoints []string

	zap  *auth.Service
	push *pushRelay

	clientsMu sync.Mutex
	clients   int64
	servers   int64

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// New creates an agent. No sockets are created and no sessions are started
// until Start is called.
func New(cfg Config) (*Agent, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if cfg.Executor == nil || cfg.Sessions == nil {
		return nil, fmt.Errorf("executor and sessions collaborators are required")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event broker is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = config.DefaultRefreshInterval
	}

	return &Agent{
		cfg:              cfg,
		tasks:            registry.NewTaskRegistry(),
		connections:      registry.NewConnectionRegistry(),
		backendEndpoints: backendEndpoints(cfg.Workers),
		clients:          cfg.Clients,
		servers:          cfg.Servers,
		stopCh:           make(chan struct{}),
	}, nil
}

// Start brings the agent up: keys are persisted into the settings store, all
// configured sessions start eagerly, every backend endpoint is bound, the
// authentication domain and private key are installed on the frontend before
// it binds, and every client session gets its periodic refresh scheduled.
func (a *Agent) Start(ctx context.Context) error {
	logger := log.WithComponent("broker")

	if err := a.persistKeys(); err != nil {
		return err
	}

	for i := 0; i < int(a.servers); i++ {
		if err := a.cfg.Sessions.StartServer(ctx, i); err != nil {
			return fmt.Errorf("failed to start server session %d: %w", i, err)
		}
	}

	for i := 0; i < int(a.clients); i++ {
		if err := a.cfg.Sessions.StartClient(ctx, i); err != nil {
			return fmt.Errorf("failed to start client session %d: %w", i, err)
		}
	}

	logger.Info().Int("workers", a.cfg.Workers).Msg("Starting backend workers")

	for i, endpoint := range a.backendEndpoints {
		ready := make(chan error, 1)
		a.wg.Add(1)
		go a.runWorker(i, endpoint, ready)
		if err := <-ready; err != nil {
			return fmt.Errorf("failed to start backend worker %d: %w", i, err)
		}
	}

	zap, err := auth.StartService(auth.NewGate(a.cfg.ClientPublicKey), ZapDomain)
	if err != nil {
		return err
	}
	a.zap = zap

	ready := make(chan error, 1)
	a.wg.Add(1)
	go a.runRelay(ready)
	if err := <-ready; err != nil {
		return err
	}

	a.push = newPushRelay(a.tasks, a.connections, newPushQueueSender())
	a.push.sub = a.cfg.Events.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.push.run(a.push.sub)
	}()

	for i := 0; i < int(a.clients); i++ {
		a.scheduleRefresh(ctx, i)
	}

	logger.Info().
		Str("endpoint", a.cfg.SocketPath).
		Int64("clients", a.clients).
		Int64("servers", a.servers).
		Msg("Agent started")

	return nil
}

// Stop shuts the agent down and waits for all of its goroutines to exit
func (a *Agent) Stop() {
	a.stopped.Do(func() {
		close(a.stopCh)
		if a.push != nil {
			a.cfg.Events.Unsubscribe(a.push.sub)
		}
		a.wg.Wait()
		if a.zap != nil {
			a.zap.Stop()
		}
		clog1 := log.WithComponent("broker")
		clog1.Info().Msg("Agent stopped")
	})
}

// persistKeys writes the configured keypairs into the settings store, as
// administrative tooling reads them from there rather than from the
// bootstrap file
func (a *Agent) persistKeys() error {
	settings := map[string]string{
		config.KeyServerPrivkey: a.cfg.ServerPrivateKey,
		config.KeyServerPubkey:  a.cfg.ServerPublicKey,
		config.KeyClientPrivkey: a.cfg.ClientPrivateKey,
		config.KeyClientPubkey:  a.cfg.ClientPublicKey,
	}

	for key, value := range settings {
		if err := a.cfg.Settings.PutString(config.SectionAgent, key, value); err != nil {
			return fmt.Errorf("failed to persist %s: %w", key, err)
		}
	}

	return nil
}

// backendEndpoints generates one private internal endpoint per worker
func backendEndpoints(workers int) []string {
	endpoints := make([]string, 0, workers)
	for i := 0; i < workers; i++ {
		endpoints = append(endpoints, fmt.Sprintf("%s%d", backendEndpointPrefix, i))
	}

	return endpoints
}
