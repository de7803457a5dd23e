package broker

import (
	"context"
	"time"

	"github.com/walletd/agent/pkg/config"
	"github.com/walletd/agent/pkg/log"
)

// growClients increments the persisted client-session counter, starts a
// client session at the new index, and schedules its periodic refresh. The
// counter is flushed inside the increment transaction; the persisted value
// reflects the in-memory value before this returns.
func (a *Agent) growClients(ctx context.Context) {
	logger := log.WithComponent("scaler")

	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()

	count, err := a.cfg.Settings.Increment(config.SectionAgent, config.KeyClients)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist client session count")
		return
	}

	a.clients = count
	newIndex := int(count) - 1

	if err := a.cfg.Sessions.StartClient(ctx, newIndex); err != nil {
		logger.Error().Err(err).Int("index", newIndex).Msg("Failed to start client session")
		return
	}

	a.scheduleRefresh(ctx, newIndex)

	logger.Info().Int64("clients", count).Msg("Client session pool grown")
}

// growServers increments and persists the server-session counter. Server
// sessions are started eagerly at construction time, not here.
func (a *Agent) growServers() {
	logger := log.WithComponent("scaler")

	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()

	count, err := a.cfg.Settings.Increment(config.SectionAgent, config.KeyServers)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist server session count")
		return
	}

	a.servers = count

	logger.Info().Int64("servers", count).Msg("Server session pool grown")
}

// scheduleRefresh runs one refresh cycle for a client session: an immediate
// refresh when the scheduler starts, then one per interval until shutdown
func (a *Agent) scheduleRefresh(ctx context.Context, clientIndex int) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		logger := log.WithComponent("scaler")

		if err := a.cfg.Sessions.Refresh(ctx, clientIndex); err != nil {
			logger.Warn().Err(err).Int("index", clientIndex).Msg("Client session refresh failed")
		}

		ticker := time.NewTicker(a.cfg.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				if err := a.cfg.Sessions.Refresh(ctx, clientIndex); err != nil {
					logger.Warn().Err(err).Int("index", clientIndex).Msg("Client session refresh failed")
				}
			}
		}
	}()
}

// SessionCounts returns the current client and server session counts
func (a *Agent) SessionCounts() (clients, servers int64) {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()

	return a.clients, a.servers
}

// Tasks returns the number of tasks awaiting completion
func (a *Agent) Tasks() int {
	return a.tasks.Len()
}

// Associations returns the number of nym to connection associations
func (a *Agent) Associations() int {
	return a.connections.Len()
}
