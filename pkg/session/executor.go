package session

import (
	"context"
	"fmt"

	"github.com/walletd/agent/pkg/rpc"
)

// Execute answers session-administration commands locally. Session creation
// itself is driven by the broker's pool scaler after it observes the SUCCESS
// status, so ADDCLIENTSESSION and ADDSERVERSESSION only acknowledge here.
func (m *Manager) Execute(ctx context.Context, cmd *rpc.Command) (*rpc.Response, error) {
	resp := &rpc.Response{
		Version: rpc.CommandVersion,
		ID:      cmd.ID,
		Type:    cmd.Type,
		Session: cmd.Session,
	}

	switch cmd.Type {
	case rpc.CommandAddClientSession, rpc.CommandAddServerSession:
		resp.Status = []rpc.Status{{Index: 0, Code: rpc.StatusSuccess}}

	case rpc.CommandListClientSessions:
		resp.Identifier = m.clientSessionList()
		resp.Status = []rpc.Status{{Index: 0, Code: rpc.StatusSuccess}}

	case rpc.CommandListServerSessions:
		resp.Identifier = m.serverSessionList()
		resp.Status = []rpc.Status{{Index: 0, Code: rpc.StatusSuccess}}

	default:
		if !m.sessionStarted(cmd.Session) {
			resp.Status = []rpc.Status{{Index: 0, Code: rpc.StatusBadSession}}
			return resp, nil
		}

		resp.Status = []rpc.Status{{Index: 0, Code: rpc.StatusUnimplemented}}
	}

	return resp, nil
}

// AccountOwner resolves the nym controlling an account. The reference
// manager keeps no wallet storage, so every lookup misses.
func (m *Manager) AccountOwner(clientIndex int, accountID string) (string, error) {
	return "", fmt.Errorf("unknown account %s in client session %d", accountID, clientIndex)
}

func (m *Manager) sessionStarted(session uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rpc.IsClientSession(session) {
		return m.clients[int(session/2)]
	}

	return m.servers[int(session/2)]
}
