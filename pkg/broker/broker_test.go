package broker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/agent/pkg/config"
	"github.com/walletd/agent/pkg/events"
	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/rpc"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

type fakeExecutor struct {
	mu       sync.Mutex
	respond  func(cmd *rpc.Command) (*rpc.Response, error)
	owners   map[string]string
	commands []*rpc.Command
}

func (f *fakeExecutor) Execute(ctx context.Context, cmd *rpc.Command) (*rpc.Response, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.respond == nil {
		return &rpc.Response{
			Version: rpc.CommandVersion,
			ID:      cmd.ID,
			Type:    cmd.Type,
			Session: cmd.Session,
			Status:  []rpc.Status{{Index: 0, Code: rpc.StatusSuccess}},
		}, nil
	}

	return f.respond(cmd)
}

func (f *fakeExecutor) AccountOwner(clientIndex int, accountID string) (string, error) {
	owner, ok := f.owners[accountID]
	if !ok {
		return "", fmt.Errorf("unknown account %s", accountID)
	}

	return owner, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	clients   []int
	servers   []int
	refreshes map[int]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{refreshes: make(map[int]int)}
}

func (f *fakeSessions) StartClient(ctx context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, index)
	return nil
}

func (f *fakeSessions) StartServer(ctx context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, index)
	return nil
}

func (f *fakeSessions) Refresh(ctx context.Context, clientIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes[clientIndex]++
	return nil
}

func (f *fakeSessions) refreshCount(clientIndex int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes[clientIndex]
}

func newTestAgent(t *testing.T, executor rpc.Executor, sessions rpc.Sessions) *Agent {
	t.Helper()

	settings, err := config.OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { settings.Close() })

	eventBroker := events.NewBroker()

	agent, err := New(Config{
		SocketPath:       "inproc://test/frontend",
		Workers:          1,
		Clients:          1,
		Servers:          1,
		ServerPrivateKey: "server-secret",
		ServerPublicKey:  "server-public",
		ClientPublicKey:  "client-public",
		RefreshInterval:  time.Minute,
		Settings:         settings,
		Executor:         executor,
		Sessions:         sessions,
		Events:           eventBroker,
	})
	require.NoError(t, err)
	t.Cleanup(agent.Stop)

	return agent
}

func request(t *testing.T, cmd *rpc.Command, identity []byte) [][]byte {
	t.Helper()

	data, err := rpc.EncodeCommand(cmd)
	require.NoError(t, err)
	return [][]byte{data, identity}
}

func decodeReply(t *testing.T, reply [][]byte) *rpc.Response {
	t.Helper()

	require.Len(t, reply, 1)
	resp, err := rpc.DecodeResponse(reply[0])
	require.NoError(t, err)
	return resp
}

func TestCreateNymAssociatesIdentifiers(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(cmd *rpc.Command) (*rpc.Response, error) {
			return &rpc.Response{
				Version:    rpc.CommandVersion,
				Type:       cmd.Type,
				Status:     []rpc.Status{{Index: 0, Code: rpc.StatusSuccess}},
				Identifier: []string{"N1"},
			}, nil
		},
	}
	agent := newTestAgent(t, executor, newFakeSessions())
	identity := []byte("client-conn")

	reply := agent.handleBackendRequest(request(t, &rpc.Command{
		Version: rpc.CommandVersion,
		Type:    rpc.CommandCreateNym,
	}, identity))

	resp := decodeReply(t, reply)
	assert.Equal(t, rpc.StatusSuccess, resp.PrimaryStatus())

	conn, ok := agent.connections.Resolve("N1")
	require.True(t, ok)
	assert.Equal(t, identity, conn)
}

func TestAssociateNymRecordedBeforeExecution(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(cmd *rpc.Command) (*rpc.Response, error) {
			return nil, fmt.Errorf("backend crash")
		},
	}
	agent := newTestAgent(t, executor, newFakeSessions())
	identity := []byte("client-conn")

	reply := agent.handleBackendRequest(request(t, &rpc.Command{
		Type:         rpc.CommandListNyms,
		AssociateNym: []string{"NA", "NB"},
	}, identity))

	// Execution failed, but the associations already exist
	resp := decodeReply(t, reply)
	assert.Equal(t, rpc.StatusError, resp.PrimaryStatus())

	for _, nym := range []string{"NA", "NB"} {
		conn, ok := agent.connections.Resolve(nym)
		require.True(t, ok)
		assert.Equal(t, identity, conn)
	}
}

func TestQueuedPaymentRegistersTask(t *testing.T) {
	executor := &fakeExecutor{
		owners: map[string]string{"A1": "O1"},
		respond: func(cmd *rpc.Command) (*rpc.Response, error) {
			return &rpc.Response{
				Version: rpc.CommandVersion,
				Type:    cmd.Type,
				Status:  []rpc.Status{{Index: 0, Code: rpc.StatusQueued}},
				Task:    []rpc.Task{{Version: 1, ID: "T1"}},
			}, nil
		},
	}
	agent := newTestAgent(t, executor, newFakeSessions())
	identity := []byte("client-conn")

	agent.handleBackendRequest(request(t, &rpc.Command{
		Type:        rpc.CommandSendPayment,
		Session:     2,
		SendPayment: &rpc.SendPayment{SourceAccount: "A1", Amount: 100},
	}, identity))

	record, ok := agent.tasks.TakeAndRemove("T1")
	require.True(t, ok)
	assert.Equal(t, identity, record.Connection)
	assert.Equal(t, "O1", record.Owner)
}

func TestQueuedTaskOwnerFromCommand(t *testing.T) {
	tests := []rpc.CommandType{
		rpc.CommandRegisterNym,
		rpc.CommandIssueUnitDefinition,
		rpc.CommandCreateAccount,
		rpc.CommandCreateCompatibleAccount,
	}

	for _, commandType := range tests {
		t.Run(string(commandType), func(t *testing.T) {
			executor := &fakeExecutor{
				respond: func(cmd *rpc.Command) (*rpc.Response, error) {
					return &rpc.Response{
						Version: rpc.CommandVersion,
						Type:    cmd.Type,
						Status:  []rpc.Status{{Index: 0, Code: rpc.StatusQueued}},
						Task:    []rpc.Task{{Version: 1, ID: "T-" + string(commandType)}},
					}, nil
				},
			}
			agent := newTestAgent(t, executor, newFakeSessions())
			identity := []byte("client-conn")

			agent.handleBackendRequest(request(t, &rpc.Command{
				Type:  commandType,
				Owner: "owner-nym",
			}, identity))

			record, ok := agent.tasks.TakeAndRemove("T-" + string(commandType))
			require.True(t, ok)
			assert.Equal(t, "owner-nym", record.Owner)
		})
	}
}

func TestQueuedRegistersFirstTaskOnly(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(cmd *rpc.Command) (*rpc.Response, error) {
			return &rpc.Response{
				Version: rpc.CommandVersion,
				Type:    cmd.Type,
				Status:  []rpc.Status{{Index: 0, Code: rpc.StatusQueued}},
				Task:    []rpc.Task{{Version: 1, ID: "T1"}, {Version: 1, ID: "T2"}},
			}, nil
		},
	}
	agent := newTestAgent(t, executor, newFakeSessions())

	agent.handleBackendRequest(request(t, &rpc.Command{
		Type:  rpc.CommandRegisterNym,
		Owner: "owner-nym",
	}, []byte("client-conn")))

	_, ok := agent.tasks.TakeAndRemove("T1")
	assert.True(t, ok)
	_, ok = agent.tasks.TakeAndRemove("T2")
	assert.False(t, ok)
}

func TestQueuedWithoutTasksRegistersNothing(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(cmd *rpc.Command) (*rpc.Response, error) {
			return &rpc.Response{
				Version: rpc.CommandVersion,
				Type:    cmd.Type,
				Status:  []rpc.Status{{Index: 0, Code: rpc.StatusQueued}},
			}, nil
		},
	}
	agent := newTestAgent(t, executor, newFakeSessions())

	agent.handleBackendRequest(request(t, &rpc.Command{
		Type:  rpc.CommandRegisterNym,
		Owner: "owner-nym",
	}, []byte("client-conn")))

	assert.Equal(t, 0, agent.tasks.Len())
}

func TestUndecodableCommand(t *testing.T) {
	agent := newTestAgent(t, &fakeExecutor{}, newFakeSessions())

	reply := agent.handleBackendRequest([][]byte{[]byte("not json"), []byte("client-conn")})

	resp := decodeReply(t, reply)
	assert.Equal(t, rpc.CommandError, resp.Type)
	assert.Equal(t, rpc.StatusError, resp.PrimaryStatus())
}

func TestAddClientSessionGrowsPool(t *testing.T) {
	sessions := newFakeSessions()
	agent := newTestAgent(t, &fakeExecutor{}, sessions)

	// The store was seeded with the configured count
	_, err := agent.cfg.Settings.SeedInt64(config.SectionAgent, config.KeyClients, 1)
	require.NoError(t, err)

	agent.handleBackendRequest(request(t, &rpc.Command{
		Type: rpc.CommandAddClientSession,
	}, []byte("client-conn")))

	count, err := agent.cfg.Settings.GetInt64(config.SectionAgent, config.KeyClients)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	clients, _ := agent.SessionCounts()
	assert.Equal(t, int64(2), clients)

	sessions.mu.Lock()
	started := append([]int(nil), sessions.clients...)
	sessions.mu.Unlock()
	assert.Equal(t, []int{1}, started)

	// Exactly one refresh cycle comes up for the new session
	require.Eventually(t, func() bool {
		return sessions.refreshCount(1) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAddServerSessionPersistsOnly(t *testing.T) {
	sessions := newFakeSessions()
	agent := newTestAgent(t, &fakeExecutor{}, sessions)

	agent.handleBackendRequest(request(t, &rpc.Command{
		Type: rpc.CommandAddServerSession,
	}, []byte("client-conn")))

	count, err := agent.cfg.Settings.GetInt64(config.SectionAgent, config.KeyServers)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// No session start and no refresh cycle on the server path
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Empty(t, sessions.servers)
	assert.Empty(t, sessions.clients)
	assert.Empty(t, sessions.refreshes)
}

func TestFailedScalingCommandDoesNotGrow(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(cmd *rpc.Command) (*rpc.Response, error) {
			return &rpc.Response{
				Version: rpc.CommandVersion,
				Type:    cmd.Type,
				Status:  []rpc.Status{{Index: 0, Code: rpc.StatusError}},
			}, nil
		},
	}
	sessions := newFakeSessions()
	agent := newTestAgent(t, executor, sessions)

	agent.handleBackendRequest(request(t, &rpc.Command{
		Type: rpc.CommandAddClientSession,
	}, []byte("client-conn")))

	count, err := agent.cfg.Settings.GetInt64(config.SectionAgent, config.KeyClients)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Empty(t, sessions.clients)
}

func TestBackendEndpoints(t *testing.T) {
	endpoints := backendEndpoints(3)
	require.Len(t, endpoints, 3)
	assert.Equal(t, "inproc://walletd/agent/backend/0", endpoints[0])
	assert.Equal(t, "inproc://walletd/agent/backend/2", endpoints[2])
}
