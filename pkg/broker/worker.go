package broker

import (
	"context"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/metrics"
	"github.com/walletd/agent/pkg/rpc"
)

// runWorker services one backend REP socket. Each worker blocks on its own
// private endpoint and processes one request at a time; the pool as a whole
// gives the natural fan-out.
func (a *Agent) runWorker(index int, endpoint string, ready chan<- error) {
	defer a.wg.Done()

	logger := log.WithComponent("worker").With().Int("worker", index).Logger()

	socket, err := zmq.NewSocket(zmq.REP)
	if err != nil {
		ready <- err
		return
	}
	defer socket.Close()

	if err := socket.SetRcvtimeo(250 * time.Millisecond); err != nil {
		ready <- err
		return
	}

	if err := socket.Bind(endpoint); err != nil {
		ready <- err
		return
	}

	logger.Info().Str("endpoint", endpoint).Msg("Backend worker listening")
	ready <- nil

	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		body, err := socket.RecvMessageBytes(0)
		if err != nil {
			// Timeout just re-checks for shutdown
			continue
		}

		reply := a.handleBackendRequest(body)
		if _, err := socket.SendMessage(reply); err != nil {
			logger.Error().Err(err).Msg("Failed to send reply")
		}
	}
}

// handleBackendRequest processes one identity-tagged request relayed by the
// dispatcher. The body carries the serialized command followed by the
// connection identity; anything shorter is a protocol violation by the
// dispatcher, not a client error, and the process must not continue.
func (a *Agent) handleBackendRequest(body [][]byte) [][]byte {
	if len(body) < 2 {
		clog1 := log.WithComponent("worker")
		clog1.Fatal().
			Int("frames", len(body)).
			Msg("Malformed internal envelope")
	}

	request := body[0]
	identity := body[len(body)-1]

	// Client-declared associations are recorded before execution so a
	// crash mid-command cannot orphan push delivery
	cmd, err := rpc.DecodeCommand(request)
	if err != nil {
		clog2 := log.WithConnection(identity)
		clog2.Warn().Err(err).Msg("Undecodable command")
		return a.encodeReply(errorResponse())
	}

	for _, nym := range cmd.AssociateNym {
		a.connections.Overwrite(nym, identity)
	}

	response, err := a.cfg.Executor.Execute(context.Background(), cmd)
	if err != nil {
		clog3 := log.WithConnection(identity)
		clog3.Error().Err(err).Msg("Command execution failed")
		response = &rpc.Response{
			Version: rpc.CommandVersion,
			ID:      cmd.ID,
			Type:    cmd.Type,
			Session: cmd.Session,
			Status:  []rpc.Status{{Index: 0, Code: rpc.StatusError}},
		}
	}

	a.interpretResponse(identity, cmd, response)

	metrics.RequestsTotal.WithLabelValues(string(cmd.Type), string(response.PrimaryStatus())).Inc()
	metrics.TasksPending.Set(float64(a.tasks.Len()))
	metrics.NymsAssociated.Set(float64(a.connections.Len()))

	return a.encodeReply(response)
}

// interpretResponse applies the command-type table: which nym (if any) owns a
// returned task, which responses trigger pool scaling, and which identifiers
// create connection associations.
func (a *Agent) interpretResponse(identity []byte, cmd *rpc.Command, response *rpc.Response) {
	var (
		taskOwner    string
		producesTask bool
	)

	switch cmd.Type {
	case rpc.CommandAddClientSession:
		if response.Success() {
			a.growClients(context.Background())
		}

	case rpc.CommandAddServerSession:
		if response.Success() {
			a.growServers()
		}

	case rpc.CommandCreateNym:
		for _, nym := range response.Identifier {
			a.connections.Associate(nym, identity)
		}

	case rpc.CommandRegisterNym,
		rpc.CommandIssueUnitDefinition,
		rpc.CommandCreateAccount,
		rpc.CommandCreateCompatibleAccount:
		taskOwner = cmd.Owner
		producesTask = taskOwner != ""

	case rpc.CommandSendPayment:
		if response.Queued() && cmd.SendPayment != nil {
			taskOwner = a.accountOwner(cmd.Session, cmd.SendPayment.SourceAccount)
			producesTask = taskOwner != ""
		}

	case rpc.CommandAcceptPendingPayments:
		if response.Queued() && len(cmd.AcceptPendingPayment) > 0 {
			taskOwner = a.accountOwner(cmd.Session, cmd.AcceptPendingPayment[0].DestinationAccount)
			producesTask = taskOwner != ""
		}

	default:
		// No task association for this command type
	}

	// Only the first returned task is associated; additional tasks in one
	// response stay unregistered
	if producesTask && response.Queued() && len(response.Task) > 0 {
		a.tasks.Register(response.Task[0].ID, identity, taskOwner)
	}
}

// accountOwner resolves the nym controlling an account through the executor,
// on the client session the command declared
func (a *Agent) accountOwner(session uint32, accountID string) string {
	clientIndex, err := rpc.ClientIndex(session)
	if err != nil {
		clog4 := log.WithComponent("worker")
		clog4.Warn().Err(err).Msg("Task owner resolution on server session")
		return ""
	}

	owner, err := a.cfg.Executor.AccountOwner(clientIndex, accountID)
	if err != nil {
		clog5 := log.WithComponent("worker")
		clog5.Warn().
			Err(err).
			Str("account", accountID).
			Msg("Failed to resolve account owner")
		return ""
	}

	return owner
}

func (a *Agent) encodeReply(response *rpc.Response) [][]byte {
	data, err := rpc.EncodeResponse(response)
	if err != nil {
		// Responses are plain structs; failure to marshal one is a
		// programming error
		clog6 := log.WithComponent("worker")
		clog6.Fatal().Err(err).Msg("Unencodable response")
	}

	return [][]byte{data}
}

func errorResponse() *rpc.Response {
	return &rpc.Response{
		Version: rpc.CommandVersion,
		Type:    rpc.CommandError,
		Status:  []rpc.Status{{Index: 0, Code: rpc.StatusError}},
	}
}
