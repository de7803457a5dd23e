package broker

import (
	"fmt"

	zmq "github.com/pebbe/zmq4"

	"github.com/walletd/agent/pkg/events"
	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/metrics"
	"github.com/walletd/agent/pkg/registry"
	"github.com/walletd/agent/pkg/rpc"
)

// pushTag is the literal frame marking a notification on the wire
const pushTag = "PUSH"

// pushSender delivers a fully assembled notification frame sequence to the
// frontend. The production implementation queues frames to the relay
// goroutine, which owns the frontend socket.
type pushSender interface {
	SendPush(frames [][]byte) error
	Close()
}

// pushRelay turns completion and nym-addressed events into outbound
// notification frames. It runs fully decoupled from the request path; a slow
// push delivery never delays request handling.
type pushRelay struct {
	tasks       *registry.TaskRegistry
	connections *registry.ConnectionRegistry
	sender      pushSender
	sub         events.Subscriber
}

func newPushRelay(tasks *registry.TaskRegistry, connections *registry.ConnectionRegistry, sender pushSender) *pushRelay {
	return &pushRelay{
		tasks:       tasks,
		connections: connections,
		sender:      sender,
	}
}

// run consumes events until the subscription channel closes
func (p *pushRelay) run(sub events.Subscriber) {
	defer p.sender.Close()

	for event := range sub {
		p.handle(event)
	}
}

func (p *pushRelay) handle(event *events.Event) {
	logger := log.WithComponent("push")

	switch event.Type {
	case events.EventTaskComplete:
		p.handleTaskComplete(event)

	case events.EventOwner:
		p.handleOwnerEvent(event)

	case events.EventSessionStarted, events.EventSessionRefreshed:
		// Lifecycle events are not client-addressable

	default:
		logger.Warn().Str("type", string(event.Type)).Msg("Invalid message")
		metrics.PushesDiscarded.WithLabelValues("malformed").Inc()
	}
}

// handleTaskComplete consumes the task record and notifies the waiting
// connection. An unknown task id is a normal condition: the task may belong
// to a process instance that no longer exists.
func (p *pushRelay) handleTaskComplete(event *events.Event) {
	if event.TaskID == "" {
		clog1 := log.WithComponent("push")
		clog1.Warn().Msg("Invalid message")
		metrics.PushesDiscarded.WithLabelValues("malformed").Inc()
		return
	}

	record, ok := p.tasks.TakeAndRemove(event.TaskID)
	if !ok {
		clog2 := log.WithTask(event.TaskID)
		clog2.Debug().Msg("No connection waiting for task")
		metrics.PushesDiscarded.WithLabelValues("unknown_task").Inc()
		return
	}

	metrics.TasksPending.Set(float64(p.tasks.Len()))

	if err := p.sendTaskPush(record, event.TaskID, event.Success); err != nil {
		clog3 := log.WithTask(event.TaskID)
		clog3.Error().Err(err).Msg("Push notification delivery failed")
		return
	}

	clog4 := log.WithConnection(record.Connection)
	clog4.Info().
		Str("task_id", event.TaskID).
		Str("owner", record.Owner).
		Bool("result", event.Success).
		Msg("Task push delivered")
	metrics.PushesDelivered.WithLabelValues("task").Inc()
}

// handleOwnerEvent forwards a nym-addressed payload to the connection last
// associated with the nym. An unassociated nym is a normal condition.
func (p *pushRelay) handleOwnerEvent(event *events.Event) {
	if event.Owner == "" || event.Payload == nil || event.Instance == nil {
		clog5 := log.WithComponent("push")
		clog5.Warn().Msg("Invalid message")
		metrics.PushesDiscarded.WithLabelValues("malformed").Inc()
		return
	}

	connection, ok := p.connections.Resolve(event.Owner)
	if !ok {
		clog6 := log.WithComponent("push")
		clog6.Info().
			Str("owner", event.Owner).
			Msg("No connection associated with nym")
		metrics.PushesDiscarded.WithLabelValues("unassociated_owner").Inc()
		return
	}

	frames := instantiatePush(connection)
	frames = append(frames, event.Payload, event.Instance)

	if err := p.sender.SendPush(frames); err != nil {
		clog7 := log.WithConnection(connection)
		clog7.Error().Err(err).Msg("Push notification delivery failed")
		return
	}

	clog8 := log.WithConnection(connection)
	clog8.Info().
		Str("owner", event.Owner).
		Msg("Push notification delivered")
	metrics.PushesDelivered.WithLabelValues("owner").Inc()
}

func (p *pushRelay) sendTaskPush(record registry.TaskRecord, taskID string, result bool) error {
	payload, err := rpc.EncodePush(rpc.NewTaskPush(record.Owner, taskID, result))
	if err != nil {
		return err
	}

	frames := instantiatePush(record.Connection)
	frames = append(frames, payload)

	return p.sender.SendPush(frames)
}

// instantiatePush builds the invariant notification prefix: exactly one
// connection-identity frame, one empty delimiter, then the literal tag
func instantiatePush(connection []byte) [][]byte {
	return [][]byte{
		append([]byte(nil), connection...),
		{},
		[]byte(pushTag),
	}
}

// pushQueueSender queues notification frames to the relay goroutine over an
// inproc PUSH socket. The socket is created on first use so it lives on the
// push relay goroutine.
type pushQueueSender struct {
	socket *zmq.Socket
}

func newPushQueueSender() *pushQueueSender {
	return &pushQueueSender{}
}

func (s *pushQueueSender) SendPush(frames [][]byte) error {
	if s.socket == nil {
		socket, err := zmq.NewSocket(zmq.PUSH)
		if err != nil {
			return fmt.Errorf("failed to create push queue socket: %w", err)
		}
		if err := socket.Connect(pushQueueEndpoint); err != nil {
			socket.Close()
			return fmt.Errorf("failed to connect push queue: %w", err)
		}
		s.socket = socket
	}

	if _, err := s.socket.SendMessage(frames); err != nil {
		return fmt.Errorf("failed to queue push: %w", err)
	}

	return nil
}

func (s *pushQueueSender) Close() {
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}
