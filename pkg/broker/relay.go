package broker

import (
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/metrics"
)

// runRelay owns the frontend ROUTER, the internal DEALER and the push queue
// PULL socket. All three live on this goroutine; libzmq sockets are not
// shared across threads. The DEALER is connected to every backend endpoint,
// which makes libzmq round-robin requests across the worker pool and
// fair-queue the replies.
func (a *Agent) runRelay(ready chan<- error) {
	defer a.wg.Done()

	logger := log.WithComponent("relay")

	frontend, internal, pushQueue, err := a.createRelaySockets()
	if err != nil {
		ready <- err
		return
	}
	defer frontend.Close()
	defer internal.Close()
	defer pushQueue.Close()

	ready <- nil

	poller := zmq.NewPoller()
	poller.Add(frontend, zmq.POLLIN)
	poller.Add(internal, zmq.POLLIN)
	poller.Add(pushQueue, zmq.POLLIN)

	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		polled, err := poller.Poll(250 * time.Millisecond)
		if err != nil {
			logger.Error().Err(err).Msg("Relay poll failed")
			continue
		}

		for _, item := range polled {
			switch item.Socket {
			case frontend:
				message, err := frontend.RecvMessageBytes(0)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to receive frontend message")
					continue
				}
				a.forwardRequest(internal, message)

			case internal:
				// Route replies back to the original requestor via
				// the frontend socket
				message, err := internal.RecvMessageBytes(0)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to receive backend reply")
					continue
				}
				if _, err := frontend.SendMessage(message); err != nil {
					logger.Error().Err(err).Msg("Failed to route reply")
				}

			case pushQueue:
				message, err := pushQueue.RecvMessageBytes(0)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to receive queued push")
					continue
				}
				if _, err := frontend.SendMessage(message); err != nil {
					logger.Error().Err(err).Msg("Push notification delivery failed")
				}
			}
		}
	}
}

// forwardRequest tags an inbound request with its connection identity and
// relays it to the worker pool
func (a *Agent) forwardRequest(internal *zmq.Socket, message [][]byte) {
	logger := log.WithComponent("relay")

	envelope, body := splitEnvelope(message)
	if len(envelope) == 0 || len(body) == 0 {
		logger.Warn().Msg("Empty command")
		metrics.RequestsDropped.Inc()
		return
	}

	// The transport-assigned connection identity is the last routing frame
	identity := envelope[len(envelope)-1]
	if len(identity) == 0 {
		logger.Warn().Msg("Missing connection identity")
		metrics.RequestsDropped.Inc()
		return
	}

	clog1 := log.WithConnection(identity)
	clog1.Debug().Msg("Relaying request")

	// Append the identity as the final frame so the worker can correlate
	// push notifications with this connection
	tagged := append(message, identity)
	if _, err := internal.SendMessage(tagged); err != nil {
		logger.Error().Err(err).Msg("Failed to relay request")
	}
}

// splitEnvelope separates the routing envelope (identity frames up to the
// first empty delimiter) from the body frames after it
func splitEnvelope(message [][]byte) (envelope, body [][]byte) {
	for i, frame := range message {
		if len(frame) == 0 {
			return message[:i], message[i+1:]
		}
	}

	return message, nil
}

func (a *Agent) createRelaySockets() (frontend, internal, pushQueue *zmq.Socket, err error) {
	closeAll := func() {
		if frontend != nil {
			frontend.Close()
		}
		if internal != nil {
			internal.Close()
		}
		if pushQueue != nil {
			pushQueue.Close()
		}
	}

	internal, err = zmq.NewSocket(zmq.DEALER)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create internal socket: %w", err)
	}

	for _, endpoint := range a.backendEndpoints {
		if err = internal.Connect(endpoint); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("failed to connect backend %s: %w", endpoint, err)
		}
	}

	pushQueue, err = zmq.NewSocket(zmq.PULL)
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("failed to create push queue socket: %w", err)
	}

	if err = pushQueue.Bind(pushQueueEndpoint); err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("failed to bind push queue: %w", err)
	}

	frontend, err = zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("failed to create frontend socket: %w", err)
	}

	// The authentication domain and private key go on before bind; no
	// frame is accepted from an unauthenticated peer
	if err = frontend.ServerAuthCurve(ZapDomain, a.cfg.ServerPrivateKey); err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("failed to configure frontend authentication: %w", err)
	}

	if err = frontend.Bind(a.cfg.SocketPath); err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("failed to bind frontend %s: %w", a.cfg.SocketPath, err)
	}

	for _, endpoint := range a.cfg.Endpoints {
		if err = frontend.Bind(endpoint); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("failed to bind frontend %s: %w", endpoint, err)
		}
	}

	return frontend, internal, pushQueue, nil
}
