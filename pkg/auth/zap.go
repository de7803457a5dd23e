package auth

import (
	"context"
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/walletd/agent/pkg/log"
)

// zapEndpoint is fixed by the ZeroMQ authentication protocol
const zapEndpoint = "inproc://zeromq.zap.01"

const zapVersion = "1.0"

// Service answers ZAP requests for the agent's authentication domain. libzmq
// consults it for every new connection attempt before any frame is delivered
// to the frontend socket.
type Service struct {
	gate   *Gate
	domain string
	socket *zmq.Socket
	cancel context.CancelFunc
	done   chan struct{}
}

// StartService binds the ZAP handler socket and begins answering requests.
// It must be started before the frontend socket binds; the socket shares the
// process-wide ZeroMQ context with the broker sockets.
func StartService(gate *Gate, domain string) (*Service, error) {
	socket, err := zmq.NewSocket(zmq.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZAP socket: %w", err)
	}

	if err := socket.SetRcvtimeo(250 * time.Millisecond); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set ZAP receive timeout: %w", err)
	}

	if err := socket.Bind(zapEndpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind ZAP endpoint: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		gate:   gate,
		domain: domain,
		socket: socket,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(ctx)

	return s, nil
}

// Stop shuts down the ZAP handler
func (s *Service) Stop() {
	s.cancel()
	<-s.done
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	defer s.socket.Close()

	logger := log.WithComponent("auth")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		request, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			// Timeout just re-checks for shutdown
			continue
		}

		reply := s.handle(request)
		if _, err := s.socket.SendMessage(reply); err != nil {
			logger.Error().Err(err).Msg("Failed to send ZAP reply")
		}
	}
}

// handle answers a single ZAP request. Request frames: version, request id,
// domain, address, identity, mechanism, credentials...
func (s *Service) handle(request [][]byte) []string {
	logger := log.WithComponent("auth")

	if len(request) < 6 {
		logger.Warn().Int("frames", len(request)).Msg("Malformed ZAP request")
		return []string{zapVersion, "", "500", "Malformed request", "", ""}
	}

	version := string(request[0])
	requestID := string(request[1])
	domain := string(request[2])
	mechanism := string(request[5])

	if version != zapVersion {
		return []string{zapVersion, requestID, "500", "Unsupported ZAP version", "", ""}
	}

	if domain != s.domain {
		logger.Debug().Str("domain", domain).Msg("Rejecting unknown authentication domain")
		return []string{zapVersion, requestID, "400", "Unknown domain", "", ""}
	}

	var credential []byte
	if len(request) > 6 {
		credential = request[6]
	}

	decision := s.gate.Authenticate(mechanism, credential)
	if !decision.Accepted {
		logger.Info().
			Str("mechanism", mechanism).
			Str("reason", decision.Reason).
			Msg("Authentication rejected")
		return []string{zapVersion, requestID, "400", decision.Reason, "", ""}
	}

	logger.Debug().Msg("Authentication accepted")

	return []string{zapVersion, requestID, "200", decision.Reason, "", ""}
}
