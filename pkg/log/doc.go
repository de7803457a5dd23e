/*
Package log provides structured logging for the agent using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and support
filtering by severity level.

# Usage

Initializing the global logger:

	import "github.com/walletd/agent/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Component loggers:

	logger := log.WithComponent("broker")
	logger.Info().Str("endpoint", endpoint).Msg("Frontend bound")

Domain-specific child loggers attach the fields that recur throughout the
broker: session index, hex-encoded connection identity, and task id:

	log.WithConnection(identity).Debug().Msg("Request tagged")
	log.WithTask(taskID).Debug().Msg("Completion delivered")

# Integration Points

This package integrates with:

  - pkg/broker: relay, worker, push and scaler logging
  - pkg/auth: authentication decisions
  - pkg/session: session lifecycle logging
  - cmd/agentd: logger initialization from CLI flags
*/
package log
