package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/walletd/agent/pkg/auth"
	"github.com/walletd/agent/pkg/broker"
	"github.com/walletd/agent/pkg/config"
	"github.com/walletd/agent/pkg/events"
	"github.com/walletd/agent/pkg/log"
	"github.com/walletd/agent/pkg/metrics"
	"github.com/walletd/agent/pkg/session"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "agentd - authenticated RPC broker for wallet backends",
	Long: `agentd sits between untrusted external RPC clients and a pool of
backend command processors. It authenticates client connections, load
balances commands across the worker pool, and routes asynchronous
completion and push events back to the originating client connection.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agentd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(keygenCmd)

	startCmd.Flags().String("config", "agentd.yaml", "Path to configuration file")
	startCmd.Flags().String("log-level", "", "Override configured log level")
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the agent",
	Long: `Start the broker: bind the backend worker pool, install the
authentication domain on the frontend socket, start all configured
sessions, and serve until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		logLevel, _ := cmd.Flags().GetString("log-level")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})

		return runAgent(cfg)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a CURVE keypair",
	Long: `Generate a Z85-encoded CURVE keypair. Run once for the server and
once for each client key you intend to configure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keypair, err := auth.GenerateKeypair()
		if err != nil {
			return err
		}

		fmt.Printf("public: %s\nsecret: %s\n", keypair.Public, keypair.Secret)
		return nil
	},
}

func runAgent(cfg *config.Config) error {
	settings, err := config.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer settings.Close()

	// Session counts outlive the bootstrap file: the configured values
	// seed the store on first run only
	clients, err := settings.SeedInt64(config.SectionAgent, config.KeyClients, cfg.Clients)
	if err != nil {
		return fmt.Errorf("failed to load client session count: %w", err)
	}
	servers, err := settings.SeedInt64(config.SectionAgent, config.KeyServers, cfg.Servers)
	if err != nil {
		return fmt.Errorf("failed to load server session count: %w", err)
	}

	eventBroker := events.NewBroker()
	eventBroker.Start()
	defer eventBroker.Stop()

	sessions := session.NewManager(eventBroker)

	agent, err := broker.New(broker.Config{
		SocketPath:       cfg.SocketPath,
		Endpoints:        cfg.Endpoints,
		Workers:          cfg.Workers,
		Clients:          clients,
		Servers:          servers,
		ServerPrivateKey: cfg.ServerPrivateKey,
		ServerPublicKey:  cfg.ServerPublicKey,
		ClientPrivateKey: cfg.ClientPrivateKey,
		ClientPublicKey:  cfg.ClientPublicKey,
		RefreshInterval:  cfg.RefreshInterval,
		Settings:         settings,
		Executor:         sessions,
		Sessions:         sessions,
		Events:           eventBroker,
	})
	if err != nil {
		return err
	}

	if err := agent.Start(context.Background()); err != nil {
		return err
	}
	defer agent.Stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				clog1 := log.WithComponent("metrics")
				clog1.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	clog2 := log.WithComponent("main")
	clog2.Info().Str("signal", sig.String()).Msg("Shutting down")

	return nil
}
