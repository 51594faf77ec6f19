package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hotwings/hwlock/internal/config"
	"github.com/hotwings/hwlock/internal/harness"
	"github.com/hotwings/hwlock/internal/metrics"
)

var (
	version = "dev"
	cfg     = &config.Config{}
	runCfg  = harness.DefaultRunConfig()
	envFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hwlock",
		Short: "Client harness for the hotwings-locking program",
		Long: `hwlock configures an Anchor provider from flags, the environment
(ANCHOR_PROVIDER_URL, ANCHOR_WALLET), a .env file or Anchor.toml, resolves
the hotwings_locking program and invokes it. Without a subcommand it calls
initialize() and logs the transaction signature.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInitialize,
	}

	registerFlags(rootCmd)

	rootCmd.AddCommand(
		newInitializeCmd(),
		newCallCmd(),
		newLockCmd(),
		newPositionsCmd(),
		newPDACmd(),
		newAirdropCmd(),
	)
	return rootCmd
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	// Provider
	flags.StringVar(&cfg.URL, "url", "", "RPC endpoint URL (default: $ANCHOR_PROVIDER_URL)")
	flags.StringVar(&cfg.Cluster, "cluster", "", "Cluster moniker or URL; picks the endpoint when --url is unset (default: inferred)")
	flags.StringVar(&cfg.Wallet, "wallet", "", "Keypair file (default: $ANCHOR_WALLET)")
	flags.StringVar(&cfg.Mnemonic, "mnemonic", "", "BIP39 mnemonic (alternative to --wallet)")
	flags.StringVar(&cfg.Passphrase, "passphrase", "", "BIP39 passphrase for --mnemonic")
	flags.StringVar(&cfg.DerivationPath, "derivation-path", "", "SLIP-10 path for --mnemonic, e.g. m/44'/501'/0'/0'")
	flags.StringVar(&envFile, "env-file", ".env", "Dotenv file consulted after the environment")

	// Program resolution
	flags.StringVar(&cfg.Workspace, "workspace", ".", "Anchor workspace root (Anchor.toml, target/idl)")
	flags.StringVar(&cfg.ProgramName, "program", config.DefaultProgramName, "Program name in the workspace")
	flags.StringVar(&cfg.ProgramID, "program-id", "", "Program id (overrides Anchor.toml and the IDL)")

	// Transaction options
	flags.StringVar(&cfg.Commitment, "commitment", "", "Commitment to wait for: processed, confirmed, finalized (default: processed)")
	flags.StringVar(&cfg.PreflightCommitment, "preflight-commitment", "", "Preflight simulation commitment (default: processed)")
	flags.BoolVar(&cfg.SkipPreflight, "skip-preflight", false, "Send without preflight simulation")
	flags.BoolVar(&cfg.DryRun, "dry-run", false, "Simulate the transaction instead of sending it")

	// Output
	flags.StringVar(&cfg.Output, "output", "", "Write the JSON receipt to this file")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")

	// Advanced
	flags.DurationVar(&cfg.Timeout, "timeout", 0, "Confirmation timeout (default: 60s)")
	flags.Float64Var(&cfg.RateLimit, "rate-limit", 0, "Max RPC requests per second (0 = unlimited)")

	// Run configuration flags
	flags.BoolVar(&runCfg.SkipConfirmation, "skip-confirmation", false, "Return after sending (fire-and-forget mode)")
	flags.DurationVar(&runCfg.PollInterval, "poll-interval", runCfg.PollInterval, "Signature status poll interval")
	flags.BoolVar(&runCfg.ShowProgress, "progress", false, "Show a spinner while confirming")
	flags.BoolVar(&runCfg.ExportReport, "export", false, "Export receipts to JSON and CSV files")
	flags.StringVar(&runCfg.OutputDir, "output-dir", runCfg.OutputDir, "Output directory for exported receipts")

	// Prometheus metrics flags
	flags.BoolVar(&cfg.MetricsEnabled, "metrics", false, "Enable Prometheus metrics endpoint")
	flags.IntVar(&cfg.MetricsPort, "metrics-port", 9090, "Port for Prometheus metrics endpoint")
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// session bundles what every networked command needs
type session struct {
	cfg     *config.Config
	harness *harness.Harness
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// openSession loads the configuration and connects to the provider
func openSession(ctx context.Context) (*session, error) {
	loaded, err := config.Load(cfg, envFile)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(loaded.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &session{cfg: loaded, logger: logger}

	if loaded.MetricsEnabled {
		s.metrics = metrics.NewMetrics("hwlock").WithLogger(logger)
		if err := s.metrics.Start(ctx, loaded.MetricsPort); err != nil {
			return nil, fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
	}

	h, err := harness.New(ctx, loaded, harness.WithLogger(logger), harness.WithMetrics(s.metrics))
	if err != nil {
		s.close()
		return nil, err
	}
	s.harness = h.WithRunConfig(runCfg)
	return s, nil
}

func (s *session) close() {
	if s.harness != nil {
		s.harness.Close()
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.Stop(ctx)
	}
	_ = s.logger.Sync()
}
