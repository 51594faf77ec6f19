package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/collector"
	"github.com/hotwings/hwlock/internal/config"
	"github.com/hotwings/hwlock/internal/locking"
	"github.com/hotwings/hwlock/internal/metrics"
	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/util/mathutil"
	"github.com/hotwings/hwlock/internal/wallet"
)

// Harness invokes program instructions through a configured provider
type Harness struct {
	cfg       *config.Config
	runCfg    *RunConfig
	client    *client.Client
	payer     *wallet.Wallet
	workspace *anchor.Workspace
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option customises a Harness
type Option func(*Harness)

// WithLogger sets the log sink
func WithLogger(logger *zap.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithMetrics records RPC, stage and invocation metrics into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithPayer uses w instead of loading the configured wallet
func WithPayer(w *wallet.Wallet) Option {
	return func(h *Harness) { h.payer = w }
}

// LoadWallet opens the wallet named by the configuration
func LoadWallet(cfg *config.Config) (*wallet.Wallet, error) {
	if cfg.Mnemonic != "" {
		return wallet.NewFromMnemonic(cfg.Mnemonic, cfg.Passphrase, cfg.DerivationPath)
	}
	return wallet.NewFromKeypairFile(cfg.Wallet)
}

// New validates cfg, opens the wallet, connects to the provider and opens
// the workspace
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid configuration: %w", ErrCallFailed, err)
	}

	h := &Harness{cfg: cfg, runCfg: DefaultRunConfig()}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}

	if h.payer == nil {
		w, err := LoadWallet(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load wallet: %w", ErrCallFailed, err)
		}
		h.payer = w
	}

	cli, err := client.New(ctx, cfg.URL, &client.Options{
		RateLimit: cfg.RateLimit,
		Metrics:   h.metrics,
		Logger:    h.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallFailed, err)
	}
	h.client = cli

	ws, err := anchor.OpenWorkspace(cfg.Workspace, cfg.Cluster, h.logger)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: failed to open workspace: %w", ErrCallFailed, err)
	}
	h.workspace = ws

	return h, nil
}

// WithRunConfig sets the run configuration
func (h *Harness) WithRunConfig(runCfg *RunConfig) *Harness {
	h.runCfg = runCfg
	return h
}

// Client returns the RPC client
func (h *Harness) Client() *client.Client {
	return h.client
}

// Payer returns the fee payer
func (h *Harness) Payer() *wallet.Wallet {
	return h.payer
}

// Config returns the validated configuration
func (h *Harness) Config() *config.Config {
	return h.cfg
}

// Close releases the RPC connection
func (h *Harness) Close() {
	h.client.Close()
}

// ResolveProgram resolves the configured program from the workspace
func (h *Harness) ResolveProgram(opts ...anchor.ProgramOption) (*anchor.Program, error) {
	base := make([]anchor.ProgramOption, 0, 2+len(opts))
	if h.cfg.ProgramID != "" {
		id, err := solana.PublicKeyFromBase58(h.cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("program id: %w", err)
		}
		base = append(base, anchor.WithProgramID(id))
	}
	if anchor.SnakeCase(h.cfg.ProgramName) == locking.Name {
		base = append(base, anchor.WithDefaultID(locking.ProgramID))
	}
	return h.workspace.Program(h.cfg.ProgramName, append(base, opts...)...)
}

// Initialize calls initialize() with no arguments and returns the
// transaction signature
func (h *Harness) Initialize(ctx context.Context) (solana.Signature, error) {
	result, err := h.Invoke(ctx, Call{Method: "initialize"})
	if err != nil {
		return solana.Signature{}, err
	}
	return result.Signature, nil
}

// invocation carries state between the stages of one call
type invocation struct {
	call    Call
	result  *Result
	program *anchor.Program

	instruction string
	tx          *solana.Transaction
	lastValid   uint64
	sentAt      time.Time
}

type stageStep struct {
	stage Stage
	fn    func(context.Context, *invocation) error
}

// Invoke runs one call through every stage. The returned error wraps
// ErrCallFailed; the Result is returned even on failure.
func (h *Harness) Invoke(ctx context.Context, call Call) (*Result, error) {
	inv := &invocation{call: call, result: NewResult()}
	inv.result.Payer = h.payer.PublicKey()
	inv.instruction = anchor.SnakeCase(call.Method)

	stages := []stageStep{
		{StageConfigure, h.configure},
		{StageResolve, h.resolve},
		{StageBuild, h.build},
	}
	if h.cfg.DryRun {
		stages = append(stages, stageStep{StageSimulate, h.simulate})
	} else {
		stages = append(stages, stageStep{StageSend, h.send})
		if !h.runCfg.SkipConfirmation {
			stages = append(stages, stageStep{StageConfirm, h.confirm})
		}
	}
	stages = append(stages, stageStep{StageReport, h.report})

	for _, s := range stages {
		if err := h.runStage(ctx, inv, s.stage, s.fn); err != nil {
			inv.result.Finalize()
			h.metrics.RecordInvocation(inv.instruction, "failed")
			return inv.result, fmt.Errorf("%w: %s: %w", ErrCallFailed, s.stage, err)
		}
	}

	inv.result.Finalize()
	status := "success"
	if h.cfg.DryRun {
		status = "simulated"
	}
	h.metrics.RecordInvocation(inv.instruction, status)
	return inv.result, nil
}

// runStage executes a stage with timing and error handling
func (h *Harness) runStage(ctx context.Context, inv *invocation, stage Stage, fn func(context.Context, *invocation) error) error {
	h.logger.Debug("stage started", zap.String("stage", stage.String()))

	start := time.Now()
	err := fn(ctx, inv)
	duration := time.Since(start)
	h.metrics.RecordStageDuration(stage.String(), duration)

	sr := &StageResult{
		Stage:    stage,
		Success:  err == nil,
		Duration: duration,
	}

	if err != nil {
		sr.Error = err
		sr.Message = fmt.Sprintf("Failed: %v", err)
		h.logger.Error("stage failed", zap.String("stage", stage.String()), zap.Duration("duration", duration), zap.Error(err))
	} else {
		sr.Message = fmt.Sprintf("Completed in %s", duration)
		h.logger.Debug("stage completed", zap.String("stage", stage.String()), zap.Duration("duration", duration))
	}

	inv.result.AddStageResult(sr)
	return err
}

func (h *Harness) commitment() client.Commitment {
	return client.Commitment(h.cfg.Commitment)
}

// Stage CONFIGURE: the provider answers and the payer can pay
func (h *Harness) configure(ctx context.Context, inv *invocation) error {
	version, err := h.client.GetVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach provider %s: %w", h.cfg.URL, err)
	}

	balance, err := h.client.GetBalance(ctx, inv.result.Payer, h.commitment())
	if err != nil {
		return fmt.Errorf("failed to get payer balance: %w", err)
	}

	h.logger.Info("provider configured",
		zap.String("url", h.cfg.URL),
		zap.String("cluster", h.cfg.Cluster),
		zap.String("node_version", version.SolanaCore),
		zap.String("payer", inv.result.Payer.String()),
		zap.String("balance_sol", mathutil.FormatUnits(balance, 9)),
		zap.String("commitment", h.cfg.Commitment))

	if balance == 0 && !h.cfg.DryRun {
		return fmt.Errorf("%w: %s", ErrPayerUnfunded, inv.result.Payer)
	}
	return nil
}

// Stage RESOLVE: find the program id and interface
func (h *Harness) resolve(_ context.Context, inv *invocation) error {
	program, err := h.ResolveProgram(inv.call.ProgramOptions...)
	if err != nil {
		return err
	}
	inv.program = program
	inv.result.Program = program.ID

	h.logger.Info("program resolved",
		zap.String("program", program.Name),
		zap.String("id", program.ID.String()),
		zap.Bool("idl", program.IDL != nil))
	return nil
}

// Stage BUILD: encode the instruction and sign a transaction
func (h *Harness) build(ctx context.Context, inv *invocation) error {
	var (
		b   *anchor.MethodBuilder
		err error
	)
	if inv.call.Build != nil {
		if b, err = inv.call.Build(inv.program, inv.result.Payer); err != nil {
			return err
		}
	} else {
		b = inv.program.Methods(inv.call.Method).Args(inv.call.Args...)
		if len(inv.call.Accounts) > 0 {
			b.Accounts(inv.call.Accounts)
		}
	}
	b.AccountMetas(inv.call.Remaining...).Signers(inv.call.Signers...)
	inv.instruction = b.Name()
	inv.result.Instruction = b.Name()

	ix, err := b.Instruction()
	if err != nil {
		return err
	}

	latest, err := h.client.GetLatestBlockhash(ctx, h.commitment())
	if err != nil {
		return fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(inv.result.Payer, []solana.Instruction{ix}, latest.Blockhash)
	if err != nil {
		return err
	}
	signers := append([]solana.Signer{h.payer}, b.SignerList()...)
	if err := solana.SignTransaction(tx, signers...); err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	inv.tx = tx
	inv.lastValid = latest.LastValidBlockHeight

	h.logger.Debug("transaction built",
		zap.String("instruction", inv.instruction),
		zap.Int("accounts", len(ix.AccountValues)),
		zap.Int("data_len", len(ix.DataBytes)),
		zap.String("blockhash", latest.Blockhash.String()),
		zap.Uint64("last_valid_block_height", latest.LastValidBlockHeight))
	return nil
}

// Stage SEND: submit with preflight unless skipped
func (h *Harness) send(ctx context.Context, inv *invocation) error {
	sig, err := h.client.SendTransaction(ctx, inv.tx, client.SendOptions{
		SkipPreflight:       h.cfg.SkipPreflight,
		PreflightCommitment: client.Commitment(h.cfg.PreflightCommitment),
	})
	if err != nil {
		var rpcErr *client.RPCError
		if errors.As(err, &rpcErr) {
			if pe := anchor.ParseProgramError(rpcErr.Logs, inv.program.IDL); pe != nil {
				return fmt.Errorf("%w: %w", pe, err)
			}
		}
		return err
	}

	inv.sentAt = time.Now()
	inv.result.Signature = sig
	h.logger.Debug("transaction sent", zap.String("signature", sig.String()))
	return nil
}

// Stage SIMULATE: dry-run replacement for SEND
func (h *Harness) simulate(ctx context.Context, inv *invocation) error {
	sim, err := h.client.SimulateTransaction(ctx, inv.tx, h.commitment())
	if err != nil {
		return err
	}
	inv.result.Simulation = sim

	if sim.Err != nil {
		if pe := anchor.ParseProgramError(sim.Logs, inv.program.IDL); pe != nil {
			return fmt.Errorf("%w: %w", ErrSimulationFailed, pe)
		}
		return fmt.Errorf("%w: %v", ErrSimulationFailed, sim.Err)
	}
	return nil
}

// Stage CONFIRM: wait for the requested commitment
func (h *Harness) confirm(ctx context.Context, inv *invocation) error {
	col := collector.New(h.client, &collector.Config{
		PollInterval:   h.runCfg.PollInterval,
		ConfirmTimeout: h.cfg.Timeout,
		Commitment:     h.commitment(),
		BatchSize:      1,
		ShowProgress:   h.runCfg.ShowProgress,
		ProgressWriter: os.Stderr,
	}).WithLogger(h.logger).WithMetrics(h.metrics)

	sig := inv.result.Signature
	col.TrackTransaction(sig, inv.instruction, inv.lastValid, inv.sentAt)

	report, err := col.Collect(ctx)
	if err != nil {
		return err
	}
	inv.result.Report = report

	info, ok := report.Find(sig)
	if !ok {
		return fmt.Errorf("signature %s was not tracked", sig)
	}
	inv.result.Confirmation = info

	switch info.Status {
	case collector.TxConfirmSuccess:
		return nil
	case collector.TxConfirmFailed:
		if pe := anchor.ProgramErrorFromTxErr(info.TxErr, inv.program.ID.String(), inv.program.IDL); pe != nil {
			return fmt.Errorf("%w: %w", ErrTransactionFailed, pe)
		}
		return fmt.Errorf("%w: %v", ErrTransactionFailed, info.TxErr)
	case collector.TxConfirmExpired:
		return fmt.Errorf("%w: %s", ErrBlockhashExpired, sig)
	default:
		return fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, sig, h.cfg.Timeout)
	}
}

// Stage REPORT: write the receipt to the log sink
func (h *Harness) report(_ context.Context, inv *invocation) error {
	if h.cfg.DryRun {
		sim := inv.result.Simulation
		h.logger.Info("Simulation succeeded",
			zap.String("instruction", inv.instruction),
			zap.Uint64("units_consumed", sim.UnitsConsumed),
			zap.Strings("logs", sim.Logs))
		return nil
	}

	fields := []zap.Field{
		zap.String("signature", inv.result.Signature.String()),
		zap.String("instruction", inv.instruction),
		zap.String("program", inv.result.Program.String()),
	}
	if c := inv.result.Confirmation; c != nil {
		fields = append(fields, zap.Uint64("slot", c.Slot), zap.Duration("latency", c.Latency))
	}
	h.logger.Info("Your transaction signature", fields...)

	if h.runCfg.ExportReport && inv.result.Report != nil {
		files, err := collector.NewExporter(h.runCfg.OutputDir).ExportAll(inv.result.Report)
		if err != nil {
			return err
		}
		inv.result.ExportedFiles = files
		h.logger.Info("receipts exported", zap.Strings("files", files))
	}
	return nil
}
