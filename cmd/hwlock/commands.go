package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hotwings/hwlock/internal/analyzer"
	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/collector"
	"github.com/hotwings/hwlock/internal/config"
	"github.com/hotwings/hwlock/internal/harness"
	"github.com/hotwings/hwlock/internal/locking"
	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/util/mathutil"
	"github.com/hotwings/hwlock/internal/wallet"
)

func newInitializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initialize",
		Short: "Call initialize() and log the transaction signature",
		Args:  cobra.NoArgs,
		RunE:  runInitialize,
	}
}

func runInitialize(_ *cobra.Command, _ []string) error {
	return invoke(harness.Call{Method: "initialize"})
}

// invoke runs one call and prints its outcome
func invoke(call harness.Call) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.harness.Invoke(ctx, call)
	printResult(result)

	if s.cfg.Output != "" {
		if werr := harness.WriteReport(s.cfg.Output, harness.NewInvocationReport(s.cfg, result, err)); werr != nil {
			s.logger.Warn("failed to write receipt", zap.String("path", s.cfg.Output), zap.Error(werr))
		}
	}
	return err
}

func printResult(result *harness.Result) {
	if result == nil {
		return
	}

	fmt.Printf("\n📋 %s\n", result.Instruction)
	for _, sr := range result.StageResults {
		mark := "✅"
		if !sr.Success {
			mark = "❌"
		}
		fmt.Printf("  %s %-10s %s\n", mark, sr.Stage, sr.Message)
	}

	switch {
	case !result.Signature.IsZero():
		fmt.Printf("\n  Signature: %s\n", result.Signature)
		if c := result.Confirmation; c != nil {
			fmt.Printf("  Status:    %s (slot %d, %s)\n", c.Status, c.Slot, c.Latency)
		}
	case result.Simulation != nil:
		fmt.Printf("\n🏁 Dry run complete: %d compute units\n", result.Simulation.UnitsConsumed)
	}

	if len(result.ExportedFiles) > 0 {
		fmt.Printf("\n📁 Receipts exported to:\n")
		for _, f := range result.ExportedFiles {
			fmt.Printf("  - %s\n", f)
		}
	}
	fmt.Println()
}

func newCallCmd() *cobra.Command {
	var (
		argsJSON string
		typed    []string
		accounts []string
		metas    []string
		signers  []string
	)

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Call any program instruction",
		Long: `Call any instruction by name. With an IDL in target/idl, arguments are
checked against the IDL types and accounts may be given by name. Without an
IDL, use typed arguments (--arg u64:1000) and positional --meta accounts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			call := harness.Call{Method: args[0]}

			var err error
			if argsJSON != "" {
				if call.Args, err = parseJSONArgs(argsJSON); err != nil {
					return err
				}
			}
			for _, a := range typed {
				v, err := parseTypedArg(a)
				if err != nil {
					return err
				}
				call.Args = append(call.Args, v)
			}
			if call.Accounts, err = parseAccounts(accounts); err != nil {
				return err
			}
			for _, m := range metas {
				meta, err := parseMeta(m)
				if err != nil {
					return err
				}
				call.Remaining = append(call.Remaining, meta)
			}
			for _, path := range signers {
				w, err := wallet.NewFromKeypairFile(path)
				if err != nil {
					return fmt.Errorf("signer %s: %w", path, err)
				}
				call.Signers = append(call.Signers, w)
			}

			return invoke(call)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&argsJSON, "args", "", `Arguments as a JSON array, e.g. '[1000, "abc"]'`)
	flags.StringArrayVar(&typed, "arg", nil, "Typed argument TYPE:VALUE (u8, u16, u32, u64, i64, bool, string, pubkey); repeatable")
	flags.StringArrayVar(&accounts, "account", nil, "Named account NAME=PUBKEY (requires an IDL); repeatable")
	flags.StringArrayVar(&metas, "meta", nil, "Positional account PUBKEY[:w][:s]; repeatable")
	flags.StringArrayVar(&signers, "signer", nil, "Additional signer keypair file; repeatable")
	return cmd
}

func newLockCmd() *cobra.Command {
	var (
		mint, projectWallet, authorityKeypair, programAuthority string
		amount                                                  uint64
		uiAmount                                                string
		decimals                                                uint8
	)

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock tokens with initialize_lock(amount)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mintKey, err := solana.PublicKeyFromBase58(mint)
			if err != nil {
				return fmt.Errorf("--mint: %w", err)
			}
			projectKey, err := solana.PublicKeyFromBase58(projectWallet)
			if err != nil {
				return fmt.Errorf("--project-wallet: %w", err)
			}

			if uiAmount != "" {
				if amount, err = mathutil.ParseUnits(uiAmount, decimals); err != nil {
					return fmt.Errorf("--ui-amount: %w", err)
				}
			}

			params := locking.InitializeLockParams{
				Mint:          mintKey,
				ProjectWallet: projectKey,
				Amount:        amount,
			}
			if authorityKeypair != "" {
				w, err := wallet.NewFromKeypairFile(authorityKeypair)
				if err != nil {
					return fmt.Errorf("--project-authority: %w", err)
				}
				params.ProjectWalletSigner = w
			}
			if programAuthority != "" {
				if params.Authority, err = solana.PublicKeyFromBase58(programAuthority); err != nil {
					return fmt.Errorf("--program-authority: %w", err)
				}
			}

			idl, err := locking.IDL()
			if err != nil {
				return err
			}

			return invoke(harness.Call{
				Method: "initialize_lock",
				Build: func(program *anchor.Program, payer solana.PublicKey) (*anchor.MethodBuilder, error) {
					p := params
					p.User = payer
					return locking.InitializeLock(program, p)
				},
				ProgramOptions: []anchor.ProgramOption{anchor.WithIDL(idl)},
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&mint, "mint", "", "Token mint (required)")
	flags.StringVar(&projectWallet, "project-wallet", "", "Token account the tokens are taken from (required)")
	flags.StringVar(&authorityKeypair, "project-authority", "", "Keypair file of the project wallet owner (default: the payer)")
	flags.StringVar(&programAuthority, "program-authority", "", "program_pda account (default: PDA of \"authority\")")
	flags.Uint64Var(&amount, "amount", 0, "Amount in base units")
	flags.StringVar(&uiAmount, "ui-amount", "", "Amount in whole tokens, scaled by --decimals")
	flags.Uint8Var(&decimals, "decimals", 9, "Mint decimals for --ui-amount")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("project-wallet")
	cmd.MarkFlagsMutuallyExclusive("amount", "ui-amount")
	cmd.MarkFlagsOneRequired("amount", "ui-amount")
	return cmd
}

func newPositionsCmd() *cobra.Command {
	var (
		users       []string
		csvFile     string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show locked positions of users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys := make([]solana.PublicKey, 0, len(users))
			for _, u := range users {
				k, err := solana.PublicKeyFromBase58(u)
				if err != nil {
					return fmt.Errorf("--user %s: %w", u, err)
				}
				keys = append(keys, k)
			}

			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			if len(keys) == 0 {
				keys = append(keys, s.harness.Payer().PublicKey())
			}

			program, err := s.harness.ResolveProgram()
			if err != nil {
				return err
			}

			a := analyzer.New(s.harness.Client(), &analyzer.Config{
				Concurrency: concurrency,
				Commitment:  client.Commitment(s.cfg.Commitment),
			}).WithLogger(s.logger)

			report, err := a.Analyze(ctx, program.ID, keys)
			if err != nil {
				return err
			}

			analyzer.PrintTable(os.Stdout, report)

			if csvFile != "" {
				if err := analyzer.ExportCSV(report, csvFile); err != nil {
					return err
				}
				fmt.Printf("\n📁 Positions exported to %s\n", csvFile)
			}
			if s.cfg.Output != "" {
				data, err := json.MarshalIndent(report.JSON(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal positions: %w", err)
				}
				if err := os.WriteFile(s.cfg.Output, data, 0644); err != nil {
					return fmt.Errorf("failed to write positions: %w", err)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&users, "user", nil, "User public key; repeatable (default: the payer)")
	flags.StringVar(&csvFile, "csv", "", "Export positions to a CSV file")
	flags.IntVar(&concurrency, "concurrency", 16, "Number of concurrent position fetches")
	return cmd
}

func newPDACmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "pda",
		Short: "Print the program-derived addresses of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			program, err := resolveOffline()
			if err != nil {
				return err
			}

			authority, bump, err := locking.AuthorityPDA(program.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Program:        %s\n", program.ID)
			fmt.Printf("Authority:      %s (bump %d)\n", authority, bump)

			if user == "" {
				return nil
			}
			userKey, err := solana.PublicKeyFromBase58(user)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			locked, lbump, err := locking.LockedTokensPDA(userKey, program.ID)
			if err != nil {
				return err
			}
			balance, bbump, err := locking.LockedBalancePDA(userKey, program.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Locked tokens:  %s (bump %d)\n", locked, lbump)
			fmt.Printf("Locked balance: %s (bump %d)\n", balance, bbump)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User public key")
	return cmd
}

// resolveOffline resolves the program id without a provider connection
func resolveOffline() (*anchor.Program, error) {
	cluster := cfg.Cluster
	if cluster == "" {
		cluster = config.InferCluster(cfg.URL)
	}
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = "."
	}

	ws, err := anchor.OpenWorkspace(workspace, cluster, nil)
	if err != nil {
		return nil, err
	}

	var opts []anchor.ProgramOption
	if cfg.ProgramID != "" {
		id, err := solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("--program-id: %w", err)
		}
		opts = append(opts, anchor.WithProgramID(id))
	}
	return locking.ResolveProgram(ws, opts...)
}

func newAirdropCmd() *cobra.Command {
	var (
		lamports uint64
		to       string
	)

	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Request an airdrop to the payer (local and test clusters)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			recipient := s.harness.Payer().PublicKey()
			if to != "" {
				if recipient, err = solana.PublicKeyFromBase58(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			cli := s.harness.Client()
			sig, err := cli.RequestAirdrop(ctx, recipient, lamports)
			if err != nil {
				return err
			}
			s.logger.Info("airdrop requested",
				zap.String("recipient", recipient.String()),
				zap.String("sol", mathutil.FormatUnits(lamports, 9)),
				zap.String("signature", sig.String()))

			if runCfg.SkipConfirmation {
				return nil
			}

			col := collector.New(cli, &collector.Config{
				PollInterval:   runCfg.PollInterval,
				ConfirmTimeout: s.cfg.Timeout,
				Commitment:     client.Commitment(s.cfg.Commitment),
				BatchSize:      1,
				ShowProgress:   runCfg.ShowProgress,
				ProgressWriter: os.Stderr,
			}).WithLogger(s.logger)
			col.TrackTransaction(sig, "airdrop", 0, time.Now())

			report, err := col.Collect(ctx)
			if err != nil {
				return err
			}
			collector.PrintSummary(os.Stdout, report)
			if report.Metrics.TotalConfirmed != 1 {
				return fmt.Errorf("airdrop %s was not confirmed", sig)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&lamports, "lamports", 1_000_000_000, "Lamports to request")
	flags.StringVar(&to, "to", "", "Recipient (default: the payer)")
	return cmd
}

// parseJSONArgs decodes a JSON array. Integers become uint64 (int64 when
// negative) so they encode the same way with or without an IDL.
func parseJSONArgs(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("--args must be a JSON array: %w", err)
	}
	for i, v := range raw {
		raw[i] = normalizeJSON(v)
	}
	return raw, nil
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u
		}
		if n, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return n
		}
		// keeps u128 and floats intact for IDL-driven encoding
		return x
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeJSON(x[k])
		}
		return x
	default:
		return v
	}
}

// parseTypedArg parses TYPE:VALUE into a statically typed value
func parseTypedArg(s string) (any, error) {
	typ, value, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("--arg %q: expected TYPE:VALUE", s)
	}

	bits := map[string]int{"u8": 8, "u16": 16, "u32": 32, "u64": 64}
	switch typ {
	case "u8", "u16", "u32", "u64":
		u, err := strconv.ParseUint(value, 10, bits[typ])
		if err != nil {
			return nil, fmt.Errorf("--arg %q: %w", s, err)
		}
		switch typ {
		case "u8":
			return uint8(u), nil
		case "u16":
			return uint16(u), nil
		case "u32":
			return uint32(u), nil
		default:
			return u, nil
		}
	case "i64":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--arg %q: %w", s, err)
		}
		return n, nil
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("--arg %q: %w", s, err)
		}
		return b, nil
	case "string":
		return value, nil
	case "pubkey":
		pk, err := solana.PublicKeyFromBase58(value)
		if err != nil {
			return nil, fmt.Errorf("--arg %q: %w", s, err)
		}
		return pk, nil
	default:
		return nil, fmt.Errorf("--arg %q: unsupported type %s", s, typ)
	}
}

// parseAccounts parses NAME=PUBKEY pairs
func parseAccounts(pairs []string) (map[string]solana.PublicKey, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]solana.PublicKey, len(pairs))
	for _, p := range pairs {
		name, key, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--account %q: expected NAME=PUBKEY", p)
		}
		pk, err := solana.PublicKeyFromBase58(key)
		if err != nil {
			return nil, fmt.Errorf("--account %s: %w", name, err)
		}
		out[name] = pk
	}
	return out, nil
}

// parseMeta parses PUBKEY[:w][:s]
func parseMeta(s string) (*solana.AccountMeta, error) {
	parts := strings.Split(s, ":")
	pk, err := solana.PublicKeyFromBase58(parts[0])
	if err != nil {
		return nil, fmt.Errorf("--meta %q: %w", s, err)
	}
	meta := solana.Meta(pk)
	for _, flag := range parts[1:] {
		switch flag {
		case "w":
			meta.WRITE()
		case "s":
			meta.SIGNER()
		default:
			return nil, fmt.Errorf("--meta %q: unknown flag %q", s, flag)
		}
	}
	return meta, nil
}
