package analyzer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hotwings/hwlock/internal/locking"
	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/util/mathutil"
)

// Analyzer inspects locked positions
type Analyzer struct {
	client Client
	config *Config
	logger *zap.Logger
}

// New creates a new Analyzer instance
func New(client Client, config *Config) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.NumCPU() * 4
	}
	if config.Commitment == "" {
		config.Commitment = DefaultConfig().Commitment
	}
	return &Analyzer{
		client: client,
		config: config,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger
func (a *Analyzer) WithLogger(logger *zap.Logger) *Analyzer {
	a.logger = logger
	return a
}

// Analyze fetches the position of every user. Duplicate users are fetched
// once; positions keep the order of first appearance.
func (a *Analyzer) Analyze(ctx context.Context, program solana.PublicKey, users []solana.PublicKey) (*Report, error) {
	start := time.Now()

	unique := make([]solana.PublicKey, 0, len(users))
	seen := make(map[solana.PublicKey]bool, len(users))
	for _, u := range users {
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	a.logger.Info("fetching positions",
		zap.String("program", program.String()),
		zap.Int("users", len(unique)),
		zap.Int("concurrency", a.config.Concurrency))

	positions := make([]*locking.Position, len(unique))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.config.Concurrency)

	for i, user := range unique {
		i, user := i, user
		eg.Go(func() error {
			pos, err := locking.FetchPosition(egCtx, a.client, program, user, a.config.Commitment)
			if err != nil {
				return fmt.Errorf("position of %s: %w", user, err)
			}
			positions[i] = pos
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	report := summarize(program, positions)
	report.FetchedAt = start
	report.Duration = time.Since(start)

	a.logger.Debug("positions fetched",
		zap.Int("initialized", report.Initialized),
		zap.Uint64("total_locked", report.TotalLocked),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// summarize calculates aggregate totals
func summarize(program solana.PublicKey, positions []*locking.Position) *Report {
	report := &Report{Program: program, Positions: positions}

	var decimalsSet bool
	for _, pos := range positions {
		if !pos.Initialized {
			continue
		}
		report.Initialized++
		report.TotalLocked += pos.LockedAmount
		report.TotalBalance += pos.TokenBalance
		if pos.LockedAmount != pos.TokenBalance {
			report.Mismatched++
		}
		if !decimalsSet && pos.TokenBalance > 0 {
			report.Decimals = pos.Decimals
			decimalsSet = true
		}
	}
	return report
}

// PrintTable prints the positions as a table followed by a summary
func PrintTable(w io.Writer, report *Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"User", "Locked Account", "Recorded", "Balance", "Status"})
	table.SetBorder(true)

	for _, pos := range report.Positions {
		var status string
		switch {
		case !pos.Initialized:
			status = "NONE"
		case pos.LockedAmount != pos.TokenBalance:
			status = "MISMATCH"
		default:
			status = "OK"
		}

		table.Append([]string{
			pos.User.String(),
			pos.LockedAccount.String(),
			mathutil.FormatUnits(pos.LockedAmount, report.Decimals),
			mathutil.FormatUnits(pos.TokenBalance, report.Decimals),
			status,
		})
	}

	table.SetFooter([]string{
		"TOTAL",
		fmt.Sprintf("%d locked", report.Initialized),
		mathutil.FormatUnits(report.TotalLocked, report.Decimals),
		mathutil.FormatUnits(report.TotalBalance, report.Decimals),
		fmt.Sprintf("%d mismatched", report.Mismatched),
	})

	table.Render()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Program: %s\n", report.Program)
	fmt.Fprintf(w, "  Users: %d (%d with a position)\n", len(report.Positions), report.Initialized)
	fmt.Fprintf(w, "  Total Locked: %s\n", mathutil.FormatUnits(report.TotalLocked, report.Decimals))
	fmt.Fprintf(w, "  Fetched in: %s\n", report.Duration.Round(time.Millisecond))
}

// ExportCSV exports the positions to a CSV file
func ExportCSV(report *Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return WriteCSV(file, report)
}

// WriteCSV writes one row per position, amounts in base units
func WriteCSV(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)

	header := []string{"User", "LockedAccount", "BalanceAccount", "LockedAmount", "TokenBalance", "Decimals", "Initialized"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, pos := range report.Positions {
		row := []string{
			pos.User.String(),
			pos.LockedAccount.String(),
			pos.BalanceAccount.String(),
			strconv.FormatUint(pos.LockedAmount, 10),
			strconv.FormatUint(pos.TokenBalance, 10),
			strconv.Itoa(int(pos.Decimals)),
			strconv.FormatBool(pos.Initialized),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
