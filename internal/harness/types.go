package harness

import (
	"errors"
	"time"

	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/collector"
	"github.com/hotwings/hwlock/internal/solana"
)

// Stage represents a harness stage
type Stage int

const (
	StageConfigure Stage = iota
	StageResolve
	StageBuild
	StageSend
	StageSimulate
	StageConfirm
	StageReport
)

func (s Stage) String() string {
	switch s {
	case StageConfigure:
		return "CONFIGURE"
	case StageResolve:
		return "RESOLVE"
	case StageBuild:
		return "BUILD"
	case StageSend:
		return "SEND"
	case StageSimulate:
		return "SIMULATE"
	case StageConfirm:
		return "CONFIRM"
	case StageReport:
		return "REPORT"
	default:
		return "UNKNOWN"
	}
}

// ErrCallFailed wraps every invocation failure. The underlying cause stays
// reachable through errors.Is / errors.As.
var ErrCallFailed = errors.New("call failed")

var (
	ErrPayerUnfunded     = errors.New("payer has no lamports")
	ErrSimulationFailed  = errors.New("simulation failed")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrBlockhashExpired  = errors.New("blockhash expired before confirmation")
	ErrConfirmTimeout    = errors.New("confirmation timed out")
)

// StageResult represents the result of a harness stage
type StageResult struct {
	Stage    Stage
	Success  bool
	Duration time.Duration
	Message  string
	Error    error
}

// Call describes one program invocation
type Call struct {
	// Method is the instruction name, JS-style or snake case
	Method string
	Args   []any
	// Accounts are named accounts; they require an IDL
	Accounts  map[string]solana.PublicKey
	Remaining []*solana.AccountMeta
	Signers   []solana.Signer

	// Build replaces the generic method builder, e.g. locking.InitializeLock.
	// payer is the fee payer's address.
	Build func(program *anchor.Program, payer solana.PublicKey) (*anchor.MethodBuilder, error)

	// ProgramOptions are applied when resolving the program
	ProgramOptions []anchor.ProgramOption
}

// RunConfig holds runtime configuration for an invocation
type RunConfig struct {
	// Skip confirmation (fire-and-forget mode)
	SkipConfirmation bool

	// Poll interval for signature statuses
	PollInterval time.Duration

	// Show a spinner while confirming
	ShowProgress bool

	// Export receipts to files
	ExportReport bool

	// Output directory for receipts
	OutputDir string
}

// DefaultRunConfig returns default run configuration
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		SkipConfirmation: false,
		PollInterval:     500 * time.Millisecond,
		ShowProgress:     false,
		ExportReport:     false,
		OutputDir:        "./reports",
	}
}

// Result represents the complete invocation result
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	StageResults []*StageResult

	Program     solana.PublicKey
	Instruction string
	Payer       solana.PublicKey
	// Signature is the receipt identifier; zero until SEND succeeds
	Signature solana.Signature

	Simulation   *client.SimulationResult
	Confirmation *collector.TxInfo
	Report       *collector.Report

	ExportedFiles []string

	Errors []error
}

// NewResult creates a new invocation result
func NewResult() *Result {
	return &Result{
		StartTime:    time.Now(),
		StageResults: make([]*StageResult, 0),
		Errors:       make([]error, 0),
	}
}

// AddStageResult adds a stage result
func (r *Result) AddStageResult(sr *StageResult) {
	r.StageResults = append(r.StageResults, sr)
	if sr.Error != nil {
		r.Errors = append(r.Errors, sr.Error)
	}
}

// Finalize completes the result
func (r *Result) Finalize() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Success returns true if every stage ran and succeeded
func (r *Result) Success() bool {
	if len(r.StageResults) == 0 {
		return false
	}
	for _, sr := range r.StageResults {
		if !sr.Success {
			return false
		}
	}
	return true
}

// Stage returns the result of a stage, if it ran
func (r *Result) Stage(s Stage) (*StageResult, bool) {
	for _, sr := range r.StageResults {
		if sr.Stage == s {
			return sr, true
		}
	}
	return nil, false
}
