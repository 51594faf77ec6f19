package collector

import (
	"io"
	"os"
	"time"

	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/solana"
)

// TxConfirmStatus represents the confirmation status of a transaction
type TxConfirmStatus int

const (
	TxConfirmPending TxConfirmStatus = iota
	TxConfirmSuccess
	TxConfirmFailed
	TxConfirmTimeout
	// TxConfirmExpired means the blockhash expired before the transaction landed
	TxConfirmExpired
)

func (s TxConfirmStatus) String() string {
	switch s {
	case TxConfirmPending:
		return "PENDING"
	case TxConfirmSuccess:
		return "SUCCESS"
	case TxConfirmFailed:
		return "FAILED"
	case TxConfirmTimeout:
		return "TIMEOUT"
	case TxConfirmExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// TxInfo represents tracked transaction information
type TxInfo struct {
	Signature   solana.Signature
	Instruction string
	// LastValidBlockHeight is the expiry of the blockhash the transaction used
	LastValidBlockHeight uint64
	SentAt               time.Time
	ConfirmedAt          time.Time
	Status               TxConfirmStatus
	Slot                 uint64
	Commitment           client.Commitment
	Latency              time.Duration
	// TxErr is the transaction error reported by the node, if it failed
	TxErr any
	Error error
}

// Metrics represents collected confirmation metrics
type Metrics struct {
	TotalSent      int
	TotalConfirmed int
	TotalFailed    int
	TotalPending   int
	TotalTimeout   int
	TotalExpired   int

	AvgLatency time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration
	P50Latency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration

	SuccessRate float64
}

// Config holds collector configuration
type Config struct {
	// PollInterval is the interval between getSignatureStatuses rounds
	PollInterval time.Duration

	// ConfirmTimeout is the timeout for waiting for confirmation
	ConfirmTimeout time.Duration

	// Commitment is the level a transaction must reach to count as confirmed
	Commitment client.Commitment

	// BatchSize is the number of signatures queried per request (node max 256)
	BatchSize int

	// ShowProgress renders a spinner to ProgressWriter while waiting
	ShowProgress   bool
	ProgressWriter io.Writer
}

// DefaultConfig returns default collector configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   500 * time.Millisecond,
		ConfirmTimeout: 60 * time.Second,
		Commitment:     client.CommitmentProcessed,
		BatchSize:      256,
		ProgressWriter: os.Stderr,
	}
}

// Report represents the final collection report
type Report struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Metrics *Metrics

	// Transactions are in tracking order
	Transactions []*TxInfo

	LatencyHistogram map[string]int
	ErrorSummary     map[string]int
}

// NewReport creates a new report
func NewReport(name string) *Report {
	return &Report{
		Name:             name,
		StartTime:        time.Now(),
		Metrics:          &Metrics{},
		Transactions:     make([]*TxInfo, 0),
		LatencyHistogram: make(map[string]int),
		ErrorSummary:     make(map[string]int),
	}
}

// Find returns the tracked transaction with the given signature
func (r *Report) Find(sig solana.Signature) (*TxInfo, bool) {
	for _, tx := range r.Transactions {
		if tx.Signature == sig {
			return tx, true
		}
	}
	return nil, false
}
