package types

import (
	"time"
)

// StageReport holds the outcome of one invocation stage
type StageReport struct {
	Stage    string        `json:"stage"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// SimulationReport holds the outcome of a dry run
type SimulationReport struct {
	UnitsConsumed uint64   `json:"units_consumed"`
	Logs          []string `json:"logs,omitempty"`
	Error         any      `json:"error,omitempty"`
}

// InvocationReport is the JSON receipt of one program invocation
type InvocationReport struct {
	// Provider
	URL        string `json:"url"`
	Cluster    string `json:"cluster"`
	Commitment string `json:"commitment"`

	// Call
	Program     string `json:"program"`
	Instruction string `json:"instruction"`
	Payer       string `json:"payer"`
	DryRun      bool   `json:"dry_run"`

	// Receipt
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Status    string `json:"status,omitempty"`
	Slot      uint64 `json:"slot,omitempty"`

	// Timing
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Latency   time.Duration `json:"latency,omitempty"`

	Stages     []StageReport     `json:"stages"`
	Simulation *SimulationReport `json:"simulation,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// PositionReport is the JSON form of a position survey
type PositionReport struct {
	Program      string          `json:"program"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Users        int             `json:"users"`
	Initialized  int             `json:"initialized"`
	TotalLocked  uint64          `json:"total_locked"`
	TotalBalance uint64          `json:"total_balance"`
	Decimals     uint8           `json:"decimals"`
	Positions    []PositionEntry `json:"positions"`
}

// PositionEntry is one user's position in base units
type PositionEntry struct {
	User           string `json:"user"`
	LockedAccount  string `json:"locked_account"`
	BalanceAccount string `json:"balance_account"`
	LockedAmount   uint64 `json:"locked_amount"`
	TokenBalance   uint64 `json:"token_balance"`
	Initialized    bool   `json:"initialized"`
}
