package analyzer

import (
	"time"

	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/locking"
	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/pkg/types"
)

// Client is the account reader used to fetch positions
type Client = locking.AccountReader

// Config holds configuration for the analyzer
type Config struct {
	Concurrency int               // Number of concurrent position fetches
	Commitment  client.Commitment // Commitment used for account reads
}

// DefaultConfig returns default analyzer configuration
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 16,
		Commitment:  client.CommitmentConfirmed,
	}
}

// Report holds the positions of a set of users
type Report struct {
	Program   solana.PublicKey
	Positions []*locking.Position
	FetchedAt time.Time
	Duration  time.Duration

	Initialized  int
	TotalLocked  uint64
	TotalBalance uint64
	// Decimals of the locked mint, taken from the first funded token account
	Decimals uint8
	// Mismatched counts positions whose recorded amount differs from the token balance
	Mismatched int
}

// JSON converts the report into its serialisable form
func (r *Report) JSON() *types.PositionReport {
	out := &types.PositionReport{
		Program:      r.Program.String(),
		FetchedAt:    r.FetchedAt,
		Users:        len(r.Positions),
		Initialized:  r.Initialized,
		TotalLocked:  r.TotalLocked,
		TotalBalance: r.TotalBalance,
		Decimals:     r.Decimals,
		Positions:    make([]types.PositionEntry, 0, len(r.Positions)),
	}
	for _, pos := range r.Positions {
		out.Positions = append(out.Positions, types.PositionEntry{
			User:           pos.User.String(),
			LockedAccount:  pos.LockedAccount.String(),
			BalanceAccount: pos.BalanceAccount.String(),
			LockedAmount:   pos.LockedAmount,
			TokenBalance:   pos.TokenBalance,
			Initialized:    pos.Initialized,
		})
	}
	return out
}
