package locking

import (
	"context"
	"fmt"

	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/solana"
)

// LockedTokens is the on-chain record of a user's locked amount
type LockedTokens struct {
	LockedAmount uint64
}

// DecodeLockedTokens decodes LockedTokens account data
func DecodeLockedTokens(data []byte) (*LockedTokens, error) {
	var out LockedTokens
	if err := anchor.DecodeAccountData(anchor.AccountDiscriminator(LockedTokensAccount), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountReader is the subset of the RPC client needed to read positions
type AccountReader interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey, commitment client.Commitment) (*client.AccountInfo, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment client.Commitment) (*client.TokenAmount, error)
}

// Position is what a user has locked with the program
type Position struct {
	User           solana.PublicKey `json:"user"`
	LockedAccount  solana.PublicKey `json:"lockedAccount"`
	BalanceAccount solana.PublicKey `json:"balanceAccount"`
	LockedAmount   uint64           `json:"lockedAmount"`
	TokenBalance   uint64           `json:"tokenBalance"`
	Decimals       uint8            `json:"decimals"`
	// Initialized is false when the user never locked anything
	Initialized bool `json:"initialized"`
}

// FetchPosition reads both per-user accounts. Missing accounts count as zero.
func FetchPosition(ctx context.Context, reader AccountReader, program solana.PublicKey, user solana.PublicKey, commitment client.Commitment) (*Position, error) {
	locked, _, err := LockedTokensPDA(user, program)
	if err != nil {
		return nil, err
	}
	balance, _, err := LockedBalancePDA(user, program)
	if err != nil {
		return nil, err
	}

	pos := &Position{User: user, LockedAccount: locked, BalanceAccount: balance}

	info, err := reader.GetAccountInfo(ctx, balance, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locked balance of %s: %w", user, err)
	}
	if info != nil {
		record, err := DecodeLockedTokens(info.Data)
		if err != nil {
			return nil, fmt.Errorf("locked balance %s: %w", balance, err)
		}
		pos.LockedAmount = record.LockedAmount
		pos.Initialized = true
	}

	info, err = reader.GetAccountInfo(ctx, locked, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locked token account of %s: %w", user, err)
	}
	if info == nil {
		return pos, nil
	}

	amount, err := reader.GetTokenAccountBalance(ctx, locked, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locked token balance of %s: %w", user, err)
	}
	if pos.TokenBalance, err = amount.Raw(); err != nil {
		return nil, fmt.Errorf("locked token balance %q: %w", amount.Amount, err)
	}
	pos.Decimals = amount.Decimals
	pos.Initialized = true
	return pos, nil
}
