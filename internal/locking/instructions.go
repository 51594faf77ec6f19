package locking

import (
	"errors"
	"fmt"

	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/solana"
)

var ErrZeroAmount = errors.New("lock amount must be greater than zero")

// InitializeLockParams are the inputs of initialize_lock
type InitializeLockParams struct {
	Mint          solana.PublicKey
	ProjectWallet solana.PublicKey
	User          solana.PublicKey
	Amount        uint64

	// ProjectWalletSigner authorises the transfer out of the project wallet.
	// When nil the user is assumed to be the project wallet authority.
	ProjectWalletSigner solana.Signer

	// Authority overrides the program_pda account; zero derives AuthorityPDA
	Authority solana.PublicKey
}

// InitializeLock prepares initialize_lock(amount) with its accounts in
// declaration order
func InitializeLock(program *anchor.Program, p InitializeLockParams) (*anchor.MethodBuilder, error) {
	if p.Amount == 0 {
		return nil, ErrZeroAmount
	}

	locked, _, err := LockedTokensPDA(p.User, program.ID)
	if err != nil {
		return nil, fmt.Errorf("locked token account: %w", err)
	}
	balance, _, err := LockedBalancePDA(p.User, program.ID)
	if err != nil {
		return nil, fmt.Errorf("locked balance account: %w", err)
	}

	authority := p.Authority
	if authority.IsZero() {
		if authority, _, err = AuthorityPDA(program.ID); err != nil {
			return nil, fmt.Errorf("program authority: %w", err)
		}
	}

	walletAuthority := p.User
	if p.ProjectWalletSigner != nil {
		walletAuthority = p.ProjectWalletSigner.PublicKey()
	}

	b := program.Methods("initialize_lock").
		Args(p.Amount).
		Accounts(map[string]solana.PublicKey{
			"token_mint":               p.Mint,
			"project_wallet":           p.ProjectWallet,
			"project_wallet_authority": walletAuthority,
			"locked_account":           locked,
			"program_pda":              authority,
			"investor_locked_tokens":   balance,
			"user":                     p.User,
			"system_program":           solana.SystemProgramID,
			"token_program":            solana.TokenProgramID,
			"rent":                     solana.SysVarRentID,
		})
	if p.ProjectWalletSigner != nil && walletAuthority != p.User {
		b.Signers(p.ProjectWalletSigner)
	}
	return b, nil
}
