// Package locking binds the hotwings-locking program: its declared id,
// embedded IDL, program-derived addresses and instruction builders.
package locking

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/solana"
)

//go:embed idl/hotwings_locking.json
var idlJSON []byte

const (
	// Name is the IDL name of the program
	Name = "hotwings_locking"
	// WorkspaceKey is the name the program is registered under in the JS workspace
	WorkspaceKey = "HotwingsLocking"

	LockedTokensSeed  = "locked-tokens"
	LockedBalanceSeed = "locked-balance"
	AuthoritySeed     = "authority"

	// LockedTokensAccount is the account type holding a user's locked amount
	LockedTokensAccount = "LockedTokens"
)

// ProgramID is the id declared by the deployed program
var ProgramID = solana.MustPublicKeyFromBase58("FuML3MpeXtoKgZY1nBJUCJyvtQZdBcSt2Kb7GjqGW8SR")

var embeddedIDL = sync.OnceValues(func() (*anchor.IDL, error) {
	return anchor.ParseIDL(idlJSON)
})

// IDL returns the embedded program interface
func IDL() (*anchor.IDL, error) {
	idl, err := embeddedIDL()
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded IDL: %w", err)
	}
	return idl, nil
}

// ResolveProgram resolves the program from a workspace, falling back to the
// embedded IDL and the declared program id
func ResolveProgram(ws *anchor.Workspace, opts ...anchor.ProgramOption) (*anchor.Program, error) {
	idl, err := IDL()
	if err != nil {
		return nil, err
	}
	base := []anchor.ProgramOption{anchor.WithIDL(idl), anchor.WithDefaultID(ProgramID)}
	return ws.Program(WorkspaceKey, append(base, opts...)...)
}

// LockedTokensPDA is the token account holding tokens locked by user
func LockedTokensPDA(user, program solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(LockedTokensSeed), user.Bytes()}, program)
}

// LockedBalancePDA is the LockedTokens account recording the amount locked by user
func LockedBalancePDA(user, program solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(LockedBalanceSeed), user.Bytes()}, program)
}

// AuthorityPDA derives the program authority. With no seeds it uses "authority".
func AuthorityPDA(program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	if len(seeds) == 0 {
		seeds = [][]byte{[]byte(AuthoritySeed)}
	}
	return solana.FindProgramAddress(seeds, program)
}
