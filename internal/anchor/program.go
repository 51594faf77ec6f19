package anchor

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/hotwings/hwlock/internal/solana"
)

var (
	ErrUnknownMethod         = errors.New("method not found in IDL")
	ErrMissingAccount        = errors.New("missing account")
	ErrAccountsRequireIDL    = errors.New("named accounts require an IDL; use AccountMetas")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
)

// Program is a handle to a deployed Anchor program
type Program struct {
	ID   solana.PublicKey
	Name string
	// IDL is optional; without it any method name is accepted
	IDL *IDL
}

// NewProgram creates a program handle
func NewProgram(id solana.PublicKey, name string, idl *IDL) *Program {
	return &Program{ID: id, Name: SnakeCase(name), IDL: idl}
}

// Methods starts building a call to the named instruction
func (p *Program) Methods(name string) *MethodBuilder {
	return &MethodBuilder{program: p, name: SnakeCase(name)}
}

// DecodeAccount checks the account discriminator and Borsh-decodes the rest into out
func (p *Program) DecodeAccount(name string, data []byte, out interface{}) error {
	want := AccountDiscriminator(name)
	if p.IDL != nil {
		if def, ok := p.IDL.Account(name); ok {
			want = def.Discriminator
		}
	}
	return DecodeAccountData(want, data, out)
}

// DecodeAccountData checks a discriminator and Borsh-decodes the remaining bytes
func DecodeAccountData(want Discriminator, data []byte, out interface{}) error {
	if len(data) < DiscriminatorLength {
		return fmt.Errorf("%w: account data is %d bytes", ErrDiscriminatorMismatch, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorLength], want[:]) {
		return fmt.Errorf("%w: got %x, want %x", ErrDiscriminatorMismatch, data[:DiscriminatorLength], want[:])
	}
	if err := borsh.Deserialize(out, data[DiscriminatorLength:]); err != nil {
		return fmt.Errorf("failed to decode account: %w", err)
	}
	return nil
}

// MethodBuilder assembles one instruction in the style of program.methods.x()
type MethodBuilder struct {
	program   *Program
	name      string
	args      []any
	accounts  map[string]solana.PublicKey
	remaining solana.AccountMetaSlice
	signers   []solana.Signer
}

// Name returns the snake-case instruction name
func (b *MethodBuilder) Name() string {
	return b.name
}

// Program returns the program the call targets
func (b *MethodBuilder) Program() *Program {
	return b.program
}

// Args sets the positional instruction arguments
func (b *MethodBuilder) Args(args ...any) *MethodBuilder {
	b.args = args
	return b
}

// Accounts sets named accounts; names may be camelCase or snake_case
func (b *MethodBuilder) Accounts(accounts map[string]solana.PublicKey) *MethodBuilder {
	if b.accounts == nil {
		b.accounts = make(map[string]solana.PublicKey, len(accounts))
	}
	for k, v := range accounts {
		b.accounts[SnakeCase(k)] = v
	}
	return b
}

// AccountMetas appends raw account metas after the IDL accounts
func (b *MethodBuilder) AccountMetas(metas ...*solana.AccountMeta) *MethodBuilder {
	b.remaining = append(b.remaining, metas...)
	return b
}

// Signers adds signers besides the fee payer
func (b *MethodBuilder) Signers(signers ...solana.Signer) *MethodBuilder {
	b.signers = append(b.signers, signers...)
	return b
}

// SignerList returns the extra signers
func (b *MethodBuilder) SignerList() []solana.Signer {
	return b.signers
}

// Instruction resolves accounts and encodes the instruction data
func (b *MethodBuilder) Instruction() (*solana.GenericInstruction, error) {
	p := b.program
	if p.IDL == nil {
		return b.rawInstruction()
	}

	def, ok := p.IDL.Instruction(b.name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, p.Name, b.name)
	}

	args, err := EncodeArgs(p.IDL, def.Args, b.args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}

	metas := make(solana.AccountMetaSlice, 0, len(def.Accounts)+len(b.remaining))
	for _, item := range def.Accounts {
		pk, ok := b.accounts[item.Name]
		switch {
		case ok:
		case item.Address != "":
			if pk, err = solana.PublicKeyFromBase58(item.Address); err != nil {
				return nil, fmt.Errorf("%w: account %s address", ErrInvalidIDL, item.Name)
			}
		case item.Optional:
			// absent optional accounts are passed as the program id
			pk = p.ID
		default:
			return nil, fmt.Errorf("%w: %s requires %s", ErrMissingAccount, b.name, item.Name)
		}
		metas = append(metas, &solana.AccountMeta{
			PublicKey:  pk,
			IsSigner:   item.Signer,
			IsWritable: item.Writable,
		})
	}
	metas = append(metas, copyMetas(b.remaining)...)

	data := make([]byte, 0, DiscriminatorLength+len(args))
	data = append(data, def.Discriminator[:]...)
	data = append(data, args...)

	return solana.NewInstruction(p.ID, metas, data), nil
}

func (b *MethodBuilder) rawInstruction() (*solana.GenericInstruction, error) {
	if len(b.accounts) > 0 {
		return nil, ErrAccountsRequireIDL
	}

	args, err := EncodeRaw(b.args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}

	disc := InstructionDiscriminator(b.name)
	data := make([]byte, 0, DiscriminatorLength+len(args))
	data = append(data, disc[:]...)
	data = append(data, args...)

	return solana.NewInstruction(b.program.ID, copyMetas(b.remaining), data), nil
}

// copyMetas detaches metas from the builder; transaction compilation
// updates the fee payer's flags in place
func copyMetas(metas solana.AccountMetaSlice) solana.AccountMetaSlice {
	out := make(solana.AccountMetaSlice, 0, len(metas))
	for _, m := range metas {
		cp := *m
		out = append(out, &cp)
	}
	return out
}
