// Package solana adapts the solana-go primitives to the harness: key and
// signature parsing with typed errors, program-derived addresses and
// legacy transactions signed by abstract signers.
package solana

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

type (
	PublicKey          = solanago.PublicKey
	PrivateKey         = solanago.PrivateKey
	Signature          = solanago.Signature
	Hash               = solanago.Hash
	AccountMeta        = solanago.AccountMeta
	AccountMetaSlice   = solanago.AccountMetaSlice
	Instruction        = solanago.Instruction
	GenericInstruction = solanago.GenericInstruction
	Message            = solanago.Message
	MessageHeader      = solanago.MessageHeader
	Transaction        = solanago.Transaction
)

const (
	PublicKeyLength = solanago.PublicKeyLength
	SignatureLength = 64
	MaxSeedLength   = solanago.MaxSeedLength
	MaxSeeds        = solanago.MaxSeeds
)

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidHash      = errors.New("invalid hash")
	ErrMaxSeedLength    = solanago.ErrMaxSeedLengthExceeded
)

// Well-known program and sysvar ids
var (
	SystemProgramID = solanago.SystemProgramID
	TokenProgramID  = solanago.TokenProgramID
	SysVarRentID    = solanago.SysVarRentPubkey
)

// PublicKeyFromBase58 parses a base58-encoded public key
func PublicKeyFromBase58(s string) (PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidPublicKey, s, err)
	}
	return pk, nil
}

// MustPublicKeyFromBase58 is like PublicKeyFromBase58 but panics on error
func MustPublicKeyFromBase58(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeyLength {
		return PublicKey{}, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(b))
	}
	return solanago.PublicKeyFromBytes(b), nil
}

// SignatureFromBase58 parses a base58 transaction signature
func SignatureFromBase58(s string) (Signature, error) {
	sig, err := solanago.SignatureFromBase58(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %q: %v", ErrInvalidSignature, s, err)
	}
	return sig, nil
}

// HashFromBase58 parses a base58 blockhash
func HashFromBase58(s string) (Hash, error) {
	h, err := solanago.HashFromBase58(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q: %v", ErrInvalidHash, s, err)
	}
	return h, nil
}

// NewRandomPrivateKey generates a fresh ed25519 keypair
func NewRandomPrivateKey() (PrivateKey, error) {
	return solanago.NewRandomPrivateKey()
}

// PrivateKeyFromBase58 decodes a base58 secret key
func PrivateKeyFromBase58(s string) (PrivateKey, error) {
	return solanago.PrivateKeyFromBase58(s)
}

// PrivateKeyFromSolanaKeygenFile reads a solana-keygen JSON keypair file
func PrivateKeyFromSolanaKeygenFile(path string) (PrivateKey, error) {
	return solanago.PrivateKeyFromSolanaKeygenFile(path)
}

// Meta returns a readonly, non-signer account meta. Chain WRITE and SIGNER
// to set the flags.
func Meta(pk PublicKey) *AccountMeta {
	return solanago.Meta(pk)
}

// NewInstruction builds an instruction from raw accounts and data
func NewInstruction(programID PublicKey, accounts AccountMetaSlice, data []byte) *GenericInstruction {
	return solanago.NewInstruction(programID, accounts, data)
}

// CreateProgramAddress derives a program address from seeds.
// It fails when the resulting address lies on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	return solanago.CreateProgramAddress(seeds, programID)
}

// FindProgramAddress searches for a valid program address, starting from bump 255
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	return solanago.FindProgramAddress(seeds, programID)
}
