package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anyproto/go-slip10"
	"github.com/tyler-smith/go-bip39"

	"github.com/hotwings/hwlock/internal/solana"
)

// DefaultDerivationPath is the path used by most Solana wallets for the first account
const DefaultDerivationPath = "m/44'/501'/0'/0'"

var ErrInvalidKeypair = errors.New("invalid keypair")

// Wallet holds the ed25519 key that pays for and signs transactions
type Wallet struct {
	key solana.PrivateKey
}

// New wraps an existing ed25519 private key
func New(key ed25519.PrivateKey) (*Wallet, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(key))
	}
	return &Wallet{key: solana.PrivateKey(key)}, nil
}

// Generate creates a wallet with a random key
func Generate() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// NewFromKeypairFile loads a solana-keygen JSON keypair (an array of 64 bytes)
func NewFromKeypairFile(path string) (*Wallet, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeypair, path, err)
	}
	return NewFromKeypairBytes(key)
}

// NewFromKeypairBytes builds a wallet from the 64-byte secret||public layout.
// The embedded public key must match the secret.
func NewFromKeypairBytes(b []byte) (*Wallet, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(b))
	}

	key := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(key[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match secret", ErrInvalidKeypair)
	}

	return &Wallet{key: solana.PrivateKey(key)}, nil
}

// NewFromBase58 parses a base58-encoded 64-byte secret key
func NewFromBase58(secret string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return NewFromKeypairBytes(key)
}

// NewFromMnemonic derives a wallet from a BIP39 mnemonic.
// An empty path uses the first 32 bytes of the seed, as solana-keygen does.
func NewFromMnemonic(mnemonic, passphrase, path string) (*Wallet, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.TrimSpace(mnemonic), passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	if path == "" {
		return &Wallet{key: solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize]))}, nil
	}

	key, err := deriveKey(seed, path)
	if err != nil {
		return nil, fmt.Errorf("failed to derive %s: %w", path, err)
	}
	return &Wallet{key: solana.PrivateKey(key)}, nil
}

// deriveKey walks a fully hardened SLIP-10 ed25519 path
func deriveKey(seed []byte, path string) (ed25519.PrivateKey, error) {
	node, err := slip10.DeriveForPath(strings.TrimSpace(path), seed)
	if err != nil {
		return nil, err
	}
	_, key := node.Keypair()
	return key, nil
}

// PublicKey returns the wallet address
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// PrivateKey returns the underlying ed25519 key
func (w *Wallet) PrivateKey() ed25519.PrivateKey {
	return ed25519.PrivateKey(w.key)
}

// Sign signs a serialized message
func (w *Wallet) Sign(message []byte) (solana.Signature, error) {
	return w.key.Sign(message)
}

// KeypairBytes returns the 64-byte solana-keygen layout
func (w *Wallet) KeypairBytes() []byte {
	b := make([]byte, ed25519.PrivateKeySize)
	copy(b, w.key)
	return b
}

// SaveKeypairFile writes the wallet as a solana-keygen JSON file
func (w *Wallet) SaveKeypairFile(path string) error {
	raw := w.KeypairBytes()
	ints := make([]int, len(raw))
	for i, b := range raw {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
