// Package testing provides test utilities and helpers for hwlock tests.
package testing

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/wallet"
)

// TestMnemonic is a well-known test mnemonic (DO NOT use in production)
const TestMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// TestProgramID is the declared id of the locking program
var TestProgramID = solana.MustPublicKeyFromBase58("FuML3MpeXtoKgZY1nBJUCJyvtQZdBcSt2Kb7GjqGW8SR")

// GenerateTestWallet generates a random wallet for testing
func GenerateTestWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("failed to generate test wallet: %v", err)
	}
	return w
}

// DeterministicWallet returns a wallet whose seed is 32 copies of b
func DeterministicWallet(t *testing.T, b byte) *wallet.Wallet {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	w, err := wallet.New(ed25519.NewKeyFromSeed(seed))
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	return w
}

// RandomPublicKey generates a random public key for testing
func RandomPublicKey(t *testing.T) solana.PublicKey {
	t.Helper()
	return GenerateTestWallet(t).PublicKey()
}

// RandomPublicKeys generates multiple random public keys for testing
func RandomPublicKeys(t *testing.T, count int) []solana.PublicKey {
	t.Helper()
	keys := make([]solana.PublicKey, count)
	for i := 0; i < count; i++ {
		keys[i] = RandomPublicKey(t)
	}
	return keys
}

// WriteKeypairFile saves w as a solana-keygen file in a temp dir and returns its path
func WriteKeypairFile(t *testing.T, w *wallet.Wallet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id.json")
	if err := w.SaveKeypairFile(path); err != nil {
		t.Fatalf("failed to write keypair file: %v", err)
	}
	return path
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertNotEqual fails the test if got == want
func AssertNotEqual[T comparable](t *testing.T, got, notWant T) {
	t.Helper()
	if got == notWant {
		t.Errorf("got %v, should not equal %v", got, notWant)
	}
}

// AssertTrue fails the test if condition is false
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("assertion failed: %s", msg)
	}
}

// AssertLen fails the test if the slice length doesn't match
func AssertLen[T any](t *testing.T, slice []T, expectedLen int) {
	t.Helper()
	if len(slice) != expectedLen {
		t.Errorf("expected length %d, got %d", expectedLen, len(slice))
	}
}
