package testing

import (
	"testing"
	"time"

	"github.com/hotwings/hwlock/internal/config"
	"github.com/hotwings/hwlock/internal/wallet"
)

// TestConfig creates a validated configuration pointing at node with a fresh payer
func TestConfig(t *testing.T, node *MockRPC) (*config.Config, *wallet.Wallet) {
	t.Helper()

	payer := GenerateTestWallet(t)
	cfg := &config.Config{
		URL:       node.URL(),
		Wallet:    WriteKeypairFile(t, payer),
		Workspace: t.TempDir(),
		Timeout:   5 * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg, payer
}

// LockedTokensData builds LockedTokens account data for the given amount
func LockedTokensData(discriminator [8]byte, amount uint64) []byte {
	data := make([]byte, 16)
	copy(data, discriminator[:])
	for i := 0; i < 8; i++ {
		data[8+i] = byte(amount >> (8 * i))
	}
	return data
}
