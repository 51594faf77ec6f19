package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultProgramName is the IDL name of the locking program
const DefaultProgramName = "hotwings_locking"

// Config holds the provider and invocation settings
type Config struct {
	// RPC connection
	URL     string
	Cluster string

	// Wallet: a solana-keygen keypair file or a BIP-39 mnemonic
	Wallet         string
	Mnemonic       string
	Passphrase     string
	DerivationPath string

	// Program resolution
	Workspace   string
	ProgramName string
	ProgramID   string

	// Transaction options
	Commitment          string
	PreflightCommitment string
	SkipPreflight       bool
	DryRun              bool

	// Output
	Output  string
	Verbose bool

	// Advanced
	Timeout   time.Duration
	RateLimit float64

	// Prometheus metrics
	MetricsEnabled bool
	MetricsPort    int
}

var (
	httpRegex       = regexp.MustCompile(`^https?://`)
	wsRegex         = regexp.MustCompile(`^wss?://`)
	commitmentRegex = regexp.MustCompile(`^(processed|confirmed|finalized)$`)
	pathRegex       = regexp.MustCompile(`^m(/[0-9]+'?)*$`)
	programIDRegex  = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

var (
	ErrProviderURLMissing = errors.New("provider url is required (set ANCHOR_PROVIDER_URL)")
	ErrWalletMissing      = errors.New("wallet is required (set ANCHOR_WALLET)")
)

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	// Validate URL
	if c.URL == "" {
		return ErrProviderURLMissing
	}
	if !httpRegex.MatchString(c.URL) && !wsRegex.MatchString(c.URL) {
		return errors.New("url must be a valid HTTP or WebSocket URL")
	}

	// Validate wallet source
	if c.Wallet == "" && c.Mnemonic == "" {
		return ErrWalletMissing
	}
	if c.Wallet != "" {
		expanded, err := ExpandHome(c.Wallet)
		if err != nil {
			return fmt.Errorf("wallet path: %w", err)
		}
		c.Wallet = expanded
	}
	if c.DerivationPath != "" && !pathRegex.MatchString(c.DerivationPath) {
		return errors.New("derivation-path must look like m/44'/501'/0'/0'")
	}

	if c.ProgramID != "" && !programIDRegex.MatchString(c.ProgramID) {
		return errors.New("program-id must be a base58 public key")
	}

	// Set default commitments
	if c.Commitment == "" {
		c.Commitment = "processed"
	}
	if c.PreflightCommitment == "" {
		c.PreflightCommitment = "processed"
	}
	if !commitmentRegex.MatchString(c.Commitment) {
		return errors.New("commitment must be processed, confirmed, or finalized")
	}
	if !commitmentRegex.MatchString(c.PreflightCommitment) {
		return errors.New("preflight-commitment must be processed, confirmed, or finalized")
	}

	if c.RateLimit < 0 {
		return errors.New("rate-limit must not be negative")
	}

	// Set defaults
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.ProgramName == "" {
		c.ProgramName = DefaultProgramName
	}
	if c.Cluster == "" {
		c.Cluster = InferCluster(c.URL)
	}
	if c.Workspace == "" {
		c.Workspace = "."
	}

	// Set default metrics port
	if c.MetricsEnabled && c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}

	return nil
}

// IsWebSocket returns true if the URL is a WebSocket URL
func (c *Config) IsWebSocket() bool {
	return wsRegex.MatchString(c.URL)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
