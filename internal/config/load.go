package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables of the Anchor environment provider
const (
	EnvProviderURL = "ANCHOR_PROVIDER_URL"
	EnvWallet      = "ANCHOR_WALLET"

	EnvCommitment = "HWLOCK_COMMITMENT"
	EnvTimeout    = "HWLOCK_TIMEOUT"
)

// FromEnvironment builds a config strictly from the process environment
func FromEnvironment() (*Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	url, _ := lookup(EnvProviderURL)
	if url == "" {
		return nil, ErrProviderURLMissing
	}
	wallet, _ := lookup(EnvWallet)
	if wallet == "" {
		return nil, ErrWalletMissing
	}

	cfg := &Config{URL: url, Wallet: wallet}
	if err := applyTuning(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyTuning(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvCommitment); ok && v != "" && cfg.Commitment == "" {
		cfg.Commitment = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" && cfg.Timeout == 0 {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// Load fills the unset fields of base from the environment, then the
// dotenv file, then the workspace Anchor.toml, and validates the result.
// base carries values given explicitly on the command line.
func Load(base *Config, dotenvPath string) (*Config, error) {
	cfg := *base

	dotenv := map[string]string{}
	if dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
		if values != nil {
			dotenv = values
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if cfg.URL == "" && cfg.Cluster != "" {
		url, err := ResolveCluster(cfg.Cluster)
		if err != nil {
			return nil, err
		}
		cfg.URL = url
	}
	if cfg.URL == "" {
		cfg.URL, _ = lookup(EnvProviderURL)
	}
	if cfg.Wallet == "" && cfg.Mnemonic == "" {
		cfg.Wallet, _ = lookup(EnvWallet)
	}
	if err := applyTuning(&cfg, lookup); err != nil {
		return nil, err
	}

	if cfg.URL == "" || (cfg.Wallet == "" && cfg.Mnemonic == "") {
		if err := applyManifest(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyManifest(cfg *Config) error {
	root := cfg.Workspace
	if root == "" {
		root = "."
	}

	m, err := LoadManifest(root)
	if errors.Is(err, ErrManifestNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if cfg.URL == "" && cfg.Cluster == "" && m.Provider.Cluster != "" {
		url, err := ResolveCluster(m.Provider.Cluster)
		if err != nil {
			return fmt.Errorf("%s provider.cluster: %w", ManifestFile, err)
		}
		cfg.URL = url
		if !httpRegex.MatchString(m.Provider.Cluster) && !wsRegex.MatchString(m.Provider.Cluster) {
			cfg.Cluster = normalizeCluster(m.Provider.Cluster)
		}
	}
	if cfg.Wallet == "" && cfg.Mnemonic == "" {
		cfg.Wallet = m.Provider.Wallet
	}
	return nil
}
