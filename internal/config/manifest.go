package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ManifestFile is the Anchor workspace manifest name
const ManifestFile = "Anchor.toml"

var ErrManifestNotFound = errors.New("Anchor.toml not found")

// Manifest is the subset of Anchor.toml the client needs
type Manifest struct {
	Provider struct {
		Cluster string `mapstructure:"cluster"`
		Wallet  string `mapstructure:"wallet"`
	} `mapstructure:"provider"`

	// Programs maps cluster -> program name -> program id
	Programs map[string]map[string]string `mapstructure:"programs"`
}

// LoadManifest reads Anchor.toml from the workspace root
func LoadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrManifestNotFound, root)
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &m, nil
}

// ProgramID returns the program id declared for a cluster, if any
func (m *Manifest) ProgramID(cluster, name string) (string, bool) {
	if m == nil {
		return "", false
	}
	programs, ok := m.Programs[normalizeCluster(cluster)]
	if !ok && normalizeCluster(cluster) == ClusterMainnet {
		programs, ok = m.Programs["mainnet-beta"]
	}
	if !ok {
		return "", false
	}
	id, ok := programs[name]
	return id, ok && id != ""
}
