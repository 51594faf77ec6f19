package config

import (
	"fmt"
	"strings"
)

// Cluster monikers accepted in Anchor.toml and on the command line
const (
	ClusterLocalnet = "localnet"
	ClusterDevnet   = "devnet"
	ClusterTestnet  = "testnet"
	ClusterMainnet  = "mainnet"
)

var clusterURLs = map[string]string{
	ClusterLocalnet: "http://127.0.0.1:8899",
	ClusterDevnet:   "https://api.devnet.solana.com",
	ClusterTestnet:  "https://api.testnet.solana.com",
	ClusterMainnet:  "https://api.mainnet-beta.solana.com",
}

// normalizeCluster maps aliases onto the canonical moniker
func normalizeCluster(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "mainnet-beta" {
		return ClusterMainnet
	}
	return name
}

// ResolveCluster turns a moniker or URL into an RPC endpoint
func ResolveCluster(cluster string) (string, error) {
	if httpRegex.MatchString(cluster) || wsRegex.MatchString(cluster) {
		return cluster, nil
	}
	if url, ok := clusterURLs[normalizeCluster(cluster)]; ok {
		return url, nil
	}
	return "", fmt.Errorf("unknown cluster %q: use localnet, devnet, testnet, mainnet or a URL", cluster)
}

// InferCluster guesses the cluster moniker for an endpoint, defaulting to localnet
func InferCluster(url string) string {
	switch u := strings.ToLower(url); {
	case strings.Contains(u, "devnet"):
		return ClusterDevnet
	case strings.Contains(u, "testnet"):
		return ClusterTestnet
	case strings.Contains(u, "mainnet"):
		return ClusterMainnet
	default:
		return ClusterLocalnet
	}
}
