// Package integration provides integration tests for hwlock.
//
// These tests run the harness against a real Solana node with the
// hotwings_locking program deployed. They read the same environment as the
// Anchor provider and are skipped when it is missing or the node does not
// answer, making them safe to include in CI/CD pipelines.
//
// # Running Integration Tests
//
// Connection and wallet tests (no transaction is sent):
//
//	ANCHOR_PROVIDER_URL=http://127.0.0.1:8899 \
//	ANCHOR_WALLET=~/.config/solana/id.json \
//	go test -short ./internal/integration/...
//
// Full integration tests (sends initialize(), requires a funded wallet):
//
//	ANCHOR_PROVIDER_URL=http://127.0.0.1:8899 \
//	ANCHOR_WALLET=~/.config/solana/id.json \
//	go test ./internal/integration/...
//
// # Environment Variables
//
//   - ANCHOR_PROVIDER_URL: RPC endpoint URL
//   - ANCHOR_WALLET: solana-keygen keypair file paying for transactions
//   - HWLOCK_WORKSPACE: Anchor workspace root for Anchor.toml and target/idl (optional)
//   - HWLOCK_COMMITMENT, HWLOCK_TIMEOUT: confirmation tuning (optional)
//
// # Local Development
//
// For local testing, start a validator with the program loaded:
//
//	anchor localnet
//
//	# or
//	solana-test-validator --bpf-program FuML3MpeXtoKgZY1nBJUCJyvtQZdBcSt2Kb7GjqGW8SR target/deploy/hotwings_locking.so
package integration
