package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hotwings/hwlock/internal/metrics"
	"github.com/hotwings/hwlock/internal/solana"
)

// Options configures a Client
type Options struct {
	// RateLimit caps outgoing requests per second (0 = unlimited)
	RateLimit float64
	// Burst is the limiter burst size (defaults to 1)
	Burst int

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Client wraps a JSON-RPC connection to a Solana node
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a new client instance
func New(ctx context.Context, url string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}

	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	c := &Client{
		rpc:     rpcClient,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return c, nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.rpc.Close()
}

// call performs one JSON-RPC request through the limiter
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", method, err)
		}
	}

	start := time.Now()
	err := c.rpc.CallContext(ctx, result, method, args...)
	elapsed := time.Since(start)

	c.metrics.RecordRPC(method, elapsed, err)
	c.logger.Debug("rpc call",
		zap.String("method", method),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))

	return wrapError(method, err)
}

// GetVersion returns the node software version
func (c *Client) GetVersion(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.call(ctx, &v, "getVersion"); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetHealth returns nil when the node reports "ok"
func (c *Client) GetHealth(ctx context.Context) error {
	var status string
	if err := c.call(ctx, &status, "getHealth"); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("getHealth: node reported %q", status)
	}
	return nil
}

// GetSlot returns the current slot at the given commitment
func (c *Client) GetSlot(ctx context.Context, commitment Commitment) (uint64, error) {
	var slot uint64
	err := c.call(ctx, &slot, "getSlot", commitmentConfig{Commitment: commitment})
	return slot, err
}

// GetBlockHeight returns the current block height at the given commitment
func (c *Client) GetBlockHeight(ctx context.Context, commitment Commitment) (uint64, error) {
	var height uint64
	err := c.call(ctx, &height, "getBlockHeight", commitmentConfig{Commitment: commitment})
	return height, err
}

// GetBalance returns the lamport balance of an account
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey, commitment Commitment) (uint64, error) {
	var res balanceResult
	if err := c.call(ctx, &res, "getBalance", account.String(), commitmentConfig{Commitment: commitment}); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// GetLatestBlockhash returns a recent blockhash and its expiry height
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment Commitment) (*LatestBlockhash, error) {
	var res latestBlockhashResult
	if err := c.call(ctx, &res, "getLatestBlockhash", commitmentConfig{Commitment: commitment}); err != nil {
		return nil, err
	}
	return &res.Value, nil
}

// GetAccountInfo returns the account, or nil if it does not exist
func (c *Client) GetAccountInfo(ctx context.Context, account solana.PublicKey, commitment Commitment) (*AccountInfo, error) {
	var res accountInfoResult
	cfg := accountInfoConfig{Encoding: "base64", Commitment: commitment}
	if err := c.call(ctx, &res, "getAccountInfo", account.String(), cfg); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// GetTokenAccountBalance returns the balance of an SPL token account
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment Commitment) (*TokenAmount, error) {
	var res tokenAmountResult
	if err := c.call(ctx, &res, "getTokenAccountBalance", account.String(), commitmentConfig{Commitment: commitment}); err != nil {
		return nil, err
	}
	return &res.Value, nil
}

// SendTransaction submits a signed transaction and returns its signature
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts SendOptions) (solana.Signature, error) {
	encoded, err := solana.EncodeTransaction(tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	cfg := sendConfig{
		Encoding:            "base64",
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	}

	var sig solana.Signature
	if err := c.call(ctx, &sig, "sendTransaction", encoded, cfg); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// SimulateTransaction runs the transaction against the node without committing it
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction, commitment Commitment) (*SimulationResult, error) {
	encoded, err := solana.EncodeTransaction(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	var res simulationResult
	cfg := simulateConfig{Encoding: "base64", SigVerify: true, Commitment: commitment}
	if err := c.call(ctx, &res, "simulateTransaction", encoded, cfg); err != nil {
		return nil, err
	}
	return &res.Value, nil
}

// GetSignatureStatuses returns one status per signature; unknown signatures map to nil
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, s := range sigs {
		encoded[i] = s.String()
	}

	var res signatureStatusesResult
	cfg := statusConfig{SearchTransactionHistory: true}
	if err := c.call(ctx, &res, "getSignatureStatuses", encoded, cfg); err != nil {
		return nil, err
	}
	if len(res.Value) != len(sigs) {
		return nil, fmt.Errorf("getSignatureStatuses: expected %d statuses, got %d", len(sigs), len(res.Value))
	}
	return res.Value, nil
}

// RequestAirdrop asks a test validator or faucet for lamports
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	if err := c.call(ctx, &sig, "requestAirdrop", account.String(), lamports); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}
