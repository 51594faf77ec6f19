package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotwings/hwlock/internal/metrics"
	"github.com/hotwings/hwlock/internal/solana"
	htesting "github.com/hotwings/hwlock/internal/testing"
)

func newTestClient(t *testing.T, opts *Options) (*Client, *htesting.MockRPC) {
	t.Helper()
	node := htesting.NewMockRPC(t)
	c, err := New(context.Background(), node.URL(), opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, node
}

func signedTx(t *testing.T, blockhash solana.Hash) *solana.Transaction {
	t.Helper()
	payer := htesting.GenerateTestWallet(t)
	ix := solana.NewInstruction(htesting.TestProgramID, nil, []byte{0xaf})
	tx, err := solana.NewTransaction(payer.PublicKey(), []solana.Instruction{ix}, blockhash)
	require.NoError(t, err)
	require.NoError(t, solana.SignTransaction(tx, payer))
	return tx
}

func TestClient_NodeQueries(t *testing.T) {
	c, node := newTestClient(t, nil)
	ctx := context.Background()

	v, err := c.GetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.18.26", v.SolanaCore)

	require.NoError(t, c.GetHealth(ctx))

	height, err := c.GetBlockHeight(ctx, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, node.BlockHeightValue, height)

	balance, err := c.GetBalance(ctx, htesting.RandomPublicKey(t), CommitmentProcessed)
	require.NoError(t, err)
	assert.Equal(t, node.BalanceValue, balance)

	bh, err := c.GetLatestBlockhash(ctx, CommitmentProcessed)
	require.NoError(t, err)
	assert.Equal(t, node.Blockhash, bh.Blockhash)
	assert.Equal(t, node.LastValidBlockHeight, bh.LastValidBlockHeight)
}

func TestClient_GetHealthUnhealthy(t *testing.T) {
	c, node := newTestClient(t, nil)
	node.Handle("getHealth", func([]json.RawMessage) (any, *htesting.RPCError) {
		return nil, &htesting.RPCError{Code: CodeNodeUnhealthy, Message: "Node is behind by 42 slots"}
	})

	err := c.GetHealth(context.Background())
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeNodeUnhealthy, rpcErr.Code)
	assert.Equal(t, "getHealth", rpcErr.Method)
}

func TestClient_GetAccountInfo(t *testing.T) {
	c, node := newTestClient(t, nil)
	ctx := context.Background()

	pk := htesting.RandomPublicKey(t)
	owner := htesting.TestProgramID

	acc, err := c.GetAccountInfo(ctx, pk, CommitmentProcessed)
	require.NoError(t, err)
	assert.Nil(t, acc)

	node.SetAccount(pk, htesting.MockAccount{Lamports: 1_113_600, Owner: owner, Data: []byte{1, 2, 3}})
	acc, err = c.GetAccountInfo(ctx, pk, CommitmentProcessed)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, uint64(1_113_600), acc.Lamports)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, AccountData{1, 2, 3}, acc.Data)
}

func TestClient_GetTokenAccountBalance(t *testing.T) {
	c, node := newTestClient(t, nil)
	ctx := context.Background()

	pk := htesting.RandomPublicKey(t)
	node.SetTokenBalance(pk, 1_500_000_000)

	amount, err := c.GetTokenAccountBalance(ctx, pk, CommitmentProcessed)
	require.NoError(t, err)
	assert.Equal(t, "1.5", amount.UIAmountString)
	assert.Equal(t, uint8(9), amount.Decimals)

	raw, err := amount.Raw()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), raw)

	_, err = c.GetTokenAccountBalance(ctx, htesting.RandomPublicKey(t), CommitmentProcessed)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestClient_SendTransaction(t *testing.T) {
	c, node := newTestClient(t, nil)
	tx := signedTx(t, node.Blockhash)

	sig, err := c.SendTransaction(context.Background(), tx, SendOptions{PreflightCommitment: CommitmentProcessed})
	require.NoError(t, err)
	assert.Equal(t, solana.TransactionID(tx), sig)
	assert.Equal(t, 1, node.GetCallCount("sendTransaction"))
}

func TestClient_SendTransactionPreflightFailure(t *testing.T) {
	c, node := newTestClient(t, nil)
	preflight := &htesting.RPCError{
		Code:    CodeSendTransactionPreflight,
		Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x65",
		Data: map[string]any{
			"err": map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 101}}},
			"logs": []string{
				"Program FuML3MpeXtoKgZY1nBJUCJyvtQZdBcSt2Kb7GjqGW8SR invoke [1]",
				"Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported.",
				"Program FuML3MpeXtoKgZY1nBJUCJyvtQZdBcSt2Kb7GjqGW8SR failed: custom program error: 0x65",
			},
		},
	}
	node.Configure(func(n *htesting.MockRPC) { n.SendTransactionError = preflight })

	_, err := c.SendTransaction(context.Background(), signedTx(t, node.Blockhash), SendOptions{})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeSendTransactionPreflight, rpcErr.Code)
	assert.Len(t, rpcErr.Logs, 3)
	assert.NotNil(t, rpcErr.Err)
	assert.Contains(t, rpcErr.Error(), "3 log lines")
	assert.Empty(t, node.GetSentTransactions())
}

func TestClient_SimulateTransaction(t *testing.T) {
	c, node := newTestClient(t, nil)
	logs := []string{"Program log: Instruction: Initialize"}
	node.Configure(func(n *htesting.MockRPC) { n.SimulationLogs = logs })

	res, err := c.SimulateTransaction(context.Background(), signedTx(t, node.Blockhash), CommitmentProcessed)
	require.NoError(t, err)
	assert.Nil(t, res.Err)
	assert.Equal(t, logs, res.Logs)
	assert.Equal(t, uint64(1337), res.UnitsConsumed)
}

func TestClient_GetSignatureStatuses(t *testing.T) {
	c, node := newTestClient(t, nil)
	ctx := context.Background()
	tx := signedTx(t, node.Blockhash)

	statuses, err := c.GetSignatureStatuses(ctx, solana.TransactionID(tx))
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Nil(t, statuses[0])

	_, err = c.SendTransaction(ctx, tx, SendOptions{})
	require.NoError(t, err)

	node.Configure(func(n *htesting.MockRPC) { n.StatusValue = "confirmed" })
	statuses, err = c.GetSignatureStatuses(ctx, solana.TransactionID(tx))
	require.NoError(t, err)
	require.NotNil(t, statuses[0])
	assert.True(t, statuses[0].Reached(CommitmentProcessed))
	assert.True(t, statuses[0].Reached(CommitmentConfirmed))
	assert.False(t, statuses[0].Reached(CommitmentFinalized))
	assert.False(t, statuses[0].Failed())
}

func TestClient_RequestAirdrop(t *testing.T) {
	c, _ := newTestClient(t, nil)

	sig, err := c.RequestAirdrop(context.Background(), htesting.RandomPublicKey(t), 1_000_000_000)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
}

func TestClient_UnknownMethod(t *testing.T) {
	c, _ := newTestClient(t, nil)

	var out any
	err := c.call(context.Background(), &out, "getFoo")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClient_Metrics(t *testing.T) {
	m := metrics.NewMetrics("hwlock_test")
	c, node := newTestClient(t, &Options{Metrics: m})
	node.Handle("getBlockHeight", func([]json.RawMessage) (any, *htesting.RPCError) {
		return nil, &htesting.RPCError{Code: -32000, Message: "boom"}
	})

	_, err := c.GetSlot(context.Background(), CommitmentProcessed)
	require.NoError(t, err)
	_, err = c.GetBlockHeight(context.Background(), CommitmentProcessed)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("getSlot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("getBlockHeight", "error")))
}

func TestClient_RateLimit(t *testing.T) {
	c, _ := newTestClient(t, &Options{RateLimit: 1, Burst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.GetSlot(ctx, CommitmentProcessed)
	require.NoError(t, err)

	// The second token is a full second away
	_, err = c.GetSlot(ctx, CommitmentProcessed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError("getSlot", nil))

	plain := errors.New("connection refused")
	err := wrapError("getSlot", plain)
	assert.ErrorIs(t, err, plain)
	var rpcErr *RPCError
	assert.False(t, errors.As(err, &rpcErr))
}

func TestCommitment(t *testing.T) {
	assert.True(t, CommitmentFinalized.Rank() > CommitmentConfirmed.Rank())
	assert.True(t, CommitmentConfirmed.Rank() > CommitmentProcessed.Rank())
	assert.False(t, Commitment("recent").Valid())
	assert.True(t, CommitmentProcessed.Valid())
}
