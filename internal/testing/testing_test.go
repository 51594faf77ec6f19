package testing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/wallet"
)

func TestDeterministicWallet(t *testing.T) {
	a := DeterministicWallet(t, 7)
	b := DeterministicWallet(t, 7)
	if a.PublicKey() != b.PublicKey() {
		t.Error("same seed byte produced different keys")
	}
	if a.PublicKey() == DeterministicWallet(t, 8).PublicKey() {
		t.Error("different seed bytes produced the same key")
	}
}

func TestRandomPublicKeys(t *testing.T) {
	keys := RandomPublicKeys(t, 5)
	AssertLen(t, keys, 5)

	seen := make(map[solana.PublicKey]bool)
	for i, k := range keys {
		if seen[k] {
			t.Errorf("key %d is a duplicate", i)
		}
		seen[k] = true
	}
}

func TestWriteKeypairFile(t *testing.T) {
	w := GenerateTestWallet(t)
	path := WriteKeypairFile(t, w)

	loaded, err := wallet.NewFromKeypairFile(path)
	AssertNoError(t, err)
	AssertEqual(t, loaded.PublicKey(), w.PublicKey())
}

func TestTestConfig(t *testing.T) {
	node := NewMockRPC(t)
	cfg, payer := TestConfig(t, node)

	AssertEqual(t, cfg.URL, node.URL())
	loaded, err := wallet.NewFromKeypairFile(cfg.Wallet)
	AssertNoError(t, err)
	AssertEqual(t, loaded.PublicKey(), payer.PublicKey())
}

func TestLockedTokensData(t *testing.T) {
	data := LockedTokensData([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0x0102)
	AssertLen(t, data, 16)
	AssertEqual(t, data[0], byte(1))
	AssertEqual(t, data[8], byte(0x02))
	AssertEqual(t, data[9], byte(0x01))
}

func TestMockRPC_Defaults(t *testing.T) {
	node := NewMockRPC(t)
	ctx := context.Background()

	cli, err := client.New(ctx, node.URL(), nil)
	AssertNoError(t, err)
	defer cli.Close()

	AssertNoError(t, cli.GetHealth(ctx))

	slot, err := cli.GetSlot(ctx, client.CommitmentProcessed)
	AssertNoError(t, err)
	AssertEqual(t, slot, node.SlotValue)

	bh, err := cli.GetLatestBlockhash(ctx, client.CommitmentProcessed)
	AssertNoError(t, err)
	AssertEqual(t, bh.Blockhash, node.Blockhash)

	acc, err := cli.GetAccountInfo(ctx, RandomPublicKey(t), client.CommitmentProcessed)
	AssertNoError(t, err)
	AssertTrue(t, acc == nil, "unknown account should be absent")

	AssertEqual(t, node.GetCallCount("getSlot"), 1)
	AssertEqual(t, node.GetCallCount("getAccountInfo"), 1)

	node.Reset()
	AssertEqual(t, node.GetCallCount("getSlot"), 0)
}

func TestMockRPC_SendTracksTransactions(t *testing.T) {
	node := NewMockRPC(t)
	ctx := context.Background()

	cli, err := client.New(ctx, node.URL(), nil)
	AssertNoError(t, err)
	defer cli.Close()

	payer := GenerateTestWallet(t)
	ix := solana.NewInstruction(TestProgramID, solana.AccountMetaSlice{
		solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
	}, []byte{1, 2, 3})
	tx, err := solana.NewTransaction(payer.PublicKey(), []solana.Instruction{ix}, node.Blockhash)
	AssertNoError(t, err)
	AssertNoError(t, solana.SignTransaction(tx, payer))

	sig, err := cli.SendTransaction(ctx, tx, client.SendOptions{})
	AssertNoError(t, err)
	AssertEqual(t, sig, solana.TransactionID(tx))

	sent := node.GetSentTransactions()
	AssertLen(t, sent, 1)
	AssertEqual(t, solana.TransactionID(sent[0]), solana.TransactionID(tx))

	statuses, err := cli.GetSignatureStatuses(ctx, sig, solana.Signature{9})
	AssertNoError(t, err)
	AssertLen(t, statuses, 2)
	AssertTrue(t, statuses[0].Reached(client.CommitmentFinalized), "sent signature should be finalized")
	AssertTrue(t, statuses[1] == nil, "unknown signature should have no status")
}

func TestMockRPC_Handle(t *testing.T) {
	node := NewMockRPC(t)
	node.Handle("getSlot", func([]json.RawMessage) (any, *RPCError) {
		return nil, &RPCError{Code: -32005, Message: "Node is unhealthy"}
	})

	cli, err := client.New(context.Background(), node.URL(), nil)
	AssertNoError(t, err)
	defer cli.Close()

	_, err = cli.GetSlot(context.Background(), client.CommitmentProcessed)
	AssertError(t, err)
}
