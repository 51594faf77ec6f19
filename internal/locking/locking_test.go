package locking

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotwings/hwlock/internal/anchor"
	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/solana"
	htesting "github.com/hotwings/hwlock/internal/testing"
)

func TestEmbeddedIDL(t *testing.T) {
	idl, err := IDL()
	require.NoError(t, err)

	assert.Equal(t, Name, idl.Name)
	assert.Equal(t, ProgramID.String(), idl.Address)

	ix, ok := idl.Instruction("initializeLock")
	require.True(t, ok)
	assert.Equal(t, anchor.InstructionDiscriminator("initialize_lock"), ix.Discriminator)
	assert.Len(t, ix.Accounts, 10)

	acc, ok := idl.Account(LockedTokensAccount)
	require.True(t, ok)
	assert.Equal(t, anchor.AccountDiscriminator(LockedTokensAccount), acc.Discriminator)
}

func TestPDAs(t *testing.T) {
	user := htesting.DeterministicWallet(t, 7).PublicKey()

	locked, bump, err := LockedTokensPDA(user, ProgramID)
	require.NoError(t, err)
	again, bump2, err := LockedTokensPDA(user, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, locked, again)
	assert.Equal(t, bump, bump2)
	assert.False(t, locked.IsOnCurve())

	balance, _, err := LockedBalancePDA(user, ProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, locked, balance)

	other := htesting.DeterministicWallet(t, 8).PublicKey()
	otherLocked, _, err := LockedTokensPDA(other, ProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, locked, otherLocked)

	authority, _, err := AuthorityPDA(ProgramID)
	require.NoError(t, err)
	custom, _, err := AuthorityPDA(ProgramID, []byte("vault"))
	require.NoError(t, err)
	assert.NotEqual(t, authority, custom)

	explicit, _, err := AuthorityPDA(ProgramID, []byte(AuthoritySeed))
	require.NoError(t, err)
	assert.Equal(t, authority, explicit)
}

func TestResolveProgram(t *testing.T) {
	ws, err := anchor.OpenWorkspace(t.TempDir(), "localnet", nil)
	require.NoError(t, err)

	p, err := ResolveProgram(ws)
	require.NoError(t, err)
	assert.Equal(t, ProgramID, p.ID)
	assert.Equal(t, Name, p.Name)
	require.NotNil(t, p.IDL)

	override := htesting.RandomPublicKey(t)
	p, err = ResolveProgram(ws, anchor.WithProgramID(override))
	require.NoError(t, err)
	assert.Equal(t, override, p.ID)
}

func TestInitializeLock(t *testing.T) {
	ws, err := anchor.OpenWorkspace(t.TempDir(), "localnet", nil)
	require.NoError(t, err)
	program, err := ResolveProgram(ws)
	require.NoError(t, err)

	user := htesting.DeterministicWallet(t, 1).PublicKey()
	mint := htesting.RandomPublicKey(t)
	projectWallet := htesting.RandomPublicKey(t)

	b, err := InitializeLock(program, InitializeLockParams{
		Mint:          mint,
		ProjectWallet: projectWallet,
		User:          user,
		Amount:        1_000_000,
	})
	require.NoError(t, err)
	assert.Empty(t, b.SignerList())

	ix, err := b.Instruction()
	require.NoError(t, err)
	assert.Equal(t, ProgramID, ix.ProgID)
	assert.Equal(t, "b6d6c3693a49517c40420f0000000000", hex.EncodeToString(ix.DataBytes))

	locked, _, _ := LockedTokensPDA(user, ProgramID)
	balance, _, _ := LockedBalancePDA(user, ProgramID)
	authority, _, _ := AuthorityPDA(ProgramID)

	want := solana.AccountMetaSlice{
		{PublicKey: mint},
		{PublicKey: projectWallet, IsWritable: true},
		{PublicKey: user, IsSigner: true},
		{PublicKey: locked, IsWritable: true},
		{PublicKey: authority},
		{PublicKey: balance, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SysVarRentID},
	}
	assert.Equal(t, want, ix.AccountValues)
}

func TestInitializeLock_ProjectWalletSigner(t *testing.T) {
	ws, err := anchor.OpenWorkspace(t.TempDir(), "localnet", nil)
	require.NoError(t, err)
	program, err := ResolveProgram(ws)
	require.NoError(t, err)

	signer := htesting.DeterministicWallet(t, 2)
	authority := htesting.RandomPublicKey(t)

	b, err := InitializeLock(program, InitializeLockParams{
		Mint:                htesting.RandomPublicKey(t),
		ProjectWallet:       htesting.RandomPublicKey(t),
		User:                htesting.DeterministicWallet(t, 3).PublicKey(),
		Amount:              5,
		ProjectWalletSigner: signer,
		Authority:           authority,
	})
	require.NoError(t, err)
	require.Len(t, b.SignerList(), 1)

	ix, err := b.Instruction()
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), ix.AccountValues[2].PublicKey)
	assert.Equal(t, authority, ix.AccountValues[4].PublicKey)

	_, err = InitializeLock(program, InitializeLockParams{User: signer.PublicKey()})
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestDecodeLockedTokens(t *testing.T) {
	data := htesting.LockedTokensData(anchor.AccountDiscriminator(LockedTokensAccount), 42)
	record, err := DecodeLockedTokens(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), record.LockedAmount)

	_, err = DecodeLockedTokens(htesting.LockedTokensData(anchor.AccountDiscriminator("Other"), 42))
	assert.ErrorIs(t, err, anchor.ErrDiscriminatorMismatch)
}

func TestFetchPosition(t *testing.T) {
	node := htesting.NewMockRPC(t)
	c, err := client.New(context.Background(), node.URL(), nil)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	user := htesting.DeterministicWallet(t, 4).PublicKey()

	t.Run("never locked", func(t *testing.T) {
		pos, err := FetchPosition(ctx, c, ProgramID, user, client.CommitmentConfirmed)
		require.NoError(t, err)
		assert.False(t, pos.Initialized)
		assert.Zero(t, pos.LockedAmount)
		assert.Zero(t, pos.TokenBalance)
	})

	locked, _, _ := LockedTokensPDA(user, ProgramID)
	balance, _, _ := LockedBalancePDA(user, ProgramID)
	node.SetAccount(balance, htesting.MockAccount{
		Lamports: 1_000_000,
		Owner:    ProgramID,
		Data:     htesting.LockedTokensData(anchor.AccountDiscriminator(LockedTokensAccount), 2_500_000_000),
	})
	node.SetAccount(locked, htesting.MockAccount{Lamports: 2_039_280, Owner: solana.TokenProgramID, Data: make([]byte, 165)})
	node.SetTokenBalance(locked, 2_500_000_000)

	t.Run("locked", func(t *testing.T) {
		pos, err := FetchPosition(ctx, c, ProgramID, user, client.CommitmentConfirmed)
		require.NoError(t, err)
		assert.True(t, pos.Initialized)
		assert.Equal(t, uint64(2_500_000_000), pos.LockedAmount)
		assert.Equal(t, uint64(2_500_000_000), pos.TokenBalance)
		assert.Equal(t, uint8(9), pos.Decimals)
		assert.Equal(t, locked, pos.LockedAccount)
		assert.Equal(t, balance, pos.BalanceAccount)
	})

	t.Run("corrupt record", func(t *testing.T) {
		node.SetAccount(balance, htesting.MockAccount{Owner: ProgramID, Data: []byte{1, 2, 3}})
		_, err := FetchPosition(ctx, c, ProgramID, user, client.CommitmentConfirmed)
		assert.ErrorIs(t, err, anchor.ErrDiscriminatorMismatch)
	})
}
