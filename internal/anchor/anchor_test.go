package anchor

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotwings/hwlock/internal/solana"
)

const programID = "FuML3MpeXtoKgZY1nBJUCJyvtQZdBcSt2Kb7GjqGW8SR"

const legacyIDL = `{
  "version": "0.1.0",
  "name": "hotwings_locking",
  "instructions": [
    {
      "name": "initializeLock",
      "accounts": [
        {"name": "tokenMint", "isMut": false, "isSigner": false},
        {"name": "projectWallet", "isMut": true, "isSigner": false},
        {"name": "projectWalletAuthority", "isMut": false, "isSigner": true},
        {"name": "user", "isMut": true, "isSigner": true},
        {"name": "systemProgram", "isMut": false, "isSigner": false}
      ],
      "args": [{"name": "amount", "type": "u64"}]
    }
  ],
  "accounts": [
    {"name": "LockedTokens", "type": {"kind": "struct", "fields": [{"name": "lockedAmount", "type": "u64"}]}}
  ],
  "errors": [{"code": 6000, "name": "Overflow", "msg": "Locked amount overflow"}],
  "metadata": {"address": "` + programID + `"}
}`

const modernIDL = `{
  "address": "` + programID + `",
  "metadata": {"name": "hotwings_locking", "version": "0.1.0", "spec": "0.1.0"},
  "instructions": [
    {
      "name": "configure",
      "discriminator": [1, 2, 3, 4, 5, 6, 7, 8],
      "accounts": [
        {"name": "authority", "writable": true, "signer": true},
        {"name": "group", "accounts": [
          {"name": "fee_vault", "writable": true},
          {"name": "referrer", "optional": true}
        ]},
        {"name": "system_program", "address": "11111111111111111111111111111111"}
      ],
      "args": [
        {"name": "label", "type": "string"},
        {"name": "limit", "type": {"option": "u16"}},
        {"name": "owners", "type": {"vec": "pubkey"}},
        {"name": "salt", "type": {"array": ["u8", 4]}},
        {"name": "params", "type": {"defined": {"name": "Params"}}},
        {"name": "mode", "type": {"defined": {"name": "Mode"}}}
      ]
    }
  ],
  "accounts": [{"name": "LockedTokens", "discriminator": [147, 146, 126, 10, 121, 114, 76, 175]}],
  "types": [
    {"name": "Params", "type": {"kind": "struct", "fields": [{"name": "rate", "type": "u8"}, {"name": "enabled", "type": "bool"}]}},
    {"name": "Mode", "type": {"kind": "enum", "variants": [{"name": "Open"}, {"name": "Closed", "fields": [{"name": "until", "type": "i64"}]}]}}
  ]
}`

func TestDiscriminators(t *testing.T) {
	tests := []struct {
		name string
		got  Discriminator
		want string
	}{
		{"initialize", InstructionDiscriminator("initialize"), "afaf6d1f0d989bed"},
		{"initialize_lock", InstructionDiscriminator("initialize_lock"), "b6d6c3693a49517c"},
		{"initializeLock", InstructionDiscriminator("initializeLock"), "b6d6c3693a49517c"},
		{"LockedTokens", AccountDiscriminator("LockedTokens"), "93927e0a79724caf"},
		{"locked_tokens", AccountDiscriminator("locked_tokens"), "93927e0a79724caf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hex.EncodeToString(tt.got[:]))
		})
	}
}

func TestNameConversions(t *testing.T) {
	snake := map[string]string{
		"initializeLock":   "initialize_lock",
		"InitializeLock":   "initialize_lock",
		"HotwingsLocking":  "hotwings_locking",
		"hotwings-locking": "hotwings_locking",
		"hotwings_locking": "hotwings_locking",
		"initialize":       "initialize",
		"IDLAccount":       "idl_account",
		"mintV2":           "mint_v2",
	}
	for in, want := range snake {
		assert.Equal(t, want, SnakeCase(in), "SnakeCase(%q)", in)
	}

	assert.Equal(t, "initializeLock", CamelCase("initialize_lock"))
	assert.Equal(t, "HotwingsLocking", PascalCase("hotwings-locking"))
	assert.Equal(t, "LockedTokens", PascalCase("LockedTokens"))
}

func TestParseIDL_Legacy(t *testing.T) {
	idl, err := ParseIDL([]byte(legacyIDL))
	require.NoError(t, err)

	assert.Equal(t, "hotwings_locking", idl.Name)
	assert.Equal(t, programID, idl.Address)

	ix, ok := idl.Instruction("initializeLock")
	require.True(t, ok)
	assert.Equal(t, "initialize_lock", ix.Name)
	assert.Equal(t, InstructionDiscriminator("initialize_lock"), ix.Discriminator)
	require.Len(t, ix.Accounts, 5)
	assert.Equal(t, IDLAccountItem{Name: "project_wallet", Writable: true}, ix.Accounts[1])
	assert.Equal(t, IDLAccountItem{Name: "user", Writable: true, Signer: true}, ix.Accounts[3])
	assert.Equal(t, "u64", ix.Args[0].Type.String())

	acc, ok := idl.Account("LockedTokens")
	require.True(t, ok)
	assert.Equal(t, AccountDiscriminator("LockedTokens"), acc.Discriminator)

	td, ok := idl.Type("LockedTokens")
	require.True(t, ok)
	assert.Equal(t, "locked_amount", td.Fields[0].Name)

	e, ok := idl.ErrorByCode(6000)
	require.True(t, ok)
	assert.Equal(t, "Overflow", e.Name)
}

func TestParseIDL_Modern(t *testing.T) {
	idl, err := ParseIDL([]byte(modernIDL))
	require.NoError(t, err)

	assert.Equal(t, "hotwings_locking", idl.Name)
	assert.Equal(t, "0.1.0", idl.Version)

	ix, ok := idl.Instruction("configure")
	require.True(t, ok)
	assert.Equal(t, Discriminator{1, 2, 3, 4, 5, 6, 7, 8}, ix.Discriminator)

	// composite accounts are flattened in order
	require.Len(t, ix.Accounts, 4)
	assert.Equal(t, "fee_vault", ix.Accounts[1].Name)
	assert.True(t, ix.Accounts[2].Optional)
	assert.Equal(t, "11111111111111111111111111111111", ix.Accounts[3].Address)

	assert.Equal(t, "option<u16>", ix.Args[1].Type.String())
	assert.Equal(t, "vec<pubkey>", ix.Args[2].Type.String())
	assert.Equal(t, "[u8; 4]", ix.Args[3].Type.String())
	assert.Equal(t, "Params", ix.Args[4].Type.Defined)
}

func TestParseIDL_Invalid(t *testing.T) {
	_, err := ParseIDL([]byte(`{"instructions": []}`))
	assert.ErrorIs(t, err, ErrInvalidIDL)

	_, err = ParseIDL([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidIDL)

	_, err = ParseIDL([]byte(`{"name": "x", "instructions": [{"name": "a", "discriminator": [1, 2]}]}`))
	assert.ErrorIs(t, err, ErrInvalidIDL)

	_, err = ParseIDL([]byte(`{"name": "x", "instructions": [{"name": "a", "args": [{"name": "b", "type": {"map": "u8"}}]}]}`))
	assert.ErrorIs(t, err, ErrInvalidIDL)
}

func TestMethodBuilder_WithIDL(t *testing.T) {
	idl, err := ParseIDL([]byte(legacyIDL))
	require.NoError(t, err)
	p := NewProgram(solana.MustPublicKeyFromBase58(programID), "HotwingsLocking", idl)

	keys := make([]solana.PublicKey, 5)
	for i := range keys {
		keys[i] = solana.PublicKey{byte(i + 1)}
	}

	ix, err := p.Methods("initializeLock").
		Args(uint64(500)).
		Accounts(map[string]solana.PublicKey{
			"tokenMint":                keys[0],
			"projectWallet":            keys[1],
			"project_wallet_authority": keys[2],
			"user":                     keys[3],
			"systemProgram":            keys[4],
		}).
		Instruction()
	require.NoError(t, err)

	assert.Equal(t, p.ID, ix.ProgID)
	disc := InstructionDiscriminator("initialize_lock")
	want := append(disc[:], 0xf4, 0x01, 0, 0, 0, 0, 0, 0)
	assert.Equal(t, want, ix.DataBytes)
	require.Len(t, ix.AccountValues, 5)
	assert.Equal(t, &solana.AccountMeta{PublicKey: keys[2], IsSigner: true}, ix.AccountValues[2])
	assert.Equal(t, &solana.AccountMeta{PublicKey: keys[3], IsSigner: true, IsWritable: true}, ix.AccountValues[3])
}

func TestMethodBuilder_Errors(t *testing.T) {
	idl, err := ParseIDL([]byte(legacyIDL))
	require.NoError(t, err)
	p := NewProgram(solana.MustPublicKeyFromBase58(programID), "hotwings_locking", idl)

	_, err = p.Methods("initialize").Instruction()
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = p.Methods("initializeLock").Args(uint64(1)).Instruction()
	assert.ErrorIs(t, err, ErrMissingAccount)

	_, err = p.Methods("initializeLock").Instruction()
	assert.ErrorIs(t, err, ErrArgumentType)

	_, err = p.Methods("initializeLock").Args("lots").Instruction()
	assert.ErrorIs(t, err, ErrArgumentType)
}

func TestMethodBuilder_WithoutIDL(t *testing.T) {
	p := NewProgram(solana.MustPublicKeyFromBase58(programID), "hotwings_locking", nil)

	ix, err := p.Methods("initialize").Instruction()
	require.NoError(t, err)
	assert.Equal(t, "afaf6d1f0d989bed", hex.EncodeToString(ix.DataBytes))
	assert.Empty(t, ix.AccountValues)

	extra := solana.Meta(solana.PublicKey{9}).WRITE()
	ix, err = p.Methods("anything_goes").Args(uint32(7), true).AccountMetas(extra).Instruction()
	require.NoError(t, err)
	disc := InstructionDiscriminator("anything_goes")
	assert.Equal(t, append(disc[:], 7, 0, 0, 0, 1), ix.DataBytes)
	assert.Equal(t, solana.AccountMetaSlice{extra}, ix.AccountValues)
	assert.NotSame(t, extra, ix.AccountValues[0])

	_, err = p.Methods("initialize").Accounts(map[string]solana.PublicKey{"user": {1}}).Instruction()
	assert.ErrorIs(t, err, ErrAccountsRequireIDL)
}

func TestEncodeArgs_Types(t *testing.T) {
	idl, err := ParseIDL([]byte(modernIDL))
	require.NoError(t, err)
	ix, _ := idl.Instruction("configure")

	owner := solana.PublicKey{0xaa}
	var args []any
	require.NoError(t, json.Unmarshal([]byte(`[
		"hi",
		300,
		["`+owner.String()+`"],
		[1, 2, 3, 4],
		{"rate": 5, "enabled": true},
		{"Closed": {"until": -1}}
	]`), &args))

	data, err := EncodeArgs(idl, ix.Args, args)
	require.NoError(t, err)

	want := []byte{2, 0, 0, 0, 'h', 'i'}
	want = append(want, 1, 0x2c, 0x01)
	want = append(want, 1, 0, 0, 0)
	want = append(want, owner[:]...)
	want = append(want, 1, 2, 3, 4)
	want = append(want, 5, 1)
	// Mode::Closed{until: -1}
	want = append(want, 1)
	want = append(want, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	assert.Equal(t, want, data)

	args[1] = nil
	args[5] = "Open"
	data, err = EncodeArgs(idl, ix.Args, args)
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[6])
	assert.Equal(t, byte(0), data[len(data)-1])
}

func TestEncodeArgs_Rejects(t *testing.T) {
	fields := []IDLField{{Name: "n", Type: IDLType{Primitive: "u8"}}}

	_, err := EncodeArgs(nil, fields, []any{256})
	assert.ErrorIs(t, err, ErrArgumentType)

	_, err = EncodeArgs(nil, fields, []any{-1})
	assert.ErrorIs(t, err, ErrArgumentType)

	_, err = EncodeArgs(nil, fields, []any{1.5})
	assert.ErrorIs(t, err, ErrArgumentType)

	_, err = EncodeArgs(nil, fields, []any{})
	assert.ErrorIs(t, err, ErrArgumentType)

	data, err := EncodeArgs(nil, fields, []any{json.Number("255")})
	require.NoError(t, err)
	assert.Equal(t, []byte{255}, data)

	u64 := []IDLField{{Name: "amount", Type: IDLType{Primitive: "u64"}}}
	_, err = EncodeArgs(nil, u64, []any{float64(1 << 64)})
	assert.ErrorIs(t, err, ErrArgumentType)

	data, err = EncodeArgs(nil, u64, []any{float64(1 << 63)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0x80}, data)

	i64 := []IDLField{{Name: "delta", Type: IDLType{Primitive: "i64"}}}
	_, err = EncodeArgs(nil, i64, []any{float64(1 << 63)})
	assert.ErrorIs(t, err, ErrArgumentType)

	data, err = EncodeArgs(nil, i64, []any{float64(-1 << 63)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0x80}, data)
}

type lockedTokens struct {
	LockedAmount uint64
}

func TestDecodeAccount(t *testing.T) {
	p := NewProgram(solana.MustPublicKeyFromBase58(programID), "hotwings_locking", nil)

	d := AccountDiscriminator("LockedTokens")
	data := append(d[:], 0x10, 0x27, 0, 0, 0, 0, 0, 0)

	var out lockedTokens
	require.NoError(t, p.DecodeAccount("LockedTokens", data, &out))
	assert.Equal(t, uint64(10000), out.LockedAmount)

	data[0] ^= 0xff
	assert.ErrorIs(t, p.DecodeAccount("LockedTokens", data, &out), ErrDiscriminatorMismatch)
	assert.ErrorIs(t, p.DecodeAccount("LockedTokens", data[:4], &out), ErrDiscriminatorMismatch)
}

func TestParseProgramError(t *testing.T) {
	idl, err := ParseIDL([]byte(legacyIDL))
	require.NoError(t, err)

	tests := []struct {
		name    string
		logs    []string
		want    *ProgramError
		wantNil bool
	}{
		{
			name: "anchor error",
			logs: []string{
				"Program " + programID + " invoke [1]",
				"Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported.",
				"Program " + programID + " failed: custom program error: 0x65",
			},
			want: &ProgramError{Code: 101, Name: "InstructionFallbackNotFound", Message: "Fallback functions are not supported", ProgramID: programID},
		},
		{
			name: "constraint on account",
			logs: []string{
				"Program " + programID + " invoke [1]",
				"Program log: AnchorError caused by account: locked_account. Error Code: ConstraintSeeds. Error Number: 2006. Error Message: A seeds constraint was violated.",
			},
			want: &ProgramError{Code: 2006, Name: "ConstraintSeeds", Message: "A seeds constraint was violated", Account: "locked_account", ProgramID: programID},
		},
		{
			name: "custom code from idl",
			logs: []string{
				"Program " + programID + " invoke [1]",
				"Program " + programID + " failed: custom program error: 0x1770",
			},
			want: &ProgramError{Code: 6000, Name: "Overflow", Message: "Locked amount overflow", ProgramID: programID},
		},
		{
			name:    "no error",
			logs:    []string{"Program " + programID + " success"},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProgramError(tt.logs, idl)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			got.Logs = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeIDL(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "target", "idl")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o600))
}

func TestWorkspace_Program(t *testing.T) {
	fallback := solana.PublicKey{0x42}
	manifestID := solana.PublicKey{0x43}

	t.Run("nothing anywhere", func(t *testing.T) {
		ws, err := OpenWorkspace(t.TempDir(), "localnet", nil)
		require.NoError(t, err)
		_, err = ws.Program("HotwingsLocking")
		assert.ErrorIs(t, err, ErrProgramNotFound)
	})

	t.Run("default id without idl", func(t *testing.T) {
		ws, err := OpenWorkspace(t.TempDir(), "localnet", nil)
		require.NoError(t, err)
		p, err := ws.Program("HotwingsLocking", WithDefaultID(fallback))
		require.NoError(t, err)
		assert.Equal(t, fallback, p.ID)
		assert.Equal(t, "hotwings_locking", p.Name)
		assert.Nil(t, p.IDL)
	})

	t.Run("idl address beats default", func(t *testing.T) {
		root := t.TempDir()
		writeIDL(t, root, "hotwings_locking", legacyIDL)
		ws, err := OpenWorkspace(root, "localnet", nil)
		require.NoError(t, err)
		p, err := ws.Program("HotwingsLocking", WithDefaultID(fallback))
		require.NoError(t, err)
		assert.Equal(t, programID, p.ID.String())
		assert.NotNil(t, p.IDL)
	})

	t.Run("manifest beats idl, flag beats manifest", func(t *testing.T) {
		root := t.TempDir()
		writeIDL(t, root, "hotwings_locking", legacyIDL)
		manifest := "[programs.localnet]\nhotwings_locking = \"" + manifestID.String() + "\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(root, "Anchor.toml"), []byte(manifest), 0o600))

		ws, err := OpenWorkspace(root, "localnet", nil)
		require.NoError(t, err)
		p, err := ws.Program("hotwings_locking")
		require.NoError(t, err)
		assert.Equal(t, manifestID, p.ID)

		p, err = ws.Program("hotwings_locking", WithProgramID(fallback))
		require.NoError(t, err)
		assert.Equal(t, fallback, p.ID)
	})

	t.Run("embedded idl fallback", func(t *testing.T) {
		idl, err := ParseIDL([]byte(modernIDL))
		require.NoError(t, err)
		ws, err := OpenWorkspace(t.TempDir(), "devnet", nil)
		require.NoError(t, err)
		p, err := ws.Program("hotwings_locking", WithIDL(idl))
		require.NoError(t, err)
		assert.Same(t, idl, p.IDL)
		assert.Equal(t, programID, p.ID.String())
	})

	t.Run("malformed idl", func(t *testing.T) {
		root := t.TempDir()
		writeIDL(t, root, "hotwings_locking", "{")
		ws, err := OpenWorkspace(root, "localnet", nil)
		require.NoError(t, err)
		_, err = ws.Program("hotwings_locking", WithDefaultID(fallback))
		assert.ErrorIs(t, err, ErrInvalidIDL)
	})
}

func TestProgramErrorFromTxErr(t *testing.T) {
	idl, err := ParseIDL([]byte(legacyIDL))
	require.NoError(t, err)

	var txErr any
	require.NoError(t, json.Unmarshal([]byte(`{"InstructionError": [0, {"Custom": 6000}]}`), &txErr))

	got := ProgramErrorFromTxErr(txErr, programID, idl)
	require.NotNil(t, got)
	assert.Equal(t, &ProgramError{Code: 6000, Name: "Overflow", Message: "Locked amount overflow", ProgramID: programID}, got)

	require.NoError(t, json.Unmarshal([]byte(`{"InstructionError": [0, {"Custom": 2006}]}`), &txErr))
	got = ProgramErrorFromTxErr(txErr, programID, nil)
	require.NotNil(t, got)
	assert.Equal(t, "ConstraintSeeds", got.Name)

	assert.Nil(t, ProgramErrorFromTxErr("AccountInUse", programID, idl))
	require.NoError(t, json.Unmarshal([]byte(`{"InstructionError": [0, "InvalidArgument"]}`), &txErr))
	assert.Nil(t, ProgramErrorFromTxErr(txErr, programID, idl))
}
