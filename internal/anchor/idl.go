package anchor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrInvalidIDL = errors.New("invalid IDL")

// IDL is a program interface description normalised from either the legacy
// (pre-0.30) or the 0.30+ Anchor JSON layout. Names are stored in snake case.
type IDL struct {
	Address      string
	Name         string
	Version      string
	Instructions []IDLInstruction
	Accounts     []IDLAccountDef
	Types        []IDLTypeDef
	Errors       []IDLErrorCode
}

// IDLInstruction describes one program entry point
type IDLInstruction struct {
	Name          string
	Discriminator Discriminator
	Accounts      []IDLAccountItem
	Args          []IDLField
}

// IDLAccountItem is one account slot of an instruction, flattened
type IDLAccountItem struct {
	Name     string
	Writable bool
	Signer   bool
	Optional bool
	// Address is set when the IDL pins the account to a fixed key
	Address string
}

// IDLField is a named, typed field or argument
type IDLField struct {
	Name string
	Type IDLType
}

// IDLAccountDef is an account data layout
type IDLAccountDef struct {
	Name          string
	Discriminator Discriminator
}

// IDLTypeDef is a user-defined struct or enum
type IDLTypeDef struct {
	Name     string
	Kind     string
	Fields   []IDLField
	Variants []IDLVariant
}

// IDLVariant is an enum variant; Fields is empty for unit variants
type IDLVariant struct {
	Name   string
	Fields []IDLField
}

// IDLErrorCode is a program-defined error
type IDLErrorCode struct {
	Code int
	Name string
	Msg  string
}

// IDLType is a Borsh type reference
type IDLType struct {
	// Primitive is one of bool, u8..u128, i8..i128, f32, f64, string, bytes, pubkey
	Primitive string
	Option    *IDLType
	Vec       *IDLType
	Array     *IDLType
	Len       int
	Defined   string
}

func (t IDLType) String() string {
	switch {
	case t.Primitive != "":
		return t.Primitive
	case t.Option != nil:
		return "option<" + t.Option.String() + ">"
	case t.Vec != nil:
		return "vec<" + t.Vec.String() + ">"
	case t.Array != nil:
		return fmt.Sprintf("[%s; %d]", t.Array.String(), t.Len)
	default:
		return t.Defined
	}
}

// UnmarshalJSON accepts "u64", {"vec": T}, {"option": T}, {"array": [T, N]},
// {"defined": "Name"} and {"defined": {"name": "Name"}}
func (t *IDLType) UnmarshalJSON(data []byte) error {
	var prim string
	if err := json.Unmarshal(data, &prim); err == nil {
		if prim == "publicKey" {
			prim = "pubkey"
		}
		t.Primitive = prim
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: type %s", ErrInvalidIDL, data)
	}

	if raw, ok := obj["option"]; ok {
		t.Option = &IDLType{}
		return json.Unmarshal(raw, t.Option)
	}
	if raw, ok := obj["coption"]; ok {
		t.Option = &IDLType{}
		return json.Unmarshal(raw, t.Option)
	}
	if raw, ok := obj["vec"]; ok {
		t.Vec = &IDLType{}
		return json.Unmarshal(raw, t.Vec)
	}
	if raw, ok := obj["array"]; ok {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return fmt.Errorf("%w: array type %s", ErrInvalidIDL, raw)
		}
		t.Array = &IDLType{}
		if err := json.Unmarshal(pair[0], t.Array); err != nil {
			return err
		}
		if err := json.Unmarshal(pair[1], &t.Len); err != nil {
			return fmt.Errorf("%w: array length %s", ErrInvalidIDL, pair[1])
		}
		return nil
	}
	if raw, ok := obj["defined"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			t.Defined = name
			return nil
		}
		var ref struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &ref); err != nil {
			return fmt.Errorf("%w: defined type %s", ErrInvalidIDL, raw)
		}
		t.Defined = ref.Name
		return nil
	}

	return fmt.Errorf("%w: unsupported type %s", ErrInvalidIDL, data)
}

type rawField struct {
	Name string  `json:"name"`
	Type IDLType `json:"type"`
}

type rawAccountItem struct {
	Name string `json:"name"`

	// legacy
	IsMut      bool `json:"isMut"`
	IsSigner   bool `json:"isSigner"`
	IsOptional bool `json:"isOptional"`

	// 0.30
	Writable bool   `json:"writable"`
	Signer   bool   `json:"signer"`
	Optional bool   `json:"optional"`
	Address  string `json:"address"`

	// composite accounts, both layouts
	Accounts []rawAccountItem `json:"accounts"`
}

type rawTypeDef struct {
	Name string `json:"name"`
	Type struct {
		Kind     string            `json:"kind"`
		Fields   []json.RawMessage `json:"fields"`
		Variants []struct {
			Name   string            `json:"name"`
			Fields []json.RawMessage `json:"fields"`
		} `json:"variants"`
	} `json:"type"`
}

type rawIDL struct {
	// legacy top level
	Name    string `json:"name"`
	Version string `json:"version"`

	// 0.30 top level
	Address string `json:"address"`

	Metadata struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Address string `json:"address"`
	} `json:"metadata"`

	Instructions []struct {
		Name     string           `json:"name"`
		RawDisc  []int            `json:"discriminator"`
		Accounts []rawAccountItem `json:"accounts"`
		Args     []rawField       `json:"args"`
	} `json:"instructions"`

	// legacy accounts embed their layout under "type"
	Accounts []struct {
		rawTypeDef
		RawDisc []int `json:"discriminator"`
	} `json:"accounts"`

	Types []rawTypeDef `json:"types"`

	Errors []rawErrorCode `json:"errors"`
}

type rawErrorCode struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

func toDiscriminator(raw []int) (Discriminator, bool, error) {
	var d Discriminator
	if len(raw) == 0 {
		return d, false, nil
	}
	if len(raw) != DiscriminatorLength {
		return d, false, fmt.Errorf("%w: discriminator must be %d bytes, got %d", ErrInvalidIDL, DiscriminatorLength, len(raw))
	}
	for i, v := range raw {
		if v < 0 || v > 255 {
			return d, false, fmt.Errorf("%w: discriminator byte %d out of range", ErrInvalidIDL, v)
		}
		d[i] = byte(v)
	}
	return d, true, nil
}

func flattenAccounts(items []rawAccountItem, out []IDLAccountItem) []IDLAccountItem {
	for _, item := range items {
		if len(item.Accounts) > 0 {
			out = flattenAccounts(item.Accounts, out)
			continue
		}
		out = append(out, IDLAccountItem{
			Name:     SnakeCase(item.Name),
			Writable: item.IsMut || item.Writable,
			Signer:   item.IsSigner || item.Signer,
			Optional: item.IsOptional || item.Optional,
			Address:  item.Address,
		})
	}
	return out
}

func parseFields(raw []json.RawMessage) ([]IDLField, error) {
	fields := make([]IDLField, 0, len(raw))
	for i, r := range raw {
		var f rawField
		if err := json.Unmarshal(r, &f); err == nil && f.Name != "" {
			fields = append(fields, IDLField{Name: SnakeCase(f.Name), Type: f.Type})
			continue
		}
		// tuple fields carry only a type
		var t IDLType
		if err := json.Unmarshal(r, &t); err != nil {
			return nil, err
		}
		fields = append(fields, IDLField{Name: fmt.Sprintf("%d", i), Type: t})
	}
	return fields, nil
}

// ParseIDL decodes an IDL in either Anchor layout
func ParseIDL(data []byte) (*IDL, error) {
	var raw rawIDL
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDL, err)
	}

	idl := &IDL{
		Address: raw.Address,
		Name:    raw.Name,
		Version: raw.Version,
	}
	if idl.Address == "" {
		idl.Address = raw.Metadata.Address
	}
	if idl.Name == "" {
		idl.Name = raw.Metadata.Name
	}
	if idl.Version == "" {
		idl.Version = raw.Metadata.Version
	}
	if idl.Name == "" {
		return nil, fmt.Errorf("%w: missing program name", ErrInvalidIDL)
	}
	idl.Name = SnakeCase(idl.Name)

	for _, ri := range raw.Instructions {
		ix := IDLInstruction{
			Name:     SnakeCase(ri.Name),
			Accounts: flattenAccounts(ri.Accounts, nil),
		}
		d, ok, err := toDiscriminator(ri.RawDisc)
		if err != nil {
			return nil, fmt.Errorf("instruction %s: %w", ri.Name, err)
		}
		if !ok {
			d = InstructionDiscriminator(ix.Name)
		}
		ix.Discriminator = d
		for _, a := range ri.Args {
			ix.Args = append(ix.Args, IDLField{Name: SnakeCase(a.Name), Type: a.Type})
		}
		idl.Instructions = append(idl.Instructions, ix)
	}

	for _, ra := range raw.Accounts {
		d, ok, err := toDiscriminator(ra.RawDisc)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", ra.Name, err)
		}
		if !ok {
			d = AccountDiscriminator(ra.Name)
		}
		idl.Accounts = append(idl.Accounts, IDLAccountDef{Name: ra.Name, Discriminator: d})
		if ra.Type.Kind != "" {
			raw.Types = append(raw.Types, ra.rawTypeDef)
		}
	}

	for _, rt := range raw.Types {
		td := IDLTypeDef{Name: rt.Name, Kind: rt.Type.Kind}
		fields, err := parseFields(rt.Type.Fields)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", rt.Name, err)
		}
		td.Fields = fields
		for _, rv := range rt.Type.Variants {
			vf, err := parseFields(rv.Fields)
			if err != nil {
				return nil, fmt.Errorf("type %s variant %s: %w", rt.Name, rv.Name, err)
			}
			td.Variants = append(td.Variants, IDLVariant{Name: rv.Name, Fields: vf})
		}
		idl.Types = append(idl.Types, td)
	}

	for _, e := range raw.Errors {
		idl.Errors = append(idl.Errors, IDLErrorCode(e))
	}

	return idl, nil
}

// LoadIDL reads and parses an IDL file
func LoadIDL(path string) (*IDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IDL: %w", err)
	}
	idl, err := ParseIDL(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idl, nil
}

// Instruction looks up an instruction by JS-style or snake-case name
func (idl *IDL) Instruction(name string) (*IDLInstruction, bool) {
	snake := SnakeCase(name)
	for i := range idl.Instructions {
		if idl.Instructions[i].Name == snake {
			return &idl.Instructions[i], true
		}
	}
	return nil, false
}

// Account looks up an account layout by name
func (idl *IDL) Account(name string) (*IDLAccountDef, bool) {
	pascal := PascalCase(name)
	for i := range idl.Accounts {
		if PascalCase(idl.Accounts[i].Name) == pascal {
			return &idl.Accounts[i], true
		}
	}
	return nil, false
}

// Type looks up a defined type by name
func (idl *IDL) Type(name string) (*IDLTypeDef, bool) {
	for i := range idl.Types {
		if idl.Types[i].Name == name {
			return &idl.Types[i], true
		}
	}
	return nil, false
}

// ErrorByCode finds a program-defined error
func (idl *IDL) ErrorByCode(code int) (*IDLErrorCode, bool) {
	if idl == nil {
		return nil, false
	}
	for i := range idl.Errors {
		if idl.Errors[i].Code == code {
			return &idl.Errors[i], true
		}
	}
	return nil, false
}
