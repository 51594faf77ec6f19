package anchor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	"github.com/near/borsh-go"

	"github.com/hotwings/hwlock/internal/solana"
)

var ErrArgumentType = errors.New("argument does not match IDL type")

// encoder serialises dynamically typed values against IDL types with Borsh
type encoder struct {
	idl *IDL
	buf bytes.Buffer
}

func (e *encoder) write(v interface{}) error {
	b, err := borsh.Serialize(v)
	if err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

func typeErr(t IDLType, v any) error {
	return fmt.Errorf("%w: %s cannot hold %T (%v)", ErrArgumentType, t, v, v)
}

func (e *encoder) encode(t IDLType, v any) error {
	switch {
	case t.Primitive != "":
		return e.encodePrimitive(t, v)
	case t.Option != nil:
		if v == nil {
			return e.write(uint8(0))
		}
		if err := e.write(uint8(1)); err != nil {
			return err
		}
		return e.encode(*t.Option, v)
	case t.Vec != nil:
		items, err := sliceOf(*t.Vec, v)
		if err != nil {
			return typeErr(t, v)
		}
		if uint64(len(items)) > math.MaxUint32 {
			return fmt.Errorf("%w: vec too long", ErrArgumentType)
		}
		if err := e.write(uint32(len(items))); err != nil {
			return err
		}
		for _, item := range items {
			if err := e.encode(*t.Vec, item); err != nil {
				return err
			}
		}
		return nil
	case t.Array != nil:
		items, err := sliceOf(*t.Array, v)
		if err != nil || len(items) != t.Len {
			return typeErr(t, v)
		}
		for _, item := range items {
			if err := e.encode(*t.Array, item); err != nil {
				return err
			}
		}
		return nil
	case t.Defined != "":
		return e.encodeDefined(t, v)
	default:
		return fmt.Errorf("%w: empty type", ErrInvalidIDL)
	}
}

func (e *encoder) encodePrimitive(t IDLType, v any) error {
	switch t.Primitive {
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return typeErr(t, v)
		}
		return e.write(b)
	case "u8", "u16", "u32", "u64":
		bits, _ := strconv.Atoi(t.Primitive[1:])
		n, err := toUint(v, bits)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArgumentType, t, err)
		}
		switch bits {
		case 8:
			return e.write(uint8(n))
		case 16:
			return e.write(uint16(n))
		case 32:
			return e.write(uint32(n))
		default:
			return e.write(n)
		}
	case "i8", "i16", "i32", "i64":
		bits, _ := strconv.Atoi(t.Primitive[1:])
		n, err := toInt(v, bits)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArgumentType, t, err)
		}
		switch bits {
		case 8:
			return e.write(int8(n))
		case 16:
			return e.write(int16(n))
		case 32:
			return e.write(int32(n))
		default:
			return e.write(n)
		}
	case "u128":
		n, err := toBig(v)
		if err != nil || n.Sign() < 0 || n.BitLen() > 128 {
			return typeErr(t, v)
		}
		return e.write(*n)
	case "f32", "f64":
		f, err := toFloat(v)
		if err != nil {
			return typeErr(t, v)
		}
		if t.Primitive == "f32" {
			return e.write(float32(f))
		}
		return e.write(f)
	case "string":
		s, ok := v.(string)
		if !ok {
			return typeErr(t, v)
		}
		return e.write(s)
	case "bytes":
		b, err := toBytes(v)
		if err != nil {
			return typeErr(t, v)
		}
		return e.write(b)
	case "pubkey":
		pk, err := toPublicKey(v)
		if err != nil {
			return typeErr(t, v)
		}
		return e.write([solana.PublicKeyLength]byte(pk))
	default:
		return fmt.Errorf("%w: unsupported primitive %q", ErrArgumentType, t.Primitive)
	}
}

func (e *encoder) encodeDefined(t IDLType, v any) error {
	if e.idl == nil {
		return fmt.Errorf("%w: defined type %s without IDL", ErrArgumentType, t.Defined)
	}
	def, ok := e.idl.Type(t.Defined)
	if !ok {
		return fmt.Errorf("%w: unknown type %s", ErrInvalidIDL, t.Defined)
	}

	switch def.Kind {
	case "struct":
		fields, ok := v.(map[string]any)
		if !ok {
			return typeErr(t, v)
		}
		return e.encodeFields(def.Fields, fields)
	case "enum":
		// unit variants are given by name, others as {"Variant": {fields}}
		var (
			name   string
			fields map[string]any
		)
		switch val := v.(type) {
		case string:
			name = val
		case map[string]any:
			if len(val) != 1 {
				return typeErr(t, v)
			}
			for k, inner := range val {
				name = k
				fields, _ = inner.(map[string]any)
			}
		default:
			return typeErr(t, v)
		}
		for i, variant := range def.Variants {
			if !sameName(variant.Name, name) {
				continue
			}
			if err := e.write(uint8(i)); err != nil {
				return err
			}
			return e.encodeFields(variant.Fields, fields)
		}
		return fmt.Errorf("%w: %s has no variant %q", ErrArgumentType, def.Name, name)
	default:
		return fmt.Errorf("%w: type %s has unsupported kind %q", ErrInvalidIDL, def.Name, def.Kind)
	}
}

func (e *encoder) encodeFields(defs []IDLField, values map[string]any) error {
	for _, f := range defs {
		v, ok := lookupField(values, f.Name)
		if !ok {
			return fmt.Errorf("%w: missing field %s", ErrArgumentType, f.Name)
		}
		if err := e.encode(f.Type, v); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func sameName(a, b string) bool {
	return SnakeCase(a) == SnakeCase(b)
}

func lookupField(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if sameName(k, name) {
			return v, true
		}
	}
	return nil, false
}

// EncodeArgs Borsh-encodes args against the IDL argument list
func EncodeArgs(idl *IDL, fields []IDLField, args []any) ([]byte, error) {
	if len(args) != len(fields) {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrArgumentType, len(fields), len(args))
	}
	e := &encoder{idl: idl}
	for i, f := range fields {
		if err := e.encode(f.Type, args[i]); err != nil {
			return nil, fmt.Errorf("argument %s: %w", f.Name, err)
		}
	}
	return e.buf.Bytes(), nil
}

// EncodeRaw Borsh-encodes statically typed Go values in order
func EncodeRaw(args []any) ([]byte, error) {
	e := &encoder{}
	for i, a := range args {
		if pk, ok := a.(solana.PublicKey); ok {
			a = [solana.PublicKeyLength]byte(pk)
		}
		if err := e.write(a); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return e.buf.Bytes(), nil
}

func sliceOf(elem IDLType, v any) ([]any, error) {
	if elem.Primitive == "u8" {
		if b, err := toBytes(v); err == nil {
			out := make([]any, len(b))
			for i := range b {
				out[i] = uint64(b[i])
			}
			return out, nil
		}
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, ErrArgumentType
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func toUint(v any, bits int) (uint64, error) {
	var (
		n   uint64
		err error
	)
	switch val := v.(type) {
	case uint8:
		n = uint64(val)
	case uint16:
		n = uint64(val)
	case uint32:
		n = uint64(val)
	case uint64:
		n = val
	case uint:
		n = uint64(val)
	case int, int8, int16, int32, int64:
		i := reflect.ValueOf(val).Int()
		if i < 0 {
			return 0, fmt.Errorf("negative value %d", i)
		}
		n = uint64(i)
	case float64:
		if val < 0 || val != math.Trunc(val) || val >= 1<<64 {
			return 0, fmt.Errorf("%v is not an unsigned integer", val)
		}
		n = uint64(val)
	case json.Number:
		n, err = strconv.ParseUint(val.String(), 10, 64)
	case string:
		n, err = strconv.ParseUint(val, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported %T", v)
	}
	if err != nil {
		return 0, err
	}
	if bits < 64 && n >= 1<<uint(bits) {
		return 0, fmt.Errorf("%d overflows u%d", n, bits)
	}
	return n, nil
}

func toInt(v any, bits int) (int64, error) {
	var (
		n   int64
		err error
	)
	switch val := v.(type) {
	case int, int8, int16, int32, int64:
		n = reflect.ValueOf(val).Int()
	case uint8, uint16, uint32, uint64, uint:
		u := reflect.ValueOf(val).Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows i64", u)
		}
		n = int64(u)
	case float64:
		if val != math.Trunc(val) || val >= 1<<63 || val < -1<<63 {
			return 0, fmt.Errorf("%v is not an integer", val)
		}
		n = int64(val)
	case json.Number:
		n, err = strconv.ParseInt(val.String(), 10, 64)
	case string:
		n, err = strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported %T", v)
	}
	if err != nil {
		return 0, err
	}
	if bits < 64 {
		limit := int64(1) << uint(bits-1)
		if n < -limit || n >= limit {
			return 0, fmt.Errorf("%d overflows i%d", n, bits)
		}
	}
	return n, nil
}

func toBig(v any) (*big.Int, error) {
	switch val := v.(type) {
	case *big.Int:
		return val, nil
	case big.Int:
		return &val, nil
	case json.Number:
		return parseBig(val.String())
	case string:
		return parseBig(val)
	default:
		n, err := toUint(v, 64)
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetUint64(n), nil
	}
}

func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		i, err := toInt(v, 64)
		return float64(i), err
	}
}

func toBytes(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return base64.StdEncoding.DecodeString(val)
	default:
		return nil, ErrArgumentType
	}
}

func toPublicKey(v any) (solana.PublicKey, error) {
	switch val := v.(type) {
	case solana.PublicKey:
		return val, nil
	case string:
		return solana.PublicKeyFromBase58(val)
	default:
		return solana.PublicKey{}, ErrArgumentType
	}
}
