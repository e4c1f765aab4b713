package serial

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"packrpc/rpcerr"
)

// Marshaler lets a user-defined type opt in to RPC serialization. The
// returned value must be a wire tree (primitives, []any, map[string]any)
// and must satisfy the round-trip law with UnmarshalRPC: decoding what
// MarshalRPC produced yields an equal value.
type Marshaler interface {
	MarshalRPC() (any, error)
}

// Unmarshaler is the decoding half of the user-type contract. It is
// implemented on the pointer receiver so decoding can populate a fresh
// value.
type Unmarshaler interface {
	UnmarshalRPC(v any) error
}

var (
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
	anyType         = reflect.TypeOf((*any)(nil)).Elem()
)

// EncodeValue converts an argument or result value into a wire tree.
// Booleans, integers, floats and strings pass through; slices and arrays
// become []any element by element; maps with string keys become
// map[string]any; user types go through MarshalRPC. Anything else fails
// with a serialization error.
func EncodeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if m, ok := v.(Marshaler); ok {
		tree, err := m.MarshalRPC()
		if err != nil {
			return nil, rpcerr.Coerce(err, rpcerr.Serialization)
		}
		return normalizeTree(tree)
	}

	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		json.Number:
		return v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			w, err := EncodeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, rpcerr.Newf(rpcerr.Serialization, "cannot encode map with %s keys", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			w, err := EncodeValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = w
		}
		return out, nil
	default:
		return nil, rpcerr.Newf(rpcerr.Serialization, "cannot encode value of type %T", v)
	}
}

// normalizeTree re-encodes the output of a MarshalRPC so nested values
// obey the same rules as directly encoded ones.
func normalizeTree(tree any) (any, error) {
	switch t := tree.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			w, err := EncodeValue(v)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	default:
		return EncodeValue(tree)
	}
}

// DecodeValue converts a wire value into the declared Go type, enforcing
// the adapter type-mapping rules: wire booleans for bool, non-float
// numbers for integer types, numbers for float types (integral values
// are converted, exactly up to 2^53), strings for string, arrays for
// slices and arrays.
// A declared `any` passes the wire value through untouched. Type
// mismatches fail with signature_mismatch.
func DecodeValue(v any, t reflect.Type) (reflect.Value, error) {
	if t == anyType {
		if v == nil {
			return reflect.Zero(anyType), nil
		}
		return reflect.ValueOf(&v).Elem(), nil
	}

	if reflect.PointerTo(t).Implements(unmarshalerType) {
		if v == nil {
			return reflect.Value{}, mismatchError(t, v)
		}
		pv := reflect.New(t)
		if err := pv.Interface().(Unmarshaler).UnmarshalRPC(v); err != nil {
			return reflect.Value{}, rpcerr.Coerce(err, rpcerr.Deserialization)
		}
		return pv.Elem(), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		return reflect.ValueOf(b).Convert(t), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := asInt(v)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		out := reflect.New(t).Elem()
		if out.OverflowInt(i) {
			return reflect.Value{}, rpcerr.Newf(rpcerr.SignatureMismatch, "value %d overflows %s", i, t)
		}
		out.SetInt(i)
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, ok := asUint(v)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		out := reflect.New(t).Elem()
		if out.OverflowUint(u) {
			return reflect.Value{}, rpcerr.Newf(rpcerr.SignatureMismatch, "value %d overflows %s", u, t)
		}
		out.SetUint(u)
		return out, nil

	case reflect.Float32, reflect.Float64:
		f, ok := asFloat(v)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		out := reflect.New(t).Elem()
		out.SetFloat(f)
		return out, nil

	case reflect.String:
		s, ok := v.(string)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		return reflect.ValueOf(s).Convert(t), nil

	case reflect.Slice:
		// Binary-capable encodings may deliver byte slices directly.
		if b, ok := v.([]byte); ok && t.Elem().Kind() == reflect.Uint8 {
			out := reflect.MakeSlice(t, len(b), len(b))
			reflect.Copy(out, reflect.ValueOf(b))
			return out, nil
		}
		arr, ok := v.([]any)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		out := reflect.MakeSlice(t, len(arr), len(arr))
		for i, el := range arr {
			ev, err := DecodeValue(el, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Array:
		arr, ok := v.([]any)
		if !ok {
			return reflect.Value{}, mismatchError(t, v)
		}
		if len(arr) != t.Len() {
			return reflect.Value{}, rpcerr.Newf(rpcerr.SignatureMismatch,
				"expected array of length %d, got length %d", t.Len(), len(arr))
		}
		out := reflect.New(t).Elem()
		for i, el := range arr {
			ev, err := DecodeValue(el, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	default:
		return reflect.Value{}, rpcerr.Newf(rpcerr.Deserialization, "unsupported parameter type %s", t)
	}
}

func mismatchError(want reflect.Type, got any) *rpcerr.Error {
	return rpcerr.Newf(rpcerr.SignatureMismatch, "expected type: %s, got type: %s", want, wireTypeName(got))
}

func wireTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case json.Number:
		return "number"
	case float32, float64:
		return "float"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// asInt reads any integral wire value as int64. Floats are rejected:
// an integer parameter fed a float wire value is a signature mismatch.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case json.Number:
		// Values above MaxInt64 still fit a uint64, so parse unsigned.
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int, int8, int16, int32, int64:
		i, _ := asInt(v)
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	default:
		return 0, false
	}
}

// asFloat accepts float wire values and widens integral ones. The JSON
// text form cannot tell 4.0 from 4, so whole-valued floats must not be
// rejected; the reverse direction (float into an integer parameter)
// stays an error.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	if u, ok := asUint(v); ok {
		return float64(u), true
	}
	return 0, false
}
