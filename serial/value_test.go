package serial

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packrpc/rpcerr"
)

type point struct {
	X, Y int
}

func (p point) MarshalRPC() (any, error) {
	return map[string]any{"x": p.X, "y": p.Y}, nil
}

func (p *point) UnmarshalRPC(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return errors.New("point: expected object")
	}
	x, ok := asInt(obj["x"])
	if !ok {
		return errors.New("point: bad x")
	}
	y, ok := asInt(obj["y"])
	if !ok {
		return errors.New("point: bad y")
	}
	p.X, p.Y = int(x), int(y)
	return nil
}

func decode(t *testing.T, v any, typ reflect.Type) any {
	t.Helper()
	out, err := DecodeValue(v, typ)
	require.NoError(t, err)
	return out.Interface()
}

func TestPrimitivesRoundTrip(t *testing.T) {
	for _, v := range []any{true, false, "hello", int(-5), uint8(200), int64(1 << 40), 2.5} {
		w, err := EncodeValue(v)
		require.NoError(t, err)
		got := decode(t, w, reflect.TypeOf(v))
		assert.Equal(t, v, got)
	}
}

func TestSliceRoundTripPreservesOrderAndSize(t *testing.T) {
	w, err := EncodeValue([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, decode(t, w, reflect.TypeOf([]int{})))

	w, err = EncodeValue([][]string{{"a"}, {"b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}}, decode(t, w, reflect.TypeOf([][]string{})))
}

func TestFixedArrayLengthChecked(t *testing.T) {
	w, err := EncodeValue([3]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, [3]byte{1, 2, 3}, decode(t, w, reflect.TypeOf([3]byte{})))

	_, err = DecodeValue([]any{int64(1), int64(2)}, reflect.TypeOf([3]byte{}))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))
}

func TestUserTypeRoundTrip(t *testing.T) {
	w, err := EncodeValue(point{X: 3, Y: -7})
	require.NoError(t, err)
	assert.Equal(t, point{X: 3, Y: -7}, decode(t, w, reflect.TypeOf(point{})))
}

func TestIntRejectsFloatWireValue(t *testing.T) {
	_, err := DecodeValue(2.5, reflect.TypeOf(0))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))

	_, err = DecodeValue(json.Number("2.5"), reflect.TypeOf(0))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))
}

func TestFloatWidensIntegralWireValue(t *testing.T) {
	// JSON text cannot tell 4.0 from 4.
	assert.Equal(t, 4.0, decode(t, json.Number("4"), reflect.TypeOf(0.0)))
	assert.Equal(t, 4.0, decode(t, int64(4), reflect.TypeOf(0.0)))
}

func TestTypeMismatches(t *testing.T) {
	_, err := DecodeValue("hi", reflect.TypeOf(0))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))

	_, err = DecodeValue(int64(1), reflect.TypeOf(""))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))

	_, err = DecodeValue(true, reflect.TypeOf([]int{}))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))

	_, err = DecodeValue(int64(-1), reflect.TypeOf(uint(0)))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))
}

func TestIntOverflowChecked(t *testing.T) {
	_, err := DecodeValue(int64(300), reflect.TypeOf(int8(0)))
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))
}

func TestLargeUint64ViaJSONNumber(t *testing.T) {
	got := decode(t, json.Number("18446744073709551615"), reflect.TypeOf(uint64(0)))
	assert.Equal(t, uint64(1<<64-1), got)
}

func TestNativeAnyPassesThrough(t *testing.T) {
	raw := map[string]any{"k": int64(1)}
	got := decode(t, raw, reflect.TypeOf((*any)(nil)).Elem())
	assert.Equal(t, raw, got)
}

func TestEncodeRejectsUnsupported(t *testing.T) {
	_, err := EncodeValue(make(chan int))
	assert.Equal(t, rpcerr.Serialization, rpcerr.KindOf(err))

	_, err = EncodeValue(struct{ A int }{1})
	assert.Equal(t, rpcerr.Serialization, rpcerr.KindOf(err))
}
