package msgpackserial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packrpc/packed"
	"packrpc/rpcerr"
	"packrpc/serial"
)

func TestPackRoundTrip(t *testing.T) {
	var ad Adapter
	sig, err := packed.SignatureOf(func(s string, ns []uint64) float64 { return 0 })
	require.NoError(t, err)

	pack, err := packed.NewWithResult("avg", sig, 2.5, []any{"weights", []uint64{1, 2, 3}})
	require.NoError(t, err)

	form, err := ad.SerializePack(pack)
	require.NoError(t, err)
	data, err := ad.ToWire(form)
	require.NoError(t, err)

	parsed, ok := ad.FromWire(data)
	require.True(t, ok)
	assert.Equal(t, "avg", ad.FuncName(parsed))

	got, err := ad.DeserializePack(parsed, sig)
	require.NoError(t, err)
	require.True(t, got.Ok())

	res, err := got.Result()
	require.NoError(t, err)
	assert.Equal(t, 2.5, res)
	assert.Equal(t, "weights", got.Args()[0])
	assert.Equal(t, []uint64{1, 2, 3}, got.Args()[1])
}

func TestErrorPackRoundTrip(t *testing.T) {
	var ad Adapter
	sig, err := packed.SignatureOf(func() int { return 0 })
	require.NoError(t, err)

	pack, err := packed.New("unknown_func", sig, nil)
	require.NoError(t, err)
	pack.SetError(rpcerr.FuncNotFound, `RPC error: Called function: "unknown_func" not found`)

	form, err := ad.SerializePack(pack)
	require.NoError(t, err)
	data, err := ad.ToWire(form)
	require.NoError(t, err)

	parsed, ok := ad.FromWire(data)
	require.True(t, ok)

	got, err := ad.DeserializePack(parsed, sig)
	require.NoError(t, err)
	_, err = got.Result()
	assert.Equal(t, rpcerr.FuncNotFound, rpcerr.KindOf(err))
	assert.Contains(t, err.Error(), "unknown_func")
}

// Identical requests must produce identical bytes: the server result
// cache keys on them.
func TestToWireIsDeterministic(t *testing.T) {
	var ad Adapter
	sig, err := packed.SignatureOf(func(n uint64) uint64 { return n })
	require.NoError(t, err)

	encode := func() []byte {
		pack, err := packed.New("fib", sig, []any{uint64(30)})
		require.NoError(t, err)
		form, err := ad.SerializePack(pack)
		require.NoError(t, err)
		data, err := ad.ToWire(form)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, encode(), encode())
}

func TestFloatTypingPreserved(t *testing.T) {
	var ad Adapter
	intSig, err := packed.SignatureOf(func(n int) int { return n })
	require.NoError(t, err)
	floatSig, err := packed.SignatureOf(func(f float64) float64 { return f })
	require.NoError(t, err)

	pack, err := packed.New("f", floatSig, []any{2.5})
	require.NoError(t, err)
	form, err := ad.SerializePack(pack)
	require.NoError(t, err)
	data, err := ad.ToWire(form)
	require.NoError(t, err)

	parsed, ok := ad.FromWire(data)
	require.True(t, ok)

	// A float wire value does not satisfy an integer parameter.
	_, err = ad.DeserializePack(parsed, intSig)
	assert.Equal(t, rpcerr.SignatureMismatch, rpcerr.KindOf(err))

	got, err := ad.DeserializePack(parsed, floatSig)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Args()[0])
}

func TestFromWireRejectsMalformed(t *testing.T) {
	var ad Adapter

	_, ok := ad.FromWire([]byte{0xFF, 0xFF, 0xFF})
	assert.False(t, ok, "a bare fixint is not an RPC object")

	_, ok = ad.FromWire(nil)
	assert.False(t, ok)

	// A valid msgpack map that fails shape validation.
	form := serial.Form{"func_name": ""}
	data, err := ad.ToWire(form)
	require.NoError(t, err)
	_, ok = ad.FromWire(data)
	assert.False(t, ok)
}
