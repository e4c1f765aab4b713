// Package msgpackserial carries packed calls as MessagePack. The serial
// form is the same JSON-like tree the JSON adapter uses; only the byte
// encoding differs. MessagePack preserves number typing (an encoded
// float stays a float) and produces smaller frames.
package msgpackserial

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"packrpc/serial"
)

// Adapter is stateless; the zero value is ready to use.
type Adapter struct {
	serial.Base
}

func (Adapter) Name() string {
	return "msgpack"
}

func (Adapter) FromWire(data []byte) (serial.Form, bool) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, false
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	if !serial.CheckShape(obj) {
		return nil, false
	}
	return obj, true
}

// ToWire encodes with sorted map keys so that identical requests always
// produce identical bytes; the server's result cache fingerprints
// requests by these bytes.
func (Adapter) ToWire(form serial.Form) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(form); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
