// Package jsonserial carries packed calls as JSON text.
// Pros: human-readable, cross-language, easy to debug on the wire.
// Cons: larger payloads, and number typing is weaker than msgpack
// (whole floats are indistinguishable from integers in the text form).
package jsonserial

import (
	"bytes"
	"encoding/json"

	"packrpc/serial"
)

// Adapter is stateless; the zero value is ready to use.
type Adapter struct {
	serial.Base
}

func (Adapter) Name() string {
	return "json"
}

// FromWire parses JSON text. Numbers are kept as json.Number so integer
// arguments survive undamaged; any parse failure or shape violation
// reports ok=false.
func (Adapter) FromWire(data []byte) (serial.Form, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false // trailing data after the object
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

func (Adapter) ToWire(form serial.Form) ([]byte, error) {
	return json.Marshal(form)
}
