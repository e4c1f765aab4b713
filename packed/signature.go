package packed

import (
	"fmt"
	"reflect"
)

// Param describes one positional parameter of a call signature. Type is
// the value type as it appears on the wire; ByRef marks parameters the
// caller passed as a pointer, whose post-call values are shipped back
// and rebound on the client.
type Param struct {
	Type  reflect.Type
	ByRef bool
}

// Signature is the runtime schema a packed call is bound to: the wire
// types of its parameters and its return type (nil for void). RetErr
// records a trailing error return on server-side callbacks; it is not
// part of the wire contract.
type Signature struct {
	Ret    reflect.Type
	Params []Param
	RetErr bool
}

// Void reports whether the signature has no return value.
func (s *Signature) Void() bool {
	return s.Ret == nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// SignatureOf derives a Signature from a callback. Pointer parameters
// become by-reference params of the pointed-to type. The callback may
// return nothing, a single value, an error, or (value, error).
func SignatureOf(fn any) (*Signature, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, fmt.Errorf("rpc: callback must be a function, got %T", fn)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("rpc: variadic callbacks are not supported")
	}

	sig := &Signature{Params: make([]Param, t.NumIn())}
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		if in.Kind() == reflect.Pointer {
			if in.Elem().Kind() == reflect.Pointer {
				return nil, fmt.Errorf("rpc: parameter %d: pointer-to-pointer parameters are not supported", i)
			}
			sig.Params[i] = Param{Type: in.Elem(), ByRef: true}
		} else {
			sig.Params[i] = Param{Type: in}
		}
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errType {
			sig.RetErr = true
		} else {
			sig.Ret = t.Out(0)
		}
	case 2:
		if t.Out(1) != errType {
			return nil, fmt.Errorf("rpc: second return value must be error, got %s", t.Out(1))
		}
		sig.Ret = t.Out(0)
		sig.RetErr = true
	default:
		return nil, fmt.Errorf("rpc: callback returns %d values, want at most 2", t.NumOut())
	}

	return sig, nil
}
