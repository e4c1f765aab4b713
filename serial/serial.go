// Package serial defines the adapter boundary between typed packed calls
// and wire bytes. An adapter owns two representations: the serial form
// (a JSON-like value tree, map[string]any in both bundled adapters) and
// the wire form (the byte sequence the transport carries).
//
// The serial form of a call uses these fields:
//
//	func_name   string  callee name
//	args        array   positional argument values, in declaration order
//	result      any     present on successful non-void responses
//	except_type int     error kind code, written whenever the call is not ok
//	err_mesg    string  human-readable error text
package serial

import (
	"packrpc/packed"
	"packrpc/rpcerr"
)

// Form is an adapter's in-memory structured representation of a call.
type Form = map[string]any

// Adapter converts between packed calls, serial forms, and wire bytes.
// Adapters are stateless; one instance may serve any number of sessions.
type Adapter interface {
	// FromWire parses wire bytes into a serial form. It never fails
	// loudly: malformed bytes, or a form that does not validate against
	// the field shape above, report ok=false.
	FromWire(data []byte) (Form, bool)

	// ToWire encodes a well-formed serial form into wire bytes.
	ToWire(form Form) ([]byte, error)

	// EmptyObject returns a neutral container, used to manufacture
	// error-only responses when a request cannot be parsed.
	EmptyObject() Form

	// SerializePack encodes a packed call: name, args, and either the
	// result (when the call is ok) or the error fields.
	SerializePack(pack *packed.Call) (Form, error)

	// DeserializePack rebuilds a packed call, validating every argument
	// and the result against the signature.
	DeserializePack(form Form, sig *packed.Signature) (*packed.Call, error)

	// FuncName reads the callee name, or "" when absent.
	FuncName(form Form) string

	// ExtractException reads the error fields, or nil when the form
	// carries no error.
	ExtractException(form Form) *rpcerr.Error

	// SetException writes the error fields into the form in place.
	SetException(form Form, err *rpcerr.Error)

	// Name identifies the adapter (for logs and registry metadata).
	Name() string
}

// CheckShape validates a decoded object against the wire field contract:
// an object carrying a non-zero except_type must carry err_mesg; any
// other object must carry a non-empty func_name string and an args
// array. Error-carrying objects may be otherwise empty.
func CheckShape(obj Form) bool {
	if raw, ok := obj["except_type"]; ok {
		code, ok := asInt(raw)
		if !ok {
			return false
		}
		if code != 0 {
			_, ok := obj["err_mesg"].(string)
			return ok
		}
	}

	name, ok := obj["func_name"].(string)
	if !ok || name == "" {
		return false
	}
	if _, ok := obj["args"].([]any); !ok {
		return false
	}
	return true
}

// Base supplies the adapter operations that are independent of the byte
// encoding. Concrete adapters embed it and add FromWire/ToWire/Name.
type Base struct{}

func (Base) EmptyObject() Form {
	return Form{}
}

func (Base) FuncName(form Form) string {
	name, _ := form["func_name"].(string)
	return name
}

func (Base) ExtractException(form Form) *rpcerr.Error {
	code, ok := asInt(form["except_type"])
	if !ok || code == 0 {
		return nil
	}
	mesg, _ := form["err_mesg"].(string)
	return rpcerr.New(rpcerr.Kind(code), mesg)
}

func (Base) SetException(form Form, err *rpcerr.Error) {
	form["except_type"] = int(err.Kind)
	form["err_mesg"] = err.Mesg
}

func (Base) SerializePack(pack *packed.Call) (Form, error) {
	obj := Form{}
	obj["func_name"] = pack.FuncName()

	args := make([]any, len(pack.Args()))
	for i, a := range pack.Args() {
		w, err := EncodeValue(a)
		if err != nil {
			return nil, rpcerr.Coerce(err, rpcerr.Serialization)
		}
		args[i] = w
	}
	obj["args"] = args

	// Non-void requests and failed calls alike carry the error fields; a
	// non-void request simply carries kind 0. Ok void packs carry neither
	// error fields nor a result.
	if !pack.Ok() {
		obj["except_type"] = int(pack.ErrorKind())
		obj["err_mesg"] = pack.ErrorMessage()
		return obj, nil
	}

	if !pack.Signature().Void() {
		res, err := pack.Result()
		if err != nil {
			return nil, rpcerr.Coerce(err, rpcerr.Serialization)
		}
		w, err := EncodeValue(res)
		if err != nil {
			return nil, rpcerr.Coerce(err, rpcerr.Serialization)
		}
		obj["result"] = w
	}

	return obj, nil
}

func (Base) DeserializePack(form Form, sig *packed.Signature) (*packed.Call, error) {
	excKind := rpcerr.None
	excMesg := ""
	if raw, hasExc := form["except_type"]; hasExc {
		code, ok := asInt(raw)
		if !ok {
			return nil, rpcerr.New(rpcerr.Deserialization, "RPC object has a malformed except_type field")
		}
		excKind = rpcerr.Kind(code)
		excMesg, _ = form["err_mesg"].(string)
	}

	name, _ := form["func_name"].(string)

	rawArgs, hasArgs := form["args"].([]any)
	if !hasArgs {
		// Error-only responses built from an empty object have no name
		// and no args.
		if excKind != rpcerr.None {
			return packed.NewError(name, sig, excKind, excMesg), nil
		}
		return nil, rpcerr.New(rpcerr.Deserialization, "RPC object has no args field")
	}

	if len(rawArgs) != len(sig.Params) {
		return nil, rpcerr.New(rpcerr.SignatureMismatch, "Argument count mismatch")
	}

	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		v, err := DecodeValue(raw, sig.Params[i].Type)
		if err != nil {
			return nil, rpcerr.Coerce(err, rpcerr.Deserialization)
		}
		args[i] = v.Interface()
	}

	if excKind == rpcerr.None && !sig.Void() {
		if raw, ok := form["result"]; ok && raw != nil {
			rv, err := DecodeValue(raw, sig.Ret)
			if err != nil {
				return nil, rpcerr.Coerce(err, rpcerr.Deserialization)
			}
			return packed.NewWithResult(name, sig, rv.Interface(), args)
		}
	}

	if name == "" && excKind != rpcerr.None {
		return packed.NewError(name, sig, excKind, excMesg), nil
	}

	pack, err := packed.New(name, sig, args)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Deserialization)
	}
	if excKind != rpcerr.None {
		pack.SetError(excKind, excMesg)
	}
	return pack, nil
}
