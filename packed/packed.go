// Package packed holds the in-memory representation of a single RPC
// attempt: the function name, the positional argument values, and either
// a result or a classified error. A Call is built on the client before
// encoding and rebuilt on the server after decoding; both sides mutate
// it in place (the server writes the result or error, the handler writes
// back by-reference arguments) before it is re-encoded.
package packed

import (
	"fmt"

	"packrpc/rpcerr"
)

// Call is the packed form of one RPC invocation, bound to a Signature.
//
// At most one of {result, error} is observable: once an error kind is
// set, Result returns that error instead of any stored value.
type Call struct {
	funcName  string
	sig       *Signature
	args      []any
	result    any
	hasResult bool
	errKind   rpcerr.Kind
	errMesg   string
}

// New builds a call with no result and no error. This is the shape of an
// outgoing request, and of any void call.
func New(funcName string, sig *Signature, args []any) (*Call, error) {
	if funcName == "" {
		return nil, fmt.Errorf("rpc: packed call requires a function name")
	}
	if len(args) != len(sig.Params) {
		return nil, fmt.Errorf("rpc: packed call for %q has %d args, signature wants %d",
			funcName, len(args), len(sig.Params))
	}
	return &Call{funcName: funcName, sig: sig, args: args}, nil
}

// NewWithResult builds a call that already carries a decoded result, as
// reconstructed from a successful non-void response.
func NewWithResult(funcName string, sig *Signature, result any, args []any) (*Call, error) {
	if sig.Void() {
		return nil, fmt.Errorf("rpc: void call %q cannot carry a result", funcName)
	}
	c, err := New(funcName, sig, args)
	if err != nil {
		return nil, err
	}
	c.result = result
	c.hasResult = true
	return c, nil
}

// NewError builds an error-only call. Responses manufactured from an
// empty object carry no function name or args, so both may be missing.
func NewError(funcName string, sig *Signature, kind rpcerr.Kind, mesg string) *Call {
	return &Call{
		funcName: funcName,
		sig:      sig,
		args:     make([]any, len(sig.Params)),
		errKind:  kind,
		errMesg:  mesg,
	}
}

func (c *Call) FuncName() string { return c.funcName }

func (c *Call) Signature() *Signature { return c.sig }

// Args exposes the positional argument values. Handlers mutate elements
// through SetArg so that by-reference changes ride back on the response.
func (c *Call) Args() []any { return c.args }

func (c *Call) SetArg(i int, v any) { c.args[i] = v }

func (c *Call) SetResult(v any) {
	c.result = v
	c.hasResult = true
}

func (c *Call) ClearResult() {
	c.result = nil
	c.hasResult = false
}

func (c *Call) HasResult() bool { return c.hasResult }

// SetError records a failure. Subsequent Ok calls report false and
// Result surfaces the stored kind.
func (c *Call) SetError(kind rpcerr.Kind, mesg string) {
	c.errKind = kind
	c.errMesg = mesg
}

func (c *Call) ErrorKind() rpcerr.Kind { return c.errKind }

func (c *Call) ErrorMessage() string { return c.errMesg }

// Ok reports whether the call completed: no error is set and, for
// non-void signatures, a result is present.
func (c *Call) Ok() bool {
	if c.errKind != rpcerr.None {
		return false
	}
	return c.sig.Void() || c.hasResult
}

// Result returns the stored result value. If the call is not ok it
// returns the stored error instead; for void signatures a nil value is
// returned on success.
func (c *Call) Result() (any, error) {
	if !c.Ok() {
		if c.errKind != rpcerr.None {
			return nil, rpcerr.New(c.errKind, c.errMesg)
		}
		return nil, rpcerr.Newf(rpcerr.None, "rpc: call %q has no result", c.funcName)
	}
	if c.sig.Void() {
		return nil, nil
	}
	return c.result, nil
}
