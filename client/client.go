// Package client implements the invocation engine: build a packed call
// from typed arguments, push it through the adapter and transport, and
// bind the response back — including the server's mutations to
// pointer-passed arguments.
package client

import (
	"reflect"

	"packrpc/packed"
	"packrpc/rpcerr"
	"packrpc/serial"
)

// Transport carries one request frame out and one response frame back.
// The engine assumes strictly serialized request/reply: it sends, then
// blocks on Receive until the matching response arrives.
type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
}

// Client issues synchronous calls over a single transport. A Client is
// not safe for concurrent calls; callers wanting parallelism open one
// client per goroutine (see transport.Pool).
type Client struct {
	adapter   serial.Adapter
	transport Transport
}

func New(adapter serial.Adapter, t Transport) *Client {
	return &Client{adapter: adapter, transport: t}
}

// Call invokes funcName remotely and returns its result as R.
//
// Arguments are captured by value. Passing a pointer marks the argument
// by-reference: the value it points to is sent, and after a successful
// call the pointee is overwritten with the server's (possibly mutated)
// value.
func Call[R any](c *Client, funcName string, args ...any) (R, error) {
	var zero R
	res, err := c.call(funcName, reflect.TypeOf((*R)(nil)).Elem(), args)
	if err != nil {
		return zero, err
	}
	out, ok := res.(R)
	if !ok {
		if res == nil {
			return zero, nil
		}
		return zero, rpcerr.Newf(rpcerr.SignatureMismatch,
			"result type %T does not match requested type", res)
	}
	return out, nil
}

// CallVoid invokes a remote function that returns nothing.
func CallVoid(c *Client, funcName string, args ...any) error {
	_, err := c.call(funcName, nil, args)
	return err
}

func (c *Client) call(funcName string, ret reflect.Type, args []any) (any, error) {
	sig := &packed.Signature{Ret: ret, Params: make([]packed.Param, len(args))}
	vals := make([]any, len(args))
	refs := make([]reflect.Value, len(args))

	for i, a := range args {
		if a == nil {
			return nil, rpcerr.Newf(rpcerr.Serialization, "argument %d is nil; pass a typed value or pointer", i)
		}
		rv := reflect.ValueOf(a)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, rpcerr.Newf(rpcerr.Serialization, "argument %d is a nil pointer", i)
			}
			if rv.Elem().Kind() == reflect.Pointer {
				return nil, rpcerr.Newf(rpcerr.Serialization, "argument %d: pointer-to-pointer arguments are not supported", i)
			}
			sig.Params[i] = packed.Param{Type: rv.Elem().Type(), ByRef: true}
			vals[i] = rv.Elem().Interface()
			refs[i] = rv
		} else {
			sig.Params[i] = packed.Param{Type: rv.Type()}
			vals[i] = a
		}
	}

	pack, err := packed.New(funcName, sig, vals)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Serialization)
	}

	form, err := c.adapter.SerializePack(pack)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Serialization)
	}
	data, err := c.adapter.ToWire(form)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Serialization)
	}

	if err := c.transport.Send(data); err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.ClientSend)
	}

	respBytes, err := c.transport.Receive()
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.ClientReceive)
	}

	respForm, ok := c.adapter.FromWire(respBytes)
	if !ok {
		return nil, rpcerr.New(rpcerr.ClientReceive, "Client received invalid RPC object")
	}

	respPack, err := c.adapter.DeserializePack(respForm, sig)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Deserialization)
	}

	// Rebind by-reference arguments from the response. Error responses
	// may carry no args at all, so only successful calls rebind.
	if respPack.Ok() {
		for i, rv := range refs {
			if !rv.IsValid() {
				continue
			}
			av := reflect.ValueOf(respPack.Args()[i])
			if av.IsValid() {
				rv.Elem().Set(av)
			}
		}
	}

	return respPack.Result()
}
