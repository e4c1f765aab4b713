// Package rpcerr defines the structured error taxonomy shared by every
// layer of packrpc. Each error carries a stable numeric kind that travels
// on the wire (the "except_type" field), so a failure trapped on the
// server surfaces on the client as the same kind with the original
// message preserved.
package rpcerr

import (
	"errors"
	"fmt"
)

// Kind classifies an RPC failure. The numeric values are part of the
// wire format and must never be reordered.
type Kind int

const (
	None              Kind = iota // 0: no error
	FuncNotFound                  // 1: no handler bound for the requested name
	RemoteExec                    // 2: user callback failed while executing
	Serialization                 // 3: encoding a value failed
	Deserialization               // 4: decoding a value failed
	SignatureMismatch             // 5: arg or result type did not match the signature
	ClientSend                    // 6: transport send failed on client
	ClientReceive                 // 7: transport receive failed on client
	ServerSend                    // 8: transport send failed on server
	ServerReceive                 // 9: transport receive failed on server
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case FuncNotFound:
		return "func_not_found"
	case RemoteExec:
		return "remote_exec"
	case Serialization:
		return "serialization"
	case Deserialization:
		return "deserialization"
	case SignatureMismatch:
		return "signature_mismatch"
	case ClientSend:
		return "client_send"
	case ClientReceive:
		return "client_receive"
	case ServerSend:
		return "server_send"
	case ServerReceive:
		return "server_receive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the defined wire codes.
func Valid(k Kind) bool {
	return k >= None && k <= ServerReceive
}

// Error is a classified RPC failure. Mesg holds the human-readable text
// exactly as it appeared at the failure site; Error() returns it alone
// so the message round-trips the wire unchanged.
type Error struct {
	Kind Kind
	Mesg string
}

func (e *Error) Error() string {
	return e.Mesg
}

func New(kind Kind, mesg string) *Error {
	return &Error{Kind: kind, Mesg: mesg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Mesg: fmt.Sprintf(format, args...)}
}

// Coerce returns err as an *Error, classifying unstructured errors under
// the given fallback kind. An error that already carries a kind keeps it.
func Coerce(err error, fallback Kind) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Kind: fallback, Mesg: err.Error()}
}

// KindOf extracts the kind from err, or None for nil and unclassified
// errors.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return None
}
