// Package server implements the dispatch engine: a table of named
// handlers, an optional per-name result cache keyed by request bytes,
// and the Dispatch entry point that turns request bytes into response
// bytes without ever failing out to the caller.
//
// Request pipeline:
//
//	Dispatch(bytes)
//	  → Adapter.FromWire (parse + shape check)
//	  → middleware chain → handler lookup
//	    → DeserializePack → [cache probe] → callback → SerializePack
//	  → Adapter.ToWire
//
// Every error along the way is trapped, classified, and written into
// the response object, so the client always receives a parseable reply.
package server

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"packrpc/middleware"
	"packrpc/packed"
	"packrpc/rpcerr"
	"packrpc/serial"
)

// Handler mutates a decoded request form into a response form.
type Handler func(form serial.Form) serial.Form

// Server routes decoded requests to bound callbacks. Bind the handlers
// first, then serve; the dispatch table is not synchronized, so binding
// while requests are in flight needs external coordination. Dispatch
// itself is safe for concurrent use across sessions.
type Server struct {
	adapter     serial.Adapter
	handlers    map[string]Handler
	caches      map[string]*resultCache
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	serveState
}

// resultCache maps request bytes (the adapter's ToWire re-encoding of the
// parsed request form) to the last successful result for one bound name. Entries are only ever added or cleared, never
// evicted. Values are whole results: the lock guarantees readers never
// observe a partial insert, and a racing double compute simply
// overwrites with an equal value.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func New(adapter serial.Adapter) *Server {
	s := &Server{
		adapter:  adapter,
		handlers: make(map[string]Handler),
		caches:   make(map[string]*resultCache),
	}
	s.handler = s.businessHandler
	return s
}

func (s *Server) Adapter() serial.Adapter {
	return s.adapter
}

// Use appends a middleware. Middlewares run in the order added, around
// handler lookup and execution (parse failures never reach them).
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
	s.handler = middleware.Chain(s.middlewares...)(s.businessHandler)
}

// Bind registers fn under name. The callback's signature is derived by
// reflection: pointer parameters receive by-reference treatment, and it
// may return nothing, a value, an error, or (value, error). A duplicate
// name overwrites the previous binding.
func (s *Server) Bind(name string, fn any) error {
	sig, err := packed.SignatureOf(fn)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("rpc: bind requires a function name")
	}
	delete(s.caches, name)
	s.handlers[name] = s.makeHandler(fn, sig, nil)
	return nil
}

// BindCached is Bind plus result caching: successful non-void results
// are stored under the request re-encoded by the adapter's ToWire, and a
// repeat that re-encodes to the same bytes returns the stored result
// without invoking fn. The cache never
// expires, so fn must be pure — do not register callbacks that touch
// external state. Void signatures are never cached.
func (s *Server) BindCached(name string, fn any) error {
	sig, err := packed.SignatureOf(fn)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("rpc: bind requires a function name")
	}
	cache := &resultCache{entries: make(map[string]any)}
	s.caches[name] = cache
	s.handlers[name] = s.makeHandler(fn, sig, cache)
	return nil
}

// Dispatch is the top-level request handler: bytes in, bytes out. It
// never fails; malformed input yields an error-only response, and every
// handler failure is written into the response object.
func (s *Server) Dispatch(data []byte) []byte {
	form, ok := s.adapter.FromWire(data)
	if !ok {
		errObj := s.adapter.EmptyObject()
		s.adapter.SetException(errObj, rpcerr.New(rpcerr.ServerReceive, "Invalid RPC object received"))
		return s.encode(errObj)
	}

	form = s.handler(context.Background(), form)
	return s.encode(form)
}

// ClearCache drops every cached result while keeping the bindings.
func (s *Server) ClearCache() {
	for _, cache := range s.caches {
		cache.mu.Lock()
		cache.entries = make(map[string]any)
		cache.mu.Unlock()
	}
}

// Cache returns a snapshot of the cached results for name, keyed by
// request bytes. Nil when name has no cached binding.
func (s *Server) Cache(name string) map[string]any {
	cache, ok := s.caches[name]
	if !ok {
		return nil
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	snapshot := make(map[string]any, len(cache.entries))
	for k, v := range cache.entries {
		snapshot[k] = v
	}
	return snapshot
}

// businessHandler is the innermost HandlerFunc: it resolves the callee
// name and runs its bound handler. The middleware chain wraps this.
func (s *Server) businessHandler(_ context.Context, form serial.Form) serial.Form {
	name := s.adapter.FuncName(form)
	h, ok := s.handlers[name]
	if !ok {
		s.adapter.SetException(form,
			rpcerr.Newf(rpcerr.FuncNotFound, "RPC error: Called function: %q not found", name))
		return form
	}
	return h(form)
}

func (s *Server) makeHandler(fn any, sig *packed.Signature, cache *resultCache) Handler {
	fnVal := reflect.ValueOf(fn)
	return func(form serial.Form) serial.Form {
		out, err := s.run(fnVal, sig, cache, form)
		if err != nil {
			s.adapter.SetException(form, rpcerr.Coerce(err, rpcerr.RemoteExec))
			return form
		}
		return out
	}
}

// run executes the handler contract: decode, probe the cache, invoke,
// store, re-encode. Errors come back classified.
func (s *Server) run(fn reflect.Value, sig *packed.Signature, cache *resultCache, form serial.Form) (serial.Form, error) {
	pack, err := s.adapter.DeserializePack(form, sig)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Deserialization)
	}

	var key string
	if cache != nil && !sig.Void() {
		keyBytes, err := s.adapter.ToWire(form)
		if err != nil {
			return nil, rpcerr.Coerce(err, rpcerr.Serialization)
		}
		key = string(keyBytes)

		cache.mu.Lock()
		cached, hit := cache.entries[key]
		cache.mu.Unlock()
		if hit {
			pack.SetResult(cached)
			out, err := s.adapter.SerializePack(pack)
			if err != nil {
				return nil, rpcerr.Coerce(err, rpcerr.Serialization)
			}
			return out, nil
		}
	}

	if err := invoke(fn, sig, pack); err != nil {
		return nil, err
	}

	if cache != nil && !sig.Void() {
		if result, err := pack.Result(); err == nil {
			cache.mu.Lock()
			cache.entries[key] = result
			cache.mu.Unlock()
		}
	}

	out, err := s.adapter.SerializePack(pack)
	if err != nil {
		return nil, rpcerr.Coerce(err, rpcerr.Serialization)
	}
	return out, nil
}

// invoke applies the callback to the pack's args. Pointer parameters
// get a fresh addressable copy whose post-call value is written back
// into the pack, so mutations ride home on the response. A panicking or
// error-returning callback becomes remote_exec with its message.
func invoke(fn reflect.Value, sig *packed.Signature, pack *packed.Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rpcerr.Newf(rpcerr.RemoteExec, "%v", r)
		}
	}()

	in := make([]reflect.Value, len(sig.Params))
	for i, p := range sig.Params {
		av := reflect.ValueOf(pack.Args()[i])
		if p.ByRef {
			ptr := reflect.New(p.Type)
			if av.IsValid() {
				ptr.Elem().Set(av)
			}
			in[i] = ptr
		} else if av.IsValid() {
			in[i] = av
		} else {
			in[i] = reflect.Zero(p.Type)
		}
	}

	outs := fn.Call(in)

	for i, p := range sig.Params {
		if p.ByRef {
			pack.SetArg(i, in[i].Elem().Interface())
		}
	}

	if sig.RetErr {
		if callErr, _ := outs[len(outs)-1].Interface().(error); callErr != nil {
			return rpcerr.New(rpcerr.RemoteExec, callErr.Error())
		}
	}
	if !sig.Void() {
		pack.SetResult(outs[0].Interface())
	}
	return nil
}

// encode finishes a dispatch. ToWire on a well-formed response form is
// effectively total; should it still fail, the client gets an
// error-only server_send response rather than silence.
func (s *Server) encode(form serial.Form) []byte {
	data, err := s.adapter.ToWire(form)
	if err == nil {
		return data
	}
	errObj := s.adapter.EmptyObject()
	s.adapter.SetException(errObj, rpcerr.New(rpcerr.ServerSend, err.Error()))
	data, err = s.adapter.ToWire(errObj)
	if err != nil {
		return nil
	}
	return data
}
