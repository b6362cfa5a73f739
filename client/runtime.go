package client

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/bridge"
	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/hostrt"
	"github.com/wippyai/clp-ffi/hostrt/heap"
)

// ErrClosed is returned by calls on a closed Runtime.
var ErrClosed = errors.NotInitialized(errors.PhaseRuntime, "client runtime")

// Exception is an exception the bridge raised during a call.
type Exception struct {
	Class   string
	Message string
}

func (e *Exception) Error() string {
	return (&heap.Exception{Class: e.Class, Message: e.Message}).Error()
}

// Runtime owns a heap with the bridge loaded on it. It is safe for
// concurrent use; each call runs on its own heap thread.
type Runtime struct {
	opts    Options
	classes bridge.ClassNames
	heap    *heap.Heap
	bridge  *bridge.Bridge
	log     *zap.Logger
	closed  atomic.Bool
}

// New loads the bridge and negotiates versions with it.
func New(opts Options) (*Runtime, error) {
	cfg := bridge.DefaultConfig()
	cfg.Logger = opts.Logger

	h := heap.New()
	if err := bridge.DefineClasses(h, cfg.Classes); err != nil {
		return nil, errors.Wrap(errors.PhaseInit, errors.KindNativeFailure, err, "failed to define bridge classes")
	}
	env := h.NewThread()
	b, err := bridge.Load(env, cfg)
	if err != nil {
		if e := env.TakeException(); e != nil {
			return nil, &Exception{Class: e.Class, Message: e.Message}
		}
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = bridge.Logger()
	}
	rt := &Runtime{
		opts:    opts,
		classes: cfg.Classes,
		heap:    h,
		bridge:  b,
		log:     log,
	}
	if err := rt.validateVersions(ffi.VariablesSchemaVersion, ffi.VariableEncodingMethodsVersion); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Options returns the options the runtime was created with.
func (rt *Runtime) Options() Options {
	return rt.opts
}

// Close unloads the bridge. Open streams are dropped.
func (rt *Runtime) Close() {
	if !rt.closed.CompareAndSwap(false, true) {
		return
	}
	rt.bridge.Unload(rt.heap.NewThread())
}

func (rt *Runtime) validateVersions(schema, encoding string) error {
	return rt.call(func(s *scope) error {
		schemaRef, schemaLen := s.str(schema)
		encodingRef, encodingLen := s.str(encoding)
		rt.bridge.ValidateVersions(s.env, schemaRef, schemaLen, encodingRef, encodingLen)
		return nil
	})
}

// scope is one call's heap thread plus the local references to release
// when the call ends.
type scope struct {
	env  *heap.Thread
	refs []hostrt.Ref
}

func (s *scope) keep(ref hostrt.Ref) hostrt.Ref {
	if ref != 0 {
		s.refs = append(s.refs, ref)
	}
	return ref
}

func (s *scope) str(v string) (hostrt.Ref, int) {
	return s.keep(s.env.NewBytes([]byte(v))), len(v)
}

func (s *scope) bytes(v []byte) (hostrt.Ref, int) {
	return s.keep(s.env.NewBytes(v)), len(v)
}

func (s *scope) ints(v []int32) (hostrt.Ref, int) {
	return s.keep(s.env.NewInts(v)), len(v)
}

func (s *scope) longs(v []int64) (hostrt.Ref, int) {
	return s.keep(s.env.NewLongs(v)), len(v)
}

// result copies a returned byte array. A null result means the bridge
// raised.
func (s *scope) result(ref hostrt.Ref) ([]byte, error) {
	if ref == 0 {
		return nil, nil
	}
	return s.env.Bytes(s.keep(ref))
}

// call runs fn on a fresh heap thread. A pending exception takes
// precedence over fn's own error.
func (rt *Runtime) call(fn func(s *scope) error) error {
	if rt.closed.Load() {
		return ErrClosed
	}
	s := &scope{env: rt.heap.NewThread()}
	err := fn(s)
	s.env.Release(s.refs...)
	if e := s.env.TakeException(); e != nil {
		rt.log.Debug("bridge raised", zap.String("class", e.Class), zap.String("message", e.Message))
		return &Exception{Class: e.Class, Message: e.Message}
	}
	return err
}

// arrayField reads an array field of obj; a null field reads as nil.
func arrayField[T hostrt.Elem](s *scope, obj hostrt.Ref, name string, read func(hostrt.Ref) ([]T, error)) ([]T, error) {
	v, err := s.env.Field(obj, name)
	if err != nil {
		return nil, err
	}
	ref, ok := v.(hostrt.Ref)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNativeFailure).
			Path(name).
			Detail("field holds %T, not an array", v).
			Build()
	}
	if ref == 0 {
		return nil, nil
	}
	return read(s.keep(ref))
}
