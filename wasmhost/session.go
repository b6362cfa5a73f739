package wasmhost

import (
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/bridge"
	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/hostrt"
	"github.com/wippyai/clp-ffi/hostrt/heap"
)

// Session is one guest's view of the bridge: a private heap holding the
// values the guest references, a single caller thread and a loaded bridge.
// Calls are serialized.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	heap   *heap.Heap
	env    *heap.Thread
	bridge *bridge.Bridge
	log    *zap.Logger
	closed bool
}

// NewSession creates a heap, declares the bridge classes on it and loads
// the bridge.
func NewSession(cfg Config) (*Session, error) {
	h := heap.New()
	if err := bridge.DefineClasses(h, cfg.Bridge.Classes); err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindNativeFailure, err, "failed to define bridge classes")
	}
	env := h.NewThread()
	b, err := bridge.Load(env, cfg.Bridge)
	if err != nil {
		env.TakeException()
		return nil, err
	}
	return &Session{
		cfg:    cfg,
		heap:   h,
		env:    env,
		bridge: b,
		log:    Logger().With(zap.String("module", cfg.moduleName())),
	}, nil
}

// Close unloads the bridge. Further calls fail with a pending exception.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.bridge.Unload(s.env)
	s.log.Debug("session closed", zap.Int("leaked_refs", s.heap.Locals()))
}

// Refs returns the number of heap references the guest still holds.
func (s *Session) Refs() int {
	return s.heap.Locals()
}

// raise leaves err pending as an exception unless one already is.
func (s *Session) raise(err error) {
	if s.env.ExceptionCheck() || errors.Signaled(err) {
		return
	}
	name := s.cfg.Bridge.Classes.RuntimeException
	if kind, _ := errors.KindOf(err); kind == errors.KindInvalidInput {
		name = s.cfg.Bridge.Classes.IllegalArgument
	}
	class, ferr := s.env.FindClass(name)
	if ferr != nil {
		s.log.Error("exception class unavailable", zap.String("class", name), zap.Error(ferr))
		return
	}
	defer s.env.DeleteLocalRef(class)
	if terr := s.env.ThrowNew(class, err.Error()); terr != nil {
		s.log.Error("failed to raise exception", zap.Error(terr))
	}
}

func (s *Session) release(refs ...hostrt.Ref) {
	for _, ref := range refs {
		if ref != 0 {
			s.env.DeleteLocalRef(ref)
		}
	}
}

// bytesArg copies guest bytes into a new heap byte array.
func (s *Session) bytesArg(mem api.Memory, what string, ptr, n uint32) (hostrt.Ref, bool) {
	b, err := readBytes(mem, what, ptr, n)
	if err != nil {
		s.raise(err)
		return 0, false
	}
	return s.env.NewBytes(b), true
}

func (s *Session) intsArg(mem api.Memory, what string, ptr, count uint32) (hostrt.Ref, bool) {
	v, err := readInts(mem, what, ptr, count)
	if err != nil {
		s.raise(err)
		return 0, false
	}
	return s.env.NewInts(v), true
}

func (s *Session) longsArg(mem api.Memory, what string, ptr, count uint32) (hostrt.Ref, bool) {
	v, err := readLongs(mem, what, ptr, count)
	if err != nil {
		s.raise(err)
		return 0, false
	}
	return s.env.NewLongs(v), true
}

func (s *Session) refField(obj hostrt.Ref, name string) (hostrt.Ref, error) {
	v, err := s.env.Field(obj, name)
	if err != nil {
		return 0, err
	}
	ref, ok := v.(hostrt.Ref)
	if !ok {
		return 0, errors.New(errors.PhaseHost, errors.KindNativeFailure).
			Path(name).
			Detail("field holds %T, not an array", v).
			Build()
	}
	return ref, nil
}

// arrayField reads an array field; a null field reads as nil.
func arrayField[T hostrt.Elem](s *Session, obj hostrt.Ref, name string, read func(hostrt.Ref) ([]T, error)) ([]T, error) {
	ref, err := s.refField(obj, name)
	if err != nil || ref == 0 {
		return nil, err
	}
	defer s.env.DeleteLocalRef(ref)
	return read(ref)
}
