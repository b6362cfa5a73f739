package bridge

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/ffi/irstream"
	"github.com/wippyai/clp-ffi/hostrt"
	"github.com/wippyai/clp-ffi/resource"
)

// StreamState is the native state behind one IR stream handle. The
// preamble is written once and fixes the stream's encoding width; log
// events may only follow it.
type StreamState struct {
	mu      sync.Mutex
	id      uuid.UUID
	buffers irstream.Buffers
	width   int
	events  uint64
}

func newStreamState() *StreamState {
	return &StreamState{id: uuid.New()}
}

// ID returns the stream's identifier, used in logs.
func (s *StreamState) ID() uuid.UUID {
	return s.id
}

// Events returns the number of log events written.
func (s *StreamState) Events() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Drop frees the stream's buffers.
func (s *StreamState) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers = irstream.Buffers{}
}

// streamObserver logs stream handle lifecycle events.
type streamObserver struct {
	log *zap.Logger
}

func (o *streamObserver) OnResourceEvent(e resource.Event) {
	s, ok := e.Value.(*StreamState)
	if !ok {
		return
	}
	switch e.Type {
	case resource.EventCreated:
		o.log.Debug("stream created", zap.Stringer("stream", s.id), zap.Uint64("handle", uint64(e.Handle)))
	case resource.EventDropped:
		o.log.Debug("stream dropped",
			zap.Stringer("stream", s.id),
			zap.Uint64("handle", uint64(e.Handle)),
			zap.Uint64("events", s.Events()))
	}
}

func widthOf[T ffi.EncodedVariable]() int {
	if ffi.IsFourByte[T]() {
		return 4
	}
	return 8
}

// emitFunc copies encoded bytes into a new host array.
type emitFunc func([]byte) (hostrt.Ref, error)

func writePreamble[T ffi.EncodedVariable](s *StreamState, pattern, syntax, tz string, referenceTimestamp int64, emit emitFunc) (hostrt.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.width != 0 {
		return 0, errors.InvalidInput(errors.PhaseStream, "preamble already written")
	}
	if err := irstream.EncodePreamble[T](&s.buffers, pattern, syntax, tz, referenceTimestamp); err != nil {
		return 0, err
	}
	ref, err := emit(s.buffers.IR)
	if err != nil {
		return 0, err
	}
	s.width = widthOf[T]()
	return ref, nil
}

func writeLogEvent[T ffi.EncodedVariable](s *StreamState, timestamp int64, message string, emit emitFunc) (hostrt.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.width {
	case 0:
		return 0, errors.InvalidInput(errors.PhaseStream, "log event before preamble")
	case widthOf[T]():
	default:
		return 0, errors.New(errors.PhaseStream, errors.KindInvalidInput).
			Detail("%d-byte log event on a %d-byte stream", widthOf[T](), s.width).
			Build()
	}
	if err := irstream.EncodeLogEvent[T](&s.buffers, timestamp, message); err != nil {
		return 0, err
	}
	ref, err := emit(s.buffers.IR)
	if err != nil {
		return 0, err
	}
	s.events++
	return ref, nil
}

// CreateStream allocates stream state and returns its handle, or 0.
func (b *Bridge) CreateStream(env hostrt.Env) int64 {
	return call(b, env, "create-stream", int64(0), func() (int64, error) {
		h, err := b.streams.Insert(newStreamState())
		if err != nil {
			return 0, errors.Wrap(errors.PhaseStream, errors.KindNativeFailure, err, "failed to allocate stream state")
		}
		return int64(h), nil
	})
}

// DestroyStream frees the state behind handle.
func (b *Bridge) DestroyStream(env hostrt.Env, handle int64) {
	do(b, env, "destroy-stream", func() error {
		if _, err := b.streams.Remove(resource.Handle(handle)); err != nil {
			return invalidHandle(handle, err)
		}
		return nil
	})
}

// StreamID returns the identifier the bridge logs for handle.
func (b *Bridge) StreamID(handle int64) (uuid.UUID, bool) {
	s, ok := b.streams.Get(resource.Handle(handle))
	if !ok {
		return uuid.Nil, false
	}
	return s.id, true
}

// EofByte returns the byte that ends an IR stream.
func (b *Bridge) EofByte() byte {
	return irstream.EOF
}

func invalidHandle(handle int64, cause error) error {
	return errors.New(errors.PhaseStream, errors.KindInvalidInput).
		Detail("invalid stream handle %d", handle).
		Cause(cause).
		Build()
}

func (b *Bridge) withStream(handle int64, fn func(*StreamState) (hostrt.Ref, error)) (hostrt.Ref, error) {
	s, release, err := b.streams.Acquire(resource.Handle(handle))
	if err != nil {
		return 0, invalidHandle(handle, err)
	}
	defer release()
	return fn(s)
}

type preambleArgs struct {
	pattern, syntax, tz          hostrt.Ref
	patternLen, syntaxLen, tzLen int
}

func (a preambleArgs) strings(env hostrt.Env) (pattern, syntax, tz string, err error) {
	if pattern, err = borrowString(env, a.pattern, a.patternLen, "timestampPattern"); err != nil {
		return
	}
	if syntax, err = borrowString(env, a.syntax, a.syntaxLen, "timestampPatternSyntax"); err != nil {
		return
	}
	tz, err = borrowString(env, a.tz, a.tzLen, "timeZoneId")
	return
}

func encodePreamble[T ffi.EncodedVariable](b *Bridge, env hostrt.Env, op string, handle int64, args preambleArgs, referenceTimestamp int64) hostrt.Ref {
	return call(b, env, op, hostrt.Ref(0), func() (hostrt.Ref, error) {
		pattern, syntax, tz, err := args.strings(env)
		if err != nil {
			return 0, err
		}
		return b.withStream(handle, func(s *StreamState) (hostrt.Ref, error) {
			return writePreamble[T](s, pattern, syntax, tz, referenceTimestamp, func(ir []byte) (hostrt.Ref, error) {
				return hostrt.NewArray(env, ir)
			})
		})
	})
}

func encodeLogEvent[T ffi.EncodedVariable](b *Bridge, env hostrt.Env, op string, handle int64, timestamp int64, message hostrt.Ref, messageLen int) hostrt.Ref {
	return call(b, env, op, hostrt.Ref(0), func() (hostrt.Ref, error) {
		msg, err := borrowString(env, message, messageLen, "message")
		if err != nil {
			return 0, err
		}
		return b.withStream(handle, func(s *StreamState) (hostrt.Ref, error) {
			return writeLogEvent[T](s, timestamp, msg, func(ir []byte) (hostrt.Ref, error) {
				return hostrt.NewArray(env, ir)
			})
		})
	})
}

// FourByteEncodePreamble writes the preamble of a four-byte stream and
// returns it as a new byte array. Event timestamps of the stream are deltas
// starting from referenceTimestamp.
func (b *Bridge) FourByteEncodePreamble(env hostrt.Env, handle int64, pattern hostrt.Ref, patternLen int, syntax hostrt.Ref, syntaxLen int, tz hostrt.Ref, tzLen int, referenceTimestamp int64) hostrt.Ref {
	args := preambleArgs{pattern, syntax, tz, patternLen, syntaxLen, tzLen}
	return encodePreamble[int32](b, env, "four-byte-encode-preamble", handle, args, referenceTimestamp)
}

// EightByteEncodePreamble writes the preamble of an eight-byte stream and
// returns it as a new byte array.
func (b *Bridge) EightByteEncodePreamble(env hostrt.Env, handle int64, pattern hostrt.Ref, patternLen int, syntax hostrt.Ref, syntaxLen int, tz hostrt.Ref, tzLen int) hostrt.Ref {
	args := preambleArgs{pattern, syntax, tz, patternLen, syntaxLen, tzLen}
	return encodePreamble[int64](b, env, "eight-byte-encode-preamble", handle, args, 0)
}

// FourByteEncodeLogEvent encodes one event of a four-byte stream;
// timestampDelta is relative to the previous event.
func (b *Bridge) FourByteEncodeLogEvent(env hostrt.Env, handle int64, timestampDelta int64, message hostrt.Ref, messageLen int) hostrt.Ref {
	return encodeLogEvent[int32](b, env, "four-byte-encode-log-event", handle, timestampDelta, message, messageLen)
}

// EightByteEncodeLogEvent encodes one event of an eight-byte stream.
func (b *Bridge) EightByteEncodeLogEvent(env hostrt.Env, handle int64, timestamp int64, message hostrt.Ref, messageLen int) hostrt.Ref {
	return encodeLogEvent[int64](b, env, "eight-byte-encode-log-event", handle, timestamp, message, messageLen)
}
