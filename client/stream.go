package client

import (
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi/irstream"
	"github.com/wippyai/clp-ffi/hostrt"
)

// StreamOptions are the preamble fields of an IR stream.
type StreamOptions struct {
	TimestampPattern       string
	TimestampPatternSyntax string
	TimeZoneID             string
}

// IrOutputStream writes log events as an IR stream. The preamble is written
// before the first event, taking that event's timestamp as the reference
// timestamp of four-byte streams. Close writes the preamble if no event was
// written, then the EOF byte.
//
// An IrOutputStream must not be used from two goroutines at once.
type IrOutputStream struct {
	rt       *Runtime
	opts     StreamOptions
	encoding Encoding
	out      io.Writer
	frame    io.WriteCloser
	handle   int64
	id       uuid.UUID

	preamble      bool
	lastTimestamp int64
	events        int
	closeOnce     sync.Once
	closeErr      error
}

// NewIrOutputStream creates a bridge stream writing to w with the runtime's
// encoding and compression. w is not closed by Close.
func (rt *Runtime) NewIrOutputStream(w io.Writer, opts StreamOptions) (*IrOutputStream, error) {
	s := &IrOutputStream{
		rt:       rt,
		opts:     opts,
		encoding: rt.opts.Encoding,
		out:      w,
	}

	switch rt.opts.Compression {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseStream, errors.KindNativeFailure, err, "failed to create zstd writer")
		}
		s.frame, s.out = enc, enc
	case CompressionLZ4:
		enc := lz4.NewWriter(w)
		s.frame, s.out = enc, enc
	}

	err := rt.call(func(sc *scope) error {
		s.handle = rt.bridge.CreateStream(sc.env)
		return nil
	})
	if err != nil {
		if s.frame != nil {
			_ = s.frame.Close()
		}
		return nil, err
	}
	s.id, _ = rt.bridge.StreamID(s.handle)
	return s, nil
}

// ID returns the identifier the bridge logs for this stream.
func (s *IrOutputStream) ID() uuid.UUID {
	return s.id
}

// Events returns the number of log events written.
func (s *IrOutputStream) Events() int {
	return s.events
}

func (s *IrOutputStream) writePreamble(referenceTimestamp int64) error {
	var ir []byte
	err := s.rt.call(func(sc *scope) error {
		pattern, patternLen := sc.str(s.opts.TimestampPattern)
		syntax, syntaxLen := sc.str(s.opts.TimestampPatternSyntax)
		tz, tzLen := sc.str(s.opts.TimeZoneID)

		var ref hostrt.Ref
		if s.encoding == FourByte {
			ref = s.rt.bridge.FourByteEncodePreamble(sc.env, s.handle, pattern, patternLen, syntax, syntaxLen, tz, tzLen, referenceTimestamp)
		} else {
			ref = s.rt.bridge.EightByteEncodePreamble(sc.env, s.handle, pattern, patternLen, syntax, syntaxLen, tz, tzLen)
		}
		var err error
		ir, err = sc.result(ref)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := s.out.Write(ir); err != nil {
		return err
	}
	s.preamble = true
	s.lastTimestamp = referenceTimestamp
	return nil
}

// WriteLogEvent encodes one event. Four-byte streams store the delta from
// the previous event's timestamp.
func (s *IrOutputStream) WriteLogEvent(timestamp int64, message string) error {
	if !s.preamble {
		if err := s.writePreamble(timestamp); err != nil {
			return err
		}
	}

	ts := timestamp
	if s.encoding == FourByte {
		ts = timestamp - s.lastTimestamp
	}
	var ir []byte
	err := s.rt.call(func(sc *scope) error {
		msg, n := sc.str(message)
		var ref hostrt.Ref
		if s.encoding == FourByte {
			ref = s.rt.bridge.FourByteEncodeLogEvent(sc.env, s.handle, ts, msg, n)
		} else {
			ref = s.rt.bridge.EightByteEncodeLogEvent(sc.env, s.handle, ts, msg, n)
		}
		var err error
		ir, err = sc.result(ref)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := s.out.Write(ir); err != nil {
		return err
	}
	s.lastTimestamp = timestamp
	s.events++
	return nil
}

// Close ends the stream and frees its bridge handle. Calling Close again
// returns the first result.
func (s *IrOutputStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *IrOutputStream) close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if !s.preamble {
		keep(s.writePreamble(0))
	}
	if firstErr == nil {
		_, err := s.out.Write([]byte{s.rt.bridge.EofByte()})
		keep(err)
	}
	if s.frame != nil {
		keep(s.frame.Close())
	}
	keep(s.rt.call(func(sc *scope) error {
		s.rt.bridge.DestroyStream(sc.env, s.handle)
		return nil
	}))
	s.rt.log.Debug("ir stream closed",
		zap.Stringer("stream", s.id),
		zap.Stringer("encoding", s.encoding),
		zap.Int("events", s.events),
		zap.Error(firstErr))
	return firstErr
}

// IrReader reads an IR stream, undoing the framing it was written with.
type IrReader struct {
	*irstream.Reader
	closer func()
}

// NewIrReader reads the preamble of an IR stream framed with c.
func NewIrReader(r io.Reader, c Compression) (*IrReader, error) {
	ir := &IrReader{closer: func() {}}
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseStream, errors.KindNativeFailure, err, "failed to create zstd reader")
		}
		r, ir.closer = dec, dec.Close
	case CompressionLZ4:
		r = lz4.NewReader(r)
	}

	reader, err := irstream.NewReader(r)
	if err != nil {
		ir.closer()
		return nil, err
	}
	ir.Reader = reader
	return ir, nil
}

// Close releases decompression state.
func (r *IrReader) Close() {
	r.closer()
}
