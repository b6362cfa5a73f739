package client

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/hostrt/heap"
)

func newRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	rt, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.Zero(t, rt.bridge.OpenStreams(), "open streams")
		assert.Zero(t, rt.heap.Pins(), "pinned arrays")
		rt.Close()
	})
	return rt
}

func TestRuntime_Close(t *testing.T) {
	rt, err := New(DefaultOptions())
	require.NoError(t, err)
	rt.Close()
	rt.Close()

	_, err = rt.MessageEncoder().EncodeMessage("x 1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRuntime_ValidateVersions(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())

	err := rt.validateVersions("com.yscope.clp.VariablesSchemaV1", ffi.VariableEncodingMethodsVersion)
	var e *Exception
	require.True(t, errors.As(err, &e))
	assert.Equal(t, heap.ClassUnsupportedOperation, e.Class)
	assert.NoError(t, rt.validateVersions(ffi.VariablesSchemaVersion, ffi.VariableEncodingMethodsVersion))
}

func TestMessageEncoder_RoundTrip(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())
	enc, dec := rt.MessageEncoder(), rt.MessageDecoder()

	messages := []string{
		"Task 42 took 3.5 seconds for user=alice job_7f",
		"static text only",
		"",
		"block blk_-1608999687919862906 replicated to 10.251.31.85:50010",
	}
	for _, message := range messages {
		t.Run(message, func(t *testing.T) {
			m, err := enc.EncodeMessage(message)
			require.NoError(t, err)
			assert.Len(t, m.DictVars(), len(m.DictVarBounds)/2)

			got, err := dec.Decode(m)
			require.NoError(t, err)
			assert.Equal(t, message, got)
		})
	}
	assert.Zero(t, rt.heap.Locals())
}

func TestMessageEncoder_DictVars(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())

	m, err := rt.MessageEncoder().EncodeMessage("user bob9 from host-7a")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob9", "host-7a"}, m.DictVars())

	all, ends := m.FlattenDictVars()
	assert.Equal(t, "bob9host-7a", string(all))
	assert.Equal(t, []int32{4, 11}, ends)
}

func TestMessageEncoder_Placeholder(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())

	_, err := rt.MessageEncoder().EncodeMessage("bad \x11 byte")
	var e *Exception
	require.True(t, errors.As(err, &e))
	assert.Equal(t, heap.ClassIOException, e.Class)
}

func TestMessageDecoder_Malformed(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())

	_, err := rt.MessageDecoder().DecodeMessage([]byte("n=\x11"), nil, nil, nil)
	var e *Exception
	require.True(t, errors.As(err, &e))
	assert.Equal(t, heap.ClassIOException, e.Class)
}

func TestMessageDecoder_MatchesAny(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())
	dec := rt.MessageDecoder()

	m, err := rt.MessageEncoder().EncodeMessage("took 42 ms, load 0.25")
	require.NoError(t, err)

	ok, err := dec.WildcardQueryMatchesAnyIntVar("4*", m.Logtype, m.EncodedVars)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dec.WildcardQueryMatchesAnyIntVar("5*", m.Logtype, m.EncodedVars)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dec.WildcardQueryMatchesAnyFloatVar("0.2?", m.Logtype, m.EncodedVars)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchingRows(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())
	enc, dec := rt.MessageEncoder(), rt.MessageDecoder()

	messages := []string{
		"took 42 ms",
		"static only",
		"took 7 ms",
		"load 0.5 for 42 users",
	}
	logtypes := make([][]byte, len(messages))
	vars := make([][]int64, len(messages))
	for i, msg := range messages {
		m, err := enc.EncodeMessage(msg)
		require.NoError(t, err)
		logtypes[i], vars[i] = m.Logtype, m.EncodedVars
	}

	subqueries, err := rt.WildcardQueryEncoder().EncodeWildcardQuery("took 4*")
	require.NoError(t, err)

	var found bool
	for i := range subqueries {
		sq := &subqueries[i]
		queries := sq.EncodedVarWildcardQueries()
		if len(queries) != 1 || queries[0].Placeholder != ffi.PlaceholderInteger {
			continue
		}
		found = true

		results, err := dec.BatchEncodedVarsWildcardMatch(logtypes, vars, queries)
		require.NoError(t, err)
		assert.Equal(t, []ffi.MatchResult{ffi.Matched, ffi.NoVariables, ffi.NotMatched, ffi.Matched}, results)

		rows, err := dec.MatchingRows(logtypes, vars, sq)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 3}, rows.ToArray())
	}
	assert.True(t, found, "no integer subquery")
}

func TestBatchEncodedVarsWildcardMatch_Nil(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())

	q := []ffi.VarQuery{{Query: "1", Placeholder: ffi.PlaceholderInteger}}
	results, err := rt.MessageDecoder().BatchEncodedVarsWildcardMatch([][]byte{nil}, [][]int64{nil}, q)
	require.NoError(t, err)
	assert.Equal(t, []ffi.MatchResult{ffi.NoVariables}, results)

	_, err = rt.MessageDecoder().BatchEncodedVarsWildcardMatch(nil, nil,
		[]ffi.VarQuery{{Query: "x", Placeholder: ffi.PlaceholderDictionary}})
	var e *Exception
	require.True(t, errors.As(err, &e))
	assert.Equal(t, heap.ClassIllegalArgument, e.Class)
}

func TestBatchEncodedVarsWildcardMatch_LengthMismatch(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())
	dec := rt.MessageDecoder()

	logtypes := [][]byte{[]byte("a \x11"), []byte("b \x11"), []byte("c \x11")}
	vars := [][]int64{{1}, {2}}
	q := []ffi.VarQuery{{Query: "*", Placeholder: ffi.PlaceholderInteger}}

	results, err := dec.BatchEncodedVarsWildcardMatch(logtypes, vars, q)
	require.Error(t, err)
	assert.Nil(t, results)
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidInput, kind)

	_, err = dec.BatchEncodedVarsWildcardMatch(logtypes[:1], vars, q)
	kind, _ = errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidInput, kind)
}

func TestWildcardQueryEncoder(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())
	qe := rt.WildcardQueryEncoder()

	subqueries, err := qe.EncodeWildcardQuery("took 4*")
	require.NoError(t, err)
	require.Len(t, subqueries, 3)
	for _, sq := range subqueries {
		assert.Equal(t, "took 4*", sq.Query)
		assert.True(t, sq.ContainsVariables())
		assert.True(t, sq.LogtypeQueryContainsWildcards)
	}

	_, err = qe.EncodeWildcardQuery("")
	var e *Exception
	require.True(t, errors.As(err, &e))
	assert.Equal(t, heap.ClassIllegalArgument, e.Class)
}

type event struct {
	ts  int64
	msg string
}

func TestIrOutputStream_RoundTrip(t *testing.T) {
	events := []event{
		{1000, "started worker 7"},
		{1500, "worker 7 took 3.5 s"},
		{1499, "clock went back for user=bob"},
	}
	opts := StreamOptions{
		TimestampPattern:       "%Y-%m-%d %H:%M:%S,%3",
		TimestampPatternSyntax: "java::SimpleDateFormat",
		TimeZoneID:             "UTC",
	}

	for _, encoding := range []Encoding{EightByte, FourByte} {
		for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
			t.Run(fmt.Sprintf("%s/%s", encoding, compression), func(t *testing.T) {
				rt := newRuntime(t, Options{Encoding: encoding, Compression: compression})

				var buf bytes.Buffer
				s, err := rt.NewIrOutputStream(&buf, opts)
				require.NoError(t, err)
				for _, ev := range events {
					require.NoError(t, s.WriteLogEvent(ev.ts, ev.msg))
				}
				require.NoError(t, s.Close())
				require.NoError(t, s.Close())
				assert.Equal(t, len(events), s.Events())

				r, err := NewIrReader(&buf, compression)
				require.NoError(t, err)
				defer r.Close()
				assert.Equal(t, encoding == FourByte, r.FourByte())
				assert.Equal(t, opts.TimeZoneID, r.Metadata().TimeZoneID)

				for _, want := range events {
					got, err := r.Next()
					require.NoError(t, err)
					assert.Equal(t, want.msg, got.Message)
					assert.Equal(t, want.ts, got.Timestamp)
				}
				_, err = r.Next()
				assert.ErrorIs(t, err, io.EOF)
			})
		}
	}
}

func TestIrOutputStream_CloseWithoutEvents(t *testing.T) {
	rt := newRuntime(t, Options{Encoding: FourByte})

	var buf bytes.Buffer
	s, err := rt.NewIrOutputStream(&buf, StreamOptions{TimeZoneID: "UTC"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, s.ID())
	require.NoError(t, s.Close())
	assert.Equal(t, byte(0), buf.Bytes()[buf.Len()-1])

	r, err := NewIrReader(&buf, CompressionNone)
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestIrOutputStream_RejectedEvent(t *testing.T) {
	rt := newRuntime(t, DefaultOptions())

	var buf bytes.Buffer
	s, err := rt.NewIrOutputStream(&buf, StreamOptions{})
	require.NoError(t, err)
	require.NoError(t, s.WriteLogEvent(1, "ok 1"))

	err = s.WriteLogEvent(2, "bad \x12")
	var e *Exception
	require.True(t, errors.As(err, &e))
	assert.Equal(t, heap.ClassIOException, e.Class)

	require.NoError(t, s.WriteLogEvent(3, "ok 3"))
	require.NoError(t, s.Close())
	assert.Equal(t, 2, s.Events())
}

func TestParseOptions(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Encoding
	}{{"four", FourByte}, {"4", FourByte}, {"eight", EightByte}} {
		got, err := ParseEncoding(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseEncoding("two")
	assert.Error(t, err)

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}
