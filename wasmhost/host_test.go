package wasmhost

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/ffi/irstream"
)

// guestMemory is a module exporting one page of memory as "memory".
var guestMemory = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	s     *Session
	host  api.Module
	guest api.Module
	funcs map[string]hostFunc
	next  uint32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MemoryLimitPages = 16

	rt := NewRuntime(ctx, cfg)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	s, err := NewSession(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	host, err := Instantiate(ctx, rt, s)
	require.NoError(t, err)
	guest, err := rt.InstantiateWithConfig(ctx, guestMemory, wazero.NewModuleConfig().WithName("guest"))
	require.NoError(t, err)

	f := &fixture{t: t, ctx: ctx, s: s, host: host, guest: guest, funcs: make(map[string]hostFunc), next: 16}
	for _, fn := range s.functions() {
		f.funcs[fn.name] = fn
	}
	return f
}

func (f *fixture) call(name string, params ...uint64) uint64 {
	f.t.Helper()
	fn, ok := f.funcs[name]
	require.True(f.t, ok, "no host function %s", name)
	require.Len(f.t, params, len(fn.params))
	stack := make([]uint64, max(len(fn.params), len(fn.results), 1))
	copy(stack, params)
	f.s.handler(fn)(f.ctx, f.guest, stack)
	return stack[0]
}

// put copies b into guest memory and returns its pointer and length.
func (f *fixture) put(b []byte) (uint64, uint64) {
	f.t.Helper()
	ptr := f.next
	require.True(f.t, f.guest.Memory().Write(ptr, b))
	f.next += uint32(len(b)) + 8
	return uint64(ptr), uint64(len(b))
}

func (f *fixture) putString(s string) (uint64, uint64) {
	return f.put([]byte(s))
}

func (f *fixture) putInts(v []int32) (uint64, uint64) {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(x))
	}
	ptr, _ := f.put(b)
	return ptr, uint64(len(v))
}

func (f *fixture) putLongs(v []int64) (uint64, uint64) {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(x))
	}
	ptr, _ := f.put(b)
	return ptr, uint64(len(v))
}

// take reads a byte array reference back into Go and drops it.
func (f *fixture) take(ref uint64) []byte {
	f.t.Helper()
	require.NotZero(f.t, ref, "exception: %s", f.exception())
	n := int32(uint32(f.call("array-len", ref)))
	require.GreaterOrEqual(f.t, n, int32(0))

	ptr := f.next
	f.next += uint32(n) + 8
	written := f.call("array-read", ref, uint64(ptr), uint64(n))
	require.Equal(f.t, uint64(n), written)
	b, ok := f.guest.Memory().Read(ptr, uint32(n))
	require.True(f.t, ok)
	f.call("ref-drop", ref)
	return append([]byte(nil), b...)
}

func (f *fixture) exception() string {
	ptr := f.next
	n := int32(uint32(f.call("exception-take", uint64(ptr), 512)))
	if n < 0 {
		return ""
	}
	b, _ := f.guest.Memory().Read(ptr, uint32(n))
	return string(b)
}

func TestInstantiate_ExportsFunctions(t *testing.T) {
	f := newFixture(t)

	defs := f.host.ExportedFunctionDefinitions()
	for _, fn := range f.s.functions() {
		def, ok := defs[fn.name]
		require.True(t, ok, fn.name)
		assert.Equal(t, valueTypes(fn.params), valueTypes(def.ParamTypes()), fn.name)
		assert.Equal(t, valueTypes(fn.results), valueTypes(def.ResultTypes()), fn.name)
	}
}

func valueTypes(v []api.ValueType) []api.ValueType {
	return append([]api.ValueType{}, v...)
}

func TestNewRuntime_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx, Config{MemoryLimitPages: 1})
	defer rt.Close(ctx)

	// A module declaring a two-page minimum can't fit a one-page limit.
	tooBig := append([]byte(nil), guestMemory...)
	tooBig[12] = 0x02
	_, err := rt.Instantiate(ctx, tooBig)
	assert.Error(t, err)
}

func TestValidateVersions(t *testing.T) {
	f := newFixture(t)

	schema, schemaLen := f.putString(ffi.VariablesSchemaVersion)
	encoding, encodingLen := f.putString(ffi.VariableEncodingMethodsVersion)
	assert.Equal(t, uint64(1), f.call("validate-versions", schema, schemaLen, encoding, encodingLen))
	assert.Empty(t, f.exception())

	bad, badLen := f.putString("com.yscope.clp.VariablesSchemaV1")
	assert.Equal(t, uint64(0), f.call("validate-versions", bad, badLen, encoding, encodingLen))
	assert.Contains(t, f.exception(), "UnsupportedOperationException")
}

func TestEncodeDecodeMessage(t *testing.T) {
	f := newFixture(t)
	refs := f.s.Refs()

	const message = "user bob9 logged in 3 times in 0.5 seconds"
	ptr, n := f.putString(message)
	m, err := DecodeEncodedMessage(f.take(f.call("encode-message", ptr, n)))
	require.NoError(t, err)

	require.Len(t, m.DictVarBounds, 2)
	assert.Equal(t, "bob9", message[m.DictVarBounds[0]:m.DictVarBounds[1]])
	assert.Len(t, m.EncodedVars, 2)

	all, ends := ffi.FlattenStrings([]string{"bob9"})
	lt, ltLen := f.put(m.Logtype)
	dv, dvLen := f.put(all)
	endsPtr, endsCount := f.putInts(ends)
	vars, varsCount := f.putLongs(m.EncodedVars)

	got := f.take(f.call("decode-message", lt, ltLen, dv, dvLen, endsPtr, endsCount, vars, varsCount))
	assert.Equal(t, message, string(got))
	assert.Equal(t, refs, f.s.Refs())
}

func TestDecodeMessage_Malformed(t *testing.T) {
	f := newFixture(t)

	lt, ltLen := f.put([]byte{'x', byte(ffi.PlaceholderInteger)})
	assert.Zero(t, f.call("decode-message", lt, ltLen, 0, 0, 0, 0, 0, 0))
	assert.Contains(t, f.exception(), "IOException")
}

func TestEncodeMessage_OutOfRange(t *testing.T) {
	f := newFixture(t)

	assert.Zero(t, f.call("encode-message", 1<<20, 4))
	assert.Contains(t, f.exception(), "IllegalArgumentException")

	// A pending exception is never replaced.
	assert.Zero(t, f.call("encode-message", 1<<20, 4))
	assert.Zero(t, f.call("encode-message", 1<<20, 4))
	assert.Contains(t, f.exception(), "out of range")
	assert.Empty(t, f.exception())
}

func TestMatchesAnyVar(t *testing.T) {
	f := newFixture(t)

	ptr, n := f.putString("took 42 ms, 0.25 load")
	m, err := DecodeEncodedMessage(f.take(f.call("encode-message", ptr, n)))
	require.NoError(t, err)
	lt, ltLen := f.put(m.Logtype)
	vars, varsCount := f.putLongs(m.EncodedVars)

	q, qLen := f.putString("4*")
	assert.Equal(t, uint64(1), f.call("matches-any-int-var", q, qLen, lt, ltLen, vars, varsCount))
	assert.Equal(t, uint64(0), f.call("matches-any-float-var", q, qLen, lt, ltLen, vars, varsCount))

	q, qLen = f.putString("0.2?")
	assert.Equal(t, uint64(1), f.call("matches-any-float-var", q, qLen, lt, ltLen, vars, varsCount))
	assert.Empty(t, f.exception())
}

func TestEncodeWildcardQuery(t *testing.T) {
	f := newFixture(t)

	q, qLen := f.putString("*123*")
	array := f.call("encode-wildcard-query", q, qLen)
	require.NotZero(t, array, f.exception())
	assert.Equal(t, uint64(3), f.call("array-len", array))

	subqueries, err := DecodeSubqueries(f.take(f.call("subqueries-cbor", array)))
	require.NoError(t, err)
	f.call("ref-drop", array)

	require.Len(t, subqueries, 3)
	for _, sq := range subqueries {
		assert.Equal(t, "*123*", string(sq.Query))
		assert.True(t, sq.LogtypeQueryContainsWildcards)
	}

	q, qLen = f.putString("")
	assert.Zero(t, f.call("encode-wildcard-query", q, qLen))
	assert.Contains(t, f.exception(), "IllegalArgumentException")
}

func TestStream_FourByte(t *testing.T) {
	f := newFixture(t)

	handle := f.call("stream-create")
	require.NotZero(t, handle, f.exception())
	defer f.call("stream-destroy", handle)

	var ir bytes.Buffer
	pattern, patternLen := f.putString("%Y-%m-%d %H:%M:%S,%3")
	syntax, syntaxLen := f.putString("java::SimpleDateFormat")
	tz, tzLen := f.putString("UTC")
	ir.Write(f.take(f.call("stream-preamble", handle, 1, pattern, patternLen, syntax, syntaxLen, tz, tzLen, 1000)))

	for i, msg := range []string{"started worker 7", "worker 7 done in 1.5 s"} {
		ptr, n := f.putString(msg)
		ir.Write(f.take(f.call("stream-event", handle, 1, uint64(10*(i+1)), ptr, n)))
	}
	ir.WriteByte(byte(f.call("eof-byte")))

	r, err := irstream.NewReader(&ir)
	require.NoError(t, err)
	assert.True(t, r.FourByte())

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, irstream.Event{Message: "started worker 7", Timestamp: 1010}, ev)
	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, irstream.Event{Message: "worker 7 done in 1.5 s", Timestamp: 1030}, ev)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_Errors(t *testing.T) {
	f := newFixture(t)

	msg, n := f.putString("x")
	assert.Zero(t, f.call("stream-event", 12345, 0, 0, msg, n))
	assert.Contains(t, f.exception(), "invalid stream handle")

	handle := f.call("stream-create")
	assert.Zero(t, f.call("stream-event", handle, 0, 0, msg, n))
	assert.Contains(t, f.exception(), "before preamble")

	f.call("stream-destroy", handle)
	assert.Empty(t, f.exception())
	f.call("stream-destroy", handle)
	assert.Contains(t, f.exception(), "IllegalArgumentException")
}

func TestSession_Close(t *testing.T) {
	f := newFixture(t)
	f.s.Close()

	assert.Zero(t, f.call("stream-create"))
	assert.NotEmpty(t, f.exception())
	f.s.Close()
}

func TestArrayRead_Errors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, i32Result(-1), f.call("array-len", 999999))
	assert.NotEmpty(t, f.exception())
	assert.Equal(t, i32Result(-1), f.call("array-read", 999999, 0, 4))
	assert.NotEmpty(t, f.exception())
	assert.Equal(t, i32Result(-1), f.call("exception-take", 0, 16))
}
