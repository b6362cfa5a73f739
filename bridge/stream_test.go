package bridge_test

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/clp-ffi/bridge"
	"github.com/wippyai/clp-ffi/ffi/irstream"
	"github.com/wippyai/clp-ffi/hostrt"
	"github.com/wippyai/clp-ffi/hostrt/heap"
)

func (f *fixture) preamble(t *testing.T, handle int64, fourByte bool, ref int64) []byte {
	t.Helper()
	p, pn := f.bytes("yyyy-MM-dd")
	s, sn := f.bytes("java::SimpleDateFormat")
	tz, tzn := f.bytes("UTC")
	var out hostrt.Ref
	if fourByte {
		out = f.b.FourByteEncodePreamble(f.env, handle, p, pn, s, sn, tz, tzn, ref)
	} else {
		out = f.b.EightByteEncodePreamble(f.env, handle, p, pn, s, sn, tz, tzn)
	}
	f.noException(t)
	require.NotZero(t, out)
	b, err := f.env.Bytes(out)
	require.NoError(t, err)
	return b
}

func (f *fixture) event(handle int64, fourByte bool, ts int64, message string) hostrt.Ref {
	msg, n := f.bytes(message)
	if fourByte {
		return f.b.FourByteEncodeLogEvent(f.env, handle, ts, msg, n)
	}
	return f.b.EightByteEncodeLogEvent(f.env, handle, ts, msg, n)
}

func TestStream_FourByte(t *testing.T) {
	f := newFixture(t)
	handle := f.b.CreateStream(f.env)
	require.NotZero(t, handle)
	f.noException(t)

	var ir bytes.Buffer
	pre := f.preamble(t, handle, true, 0)
	assert.Equal(t, byte(0xFD), pre[0])
	assert.Equal(t, irstream.FourByteEncodingMagicNumber[:], pre[:4])
	ir.Write(pre)

	timestamps := []int64{1000, 1005, 900}
	prev := int64(0)
	for i, ts := range timestamps {
		ref := f.event(handle, true, ts-prev, "event 1 of "+string(rune('a'+i)))
		f.noException(t)
		require.NotZero(t, ref)
		b, _ := f.env.Bytes(ref)
		ir.Write(b)
		prev = ts
	}
	ir.WriteByte(f.b.EofByte())

	r, err := irstream.NewReader(&ir)
	require.NoError(t, err)
	for i, ts := range timestamps {
		ev, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, ts, ev.Timestamp)
		assert.Equal(t, "event 1 of "+string(rune('a'+i)), ev.Message)
	}
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)

	f.b.DestroyStream(f.env, handle)
	f.noException(t)
}

func TestStream_Protocol(t *testing.T) {
	f := newFixture(t)
	h1 := f.b.CreateStream(f.env)
	h2 := f.b.CreateStream(f.env)
	require.NotEqual(t, h1, h2)
	assert.Equal(t, 2, f.b.OpenStreams())

	// An event may not precede the preamble.
	assert.Zero(t, f.event(h1, false, 1, "too early"))
	f.expectException(t, heap.ClassIllegalArgument)

	f.preamble(t, h1, false, 0)

	t.Run("second preamble", func(t *testing.T) {
		p, n := f.bytes("x")
		assert.Zero(t, f.b.EightByteEncodePreamble(f.env, h1, p, n, p, n, p, n))
		f.expectException(t, heap.ClassIllegalArgument)
	})

	t.Run("width mismatch", func(t *testing.T) {
		assert.Zero(t, f.event(h1, true, 1, "four on eight"))
		f.expectException(t, heap.ClassIllegalArgument)
	})

	t.Run("streams are independent", func(t *testing.T) {
		f.preamble(t, h2, true, 100)
		assert.NotZero(t, f.event(h2, true, 1, "on h2"))
		f.noException(t)
		assert.NotZero(t, f.event(h1, false, 1, "on h1"))
		f.noException(t)
	})

	t.Run("encoding failure", func(t *testing.T) {
		assert.Zero(t, f.event(h1, false, 1, "bad \x12"))
		f.expectException(t, heap.ClassIOException)
		// The stream stays usable.
		assert.NotZero(t, f.event(h1, false, 2, "fine"))
		f.noException(t)
	})

	f.b.DestroyStream(f.env, h1)
	f.noException(t)
	assert.Zero(t, f.event(h1, false, 1, "after destroy"))
	f.expectException(t, heap.ClassIllegalArgument)
	f.b.DestroyStream(f.env, h1)
	f.expectException(t, heap.ClassIllegalArgument)
	f.b.DestroyStream(f.env, 12345)
	f.expectException(t, heap.ClassIllegalArgument)

	assert.Equal(t, 1, f.b.OpenStreams())
	f.b.DestroyStream(f.env, h2)
	f.noException(t)
}

func TestStream_HandlesDoNotShareBuffers(t *testing.T) {
	f := newFixture(t)
	messages := []string{"login user=alice id 42", "took 12.5 ms", "done"}

	write := func(handle int64, messages []string) [][]byte {
		t.Helper()
		out := [][]byte{f.preamble(t, handle, false, 0)}
		for i, msg := range messages {
			ref := f.event(handle, false, int64(1000+i), msg)
			f.noException(t)
			require.NotZero(t, ref)
			b, err := f.env.Bytes(ref)
			require.NoError(t, err)
			out = append(out, b)
		}
		return out
	}

	h1 := f.b.CreateStream(f.env)
	require.NotZero(t, h1)
	first := write(h1, messages)
	f.b.DestroyStream(f.env, h1)
	f.noException(t)

	h2 := f.b.CreateStream(f.env)
	require.NotZero(t, h2)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, first, write(h2, messages))
	f.b.DestroyStream(f.env, h2)
	f.noException(t)

	h3 := f.b.CreateStream(f.env)
	require.NotZero(t, h3)
	got := write(h3, []string{"bye"})
	f.b.DestroyStream(f.env, h3)
	f.noException(t)

	var fresh irstream.Buffers
	require.NoError(t, irstream.EncodePreamble[int64](&fresh, "yyyy-MM-dd", "java::SimpleDateFormat", "UTC", 0))
	assert.Equal(t, fresh.IR, got[0])
	fresh.Reset()
	require.NoError(t, irstream.EncodeLogEvent[int64](&fresh, 1000, "bye"))
	assert.Equal(t, fresh.IR, got[1])
	for _, b := range got {
		assert.NotContains(t, string(b), "alice")
		assert.NotContains(t, string(b), "took")
	}
}

func TestStream_LifecycleLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := bridge.DefaultConfig()
	cfg.Logger = zap.New(core)

	h := heap.New()
	require.NoError(t, bridge.DefineClasses(h, cfg.Classes))
	env := h.NewThread()
	b, err := bridge.Load(env, cfg)
	require.NoError(t, err)
	f := &fixture{h: h, env: env, b: b}

	handle := b.CreateStream(env)
	require.NotZero(t, handle)
	id, ok := b.StreamID(handle)
	require.True(t, ok)
	f.preamble(t, handle, false, 0)
	require.NotZero(t, f.event(handle, false, 1, "one 1"))
	f.noException(t)
	b.DestroyStream(env, handle)
	f.noException(t)
	_, ok = b.StreamID(handle)
	assert.False(t, ok)

	created := logs.FilterMessage("stream created").All()
	require.Len(t, created, 1)
	assert.Equal(t, id.String(), created[0].ContextMap()["stream"])
	dropped := logs.FilterMessage("stream dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, id.String(), dropped[0].ContextMap()["stream"])
	assert.EqualValues(t, 1, dropped[0].ContextMap()["events"])

	// Streams left open are dropped on unload.
	left := b.CreateStream(env)
	require.NotZero(t, left)
	b.Unload(env)
	assert.Len(t, logs.FilterMessage("stream dropped").All(), 2)
	assert.Zero(t, b.OpenStreams())
	assert.Zero(t, h.Globals())
}

func TestStream_Concurrent(t *testing.T) {
	h := heap.New()
	require.NoError(t, bridge.DefineClasses(h, classes))
	loader := h.NewThread()
	b, err := bridge.Load(loader, bridge.DefaultConfig())
	require.NoError(t, err)
	defer b.Unload(loader)

	const workers = 8
	var wg sync.WaitGroup
	failures := make(chan string, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := h.NewThread()
			f := &fixture{h: h, env: env, b: b}
			handle := b.CreateStream(env)
			if handle == 0 {
				failures <- "create failed"
				return
			}
			defer b.DestroyStream(env, handle)

			p, pn := f.bytes("p")
			if b.EightByteEncodePreamble(env, handle, p, pn, p, pn, p, pn) == 0 {
				failures <- "preamble failed"
				return
			}
			for i := 0; i < 50; i++ {
				if f.event(handle, false, int64(i), "worker event 42") == 0 {
					failures <- "event failed"
					return
				}
			}
			if len(env.Violations()) > 0 {
				failures <- env.Violations()[0]
			}
		}()
	}
	wg.Wait()
	close(failures)
	for msg := range failures {
		t.Error(msg)
	}
	assert.Zero(t, b.OpenStreams())
	assert.Zero(t, h.Pins())
}
