package irstream

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clp-ffi/errors"
)

type event struct {
	ts  int64
	msg string
}

var sampleEvents = []event{
	{1700000000000, "Task 42 finished in 3.5 seconds"},
	{1700000000010, "static text only"},
	{1700000001000, "user=alice id=0x1f3 value=-17"},
	{1699999999000, "went back in time by 1000"},
	{1700000100000, "big jump 3.14159 and 12345678901"},
}

func writeStream[T int32 | int64](t *testing.T, events []event, ref int64) []byte {
	t.Helper()
	var out bytes.Buffer
	var b Buffers
	require.NoError(t, EncodePreamble[T](&b, "yyyy-MM-dd HH:mm:ss", "java::SimpleDateFormat", "UTC", ref))
	out.Write(b.IR)

	prev := ref
	var zero T
	_, fourByte := any(zero).(int32)
	for _, e := range events {
		ts := e.ts
		if fourByte {
			ts = e.ts - prev
			prev = e.ts
		}
		require.NoError(t, EncodeLogEvent[T](&b, ts, e.msg))
		assert.Empty(t, b.Logtype)
		out.Write(b.IR)
	}
	out.WriteByte(EOF)
	return out.Bytes()
}

func readAll(t *testing.T, data []byte) (*Reader, []event) {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var got []event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, event{ev.Timestamp, ev.Message})
	}
	return r, got
}

func TestRoundTrip_EightByte(t *testing.T) {
	data := writeStream[int64](t, sampleEvents, 0)
	assert.Equal(t, EightByteEncodingMagicNumber[:], data[:4])

	r, got := readAll(t, data)
	assert.False(t, r.FourByte())
	assert.Equal(t, sampleEvents, got)
	assert.Equal(t, "UTC", r.Metadata().TimeZoneID)
	assert.Empty(t, r.Metadata().ReferenceTimestamp)

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRoundTrip_FourByte(t *testing.T) {
	ref := sampleEvents[0].ts - 5
	data := writeStream[int32](t, sampleEvents[:4], ref)
	assert.Equal(t, FourByteEncodingMagicNumber[:], data[:4])

	r, got := readAll(t, data)
	assert.True(t, r.FourByte())
	assert.Equal(t, sampleEvents[:4], got)
	assert.Equal(t, "java::SimpleDateFormat", r.Metadata().TimestampPatternSyntax)
}

func TestEncodePreamble_Layout(t *testing.T) {
	var b Buffers
	require.NoError(t, EncodePreamble[int32](&b, "yyyy-MM-dd", "java::SimpleDateFormat", "UTC", 0))

	require.Greater(t, len(b.IR), 6)
	assert.Equal(t, byte(0xFD), b.IR[0])
	assert.Equal(t, MetadataEncodingJSON, b.IR[4])
	assert.Equal(t, MetadataLenUByte, b.IR[5])
	assert.Equal(t, int(b.IR[6]), len(b.IR)-7)
	assert.Contains(t, string(b.IR[7:]), `"REFERENCE_TIMESTAMP":"0"`)
}

func TestEncodePreamble_LongMetadata(t *testing.T) {
	var b Buffers
	long := string(bytes.Repeat([]byte("y"), 300))
	require.NoError(t, EncodePreamble[int64](&b, long, "java::SimpleDateFormat", "UTC", 0))
	assert.Equal(t, MetadataLenUShort, b.IR[5])

	huge := string(bytes.Repeat([]byte("y"), math.MaxUint16))
	err := EncodePreamble[int64](&b, huge, "java::SimpleDateFormat", "UTC", 0)
	require.Error(t, err)
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindEncoding, kind)
}

func TestEncodeLogEvent_RecordOrder(t *testing.T) {
	var b Buffers
	require.NoError(t, EncodeLogEvent[int64](&b, 7, "id 5 user bob9"))

	// int var, dict var, logtype, timestamp
	assert.Equal(t, VarEightByteEncoding, b.IR[0])
	assert.Equal(t, VarStrLenUByte, b.IR[9])
	assert.Equal(t, byte(4), b.IR[10])
	assert.Equal(t, "bob9", string(b.IR[11:15]))
	assert.Equal(t, LogtypeStrLenUByte, b.IR[15])
	assert.Equal(t, TimestampVal, b.IR[len(b.IR)-9])
}

func TestEncodeLogEvent_DeltaWidths(t *testing.T) {
	tests := []struct {
		delta int64
		tag   byte
		size  int
	}{
		{0, TimestampDeltaByte, 1},
		{-128, TimestampDeltaByte, 1},
		{300, TimestampDeltaShort, 2},
		{-70000, TimestampDeltaInt, 4},
		{math.MaxInt32 + 1, TimestampDeltaLong, 8},
	}
	for _, tt := range tests {
		var b Buffers
		require.NoError(t, EncodeLogEvent[int32](&b, tt.delta, "x"))
		assert.Equal(t, tt.tag, b.IR[len(b.IR)-tt.size-1], "delta %d", tt.delta)
	}
}

func TestEncodeLogEvent_RejectsPlaceholder(t *testing.T) {
	var b Buffers
	err := EncodeLogEvent[int64](&b, 0, "bad \x11 byte")
	require.Error(t, err)
	assert.Empty(t, b.Logtype)
}

func TestNewReader_Errors(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader([]byte{1, 2, 3, 4}))
		require.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader(EightByteEncodingMagicNumber[:2]))
		require.Error(t, err)
	})

	t.Run("invalid metadata", func(t *testing.T) {
		raw := []byte(`{"VERSION":"abc"}`)
		data := append(EightByteEncodingMagicNumber[:], MetadataEncodingJSON, MetadataLenUByte, byte(len(raw)))
		data = append(data, raw...)
		_, err := NewReader(bytes.NewReader(data))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid metadata")
	})

	t.Run("four-byte without reference", func(t *testing.T) {
		var b Buffers
		require.NoError(t, EncodePreamble[int64](&b, "p", "s", "UTC", 0))
		copy(b.IR, FourByteEncodingMagicNumber[:])
		_, err := NewReader(bytes.NewReader(b.IR))
		require.Error(t, err)
	})
}

func TestReader_MissingEOF(t *testing.T) {
	data := writeStream[int64](t, sampleEvents[:1], 0)
	data = data[:len(data)-1]

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestValidateMetadata(t *testing.T) {
	md, err := ValidateMetadata([]byte(`{
		"VERSION":"0.0.1","VARIABLES_SCHEMA_ID":"a","VARIABLE_ENCODING_METHODS_ID":"b",
		"TIMESTAMP_PATTERN":"p","TIMESTAMP_PATTERN_SYNTAX":"s","TZ_ID":"UTC","REFERENCE_TIMESTAMP":"-5"}`), true)
	require.NoError(t, err)
	assert.Equal(t, "-5", md.ReferenceTimestamp)

	_, err = ValidateMetadata([]byte(`not json`), false)
	require.Error(t, err)
}
