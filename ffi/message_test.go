package ffi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clp-ffi/errors"
)

const sampleMessage = "Static text, dictVar1, 123, 456.7, dictVar2, 987, 654.3"

func TestEncodeMessage(t *testing.T) {
	var m EncodedMessage[int64]
	require.NoError(t, EncodeMessage(sampleMessage, &m))

	wantLogtype := "Static text, \x12, \x11, \x13, \x12, \x11, \x13"
	assert.Equal(t, wantLogtype, string(m.Logtype))
	assert.Len(t, m.EncodedVars, 4)
	assert.Equal(t, []string{"dictVar1", "dictVar2"}, m.DictVars(sampleMessage))
}

func TestEncodeMessage_RoundTrip(t *testing.T) {
	messages := []string{
		sampleMessage,
		"Message with only static text.",
		"Message with 1 + 1 encoded variables.",
		"",
		"   ",
		"user=alice logged in from 10.0.0.1 after 3.25 s",
		"-1 -0 007 +4 1.5.6 0x10 -2.50",
		"trailing variable 42",
		"weird\\escape and \"quotes\" 17",
		"\xff\xfe binary 1",
	}

	for _, msg := range messages {
		t.Run(msg, func(t *testing.T) {
			t.Run("eight-byte", func(t *testing.T) { roundTrip[int64](t, msg) })
			t.Run("four-byte", func(t *testing.T) { roundTrip[int32](t, msg) })
		})
	}
}

func roundTrip[T EncodedVariable](t *testing.T, msg string) {
	t.Helper()
	var m EncodedMessage[T]
	require.NoError(t, EncodeMessage(msg, &m))

	all, ends := m.FlattenDictVars(msg)
	got, err := DecodeMessage(m.Logtype, m.EncodedVars, all, ends)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestEncodeMessage_ReusesBuffers(t *testing.T) {
	var m EncodedMessage[int64]
	require.NoError(t, EncodeMessage("first 1 2 3 abc1", &m))
	logtype := m.Logtype[:cap(m.Logtype)]

	require.NoError(t, EncodeMessage("x 9", &m))
	assert.Equal(t, "x \x11", string(m.Logtype))
	assert.Same(t, &logtype[0], &m.Logtype[0], "logtype buffer reused")
	assert.Len(t, m.EncodedVars, 1)
	assert.Empty(t, m.DictVarBounds)
}

func TestEncodeMessage_RejectsPlaceholders(t *testing.T) {
	var m EncodedMessage[int64]
	err := EncodeMessage("bad \x11 byte", &m)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindEncoding})
}

func TestDecodeMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		logtype string
		vars    []int64
		all     string
		ends    []int32
	}{
		{"missing encoded var", "a \x11", nil, "", nil},
		{"missing dict var", "a \x12", nil, "", nil},
		{"end offset past buffer", "\x12", nil, "ab", []int32{3}},
		{"decreasing end offset", "\x12\x12", nil, "ab", []int32{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.logtype), tt.vars, []byte(tt.all), tt.ends)
			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindEncoding})
		})
	}
}

func TestFlattenStrings(t *testing.T) {
	all, ends := FlattenStrings([]string{"ab", "", "cde"})
	assert.Equal(t, "abcde", string(all))
	assert.Equal(t, []int32{2, 2, 5}, ends)
}
