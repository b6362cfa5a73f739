package ffi

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInteger(t *testing.T) {
	tests := []struct {
		token string
		ok64  bool
		ok32  bool
	}{
		{"0", true, true},
		{"123", true, true},
		{"-987", true, true},
		{"-0", false, false},
		{"007", false, false},
		{"+5", false, false},
		{"2147483647", true, true},
		{"2147483648", true, false},
		{"9223372036854775807", true, false},
		{"9223372036854775808", false, false},
		{"12a", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			v64, ok := EncodeInteger[int64](tt.token)
			assert.Equal(t, tt.ok64, ok, "eight-byte")
			if ok {
				assert.Equal(t, tt.token, DecodeInteger(v64))
			}

			v32, ok := EncodeInteger[int32](tt.token)
			assert.Equal(t, tt.ok32, ok, "four-byte")
			if ok {
				assert.Equal(t, tt.token, DecodeInteger(v32))
			}
		})
	}
}

func TestEncodeFloat(t *testing.T) {
	tests := []struct {
		token string
		ok64  bool
		ok32  bool
	}{
		{"456.7", true, true},
		{"-654.3", true, true},
		{"0.0", true, true},
		{"00.50", true, true},
		{"1234567.8", true, true},
		{"12345678.9", true, false},
		{"33554431.0", true, false},
		{"3355443.1", true, true},
		{"1234567890123456.7", false, false},
		{"123456789012345.6", true, false},
		{"1.", false, false},
		{".5", false, false},
		{"1.2.3", false, false},
		{"12", false, false},
		{"-", false, false},
		{"1-2.3", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			v64, ok := EncodeFloat[int64](tt.token)
			assert.Equal(t, tt.ok64, ok, "eight-byte")
			if ok {
				got, err := DecodeFloat(v64)
				require.NoError(t, err)
				assert.Equal(t, tt.token, got)
			}

			v32, ok := EncodeFloat[int32](tt.token)
			assert.Equal(t, tt.ok32, ok, "four-byte")
			if ok {
				got, err := DecodeFloat(v32)
				require.NoError(t, err)
				assert.Equal(t, tt.token, got)
			}
		})
	}
}

func TestDecodeFloat_Malformed(t *testing.T) {
	// digit count 1 with one digit after the point leaves none before it
	_, err := DecodeFloat[int64](0)
	assert.Error(t, err)

	_, err = DecodeFloat[int64](math.MinInt64 | 0xff)
	assert.Error(t, err)
}

func TestIsFourByte(t *testing.T) {
	type narrow int32
	assert.True(t, IsFourByte[int32]())
	assert.True(t, IsFourByte[narrow]())
	assert.False(t, IsFourByte[int64]())
}

func TestNextVariable(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Static text, dictVar1, 123, 456.7", []string{"dictVar1", "123", "456.7"}},
		{"Message with only static text.", nil},
		{"key=value other", []string{"value"}},
		{"value=", nil},
		{"deadbeef at 0x1f", []string{"deadbeef", "0x1f"}},
		{"a b", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got []string
			end := 0
			for {
				begin, e, ok := NextVariable(tt.text, end)
				if !ok {
					break
				}
				got = append(got, tt.text[begin:e])
				end = e
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDelim(t *testing.T) {
	for c := 0; c < 256; c++ {
		b := byte(c)
		want := !(b == '+' || b == '-' || b == '.' || b == '/' || b == '\\' || b == '_' ||
			isDecimalDigit(b) || isAlphabet(b))
		if got := IsDelim(b); got != want {
			t.Errorf("IsDelim(%s) = %v, want %v", strconv.QuoteRune(rune(b)), got, want)
		}
	}
}
