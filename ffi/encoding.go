package ffi

import (
	"strconv"
	"unsafe"

	"github.com/wippyai/clp-ffi/errors"
)

// EncodedVariable is the storage type of an encoded variable.
type EncodedVariable interface {
	~int32 | ~int64
}

const (
	eightByteMaxFloatDigits = 16
	fourByteMaxFloatDigits  = 8

	eightByteDigitsBits = 54
	fourByteDigitsBits  = 25
)

// IsFourByte reports whether T is the four-byte encoding width.
func IsFourByte[T EncodedVariable]() bool {
	var zero T
	return unsafe.Sizeof(zero) == 4
}

// bitSize returns the width of T in bits.
func bitSize[T EncodedVariable]() int {
	if IsFourByte[T]() {
		return 32
	}
	return 64
}

// EncodeInteger encodes a canonical decimal integer that fits in T.
func EncodeInteger[T EncodedVariable](token string) (T, bool) {
	v, err := strconv.ParseInt(token, 10, bitSize[T]())
	if err != nil {
		return 0, false
	}
	// Rejects '+', leading zeros and "-0" so decoding restores the token.
	if strconv.FormatInt(v, 10) != token {
		return 0, false
	}
	return T(v), true
}

// DecodeInteger returns the decimal text of an encoded integer.
func DecodeInteger[T EncodedVariable](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

// EncodeFloat encodes a decimal with digits on both sides of a single '.',
// at most 16 digits for eight-byte and 8 digits for four-byte encoding.
//
// Eight-byte layout, high to low: sign (1), digits (54), digit count - 1 (4),
// digits after the point - 1 (4). Four-byte layout: sign (1), digits (25),
// digit count - 1 (3), digits after the point - 1 (3).
func EncodeFloat[T EncodedVariable](token string) (T, bool) {
	maxDigits, digitsBits, countBits := eightByteMaxFloatDigits, eightByteDigitsBits, 4
	if IsFourByte[T]() {
		maxDigits, digitsBits, countBits = fourByteMaxFloatDigits, fourByteDigitsBits, 3
	}

	i := 0
	negative := false
	if i < len(token) && token[i] == '-' {
		negative = true
		i++
	}

	var digits uint64
	numDigits := 0
	dotPos := -1
	for ; i < len(token); i++ {
		c := token[i]
		switch {
		case isDecimalDigit(c):
			numDigits++
			if numDigits > maxDigits {
				return 0, false
			}
			digits = digits*10 + uint64(c-'0')
		case c == '.' && dotPos < 0:
			dotPos = numDigits
		default:
			return 0, false
		}
	}
	if dotPos <= 0 || dotPos == numDigits {
		return 0, false
	}
	if digits >= 1<<digitsBits {
		return 0, false
	}

	decimalPos := numDigits - dotPos
	var bits uint64
	if negative {
		bits = 1
	}
	bits = bits<<digitsBits | digits
	bits = bits<<countBits | uint64(numDigits-1)
	bits = bits<<countBits | uint64(decimalPos-1)
	if IsFourByte[T]() {
		return T(int32(uint32(bits))), true
	}
	return T(int64(bits)), true
}

// DecodeFloat returns the decimal text of an encoded float.
func DecodeFloat[T EncodedVariable](v T) (string, error) {
	digitsBits, countBits := eightByteDigitsBits, 4
	bits := uint64(int64(v))
	if IsFourByte[T]() {
		digitsBits, countBits = fourByteDigitsBits, 3
		bits = uint64(uint32(int32(v)))
	}

	countMask := uint64(1)<<countBits - 1
	decimalPos := int(bits&countMask) + 1
	bits >>= countBits
	numDigits := int(bits&countMask) + 1
	bits >>= countBits
	digits := bits & (uint64(1)<<digitsBits - 1)
	negative := bits>>digitsBits&1 == 1

	text := strconv.FormatUint(digits, 10)
	if len(text) > numDigits || decimalPos >= numDigits {
		return "", errors.Encoding(errors.PhaseDecode, "malformed encoded float", nil)
	}

	buf := make([]byte, 0, numDigits+2)
	if negative {
		buf = append(buf, '-')
	}
	for pad := numDigits - len(text); pad > 0; pad-- {
		buf = append(buf, '0')
	}
	buf = append(buf, text...)
	dot := len(buf) - decimalPos
	buf = append(buf, 0)
	copy(buf[dot+1:], buf[dot:])
	buf[dot] = '.'
	return string(buf), nil
}

// DecodeVariable returns the text of an encoded integer or float.
func DecodeVariable[T EncodedVariable](placeholder VariablePlaceholder, v T) (string, error) {
	if placeholder == PlaceholderFloat {
		return DecodeFloat(v)
	}
	return DecodeInteger(v), nil
}
