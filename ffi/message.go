package ffi

import (
	"math"
	"strings"

	"github.com/wippyai/clp-ffi/errors"
)

// EncodedMessage is a message split into its logtype, encoded variables and
// the bounds of its dictionary variables within the original message.
type EncodedMessage[T EncodedVariable] struct {
	Logtype       []byte
	EncodedVars   []T
	DictVarBounds []int32
}

// Reset empties the message and keeps its buffers.
func (m *EncodedMessage[T]) Reset() {
	m.Logtype = m.Logtype[:0]
	m.EncodedVars = m.EncodedVars[:0]
	m.DictVarBounds = m.DictVarBounds[:0]
}

// DictVars returns the dictionary variables of message as strings.
func (m *EncodedMessage[T]) DictVars(message string) []string {
	vars := make([]string, 0, len(m.DictVarBounds)/2)
	for i := 0; i+1 < len(m.DictVarBounds); i += 2 {
		vars = append(vars, message[m.DictVarBounds[i]:m.DictVarBounds[i+1]])
	}
	return vars
}

// FlattenDictVars concatenates the dictionary variables of message and
// returns the end offset of each one.
func (m *EncodedMessage[T]) FlattenDictVars(message string) ([]byte, []int32) {
	return FlattenStrings(m.DictVars(message))
}

// FlattenStrings concatenates strs and returns the end offset of each one.
func FlattenStrings(strs []string) ([]byte, []int32) {
	n := 0
	for _, s := range strs {
		n += len(s)
	}
	all := make([]byte, 0, n)
	ends := make([]int32, len(strs))
	for i, s := range strs {
		all = append(all, s...)
		ends[i] = int32(len(all))
	}
	return all, ends
}

// ContainsPlaceholder reports whether s contains a reserved placeholder byte.
func ContainsPlaceholder(s string) bool {
	for i := 0; i < len(s); i++ {
		if IsPlaceholder(s[i]) {
			return true
		}
	}
	return false
}

// EncodeMessageInto appends the logtype of message to logtype and reports
// every variable through the callbacks, in message order. Dictionary
// variables are reported by their bounds within message.
func EncodeMessageInto[T EncodedVariable](message string, logtype []byte, encodedVar func(T), dictVar func(begin, end int)) ([]byte, error) {
	if len(message) > math.MaxInt32 {
		return logtype, errors.Encoding(errors.PhaseEncode, "message too long", nil)
	}

	constBegin := 0
	begin, end := 0, 0
	for {
		var ok bool
		begin, end, ok = NextVariable(message, end)
		static := message[constBegin:begin]
		if ContainsPlaceholder(static) {
			return logtype, errors.New(errors.PhaseEncode, errors.KindEncoding).
				Detail("message contains a reserved placeholder byte").
				Build()
		}
		logtype = append(logtype, static...)
		if !ok {
			return logtype, nil
		}
		constBegin = end

		token := message[begin:end]
		if v, ok := EncodeInteger[T](token); ok {
			logtype = append(logtype, byte(PlaceholderInteger))
			encodedVar(v)
		} else if v, ok := EncodeFloat[T](token); ok {
			logtype = append(logtype, byte(PlaceholderFloat))
			encodedVar(v)
		} else {
			logtype = append(logtype, byte(PlaceholderDictionary))
			dictVar(begin, end)
		}
	}
}

// EncodeMessage encodes message into m, reusing m's buffers.
func EncodeMessage[T EncodedVariable](message string, m *EncodedMessage[T]) error {
	m.Reset()
	logtype, err := EncodeMessageInto(message, m.Logtype,
		func(v T) { m.EncodedVars = append(m.EncodedVars, v) },
		func(begin, end int) { m.DictVarBounds = append(m.DictVarBounds, int32(begin), int32(end)) },
	)
	m.Logtype = logtype
	return err
}

// DecodeMessage rebuilds a message from its logtype, encoded variables and
// flattened dictionary variables. A placeholder without a matching variable
// fails with an encoding error.
func DecodeMessage[T EncodedVariable](logtype []byte, encodedVars []T, allDictVars []byte, dictVarEndOffsets []int32) (string, error) {
	var b strings.Builder
	b.Grow(len(logtype) + len(allDictVars) + len(encodedVars)*8)

	encodedIdx, dictIdx := 0, 0
	dictBegin := int32(0)
	for i, c := range logtype {
		switch p := VariablePlaceholder(c); p {
		case PlaceholderInteger, PlaceholderFloat:
			if encodedIdx >= len(encodedVars) {
				return "", errors.New(errors.PhaseDecode, errors.KindEncoding).
					Detail("placeholder at %d has no encoded variable", i).
					Build()
			}
			text, err := DecodeVariable(p, encodedVars[encodedIdx])
			if err != nil {
				return "", err
			}
			b.WriteString(text)
			encodedIdx++
		case PlaceholderDictionary:
			if dictIdx >= len(dictVarEndOffsets) {
				return "", errors.New(errors.PhaseDecode, errors.KindEncoding).
					Detail("placeholder at %d has no dictionary variable", i).
					Build()
			}
			dictEnd := dictVarEndOffsets[dictIdx]
			if dictEnd < dictBegin || int(dictEnd) > len(allDictVars) {
				return "", errors.New(errors.PhaseDecode, errors.KindEncoding).
					Detail("dictionary variable %d has invalid end offset %d", dictIdx, dictEnd).
					Build()
			}
			b.Write(allDictVars[dictBegin:dictEnd])
			dictBegin = dictEnd
			dictIdx++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
