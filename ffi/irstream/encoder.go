package irstream

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
)

// Buffers is the scratch space one stream reuses across calls.
type Buffers struct {
	Logtype []byte
	IR      []byte
}

// Reset empties both buffers and keeps their capacity.
func (b *Buffers) Reset() {
	b.Logtype = b.Logtype[:0]
	b.IR = b.IR[:0]
}

// MagicNumber returns the magic number of T-width streams.
func MagicNumber[T ffi.EncodedVariable]() [4]byte {
	if ffi.IsFourByte[T]() {
		return FourByteEncodingMagicNumber
	}
	return EightByteEncodingMagicNumber
}

// EncodePreamble writes the preamble of a T-width stream into b.IR.
// referenceTimestamp is only recorded for four-byte streams, whose event
// timestamps are deltas from it.
func EncodePreamble[T ffi.EncodedVariable](b *Buffers, timestampPattern, timestampPatternSyntax, timeZoneID string, referenceTimestamp int64) error {
	b.IR = b.IR[:0]

	md := Metadata{
		Version:                   MetadataVersion,
		VariablesSchemaID:         ffi.VariablesSchemaVersion,
		VariableEncodingMethodsID: ffi.VariableEncodingMethodsVersion,
		TimestampPattern:          timestampPattern,
		TimestampPatternSyntax:    timestampPatternSyntax,
		TimeZoneID:                timeZoneID,
	}
	if ffi.IsFourByte[T]() {
		md.ReferenceTimestamp = strconv.FormatInt(referenceTimestamp, 10)
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return errors.Encoding(errors.PhaseEncode, "failed to serialize metadata", err)
	}

	magic := MagicNumber[T]()
	b.IR = append(b.IR, magic[:]...)
	b.IR = append(b.IR, MetadataEncodingJSON)
	switch {
	case len(raw) <= math.MaxUint8:
		b.IR = append(b.IR, MetadataLenUByte, byte(len(raw)))
	case len(raw) <= math.MaxUint16:
		b.IR = append(b.IR, MetadataLenUShort)
		b.IR = binary.BigEndian.AppendUint16(b.IR, uint16(len(raw)))
	default:
		return errors.New(errors.PhaseEncode, errors.KindEncoding).
			Detail("metadata too long (%d bytes)", len(raw)).
			Build()
	}
	b.IR = append(b.IR, raw...)
	return nil
}

// EncodeLogEvent writes one log event into b.IR. For four-byte streams
// timestamp is the delta from the previous event's timestamp. b.Logtype is
// empty again when EncodeLogEvent returns.
func EncodeLogEvent[T ffi.EncodedVariable](b *Buffers, timestamp int64, message string) error {
	b.Reset()
	defer func() { b.Logtype = b.Logtype[:0] }()

	var dictErr error
	logtype, err := ffi.EncodeMessageInto(message, b.Logtype,
		func(v T) { b.IR = appendEncodedVar(b.IR, v) },
		func(begin, end int) {
			var err error
			if b.IR, err = appendString(b.IR, message[begin:end], VarStrLenUByte, VarStrLenUShort, VarStrLenInt); err != nil {
				dictErr = err
			}
		},
	)
	b.Logtype = logtype
	if err != nil {
		return err
	}
	if dictErr != nil {
		return dictErr
	}

	if b.IR, err = appendString(b.IR, string(b.Logtype), LogtypeStrLenUByte, LogtypeStrLenUShort, LogtypeStrLenInt); err != nil {
		return err
	}

	if ffi.IsFourByte[T]() {
		b.IR = appendTimestampDelta(b.IR, timestamp)
	} else {
		b.IR = append(b.IR, TimestampVal)
		b.IR = binary.BigEndian.AppendUint64(b.IR, uint64(timestamp))
	}
	return nil
}

func appendEncodedVar[T ffi.EncodedVariable](buf []byte, v T) []byte {
	if ffi.IsFourByte[T]() {
		buf = append(buf, VarFourByteEncoding)
		return binary.BigEndian.AppendUint32(buf, uint32(int32(v)))
	}
	buf = append(buf, VarEightByteEncoding)
	return binary.BigEndian.AppendUint64(buf, uint64(int64(v)))
}

func appendString(buf []byte, s string, ubyteTag, ushortTag, intTag byte) ([]byte, error) {
	switch n := len(s); {
	case n <= math.MaxUint8:
		buf = append(buf, ubyteTag, byte(n))
	case n <= math.MaxUint16:
		buf = append(buf, ushortTag)
		buf = binary.BigEndian.AppendUint16(buf, uint16(n))
	case n <= math.MaxInt32:
		buf = append(buf, intTag)
		buf = binary.BigEndian.AppendUint32(buf, uint32(n))
	default:
		return buf, errors.Encoding(errors.PhaseEncode, "string too long for IR stream", nil)
	}
	return append(buf, s...), nil
}

func appendTimestampDelta(buf []byte, delta int64) []byte {
	switch {
	case math.MinInt8 <= delta && delta <= math.MaxInt8:
		return append(buf, TimestampDeltaByte, byte(int8(delta)))
	case math.MinInt16 <= delta && delta <= math.MaxInt16:
		buf = append(buf, TimestampDeltaShort)
		return binary.BigEndian.AppendUint16(buf, uint16(int16(delta)))
	case math.MinInt32 <= delta && delta <= math.MaxInt32:
		buf = append(buf, TimestampDeltaInt)
		return binary.BigEndian.AppendUint32(buf, uint32(int32(delta)))
	default:
		buf = append(buf, TimestampDeltaLong)
		return binary.BigEndian.AppendUint64(buf, uint64(delta))
	}
}
