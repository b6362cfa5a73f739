package irstream

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
)

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(metadataSchema))
})

// ValidateMetadata checks raw preamble metadata against the metadata schema.
func ValidateMetadata(raw []byte, fourByte bool) (*Metadata, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindNativeFailure, err, "metadata schema does not compile")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Encoding(errors.PhaseDecode, "metadata is not JSON", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Detail("invalid metadata: %s", strings.Join(details, "; ")).
			Build()
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, errors.Encoding(errors.PhaseDecode, "metadata is not JSON", err)
	}
	if fourByte && md.ReferenceTimestamp == "" {
		return nil, errors.Encoding(errors.PhaseDecode, "four-byte stream without reference timestamp", nil)
	}
	return &md, nil
}

// Event is one decoded log event.
type Event struct {
	Message   string
	Timestamp int64
}

// Reader decodes an IR stream.
type Reader struct {
	r        *bufio.Reader
	metadata *Metadata
	next     func(*Reader) (Event, error)
	logtype  []byte
	dictVars []byte
	dictEnds []int32
	lastTs   int64
	fourByte bool
	done     bool
}

// NewReader reads and validates the preamble of the stream in r.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{r: bufio.NewReader(r)}

	var magic [4]byte
	if _, err := io.ReadFull(rd.r, magic[:]); err != nil {
		return nil, errors.Encoding(errors.PhaseDecode, "failed to read magic number", err)
	}
	switch magic {
	case FourByteEncodingMagicNumber:
		rd.fourByte = true
		rd.next = readEvent[int32]
	case EightByteEncodingMagicNumber:
		rd.next = readEvent[int64]
	default:
		return nil, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Detail("unknown magic number % x", magic[:]).
			Build()
	}

	tag, err := rd.r.ReadByte()
	if err != nil || tag != MetadataEncodingJSON {
		return nil, errors.Encoding(errors.PhaseDecode, "expected JSON metadata", err)
	}
	tag, err = rd.r.ReadByte()
	if err != nil {
		return nil, errors.Encoding(errors.PhaseDecode, "truncated preamble", err)
	}
	var n int
	switch tag {
	case MetadataLenUByte:
		v, err := rd.readUint(1)
		if err != nil {
			return nil, err
		}
		n = int(v)
	case MetadataLenUShort:
		v, err := rd.readUint(2)
		if err != nil {
			return nil, err
		}
		n = int(v)
	default:
		return nil, errors.Encoding(errors.PhaseDecode, fmt.Sprintf("unexpected metadata length tag 0x%02x", tag), nil)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(rd.r, raw); err != nil {
		return nil, errors.Encoding(errors.PhaseDecode, "truncated metadata", err)
	}

	md, err := ValidateMetadata(raw, rd.fourByte)
	if err != nil {
		return nil, err
	}
	rd.metadata = md
	if rd.fourByte {
		rd.lastTs, err = strconv.ParseInt(md.ReferenceTimestamp, 10, 64)
		if err != nil {
			return nil, errors.Encoding(errors.PhaseDecode, "invalid reference timestamp", err)
		}
	}
	return rd, nil
}

// Metadata returns the stream's preamble metadata.
func (r *Reader) Metadata() *Metadata {
	return r.metadata
}

// FourByte reports whether the stream uses four-byte encoding.
func (r *Reader) FourByte() bool {
	return r.fourByte
}

// Next decodes the next event. It returns io.EOF after the EOF record.
func (r *Reader) Next() (Event, error) {
	if r.done {
		return Event{}, io.EOF
	}
	return r.next(r)
}

func (r *Reader) readUint(size int) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.r, buf[:size]); err != nil {
		return 0, errors.Encoding(errors.PhaseDecode, "truncated record", err)
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(buf[:2])), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(buf[:4])), nil
	default:
		return binary.BigEndian.Uint64(buf[:8]), nil
	}
}

func (r *Reader) readString(dst []byte, tag, ubyteTag, ushortTag, intTag byte) ([]byte, error) {
	var size int
	switch tag {
	case ubyteTag:
		size = 1
	case ushortTag:
		size = 2
	case intTag:
		size = 4
	}
	n, err := r.readUint(size)
	if err != nil {
		return dst, err
	}
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	if _, err := io.ReadFull(r.r, dst[start:]); err != nil {
		return dst, errors.Encoding(errors.PhaseDecode, "truncated string", err)
	}
	return dst, nil
}

func readEvent[T ffi.EncodedVariable](r *Reader) (Event, error) {
	r.logtype = r.logtype[:0]
	r.dictVars = r.dictVars[:0]
	r.dictEnds = r.dictEnds[:0]
	var vars []T

	varTag, varSize := VarEightByteEncoding, 8
	if ffi.IsFourByte[T]() {
		varTag, varSize = VarFourByteEncoding, 4
	}

	first := true
	for {
		tag, err := r.r.ReadByte()
		if err != nil {
			return Event{}, errors.Encoding(errors.PhaseDecode, "stream ended without EOF record", err)
		}
		switch tag {
		case EOF:
			if !first {
				return Event{}, errors.Encoding(errors.PhaseDecode, "EOF inside a log event", nil)
			}
			r.done = true
			return Event{}, io.EOF
		case varTag:
			v, err := r.readUint(varSize)
			if err != nil {
				return Event{}, err
			}
			if varSize == 4 {
				vars = append(vars, T(int32(uint32(v))))
			} else {
				vars = append(vars, T(int64(v)))
			}
		case VarStrLenUByte, VarStrLenUShort, VarStrLenInt:
			if r.dictVars, err = r.readString(r.dictVars, tag, VarStrLenUByte, VarStrLenUShort, VarStrLenInt); err != nil {
				return Event{}, err
			}
			r.dictEnds = append(r.dictEnds, int32(len(r.dictVars)))
		case LogtypeStrLenUByte, LogtypeStrLenUShort, LogtypeStrLenInt:
			if r.logtype, err = r.readString(r.logtype, tag, LogtypeStrLenUByte, LogtypeStrLenUShort, LogtypeStrLenInt); err != nil {
				return Event{}, err
			}
			ts, err := r.readTimestamp()
			if err != nil {
				return Event{}, err
			}
			msg, err := ffi.DecodeMessage(r.logtype, vars, r.dictVars, r.dictEnds)
			if err != nil {
				return Event{}, err
			}
			return Event{Message: msg, Timestamp: ts}, nil
		default:
			return Event{}, errors.Encoding(errors.PhaseDecode, fmt.Sprintf("unexpected tag 0x%02x", tag), nil)
		}
		first = false
	}
}

func (r *Reader) readTimestamp() (int64, error) {
	tag, err := r.r.ReadByte()
	if err != nil {
		return 0, errors.Encoding(errors.PhaseDecode, "missing timestamp", err)
	}
	if !r.fourByte {
		if tag != TimestampVal {
			return 0, errors.Encoding(errors.PhaseDecode, fmt.Sprintf("unexpected timestamp tag 0x%02x", tag), nil)
		}
		v, err := r.readUint(8)
		return int64(v), err
	}

	var delta int64
	switch tag {
	case TimestampDeltaByte:
		v, err := r.readUint(1)
		if err != nil {
			return 0, err
		}
		delta = int64(int8(v))
	case TimestampDeltaShort:
		v, err := r.readUint(2)
		if err != nil {
			return 0, err
		}
		delta = int64(int16(v))
	case TimestampDeltaInt:
		v, err := r.readUint(4)
		if err != nil {
			return 0, err
		}
		delta = int64(int32(v))
	case TimestampDeltaLong:
		v, err := r.readUint(8)
		if err != nil {
			return 0, err
		}
		delta = int64(v)
	default:
		return 0, errors.Encoding(errors.PhaseDecode, fmt.Sprintf("unexpected timestamp delta tag 0x%02x", tag), nil)
	}
	r.lastTs += delta
	return r.lastTs, nil
}
