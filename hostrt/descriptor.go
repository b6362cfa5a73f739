package hostrt

import (
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/clp-ffi/errors"
)

// Descriptor returns the host type descriptor of a WIT type, e.g. "[B"
// for list<s8> and "Z" for bool.
func Descriptor(t wit.Type) (string, error) {
	var b strings.Builder
	if err := writeDescriptor(&b, t); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MethodDescriptor returns the descriptor of a void method or constructor
// taking params, e.g. "([B[BZ)V".
func MethodDescriptor(params ...wit.Type) (string, error) {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		if err := writeDescriptor(&b, p); err != nil {
			return "", err
		}
	}
	b.WriteString(")V")
	return b.String(), nil
}

// FieldTypes returns the WIT types of a record's fields, in order.
func FieldTypes(r *wit.Record) []wit.Type {
	types := make([]wit.Type, len(r.Fields))
	for i, f := range r.Fields {
		types[i] = f.Type
	}
	return types
}

func writeDescriptor(b *strings.Builder, t wit.Type) error {
	switch t := t.(type) {
	case wit.Bool:
		b.WriteByte('Z')
	case wit.S8, wit.U8:
		b.WriteByte('B')
	case wit.S16:
		b.WriteByte('S')
	case wit.Char, wit.U16:
		b.WriteByte('C')
	case wit.S32, wit.U32:
		b.WriteByte('I')
	case wit.S64, wit.U64:
		b.WriteByte('J')
	case wit.F32:
		b.WriteByte('F')
	case wit.F64:
		b.WriteByte('D')
	case wit.String:
		b.WriteString("Ljava/lang/String;")
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.List:
			b.WriteByte('[')
			return writeDescriptor(b, kind.Type)
		case wit.Type:
			return writeDescriptor(b, kind)
		default:
			return errors.New(errors.PhaseInit, errors.KindNativeFailure).
				Detail("no descriptor for type definition %T", kind).
				Build()
		}
	default:
		return errors.New(errors.PhaseInit, errors.KindNativeFailure).
			Detail("no descriptor for %T", t).
			Build()
	}
	return nil
}

// Common WIT shapes of host primitive arrays.
var (
	ByteArray = &wit.TypeDef{Kind: &wit.List{Type: wit.S8{}}}
	IntArray  = &wit.TypeDef{Kind: &wit.List{Type: wit.S32{}}}
	LongArray = &wit.TypeDef{Kind: &wit.List{Type: wit.S64{}}}
)
