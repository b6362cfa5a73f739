package wasmhost

import (
	cbor2 "github.com/fxamacker/cbor/v2"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/hostrt"
)

// EncodedMessage is the CBOR form of an encoded message handed to guests.
type EncodedMessage struct {
	Logtype       []byte  `cbor:"logtype"`
	EncodedVars   []int64 `cbor:"encoded_vars"`
	DictVarBounds []int32 `cbor:"dict_var_bounds"`
}

// Subquery is the CBOR form of one compiled subquery.
type Subquery struct {
	Query                         []byte  `cbor:"query"`
	LogtypeQuery                  []byte  `cbor:"logtype_query"`
	LogtypeQueryContainsWildcards bool    `cbor:"logtype_query_contains_wildcards"`
	DictVarBounds                 []int32 `cbor:"dict_var_bounds"`
	EncodedVars                   []int64 `cbor:"encoded_vars"`
	WildcardVarPlaceholders       []byte  `cbor:"wildcard_var_placeholders"`
	WildcardVarBounds             []int32 `cbor:"wildcard_var_bounds"`
}

// DecodeEncodedMessage parses the output of encode-message.
func DecodeEncodedMessage(data []byte) (*EncodedMessage, error) {
	var m EncodedMessage
	if err := cbor2.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindEncoding, err, "invalid encoded message")
	}
	return &m, nil
}

// DecodeSubqueries parses the output of subqueries-cbor.
func DecodeSubqueries(data []byte) ([]Subquery, error) {
	var sq []Subquery
	if err := cbor2.Unmarshal(data, &sq); err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindEncoding, err, "invalid subquery list")
	}
	return sq, nil
}

func (s *Session) encodedMessage(obj hostrt.Ref) (*EncodedMessage, error) {
	var (
		m   EncodedMessage
		err error
	)
	if m.Logtype, err = arrayField(s, obj, "logtype", s.env.Bytes); err != nil {
		return nil, err
	}
	if m.EncodedVars, err = arrayField(s, obj, "encodedVars", s.env.Longs); err != nil {
		return nil, err
	}
	if m.DictVarBounds, err = arrayField(s, obj, "dictionaryVarBounds", s.env.Ints); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) subquery(obj hostrt.Ref) (Subquery, error) {
	var (
		sq  Subquery
		err error
	)
	if sq.Query, err = arrayField(s, obj, "query", s.env.Bytes); err != nil {
		return sq, err
	}
	if sq.LogtypeQuery, err = arrayField(s, obj, "logtypeQuery", s.env.Bytes); err != nil {
		return sq, err
	}
	v, err := s.env.Field(obj, "logtypeQueryContainsWildcards")
	if err != nil {
		return sq, err
	}
	sq.LogtypeQueryContainsWildcards, _ = v.(bool)
	if sq.DictVarBounds, err = arrayField(s, obj, "dictVarBounds", s.env.Ints); err != nil {
		return sq, err
	}
	if sq.EncodedVars, err = arrayField(s, obj, "encodedVars", s.env.Longs); err != nil {
		return sq, err
	}
	if sq.WildcardVarPlaceholders, err = arrayField(s, obj, "wildcardVarPlaceholders", s.env.Bytes); err != nil {
		return sq, err
	}
	sq.WildcardVarBounds, err = arrayField(s, obj, "wildcardVarBounds", s.env.Ints)
	return sq, err
}

func (s *Session) subqueries(array hostrt.Ref) ([]Subquery, error) {
	elems, err := s.env.Elements(array)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "not a subquery array")
	}
	defer s.release(elems...)

	out := make([]Subquery, len(elems))
	for i, obj := range elems {
		if out[i], err = s.subquery(obj); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func marshal(v any) ([]byte, error) {
	data, err := cbor2.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindEncoding, err, "cbor encoding failed")
	}
	return data, nil
}
