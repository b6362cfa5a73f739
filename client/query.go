package client

import (
	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi/search"
	"github.com/wippyai/clp-ffi/hostrt"
)

// WildcardQueryEncoder compiles wildcard queries into eight-byte
// subqueries.
type WildcardQueryEncoder struct {
	rt *Runtime
}

// WildcardQueryEncoder returns a query encoder bound to rt.
func (rt *Runtime) WildcardQueryEncoder() *WildcardQueryEncoder {
	return &WildcardQueryEncoder{rt: rt}
}

// EncodeWildcardQuery returns every interpretation of query.
func (e *WildcardQueryEncoder) EncodeWildcardQuery(query string) ([]search.Subquery[int64], error) {
	var subqueries []search.Subquery[int64]
	err := e.rt.call(func(s *scope) error {
		q, qLen := s.str(query)
		array := e.rt.bridge.EncodeWildcardQuery(s.env, q, qLen)
		if array == 0 {
			return nil
		}
		s.keep(array)

		elems, err := s.env.Elements(array)
		if err != nil {
			return err
		}
		for _, obj := range elems {
			s.keep(obj)
		}
		subqueries = make([]search.Subquery[int64], len(elems))
		for i, obj := range elems {
			if err := readSubquery(s, obj, &subqueries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subqueries, nil
}

func readSubquery(s *scope, obj hostrt.Ref, sq *search.Subquery[int64]) error {
	query, err := arrayField(s, obj, "query", s.env.Bytes)
	if err != nil {
		return err
	}
	sq.Query = string(query)
	if sq.LogtypeQuery, err = arrayField(s, obj, "logtypeQuery", s.env.Bytes); err != nil {
		return err
	}
	v, err := s.env.Field(obj, "logtypeQueryContainsWildcards")
	if err != nil {
		return err
	}
	wildcards, ok := v.(bool)
	if !ok {
		return errors.New(errors.PhaseRuntime, errors.KindNativeFailure).
			Path("logtypeQueryContainsWildcards").
			Detail("field holds %T, not a bool", v).
			Build()
	}
	sq.LogtypeQueryContainsWildcards = wildcards
	if sq.DictVarBounds, err = arrayField(s, obj, "dictVarBounds", s.env.Ints); err != nil {
		return err
	}
	if sq.EncodedVars, err = arrayField(s, obj, "encodedVars", s.env.Longs); err != nil {
		return err
	}
	if sq.WildcardVarPlaceholders, err = arrayField(s, obj, "wildcardVarPlaceholders", s.env.Bytes); err != nil {
		return err
	}
	sq.WildcardVarBounds, err = arrayField(s, obj, "wildcardVarBounds", s.env.Ints)
	return err
}
