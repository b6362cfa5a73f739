package client

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/ffi/search"
	"github.com/wippyai/clp-ffi/hostrt"
)

// MessageDecoder decodes and matches eight-byte encoded messages.
type MessageDecoder struct {
	rt *Runtime
}

// MessageDecoder returns a decoder bound to rt.
func (rt *Runtime) MessageDecoder() *MessageDecoder {
	return &MessageDecoder{rt: rt}
}

// DecodeMessage rebuilds a message. allDictVars holds the dictionary
// variables back to back, variable i ending at dictVarEndOffsets[i].
func (d *MessageDecoder) DecodeMessage(logtype []byte, allDictVars []byte, dictVarEndOffsets []int32, encodedVars []int64) (string, error) {
	var msg []byte
	err := d.rt.call(func(s *scope) error {
		lt, ltLen := s.bytes(logtype)
		dv, dvLen := s.bytes(allDictVars)
		ends, endsLen := s.ints(dictVarEndOffsets)
		ev, evLen := s.longs(encodedVars)

		var err error
		msg, err = s.result(d.rt.bridge.DecodeMessage(s.env, lt, ltLen, dv, dvLen, ends, endsLen, ev, evLen))
		return err
	})
	return string(msg), err
}

// Decode rebuilds a message produced by MessageEncoder.
func (d *MessageDecoder) Decode(m *EncodedMessage) (string, error) {
	all, ends := m.FlattenDictVars()
	return d.DecodeMessage(m.Logtype, all, ends, m.EncodedVars)
}

// WildcardQueryMatchesAnyIntVar reports whether query matches any integer
// variable of the message.
func (d *MessageDecoder) WildcardQueryMatchesAnyIntVar(query string, logtype []byte, encodedVars []int64) (bool, error) {
	return d.matchesAny(query, logtype, encodedVars, d.rt.bridge.WildcardQueryMatchesAnyIntVar)
}

// WildcardQueryMatchesAnyFloatVar reports whether query matches any float
// variable of the message.
func (d *MessageDecoder) WildcardQueryMatchesAnyFloatVar(query string, logtype []byte, encodedVars []int64) (bool, error) {
	return d.matchesAny(query, logtype, encodedVars, d.rt.bridge.WildcardQueryMatchesAnyFloatVar)
}

type matchFunc func(env hostrt.Env, query hostrt.Ref, queryLen int, logtype hostrt.Ref, logtypeLen int, encodedVars hostrt.Ref, encodedVarsLen int) bool

func (d *MessageDecoder) matchesAny(query string, logtype []byte, encodedVars []int64, match matchFunc) (bool, error) {
	var matched bool
	err := d.rt.call(func(s *scope) error {
		q, qLen := s.str(query)
		lt, ltLen := s.bytes(logtype)
		ev, evLen := s.longs(encodedVars)
		matched = match(s.env, q, qLen, lt, ltLen, ev, evLen)
		return nil
	})
	return matched, err
}

// BatchEncodedVarsWildcardMatch matches every message against queries and
// returns one ffi.MatchResult per message. A nil logtype or variable slice
// is treated as empty. logtypes and encodedVars must have the same length.
func (d *MessageDecoder) BatchEncodedVarsWildcardMatch(logtypes [][]byte, encodedVars [][]int64, queries []ffi.VarQuery) ([]ffi.MatchResult, error) {
	n := len(logtypes)
	if len(encodedVars) != n {
		return nil, errors.New(errors.PhaseSearch, errors.KindInvalidInput).
			Path("encodedVars").
			Detail("%d encoded variable arrays for %d logtypes", len(encodedVars), n).
			Build()
	}

	placeholders := make([]byte, len(queries))
	var serialized []byte
	ends := make([]int32, len(queries))
	for i, q := range queries {
		placeholders[i] = byte(q.Placeholder)
		serialized = append(serialized, q.Query...)
		ends[i] = int32(len(serialized))
	}

	var codes []int32
	err := d.rt.call(func(s *scope) error {
		ltRefs := make([]hostrt.Ref, n)
		evRefs := make([]hostrt.Ref, n)
		for i := 0; i < n; i++ {
			if logtypes[i] != nil {
				ltRefs[i], _ = s.bytes(logtypes[i])
			}
			if encodedVars[i] != nil {
				evRefs[i], _ = s.longs(encodedVars[i])
			}
		}
		lts, err := s.env.NewObjects("[B", ltRefs)
		if err != nil {
			return err
		}
		s.keep(lts)
		evs, err := s.env.NewObjects("[J", evRefs)
		if err != nil {
			return err
		}
		s.keep(evs)

		p, pLen := s.bytes(placeholders)
		q, qLen := s.bytes(serialized)
		e, eLen := s.ints(ends)
		results, _ := s.ints(make([]int32, n))

		d.rt.bridge.BatchEncodedVarsWildcardMatch(s.env, n, lts, evs, p, pLen, q, qLen, e, eLen, results)
		if s.env.ExceptionCheck() {
			return nil
		}
		codes, err = s.env.Ints(results)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]ffi.MatchResult, len(codes))
	for i, c := range codes {
		out[i] = ffi.MatchResult(c)
	}
	return out, nil
}

// MatchingRows returns the rows whose encoded variables satisfy every
// encoded-variable wildcard query of sq. Rows without encoded variables and
// malformed rows never match.
func (d *MessageDecoder) MatchingRows(logtypes [][]byte, encodedVars [][]int64, sq *search.Subquery[int64]) (*roaring.Bitmap, error) {
	results, err := d.BatchEncodedVarsWildcardMatch(logtypes, encodedVars, sq.EncodedVarWildcardQueries())
	if err != nil {
		return nil, err
	}
	rows := roaring.New()
	for i, r := range results {
		if r == ffi.Matched {
			rows.Add(uint32(i))
		}
	}
	return rows, nil
}
