package ffi

import (
	"github.com/wippyai/clp-ffi/errors"
)

// WildcardMatch reports whether s matches pattern, case-sensitively.
// '*' matches any run of bytes, '?' any single byte, and '\' escapes the
// byte after it.
func WildcardMatch(s, pattern string) bool {
	si, pi := 0, 0
	starPi, starSi := -1, 0
	for si < len(s) {
		if pi < len(pattern) {
			switch c := pattern[pi]; c {
			case '*':
				starPi, starSi = pi, si
				pi++
				continue
			case '?':
				si++
				pi++
				continue
			case '\\':
				if pi+1 < len(pattern) && pattern[pi+1] == s[si] {
					si++
					pi += 2
					continue
				}
			default:
				if c == s[si] {
					si++
					pi++
					continue
				}
			}
		}
		if starPi < 0 {
			return false
		}
		starSi++
		si, pi = starSi, starPi+1
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// WildcardQueryMatchesAnyEncodedVar reports whether query matches any encoded
// variable of the given kind. It fails only when the logtype has more
// encoded-variable placeholders than there are encoded variables.
func WildcardQueryMatchesAnyEncodedVar[T EncodedVariable](query string, logtype []byte, encodedVars []T, kind VariablePlaceholder) (bool, error) {
	idx := 0
	for _, c := range logtype {
		p := VariablePlaceholder(c)
		if p != PlaceholderInteger && p != PlaceholderFloat {
			continue
		}
		if idx >= len(encodedVars) {
			return false, errors.New(errors.PhaseSearch, errors.KindEncoding).
				Detail("logtype has more encoded-variable placeholders than encoded variables (%d)", len(encodedVars)).
				Build()
		}
		if p == kind {
			text, err := DecodeVariable(p, encodedVars[idx])
			if err != nil {
				return false, err
			}
			if WildcardMatch(text, query) {
				return true, nil
			}
		}
		idx++
	}
	return false, nil
}

// VarQuery is a wildcard query for one encoded variable.
type VarQuery struct {
	Query       string
	Placeholder VariablePlaceholder
}

// MatchResult is the outcome of matching one message in a batch.
type MatchResult int32

const (
	Matched     MatchResult = 1
	NotMatched  MatchResult = 0
	NoVariables MatchResult = -1
	Malformed   MatchResult = -2
)

func (r MatchResult) String() string {
	switch r {
	case Matched:
		return "matched"
	case NotMatched:
		return "not-matched"
	case NoVariables:
		return "no-variables"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// MatchEncodedVars reports whether each query matches a distinct encoded
// variable of its kind, with queries and variables both taken in order.
//
// A message without encoded variables is NoVariables. A logtype whose
// encoded-variable placeholders don't pair up with encodedVars is Malformed.
func MatchEncodedVars[T EncodedVariable](logtype []byte, encodedVars []T, queries []VarQuery) MatchResult {
	kinds := make([]VariablePlaceholder, 0, len(encodedVars))
	for _, c := range logtype {
		if p := VariablePlaceholder(c); p == PlaceholderInteger || p == PlaceholderFloat {
			kinds = append(kinds, p)
		}
	}
	if len(kinds) != len(encodedVars) {
		return Malformed
	}
	if len(encodedVars) == 0 {
		return NoVariables
	}

	qi := 0
	for i, v := range encodedVars {
		if qi == len(queries) {
			break
		}
		q := queries[qi]
		if kinds[i] != q.Placeholder {
			continue
		}
		text, err := DecodeVariable(kinds[i], v)
		if err != nil {
			return Malformed
		}
		if WildcardMatch(text, q.Query) {
			qi++
		}
	}
	if qi == len(queries) {
		return Matched
	}
	return NotMatched
}
