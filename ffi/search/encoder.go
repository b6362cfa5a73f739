package search

import (
	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
)

// DefaultMaxSubqueries is the largest number of subqueries Encode returns.
// Each token can multiply the count by up to four.
const DefaultMaxSubqueries = 1 << 16

// preallocSubqueries caps the initial capacity of the result slice.
const preallocSubqueries = 1024

type token struct {
	begin, end int
	literal    string
	wildcard   bool
	afterEqual bool
}

func (t token) startsWithStar(q string) bool { return q[t.begin] == '*' }
func (t token) endsWithStar(q string) bool   { return q[t.end-1] == '*' }

// reading is one interpretation of a token.
type reading[T ffi.EncodedVariable] struct {
	placeholder ffi.VariablePlaceholder
	value       T
	static      bool
}

// Encode compiles query into every subquery it may stand for.
func Encode[T ffi.EncodedVariable](query string) ([]Subquery[T], error) {
	return EncodeLimit[T](query, DefaultMaxSubqueries)
}

// EncodeLimit is Encode with a caller-chosen subquery limit. The limit is
// checked before any subquery is built.
func EncodeLimit[T ffi.EncodedVariable](query string, limit uint64) ([]Subquery[T], error) {
	if ffi.ContainsPlaceholder(query) {
		return nil, errors.InvalidQuery("query contains a reserved placeholder byte", nil)
	}
	q := CleanUpWildcardSearchString(query)
	if q == "" {
		return nil, errors.InvalidQuery("query is empty", nil)
	}

	tokens := tokenize(q)
	readings := make([][]reading[T], len(tokens))
	count := uint64(1)
	for i, tok := range tokens {
		readings[i] = readingsOf[T](tok)
		n := uint64(len(readings[i]))
		if count > limit/n {
			return nil, errors.TooManySubqueries(count * n)
		}
		count *= n
	}
	if count > limit {
		return nil, errors.TooManySubqueries(count)
	}

	subqueries := make([]Subquery[T], 0, int(min(count, preallocSubqueries)))
	choice := make([]int, len(tokens))
	for {
		subqueries = append(subqueries, build(q, tokens, readings, choice))

		// Advance the last token fastest.
		i := len(choice) - 1
		for ; i >= 0; i-- {
			choice[i]++
			if choice[i] < len(readings[i]) {
				break
			}
			choice[i] = 0
		}
		if i < 0 {
			return subqueries, nil
		}
	}
}

// tokenChar reports whether q[i] starts a token character and its width.
func tokenChar(q string, i int) (bool, int) {
	switch c := q[i]; {
	case c == '\\' && i+1 < len(q):
		return !ffi.IsDelim(q[i+1]), 2
	case isWildcard(c):
		return true, 1
	default:
		return !ffi.IsDelim(c), 1
	}
}

func tokenize(q string) []token {
	var tokens []token
	for i := 0; i < len(q); {
		ok, w := tokenChar(q, i)
		if !ok {
			i += w
			continue
		}

		tok := token{begin: i, afterEqual: i > 0 && q[i-1] == '='}
		var literal []byte
		for i < len(q) {
			ok, w := tokenChar(q, i)
			if !ok {
				break
			}
			switch {
			case w == 2:
				literal = append(literal, q[i+1])
			case isWildcard(q[i]):
				tok.wildcard = true
			default:
				literal = append(literal, q[i])
			}
			i += w
		}
		tok.end = i
		tok.literal = string(literal)
		tokens = append(tokens, tok)
	}
	return tokens
}

func onlyChars(s, allowed string) bool {
	for i := 0; i < len(s); i++ {
		ok := false
		for j := 0; j < len(allowed); j++ {
			if s[i] == allowed[j] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func hasDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if '0' <= s[i] && s[i] <= '9' {
			return true
		}
	}
	return false
}

func readingsOf[T ffi.EncodedVariable](tok token) []reading[T] {
	if !tok.wildcard {
		text, begin := tok.literal, 0
		if tok.afterEqual {
			text, begin = "="+tok.literal, 1
		}
		if !ffi.IsVariable(text, begin, len(text)) {
			return []reading[T]{{static: true}}
		}
		if v, ok := ffi.EncodeInteger[T](tok.literal); ok {
			return []reading[T]{{placeholder: ffi.PlaceholderInteger, value: v}}
		}
		if v, ok := ffi.EncodeFloat[T](tok.literal); ok {
			return []reading[T]{{placeholder: ffi.PlaceholderFloat, value: v}}
		}
		return []reading[T]{{placeholder: ffi.PlaceholderDictionary}}
	}

	// Wildcards alone can match any text, static or not.
	if tok.literal == "" {
		return []reading[T]{{static: true}}
	}

	var rs []reading[T]
	if onlyChars(tok.literal, "0123456789-") {
		rs = append(rs, reading[T]{placeholder: ffi.PlaceholderInteger})
	}
	if onlyChars(tok.literal, "0123456789.-") {
		rs = append(rs, reading[T]{placeholder: ffi.PlaceholderFloat})
	}
	rs = append(rs, reading[T]{placeholder: ffi.PlaceholderDictionary})
	if !hasDigit(tok.literal) {
		rs = append(rs, reading[T]{static: true})
	}
	return rs
}

func build[T ffi.EncodedVariable](q string, tokens []token, readings [][]reading[T], choice []int) Subquery[T] {
	sq := Subquery[T]{Query: q}
	logtype := make([]byte, 0, len(q))
	wildcards := false

	prev := 0
	for i, tok := range tokens {
		logtype = append(logtype, q[prev:tok.begin]...)
		prev = tok.end

		r := readings[i][choice[i]]
		switch {
		case r.static:
			logtype = append(logtype, q[tok.begin:tok.end]...)
			wildcards = wildcards || tok.wildcard
		case tok.wildcard:
			if tok.startsWithStar(q) {
				logtype = append(logtype, '*')
				wildcards = true
			}
			logtype = append(logtype, byte(r.placeholder))
			if tok.endsWithStar(q) {
				logtype = append(logtype, '*')
				wildcards = true
			}
			sq.WildcardVarPlaceholders = append(sq.WildcardVarPlaceholders, byte(r.placeholder))
			sq.WildcardVarBounds = append(sq.WildcardVarBounds, int32(tok.begin), int32(tok.end))
		case r.placeholder == ffi.PlaceholderDictionary:
			logtype = append(logtype, byte(r.placeholder))
			sq.DictVarBounds = append(sq.DictVarBounds, int32(tok.begin), int32(tok.end))
		default:
			logtype = append(logtype, byte(r.placeholder))
			sq.EncodedVars = append(sq.EncodedVars, r.value)
		}
	}
	logtype = append(logtype, q[prev:]...)

	if !wildcards {
		logtype = unescape(logtype)
	}
	sq.LogtypeQuery = logtype
	sq.LogtypeQueryContainsWildcards = wildcards
	return sq
}
