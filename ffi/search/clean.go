package search

import "strings"

func isWildcard(c byte) bool {
	return c == '*' || c == '?'
}

// CleanUpWildcardSearchString collapses runs of '*', drops escapes that
// don't escape a wildcard or a backslash, and drops a trailing lone
// backslash.
func CleanUpWildcardSearchString(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	prevStar := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\\':
			i++
			if i == len(query) {
				return b.String()
			}
			next := query[i]
			if isWildcard(next) || next == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(next)
			prevStar = false
		case c == '*':
			if !prevStar {
				b.WriteByte('*')
			}
			prevStar = true
		default:
			b.WriteByte(c)
			prevStar = false
		}
	}
	return b.String()
}

// unescape removes the escapes of a cleaned query fragment.
func unescape(s []byte) []byte {
	out := s[:0]
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		out = append(out, s[i])
	}
	return out
}
