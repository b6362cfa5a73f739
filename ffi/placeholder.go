package ffi

// VariablePlaceholder marks where a variable was removed from a logtype.
type VariablePlaceholder byte

const (
	PlaceholderInteger    VariablePlaceholder = 0x11
	PlaceholderDictionary VariablePlaceholder = 0x12
	PlaceholderFloat      VariablePlaceholder = 0x13
)

func (p VariablePlaceholder) String() string {
	switch p {
	case PlaceholderInteger:
		return "int"
	case PlaceholderDictionary:
		return "dict"
	case PlaceholderFloat:
		return "float"
	default:
		return "invalid"
	}
}

// IsPlaceholder reports whether c is a reserved placeholder byte.
func IsPlaceholder(c byte) bool {
	switch VariablePlaceholder(c) {
	case PlaceholderInteger, PlaceholderDictionary, PlaceholderFloat:
		return true
	}
	return false
}

// IsDelim reports whether c separates tokens. Only + - . / 0-9 A-Z \ _ a-z
// can be part of a token.
func IsDelim(c byte) bool {
	return !(c == '+' || ('-' <= c && c <= '9') || ('A' <= c && c <= 'Z') ||
		c == '\\' || c == '_' || ('a' <= c && c <= 'z'))
}

func isDecimalDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isAlphabet(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isHexDigit(c byte) bool {
	return isDecimalDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// CouldBeMultiDigitHexValue reports whether token is two or more hex digits.
func CouldBeMultiDigitHexValue(token string) bool {
	if len(token) < 2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		if !isHexDigit(token[i]) {
			return false
		}
	}
	return true
}

// IsVariable reports whether the token text[begin:end] is a variable: it
// contains a decimal digit, follows '=' and contains a letter, or could be
// a multi-digit hex value.
func IsVariable(text string, begin, end int) bool {
	token := text[begin:end]
	hasAlpha := false
	for i := 0; i < len(token); i++ {
		if isDecimalDigit(token[i]) {
			return true
		}
		if isAlphabet(token[i]) {
			hasAlpha = true
		}
	}
	if begin > 0 && text[begin-1] == '=' && hasAlpha {
		return true
	}
	return CouldBeMultiDigitHexValue(token)
}

// NextVariable returns the bounds of the first variable in text at or after
// begin.
func NextVariable(text string, begin int) (int, int, bool) {
	n := len(text)
	for begin < n {
		for begin < n && IsDelim(text[begin]) {
			begin++
		}
		if begin >= n {
			break
		}
		end := begin
		for end < n && !IsDelim(text[end]) {
			end++
		}
		if IsVariable(text, begin, end) {
			return begin, end, true
		}
		begin = end
	}
	return n, n, false
}
