package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
)

func TestCleanUpWildcardSearchString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"a**b", "a*b"},
		{"***", "*"},
		{`a\*\*b`, `a\*\*b`},
		{`\a\b`, "ab"},
		{`a\\b`, `a\\b`},
		{`abc\`, "abc"},
		{`*\**`, `*\**`},
		{"a?*?b", "a?*?b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanUpWildcardSearchString(tt.in))
		})
	}
}

func TestEncode_ExactMessage(t *testing.T) {
	query := "Static text, dictVar1, 123, 456.7, dictVar2, 987, 654.3"
	subqueries, err := Encode[int64](query)
	require.NoError(t, err)
	require.Len(t, subqueries, 1)

	sq := subqueries[0]
	assert.True(t, sq.ContainsVariables())
	assert.False(t, sq.LogtypeQueryContainsWildcards)
	assert.Empty(t, sq.DictVarWildcardQueries())
	assert.Empty(t, sq.EncodedVarWildcardQueries())
	assert.Equal(t, []string{"dictVar1", "dictVar2"}, sq.DictVars())

	all, ends := ffi.FlattenStrings(sq.DictVars())
	decoded, err := ffi.DecodeMessage(sq.LogtypeQuery, sq.EncodedVars, all, ends)
	require.NoError(t, err)
	assert.Equal(t, query, decoded)

	// The logtype of an exact query is the logtype of the same message.
	var m ffi.EncodedMessage[int64]
	require.NoError(t, ffi.EncodeMessage(query, &m))
	assert.Equal(t, m.Logtype, sq.LogtypeQuery)
	assert.Equal(t, m.EncodedVars, sq.EncodedVars)
}

func TestEncode_WildcardVariable(t *testing.T) {
	subqueries, err := Encode[int64]("*123*")
	require.NoError(t, err)
	require.Greater(t, len(subqueries), 1)

	kinds := make(map[ffi.VariablePlaceholder]bool)
	for _, sq := range subqueries {
		assert.True(t, sq.ContainsVariables())
		assert.True(t, sq.LogtypeQueryContainsWildcards)

		dict := len(sq.DictVarWildcardQueries()) > 0
		encoded := len(sq.EncodedVarWildcardQueries()) > 0
		assert.True(t, dict != encoded, "exactly one kind of wildcard variable")

		require.Len(t, sq.WildcardVarPlaceholders, 1)
		kinds[ffi.VariablePlaceholder(sq.WildcardVarPlaceholders[0])] = true
		assert.Equal(t, []int32{0, 5}, sq.WildcardVarBounds)
	}
	assert.True(t, kinds[ffi.PlaceholderInteger])
	assert.True(t, kinds[ffi.PlaceholderFloat])
	assert.True(t, kinds[ffi.PlaceholderDictionary])
}

func TestEncode_Readings(t *testing.T) {
	tests := []struct {
		query string
		count int
	}{
		{"static only", 1},
		{"*", 1},
		{"ab*", 2}, // dict, static
		{"1?", 3},  // int, float, dict
		{"4.*", 2}, // float, dict
		{"x1*", 1}, // dict
		{"*1* *987*", 9},
		{"a* b*", 4},
		{"=value", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			subqueries, err := Encode[int64](tt.query)
			require.NoError(t, err)
			assert.Len(t, subqueries, tt.count)
		})
	}
}

func TestEncode_StaticReadingKeepsWildcards(t *testing.T) {
	subqueries, err := Encode[int64]("error ab*")
	require.NoError(t, err)
	require.Len(t, subqueries, 2)

	// dict first, then static
	assert.Equal(t, "error \x12*", string(subqueries[0].LogtypeQuery))
	assert.Equal(t, []string{"ab*"}, queriesText(subqueries[0].DictVarWildcardQueries()))
	assert.Equal(t, "error ab*", string(subqueries[1].LogtypeQuery))
	assert.False(t, subqueries[1].ContainsVariables())
	assert.True(t, subqueries[1].LogtypeQueryContainsWildcards)
}

func TestEncode_EscapedWildcardIsStatic(t *testing.T) {
	subqueries, err := Encode[int64](`total \* 2`)
	require.NoError(t, err)
	require.Len(t, subqueries, 1)

	sq := subqueries[0]
	assert.False(t, sq.LogtypeQueryContainsWildcards)
	assert.Equal(t, "total * \x11", string(sq.LogtypeQuery))
	assert.Equal(t, []int64{2}, sq.EncodedVars)
}

func TestEncode_FourByte(t *testing.T) {
	subqueries, err := Encode[int32]("id 12345678901")
	require.NoError(t, err)
	require.Len(t, subqueries, 1)
	// Too wide for four bytes, so it's a dictionary variable.
	assert.Equal(t, []string{"12345678901"}, subqueries[0].DictVars())
	assert.Empty(t, subqueries[0].EncodedVars)
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode[int64]("")
	require.Error(t, err)
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidQuery, kind)

	_, err = Encode[int64](`\`)
	kind, _ = errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidQuery, kind)

	_, err = Encode[int64]("bad \x12 query")
	kind, _ = errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidQuery, kind)

	_, err = EncodeLimit[int64]("*1* *2* *3*", 26)
	require.Error(t, err)
	kind, _ = errors.KindOf(err)
	assert.Equal(t, errors.KindTooManySubqueries, kind)

	subqueries, err := EncodeLimit[int64]("*1* *2* *3*", 27)
	require.NoError(t, err)
	assert.Len(t, subqueries, 27)

	// Fifteen four-way tokens would be about a billion subqueries.
	_, err = Encode[int64](strings.Repeat("*-* ", 15))
	require.Error(t, err)
	kind, _ = errors.KindOf(err)
	assert.Equal(t, errors.KindTooManySubqueries, kind)
}

func TestEncodeLimit_LargeLimit(t *testing.T) {
	subqueries, err := EncodeLimit[int64]("*-* *-*", 1<<40)
	require.NoError(t, err)
	assert.Len(t, subqueries, 16)
}

func TestSubquery_BatchMatch(t *testing.T) {
	messages := []string{
		"Static text, dictVar1, 123, 456.7, dictVar2, 987, 654.3",
		"Message with only static text.",
		"Message with 1 + 1 encoded variables.",
	}
	encoded := make([]ffi.EncodedMessage[int64], len(messages))
	for i, msg := range messages {
		require.NoError(t, ffi.EncodeMessage(msg, &encoded[i]))
	}

	subqueries, err := Encode[int64]("*1* *987*")
	require.NoError(t, err)

	matching := make([]int, len(messages))
	for _, sq := range subqueries {
		queries := sq.EncodedVarWildcardQueries()
		for i := range encoded {
			if ffi.MatchEncodedVars(encoded[i].Logtype, encoded[i].EncodedVars, queries) == ffi.Matched {
				matching[i]++
			}
		}
	}
	assert.Positive(t, matching[0])
	assert.Zero(t, matching[1])
	assert.Positive(t, matching[2])
}

func queriesText(qs []ffi.VarQuery) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Query
	}
	return out
}
