package search

import "github.com/wippyai/clp-ffi/ffi"

// Subquery is one interpretation of a wildcard query. All bounds index
// Query, the cleaned query text.
type Subquery[T ffi.EncodedVariable] struct {
	Query                         string
	LogtypeQuery                  []byte
	LogtypeQueryContainsWildcards bool
	DictVarBounds                 []int32
	EncodedVars                   []T
	WildcardVarPlaceholders       []byte
	WildcardVarBounds             []int32
}

// DictVars returns the exact dictionary variables.
func (s *Subquery[T]) DictVars() []string {
	vars := make([]string, 0, len(s.DictVarBounds)/2)
	for i := 0; i+1 < len(s.DictVarBounds); i += 2 {
		vars = append(vars, s.Query[s.DictVarBounds[i]:s.DictVarBounds[i+1]])
	}
	return vars
}

// DictVarWildcardQueries returns the wildcard variables read as dictionary
// variables.
func (s *Subquery[T]) DictVarWildcardQueries() []ffi.VarQuery {
	return s.wildcardQueries(func(p ffi.VariablePlaceholder) bool {
		return p == ffi.PlaceholderDictionary
	})
}

// EncodedVarWildcardQueries returns the wildcard variables read as encoded
// variables, in query order.
func (s *Subquery[T]) EncodedVarWildcardQueries() []ffi.VarQuery {
	return s.wildcardQueries(func(p ffi.VariablePlaceholder) bool {
		return p != ffi.PlaceholderDictionary
	})
}

func (s *Subquery[T]) wildcardQueries(keep func(ffi.VariablePlaceholder) bool) []ffi.VarQuery {
	var queries []ffi.VarQuery
	for i, c := range s.WildcardVarPlaceholders {
		p := ffi.VariablePlaceholder(c)
		if !keep(p) {
			continue
		}
		queries = append(queries, ffi.VarQuery{
			Query:       s.Query[s.WildcardVarBounds[2*i]:s.WildcardVarBounds[2*i+1]],
			Placeholder: p,
		})
	}
	return queries
}

// ContainsVariables reports whether the subquery constrains any variable.
func (s *Subquery[T]) ContainsVariables() bool {
	return len(s.DictVarBounds) > 0 || len(s.EncodedVars) > 0 || len(s.WildcardVarPlaceholders) > 0
}
