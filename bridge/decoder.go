package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/hostrt"
)

// DecodeMessage rebuilds a message from its encoded parts and returns it as
// a new byte array, or null on failure.
func (b *Bridge) DecodeMessage(env hostrt.Env,
	logtype hostrt.Ref, logtypeLen int,
	allDictVars hostrt.Ref, allDictVarsLen int,
	dictVarEndOffsets hostrt.Ref, endOffsetsLen int,
	encodedVars hostrt.Ref, encodedVarsLen int,
) hostrt.Ref {
	return call(b, env, "decode-message", hostrt.Ref(0), func() (hostrt.Ref, error) {
		msg, err := decodeMessage(env, logtype, logtypeLen, allDictVars, allDictVarsLen,
			dictVarEndOffsets, endOffsetsLen, encodedVars, encodedVarsLen)
		if err != nil {
			return 0, err
		}
		return hostrt.NewArray(env, []byte(msg))
	})
}

func decodeMessage(env hostrt.Env,
	logtype hostrt.Ref, logtypeLen int,
	allDictVars hostrt.Ref, allDictVarsLen int,
	dictVarEndOffsets hostrt.Ref, endOffsetsLen int,
	encodedVars hostrt.Ref, encodedVarsLen int,
) (string, error) {
	lt, err := hostrt.BorrowN[byte](env, logtype, logtypeLen, hostrt.ReleaseAbort, "logtype")
	if err != nil {
		return "", err
	}
	defer lt.Release()

	dv, err := hostrt.BorrowN[byte](env, allDictVars, allDictVarsLen, hostrt.ReleaseAbort, "allDictVars")
	if err != nil {
		return "", err
	}
	defer dv.Release()

	ends, err := hostrt.BorrowN[int32](env, dictVarEndOffsets, endOffsetsLen, hostrt.ReleaseAbort, "dictVarEndOffsets")
	if err != nil {
		return "", err
	}
	defer ends.Release()

	ev, err := hostrt.BorrowN[int64](env, encodedVars, encodedVarsLen, hostrt.ReleaseAbort, "encodedVars")
	if err != nil {
		return "", err
	}
	defer ev.Release()

	return ffi.DecodeMessage(lt.Elems(), ev.Elems(), dv.Elems(), ends.Elems())
}

// WildcardQueryMatchesAnyIntVar reports whether query matches any integer
// variable of the message.
func (b *Bridge) WildcardQueryMatchesAnyIntVar(env hostrt.Env, query hostrt.Ref, queryLen int, logtype hostrt.Ref, logtypeLen int, encodedVars hostrt.Ref, encodedVarsLen int) bool {
	return b.matchesAnyVar(env, "wildcard-query-matches-any-int-var", ffi.PlaceholderInteger,
		query, queryLen, logtype, logtypeLen, encodedVars, encodedVarsLen)
}

// WildcardQueryMatchesAnyFloatVar reports whether query matches any float
// variable of the message.
func (b *Bridge) WildcardQueryMatchesAnyFloatVar(env hostrt.Env, query hostrt.Ref, queryLen int, logtype hostrt.Ref, logtypeLen int, encodedVars hostrt.Ref, encodedVarsLen int) bool {
	return b.matchesAnyVar(env, "wildcard-query-matches-any-float-var", ffi.PlaceholderFloat,
		query, queryLen, logtype, logtypeLen, encodedVars, encodedVarsLen)
}

func (b *Bridge) matchesAnyVar(env hostrt.Env, op string, kind ffi.VariablePlaceholder,
	query hostrt.Ref, queryLen int, logtype hostrt.Ref, logtypeLen int, encodedVars hostrt.Ref, encodedVarsLen int,
) bool {
	return call(b, env, op, false, func() (bool, error) {
		q, err := borrowString(env, query, queryLen, "query")
		if err != nil {
			return false, err
		}
		lt, err := hostrt.BorrowN[byte](env, logtype, logtypeLen, hostrt.ReleaseAbort, "logtype")
		if err != nil {
			return false, err
		}
		defer lt.Release()
		ev, err := hostrt.BorrowN[int64](env, encodedVars, encodedVarsLen, hostrt.ReleaseAbort, "encodedVars")
		if err != nil {
			return false, err
		}
		defer ev.Release()

		return ffi.WildcardQueryMatchesAnyEncodedVar(q, lt.Elems(), ev.Elems(), kind)
	})
}

// BatchEncodedVarsWildcardMatch matches numMessages messages against one
// ordered set of encoded-variable wildcard queries and writes one
// ffi.MatchResult per message into results.
//
// placeholders holds the kind of each query; the queries are stored back
// to back in serializedQueries, query i ending at queryEndIndexes[i]. Null
// elements of logtypes and encodedVarArrays are treated as empty. results
// is only written after every input has been read.
func (b *Bridge) BatchEncodedVarsWildcardMatch(env hostrt.Env, numMessages int,
	logtypes, encodedVarArrays hostrt.Ref,
	placeholders hostrt.Ref, placeholdersLen int,
	serializedQueries hostrt.Ref, serializedQueriesLen int,
	queryEndIndexes hostrt.Ref, queryEndIndexesLen int,
	results hostrt.Ref,
) {
	do(b, env, "batch-encoded-vars-wildcard-match", func() error {
		if numMessages < 0 {
			return errors.InvalidInput(errors.PhaseSearch, "negative message count")
		}
		for _, arg := range []struct {
			ref  hostrt.Ref
			name string
		}{{logtypes, "logtypes"}, {encodedVarArrays, "encodedVarArrays"}, {results, "results"}} {
			if err := checkMinLength(env, arg.ref, numMessages, arg.name); err != nil {
				return err
			}
		}

		queries, err := readVarQueries(env, placeholders, placeholdersLen,
			serializedQueries, serializedQueriesLen, queryEndIndexes, queryEndIndexesLen)
		if err != nil {
			return err
		}

		codes := make([]int32, numMessages)
		counts := make(map[ffi.MatchResult]int)
		for i := range codes {
			r, err := matchElement(env, logtypes, encodedVarArrays, i, queries)
			if err != nil {
				return err
			}
			codes[i] = int32(r)
			counts[r]++
		}

		out, err := hostrt.BorrowN[int32](env, results, numMessages, hostrt.ReleaseCommitAndFree, "results")
		if err != nil {
			return err
		}
		copy(out.Elems(), codes)
		out.Release()

		b.log.Debug("batch match",
			zap.Int("messages", numMessages),
			zap.Int("queries", len(queries)),
			zap.Int("matched", counts[ffi.Matched]),
			zap.Int("no_variables", counts[ffi.NoVariables]),
			zap.Int("malformed", counts[ffi.Malformed]))
		return nil
	})
}

func checkMinLength(env hostrt.Env, array hostrt.Ref, want int, path string) error {
	if err := nullCheck(errors.PhaseSearch, array, path); err != nil {
		return err
	}
	n, err := env.GetArrayLength(array)
	if err != nil {
		return hostFailure(env, errors.PhaseSearch, "GetArrayLength "+path, err)
	}
	if n < want {
		return errors.OutOfBounds(errors.PhaseSearch, []string{path}, want, n)
	}
	return nil
}

func readVarQueries(env hostrt.Env,
	placeholders hostrt.Ref, placeholdersLen int,
	serializedQueries hostrt.Ref, serializedQueriesLen int,
	queryEndIndexes hostrt.Ref, queryEndIndexesLen int,
) ([]ffi.VarQuery, error) {
	if placeholdersLen != queryEndIndexesLen {
		return nil, errors.New(errors.PhaseSearch, errors.KindInvalidInput).
			Detail("%d placeholders for %d queries", placeholdersLen, queryEndIndexesLen).
			Build()
	}

	kinds, err := hostrt.BorrowN[byte](env, placeholders, placeholdersLen, hostrt.ReleaseAbort, "placeholders")
	if err != nil {
		return nil, err
	}
	defer kinds.Release()
	all, err := borrowString(env, serializedQueries, serializedQueriesLen, "serializedQueries")
	if err != nil {
		return nil, err
	}
	ends, err := hostrt.BorrowN[int32](env, queryEndIndexes, queryEndIndexesLen, hostrt.ReleaseAbort, "queryEndIndexes")
	if err != nil {
		return nil, err
	}
	defer ends.Release()

	queries := make([]ffi.VarQuery, len(ends.Elems()))
	begin := 0
	for i, end := range ends.Elems() {
		if int(end) < begin || int(end) > len(all) {
			return nil, errors.New(errors.PhaseSearch, errors.KindInvalidInput).
				Path("queryEndIndexes").
				Value(end).
				Detail("end index %d of query %d outside [%d, %d]", end, i, begin, len(all)).
				Build()
		}
		p := ffi.VariablePlaceholder(kinds.Elems()[i])
		if p != ffi.PlaceholderInteger && p != ffi.PlaceholderFloat {
			return nil, errors.New(errors.PhaseSearch, errors.KindInvalidInput).
				Path("placeholders").
				Value(byte(p)).
				Detail("query %d is not for an encoded variable", i).
				Build()
		}
		queries[i] = ffi.VarQuery{Query: all[begin:end], Placeholder: p}
		begin = int(end)
	}
	return queries, nil
}

// matchElement matches message i of a batch. A null logtype or variable
// array reads as empty.
func matchElement(env hostrt.Env, logtypes, encodedVarArrays hostrt.Ref, i int, queries []ffi.VarQuery) (ffi.MatchResult, error) {
	ltRef, err := env.GetObjectArrayElement(logtypes, i)
	if err != nil {
		return 0, hostFailure(env, errors.PhaseSearch, "GetObjectArrayElement logtypes", err)
	}
	defer deleteLocals(env, ltRef)
	evRef, err := env.GetObjectArrayElement(encodedVarArrays, i)
	if err != nil {
		return 0, hostFailure(env, errors.PhaseSearch, "GetObjectArrayElement encodedVarArrays", err)
	}
	defer deleteLocals(env, evRef)

	var logtype []byte
	if ltRef != 0 {
		lt, err := hostrt.Borrow[byte](env, ltRef, hostrt.ReleaseAbort, "logtypes")
		if err != nil {
			return 0, err
		}
		defer lt.Release()
		logtype = lt.Elems()
	}
	var vars []int64
	if evRef != 0 {
		ev, err := hostrt.Borrow[int64](env, evRef, hostrt.ReleaseAbort, "encodedVarArrays")
		if err != nil {
			return 0, err
		}
		defer ev.Release()
		vars = ev.Elems()
	}
	return ffi.MatchEncodedVars(logtype, vars, queries), nil
}
