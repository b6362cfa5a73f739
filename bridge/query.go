package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi/search"
	"github.com/wippyai/clp-ffi/hostrt"
)

// EncodeWildcardQuery compiles a wildcard query and returns its subqueries
// as a new array of subquery objects, or null on failure.
func (b *Bridge) EncodeWildcardQuery(env hostrt.Env, query hostrt.Ref, queryLen int) hostrt.Ref {
	return call(b, env, "encode-wildcard-query", hostrt.Ref(0), func() (hostrt.Ref, error) {
		q, err := borrowString(env, query, queryLen, "query")
		if err != nil {
			return 0, err
		}
		subqueries, err := search.EncodeLimit[int64](q, b.cfg.maxSubqueries())
		if err != nil {
			return 0, err
		}
		b.log.Debug("query compiled", zap.Int("subqueries", len(subqueries)))
		return b.newSubqueryArray(env, subqueries)
	})
}

func (b *Bridge) newSubqueryArray(env hostrt.Env, subqueries []search.Subquery[int64]) (hostrt.Ref, error) {
	if err := hostrt.CheckLength(len(subqueries)); err != nil {
		return 0, errors.TooManySubqueries(uint64(len(subqueries)))
	}
	array, err := env.NewObjectArray(len(subqueries), b.cache.SubqueryClass())
	if err != nil {
		return 0, errors.AllocationFailed(len(subqueries), env.ExceptionCheck(), err)
	}

	for i := range subqueries {
		obj, err := b.newSubquery(env, &subqueries[i])
		if err != nil {
			env.DeleteLocalRef(array)
			return 0, err
		}
		err = env.SetObjectArrayElement(array, i, obj)
		env.DeleteLocalRef(obj)
		if err != nil {
			env.DeleteLocalRef(array)
			return 0, hostFailure(env, errors.PhaseConstruct, "SetObjectArrayElement", err)
		}
	}
	return array, nil
}

func (b *Bridge) newSubquery(env hostrt.Env, sq *search.Subquery[int64]) (hostrt.Ref, error) {
	var refs []hostrt.Ref
	defer func() { deleteLocals(env, refs...) }()

	add := func(ref hostrt.Ref, err error) error {
		if err == nil {
			refs = append(refs, ref)
		}
		return err
	}
	if err := add(hostrt.NewArray(env, []byte(sq.Query))); err != nil {
		return 0, err
	}
	if err := add(hostrt.NewArray(env, sq.LogtypeQuery)); err != nil {
		return 0, err
	}
	if err := add(hostrt.NewArray(env, sq.DictVarBounds)); err != nil {
		return 0, err
	}
	if err := add(hostrt.NewArray(env, sq.EncodedVars)); err != nil {
		return 0, err
	}
	if err := add(hostrt.NewArray(env, sq.WildcardVarPlaceholders)); err != nil {
		return 0, err
	}
	if err := add(hostrt.NewArray(env, sq.WildcardVarBounds)); err != nil {
		return 0, err
	}

	obj, err := env.NewObject(b.cache.SubqueryClass(), b.cache.SubqueryConstructor(),
		refs[0], refs[1], sq.LogtypeQueryContainsWildcards, refs[2], refs[3], refs[4], refs[5])
	if err != nil {
		return 0, hostFailure(env, errors.PhaseConstruct, "NewObject subquery", err)
	}
	return obj, nil
}
