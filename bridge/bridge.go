package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/hostrt"
	"github.com/wippyai/clp-ffi/resource"
)

// Bridge is a loaded bridge module. Its methods are the entry points
// callable from the host; they are safe for concurrent use from different
// host threads.
type Bridge struct {
	cfg      Config
	log      *zap.Logger
	cache    *ClassCache
	table    *resource.Table
	streams  *resource.Typed[*StreamState]
	observer *streamObserver
}

// Load resolves the class cache. On failure the cache is left TornDown, an
// exception is pending in env and no Bridge is returned.
func Load(env hostrt.Env, cfg Config) (*Bridge, error) {
	log := cfg.logger()
	b := &Bridge{
		cfg:   cfg,
		log:   log,
		cache: NewClassCache(cfg.Classes, log),
		table: resource.NewTable(),
	}
	b.streams = resource.NewTyped[*StreamState](b.table, resource.KindStream)
	b.observer = &streamObserver{log: log}
	b.table.Subscribe(b.observer)

	if err := b.cache.Initialize(env); err != nil {
		b.raise(env, "load", err)
		return nil, err
	}
	return b, nil
}

// Unload drops every open stream and releases the class cache. The bridge
// rejects every call afterwards.
func (b *Bridge) Unload(env hostrt.Env) {
	if n := b.table.Len(); n > 0 {
		b.log.Debug("dropping open streams", zap.Int("count", n))
	}
	b.table.Clear()
	b.table.Unsubscribe(b.observer)
	_ = b.table.Close()
	b.cache.Teardown(env)
}

// Cache returns the bridge's class cache.
func (b *Bridge) Cache() *ClassCache {
	return b.cache
}

// OpenStreams returns the number of live stream handles.
func (b *Bridge) OpenStreams() int {
	return b.streams.Len()
}

// borrowString copies a caller byte array of declared length into a string.
func borrowString(env hostrt.Env, array hostrt.Ref, length int, path string) (string, error) {
	a, err := hostrt.BorrowN[byte](env, array, length, hostrt.ReleaseAbort, path)
	if err != nil {
		return "", err
	}
	defer a.Release()
	return string(a.Elems()), nil
}

func deleteLocals(env hostrt.Env, refs ...hostrt.Ref) {
	for _, ref := range refs {
		if ref != 0 {
			env.DeleteLocalRef(ref)
		}
	}
}

func nullCheck(phase errors.Phase, ref hostrt.Ref, path string) error {
	if ref == 0 {
		return errors.New(phase, errors.KindInvalidInput).
			Path(path).
			Detail("null reference").
			Build()
	}
	return nil
}
