package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/hostrt"
)

// exceptionClass returns the host exception class raised for kind.
func (b *Bridge) exceptionClass(kind errors.Kind) string {
	names := b.cfg.Classes
	switch kind {
	case errors.KindCopyFailed, errors.KindEncoding:
		return names.IOException
	case errors.KindUnsupportedVersion, errors.KindLengthOverflow, errors.KindTooManySubqueries:
		return names.UnsupportedOperation
	case errors.KindInvalidQuery, errors.KindInvalidInput:
		return names.IllegalArgument
	case errors.KindClassNotFound, errors.KindMemberNotFound:
		return names.ClassNotFound
	default:
		return names.RuntimeException
	}
}

// raise translates err into a host exception. It never raises while an
// exception is already pending.
func (b *Bridge) raise(env hostrt.Env, op string, err error) {
	if errors.Signaled(err) || env.ExceptionCheck() {
		b.log.Debug("exception already pending", zap.String("op", op), zap.Error(err))
		return
	}

	kind, _ := errors.KindOf(err)
	name := b.exceptionClass(kind)
	b.log.Debug("raising host exception",
		zap.String("op", op),
		zap.String("class", name),
		zap.Error(err))

	if b.throw(env, name, err.Error()) || env.ExceptionCheck() {
		return
	}
	fallback := b.cfg.Classes.RuntimeException
	if name == fallback || b.throw(env, fallback, err.Error()) {
		return
	}
	b.log.Error("no host exception raised", zap.String("op", op), zap.Error(err))
}

// throw raises a new instance of the named class and reports whether it is
// now pending.
func (b *Bridge) throw(env hostrt.Env, name, msg string) bool {
	class, err := env.FindClass(name)
	if err != nil {
		// FindClass has raised NoClassDefFoundError or similar.
		b.log.Warn("exception class not found", zap.String("class", name), zap.Error(err))
		return false
	}
	defer env.DeleteLocalRef(class)
	if err := env.ThrowNew(class, msg); err != nil {
		b.log.Warn("failed to raise host exception", zap.String("class", name), zap.Error(err))
		return false
	}
	return true
}

// hostFailure wraps an error returned by a host call. A host call that
// left an exception pending yields an already-signaled error.
func hostFailure(env hostrt.Env, phase errors.Phase, call string, err error) error {
	if env.ExceptionCheck() {
		return errors.New(phase, errors.KindAlreadySignaled).
			Detail("%s failed", call).
			Cause(err).
			Build()
	}
	return errors.Wrap(phase, errors.KindNativeFailure, err, call+" failed")
}

// call runs fn as the body of entry point op. Any error or panic is raised
// as a host exception and the sentinel returned instead.
func call[R any](b *Bridge, env hostrt.Env, op string, sentinel R, fn func() (R, error)) (result R) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("recovered panic in bridge call",
				zap.String("op", op),
				zap.Any("panic", r),
				zap.Stack("stack"))
			b.raise(env, op, errors.NativeFailure(errors.PhaseRuntime, fmt.Sprintf("panic: %v", r)))
			result = sentinel
		}
	}()

	if state := b.cache.State(); state != CacheReady {
		b.raise(env, op, errors.NotInitialized(errors.PhaseRuntime, "class cache ("+state.String()+")"))
		return sentinel
	}

	r, err := fn()
	if err != nil {
		b.raise(env, op, err)
		return sentinel
	}
	return r
}

func do(b *Bridge, env hostrt.Env, op string, fn func() error) {
	call(b, env, op, struct{}{}, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}
