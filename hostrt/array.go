package hostrt

import (
	"math"

	"github.com/wippyai/clp-ffi/errors"
)

// MaxArrayLength is the largest length a host array index can address.
const MaxArrayLength = math.MaxInt32

// Elem is an element type with a host primitive array counterpart:
// byte arrays, int arrays and long arrays.
type Elem interface {
	byte | int32 | int64
}

type arrayOps[T Elem] struct {
	get     func(Env, Ref) ([]T, error)
	release func(Env, Ref, []T, ReleaseMode)
	alloc   func(Env, int) (Ref, error)
	set     func(Env, Ref, int, []T) error
}

var (
	byteOps = arrayOps[byte]{
		get:     Env.GetByteArrayElements,
		release: Env.ReleaseByteArrayElements,
		alloc:   Env.NewByteArray,
		set:     Env.SetByteArrayRegion,
	}
	intOps = arrayOps[int32]{
		get:     Env.GetIntArrayElements,
		release: Env.ReleaseIntArrayElements,
		alloc:   Env.NewIntArray,
		set:     Env.SetIntArrayRegion,
	}
	longOps = arrayOps[int64]{
		get:     Env.GetLongArrayElements,
		release: Env.ReleaseLongArrayElements,
		alloc:   Env.NewLongArray,
		set:     Env.SetLongArrayRegion,
	}
)

func opsFor[T Elem]() arrayOps[T] {
	var zero T
	switch any(zero).(type) {
	case byte:
		return any(byteOps).(arrayOps[T])
	case int32:
		return any(intOps).(arrayOps[T])
	default:
		return any(longOps).(arrayOps[T])
	}
}

// noCopy trips go vet's copylocks check when a BorrowedArray is copied.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// BorrowedArray is a pinned view of a caller-owned host array.
type BorrowedArray[T Elem] struct {
	_        noCopy
	env      Env
	ops      arrayOps[T]
	elems    []T
	view     []T
	ref      Ref
	mode     ReleaseMode
	released bool
}

// Borrow pins array for the duration of a call. mode is the mode Release
// will use.
func Borrow[T Elem](env Env, array Ref, mode ReleaseMode, path ...string) (*BorrowedArray[T], error) {
	if array == 0 {
		return nil, errors.New(errors.PhaseBorrow, errors.KindInvalidInput).
			Path(path...).
			Detail("null array").
			Build()
	}

	ops := opsFor[T]()
	elems, err := ops.get(env, array)
	if err != nil {
		return nil, errors.AcquisitionFailed(path, env.ExceptionCheck(), err)
	}
	return &BorrowedArray[T]{
		env:   env,
		ops:   ops,
		elems: elems,
		view:  elems,
		ref:   array,
		mode:  mode,
	}, nil
}

// BorrowN pins array and restricts the view to the caller-declared length.
// A declared length outside [0, actual length] releases the array and fails
// with an invalid-input error.
func BorrowN[T Elem](env Env, array Ref, length int, mode ReleaseMode, path ...string) (*BorrowedArray[T], error) {
	if length < 0 {
		return nil, errors.OutOfBounds(errors.PhaseBorrow, path, length, 0)
	}
	a, err := Borrow[T](env, array, mode, path...)
	if err != nil {
		return nil, err
	}
	if length > len(a.elems) {
		actual := len(a.elems)
		a.Release()
		return nil, errors.OutOfBounds(errors.PhaseBorrow, path, length, actual)
	}
	a.view = a.elems[:length]
	return a, nil
}

// Elems returns the pinned elements, limited to the declared length.
// The slice is invalid after Release.
func (a *BorrowedArray[T]) Elems() []T {
	return a.view
}

// Len returns the number of visible elements.
func (a *BorrowedArray[T]) Len() int {
	return len(a.view)
}

// Flush copies changes back to the host array without unpinning it.
func (a *BorrowedArray[T]) Flush() {
	if a.released {
		return
	}
	a.ops.release(a.env, a.ref, a.elems, ReleaseCommit)
}

// Release unpins the array with the mode given at acquisition. Only the
// first call reaches the host. ReleaseCommit copies changes back and then
// unpins without copying again.
func (a *BorrowedArray[T]) Release() {
	if a.released {
		return
	}
	mode := a.mode
	if mode == ReleaseCommit {
		a.Flush()
		mode = ReleaseAbort
	}
	a.released = true
	a.ops.release(a.env, a.ref, a.elems, mode)
	a.elems = nil
	a.view = nil
}

// CheckLength fails with a length-overflow error if n cannot index a host array.
func CheckLength(n int) error {
	if n < 0 || n > MaxArrayLength {
		return errors.LengthOverflow(n, MaxArrayLength)
	}
	return nil
}

// NewArray creates a host array holding a copy of buf and returns a local
// reference to it.
func NewArray[T Elem](env Env, buf []T) (Ref, error) {
	if err := CheckLength(len(buf)); err != nil {
		return 0, err
	}

	ops := opsFor[T]()
	ref, err := ops.alloc(env, len(buf))
	if err != nil {
		return 0, errors.AllocationFailed(len(buf), env.ExceptionCheck(), err)
	}
	if len(buf) == 0 {
		return ref, nil
	}
	if err := ops.set(env, ref, 0, buf); err != nil {
		pending := env.ExceptionCheck()
		env.DeleteLocalRef(ref)
		return 0, errors.CopyFailed(len(buf), pending, err)
	}
	return ref, nil
}
