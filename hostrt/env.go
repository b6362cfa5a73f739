package hostrt

// Ref is a reference to a host object, array or class. The zero Ref is null.
type Ref uint64

// FieldID identifies a resolved instance field.
type FieldID uint64

// MethodID identifies a resolved method or constructor.
type MethodID uint64

// ReleaseMode selects what releasing pinned array elements does.
type ReleaseMode uint8

const (
	// ReleaseCommitAndFree copies changes back and unpins.
	ReleaseCommitAndFree ReleaseMode = iota
	// ReleaseCommit copies changes back and keeps the elements pinned.
	ReleaseCommit
	// ReleaseAbort unpins without copying changes back.
	ReleaseAbort
)

func (m ReleaseMode) String() string {
	switch m {
	case ReleaseCommitAndFree:
		return "commit-and-free"
	case ReleaseCommit:
		return "commit"
	case ReleaseAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Env is the caller's runtime environment for one call.
//
// Apart from ExceptionCheck, the Release*Elements calls and the Delete*Ref
// calls, no method may be invoked while an exception is pending.
type Env interface {
	// ExceptionCheck reports whether an exception is pending.
	ExceptionCheck() bool
	// ThrowNew makes a new instance of class with msg the pending exception.
	ThrowNew(class Ref, msg string) error

	// FindClass resolves a class by its slash-separated name and returns a
	// local reference.
	FindClass(name string) (Ref, error)
	// NewGlobalRef returns a reference that survives the current call.
	NewGlobalRef(ref Ref) Ref
	DeleteGlobalRef(ref Ref)
	DeleteLocalRef(ref Ref)

	GetFieldID(class Ref, name, descriptor string) (FieldID, error)
	GetMethodID(class Ref, name, descriptor string) (MethodID, error)
	NewObject(class Ref, ctor MethodID, args ...any) (Ref, error)
	GetObjectField(obj Ref, field FieldID) (Ref, error)
	SetObjectField(obj Ref, field FieldID, value Ref) error

	GetArrayLength(array Ref) (int, error)

	GetByteArrayElements(array Ref) ([]byte, error)
	ReleaseByteArrayElements(array Ref, elems []byte, mode ReleaseMode)
	NewByteArray(length int) (Ref, error)
	SetByteArrayRegion(array Ref, start int, buf []byte) error

	GetIntArrayElements(array Ref) ([]int32, error)
	ReleaseIntArrayElements(array Ref, elems []int32, mode ReleaseMode)
	NewIntArray(length int) (Ref, error)
	SetIntArrayRegion(array Ref, start int, buf []int32) error

	GetLongArrayElements(array Ref) ([]int64, error)
	ReleaseLongArrayElements(array Ref, elems []int64, mode ReleaseMode)
	NewLongArray(length int) (Ref, error)
	SetLongArrayRegion(array Ref, start int, buf []int64) error

	NewObjectArray(length int, elemClass Ref) (Ref, error)
	GetObjectArrayElement(array Ref, index int) (Ref, error)
	SetObjectArrayElement(array Ref, index int, value Ref) error
}
