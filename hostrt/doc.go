// Package hostrt defines the host-runtime surface the bridge is written
// against, and the two array primitives every entry point relies on.
//
// Env is shaped like a JNI environment: references to host objects and
// arrays, class and member lookup, global references that survive a call,
// per-element-type pin/release and construction calls, and a single
// pending-exception slot. A host that reports a failure through an error
// may also have left an exception pending; callers find out through
// ExceptionCheck.
//
// # Borrowed arrays
//
// Borrow pins a caller-owned array and returns a BorrowedArray. The
// release mode is fixed at acquisition and Release performs exactly one
// host release with it, however often it is called:
//
//	logtype, err := hostrt.BorrowN[byte](env, ref, n, hostrt.ReleaseAbort, "logtype")
//	if err != nil {
//		return err
//	}
//	defer logtype.Release()
//
// # Array construction
//
// NewArray copies a Go slice into a fresh host array after checking that its
// length fits the host's signed 32-bit index type.
package hostrt
