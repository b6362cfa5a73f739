// Package heap is an in-process managed heap that implements hostrt.Env.
//
// It stands in for the caller's runtime wherever the bridge runs inside a
// Go process: the client package, the command-line tool, the wasm host and
// the tests. Classes are declared with WIT field shapes, so the descriptors
// the bridge asks for are derived from the same definitions:
//
//	h := heap.New()
//	_ = h.Define(heap.ClassDef{Name: "clp/ffi/EncodedMessage", Fields: heap.Record(shape)})
//	env := h.NewThread()
//
// Each Thread has its own pending-exception slot, like a JNI environment
// is bound to one thread. A Thread records every protocol violation the
// bridge commits against it (any call other than ExceptionCheck, releases
// and reference deletion while an exception is pending, and any second
// raise), and FailNext injects pin, allocation, copy and lookup failures
// with or without a pending exception.
package heap
