// Package resource provides handle tables for native state owned by callers
// across the foreign-call boundary.
//
// Callers never see Go pointers. They receive an opaque Handle, pass it back
// on each call and eventually destroy it:
//
//	table := resource.NewTable()
//	streams := resource.NewTyped[*State](table, resource.KindStream)
//
//	h, err := streams.Insert(state)
//	st, release, err := streams.Acquire(h)
//	defer release()
//	...
//	_, err = streams.Remove(h)
//
// Handles carry a slot generation. Once removed, a handle stays invalid even
// after its slot is reused, so a stale handle fails with ErrInvalidHandle
// instead of reaching another caller's state.
//
// Acquire marks a value as borrowed. Remove refuses to drop a borrowed
// value with ErrOutstandingBorrow, which keeps destroy-while-in-use from
// freeing state that another call is still writing.
//
// Values implementing Dropper are dropped on Remove and on Close.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(observer)
//
// Observers are called synchronously and must not call back into the table.
package resource
