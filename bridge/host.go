package bridge

import (
	"github.com/wippyai/clp-ffi/hostrt/heap"
)

// DefineClasses declares the bridge's data classes on an in-process heap.
// The exception classes are heap built-ins.
func DefineClasses(h *heap.Heap, names ClassNames) error {
	if err := h.Define(heap.ClassDef{
		Name:   names.EncodedMessage,
		Fields: heap.Record(EncodedMessageShape),
	}); err != nil {
		return err
	}
	return h.Define(heap.ClassDef{
		Name:        names.Subquery,
		Fields:      heap.Record(SubqueryShape),
		Constructor: true,
	})
}
