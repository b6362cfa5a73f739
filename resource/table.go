package resource

import (
	"sync"
)

// Table wraps a LocalBackend with lifecycle observers.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(kind Kind, value any) (Handle, error) {
	h, err := t.backend.Create(kind, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: h,
		Kind:   kind,
		Value:  value,
	})
	return h, nil
}

// GetTyped retrieves a value only if it has the expected kind.
func (t *Table) GetTyped(h Handle, kind Kind) (any, bool) {
	actual, ok := t.backend.Kind(h)
	if !ok || actual != kind {
		return nil, false
	}
	return t.backend.Get(h)
}

// Acquire borrows the value behind h. The returned release function must be
// called exactly once; Remove fails while any borrow is outstanding.
func (t *Table) Acquire(h Handle, kind Kind) (any, func(), error) {
	value, err := t.backend.Borrow(h, kind)
	if err != nil {
		return nil, nil, err
	}
	t.notify(Event{Type: EventBorrowed, Handle: h, Kind: kind, Value: value})

	var once sync.Once
	release := func() {
		once.Do(func() {
			if t.backend.ReturnBorrow(h) {
				t.notify(Event{Type: EventBorrowReturned, Handle: h, Kind: kind, Value: value})
			}
		})
	}
	return value, release, nil
}

// Remove drops a value, calling its Dropper if it has one.
func (t *Table) Remove(h Handle) (any, error) {
	value, kind, err := t.backend.Drop(h)
	if err != nil {
		return nil, err
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: h,
		Kind:   kind,
		Value:  value,
	})
	return value, nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live values.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Clear removes every value that is not currently borrowed.
func (t *Table) Clear() {
	// Collect handles first to avoid holding the backend lock during Remove
	var handles []Handle
	t.backend.Each(func(h Handle, _ Kind, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		_, _ = t.Remove(h)
	}
}

// Close releases all values and stops accepting inserts.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// Typed gives type-safe access to values of one kind in a Table.
type Typed[T any] struct {
	table *Table
	kind  Kind
}

// NewTyped returns a view of table restricted to kind.
func NewTyped[T any](table *Table, kind Kind) *Typed[T] {
	return &Typed[T]{table: table, kind: kind}
}

// Insert adds a value and returns its handle.
func (t *Typed[T]) Insert(value T) (Handle, error) {
	return t.table.Insert(t.kind, value)
}

// Get retrieves a value by handle.
func (t *Typed[T]) Get(h Handle) (T, bool) {
	var zero T
	v, ok := t.table.GetTyped(h, t.kind)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Acquire borrows a value by handle.
func (t *Typed[T]) Acquire(h Handle) (T, func(), error) {
	var zero T
	v, release, err := t.table.Acquire(h, t.kind)
	if err != nil {
		return zero, nil, err
	}
	typed, ok := v.(T)
	if !ok {
		release()
		return zero, nil, ErrKindMismatch
	}
	return typed, release, nil
}

// Remove drops a value by handle.
func (t *Typed[T]) Remove(h Handle) (T, error) {
	var zero T
	if kind, ok := t.table.backend.Kind(h); !ok {
		return zero, ErrInvalidHandle
	} else if kind != t.kind {
		return zero, ErrKindMismatch
	}
	v, err := t.table.Remove(h)
	if err != nil {
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

// Len returns the number of live values of this kind.
func (t *Typed[T]) Len() int {
	n := 0
	t.table.backend.Each(func(_ Handle, k Kind, _ any) bool {
		if k == t.kind {
			n++
		}
		return true
	})
	return n
}
