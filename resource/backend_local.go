package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed            = errors.New("resource table closed")
	ErrInvalidHandle     = errors.New("invalid or stale handle")
	ErrKindMismatch      = errors.New("handle refers to a different kind")
	ErrOutstandingBorrow = errors.New("cannot drop value with outstanding borrows")
)

// LocalBackend is an in-memory slot store with borrow tracking.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	kind        Kind
	gen         uint32
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 16),
		freeList: make([]uint32, 0, 8),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(kind Kind, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if n := len(b.freeList); n > 0 {
		slot := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		e := &b.entries[slot-1]
		e.gen++
		e.kind = kind
		e.value = value
		e.valid = true
		return makeHandle(slot, e.gen), nil
	}

	b.entries = append(b.entries, entry{kind: kind, value: value, gen: 1, valid: true})
	return makeHandle(uint32(len(b.entries)), 1), nil
}

// lookup returns the live entry for h. Callers hold b.mu.
func (b *LocalBackend) lookup(h Handle) *entry {
	slot := h.slot()
	if slot == 0 || int(slot) > len(b.entries) {
		return nil
	}
	e := &b.entries[slot-1]
	if !e.valid || e.gen != h.gen() {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(h Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(h)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Kind returns the kind recorded for a handle.
func (b *LocalBackend) Kind(h Handle) (Kind, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(h)
	if e == nil {
		return 0, false
	}
	return e.kind, true
}

// Borrow pins the value behind h against Drop until ReturnBorrow.
func (b *LocalBackend) Borrow(h Handle, kind Kind) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(h)
	if e == nil {
		return nil, ErrInvalidHandle
	}
	if kind != KindAny && e.kind != kind {
		return nil, ErrKindMismatch
	}
	e.borrowCount++
	return e.value, nil
}

// ReturnBorrow decrements the borrow count for a handle.
func (b *LocalBackend) ReturnBorrow(h Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(h)
	if e == nil || e.borrowCount == 0 {
		return false
	}
	e.borrowCount--
	return true
}

// Drop removes a value and returns it so the caller can release it.
func (b *LocalBackend) Drop(h Handle) (any, Kind, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(h)
	if e == nil {
		return nil, 0, ErrInvalidHandle
	}
	if e.borrowCount > 0 {
		return nil, 0, ErrOutstandingBorrow
	}

	value, kind := e.value, e.kind
	e.valid = false
	e.value = nil
	b.freeList = append(b.freeList, h.slot())
	return value, kind, nil
}

// Close releases all values. Droppers are called once each.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return nil
}

// Len returns the number of live values.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live values.
func (b *LocalBackend) Each(fn func(Handle, Kind, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i+1), e.gen), e.kind, e.value) {
				break
			}
		}
	}
}
