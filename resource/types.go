package resource

// Handle is an opaque reference to native state held in a table.
// The low 32 bits index the slot and the high 32 bits carry the slot
// generation, so a handle outlived by its slot never resolves again.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

func (h Handle) slot() uint32 { return uint32(h) }
func (h Handle) gen() uint32  { return uint32(h >> 32) }

// Kind tags the type of value a handle refers to.
type Kind uint32

const (
	KindAny Kind = iota
	KindStream
)

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

// Event represents a lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is removed or the table is closed.
type Dropper interface {
	Drop()
}
