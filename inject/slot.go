package inject

// SlotInfo is the untyped identity of a dependency slot. Each call to
// NewSlot allocates a fresh SlotInfo, so two slots never collide even when
// declared for the same Go type.
type SlotInfo struct {
	name string
}

// Name returns the human-readable label given at slot creation; it is used
// in missing-dependency errors.
func (s *SlotInfo) Name() string {
	if s == nil {
		return "<nil slot>"
	}
	return s.name
}

// Slot is a typed, process-unique key for an injectable value. The generic
// parameter pins the value type at compile time while the underlying pointer
// serves as the registry map key.
type Slot[T any] *SlotInfo

// NewSlot creates a unique slot for values of type T. The name should
// describe the dependency, e.g. "db.Pool" or "chatkit.Context".
func NewSlot[T any](name string) Slot[T] {
	return &SlotInfo{name: name}
}

// Key erases a slot's value type for use with the untyped Client/Context
// APIs.
func Key[T any](slot Slot[T]) *SlotInfo { return (*SlotInfo)(slot) }
