package inject

import "sync"

// SlotContext resolves to the current injection context; every context
// registers itself under this slot at construction.
var SlotContext = NewSlot[*Context]("inject.Context")

// Context is the per-request injection scope. It memoizes callback results
// and holds special-case type overrides that only exist for the lifetime of
// one inbound event or interaction (for example the execution context
// registering itself under its own slot).
type Context struct {
	client  *Client
	mu      sync.Mutex
	results map[*CallbackDescriptor]any
	special map[*SlotInfo]any
}

func NewContext(client *Client) *Context {
	c := &Context{
		client:  client,
		special: make(map[*SlotInfo]any),
	}
	c.special[Key(SlotContext)] = c
	return c
}

// Client returns the process-wide registry this context resolves against.
func (c *Context) Client() *Client { return c.client }

// CacheResult stores a callback's resolved value for the rest of this
// context's lifetime.
func (c *Context) CacheResult(callback *CallbackDescriptor, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = make(map[*CallbackDescriptor]any)
	}
	c.results[callback] = value
}

// CachedResult returns the memoized result for callback, or Undefined.
func (c *Context) CachedResult(callback *CallbackDescriptor) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		return Undefined
	}
	if value, ok := c.results[callback]; ok {
		return value
	}
	return Undefined
}

// SetSpecialCase registers a context-scoped value for slot. Special cases
// shadow the client registry for the exact slot and vanish with the context.
func (c *Context) SetSpecialCase(slot *SlotInfo, value any) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.special[slot] = value
	return c
}

// RemoveSpecialCase drops a context-scoped value, erroring if absent.
func (c *Context) RemoveSpecialCase(slot *SlotInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.special[slot]; !ok {
		return &NotRegisteredError{Name: slot.Name()}
	}
	delete(c.special, slot)
	return nil
}

// SpecialCase returns the context-scoped value for slot, or Undefined.
func (c *Context) SpecialCase(slot *SlotInfo) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value, ok := c.special[slot]; ok {
		return value
	}
	return Undefined
}
