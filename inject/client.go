package inject

import (
	"context"
	"sync"
)

// SlotClient resolves to the injector client itself; every client registers
// itself under this slot at construction.
var SlotClient = NewSlot[*Client]("inject.Client")

// Client is the process-wide dependency registry: slot → value plus
// callback → override. It is written during setup/teardown and read
// concurrently by every in-flight injection context, so reads take the
// shared lock only.
type Client struct {
	mu        sync.RWMutex
	types     map[*SlotInfo]any
	overrides map[*CallbackDescriptor]*CallbackDescriptor
	opened    bool
}

func NewClient() *Client {
	c := &Client{
		types:     make(map[*SlotInfo]any),
		overrides: make(map[*CallbackDescriptor]*CallbackDescriptor),
	}
	c.types[Key(SlotClient)] = c
	return c
}

// Open marks the client as live. Calling Open twice is an error; the host
// application ties this to its startup callback.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return ErrAlreadyOpen
	}
	c.opened = true
	return nil
}

// Close marks the client as stopped. Close without a matching Open is an
// error.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return ErrNotOpen
	}
	c.opened = false
	return nil
}

// SetType registers value under slot, replacing any previous registration.
// Returns the client to allow chaining.
func (c *Client) SetType(slot *SlotInfo, value any) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[slot] = value
	return c
}

// TypeDependency returns the value registered for slot, or Undefined.
func (c *Client) TypeDependency(slot *SlotInfo) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if value, ok := c.types[slot]; ok {
		return value
	}
	return Undefined
}

// RemoveType unregisters slot, erroring if it was never set.
func (c *Client) RemoveType(slot *SlotInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.types[slot]; !ok {
		return &NotRegisteredError{Name: slot.Name()}
	}
	delete(c.types, slot)
	return nil
}

// SetCallbackOverride redirects resolution of callback to override.
// Overrides are followed exactly one level deep: resolving an overridden
// callback resolves the override, whose own overrides are not consulted.
func (c *Client) SetCallbackOverride(callback, override *CallbackDescriptor) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[callback] = override
	return c
}

// CallbackOverride returns the override registered for callback, or nil.
func (c *Client) CallbackOverride(callback *CallbackDescriptor) *CallbackDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrides[callback]
}

// RemoveCallbackOverride unregisters an override, erroring if absent.
func (c *Client) RemoveCallbackOverride(callback *CallbackDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.overrides[callback]; !ok {
		return &NotRegisteredError{Name: callback.Name()}
	}
	delete(c.overrides, callback)
	return nil
}

// Provide registers value under the typed slot. The free function keeps the
// compile-time pairing of slot and value types that the untyped SetType
// method cannot enforce.
func Provide[T any](c *Client, slot Slot[T], value T) *Client {
	return c.SetType(Key(slot), value)
}

// Lookup fetches a typed dependency from the client, reporting whether it
// was registered.
func Lookup[T any](c *Client, slot Slot[T]) (T, bool) {
	value := c.TypeDependency(Key(slot))
	if IsUndefined(value) {
		var zero T
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}
