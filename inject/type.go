package inject

import (
	"context"
	"errors"
	"strings"
)

// TypeDescriptor resolves a type dependency against a context and its
// client. A descriptor holds an ordered list of alternative slots (the
// explicit form of a union type) and an optional declared default (the
// explicit form of an optional type).
type TypeDescriptor struct {
	name       string
	alts       []*SlotInfo
	hasDefault bool
	def        any
}

// TypeOf builds a descriptor for a single slot.
func TypeOf[T any](slot Slot[T]) *TypeDescriptor {
	info := Key(slot)
	return &TypeDescriptor{name: info.Name(), alts: []*SlotInfo{info}}
}

// UnionOf builds a descriptor that tries each slot in declaration order.
func UnionOf(slots ...*SlotInfo) *TypeDescriptor {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.Name()
	}
	return &TypeDescriptor{name: strings.Join(names, " | "), alts: slots}
}

// OptionalOf builds a descriptor that falls back to T's zero value when the
// slot is unregistered everywhere.
func OptionalOf[T any](slot Slot[T]) *TypeDescriptor {
	var zero T
	return TypeOf(slot).WithDefault(zero)
}

// WithDefault declares a fallback value used when no alternative resolves.
func (t *TypeDescriptor) WithDefault(value any) *TypeDescriptor {
	t.hasDefault = true
	t.def = value
	return t
}

func (t *TypeDescriptor) Name() string { return t.name }

// Resolve tries, for each alternative in order, the context's special cases
// and then the client registry; then the declared default; then fails with
// MissingDependencyError.
func (t *TypeDescriptor) Resolve(ic *Context) (any, error) {
	if ic == nil {
		return nil, ErrNoInjectionContext
	}

	for _, slot := range t.alts {
		if value := ic.SpecialCase(slot); !IsUndefined(value) {
			return value, nil
		}
		if value := ic.Client().TypeDependency(slot); !IsUndefined(value) {
			return value, nil
		}
	}

	if t.hasDefault {
		return t.def, nil
	}
	return nil, &MissingDependencyError{Name: t.name}
}

// Resolve fetches a typed value through a type descriptor.
func Resolve[T any](ic *Context, t *TypeDescriptor) (T, error) {
	raw, err := t.Resolve(ic)
	if err != nil {
		var zero T
		return zero, err
	}
	if raw == nil {
		var zero T
		return zero, nil
	}
	typed, ok := raw.(T)
	if !ok {
		var zero T
		return zero, &MissingDependencyError{Name: t.name}
	}
	return typed, nil
}

// Descriptor declares a single injected dependency: exactly one of a
// resolver callback or a target type.
type Descriptor struct {
	cb  *CallbackDescriptor
	typ *TypeDescriptor
}

// NewDescriptor validates the exactly-one invariant for callers assembling
// descriptors dynamically; CallbackDep and TypeDep are the usual entry
// points.
func NewDescriptor(cb *CallbackDescriptor, typ *TypeDescriptor) (*Descriptor, error) {
	if cb == nil && typ == nil {
		return nil, errors.New("inject: one of callback or type must be specified")
	}
	if cb != nil && typ != nil {
		return nil, errors.New("inject: only one of callback or type may be specified")
	}
	return &Descriptor{cb: cb, typ: typ}, nil
}

func CallbackDep(cb *CallbackDescriptor) *Descriptor { return &Descriptor{cb: cb} }

func TypeDep(typ *TypeDescriptor) *Descriptor { return &Descriptor{typ: typ} }

func (d *Descriptor) Callback() *CallbackDescriptor { return d.cb }

func (d *Descriptor) Type() *TypeDescriptor { return d.typ }

// NeedsInjector reports whether resolution requires an injection context.
// Type descriptors always do.
func (d *Descriptor) NeedsInjector() bool {
	if d.cb != nil {
		return d.cb.NeedsInjector()
	}
	return true
}

func (d *Descriptor) Resolve(ctx context.Context, ic *Context) (any, error) {
	if d.typ != nil {
		return d.typ.Resolve(ic)
	}
	return d.cb.Resolve(ctx, ic, nil)
}
