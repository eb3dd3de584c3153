package inject

import (
	"context"
	"fmt"
)

// Args carries a callback's resolved dependencies merged with any explicitly
// supplied arguments, keyed by parameter name.
type Args map[string]any

// Arg fetches a typed argument from args.
func Arg[T any](args Args, name string) (T, error) {
	var zero T
	raw, ok := args[name]
	if !ok {
		return zero, &ArgError{Name: name, Reason: "was not resolved"}
	}
	if raw == nil {
		return zero, nil
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, &ArgError{Name: name, Reason: fmt.Sprintf("has unexpected type %T", raw)}
	}
	return typed, nil
}

// MustArg is Arg for wiring code that treats a bad argument table as a
// programming error.
func MustArg[T any](args Args, name string) T {
	value, err := Arg[T](args, name)
	if err != nil {
		panic(err)
	}
	return value
}

// CallbackFunc is the signature of an injectable callback. The resolved
// dependency values arrive in args under the parameter names declared at
// descriptor construction.
type CallbackFunc func(ctx context.Context, args Args) (any, error)

type paramSpec struct {
	name string
	desc *Descriptor
}

// Param declares one injected parameter of a callback.
type Param struct {
	name string
	desc *Descriptor
}

// WithDescriptor binds a parameter name to an arbitrary descriptor.
func WithDescriptor(name string, desc *Descriptor) Param {
	return Param{name: name, desc: desc}
}

// WithType binds a parameter to a type dependency slot.
func WithType[T any](name string, slot Slot[T]) Param {
	return Param{name: name, desc: TypeDep(TypeOf(slot))}
}

// WithOptionalType binds a parameter to a type dependency that resolves to
// T's zero value when the slot is unregistered.
func WithOptionalType[T any](name string, slot Slot[T]) Param {
	return Param{name: name, desc: TypeDep(OptionalOf(slot))}
}

// WithCallback binds a parameter to another callback descriptor, resolved
// recursively (and memoized) against the same injection context.
func WithCallback(name string, callback *CallbackDescriptor) Param {
	return Param{name: name, desc: CallbackDep(callback)}
}

// CallbackDescriptor wraps a resolver callback together with its declared
// dependency table. The descriptor's pointer identity is the key for both
// per-context memoization and client-level overrides, so share one
// descriptor per logical callback instead of re-wrapping the function.
type CallbackDescriptor struct {
	name   string
	fn     CallbackFunc
	params []paramSpec
}

// NewCallback builds a descriptor for fn. Parameters given here are resolved
// and injected on every (uncached) call; a callback with no parameters can
// also be resolved without any injection context.
func NewCallback(name string, fn CallbackFunc, params ...Param) *CallbackDescriptor {
	d := &CallbackDescriptor{name: name, fn: fn}
	for _, p := range params {
		d.params = append(d.params, paramSpec{name: p.name, desc: p.desc})
	}
	return d
}

func (d *CallbackDescriptor) Name() string { return d.name }

// NeedsInjector reports whether resolving this callback requires an
// injection context.
func (d *CallbackDescriptor) NeedsInjector() bool { return len(d.params) > 0 }

// Resolve resolves the callback against ic, consulting the client's
// override table (one level only) and the context's result cache before
// doing any work. extra is merged over the resolved dependency values.
func (d *CallbackDescriptor) Resolve(ctx context.Context, ic *Context, extra Args) (any, error) {
	if ic == nil {
		return d.ResolveWithoutInjector(ctx, extra)
	}

	if override := ic.Client().CallbackOverride(d); override != nil {
		return override.resolveDirect(ctx, ic, extra)
	}
	return d.resolveDirect(ctx, ic, extra)
}

// resolveDirect is Resolve without the override lookup; overrides are never
// re-overridden.
func (d *CallbackDescriptor) resolveDirect(ctx context.Context, ic *Context, extra Args) (any, error) {
	if cached := ic.CachedResult(d); !IsUndefined(cached) {
		return cached, nil
	}

	var result any
	var err error
	if d.NeedsInjector() {
		args := make(Args, len(d.params)+len(extra))
		for _, p := range d.params {
			value, perr := p.desc.Resolve(ctx, ic)
			if perr != nil {
				return nil, fmt.Errorf("resolving parameter %q of %q: %w", p.name, d.name, perr)
			}
			args[p.name] = value
		}
		for k, v := range extra {
			args[k] = v
		}
		result, err = d.fn(ctx, args)
	} else {
		result, err = d.invoke(ctx, extra)
	}
	if err != nil {
		return nil, err
	}

	ic.CacheResult(d, result)
	return result, nil
}

// ResolveWithoutInjector invokes the callback directly. It errors if the
// callback declares injected parameters; plain callables remain usable
// interchangeably with DI-aware ones.
func (d *CallbackDescriptor) ResolveWithoutInjector(ctx context.Context, extra Args) (any, error) {
	if d.NeedsInjector() {
		return nil, ErrNoInjectionContext
	}
	return d.invoke(ctx, extra)
}

func (d *CallbackDescriptor) invoke(ctx context.Context, extra Args) (any, error) {
	args := extra
	if args == nil {
		args = Args{}
	}
	return d.fn(ctx, args)
}
