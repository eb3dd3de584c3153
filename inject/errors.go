package inject

import (
	"errors"
	"strconv"
)

// ErrNoInjectionContext is returned when a callback that declares injected
// parameters is resolved through the no-injector path. This is a programming
// error by the caller, distinct from a dependency that merely isn't
// registered.
var ErrNoInjectionContext = errors.New("inject: callback requires an injection context")

// Lifecycle errors for Client.Open/Close.
var (
	ErrAlreadyOpen = errors.New("inject: client is already open")
	ErrNotOpen     = errors.New("inject: client is not open")
)

// MissingDependencyError is returned when a required type dependency cannot
// be resolved against either the context or the client and no default was
// declared.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return "inject: couldn't resolve injected type " + strconv.Quote(e.Name) + " to an actual value"
}

// NotRegisteredError is returned when removing a type dependency or callback
// override that was never set.
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return "inject: " + strconv.Quote(e.Name) + " is not registered"
}

// ArgError is returned by Arg when a resolved argument is absent or has an
// unexpected type.
type ArgError struct {
	Name   string
	Reason string
}

func (e *ArgError) Error() string {
	return "inject: argument " + strconv.Quote(e.Name) + " " + e.Reason
}
