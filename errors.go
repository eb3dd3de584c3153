// Package chatkit defines the shared contracts of the command framework:
// the execution-context interfaces, the check outcome type and the error
// taxonomy that the dispatcher, hooks and limiters communicate through.
package chatkit

import (
	"errors"
	"fmt"
)

// ErrHaltExecution stops all further dispatch for the current unit of work.
// The top-level dispatch loop absorbs it silently; it never reaches the
// user.
var ErrHaltExecution = errors.New("chatkit: halt execution")

// ErrNoResponse is returned by edit/delete-last-response methods when the
// context has produced no response at all yet.
var ErrNoResponse = errors.New("chatkit: no previous response to target")

// Response lifecycle guard errors.
var (
	ErrAlreadyResponded = errors.New("chatkit: context has already been responded to")
	ErrAlreadyDeferred  = errors.New("chatkit: context has already been deferred, use edit instead")
)

// CommandError is an intentional, user-facing failure: the dispatcher
// recovers it at the execution boundary and sends its message back through
// the context instead of logging it as a bug. When LocaliseID is set and a
// localiser is configured, the message is looked up per the context's locale
// with Args substituted; Message acts as the fallback format string.
type CommandError struct {
	Message    string
	LocaliseID string
	Args       []any
}

func NewCommandError(format string, args ...any) *CommandError {
	return &CommandError{Message: format, Args: args}
}

func (e *CommandError) WithLocaliseID(id string) *CommandError {
	e.LocaliseID = id
	return e
}

func (e *CommandError) Error() string {
	if len(e.Args) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Args...)
}

// ParserError reports a failure converting or validating a command
// argument. Argument conversion itself lives outside the core; this is the
// error shape it surfaces through.
type ParserError struct {
	Message   string
	Parameter string
}

func (e *ParserError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s (parameter %q)", e.Message, e.Parameter)
	}
	return e.Message
}
