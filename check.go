package chatkit

import "context"

// CheckOutcome is the tri-state result of a command check. Control flow is
// carried in the value rather than through sentinel panics or exceptions:
// Block silently moves dispatch on to the next candidate while Halt stops
// dispatch for the whole unit of work.
type CheckOutcome int8

const (
	// CheckPass lets dispatch continue with this candidate.
	CheckPass CheckOutcome = iota
	// CheckBlock rejects this candidate without surfacing anything.
	CheckBlock
	// CheckHalt stops all further dispatch for this unit of work.
	CheckHalt
)

func (o CheckOutcome) String() string {
	switch o {
	case CheckPass:
		return "pass"
	case CheckBlock:
		return "block"
	case CheckHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Check is an asynchronous predicate gating command execution. A non-nil
// error is an unexpected failure and is routed to error hooks, not treated
// as a polite rejection.
type Check func(ctx context.Context, c Context) (CheckOutcome, error)

// Hook signatures shared by the dispatcher and the limiter package.
type (
	// PreExecutionHook runs before the command body; a returned error
	// aborts execution (a *CommandError becomes the user-facing reply).
	PreExecutionHook func(ctx context.Context, c Context) error
	// PostExecutionHook runs after the command body regardless of its
	// outcome.
	PostExecutionHook func(ctx context.Context, c Context) error
	// SuccessHook runs only after the command body returned nil.
	SuccessHook func(ctx context.Context, c Context)
	// ErrorHook inspects an unexpected execution error; returning true
	// marks it handled and suppresses the default logging.
	ErrorHook func(ctx context.Context, c Context, err error) bool
	// ParserErrorHook inspects an argument-parsing failure; returning true
	// marks it handled and suppresses the default reply.
	ParserErrorHook func(ctx context.Context, c Context, err *ParserError) bool
)
