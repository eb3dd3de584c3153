package command

import (
	"context"

	chatkit "github.com/kapu/chatkit"
)

// Hooks is an ordered set of lifecycle callbacks attachable at client,
// component and command level. During execution the three levels run
// client-first for each stage.
type Hooks struct {
	pre         []chatkit.PreExecutionHook
	post        []chatkit.PostExecutionHook
	success     []chatkit.SuccessHook
	onError     []chatkit.ErrorHook
	parserError []chatkit.ParserErrorHook
}

func (h *Hooks) AddPreExecution(hook chatkit.PreExecutionHook) *Hooks {
	h.pre = append(h.pre, hook)
	return h
}

func (h *Hooks) AddPostExecution(hook chatkit.PostExecutionHook) *Hooks {
	h.post = append(h.post, hook)
	return h
}

func (h *Hooks) AddOnSuccess(hook chatkit.SuccessHook) *Hooks {
	h.success = append(h.success, hook)
	return h
}

func (h *Hooks) AddOnError(hook chatkit.ErrorHook) *Hooks {
	h.onError = append(h.onError, hook)
	return h
}

func (h *Hooks) AddOnParserError(hook chatkit.ParserErrorHook) *Hooks {
	h.parserError = append(h.parserError, hook)
	return h
}

// runPre runs pre-execution hooks in order, stopping at the first error.
func (h *Hooks) runPre(ctx context.Context, c chatkit.Context) error {
	for _, hook := range h.pre {
		if err := hook(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// runPost runs every post-execution hook, returning the first error after
// all have run.
func (h *Hooks) runPost(ctx context.Context, c chatkit.Context) error {
	var firstErr error
	for _, hook := range h.post {
		if err := hook(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Hooks) runSuccess(ctx context.Context, c chatkit.Context) {
	for _, hook := range h.success {
		hook(ctx, c)
	}
}

// runError reports whether any hook claimed the error as handled. Every
// hook runs regardless.
func (h *Hooks) runError(ctx context.Context, c chatkit.Context, err error) bool {
	handled := false
	for _, hook := range h.onError {
		if hook(ctx, c, err) {
			handled = true
		}
	}
	return handled
}

func (h *Hooks) runParserError(ctx context.Context, c chatkit.Context, err *chatkit.ParserError) bool {
	handled := false
	for _, hook := range h.parserError {
		if hook(ctx, c, err) {
			handled = true
		}
	}
	return handled
}

// hookChain runs a stage across the client → component → command levels.
type hookChain []*Hooks

func (hc hookChain) runPre(ctx context.Context, c chatkit.Context) error {
	for _, h := range hc {
		if h == nil {
			continue
		}
		if err := h.runPre(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (hc hookChain) runPost(ctx context.Context, c chatkit.Context) error {
	var firstErr error
	for _, h := range hc {
		if h == nil {
			continue
		}
		if err := h.runPost(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (hc hookChain) runSuccess(ctx context.Context, c chatkit.Context) {
	for _, h := range hc {
		if h != nil {
			h.runSuccess(ctx, c)
		}
	}
}

func (hc hookChain) runError(ctx context.Context, c chatkit.Context, err error) bool {
	handled := false
	for _, h := range hc {
		if h != nil && h.runError(ctx, c, err) {
			handled = true
		}
	}
	return handled
}

func (hc hookChain) runParserError(ctx context.Context, c chatkit.Context, err *chatkit.ParserError) bool {
	handled := false
	for _, h := range hc {
		if h != nil && h.runParserError(ctx, c, err) {
			handled = true
		}
	}
	return handled
}
