// Package engine ties C1-C10 together into one non-singleton aggregate:
// an arena, a type registry, an intern pool, a global symbol table, and
// the call dispatcher, plus the escape continuation a fatal interpreter
// error raises to.
//
// Grounded on picoc's Picoc struct (interpreter.h), which bundles exactly
// these subsystems behind a single pointer threaded through every parse
// and evaluation call instead of process-global state. The teacher repo
// has no analogue — its CPU-emulator backend uses Go package-level state,
// acceptable for a one-shot compiler invocation but ruled out here by
// spec.md's "global mutable state" design note, which requires an
// embeddable core safe to instantiate more than once per process.
package engine

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/robinrowe/picoc/internal/arena"
	"github.com/robinrowe/picoc/internal/call"
	"github.com/robinrowe/picoc/internal/symtab"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// RunMode is the control-flow signal a statement execution returns,
// standing in for picoc's ParserInfo.Mode field (RunModeRun,
// RunModeBreak, RunModeContinue, RunModeReturn, RunModeGoto): since this
// interpreter has no AST to unwind, break/continue/return/goto propagate
// as an explicit return value out of each statement-executing call
// rather than as a language-level panic.
type RunMode int

const (
	RunNormal RunMode = iota
	RunBreak
	RunContinue
	RunReturn
	RunGoto
)

// Frame is one function or macro call's activation record: the symtab
// scope id, the return-value slot, and (for a pending goto) the target
// label name. The matching arena frame marker is kept on the Arena's own
// frame stack, not here. Mirrors spec.md's "stack frame" data model entry.
type Frame struct {
	FuncName  string
	ReturnVal *value.Value
	GotoLabel string // set by a goto statement executed in this frame, which then reports RunGoto
	scopeID   int
}

// BodyExecutor runs a function or macro body. internal/stmtparse
// implements this once statement execution exists; Engine only owns the
// frame bookkeeping and dispatches into it, the same interface-at-the-
// boundary seam C6/C9/C10 use for their own downstream collaborators.
type BodyExecutor interface {
	Execute(e *Engine, fn *call.Function, frame *Frame, params []*value.Value) (*value.Value, error)
}

// Engine is the non-singleton aggregate threaded through a single
// interpreter run. Create one per embedding; nothing here is package-
// level state.
type Engine struct {
	Arena    *arena.Arena
	Types    *types.Registry
	Interner *symtab.Interner
	Globals  *symtab.Table
	Calls    *call.Dispatcher
	Executor BodyExecutor

	frames []*Frame
}

// New creates an Engine with a stack arena of stackSize bytes. The call
// dispatcher is wired back to this Engine as its Invoker, so every
// function/macro/member call defined through Calls executes via Invoke
// below.
func New(stackSize int) *Engine {
	interner := symtab.NewInterner()
	globals := symtab.New(interner)
	e := &Engine{
		Arena:    arena.New(stackSize),
		Types:    types.NewRegistry(),
		Interner: interner,
		Globals:  globals,
	}
	e.Calls = call.New(e.Types, e.Globals, e)
	e.Calls.Arena = e.Arena
	return e
}

// Fatal raises a non-recoverable interpreter error to the escape
// continuation Run installs at the embedder boundary, per spec.md §5:
// "a fatal error jumps out of the evaluator via a process-wide escape
// continuation". The arena is intentionally left as-is here — Run
// rewinds it to the frame marker recorded before evaluation began, so
// partially built temporaries never need individual unwinding.
func (e *Engine) Fatal(format string, args ...any) {
	panic(fatalError{err: errors.WithStack(fmt.Errorf(format, args...))})
}

type fatalError struct{ err error }

// Run installs the escape continuation, executes fn, and converts any
// Fatal panic raised beneath it into a returned error, rewinding the
// arena to the frame marker recorded on entry. A panic that is not a
// fatalError (a genuine programming-error panic) is re-raised unchanged.
func (e *Engine) Run(fn func() (*value.Value, error)) (result *value.Value, err error) {
	e.Arena.PushFrame()
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(fatalError); ok {
				err = fe.err
			} else {
				panic(r)
			}
		}
		if _, popErr := e.Arena.PopFrame(); popErr != nil && err == nil {
			err = popErr
		}
	}()
	return fn()
}

// EnterFrame opens a fresh call frame: an arena frame marker and a fresh
// symbol-table function scope, per spec.md's per-call stack frame model.
func (e *Engine) EnterFrame(funcName string, returnVal *value.Value) *Frame {
	e.Arena.PushFrame()
	scopeID := e.Globals.EnterFunction()
	f := &Frame{FuncName: funcName, ReturnVal: returnVal, scopeID: scopeID}
	e.frames = append(e.frames, f)
	return f
}

// ExitFrame tears down the innermost call frame, discarding its locals
// and rewinding the arena to the marker EnterFrame recorded.
func (e *Engine) ExitFrame() error {
	if len(e.frames) == 0 {
		return fmt.Errorf("engine: ExitFrame with no active frame")
	}
	e.frames = e.frames[:len(e.frames)-1]
	e.Globals.ExitFunction()
	_, err := e.Arena.PopFrame()
	return err
}

// CurrentFrame returns the innermost active call frame, or nil at top
// level.
func (e *Engine) CurrentFrame() *Frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

// Invoke implements call.Invoker: it opens a frame, binds the already-
// type-coerced parameters by name, runs the body through Executor, and
// tears the frame down again. A macro's "re-parsed in the caller's
// context" body (spec.md §4.10) and a function's ordinary body are both
// just BodyExecutor implementations from this package's point of view.
func (e *Engine) Invoke(fn *call.Function, boundArgs []*value.Value) (*value.Value, error) {
	if e.Executor == nil {
		return nil, fmt.Errorf("engine: no body executor installed for %q", fn.Name)
	}
	frame := e.EnterFrame(fn.Name, nil)
	defer e.ExitFrame()

	for i, name := range fn.ParamNames {
		if i >= len(boundArgs) {
			break
		}
		e.Globals.Define(e.Globals.Intern(name), boundArgs[i])
	}

	result, err := e.Executor.Execute(e, fn, frame, boundArgs)
	if err != nil || result == nil {
		return result, err
	}
	// result's payload may be arena-backed (stack-transient, per
	// value.FromArena): the deferred ExitFrame above pops that region as
	// soon as this call returns, and the next Push over the same bytes
	// would corrupt a value the caller hasn't consumed yet. Copy it onto
	// the Go heap before the frame dies, so a call's result outlives its
	// own frame regardless of where the evaluator that produced it
	// allocated from.
	return value.AndCopy(result, true), nil
}
