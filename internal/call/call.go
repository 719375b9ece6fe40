// Package call implements the call dispatcher (C10): regular function
// calls, intrinsic (native Go) calls, and member-function calls with the
// mangled-name scheme spec.md §4.10 specifies — "TypeName.method" in a
// single flat global table, with a synthetic pointer-to-struct `this`
// argument spliced in ahead of the caller's own arguments.
//
// Grounded on picoc's expression_call.c for the argument-binding shape
// (ExpressionParseFunctionCall's by-value copy-in of each actual
// parameter against the declared parameter type) and table.c for the one
// flat name->definition table picoc keeps; the member-call mangling and
// synthetic-receiver injection have no picoc analogue (plain C has no
// member functions) and are grounded directly on spec.md §4.10's mangled-
// name and receiver-binding rules instead.
package call

import (
	"fmt"

	"github.com/robinrowe/picoc/internal/arena"
	"github.com/robinrowe/picoc/internal/coerce"
	"github.com/robinrowe/picoc/internal/symtab"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// Function describes one callable definition: a free function, or a
// member function whose Mangled name is "StructType.method". Body is
// opaque to this package; the Invoker that executes it is supplied by
// the engine once statement parsing exists.
type Function struct {
	Name       string
	Mangled    string // non-empty for member functions
	ParamNames []string
	ParamTypes []*types.Type
	ReturnType *types.Type
	Variadic   bool
	IsMacro    bool // true for a parameter macro (types.Macro); see bindArgs
	Body       any
}

// key is the name this function is registered under in the dispatcher's
// flat table: the mangled name for a member function, the plain name
// otherwise. A struct's method table doesn't exist separately, per
// spec.md §4.10 ("there is no per-struct method table in this core").
func (f *Function) key() string {
	if f.Mangled != "" {
		return f.Mangled
	}
	return f.Name
}

// Mangle forms the global-table key for a member function, per spec.md's
// `"StructType.method"` scheme.
func Mangle(structName, method string) string {
	return structName + "." + method
}

// Invoker executes a bound function call. The engine implements this
// once statement execution exists; this package only binds arguments and
// dispatches to it.
type Invoker interface {
	Invoke(fn *Function, boundArgs []*value.Value) (*value.Value, error)
}

// Intrinsic is a native Go function exposed to interpreted code under a
// fixed name, bypassing argument-type binding entirely (the intrinsic is
// responsible for its own argument checking).
type Intrinsic func(args []*value.Value) (*value.Value, error)

// Dispatcher is the flat call table: intrinsics take priority over
// interpreted definitions of the same name, matching picoc's clibrary.c
// precedence (built-ins shadow a same-named user definition rather than
// erroring).
type Dispatcher struct {
	Reg        *types.Registry
	Syms       *symtab.Table
	Invoker    Invoker
	Intrinsics map[string]Intrinsic

	// Arena backs the synthetic `this` pointer and each bound-argument
	// value this dispatcher constructs (newValue below). Left nil by New;
	// the engine wires its own arena in once it exists, so a call.New
	// caller without one in scope (e.g. a package test) still works via
	// FromArena's nil fallback.
	Arena *arena.Arena

	funcs map[string]*Function
}

// New creates an empty dispatcher.
func New(reg *types.Registry, syms *symtab.Table, invoker Invoker) *Dispatcher {
	return &Dispatcher{
		Reg:        reg,
		Syms:       syms,
		Invoker:    invoker,
		Intrinsics: make(map[string]Intrinsic),
		funcs:      make(map[string]*Function),
	}
}

// newValue allocates a fresh temporary of typ through d.Arena, marked as an
// lvalue when isLValue is set.
func (d *Dispatcher) newValue(typ *types.Type, isLValue bool) *value.Value {
	return value.FromArena(d.Arena, typ, isLValue, nil, false)
}

// RegisterIntrinsic exposes fn to interpreted code under name.
func (d *Dispatcher) RegisterIntrinsic(name string, fn Intrinsic) {
	d.Intrinsics[name] = fn
}

// Define registers a function or member-function definition. It is an
// error to redefine the same key (mangled name for member functions,
// plain name otherwise) twice.
func (d *Dispatcher) Define(fn *Function) error {
	key := fn.key()
	if _, exists := d.funcs[key]; exists {
		return fmt.Errorf("call: %q is already defined", key)
	}
	d.funcs[key] = fn
	return nil
}

// Lookup returns the definition registered under name, if any.
func (d *Dispatcher) Lookup(name string) (*Function, bool) {
	fn, ok := d.funcs[name]
	return fn, ok
}

// Call dispatches a plain or mangled-name call: an intrinsic under name,
// if one is registered, else the interpreted definition.
func (d *Dispatcher) Call(name string, args []*value.Value) (*value.Value, error) {
	if intr, ok := d.Intrinsics[name]; ok {
		return intr(args)
	}
	fn, ok := d.funcs[name]
	if !ok {
		return nil, fmt.Errorf("call: undefined function %q", name)
	}
	bound, err := d.bindArgs(fn, args)
	if err != nil {
		return nil, err
	}
	return d.Invoker.Invoke(fn, bound)
}

// CallMember resolves a `.method()`/`->method()` call: the receiver's
// struct type names the mangled lookup key, and a pointer-to-struct
// `this` is spliced in as the synthetic first argument — built fresh via
// unary & when the receiver arrived by value (plain `.`), reused directly
// when it already arrived as a pointer (`->`).
func (d *Dispatcher) CallMember(receiver *value.Value, memberName string, viaArrow bool, args []*value.Value) (*value.Value, error) {
	var structType *types.Type
	var this *value.Value

	if viaArrow {
		if receiver.Type.Base != types.Pointer {
			return nil, fmt.Errorf("call: -> member call requires a pointer receiver")
		}
		structType = receiver.Type.FromType
		this = receiver
	} else {
		structType = receiver.Type
		if !receiver.IsLValue {
			return nil, fmt.Errorf("call: cannot call a member function on a non-lvalue receiver")
		}
		this = d.newValue(d.Reg.PointerTo(structType), false)
		this.SetPointer(receiver, 0)
	}

	if structType.Base != types.Struct && structType.Base != types.Union {
		return nil, fmt.Errorf("call: member call requires a struct or union receiver, got %v", structType.Base)
	}

	mangled := Mangle(structType.Identifier, memberName)
	allArgs := make([]*value.Value, 0, len(args)+1)
	allArgs = append(allArgs, this)
	allArgs = append(allArgs, args...)
	return d.Call(mangled, allArgs)
}

// bindArgs copies each actual argument by value into a fresh value typed
// to the matching declared parameter, coercing as an assignment would
// (widening, pointer decay, cast-free pointer/array compatibility).
// Variadic extra arguments are copied as-is with no type coercion.
//
// A macro call (fn.IsMacro) skips type coercion entirely and binds each
// argument's value as-is under its parameter name, per spec.md §4.10's
// macro semantics: "Macros do not type-check parameters." The engine's
// Invoker re-parses the macro body's token stream against this binding
// once statement parsing exists (§4.10's "re-parsed in the caller's
// context"); this package only performs the untyped name binding.
func (d *Dispatcher) bindArgs(fn *Function, args []*value.Value) ([]*value.Value, error) {
	if fn.Variadic {
		if len(args) < len(fn.ParamTypes) {
			return nil, fmt.Errorf("call: %s expects at least %d arguments, got %d", fn.Name, len(fn.ParamTypes), len(args))
		}
	} else if len(args) != len(fn.ParamTypes) {
		return nil, fmt.Errorf("call: %s expects %d arguments, got %d", fn.Name, len(fn.ParamTypes), len(args))
	}

	if fn.IsMacro {
		bound := make([]*value.Value, len(args))
		for i, arg := range args {
			bound[i] = value.AndCopy(arg, false)
		}
		return bound, nil
	}

	bound := make([]*value.Value, len(args))
	for i, arg := range args {
		if i < len(fn.ParamTypes) {
			dest := d.newValue(fn.ParamTypes[i], true)
			if err := coerce.Assign(dest, arg, true, true); err != nil {
				return nil, fmt.Errorf("call: binding argument %d of %s: %w", i+1, fn.Name, err)
			}
			bound[i] = dest
		} else {
			bound[i] = value.AndCopy(arg, false)
		}
	}
	return bound, nil
}
