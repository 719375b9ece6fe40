package symtab

import (
	"fmt"

	"github.com/robinrowe/picoc/internal/value"
)

// Scope is one lexical block's variable table: a chained hash keyed by
// interned Name pointers.
type Scope struct {
	vars map[*Name]*value.Value
}

func newScope() *Scope {
	return &Scope{vars: make(map[*Name]*value.Value)}
}

// Table is the full symbol-table stack for one interpreter run: a global
// table (functions, typedefs, file-scope variables, string literals) plus
// a stack of per-frame local scopes, a reserved-word set, and the
// variable-to-type-name map the skip pass uses to remember `struct T v;`
// declarations so member-call mangling can resolve `v.m()` without
// re-parsing the type.
type Table struct {
	interner *Interner

	globals *Scope
	locals  []*Scope

	reserved map[*Name]bool

	// varTypeNames maps a variable's interned Name to the interned Name
	// of its struct type, populated while declarations are parsed and
	// consulted later when a bare member call is seen.
	varTypeNames map[*Name]*Name

	nextScopeID int
}

// New creates an empty table bound to interner for all future Intern
// calls made through it.
func New(interner *Interner) *Table {
	return &Table{
		interner:     interner,
		globals:      newScope(),
		reserved:     make(map[*Name]bool),
		varTypeNames: make(map[*Name]*Name),
	}
}

// Intern interns text using this table's interner.
func (t *Table) Intern(text string) *Name { return t.interner.Intern(text) }

// MarkReserved forbids text from ever being used as a variable/function
// name (keywords, reserved identifiers).
func (t *Table) MarkReserved(text string) { t.reserved[t.Intern(text)] = true }

// IsReserved reports whether name is a reserved word.
func (t *Table) IsReserved(name *Name) bool { return t.reserved[name] }

// EnterFunction opens a fresh local-scope stack for a function or macro
// call, discarding any scopes left over from a previous call (mirrors the
// teacher's EnterFunction, generalized to also hand back a scope id for
// C3's Value.ScopeID bookkeeping).
func (t *Table) EnterFunction() int {
	t.locals = []*Scope{newScope()}
	t.nextScopeID++
	return t.nextScopeID
}

// EnterScope pushes a new block scope inside the current function.
func (t *Table) EnterScope() int {
	t.locals = append(t.locals, newScope())
	t.nextScopeID++
	return t.nextScopeID
}

// ExitScope pops the innermost block scope. It returns the variables
// that went out of scope, so the caller can mark their descriptors
// OutOfScope rather than freeing them outright (static locals keep
// their storage across calls).
func (t *Table) ExitScope() []*value.Value {
	if len(t.locals) == 0 {
		return nil
	}
	top := t.locals[len(t.locals)-1]
	t.locals = t.locals[:len(t.locals)-1]
	out := make([]*value.Value, 0, len(top.vars))
	for _, v := range top.vars {
		out = append(out, v)
	}
	return out
}

// ExitFunction discards every local scope of the current call.
func (t *Table) ExitFunction() {
	t.locals = nil
}

// InFunction reports whether a function/macro call is currently active.
func (t *Table) InFunction() bool { return len(t.locals) > 0 }

// Define binds name to val in the innermost active scope (or the global
// table if no function is active), returning the existing binding and
// false if name is already defined in that scope.
func (t *Table) Define(name *Name, val *value.Value) (*value.Value, bool) {
	scope := t.currentScope()
	if existing, ok := scope.vars[name]; ok {
		return existing, false
	}
	scope.vars[name] = val
	return val, true
}

// DefineGlobal binds name directly in the global table regardless of
// whether a function is active, for `::name`/`..name` scope-resolution
// definitions and top-level declarations.
func (t *Table) DefineGlobal(name *Name, val *value.Value) (*value.Value, bool) {
	if existing, ok := t.globals.vars[name]; ok {
		return existing, false
	}
	t.globals.vars[name] = val
	return val, true
}

func (t *Table) currentScope() *Scope {
	if len(t.locals) > 0 {
		return t.locals[len(t.locals)-1]
	}
	return t.globals
}

// Lookup searches local scopes innermost-first, then the global table.
func (t *Table) Lookup(name *Name) (*value.Value, bool) {
	for i := len(t.locals) - 1; i >= 0; i-- {
		if v, ok := t.locals[i].vars[name]; ok {
			return v, true
		}
	}
	v, ok := t.globals.vars[name]
	return v, ok
}

// LookupGlobal bypasses local scopes entirely, for the `::name`/`..name`
// forced-global-lookup prefixes.
func (t *Table) LookupGlobal(name *Name) (*value.Value, bool) {
	v, ok := t.globals.vars[name]
	return v, ok
}

// RememberVarType records that a declared variable's static type is the
// named struct, for later resolution of unqualified member calls during
// the skip pass.
func (t *Table) RememberVarType(varName, typeName *Name) {
	t.varTypeNames[varName] = typeName
}

// VarType returns the struct-type name previously recorded for varName
// by RememberVarType.
func (t *Table) VarType(varName *Name) (*Name, bool) {
	n, ok := t.varTypeNames[varName]
	return n, ok
}

// String returns a deterministic dump of the table's contents, for trace
// and debug output.
func (t *Table) String() string {
	return fmt.Sprintf("globals: %d entries, %d local scope(s) active, %d reserved words",
		len(t.globals.vars), len(t.locals), len(t.reserved))
}
