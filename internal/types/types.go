// Package types implements the type registry: canonical base and derived
// types, size/alignment computation, and struct/union member offset
// tables.
//
// Grounded on picoc's type.h/type.c (TypeGetMatching, TypeSize,
// TypeStackSizeValue, TypeAddMemberFunction) for the operation names and
// on smasonuk-sicpu's symtable.go (TypeInfo/StructDef/FieldInfo) for the
// Go-side struct shapes a type registry keeps alongside a symbol table in
// this lineage of interpreter.
package types

import "fmt"

// BaseTag identifies the fundamental kind of a type.
type BaseTag int

const (
	Void BaseTag = iota
	Int
	Short
	Char
	Long
	UnsignedInt
	UnsignedShort
	UnsignedChar
	UnsignedLong
	FP
	Function
	Macro
	Pointer
	Array
	Struct
	Union
	Enum
	GotoLabel
	TypeOfType
)

var tagNames = [...]string{
	Void: "void", Int: "int", Short: "short", Char: "char", Long: "long",
	UnsignedInt: "unsigned int", UnsignedShort: "unsigned short",
	UnsignedChar: "unsigned char", UnsignedLong: "unsigned long",
	FP: "double", Function: "function", Macro: "macro", Pointer: "pointer",
	Array: "array", Struct: "struct", Union: "union", Enum: "enum",
	GotoLabel: "label", TypeOfType: "type",
}

func (b BaseTag) String() string {
	if int(b) >= 0 && int(b) < len(tagNames) {
		return tagNames[b]
	}
	return fmt.Sprintf("BaseTag(%d)", int(b))
}

// IsNumeric reports whether values of this base tag participate in
// arithmetic coercion.
func (b BaseTag) IsNumeric() bool {
	switch b {
	case Int, Short, Char, Long, UnsignedInt, UnsignedShort, UnsignedChar, UnsignedLong, FP, Enum:
		return true
	}
	return false
}

// IsUnsigned reports whether arithmetic on this base tag is unsigned.
func (b BaseTag) IsUnsigned() bool {
	switch b {
	case UnsignedInt, UnsignedShort, UnsignedChar, UnsignedLong:
		return true
	}
	return false
}

// IsInteger reports whether this base tag holds whole numbers (as opposed
// to FP).
func (b BaseTag) IsInteger() bool {
	return b.IsNumeric() && b != FP
}

// Member describes one field of a struct or union type.
type Member struct {
	Name   string // interned identifier
	Offset int
	Type   *Type
}

// MemberFunc records a mangled member-function binding on a struct type,
// e.g. "Point.dist" for a method dist() on struct Point.
type MemberFunc struct {
	MangledName string
	FuncType    *Type
}

// Type is a canonical type descriptor. Two derived types with the same
// base, FromType, and ArraySize are always the same *Type value: callers
// never need to compare structurally, pointer equality is structural
// equality by construction.
type Type struct {
	Base BaseTag

	Size      int // storage size in bytes
	Alignment int

	// FromType is the element type for Pointer/Array, or the underlying
	// type for TypeOfType.
	FromType *Type

	// ArraySize is the element count for Array types; 0 means unsized
	// until the first initialization resizes it in place.
	ArraySize int

	// Identifier names a struct/union/enum/function/typedef; "" for
	// anonymous/unnamed types.
	Identifier string

	Members     []Member
	MemberIndex map[string]int // name -> index into Members

	MemberFuncs map[string]MemberFunc

	// ParamTypes/ReturnType apply to Function types.
	ParamTypes []*Type
	ReturnType *Type
	Variadic   bool

	// derived holds every type created with this type as FromType,
	// keyed by (base, arraySize) so type_of_matching never creates a
	// duplicate.
	derived map[derivedKey]*Type
}

type derivedKey struct {
	base      BaseTag
	arraySize int
}

// Registry owns every canonicalized type reachable from its base types.
// It is not a singleton: one Registry belongs to exactly one Engine.
type Registry struct {
	bases map[BaseTag]*Type
}

// NewRegistry builds a fresh registry with the built-in base types
// pre-populated.
func NewRegistry() *Registry {
	r := &Registry{bases: make(map[BaseTag]*Type)}
	sizes := map[BaseTag]int{
		Void: 0, Int: 8, Short: 2, Char: 1, Long: 8,
		UnsignedInt: 8, UnsignedShort: 2, UnsignedChar: 1, UnsignedLong: 8,
		FP: 8, Function: 0, Macro: 0, Enum: 8, GotoLabel: 0, TypeOfType: 0,
	}
	for tag, size := range sizes {
		r.bases[tag] = &Type{Base: tag, Size: size, Alignment: size, derived: make(map[derivedKey]*Type)}
	}
	if r.bases[Void].Alignment == 0 {
		r.bases[Void].Alignment = 1
	}
	return r
}

// Base returns the canonical descriptor for a built-in base type.
func (r *Registry) Base(tag BaseTag) *Type {
	t, ok := r.bases[tag]
	if !ok {
		panic(fmt.Sprintf("types: unknown base tag %v", tag))
	}
	return t
}

// MatchingType returns the canonical derived type built from parent with
// the given base tag and array size, creating it only if none already
// exists in parent's derived set. This is the Go analogue of picoc's
// TypeGetMatching: pointer identity of the result means structural
// identity of (parent, base, arraySize).
func (r *Registry) MatchingType(parent *Type, base BaseTag, arraySize int, identifier string) *Type {
	if parent.derived == nil {
		parent.derived = make(map[derivedKey]*Type)
	}
	key := derivedKey{base, arraySize}
	if existing, ok := parent.derived[key]; ok {
		return existing
	}

	t := &Type{
		Base:       base,
		FromType:   parent,
		Identifier: identifier,
		derived:    make(map[derivedKey]*Type),
	}
	switch base {
	case Pointer:
		t.Size, t.Alignment = 8, 8
	case Array:
		t.ArraySize = arraySize
		if arraySize > 0 {
			t.Size = parent.Size * arraySize
		}
		t.Alignment = parent.Alignment
	default:
		t.Size = parent.Size
		t.Alignment = parent.Alignment
	}
	parent.derived[key] = t
	return t
}

// PointerTo is a convenience wrapper over MatchingType for the common
// pointer case.
func (r *Registry) PointerTo(elem *Type) *Type {
	return r.MatchingType(elem, Pointer, 0, "")
}

// ArrayOf is a convenience wrapper over MatchingType for array types.
// Pass arraySize 0 for an unsized array.
func (r *Registry) ArrayOf(elem *Type, arraySize int) *Type {
	return r.MatchingType(elem, Array, arraySize, "")
}

// NewStruct creates a fresh named struct or union type; it is never
// canonicalized against a parent since struct identity is nominal, not
// structural.
func (r *Registry) NewStruct(identifier string, isUnion bool) *Type {
	base := Struct
	if isUnion {
		base = Union
	}
	return &Type{
		Base:        base,
		Identifier:  identifier,
		MemberIndex: make(map[string]int),
		MemberFuncs: make(map[string]MemberFunc),
		derived:     make(map[derivedKey]*Type),
	}
}

// AddMember appends a field to a struct/union type, computing its offset
// (sequential for struct, always 0 for union) and updating Size/Alignment.
func (t *Type) AddMember(name string, memberType *Type) error {
	if t.Base != Struct && t.Base != Union {
		return fmt.Errorf("types: AddMember on non-aggregate type %v", t.Base)
	}
	if _, exists := t.MemberIndex[name]; exists {
		return fmt.Errorf("types: duplicate member %q in %s", name, t.Identifier)
	}
	offset := 0
	if t.Base == Struct {
		offset = alignUp(t.Size, memberType.Alignment)
	}
	t.Members = append(t.Members, Member{Name: name, Offset: offset, Type: memberType})
	t.MemberIndex[name] = len(t.Members) - 1
	if t.Base == Struct {
		t.Size = offset + memberType.Size
	} else if memberType.Size > t.Size {
		t.Size = memberType.Size
	}
	if memberType.Alignment > t.Alignment {
		t.Alignment = memberType.Alignment
	}
	return nil
}

func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

// Member looks up a member by name, returning ok=false if absent.
func (t *Type) Member(name string) (Member, bool) {
	idx, ok := t.MemberIndex[name]
	if !ok {
		return Member{}, false
	}
	return t.Members[idx], true
}

// AddMemberFunction registers a mangled member-function binding on a
// struct type, mirroring picoc's TypeAddMemberFunction.
func (t *Type) AddMemberFunction(memberName, mangledName string, funcType *Type) {
	if t.MemberFuncs == nil {
		t.MemberFuncs = make(map[string]MemberFunc)
	}
	t.MemberFuncs[memberName] = MemberFunc{MangledName: mangledName, FuncType: funcType}
}

// MemberFunction looks up a mangled member-function binding by its
// unqualified method name.
func (t *Type) MemberFunction(memberName string) (MemberFunc, bool) {
	mf, ok := t.MemberFuncs[memberName]
	return mf, ok
}

// SizeOf returns the storage size of typ. If arraySize > 0 it overrides
// an unsized array's element count for the computation (used while
// parsing `T x[N]`); compact=false rounds up to alignment, matching
// picoc's TypeSize(Typ, ArraySize, Compact).
func SizeOf(typ *Type, arraySize int, compact bool) int {
	size := typ.Size
	if typ.Base == Array && typ.ArraySize == 0 && arraySize > 0 {
		size = typ.FromType.Size * arraySize
	}
	if !compact {
		size = alignUp(size, typ.Alignment)
	}
	return size
}

// StackSizeOf returns the size the expression stack reserves alongside a
// value's descriptor: pointer-sized for anything an L-value reference can
// alias, full size for by-value structs/unions/arrays.
func StackSizeOf(typ *Type) int {
	switch typ.Base {
	case Struct, Union, Array:
		return typ.Size
	default:
		return 8
	}
}

// ResizeArray sets the element count of an unsized array type in place.
// It must only be called once per type, at initialization time; after
// this call the type is indistinguishable from a type originally created
// with this length.
func (t *Type) ResizeArray(length int) error {
	if t.Base != Array {
		return fmt.Errorf("types: ResizeArray on non-array type %v", t.Base)
	}
	if t.ArraySize != 0 {
		return fmt.Errorf("types: array type already sized to %d", t.ArraySize)
	}
	t.ArraySize = length
	t.Size = t.FromType.Size * length
	return nil
}

// IsPointerCompatible reports whether src may be assigned to a pointer of
// type dst without an explicit cast: same pointee type, or either side
// points to void.
func IsPointerCompatible(dst, src *Type) bool {
	if dst.Base != Pointer || src.Base != Pointer {
		return false
	}
	if dst.FromType.Base == Void || src.FromType.Base == Void {
		return true
	}
	return dst.FromType == src.FromType
}
