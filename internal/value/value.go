// Package value implements the tagged value cell: a descriptor pointing
// at its type and at a payload, carrying L-value linkage and ownership
// metadata.
//
// Grounded on picoc's variable.h/variable.c, which names exactly five
// constructors (VariableAllocValueFromType, VariableAllocValueAndCopy,
// VariableAllocValueAndData, VariableAllocValueFromExistingData,
// VariableAllocValueShared) differing in payload ownership and aliasing;
// this package keeps those five names (FromType/AndCopy/AndData/
// FromExisting/Shared) translated into Go constructors on *Value.
package value

import (
	"fmt"
	"sync/atomic"

	"github.com/robinrowe/picoc/internal/arena"
	"github.com/robinrowe/picoc/internal/types"
)

// Payload is the untagged union large enough for any scalar, or an
// in-place byte span for arrays/structs.
type Payload struct {
	Int   int64
	Uint  uint64
	FP    float64
	Bytes []byte // backing storage for arrays/structs, or aliased bytes
}

// Value is a descriptor: a pointer to its type, a pointer to its payload,
// an optional L-value link to a parent value it aliases, and the
// ownership/scope metadata the evaluator needs to decide lifetime and
// visibility.
type Value struct {
	Type    *types.Type
	Payload *Payload

	IsLValue   bool
	LValueFrom *Value // non-nil when this value aliases a parent's payload

	// OnHeap records whether the descriptor lives on the detached heap
	// (true) rather than the arena stack (false).
	OnHeap bool

	ScopeID    int
	OutOfScope bool

	// Pointee and Offset represent a pointer value: the value this
	// pointer addresses, and the byte offset into Pointee's payload it
	// currently points at. Pointee == nil means a null pointer.
	//
	// picoc represents a pointer as a raw machine address into the same
	// flat memory every other value lives in; Go gives values no stable
	// address across a garbage collection, so pointers here reference
	// the pointee descriptor directly plus a byte offset instead. addr
	// (see Address below) synthesizes the "raw address integer" spec.md
	// §4.8 wants pointer/pointer comparison and subtraction to operate
	// on, by lazily assigning each addressable value a process-unique id.
	Pointee *Value
	Offset  int

	addr int64
}

var nextAddr int64

// EnsureAddr lazily assigns v a process-unique synthetic address, used as
// the operand of unary & and of pointer comparison/subtraction.
func (v *Value) EnsureAddr() int64 {
	if v.addr == 0 {
		v.addr = atomic.AddInt64(&nextAddr, 1)
	}
	return v.addr
}

// addrScale must exceed the largest Offset any single value's payload
// can reach, so that two pointers into different Pointees never collide
// on the same synthetic Address.
const addrScale = 1 << 32

// Address returns the synthetic raw address of a pointer value: zero for
// a null pointer, otherwise EnsureAddr(Pointee)*addrScale + Offset. Two
// pointers into the same Pointee differ by exactly their Offset
// difference, matching picoc's "pointer minus pointer yields a byte
// difference" semantics (see spec.md §9's Open Question on pointer
// subtraction, preserved as-is).
func (v *Value) Address() int64 {
	if v.Pointee == nil {
		return 0
	}
	return v.Pointee.EnsureAddr()*addrScale + int64(v.Offset)
}

// IsNullPointer reports whether v is a null pointer value.
func (v *Value) IsNullPointer() bool {
	return v.Type.Base == types.Pointer && v.Pointee == nil
}

// SetPointer makes v a pointer to pointee at the given byte offset.
func (v *Value) SetPointer(pointee *Value, offset int) {
	v.Pointee = pointee
	v.Offset = offset
}

// Deref returns a value aliasing the bytes pointee at v's current offset,
// for the given element type. It is an error to dereference a null
// pointer.
func (v *Value) Deref(elemType *types.Type) (*Value, error) {
	if v.IsNullPointer() {
		return nil, fmt.Errorf("value: dereference of null pointer")
	}
	return SliceMember(v.Pointee, v.Offset, elemType)
}

// FromType allocates a fresh value of typ with its own co-allocated
// payload: the constructor for transient temporaries. isLValue and
// lvalueFrom establish aliasing when the caller already knows the value
// will be an L-value into something else (e.g. a struct member slot being
// pre-allocated before assignment).
func FromType(typ *types.Type, isLValue bool, lvalueFrom *Value, onHeap bool) *Value {
	size := types.SizeOf(typ, 0, true)
	return &Value{
		Type:       typ,
		Payload:    &Payload{Bytes: make([]byte, size)},
		IsLValue:   isLValue,
		LValueFrom: lvalueFrom,
		OnHeap:     onHeap,
	}
}

// FromArena is FromType, except the payload is backed by a's bump-
// allocated stack region (whatever onHeap says) rather than a fresh
// make([]byte, ...): a stack-transient value's bytes are
// released in bulk, along with everything else pushed since, the next
// time its enclosing call frame pops (see arena.PushFrame/PopFrame) —
// this is the expression evaluator's actual C1 allocation path, not just
// FromType's Go-heap shortcut.
//
// a may be nil (a caller with no arena in scope, e.g. a package test
// exercising one evaluator in isolation), in which case FromArena behaves
// exactly like FromType. If a's stack is exhausted, FromArena likewise
// falls back to a Go-heap allocation rather than failing outright, since
// none of this package's constructors has an error return; a caller that
// wants stack exhaustion to be a hard fatal error can check
// a.StackBytes() against a.StackCap() itself before allocating.
func FromArena(a *arena.Arena, typ *types.Type, isLValue bool, lvalueFrom *Value, onHeap bool) *Value {
	if a == nil {
		return FromType(typ, isLValue, lvalueFrom, onHeap)
	}
	size := types.SizeOf(typ, 0, true)
	// onHeap is carried through as the same inert descriptor metadata
	// FromType treats it as; it does not select a's detached free list
	// here. a.AllocMem hands back a Handle that would be needed to
	// a.FreeMem this payload later, and nothing in this package's Value
	// type has anywhere to keep that handle, so routing onHeap requests
	// through AllocMem would allocate memory no caller could ever release.
	// Every payload FromArena produces is therefore stack-transient,
	// released in bulk by the enclosing PopFrame.
	bytes, err := a.Push(size)
	if err != nil {
		return FromType(typ, isLValue, lvalueFrom, onHeap)
	}
	return &Value{
		Type:       typ,
		Payload:    &Payload{Bytes: bytes},
		IsLValue:   isLValue,
		LValueFrom: lvalueFrom,
		OnHeap:     onHeap,
	}
}

// AndData allocates a value whose payload size is known but not backed
// by a prior type descriptor (used for results the caller is about to
// stamp a type onto, or raw byte spans copied off the token stream).
func AndData(typ *types.Type, dataSize int, isLValue bool, lvalueFrom *Value, onHeap bool) *Value {
	return &Value{
		Type:       typ,
		Payload:    &Payload{Bytes: make([]byte, dataSize)},
		IsLValue:   isLValue,
		LValueFrom: lvalueFrom,
		OnHeap:     onHeap,
	}
}

// AndCopy allocates a new value of from's type with its own payload,
// copying from's bytes: the constructor for push-by-value (argument
// binding, initializer evaluation).
func AndCopy(from *Value, onHeap bool) *Value {
	v := FromType(from.Type, false, nil, onHeap)
	copyScalar(v, from)
	v.Payload.Bytes = append([]byte(nil), from.Payload.Bytes...)
	return v
}

func copyScalar(dst, src *Value) {
	dst.Payload.Int = src.Payload.Int
	dst.Payload.Uint = src.Payload.Uint
	dst.Payload.FP = src.Payload.FP
}

// FromExisting wraps existing bytes owned by a caller (an array element,
// a struct member, a pointer dereference result) without copying: the
// payload *aliases* the parent's bytes, so writes through this value
// must be visible through the parent. lvalueFrom should be the value
// whose bytes are being aliased.
func FromExisting(typ *types.Type, existing *Payload, isLValue bool, lvalueFrom *Value) *Value {
	return &Value{
		Type:       typ,
		Payload:    existing,
		IsLValue:   isLValue,
		LValueFrom: lvalueFrom,
	}
}

// Shared re-packs another value's payload under a (possibly different)
// type, aliasing its bytes outright. Used for L-value re-pack with an
// offset, e.g. viewing a struct's first member through the struct's own
// payload slice.
func Shared(from *Value) *Value {
	return &Value{
		Type:       from.Type,
		Payload:    from.Payload,
		IsLValue:   from.IsLValue,
		LValueFrom: from,
		OnHeap:     from.OnHeap,
		ScopeID:    from.ScopeID,
	}
}

// SliceMember returns a value aliasing the bytes of one struct member
// within parent's backing storage, using FromExisting semantics: writes
// through the returned value are visible through parent.
func SliceMember(parent *Value, offset int, memberType *types.Type) (*Value, error) {
	size := types.SizeOf(memberType, 0, true)
	if offset+size > len(parent.Payload.Bytes) {
		return nil, fmt.Errorf("value: member offset %d+%d exceeds parent payload of %d bytes", offset, size, len(parent.Payload.Bytes))
	}
	aliased := &Payload{Bytes: parent.Payload.Bytes[offset : offset+size]}
	return FromExisting(memberType, aliased, parent.IsLValue, parent), nil
}

// SetInt stores an integer scalar, keyed by the value's own type so the
// caller doesn't need to know which Payload field backs it.
func (v *Value) SetInt(i int64) {
	if v.Type.Base.IsUnsigned() {
		v.Payload.Uint = uint64(i)
	} else {
		v.Payload.Int = i
	}
}

// Int returns the value's integer payload as a signed int64, regardless
// of which union arm it was stored through.
func (v *Value) Int() int64 {
	if v.Type.Base.IsUnsigned() {
		return int64(v.Payload.Uint)
	}
	return v.Payload.Int
}

// Uint returns the value's integer payload as an unsigned uint64.
func (v *Value) Uint() uint64 {
	if v.Type.Base.IsUnsigned() {
		return v.Payload.Uint
	}
	return uint64(v.Payload.Int)
}

// SetFP stores a floating-point scalar.
func (v *Value) SetFP(f float64) { v.Payload.FP = f }

// FP returns the value's floating-point payload.
func (v *Value) FP() float64 { return v.Payload.FP }

// AssignableAsLValue reports whether v may appear as the left operand of
// an assignment operator or the operand of unary &, prefix/postfix ++/--.
func (v *Value) AssignableAsLValue() bool {
	return v.IsLValue
}
