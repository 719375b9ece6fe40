// Package coerce implements numeric coercion and the general assignment
// operation: numeric widening/truncation, pointer/array/struct/union
// assignment, and the null-pointer and array-sizing rules spec.md §4.7
// names explicitly.
//
// Grounded on picoc's expression_assign.c (ExpressionAssign) for the
// assign() dispatch table and expression_coerce.c for the coercion
// helpers; the teacher repo has no analogue, since its CPU backend never
// needed C's implicit-conversion rules.
package coerce

import (
	"fmt"

	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// Int projects any numeric or pointer value to a signed integer: floats
// truncate, pointers yield their synthetic address bits.
func Int(v *value.Value) int64 {
	switch v.Type.Base {
	case types.FP:
		return int64(v.Payload.FP)
	case types.Pointer:
		return v.Address()
	default:
		return v.Int()
	}
}

// Uint projects any numeric or pointer value to an unsigned integer.
func Uint(v *value.Value) uint64 {
	switch v.Type.Base {
	case types.FP:
		return uint64(v.Payload.FP)
	case types.Pointer:
		return uint64(v.Address())
	default:
		return v.Uint()
	}
}

// FP projects any numeric value to a double.
func FP(v *value.Value) float64 {
	switch v.Type.Base {
	case types.FP:
		return v.Payload.FP
	default:
		if v.Type.Base.IsUnsigned() {
			return float64(v.Uint())
		}
		return float64(v.Int())
	}
}

// Assign implements the general assign(dest, src, force, allowPtrCoercion)
// operation. dest must be an lvalue unless force is set (force is used by
// argument binding and cast evaluation, where the destination is a fresh
// temporary the caller just allocated).
func Assign(dest, src *value.Value, force, allowPtrCoercion bool) error {
	if !dest.IsLValue && !force {
		return fmt.Errorf("coerce: assignment to a non-lvalue")
	}

	switch {
	case dest.Type.Base.IsNumeric():
		return assignNumeric(dest, src, allowPtrCoercion)

	case dest.Type.Base == types.Pointer:
		return assignPointer(dest, src, allowPtrCoercion)

	case dest.Type.Base == types.Array:
		return assignArray(dest, src)

	case dest.Type.Base == types.Struct || dest.Type.Base == types.Union:
		if dest.Type != src.Type {
			return fmt.Errorf("coerce: cannot assign %s to %s", typeName(src.Type), typeName(dest.Type))
		}
		copy(dest.Payload.Bytes, src.Payload.Bytes)
		return nil

	default:
		return fmt.Errorf("coerce: unsupported assignment destination type %v", dest.Type.Base)
	}
}

func typeName(t *types.Type) string {
	if t.Identifier != "" {
		return t.Identifier
	}
	return t.Base.String()
}

func assignNumeric(dest, src *value.Value, allowPtrCoercion bool) error {
	if !src.Type.Base.IsNumeric() {
		if src.Type.Base == types.Pointer && allowPtrCoercion {
			dest.SetInt(src.Address())
			return nil
		}
		return fmt.Errorf("coerce: cannot assign non-numeric %s to numeric %s", typeName(src.Type), typeName(dest.Type))
	}
	if dest.Type.Base == types.FP {
		dest.SetFP(FP(src))
	} else if dest.Type.Base.IsUnsigned() {
		dest.SetInt(int64(Uint(src)))
	} else {
		dest.SetInt(Int(src))
	}
	return nil
}

func assignPointer(dest, src *value.Value, allowPtrCoercion bool) error {
	if src.Type.Base == types.Pointer {
		switch {
		case dest.Type == src.Type:
			dest.SetPointer(src.Pointee, src.Offset)
			return nil
		case dest.Type.FromType.Base == types.Void || src.Type.FromType.Base == types.Void:
			dest.SetPointer(src.Pointee, src.Offset)
			return nil
		case allowPtrCoercion:
			dest.SetPointer(src.Pointee, src.Offset)
			return nil
		default:
			return fmt.Errorf("coerce: incompatible pointer types %s and %s", typeName(dest.Type), typeName(src.Type))
		}
	}

	if src.Type.Base == types.Array &&
		(dest.Type.FromType == src.Type.FromType || dest.Type.FromType.Base == types.Void) {
		dest.SetPointer(src, 0)
		return nil
	}

	if src.Type.Base.IsInteger() {
		if src.Int() == 0 {
			dest.SetPointer(nil, 0)
			return nil
		}
		if allowPtrCoercion {
			dest.Payload.Bytes = append([]byte(nil), src.Payload.Bytes...)
			return nil
		}
		return fmt.Errorf("coerce: cannot assign non-zero integer to pointer without a cast")
	}

	return fmt.Errorf("coerce: cannot assign %s to pointer %s", typeName(src.Type), typeName(dest.Type))
}

func assignArray(dest, src *value.Value) error {
	if src.Type.Base != types.Array {
		return fmt.Errorf("coerce: cannot assign %s to array %s", typeName(src.Type), typeName(dest.Type))
	}

	if dest.Type.ArraySize == 0 {
		length := src.Type.ArraySize
		if length == 0 && src.Type.FromType.Base == types.Char {
			length = len(src.Payload.Bytes)/elemSize(src.Type) + 1
		}
		// dest.Type is the same canonical *Type the parent L-value's
		// member table (or frame) points at, so resizing it here is
		// already visible to every holder of that pointer; no separate
		// propagation step is needed.
		if err := dest.Type.ResizeArray(length); err != nil {
			return fmt.Errorf("coerce: resizing unsized array destination: %w", err)
		}
		dest.Payload.Bytes = make([]byte, dest.Type.Size)
	}

	if dest.Type.FromType != src.Type.FromType {
		return fmt.Errorf("coerce: array element type mismatch (%s vs %s)", typeName(dest.Type.FromType), typeName(src.Type.FromType))
	}

	n := len(src.Payload.Bytes)
	if n > len(dest.Payload.Bytes) {
		n = len(dest.Payload.Bytes)
	}
	copy(dest.Payload.Bytes, src.Payload.Bytes[:n])
	return nil
}

func elemSize(arrType *types.Type) int {
	if arrType.FromType != nil && arrType.FromType.Size > 0 {
		return arrType.FromType.Size
	}
	return 1
}
