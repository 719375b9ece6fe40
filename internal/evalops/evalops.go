// Package evalops implements the prefix, postfix, infix, ternary, index,
// and member operator evaluators C9's expression driver calls through
// C6's collapse routine.
//
// Grounded on picoc's expression_operator.c: ExpressionPrefixOperator,
// ExpressionPostfixOperator, ExpressionInfixOperator,
// ExpressionQuestionMarkOperator/ExpressionColonOperator for the ternary
// split, and the pointer-scaling and logical-right-shift-on-unsigned
// rules spec.md §4.8 calls out explicitly.
package evalops

import (
	"fmt"

	"github.com/robinrowe/picoc/internal/arena"
	"github.com/robinrowe/picoc/internal/coerce"
	"github.com/robinrowe/picoc/internal/token"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// Evaluator implements exprstack.Evaluator against a type registry, so
// C6's collapse routine can call straight into these operator semantics.
type Evaluator struct {
	Reg *types.Registry

	// Arena backs every temporary result value these evaluators produce
	// (newValue below), so C1's bump allocator is the real allocation
	// path for expression evaluation, not decorative frame bookkeeping:
	// a temporary's bytes are released along with the rest of its call
	// frame at the next PopFrame. May be left nil (as package tests that
	// exercise one evaluator in isolation do), in which case newValue
	// falls back to a plain Go-heap allocation.
	Arena *arena.Arena

	// RunMode selects live evaluation; when false every operator returns
	// a zero int, matching picoc's "if (Parser->Mode == RunModeRun) ...
	// else ExpressionPushInt(Parser, StackTop, 0)" skip-mode branch.
	RunMode bool
}

// newValue allocates a fresh non-lvalue temporary of typ through e.Arena,
// the single allocation path every operator evaluator below uses for its
// result value.
func (e *Evaluator) newValue(typ *types.Type) *value.Value {
	return value.FromArena(e.Arena, typ, false, nil, false)
}

func (e *Evaluator) dummy() *value.Value {
	return e.newValue(e.Reg.Base(types.Int))
}

func (e *Evaluator) intVal(i int64) *value.Value {
	v := e.newValue(e.Reg.Base(types.Int))
	v.SetInt(i)
	return v
}

func (e *Evaluator) fpVal(f float64) *value.Value {
	v := e.newValue(e.Reg.Base(types.FP))
	v.SetFP(f)
	return v
}

// Prefix evaluates a prefix operator applied to operand.
func (e *Evaluator) Prefix(op token.Kind, operand *value.Value) (*value.Value, error) {
	if !e.RunMode {
		return e.dummy(), nil
	}
	switch op {
	case token.AMP:
		if !operand.IsLValue {
			return nil, fmt.Errorf("evalops: cannot take the address of a non-lvalue")
		}
		result := e.newValue(e.Reg.PointerTo(operand.Type))
		result.SetPointer(operand, 0)
		return result, nil

	case token.STAR:
		if operand.Type.Base != types.Pointer {
			return nil, fmt.Errorf("evalops: cannot dereference non-pointer type %v", operand.Type.Base)
		}
		return operand.Deref(operand.Type.FromType)

	case token.SIZEOF:
		typ := sizeofTarget(operand)
		return e.intVal(int64(types.SizeOf(typ, 0, false))), nil

	case token.PLUS:
		return e.copyNumeric(operand), nil

	case token.MINUS:
		return negate(operand, e), nil

	case token.NOT:
		if truthy(operand) {
			return e.intVal(0), nil
		}
		return e.intVal(1), nil

	case token.TILDE:
		return e.intVal(^coerce.Int(operand)), nil

	case token.PLUS_PLUS, token.MINUS_MINUS:
		return stepLValue(operand, op == token.PLUS_PLUS, e)

	default:
		return nil, fmt.Errorf("evalops: unsupported prefix operator %v", op)
	}
}

// sizeofTarget unwraps a type-literal operand (TypeOfType) to the type it
// names, and unwraps pointer-to-struct to the struct itself, per spec.md
// §4.8's struct-specialization rule.
func sizeofTarget(operand *value.Value) *types.Type {
	typ := operand.Type
	if typ.Base == types.TypeOfType {
		// A type-literal value stores the named type in its own Type
		// field's FromType slot (see exprparse's type-literal push).
		if typ.FromType != nil {
			typ = typ.FromType
		}
	}
	if typ.Base == types.Pointer && typ.FromType != nil && typ.FromType.Base == types.Struct {
		return typ.FromType
	}
	return typ
}

func (e *Evaluator) copyNumeric(v *value.Value) *value.Value {
	result := e.newValue(v.Type)
	if v.Type.Base == types.FP {
		result.SetFP(v.FP())
	} else {
		result.SetInt(v.Int())
	}
	return result
}

func negate(v *value.Value, e *Evaluator) *value.Value {
	if v.Type.Base == types.FP {
		return e.fpVal(-v.FP())
	}
	return e.intVal(-coerce.Int(v))
}

func truthy(v *value.Value) bool {
	switch v.Type.Base {
	case types.FP:
		return v.FP() != 0
	case types.Pointer:
		return !v.IsNullPointer()
	default:
		return coerce.Int(v) != 0
	}
}

// stepLValue implements ++/-- on an lvalue: numeric types write back the
// modified value and the caller (Prefix or Postfix) decides whether to
// surface the pre- or post-modification value; pointer lvalues scale by
// the pointee's element size.
func stepLValue(operand *value.Value, increment bool, e *Evaluator) (*value.Value, error) {
	if !operand.IsLValue {
		return nil, fmt.Errorf("evalops: ++/-- requires an lvalue operand")
	}
	switch operand.Type.Base {
	case types.Pointer:
		delta := 1
		if operand.Type.FromType != nil && operand.Type.FromType.Size > 0 {
			delta = operand.Type.FromType.Size
		}
		if !increment {
			delta = -delta
		}
		operand.Offset += delta
		return operand, nil

	case types.FP:
		if increment {
			operand.SetFP(operand.FP() + 1)
		} else {
			operand.SetFP(operand.FP() - 1)
		}
		return operand, nil

	default:
		if increment {
			operand.SetInt(operand.Int() + 1)
		} else {
			operand.SetInt(operand.Int() - 1)
		}
		return operand, nil
	}
}

// Postfix evaluates a postfix operator, surfacing the pre-modification
// value while still writing the modification back through the lvalue.
func (e *Evaluator) Postfix(op token.Kind, operand *value.Value) (*value.Value, error) {
	if !e.RunMode {
		return e.dummy(), nil
	}
	switch op {
	case token.PLUS_PLUS, token.MINUS_MINUS:
		if !operand.IsLValue {
			return nil, fmt.Errorf("evalops: ++/-- requires an lvalue operand")
		}
		before := e.copyNumericOrPointer(operand)
		if _, err := stepLValue(operand, op == token.PLUS_PLUS, e); err != nil {
			return nil, err
		}
		return before, nil
	default:
		return nil, fmt.Errorf("evalops: unsupported postfix operator %v", op)
	}
}

func (e *Evaluator) copyNumericOrPointer(v *value.Value) *value.Value {
	result := e.newValue(v.Type)
	if v.Type.Base == types.Pointer {
		result.SetPointer(v.Pointee, v.Offset)
	} else if v.Type.Base == types.FP {
		result.SetFP(v.FP())
	} else {
		result.SetInt(v.Int())
	}
	return result
}

// Infix evaluates an infix operator over (left, right).
func (e *Evaluator) Infix(op token.Kind, left, right *value.Value) (*value.Value, error) {
	if !e.RunMode {
		return e.dummy(), nil
	}

	if isAssignOp(op) {
		return e.assign(op, left, right)
	}

	if left.Type.Base == types.Pointer || right.Type.Base == types.Pointer {
		return e.infixPointer(op, left, right)
	}

	return e.infixNumeric(op, left, right)
}

func isAssignOp(op token.Kind) bool {
	switch op {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
		token.SLASH_ASSIGN, token.PERCENT_ASSIGN, token.SHL_ASSIGN, token.SHR_ASSIGN,
		token.AMP_ASSIGN, token.PIPE_ASSIGN, token.CARET_ASSIGN:
		return true
	}
	return false
}

// compoundBase maps a compound-assign token to the plain operator it
// desugars through: `lhs OP= rhs` becomes `lhs = lhs OP rhs`, per
// SPEC_FULL's supplemented compound-assignment feature.
var compoundBase = map[token.Kind]token.Kind{
	token.PLUS_ASSIGN:    token.PLUS,
	token.MINUS_ASSIGN:   token.MINUS,
	token.STAR_ASSIGN:    token.STAR,
	token.SLASH_ASSIGN:   token.SLASH,
	token.PERCENT_ASSIGN: token.PERCENT,
	token.SHL_ASSIGN:     token.SHL,
	token.SHR_ASSIGN:     token.SHR,
	token.AMP_ASSIGN:     token.AMP,
	token.PIPE_ASSIGN:    token.PIPE,
	token.CARET_ASSIGN:   token.CARET,
}

func (e *Evaluator) assign(op token.Kind, left, right *value.Value) (*value.Value, error) {
	if !left.IsLValue {
		return nil, fmt.Errorf("evalops: assignment to a non-lvalue")
	}
	rhs := right
	if base, ok := compoundBase[op]; ok {
		var err error
		rhs, err = e.Infix(base, left, right)
		if err != nil {
			return nil, err
		}
	}
	if left.Type.Base.IsNumeric() || left.Type.Base == types.Pointer {
		if err := coerce.Assign(left, rhs, false, false); err != nil {
			return nil, err
		}
		return left, nil
	}
	if err := coerce.Assign(left, rhs, false, false); err != nil {
		return nil, err
	}
	return left, nil
}

func (e *Evaluator) infixPointer(op token.Kind, left, right *value.Value) (*value.Value, error) {
	leftIsPtr := left.Type.Base == types.Pointer
	rightIsPtr := right.Type.Base == types.Pointer

	switch op {
	case token.EQUALS:
		return boolVal(e, left.Address() == right.Address()), nil
	case token.NOT_EQ:
		return boolVal(e, left.Address() != right.Address()), nil
	case token.MINUS:
		if leftIsPtr && rightIsPtr {
			// Raw byte difference, not divided by element size: a known
			// divergence from pointer-subtraction semantics, preserved
			// as-is (see the design ledger's pointer-subtraction Open
			// Question resolution).
			return e.intVal(left.Address() - right.Address()), nil
		}
		if leftIsPtr {
			return scalePointer(e, left, -right.Int())
		}
		return nil, fmt.Errorf("evalops: cannot subtract a pointer from a non-pointer")
	case token.PLUS:
		if leftIsPtr {
			return scalePointer(e, left, right.Int())
		}
		return scalePointer(e, right, left.Int())
	default:
		return nil, fmt.Errorf("evalops: unsupported pointer infix operator %v", op)
	}
}

func scalePointer(e *Evaluator, ptr *value.Value, n int64) (*value.Value, error) {
	elemSize := int64(1)
	if ptr.Type.FromType != nil && ptr.Type.FromType.Size > 0 {
		elemSize = int64(ptr.Type.FromType.Size)
	}
	result := e.newValue(ptr.Type)
	result.SetPointer(ptr.Pointee, ptr.Offset+int(n*elemSize))
	return result, nil
}

func boolVal(e *Evaluator, b bool) *value.Value {
	if b {
		return e.intVal(1)
	}
	return e.intVal(0)
}

func (e *Evaluator) infixNumeric(op token.Kind, left, right *value.Value) (*value.Value, error) {
	floating := left.Type.Base == types.FP || right.Type.Base == types.FP
	unsigned := !floating && (left.Type.Base.IsUnsigned() || right.Type.Base.IsUnsigned())

	switch op {
	case token.EQUALS, token.NOT_EQ, token.LESS, token.GREATER, token.LESS_EQ, token.GREATER_EQ:
		return e.compare(op, left, right, floating, unsigned)
	case token.LOGICAL_AND:
		return boolVal(e, truthy(left) && truthy(right)), nil
	case token.LOGICAL_OR:
		return boolVal(e, truthy(left) || truthy(right)), nil
	}

	if floating {
		l, r := coerce.FP(left), coerce.FP(right)
		switch op {
		case token.PLUS:
			return e.fpVal(l + r), nil
		case token.MINUS:
			return e.fpVal(l - r), nil
		case token.STAR:
			return e.fpVal(l * r), nil
		case token.SLASH:
			return e.fpVal(l / r), nil
		default:
			return nil, fmt.Errorf("evalops: operator %v not defined over floating operands", op)
		}
	}

	if unsigned {
		l, r := coerce.Uint(left), coerce.Uint(right)
		switch op {
		case token.PLUS:
			return e.uintVal(l + r), nil
		case token.MINUS:
			return e.uintVal(l - r), nil
		case token.STAR:
			return e.uintVal(l * r), nil
		case token.SLASH:
			if r == 0 {
				return nil, fmt.Errorf("evalops: division by zero")
			}
			return e.uintVal(l / r), nil
		case token.PERCENT:
			if r == 0 {
				return nil, fmt.Errorf("evalops: division by zero")
			}
			return e.uintVal(l % r), nil
		case token.AMP:
			return e.uintVal(l & r), nil
		case token.PIPE:
			return e.uintVal(l | r), nil
		case token.CARET:
			return e.uintVal(l ^ r), nil
		case token.SHL:
			return e.uintVal(l << r), nil
		case token.SHR:
			// Logical (unsigned) right shift, per spec.md §4.8.
			return e.uintVal(l >> r), nil
		default:
			return nil, fmt.Errorf("evalops: operator %v not defined over unsigned operands", op)
		}
	}

	l, r := coerce.Int(left), coerce.Int(right)
	switch op {
	case token.PLUS:
		return e.intVal(l + r), nil
	case token.MINUS:
		return e.intVal(l - r), nil
	case token.STAR:
		return e.intVal(l * r), nil
	case token.SLASH:
		if r == 0 {
			return nil, fmt.Errorf("evalops: division by zero")
		}
		return e.intVal(l / r), nil
	case token.PERCENT:
		if r == 0 {
			return nil, fmt.Errorf("evalops: division by zero")
		}
		return e.intVal(l % r), nil
	case token.AMP:
		return e.intVal(l & r), nil
	case token.PIPE:
		return e.intVal(l | r), nil
	case token.CARET:
		return e.intVal(l ^ r), nil
	case token.SHL:
		return e.intVal(l << uint(r)), nil
	case token.SHR:
		return e.intVal(l >> uint(r)), nil
	default:
		return nil, fmt.Errorf("evalops: unsupported numeric infix operator %v", op)
	}
}

func (e *Evaluator) uintVal(u uint64) *value.Value {
	v := e.newValue(e.Reg.Base(types.UnsignedLong))
	v.Payload.Uint = u
	return v
}

func (e *Evaluator) compare(op token.Kind, left, right *value.Value, floating, unsigned bool) (*value.Value, error) {
	var result bool
	switch {
	case floating:
		l, r := coerce.FP(left), coerce.FP(right)
		result = compareOrdered(op, l, r)
	case unsigned:
		l, r := coerce.Uint(left), coerce.Uint(right)
		result = compareOrdered(op, l, r)
	default:
		l, r := coerce.Int(left), coerce.Int(right)
		result = compareOrdered(op, l, r)
	}
	return boolVal(e, result), nil
}

// compareOrdered is generic over the three kinds of operand pairs
// infixNumeric hands it (float64, uint64, int64), avoiding three near-
// identical switch statements.
func compareOrdered[T int64 | uint64 | float64](op token.Kind, l, r T) bool {
	switch op {
	case token.EQUALS:
		return l == r
	case token.NOT_EQ:
		return l != r
	case token.LESS:
		return l < r
	case token.GREATER:
		return l > r
	case token.LESS_EQ:
		return l <= r
	case token.GREATER_EQ:
		return l >= r
	default:
		return false
	}
}

// Ternary evaluates the `?` half: pushes bottomValue (the "then" branch)
// if condition is truthy, otherwise a void sentinel.
func (e *Evaluator) Ternary(bottomValue, condition *value.Value) (*value.Value, error) {
	if !condition.Type.Base.IsNumeric() && condition.Type.Base != types.Pointer {
		return nil, fmt.Errorf("evalops: first argument to '?' should be a number")
	}
	if truthy(condition) {
		return bottomValue, nil
	}
	return e.newValue(e.Reg.Base(types.Void)), nil
}

// Colon evaluates the `:` half: topValue is whatever `?` pushed — a real
// value if the condition was true, the void sentinel otherwise — and
// bottomValue is the "else" branch's value.
func (e *Evaluator) Colon(bottomValue, topValue *value.Value) (*value.Value, error) {
	if topValue.Type.Base == types.Void {
		return bottomValue, nil
	}
	return topValue, nil
}

// Index produces an alias-value for the element at the scaled offset
// into an array or pointer operand.
func (e *Evaluator) Index(base, indexVal *value.Value) (*value.Value, error) {
	idx := coerce.Int(indexVal)
	switch base.Type.Base {
	case types.Array:
		elemType := base.Type.FromType
		offset := int(idx) * elemType.Size
		return value.SliceMember(base, offset, elemType)
	case types.Pointer:
		elemType := base.Type.FromType
		ptr, err := scalePointer(e, base, idx)
		if err != nil {
			return nil, err
		}
		return ptr.Deref(elemType)
	default:
		return nil, fmt.Errorf("evalops: cannot index non-array, non-pointer type %v", base.Type.Base)
	}
}

// Member produces an alias-value for a named struct/union member. If
// viaArrow, base must be a pointer-to-struct/union and is dereferenced
// first.
func (e *Evaluator) Member(base *value.Value, memberName string, viaArrow bool) (*value.Value, error) {
	aggregate := base
	if viaArrow {
		if base.Type.Base != types.Pointer {
			return nil, fmt.Errorf("evalops: -> requires a pointer operand")
		}
		structType := base.Type.FromType
		if structType.Base != types.Struct && structType.Base != types.Union {
			return nil, fmt.Errorf("evalops: -> requires pointer-to-struct/union")
		}
		deref, err := base.Deref(structType)
		if err != nil {
			return nil, err
		}
		aggregate = deref
	}
	if aggregate.Type.Base != types.Struct && aggregate.Type.Base != types.Union {
		return nil, fmt.Errorf("evalops: . requires a struct or union operand")
	}
	member, ok := aggregate.Type.Member(memberName)
	if !ok {
		return nil, fmt.Errorf("evalops: no member %q in %s", memberName, aggregate.Type.Identifier)
	}
	return value.SliceMember(aggregate, member.Offset, member.Type)
}
