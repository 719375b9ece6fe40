package evalops

import (
	"testing"

	"github.com/robinrowe/picoc/internal/token"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

func newEval() (*Evaluator, *types.Registry) {
	r := types.NewRegistry()
	return &Evaluator{Reg: r, RunMode: true}, r
}

func intLit(r *types.Registry, n int64) *value.Value {
	v := value.FromType(r.Base(types.Int), false, nil, false)
	v.SetInt(n)
	return v
}

func TestInfixNumericArithmetic(t *testing.T) {
	e, r := newEval()
	cases := []struct {
		op   token.Kind
		a, b int64
		want int64
	}{
		{token.PLUS, 2, 3, 5},
		{token.MINUS, 5, 3, 2},
		{token.STAR, 4, 3, 12},
		{token.SLASH, 7, 2, 3},
		{token.PERCENT, 7, 2, 1},
		{token.AMP, 6, 3, 2},
		{token.PIPE, 4, 1, 5},
		{token.CARET, 5, 1, 4},
		{token.SHL, 1, 3, 8},
		{token.SHR, 8, 3, 1},
	}
	for _, c := range cases {
		got, err := e.Infix(c.op, intLit(r, c.a), intLit(r, c.b))
		if err != nil {
			t.Fatalf("Infix(%v): %v", c.op, err)
		}
		if got.Int() != c.want {
			t.Errorf("%v(%d,%d) = %d, want %d", c.op, c.a, c.b, got.Int(), c.want)
		}
	}
}

func TestInfixShiftIsLogicalOnUnsigned(t *testing.T) {
	e, r := newEval()
	neg := value.FromType(r.Base(types.UnsignedLong), false, nil, false)
	neg.SetInt(-8) // all high bits set
	one := intLit(r, 1)

	got, err := e.Infix(token.SHR, neg, one)
	if err != nil {
		t.Fatalf("Infix SHR: %v", err)
	}
	// A logical shift of an unsigned value must not sign-extend; the
	// result should have its top bit cleared.
	if got.Uint()&(1<<63) != 0 {
		t.Errorf("expected logical right shift to clear the sign bit, got %x", got.Uint())
	}
}

func TestInfixComparisonOperators(t *testing.T) {
	e, r := newEval()
	got, err := e.Infix(token.LESS, intLit(r, 2), intLit(r, 3))
	if err != nil {
		t.Fatalf("Infix LESS: %v", err)
	}
	if got.Int() != 1 {
		t.Errorf("2 < 3 = %d, want 1", got.Int())
	}
	got, err = e.Infix(token.EQUALS, intLit(r, 2), intLit(r, 2))
	if err != nil {
		t.Fatalf("Infix EQUALS: %v", err)
	}
	if got.Int() != 1 {
		t.Errorf("2 == 2 = %d, want 1", got.Int())
	}
}

func TestInfixDivisionByZeroErrors(t *testing.T) {
	e, r := newEval()
	if _, err := e.Infix(token.SLASH, intLit(r, 1), intLit(r, 0)); err == nil {
		t.Fatal("expected error dividing by zero")
	}
}

func TestInfixFloatPromotion(t *testing.T) {
	e, r := newEval()
	f := value.FromType(r.Base(types.FP), false, nil, false)
	f.SetFP(1.5)
	got, err := e.Infix(token.PLUS, f, intLit(r, 1))
	if err != nil {
		t.Fatalf("Infix PLUS: %v", err)
	}
	if got.Type.Base != types.FP || got.FP() != 2.5 {
		t.Errorf("1.5 + 1 = %v (%v), want 2.5 float", got.FP(), got.Type.Base)
	}
}

func TestPrefixAddressOfAndDeref(t *testing.T) {
	e, r := newEval()
	target := value.FromType(r.Base(types.Int), true, nil, false)
	target.SetInt(42)

	ptr, err := e.Prefix(token.AMP, target)
	if err != nil {
		t.Fatalf("Prefix AMP: %v", err)
	}
	if ptr.Type.Base != types.Pointer {
		t.Fatalf("expected pointer type, got %v", ptr.Type.Base)
	}

	back, err := e.Prefix(token.STAR, ptr)
	if err != nil {
		t.Fatalf("Prefix STAR: %v", err)
	}
	if back.Int() != 42 {
		t.Errorf("*&target = %d, want 42", back.Int())
	}
}

func TestPrefixAddressOfNonLValueErrors(t *testing.T) {
	e, r := newEval()
	v := intLit(r, 1)
	if _, err := e.Prefix(token.AMP, v); err == nil {
		t.Fatal("expected error taking address of a non-lvalue")
	}
}

func TestPrefixSizeof(t *testing.T) {
	e, r := newEval()
	got, err := e.Prefix(token.SIZEOF, intLit(r, 0))
	if err != nil {
		t.Fatalf("Prefix SIZEOF: %v", err)
	}
	if got.Int() != int64(r.Base(types.Int).Size) {
		t.Errorf("sizeof(int) = %d, want %d", got.Int(), r.Base(types.Int).Size)
	}
}

func TestPrefixNegationAndNot(t *testing.T) {
	e, r := newEval()
	neg, err := e.Prefix(token.MINUS, intLit(r, 5))
	if err != nil {
		t.Fatalf("Prefix MINUS: %v", err)
	}
	if neg.Int() != -5 {
		t.Errorf("-5 -> %d, want -5", neg.Int())
	}
	not, err := e.Prefix(token.NOT, intLit(r, 0))
	if err != nil {
		t.Fatalf("Prefix NOT: %v", err)
	}
	if not.Int() != 1 {
		t.Errorf("!0 = %d, want 1", not.Int())
	}
}

func TestPrefixIncrementWritesBack(t *testing.T) {
	e, r := newEval()
	v := value.FromType(r.Base(types.Int), true, nil, false)
	v.SetInt(5)
	result, err := e.Prefix(token.PLUS_PLUS, v)
	if err != nil {
		t.Fatalf("Prefix ++: %v", err)
	}
	if result.Int() != 6 || v.Int() != 6 {
		t.Errorf("++v = %d, v = %d, want both 6", result.Int(), v.Int())
	}
}

func TestPostfixIncrementReturnsPreValue(t *testing.T) {
	e, r := newEval()
	v := value.FromType(r.Base(types.Int), true, nil, false)
	v.SetInt(5)
	result, err := e.Postfix(token.PLUS_PLUS, v)
	if err != nil {
		t.Fatalf("Postfix ++: %v", err)
	}
	if result.Int() != 5 {
		t.Errorf("v++ evaluates to %d, want pre-increment value 5", result.Int())
	}
	if v.Int() != 6 {
		t.Errorf("v after v++ = %d, want 6", v.Int())
	}
}

func TestPointerArithmeticScalesByElementSize(t *testing.T) {
	e, r := newEval()
	elemType := r.Base(types.Int)
	backing := value.FromType(r.ArrayOf(elemType, 4), true, nil, false)

	base, err := value.SliceMember(backing, 0, elemType)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	ptr := value.FromType(r.PointerTo(elemType), false, nil, false)
	ptr.SetPointer(backing, 0)

	advanced, err := e.Infix(token.PLUS, ptr, intLit(r, 2))
	if err != nil {
		t.Fatalf("Infix PLUS (ptr+2): %v", err)
	}
	if advanced.Offset != 2*elemType.Size {
		t.Errorf("ptr+2 offset = %d, want %d", advanced.Offset, 2*elemType.Size)
	}
	_ = base
}

func TestPointerSubtractionYieldsRawByteDifference(t *testing.T) {
	e, r := newEval()
	target := value.FromType(r.Base(types.Int), true, nil, false)

	p1 := value.FromType(r.PointerTo(r.Base(types.Int)), false, nil, false)
	p1.SetPointer(target, 0)
	p2 := value.FromType(r.PointerTo(r.Base(types.Int)), false, nil, false)
	p2.SetPointer(target, 12)

	got, err := e.Infix(token.MINUS, p2, p1)
	if err != nil {
		t.Fatalf("Infix MINUS (ptr-ptr): %v", err)
	}
	if got.Int() != 12 {
		t.Errorf("p2-p1 = %d, want 12 (raw byte difference, not divided by element size)", got.Int())
	}
}

func TestPointerEqualityCompares(t *testing.T) {
	e, r := newEval()
	target := value.FromType(r.Base(types.Int), true, nil, false)
	p1 := value.FromType(r.PointerTo(r.Base(types.Int)), false, nil, false)
	p1.SetPointer(target, 0)
	p2 := value.FromType(r.PointerTo(r.Base(types.Int)), false, nil, false)
	p2.SetPointer(target, 0)

	got, err := e.Infix(token.EQUALS, p1, p2)
	if err != nil {
		t.Fatalf("Infix EQUALS: %v", err)
	}
	if got.Int() != 1 {
		t.Error("expected two pointers to the same target at the same offset to compare equal")
	}
}

func TestAssignInfixWritesThrough(t *testing.T) {
	e, r := newEval()
	dest := value.FromType(r.Base(types.Int), true, nil, false)
	got, err := e.Infix(token.ASSIGN, dest, intLit(r, 9))
	if err != nil {
		t.Fatalf("Infix ASSIGN: %v", err)
	}
	if dest.Int() != 9 || got.Int() != 9 {
		t.Errorf("dest = %d, result = %d, want both 9", dest.Int(), got.Int())
	}
}

func TestCompoundAssignDesugarsThroughBaseOperator(t *testing.T) {
	e, r := newEval()
	dest := value.FromType(r.Base(types.Int), true, nil, false)
	dest.SetInt(10)
	got, err := e.Infix(token.PLUS_ASSIGN, dest, intLit(r, 5))
	if err != nil {
		t.Fatalf("Infix PLUS_ASSIGN: %v", err)
	}
	if dest.Int() != 15 || got.Int() != 15 {
		t.Errorf("dest += 5 -> dest=%d result=%d, want both 15", dest.Int(), got.Int())
	}
}

func TestAssignToNonLValueErrors(t *testing.T) {
	e, r := newEval()
	if _, err := e.Infix(token.ASSIGN, intLit(r, 1), intLit(r, 2)); err == nil {
		t.Fatal("expected error assigning to a non-lvalue")
	}
}

func TestTernaryTrueBranch(t *testing.T) {
	e, r := newEval()
	cond := intLit(r, 1)
	thenVal := intLit(r, 10)
	elseVal := intLit(r, 20)

	afterQuestion, err := e.Ternary(thenVal, cond)
	if err != nil {
		t.Fatalf("Ternary: %v", err)
	}
	result, err := e.Colon(elseVal, afterQuestion)
	if err != nil {
		t.Fatalf("Colon: %v", err)
	}
	if result.Int() != 10 {
		t.Errorf("1 ? 10 : 20 = %d, want 10", result.Int())
	}
}

func TestTernaryFalseBranch(t *testing.T) {
	e, r := newEval()
	cond := intLit(r, 0)
	thenVal := intLit(r, 10)
	elseVal := intLit(r, 20)

	afterQuestion, err := e.Ternary(thenVal, cond)
	if err != nil {
		t.Fatalf("Ternary: %v", err)
	}
	result, err := e.Colon(elseVal, afterQuestion)
	if err != nil {
		t.Fatalf("Colon: %v", err)
	}
	if result.Int() != 20 {
		t.Errorf("0 ? 10 : 20 = %d, want 20", result.Int())
	}
}

func TestIndexArray(t *testing.T) {
	e, r := newEval()
	elemType := r.Base(types.Int)
	arr := value.FromType(r.ArrayOf(elemType, 3), true, nil, false)
	elem1, err := value.SliceMember(arr, elemType.Size, elemType)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	elem1.SetInt(77)

	got, err := e.Index(arr, intLit(r, 1))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if got.Int() != 77 {
		t.Errorf("arr[1] = %d, want 77", got.Int())
	}
}

func TestMemberDotAccess(t *testing.T) {
	e, r := newEval()
	point := r.NewStruct("Point", false)
	if err := point.AddMember("x", r.Base(types.Int)); err != nil {
		t.Fatalf("add x: %v", err)
	}
	if err := point.AddMember("y", r.Base(types.Int)); err != nil {
		t.Fatalf("add y: %v", err)
	}
	p := value.FromType(point, true, nil, false)
	yMember, _ := point.Member("y")
	yView, err := value.SliceMember(p, yMember.Offset, yMember.Type)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	yView.SetInt(3)

	got, err := e.Member(p, "y", false)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("p.y = %d, want 3", got.Int())
	}
}

func TestMemberArrowAccess(t *testing.T) {
	e, r := newEval()
	point := r.NewStruct("Point", false)
	if err := point.AddMember("x", r.Base(types.Int)); err != nil {
		t.Fatalf("add x: %v", err)
	}
	p := value.FromType(point, true, nil, false)
	xMember, _ := point.Member("x")
	xView, err := value.SliceMember(p, xMember.Offset, xMember.Type)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	xView.SetInt(8)

	ptr := value.FromType(r.PointerTo(point), false, nil, false)
	ptr.SetPointer(p, 0)

	got, err := e.Member(ptr, "x", true)
	if err != nil {
		t.Fatalf("Member via ->: %v", err)
	}
	if got.Int() != 8 {
		t.Errorf("ptr->x = %d, want 8", got.Int())
	}
}

func TestSkipModeReturnsDummyWithoutSideEffects(t *testing.T) {
	e, r := newEval()
	e.RunMode = false
	dest := value.FromType(r.Base(types.Int), true, nil, false)
	dest.SetInt(1)
	if _, err := e.Infix(token.ASSIGN, dest, intLit(r, 99)); err != nil {
		t.Fatalf("Infix in skip mode: %v", err)
	}
	if dest.Int() != 1 {
		t.Error("skip mode must not perform the assignment side effect")
	}
}
