package exprparse

import (
	"fmt"
	"testing"

	"github.com/robinrowe/picoc/internal/evalops"
	"github.com/robinrowe/picoc/internal/lexer"
	"github.com/robinrowe/picoc/internal/symtab"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

type nopCaller struct{}

func (nopCaller) Call(name string, args []*value.Value) (*value.Value, error) {
	return nil, fmt.Errorf("unexpected call to %q", name)
}

func (nopCaller) CallMember(receiver *value.Value, memberName string, viaArrow bool, args []*value.Value) (*value.Value, error) {
	return nil, fmt.Errorf("unexpected member call %q", memberName)
}

func newParser(t *testing.T, src string) (*Parser, *types.Registry, *symtab.Table) {
	t.Helper()
	toks, err := lexer.All(src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	reg := types.NewRegistry()
	interner := symtab.NewInterner()
	syms := symtab.New(interner)
	ev := &evalops.Evaluator{Reg: reg, RunMode: true}
	return New(toks, reg, syms, ev, nopCaller{}, map[string]*types.Type{}), reg, syms
}

func evalInt(t *testing.T, src string) int64 {
	t.Helper()
	p, _, _ := newParser(t, src)
	v, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return v.Int()
}

func TestArithmeticPrecedence(t *testing.T) {
	cases := map[string]int64{
		"2 + 3 * 4":     14,
		"(2 + 3) * 4":   20,
		"2 * 3 + 4 * 5": 26,
		"10 - 2 - 3":    5, // left-associative
		"2 + 3 == 5":    1,
		"1 << 3 | 1":    9,
	}
	for src, want := range cases {
		if got := evalInt(t, src); got != want {
			t.Errorf("%q = %d, want %d", src, got, want)
		}
	}
}

func TestUnaryAndPrefixChains(t *testing.T) {
	cases := map[string]int64{
		"-5 + 3":  -2,
		"!0":      1,
		"!5":      0,
		"~0":      -1,
		"- - 5":   5,
		"-(2+3)":  -5,
	}
	for src, want := range cases {
		if got := evalInt(t, src); got != want {
			t.Errorf("%q = %d, want %d", src, got, want)
		}
	}
}

func TestLogicalShortCircuitAnd(t *testing.T) {
	p, _, syms := newParser(t, "0 && (x = 1)")
	_, ok := syms.Lookup(syms.Intern("x"))
	if ok {
		t.Fatal("x should not be declared before parsing")
	}
	got, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Int() != 0 {
		t.Errorf("0 && (x=1) = %d, want 0", got.Int())
	}
}

func TestLogicalShortCircuitOr(t *testing.T) {
	if got := evalInt(t, "1 || 0"); got != 1 {
		t.Errorf("1 || 0 = %d, want 1", got)
	}
}

func TestTernaryTrueAndFalseBranches(t *testing.T) {
	if got := evalInt(t, "1 ? 10 : 20"); got != 10 {
		t.Errorf("1 ? 10 : 20 = %d, want 10", got)
	}
	if got := evalInt(t, "0 ? 10 : 20"); got != 20 {
		t.Errorf("0 ? 10 : 20 = %d, want 20", got)
	}
}

func TestNestedTernary(t *testing.T) {
	if got := evalInt(t, "0 ? 1 : 1 ? 2 : 3"); got != 2 {
		t.Errorf("0 ? 1 : 1 ? 2 : 3 = %d, want 2", got)
	}
}

func TestCommaOperatorYieldsLastValue(t *testing.T) {
	if got := evalInt(t, "1, 2, 3"); got != 3 {
		t.Errorf("1,2,3 = %d, want 3", got)
	}
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	p, reg, syms := newParser(t, "a = b = 5")
	a := value.FromType(reg.Base(types.Int), true, nil, false)
	b := value.FromType(reg.Base(types.Int), true, nil, false)
	syms.Define(syms.Intern("a"), a)
	syms.Define(syms.Intern("b"), b)

	if _, err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Int() != 5 || b.Int() != 5 {
		t.Errorf("a=%d b=%d, want both 5", a.Int(), b.Int())
	}
}

func TestCompoundAssignment(t *testing.T) {
	p, reg, syms := newParser(t, "a += 3")
	a := value.FromType(reg.Base(types.Int), true, nil, false)
	a.SetInt(10)
	syms.Define(syms.Intern("a"), a)

	if _, err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Int() != 13 {
		t.Errorf("a after += 3 = %d, want 13", a.Int())
	}
}

func TestCastTruncatesFloatToInt(t *testing.T) {
	if got := evalInt(t, "(int)(3.9 + 0.0)"); got != 3 {
		t.Errorf("(int)3.9 = %d, want 3", got)
	}
}

func TestSizeofBuiltinType(t *testing.T) {
	p, reg, _ := newParser(t, "sizeof(int)")
	v, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Int() != int64(reg.Base(types.Int).Size) {
		t.Errorf("sizeof(int) = %d, want %d", v.Int(), reg.Base(types.Int).Size)
	}
}

func TestSizeofExpression(t *testing.T) {
	if got := evalInt(t, "sizeof 5"); got == 0 {
		t.Error("sizeof 5 should not be zero")
	}
}

func TestArrayIndexing(t *testing.T) {
	toks, err := lexer.All("a[1]")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	reg := types.NewRegistry()
	interner := symtab.NewInterner()
	syms := symtab.New(interner)
	ev := &evalops.Evaluator{Reg: reg, RunMode: true}
	parser := New(toks, reg, syms, ev, nopCaller{}, map[string]*types.Type{})

	elemType := reg.Base(types.Int)
	arr := value.FromType(reg.ArrayOf(elemType, 3), true, nil, false)
	elem1, err := value.SliceMember(arr, elemType.Size, elemType)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	elem1.SetInt(42)
	syms.Define(syms.Intern("a"), arr)

	got, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Int() != 42 {
		t.Errorf("a[1] = %d, want 42", got.Int())
	}
}

func TestStructMemberAccess(t *testing.T) {
	toks, err := lexer.All("p.y")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	reg := types.NewRegistry()
	interner := symtab.NewInterner()
	syms := symtab.New(interner)
	ev := &evalops.Evaluator{Reg: reg, RunMode: true}
	parser := New(toks, reg, syms, ev, nopCaller{}, map[string]*types.Type{})

	point := reg.NewStruct("Point", false)
	if err := point.AddMember("x", reg.Base(types.Int)); err != nil {
		t.Fatalf("add x: %v", err)
	}
	if err := point.AddMember("y", reg.Base(types.Int)); err != nil {
		t.Fatalf("add y: %v", err)
	}
	p := value.FromType(point, true, nil, false)
	yMember, _ := point.Member("y")
	yView, err := value.SliceMember(p, yMember.Offset, yMember.Type)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	yView.SetInt(7)
	syms.Define(syms.Intern("p"), p)

	got, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Int() != 7 {
		t.Errorf("p.y = %d, want 7", got.Int())
	}
}

func TestDotThisResolvesImplicitReceiver(t *testing.T) {
	toks, err := lexer.All(".y")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	reg := types.NewRegistry()
	interner := symtab.NewInterner()
	syms := symtab.New(interner)
	ev := &evalops.Evaluator{Reg: reg, RunMode: true}
	parser := New(toks, reg, syms, ev, nopCaller{}, map[string]*types.Type{})

	point := reg.NewStruct("Point", false)
	if err := point.AddMember("x", reg.Base(types.Int)); err != nil {
		t.Fatalf("add x: %v", err)
	}
	if err := point.AddMember("y", reg.Base(types.Int)); err != nil {
		t.Fatalf("add y: %v", err)
	}
	receiver := value.FromType(point, true, nil, false)
	yMember, _ := point.Member("y")
	yView, err := value.SliceMember(receiver, yMember.Offset, yMember.Type)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	yView.SetInt(9)

	this := value.FromType(reg.PointerTo(point), false, nil, false)
	this.SetPointer(receiver, 0)
	syms.Define(syms.Intern("this"), this)

	got, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Int() != 9 {
		t.Errorf(".y = %d, want 9", got.Int())
	}
}

func TestDotThisOutsideMemberFunctionErrors(t *testing.T) {
	p, _, _ := newParser(t, ".y")
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected error using dot-this outside a member function body")
	}
}

func TestBareIdentifierFallsBackToThisMember(t *testing.T) {
	toks, err := lexer.All("bar")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	reg := types.NewRegistry()
	interner := symtab.NewInterner()
	syms := symtab.New(interner)
	ev := &evalops.Evaluator{Reg: reg, RunMode: true}
	parser := New(toks, reg, syms, ev, nopCaller{}, map[string]*types.Type{})

	foo := reg.NewStruct("Foo", false)
	if err := foo.AddMember("bar", reg.Base(types.Int)); err != nil {
		t.Fatalf("add bar: %v", err)
	}
	receiver := value.FromType(foo, true, nil, false)
	barMember, _ := foo.Member("bar")
	barView, err := value.SliceMember(receiver, barMember.Offset, barMember.Type)
	if err != nil {
		t.Fatalf("SliceMember: %v", err)
	}
	barView.SetInt(5)

	this := value.FromType(reg.PointerTo(foo), false, nil, false)
	this.SetPointer(receiver, 0)
	syms.Define(syms.Intern("this"), this)

	got, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Int() != 5 {
		t.Errorf("bar = %d, want 5 (the this-> field, not an unbound global)", got.Int())
	}
}

func TestUndeclaredIdentifierErrors(t *testing.T) {
	p, _, _ := newParser(t, "x + 1")
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected error for undeclared identifier")
	}
}

func TestFunctionCallDispatchesThroughCaller(t *testing.T) {
	toks, err := lexer.All("add(1, 2)")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	reg := types.NewRegistry()
	interner := symtab.NewInterner()
	syms := symtab.New(interner)
	ev := &evalops.Evaluator{Reg: reg, RunMode: true}

	caller := &recordingCaller{reg: reg}
	parser := New(toks, reg, syms, ev, caller, map[string]*types.Type{})

	got, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("add(1,2) = %d, want 3", got.Int())
	}
	if caller.calledName != "add" || len(caller.calledArgs) != 2 {
		t.Errorf("expected Call(\"add\", [1,2]), got %q %v", caller.calledName, caller.calledArgs)
	}
}

type recordingCaller struct {
	reg        *types.Registry
	calledName string
	calledArgs []*value.Value
}

func (c *recordingCaller) Call(name string, args []*value.Value) (*value.Value, error) {
	c.calledName = name
	c.calledArgs = args
	var sum int64
	for _, a := range args {
		sum += a.Int()
	}
	v := value.FromType(c.reg.Base(types.Int), false, nil, false)
	v.SetInt(sum)
	return v, nil
}

func (c *recordingCaller) CallMember(receiver *value.Value, memberName string, viaArrow bool, args []*value.Value) (*value.Value, error) {
	return nil, fmt.Errorf("unexpected member call %q", memberName)
}
