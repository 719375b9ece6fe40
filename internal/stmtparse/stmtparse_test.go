package stmtparse

import (
	"testing"

	"github.com/robinrowe/picoc/internal/call"
	"github.com/robinrowe/picoc/internal/engine"
	"github.com/robinrowe/picoc/internal/lexer"
	"github.com/robinrowe/picoc/internal/types"
)

// newEngine builds an Engine with its statement executor wired back to
// itself, the same two-step "build the aggregate, then wire its seam"
// pattern engine_test.go uses with a recordingExecutor.
func newEngine() *engine.Engine {
	e := engine.New(64 * 1024)
	e.Executor = &Executor{Engine: e, Types: map[string]*types.Type{}}
	return e
}

// run lexes and executes src as a top-level program against a fresh
// engine, returning the engine for assertions against its globals.
func run(t *testing.T, src string) *engine.Engine {
	t.Helper()
	toks, err := lexer.All(src)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	e := newEngine()
	typeNames := e.Executor.(*Executor).Types
	p := New(toks, e, typeNames)
	if err := p.Run(); err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
	return e
}

func globalInt(t *testing.T, e *engine.Engine, name string) int64 {
	t.Helper()
	v, ok := e.Globals.Lookup(e.Globals.Intern(name))
	if !ok {
		t.Fatalf("global %q not found", name)
	}
	return v.Int()
}

func TestVarDeclarationWithInitializer(t *testing.T) {
	e := run(t, "int x = 2 + 3;")
	if got := globalInt(t, e, "x"); got != 5 {
		t.Errorf("x = %d, want 5", got)
	}
}

func TestIfElseExecutesTakenBranchOnly(t *testing.T) {
	e := run(t, `
		int x = 0;
		if (1) { x = 10; } else { x = 20; }
	`)
	if got := globalInt(t, e, "x"); got != 10 {
		t.Errorf("x = %d, want 10", got)
	}

	e2 := run(t, `
		int x = 0;
		if (0) { x = 10; } else { x = 20; }
	`)
	if got := globalInt(t, e2, "x"); got != 20 {
		t.Errorf("x = %d, want 20", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	e := run(t, `
		int i = 0;
		int sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
	`)
	if got := globalInt(t, e, "sum"); got != 10 {
		t.Errorf("sum = %d, want 10", got)
	}
}

func TestDoWhileRunsBodyAtLeastOnce(t *testing.T) {
	e := run(t, `
		int i = 0;
		do {
			i = i + 1;
		} while (0);
	`)
	if got := globalInt(t, e, "i"); got != 1 {
		t.Errorf("i = %d, want 1", got)
	}
}

func TestForLoopBreakStopsEarly(t *testing.T) {
	e := run(t, `
		int i;
		int last = -1;
		for (i = 0; i < 10; i = i + 1) {
			if (i == 3) {
				break;
			}
			last = i;
		}
	`)
	if got := globalInt(t, e, "last"); got != 2 {
		t.Errorf("last = %d, want 2", got)
	}
}

func TestForLoopContinueSkipsRemainderOfBody(t *testing.T) {
	e := run(t, `
		int i;
		int sum = 0;
		for (i = 0; i < 5; i = i + 1) {
			if (i == 2) {
				continue;
			}
			sum = sum + i;
		}
	`)
	if got := globalInt(t, e, "sum"); got != 8 {
		t.Errorf("sum = %d, want 8 (0+1+3+4)", got)
	}
}

func TestSwitchFallsThroughToDefault(t *testing.T) {
	e := run(t, `
		int x = 7;
		int result = 0;
		switch (x) {
		case 1:
			result = 1;
			break;
		case 2:
			result = 2;
			break;
		default:
			result = 99;
			break;
		}
	`)
	if got := globalInt(t, e, "result"); got != 99 {
		t.Errorf("result = %d, want 99", got)
	}
}

func TestGotoSkipsForward(t *testing.T) {
	e := run(t, `
		int x = 1;
		goto skip;
		x = 2;
	skip:
		x = 3;
	`)
	if got := globalInt(t, e, "x"); got != 3 {
		t.Errorf("x = %d, want 3", got)
	}
}

func TestFunctionCallReturnsValue(t *testing.T) {
	e := run(t, `
		int square(int n) {
			return n * n;
		}
		int result = square(6);
	`)
	if got := globalInt(t, e, "result"); got != 36 {
		t.Errorf("result = %d, want 36", got)
	}
}

func TestForwardDeclaredFunctionIsCallableAfterItsDefinitionCompletesIt(t *testing.T) {
	e := run(t, `
		int addOne(int n);
		int addOne(int n) {
			return n + 1;
		}
		int result = addOne(41);
	`)
	if got := globalInt(t, e, "result"); got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
}

func TestStructMemberAccessAndAssignment(t *testing.T) {
	e := run(t, `
		struct Point {
			int x;
			int y;
		};
		struct Point p;
		p.x = 3;
		p.y = 4;
		int sum = p.x + p.y;
	`)
	if got := globalInt(t, e, "sum"); got != 7 {
		t.Errorf("sum = %d, want 7", got)
	}
}

func TestInlineMemberFunctionSetsFieldThroughThis(t *testing.T) {
	e := run(t, `
		struct Point {
			int x;
			int y;
			void SetX(int rhs) {
				this->x = rhs;
			}
		};
		struct Point p;
		p.SetX(9);
		int gotX = p.x;
	`)
	if got := globalInt(t, e, "gotX"); got != 9 {
		t.Errorf("gotX = %d, want 9", got)
	}
}

func TestOutOfLineMemberFunctionDefinition(t *testing.T) {
	e := run(t, `
		struct Foo {
			int bar;
			void BarScoper();
		};
		void Foo::BarScoper() {
			this->bar = 5;
		}
		struct Foo f;
		f.BarScoper();
		int gotBar = f.bar;
	`)
	if got := globalInt(t, e, "gotBar"); got != 5 {
		t.Errorf("gotBar = %d, want 5", got)
	}
}

func TestEnumDeclarationDefinesGlobalConstants(t *testing.T) {
	e := run(t, `
		enum Color { RED, GREEN, BLUE = 10, YELLOW };
		int sum = RED + GREEN + BLUE + YELLOW;
	`)
	if got := globalInt(t, e, "sum"); got != 0+1+10+11 {
		t.Errorf("sum = %d, want %d", got, 0+1+10+11)
	}
}

func TestTypedefIntroducesAliasUsableInDeclarations(t *testing.T) {
	e := run(t, `
		typedef int Meters;
		Meters distance = 42;
	`)
	if got := globalInt(t, e, "distance"); got != 42 {
		t.Errorf("distance = %d, want 42", got)
	}
}

func TestExecuteErrorsOnAFunctionWithNoParsedBody(t *testing.T) {
	e := engine.New(4096)
	e.Executor = &Executor{Engine: e, Types: map[string]*types.Type{}}
	fn := &call.Function{Name: "never defined"}
	frame := e.EnterFrame(fn.Name, nil)
	defer e.ExitFrame()
	if _, err := e.Executor.Execute(e, fn, frame, nil); err == nil {
		t.Fatal("expected an error for a function with no parsed body")
	}
}
