package preprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSimpleDefineSubstitution(t *testing.T) {
	out, err := Preprocess("#define N 10\nint x = N;", ".")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(out, "int x = 10;") {
		t.Errorf("expected N substituted with 10, got %q", out)
	}
}

func TestFunctionLikeMacroExpansion(t *testing.T) {
	out, err := Preprocess("#define SQ(x) ((x)*(x))\nint y = SQ(3);", ".")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(out, "((3)*(3))") {
		t.Errorf("expected SQ(3) expanded, got %q", out)
	}
}

func TestDefineDoesNotSubstituteInsideStringLiteral(t *testing.T) {
	out, err := Preprocess(`#define N 10
char *s = "N";`, ".")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(out, `"N"`) {
		t.Errorf("expected string literal left untouched, got %q", out)
	}
}

func TestSystemIncludeReadsEmbeddedHeader(t *testing.T) {
	out, err := Preprocess(`#include <stdio.h>
int main() { return 0; }`, ".")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(out, "printf") {
		t.Errorf("expected stdio.h contents inlined, got %q", out)
	}
}

func TestUnknownSystemIncludeErrors(t *testing.T) {
	_, err := Preprocess("#include <nonexistent.h>\n", ".")
	if err == nil {
		t.Fatal("expected error for an unknown system header")
	}
}

func TestUserIncludeReadsFromFilesystem(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "util.h"), []byte("int helper();\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	out, err := Preprocess(`#include "util.h"
int main() { return helper(); }`, dir)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(out, "int helper();") {
		t.Errorf("expected util.h contents inlined, got %q", out)
	}
}

func TestCircularUserIncludeErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.h"), []byte(`#include "b.h"
`), 0o644); err != nil {
		t.Fatalf("write a.h: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.h"), []byte(`#include "a.h"
`), 0o644); err != nil {
		t.Fatalf("write b.h: %v", err)
	}
	_, err := Preprocess(`#include "a.h"
`, dir)
	if err == nil {
		t.Fatal("expected circular include error")
	}
}

func TestDiamondUserIncludeIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.h"), []byte("int shared;\n"), 0o644); err != nil {
		t.Fatalf("write base.h: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "left.h"), []byte(`#include "base.h"
`), 0o644); err != nil {
		t.Fatalf("write left.h: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "right.h"), []byte(`#include "base.h"
`), 0o644); err != nil {
		t.Fatalf("write right.h: %v", err)
	}
	out, err := Preprocess(`#include "left.h"
#include "right.h"
`, dir)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if strings.Count(out, "int shared;") != 1 {
		t.Errorf("expected base.h inlined exactly once via the diamond, got %q", out)
	}
}

func TestFunctionLikeMacroNotFollowedByParenIsLeftAlone(t *testing.T) {
	out, err := Preprocess("#define MAX(a,b) ((a)>(b)?(a):(b))\nint (*MAX);", ".")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(out, "int (*MAX);") {
		t.Errorf("expected bare MAX identifier left unexpanded, got %q", out)
	}
}
