// Command picoc is the CLI entry point for the embeddable interpreter:
// flag parsing, file loading, and the run loop tying the preprocessor,
// lexer, statement parser, and engine together.
//
// Grounded on the teacher's cmd/ccompiler/main.go for the overall
// read-file -> preprocess -> lex -> run pipeline shape (it stops at
// codegen since the teacher targets a CPU backend; this command runs the
// program directly instead) and cmd/console/main.go for reading a
// filename positional argument plus boolean flags from the command line.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/robinrowe/picoc/internal/engine"
	"github.com/robinrowe/picoc/internal/lexer"
	"github.com/robinrowe/picoc/internal/preprocess"
	"github.com/robinrowe/picoc/internal/stdlib"
	"github.com/robinrowe/picoc/internal/stmtparse"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// includeList collects repeated -include flags, gcc-style: each is
// preprocessed against its own directory and prepended to the main
// source before the main file is itself preprocessed.
type includeList []string

func (l *includeList) String() string { return fmt.Sprint([]string(*l)) }
func (l *includeList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("picoc", flag.ContinueOnError)
	trace := fs.Bool("trace", false, "print a full error stack trace (via github.com/pkg/errors) instead of a one-line diagnostic")
	skipOnly := fs.Bool("skip-only", false, "parse and syntax-check the program in skip mode without executing side effects")
	arenaStats := fs.Bool("arena-stats", false, "print the arena's stack/detached high-water mark after running")
	stackSize := fs.Int("stack-size", 1<<20, "arena stack size in bytes")
	var includes includeList
	fs.Var(&includes, "include", "preprocess and prepend this file before the main source (may be repeated)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: picoc [flags] <source-file>")
		fs.PrintDefaults()
		return 2
	}

	srcPath := fs.Arg(0)
	result, eng, err := runFile(srcPath, includes, *skipOnly, *stackSize)
	if err != nil {
		reportError(err, *trace)
		return 1
	}

	if *arenaStats {
		fmt.Fprintln(os.Stderr, stdlib.ArenaStats(eng.Arena.StackBytes(), eng.Arena.StackCap(), eng.Arena.DetachedBytes()))
	}

	if result != nil && result.Type.Base.IsInteger() {
		return int(result.Int())
	}
	return 0
}

// runFile reads, preprocesses, lexes, and runs srcPath against a fresh
// Engine, returning main()'s result value if the program defines one.
func runFile(srcPath string, includes includeList, skipOnly bool, stackSize int) (*value.Value, *engine.Engine, error) {
	src, err := loadSource(srcPath, includes)
	if err != nil {
		return nil, nil, err
	}

	toks, err := lexer.All(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "lex")
	}

	eng := engine.New(stackSize)
	typeNames := map[string]*types.Type{}
	eng.Executor = &stmtparse.Executor{Engine: eng, Types: typeNames}

	rt := stdlib.NewRuntime(eng.Types)
	stdlib.Register(eng.Calls, rt)

	p := stmtparse.New(toks, eng, typeNames)
	if skipOnly {
		p.SetSkipOnly(true)
	}

	result, err := eng.Run(func() (*value.Value, error) {
		if err := p.Run(); err != nil {
			return nil, errors.WithMessage(err, "running "+srcPath)
		}
		if skipOnly {
			return nil, nil
		}
		if _, ok := eng.Calls.Lookup("main"); ok {
			return eng.Calls.Call("main", nil)
		}
		return nil, nil
	})
	if err != nil {
		return nil, eng, err
	}
	return result, eng, nil
}

// loadSource reads srcPath plus any -include files, preprocessing each
// against its own directory and concatenating include content ahead of
// the main file, then preprocesses the combined source against
// srcPath's directory so that "local.h" includes inside the main file
// resolve relative to it.
func loadSource(srcPath string, includes includeList) (string, error) {
	var combined string
	for _, inc := range includes {
		data, err := os.ReadFile(inc)
		if err != nil {
			return "", errors.Wrapf(err, "reading -include file %q", inc)
		}
		pre, err := preprocess.Preprocess(string(data), filepath.Dir(inc))
		if err != nil {
			return "", errors.Wrapf(err, "preprocessing -include file %q", inc)
		}
		combined += pre + "\n"
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", errors.Wrapf(err, "reading %q", srcPath)
	}
	combined += string(data)

	pre, err := preprocess.Preprocess(combined, filepath.Dir(srcPath))
	if err != nil {
		return "", errors.Wrap(err, "preprocess")
	}
	return pre, nil
}

// reportError prints a one-line diagnostic, per spec.md §7's "a
// one-line diagnostic identifying the file, line, and column", or the
// full %+v stack trace pkg/errors attaches when -trace is set.
func reportError(err error, trace bool) {
	if trace {
		fmt.Fprintf(os.Stderr, "picoc: %+v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "picoc: %v\n", err)
}
