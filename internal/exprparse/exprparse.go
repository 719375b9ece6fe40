// Package exprparse is the expression driver (C9): a precedence-climbing
// parser that evaluates directly against C6's stack/collapse routine and
// C8's operator evaluators as it walks the token stream, never building
// an intermediate tree. Short-circuit && / || and the non-taken ternary
// branch are handled by toggling the shared evaluator's RunMode off while
// the skipped tokens are consumed, so "not evaluating" and "not parsing"
// collapse into the same mechanism C8 already exposes for skip mode.
//
// Grounded on picoc's expression.c (ExpressionParse): the bracket-
// precedence nesting trick, the two-consecutive-prefix-operator
// adjustment, and the cast-lookahead-at-open-paren rule all come from
// that driver, adapted from its explicit state machine into recursive
// descent over the same opertable precedence numbers.
package exprparse

import (
	"fmt"

	"github.com/robinrowe/picoc/internal/arena"
	"github.com/robinrowe/picoc/internal/coerce"
	"github.com/robinrowe/picoc/internal/evalops"
	"github.com/robinrowe/picoc/internal/exprstack"
	"github.com/robinrowe/picoc/internal/opertable"
	"github.com/robinrowe/picoc/internal/symtab"
	"github.com/robinrowe/picoc/internal/token"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// assignPrecedence mirrors opertable's unexported assignment level;
// spec.md §4.5 fixes it at 2, so a literal here tracks the same contract
// opertable.IsLeftToRight already depends on.
const assignPrecedence = 2

// Caller resolves a plain function call or a member-function call that
// exprparse encounters while walking postfix chains. C10 implements this
// interface; exprparse only needs the seam.
type Caller interface {
	Call(name string, args []*value.Value) (*value.Value, error)
	CallMember(receiver *value.Value, memberName string, viaArrow bool, args []*value.Value) (*value.Value, error)
}

// Parser walks one token stream, evaluating as it goes.
type Parser struct {
	toks  []token.Token
	pos   int
	reg   *types.Registry
	syms  *symtab.Table
	ev    *evalops.Evaluator
	call  Caller
	types map[string]*types.Type // typedef'd and struct/union names in scope

	// arena backs every literal/cast/sizeof temporary this parser
	// constructs directly (see newValue), same as evalops.Evaluator.Arena
	// backs the operator evaluators' results. May be nil.
	arena *arena.Arena
}

// New creates a parser over toks. typeNames lets casts and sizeof name
// struct/union/typedef types by identifier; callers populate it as
// declarations are processed.
func New(toks []token.Token, reg *types.Registry, syms *symtab.Table, ev *evalops.Evaluator, call Caller, typeNames map[string]*types.Type) *Parser {
	return &Parser{toks: toks, reg: reg, syms: syms, ev: ev, call: call, types: typeNames}
}

// NewWithArena is New, additionally wiring a so literal and cast
// temporaries this parser constructs directly are bump-allocated from the
// same arena the engine's call frames push/pop against.
func NewWithArena(toks []token.Token, reg *types.Registry, syms *symtab.Table, ev *evalops.Evaluator, call Caller, typeNames map[string]*types.Type, a *arena.Arena) *Parser {
	p := New(toks, reg, syms, ev, call, typeNames)
	p.arena = a
	return p
}

// newValue allocates a fresh non-lvalue temporary of typ through p.arena.
func (p *Parser) newValue(typ *types.Type) *value.Value {
	return value.FromArena(p.arena, typ, false, nil, false)
}

// Parse evaluates one full expression, including the top-level comma
// operator, and returns its value.
func (p *Parser) Parse() (*value.Value, error) {
	v, _, err := p.parseComma()
	return v, err
}

// Pos returns the number of tokens consumed so far, so a caller that
// handed this parser a sub-slice of a larger stream (internal/stmtparse,
// interleaving statement and expression parsing over one token stream)
// knows how far to advance its own cursor.
func (p *Parser) Pos() int { return p.pos }

// ParseArgList parses a parenthesized, comma-separated argument list
// whose elements are assignment-expressions (so a bare comma inside an
// argument separates arguments rather than chaining the comma operator).
func (p *Parser) ParseArgList() ([]*value.Value, error) {
	return p.parseArgList()
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	t := p.cur()
	if t.Kind != k {
		return token.Token{}, fmt.Errorf("exprparse: expected %v, got %v at line %d", k, t.Kind, t.Line)
	}
	p.advance()
	return t, nil
}

func (p *Parser) parseComma() (*value.Value, bool, error) {
	v, isLV, err := p.parseAssign()
	if err != nil {
		return nil, false, err
	}
	for p.cur().Kind == token.COMMA {
		p.advance()
		v, isLV, err = p.parseAssign()
		if err != nil {
			return nil, false, err
		}
	}
	return v, isLV, nil
}

func isAssignToken(k token.Kind) bool {
	switch k {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
		token.SLASH_ASSIGN, token.PERCENT_ASSIGN, token.SHL_ASSIGN, token.SHR_ASSIGN,
		token.AMP_ASSIGN, token.PIPE_ASSIGN, token.CARET_ASSIGN:
		return true
	}
	return false
}

// parseAssign implements the right-to-left assignment level by recursing
// into itself on the right-hand side.
func (p *Parser) parseAssign() (*value.Value, bool, error) {
	left, leftLV, err := p.parseTernary()
	if err != nil {
		return nil, false, err
	}
	if !isAssignToken(p.cur().Kind) {
		return left, leftLV, nil
	}
	op := p.advance().Kind
	right, _, err := p.parseAssign()
	if err != nil {
		return nil, false, err
	}
	result, err := p.ev.Infix(op, left, right)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

func isTruthy(v *value.Value) bool {
	switch v.Type.Base {
	case types.FP:
		return v.FP() != 0
	case types.Pointer:
		return !v.IsNullPointer()
	default:
		return coerce.Int(v) != 0
	}
}

// parseTernary handles `cond ? then : else`, evaluating only the taken
// branch: the untaken branch's tokens are still walked (so parsing stays
// in sync) but with the evaluator's RunMode switched off, the same skip
// mechanism C8 uses for a dead code path. The two halves are combined
// through evalops.Ternary/Colon rather than plain Go branching, so the
// void-sentinel split spec.md §4.8/§9 describes for `?`/`:` is the actual
// mechanism selecting between the two branch values, not just a comment.
func (p *Parser) parseTernary() (*value.Value, bool, error) {
	cond, condLV, err := p.parseBinary(4) // above ?: (3) and assignment (2)
	if err != nil {
		return nil, false, err
	}
	if p.cur().Kind != token.QUESTION {
		return cond, condLV, nil
	}
	if !cond.Type.Base.IsNumeric() && cond.Type.Base != types.Pointer {
		return nil, false, fmt.Errorf("exprparse: first argument to '?' should be a number")
	}
	p.advance()
	truth := isTruthy(cond)

	var thenVal *value.Value
	if truth {
		thenVal, _, err = p.parseAssign()
	} else {
		thenVal, err = p.parseSkipped(p.parseAssignValue)
	}
	if err != nil {
		return nil, false, err
	}
	question, err := p.ev.Ternary(thenVal, cond)
	if err != nil {
		return nil, false, err
	}
	if _, err = p.expect(token.COLON); err != nil {
		return nil, false, err
	}

	var elseVal *value.Value
	if truth {
		elseVal, err = p.parseSkipped(p.parseTernaryValue)
	} else {
		elseVal, _, err = p.parseTernary()
	}
	if err != nil {
		return nil, false, err
	}
	result, err := p.ev.Colon(elseVal, question)
	return result, false, err
}

func (p *Parser) parseAssignValue() (*value.Value, error) {
	v, _, err := p.parseAssign()
	return v, err
}

func (p *Parser) parseTernaryValue() (*value.Value, error) {
	v, _, err := p.parseTernary()
	return v, err
}

// parseSkipped runs fn with RunMode off, restoring it afterward.
func (p *Parser) parseSkipped(fn func() (*value.Value, error)) (*value.Value, error) {
	saved := p.ev.RunMode
	p.ev.RunMode = false
	v, err := fn()
	p.ev.RunMode = saved
	return v, err
}

// parseBinary implements every infix precedence level at or above
// minPrec by eagerly collapsing the shared operator/value stack before
// each new operator is pushed, equivalent to precedence climbing: an
// operator binding at least as tightly as the one about to be pushed is
// always reduced first, so `2 + 3 * 4` defers `+` until `*` has run.
func (p *Parser) parseBinary(minPrec int) (*value.Value, bool, error) {
	leftVal, leftLV, err := p.parseUnary()
	if err != nil {
		return nil, false, err
	}

	stack := &exprstack.Stack{}
	stack.PushValue(leftVal, leftLV)
	ignorePrec := opertable.DeepPrecedence

	for {
		entry := opertable.Lookup(p.cur().Kind)
		if entry.Infix == 0 || entry.Infix < minPrec || entry.Infix == assignPrecedence {
			break
		}
		op := p.cur().Kind
		prec := entry.Infix
		p.advance()

		// Collapse any pending same-or-tighter operator before inspecting
		// the left operand's truth value: in a chain like `0 && 1 && f()`
		// the left operand of this && is the still-pending `0 && 1`
		// subexpression, not whatever raw value last landed on top of the
		// stack. Reducing first makes stack.Top() the actual left-hand
		// result, so short-circuiting composes correctly across a run of
		// same-precedence && / ||.
		reduceLevel := prec
		if !opertable.IsLeftToRight(prec) {
			reduceLevel = prec + 1
		}
		if err := stack.Collapse(reduceLevel, &ignorePrec, p.ev); err != nil {
			return nil, false, err
		}

		skipRHS := false
		if (op == token.LOGICAL_AND || op == token.LOGICAL_OR) && stack.Top() != nil && stack.Top().Order == exprstack.OrderNone {
			truth := isTruthy(stack.Top().Value)
			if op == token.LOGICAL_AND && !truth {
				skipRHS = true
			}
			if op == token.LOGICAL_OR && truth {
				skipRHS = true
			}
		}

		if err := stack.PushOperator(exprstack.OrderInfix, op, prec); err != nil {
			return nil, false, err
		}

		var rightVal *value.Value
		var rightLV bool
		if skipRHS {
			// The whole right operand, including any tighter-binding
			// operators after its first term, is walked with RunMode off.
			rightVal, err = p.parseSkipped(func() (*value.Value, error) {
				v, _, err := p.parseBinary(prec + 1)
				return v, err
			})
		} else {
			rightVal, rightLV, err = p.parseUnary()
		}
		if err != nil {
			return nil, false, err
		}
		stack.PushValue(rightVal, rightLV)
	}

	if err := stack.Collapse(minPrec, &ignorePrec, p.ev); err != nil {
		return nil, false, err
	}
	return stack.PopValue()
}

// parseUnary parses one prefix chain over a postfix chain over a
// primary: `- x++` is `-(x++)` since postfix binds tighter than prefix.
func (p *Parser) parseUnary() (*value.Value, bool, error) {
	tok := p.cur()

	switch tok.Kind {
	case token.LPAREN:
		return p.parseParenOrCast()
	case token.DOTDOT, token.COLONCOLON:
		p.advance()
		return p.parseGlobalRef()
	case token.DOT:
		p.advance()
		return p.parseDotThis()
	}

	entry := opertable.Lookup(tok.Kind)
	if entry.Prefix != 0 {
		p.advance()
		if tok.Kind == token.SIZEOF {
			return p.parseSizeof()
		}
		operand, _, err := p.parseUnary()
		if err != nil {
			return nil, false, err
		}
		result, err := p.ev.Prefix(tok.Kind, operand)
		if err != nil {
			return nil, false, err
		}
		return result, false, nil
	}

	primary, isLV, err := p.parsePrimary()
	if err != nil {
		return nil, false, err
	}
	return p.parsePostfixChain(primary, isLV)
}

// parseSizeof handles both `sizeof expr` and `sizeof(TypeName)`.
func (p *Parser) parseSizeof() (*value.Value, bool, error) {
	if p.cur().Kind == token.LPAREN {
		save := p.pos
		p.advance()
		if typ, ok := p.tryParseTypeName(); ok {
			if _, err := p.expect(token.RPAREN); err == nil {
				sizeofOperand := p.newValue(typ)
				result, evalErr := p.ev.Prefix(token.SIZEOF, sizeofOperand)
				return result, false, evalErr
			}
		}
		p.pos = save
	}
	operand, _, err := p.parseUnary()
	if err != nil {
		return nil, false, err
	}
	result, err := p.ev.Prefix(token.SIZEOF, operand)
	return result, false, err
}

func (p *Parser) parseGlobalRef() (*value.Value, bool, error) {
	nameTok, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, false, err
	}
	n := p.syms.Intern(nameTok.Lexeme)
	v, ok := p.syms.LookupGlobal(n)
	if !ok {
		return nil, false, fmt.Errorf("exprparse: undeclared global %q", nameTok.Lexeme)
	}
	return p.parsePostfixChain(v, v.IsLValue)
}

// lookupThisMember is the implicit-receiver fallback test_scoper.c
// demonstrates: inside a member function body, a bare identifier that
// doesn't resolve to any declared local or global is tried once more as
// a field of `this` before being reported undeclared (`return bar;`
// inside `Foo::Bar()` returns the struct field, not a same-named
// global). Returns an error if there is no `this` bound or no such
// member, so the caller falls back to its normal undeclared-identifier
// error.
func (p *Parser) lookupThisMember(name string) (*value.Value, error) {
	thisVal, ok := p.syms.Lookup(p.syms.Intern("this"))
	if !ok {
		return nil, fmt.Errorf("exprparse: no this in scope")
	}
	return p.ev.Member(thisVal, name, true)
}

// parseDotThis handles the `.identifier` dot-this shorthand: prefix-
// position member access inside a member-function body that implicitly
// resolves through the pointer lvalue `this` bound by the call
// dispatcher's synthetic receiver. Per spec.md's "Scope-resolution
// prefixes" narration, `.identifier` used this way is shorthand for
// `this->identifier` — including the member-call form, `.method(...)`
// for `this->method(...)`.
func (p *Parser) parseDotThis() (*value.Value, bool, error) {
	nameTok, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, false, err
	}
	thisName := p.syms.Intern("this")
	thisVal, ok := p.syms.Lookup(thisName)
	if !ok {
		return nil, false, fmt.Errorf("exprparse: \".%s\" used outside a member function body", nameTok.Lexeme)
	}
	if p.cur().Kind == token.LPAREN {
		args, err := p.parseArgList()
		if err != nil {
			return nil, false, err
		}
		res, err := p.call.CallMember(thisVal, nameTok.Lexeme, true, args)
		if err != nil {
			return nil, false, err
		}
		return p.parsePostfixChain(res, false)
	}
	res, err := p.ev.Member(thisVal, nameTok.Lexeme, true)
	if err != nil {
		return nil, false, err
	}
	return p.parsePostfixChain(res, res.IsLValue)
}

func (p *Parser) parseParenOrCast() (*value.Value, bool, error) {
	p.advance() // consume '('
	save := p.pos
	if typ, ok := p.tryParseTypeName(); ok {
		if _, err := p.expect(token.RPAREN); err == nil {
			operand, _, err := p.parseUnary()
			if err != nil {
				return nil, false, err
			}
			result, err := p.applyCast(typ, operand)
			return result, false, err
		}
	}
	p.pos = save
	inner, isLV, err := p.parseComma()
	if err != nil {
		return nil, false, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, false, err
	}
	return p.parsePostfixChain(inner, isLV)
}

func (p *Parser) applyCast(typ *types.Type, src *value.Value) (*value.Value, error) {
	dest := p.newValue(typ)
	if err := coerce.Assign(dest, src, true, true); err != nil {
		return nil, fmt.Errorf("exprparse: cast to %s: %w", typ.Base, err)
	}
	return dest, nil
}

// tryParseTypeName attempts to consume a type name (built-in keyword
// combination, or a previously registered struct/union/typedef
// identifier) followed by zero or more `*` pointer levels. It rewinds on
// failure.
func (p *Parser) tryParseTypeName() (*types.Type, bool) {
	save := p.pos
	base, ok := p.parseBaseTypeName()
	if !ok {
		p.pos = save
		return nil, false
	}
	for p.cur().Kind == token.STAR {
		p.advance()
		base = p.reg.PointerTo(base)
	}
	return base, true
}

func (p *Parser) parseBaseTypeName() (*types.Type, bool) {
	tok := p.cur()
	switch tok.Kind {
	case token.VOID:
		p.advance()
		return p.reg.Base(types.Void), true
	case token.CHAR:
		p.advance()
		return p.reg.Base(types.Char), true
	case token.SHORT:
		p.advance()
		return p.reg.Base(types.Short), true
	case token.LONG:
		p.advance()
		return p.reg.Base(types.Long), true
	case token.FLOAT_KW, token.DOUBLE:
		p.advance()
		return p.reg.Base(types.FP), true
	case token.INT:
		p.advance()
		return p.reg.Base(types.Int), true
	case token.UNSIGNED:
		p.advance()
		switch p.cur().Kind {
		case token.CHAR:
			p.advance()
			return p.reg.Base(types.UnsignedChar), true
		case token.SHORT:
			p.advance()
			return p.reg.Base(types.UnsignedShort), true
		case token.LONG:
			p.advance()
			return p.reg.Base(types.UnsignedLong), true
		case token.INT:
			p.advance()
			return p.reg.Base(types.UnsignedInt), true
		default:
			return p.reg.Base(types.UnsignedInt), true
		}
	case token.IDENTIFIER:
		if t, ok := p.types[tok.Lexeme]; ok {
			p.advance()
			return t, true
		}
		return nil, false
	case token.STRUCT, token.UNION:
		p.advance()
		nameTok, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, false
		}
		if t, ok := p.types[nameTok.Lexeme]; ok {
			return t, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func (p *Parser) parsePrimary() (*value.Value, bool, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.INTEGER:
		p.advance()
		v := p.newValue(p.reg.Base(types.Int))
		v.SetInt(tok.IntVal)
		return v, false, nil

	case token.UNSIGNED_LIT:
		p.advance()
		v := p.newValue(p.reg.Base(types.UnsignedLong))
		v.SetInt(int64(tok.UintVal))
		return v, false, nil

	case token.FLOAT:
		p.advance()
		v := p.newValue(p.reg.Base(types.FP))
		v.SetFP(tok.FloatVal)
		return v, false, nil

	case token.CHAR_LIT:
		p.advance()
		v := p.newValue(p.reg.Base(types.Char))
		v.SetInt(tok.IntVal)
		return v, false, nil

	case token.STRING:
		p.advance()
		return p.pushStringLiteral(tok.Lexeme), false, nil

	case token.IDENTIFIER:
		name := tok.Lexeme
		p.advance()
		if p.cur().Kind == token.LPAREN {
			args, err := p.parseArgList()
			if err != nil {
				return nil, false, err
			}
			if !p.ev.RunMode {
				// Skip mode makes no call; a zero int stands in for the result.
				return p.newValue(p.reg.Base(types.Int)), false, nil
			}
			res, err := p.call.Call(name, args)
			return res, false, err
		}
		n := p.syms.Intern(name)
		v, ok := p.syms.Lookup(n)
		if !ok {
			if member, mErr := p.lookupThisMember(name); mErr == nil {
				return member, member.IsLValue, nil
			}
			if !p.ev.RunMode {
				return p.newValue(p.reg.Base(types.Int)), false, nil
			}
			return nil, false, fmt.Errorf("exprparse: undeclared identifier %q", name)
		}
		return v, v.IsLValue, nil

	default:
		return nil, false, fmt.Errorf("exprparse: unexpected token %v at line %d", tok.Kind, tok.Line)
	}
}

func (p *Parser) pushStringLiteral(s string) *value.Value {
	bytes := append([]byte(s), 0)
	arrType := p.reg.ArrayOf(p.reg.Base(types.Char), len(bytes))
	v := p.newValue(arrType)
	copy(v.Payload.Bytes, bytes)
	return v
}

func (p *Parser) parseArgList() ([]*value.Value, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []*value.Value
	if p.cur().Kind != token.RPAREN {
		for {
			argVal, _, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, argVal)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePostfixChain applies every trailing ++/--, index, and member
// operator to v, including the member-function-call-vs-plain-member-
// access lookahead: `.name(` dispatches through Caller, `.name` alone is
// a plain field read via C8's Member.
func (p *Parser) parsePostfixChain(v *value.Value, isLV bool) (*value.Value, bool, error) {
	for {
		switch p.cur().Kind {
		case token.PLUS_PLUS, token.MINUS_MINUS:
			op := p.advance().Kind
			res, err := p.ev.Postfix(op, v)
			if err != nil {
				return nil, false, err
			}
			v, isLV = res, false

		case token.LBRACKET:
			p.advance()
			idxVal, _, err := p.parseComma()
			if err != nil {
				return nil, false, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, false, err
			}
			res, err := p.ev.Index(v, idxVal)
			if err != nil {
				return nil, false, err
			}
			v, isLV = res, res.IsLValue

		case token.DOT, token.ARROW, token.DOTDOT, token.COLONCOLON:
			viaArrow := p.cur().Kind == token.ARROW
			p.advance()
			nameTok, err := p.expect(token.IDENTIFIER)
			if err != nil {
				return nil, false, err
			}
			if p.cur().Kind == token.LPAREN {
				args, err := p.parseArgList()
				if err != nil {
					return nil, false, err
				}
				res, err := p.call.CallMember(v, nameTok.Lexeme, viaArrow, args)
				if err != nil {
					return nil, false, err
				}
				v, isLV = res, false
			} else {
				res, err := p.ev.Member(v, nameTok.Lexeme, viaArrow)
				if err != nil {
					return nil, false, err
				}
				v, isLV = res, res.IsLValue
			}

		default:
			return v, isLV, nil
		}
	}
}
