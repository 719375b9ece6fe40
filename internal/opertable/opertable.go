// Package opertable is the static map from token kind to {prefix, infix,
// postfix} precedence and associativity, the table the expression driver
// (C9) consults on every token it sees.
//
// Grounded on picoc's expression.c OperatorPrecedence[] array for the
// numeric precedence levels and the BracketPrecedence/DEEP_PRECEDENCE
// scaling rule; transcribed against the canonical numbers spec.md §4.5
// states explicitly (comma 0, assignment 2, ?: 3, || 4, && 5, | 6, ^ 7,
// & 8, ==/!= 9, relational 10, shifts 11, additive 12, multiplicative 13,
// unary prefix 14, postfix/member/index 15) rather than re-deriving them
// from the C array's raw integers, which use a different base.
package opertable

import "github.com/robinrowe/picoc/internal/token"

// BracketStep is the per-nesting-level precedence offset applied inside
// parentheses, so an operator inside one more level of brackets always
// binds tighter than any operator outside it.
const BracketStep = 20

// DeepPrecedence is the sentinel meaning "never ignore". exprparse starts
// its collapse ignore level here and never lowers it: && / || skip their
// right operand by switching the evaluator's RunMode off instead.
const DeepPrecedence = BracketStep * 1000

// Entry records the precedence of a token in each syntactic position it
// can appear in. Zero means "not valid in that position".
type Entry struct {
	Prefix  int
	Infix   int
	Postfix int
}

// assignmentPrecedence is level 2: assignments are right-to-left.
const assignmentPrecedence = 2

// unaryPrefixPrecedence is level 14: the only other right-to-left level.
const unaryPrefixPrecedence = 14

var table = map[token.Kind]Entry{
	token.COMMA: {Infix: 0},

	token.ASSIGN:         {Infix: assignmentPrecedence},
	token.PLUS_ASSIGN:    {Infix: assignmentPrecedence},
	token.MINUS_ASSIGN:   {Infix: assignmentPrecedence},
	token.STAR_ASSIGN:    {Infix: assignmentPrecedence},
	token.SLASH_ASSIGN:   {Infix: assignmentPrecedence},
	token.PERCENT_ASSIGN: {Infix: assignmentPrecedence},
	token.SHL_ASSIGN:     {Infix: assignmentPrecedence},
	token.SHR_ASSIGN:     {Infix: assignmentPrecedence},
	token.AMP_ASSIGN:     {Infix: assignmentPrecedence},
	token.PIPE_ASSIGN:    {Infix: assignmentPrecedence},
	token.CARET_ASSIGN:   {Infix: assignmentPrecedence},

	token.QUESTION: {Infix: 3},
	token.COLON:    {Infix: 3}, // second half of ?: shares its level

	token.LOGICAL_OR:  {Infix: 4},
	token.LOGICAL_AND: {Infix: 5},
	token.PIPE:        {Infix: 6},
	token.CARET:       {Infix: 7},
	token.AMP:         {Prefix: unaryPrefixPrecedence, Infix: 8}, // bitwise-and / address-of

	token.EQUALS: {Infix: 9},
	token.NOT_EQ: {Infix: 9},

	token.LESS:       {Infix: 10},
	token.GREATER:    {Infix: 10},
	token.LESS_EQ:    {Infix: 10},
	token.GREATER_EQ: {Infix: 10},

	token.SHL: {Infix: 11},
	token.SHR: {Infix: 11},

	token.PLUS:  {Prefix: unaryPrefixPrecedence, Infix: 12},
	token.MINUS: {Prefix: unaryPrefixPrecedence, Infix: 12},

	token.STAR:    {Prefix: unaryPrefixPrecedence, Infix: 13}, // deref / multiply
	token.SLASH:   {Infix: 13},
	token.PERCENT: {Infix: 13},

	token.NOT:         {Prefix: unaryPrefixPrecedence},
	token.TILDE:       {Prefix: unaryPrefixPrecedence},
	token.PLUS_PLUS:   {Prefix: unaryPrefixPrecedence, Postfix: 15},
	token.MINUS_MINUS: {Prefix: unaryPrefixPrecedence, Postfix: 15},

	token.LPAREN:      {Prefix: unaryPrefixPrecedence, Postfix: 15}, // ( expr ) prefix, call() postfix
	token.RPAREN:      {Postfix: 15},
	token.LBRACKET:    {Postfix: 15},
	token.DOT:         {Infix: 15},
	token.ARROW:       {Infix: 15},
	token.DOTDOT:      {Prefix: 15, Infix: 15},
	token.COLONCOLON:  {Prefix: 15, Infix: 15},
}

// Lookup returns the precedence entry for k, or the zero Entry (valid in
// no position) if k never appears as an operator.
func Lookup(k token.Kind) Entry {
	return table[k]
}

// IsLeftToRight reports whether an infix operator at this precedence
// level associates left-to-right. Per spec.md §4.5: left-to-right unless
// precedence is the assignment level (2) or the unary-prefix level (14).
func IsLeftToRight(precedence int) bool {
	return precedence != assignmentPrecedence && precedence != unaryPrefixPrecedence
}

// BracketPrecedence scales an outer precedence offset by BracketStep for
// one additional level of paren/bracket nesting.
func BracketPrecedence(depth int) int {
	return depth * BracketStep
}
