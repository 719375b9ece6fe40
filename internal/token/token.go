// Package token defines the lexical vocabulary of the picoc-go source
// language: token kinds, their printable names, and the Token value the
// lexer hands the rest of the interpreter.
package token

import "fmt"

// Kind identifies the category of a lexed token.
type Kind int

const (
	EOF Kind = iota // sentinel: end of input
	ILLEGAL

	// Literals
	IDENTIFIER
	INTEGER
	UNSIGNED_LIT
	FLOAT
	STRING
	CHAR_LIT

	// Keywords
	INT
	SHORT
	LONG
	CHAR
	UNSIGNED
	VOID
	FLOAT_KW
	DOUBLE
	IF
	ELSE
	WHILE
	DO
	RETURN
	STRUCT
	UNION
	ENUM
	TYPEDEF
	FOR
	SWITCH
	CASE
	DEFAULT
	BREAK
	CONTINUE
	GOTO
	SIZEOF
	STATIC
	CONST
	EXTERN
	VOLATILE

	// Paired delimiters
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET

	// Punctuation
	DOT        // .
	DOTDOT     // ..
	COLONCOLON // ::
	ARROW      // ->
	SEMICOLON
	COMMA
	COLON
	QUESTION

	// Arithmetic / bitwise operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP // & (bitwise-and / address-of, context dependent)
	PIPE
	CARET
	TILDE
	SHL
	SHR
	LOGICAL_AND
	LOGICAL_OR
	NOT

	PLUS_PLUS
	MINUS_MINUS

	// Assignment family (precedence class 2, right-to-left)
	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN
	AMP_ASSIGN
	PIPE_ASSIGN
	CARET_ASSIGN

	// Comparison
	EQUALS
	NOT_EQ
	LESS
	GREATER
	LESS_EQ
	GREATER_EQ
)

var names = [...]string{
	EOF:            "EOF",
	ILLEGAL:        "ILLEGAL",
	IDENTIFIER:     "IDENTIFIER",
	INTEGER:        "INTEGER",
	UNSIGNED_LIT:   "UNSIGNED_LIT",
	FLOAT:          "FLOAT",
	STRING:         "STRING",
	CHAR_LIT:       "CHAR_LIT",
	INT:            "int",
	SHORT:          "short",
	LONG:           "long",
	CHAR:           "char",
	UNSIGNED:       "unsigned",
	VOID:           "void",
	FLOAT_KW:       "float",
	DOUBLE:         "double",
	IF:             "if",
	ELSE:           "else",
	WHILE:          "while",
	DO:             "do",
	RETURN:         "return",
	STRUCT:         "struct",
	UNION:          "union",
	ENUM:           "enum",
	TYPEDEF:        "typedef",
	FOR:            "for",
	SWITCH:         "switch",
	CASE:           "case",
	DEFAULT:        "default",
	BREAK:          "break",
	CONTINUE:       "continue",
	GOTO:           "goto",
	SIZEOF:         "sizeof",
	STATIC:         "static",
	CONST:          "const",
	EXTERN:         "extern",
	VOLATILE:       "volatile",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	DOT:            "DOT",
	DOTDOT:         "DOTDOT",
	COLONCOLON:     "COLONCOLON",
	ARROW:          "ARROW",
	SEMICOLON:      "SEMICOLON",
	COMMA:          "COMMA",
	COLON:          "COLON",
	QUESTION:       "QUESTION",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	AMP:            "AMP",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	SHL:            "SHL",
	SHR:            "SHR",
	LOGICAL_AND:    "LOGICAL_AND",
	LOGICAL_OR:     "LOGICAL_OR",
	NOT:            "NOT",
	PLUS_PLUS:      "PLUS_PLUS",
	MINUS_MINUS:    "MINUS_MINUS",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	SHL_ASSIGN:     "SHL_ASSIGN",
	SHR_ASSIGN:     "SHR_ASSIGN",
	AMP_ASSIGN:     "AMP_ASSIGN",
	PIPE_ASSIGN:    "PIPE_ASSIGN",
	CARET_ASSIGN:   "CARET_ASSIGN",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(names) && names[k] != "" {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords maps source spellings to their keyword Kind.
var keywords = map[string]Kind{
	"int": INT, "short": SHORT, "long": LONG, "char": CHAR,
	"unsigned": UNSIGNED, "void": VOID, "float": FLOAT_KW, "double": DOUBLE,
	"if": IF, "else": ELSE, "while": WHILE, "do": DO, "return": RETURN,
	"struct": STRUCT, "union": UNION, "enum": ENUM, "typedef": TYPEDEF,
	"for": FOR, "switch": SWITCH, "case": CASE, "default": DEFAULT,
	"break": BREAK, "continue": CONTINUE, "goto": GOTO, "sizeof": SIZEOF,
	"static": STATIC, "const": CONST, "extern": EXTERN, "volatile": VOLATILE,
}

// Lookup returns the keyword Kind for word, or (IDENTIFIER, false) if word
// is not a reserved word.
func Lookup(word string) (Kind, bool) {
	if k, ok := keywords[word]; ok {
		return k, true
	}
	return IDENTIFIER, false
}

// IsTypeKeyword reports whether k introduces a type in declaration position.
func IsTypeKeyword(k Kind) bool {
	switch k {
	case INT, SHORT, LONG, CHAR, UNSIGNED, VOID, FLOAT_KW, DOUBLE, STRUCT, UNION, ENUM:
		return true
	}
	return false
}

// Token is a single lexical unit produced by the lexer.
type Token struct {
	Kind   Kind
	Lexeme string // exact source text (identifiers, literals)
	Line   int    // 1-based source line
	Column int    // 1-based source column

	IntVal     int64
	UintVal    uint64
	FloatVal   float64
	IsUnsigned bool
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-10q line %d:%d", t.Kind, t.Lexeme, t.Line, t.Column)
}
