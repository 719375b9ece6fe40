package lexer

import (
	"testing"

	"github.com/robinrowe/picoc/internal/token"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	toks, err := All(src)
	if err != nil {
		t.Fatalf("All(%q) error: %v", src, err)
	}
	var ks []token.Kind
	for _, tok := range toks {
		ks = append(ks, tok.Kind)
	}
	return ks
}

func TestNextPunctuationAndOperators(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []token.Kind
	}{
		{"assign family", "= += -= *= /= %= <<= >>= &= |= ^=", []token.Kind{
			token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
			token.SLASH_ASSIGN, token.PERCENT_ASSIGN, token.SHL_ASSIGN, token.SHR_ASSIGN,
			token.AMP_ASSIGN, token.PIPE_ASSIGN, token.CARET_ASSIGN, token.EOF,
		}},
		{"member access", "a.b->c..d::e", []token.Kind{
			token.IDENTIFIER, token.DOT, token.IDENTIFIER, token.ARROW, token.IDENTIFIER,
			token.DOTDOT, token.IDENTIFIER, token.COLONCOLON, token.IDENTIFIER, token.EOF,
		}},
		{"increment/decrement", "i++ --j", []token.Kind{
			token.IDENTIFIER, token.PLUS_PLUS, token.MINUS_MINUS, token.IDENTIFIER, token.EOF,
		}},
		{"logical vs bitwise", "a && b || c & d | e ^ f", []token.Kind{
			token.IDENTIFIER, token.LOGICAL_AND, token.IDENTIFIER, token.LOGICAL_OR,
			token.IDENTIFIER, token.AMP, token.IDENTIFIER, token.PIPE, token.IDENTIFIER,
			token.CARET, token.IDENTIFIER, token.EOF,
		}},
		{"shifts vs relational", "a << b >> c <= d >= e", []token.Kind{
			token.IDENTIFIER, token.SHL, token.IDENTIFIER, token.SHR, token.IDENTIFIER,
			token.LESS_EQ, token.IDENTIFIER, token.GREATER_EQ, token.IDENTIFIER, token.EOF,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := kinds(t, tc.src)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(tc.want), tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("token %d: got %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNextKeywordsAndIdentifiers(t *testing.T) {
	toks, err := All("int x; unsigned long y; struct Point p;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{
		token.INT, token.IDENTIFIER, token.SEMICOLON,
		token.UNSIGNED, token.LONG, token.IDENTIFIER, token.SEMICOLON,
		token.STRUCT, token.IDENTIFIER, token.IDENTIFIER, token.SEMICOLON,
		token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, tok := range toks {
		if tok.Kind != want[i] {
			t.Errorf("token %d: got %v, want %v", i, tok.Kind, want[i])
		}
	}
}

func TestNextIntegerLiterals(t *testing.T) {
	toks, err := All("10 0x1F 42u 7U")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 5 { // 4 literals + EOF
		t.Fatalf("got %d tokens, want 5: %v", len(toks), toks)
	}
	if toks[0].Kind != token.INTEGER || toks[0].IntVal != 10 {
		t.Errorf("token 0: got %+v, want INTEGER 10", toks[0])
	}
	if toks[1].Kind != token.INTEGER || toks[1].IntVal != 31 {
		t.Errorf("token 1: got %+v, want INTEGER 31 (0x1F)", toks[1])
	}
	if toks[2].Kind != token.UNSIGNED_LIT || toks[2].UintVal != 42 || !toks[2].IsUnsigned {
		t.Errorf("token 2: got %+v, want UNSIGNED_LIT 42", toks[2])
	}
	if toks[3].Kind != token.UNSIGNED_LIT || toks[3].UintVal != 7 {
		t.Errorf("token 3: got %+v, want UNSIGNED_LIT 7", toks[3])
	}
}

func TestNextFloatLiterals(t *testing.T) {
	toks, err := All("3.14 0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != token.FLOAT || toks[0].FloatVal != 3.14 {
		t.Errorf("token 0: got %+v, want FLOAT 3.14", toks[0])
	}
	if toks[1].Kind != token.FLOAT || toks[1].FloatVal != 0.5 {
		t.Errorf("token 1: got %+v, want FLOAT 0.5", toks[1])
	}
}

func TestNextStringAndCharLiterals(t *testing.T) {
	toks, err := All(`"hello\nworld" 'a' '\n'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != token.STRING || toks[0].Lexeme != "hello\nworld" {
		t.Errorf("token 0: got %+v", toks[0])
	}
	if toks[1].Kind != token.CHAR_LIT || toks[1].IntVal != int64('a') {
		t.Errorf("token 1: got %+v", toks[1])
	}
	if toks[2].Kind != token.CHAR_LIT || toks[2].IntVal != int64('\n') {
		t.Errorf("token 2: got %+v", toks[2])
	}
}

func TestNextComments(t *testing.T) {
	toks, err := All("a // line comment\n /* block\ncomment */ b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []token.Kind{toks[0].Kind, toks[1].Kind, toks[2].Kind}
	want := []token.Kind{token.IDENTIFIER, token.IDENTIFIER, token.EOF}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextUnterminatedLiteralErrors(t *testing.T) {
	cases := []string{`"unterminated`, `/* unterminated`, `'x`}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			if _, err := All(src); err == nil {
				t.Errorf("All(%q): expected error, got nil", src)
			}
		})
	}
}

func TestMarkAndRewind(t *testing.T) {
	l := New("abc def")
	first, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mark := l.Mark()
	second, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Rewind(mark)
	replay, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replay != second {
		t.Errorf("after rewind got %+v, want %+v", replay, second)
	}
	if first.Lexeme != "abc" || second.Lexeme != "def" {
		t.Errorf("unexpected lexemes: first=%q second=%q", first.Lexeme, second.Lexeme)
	}
}
