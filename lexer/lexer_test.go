package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(l *Lexer) []Token {
	var out []Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok == TokEOF {
			return out
		}
		// Primaries leave the cursor at their first byte; skip over the
		// lexeme the way the parser's oracle would.
		if tok == TokDig || tok == TokReg || tok == TokLit {
			pos := l.Pos()
			for pos < len(l.Text) && !isDelim(l.Text[pos]) {
				pos++
			}
			l.SetPos(pos)
		}
	}
}

func isDelim(c byte) bool {
	switch classify(c) {
	case TokReg, TokDig, TokDot, TokLit:
		return false
	}
	return true
}

func TestSingleCharOperators(t *testing.T) {
	l := New("+-*/%()?:,<>=!&|^~")
	want := []Token{
		TokPlus, TokMinus, TokTimes, TokDiv, TokMod, TokLpar, TokRpar,
		TokQColon, TokComma, TokLt, TokGe, TokNot, TokAnd, TokOr,
		TokXor, TokTilde, TokEOF,
	}
	assert.Equal(t, want, tokens(l))
}

func TestTwoCharOperators(t *testing.T) {
	tests := map[string]Token{
		"&&": TokAndAnd,
		"||": TokOrOr,
		"++": TokPlusPlus,
		"--": TokMinusMinus,
		"<<": TokLshift,
		">>": TokRshift,
		"**": TokPow,
		"==": TokEq,
		"!=": TokNeq,
		"<=": TokLe,
		">=": TokGe,
		"?:": TokQColon,
	}
	for text, want := range tests {
		l := New(text)
		assert.Equal(t, want, l.Next(), "text %q", text)
		assert.Equal(t, TokEOF, l.Next(), "text %q", text)
	}
}

// Compound assignment operators are left split: the parser peeks at the
// '=' itself.
func TestCompoundAssignLeftToParser(t *testing.T) {
	l := New("+=")
	assert.Equal(t, TokPlus, l.Next())
	assert.Equal(t, byte('='), l.Peek())
}

func TestWhitespaceSkipping(t *testing.T) {
	l := New("  1 \t+\n 2 ")
	assert.Equal(t, TokDig, l.Next())
	assert.Equal(t, 2, l.TokPos())
}

func TestPrimariesRewindCursor(t *testing.T) {
	l := New("abc + 1")
	require.Equal(t, TokReg, l.Next())
	assert.Equal(t, 0, l.Pos(), "identifier start must be re-readable")

	l = New("'x'")
	require.Equal(t, TokLit, l.Next())
	assert.Equal(t, 0, l.Pos())
}

func TestDotClassification(t *testing.T) {
	l := New(".5")
	assert.Equal(t, TokDig, l.Next())
	assert.Equal(t, 0, l.Pos())

	l = New(".x")
	assert.Equal(t, TokReg, l.Next())
	assert.Equal(t, 0, l.Pos())
}

func TestDecimalComma(t *testing.T) {
	l := New(",5")
	l.DeComma = true
	assert.Equal(t, TokDig, l.Next())
	assert.Equal(t, 0, l.Pos())

	l = New(",5")
	assert.Equal(t, TokComma, l.Next())

	l = New(",x")
	l.DeComma = true
	assert.Equal(t, TokComma, l.Next())
}

func TestEOFIsSticky(t *testing.T) {
	l := New("")
	assert.Equal(t, TokEOF, l.Next())
	assert.Equal(t, TokEOF, l.Next())
}

func TestHighBytesAreRegular(t *testing.T) {
	for _, c := range []byte{'{', '}', 0x80, 0xff, ';', '$', '"'} {
		assert.Equal(t, TokReg, classify(c), "byte %#x", c)
	}
	assert.Equal(t, TokOr, classify('|'))
	assert.Equal(t, TokXor, classify('^'))
	assert.Equal(t, TokTilde, classify('~'))
}

func TestPrecedenceTableShape(t *testing.T) {
	// Binding order from loosest to tightest matches the C hierarchy.
	order := []Token{
		TokComma, TokAssign, TokOrOr, TokAndAnd, TokOr, TokXor, TokAnd,
		TokEq, TokLt, TokLshift, TokPlus, TokTimes, TokPow,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].Prec(), order[i].Prec(),
			"%s must bind looser than %s", order[i-1], order[i])
	}
	// Right associativity where the language requires it.
	assert.True(t, TokPow.Is(RightAssoc))
	assert.True(t, TokAssign.Is(RightAssoc))
	// Sequence points where l-values must not leak across.
	for _, tok := range []Token{TokAndAnd, TokOrOr, TokQuest, TokQColon, TokComma} {
		assert.True(t, tok.Is(SeqPoint), "%s", tok)
	}
	// Operators that admit compound assignment.
	for _, tok := range []Token{TokPlus, TokMinus, TokTimes, TokDiv, TokMod,
		TokAnd, TokOr, TokXor, TokLshift, TokRshift} {
		assert.False(t, tok.Is(NoAssign), "%s", tok)
	}
	for _, tok := range []Token{TokEq, TokLt, TokPow, TokAndAnd} {
		assert.True(t, tok.Is(NoAssign), "%s", tok)
	}
}
