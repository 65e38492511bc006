package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := New(DivZero, "1/0", -1, 0)
	assert.True(t, stderrors.Is(err, Sentinel(DivZero)))
	assert.False(t, stderrors.Is(err, Sentinel(SynBad)))
}

func TestFatalBit(t *testing.T) {
	assert.False(t, New(SynBad, "x", 0, 0).Fatal)
	assert.True(t, New(SynBad, "x", 0, 1).Fatal)
	assert.True(t, New(SynBad, "x", 0, 2).Fatal)
	assert.False(t, New(SynBad, "x", 0, 4).Fatal)
}

func TestMessageRendering(t *testing.T) {
	err := New(Paren, "(1+2", 4, 0)
	assert.Contains(t, err.Error(), Paren.Message())
	assert.Contains(t, err.Error(), "(1+2")

	rt := NewRuntime(Recursive, "x", 0)
	assert.Contains(t, rt.Error(), Recursive.Message())
}
