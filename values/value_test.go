package values

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainCombine(t *testing.T) {
	assert.Equal(t, TypeInt, Combine(TypeInt, TypeInt))
	assert.Equal(t, TypeUint, Combine(TypeInt, TypeUint))
	assert.Equal(t, TypeFloat, Combine(TypeUint, TypeFloat))
	assert.Equal(t, TypeFloat, Combine(TypeFloat, TypeInt))
}

func TestBitsRoundTrip(t *testing.T) {
	for _, v := range []Value{
		NewInt(-42),
		NewInt(math.MaxInt64),
		NewUint(math.MaxUint64),
		NewFloat(3.5),
		NewFloat(math.Inf(-1)),
	} {
		assert.True(t, v.Equal(FromBits(v.Bits(), v.Type)), "%s", v)
	}
}

func TestConversions(t *testing.T) {
	u := NewUint(math.MaxUint64)
	assert.Equal(t, int64(-1), u.Int())
	assert.Equal(t, uint64(math.MaxUint64), u.Uint())

	f := NewFloat(-2.75)
	assert.Equal(t, int64(-2), f.Int(), "float truncates toward zero")

	i := NewInt(-1)
	assert.Equal(t, uint64(math.MaxUint64), i.Uint(), "signed wraps two's complement")
}

func TestBoolAndZero(t *testing.T) {
	assert.True(t, NewFloat(0.5).Bool())
	assert.False(t, NewFloat(0).Bool())
	assert.False(t, NewUint(0).Bool())
	assert.True(t, NewInt(-1).Bool())
	assert.Equal(t, int64(1), NewBool(true).Int())
	assert.Equal(t, TypeInt, NewBool(true).Type)
}

func TestFloatToUintHighRange(t *testing.T) {
	f := float64(1 << 63)
	assert.Equal(t, uint64(1)<<63, FloatToUint(f))
	assert.Equal(t, uint64(0), FloatToUint(0))
	assert.Equal(t, uint64(math.MaxUint64), FloatToUint(math.Inf(1)))
}

func TestString(t *testing.T) {
	assert.Equal(t, "-5", NewInt(-5).String())
	assert.Equal(t, "18446744073709551615", NewUint(math.MaxUint64).String())
	assert.Equal(t, "2.5", NewFloat(2.5).String())
}

func TestRetype(t *testing.T) {
	v := NewInt(7).Retype(TypeFloat)
	assert.Equal(t, TypeFloat, v.Type)
	assert.Equal(t, 7.0, v.Float())
}
