package runtime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etscrivner/arith/errors"
	"github.com/etscrivner/arith/values"
)

func lookup(t *testing.T, vs *Vars, text string) (values.Value, *Lval, int) {
	t.Helper()
	sc := &Scan{Text: text}
	lv := &Lval{Shell: vs.Shell()}
	v := vs.Oracle(sc, lv, Lookup, values.NewInt(0))
	return v, lv, sc.Pos
}

func TestNumberParsing(t *testing.T) {
	vs := NewVars(NewShell())
	tests := []struct {
		text string
		want values.Value
		end  int
	}{
		{"42", values.NewInt(42), 2},
		{"0x1f", values.NewInt(31), 4},
		{"2#1011", values.NewInt(11), 6},
		{"36#z", values.NewInt(35), 4},
		{"1.5", values.NewFloat(1.5), 3},
		{".25", values.NewFloat(0.25), 3},
		{"2e3", values.NewFloat(2000), 3},
		{"1.5e-1", values.NewFloat(0.15), 6},
		{"9223372036854775807", values.NewInt(math.MaxInt64), 19},
		{"18446744073709551615", values.NewUint(math.MaxUint64), 20},
		{"7+1", values.NewInt(7), 1},
	}
	for _, tt := range tests {
		v, _, end := lookup(t, vs, tt.text)
		assert.True(t, tt.want.Equal(v), "text %q: got %s want %s", tt.text, v, tt.want)
		assert.Equal(t, tt.end, end, "text %q consumed", tt.text)
	}
}

func TestNumberOverflowReportsBadNum(t *testing.T) {
	vs := NewVars(NewShell())
	_, lv, end := lookup(t, vs, "18446744073709551616")
	assert.Equal(t, 0, end, "overflowing literal must not be consumed")
	assert.Equal(t, errors.BadNum, lv.ErrKind)
	assert.NotEmpty(t, lv.Msg)
}

func TestDecommaLiterals(t *testing.T) {
	shp := NewShell()
	shp.DeComma = true
	vs := NewVars(shp)
	v, _, end := lookup(t, vs, "1,5")
	assert.Equal(t, 1.5, v.Float())
	assert.Equal(t, 3, end)

	v, _, end = lookup(t, vs, ",5")
	assert.Equal(t, 0.5, v.Float())
	assert.Equal(t, 2, end)
}

func TestIdentifierResolution(t *testing.T) {
	vs := NewVars(NewShell())
	_, lv, end := lookup(t, vs, "counter+1")
	assert.Equal(t, 7, end)
	require.NotNil(t, lv.Value)
	assert.Equal(t, "counter", lv.Value.(*Var).Name)
	assert.Nil(t, lv.Fun)
}

func TestFunctionResolutionNeedsParen(t *testing.T) {
	vs := NewVars(NewShell())
	_, lv, _ := lookup(t, vs, "sqrt(4)")
	require.NotNil(t, lv.Fun)
	assert.Equal(t, "sqrt", lv.Fun.Name)
	assert.Equal(t, 1, lv.Nargs)
	assert.Nil(t, lv.Value)

	// Without the paren the same name is an ordinary variable.
	_, lv, _ = lookup(t, vs, "sqrt + 1")
	assert.Nil(t, lv.Fun)
	require.NotNil(t, lv.Value)
}

func TestNamedFloatConstants(t *testing.T) {
	vs := NewVars(NewShell())
	v, lv, _ := lookup(t, vs, "Inf")
	assert.True(t, math.IsInf(v.Float(), 1))
	assert.Equal(t, values.TypeFloat, lv.IsFloat)
	assert.Nil(t, lv.Value)

	v, _, _ = lookup(t, vs, "NaN")
	assert.True(t, math.IsNaN(v.Float()))
}

func TestValueAndAssignModes(t *testing.T) {
	shp := NewShell()
	vs := NewVars(shp)
	cell := vs.Cell("x")
	lv := &Lval{Shell: shp, Value: cell}

	v := vs.Oracle(nil, lv, Value, values.NewInt(0))
	assert.Equal(t, int64(0), v.Int(), "unset reads as zero")

	v = vs.Oracle(nil, lv, Assign, values.NewInt(7))
	assert.True(t, lv.WasNull)
	assert.Equal(t, int64(7), v.Int())

	v = vs.Oracle(nil, lv, Value, values.NewInt(0))
	assert.Equal(t, int64(7), v.Int())
	assert.Same(t, cell, lv.OValue.(*Var))

	vs.Oracle(nil, lv, Assign, values.NewInt(9))
	assert.False(t, lv.WasNull)
}

func TestStrictUnsetValueMode(t *testing.T) {
	shp := NewShell()
	shp.NoUnset = true
	vs := NewVars(shp)
	lv := &Lval{Shell: shp, Value: vs.Cell("ghost")}
	vs.Oracle(nil, lv, Value, values.NewInt(0))
	assert.Equal(t, errors.NotSet, lv.ErrKind)
	assert.NotEmpty(t, lv.Msg)
}

func TestFloatCellsRetypeAssignments(t *testing.T) {
	vs := NewVars(NewShell())
	vs.DeclareFloat("f")
	lv := &Lval{Shell: vs.Shell(), Value: vs.Cell("f")}
	v := vs.Oracle(nil, lv, Assign, values.NewInt(3))
	assert.Equal(t, values.TypeFloat, v.Type)
	assert.Equal(t, 3.0, v.Float())
}

func TestMessageCollectsDiagnostics(t *testing.T) {
	vs := NewVars(NewShell())
	lv := &Lval{}
	lv.Fail(errors.SynBad)
	r := vs.Oracle(&Scan{Text: "1 +", Pos: 2}, lv, Message, values.NewInt(0))
	assert.Equal(t, int64(0), r.Int())
	require.Len(t, vs.Diags, 1)
	assert.Contains(t, vs.Diags[0], errors.SynBad.Message())

	vs.Quiet = true
	r = vs.Oracle(&Scan{Text: "x"}, lv, Message, values.NewInt(0))
	assert.Negative(t, r.Int())
}
