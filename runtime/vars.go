package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/etscrivner/arith/errors"
	"github.com/etscrivner/arith/values"
)

// Var is one named numeric cell.
type Var struct {
	Name  string
	Val   values.Value
	Set   bool
	Float bool // declared floating: assignments convert into the float domain
}

func (v *Var) String() string { return v.Name }

// Vars is the default oracle: a map-backed variable table with literal
// parsing, registry-backed function resolution, and diagnostic collection.
// It implements the full callback contract, standing in for the enclosing
// shell's name storage.
type Vars struct {
	shp    *Shell
	cells  map[string]*Var
	Quiet  bool     // Message returns negative, suppressing the host report
	Diags  []string // formatted diagnostics, newest last
}

func NewVars(shp *Shell) *Vars {
	return &Vars{shp: shp, cells: make(map[string]*Var)}
}

// Shell returns the handle this table is bound to.
func (vs *Vars) Shell() *Shell { return vs.shp }

// Cell returns the named cell, creating an unset one on first use.
func (vs *Vars) Cell(name string) *Var {
	cell, ok := vs.cells[name]
	if !ok {
		cell = &Var{Name: name}
		vs.cells[name] = cell
	}
	return cell
}

// Set assigns a value directly, outside any evaluation.
func (vs *Vars) Set(name string, v values.Value) {
	cell := vs.Cell(name)
	cell.Val = v
	cell.Set = true
}

// Get reads a value directly; unset cells read as signed zero.
func (vs *Vars) Get(name string) values.Value {
	cell, ok := vs.cells[name]
	if !ok || !cell.Set {
		return values.NewInt(0)
	}
	return cell.Val
}

// DeclareFloat marks a cell as floating-typed.
func (vs *Vars) DeclareFloat(name string) {
	vs.Cell(name).Float = true
}

// Oracle is the callback to hand to the compiler and executor.
func (vs *Vars) Oracle(sc *Scan, lv *Lval, mode Mode, v values.Value) values.Value {
	switch mode {
	case Lookup:
		return vs.lookup(sc, lv)
	case Value:
		return vs.value(lv)
	case Assign:
		return vs.assign(lv, v)
	case Message:
		return vs.message(sc, lv)
	}
	return values.NewInt(0)
}

func (vs *Vars) value(lv *Lval) values.Value {
	cell, ok := lv.Value.(*Var)
	if !ok {
		lv.Fail(errors.SynBad)
		return values.NewInt(0)
	}
	lv.OValue = cell
	if !cell.Set {
		if vs.shp.NoUnset {
			lv.Fail(errors.NotSet)
		}
		lv.IsFloat = values.TypeInt
		return values.NewInt(0)
	}
	lv.IsFloat = cell.Val.Type
	return cell.Val
}

func (vs *Vars) assign(lv *Lval, v values.Value) values.Value {
	cell, ok := lv.Value.(*Var)
	if !ok {
		lv.Fail(errors.NotLvalue)
		return values.NewInt(0)
	}
	lv.WasNull = !cell.Set
	if cell.Float {
		v = v.Retype(values.TypeFloat)
	}
	cell.Set = true
	cell.Val = v
	return v
}

func (vs *Vars) message(sc *Scan, lv *Lval) values.Value {
	at := strings.TrimSpace(sc.Rest())
	if at == "" {
		at = sc.Text
	}
	vs.Diags = append(vs.Diags, fmt.Sprintf("%s: %s", at, lv.Msg))
	if vs.Quiet {
		return values.NewInt(-1)
	}
	return values.NewInt(0)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func (vs *Vars) lookup(sc *Scan, lv *Lval) values.Value {
	rest := sc.Rest()
	if rest == "" {
		return values.NewInt(0)
	}
	c := rest[0]
	if c >= '0' && c <= '9' || c == '.' || (vs.shp.DeComma && c == ',') {
		return vs.number(sc, lv)
	}
	if !isNameStart(c) {
		return values.NewInt(0)
	}
	n := 1
	for n < len(rest) && isNameByte(rest[n]) {
		n++
	}
	name := rest[:n]
	sc.Advance(n)
	switch name {
	case "Inf", "inf":
		lv.IsFloat = values.TypeFloat
		return values.NewFloat(math.Inf(1))
	case "NaN", "nan":
		lv.IsFloat = values.TypeFloat
		return values.NewFloat(math.NaN())
	}
	if sc.Peek() == '(' {
		if entry := vs.shp.Math.Lookup(name); entry != nil {
			lv.Fun = entry
			lv.Nargs = entry.Nargs()
			return values.NewInt(0)
		}
	}
	lv.Value = vs.Cell(name)
	return values.NewInt(0)
}

func digitVal(c byte, base int) (int, bool) {
	var d int
	switch {
	case c >= '0' && c <= '9':
		d = int(c - '0')
	case c >= 'a' && c <= 'z':
		d = int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		d = int(c-'A') + 10
		if base > 36 {
			d += 26
		}
	default:
		return 0, false
	}
	if d >= base {
		return 0, false
	}
	return d, true
}

// number parses a literal: decimal or hexadecimal integers, base#digits
// radix form (2-36), and floating literals with an optional exponent. The
// decimal point may be a comma under the decomma option.
func (vs *Vars) number(sc *Scan, lv *Lval) values.Value {
	rest := sc.Rest()
	point := byte('.')
	altPoint := byte(0)
	if vs.shp.DeComma {
		altPoint = ','
	}

	// Hexadecimal.
	if len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') {
		var u uint64
		n := 2
		for n < len(rest) {
			d, ok := digitVal(rest[n], 16)
			if !ok {
				break
			}
			if u > math.MaxUint64/16 {
				lv.Fail(errors.BadNum)
				return values.NewInt(0)
			}
			u = u*16 + uint64(d)
			n++
		}
		if n == 2 {
			lv.Fail(errors.BadNum)
			return values.NewInt(0)
		}
		sc.Advance(n)
		return intValue(u)
	}

	// base#digits radix form.
	if base, n, ok := radixPrefix(rest); ok {
		var u uint64
		start := n
		for n < len(rest) {
			d, ok := digitVal(rest[n], base)
			if !ok {
				break
			}
			if u > (math.MaxUint64-uint64(d))/uint64(base) {
				lv.Fail(errors.BadNum)
				return values.NewInt(0)
			}
			u = u*uint64(base) + uint64(d)
			n++
		}
		if n == start {
			lv.Fail(errors.BadNum)
			return values.NewInt(0)
		}
		sc.Advance(n)
		return intValue(u)
	}

	// Scan one number: integer part, optional point and fraction, optional
	// exponent. A leading bare point is allowed.
	n := 0
	isFloat := false
	digits := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
		digits++
	}
	if n < len(rest) && (rest[n] == point || (altPoint != 0 && rest[n] == altPoint)) {
		isFloat = true
		n++
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
			digits++
		}
	}
	if digits == 0 {
		lv.Fail(errors.BadNum)
		return values.NewInt(0)
	}
	if n < len(rest) && (rest[n] == 'e' || rest[n] == 'E') {
		m := n + 1
		if m < len(rest) && (rest[m] == '+' || rest[m] == '-') {
			m++
		}
		if m < len(rest) && rest[m] >= '0' && rest[m] <= '9' {
			isFloat = true
			for m < len(rest) && rest[m] >= '0' && rest[m] <= '9' {
				m++
			}
			n = m
		}
	}
	text := rest[:n]
	if isFloat {
		f, err := parseFloat(text)
		if err != nil {
			lv.Fail(errors.BadNum)
			return values.NewInt(0)
		}
		sc.Advance(n)
		lv.IsFloat = values.TypeFloat
		return values.NewFloat(f)
	}
	var u uint64
	for i := 0; i < len(text); i++ {
		d := uint64(text[i] - '0')
		if u > (math.MaxUint64-d)/10 {
			lv.Fail(errors.BadNum)
			return values.NewInt(0)
		}
		u = u*10 + d
	}
	sc.Advance(n)
	return intValue(u)
}

func intValue(u uint64) values.Value {
	if u > math.MaxInt64 {
		return values.NewUint(u)
	}
	return values.NewInt(int64(u))
}

func parseFloat(text string) (float64, error) {
	if i := strings.IndexByte(text, ','); i >= 0 {
		text = strings.Replace(text, ",", ".", 1)
	}
	return strconv.ParseFloat(text, 64)
}

func radixPrefix(s string) (base, n int, ok bool) {
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		base = base*10 + int(s[n]-'0')
		n++
		if base > 64 {
			return 0, 0, false
		}
	}
	if n == 0 || n >= len(s) || s[n] != '#' {
		return 0, 0, false
	}
	if base < 2 || base > 36 {
		return 0, 0, false
	}
	return base, n + 1, true
}
