// Package arith evaluates shell arithmetic expressions. An expression is
// compiled in one pass into a compact stack-machine program and executed
// against an oracle that resolves names, reads and writes variables, and
// formats diagnostics on behalf of the enclosing shell.
package arith

import (
	"github.com/etscrivner/arith/compiler"
	"github.com/etscrivner/arith/errors"
	"github.com/etscrivner/arith/runtime"
	"github.com/etscrivner/arith/values"
	"github.com/etscrivner/arith/vm"
)

// Compile translates an expression into a transient program allocated in
// the shell's scratch arena.
func Compile(shp *runtime.Shell, text string, oracle runtime.Oracle, emode int) (*runtime.Program, error) {
	return compiler.Compile(shp, text, oracle, emode)
}

// Exec runs a compiled program.
func Exec(p *runtime.Program) (values.Value, error) {
	return vm.Exec(p)
}

// Strval compiles and executes in one shot. The transient program lives in
// the shell's scratch arena and is released before returning; the returned
// rest is the unconsumed tail of the expression, empty for a full parse.
func Strval(shp *runtime.Shell, text string, oracle runtime.Oracle, emode int) (v values.Value, rest string, err error) {
	mark := shp.Stk.Tell()
	defer shp.Stk.Set(mark)
	p, err := compiler.Compile(shp, text, oracle, emode)
	if err != nil {
		return values.NewInt(0), text, err
	}
	v, err = vm.Exec(p)
	return v, text[p.Last:], err
}

// Eval is Strval with trailing garbage treated as an error, convenient for
// whole-string callers.
func Eval(shp *runtime.Shell, text string, oracle runtime.Oracle, emode int) (values.Value, error) {
	v, rest, err := Strval(shp, text, oracle, emode)
	if err != nil {
		return v, err
	}
	if rest != "" {
		return values.NewInt(0), errors.New(errors.MoreTokens, text, len(text)-len(rest), emode)
	}
	return v, nil
}
