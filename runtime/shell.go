package runtime

import (
	"github.com/etscrivner/arith/registry"
	"github.com/etscrivner/arith/values"
)

const (
	// MaxLevel bounds nesting of evaluations, including re-entry through
	// the oracle.
	MaxLevel = 1024
	// SmallStack is the depth up to which the executor uses a call-local
	// value stack instead of allocating one.
	SmallStack = 12
)

// Evaluation mode bits.
const (
	EmodeFatal    = 1 << 0 // errors abort the enclosing evaluation
	EmodeReport   = 1 << 1 // errors are reported but recoverable
	EmodeAssignOp = 1 << 2 // internal: read side of a compound assignment
)

// Shell is the host handle threaded through compilation and execution. One
// shell supports one executing thread; parallel evaluation needs separate
// shells because the scratch arena is used strictly LIFO.
type Shell struct {
	NoUnset bool // strict-unset: never-set cells error on read and zero-assign
	DeComma bool // ',' doubles as the decimal point in literals

	Stk  *Stk
	Math *registry.Registry

	level     int
	mathNodes [9]MathNode
}

// MathNode is one positional argument slot used while marshalling a call to
// a user-defined math function.
type MathNode struct {
	Val   values.Value
	Float bool
}

func NewShell() *Shell {
	return &Shell{Stk: NewStk(), Math: registry.NewStandard()}
}

// Enter counts one nesting level; it reports false once the limit is hit,
// leaving the counter for the caller's error path to reset.
func (s *Shell) Enter() bool {
	if s.level >= MaxLevel {
		return false
	}
	s.level++
	return true
}

// Exit undoes one successful Enter.
func (s *Shell) Exit() {
	if s.level > 0 {
		s.level--
	}
}

// ResetLevel clears the nesting counter. Every error path resets it so a
// failed evaluation cannot poison later ones.
func (s *Shell) ResetLevel() { s.level = 0 }

func (s *Shell) Level() int { return s.level }

// MathFun marshals a call to a user-defined function: the arguments are
// staged into the positional nodes with their float attribute set from the
// argument's domain, then the function runs against the staged slice.
func (s *Shell) MathFun(entry *registry.Entry, args []values.Value) values.Value {
	for i := range s.mathNodes {
		s.mathNodes[i] = MathNode{}
	}
	for i, a := range args {
		if i >= len(s.mathNodes) {
			break
		}
		s.mathNodes[i] = MathNode{Val: a, Float: a.Type == values.TypeFloat}
	}
	return entry.User(args)
}

// MathArg exposes a staged positional argument, 0-based.
func (s *Shell) MathArg(i int) values.Value {
	if i < 0 || i >= len(s.mathNodes) {
		return values.NewInt(0)
	}
	return s.mathNodes[i].Val
}
