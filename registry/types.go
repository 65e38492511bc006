package registry

import "github.com/etscrivner/arith/values"

// Kind selects the calling convention of a registered math function. The F
// shapes take and return floats, the I shapes return integers, the FI shape
// takes an integer second argument, and the V shapes receive the domain tag
// of their first argument minus one (-1 signed, 0 float, 1 unsigned) as a
// leading parameter. User functions are marshalled through
// the shell runtime instead of being called directly.
type Kind int

const (
	Kind1F Kind = iota
	Kind2F
	Kind3F
	Kind1I
	Kind2I
	Kind2FI
	Kind1V
	Kind2V
	KindUser
)

// UserFunc is a user-registered math function. Arguments arrive already
// marshalled by the runtime; the result is pushed back with its own domain.
type UserFunc func(args []values.Value) values.Value

// Entry describes one resolvable math function. Exactly one of the typed
// function fields is set, matching Kind.
type Entry struct {
	Name string
	Kind Kind

	F1   func(float64) float64
	F2   func(float64, float64) float64
	F3   func(float64, float64, float64) float64
	I1   func(float64) int64
	I2   func(float64, float64) int64
	FI2  func(float64, int) float64
	V1   func(int, float64) float64
	V2   func(int, float64, float64) float64
	User UserFunc

	arity int
}

// Arity is the number of expression arguments the function consumes.
func (e *Entry) Arity() int { return e.arity }

// Argument-count hint bits handed to the parser through the l-value
// descriptor. The low three bits carry the arity; the rest select the
// calling convention. User functions are flagged by a negated arity.
const (
	NargsMask    = 0o7
	NargsInt     = 0o10  // integer-returning shape
	NargsIntArg  = 0o40  // integer second argument
	NargsVariant = 0o100 // variant convention with a leading domain tag
)

// Nargs encodes the entry for the parser.
func (e *Entry) Nargs() int {
	if e.Kind == KindUser {
		return -e.arity
	}
	n := e.arity
	switch e.Kind {
	case Kind1I, Kind2I:
		n |= NargsInt
	case Kind2FI:
		n |= NargsIntArg
	case Kind1V, Kind2V:
		n |= NargsVariant
	}
	return n
}
