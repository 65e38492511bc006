package runtime

import (
	"github.com/etscrivner/arith/errors"
	"github.com/etscrivner/arith/opcodes"
	"github.com/etscrivner/arith/registry"
	"github.com/etscrivner/arith/values"
)

// Mode selects what the evaluator is asking the oracle for.
type Mode int

const (
	// Lookup parses a numeric literal or resolves an identifier starting
	// at the scan cursor, advancing it past what was consumed.
	Lookup Mode = iota
	// Value reads the current value of the cell in the descriptor.
	Value
	// Assign writes the given value to the cell in the descriptor.
	Assign
	// Message formats a diagnostic; a negative result suppresses the
	// host's own report.
	Message
)

func (m Mode) String() string {
	switch m {
	case Lookup:
		return "LOOKUP"
	case Value:
		return "VALUE"
	case Assign:
		return "ASSIGN"
	case Message:
		return "MESSAGE"
	}
	return "MODE?"
}

// Scan is the shared cursor handed to the oracle on Lookup: the oracle
// advances Pos past whatever it consumed. Not advancing at all tells the
// parser the text was unrecognizable.
type Scan struct {
	Text string
	Pos  int
}

// Rest returns the unconsumed tail.
func (s *Scan) Rest() string { return s.Text[s.Pos:] }

// Peek returns the next unconsumed byte, 0 at the end.
func (s *Scan) Peek() byte {
	if s.Pos >= len(s.Text) {
		return 0
	}
	return s.Text[s.Pos]
}

// Advance moves the cursor forward n bytes.
func (s *Scan) Advance(n int) {
	s.Pos += n
	if s.Pos > len(s.Text) {
		s.Pos = len(s.Text)
	}
}

// Lval is the l-value descriptor and oracle invocation record. The parser
// reads the resolution fields after Lookup; the executor refreshes the
// per-call fields before Value and Assign and inspects the error report
// afterwards.
type Lval struct {
	Shell *Shell

	// Resolution, populated by Lookup.
	Value   any             // opaque cell handle; nil for constants
	Flag    int16           // subscript or similar hint
	Nargs   int             // arity hint for function symbols
	Fun     *registry.Entry // function entry for function symbols
	IsFloat values.ValueType

	// Invocation context, maintained by the executor.
	Expr   string
	Emode  int
	Level  int
	NoSub  int            // -1: target already resolved, skip subscripts
	NextOp opcodes.Opcode // preview of the opcode after this one
	Eflag  bool           // comparison against enumeration names allowed
	UserFn bool           // pending call routes through the marshaller

	// Results reported back by the oracle.
	OValue  any    // original cell behind any indirection
	Ptr     any    // cache populated during a compound assignment
	WasNull bool   // Assign target had never been set
	Msg     string // error or diagnostic text; empty means success
	ErrKind errors.Kind
}

// Fail records an error on the descriptor for the caller to raise.
func (lv *Lval) Fail(kind errors.Kind) {
	lv.Msg = kind.Message()
	lv.ErrKind = kind
}

// Oracle resolves names, reads and writes cells, and formats diagnostics
// on behalf of the evaluator. It may re-enter the evaluator; nesting is
// bounded by the shell's recursion counter.
type Oracle func(sc *Scan, lv *Lval, mode Mode, v values.Value) values.Value
