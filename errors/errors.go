package errors

import "fmt"

// Kind identifies one of the diagnostics the compiler or executor can raise.
type Kind int

const (
	SynBad Kind = iota
	Paren
	MoreTokens
	NotLvalue
	QuestColon
	BadColon
	ArgCount
	CharConst
	BadNum
	Incompatible
	DivZero
	NotSet
	Recursive
)

var messages = map[Kind]string{
	SynBad:       "arithmetic syntax error",
	Paren:        "unbalanced parenthesis",
	MoreTokens:   "trailing characters after expression",
	NotLvalue:    "assignment requires lvalue",
	QuestColon:   "':' expected for '?' operator",
	BadColon:     "invalid use of ':'",
	ArgCount:     "wrong number of arguments",
	CharConst:    "invalid character constant",
	BadNum:       "bad number",
	Incompatible: "operands have incompatible types",
	DivZero:      "divide by zero",
	NotSet:       "parameter not set",
	Recursive:    "recursion too deep",
}

// Message returns the canonical diagnostic text for a kind.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return "unknown arithmetic error"
}

// ArithError is a diagnostic tied to an expression. Pos is a byte offset
// into Expr, -1 when the error has no useful position (runtime errors).
// Fatal mirrors the host error-mode computation: a non-zero low two bits of
// the evaluation mode make the error fatal to the enclosing evaluation.
type ArithError struct {
	Kind    Kind
	Message string
	Expr    string
	Pos     int
	Fatal   bool
}

// New builds a compile-time diagnostic at a byte offset in expr.
func New(kind Kind, expr string, pos int, emode int) *ArithError {
	return &ArithError{
		Kind:    kind,
		Message: kind.Message(),
		Expr:    expr,
		Pos:     pos,
		Fatal:   emode&3 != 0,
	}
}

// NewRuntime builds an execution-time diagnostic.
func NewRuntime(kind Kind, expr string, emode int) *ArithError {
	e := New(kind, expr, -1, emode)
	return e
}

func (e *ArithError) Error() string {
	if e.Pos >= 0 && e.Pos <= len(e.Expr) {
		return fmt.Sprintf("%s [%s] at offset %d: %s", e.Expr, e.Expr[e.Pos:], e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Expr, e.Message)
}

// Is matches two arithmetic errors by kind, so callers can test against a
// bare kind sentinel with the standard errors package.
func (e *ArithError) Is(target error) bool {
	t, ok := target.(*ArithError)
	return ok && t.Kind == e.Kind
}

// Sentinel returns a kind-only error value for use as an errors.Is target.
func Sentinel(kind Kind) *ArithError {
	return &ArithError{Kind: kind, Message: kind.Message(), Pos: -1}
}
