package runtime

import "github.com/etscrivner/arith/registry"

// Program is an immutable compiled expression. Code is a packed byte array
// of single-byte opcodes with inline operands aligned to their own width;
// cell handles and function entries live in side pools referenced by
// 4-byte indices, and the final byte is a zero terminator. The code bytes
// live in the shell's scratch arena and are valid until the arena is reset
// past them.
type Program struct {
	Shell     *Shell
	Expr      string // original expression text
	Last      int    // offset of the first byte the parser did not consume
	Code      []byte
	StackSize int // value-stack depth sufficient for execution
	Emode     int
	Oracle    Oracle

	Lvals []any
	Funcs []*registry.Entry
}

// AddLval interns a cell handle and returns its pool index.
func (p *Program) AddLval(cell any) uint32 {
	p.Lvals = append(p.Lvals, cell)
	return uint32(len(p.Lvals) - 1)
}

// AddFunc interns a function entry and returns its pool index.
func (p *Program) AddFunc(entry *registry.Entry) uint32 {
	p.Funcs = append(p.Funcs, entry)
	return uint32(len(p.Funcs) - 1)
}

// Lval returns a pooled cell handle.
func (p *Program) Lval(i uint32) any {
	if int(i) >= len(p.Lvals) {
		return nil
	}
	return p.Lvals[i]
}

// Func returns a pooled function entry.
func (p *Program) Func(i uint32) *registry.Entry {
	if int(i) >= len(p.Funcs) {
		return nil
	}
	return p.Funcs[i]
}
