package vm

import (
	"fmt"

	"github.com/etscrivner/arith/opcodes"
	"github.com/etscrivner/arith/runtime"
	"github.com/etscrivner/arith/values"
)

// Line is one rendered instruction of a program listing.
type Line struct {
	Offset int
	Op     opcodes.Opcode
	Text   string
}

// Disasm renders a compiled program instruction by instruction, resolving
// pool indices back to cell and function names.
func Disasm(p *runtime.Program) ([]Line, error) {
	instrs, err := opcodes.Walk(p.Code)
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(instrs))
	for _, in := range instrs {
		out = append(out, Line{Offset: in.Offset, Op: in.Op, Text: operandText(p, in)})
	}
	return out, nil
}

func operandText(p *runtime.Program, in opcodes.Instr) string {
	switch in.Op.Base() {
	case opcodes.OpJmp, opcodes.OpJmpz, opcodes.OpJmpnz:
		return fmt.Sprintf("-> %d", in.Operands[0])
	case opcodes.OpPushNum:
		v := values.FromBits(in.Operands[0], values.ValueType(in.Operands[1]))
		return fmt.Sprintf("%s (%s)", v, v.Type)
	case opcodes.OpPushVar, opcodes.OpStore, opcodes.OpAssignOp, opcodes.OpAssignOp1:
		cell := p.Lval(uint32(in.Operands[0]))
		if in.Operands[1] != 0 {
			return fmt.Sprintf("%v [%d]", cell, int16(in.Operands[1]))
		}
		return fmt.Sprintf("%v", cell)
	case opcodes.OpPushFun:
		entry := p.Func(uint32(in.Operands[0]))
		name := "?"
		if entry != nil {
			name = entry.Name
		}
		if in.Operands[1] > 1 {
			return name + " (user)"
		}
		return name
	}
	return ""
}
