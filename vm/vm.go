package vm

import (
	"encoding/binary"

	"github.com/etscrivner/arith/errors"
	"github.com/etscrivner/arith/opcodes"
	"github.com/etscrivner/arith/registry"
	"github.com/etscrivner/arith/runtime"
	"github.com/etscrivner/arith/values"
)

// powFn is resolved once, on first use of the power operator, to the
// registered "pow" function, falling back to the native implementation.
var powFn func(float64, float64) float64

// Exec runs a compiled program and returns the value left on top of the
// stack. Nesting across oracle re-entry is bounded by the shell's recursion
// counter; every error path resets that counter so a failed evaluation
// cannot poison later ones. Recoverable failures yield a zero result
// alongside the error.
func Exec(ep *runtime.Program) (values.Value, error) {
	zero := values.NewInt(0)
	if ep == nil {
		return zero, nil
	}
	shp := ep.Shell
	if !shp.Enter() {
		shp.ResetLevel()
		return zero, errors.NewRuntime(errors.Recursive, ep.Expr, ep.Emode)
	}

	// Shallow programs run on a call-local stack; deep ones allocate.
	var small [runtime.SmallStack + 1]values.Value
	var stack []values.Value
	if ep.StackSize <= runtime.SmallStack {
		stack = small[:]
	} else {
		stack = make([]values.Value, ep.StackSize+1)
	}

	v, err := run(ep, stack)
	if err != nil {
		shp.ResetLevel()
		return zero, err
	}
	shp.Exit()
	return v, nil
}

func run(ep *runtime.Program, stack []values.Value) (values.Value, error) {
	shp := ep.Shell
	code := ep.Code
	num := values.NewInt(0)
	sp := -1
	var lastCell any
	var lastSub int

	node := runtime.Lval{Shell: shp, Emode: ep.Emode, Expr: ep.Expr}
	sc := &runtime.Scan{Text: ep.Expr, Pos: len(ep.Expr)}

	fail := func(kind errors.Kind) (values.Value, error) {
		return values.NewInt(0), errors.NewRuntime(kind, ep.Expr, ep.Emode)
	}

	pc := 0
	for pc < len(code) && code[pc] != 0 {
		c := opcodes.Opcode(code[pc])
		pc++
		op := c.Base()
		keepLast := false

		if c&opcodes.FlagNoFloat != 0 {
			if num.Type == values.TypeFloat ||
				(c&opcodes.FlagBinary != 0 && op != opcodes.OpMod &&
					sp >= 1 && stack[sp-1].Type == values.TypeFloat) {
				return fail(errors.Incompatible)
			}
		}

		switch op {
		case opcodes.OpJmp, opcodes.OpJmpz, opcodes.OpJmpnz:
			pc = opcodes.Round(pc, 2)
			if (op == opcodes.OpJmpz && num.Bool()) ||
				(op == opcodes.OpJmpnz && !num.Bool()) {
				pc += 2
			} else {
				pc = int(binary.LittleEndian.Uint16(code[pc:]))
			}
			continue

		case opcodes.OpPop:
			sp--
			continue

		case opcodes.OpEnum:
			node.Eflag = true
			continue

		case opcodes.OpNotNot:
			num = values.NewBool(num.Bool())

		case opcodes.OpSwap:
			if sp >= 1 {
				stack[sp], stack[sp-1] = stack[sp-1], stack[sp]
				num = stack[sp]
			}

		case opcodes.OpPlusPlus:
			node.NoSub = -1
			ep.Oracle(sc, &node, runtime.Assign, addOne(num, 1))

		case opcodes.OpMinusMinus:
			node.NoSub = -1
			ep.Oracle(sc, &node, runtime.Assign, addOne(num, -1))

		case opcodes.OpIncr:
			num = addOne(num, 1)
			node.NoSub = -1
			num = ep.Oracle(sc, &node, runtime.Assign, num)

		case opcodes.OpDecr:
			num = addOne(num, -1)
			node.NoSub = -1
			num = ep.Oracle(sc, &node, runtime.Assign, num)

		case opcodes.OpAssignOp1, opcodes.OpPushVar:
			if op == opcodes.OpAssignOp1 {
				node.Emode |= runtime.EmodeAssignOp
			}
			var idx uint32
			var flag int16
			pc, idx, flag = fetchLvalOperand(code, pc)
			cell := ep.Lval(idx)
			lastCell = cell
			node.Value = cell
			node.Flag = flag
			if flag != 0 {
				lastCell = nil
			}
			node.IsFloat = values.TypeInt
			node.Level = shp.Level()
			node.NoSub = 0
			node.Msg = ""
			node.NextOp = previewOp(code, pc)
			num = ep.Oracle(sc, &node, runtime.Value, num)
			if lastCell != nil {
				lastCell = node.OValue
			}
			if node.Emode&runtime.EmodeAssignOp != 0 {
				lastSub = node.NoSub
				node.NoSub = 0
				node.Emode &^= runtime.EmodeAssignOp
			}
			if node.Msg != "" {
				return fail(node.ErrKind)
			}
			sp++
			num = normalize(num, node.IsFloat)
			node.Eflag = false
			keepLast = true

		case opcodes.OpAssignOp, opcodes.OpStore:
			if op == opcodes.OpAssignOp {
				node.NoSub = lastSub
			}
			var idx uint32
			var flag int16
			pc, idx, flag = fetchLvalOperand(code, pc)
			if flag < 0 {
				flag = 0
			}
			cell := ep.Lval(idx)
			node.Value = cell
			node.Flag = flag
			if lastCell != nil {
				node.Eflag = true
			}
			node.Ptr = nil
			node.Msg = ""
			num = ep.Oracle(sc, &node, runtime.Assign, num)
			if node.Msg != "" {
				return fail(node.ErrKind)
			}
			if lastCell != nil && node.Ptr != nil {
				// The oracle may update the target out of band while the
				// right-hand side runs; re-read and re-assign on a mismatch.
				node.Flag = 0
				node.Value = lastCell
				node.Msg = ""
				r := ep.Oracle(sc, &node, runtime.Value, num)
				if !r.Equal(num) {
					node.Flag = flag
					node.Value = cell
					num = ep.Oracle(sc, &node, runtime.Assign, r)
				}
			} else if lastCell != nil && num.IsZero() && shp.NoUnset && node.WasNull {
				return values.NewInt(0),
					errors.NewRuntime(errors.NotSet, ep.Expr, 3)
			}
			node.Eflag = false
			lastCell = nil
			keepLast = true

		case opcodes.OpPushFun:
			pc = opcodes.Round(pc, 4)
			idx := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			kind := code[pc]
			pc++
			sp++
			stack[sp] = values.NewInt(int64(idx))
			node.UserFn = kind > 1
			continue

		case opcodes.OpPushNum:
			pc = opcodes.Round(pc, 8)
			bits := binary.LittleEndian.Uint64(code[pc:])
			pc += 8
			tag := values.ValueType(code[pc])
			pc++
			sp++
			num = values.FromBits(bits, tag)

		case opcodes.OpNot:
			num = values.NewBool(!num.Bool())

		case opcodes.OpUminus:
			num = neg(num)

		case opcodes.OpTilde:
			if num.Type == values.TypeUint {
				num = values.NewUint(^num.Uint())
			} else {
				num = values.NewInt(^num.Int())
			}

		case opcodes.OpPlus:
			num = arithAdd(stack[sp-1], num)

		case opcodes.OpMinus:
			num = arithSub(stack[sp-1], num)

		case opcodes.OpTimes:
			num = arithMul(stack[sp-1], num)

		case opcodes.OpPow:
			if powFn == nil {
				powFn = resolvePow(shp.Math)
			}
			num = arithPow(stack[sp-1], num, powFn)

		case opcodes.OpDiv:
			var ok bool
			num, ok = arithDiv(stack[sp-1], num)
			if !ok {
				return fail(errors.DivZero)
			}

		case opcodes.OpMod:
			var ok bool
			num, ok = arithMod(stack[sp-1], num)
			if !ok {
				return fail(errors.DivZero)
			}

		case opcodes.OpLshift:
			num = arithShift(stack[sp-1], num, true)

		case opcodes.OpRshift:
			num = arithShift(stack[sp-1], num, false)

		case opcodes.OpAnd:
			num = bitwise(stack[sp-1], num, op)

		case opcodes.OpOr:
			num = bitwise(stack[sp-1], num, op)

		case opcodes.OpXor:
			num = bitwise(stack[sp-1], num, op)

		case opcodes.OpEq, opcodes.OpNeq, opcodes.OpLt, opcodes.OpLe,
			opcodes.OpGt, opcodes.OpGe:
			num = compare(stack[sp-1], num, op)

		case opcodes.OpCall1F:
			sp--
			entry := ep.Func(uint32(stack[sp].Int()))
			if c&opcodes.FlagBinary != 0 {
				c &^= opcodes.FlagBinary
				num = shp.MathFun(entry, []values.Value{num})
				node.UserFn = false
			} else {
				num = values.NewFloat(entry.F1(num.Float()))
			}

		case opcodes.OpCall1I:
			sp--
			entry := ep.Func(uint32(stack[sp].Int()))
			num = values.NewInt(entry.I1(num.Float()))

		case opcodes.OpCall1V:
			sp--
			entry := ep.Func(uint32(stack[sp].Int()))
			t := num.Type
			num = values.NewFloat(entry.V1(int(t)-1, num.Float())).Retype(t)

		case opcodes.OpCall2F:
			sp -= 2
			entry := ep.Func(uint32(stack[sp].Int()))
			a1 := stack[sp+1]
			switch {
			case c&opcodes.FlagBinary != 0:
				c &^= opcodes.FlagBinary
				num = shp.MathFun(entry, []values.Value{a1, num})
				node.UserFn = false
			case c&opcodes.FlagNoFloat != 0:
				num = values.NewFloat(entry.FI2(a1.Float(), int(num.Int())))
			default:
				num = values.NewFloat(entry.F2(a1.Float(), num.Float()))
			}

		case opcodes.OpCall2I:
			sp -= 2
			entry := ep.Func(uint32(stack[sp].Int()))
			num = values.NewInt(entry.I2(stack[sp+1].Float(), num.Float()))

		case opcodes.OpCall2V:
			sp -= 2
			entry := ep.Func(uint32(stack[sp].Int()))
			a1 := stack[sp+1]
			t := a1.Type
			num = values.NewFloat(entry.V2(int(t)-1, a1.Float(), num.Float())).Retype(t)

		case opcodes.OpCall3F:
			sp -= 3
			entry := ep.Func(uint32(stack[sp].Int()))
			if c&opcodes.FlagBinary != 0 {
				c &^= opcodes.FlagBinary
				num = shp.MathFun(entry, []values.Value{stack[sp+1], stack[sp+2], num})
				node.UserFn = false
			} else {
				num = values.NewFloat(entry.F3(stack[sp+1].Float(), stack[sp+2].Float(), num.Float()))
			}

		default:
			return fail(errors.SynBad)
		}

		if c&opcodes.FlagBinary != 0 {
			node.Ptr = nil
			sp--
		}
		if !keepLast {
			lastCell = nil
		}
		if sp >= 0 && sp < len(stack) {
			stack[sp] = num
		}
	}
	return num, nil
}

// fetchLvalOperand decodes the pool-index and subscript operands of the
// storage opcodes, applying the same alignment rounding as the emitter.
func fetchLvalOperand(code []byte, pc int) (int, uint32, int16) {
	pc = opcodes.Round(pc, 4)
	idx := binary.LittleEndian.Uint32(code[pc:])
	pc += 4
	pc = opcodes.Round(pc, 2)
	flag := int16(binary.LittleEndian.Uint16(code[pc:]))
	pc += 2
	return pc, idx, flag
}

// previewOp reports the opcode following the current one so the oracle can
// see, for example, that an assignment is about to happen. A jump is
// followed to its target.
func previewOp(code []byte, pc int) opcodes.Opcode {
	if pc >= len(code) {
		return 0
	}
	nop := opcodes.Opcode(code[pc])
	if nop.Base() == opcodes.OpJmp {
		toff := opcodes.Round(pc+1, 2)
		if toff+2 <= len(code) {
			t := int(binary.LittleEndian.Uint16(code[toff:]))
			if t >= 0 && t < len(code) {
				nop = opcodes.Opcode(code[t])
			}
		}
	}
	return nop
}

func resolvePow(reg *registry.Registry) func(float64, float64) float64 {
	if entry := reg.Lookup("pow"); entry != nil && entry.F2 != nil {
		return entry.F2
	}
	return mathPow
}
