package compiler

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/etscrivner/arith/errors"
	"github.com/etscrivner/arith/lexer"
	"github.com/etscrivner/arith/opcodes"
	"github.com/etscrivner/arith/registry"
	"github.com/etscrivner/arith/runtime"
	"github.com/etscrivner/arith/values"
)

// lvaluePrec is the pseudo-precedence prefix increment and decrement parse
// their operand at: one above any real operator, and recognizable so the
// operand can be required to be an l-value.
const lvaluePrec = 2*lexer.MaxPrec + 2

// compiler carries one compilation. Code is emitted directly into the
// shell's scratch arena starting at mark; forward jumps are patched in
// place before Compile returns.
type compiler struct {
	shp    *runtime.Shell
	text   string
	lex    *lexer.Lexer
	oracle runtime.Oracle
	emode  int
	prog   *runtime.Program
	mark   int

	staksize    int // current stack-depth estimate
	stakmaxsize int // running maximum depth
	paren       int
	infun       int // arguments seen so far in a function argument list; 0 outside one

	errmsg runtime.Lval
	errAt  int
	errStr int // position the oracle pinned the message to, or -1
}

// Compile translates an expression into a stack-machine program. The
// strict-unset option is suspended while compiling so merely mentioning an
// unresolved name cannot abort; it is the executor's job to enforce it.
func Compile(shp *runtime.Shell, text string, oracle runtime.Oracle, emode int) (*runtime.Program, error) {
	nounset := shp.NoUnset
	shp.NoUnset = false
	defer func() { shp.NoUnset = nounset }()

	c := &compiler{
		shp:    shp,
		text:   text,
		lex:    lexer.New(text),
		oracle: oracle,
		emode:  emode,
		mark:   shp.Stk.Tell(),
		errStr: -1,
	}
	c.lex.DeComma = shp.DeComma
	c.prog = &runtime.Program{Shell: shp, Expr: text, Emode: emode, Oracle: oracle}
	c.errmsg.Shell = shp
	c.errmsg.Emode = emode

	if !c.expr(0) {
		at := c.errAt
		if c.errStr >= 0 {
			at = c.errStr
		}
		kind := c.errmsg.ErrKind
		if oracle != nil {
			sc := &runtime.Scan{Text: text, Pos: at}
			oracle(sc, &c.errmsg, runtime.Message, values.NewInt(0))
		}
		shp.Stk.Set(c.mark)
		return nil, errors.New(kind, text, at, emode)
	}

	shp.Stk.PutByte(0)
	c.prog.Code = shp.Stk.Bytes(c.mark)
	c.prog.StackSize = c.stakmaxsize + 1
	c.prog.Last = c.lex.Pos()
	return c.prog, nil
}

// seterror records the pending diagnostic, parks the cursor at the end of
// input so enclosing levels unwind, and resets the shell's nesting counter.
func (c *compiler) seterror(kind errors.Kind) bool {
	if c.errmsg.Msg == "" {
		c.errmsg.Fail(kind)
	}
	c.errAt = c.lex.Pos()
	c.lex.SetPos(len(c.text))
	c.shp.ResetLevel()
	return false
}

func (c *compiler) emit(op opcodes.Opcode) {
	c.shp.Stk.PutByte(byte(op))
}

// operand appends an inline operand aligned to its width relative to the
// start of the code region, returning its absolute arena offset.
func (c *compiler) operand(size int, v uint64) int {
	stk := c.shp.Stk
	off := c.mark + opcodes.Round(stk.Tell()-c.mark, size)
	stk.Seek(off)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	stk.Put(b[:size])
	return off
}

// here is the current code offset, the target forward jumps patch to.
func (c *compiler) here() uint16 {
	return uint16(c.shp.Stk.Tell() - c.mark)
}

// push bumps the depth estimate and keeps the running maximum.
func (c *compiler) push() {
	if c.staksize >= c.stakmaxsize {
		c.stakmaxsize = c.staksize + 1
	}
	c.staksize++
}

// emitLval writes a storage opcode with the descriptor's pool index and
// subscript as inline operands.
func (c *compiler) emitLval(op opcodes.Opcode, lv *runtime.Lval) {
	if lv.Flag < 0 {
		lv.Flag = 0
	}
	c.emit(op)
	c.operand(4, uint64(c.prog.AddLval(lv.Value)))
	c.operand(2, uint64(uint16(lv.Flag)))
}

var binOps = map[lexer.Token]opcodes.Opcode{
	lexer.TokPlus:   opcodes.OpPlus,
	lexer.TokMinus:  opcodes.OpMinus,
	lexer.TokTimes:  opcodes.OpTimes,
	lexer.TokDiv:    opcodes.OpDiv,
	lexer.TokMod:    opcodes.OpMod,
	lexer.TokPow:    opcodes.OpPow,
	lexer.TokAnd:    opcodes.OpAnd,
	lexer.TokOr:     opcodes.OpOr,
	lexer.TokXor:    opcodes.OpXor,
	lexer.TokLshift: opcodes.OpLshift,
	lexer.TokRshift: opcodes.OpRshift,
	lexer.TokEq:     opcodes.OpEq,
	lexer.TokNeq:    opcodes.OpNeq,
	lexer.TokLt:     opcodes.OpLt,
	lexer.TokLe:     opcodes.OpLe,
	lexer.TokGt:     opcodes.OpGt,
	lexer.TokGe:     opcodes.OpGe,
}

func isPrimary(op lexer.Token) bool {
	return op == lexer.TokDig || op == lexer.TokReg || op == lexer.TokLit
}

// expr parses one subexpression at the given precedence, emitting code as
// it goes. Precedence levels are doubled so right-associative operators can
// recurse one step below their own level.
func (c *compiler) expr(precedence int) bool {
	var lvalue, assignop runtime.Lval
	lvalue.Shell = c.shp
	lvalue.Expr = c.text
	lvalue.Emode = c.emode
	wasop := false

	// Optional prefix operator. Unary plus is ignored.
prefix:
	for {
		switch op := c.lex.Next(); op {
		case lexer.TokPlus:
			continue
		case lexer.TokEOF:
			if precedence > 2 {
				return c.seterror(errors.MoreTokens)
			}
			return true
		case lexer.TokMinus:
			if !c.expr(2*lexer.MaxPrec + 1) {
				return false
			}
			c.emit(opcodes.OpUminus)
		case lexer.TokNot:
			if !c.expr(2*lexer.MaxPrec + 1) {
				return false
			}
			c.emit(opcodes.OpNot)
		case lexer.TokTilde:
			if !c.expr(2*lexer.MaxPrec + 1) {
				return false
			}
			c.emit(opcodes.OpTilde | opcodes.FlagNoFloat)
		case lexer.TokPlusPlus:
			if !c.expr(lvaluePrec) {
				return false
			}
			c.emit(opcodes.OpIncr | opcodes.FlagNoFloat)
		case lexer.TokMinusMinus:
			if !c.expr(lvaluePrec) {
				return false
			}
			c.emit(opcodes.OpDecr | opcodes.FlagNoFloat)
		default:
			c.lex.SetPos(c.lex.TokPos())
			wasop = true
		}
		break prefix
	}
	invalid := wasop

	var tokPos int
loop:
	for {
		assignop = runtime.Lval{}
		op := c.lex.Next()
		tokPos = c.lex.TokPos()

		if isPrimary(op) {
			if !wasop {
				return c.seterror(errors.SynBad)
			}
			if !c.primary(op, &lvalue) {
				return false
			}
			wasop = false
			// A function symbol must be followed by its argument list.
			if lvalue.Fun != nil {
				continue
			}
		} else {
			if wasop && op != lexer.TokLpar {
				return c.seterror(errors.SynBad)
			}
			wasop = true

			var cprec int
			if c.lex.Peek() == '=' && !op.Is(lexer.NoAssign) {
				// Compound assignment: reuse the pending l-value and widen
				// the right-hand side to capture the full expression.
				if lvalue.Value == nil || precedence > 3 {
					return c.seterror(errors.NotLvalue)
				}
				if precedence == 3 {
					precedence = 2
				}
				assignop = lvalue
				c.lex.SetPos(c.lex.Pos() + 1)
				cprec = 3
			} else {
				cprec = op.Prec()
				if cprec == lexer.MaxPrec || op == lexer.TokPow {
					cprec++
				}
				cprec *= 2
			}

			if lvalue.Value != nil && op != lexer.TokAssign {
				c.push()
				if op == lexer.TokEq || op == lexer.TokNeq {
					c.emit(opcodes.OpEnum)
				}
				pushOp := opcodes.OpPushVar
				if assignop.Value != nil {
					pushOp = opcodes.OpAssignOp1
				}
				c.emitLval(pushOp, &lvalue)
				if !op.Is(lexer.SeqPoint) {
					lvalue.Value = nil
				}
				invalid = false
			} else if precedence == lvaluePrec {
				return c.seterror(errors.NotLvalue)
			}
			// An operator in primary position is only legal when it opens a
			// group or an argument list.
			if invalid && op != lexer.TokLpar {
				return c.seterror(errors.SynBad)
			}
			if precedence >= cprec {
				break loop
			}
			if op.Is(lexer.RightAssoc) {
				cprec--
			}
			if cprec < 2*lexer.MaxPrec+1 && !op.Is(lexer.SeqPoint) {
				wasop = false
				if !c.expr(cprec) {
					return false
				}
			}

			switch op {
			case lexer.TokRpar:
				if c.paren == 0 {
					return c.seterror(errors.Paren)
				}
				if invalid {
					return c.seterror(errors.SynBad)
				}
				break loop

			case lexer.TokComma:
				wasop = false
				if c.infun > 0 {
					c.infun++
				} else {
					c.emit(opcodes.OpPop)
					c.staksize--
				}
				if !c.expr(cprec) {
					c.shp.Stk.Set(c.shp.Stk.Tell() - 1)
					return false
				}
				lvalue.Value = nil

			case lexer.TokLpar:
				if !c.call(&lvalue, invalid) {
					return false
				}
				wasop = false

			case lexer.TokPlusPlus, lexer.TokMinusMinus, lexer.TokAssign:
				if op != lexer.TokAssign {
					wasop = false
				}
				if lvalue.Value == nil {
					return c.seterror(errors.NotLvalue)
				}
				if op == lexer.TokAssign {
					c.emitLval(opcodes.OpStore, &lvalue)
					c.staksize--
				} else {
					pop := opcodes.OpPlusPlus
					if op == lexer.TokMinusMinus {
						pop = opcodes.OpMinusMinus
					}
					c.emit(pop | opcodes.FlagNoFloat)
				}
				lvalue.Value = nil

			case lexer.TokQuest:
				c.emit(opcodes.OpJmpz)
				off1 := c.operand(2, 0)
				c.emit(opcodes.OpPop)
				if !c.expr(1) {
					return false
				}
				if c.lex.Next() != lexer.TokColon {
					return c.seterror(errors.QuestColon)
				}
				c.emit(opcodes.OpJmp)
				off2 := c.operand(2, 0)
				c.shp.Stk.Put16At(off1, c.here())
				c.emit(opcodes.OpPop)
				if !c.expr(3) {
					return false
				}
				c.shp.Stk.Put16At(off2, c.here())
				lvalue.Value = nil
				wasop = false

			case lexer.TokColon:
				return c.seterror(errors.BadColon)

			case lexer.TokQColon, lexer.TokAndAnd, lexer.TokOrOr:
				jop := opcodes.OpJmpnz
				if op == lexer.TokAndAnd {
					jop = opcodes.OpJmpz
				}
				c.emit(jop)
				off := c.operand(2, 0)
				c.emit(opcodes.OpPop)
				if !c.expr(cprec) {
					return false
				}
				c.shp.Stk.Put16At(off, c.here())
				if op != lexer.TokQColon {
					c.emit(opcodes.OpNotNot)
				}
				lvalue.Value = nil
				wasop = false

			case lexer.TokAnd, lexer.TokOr, lexer.TokXor,
				lexer.TokLshift, lexer.TokRshift, lexer.TokMod:
				c.emit(binOps[op] | opcodes.FlagBinary | opcodes.FlagNoFloat)
				c.staksize--

			case lexer.TokPlus, lexer.TokMinus, lexer.TokTimes, lexer.TokDiv,
				lexer.TokPow, lexer.TokEq, lexer.TokNeq,
				lexer.TokLt, lexer.TokLe, lexer.TokGt, lexer.TokGe:
				c.emit(binOps[op] | opcodes.FlagBinary)
				c.staksize--

			default:
				return c.seterror(errors.SynBad)
			}
		}

		invalid = false
		if assignop.Value != nil {
			// Close the read-modify-write pair opened by ASSIGNOP1.
			c.push()
			c.emitLval(opcodes.OpAssignOp, &assignop)
		}
	}

	c.lex.SetPos(tokPos)
	return true
}

// call compiles a parenthesized group or, when the preceding primary
// resolved to a function symbol, its argument list and call opcode.
func (c *compiler) call(lvalue *runtime.Lval, invalid bool) bool {
	infun := c.infun
	var userfun opcodes.Opcode
	nargs := lvalue.Nargs
	if nargs < 0 && (nargs&0o70) == 0o70 {
		nargs = -nargs
	}
	fun := lvalue.Fun
	lvalue.Fun = nil
	if fun != nil {
		c.push()
		c.infun = 1
		if lvalue.Nargs < 0 {
			userfun = opcodes.FlagBinary
		} else if lvalue.Nargs&registry.NargsIntArg != 0 {
			userfun = opcodes.FlagNoFloat
		}
		c.emit(opcodes.OpPushFun)
		c.operand(4, uint64(c.prog.AddFunc(fun)))
		kind := byte(1)
		if userfun == opcodes.FlagBinary {
			kind = 2
		}
		c.shp.Stk.PutByte(kind)
	} else {
		c.infun = 0
	}
	if !invalid {
		return c.seterror(errors.SynBad)
	}
	c.paren++
	if !c.expr(1) {
		return false
	}
	c.paren--
	if fun != nil {
		x := -1
		if nargs&registry.NargsInt != 0 {
			x = 2
		}
		call := opcodes.OpCall1F
		if nargs&registry.NargsVariant != 0 {
			call = opcodes.OpCall1V
		}
		nargs &= registry.NargsMask
		if c.infun != nargs {
			return c.seterror(errors.ArgCount)
		}
		c.staksize += nargs
		if c.staksize >= c.stakmaxsize {
			c.stakmaxsize = c.staksize + nargs
		}
		c.emit(call + userfun + opcodes.Opcode(nargs+x))
		c.staksize -= nargs
	}
	c.infun = infun
	if c.lex.Next() != lexer.TokRpar {
		return c.seterror(errors.Paren)
	}
	return true
}

// primary compiles a numeric literal, character literal, or identifier.
// Identifiers are delegated to the oracle, which resolves them into an
// l-value descriptor or a constant; literals become inline push operands.
func (c *compiler) primary(op lexer.Token, lvalue *runtime.Lval) bool {
	if op == lexer.TokReg && strings.HasPrefix(c.text[c.lex.Pos():], "L'") {
		c.lex.SetPos(c.lex.Pos() + 1)
		op = lexer.TokLit
	}
	pos := c.lex.Pos()
	lvalue.Value = nil
	lvalue.Fun = nil
	lvalue.Flag = 0
	lvalue.Nargs = 0
	lvalue.IsFloat = values.TypeInt
	lvalue.Msg = ""

	var v values.Value
	if op == lexer.TokLit {
		var ok bool
		v, ok = c.charConst(pos)
		if !ok {
			return c.seterror(errors.CharConst)
		}
	} else {
		sc := &runtime.Scan{Text: c.text, Pos: pos}
		v = c.oracle(sc, lvalue, runtime.Lookup, values.NewInt(0))
		c.lex.SetPos(sc.Pos)
	}
	if c.lex.Pos() == pos {
		if lvalue.Msg != "" {
			c.errmsg.Msg = lvalue.Msg
			c.errmsg.ErrKind = lvalue.ErrKind
			c.errStr = pos
		}
		if op == lexer.TokLit {
			return c.seterror(errors.CharConst)
		}
		return c.seterror(errors.SynBad)
	}
	if op == lexer.TokDig || op == lexer.TokLit || lvalue.IsFloat == values.TypeFloat {
		c.emit(opcodes.OpPushNum)
		c.push()
		c.operand(8, v.Bits())
		c.shp.Stk.PutByte(byte(v.Type))
	}
	return true
}

// charConst decodes a character literal starting at the opening quote,
// advancing the cursor. The closing quote is optional.
func (c *compiler) charConst(pos int) (values.Value, bool) {
	body := c.text[pos:]
	if len(body) < 2 || body[0] != '\'' {
		return values.Value{}, false
	}
	// A lone backslash directly before the closing quote stands for itself.
	if len(body) >= 3 && body[1] == '\\' && body[2] == '\'' &&
		(len(body) == 3 || body[3] != '\'') {
		c.lex.SetPos(pos + 3)
		return values.NewInt('\\'), true
	}
	r, _, tail, err := strconv.UnquoteChar(body[1:], '\'')
	if err != nil {
		return values.Value{}, false
	}
	end := pos + 1 + (len(body) - 1 - len(tail))
	if end < len(c.text) && c.text[end] == '\'' {
		end++
	}
	c.lex.SetPos(end)
	return values.NewInt(int64(r)), true
}
