package sqlc

import (
	"math"
	"strconv"
	"strings"
)

// exprScope carries everything the expression compiler needs beyond the
// compiler's own transient state: which cursors are currently active,
// how to resolve a column reference inside a subroutine's argument
// frame, and the HAVING/window final-column remapping table.
type exprScope struct {
	// activeCursors lists cursors currently open and in scope, in the
	// order they should be searched for unqualified column resolution.
	activeCursors []int

	// inHaving, when true, routes column references through
	// finalColumnMap instead of emitting VColumn directly (§4.3).
	inHaving bool

	// argMap maps a correlated outer (cursor,column) pair to the
	// negative frame-pointer offset it was pushed at, when compiling
	// inside a subroutine body (§4.3 "Column ref inside subroutine with
	// argument map"). A negative register operand on SCopy (and nowhere
	// else) is interpreted by the VDBE as frame-pointer-relative rather
	// than an absolute register slot; this is the sole place the compiler
	// emits one.
	argMap map[correlationRef]int

	// outerCursors are the enclosing query's active cursors, consulted
	// by correlation analysis (and by column resolution when argMap
	// doesn't cover a reference, which is a bug if it happens at
	// runtime but is still handled defensively here).
	outerCursors []int

	// rowValues maps a column name directly to the register already
	// holding its proposed value, bypassing cursor resolution entirely.
	// Used to compile CHECK constraint expressions against a row that
	// has no cursor yet because it hasn't been written (§4.8).
	rowValues map[string]int

	// nullCursors marks cursors whose columns must read as NULL rather
	// than via VColumn: set around the re-entrant "no match" branch of a
	// LEFT JOIN level (§4.5 "loop closing"), where the inner row
	// processor runs once more with that level's row forced to all-NULL.
	nullCursors map[int]bool
}

// compileExpr dispatches on the expression node's dynamic type and
// leaves its value in target, per the contract table in §4.3.
func (c *compiler) compileExpr(e Expr, target int, scope *exprScope) error {
	switch n := e.(type) {
	case *NullLit:
		c.emitSimple(OpNull, 0, int32(target), 0)
		return nil

	case *IntLit:
		if n.Value >= math.MinInt32 && n.Value <= math.MaxInt32 {
			c.emitSimple(OpInteger, int32(n.Value), int32(target), 0)
		} else {
			idx := c.addConstant(Literal{Kind: LitBigInt, I: n.Value})
			c.emit(OpInt64, int32(target), 0, 0, p4Int(int64(idx)), 0, "")
		}
		return nil

	case *BigIntLit:
		idx := c.addConstant(Literal{Kind: LitBigInt, I: n.Value})
		c.emit(OpInt64, int32(target), 0, 0, p4Int(int64(idx)), 0, "")
		return nil

	case *RealLit:
		idx := c.addConstant(Literal{Kind: LitReal, R: n.Value})
		c.emit(OpReal, int32(target), 0, 0, p4Int(int64(idx)), 0, "")
		return nil

	case *StringLit:
		idx := c.addConstant(Literal{Kind: LitString, S: n.Value})
		c.emit(OpString8, int32(target), 0, 0, p4Int(int64(idx)), 0, "")
		return nil

	case *BlobLit:
		idx := c.addConstant(Literal{Kind: LitBlob, B: n.Value})
		c.emit(OpBlob, int32(target), 0, 0, p4Int(int64(idx)), 0, "")
		return nil

	case *ParamExpr:
		return c.compileParam(n, target)

	case *ColumnRef:
		return c.compileColumnRef(n, target, scope)

	case *CastExpr:
		if err := c.compileExpr(n.Expr, target, scope); err != nil {
			return err
		}
		c.emit(OpAffinity, int32(target), 0, 0, p4Int(int64(n.Affinity)), 0, "")
		return nil

	case *CollateExpr:
		// Collation attaches to a later comparison operator; evaluating
		// a bare COLLATE expression just evaluates its operand.
		return c.compileExpr(n.Expr, target, scope)

	case *UnaryExpr:
		return c.compileUnary(n, target, scope)

	case *BinaryExpr:
		return c.compileBinary(n, target, scope)

	case *InListExpr:
		return c.compileInList(n, target, scope)

	case *InSubqueryExpr:
		return c.compileInSubquery(n, target, scope)

	case *ExistsExpr:
		return c.compileExists(n, target, scope)

	case *ScalarSubqueryExpr:
		return c.compileScalarSubquery(n, target, scope)

	case *ComparisonVsSubqueryExpr:
		return c.compileComparisonVsSubquery(n, target, scope)

	case *CaseExpr:
		return c.compileCase(n, target, scope)

	case *BetweenExpr:
		return c.compileBetween(n, target, scope)

	case *FuncCallExpr:
		return c.compileFuncCall(n, target, scope)

	case *regExpr:
		c.emitSimple(OpSCopy, int32(n.reg), int32(target), 0)
		return nil

	default:
		return internalErrorf("compileExpr: unhandled expression node %T", e)
	}
}

func (c *compiler) compileParam(n *ParamExpr, target int) error {
	var key string
	switch n.Kind {
	case ParamPositional:
		if n.Position <= 0 {
			return syntaxErrorf("invalid positional parameter index %d", n.Position)
		}
		key = itoa(n.Position)
	case ParamNamed:
		key = n.Name
	default:
		return internalErrorf("compileParam: unknown parameter kind %d", n.Kind)
	}

	if reg, ok := c.parameters[key]; ok {
		// duplicate occurrences reuse the same register slot (§6)
		c.emitSimple(OpSCopy, int32(reg), int32(target), 0)
		return nil
	}

	c.emitSimple(OpNull, 0, int32(target), 0)
	c.parameters[key] = target
	return nil
}

// compileColumnRef resolves alias/schema and emits VColumn, or routes
// through the HAVING final-column map / subroutine argument map per the
// three column-ref contracts in §4.3.
func (c *compiler) compileColumnRef(n *ColumnRef, target int, scope *exprScope) error {
	if scope != nil && scope.rowValues != nil && n.Table == "" {
		if reg, ok := scope.rowValues[lower(n.Column)]; ok {
			c.emitSimple(OpSCopy, int32(reg), int32(target), 0)
			return nil
		}
	}

	cursor, colIdx, schema, err := c.resolveColumnRef(n, scope)
	if err != nil {
		return err
	}

	if scope != nil && scope.nullCursors[cursor] {
		c.emitSimple(OpNull, 0, int32(target), 0)
		return nil
	}

	if scope != nil && scope.argMap != nil {
		if off, ok := scope.argMap[correlationRef{OuterCursor: cursor, OuterColumn: colIdx}]; ok {
			c.emitSimple(OpSCopy, int32(off), int32(target), 0)
			return nil
		}
	}

	if scope != nil && scope.inHaving {
		if reg, ok := c.finalColumnMap[columnMapKey{kind: mapGroupKey, expr: n}]; ok {
			c.emitSimple(OpSCopy, int32(reg), int32(target), 0)
			return nil
		}
	}

	_ = schema
	c.emit(OpVColumn, int32(cursor), int32(colIdx), int32(target), p4Null(), 0, "")
	return nil
}

// resolveColumnRef finds the cursor and column index for a (possibly
// unqualified) column reference among the scope's active cursors.
// Unqualified names must resolve unambiguously (§4.3).
func (c *compiler) resolveColumnRef(n *ColumnRef, scope *exprScope) (cursor, colIdx int, schema *TableSchema, err error) {
	candidates := scope.activeCursors
	if n.Table != "" {
		cur, ok := c.tableAliases[lower(n.Table)]
		if !ok {
			return 0, 0, nil, syntaxErrorf("no such table or alias: %s", n.Table)
		}
		sc := c.tableSchemas[cur]
		idx, ok := sc.ColumnIndex(n.Column)
		if !ok {
			return 0, 0, nil, syntaxErrorf("no such column: %s.%s", n.Table, n.Column)
		}
		return cur, idx, sc, nil
	}

	var found []int
	var foundCol int
	var foundSchema *TableSchema
	for _, cur := range candidates {
		sc, ok := c.tableSchemas[cur]
		if !ok {
			continue
		}
		if idx, ok := sc.ColumnIndex(n.Column); ok {
			found = append(found, cur)
			foundCol = idx
			foundSchema = sc
		}
	}
	switch len(found) {
	case 0:
		return 0, 0, nil, syntaxErrorf("no such column: %s", n.Column)
	case 1:
		return found[0], foundCol, foundSchema, nil
	default:
		return 0, 0, nil, syntaxErrorf("ambiguous column name: %s", n.Column)
	}
}

func (c *compiler) compileUnary(n *UnaryExpr, target int, scope *exprScope) error {
	switch n.Op {
	case UnaryMinus:
		if err := c.compileExpr(n.Expr, target, scope); err != nil {
			return err
		}
		c.emitSimple(OpNegative, int32(target), int32(target), 0)
		return nil
	case UnaryPlus:
		return c.compileExpr(n.Expr, target, scope)
	case UnaryBitNot:
		if err := c.compileExpr(n.Expr, target, scope); err != nil {
			return err
		}
		c.emitSimple(OpBitNot, int32(target), int32(target), 0)
		return nil
	case UnaryNot:
		// NOT preserves three-valued logic: NULL -> NULL.
		if err := c.compileExpr(n.Expr, target, scope); err != nil {
			return err
		}
		c.emitSimple(OpNot, int32(target), int32(target), 0)
		return nil
	case UnaryIsNull:
		return c.compileIsNullTest(n.Expr, target, scope, false)
	case UnaryIsNotNull:
		return c.compileIsNullTest(n.Expr, target, scope, true)
	default:
		return internalErrorf("compileUnary: unknown unary op %d", n.Op)
	}
}

func (c *compiler) compileIsNullTest(operand Expr, target int, scope *exprScope, negate bool) error {
	tmp := c.allocateRegister(1)
	if err := c.compileExpr(operand, tmp, scope); err != nil {
		return err
	}
	c.emitSimple(OpInteger, 1, int32(target), 0)
	after := c.allocateAddress("is-null-test-end")
	op := OpIsNull
	if negate {
		op = OpNotNull
	}
	c.emitSimple(op, int32(tmp), int32(after), 0)
	c.emitSimple(OpInteger, 0, int32(target), 0)
	return c.resolveAddress(after)
}

func (c *compiler) compileBinary(n *BinaryExpr, target int, scope *exprScope) error {
	switch n.Op {
	case BinAnd:
		return c.compileAnd(n, target, scope)
	case BinOr:
		return c.compileOr(n, target, scope)
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe, BinIs, BinIsNot:
		return c.compileComparison(n, target, scope)
	}

	left := c.allocateRegister(1)
	right := c.allocateRegister(1)
	if err := c.compileExpr(n.Left, left, scope); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right, right, scope); err != nil {
		return err
	}

	op, ok := arithmeticOpcodes[n.Op]
	if !ok {
		return internalErrorf("compileBinary: unhandled binary op %d", n.Op)
	}
	c.emitSimple(op, int32(left), int32(right), int32(target))
	return nil
}

var arithmeticOpcodes = map[BinaryOp]Op{
	BinAdd: OpAdd, BinSub: OpSubtract, BinMul: OpMultiply, BinDiv: OpDivide,
	BinMod: OpRemainder, BinConcat: OpConcat, BinBitAnd: OpBitAnd, BinBitOr: OpBitOr,
	BinShl: OpShiftLeft, BinShr: OpShiftRight,
}

// compileAnd implements short-circuit AND: result = left-if-falsy-else-right,
// preserving NULL (§4.3).
func (c *compiler) compileAnd(n *BinaryExpr, target int, scope *exprScope) error {
	if err := c.compileExpr(n.Left, target, scope); err != nil {
		return err
	}
	done := c.allocateAddress("and-short-circuit")
	c.emitSimple(OpIfFalse, int32(target), int32(done), 0)
	c.emitSimple(OpIfNull, int32(target), int32(done), 0)
	if err := c.compileExpr(n.Right, target, scope); err != nil {
		return err
	}
	return c.resolveAddress(done)
}

// compileOr implements short-circuit OR: result = left-if-truthy-else-right,
// preserving NULL (§4.3).
func (c *compiler) compileOr(n *BinaryExpr, target int, scope *exprScope) error {
	if err := c.compileExpr(n.Left, target, scope); err != nil {
		return err
	}
	done := c.allocateAddress("or-short-circuit")
	c.emitSimple(OpIfTrue, int32(target), int32(done), 0)
	c.emitSimple(OpIfNull, int32(target), int32(done), 0)
	if err := c.compileExpr(n.Right, target, scope); err != nil {
		return err
	}
	return c.resolveAddress(done)
}

var comparisonOpcodes = map[BinaryOp]Op{
	BinEq: OpEq, BinNe: OpNe, BinLt: OpLt, BinLe: OpLe, BinGt: OpGt, BinGe: OpGe,
	BinIs: OpEq, BinIsNot: OpNe,
}

// compileComparison sets target to 1/0 via a conditional jump. For
// non-IS variants, NULL on either side yields NULL (§4.3).
func (c *compiler) compileComparison(n *BinaryExpr, target int, scope *exprScope) error {
	left := c.allocateRegister(1)
	right := c.allocateRegister(1)
	if err := c.compileExpr(n.Left, left, scope); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right, right, scope); err != nil {
		return err
	}

	isVariant := n.Op == BinIs || n.Op == BinIsNot
	if !isVariant {
		nullResult := c.allocateAddress("cmp-null-result")
		c.emitSimple(OpIsNull, int32(left), int32(nullResult), 0)
		c.emitSimple(OpIsNull, int32(right), int32(nullResult), 0)

		c.emitSimple(OpInteger, 0, int32(target), 0)
		trueAddr := c.allocateAddress("cmp-true")
		op := comparisonOpcodes[n.Op]
		var p4 P4Value
		if n.Collation != "" {
			p4 = p4Collation(n.Collation)
		} else {
			p4 = p4Null()
		}
		c.emit(op, int32(left), int32(trueAddr), int32(right), p4, 0, "")
		done := c.allocateAddress("cmp-done")
		c.emitSimple(OpGoto, 0, int32(done), 0)

		if err := c.resolveAddress(trueAddr); err != nil {
			return err
		}
		c.emitSimple(OpInteger, 1, int32(target), 0)
		c.emitSimple(OpGoto, 0, int32(done), 0)

		if err := c.resolveAddress(nullResult); err != nil {
			return err
		}
		c.emitSimple(OpNull, 0, int32(target), 0)

		return c.resolveAddress(done)
	}

	// IS / IS NOT treat NULL as an ordinary comparable value.
	c.emitSimple(OpInteger, 1, int32(target), 0)
	done := c.allocateAddress("cmp-is-done")
	op := comparisonOpcodes[n.Op]
	c.emit(op, int32(left), int32(done), int32(right), p4Null(), 0, "")
	c.emitSimple(OpInteger, 0, int32(target), 0)
	return c.resolveAddress(done)
}

// compileInList builds an ephemeral set from the literal list, scans it,
// and applies IN's three-valued-logic contract (§4.3).
func (c *compiler) compileInList(n *InListExpr, target int, scope *exprScope) error {
	lhs := c.allocateRegister(1)
	if err := c.compileExpr(n.Expr, lhs, scope); err != nil {
		return err
	}

	// NULL left -> NULL, regardless of the list's contents.
	isNull := c.allocateAddress("in-list-lhs-null")
	c.emitSimple(OpIsNull, int32(lhs), int32(isNull), 0)

	setCursor := c.allocateCursor()
	c.emit(OpOpenEphemeral, int32(setCursor), 0, 0, p4Null(), 0, "ephemeral set for IN (...)")
	hasNullElem := c.allocateRegister(1)
	c.emitSimple(OpInteger, 0, int32(hasNullElem), 0)
	for _, elem := range n.List {
		elemReg := c.allocateRegister(1)
		if err := c.compileExpr(elem, elemReg, scope); err != nil {
			return err
		}
		elemIsNull := c.allocateAddress("in-list-elem-null")
		c.emitSimple(OpIsNull, int32(elemReg), int32(elemIsNull), 0)
		rec := c.allocateRegister(1)
		c.emit(OpMakeRecord, int32(elemReg), 1, int32(rec), p4Null(), 0, "")
		c.emit(OpVUpdate, int32(setCursor), 1, int32(rec), p4UpdateInfo(ConflictIgnore), 0, "insert set member")
		skip := c.allocateAddress("in-list-elem-done")
		c.emitSimple(OpGoto, 0, int32(skip), 0)
		if err := c.resolveAddress(elemIsNull); err != nil {
			return err
		}
		c.emitSimple(OpInteger, 1, int32(hasNullElem), 0)
		if err := c.resolveAddress(skip); err != nil {
			return err
		}
	}
	matchFound, err := c.scanEphemeralForMatch(setCursor, lhs)
	if err != nil {
		return err
	}
	c.emit(OpClose, int32(setCursor), 0, 0, p4Null(), 0, "")

	c.emitSimple(OpInteger, 0, int32(target), 0)
	matched := c.allocateAddress("in-list-matched")
	c.emitSimple(OpIfTrue, int32(matchFound), int32(matched), 0)
	hasNull := c.allocateAddress("in-list-has-null")
	c.emitSimple(OpIfTrue, int32(hasNullElem), int32(hasNull), 0)
	done := c.allocateAddress("in-list-done")
	c.emitSimple(OpGoto, 0, int32(done), 0)

	if err := c.resolveAddress(matched); err != nil {
		return err
	}
	c.emitSimple(OpInteger, 1, int32(target), 0)
	c.emitSimple(OpGoto, 0, int32(done), 0)

	if err := c.resolveAddress(hasNull); err != nil {
		return err
	}
	c.emitSimple(OpNull, 0, int32(target), 0)
	c.emitSimple(OpGoto, 0, int32(done), 0)

	if err := c.resolveAddress(isNull); err != nil {
		return err
	}
	c.emitSimple(OpNull, 0, int32(target), 0)

	if err := c.resolveAddress(done); err != nil {
		return err
	}

	if n.Negate {
		// NOT IN inverts TRUE/FALSE, preserves NULL.
		c.emitSimple(OpNot, int32(target), int32(target), 0)
	}
	return nil
}

// scanEphemeralForMatch rewinds the ephemeral set cursor and returns a
// register set to 1 if any row equals probe, 0 otherwise.
func (c *compiler) scanEphemeralForMatch(cursor, probe int) (int, error) {
	found := c.allocateRegister(1)
	c.emitSimple(OpInteger, 0, int32(found), 0)

	eof := c.allocateAddress("scan-eof")
	c.emitSimple(OpRewind, int32(cursor), int32(eof), 0)
	loop := len(*c.activeBuffer())

	cur := c.allocateRegister(1)
	c.emit(OpVColumn, int32(cursor), 0, int32(cur), p4Null(), 0, "")
	notEq := c.allocateAddress("scan-not-eq")
	c.emitSimple(OpNe, int32(cur), int32(notEq), int32(probe))
	c.emitSimple(OpInteger, 1, int32(found), 0)
	doneAddr := c.allocateAddress("scan-done")
	c.emitSimple(OpGoto, 0, int32(doneAddr), 0)

	if err := c.resolveAddress(notEq); err != nil {
		return 0, err
	}
	c.emitSimple(OpVNext, int32(cursor), int32(loop), 0)

	if err := c.resolveAddress(eof); err != nil {
		return 0, err
	}
	if err := c.resolveAddress(doneAddr); err != nil {
		return 0, err
	}
	return found, nil
}

func (c *compiler) compileCase(n *CaseExpr, target int, scope *exprScope) error {
	done := c.allocateAddress("case-done")
	var operandReg int
	if n.Operand != nil {
		operandReg = c.allocateRegister(1)
		if err := c.compileExpr(n.Operand, operandReg, scope); err != nil {
			return err
		}
	}

	for _, w := range n.Whens {
		condReg := c.allocateRegister(1)
		if n.Operand != nil {
			// CASE x WHEN y THEN ... decomposes to x = y.
			cmp := &BinaryExpr{Op: BinEq, Left: &regExpr{reg: operandReg}, Right: w.Cond}
			if err := c.compileExpr(cmp, condReg, scope); err != nil {
				return err
			}
		} else {
			if err := c.compileExpr(w.Cond, condReg, scope); err != nil {
				return err
			}
		}
		next := c.allocateAddress("case-next-when")
		c.emitSimple(OpIfFalse, int32(condReg), int32(next), 0)
		c.emitSimple(OpIfNull, int32(condReg), int32(next), 0)
		if err := c.compileExpr(w.Then, target, scope); err != nil {
			return err
		}
		c.emitSimple(OpGoto, 0, int32(done), 0)
		if err := c.resolveAddress(next); err != nil {
			return err
		}
	}

	if n.Else != nil {
		if err := c.compileExpr(n.Else, target, scope); err != nil {
			return err
		}
	} else {
		c.emitSimple(OpNull, 0, int32(target), 0)
	}
	return c.resolveAddress(done)
}

// regExpr is a synthetic Expr wrapping an already-populated register, used
// internally to desugar CASE/BETWEEN into comparisons without re-evaluating
// their operand expression.
type regExpr struct{ reg int }

func (*regExpr) isExpr() {}

func (c *compiler) compileBetween(n *BetweenExpr, target int, scope *exprScope) error {
	probe := c.allocateRegister(1)
	if err := c.compileExpr(n.Expr, probe, scope); err != nil {
		return err
	}
	ge := &BinaryExpr{Op: BinGe, Left: &regExpr{reg: probe}, Right: n.Low}
	le := &BinaryExpr{Op: BinLe, Left: &regExpr{reg: probe}, Right: n.High}
	and := &BinaryExpr{Op: BinAnd, Left: ge, Right: le}
	if err := c.compileExpr(and, target, scope); err != nil {
		return err
	}
	if n.Negate {
		c.emitSimple(OpNot, int32(target), int32(target), 0)
	}
	return nil
}

// compileFuncCall evaluates args into contiguous registers and emits
// Function, except for: aggregate calls outside an aggregating context
// (compiled as NULL, §4.3) and window-function references (replaced by
// a move from the pre-populated placeholder register, §4.6 — handled by
// the select orchestrator rewriting FuncCallExpr.Over nodes before this
// is reached; compileFuncCall itself only ever sees a literal call).
func (c *compiler) compileFuncCall(n *FuncCallExpr, target int, scope *exprScope) error {
	if n.Over != nil {
		return internalErrorf("compileFuncCall: window function %q reached the scalar expression compiler; the orchestrator must rewrite it to a placeholder move first", n.Name)
	}

	def, err := c.catalog.FindFunction(n.Name, len(n.Args))
	if err != nil {
		return syntaxErrorf("no such function: %s/%d: %v", n.Name, len(n.Args), err)
	}

	if def.IsAgg && !(scope != nil && scope.inHaving) {
		// Aggregate function referenced in scalar (non-grouping) context.
		c.emitSimple(OpNull, 0, int32(target), 0)
		return nil
	}

	if def.IsAgg && scope != nil && scope.inHaving {
		if reg, ok := c.finalColumnMap[columnMapKey{kind: mapAggregateResult, expr: n}]; ok {
			c.emitSimple(OpSCopy, int32(reg), int32(target), 0)
			return nil
		}
	}

	base := 0
	if len(n.Args) > 0 {
		base = c.allocateRegister(len(n.Args))
		for i, a := range n.Args {
			if err := c.compileExpr(a, base+i, scope); err != nil {
				return err
			}
		}
	}
	c.emit(OpFunction, int32(base), int32(len(n.Args)), int32(target), p4Func(def), 0, n.Name+"(...)")
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func lower(s string) string { return strings.ToLower(s) }
