package sqlc

// This file compiles the four subquery call sites named in §4.4: scalar
// subqueries, IN (subquery), "expr op (subquery)", and EXISTS. An
// uncorrelated subquery is compiled inline at the point where the
// enclosing expression is evaluated, so its loop runs again on every
// evaluation; its result is not cached across evaluations. A correlated
// subquery is
// compiled once as a subroutine and invoked per outer row through the
// frame-calling convention in emitter.go.

// isCorrelated reports whether sel references any cursor outside scope's
// own FROM (i.e. one of scope.outerCursors), by walking every expression
// reachable from the select core. This is necessarily conservative: a
// column reference to an outer alias anywhere inside the subquery marks
// the whole subquery correlated, per §4.4's "correlation analysis
// pre-pass".
func (c *compiler) isCorrelated(sel *SelectStmt, scope *exprScope) bool {
	if scope == nil || len(scope.outerCursors) == 0 {
		return false
	}
	outer := make(map[string]bool, len(scope.outerCursors))
	for _, cur := range scope.outerCursors {
		for alias, cid := range c.tableAliases {
			if cid == cur {
				outer[alias] = true
			}
		}
	}
	found := false
	walkSelect(sel, func(e Expr) {
		if found {
			return
		}
		if col, ok := e.(*ColumnRef); ok {
			if col.Table != "" && outer[lower(col.Table)] {
				found = true
				return
			}
			if col.Table == "" {
				// unqualified refs are only correlated if no inner
				// source provides the column; conservatively treat
				// any unqualified name that fails to resolve to the
				// current scope's inner aliases as potentially outer.
				for _, cur := range scope.activeCursors {
					if sc, ok := c.tableSchemas[cur]; ok {
						if _, ok := sc.ColumnIndex(col.Column); ok {
							return
						}
					}
				}
				for _, cur := range scope.outerCursors {
					if sc, ok := c.tableSchemas[cur]; ok {
						if _, ok := sc.ColumnIndex(col.Column); ok {
							found = true
							return
						}
					}
				}
			}
		}
	})
	return found
}

// walkSelect calls visit on every expression node reachable from sel:
// result columns, WHERE, GROUP BY, HAVING, ORDER BY, and recursively into
// nested FROM subqueries' own predicates (but not into the bodies of
// further nested scalar subqueries found inside expressions, since those
// carry their own correlation scope).
func walkSelect(sel *SelectStmt, visit func(Expr)) {
	core := sel.Core
	for core != nil {
		for _, rc := range core.Columns {
			if rc.Expr != nil {
				walkExpr(rc.Expr, visit)
			}
		}
		if core.Where != nil {
			walkExpr(core.Where, visit)
		}
		for _, g := range core.GroupBy {
			walkExpr(g, visit)
		}
		if core.Having != nil {
			walkExpr(core.Having, visit)
		}
		walkFromSource(core.From, visit)
		if core.Compound != nil {
			core = core.Compound.Next
			continue
		}
		core = nil
	}
	for _, ot := range sel.OrderBy {
		walkExpr(ot.Expr, visit)
	}
}

func walkFromSource(f FromSource, visit func(Expr)) {
	switch n := f.(type) {
	case *JoinSource:
		walkFromSource(n.Left, visit)
		walkFromSource(n.Right, visit)
		if n.On != nil {
			walkExpr(n.On, visit)
		}
	case *SubquerySource:
		// a nested FROM subquery's own WHERE may reference the outer
		// scope (it's correlated in the same sense); walk it too.
		walkSelect(n.Select, visit)
	}
}

// walkExpr visits e and its immediate subexpressions. It does not
// descend into nested SelectStmts (scalar/IN/EXISTS subqueries carry
// their own correlation scope and are analyzed separately when they are
// themselves compiled), but it does visit column refs used directly in
// IN/comparison-vs-subquery/EXISTS left-hand sides.
func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *CastExpr:
		walkExpr(n.Expr, visit)
	case *CollateExpr:
		walkExpr(n.Expr, visit)
	case *UnaryExpr:
		walkExpr(n.Expr, visit)
	case *BinaryExpr:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *InListExpr:
		walkExpr(n.Expr, visit)
		for _, l := range n.List {
			walkExpr(l, visit)
		}
	case *InSubqueryExpr:
		walkExpr(n.Expr, visit)
	case *ComparisonVsSubqueryExpr:
		walkExpr(n.Left, visit)
	case *CaseExpr:
		if n.Operand != nil {
			walkExpr(n.Operand, visit)
		}
		for _, w := range n.Whens {
			walkExpr(w.Cond, visit)
			walkExpr(w.Then, visit)
		}
		if n.Else != nil {
			walkExpr(n.Else, visit)
		}
	case *BetweenExpr:
		walkExpr(n.Expr, visit)
		walkExpr(n.Low, visit)
		walkExpr(n.High, visit)
	case *FuncCallExpr:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
		if n.Filter != nil {
			walkExpr(n.Filter, visit)
		}
	}
}

// compileScalarSubquery implements §4.4's scalar-subquery call site: for
// an uncorrelated subquery, compile it inline once and return its first
// row's first column (NULL if no rows); for a correlated one, invoke the
// cached subroutine.
func (c *compiler) compileScalarSubquery(n *ScalarSubqueryExpr, target int, scope *exprScope) error {
	if c.isCorrelated(n.Select, scope) {
		return c.invokeCorrelatedSubroutine(n, n.Select, target, 1, scope, func(resultBase int, innerScope *exprScope) error {
			return c.compileUncorrelatedScalar(n.Select, resultBase, innerScope)
		})
	}
	return c.compileUncorrelatedScalar(n.Select, target, scope)
}

// compileUncorrelatedScalar runs sel's plan inline, capturing the first
// row's first result column into target and leaving NULL if the subquery
// produces no rows (§4.4). Every row is still visited (no early exit out
// of the nested FROM loop, see compileExists); a captured flag tells a
// second row from a first, and a second row raises a runtime error
// rather than silently being dropped (§4.4, §8's ">1 row" boundary case).
func (c *compiler) compileUncorrelatedScalar(sel *SelectStmt, target int, scope *exprScope) error {
	c.emitSimple(OpNull, 0, int32(target), 0)
	captured := c.allocateRegister(1)
	c.emitSimple(OpInteger, 0, int32(captured), 0)

	err := c.compileSelectForEachRow(sel, scope, func(rowReg int) error {
		firstRow := c.allocateAddress("scalar-first-row")
		c.emitSimple(OpIfFalse, int32(captured), int32(firstRow), 0)
		c.emit(OpConstraintViolation, int32(ConflictAbort), 0, 0, p4Str("scalar subquery returned more than one row"), 0, "")

		if err := c.resolveAddress(firstRow); err != nil {
			return err
		}
		c.emitSimple(OpSCopy, int32(rowReg), int32(target), 0)
		c.emitSimple(OpInteger, 1, int32(captured), 0)
		return nil
	})
	return err
}

// compileInSubquery implements IN (subquery) by materializing the
// subquery's single result column into an ephemeral set, then reusing
// the list-membership scan (§4.4).
func (c *compiler) compileInSubquery(n *InSubqueryExpr, target int, scope *exprScope) error {
	lhs := c.allocateRegister(1)
	if err := c.compileExpr(n.Expr, lhs, scope); err != nil {
		return err
	}

	isNull := c.allocateAddress("in-subquery-lhs-null")
	c.emitSimple(OpIsNull, int32(lhs), int32(isNull), 0)

	setCursor, hasNullElem, err := c.materializeSingleColumnSet(n.Select, scope)
	if err != nil {
		return err
	}

	matchFound, err := c.scanEphemeralForMatch(setCursor, lhs)
	if err != nil {
		return err
	}

	c.emitSimple(OpInteger, 0, int32(target), 0)
	matched := c.allocateAddress("in-sub-matched")
	c.emitSimple(OpIfTrue, int32(matchFound), int32(matched), 0)
	hasNull := c.allocateAddress("in-sub-has-null")
	c.emitSimple(OpIfTrue, int32(hasNullElem), int32(hasNull), 0)
	done := c.allocateAddress("in-sub-done")
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
		c.emitSimple(OpNot, int32(target), int32(target), 0)
	}
	return nil
}

// materializeSingleColumnSet runs sel (which must be uncorrelated per
// §4.4's Non-goal on correlated IN-subqueries) and inserts its first
// result column into a fresh ephemeral cursor, tracking whether any row
// produced a NULL (needed for IN's three-valued-logic contract).
func (c *compiler) materializeSingleColumnSet(sel *SelectStmt, scope *exprScope) (cursor int, hasNullElem int, err error) {
	cursor = c.allocateCursor()
	c.emit(OpOpenEphemeral, int32(cursor), 0, 0, p4Null(), 0, "ephemeral set for IN (subquery)")
	hasNullElem = c.allocateRegister(1)
	c.emitSimple(OpInteger, 0, int32(hasNullElem), 0)

	err = c.compileSelectForEachRow(sel, scope, func(rowReg int) error {
		elemIsNull := c.allocateAddress("in-sub-elem-null")
		c.emitSimple(OpIsNull, int32(rowReg), int32(elemIsNull), 0)
		rec := c.allocateRegister(1)
		c.emit(OpMakeRecord, int32(rowReg), 1, int32(rec), p4Null(), 0, "")
		c.emit(OpVUpdate, int32(cursor), 1, int32(rec), p4UpdateInfo(ConflictIgnore), 0, "insert set member")
		skip := c.allocateAddress("in-sub-elem-done")
		c.emitSimple(OpGoto, 0, int32(skip), 0)
		if err := c.resolveAddress(elemIsNull); err != nil {
			return err
		}
		c.emitSimple(OpInteger, 1, int32(hasNullElem), 0)
		return c.resolveAddress(skip)
	})
	if err != nil {
		return 0, 0, err
	}
	c.emit(OpClose, int32(cursor), 0, 0, p4Null(), 0, "")
	return cursor, hasNullElem, nil
}

// compileExists implements EXISTS/NOT EXISTS: true iff the subquery
// produces at least one row. Correlated EXISTS uses the subroutine
// calling convention with an early-exit on first match (§4.4).
func (c *compiler) compileExists(n *ExistsExpr, target int, scope *exprScope) error {
	if c.isCorrelated(n.Select, scope) {
		if err := c.invokeCorrelatedSubroutine(n, n.Select, target, 1, scope, func(resultBase int, innerScope *exprScope) error {
			c.emitSimple(OpInteger, 0, int32(resultBase), 0)
			found := c.allocateAddress("exists-sub-found")
			err := c.compileSelectForEachRow(n.Select, innerScope, func(rowReg int) error {
				c.emitSimple(OpInteger, 1, int32(resultBase), 0)
				c.emitSimple(OpGoto, 0, int32(found), 0)
				return nil
			})
			if err != nil {
				return err
			}
			return c.resolveAddress(found)
		}); err != nil {
			return err
		}
	} else {
		c.emitSimple(OpInteger, 0, int32(target), 0)
		found := c.allocateAddress("exists-found")
		err := c.compileSelectForEachRow(n.Select, scope, func(rowReg int) error {
			c.emitSimple(OpInteger, 1, int32(target), 0)
			c.emitSimple(OpGoto, 0, int32(found), 0)
			return nil
		})
		if err != nil {
			return err
		}
		if err := c.resolveAddress(found); err != nil {
			return err
		}
	}
	if n.Negate {
		c.emitSimple(OpNot, int32(target), int32(target), 0)
	}
	return nil
}

// compileComparisonVsSubquery implements "expr op (subquery)" (§4.4) by
// desugaring to a scalar-subquery comparison, so a subquery that
// returns more than one row raises the same runtime error a scalar
// subquery does.
func (c *compiler) compileComparisonVsSubquery(n *ComparisonVsSubqueryExpr, target int, scope *exprScope) error {
	rhs := c.allocateRegister(1)
	if err := c.compileScalarSubquery(&ScalarSubqueryExpr{Select: n.Select}, rhs, scope); err != nil {
		return err
	}
	cmp := &BinaryExpr{Op: n.Op, Left: n.Left, Right: &regExpr{reg: rhs}}
	return c.compileExpr(cmp, target, scope)
}

// invokeCorrelatedSubroutine looks up (or compiles, on first reference)
// the subroutine for sub's AST identity, pushes the current outer-row
// correlation values as arguments, calls it, and copies back
// resultCount result registers starting at target (§4.4). body computes
// the subroutine's result registers on first compilation: a plain value
// capture for scalar subqueries, an existence flag for EXISTS.
func (c *compiler) invokeCorrelatedSubroutine(key Expr, sel *SelectStmt, target int, resultCount int, scope *exprScope, body func(resultBase int, innerScope *exprScope) error) error {
	def, ok := c.subroutines[key]
	if !ok {
		var err error
		def, err = c.compileCorrelatedSubroutine(sel, resultCount, scope, body)
		if err != nil {
			return err
		}
		c.subroutines[key] = def
	}

	for _, ref := range def.Correlated {
		argReg := c.allocateRegister(1)
		c.emit(OpVColumn, int32(ref.OuterCursor), int32(ref.OuterColumn), int32(argReg), p4Null(), 0, "")
		c.emitSimple(OpPush, int32(argReg), 0, 0)
	}
	c.emitSimple(OpSubroutine, 0, int32(def.StartAddr), 0)

	// Results were pushed in order (resultBase .. resultBase+N-1) before
	// Return, so they pop back in reverse.
	for i := resultCount - 1; i >= 0; i-- {
		c.emitSimple(OpStackPop, int32(target+i), 0, 0)
	}
	return nil
}

// compileCorrelatedSubroutine emits sel's body once inside a subroutine
// frame, with outer (cursor,column) references rewritten to frame-
// relative argument reads via argMap (§4.4), and returns the definition
// recording how many correlated values must be pushed per call.
func (c *compiler) compileCorrelatedSubroutine(sel *SelectStmt, resultCount int, outerScope *exprScope, body func(resultBase int, innerScope *exprScope) error) (*subroutineDef, error) {
	var correlated []correlationRef
	seen := make(map[correlationRef]bool)
	walkSelect(sel, func(e Expr) {
		col, ok := e.(*ColumnRef)
		if !ok {
			return
		}
		cur, colIdx, _, err := c.resolveColumnRef(col, outerScope)
		if err != nil {
			return
		}
		isOuter := false
		for _, oc := range outerScope.outerCursors {
			if oc == cur {
				isOuter = true
				break
			}
		}
		if !isOuter {
			return
		}
		ref := correlationRef{OuterCursor: cur, OuterColumn: colIdx}
		if !seen[ref] {
			seen[ref] = true
			correlated = append(correlated, ref)
		}
	})

	argMap := make(map[correlationRef]int, len(correlated))

	startAddr := c.startSubroutine()
	for i, ref := range correlated {
		off := -(len(correlated) - i)
		argMap[ref] = off
	}

	innerScope := &exprScope{argMap: argMap, outerCursors: outerScope.outerCursors}
	resultBase := c.allocateRegister(resultCount)
	if err := body(resultBase, innerScope); err != nil {
		return nil, err
	}
	for i := 0; i < resultCount; i++ {
		c.emitSimple(OpPush, int32(resultBase+i), 0, 0)
	}
	c.emitSimple(OpReturn, 0, 0, 0)
	c.endSubroutine()

	return &subroutineDef{
		StartAddr:      startAddr,
		Correlated:     correlated,
		ArgCount:       len(correlated),
		ResultRegCount: resultCount,
	}, nil
}

func (c *compiler) compileUncorrelatedScalarInto(sel *SelectStmt, target int, scope *exprScope) error {
	return c.compileUncorrelatedScalar(sel, target, scope)
}
