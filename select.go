package sqlc

// This file implements §4.6: the SELECT orchestrator. It dispatches each
// SelectCore to one of three row processors (direct, aggregate, window),
// and the statement-level compiler wraps that with ORDER BY/LIMIT/OFFSET
// and compound-select concatenation.

// compileSelectCoreRows runs core's FROM/WHERE loop and, once per
// qualifying row (or once per group, for aggregates; once per window
// row, for window functions), evaluates the SELECT list into a fresh
// block of contiguous registers and calls emit with them.
func (c *compiler) compileSelectCoreRows(core *SelectCore, outerScope *exprScope, emit func(regs []int) error) error {
	scope := &exprScope{
		activeCursors: append([]int{}, outerScope.activeCursors...),
		outerCursors:  outerScope.outerCursors,
	}

	hasAgg, hasWindow := c.classifySelectList(core)

	switch {
	case hasWindow:
		return c.compileWindowRows(core, scope, emit)
	case hasAgg || len(core.GroupBy) > 0:
		return c.compileAggregateRows(core, scope, emit)
	default:
		return c.compileDirectRows(core, scope, emit)
	}
}

// classifySelectList reports whether any SELECT-list expression (or the
// HAVING clause) references an aggregate or window function call.
func (c *compiler) classifySelectList(core *SelectCore) (hasAgg, hasWindow bool) {
	check := func(e Expr) {
		walkExpr(e, func(n Expr) {
			fc, ok := n.(*FuncCallExpr)
			if !ok {
				return
			}
			if fc.Over != nil {
				hasWindow = true
				return
			}
			if def, err := c.catalog.FindFunction(fc.Name, len(fc.Args)); err == nil && def.IsAgg {
				hasAgg = true
			}
		})
	}
	for _, rc := range core.Columns {
		if rc.Expr != nil {
			check(rc.Expr)
		}
	}
	if core.Having != nil {
		check(core.Having)
	}
	return hasAgg, hasWindow
}

// compileDirectRows implements §4.6's Direct processor: no aggregates,
// no window functions. Each qualifying row's SELECT list is evaluated
// straight into registers.
func (c *compiler) compileDirectRows(core *SelectCore, scope *exprScope, emit func(regs []int) error) error {
	return c.compileFromAndLoop(core.From, core.Where, scope, func() error {
		regs, err := c.evalResultColumns(core.Columns, scope)
		if err != nil {
			return err
		}
		return emit(regs)
	})
}

// evalResultColumns evaluates a SELECT list into a fresh contiguous
// register block, expanding "*"/"alias.*" into one VColumn read per
// underlying column (§4.3's column-ref contract, applied per matching
// cursor).
func (c *compiler) evalResultColumns(cols []ResultColumn, scope *exprScope) ([]int, error) {
	var regs []int
	for _, rc := range cols {
		if rc.Star {
			cursors := scope.activeCursors
			if rc.Table != "" {
				cur, ok := c.tableAliases[lower(rc.Table)]
				if !ok {
					return nil, syntaxErrorf("no such table or alias: %s", rc.Table)
				}
				cursors = []int{cur}
			}
			for _, cur := range cursors {
				schema := c.tableSchemas[cur]
				for i := range schema.Columns {
					reg := c.allocateRegister(1)
					c.emit(OpVColumn, int32(cur), int32(i), int32(reg), p4Null(), 0, "")
					regs = append(regs, reg)
				}
			}
			continue
		}
		reg := c.allocateRegister(1)
		if err := c.compileExpr(rc.Expr, reg, scope); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// compileSelectRowsInto drives every compound arm of sel (UNION/UNION
// ALL/INTERSECT/EXCEPT all reduce to sequential concatenation; no arm's
// rows are deduplicated or filtered against another's, and
// compileSelectStmt uses this same path for the top-level statement)
// and forwards each arm's rows to body. Used by subquery call sites and derived-table
// materialization, which only need a flat row stream.
func (c *compiler) compileSelectRowsInto(sel *SelectStmt, outerScope *exprScope, body func(regs []int) error) error {
	if sel.With != nil {
		if err := c.compileWithClause(sel.With, outerScope); err != nil {
			return err
		}
	}
	core := sel.Core
	for core != nil {
		if err := c.compileSelectCoreRows(core, outerScope, body); err != nil {
			return err
		}
		if core.Compound == nil {
			break
		}
		core = core.Compound.Next
	}
	return nil
}

// compileSelectForEachRow is compileSelectRowsInto specialized to a
// single-column result (IN (subquery), EXISTS, scalar subqueries): body
// receives the one register holding that row's value.
func (c *compiler) compileSelectForEachRow(sel *SelectStmt, outerScope *exprScope, body func(rowReg int) error) error {
	return c.compileSelectRowsInto(sel, outerScope, func(regs []int) error {
		if len(regs) == 0 {
			return internalErrorf("compileSelectForEachRow: subquery produced no result columns")
		}
		return body(regs[0])
	})
}

// compileUncorrelatedScalar's caller (subquery.go) only needs the above;
// compileSelectIntoRegisters historically captured a fixed count but is
// now folded into compileUncorrelatedScalar directly (the first row is
// captured; a second row raises a runtime error).

// compileSelectStmt is the top-level entry for a SELECT statement: runs
// the row driver, applies ORDER BY (via an ephemeral sorter whenever
// ORDER BY is present; whether a chosen plan already delivers that
// order is not consulted), LIMIT/OFFSET, and emits ResultRow once per
// output row (§4.6).
func (c *compiler) compileSelectStmt(sel *SelectStmt, outerScope *exprScope) ([]string, error) {
	names := resultColumnNames(sel.Core)

	needsSort := len(sel.OrderBy) > 0
	var sortCursor int
	var sortSpec *SortKeySpec
	if needsSort {
		sortCursor = c.allocateCursor()
		var err error
		sortSpec, err = buildSortKeySpec(sel.OrderBy, names)
		if err != nil {
			return nil, err
		}
		c.emit(OpOpenEphemeral, int32(sortCursor), int32(len(names)), 0, p4Sort(sortSpec), 0, "ORDER BY sorter")
	}

	limitReg, offsetReg := 0, 0
	if sel.Limit != nil {
		limitReg = c.allocateRegister(1)
		if err := c.compileExpr(sel.Limit, limitReg, outerScope); err != nil {
			return nil, err
		}
	}
	if sel.Offset != nil {
		offsetReg = c.allocateRegister(1)
		if err := c.compileExpr(sel.Offset, offsetReg, outerScope); err != nil {
			return nil, err
		}
	}

	emitRow := func(regs []int) error {
		if needsSort {
			rec := c.allocateRegister(1)
			c.emit(OpMakeRecord, int32(regs[0]), int32(len(regs)), int32(rec), p4Sort(sortSpec), 0, "")
			c.emit(OpVUpdate, int32(sortCursor), int32(len(regs)), int32(rec), p4UpdateInfo(ConflictAbort), 0, "")
			return nil
		}
		return c.emitResultRowWithLimit(regs, limitReg, offsetReg)
	}

	if err := c.compileSelectRowsInto(sel, outerScope, emitRow); err != nil {
		return nil, err
	}

	if needsSort {
		eof := c.allocateAddress("order-by-eof")
		c.emitSimple(OpRewind, int32(sortCursor), int32(eof), 0)
		loop := len(*c.activeBuffer())
		regs := make([]int, len(names))
		for i := range names {
			reg := c.allocateRegister(1)
			c.emit(OpVColumn, int32(sortCursor), int32(i), int32(reg), p4Null(), 0, "")
			regs[i] = reg
		}
		if err := c.emitResultRowWithLimit(regs, limitReg, offsetReg); err != nil {
			return nil, err
		}
		c.emitSimple(OpVNext, int32(sortCursor), int32(loop), 0)
		if err := c.resolveAddress(eof); err != nil {
			return nil, err
		}
		c.emit(OpClose, int32(sortCursor), 0, 0, p4Null(), 0, "")
	}

	return names, nil
}

// emitResultRowWithLimit applies OFFSET/LIMIT bookkeeping around a
// ResultRow emission (§4.6): rows are skipped while offsetReg > 0
// (decrementing it), and once limitReg reaches 0 no further rows are
// produced. Either register is 0 (no allocation) when absent.
func (c *compiler) emitResultRowWithLimit(regs []int, limitReg, offsetReg int) error {
	skip := c.allocateAddress("limit-offset-skip")
	if offsetReg != 0 {
		pastOffset := c.allocateAddress("past-offset")
		c.emitSimple(OpIfZero, int32(offsetReg), int32(pastOffset), 0)
		one := c.allocateRegister(1)
		c.emitSimple(OpInteger, 1, int32(one), 0)
		c.emitSimple(OpSubtract, int32(offsetReg), int32(one), int32(offsetReg))
		c.emitSimple(OpGoto, 0, int32(skip), 0)
		if err := c.resolveAddress(pastOffset); err != nil {
			return err
		}
	}
	if limitReg != 0 {
		c.emitSimple(OpIfZero, int32(limitReg), int32(skip), 0)
		one := c.allocateRegister(1)
		c.emitSimple(OpInteger, 1, int32(one), 0)
		c.emitSimple(OpSubtract, int32(limitReg), int32(one), int32(limitReg))
	}
	c.emit(OpResultRow, int32(regs[0]), int32(len(regs)), 0, p4Null(), 0, "")
	return c.resolveAddress(skip)
}

// buildSortKeySpec translates ORDER BY terms that reference output
// column positions into a composite SortKeySpec over the row's own
// projected columns (§4.6).
func buildSortKeySpec(orderBy []OrderingTerm, names []string) (*SortKeySpec, error) {
	spec := &SortKeySpec{}
	for _, ot := range orderBy {
		idx, err := resolveSortKeyIndex(ot.Expr, names)
		if err != nil {
			return nil, err
		}
		spec.KeyIndices = append(spec.KeyIndices, idx)
		spec.Collations = append(spec.Collations, ot.Collation)
		spec.Directions = append(spec.Directions, ot.Desc)
	}
	return spec, nil
}

// resolveSortKeyIndex resolves one ORDER BY term to a 0-based index into
// the SELECT's projected output columns: an integer literal is the
// familiar 1-based ordinal, a bare column reference is matched by name
// against the output columns (including aliases), and anything else is a
// syntax error rather than a silent default to the first column.
func resolveSortKeyIndex(e Expr, names []string) (int, error) {
	if lit, ok := e.(*IntLit); ok {
		idx := int(lit.Value) - 1
		if idx < 0 || idx >= len(names) {
			return 0, syntaxErrorf("ORDER BY position %d is out of range for %d output columns", lit.Value, len(names))
		}
		return idx, nil
	}
	if col, ok := e.(*ColumnRef); ok && col.Table == "" {
		for i, name := range names {
			if lower(name) == lower(col.Column) {
				return i, nil
			}
		}
	}
	return 0, syntaxErrorf("ORDER BY term does not match any output column")
}
