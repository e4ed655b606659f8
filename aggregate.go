package sqlc

// compileAggregateRows implements §4.6's Aggregate processor: every
// qualifying row steps one accumulator per aggregate function in the
// SELECT list, keyed by the GROUP BY value (or a single implicit group
// when there is none); once the FROM loop ends, the accumulators are
// iterated, HAVING is applied, and emit is called once per surviving
// group.
func (c *compiler) compileAggregateRows(core *SelectCore, scope *exprScope, emit func(regs []int) error) error {
	aggCalls := collectAggregateCalls(core)

	baseKey := c.comment("agg%d", c.nextAggBase)
	c.nextAggBase++

	baseKeyReg := c.allocateRegister(1)
	err := c.compileFromAndLoop(core.From, core.Where, scope, func() error {
		if len(core.GroupBy) > 0 {
			groupRegs := make([]int, len(core.GroupBy))
			for i, g := range core.GroupBy {
				groupRegs[i] = c.allocateRegister(1)
				if err := c.compileExpr(g, groupRegs[i], scope); err != nil {
					return err
				}
			}
			c.emit(OpMakeRecord, int32(groupRegs[0]), int32(len(groupRegs)), int32(baseKeyReg), p4Null(), 0, "group key")
		} else {
			idx := c.addConstant(Literal{Kind: LitInt, I: 0})
			c.emit(OpString8, int32(baseKeyReg), 0, 0, p4Int(int64(idx)), 0, "singleton group key")
		}

		for i, fc := range aggCalls {
			argBase := 0
			if len(fc.Args) > 0 && !fc.Star {
				argBase = c.allocateRegister(len(fc.Args))
				for j, a := range fc.Args {
					if err := c.compileExpr(a, argBase+j, scope); err != nil {
						return err
					}
				}
			}
			def, err := c.catalog.FindFunction(fc.Name, len(fc.Args))
			if err != nil {
				return syntaxErrorf("no such aggregate function: %s: %v", fc.Name, err)
			}
			compoundKey := baseKey + "_" + itoa(i)
			c.emit(OpAggStep, int32(baseKeyReg), int32(argBase), int32(len(fc.Args)),
				p4AggFunc(def, compoundKey), 0, "step "+fc.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// AggIterate/AggNext are not in the jumps-on-P2 set (only
	// Goto/If*/IsNull/NotNull/comparison/Once/VFilter/VNext/Rewind are): each
	// writes a 0/1 "group available" flag into P1, and an explicit
	// IfFalse/IfTrue pair around it drives the loop, the same way a
	// non-cursor-backed scan is built elsewhere in this package.
	hasGroup := c.allocateRegister(1)
	eof := c.allocateAddress("agg-iterate-eof")
	c.emitSimple(OpAggIterate, int32(hasGroup), 0, 0)
	c.emitSimple(OpIfFalse, int32(hasGroup), int32(eof), 0)
	loop := len(*c.activeBuffer())

	finalColumnMapSaved := c.finalColumnMap
	c.finalColumnMap = make(map[columnMapKey]int)

	for i, g := range core.GroupBy {
		reg := c.allocateRegister(1)
		c.emit(OpAggGroupValue, int32(i), int32(reg), 0, p4Null(), 0, "")
		c.finalColumnMap[columnMapKey{kind: mapGroupKey, expr: g}] = reg
	}
	for i, fc := range aggCalls {
		reg := c.allocateRegister(1)
		c.emit(OpAggFinal, int32(i), int32(reg), 0, p4Null(), 0, "final "+fc.Name)
		c.finalColumnMap[columnMapKey{kind: mapAggregateResult, expr: fc}] = reg
	}

	havingScope := &exprScope{activeCursors: scope.activeCursors, inHaving: true}
	skipGroup := c.allocateAddress("having-skip")
	if core.Having != nil {
		hreg := c.allocateRegister(1)
		if err := c.compileExpr(core.Having, hreg, havingScope); err != nil {
			return err
		}
		c.emitSimple(OpIfFalse, int32(hreg), int32(skipGroup), 0)
		c.emitSimple(OpIfNull, int32(hreg), int32(skipGroup), 0)
	}

	regs, err := c.evalResultColumns(core.Columns, havingScope)
	if err != nil {
		return err
	}
	if err := emit(regs); err != nil {
		return err
	}

	if err := c.resolveAddress(skipGroup); err != nil {
		return err
	}
	c.emitSimple(OpAggNext, int32(hasGroup), 0, 0)
	c.emitSimple(OpIfTrue, int32(hasGroup), int32(loop), 0)
	if err := c.resolveAddress(eof); err != nil {
		return err
	}

	c.finalColumnMap = finalColumnMapSaved
	return nil
}

// collectAggregateCalls returns, in a stable left-to-right order, every
// distinct aggregate FuncCallExpr referenced by the SELECT list or
// HAVING clause (§4.6's per-aggregate compound key "baseKey ++ "_" ++
// i" uses this order for i).
func collectAggregateCalls(core *SelectCore) []*FuncCallExpr {
	var calls []*FuncCallExpr
	seen := make(map[*FuncCallExpr]bool)
	visit := func(e Expr) {
		walkExpr(e, func(n Expr) {
			fc, ok := n.(*FuncCallExpr)
			if !ok || fc.Over != nil {
				return
			}
			if !seen[fc] {
				seen[fc] = true
				calls = append(calls, fc)
			}
		})
	}
	for _, rc := range core.Columns {
		if rc.Expr != nil {
			visit(rc.Expr)
		}
	}
	if core.Having != nil {
		visit(core.Having)
	}
	return calls
}
