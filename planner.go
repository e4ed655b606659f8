package sqlc

// This file implements §4.2: turning the WHERE/ORDER BY terms that apply
// to a single cursor into an IndexInfoInput, invoking that cursor's
// module through BestIndex, and recording the resulting cursorPlan
// (including which WHERE AST nodes the plan consumes) for the FROM/join
// compiler and the residual-WHERE compiler to consult.

// planCursor builds an IndexInfoInput from the subset of whereTerms and
// orderBy that reference only cursor, invokes its BestIndex, and stores
// the resulting cursorPlan. whereTerms is the AND-decomposed top-level
// conjuncts of the active WHERE clause (§4.2/§4.5); orderBy is the
// query's ORDER BY list, only consulted when every term resolves to this
// same cursor (a mixed-cursor ORDER BY can never be satisfied by a single
// vtab's natural order, so it is left entirely as a residual sort).
func (c *compiler) planCursor(cursor int, whereTerms []Expr, orderBy []OrderingTerm) error {
	schema, ok := c.tableSchemas[cursor]
	if !ok {
		return internalErrorf("planCursor: cursor %d has no registered schema", cursor)
	}

	// Ephemeral sources (materialized CTEs, recursive CTE result/queue
	// tables, FROM subqueries) aren't backed by a VirtualTable module, so
	// there's no BestIndex to consult: every WHERE term against them is
	// left as a residual filter over a plain forward scan.
	if schema.Table == nil {
		c.cursorPlans[cursor] = &cursorPlan{HandledNodes: map[Expr]bool{}}
		return nil
	}

	var input IndexInfoInput
	var exprs []Expr

	for _, w := range whereTerms {
		colIdx, op, usable := c.constraintShape(w, cursor)
		if op == 0 {
			continue
		}
		input.Constraints = append(input.Constraints, IndexConstraint{ColumnIndex: colIdx, Op: op, Usable: usable})
		exprs = append(exprs, w)
	}

	if allOrderByOnCursor(orderBy, cursor, c) {
		for _, ot := range orderBy {
			col, ok := ot.Expr.(*ColumnRef)
			if !ok {
				input.OrderBy = nil
				break
			}
			idx, ok := schema.ColumnIndex(col.Column)
			if !ok {
				input.OrderBy = nil
				break
			}
			input.OrderBy = append(input.OrderBy, OrderByTerm{ColumnIndex: idx, Desc: ot.Desc})
		}
	}

	for i := range schema.Columns {
		input.ColUsed |= 1 << uint(i)
	}

	out, err := schema.Table.BestIndex(&input)
	if err != nil {
		return internalErrorf("BestIndex failed for %s: %v", schema.Name, err)
	}
	if out == nil {
		out = &IndexInfoOutput{}
	}

	handled := make(map[Expr]bool)
	for i, usage := range out.ConstraintUsage {
		if i < len(exprs) && usage.ArgvIndex > 0 && usage.Omit {
			handled[exprs[i]] = true
		}
	}

	c.cursorPlans[cursor] = &cursorPlan{
		IdxNum:          out.IndexNumber,
		IdxStr:          out.IndexString,
		Usage:           out.ConstraintUsage,
		Cost:            out.EstimatedCost,
		RowEstimate:     out.EstimatedRows,
		OrderByConsumed: out.OrderByConsumed,
		IdxFlags:        out.IdxFlags,
		ConstraintExprs: exprs,
		HandledNodes:    handled,
	}
	return nil
}

// constraintShape classifies w as a single-column constraint against
// cursor's columns, per the ConstraintOp table SQLite defines (§4.2).
// Returns op == 0 when w isn't a constraint BestIndex can use (mixed
// cursors, non-comparison shape, etc).
func (c *compiler) constraintShape(w Expr, cursor int) (colIdx int, op ConstraintOp, usable bool) {
	bin, ok := w.(*BinaryExpr)
	if !ok {
		return 0, 0, false
	}
	col, colOnLeft := bin.Left.(*ColumnRef)
	other := bin.Right
	if !colOnLeft {
		col, ok = bin.Right.(*ColumnRef)
		if !ok {
			return 0, 0, false
		}
		other = bin.Left
	}

	cur, idx, _, err := c.resolveColumnRef(col, &exprScope{activeCursors: []int{cursor}})
	if err != nil || cur != cursor {
		return 0, 0, false
	}

	if containsColumnOf(other, cursor, c) {
		// both sides reference the same cursor; not a usable constraint
		return 0, 0, false
	}

	opMap := map[BinaryOp]ConstraintOp{
		BinEq: INDEX_CONSTRAINT_EQ, BinGt: INDEX_CONSTRAINT_GT, BinGe: INDEX_CONSTRAINT_GE,
		BinLt: INDEX_CONSTRAINT_LT, BinLe: INDEX_CONSTRAINT_LE, BinNe: INDEX_CONSTRAINT_NE,
		BinIs: INDEX_CONSTRAINT_IS, BinIsNot: INDEX_CONSTRAINT_ISNOT,
	}
	effectiveOp := bin.Op
	if !colOnLeft {
		effectiveOp = flipComparison(bin.Op)
	}
	co, ok := opMap[effectiveOp]
	if !ok {
		return 0, 0, false
	}
	return idx, co, true
}

func flipComparison(op BinaryOp) BinaryOp {
	switch op {
	case BinGt:
		return BinLt
	case BinGe:
		return BinLe
	case BinLt:
		return BinGt
	case BinLe:
		return BinGe
	default:
		return op
	}
}

func containsColumnOf(e Expr, cursor int, c *compiler) bool {
	found := false
	walkExpr(e, func(n Expr) {
		if col, ok := n.(*ColumnRef); ok {
			if cur, _, _, err := c.resolveColumnRef(col, &exprScope{activeCursors: []int{cursor}}); err == nil && cur == cursor {
				found = true
			}
		}
	})
	return found
}

func allOrderByOnCursor(orderBy []OrderingTerm, cursor int, c *compiler) bool {
	if len(orderBy) == 0 {
		return false
	}
	for _, ot := range orderBy {
		col, ok := ot.Expr.(*ColumnRef)
		if !ok {
			return false
		}
		cur, _, _, err := c.resolveColumnRef(col, &exprScope{activeCursors: []int{cursor}})
		if err != nil || cur != cursor {
			return false
		}
	}
	return true
}

// pickBestPlan applies the tie-break rules from §4.2 when a cursor's
// module could be invoked against more than one candidate constraint
// subset (e.g. once with an equality-prefix subset and once with none,
// to compare against a full scan). Candidates are ranked: a plan whose
// handled set fully covers the table's primary key on equality wins
// outright; otherwise lower EstimatedCost wins; a tie prefers the plan
// that consumes more constraints (an equality-prefix secondary index
// beats a full scan with the same nominal cost).
func pickBestPlan(schema *TableSchema, candidates []*cursorPlan) *cursorPlan {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if fullPKEquality(schema, cand) && !fullPKEquality(schema, best) {
			best = cand
			continue
		}
		if fullPKEquality(schema, best) && !fullPKEquality(schema, cand) {
			continue
		}
		if cand.Cost < best.Cost {
			best = cand
			continue
		}
		if cand.Cost == best.Cost && len(cand.HandledNodes) > len(best.HandledNodes) {
			best = cand
		}
	}
	return best
}

// fullPKEquality reports whether plan's module signaled that its chosen
// access path visits at most one row (INDEX_SCAN_UNIQUE), the strongest
// signal BestIndex can give that every primary-key column was pinned by
// an equality constraint (§4.2 tie-break rule 1).
func fullPKEquality(schema *TableSchema, plan *cursorPlan) bool {
	if len(schema.PrimaryKey) == 0 {
		return false
	}
	return plan.IdxFlags&INDEX_SCAN_UNIQUE != 0
}
