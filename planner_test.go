package sqlc

import "testing"

func pkSchema() *TableSchema {
	return &TableSchema{
		Name:       "t",
		Columns:    []ColumnDef{{Name: "id", Affinity: AffinityInteger, IsPartOfPK: true}, {Name: "v", Affinity: AffinityInteger}},
		PrimaryKey: []int{0},
	}
}

func TestConstraintShapeRecognizesColumnOnEitherSide(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	cur := c.allocateCursor()
	c.tableSchemas[cur] = pkSchema()
	c.tableAliases["t"] = cur

	colLeft := &BinaryExpr{Op: BinEq, Left: &ColumnRef{Column: "id"}, Right: &IntLit{Value: 1}}
	idx, op, usable := c.constraintShape(colLeft, cur)
	if !usable || idx != 0 || op != INDEX_CONSTRAINT_EQ {
		t.Fatalf("unexpected shape for column-on-left: idx=%d op=%d usable=%v", idx, op, usable)
	}

	colRight := &BinaryExpr{Op: BinGt, Left: &IntLit{Value: 1}, Right: &ColumnRef{Column: "v"}}
	idx, op, usable = c.constraintShape(colRight, cur)
	if !usable || idx != 1 || op != INDEX_CONSTRAINT_LT {
		t.Fatalf("unexpected shape for column-on-right (flipped op): idx=%d op=%d usable=%v", idx, op, usable)
	}
}

func TestConstraintShapeRejectsBothSidesSameCursor(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	cur := c.allocateCursor()
	c.tableSchemas[cur] = pkSchema()
	c.tableAliases["t"] = cur

	both := &BinaryExpr{Op: BinEq, Left: &ColumnRef{Column: "id"}, Right: &ColumnRef{Column: "v"}}
	_, _, usable := c.constraintShape(both, cur)
	if usable {
		t.Fatalf("expected a same-cursor comparison to be rejected as a usable constraint")
	}
}

func TestPickBestPlanPrefersFullPrimaryKeyEquality(t *testing.T) {
	schema := pkSchema()
	fullScan := &cursorPlan{Cost: 100}
	uniqueScan := &cursorPlan{Cost: 50, IdxFlags: INDEX_SCAN_UNIQUE}
	best := pickBestPlan(schema, []*cursorPlan{fullScan, uniqueScan})
	if best != uniqueScan {
		t.Fatalf("expected the unique-scan plan to win regardless of listed order")
	}
}

func TestPickBestPlanTieBreaksOnHandledNodeCount(t *testing.T) {
	schema := pkSchema()
	fewer := &cursorPlan{Cost: 10, HandledNodes: map[Expr]bool{&IntLit{Value: 1}: true}}
	more := &cursorPlan{Cost: 10, HandledNodes: map[Expr]bool{&IntLit{Value: 1}: true, &IntLit{Value: 2}: true}}
	best := pickBestPlan(schema, []*cursorPlan{fewer, more})
	if best != more {
		t.Fatalf("expected the plan consuming more constraints to win a cost tie")
	}
}

func TestPlanCursorOnEphemeralSourceSkipsBestIndex(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	cur := c.allocateCursor()
	c.tableSchemas[cur] = &TableSchema{Name: "cte", Columns: []ColumnDef{{Name: "x"}}, IsCTE: true}

	if err := c.planCursor(cur, nil, nil); err != nil {
		t.Fatalf("planCursor on an ephemeral (module-less) source should not fail: %v", err)
	}
	if c.cursorPlans[cur] == nil {
		t.Fatalf("expected a trivial full-scan plan to be recorded")
	}
}
