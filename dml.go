package sqlc

import "fmt"

// This file implements §4.8: INSERT/UPDATE/DELETE against virtual
// tables, including NOT NULL, DEFAULT and CHECK enforcement. All three
// share the conflict-resolution plumbing in opcode.go's ConflictMode and
// the rowValues column-substitution path added to exprScope for CHECK
// expressions, which reference column names directly rather than
// through a cursor (there is no cursor for a row that hasn't been
// written yet).

// compileInsertStmt implements §4.8's INSERT compiler.
func (c *compiler) compileInsertStmt(stmt *InsertStmt, outerScope *exprScope) error {
	if stmt.With != nil {
		if err := c.compileWithClause(stmt.With, outerScope); err != nil {
			return err
		}
	}

	schema, err := c.catalog.FindTable("", stmt.Table)
	if err != nil {
		return syntaxErrorf("no such table: %s: %v", stmt.Table, err)
	}
	if schema.Module == nil {
		return misuseErrorf("table %q is not a virtual table", stmt.Table)
	}

	colOrder, err := resolveInsertColumns(schema, stmt.Columns)
	if err != nil {
		return err
	}

	conflict := c.opts.DefaultConflict
	if stmt.HasConflict {
		conflict = stmt.Conflict
	}

	cursor := c.allocateCursor()
	table, err := schema.Module.Connect(nil)
	if err != nil {
		return internalErrorf("connect %s: %v", stmt.Table, err)
	}
	schema.Table = table
	c.tableSchemas[cursor] = schema
	c.emit(OpOpenWrite, int32(cursor), 0, 0, p4VtabInfo(schema), 0, "open "+stmt.Table+" for INSERT")

	if stmt.Select != nil {
		// INSERT ... SELECT: each driven row is routed through the same
		// per-row enforcement path a VALUES row takes, by wrapping its
		// already-evaluated registers as synthetic regExpr operands.
		scope := &exprScope{activeCursors: outerScope.activeCursors, outerCursors: outerScope.outerCursors}
		err := c.compileSelectRowsInto(stmt.Select, scope, func(regs []int) error {
			if len(regs) != len(colOrder) {
				return syntaxErrorf("INSERT ... SELECT: %d columns selected, %d expected", len(regs), len(colOrder))
			}
			return c.insertOneRow(schema, colOrder, wrapRegsAsExprs(regs), scope, conflict)
		})
		if err != nil {
			return err
		}
	} else {
		for _, row := range stmt.Values {
			if len(row) != len(colOrder) {
				return syntaxErrorf("table %s has %d columns available to this INSERT but %d values were supplied", stmt.Table, len(colOrder), len(row))
			}
			if err := c.insertOneRow(schema, colOrder, row, outerScope, conflict); err != nil {
				return err
			}
		}
	}

	c.emit(OpClose, int32(cursor), 0, 0, p4Null(), 0, "")
	return nil
}

func wrapRegsAsExprs(regs []int) []Expr {
	out := make([]Expr, len(regs))
	for i, r := range regs {
		out[i] = &regExpr{reg: r}
	}
	return out
}

// insertOneRow evaluates one VALUES row (or one INSERT ... SELECT result
// row) into a contiguous [rowid, col0, col1, ...] register block, fills
// omitted columns with DEFAULT or NULL, enforces NOT NULL and CHECK, and
// emits the VUpdate (§4.8). cursor is read from schema.Table, opened by
// the caller; the cursor id itself isn't needed here since VUpdate's P1
// names a register block, not a cursor, for real (non-ephemeral) writes.
func (c *compiler) insertOneRow(schema *TableSchema, colOrder []int, values []Expr, scope *exprScope, conflict ConflictMode) error {
	n := len(schema.Columns)
	base := c.allocateRegister(n + 1)
	rowidReg := base
	c.emitSimple(OpNull, 0, int32(rowidReg), 0)

	provided := make([]bool, n)
	for i, colIdx := range colOrder {
		reg := base + 1 + colIdx
		if err := c.compileExpr(values[i], reg, scope); err != nil {
			return err
		}
		provided[colIdx] = true
	}

	rowMap := make(map[string]int, n)
	for idx, col := range schema.Columns {
		reg := base + 1 + idx
		if !provided[idx] {
			if col.Default != nil {
				if err := c.compileExpr(col.Default, reg, scope); err != nil {
					return err
				}
			} else {
				c.emitSimple(OpNull, 0, int32(reg), 0)
			}
		}
		rowMap[lower(col.Name)] = reg
		if col.NotNull {
			if err := c.emitNotNullCheck(reg, col.Name, conflict); err != nil {
				return err
			}
		}
	}

	if err := c.emitCheckConstraints(schema.Checks, rowMap, conflict); err != nil {
		return err
	}

	c.emit(OpVUpdate, int32(rowidReg), int32(n+1), int32(rowidReg), p4UpdateInfo(conflict), 0, "insert into "+schema.Name)
	return nil
}

// resolveInsertColumns maps an explicit column list to schema column
// indices, or defaults to every column in schema order when none was
// given (§4.8).
func resolveInsertColumns(schema *TableSchema, cols []string) ([]int, error) {
	if len(cols) == 0 {
		order := make([]int, len(schema.Columns))
		for i := range order {
			order[i] = i
		}
		return order, nil
	}
	order := make([]int, len(cols))
	seen := make(map[int]bool, len(cols))
	for i, name := range cols {
		idx, ok := schema.ColumnIndex(name)
		if !ok {
			return nil, syntaxErrorf("table %s has no column named %s", schema.Name, name)
		}
		if seen[idx] {
			return nil, syntaxErrorf("column %s specified more than once in INSERT column list", name)
		}
		seen[idx] = true
		order[i] = idx
	}
	return order, nil
}

// compileUpdateStmt implements §4.8's UPDATE compiler: open for read,
// plan (the same interface SELECT uses), filter loop, merge assigned
// columns with VColumn-fetched unchanged ones, enforce constraints, emit
// VUpdate with the existing rowid.
func (c *compiler) compileUpdateStmt(stmt *UpdateStmt, outerScope *exprScope) error {
	if stmt.With != nil {
		if err := c.compileWithClause(stmt.With, outerScope); err != nil {
			return err
		}
	}

	schema, err := c.catalog.FindTable("", stmt.Table)
	if err != nil {
		return syntaxErrorf("no such table: %s: %v", stmt.Table, err)
	}
	if schema.Module == nil {
		return misuseErrorf("table %q is not a virtual table", stmt.Table)
	}

	alias := stmt.Alias
	if alias == "" {
		alias = stmt.Table
	}
	from := &TableSource{Name: stmt.Table, Alias: alias}

	conflict := c.opts.DefaultConflict
	if stmt.HasConflict {
		conflict = stmt.Conflict
	}

	scope := &exprScope{outerCursors: outerScope.outerCursors}
	return c.compileFromAndLoop(from, stmt.Where, scope, func() error {
		cursor := scope.activeCursors[len(scope.activeCursors)-1]
		tblSchema := c.tableSchemas[cursor]
		n := len(tblSchema.Columns)

		base := c.allocateRegister(n + 1)
		rowidReg := base
		c.emit(OpVRowid, int32(cursor), 0, int32(rowidReg), p4Null(), 0, "")

		assigned := make(map[int]bool, len(stmt.Assignments))
		for _, asg := range stmt.Assignments {
			idx, ok := tblSchema.ColumnIndex(asg.Column)
			if !ok {
				return syntaxErrorf("table %s has no column named %s", tblSchema.Name, asg.Column)
			}
			reg := base + 1 + idx
			if err := c.compileExpr(asg.Value, reg, scope); err != nil {
				return err
			}
			assigned[idx] = true
		}

		rowMap := make(map[string]int, n)
		for idx, col := range tblSchema.Columns {
			reg := base + 1 + idx
			if !assigned[idx] {
				c.emit(OpVColumn, int32(cursor), int32(idx), int32(reg), p4Null(), 0, "")
			}
			rowMap[lower(col.Name)] = reg
			if col.NotNull {
				if err := c.emitNotNullCheck(reg, col.Name, conflict); err != nil {
					return err
				}
			}
		}

		if err := c.emitCheckConstraints(tblSchema.Checks, rowMap, conflict); err != nil {
			return err
		}

		c.emit(OpVUpdate, int32(rowidReg), int32(n+1), int32(rowidReg), p4UpdateInfo(conflict), 0, "update "+tblSchema.Name)
		return nil
	})
}

// compileDeleteStmt implements §4.8's DELETE compiler: open for read,
// plan, filter loop, fetch the rowid, emit a single-rowid VUpdate.
func (c *compiler) compileDeleteStmt(stmt *DeleteStmt, outerScope *exprScope) error {
	schema, err := c.catalog.FindTable("", stmt.Table)
	if err != nil {
		return syntaxErrorf("no such table: %s: %v", stmt.Table, err)
	}
	if schema.Module == nil {
		return misuseErrorf("table %q is not a virtual table", stmt.Table)
	}

	alias := stmt.Alias
	if alias == "" {
		alias = stmt.Table
	}
	from := &TableSource{Name: stmt.Table, Alias: alias}

	scope := &exprScope{outerCursors: outerScope.outerCursors}
	return c.compileFromAndLoop(from, stmt.Where, scope, func() error {
		cursor := scope.activeCursors[len(scope.activeCursors)-1]
		rowidReg := c.allocateRegister(1)
		c.emit(OpVRowid, int32(cursor), 0, int32(rowidReg), p4Null(), 0, "")
		c.emit(OpVUpdate, int32(rowidReg), 1, int32(rowidReg), p4UpdateInfo(ConflictAbort), 0, "delete from "+c.tableSchemas[cursor].Name)
		return nil
	})
}

// emitNotNullCheck raises a ConstraintError at runtime (via
// ConstraintViolation, following conflict's resolution policy) if reg
// holds NULL.
func (c *compiler) emitNotNullCheck(reg int, colName string, conflict ConflictMode) error {
	ok := c.allocateAddress("not-null-ok")
	c.emitSimple(OpNotNull, int32(reg), int32(ok), 0)
	c.emit(OpConstraintViolation, int32(conflict), 0, 0, p4Str(fmt.Sprintf("NOT NULL constraint failed: %s", colName)), 0, "")
	return c.resolveAddress(ok)
}

// emitCheckConstraints evaluates every CHECK expression against rowMap
// (column name -> register holding the proposed value) and raises a
// ConstraintError for any that evaluates to false; per SQL semantics a
// CHECK only fails on a definite false, not on NULL (§4.8).
func (c *compiler) emitCheckConstraints(checks []Expr, rowMap map[string]int, conflict ConflictMode) error {
	if len(checks) == 0 {
		return nil
	}
	rowScope := &exprScope{rowValues: rowMap}
	for _, chk := range checks {
		reg := c.allocateRegister(1)
		if err := c.compileExpr(chk, reg, rowScope); err != nil {
			return err
		}
		pass := c.allocateAddress("check-pass")
		c.emitSimple(OpIfTrue, int32(reg), int32(pass), 0)
		c.emitSimple(OpIfNull, int32(reg), int32(pass), 0)
		c.emit(OpConstraintViolation, int32(conflict), 0, 0, p4Str("CHECK constraint failed"), 0, "")
		if err := c.resolveAddress(pass); err != nil {
			return err
		}
	}
	return nil
}
