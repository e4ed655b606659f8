package sqlc

// This file implements §4.9: the WITH clause compiler. A materialized
// (non-recursive) CTE runs its SELECT once into a fresh ephemeral table
// and registers the resulting schema in cte_map; every later FROM
// reference to that name opens its own read cursor against the same
// ephemeral storage (the same pattern base tables use when referenced
// more than once, e.g. a self-join), so the materialization itself
// happens exactly once regardless of how many times the CTE is named.
//
// A recursive CTE (anchor UNION [ALL] recursive-term) uses two
// ephemeral tables, result and queue, as described in §4.9. The
// recursive term's own FROM reference to the CTE name is rebound, for
// the duration of compiling that one term, to the queue table: the
// generated program scans queue with an ordinary Rewind/VNext loop and,
// because new rows are appended to the same table while that scan is
// still in progress, rows derived from a row are visited by the same
// forward scan that produced them, without any outer repeat-until-empty
// loop construct. The scan naturally ends once it catches up to the
// last row written, which is exactly "queue is empty" once no iteration
// contributes a new row.

// compileWithClause materializes every CTE in with, in textual order,
// so that a later CTE's SELECT may reference an earlier one.
func (c *compiler) compileWithClause(with *WithClause, scope *exprScope) error {
	for _, def := range with.CTEs {
		recursive := cteIsRecursive(def)
		if recursive && !with.Recursive {
			return syntaxErrorf("recursive reference to %s in its own definition requires WITH RECURSIVE", def.Name)
		}
		if recursive {
			if err := c.compileRecursiveCTE(def, scope); err != nil {
				return err
			}
			continue
		}
		if err := c.compileMaterializedCTE(def, scope); err != nil {
			return err
		}
	}
	return nil
}

// cteIsRecursive reports whether def's own SELECT refers to def's own
// name from the FROM clause of a term following a UNION/UNION ALL
// (SQLite scopes this check to the clause itself, not the RECURSIVE
// keyword's presence, so a mistakenly-unmarked recursive CTE can still
// be detected and rejected).
func cteIsRecursive(def CTEDef) bool {
	if def.Select.Core.Compound == nil {
		return false
	}
	return fromReferencesName(def.Select.Core.Compound.Next.From, def.Name)
}

// fromReferencesName reports whether f names table/CTE name directly at
// its top level (through CROSS/INNER/LEFT/NATURAL joins, but not inside
// a nested subquery or table-valued function, matching the standard
// restriction that a recursive reference must appear directly in the
// recursive term's own FROM clause).
func fromReferencesName(f FromSource, name string) bool {
	switch n := f.(type) {
	case *TableSource:
		return n.Schema == "" && lower(n.Name) == lower(name)
	case *JoinSource:
		return fromReferencesName(n.Left, name) || fromReferencesName(n.Right, name)
	default:
		return false
	}
}

// compileMaterializedCTE implements §4.9's non-recursive strategy.
func (c *compiler) compileMaterializedCTE(def CTEDef, scope *exprScope) error {
	cursor, schema, err := c.materializeSubqueryAsCursor(def.Select, scope)
	if err != nil {
		return err
	}
	if len(def.ColumnNames) > 0 {
		if len(def.ColumnNames) != len(schema.Columns) {
			return syntaxErrorf("CTE %s declares %d column names but its SELECT returns %d columns", def.Name, len(def.ColumnNames), len(schema.Columns))
		}
		for i, nm := range def.ColumnNames {
			schema.Columns[i].Name = nm
		}
	}
	schema.Name = def.Name

	// Nothing reads through this writer cursor directly; every FROM
	// reference (including the first) opens its own cursor against
	// schema below, so the writer can close as soon as materialization
	// is done.
	c.emit(OpClose, int32(cursor), 0, 0, p4Null(), 0, "")
	c.cteMap[lower(def.Name)] = cteBinding{Cursor: cursor, Schema: schema}
	return nil
}

// compileRecursiveCTE implements §4.9's recursive strategy.
func (c *compiler) compileRecursiveCTE(def CTEDef, scope *exprScope) error {
	arm := def.Select.Core
	if arm.Compound.Next.Compound != nil {
		return syntaxErrorf("recursive CTE %s: only one recursive term is supported", def.Name)
	}

	var distinct bool
	switch arm.Compound.Op {
	case CompoundUnion:
		distinct = true
	case CompoundUnionAll:
		distinct = false
	default:
		return syntaxErrorf("recursive CTE %s: only UNION and UNION ALL connect the anchor and recursive terms", def.Name)
	}

	anchorCore := &SelectCore{
		Distinct: arm.Distinct,
		Columns:  arm.Columns,
		From:     arm.From,
		Where:    arm.Where,
		GroupBy:  arm.GroupBy,
		Having:   arm.Having,
		Windows:  arm.Windows,
	}
	recursiveCore := arm.Compound.Next

	names := resultColumnNames(anchorCore)
	if len(def.ColumnNames) > 0 {
		if len(def.ColumnNames) != len(names) {
			return syntaxErrorf("CTE %s declares %d column names but its SELECT returns %d columns", def.Name, len(def.ColumnNames), len(names))
		}
		names = def.ColumnNames
	}

	// Column affinities are taken from the anchor term only; the
	// recursive term's own column types are not used to refine them.
	resultSchema := &TableSchema{Name: def.Name, Columns: buildNumericColumns(names), IsCTE: true}
	if distinct {
		pk := make([]int, len(names))
		for i := range pk {
			pk[i] = i
		}
		resultSchema.PrimaryKey = pk
	}
	queueSchema := &TableSchema{Name: def.Name + "$queue", Columns: buildNumericColumns(names), IsCTE: true}

	resultCursor := c.allocateCursor()
	c.emit(OpOpenEphemeral, int32(resultCursor), int32(len(names)), 0, p4VtabInfo(resultSchema), 0, "CTE result: "+def.Name)
	queueCursor := c.allocateCursor()
	c.emit(OpOpenEphemeral, int32(queueCursor), int32(len(names)), 0, p4Null(), 0, "CTE queue: "+def.Name)

	conflictMode := ConflictAbort
	var outcomeReg int
	if distinct {
		conflictMode = ConflictIgnore
		outcomeReg = c.allocateRegister(1)
	}

	insertRow := func(regs []int) error {
		rec := c.allocateRegister(1)
		c.emit(OpMakeRecord, int32(regs[0]), int32(len(regs)), int32(rec), p4Null(), 0, "")
		if distinct {
			// P5 carries the register that receives 1 if the row was
			// actually inserted, 0 if ON CONFLICT IGNORE dropped it as a
			// duplicate of a row already in result; only a freshly-seen
			// row is worth adding to the work queue.
			c.emit(OpVUpdate, int32(resultCursor), int32(len(regs)), int32(rec), p4UpdateInfo(conflictMode), uint16(outcomeReg), "insert CTE row")
			skip := c.allocateAddress("cte-row-already-seen")
			c.emitSimple(OpIfFalse, int32(outcomeReg), int32(skip), 0)
			c.emit(OpVUpdate, int32(queueCursor), int32(len(regs)), int32(rec), p4UpdateInfo(ConflictAbort), 0, "enqueue new row")
			if err := c.resolveAddress(skip); err != nil {
				return err
			}
		} else {
			c.emit(OpVUpdate, int32(resultCursor), int32(len(regs)), int32(rec), p4UpdateInfo(conflictMode), 0, "insert CTE row")
			c.emit(OpVUpdate, int32(queueCursor), int32(len(regs)), int32(rec), p4UpdateInfo(ConflictAbort), 0, "enqueue new row")
		}
		return nil
	}

	if err := c.compileSelectCoreRows(anchorCore, scope, insertRow); err != nil {
		return err
	}

	c.cteMap[lower(def.Name)] = cteBinding{Cursor: queueCursor, Schema: queueSchema}
	err := c.compileSelectCoreRows(recursiveCore, scope, insertRow)
	if err != nil {
		return err
	}

	c.emit(OpClose, int32(queueCursor), 0, 0, p4Null(), 0, "")
	c.emit(OpClose, int32(resultCursor), 0, 0, p4Null(), 0, "")
	c.cteMap[lower(def.Name)] = cteBinding{Cursor: resultCursor, Schema: resultSchema}
	return nil
}

func buildNumericColumns(names []string) []ColumnDef {
	cols := make([]ColumnDef, len(names))
	for i, nm := range names {
		cols[i] = ColumnDef{Name: nm, Affinity: AffinityNumeric}
	}
	return cols
}
