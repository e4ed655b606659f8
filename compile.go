package sqlc

// Compile translates stmt into a runnable Program against catalog,
// following the phase order laid out across §4: open/plan FROM sources,
// compile the statement body, then finalize. sql is kept for
// Program.SQL and error messages; it is not re-parsed here.
func Compile(catalog Catalog, stmt Stmt, sql string, opts Options) (*Program, error) {
	if catalog == nil {
		return nil, misuseErrorf("Compile: catalog is nil")
	}
	if stmt == nil {
		return nil, misuseErrorf("Compile: stmt is nil")
	}

	c := newCompiler(catalog, sql, opts)
	c.emit(OpInit, 0, 0, 0, p4Null(), 0, "Initialize program")

	columnNames, err := c.compileStmt(stmt)
	if err != nil {
		return nil, err
	}

	prog, err := c.finalize(columnNames)
	if err != nil {
		return nil, err
	}

	if c.diagnostics != nil && len(c.diagnostics.Errors) > 0 {
		c.log.Logf("WARN non-fatal diagnostics while compiling %s: %s", prog.ID, c.diagnostics.Error())
	}
	return prog, nil
}

// compileStmt dispatches on stmt's dynamic type to the per-statement
// compiler and returns the column names a caller should attach to
// result rows (empty for statements that produce none).
func (c *compiler) compileStmt(stmt Stmt) ([]string, error) {
	scope := &exprScope{}
	switch n := stmt.(type) {
	case *SelectStmt:
		return c.compileSelectStmt(n, scope)
	case *InsertStmt:
		return nil, c.compileInsertStmt(n, scope)
	case *UpdateStmt:
		return nil, c.compileUpdateStmt(n, scope)
	case *DeleteStmt:
		return nil, c.compileDeleteStmt(n, scope)
	case *BeginStmt:
		return nil, c.compileBeginStmt(n)
	case *CommitStmt:
		return nil, c.compileCommitStmt(n)
	case *RollbackStmt:
		return nil, c.compileRollbackStmt(n)
	case *SavepointStmt:
		return nil, c.compileSavepointStmt(n)
	case *ReleaseStmt:
		return nil, c.compileReleaseStmt(n)
	default:
		return nil, internalErrorf("Compile: unhandled statement type %T", stmt)
	}
}

// CompileExplain compiles stmt and renders the resulting program the
// way sqlc-explain prints it: the same table Program.String produces.
// Non-fatal diagnostics are not part of the output; Compile only logs
// them.
func CompileExplain(catalog Catalog, stmt Stmt, sql string, opts Options) (string, error) {
	prog, err := Compile(catalog, stmt, sql, opts)
	if err != nil {
		return "", err
	}
	return prog.String(), nil
}
