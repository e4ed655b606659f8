package sqlc

// This file implements §4.10: transaction control statements. Each one
// lowers to a short, fixed opcode sequence with no register allocation
// or planning involved, so there's no shared scaffolding with the rest
// of the compiler beyond emit itself.

func (c *compiler) compileBeginStmt(stmt *BeginStmt) error {
	c.emit(OpVBegin, int32(stmt.Mode), 0, 0, p4Null(), 0, "")
	return nil
}

func (c *compiler) compileCommitStmt(stmt *CommitStmt) error {
	c.emit(OpVCommit, 0, 0, 0, p4Null(), 0, "")
	return nil
}

// compileRollbackStmt implements plain ROLLBACK and ROLLBACK TO name.
// The latter first records the savepoint operation (op=0, matching
// SAVEPOINT's op=1 and RELEASE's op=2) before the actual VRollbackTo.
func (c *compiler) compileRollbackStmt(stmt *RollbackStmt) error {
	if stmt.To == "" {
		c.emit(OpVRollback, 0, 0, 0, p4Null(), 0, "")
		return nil
	}
	c.emit(OpSavepoint, 0, 0, 0, p4Str(stmt.To), 0, "")
	c.emit(OpVRollbackTo, 0, 0, 0, p4Str(stmt.To), 0, "")
	return nil
}

func (c *compiler) compileSavepointStmt(stmt *SavepointStmt) error {
	c.emit(OpSavepoint, 1, 0, 0, p4Str(stmt.Name), 0, "")
	c.emit(OpVSavepoint, 0, 0, 0, p4Str(stmt.Name), 0, "")
	return nil
}

func (c *compiler) compileReleaseStmt(stmt *ReleaseStmt) error {
	c.emit(OpSavepoint, 2, 0, 0, p4Str(stmt.Name), 0, "")
	c.emit(OpVRelease, 0, 0, 0, p4Str(stmt.Name), 0, "")
	return nil
}
