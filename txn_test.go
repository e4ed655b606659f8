package sqlc

import "testing"

func TestCompileBeginStmtEmitsVBeginWithMode(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	if err := c.compileBeginStmt(&BeginStmt{Mode: BeginImmediate}); err != nil {
		t.Fatalf("compileBeginStmt: %v", err)
	}
	if len(c.mainBuf) != 1 || c.mainBuf[0].Op != OpVBegin || c.mainBuf[0].P1 != int32(BeginImmediate) {
		t.Fatalf("unexpected instructions: %+v", c.mainBuf)
	}
}

func TestCompileCommitStmtEmitsVCommit(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	if err := c.compileCommitStmt(&CommitStmt{}); err != nil {
		t.Fatalf("compileCommitStmt: %v", err)
	}
	if len(c.mainBuf) != 1 || c.mainBuf[0].Op != OpVCommit {
		t.Fatalf("unexpected instructions: %+v", c.mainBuf)
	}
}

func TestCompilePlainRollbackEmitsVRollback(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	if err := c.compileRollbackStmt(&RollbackStmt{}); err != nil {
		t.Fatalf("compileRollbackStmt: %v", err)
	}
	if len(c.mainBuf) != 1 || c.mainBuf[0].Op != OpVRollback {
		t.Fatalf("unexpected instructions: %+v", c.mainBuf)
	}
}

func TestCompileRollbackToEmitsSavepointThenVRollbackTo(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	if err := c.compileRollbackStmt(&RollbackStmt{To: "sp1"}); err != nil {
		t.Fatalf("compileRollbackStmt: %v", err)
	}
	if len(c.mainBuf) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(c.mainBuf))
	}
	if c.mainBuf[0].Op != OpSavepoint || c.mainBuf[0].P1 != 0 || c.mainBuf[0].P4.String != "sp1" {
		t.Fatalf("unexpected first instruction: %+v", c.mainBuf[0])
	}
	if c.mainBuf[1].Op != OpVRollbackTo || c.mainBuf[1].P4.String != "sp1" {
		t.Fatalf("unexpected second instruction: %+v", c.mainBuf[1])
	}
}

func TestCompileSavepointStmtEmitsSavepointOpOneThenVSavepoint(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	if err := c.compileSavepointStmt(&SavepointStmt{Name: "sp1"}); err != nil {
		t.Fatalf("compileSavepointStmt: %v", err)
	}
	if c.mainBuf[0].Op != OpSavepoint || c.mainBuf[0].P1 != 1 {
		t.Fatalf("unexpected first instruction: %+v", c.mainBuf[0])
	}
	if c.mainBuf[1].Op != OpVSavepoint {
		t.Fatalf("unexpected second instruction: %+v", c.mainBuf[1])
	}
}

func TestCompileReleaseStmtEmitsSavepointOpTwoThenVRelease(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	if err := c.compileReleaseStmt(&ReleaseStmt{Name: "sp1"}); err != nil {
		t.Fatalf("compileReleaseStmt: %v", err)
	}
	if c.mainBuf[0].Op != OpSavepoint || c.mainBuf[0].P1 != 2 {
		t.Fatalf("unexpected first instruction: %+v", c.mainBuf[0])
	}
	if c.mainBuf[1].Op != OpVRelease {
		t.Fatalf("unexpected second instruction: %+v", c.mainBuf[1])
	}
}
