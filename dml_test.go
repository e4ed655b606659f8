package sqlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

func TestCompileInsertValuesEmitsVUpdatePerRow(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.InsertStmt{
		Table:   "users",
		Columns: []string{"id", "name", "age"},
		Values: [][]sqlc.Expr{
			{&sqlc.IntLit{Value: 1}, &sqlc.StringLit{Value: "ada"}, &sqlc.IntLit{Value: 36}},
			{&sqlc.IntLit{Value: 2}, &sqlc.StringLit{Value: "grace"}, &sqlc.IntLit{Value: 40}},
		},
	}

	prog, err := sqlc.Compile(cat, stmt, "INSERT INTO users (id, name, age) VALUES (1, 'ada', 36), (2, 'grace', 40)", sqlc.Options{})
	require.NoError(t, err)

	count := 0
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpVUpdate {
			count++
		}
	}
	require.Equal(t, 2, count, "expected one VUpdate per VALUES row")
}

func TestCompileInsertChecksNotNullOnlyOnNotNullColumns(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	// age has no NOT NULL constraint in usersSchema, but name does; omit
	// age and supply name, and expect a NotNull check only on id/name.
	stmt := &sqlc.InsertStmt{
		Table:   "users",
		Columns: []string{"id", "name"},
		Values:  [][]sqlc.Expr{{&sqlc.IntLit{Value: 1}, &sqlc.StringLit{Value: "ada"}}},
	}

	prog, err := sqlc.Compile(cat, stmt, "INSERT INTO users (id, name) VALUES (1, 'ada')", sqlc.Options{})
	require.NoError(t, err)

	notNullChecks := 0
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpNotNull {
			notNullChecks++
		}
	}
	require.Equal(t, 2, notNullChecks, "expected a NOT NULL check for id and name")
}

func TestCompileInsertRejectsWrongArity(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.InsertStmt{
		Table:   "users",
		Columns: []string{"id", "name", "age"},
		Values:  [][]sqlc.Expr{{&sqlc.IntLit{Value: 1}}},
	}
	_, err := sqlc.Compile(cat, stmt, "INSERT INTO users (id, name, age) VALUES (1)", sqlc.Options{})
	require.Error(t, err)
}

func TestCompileInsertWithConflictClauseUsesItOverDefault(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.InsertStmt{
		Table:       "users",
		Columns:     []string{"id", "name"},
		Values:      [][]sqlc.Expr{{&sqlc.IntLit{Value: 1}, &sqlc.StringLit{Value: "ada"}}},
		Conflict:    sqlc.ConflictReplace,
		HasConflict: true,
	}
	prog, err := sqlc.Compile(cat, stmt, "INSERT OR REPLACE INTO users (id, name) VALUES (1, 'ada')", sqlc.Options{})
	require.NoError(t, err)

	var found bool
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpVUpdate {
			require.Equal(t, sqlc.P4Update, ins.P4.Kind)
			require.Equal(t, sqlc.ConflictReplace, ins.P4.Update.Conflict)
			found = true
		}
	}
	require.True(t, found)
}

func TestCompileUpdateFetchesUnchangedColumnsAndWritesBack(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.UpdateStmt{
		Table:       "users",
		Assignments: []sqlc.Assignment{{Column: "age", Value: &sqlc.IntLit{Value: 41}}},
		Where:       &sqlc.BinaryExpr{Op: sqlc.BinEq, Left: &sqlc.ColumnRef{Column: "id"}, Right: &sqlc.IntLit{Value: 1}},
	}
	prog, err := sqlc.Compile(cat, stmt, "UPDATE users SET age = 41 WHERE id = 1", sqlc.Options{})
	require.NoError(t, err)

	var sawVColumn, sawVUpdate, sawVRowid bool
	for _, ins := range prog.Instructions {
		switch ins.Op {
		case sqlc.OpVColumn:
			sawVColumn = true
		case sqlc.OpVUpdate:
			sawVUpdate = true
		case sqlc.OpVRowid:
			sawVRowid = true
		}
	}
	require.True(t, sawVColumn, "expected unchanged columns (id, name) fetched via VColumn")
	require.True(t, sawVRowid, "expected the existing rowid fetched for the write-back")
	require.True(t, sawVUpdate)
}

func TestCompileDeleteEmitsRowidDrivenVUpdate(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.DeleteStmt{
		Table: "users",
		Where: &sqlc.BinaryExpr{Op: sqlc.BinEq, Left: &sqlc.ColumnRef{Column: "id"}, Right: &sqlc.IntLit{Value: 1}},
	}
	prog, err := sqlc.Compile(cat, stmt, "DELETE FROM users WHERE id = 1", sqlc.Options{})
	require.NoError(t, err)

	var sawVUpdate bool
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpVUpdate {
			require.EqualValues(t, 1, ins.P2, "DELETE's VUpdate should carry a single rowid argument")
			sawVUpdate = true
		}
	}
	require.True(t, sawVUpdate)
}

func TestCompileInsertEnforcesCheckConstraint(t *testing.T) {
	cat := testutil.NewCatalog()
	schema := usersSchema()
	schema.Checks = []sqlc.Expr{&sqlc.BinaryExpr{Op: sqlc.BinGe, Left: &sqlc.ColumnRef{Column: "age"}, Right: &sqlc.IntLit{Value: 0}}}
	cat.AddTable(schema)

	stmt := &sqlc.InsertStmt{
		Table:   "users",
		Columns: []string{"id", "name", "age"},
		Values:  [][]sqlc.Expr{{&sqlc.IntLit{Value: 1}, &sqlc.StringLit{Value: "ada"}, &sqlc.IntLit{Value: 36}}},
	}
	prog, err := sqlc.Compile(cat, stmt, "INSERT INTO users (id, name, age) VALUES (1, 'ada', 36)", sqlc.Options{})
	require.NoError(t, err)

	var sawConstraintViolation bool
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpConstraintViolation {
			sawConstraintViolation = true
		}
	}
	require.True(t, sawConstraintViolation, "expected the CHECK expression to compile to a guarded ConstraintViolation")
}
