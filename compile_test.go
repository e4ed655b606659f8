package sqlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

func usersSchema() *sqlc.TableSchema {
	return &sqlc.TableSchema{
		Name:       "users",
		Columns:    []sqlc.ColumnDef{{Name: "id", Affinity: sqlc.AffinityInteger, NotNull: true, IsPartOfPK: true}, {Name: "name", Affinity: sqlc.AffinityText, NotNull: true}, {Name: "age", Affinity: sqlc.AffinityInteger}},
		PrimaryKey: []int{0},
	}
}

func TestCompileSimpleSelectProducesResultRow(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "id"}}, {Expr: &sqlc.ColumnRef{Column: "name"}}},
		From:    &sqlc.TableSource{Name: "users"},
		Where:   &sqlc.BinaryExpr{Op: sqlc.BinGt, Left: &sqlc.ColumnRef{Column: "age"}, Right: &sqlc.IntLit{Value: 18}},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT id, name FROM users WHERE age > 18", sqlc.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, prog.Instructions)
	require.Equal(t, sqlc.OpInit, prog.Instructions[0].Op)

	var sawFilter, sawResultRow, sawHalt bool
	for _, ins := range prog.Instructions {
		switch ins.Op {
		case sqlc.OpVFilter:
			sawFilter = true
		case sqlc.OpResultRow:
			sawResultRow = true
		case sqlc.OpHalt:
			sawHalt = true
		}
	}
	require.True(t, sawFilter, "expected a VFilter over the users cursor")
	require.True(t, sawResultRow, "expected a ResultRow emitting the projected columns")
	require.True(t, sawHalt, "expected a terminating Halt")
}

func TestCompileRejectsUnknownTable(t *testing.T) {
	cat := testutil.NewCatalog()
	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Star: true}},
		From:    &sqlc.TableSource{Name: "ghosts"},
	}}
	_, err := sqlc.Compile(cat, stmt, "SELECT * FROM ghosts", sqlc.Options{})
	require.Error(t, err)
	ce, ok := err.(*sqlc.CompileError)
	require.True(t, ok, "expected a *CompileError, got %T", err)
	require.Equal(t, sqlc.KindSyntax, ce.Kind)
}

func TestCompileNilCatalogIsMisuse(t *testing.T) {
	_, err := sqlc.Compile(nil, &sqlc.SelectStmt{Core: &sqlc.SelectCore{Columns: []sqlc.ResultColumn{{Expr: &sqlc.IntLit{Value: 1}}}}}, "SELECT 1", sqlc.Options{})
	require.Error(t, err)
	ce, ok := err.(*sqlc.CompileError)
	require.True(t, ok)
	require.Equal(t, sqlc.KindMisuse, ce.Kind)
}

func TestCompileExplainRendersInstructionTable(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Star: true}},
		From:    &sqlc.TableSource{Name: "users"},
	}}
	out, err := sqlc.CompileExplain(cat, stmt, "SELECT * FROM users", sqlc.Options{})
	require.NoError(t, err)
	require.Contains(t, out, "addr")
	require.Contains(t, out, "opcode")
}

func TestCompileGroupByAggregateProducesAggOpcodes(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{
			{Expr: &sqlc.ColumnRef{Column: "name"}},
			{Expr: &sqlc.FuncCallExpr{Name: "count", Star: true}},
		},
		From:    &sqlc.TableSource{Name: "users"},
		GroupBy: []sqlc.Expr{&sqlc.ColumnRef{Column: "name"}},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT name, count(*) FROM users GROUP BY name", sqlc.Options{})
	require.NoError(t, err)

	ops := make(map[sqlc.Op]int)
	for _, ins := range prog.Instructions {
		ops[ins.Op]++
	}
	require.Positive(t, ops[sqlc.OpAggStep])
	require.Positive(t, ops[sqlc.OpAggFinal])
	require.Positive(t, ops[sqlc.OpAggIterate])
}

func TestCompileTransactionStatements(t *testing.T) {
	cat := testutil.NewCatalog()

	prog, err := sqlc.Compile(cat, &sqlc.BeginStmt{Mode: sqlc.BeginDeferred}, "BEGIN", sqlc.Options{})
	require.NoError(t, err)
	require.Equal(t, sqlc.OpVBegin, prog.Instructions[1].Op)

	prog, err = sqlc.Compile(cat, &sqlc.CommitStmt{}, "COMMIT", sqlc.Options{})
	require.NoError(t, err)
	require.Equal(t, sqlc.OpVCommit, prog.Instructions[1].Op)
}
