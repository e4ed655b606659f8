package sqlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

func TestCompileWindowFunctionUsesSorterAndWindowOpcodes(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(ordersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{
			{Expr: &sqlc.ColumnRef{Column: "user_id"}},
			{Expr: &sqlc.FuncCallExpr{
				Name: "row_number",
				Over: &sqlc.WindowDef{
					PartitionBy: []sqlc.Expr{&sqlc.ColumnRef{Column: "user_id"}},
					OrderBy:     []sqlc.OrderingTerm{{Expr: &sqlc.ColumnRef{Column: "total"}, Desc: true}},
				},
			}},
		},
		From: &sqlc.TableSource{Name: "orders"},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT user_id, row_number() OVER (PARTITION BY user_id ORDER BY total DESC) FROM orders", sqlc.Options{})
	require.NoError(t, err)

	var sawEphemeral, sawSort, sawResultRow bool
	for _, ins := range prog.Instructions {
		switch ins.Op {
		case sqlc.OpOpenEphemeral:
			sawEphemeral = true
		case sqlc.OpSort:
			sawSort = true
		case sqlc.OpResultRow:
			sawResultRow = true
		}
	}
	require.True(t, sawEphemeral, "expected the window pass to open a sorter ephemeral table")
	require.True(t, sawSort, "expected the sorter to be sorted before the window pass runs")
	require.True(t, sawResultRow, "expected a result row per partitioned/ordered input row")
}

func TestCompileWindowRejectsStarProjection(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(ordersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{
			{Star: true},
			{Expr: &sqlc.FuncCallExpr{Name: "row_number", Over: &sqlc.WindowDef{}}},
		},
		From: &sqlc.TableSource{Name: "orders"},
	}}

	_, err := sqlc.Compile(cat, stmt, "SELECT *, row_number() OVER () FROM orders", sqlc.Options{})
	require.Error(t, err)
}
