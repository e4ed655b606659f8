package sqlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

func ordersSchema() *sqlc.TableSchema {
	return &sqlc.TableSchema{
		Name:       "orders",
		Columns:    []sqlc.ColumnDef{{Name: "id", Affinity: sqlc.AffinityInteger, NotNull: true, IsPartOfPK: true}, {Name: "user_id", Affinity: sqlc.AffinityInteger}, {Name: "total", Affinity: sqlc.AffinityReal}},
		PrimaryKey: []int{0},
	}
}

func TestCompileUncorrelatedScalarSubqueryCapturesFirstRow(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	sub := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.FuncCallExpr{Name: "max", Args: []sqlc.Expr{&sqlc.ColumnRef{Column: "total"}}}}},
		From:    &sqlc.TableSource{Name: "orders"},
	}}
	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "name"}}},
		From:    &sqlc.TableSource{Name: "users"},
		Where:   &sqlc.BinaryExpr{Op: sqlc.BinGt, Left: &sqlc.ColumnRef{Column: "age"}, Right: &sqlc.ScalarSubqueryExpr{Select: sub}},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT name FROM users WHERE age > (SELECT max(total) FROM orders)", sqlc.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, prog.Instructions)

	var sawOrdersFilter bool
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpVFilter {
			sawOrdersFilter = true
		}
	}
	require.True(t, sawOrdersFilter, "expected the uncorrelated subquery's own FROM to be compiled inline")
}

func TestCompileUncorrelatedScalarSubqueryGuardsAgainstMultipleRows(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	sub := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "total"}}},
		From:    &sqlc.TableSource{Name: "orders"},
	}}
	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "name"}}},
		From:    &sqlc.TableSource{Name: "users"},
		Where:   &sqlc.BinaryExpr{Op: sqlc.BinGt, Left: &sqlc.ColumnRef{Column: "age"}, Right: &sqlc.ScalarSubqueryExpr{Select: sub}},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT name FROM users WHERE age > (SELECT total FROM orders)", sqlc.Options{})
	require.NoError(t, err)

	var sawViolation bool
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpConstraintViolation {
			sawViolation = true
		}
	}
	require.True(t, sawViolation, "a second captured row must raise a runtime error, not silently be dropped")
}

func TestCompileCorrelatedExistsUsesSubroutineCallingConvention(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	inner := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Star: true}},
		From:    &sqlc.TableSource{Name: "orders", Alias: "o"},
		Where:   &sqlc.BinaryExpr{Op: sqlc.BinEq, Left: &sqlc.ColumnRef{Table: "o", Column: "user_id"}, Right: &sqlc.ColumnRef{Table: "u", Column: "id"}},
	}}
	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "name"}}},
		From:    &sqlc.TableSource{Name: "users", Alias: "u"},
		Where:   &sqlc.ExistsExpr{Select: inner},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT name FROM users u WHERE EXISTS (SELECT * FROM orders o WHERE o.user_id = u.id)", sqlc.Options{})
	require.NoError(t, err)

	var sawSubroutine, sawReturn bool
	for _, ins := range prog.Instructions {
		switch ins.Op {
		case sqlc.OpSubroutine:
			sawSubroutine = true
		case sqlc.OpReturn:
			sawReturn = true
		}
	}
	require.True(t, sawSubroutine, "expected a correlated EXISTS to be invoked through Subroutine")
	require.True(t, sawReturn, "expected the cached subroutine body to end with Return")
}

func TestCompileInSubqueryMaterializesEphemeralSet(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	sub := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "user_id"}}},
		From:    &sqlc.TableSource{Name: "orders"},
	}}
	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "name"}}},
		From:    &sqlc.TableSource{Name: "users"},
		Where:   &sqlc.InSubqueryExpr{Expr: &sqlc.ColumnRef{Column: "id"}, Select: sub},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT name FROM users WHERE id IN (SELECT user_id FROM orders)", sqlc.Options{})
	require.NoError(t, err)

	var sawEphemeral bool
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpOpenEphemeral {
			sawEphemeral = true
		}
	}
	require.True(t, sawEphemeral, "expected IN (subquery) to materialize its result into an ephemeral set")
}
