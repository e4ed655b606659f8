package sqlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

func TestCompileLeftJoinTracksMatchFlag(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Table: "u", Column: "name"}}, {Expr: &sqlc.ColumnRef{Table: "o", Column: "total"}}},
		From: &sqlc.JoinSource{
			Left:  &sqlc.TableSource{Name: "users", Alias: "u"},
			Right: &sqlc.TableSource{Name: "orders", Alias: "o"},
			Type:  sqlc.JoinLeft,
			On:    &sqlc.BinaryExpr{Op: sqlc.BinEq, Left: &sqlc.ColumnRef{Table: "o", Column: "user_id"}, Right: &sqlc.ColumnRef{Table: "u", Column: "id"}},
		},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT u.name, o.total FROM users u LEFT JOIN orders o ON o.user_id = u.id", sqlc.Options{})
	require.NoError(t, err)

	filters := 0
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpVFilter {
			filters++
		}
	}
	require.Equal(t, 2, filters, "expected one VFilter per joined cursor")
}

func TestCompileLeftJoinNullPadsUnmatchedRow(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Table: "u", Column: "name"}}, {Expr: &sqlc.ColumnRef{Table: "o", Column: "total"}}},
		From: &sqlc.JoinSource{
			Left:  &sqlc.TableSource{Name: "users", Alias: "u"},
			Right: &sqlc.TableSource{Name: "orders", Alias: "o"},
			Type:  sqlc.JoinLeft,
			On:    &sqlc.BinaryExpr{Op: sqlc.BinEq, Left: &sqlc.ColumnRef{Table: "o", Column: "user_id"}, Right: &sqlc.ColumnRef{Table: "u", Column: "id"}},
		},
	}}

	prog, err := sqlc.Compile(cat, stmt, "SELECT u.name, o.total FROM users u LEFT JOIN orders o ON o.user_id = u.id", sqlc.Options{})
	require.NoError(t, err)

	var sawNull, sawResultRow bool
	for _, ins := range prog.Instructions {
		switch ins.Op {
		case sqlc.OpNull:
			sawNull = true
		case sqlc.OpResultRow:
			sawResultRow = true
		}
	}
	require.True(t, sawNull, "the no-match branch must force the right-hand cursor's columns to NULL")
	require.True(t, sawResultRow, "the re-entered inner processor must still reach ResultRow")
}

func TestCompileNaturalJoinDegradesToCrossWithDiagnostic(t *testing.T) {
	cat := testutil.NewCatalog()
	cat.AddTable(usersSchema())
	cat.AddTable(ordersSchema())

	stmt := &sqlc.SelectStmt{Core: &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Star: true}},
		From: &sqlc.JoinSource{
			Left:  &sqlc.TableSource{Name: "users", Alias: "u"},
			Right: &sqlc.TableSource{Name: "orders", Alias: "o"},
			Type:  sqlc.JoinNatural,
		},
	}}

	_, err := sqlc.Compile(cat, stmt, "SELECT * FROM users u NATURAL JOIN orders o", sqlc.Options{})
	require.NoError(t, err, "NATURAL JOIN should degrade to CROSS with a diagnostic, not fail outright")

	_, err = sqlc.Compile(cat, stmt, "SELECT * FROM users u NATURAL JOIN orders o", sqlc.Options{StrictNaturalJoin: true})
	require.Error(t, err, "StrictNaturalJoin should reject NATURAL JOIN outright")
}
