package sqlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

func TestCompileMaterializedCTEOpensEphemeralThenReadsIt(t *testing.T) {
	cat := testutil.NewCatalog()

	with := &sqlc.WithClause{CTEs: []sqlc.CTEDef{{
		Name:        "t",
		ColumnNames: []string{"x"},
		Select: &sqlc.SelectStmt{Core: &sqlc.SelectCore{
			Columns: []sqlc.ResultColumn{{Expr: &sqlc.IntLit{Value: 1}}},
		}},
	}}}
	stmt := &sqlc.SelectStmt{
		With: with,
		Core: &sqlc.SelectCore{
			Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "x"}}},
			From:    &sqlc.TableSource{Name: "t"},
		},
	}

	prog, err := sqlc.Compile(cat, stmt, "WITH t(x) AS (SELECT 1) SELECT x FROM t", sqlc.Options{})
	require.NoError(t, err)

	var sawEphemeral, sawOpenRead bool
	for _, ins := range prog.Instructions {
		switch ins.Op {
		case sqlc.OpOpenEphemeral:
			sawEphemeral = true
		case sqlc.OpOpenRead:
			sawOpenRead = true
		}
	}
	require.True(t, sawEphemeral, "expected the CTE's SELECT to materialize into an ephemeral table")
	require.True(t, sawOpenRead, "expected the outer SELECT to open a read cursor against the materialized CTE")
}

func TestCompileRecursiveCTEUsesResultAndQueueTables(t *testing.T) {
	cat := testutil.NewCatalog()

	anchor := &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.IntLit{Value: 1}}},
	}
	recursive := &sqlc.SelectCore{
		Columns: []sqlc.ResultColumn{{Expr: &sqlc.BinaryExpr{Op: sqlc.BinAdd, Left: &sqlc.ColumnRef{Column: "n"}, Right: &sqlc.IntLit{Value: 1}}}},
		From:    &sqlc.TableSource{Name: "counter"},
		Where:   &sqlc.BinaryExpr{Op: sqlc.BinLt, Left: &sqlc.ColumnRef{Column: "n"}, Right: &sqlc.IntLit{Value: 3}},
	}
	anchor.Compound = &sqlc.CompoundArm{Op: sqlc.CompoundUnionAll, Next: recursive}

	with := &sqlc.WithClause{Recursive: true, CTEs: []sqlc.CTEDef{{
		Name:        "counter",
		ColumnNames: []string{"n"},
		Select:      &sqlc.SelectStmt{Core: anchor},
	}}}
	stmt := &sqlc.SelectStmt{
		With: with,
		Core: &sqlc.SelectCore{
			Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "n"}}},
			From:    &sqlc.TableSource{Name: "counter"},
		},
	}

	prog, err := sqlc.Compile(cat, stmt, "WITH RECURSIVE counter(n) AS (SELECT 1 UNION ALL SELECT n+1 FROM counter WHERE n<3) SELECT n FROM counter", sqlc.Options{})
	require.NoError(t, err)

	ephemerals := 0
	for _, ins := range prog.Instructions {
		if ins.Op == sqlc.OpOpenEphemeral {
			ephemerals++
		}
	}
	require.GreaterOrEqual(t, ephemerals, 2, "expected at least the result and queue ephemeral tables")
}
