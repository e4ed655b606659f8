package sqlc_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/render"
	"go.corvidb.dev/compiler/internal/testutil"
)

// TestLawResultColumnsMatchReferenceOracle checks §8's round-trip law:
// the column names/order this compiler declares for a projection must
// agree with what a real SQLite engine reports for the same SELECT
// against the same schema. The oracle (modernc.org/sqlite, pure Go) is
// only ever asked "what would this query's result set look like" - it
// never runs the bytecode this package emits, which stays out of scope.
func TestLawResultColumnsMatchReferenceOracle(t *testing.T) {
	schema := usersSchema()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(render.TableDDL(schema))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name, age) VALUES (1, 'ada', 36), (2, 'grace', 40)`)
	require.NoError(t, err)

	rows, err := db.Query(`SELECT id, name FROM users ORDER BY id`)
	require.NoError(t, err)
	oracleCols, err := rows.Columns()
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	cat := testutil.NewCatalog()
	cat.AddTable(schema)
	stmt := &sqlc.SelectStmt{
		Core: &sqlc.SelectCore{
			Columns: []sqlc.ResultColumn{{Expr: &sqlc.ColumnRef{Column: "id"}}, {Expr: &sqlc.ColumnRef{Column: "name"}}},
			From:    &sqlc.TableSource{Name: "users"},
		},
		OrderBy: []sqlc.OrderingTerm{{Expr: &sqlc.ColumnRef{Column: "id"}}},
	}
	prog, err := sqlc.Compile(cat, stmt, "SELECT id, name FROM users ORDER BY id", sqlc.Options{})
	require.NoError(t, err)

	require.Equal(t, oracleCols, prog.ColumnNames, "compiled program's declared result columns should match the reference oracle's")
}

// TestLawLimitRowCountIsNonDecreasing checks §8's LIMIT-monotonicity
// law via the same oracle: raising LIMIT never shrinks the row count
// SQLite itself would return. Only the oracle is queried; this test
// neither compiles the query with this package nor executes its
// bytecode.
func TestLawLimitRowCountIsNonDecreasing(t *testing.T) {
	schema := usersSchema()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(render.TableDDL(schema))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name, age) VALUES (1,'a',1),(2,'b',2),(3,'c',3)`)
	require.NoError(t, err)

	countAt := func(limit int) int {
		rows, err := db.Query(`SELECT id FROM users ORDER BY id LIMIT ?`, limit)
		require.NoError(t, err)
		defer rows.Close()
		n := 0
		for rows.Next() {
			n++
		}
		return n
	}

	prev := 0
	for _, limit := range []int{0, 1, 2, 5, 100} {
		n := countAt(limit)
		require.GreaterOrEqual(t, n, prev, "row count must not shrink as LIMIT increases")
		prev = n
	}
}
