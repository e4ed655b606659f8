package main

import (
	"sort"

	"go.corvidb.dev/compiler"
	"go.corvidb.dev/compiler/internal/testutil"
)

// demo bundles a hand-built AST (standing in for the output of the
// external parser this package never implements), the literal SQL it
// represents (purely for Program.SQL/error messages), and a catalog
// pre-populated with whatever tables the statement needs.
type demo struct {
	sql     string
	stmt    sqlc.Stmt
	catalog func() sqlc.Catalog
}

func usersTable() *sqlc.TableSchema {
	return &sqlc.TableSchema{
		Name:       "users",
		Columns:    []sqlc.ColumnDef{{Name: "id", Affinity: sqlc.AffinityInteger, NotNull: true, IsPartOfPK: true}, {Name: "name", Affinity: sqlc.AffinityText, NotNull: true}, {Name: "age", Affinity: sqlc.AffinityInteger}},
		PrimaryKey: []int{0},
	}
}

func ordersTable() *sqlc.TableSchema {
	return &sqlc.TableSchema{
		Name:    "orders",
		Columns: []sqlc.ColumnDef{{Name: "id", Affinity: sqlc.AffinityInteger, NotNull: true, IsPartOfPK: true}, {Name: "user_id", Affinity: sqlc.AffinityInteger, NotNull: true}, {Name: "total", Affinity: sqlc.AffinityReal}},
	}
}

var demos = map[string]demo{
	"select-scan": {
		sql: "SELECT id, name FROM users WHERE age > ?",
		stmt: &sqlc.SelectStmt{Core: &sqlc.SelectCore{
			Columns: []sqlc.ResultColumn{
				{Expr: &sqlc.ColumnRef{Column: "id"}},
				{Expr: &sqlc.ColumnRef{Column: "name"}},
			},
			From:  &sqlc.TableSource{Name: "users"},
			Where: &sqlc.BinaryExpr{Op: sqlc.BinGt, Left: &sqlc.ColumnRef{Column: "age"}, Right: &sqlc.ParamExpr{Kind: sqlc.ParamPositional, Position: 1}},
		}},
		catalog: func() sqlc.Catalog {
			c := testutil.NewCatalog()
			c.AddTable(usersTable())
			return c
		},
	},
	"join-aggregate": {
		sql: "SELECT u.name, sum(o.total) FROM users u JOIN orders o ON o.user_id = u.id GROUP BY u.name",
		stmt: &sqlc.SelectStmt{Core: &sqlc.SelectCore{
			Columns: []sqlc.ResultColumn{
				{Expr: &sqlc.ColumnRef{Table: "u", Column: "name"}},
				{Expr: &sqlc.FuncCallExpr{Name: "sum", Args: []sqlc.Expr{&sqlc.ColumnRef{Table: "o", Column: "total"}}}},
			},
			From: &sqlc.JoinSource{
				Left:  &sqlc.TableSource{Name: "users", Alias: "u"},
				Right: &sqlc.TableSource{Name: "orders", Alias: "o"},
				Type:  sqlc.JoinInner,
				On:    &sqlc.BinaryExpr{Op: sqlc.BinEq, Left: &sqlc.ColumnRef{Table: "o", Column: "user_id"}, Right: &sqlc.ColumnRef{Table: "u", Column: "id"}},
			},
			GroupBy: []sqlc.Expr{&sqlc.ColumnRef{Table: "u", Column: "name"}},
		}},
		catalog: func() sqlc.Catalog {
			c := testutil.NewCatalog()
			c.AddTable(usersTable())
			c.AddTable(ordersTable())
			return c
		},
	},
	"insert-values": {
		sql: "INSERT INTO users (id, name, age) VALUES (1, 'ada', 36)",
		stmt: &sqlc.InsertStmt{
			Table:   "users",
			Columns: []string{"id", "name", "age"},
			Values: [][]sqlc.Expr{
				{&sqlc.IntLit{Value: 1}, &sqlc.StringLit{Value: "ada"}, &sqlc.IntLit{Value: 36}},
			},
		},
		catalog: func() sqlc.Catalog {
			c := testutil.NewCatalog()
			c.AddTable(usersTable())
			return c
		},
	},
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for n := range demos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
