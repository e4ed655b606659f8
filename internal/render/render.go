// Package render formats schema and error-reporting strings shared by
// the compiler's error messages and by sqlc-explain's summaries,
// mirroring the teacher's separation of wire/protocol types (Context,
// Value) from orchestration (Stmt): DDL stringification doesn't belong
// scattered through compile-time error formatting.
package render

import (
	"fmt"
	"strings"

	"go.corvidb.dev/compiler"
)

// TableDDL renders schema the way a CREATE TABLE statement would
// declare it, for use in error messages and EXPLAIN QUERY PLAN style
// summaries.
func TableDDL(schema *sqlc.TableSchema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (", schema.Name)
	for i, col := range schema.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		sb.WriteByte(' ')
		sb.WriteString(AffinityName(col.Affinity))
		if col.NotNull {
			sb.WriteString(" NOT NULL")
		}
		if col.IsPartOfPK {
			sb.WriteString(" /* pk */")
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// AffinityName spells out a column affinity byte as SQLite would in a
// column declaration.
func AffinityName(a sqlc.Affinity) string {
	switch a {
	case sqlc.AffinityText:
		return "TEXT"
	case sqlc.AffinityInteger:
		return "INTEGER"
	case sqlc.AffinityBlob:
		return "BLOB"
	case sqlc.AffinityReal:
		return "REAL"
	case sqlc.AffinityNumeric:
		return "NUMERIC"
	default:
		return "NUMERIC"
	}
}

// AccessPlan renders a one-line summary of a chosen index plan, the
// shape an EXPLAIN QUERY PLAN row takes for a virtual-table scan.
func AccessPlan(tableName string, idxNum int, idxStr string, cost float64, rows int64, unique bool) string {
	kind := "SCAN"
	if unique {
		kind = "SEARCH"
	}
	s := fmt.Sprintf("%s %s USING VIRTUAL TABLE INDEX %d", kind, tableName, idxNum)
	if idxStr != "" {
		s += fmt.Sprintf(" (%s)", idxStr)
	}
	s += fmt.Sprintf(" (cost=%.1f rows=%d)", cost, rows)
	return s
}
