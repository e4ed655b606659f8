// Package testutil provides fake schema-catalog and virtual-table
// implementations of the interfaces the compiler depends on (see
// vtab.go), modeled on the teacher's own simplest virtual table example
// (examples/csv.go's CsvModule/CsvVirtualTable: a naive BestIndex that
// reports a full-table-scan cost, Open/Disconnect/Destroy that do
// nothing interesting). It exists so compiler tests and the
// sqlc-explain demo can stand up a Catalog without any real storage
// engine, since the compiler never actually opens/filters/reads a
// cursor itself -- that is the VDBE's job, out of scope here.
package testutil

import (
	"fmt"

	"go.corvidb.dev/compiler"
)

// Catalog is an in-memory, hand-populated sqlc.Catalog.
type Catalog struct {
	tables     map[string]*sqlc.TableSchema
	functions  map[string]*sqlc.FuncDef
	modules    map[string]sqlc.Module
	collations map[string]bool
}

// NewCatalog returns an empty catalog pre-seeded with the scalar and
// aggregate functions a test or demo is likely to reference.
func NewCatalog() *Catalog {
	c := &Catalog{
		tables:     make(map[string]*sqlc.TableSchema),
		functions:  make(map[string]*sqlc.FuncDef),
		modules:    make(map[string]sqlc.Module),
		collations: map[string]bool{"binary": true, "nocase": true, "rtrim": true},
	}
	for _, fn := range []*sqlc.FuncDef{
		{Name: "lower", NumArgs: 1},
		{Name: "upper", NumArgs: 1},
		{Name: "abs", NumArgs: 1},
		{Name: "length", NumArgs: 1},
		{Name: "coalesce", NumArgs: -1},
		{Name: "count", NumArgs: -1, IsAgg: true},
		{Name: "sum", NumArgs: 1, IsAgg: true},
		{Name: "avg", NumArgs: 1, IsAgg: true},
		{Name: "min", NumArgs: 1, IsAgg: true},
		{Name: "max", NumArgs: 1, IsAgg: true},
		{Name: "row_number", NumArgs: 0, IsWindow: true},
		{Name: "rank", NumArgs: 0, IsWindow: true},
	} {
		c.functions[key(fn.Name, fn.NumArgs)] = fn
	}
	return c
}

// AddTable registers a table with the given columns, served by a fresh
// naive Module created for that table alone (Table retrieves its own
// schema back out of the module, matching how a real module binds one
// instance per table name).
func (c *Catalog) AddTable(schema *sqlc.TableSchema) {
	schema.Module = &Module{schema: schema}
	c.tables[lower(schema.Name)] = schema
	c.modules[lower(schema.Name)] = schema.Module
}

func (c *Catalog) FindTable(schema, name string) (*sqlc.TableSchema, error) {
	t, ok := c.tables[lower(name)]
	if !ok {
		return nil, fmt.Errorf("testutil: no such table %q", name)
	}
	return t, nil
}

func (c *Catalog) FindFunction(name string, numArgs int) (*sqlc.FuncDef, error) {
	if fn, ok := c.functions[key(name, numArgs)]; ok {
		return fn, nil
	}
	if fn, ok := c.functions[key(name, -1)]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("testutil: no such function %s/%d", name, numArgs)
}

func (c *Catalog) GetVTabModule(name string) (sqlc.Module, error) {
	m, ok := c.modules[lower(name)]
	if !ok {
		return nil, fmt.Errorf("testutil: no such module %q", name)
	}
	return m, nil
}

func (c *Catalog) HasCollation(name string) bool { return c.collations[lower(name)] }

func key(name string, numArgs int) string { return lower(name) + "/" + fmt.Sprint(numArgs) }

func lower(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + ('a' - 'A')
		}
	}
	return string(b)
}

// Module is a trivial sqlc.Module that always connects to the same
// fixed schema (there is exactly one instance per AddTable call, so
// args is unused, unlike a real module that parses CREATE VIRTUAL
// TABLE arguments).
type Module struct {
	schema *sqlc.TableSchema
}

func (m *Module) Connect(args []string) (sqlc.VirtualTable, error) {
	return &Table{schema: m.schema}, nil
}

// Table is a connected virtual table with no backing storage: the
// compiler only ever calls BestIndex on it (planner.go) and Connect on
// its owning Module (from.go, dml.go); Open/Filter/Next/etc belong to
// the VDBE, which this package never drives.
type Table struct {
	schema *sqlc.TableSchema
}

// BestIndex reports a unique lookup (cost 1, one row, INDEX_SCAN_UNIQUE,
// constraint consumed and omitted) for every usable column-0 equality
// constraint offered, and otherwise the CsvVirtualTable-style flat
// scan cost; good enough to exercise the planner's tie-break logic in
// tests without modeling any real index.
func (t *Table) BestIndex(in *sqlc.IndexInfoInput) (*sqlc.IndexInfoOutput, error) {
	out := &sqlc.IndexInfoOutput{EstimatedCost: 1000000, EstimatedRows: 1000}
	out.ConstraintUsage = make([]sqlc.ConstraintUsage, len(in.Constraints))
	argv := 1
	for i, cons := range in.Constraints {
		if !cons.Usable {
			continue
		}
		if cons.ColumnIndex == 0 && cons.Op == sqlc.INDEX_CONSTRAINT_EQ {
			out.ConstraintUsage[i] = sqlc.ConstraintUsage{ArgvIndex: argv, Omit: true}
			argv++
			out.EstimatedCost = 1
			out.EstimatedRows = 1
			out.IdxFlags = sqlc.INDEX_SCAN_UNIQUE
		}
	}
	return out, nil
}

func (t *Table) Open() (sqlc.VirtualCursor, error) { return &Cursor{}, nil }
func (t *Table) Disconnect() error                 { return nil }
func (t *Table) Destroy() error                     { return nil }

// Cursor is a no-op VirtualCursor: never driven by the compiler, only
// present to satisfy the interface.
type Cursor struct{}

func (c *Cursor) Filter(idxNum int, idxStr string, argv ...sqlc.RuntimeValue) error { return nil }
func (c *Cursor) Next() error                                                       { return nil }
func (c *Cursor) Rowid() (int64, error)                                             { return 0, nil }
func (c *Cursor) Column(dst *sqlc.ResultSink, colIdx int) error                     { return nil }
func (c *Cursor) Eof() bool                                                         { return true }
func (c *Cursor) Close() error                                                      { return nil }
