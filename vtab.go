package sqlc

// This file defines the external collaborators named in spec §6: the
// schema catalog and the virtual-table module contract. The compiler
// depends only on these interfaces; the catalog, the modules, the VDBE
// and the key-value store underneath virtual tables are implemented
// elsewhere and injected.
//
// The shapes below are adapted from the teacher's CGO virtual-table
// bridge (go.riyazali.net/sqlite's Module/VirtualTable/VirtualCursor and
// IndexInfoInput/IndexInfoOutput in vtab.go/virtual_table.go) with the
// CGO and SQLite-C-struct plumbing stripped out: the same vocabulary,
// expressed as plain Go interfaces a pure compiler can hold references
// to without linking against SQLite.

// ConstraintOp is the operator code for a single WHERE constraint
// presented to a module's BestIndex, using SQLite's own numbering so a
// real vtab module can be dropped in unchanged.
type ConstraintOp int

//noinspection GoSnakeCaseUsage
const (
	INDEX_CONSTRAINT_EQ        ConstraintOp = 2
	INDEX_CONSTRAINT_GT        ConstraintOp = 4
	INDEX_CONSTRAINT_LE        ConstraintOp = 8
	INDEX_CONSTRAINT_LT        ConstraintOp = 16
	INDEX_CONSTRAINT_GE        ConstraintOp = 32
	INDEX_CONSTRAINT_MATCH     ConstraintOp = 64
	INDEX_CONSTRAINT_LIKE      ConstraintOp = 65
	INDEX_CONSTRAINT_GLOB      ConstraintOp = 66
	INDEX_CONSTRAINT_REGEXP    ConstraintOp = 67
	INDEX_CONSTRAINT_NE        ConstraintOp = 68
	INDEX_CONSTRAINT_ISNOT     ConstraintOp = 69
	INDEX_CONSTRAINT_ISNOTNULL ConstraintOp = 70
	INDEX_CONSTRAINT_ISNULL    ConstraintOp = 71
	INDEX_CONSTRAINT_IS        ConstraintOp = 72
	INDEX_CONSTRAINT_FUNCTION  ConstraintOp = 150
)

// ScanFlag masks IndexInfoOutput.IdxFlags.
type ScanFlag int

//noinspection GoSnakeCaseUsage
const (
	INDEX_SCAN_UNIQUE ScanFlag = 1 // scan visits at most 1 row
)

// IndexConstraint is one input constraint offered to BestIndex.
type IndexConstraint struct {
	ColumnIndex int // -1 for rowid
	Op          ConstraintOp
	Usable      bool
}

// OrderByTerm is one ORDER BY column offered to BestIndex.
type OrderByTerm struct {
	ColumnIndex int
	Desc        bool
}

// IndexInfoInput is built from the WHERE/ORDER BY terms that reference
// only a single cursor's columns (§4.2) and passed to BestIndex.
type IndexInfoInput struct {
	Constraints []IndexConstraint
	OrderBy     []OrderByTerm
	ColUsed     int64 // mask of columns used by the statement
}

// ConstraintUsage reports, per input constraint, whether a module's
// chosen access plan consumes it.
type ConstraintUsage struct {
	ArgvIndex int // 1-based position among VFilter arguments; 0 = unused
	Omit      bool
}

// IndexInfoOutput is what BestIndex returns: the access plan plus
// per-constraint usage.
type IndexInfoOutput struct {
	ConstraintUsage []ConstraintUsage
	IndexNumber     int
	IndexString     string
	OrderByConsumed bool
	EstimatedCost   float64
	EstimatedRows   int64
	IdxFlags        ScanFlag
}

// VirtualTable is a connected handle to a virtual table, as returned by
// a Module's Connect/Create.
type VirtualTable interface {
	BestIndex(*IndexInfoInput) (*IndexInfoOutput, error)
	Open() (VirtualCursor, error)
	Disconnect() error
	Destroy() error
}

// WriteableVirtualTable is implemented by tables that support INSERT,
// UPDATE and/or DELETE.
type WriteableVirtualTable interface {
	VirtualTable
	Insert(rowid RuntimeValue, cols ...RuntimeValue) (int64, error)
	Update(rowid RuntimeValue, cols ...RuntimeValue) error
	UpdateWithKeyChange(old, new RuntimeValue, cols ...RuntimeValue) error
	Delete(rowid RuntimeValue) error
}

// VirtualCursor is a row stream over a virtual table.
type VirtualCursor interface {
	Filter(idxNum int, idxStr string, argv ...RuntimeValue) error
	Next() error
	Rowid() (int64, error)
	Column(dst *ResultSink, colIdx int) error
	Eof() bool
	Close() error
}

// Module resolves a virtual table by name via the schema catalog.
type Module interface {
	Connect(args []string) (VirtualTable, error)
}

// RuntimeValue is the runtime counterpart of a bound parameter or
// VFilter argument. It is opaque to the compiler: only the VDBE
// interprets it. Kept as an interface (not a concrete struct) so a host
// can plug in whatever representation its VDBE already uses.
type RuntimeValue interface {
	IsNull() bool
}

// ResultSink is the write side a VirtualCursor.Column call uses to
// report a column's value; opaque to the compiler for the same reason
// as RuntimeValue.
type ResultSink interface {
	ResultInt64(int64)
	ResultFloat(float64)
	ResultText(string)
	ResultBlob([]byte)
	ResultNull()
}

// ColumnDef describes one column of a table schema.
type ColumnDef struct {
	Name      string
	Affinity  Affinity
	NotNull   bool
	Default   Expr // nil if none; either a literal or a compile-time expression
	IsPartOfPK bool
}

// Affinity is SQLite's single-character column type affinity, used by
// CAST (§4.3) and DEFAULT/CHECK enforcement (§4.8).
type Affinity byte

const (
	AffinityText    Affinity = 't'
	AffinityInteger Affinity = 'i'
	AffinityBlob    Affinity = 'b'
	AffinityReal    Affinity = 'r'
	AffinityNumeric Affinity = 'n'
)

// TableSchema is a snapshot of a resolved table: columns, PK definition,
// indexes, CHECK expressions and the module handle that backs it.
type TableSchema struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []int // column indices, in key order; empty = rowid table
	Checks     []Expr
	Module     Module
	Table      VirtualTable // the connected instance, once opened
	IsCTE      bool
}

func (s *TableSchema) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if equalFoldASCII(c.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// FuncDef is a resolved function descriptor (scalar, aggregate or
// window), as returned by the catalog's find_function.
type FuncDef struct {
	Name     string
	NumArgs  int // -1 means variadic
	Affinity Affinity
	IsAgg    bool
	IsWindow bool
	// Handle carries the catalog-assigned identity used by the VDBE to
	// dispatch xFunc/xStep/xFinal/xValue/xInverse; the compiler treats
	// it as opaque.
	Handle interface{}
}

// Catalog is the schema catalog: table/function/module/collation
// resolution, injected into the compiler.
type Catalog interface {
	FindTable(schema, name string) (*TableSchema, error)
	FindFunction(name string, numArgs int) (*FuncDef, error)
	GetVTabModule(name string) (Module, error)
	HasCollation(name string) bool
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
