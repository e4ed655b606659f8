package sqlc

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Program is the compiled output of a single statement: an ordered
// instruction stream plus the metadata the VDBE needs to run it (§3).
type Program struct {
	Instructions []Instruction
	Constants    []Literal
	NumRegisters int
	NumCursors   int
	Parameters   map[string]int // positional "1","2",... or ":name"/"@name"/"$name" -> register
	ColumnNames  []string
	SQL          string

	// ID correlates a compiled program with logs/traces emitted while it
	// was built; purely observational, never read by the VDBE.
	ID uuid.UUID
}

// LiteralKind discriminates the constant-pool tagged union (§3).
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitBigInt
	LitReal
	LitString
	LitBlob
)

// Literal is one entry of the constant pool.
type Literal struct {
	Kind LiteralKind
	I    int64
	R    float64
	S    string
	B    []byte
}

// String renders the program as a human-readable instruction table, the
// way dynajoe-tinydb's internal/virtualmachine/codegen.go formats a
// VDBE program for debugging, adapted to this package's Instruction
// shape and P4 tagged union.
func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "addr  opcode                p1     p2     p3     p4                    comment\n")
	for addr, ins := range p.Instructions {
		fmt.Fprintf(&sb, "%-5d %-21s %-6d %-6d %-6d %-21s %s\n",
			addr, ins.Op, ins.P1, ins.P2, ins.P3, formatP4(ins.P4), ins.Comment)
	}
	return sb.String()
}

func formatP4(v P4Value) string {
	switch v.Kind {
	case P4Null:
		return "NULL"
	case P4Int:
		return fmt.Sprintf("%d", v.Int)
	case P4String:
		return fmt.Sprintf("%q", v.String)
	case P4Vtab:
		if v.Vtab != nil && v.Vtab.Schema != nil {
			return "vtab:" + v.Vtab.Schema.Name
		}
		return "vtab:?"
	case P4Update:
		if v.Update != nil {
			return "conflict:" + v.Update.Conflict.String()
		}
		return "conflict:?"
	case P4FuncDef:
		if v.FuncDef != nil && v.FuncDef.Def != nil {
			return "func:" + v.FuncDef.Def.Name
		}
		return "func:?"
	case P4SortKey:
		return "sortkey"
	case P4Coll:
		if v.Coll != nil {
			return "coll:" + v.Coll.Name
		}
		return "coll:?"
	case P4Raw:
		if f, ok := v.Raw.(*FilterArgs); ok {
			return fmt.Sprintf("idxNum=%d idxStr=%q nArgs=%d", f.IdxNum, f.IdxStr, f.NArgs)
		}
		return "raw"
	default:
		return ""
	}
}
