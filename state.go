package sqlc

import (
	"io"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Placeholder is a forward-jump target allocated before its real
// instruction address is known (§4.1). It is a dedicated newtype (per
// SPEC_FULL's decision on the "mixed placeholder schemes" open question)
// rather than a raw negative int scattered through P2 fields: the only
// place a Placeholder's numeric id is ever written is into an
// instruction's P2, and the sole source of truth for "is this resolved"
// is whether it still has an entry in compiler.placeholders.
type Placeholder int32

// pendingJump records where a placeholder was promised and which buffer
// owns the instructions that reference it.
type pendingJump struct {
	purpose string
	buffer  bufferID
}

type bufferID int

const (
	bufMain bufferID = iota
	bufSubroutine
)

// cursorPlan is the per-cursor planning record (§3, "cursor_plans").
type cursorPlan struct {
	IdxNum          int
	IdxStr          string
	Usage           []ConstraintUsage
	Cost            float64
	RowEstimate     int64
	OrderByConsumed bool
	IdxFlags        ScanFlag
	// constraintExprs are parallel to Usage: the WHERE AST node each
	// input constraint was derived from, in the same order IndexInfoInput
	// presented them.
	ConstraintExprs []Expr
	// handledNodes is the set of WHERE AST nodes (by pointer identity)
	// the plan consumes; verify_where_constraints/residual compilation
	// consult it before re-evaluating a node.
	HandledNodes map[Expr]bool
}

// cteBinding is what cte_map stores per CTE name (§3).
type cteBinding struct {
	Cursor int
	Schema *TableSchema
}

// subroutineDef is what subroutine_defs stores per correlated-subquery
// AST node (§3, §4.4).
type subroutineDef struct {
	StartAddr      int
	Correlated     []correlationRef
	ArgCount       int // pushed args, including the null-output slot(s)
	ResultRegCount int // number of result slots copied back by the caller
}

type correlationRef struct {
	OuterCursor int
	OuterColumn int
}

// frameState tracks local-offset allocation within the subroutine
// currently being emitted (§3: "frame_state").
type frameState struct {
	nextOffset int // next free local offset; locals start at offset 2
	maxOffset  int // high-water mark, patched into FrameEnter's P1 on end
	enterAddr  int // index of this frame's FrameEnter instruction
}

// compiler is the transient per-compile state described in §3. It is
// created fresh by Compile and discarded at return; nothing it owns
// outlives the returned Program.
type compiler struct {
	catalog Catalog
	opts    Options
	log     *lgr.Logger

	sql string

	mainBuf []Instruction
	subBuf  []Instruction

	tableAliases map[string]int          // alias-lower -> cursor id
	tableSchemas map[int]*TableSchema    // cursor id -> schema snapshot
	cteMap       map[string]cteBinding   // cte-name-lower -> binding
	cursorPlans  map[int]*cursorPlan     // cursor id -> plan
	placeholders map[Placeholder]*pendingJump
	subroutines  map[Expr]*subroutineDef // keyed by subquery AST identity

	nextCursor      int
	nextPlaceholder int32
	nextAggBase     int // disambiguates AggStep compound keys across nested aggregate queries
	numRegisters    int // high-water mark across all frames

	subroutineDepth int
	frames          []*frameState // stack; frames[len-1] is current

	constants  []Literal
	parameters map[string]int

	// finalColumnMap supports HAVING/window-placeholder column
	// resolution (§4.3): maps a logical output slot description to the
	// register holding its value once aggregation/finalization ran.
	finalColumnMap map[columnMapKey]int

	diagnostics *multierror.Error
}

// columnMapKey identifies a SELECT-list position or GROUP BY key for
// final_column_map lookups.
type columnMapKey struct {
	kind columnMapKind
	expr Expr
}

type columnMapKind int

const (
	mapGroupKey columnMapKind = iota
	mapAggregateResult
	mapWindowResult
)

// Options are host-supplied knobs; config loading itself is an external
// collaborator (SPEC_FULL "Configuration").
type Options struct {
	// DefaultConflict is used for INSERT/UPDATE/DELETE when no ON
	// CONFLICT clause was given.
	DefaultConflict ConflictMode
	// StrictNaturalJoin turns the NATURAL-JOIN-degrades-to-CROSS
	// behavior (SPEC_FULL decision 4) into a hard SyntaxError instead of
	// a diagnostic, for hosts that want no silent fallback.
	StrictNaturalJoin bool
	// Logger overrides the default no-op logger.
	Logger *lgr.Logger
}

func newCompiler(catalog Catalog, sql string, opts Options) *compiler {
	log := opts.Logger
	if log == nil {
		log = lgr.New(lgr.Out(io.Discard), lgr.Err(io.Discard))
	}
	c := &compiler{
		catalog:        catalog,
		opts:           opts,
		log:            log,
		sql:            sql,
		tableAliases:   make(map[string]int),
		tableSchemas:   make(map[int]*TableSchema),
		cteMap:         make(map[string]cteBinding),
		cursorPlans:    make(map[int]*cursorPlan),
		placeholders:   make(map[Placeholder]*pendingJump),
		subroutines:    make(map[Expr]*subroutineDef),
		parameters:     make(map[string]int),
		finalColumnMap: make(map[columnMapKey]int),
	}
	c.frames = append(c.frames, &frameState{nextOffset: 2})
	return c
}

func (c *compiler) addDiagnostic(err error) {
	c.diagnostics = multierror.Append(c.diagnostics, err)
}

func (c *compiler) currentFrame() *frameState { return c.frames[len(c.frames)-1] }

func (c *compiler) newUUID() uuid.UUID { return uuid.New() }
