package sqlc

import "fmt"

// StatusCode mirrors the fixed status-code enumeration a host surfaces to
// callers (sqlite_error(code, message, line?, column?) in the spec).
type StatusCode int

//noinspection GoSnakeCaseUsage
const (
	OK StatusCode = iota
	ERROR
	INTERNAL
	MISUSE
	CONSTRAINT
	NOTFOUND
	IOERR
)

func (c StatusCode) String() string {
	switch c {
	case OK:
		return "OK"
	case ERROR:
		return "ERROR"
	case INTERNAL:
		return "INTERNAL"
	case MISUSE:
		return "MISUSE"
	case CONSTRAINT:
		return "CONSTRAINT"
	case NOTFOUND:
		return "NOTFOUND"
	case IOERR:
		return "IOERR"
	default:
		return "UNKNOWN"
	}
}

// ErrorKind classifies a CompileError without tying callers to a Go type
// per error variant; see spec §7.
type ErrorKind int

const (
	// KindParse is surfaced unchanged from the external parser.
	KindParse ErrorKind = iota
	// KindSyntax covers unknown tables/columns/functions, invalid
	// constructs and unsupported statements.
	KindSyntax
	// KindConstraint covers NOT NULL, CHECK and foreign-key violations
	// detected statically at compile time.
	KindConstraint
	// KindMisuse covers programmatic mistakes by the caller of this
	// package (e.g. compiling with a nil catalog).
	KindMisuse
	// KindInternal covers broken invariants: unresolved placeholders,
	// a cursor with no matching schema. These indicate compiler bugs.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindSyntax:
		return "SyntaxError"
	case KindConstraint:
		return "ConstraintError"
	case KindMisuse:
		return "MisuseError"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// CompileError is the error type returned for every unrecoverable failure
// raised while compiling a statement. It carries the originating token's
// location when the caller supplied one.
type CompileError struct {
	Code    StatusCode
	Kind    ErrorKind
	Message string
	Line    int // 0 if unknown
	Column  int // 0 if unknown

	// Wrapped is set when this CompileError preserves a ParseError
	// surfaced unchanged from the external parser.
	Wrapped error
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d, column %d)", e.Kind, e.Message, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Wrapped }

func newError(kind ErrorKind, code StatusCode, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func syntaxErrorf(format string, args ...interface{}) *CompileError {
	return newError(KindSyntax, ERROR, format, args...)
}

func internalErrorf(format string, args ...interface{}) *CompileError {
	return newError(KindInternal, INTERNAL, format, args...)
}

func misuseErrorf(format string, args ...interface{}) *CompileError {
	return newError(KindMisuse, MISUSE, format, args...)
}

func constraintErrorf(format string, args ...interface{}) *CompileError {
	return newError(KindConstraint, CONSTRAINT, format, args...)
}

// AtToken attaches a source location to a copy of the error.
func (e *CompileError) AtToken(line, column int) *CompileError {
	cp := *e
	cp.Line, cp.Column = line, column
	return &cp
}

// ParseError wraps a failure surfaced from the external parser unchanged,
// preserving its location and original message.
func ParseError(line, column int, err error) *CompileError {
	return &CompileError{Kind: KindParse, Code: ERROR, Message: err.Error(), Line: line, Column: column, Wrapped: err}
}
