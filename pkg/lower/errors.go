package lower

import (
	"errors"
	"fmt"

	"github.com/mirtext/mirtext/pkg/tree"
)

// Failure kinds. Every error produced while lowering wraps one of these, so
// callers can test with errors.Is.
var (
	ErrMissingProperty     = errors.New("missing property")
	ErrUnknownNodeType     = errors.New("unknown node type")
	ErrOperandNotFound     = errors.New("operand not found")
	ErrPrototypeNotFound   = errors.New("prototype not found")
	ErrUnbalancedLoopStack = errors.New("unbalanced loop stack")
	ErrUnknownClass        = errors.New("unknown class")
	ErrUnknownMember       = errors.New("unknown member")
	ErrInvalidLabelKind    = errors.New("invalid label kind")
	ErrNoActiveLoop        = errors.New("no active loop")
	ErrInvalidLayout       = errors.New("invalid layout")
	ErrChildOutOfRange     = errors.New("child index out of range")
	ErrInvalidSize         = errors.New("invalid size")
	ErrInvalidProperty     = errors.New("invalid property value")
	ErrInvalidType         = errors.New("invalid type")
	ErrUnknownOperator     = errors.New("unknown operator")
)

// Error is the single fault channel of the pass. Msg is reported verbatim to
// the top-level caller; Dump optionally holds the offending node.
type Error struct {
	Kind error
	Msg  string
	Dump string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func nodeError(kind error, n *tree.Node, format string, args ...interface{}) *Error {
	e := newError(kind, format, args...)
	if n != nil {
		e.Dump = tree.Dump(n)
	}
	return e
}
