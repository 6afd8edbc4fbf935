// Package lower turns a typed syntax tree into MIR text in a single pass.
//
// A State walks the tree and dispatches every node to the Handler
// registered for its tag. Handlers emit lines through State.Emit and use
// the managers hanging off the State for registers, loop labels,
// prototypes and class layouts.
package lower

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mirtext/mirtext/pkg/config"
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/tree"
)

type State struct {
	Loops     *LoopManager
	Registers *RegisterManager
	Functions *FunctionManager
	Data      *DataManager

	cfg     *config.Config
	im      *InstructionManager
	current *tree.Node
	lines   []TextLine
	header  int // index of the open function's header line, or -1
}

// NewState returns a State that lowers with the handlers in im. A State
// lowers one tree and must not be shared between goroutines.
func NewState(cfg *config.Config, im *InstructionManager) *State {
	s := &State{cfg: cfg, im: im, Loops: &LoopManager{}, Data: newDataManager(), header: -1}
	s.Registers = newRegisterManager(s)
	s.Functions = newFunctionManager(s)
	return s
}

func (s *State) Config() *config.Config { return s.cfg }

// Lower processes root and returns the rendered program.
func (s *State) Lower(root *tree.Node) (string, error) {
	if root == nil {
		return "", newError(ErrChildOutOfRange, "nothing to lower")
	}
	if err := s.ProcessTreeElement(root); err != nil {
		return "", err
	}
	if err := s.Close(); err != nil {
		return "", err
	}
	return s.String(s.cfg.IsFeatureEnabled(config.FeatAlignLabels)), nil
}

// ProcessTreeElement moves the cursor to n and runs its handler. The cursor
// is restored on return.
func (s *State) ProcessTreeElement(n *tree.Node) error {
	prev := s.current
	s.current = n
	defer func() { s.current = prev }()

	err := s.im.Perform(s, n)
	var lerr *Error
	if errors.As(err, &lerr) && lerr.Dump == "" {
		lerr.Dump = tree.Dump(n)
	}
	return err
}

func (s *State) ProcessChildTree(i int) error {
	child, err := s.Child(i)
	if err != nil {
		return err
	}
	return s.ProcessTreeElement(child)
}

func (s *State) ProcessAllChildren() error {
	n := s.current
	for i := range n.Children {
		if err := s.ProcessChildTree(i); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) Current() *tree.Node { return s.current }

// Child returns child i of the current node; -1 is the current node itself.
func (s *State) Child(i int) (*tree.Node, error) {
	if i == -1 {
		return s.current, nil
	}
	c := s.current.Child(i)
	if c == nil {
		return nil, nodeError(ErrChildOutOfRange, s.current, "%s has no child %d", s.current, i)
	}
	return c, nil
}

func (s *State) NumChildren() int { return s.current.NumChildren() }

func (s *State) HasProperty(key string) bool { return s.current.HasProperty(key) }

// Property reads a property of the current node. A missing property is an
// error, never a default.
func (s *State) Property(key string) (string, error) {
	return s.ChildProperty(s.current, key)
}

// ChildProperty reads a property of n, usually a child of the current node
// that has no handler of its own.
func (s *State) ChildProperty(n *tree.Node, key string) (string, error) {
	v, ok := n.Property(key)
	if !ok {
		return "", nodeError(ErrMissingProperty, n, "no property %s on %s", key, n)
	}
	return v, nil
}

func (s *State) IntProperty(key string) (int, error) {
	return s.ChildIntProperty(s.current, key)
}

func (s *State) ChildIntProperty(n *tree.Node, key string) (int, error) {
	v, err := s.ChildProperty(n, key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, nodeError(ErrInvalidProperty, n, "property %s on %s is not an integer: '%s'", key, n, v)
	}
	return i, nil
}

// Errorf reports a failure of kind at the current node.
func (s *State) Errorf(kind error, format string, args ...interface{}) error {
	return nodeError(kind, s.current, "%s: %s", s.current, fmt.Sprintf(format, args...))
}

// Dump renders the current node for diagnostics.
func (s *State) Dump() string { return tree.Dump(s.current) }

// EnterFunction and ExitFunction bracket the lowering of a function body.
// The line committed last before EnterFunction is the function header;
// declarations made inside the body are placed in front of it.
func (s *State) EnterFunction() {
	if !s.Registers.InFunction() {
		s.header = max(len(s.lines)-1, 0)
	}
	s.Registers.EnterFunction()
}

func (s *State) ExitFunction() {
	s.Registers.ExitFunction()
	if !s.Registers.InFunction() {
		s.header = -1
	}
}

// emitDeclaration commits a module level line. Inside a function body it
// lands before the function header.
func (s *State) emitDeclaration(build func(l *TextLine) error) error {
	n := len(s.lines)
	if err := s.Emit(build); err != nil {
		return err
	}
	if s.header < 0 {
		return nil
	}
	moved := append([]TextLine(nil), s.lines[n:]...)
	rest := append([]TextLine(nil), s.lines[s.header:n]...)
	s.lines = append(append(s.lines[:s.header], moved...), rest...)
	s.header += len(moved)
	return nil
}

// Emit builds a line with build and commits it. Lines emitted while build
// runs are committed first. If build or any operand helper fails, nothing
// is committed for this line.
func (s *State) Emit(build func(l *TextLine) error) error {
	l := &TextLine{state: s}
	if err := build(l); err != nil {
		return err
	}
	if l.err != nil {
		return l.err
	}

	line := *l
	line.state = nil
	line.Operands = append([]string(nil), l.Operands...)
	if !s.cfg.IsFeatureEnabled(config.FeatComments) {
		line.Comment = ""
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *State) EmitSingleInstruction(instruction, label string) error {
	return s.Emit(func(l *TextLine) error {
		l.Label = label
		l.Instruction = instruction
		return nil
	})
}

// EmitLabel attaches label to a branch that is never taken, since every
// label must sit on an instruction.
func (s *State) EmitLabel(label string) error {
	return s.Emit(func(l *TextLine) error {
		l.Label = label
		l.Instruction = "bt"
		l.AddOperand(label)
		l.AddImmOperand(ir.Int(0))
		l.AppendComment("noop")
		return nil
	})
}

// String renders every committed line. With align set, label fields are
// padded to the widest label.
func (s *State) String(align bool) string {
	width := -1
	if align {
		for _, l := range s.lines {
			width = max(width, l.LabelWidth())
		}
	}

	var sb strings.Builder
	for _, l := range s.lines {
		sb.WriteString(l.Render(width))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (s *State) Lines() []TextLine { return append([]TextLine(nil), s.lines...) }

// Close checks that lowering left no loop open.
func (s *State) Close() error {
	if d := s.Loops.Depth(); d != 0 {
		return newError(ErrUnbalancedLoopStack, "%d loop label frame(s) still open", d)
	}
	return nil
}
