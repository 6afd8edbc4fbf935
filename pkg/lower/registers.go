package lower

import (
	"fmt"

	"github.com/mirtext/mirtext/pkg/config"
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/tree"
	"github.com/mirtext/mirtext/pkg/util"
)

// Kind tells whether an operand holds a value or the address of one.
type Kind int

const (
	Value Kind = iota
	Pointer
)

func (k Kind) String() string {
	if k == Pointer {
		return "pointer"
	}
	return "value"
}

// Operand is the lowered form of a node's result.
type Operand struct {
	Owner tree.NodeID
	Text  string
	Alias string
	Type  ir.Type
	Kind  Kind
}

// Name returns the alias if one is set, else the operand text.
func (o Operand) Name() string {
	if o.Alias != "" {
		return o.Alias
	}
	return o.Text
}

// RegisterManager owns register naming and the operand tables. Operands
// recorded while a function body is open go to the local table, everything
// else to the global one.
type RegisterManager struct {
	state   *State
	counter int
	depth   int
	local   map[tree.NodeID]Operand
	global  map[tree.NodeID]Operand
}

func newRegisterManager(s *State) *RegisterManager {
	return &RegisterManager{
		state:  s,
		local:  make(map[tree.NodeID]Operand),
		global: make(map[tree.NodeID]Operand),
	}
}

// AnonymousID returns a fresh register name. Float value registers are
// named xmm<n>, all others reg<n>; both share one counter.
func (r *RegisterManager) AnonymousID(isFloatValue bool) string {
	prefix := "reg"
	if isFloatValue {
		prefix = "xmm"
	}
	id := fmt.Sprintf("%s%d", prefix, r.counter)
	r.counter++
	return id
}

func (r *RegisterManager) InFunction() bool { return r.depth > 0 }

// EnterFunction opens a function body. With scope-reset enabled the local
// table starts out empty.
func (r *RegisterManager) EnterFunction() {
	if r.state.cfg.IsFeatureEnabled(config.FeatScopeReset) {
		clear(r.local)
	}
	r.depth++
}

func (r *RegisterManager) ExitFunction() {
	if r.depth > 0 {
		r.depth--
	}
	if r.state.cfg.IsFeatureEnabled(config.FeatScopeReset) {
		clear(r.local)
	}
}

// RegisterCurrentOperand records name as the operand of the node under the
// cursor.
func (r *RegisterManager) RegisterCurrentOperand(name string, t ir.Type, k Kind) {
	n := r.state.Current()
	op := Operand{Owner: n.ID, Text: name, Type: t, Kind: k}
	if r.InFunction() {
		r.local[n.ID] = op
	} else {
		r.global[n.ID] = op
	}
}

// SetAlias makes reads of id's operand use alias instead of its text.
func (r *RegisterManager) SetAlias(id tree.NodeID, alias string) error {
	if op, ok := r.local[id]; ok {
		op.Alias = alias
		r.local[id] = op
		return nil
	}
	if op, ok := r.global[id]; ok {
		op.Alias = alias
		r.global[id] = op
		return nil
	}
	return newError(ErrOperandNotFound, "operand not found for node #%d", id)
}

// AllocateStack emits a stack allocation of at least bytes and returns the
// allocated size, rounded up to the configured stack alignment.
func (r *RegisterManager) AllocateStack(name string, bytes int, registerAsCurrent bool) (int, error) {
	if bytes < 0 {
		return 0, newError(ErrInvalidSize, "negative stack allocation %d for '%s'", bytes, name)
	}
	if registerAsCurrent {
		r.RegisterCurrentOperand(name, ir.TypeI64, Pointer)
	}
	size := util.AlignUp(bytes, r.state.cfg.StackAlignment)

	err := r.state.Emit(func(l *TextLine) error {
		l.LocalDef = "i64:" + name
		l.Instruction = "alloca"
		l.AddOperand(name)
		l.AddImmOperand(ir.Int(int64(size)))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

// OperandFor looks id up in the local table, then the global one.
func (r *RegisterManager) OperandFor(id tree.NodeID) (Operand, error) {
	if op, ok := r.local[id]; ok {
		return op, nil
	}
	if op, ok := r.global[id]; ok {
		return op, nil
	}
	return Operand{}, newError(ErrOperandNotFound, "operand not found for node #%d", id)
}

func (r *RegisterManager) operandForChild(i int) (Operand, error) {
	n, err := r.state.Child(i)
	if err != nil {
		return Operand{}, err
	}
	op, err := r.OperandFor(n.ID)
	if err != nil {
		return Operand{}, nodeError(ErrOperandNotFound, n, "operand not found for %s", n)
	}
	return op, nil
}

func (r *RegisterManager) KindForChild(i int) (Kind, error) {
	op, err := r.operandForChild(i)
	return op.Kind, err
}

func (r *RegisterManager) TypeForChild(i int) (ir.Type, error) {
	op, err := r.operandForChild(i)
	return op.Type, err
}

func (r *RegisterManager) deref(t ir.Type, reg string) string {
	narrow := r.state.cfg.IsFeatureEnabled(config.FeatNarrowIntAccess)
	return t.AccessName(narrow) + ":(" + reg + ")"
}

// LoadIntoRegister returns child i as an operand of kind desired. Pointers
// are first copied into a fresh p<n> register; a Value read then
// dereferences that register.
func (r *RegisterManager) LoadIntoRegister(i int, desired Kind) (string, error) {
	op, err := r.operandForChild(i)
	if err != nil {
		return "", err
	}
	if op.Kind != Pointer && op.Type != ir.TypeP {
		return r.OperandForChild(i, Value)
	}

	id := fmt.Sprintf("p%d", r.counter)
	r.counter++

	err = r.state.Emit(func(l *TextLine) error {
		l.LocalDef = "i64:" + id
		l.Instruction = "mov"
		l.AddOperand(id)
		l.AddOperands([]int{i}, []Kind{Pointer})
		return nil
	})
	if err != nil {
		return "", err
	}

	if desired == Pointer {
		return id, nil
	}
	return r.deref(op.Type, id), nil
}

// OperandForChild returns the operand text of child i. A Pointer operand
// read as a Value is rendered as a dereference.
func (r *RegisterManager) OperandForChild(i int, required Kind) (string, error) {
	op, err := r.operandForChild(i)
	if err != nil {
		return "", err
	}
	if op.Kind == Pointer && required == Value {
		return r.deref(op.Type, op.Name()), nil
	}
	return op.Name(), nil
}

// EmitMultiLineCopy copies bytes from the memory at src to the memory at
// dst, one machine word per line.
func (r *RegisterManager) EmitMultiLineCopy(dst, src string, bytes int) error {
	word := r.state.cfg.WordSize
	if bytes%word != 0 {
		return newError(ErrInvalidSize, "copy of %d bytes is not a multiple of %d", bytes, word)
	}
	for off := 0; off < bytes; off += word {
		err := r.state.Emit(func(l *TextLine) error {
			l.Instruction = "mov"
			l.AddOperand(fmt.Sprintf("i64:%d(%s)", off, dst))
			l.AddOperand(fmt.Sprintf("i64:%d(%s)", off, src))
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
