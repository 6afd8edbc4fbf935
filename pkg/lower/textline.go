package lower

import (
	"strings"

	"github.com/mirtext/mirtext/pkg/ir"
)

// TextLine builds one line of output. A TextLine is only reachable inside
// State.Emit, which commits it when the build function returns.
//
// Operand helpers that fail record the first error on the line; Emit then
// returns it and the line is dropped.
type TextLine struct {
	Label       string
	LocalDef    string
	Instruction string
	Operands    []string
	Comment     string

	state *State
	err   error
}

func (l *TextLine) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// Err returns the first error recorded while building the line.
func (l *TextLine) Err() error { return l.err }

// AddAnonymousReg allocates a fresh register, registers it as the operand of
// the node under the cursor and declares it on this line.
func (l *TextLine) AddAnonymousReg(t ir.Type, k Kind) string {
	rm := l.state.Registers
	id := rm.AnonymousID(t.IsFloat() && k == Value)
	rm.RegisterCurrentOperand(id, t, k)

	if k == Pointer || t == ir.TypeP {
		l.LocalDef = "i64:" + id
	} else {
		l.Declare(t, id)
	}
	return id
}

// Declare sets the local declaration of the line to "<regtype>:<name>".
func (l *TextLine) Declare(t ir.Type, name string) {
	l.LocalDef = t.RegisterName() + ":" + name
}

func (l *TextLine) AddOperand(text string) {
	l.Operands = append(l.Operands, text)
}

func (l *TextLine) AddImmOperand(v ir.Imm) {
	l.Operands = append(l.Operands, v.String())
}

func (l *TextLine) AddSelfAsValueOperand()   { l.addChild(-1, Value, false) }
func (l *TextLine) AddSelfAsPointerOperand() { l.addChild(-1, Pointer, false) }

// AddChildAsValueOperand loads child i, dereferencing it first if it is
// held as a pointer.
func (l *TextLine) AddChildAsValueOperand(i int) { l.addChild(i, Value, true) }

func (l *TextLine) AddChildAsPointerOperand(i int) { l.addChild(i, Pointer, true) }

// AddOperands appends the operands of the given children. When kinds is
// empty every child is read as a Value.
func (l *TextLine) AddOperands(indexes []int, kinds []Kind) {
	if len(kinds) != 0 && len(kinds) != len(indexes) {
		l.fail(newError(ErrInvalidSize, "%d operand kinds for %d children", len(kinds), len(indexes)))
		return
	}
	for n, i := range indexes {
		k := Value
		if len(kinds) != 0 {
			k = kinds[n]
		}
		l.addChild(i, k, false)
	}
}

func (l *TextLine) addChild(i int, k Kind, load bool) {
	if l.err != nil {
		return
	}
	rm := l.state.Registers
	var (
		op  string
		err error
	)
	if load {
		op, err = rm.LoadIntoRegister(i, k)
	} else {
		op, err = rm.OperandForChild(i, k)
	}
	if err != nil {
		l.fail(err)
		return
	}
	l.Operands = append(l.Operands, op)
}

func (l *TextLine) AppendComment(c string) {
	if l.Comment != "" {
		l.Comment += " "
	}
	l.Comment += c
}

// LabelWidth is the width of the rendered "label: " field, or -1 for a line
// without a label.
func (l *TextLine) LabelWidth() int {
	if l.Label == "" {
		return -1
	}
	return len(l.Label) + 2
}

// Render formats the line. The label field is padded to maxLabelWidth; a
// negative width disables padding.
func (l *TextLine) Render(maxLabelWidth int) string {
	var sb strings.Builder

	if l.Label != "" {
		sb.WriteString(l.Label)
		sb.WriteString(": ")
	}
	for sb.Len() < maxLabelWidth {
		sb.WriteByte(' ')
	}

	if l.LocalDef != "" {
		sb.WriteString("local ")
		sb.WriteString(l.LocalDef)
		sb.WriteString("; ")
	}

	sb.WriteString(l.Instruction)
	if len(l.Operands) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(l.Operands, ", "))
	}

	if l.Comment != "" {
		sb.WriteString(" # ")
		sb.WriteString(l.Comment)
	}
	return sb.String()
}
