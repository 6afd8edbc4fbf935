package handlers

import (
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/lower"
)

func variableDefinition(s *lower.State) error {
	name, err := s.Property("Name")
	if err != nil {
		return err
	}
	t, err := typeProperty(s, "Type")
	if err != nil {
		return err
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}

	s.Registers.RegisterCurrentOperand(name, t, lower.Value)
	return s.Emit(func(l *lower.TextLine) error {
		l.Declare(t, name)
		l.Instruction = movFor(t)
		l.AddOperand(name)
		if s.NumChildren() > 0 {
			l.AddChildAsValueOperand(0)
		} else {
			l.AddImmOperand(ir.Imm{Typ: t})
		}
		return nil
	})
}

// variableReference binds a named variable. Variables of a class type are
// held as pointers to their storage.
func variableReference(s *lower.State) error {
	name, err := s.Property("Name")
	if err != nil {
		return err
	}
	tname, err := s.Property("Type")
	if err != nil {
		return err
	}
	if _, err := s.Data.ClassType(tname); err == nil {
		s.Registers.RegisterCurrentOperand(name, ir.TypeI64, lower.Pointer)
		return nil
	}
	t, err := parseType(s, tname)
	if err != nil {
		return err
	}
	s.Registers.RegisterCurrentOperand(name, t, lower.Value)
	return nil
}

func immediate(s *lower.State) error {
	t, err := typeProperty(s, "Type")
	if err != nil {
		return err
	}
	text, err := s.Property("Value")
	if err != nil {
		return err
	}
	v, err := ir.ParseImm(t, text)
	if err != nil {
		return s.Errorf(lower.ErrInvalidProperty, "%v", err)
	}
	s.Registers.RegisterCurrentOperand(v.String(), t, lower.Value)
	return nil
}

// assignment stores the value of child 1 into child 0. A pointer target is
// written through.
func assignment(s *lower.State) error {
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}
	t, err := s.Registers.TypeForChild(0)
	if err != nil {
		return err
	}
	return s.Emit(func(l *lower.TextLine) error {
		l.Instruction = movFor(t)
		l.AddOperands([]int{0}, []lower.Kind{lower.Value})
		l.AddChildAsValueOperand(1)
		return nil
	})
}

func movFor(t ir.Type) string {
	switch t {
	case ir.TypeF:
		return "fmov"
	case ir.TypeD:
		return "dmov"
	default:
		return "mov"
	}
}

var binaryOps = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod",
	"&": "and", "|": "or", "^": "xor", "<<": "lsh", ">>": "rsh",
}

var comparisonOps = map[string]string{
	"<": "lt", "<=": "le", ">": "gt", ">=": "ge", "==": "eq", "!=": "ne",
}

// floatMnemonic prefixes m with f or d for float operands. Bitwise
// operators have no float form.
func floatMnemonic(s *lower.State, m string, t ir.Type) (string, error) {
	if !t.IsFloat() {
		return m, nil
	}
	switch m {
	case "mod", "and", "or", "xor", "lsh", "rsh":
		return "", s.Errorf(lower.ErrUnknownOperator, "operator '%s' is not defined for %s", m, t.RegisterName())
	}
	if t == ir.TypeF {
		return "f" + m, nil
	}
	return "d" + m, nil
}

func binaryOp(s *lower.State) error {
	op, err := s.Property("Op")
	if err != nil {
		return err
	}
	t, err := typeProperty(s, "Type")
	if err != nil {
		return err
	}
	m, ok := binaryOps[op]
	if !ok {
		return s.Errorf(lower.ErrUnknownOperator, "unknown binary operator '%s'", op)
	}
	if m, err = floatMnemonic(s, m, t); err != nil {
		return err
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}

	return s.Emit(func(l *lower.TextLine) error {
		l.AddAnonymousReg(t, lower.Value)
		l.Instruction = m
		l.AddSelfAsValueOperand()
		l.AddChildAsValueOperand(0)
		l.AddChildAsValueOperand(1)
		return nil
	})
}

// comparison yields 0 or 1 in an integer register. The operand type of the
// left side picks the float or integer form.
func comparison(s *lower.State) error {
	op, err := s.Property("Op")
	if err != nil {
		return err
	}
	m, ok := comparisonOps[op]
	if !ok {
		return s.Errorf(lower.ErrUnknownOperator, "unknown comparison '%s'", op)
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}
	t, err := s.Registers.TypeForChild(0)
	if err != nil {
		return err
	}
	if m, err = floatMnemonic(s, m, t); err != nil {
		return err
	}

	return s.Emit(func(l *lower.TextLine) error {
		l.AddAnonymousReg(ir.TypeI64, lower.Value)
		l.Instruction = m
		l.AddSelfAsValueOperand()
		l.AddChildAsValueOperand(0)
		l.AddChildAsValueOperand(1)
		return nil
	})
}
