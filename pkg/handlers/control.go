package handlers

import (
	"github.com/mirtext/mirtext/pkg/lower"
)

func branch(s *lower.State, mnemonic, label string, cond int) error {
	return s.Emit(func(l *lower.TextLine) error {
		l.Instruction = mnemonic
		l.AddOperand(label)
		if cond >= 0 {
			l.AddChildAsValueOperand(cond)
		}
		return nil
	})
}

func jump(s *lower.State, label string) error { return branch(s, "jmp", label, -1) }

// ifStatement: cond, then, optional else.
func ifStatement(s *lower.State) error {
	if err := s.ProcessChildTree(0); err != nil {
		return err
	}
	falseLabel := s.Loops.NewLabel()
	if err := branch(s, "bf", falseLabel, 0); err != nil {
		return err
	}
	if err := s.ProcessChildTree(1); err != nil {
		return err
	}
	if s.NumChildren() < 3 {
		return s.EmitLabel(falseLabel)
	}

	endLabel := s.Loops.NewLabel()
	if err := jump(s, endLabel); err != nil {
		return err
	}
	if err := s.EmitLabel(falseLabel); err != nil {
		return err
	}
	if err := s.ProcessChildTree(2); err != nil {
		return err
	}
	return s.EmitLabel(endLabel)
}

// whileLoop: cond, body. The condition is evaluated at the start label;
// continue jumps to the continue label, which falls into the back edge.
func whileLoop(s *lower.State) error {
	labels := s.Loops.Push()

	if err := s.EmitLabel(labels.Start); err != nil {
		return err
	}
	if err := s.ProcessChildTree(0); err != nil {
		return err
	}
	if err := branch(s, "bf", labels.End, 0); err != nil {
		return err
	}
	if err := s.ProcessChildTree(1); err != nil {
		return err
	}
	if err := s.EmitLabel(labels.Continue); err != nil {
		return err
	}
	if err := jump(s, labels.Start); err != nil {
		return err
	}
	if err := s.EmitLabel(labels.End); err != nil {
		return err
	}
	return s.Loops.Pop()
}

// controlFlow lowers break and continue, named by the command property.
func controlFlow(s *lower.State) error {
	cmd, err := s.Property("command")
	if err != nil {
		return err
	}
	label, err := s.Loops.CurrentLabel(cmd)
	if err != nil {
		return err
	}
	return jump(s, label)
}
