package handlers

import (
	"fmt"

	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/lower"
)

// symbolName returns the emitted name of the function the current node
// declares or calls. Methods are prefixed with their class.
func symbolName(s *lower.State) (string, bool, error) {
	name, err := s.Property("Name")
	if err != nil {
		return "", false, err
	}
	if !s.HasProperty("Class") {
		return name, false, nil
	}
	class, err := s.Property("Class")
	if err != nil {
		return "", false, err
	}
	return class + "_" + name, true, nil
}

// signatureOf reads the signature declared by a Function node. Methods
// take the object pointer first.
func signatureOf(s *lower.State, name string, withThis bool) (ir.Signature, error) {
	ret, err := typeProperty(s, "ReturnType")
	if err != nil {
		return ir.Signature{}, err
	}
	sig := ir.Signature{Name: name, Return: ret}
	if withThis {
		sig.Params = append(sig.Params, ir.ThisParam)
	}
	for _, c := range s.Current().Children {
		if c.Type != "Parameter" {
			continue
		}
		pname, err := s.ChildProperty(c, "Name")
		if err != nil {
			return ir.Signature{}, err
		}
		tname, err := s.ChildProperty(c, "Type")
		if err != nil {
			return ir.Signature{}, err
		}
		t, err := parseType(s, tname)
		if err != nil {
			return ir.Signature{}, err
		}
		sig.Params = append(sig.Params, ir.Param{Name: pname, Typ: t})
	}
	return sig, nil
}

func function(s *lower.State) error {
	name, withThis, err := symbolName(s)
	if err != nil {
		return err
	}
	sig, err := signatureOf(s, name, withThis)
	if err != nil {
		return err
	}

	if !s.Functions.HasPrototype(sig) {
		if _, err := s.Functions.AddPrototype(sig); err != nil {
			return err
		}
	}

	err = s.Emit(func(l *lower.TextLine) error {
		l.Label = name
		l.Instruction = "func"
		if sig.Return != ir.TypeNone {
			l.AddOperand(sig.Return.RegisterName())
		}
		for _, p := range sig.Params {
			l.AddOperand(p.Symbol())
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.EnterFunction()
	defer s.ExitFunction()

	if err := s.ProcessAllChildren(); err != nil {
		return err
	}
	return s.EmitSingleInstruction("endfunc", "")
}

func parameter(s *lower.State) error {
	name, err := s.Property("Name")
	if err != nil {
		return err
	}
	t, err := typeProperty(s, "Type")
	if err != nil {
		return err
	}
	s.Registers.RegisterCurrentOperand(name, t, lower.Value)
	return nil
}

func returnStatement(s *lower.State) error {
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}
	return s.Emit(func(l *lower.TextLine) error {
		l.Instruction = "ret"
		if s.NumChildren() > 0 {
			l.AddChildAsValueOperand(0)
		}
		return nil
	})
}

// functionCall lowers a call. For methods the first child is the object,
// passed as the implicit this pointer.
func functionCall(s *lower.State) error {
	name, withThis, err := symbolName(s)
	if err != nil {
		return err
	}
	ret, err := typeProperty(s, "ReturnType")
	if err != nil {
		return err
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}

	first := 0
	if withThis {
		first = 1
	}
	sig := ir.Signature{Name: name, Return: ret}
	if withThis {
		sig.Params = append(sig.Params, ir.ThisParam)
	}
	for i := first; i < s.NumChildren(); i++ {
		t, err := s.Registers.TypeForChild(i)
		if err != nil {
			return err
		}
		sig.Params = append(sig.Params, ir.Param{Name: fmt.Sprintf("p%d", i-first), Typ: t})
	}

	if !s.Functions.HasPrototype(sig) {
		if _, err := s.Functions.AddPrototype(sig); err != nil {
			return err
		}
	}
	proto, err := s.Functions.Prototype(sig)
	if err != nil {
		return err
	}

	return s.Emit(func(l *lower.TextLine) error {
		if ret != ir.TypeNone {
			l.AddAnonymousReg(ret, lower.Value)
		}
		l.Instruction = "call"
		l.AddOperand(proto)
		l.AddOperand(name)
		if ret != ir.TypeNone {
			l.AddSelfAsValueOperand()
		}
		if withThis {
			l.AddChildAsPointerOperand(0)
		}
		for i := first; i < s.NumChildren(); i++ {
			l.AddChildAsValueOperand(i)
		}
		return nil
	})
}
