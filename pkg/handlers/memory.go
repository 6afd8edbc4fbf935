package handlers

import (
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/layout"
	"github.com/mirtext/mirtext/pkg/lower"
	"github.com/mirtext/mirtext/pkg/util"
)

// classDefinition registers a class from its Member children. It emits
// nothing.
func classDefinition(s *lower.State) error {
	name, err := s.Property("Name")
	if err != nil {
		return err
	}

	var members []layout.Member
	for _, c := range s.Current().Children {
		if c.Type != "Member" {
			return s.Errorf(lower.ErrUnknownNodeType, "unexpected %s in class definition", c)
		}
		id, err := s.ChildProperty(c, "Name")
		if err != nil {
			return err
		}
		typ, err := s.ChildProperty(c, "Type")
		if err != nil {
			return err
		}
		offset, err := s.ChildIntProperty(c, "Offset")
		if err != nil {
			return err
		}
		members = append(members, layout.Member{ID: id, Type: typ, Offset: offset})
	}

	if err := s.Data.StartClass(name, members); err != nil {
		return err
	}
	return s.Data.EndClass()
}

// stackAllocation reserves stack storage for an object of a class type.
func stackAllocation(s *lower.State) error {
	name, err := s.Property("Name")
	if err != nil {
		return err
	}
	class, err := s.Property("Type")
	if err != nil {
		return err
	}
	size, err := s.Data.NumBytesRequired(class)
	if err != nil {
		return err
	}
	_, err = s.Registers.AllocateStack(name, size, true)
	return err
}

// memberReference computes the address of a member of the object in child
// 0. The result is a pointer typed as the member.
func memberReference(s *lower.State) error {
	class, err := s.Property("Class")
	if err != nil {
		return err
	}
	member, err := s.Property("Member")
	if err != nil {
		return err
	}
	m, err := s.Data.MemberOffset(class, member)
	if err != nil {
		return err
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}

	return s.Emit(func(l *lower.TextLine) error {
		l.AddAnonymousReg(m.Type, lower.Pointer)
		l.Instruction = "add"
		l.AddSelfAsPointerOperand()
		l.AddOperands([]int{0}, []lower.Kind{lower.Pointer})
		l.AddImmOperand(ir.Int(int64(m.Offset)))
		l.AppendComment(class + "." + member)
		return nil
	})
}

// copyObject copies a whole object from child 1 to child 0.
func copyObject(s *lower.State) error {
	class, err := s.Property("Type")
	if err != nil {
		return err
	}
	size, err := s.Data.NumBytesRequired(class)
	if err != nil {
		return err
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}
	dst, err := s.Registers.OperandForChild(0, lower.Pointer)
	if err != nil {
		return err
	}
	src, err := s.Registers.OperandForChild(1, lower.Pointer)
	if err != nil {
		return err
	}
	return s.Registers.EmitMultiLineCopy(dst, src, util.AlignUp(size, s.Config().WordSize))
}
