// Package handlers holds the lowering handler for every node tag the
// front end produces.
package handlers

import (
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/lower"
)

// Register installs the full catalogue into im.
func Register(im *lower.InstructionManager) {
	im.Register("SyntaxTree", syntaxTree)
	im.Register("ClassDefinition", classDefinition)
	im.Register("Function", function)
	im.Register("Parameter", parameter)
	im.Register("StatementBlock", statementBlock)
	im.Register("VariableDefinition", variableDefinition)
	im.Register("VariableReference", variableReference)
	im.Register("Immediate", immediate)
	im.Register("Assignment", assignment)
	im.Register("BinaryOp", binaryOp)
	im.Register("Comparison", comparison)
	im.Register("IfStatement", ifStatement)
	im.Register("WhileLoop", whileLoop)
	im.Register("ControlFlowStatement", controlFlow)
	im.Register("ReturnStatement", returnStatement)
	im.Register("FunctionCall", functionCall)
	im.Register("StackAllocation", stackAllocation)
	im.Register("MemberReference", memberReference)
	im.Register("Copy", copyObject)
	im.Register("Noop", func(*lower.State) error { return nil })
}

// NewInstructionManager returns a manager holding the full catalogue.
func NewInstructionManager() *lower.InstructionManager {
	im := lower.NewInstructionManager()
	Register(im)
	return im
}

func typeProperty(s *lower.State, key string) (ir.Type, error) {
	name, err := s.Property(key)
	if err != nil {
		return ir.TypeNone, err
	}
	return parseType(s, name)
}

func parseType(s *lower.State, name string) (ir.Type, error) {
	t, err := ir.ParseType(name)
	if err != nil {
		return ir.TypeNone, s.Errorf(lower.ErrInvalidType, "%v", err)
	}
	return t, nil
}

func syntaxTree(s *lower.State) error {
	name, err := s.Property("Name")
	if err != nil {
		return err
	}
	if err := s.EmitSingleInstruction("module", name); err != nil {
		return err
	}
	if err := s.ProcessAllChildren(); err != nil {
		return err
	}
	return s.EmitSingleInstruction("endmodule", "")
}

func statementBlock(s *lower.State) error { return s.ProcessAllChildren() }
