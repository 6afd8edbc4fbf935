package lower

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mirtext/mirtext/pkg/config"
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/tree"
)

var _ = Describe("State", func() {
	var b *tree.Builder

	BeforeEach(func() {
		b = tree.NewBuilder()
	})

	It("should fail on tags without a handler", func() {
		s := newTestState(map[string]Handler{
			"Block": func(s *State) error { return s.ProcessAllChildren() },
		})
		root := b.Node("Block", nil, b.Node("Mystery", tree.Props{"Name": "x"}))

		_, err := s.Lower(root)
		Expect(errors.Is(err, ErrUnknownNodeType)).To(BeTrue())
		Expect(err.Error()).To(Equal("no instruction found for 'Mystery'"))

		var lerr *Error
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Dump).To(ContainSubstring("type: Mystery"))
	})

	It("should fail loudly on missing properties", func() {
		s := newTestState(map[string]Handler{
			"Var": func(s *State) error {
				_, err := s.Property("Name")
				return err
			},
		})
		_, err := s.Lower(b.Node("Var", tree.Props{"Type": "int"}))
		Expect(errors.Is(err, ErrMissingProperty)).To(BeTrue())
	})

	It("should tell malformed properties from missing ones", func() {
		s := newTestState(map[string]Handler{
			"Alloc": func(s *State) error {
				_, err := s.IntProperty("Size")
				return err
			},
		})
		_, err := s.Lower(b.Node("Alloc", tree.Props{"Size": "big"}))
		Expect(errors.Is(err, ErrInvalidProperty)).To(BeTrue())
		Expect(errors.Is(err, ErrMissingProperty)).To(BeFalse())
		Expect(err.Error()).To(ContainSubstring("'big'"))
	})

	It("should read child properties through the typed channel", func() {
		s := newTestState(map[string]Handler{
			"Class": func(s *State) error {
				for _, c := range s.Current().Children {
					if _, err := s.ChildProperty(c, "Name"); err != nil {
						return err
					}
					if _, err := s.ChildIntProperty(c, "Offset"); err != nil {
						return err
					}
				}
				return nil
			},
		})
		_, err := s.Lower(b.Node("Class", nil,
			b.Node("Member", tree.Props{"Name": "x", "Offset": 0}),
			b.Node("Member", tree.Props{"Offset": 4})))

		var lerr *Error
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Kind).To(Equal(ErrMissingProperty))
		Expect(lerr.Dump).To(ContainSubstring("Offset: 4"))
		Expect(lerr.Dump).NotTo(ContainSubstring("type: Class"))
	})

	It("should report handler failures at the current node", func() {
		s := newTestState(map[string]Handler{
			"Op": func(s *State) error { return s.Errorf(ErrUnknownOperator, "unknown operator '%s'", "**") },
		})
		n := b.Node("Op", nil)
		_, err := s.Lower(n)

		var lerr *Error
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Kind).To(Equal(ErrUnknownOperator))
		Expect(lerr.Msg).To(Equal(n.String() + ": unknown operator '**'"))
		Expect(lerr.Dump).To(ContainSubstring("type: Op"))
	})

	It("should attach the failing node to errors raised without one", func() {
		s := newTestState(map[string]Handler{
			"Break": func(s *State) error {
				_, err := s.Loops.CurrentLabel("break")
				return err
			},
		})
		_, err := s.Lower(b.Node("Break", nil))

		var lerr *Error
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Kind).To(Equal(ErrNoActiveLoop))
		Expect(lerr.Dump).To(ContainSubstring("type: Break"))
	})

	It("should read properties of the node under the cursor", func() {
		var seen []string
		s := newTestState(map[string]Handler{
			"Outer": func(s *State) error {
				Expect(s.ProcessAllChildren()).To(Succeed())
				name, err := s.Property("Name")
				seen = append(seen, name)
				return err
			},
			"Inner": func(s *State) error {
				Expect(s.HasProperty("Size")).To(BeTrue())
				n, err := s.IntProperty("Size")
				Expect(n).To(Equal(4))
				seen = append(seen, s.Current().Type)
				return err
			},
		})
		root := b.Node("Outer", tree.Props{"Name": "out"}, b.Node("Inner", tree.Props{"Size": 4}))
		_, err := s.Lower(root)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]string{"Inner", "out"}))
	})

	It("should restore the cursor when a child fails", func() {
		var after *tree.Node
		s := newTestState(map[string]Handler{
			"Fail": func(s *State) error { return errors.New("boom") },
		})
		root := b.Node("Root", nil, b.Node("Fail", nil))
		err := within(s, root, func(s *State) error {
			err := s.ProcessChildTree(0)
			after = s.Current()
			return err
		})
		Expect(err).To(MatchError("boom"))
		Expect(after).To(BeIdenticalTo(root))
	})

	It("should reject out of range children", func() {
		s := newTestState(nil)
		err := within(s, b.Node("Root", nil), func(s *State) error { return s.ProcessChildTree(2) })
		Expect(errors.Is(err, ErrChildOutOfRange)).To(BeTrue())
	})

	It("should commit nested lines before the line that caused them", func() {
		s := newTestState(map[string]Handler{"Ptr": registerAs(ir.TypeI64, Pointer)})
		root := b.Node("Add", nil, b.Node("Ptr", nil), b.Node("Ptr", nil))
		err := within(s, root, func(s *State) error {
			Expect(s.ProcessAllChildren()).To(Succeed())
			return s.Emit(func(l *TextLine) error {
				l.AddAnonymousReg(ir.TypeI64, Value)
				l.Instruction = "add"
				l.AddSelfAsValueOperand()
				l.AddChildAsValueOperand(0)
				l.AddChildAsValueOperand(1)
				return nil
			})
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(render(s)).To(Equal([]string{
			"local i64:reg0; mov",
			"local i64:reg1; mov",
			"local i64:p3; mov p3, reg0",
			"local i64:p4; mov p4, reg1",
			"local i64:reg2; add reg2, i32:(p3), i32:(p4)",
		}))
	})

	It("should drop a line whose build function fails", func() {
		s := newTestState(nil)
		err := within(s, b.Node("Root", nil), func(s *State) error {
			return s.Emit(func(l *TextLine) error {
				l.Instruction = "ret"
				return errors.New("bad line")
			})
		})
		Expect(err).To(MatchError("bad line"))
		Expect(s.Lines()).To(BeEmpty())
	})

	It("should attach labels to a never-taken branch", func() {
		s := newTestState(nil)
		Expect(s.EmitLabel("L3")).To(Succeed())
		Expect(render(s)).To(Equal([]string{"L3: bt L3, 0 # noop"}))
	})

	It("should align label fields when asked", func() {
		s := newTestState(nil)
		Expect(s.EmitSingleInstruction("ret", "")).To(Succeed())
		Expect(s.EmitLabel("L10")).To(Succeed())
		Expect(s.EmitSingleInstruction("endfunc", "")).To(Succeed())

		Expect(s.String(false)).To(Equal("ret\nL10: bt L10, 0 # noop\nendfunc\n"))
		Expect(s.String(true)).To(Equal("     ret\nL10: bt L10, 0 # noop\n     endfunc\n"))
	})

	It("should leave unlabeled programs unpadded", func() {
		s := newTestState(nil)
		Expect(s.EmitSingleInstruction("ret", "")).To(Succeed())
		Expect(s.String(true)).To(Equal("ret\n"))
	})

	It("should strip comments when the feature is off", func() {
		s := newTestState(nil)
		s.Config().SetFeature(config.FeatComments, false)
		Expect(s.EmitLabel("L0")).To(Succeed())
		Expect(render(s)).To(Equal([]string{"L0: bt L0, 0"}))
	})

	It("should report loops left open", func() {
		s := newTestState(map[string]Handler{
			"Loop": func(s *State) error {
				s.Loops.Push()
				return nil
			},
		})
		_, err := s.Lower(b.Node("Loop", nil))
		Expect(errors.Is(err, ErrUnbalancedLoopStack)).To(BeTrue())
	})
})

var _ = Describe("InstructionManager", func() {
	It("should refuse a second handler for a tag", func() {
		im := NewInstructionManager()
		im.Register("Noop", func(s *State) error { return nil })
		Expect(func() { im.Register("Noop", func(s *State) error { return nil }) }).To(Panic())
		Expect(func() { im.Register("Other", nil) }).To(Panic())
		Expect(im.Tags()).To(Equal([]string{"Noop"}))
	})
})
