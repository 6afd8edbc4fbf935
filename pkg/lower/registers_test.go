package lower

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mirtext/mirtext/pkg/config"
	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/tree"
)

// registerAs returns a handler giving the current node a fresh register.
func registerAs(t ir.Type, k Kind) Handler {
	return func(s *State) error {
		return s.Emit(func(l *TextLine) error {
			l.AddAnonymousReg(t, k)
			l.Instruction = "mov"
			return nil
		})
	}
}

var _ = Describe("RegisterManager", func() {
	var (
		s *State
		b *tree.Builder
	)

	BeforeEach(func() {
		s = newTestState(map[string]Handler{
			"IntPtr":   registerAs(ir.TypeI64, Pointer),
			"FloatPtr": registerAs(ir.TypeF, Pointer),
			"Int":      registerAs(ir.TypeI64, Value),
			"RawPtr":   registerAs(ir.TypeP, Value),
		})
		b = tree.NewBuilder()
	})

	DescribeTable("AllocateStack rounding",
		func(bytes, want int) {
			err := within(s, b.Node("Alloc", nil), func(s *State) error {
				got, err := s.Registers.AllocateStack("obj", bytes, false)
				Expect(got).To(Equal(want))
				return err
			})
			Expect(err).NotTo(HaveOccurred())
		},
		Entry("empty", 0, 0),
		Entry("one byte", 1, 16),
		Entry("exact boundary", 16, 16),
		Entry("one past", 17, 32),
		Entry("two blocks", 32, 32),
		Entry("odd", 40, 48),
	)

	It("should always return a multiple of 16 no smaller than the request", func() {
		err := within(s, b.Node("Alloc", nil), func(s *State) error {
			for n := 0; n <= 200; n++ {
				got, err := s.Registers.AllocateStack("obj", n, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(got % 16).To(BeZero())
				Expect(got).To(BeNumerically(">=", n))
				Expect(got - n).To(BeNumerically("<", 16))
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should emit the allocation and register it as a pointer", func() {
		n := b.Node("Alloc", nil)
		err := within(s, n, func(s *State) error {
			_, err := s.Registers.AllocateStack("p_obj", 12, true)
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(render(s)).To(Equal([]string{"local i64:p_obj; alloca p_obj, 16"}))
		Expect(s.Registers.OperandFor(n.ID)).To(Equal(Operand{Owner: n.ID, Text: "p_obj", Type: ir.TypeI64, Kind: Pointer}))
	})

	It("should reject negative allocations", func() {
		err := within(s, b.Node("Alloc", nil), func(s *State) error {
			_, err := s.Registers.AllocateStack("obj", -1, false)
			return err
		})
		Expect(errors.Is(err, ErrInvalidSize)).To(BeTrue())
	})

	It("should narrow i64 pointer loads to i32 access", func() {
		root := b.Node("Use", nil, b.Node("IntPtr", nil))
		var got string
		err := within(s, root, func(s *State) error {
			Expect(s.ProcessAllChildren()).To(Succeed())
			s.Registers.AnonymousID(false)
			s.Registers.AnonymousID(false)

			var err error
			got, err = s.Registers.LoadIntoRegister(0, Value)
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal("i32:(p3)"))
		Expect(render(s)).To(Equal([]string{
			"local i64:reg0; mov",
			"local i64:p3; mov p3, reg0",
		}))
	})

	It("should return the load register for pointer reads", func() {
		root := b.Node("Use", nil, b.Node("FloatPtr", nil), b.Node("RawPtr", nil))
		err := within(s, root, func(s *State) error {
			Expect(s.ProcessAllChildren()).To(Succeed())
			Expect(s.Registers.LoadIntoRegister(0, Pointer)).To(Equal("p2"))
			Expect(s.Registers.LoadIntoRegister(0, Value)).To(Equal("f:(p3)"))
			Expect(s.Registers.LoadIntoRegister(1, Value)).To(Equal("p:(p4)"))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should pass value operands through unchanged", func() {
		root := b.Node("Use", nil, b.Node("Int", nil))
		err := within(s, root, func(s *State) error {
			Expect(s.ProcessAllChildren()).To(Succeed())
			Expect(s.Registers.LoadIntoRegister(0, Value)).To(Equal("reg0"))
			Expect(s.Registers.OperandForChild(0, Pointer)).To(Equal("reg0"))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Lines()).To(HaveLen(1))
	})

	It("should dereference pointer operands read as values", func() {
		child := b.Node("IntPtr", nil)
		root := b.Node("Use", nil, child)
		err := within(s, root, func(s *State) error {
			Expect(s.ProcessAllChildren()).To(Succeed())
			Expect(s.Registers.OperandForChild(0, Value)).To(Equal("i32:(reg0)"))
			Expect(s.Registers.OperandForChild(0, Pointer)).To(Equal("reg0"))

			Expect(s.Registers.SetAlias(child.ID, "frame")).To(Succeed())
			Expect(s.Registers.OperandForChild(0, Value)).To(Equal("i32:(frame)"))
			Expect(s.Registers.OperandForChild(0, Pointer)).To(Equal("frame"))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep i64 access when narrowing is disabled", func() {
		s.Config().SetFeature(config.FeatNarrowIntAccess, false)
		root := b.Node("Use", nil, b.Node("IntPtr", nil))
		err := within(s, root, func(s *State) error {
			Expect(s.ProcessAllChildren()).To(Succeed())
			Expect(s.Registers.OperandForChild(0, Value)).To(Equal("i64:(reg0)"))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should fail on use before definition", func() {
		root := b.Node("Use", nil, b.Node("Unvisited", nil))
		err := within(s, root, func(s *State) error {
			_, err := s.Registers.LoadIntoRegister(0, Value)
			return err
		})
		Expect(errors.Is(err, ErrOperandNotFound)).To(BeTrue())

		var lerr *Error
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Dump).To(ContainSubstring("Unvisited"))
	})

	It("should fail to alias an unknown node", func() {
		Expect(errors.Is(s.Registers.SetAlias(99, "x"), ErrOperandNotFound)).To(BeTrue())
	})

	Context("with function scopes", func() {
		It("should clear local operands on entry and exit", func() {
			global := b.Node("Int", nil)
			local := b.Node("Int", nil)

			Expect(within(s, global, registerAs(ir.TypeI64, Value))).To(Succeed())

			s.EnterFunction()
			Expect(within(s, local, registerAs(ir.TypeI64, Value))).To(Succeed())
			Expect(s.Registers.OperandFor(local.ID)).To(HaveField("Text", "reg1"))
			s.ExitFunction()

			_, err := s.Registers.OperandFor(local.ID)
			Expect(errors.Is(err, ErrOperandNotFound)).To(BeTrue())

			s.EnterFunction()
			_, err = s.Registers.OperandFor(local.ID)
			Expect(errors.Is(err, ErrOperandNotFound)).To(BeTrue())
			Expect(s.Registers.OperandFor(global.ID)).To(HaveField("Text", "reg0"))
			s.ExitFunction()
		})

		It("should keep local operands when scope reset is disabled", func() {
			s.Config().SetFeature(config.FeatScopeReset, false)
			local := b.Node("Int", nil)

			s.EnterFunction()
			Expect(within(s, local, registerAs(ir.TypeI64, Value))).To(Succeed())
			s.ExitFunction()

			Expect(s.Registers.OperandFor(local.ID)).To(HaveField("Text", "reg0"))
		})
	})

	It("should copy memory one word per line", func() {
		err := within(s, b.Node("Copy", nil), func(s *State) error {
			return s.Registers.EmitMultiLineCopy("dst", "src", 24)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(render(s)).To(Equal([]string{
			"mov i64:0(dst), i64:0(src)",
			"mov i64:8(dst), i64:8(src)",
			"mov i64:16(dst), i64:16(src)",
		}))

		err = within(s, b.Node("Copy", nil), func(s *State) error {
			return s.Registers.EmitMultiLineCopy("dst", "src", 12)
		})
		Expect(errors.Is(err, ErrInvalidSize)).To(BeTrue())
	})
})
