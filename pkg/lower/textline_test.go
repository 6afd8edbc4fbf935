package lower

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/tree"
)

var _ = Describe("TextLine", func() {
	Context("when rendering", func() {
		labeled := TextLine{Label: "L12", LocalDef: "i64:reg0", Instruction: "add", Operands: []string{"reg0", "a", "b"}, Comment: "sum"}
		plain := TextLine{Instruction: "ret"}

		It("should report the label width", func() {
			Expect(labeled.LabelWidth()).To(Equal(5))
			Expect(plain.LabelWidth()).To(Equal(-1))
		})

		It("should not pad with a negative width", func() {
			Expect(labeled.Render(-1)).To(Equal("L12: local i64:reg0; add reg0, a, b # sum"))
			Expect(plain.Render(-1)).To(Equal("ret"))
		})

		It("should pad every label field to the given width", func() {
			for _, w := range []int{5, 8, 12} {
				for _, l := range []TextLine{labeled, plain} {
					out := l.Render(w)
					Expect(out[w-1]).To(Equal(byte(' ')))
					Expect(out[w]).NotTo(Equal(byte(' ')))
				}
			}
			Expect(plain.Render(6)).To(Equal("      ret"))
			Expect(labeled.Render(8)).To(Equal("L12:    local i64:reg0; add reg0, a, b # sum"))
		})
	})

	Context("when building", func() {
		var (
			s *State
			b *tree.Builder
		)

		BeforeEach(func() {
			s = newTestState(nil)
			b = tree.NewBuilder()
		})

		It("should share one counter between reg and xmm registers", func() {
			var names []string
			err := within(s, b.Node("Expr", nil), func(s *State) error {
				for _, t := range []ir.Type{ir.TypeI64, ir.TypeF, ir.TypeD, ir.TypeI32} {
					Expect(s.Emit(func(l *TextLine) error {
						names = append(names, l.AddAnonymousReg(t, Value))
						l.Instruction = "mov"
						return nil
					})).To(Succeed())
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"reg0", "xmm1", "xmm2", "reg3"}))
			Expect(render(s)).To(Equal([]string{
				"local i64:reg0; mov",
				"local f:xmm1; mov",
				"local d:xmm2; mov",
				"local i64:reg3; mov",
			}))
		})

		It("should declare pointer registers at word width", func() {
			n := b.Node("Ref", nil)
			err := within(s, n, func(s *State) error {
				return s.Emit(func(l *TextLine) error {
					Expect(l.AddAnonymousReg(ir.TypeF, Pointer)).To(Equal("reg0"))
					l.Instruction = "mov"
					return nil
				})
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(render(s)).To(Equal([]string{"local i64:reg0; mov"}))

			op, err := s.Registers.OperandFor(n.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(op).To(Equal(Operand{Owner: n.ID, Text: "reg0", Type: ir.TypeF, Kind: Pointer}))
		})

		It("should render immediates canonically", func() {
			err := within(s, b.Node("Imm", nil), func(s *State) error {
				return s.Emit(func(l *TextLine) error {
					l.Instruction = "mov"
					l.AddOperand("x")
					l.AddImmOperand(ir.Float(2))
					l.AddImmOperand(ir.Double(0.5))
					l.AddImmOperand(ir.Int(-3))
					return nil
				})
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(render(s)).To(Equal([]string{"mov x, 2.0f, 0.5, -3"}))
		})

		It("should keep the first operand error and drop the line", func() {
			root := b.Node("Add", nil, b.Node("Missing", nil))
			err := within(s, root, func(s *State) error {
				return s.Emit(func(l *TextLine) error {
					l.Instruction = "add"
					l.AddChildAsValueOperand(0)
					l.AddChildAsValueOperand(3)
					return nil
				})
			})
			Expect(errors.Is(err, ErrOperandNotFound)).To(BeTrue())
			Expect(s.Lines()).To(BeEmpty())
		})

		It("should require matching operand kinds", func() {
			err := within(s, b.Node("Call", nil), func(s *State) error {
				return s.Emit(func(l *TextLine) error {
					l.AddOperands([]int{0, 1}, []Kind{Value})
					return nil
				})
			})
			Expect(errors.Is(err, ErrInvalidSize)).To(BeTrue())
		})
	})
})
