package lower

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/tree"
)

func sig(name string, ret ir.Type, params ...ir.Type) ir.Signature {
	s := ir.Signature{Name: name, Return: ret}
	for i, p := range params {
		s.Params = append(s.Params, ir.Param{Name: string(rune('a' + i)), Typ: p})
	}
	return s
}

var _ = Describe("FunctionManager", func() {
	var s *State

	BeforeEach(func() {
		s = newTestState(nil)
	})

	method := func(sg ir.Signature) ir.Signature {
		sg.Params = append([]ir.Param{ir.ThisParam}, sg.Params...)
		return sg
	}

	add := func(sg ir.Signature) string {
		var name string
		err := within(s, tree.NewBuilder().Node("Function", nil), func(s *State) error {
			var err error
			name, err = s.Functions.AddPrototype(sg)
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		return name
	}

	It("should emit prototype lines", func() {
		Expect(add(sig("add", ir.TypeI64, ir.TypeI64, ir.TypeF))).To(Equal("proto0"))
		Expect(add(method(sig("reset", ir.TypeNone)))).To(Equal("proto1"))
		Expect(add(method(sig("scale", ir.TypeD, ir.TypeD)))).To(Equal("proto2"))

		Expect(render(s)).To(Equal([]string{
			"proto0: proto i64, i64:a, f:b",
			"proto1: proto i64:_this_",
			"proto2: proto d, i64:_this_, d:a",
		}))
	})

	It("should match signatures structurally", func() {
		add(sig("add", ir.TypeI64, ir.TypeI64, ir.TypeI64))

		other := ir.Signature{Name: "sum", Return: ir.TypeI64, Params: []ir.Param{{Name: "x", Typ: ir.TypeI64}, {Name: "y", Typ: ir.TypeI64}}}
		Expect(s.Functions.HasPrototype(other)).To(BeTrue())
		Expect(s.Functions.Prototype(other)).To(Equal("proto0"))

		Expect(s.Functions.HasPrototype(sig("add", ir.TypeI64, ir.TypeI64))).To(BeFalse())
		Expect(s.Functions.HasPrototype(sig("add", ir.TypeI64, ir.TypeI64, ir.TypeI32))).To(BeFalse())
		Expect(s.Functions.HasPrototype(sig("add", ir.TypeNone, ir.TypeI64, ir.TypeI64))).To(BeFalse())
	})

	It("should keep methods apart from free functions of the same parameters", func() {
		add(sig("f", ir.TypeI64, ir.TypeI64))
		g := method(sig("g", ir.TypeI64, ir.TypeI64))
		Expect(s.Functions.HasPrototype(g)).To(BeFalse())
		Expect(add(g)).To(Equal("proto1"))
		Expect(s.Functions.Prototype(sig("h", ir.TypeI64, ir.TypeI64))).To(Equal("proto0"))
		Expect(render(s)).To(Equal([]string{
			"proto0: proto i64, i64:a",
			"proto1: proto i64, i64:_this_, i64:a",
		}))
	})

	It("should place prototypes declared in a function body before the function", func() {
		b := tree.NewBuilder()
		err := within(s, b.Node("Function", nil), func(s *State) error {
			Expect(s.EmitSingleInstruction("module", "m")).To(Succeed())
			Expect(s.EmitSingleInstruction("func", "main")).To(Succeed())
			s.EnterFunction()
			defer s.ExitFunction()
			Expect(s.EmitSingleInstruction("ret", "")).To(Succeed())
			if _, err := s.Functions.AddPrototype(sig("f", ir.TypeNone)); err != nil {
				return err
			}
			if _, err := s.Functions.AddPrototype(sig("g", ir.TypeI64)); err != nil {
				return err
			}
			return s.EmitSingleInstruction("endfunc", "")
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Functions.AddPrototype(sig("k", ir.TypeD))).To(Equal("proto2"))
		Expect(render(s)).To(Equal([]string{
			"m: module",
			"proto0: proto",
			"proto1: proto i64",
			"main: func",
			"ret",
			"endfunc",
			"proto2: proto d",
		}))
	})

	It("should fail to find unknown prototypes", func() {
		_, err := s.Functions.Prototype(sig("f", ir.TypeF))
		Expect(errors.Is(err, ErrPrototypeNotFound)).To(BeTrue())
	})

	It("should agree with a reference set for random sequences", func() {
		rng := rand.New(rand.NewSource(7))
		types := []ir.Type{ir.TypeNone, ir.TypeI32, ir.TypeI64, ir.TypeF, ir.TypeD, ir.TypeP}
		random := func() ir.Signature {
			sg := ir.Signature{Name: "fn", Return: types[rng.Intn(len(types))]}
			for i := rng.Intn(3); i > 0; i-- {
				sg.Params = append(sg.Params, ir.Param{Name: "p", Typ: types[1+rng.Intn(len(types)-1)]})
			}
			return sg
		}

		added := map[string]bool{}
		for i := 0; i < 200; i++ {
			sg := random()
			Expect(s.Functions.HasPrototype(sg)).To(Equal(added[sg.Label()]), "signature %s", sg)
			if rng.Intn(2) == 0 && !added[sg.Label()] {
				add(sg)
				added[sg.Label()] = true
			}
		}
		Expect(s.Functions.Len()).To(Equal(len(added)))
	})
})
