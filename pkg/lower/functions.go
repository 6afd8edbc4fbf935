package lower

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/mirtext/mirtext/pkg/ir"
)

// FunctionManager keeps the prototypes declared so far. Two signatures are
// the same prototype when their canonical labels match.
type FunctionManager struct {
	state      *State
	prototypes []ir.Signature
	index      map[uint64][]int
}

func newFunctionManager(s *State) *FunctionManager {
	return &FunctionManager{state: s, index: make(map[uint64][]int)}
}

// AddPrototype emits a proto line for sig and appends it to the registry.
// It does not deduplicate; callers check HasPrototype first. Methods carry
// their object as a leading ThisParam. Inside a function body the proto
// line is placed before the function.
func (f *FunctionManager) AddPrototype(sig ir.Signature) (string, error) {
	name := fmt.Sprintf("proto%d", len(f.prototypes))

	err := f.state.emitDeclaration(func(l *TextLine) error {
		l.Label = name
		l.Instruction = "proto"
		if sig.Return != ir.TypeNone {
			l.AddOperand(sig.Return.RegisterName())
		}
		for _, p := range sig.Params {
			l.AddOperand(p.Symbol())
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	key := xxhash.Sum64String(sig.Label())
	f.index[key] = append(f.index[key], len(f.prototypes))
	f.prototypes = append(f.prototypes, sig)
	return name, nil
}

func (f *FunctionManager) lookup(sig ir.Signature) (int, bool) {
	label := sig.Label()
	for _, i := range f.index[xxhash.Sum64String(label)] {
		if f.prototypes[i].Label() == label {
			return i, true
		}
	}
	return 0, false
}

func (f *FunctionManager) HasPrototype(sig ir.Signature) bool {
	_, ok := f.lookup(sig)
	return ok
}

// Prototype returns the proto<n> name of the first prototype matching sig.
func (f *FunctionManager) Prototype(sig ir.Signature) (string, error) {
	i, ok := f.lookup(sig)
	if !ok {
		return "", newError(ErrPrototypeNotFound, "prototype not found for %s", sig)
	}
	return fmt.Sprintf("proto%d", i), nil
}

func (f *FunctionManager) Len() int { return len(f.prototypes) }
