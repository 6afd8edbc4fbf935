package lower

import (
	"fmt"
	"sort"

	"github.com/mirtext/mirtext/pkg/tree"
)

// Handler lowers the node under the cursor of s.
type Handler func(s *State) error

// InstructionManager maps node tags to their handlers.
type InstructionManager struct {
	handlers map[string]Handler
}

func NewInstructionManager() *InstructionManager {
	return &InstructionManager{handlers: make(map[string]Handler)}
}

// Register installs h for tag. A tag may only be registered once.
func (im *InstructionManager) Register(tag string, h Handler) {
	if h == nil {
		panic(fmt.Sprintf("nil handler for '%s'", tag))
	}
	if _, ok := im.handlers[tag]; ok {
		panic(fmt.Sprintf("handler for '%s' registered twice", tag))
	}
	im.handlers[tag] = h
}

func (im *InstructionManager) Has(tag string) bool {
	_, ok := im.handlers[tag]
	return ok
}

func (im *InstructionManager) Tags() []string {
	tags := make([]string, 0, len(im.handlers))
	for t := range im.handlers {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Perform runs the handler registered for n's tag.
func (im *InstructionManager) Perform(s *State, n *tree.Node) error {
	h, ok := im.handlers[n.Type]
	if !ok {
		return nodeError(ErrUnknownNodeType, n, "no instruction found for '%s'", n.Type)
	}
	return h(s)
}
