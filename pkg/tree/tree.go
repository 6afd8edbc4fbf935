// Package tree defines the typed syntax tree handed to the lowering pass by
// the parser and type checker.
package tree

import (
	"fmt"
	"strconv"
)

// NodeID is a stable handle for a node, assigned once by a Builder.
type NodeID uint32

// NoNodeID is the zero handle; no valid node carries it.
const NoNodeID NodeID = 0

func (id NodeID) IsValid() bool { return id != NoNodeID }

// Props holds the named properties of a node. Values are strings or numbers.
type Props map[string]any

// Node is one element of the tree. Type is the node-type tag used for dispatch.
type Node struct {
	Type     string
	ID       NodeID
	Props    Props
	Children []*Node
}

func (n *Node) NumChildren() int { return len(n.Children) }

// Child returns the i-th child or nil when i is out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

func (n *Node) HasProperty(key string) bool {
	_, ok := n.Props[key]
	return ok
}

// Property renders the named property as text.
func (n *Node) Property(key string) (string, bool) {
	v, ok := n.Props[key]
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

// FormatValue renders a property value the way it appears in emitted text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.Type, n.ID)
}

// Builder hands out node IDs from a private counter so that every node of a
// tree gets a distinct handle.
type Builder struct {
	next NodeID
}

func NewBuilder() *Builder { return &Builder{} }

// Node creates a node with a fresh ID.
func (b *Builder) Node(typ string, props Props, children ...*Node) *Node {
	b.next++
	if props == nil {
		props = Props{}
	}
	return &Node{Type: typ, ID: b.next, Props: props, Children: children}
}

// Count reports how many IDs have been handed out.
func (b *Builder) Count() int { return int(b.next) }
