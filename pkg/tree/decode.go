package tree

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type rawNode struct {
	Type     string    `yaml:"type"`
	ID       NodeID    `yaml:"id,omitempty"`
	Props    Props     `yaml:"props,omitempty"`
	Children []rawNode `yaml:"children,omitempty"`
}

// Decode reads a YAML tree document. IDs are assigned in pre-order; any id
// fields in the input are ignored.
func Decode(r io.Reader) (*Node, error) {
	var raw rawNode
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty tree document")
		}
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	return build(NewBuilder(), &raw, "root")
}

func build(b *Builder, raw *rawNode, path string) (*Node, error) {
	if raw.Type == "" {
		return nil, fmt.Errorf("node at %s has no type", path)
	}
	n := b.Node(raw.Type, raw.Props)
	for i := range raw.Children {
		c, err := build(b, &raw.Children[i], fmt.Sprintf("%s/%s[%d]", path, raw.Type, i))
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

func toRaw(n *Node) rawNode {
	raw := rawNode{Type: n.Type, ID: n.ID, Props: n.Props}
	if len(raw.Props) == 0 {
		raw.Props = nil
	}
	for _, c := range n.Children {
		raw.Children = append(raw.Children, toRaw(c))
	}
	return raw
}

// Dump renders n and its subtree as YAML, IDs included.
func Dump(n *Node) string {
	if n == nil {
		return "<nil>\n"
	}
	out, err := yaml.Marshal(toRaw(n))
	if err != nil {
		return fmt.Sprintf("<unprintable node %s: %v>\n", n, err)
	}
	return string(out)
}
