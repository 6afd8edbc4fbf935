package lower

import "fmt"

// LoopLabels is the label triple of one active loop.
type LoopLabels struct {
	Start    string
	End      string
	Continue string
}

// LoopManager hands out labels and tracks the loops currently being lowered
// so that break and continue resolve against the innermost one.
type LoopManager struct {
	counter int
	frames  []LoopLabels
}

// NewLabel returns a label that has never been returned before.
func (m *LoopManager) NewLabel() string {
	l := fmt.Sprintf("L%d", m.counter)
	m.counter++
	return l
}

func (m *LoopManager) Push() LoopLabels {
	f := LoopLabels{Start: m.NewLabel(), End: m.NewLabel(), Continue: m.NewLabel()}
	m.frames = append(m.frames, f)
	return f
}

func (m *LoopManager) Pop() error {
	if len(m.frames) == 0 {
		return newError(ErrUnbalancedLoopStack, "loop label stack popped while empty")
	}
	m.frames = m.frames[:len(m.frames)-1]
	return nil
}

// CurrentLabel resolves "continue" or "break" against the innermost loop.
func (m *LoopManager) CurrentLabel(which string) (string, error) {
	if which != "continue" && which != "break" {
		return "", newError(ErrInvalidLabelKind, "unknown loop label kind '%s'", which)
	}
	if len(m.frames) == 0 {
		return "", newError(ErrNoActiveLoop, "'%s' outside of a loop", which)
	}
	top := m.frames[len(m.frames)-1]
	if which == "continue" {
		return top.Continue, nil
	}
	return top.End, nil
}

func (m *LoopManager) Depth() int { return len(m.frames) }
