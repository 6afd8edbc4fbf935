package lower

import (
	"sort"

	"github.com/mirtext/mirtext/pkg/ir"
	"github.com/mirtext/mirtext/pkg/layout"
)

// Member is one field of a registered class.
type Member struct {
	ID       string
	TypeName string
	Type     ir.Type
	Offset   int
	Size     int
}

// DataManager is the registry of class layouts.
type DataManager struct {
	classes map[string][]Member
	used    map[string]bool
	nesting int
}

func newDataManager() *DataManager {
	return &DataManager{
		classes: make(map[string][]Member),
		used:    make(map[string]bool),
	}
}

// SetDataLayout decodes a layout blob and registers every class in it.
// A class that is already known is replaced.
func (d *DataManager) SetDataLayout(blob string) error {
	classes, err := layout.Decode(blob)
	if err != nil {
		return newError(ErrInvalidLayout, "%v", err)
	}
	for _, c := range classes {
		if err := d.register(c.ID, c.Members); err != nil {
			return err
		}
	}
	return nil
}

func (d *DataManager) register(id string, members []layout.Member) error {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		t, err := ir.ParseType(m.Type)
		if err != nil {
			return newError(ErrInvalidLayout, "class '%s' member '%s': %v", id, m.ID, err)
		}
		size, _ := ir.SizeOfTypeName(m.Type)
		out = append(out, Member{ID: m.ID, TypeName: m.Type, Type: t, Offset: m.Offset, Size: size})
	}
	d.classes[id] = out
	return nil
}

// StartClass opens a class definition and registers its members.
func (d *DataManager) StartClass(id string, members []layout.Member) error {
	d.nesting++
	return d.register(id, members)
}

func (d *DataManager) EndClass() error {
	if d.nesting == 0 {
		return newError(ErrInvalidLayout, "class definition closed without being opened")
	}
	d.nesting--
	return nil
}

func (d *DataManager) Nesting() int { return d.nesting }

func (d *DataManager) get(id string) ([]Member, error) {
	members, ok := d.classes[id]
	if !ok {
		return nil, newError(ErrUnknownClass, "unknown class '%s'", id)
	}
	d.used[id] = true
	return members, nil
}

// NumBytesRequired is the offset of the last member plus its size.
func (d *DataManager) NumBytesRequired(id string) (int, error) {
	members, err := d.get(id)
	if err != nil || len(members) == 0 {
		return 0, err
	}
	last := members[len(members)-1]
	return last.Offset + last.Size, nil
}

func (d *DataManager) ClassType(id string) ([]Member, error) {
	members, err := d.get(id)
	if err != nil {
		return nil, err
	}
	return append([]Member(nil), members...), nil
}

// DataObject returns the class in the form it was decoded from.
func (d *DataManager) DataObject(id string) (layout.Class, error) {
	members, err := d.get(id)
	if err != nil {
		return layout.Class{}, err
	}
	c := layout.Class{ID: id, Members: make([]layout.Member, len(members))}
	for i, m := range members {
		c.Members[i] = layout.Member{ID: m.ID, Type: m.TypeName, Offset: m.Offset}
	}
	return c, nil
}

func (d *DataManager) MemberOffset(id, member string) (Member, error) {
	members, err := d.get(id)
	if err != nil {
		return Member{}, err
	}
	for _, m := range members {
		if m.ID == member {
			return m, nil
		}
	}
	return Member{}, newError(ErrUnknownMember, "class '%s' has no member '%s'", id, member)
}

// Unused lists the registered classes no lookup has touched, sorted.
func (d *DataManager) Unused() []string {
	var ids []string
	for id := range d.classes {
		if !d.used[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
