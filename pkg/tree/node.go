package tree

import (
	"context"
	"sync"
	"time"

	"github.com/oakwood-commons/ccs/internal/formatter"
)

// Node is an element of the vehicle tree: either a container with ordered
// children or a leaf attribute.
type Node interface {
	// ID is the identifier the node is addressed by under its parent.
	ID() string
	// Parent returns nil for the root.
	Parent() Node
	// Children returns nil for attributes.
	Children() []Node
	// AbsolutePath is the "/"-joined sequence of ancestor identifiers.
	// The root's path is "".
	AbsolutePath() string
	String() string
}

// Attribute is a leaf node holding a value.
type Attribute interface {
	Node
	Value() any
	ValueString() string
	Unit() string
	Measured() time.Time
	Writable() bool
	SetValue(ctx context.Context, raw string) error
}

// Attributes lists every attribute below n, depth-first in child order.
// An attribute passed as n lists nothing.
func Attributes(n Node) []Attribute {
	var out []Attribute
	var walk func(Node)
	walk = func(cur Node) {
		for _, child := range cur.Children() {
			if a, ok := child.(Attribute); ok {
				out = append(out, a)
				continue
			}
			walk(child)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Object is a container node.
type Object struct {
	mu       sync.RWMutex
	id       string
	parent   *Object
	children []Node
	index    map[string]Node
}

func newObject(id string, parent *Object) *Object {
	return &Object{id: id, parent: parent, index: make(map[string]Node)}
}

func (o *Object) ID() string { return o.id }

func (o *Object) Parent() Node {
	if o.parent == nil {
		return nil
	}
	return o.parent
}

// Children returns a copy of the ordered child list.
func (o *Object) Children() []Node {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Node, len(o.children))
	copy(out, o.children)
	return out
}

// Child returns the direct child with the given identifier.
func (o *Object) Child(id string) (Node, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, ok := o.index[id]
	return n, ok
}

func (o *Object) AbsolutePath() string {
	if o.parent == nil {
		return ""
	}
	return o.parent.AbsolutePath() + "/" + o.id
}

// String renders the subtree with one line per node.
func (o *Object) String() string {
	return formatter.FormatAsTree(branch{o})
}

func (o *Object) append(n Node) {
	o.children = append(o.children, n)
	o.index[n.ID()] = n
}

func (o *Object) replace(old, n Node) {
	for i, c := range o.children {
		if c == old {
			o.children[i] = n
		}
	}
	o.index[n.ID()] = n
}

func (o *Object) remove(n Node) {
	for i, c := range o.children {
		if c == n {
			o.children = append(o.children[:i], o.children[i+1:]...)
			break
		}
	}
	delete(o.index, n.ID())
}

// Value is an attribute node.
type Value struct {
	mu       sync.RWMutex
	id       string
	parent   *Object
	tree     *Tree
	value    any
	unit     string
	measured time.Time
	spec     *Writable
	writer   Writer
}

func (v *Value) ID() string { return v.id }

func (v *Value) Parent() Node {
	if v.parent == nil {
		return nil
	}
	return v.parent
}

// Children is always nil for attributes.
func (v *Value) Children() []Node { return nil }

func (v *Value) AbsolutePath() string {
	if v.parent == nil {
		return ""
	}
	return v.parent.AbsolutePath() + "/" + v.id
}

func (v *Value) Value() any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

func (v *Value) Unit() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.unit
}

func (v *Value) Measured() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.measured
}

// ValueString is the value followed by its unit, if any.
func (v *Value) ValueString() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := formatter.Stringify(v.value)
	if v.unit != "" {
		s += " " + v.unit
	}
	return s
}

func (v *Value) String() string { return v.ValueString() }

// Writable reports whether the attribute is declared writable and owned by a
// source that accepts writes.
func (v *Value) Writable() bool {
	return v.spec != nil && v.writer != nil
}

// SetValue validates raw and sends it to the owning source.
func (v *Value) SetValue(ctx context.Context, raw string) error {
	if !v.Writable() {
		return ErrNotWritable
	}
	return v.tree.write(ctx, v, raw)
}

// update stores new state and returns the notification kinds it implies.
func (v *Value) update(value any, unit string, measured time.Time) Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	ev := EventUpdated
	if !equalValues(v.value, value) || v.unit != unit {
		ev |= EventValueChanged
	}
	if !measured.IsZero() && measured.After(v.measured) {
		ev |= EventUpdatedNewMeasurement
	}
	v.value = value
	v.unit = unit
	if !measured.IsZero() {
		v.measured = measured
	}
	return ev
}

// branch adapts a Node to the formatter's tree rendering.
type branch struct{ n Node }

func (b branch) Label() string {
	if a, ok := b.n.(Attribute); ok {
		return a.ID() + ": " + a.ValueString()
	}
	if b.n.ID() == "" {
		return "/"
	}
	return b.n.ID()
}

func (b branch) Branches() []formatter.Branch {
	children := b.n.Children()
	out := make([]formatter.Branch, len(children))
	for i, c := range children {
		out[i] = branch{c}
	}
	return out
}
