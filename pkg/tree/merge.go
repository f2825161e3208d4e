package tree

import (
	"reflect"
	"strconv"
	"time"

	"github.com/oakwood-commons/ccs/pkg/loader"
)

// Reserved keys that turn a mapping into a single attribute.
const (
	valueKey    = "_value"
	unitKey     = "_unit"
	measuredKey = "_measured"
)

type sourceDoc struct {
	source Source
	doc    any
}

type notification struct {
	node  Node
	event Event
}

// apply merges the fetched documents below the root and returns the
// notifications in the order the changes were made.
func (t *Tree) apply(docs []sourceDoc) []notification {
	merged := loader.Map{}
	owners := make(map[string]Source)
	for _, d := range docs {
		m, ok := asMap(d.doc)
		if !ok {
			t.log.Info("ignoring document without a top-level mapping", "source", d.source.Name())
			continue
		}
		for _, e := range m {
			if prev, dup := owners[e.Key]; dup {
				t.log.Info("duplicate top-level id, later source wins", "id", e.Key, "previous", prev.Name(), "source", d.source.Name())
			}
			owners[e.Key] = d.source
			merged = merged.Set(e.Key, e.Value)
		}
	}
	t.owners = owners

	var pending []notification
	t.mergeObject(t.root, merged, &pending)
	return pending
}

func (t *Tree) mergeObject(obj *Object, doc loader.Map, pending *[]notification) {
	obj.mu.Lock()
	seen := make(map[string]bool, len(doc))
	var work []func()

	for _, e := range doc {
		seen[e.Key] = true
		existing, ok := obj.index[e.Key]
		_, wantAttr := attributeDoc(e.Value)
		switch {
		case !ok:
			n := t.build(obj, e.Key, e.Value)
			obj.append(n)
			work = append(work, func() { enableSubtree(n, pending) })
		case isAttribute(existing) != wantAttr:
			n := t.build(obj, e.Key, e.Value)
			obj.replace(existing, n)
			old := existing
			work = append(work, func() {
				disableSubtree(old, pending)
				enableSubtree(n, pending)
			})
		case wantAttr:
			v := existing.(*Value)
			value, unit, measured := attributeParts(e.Value)
			work = append(work, func() {
				*pending = append(*pending, notification{node: v, event: v.update(value, unit, measured)})
			})
		default:
			child := existing.(*Object)
			m, _ := asMap(e.Value)
			work = append(work, func() { t.mergeObject(child, m, pending) })
		}
	}

	var removed []Node
	for _, c := range obj.children {
		if !seen[c.ID()] {
			removed = append(removed, c)
		}
	}
	for _, c := range removed {
		obj.remove(c)
	}
	obj.mu.Unlock()

	// Children are merged after the parent lock is released so that
	// nested merges never hold two object locks at once.
	for _, w := range work {
		w()
	}
	for _, c := range removed {
		disableSubtree(c, pending)
	}
}

// build creates a detached node for a document value.
func (t *Tree) build(parent *Object, id string, doc any) Node {
	if _, ok := attributeDoc(doc); ok {
		value, unit, measured := attributeParts(doc)
		v := &Value{id: id, parent: parent, tree: t, value: value, unit: unit, measured: measured}
		v.spec = t.writable[v.AbsolutePath()]
		if v.spec != nil {
			v.writer, _ = t.owners[rootSegment(v.AbsolutePath())].(Writer)
		}
		return v
	}
	obj := newObject(id, parent)
	m, _ := asMap(doc)
	for _, e := range m {
		obj.append(t.build(obj, e.Key, e.Value))
	}
	return obj
}

func enableSubtree(n Node, pending *[]notification) {
	*pending = append(*pending, notification{node: n, event: EventEnabled})
	for _, c := range n.Children() {
		enableSubtree(c, pending)
	}
}

func disableSubtree(n Node, pending *[]notification) {
	*pending = append(*pending, notification{node: n, event: EventDisabled})
	for _, c := range n.Children() {
		disableSubtree(c, pending)
	}
}

func isAttribute(n Node) bool {
	_, ok := n.(*Value)
	return ok
}

// attributeDoc reports whether doc describes a single attribute: any scalar,
// or a mapping carrying the reserved value key.
func attributeDoc(doc any) (any, bool) {
	switch t := doc.(type) {
	case loader.Map:
		v, ok := t.Get(valueKey)
		return v, ok
	case []any:
		return nil, false
	default:
		return doc, true
	}
}

func attributeParts(doc any) (value any, unit string, measured time.Time) {
	m, ok := doc.(loader.Map)
	if !ok {
		return doc, "", time.Time{}
	}
	value, _ = m.Get(valueKey)
	if u, ok := m.Get(unitKey); ok {
		if s, ok := u.(string); ok {
			unit = s
		}
	}
	if raw, ok := m.Get(measuredKey); ok {
		switch ts := raw.(type) {
		case time.Time:
			measured = ts
		case string:
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				measured = parsed
			}
		}
	}
	return value, unit, measured
}

// asMap treats sequences as containers indexed by position.
func asMap(doc any) (loader.Map, bool) {
	switch t := doc.(type) {
	case loader.Map:
		return t, true
	case []any:
		m := make(loader.Map, len(t))
		for i, v := range t {
			m[i] = loader.Entry{Key: strconv.Itoa(i), Value: v}
		}
		return m, true
	default:
		return nil, false
	}
}

func rootSegment(abs string) string {
	segs := splitPath(abs)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

func equalValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// Export converts a subtree back into the document convention: containers
// become ordered mappings and attributes with a unit or measurement become
// reserved-key mappings.
func Export(n Node) any {
	if a, ok := n.(Attribute); ok {
		if a.Unit() == "" && a.Measured().IsZero() {
			return a.Value()
		}
		m := loader.Map{{Key: valueKey, Value: a.Value()}}
		if a.Unit() != "" {
			m = m.Set(unitKey, a.Unit())
		}
		if !a.Measured().IsZero() {
			m = m.Set(measuredKey, a.Measured().Format(time.RFC3339))
		}
		return m
	}
	children := n.Children()
	m := make(loader.Map, 0, len(children))
	for _, c := range children {
		m = append(m, loader.Entry{Key: c.ID(), Value: Export(c)})
	}
	return m
}
