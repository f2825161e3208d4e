package navigator

import "github.com/oakwood-commons/ccs/pkg/tree"

// ParentMarker is listed before the children of every non-root container.
const ParentMarker = ".."

// Cursor is the shell's current working node. It starts at the root and only
// moves on successful navigation.
type Cursor struct {
	tree Tree
	cur  tree.Node
}

// NewCursor returns a cursor positioned at the root of t.
func NewCursor(t Tree) *Cursor {
	return &Cursor{tree: t, cur: t.Root()}
}

// Node returns the current node.
func (c *Cursor) Node() tree.Node { return c.cur }

// Resolve resolves path relative to the current node.
func (c *Cursor) Resolve(path string) (tree.Node, error) {
	return Resolve(c.tree, c.cur, path)
}

// ChangeDirectory moves to the container named by path and returns its
// display path. Attributes cannot be entered. On failure the cursor is left
// where it was.
func (c *Cursor) ChangeDirectory(path string) (string, error) {
	n, err := c.Resolve(path)
	if err != nil {
		return "", err
	}
	if !IsContainer(n) {
		return "", notFound(path)
	}
	c.cur = n
	return DisplayPath(n), nil
}

// CurrentPath is the current node's absolute path, "/" at the root.
func (c *Cursor) CurrentPath() string {
	return DisplayPath(c.cur)
}

// ListChildren returns the identifiers of the current node's children in
// tree order, preceded by ParentMarker when the node has a parent.
func (c *Cursor) ListChildren() []string {
	children := c.cur.Children()
	out := make([]string, 0, len(children)+1)
	if c.cur.Parent() != nil {
		out = append(out, ParentMarker)
	}
	for _, ch := range children {
		out = append(out, ch.ID())
	}
	return out
}
