package navigator

import "github.com/oakwood-commons/ccs/pkg/tree"

// Tree is the part of the vehicle tree the navigator needs.
type Tree interface {
	Root() tree.Node
	Lookup(path string) (tree.Node, bool)
}

var _ Tree = (*tree.Tree)(nil)
