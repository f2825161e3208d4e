package formatter

import (
	"strings"

	"github.com/xlab/treeprint"
)

// Branch is anything that renders as a labelled tree.
type Branch interface {
	Label() string
	Branches() []Branch
}

// FormatAsTree renders b and its descendants as an ASCII tree, one node per line.
func FormatAsTree(b Branch) string {
	tree := treeprint.NewWithRoot(b.Label())
	buildTree(tree, b)
	return strings.TrimRight(tree.String(), "\n")
}

func buildTree(parent treeprint.Tree, b Branch) {
	kids := b.Branches()
	if len(kids) == 0 {
		return
	}
	for _, k := range kids {
		if len(k.Branches()) == 0 {
			parent.AddNode(k.Label())
			continue
		}
		child := parent.AddBranch(k.Label())
		buildTree(child, k)
	}
}
