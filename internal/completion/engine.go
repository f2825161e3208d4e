// Package completion produces tab-completion candidates for shell paths and
// command names.
package completion

import (
	"strings"
	"unicode/utf8"

	"github.com/oakwood-commons/ccs/internal/navigator"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

// Engine completes paths against a tree. Candidates are recomputed on every
// call and follow tree order.
type Engine struct {
	tree navigator.Tree
}

// NewEngine returns an engine over t.
func NewEngine(t navigator.Tree) *Engine {
	return &Engine{tree: t}
}

// Complete returns candidates for partial typed while positioned at cur.
// Absolute text is matched against the absolute paths of the root's direct
// children only; relative text against the identifiers of cur's children.
func (e *Engine) Complete(partial string, cur tree.Node) []string {
	if strings.HasPrefix(partial, "/") {
		var out []string
		for _, c := range e.tree.Root().Children() {
			if p := c.AbsolutePath(); strings.HasPrefix(p, partial) {
				out = append(out, p)
			}
		}
		return out
	}
	if cur == nil {
		return nil
	}
	var out []string
	for _, c := range cur.Children() {
		if strings.HasPrefix(c.ID(), partial) {
			out = append(out, c.ID())
		}
	}
	return out
}

// Words returns the entries of words starting with prefix, in order.
func Words(prefix string, words []string) []string {
	var out []string
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			out = append(out, w)
		}
	}
	return out
}

// CommonPrefix is the longest prefix shared by every candidate. It is cut at
// rune boundaries only.
func CommonPrefix(cands []string) string {
	if len(cands) == 0 {
		return ""
	}
	prefix := cands[0]
	for _, c := range cands[1:] {
		for !strings.HasPrefix(c, prefix) {
			_, w := utf8.DecodeLastRuneInString(prefix)
			prefix = prefix[:len(prefix)-w]
		}
	}
	return prefix
}
