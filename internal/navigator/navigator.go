// Package navigator resolves shell paths against the vehicle tree and keeps
// the shell's current position.
package navigator

import (
	"errors"
	"strings"

	"github.com/oakwood-commons/ccs/pkg/tree"
)

// ErrPathNotFound is returned when a path names no reachable node.
var ErrPathNotFound = errors.New("does not exist or is not accessible")

// PathError carries the path the user typed.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string { return e.Path + " " + e.Err.Error() }

func (e *PathError) Unwrap() error { return e.Err }

// Resolve translates path into a node. Absolute paths start at the root and
// ignore base; relative paths are appended to base's absolute path. Segments
// are matched literally, so "." and ".." have no special meaning. Empty and
// "/" name the root.
func Resolve(t Tree, base tree.Node, path string) (tree.Node, error) {
	var abs string
	switch {
	case path == "" || path == "/":
		return t.Root(), nil
	case strings.HasPrefix(path, "/"):
		abs = path
	case base == nil:
		abs = "/" + path
	default:
		abs = base.AbsolutePath() + "/" + path
	}
	n, ok := t.Lookup(abs)
	if !ok {
		return nil, notFound(path)
	}
	return n, nil
}

// DisplayPath renders an absolute path, showing the root as "/".
func DisplayPath(n tree.Node) string {
	if p := n.AbsolutePath(); p != "" {
		return p
	}
	return "/"
}

// IsContainer reports whether n can hold children.
func IsContainer(n tree.Node) bool {
	_, leaf := n.(tree.Attribute)
	return !leaf
}

func notFound(path string) error {
	return &PathError{Path: path, Err: ErrPathNotFound}
}
