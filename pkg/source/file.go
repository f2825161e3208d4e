// Package source implements the fetchers that feed the vehicle tree.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/ccs/pkg/loader"
)

// File serves a local state document. It accepts writes, which are stored
// back into the same file in its original format.
type File struct {
	name   string
	path   string
	format loader.Format

	mu sync.Mutex
}

// NewFile returns a file source. FormatAuto picks the format from the
// extension, then from the content.
func NewFile(name, path string, format loader.Format) *File {
	return &File{name: name, path: path, format: format}
}

func (f *File) Name() string { return f.name }

// Fetch reads the document.
func (f *File) Fetch(ctx context.Context) ([]byte, loader.Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, "", err
	}
	return data, f.resolveFormat(data), nil
}

// WriteValue replaces the value at path and rewrites the file. YAML files
// are edited in place so comments and layout survive.
func (f *File) WriteValue(ctx context.Context, path []string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(path) == 0 {
		return fmt.Errorf("%s: empty path", f.name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}

	format := f.resolveFormat(data)
	var out []byte
	if format == loader.FormatYAML {
		out, err = setYAML(data, path, value)
	} else {
		out, err = setDecoded(data, format, path, value)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", f.name, err)
	}
	return os.WriteFile(f.path, out, info.Mode().Perm())
}

func (f *File) resolveFormat(data []byte) loader.Format {
	format := f.format
	if format == loader.FormatAuto || format == "" {
		format = loader.FormatFromPath(f.path)
	}
	if format == loader.FormatAuto || format == "" {
		format = loader.Sniff(data)
	}
	return format
}

func setYAML(data []byte, path []string, value any) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s not found", joinPath(path))
	}
	target, err := findYAML(doc.Content[0], path)
	if err != nil {
		return nil, err
	}
	if target.Kind == yaml.MappingNode {
		if v := mappingValue(target, "_value"); v != nil {
			target = v
		}
	}
	var repl yaml.Node
	if err := repl.Encode(value); err != nil {
		return nil, err
	}
	repl.HeadComment, repl.LineComment, repl.FootComment = target.HeadComment, target.LineComment, target.FootComment
	*target = repl

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findYAML(n *yaml.Node, path []string) (*yaml.Node, error) {
	cur := n
	for i, seg := range path {
		for cur.Kind == yaml.AliasNode && cur.Alias != nil {
			cur = cur.Alias
		}
		var next *yaml.Node
		switch cur.Kind {
		case yaml.MappingNode:
			next = mappingValue(cur, seg)
		case yaml.SequenceNode:
			if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && idx < len(cur.Content) {
				next = cur.Content[idx]
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s not found", joinPath(path[:i+1]))
		}
		cur = next
	}
	return cur, nil
}

// mappingValue returns the value node of the last occurrence of key.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	var found *yaml.Node
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			found = m.Content[i+1]
		}
	}
	return found
}

func setDecoded(data []byte, format loader.Format, path []string, value any) ([]byte, error) {
	doc, err := loader.Decode(data, format)
	if err != nil {
		return nil, err
	}
	doc, err = setIn(doc, path, path, value)
	if err != nil {
		return nil, err
	}
	return loader.Encode(doc, format)
}

func setIn(doc any, full, path []string, value any) (any, error) {
	if len(path) == 0 {
		if m, ok := doc.(loader.Map); ok {
			if _, ok := m.Get("_value"); ok {
				return m.Set("_value", value), nil
			}
		}
		return value, nil
	}
	missing := fmt.Errorf("%s not found", joinPath(full[:len(full)-len(path)+1]))
	switch t := doc.(type) {
	case loader.Map:
		child, ok := t.Get(path[0])
		if !ok {
			return nil, missing
		}
		updated, err := setIn(child, full, path[1:], value)
		if err != nil {
			return nil, err
		}
		return t.Set(path[0], updated), nil
	case []any:
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, missing
		}
		updated, err := setIn(t[idx], full, path[1:], value)
		if err != nil {
			return nil, err
		}
		t[idx] = updated
		return t, nil
	default:
		return nil, missing
	}
}

func joinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}
