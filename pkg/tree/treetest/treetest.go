// Package treetest builds in-memory trees for tests.
package treetest

import (
	"context"
	"sync"
	"testing"

	"github.com/oakwood-commons/ccs/pkg/loader"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

// Source serves a fixed YAML document and records writes.
type Source struct {
	Label string

	mu     sync.Mutex
	doc    string
	writes []Write
	err    error
}

// Write is one recorded WriteValue call.
type Write struct {
	Path  []string
	Value any
}

// NewSource returns a source named "test" serving doc.
func NewSource(doc string) *Source {
	return &Source{Label: "test", doc: doc}
}

func (s *Source) Name() string { return s.Label }

func (s *Source) Fetch(context.Context) ([]byte, loader.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte(s.doc), loader.FormatYAML, nil
}

func (s *Source) WriteValue(_ context.Context, path []string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, Write{Path: path, Value: value})
	return nil
}

// SetDocument replaces the served document.
func (s *Source) SetDocument(doc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
}

// Fail makes every following Fetch return err. nil restores normal fetches.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Writes returns the recorded writes.
func (s *Source) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// New builds and refreshes a tree over doc. Paths in writable are declared
// writable as strings.
func New(t testing.TB, doc string, writable ...string) (*tree.Tree, *Source) {
	t.Helper()
	src := NewSource(doc)
	opts := []tree.Option{tree.WithSource(src)}
	for _, p := range writable {
		opts = append(opts, tree.WithWritable(tree.Writable{Path: p}))
	}
	tr := tree.New(opts...)
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("refreshing test tree: %v", err)
	}
	return tr, src
}

// Vehicles is a small garage used across tests.
const Vehicles = `
vehicle1:
  mileage: 1234
  climatization:
    target_temperature: 21.5
    state: "off"
  doors:
    front_left: closed
vehicle2:
  mileage: 99
`
