// Package tree holds the live vehicle state tree: containers and attributes
// merged from one or more sources, refreshed on demand or in the background,
// with change notifications delivered to prioritised observers.
package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/ccs/pkg/cache"
	"github.com/oakwood-commons/ccs/pkg/loader"
)

// Source fetches the raw state document of one service.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, loader.Format, error)
}

// Writer is implemented by sources that accept attribute writes. path holds
// the identifiers from the root to the attribute.
type Writer interface {
	WriteValue(ctx context.Context, path []string, value any) error
}

// SnapshotCache stores the last good document per source.
type SnapshotCache interface {
	Get(source string) (cache.Snapshot, bool, error)
	Put(source string, snap cache.Snapshot) error
}

// Tree is the root of the vehicle state tree.
type Tree struct {
	root      *Object
	sources   []Source
	writable  map[string]*Writable
	owners    map[string]Source
	cache     SnapshotCache
	maxAge    time.Duration
	observers observers
	log       logr.Logger
	now       func() time.Time

	// refreshMu serialises refreshes and writes; node locks guard reads.
	refreshMu sync.Mutex

	stopMu sync.Mutex
	stop   context.CancelFunc
	done   chan struct{}
}

// Option configures a Tree.
type Option func(*Tree)

// WithSource adds a source. Sources are fetched in the order added.
func WithSource(s Source) Option {
	return func(t *Tree) {
		t.sources = append(t.sources, s)
	}
}

// WithWritable declares an attribute writable.
func WithWritable(w Writable) Option {
	return func(t *Tree) {
		wc := w
		wc.Path = normalizePath(w.Path)
		t.writable[wc.Path] = &wc
	}
}

// WithCache sets the snapshot cache used when a fetch fails.
func WithCache(c SnapshotCache) Option {
	return func(t *Tree) {
		t.cache = c
	}
}

// WithCacheMaxAge bounds how old a cached snapshot may be to stand in for a
// failed fetch. Zero disables the fallback while still recording snapshots.
func WithCacheMaxAge(d time.Duration) Option {
	return func(t *Tree) {
		t.maxAge = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(t *Tree) {
		t.log = l
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tree) {
		t.now = now
	}
}

// New creates an empty tree. Call Refresh or Startup to populate it.
func New(opts ...Option) *Tree {
	t := &Tree{
		root:     newObject("", nil),
		writable: make(map[string]*Writable),
		owners:   make(map[string]Source),
		log:      logr.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Root returns the root container.
func (t *Tree) Root() Node { return t.root }

// Lookup resolves an absolute path. "" and "/" name the root. Empty segments
// are ignored; no segment has special meaning.
func (t *Tree) Lookup(path string) (Node, bool) {
	var cur Node = t.root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		obj, ok := cur.(*Object)
		if !ok {
			return nil, false
		}
		next, ok := obj.Child(seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Subscribe registers an observer for the kinds in mask at the given priority.
// Subscriptions last for the lifetime of the tree.
func (t *Tree) Subscribe(fn Observer, mask Event, prio Priority) {
	t.observers.add(fn, mask, prio)
}

// Refresh fetches every source and merges the results. Notifications are
// dispatched after the merge, in the order the changes were made.
func (t *Tree) Refresh(ctx context.Context) error {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()

	docs := make([]sourceDoc, 0, len(t.sources))
	for _, src := range t.sources {
		doc, err := t.fetch(ctx, src)
		if err != nil {
			return err
		}
		docs = append(docs, sourceDoc{source: src, doc: doc})
	}

	pending := t.apply(docs)
	t.dispatch(pending)
	return nil
}

// Startup refreshes once and then keeps refreshing every interval on a
// background goroutine until Shutdown is called or ctx ends. A non-positive
// interval disables background refreshes.
func (t *Tree) Startup(ctx context.Context, interval time.Duration) error {
	if err := t.Refresh(ctx); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	t.stopMu.Lock()
	defer t.stopMu.Unlock()
	if t.stop != nil {
		return nil
	}
	pollCtx, cancel := context.WithCancel(ctx)
	t.stop = cancel
	t.done = make(chan struct{})
	go t.poll(pollCtx, interval, t.done)
	return nil
}

func (t *Tree) poll(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
				t.log.Error(err, "background refresh failed")
			}
		}
	}
}

// Shutdown stops background refreshes and waits for the poller to exit.
func (t *Tree) Shutdown() {
	t.stopMu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.stopMu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

func (t *Tree) fetch(ctx context.Context, src Source) (any, error) {
	log := t.log.WithValues("source", src.Name())
	raw, format, err := src.Fetch(ctx)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		if snap, ok := t.cachedSnapshot(src.Name()); ok {
			log.Info("fetch failed, using cached snapshot", "error", err.Error(), "fetched_at", snap.FetchedAt)
			raw, format = snap.Payload, snap.Format
		} else {
			var retrieval *RetrievalError
			if errors.As(err, &retrieval) {
				return nil, err
			}
			return nil, &RetrievalError{Source: src.Name(), Err: err}
		}
	} else if t.cache != nil {
		if err := t.cache.Put(src.Name(), cache.Snapshot{Format: format, Payload: raw, FetchedAt: t.now()}); err != nil {
			log.Error(err, "storing snapshot")
		}
	}

	doc, err := loader.Decode(raw, format)
	if err != nil {
		return nil, &RetrievalError{Source: src.Name(), Err: err}
	}
	log.V(1).Info("fetched document", "bytes", len(raw))
	return doc, nil
}

func (t *Tree) cachedSnapshot(name string) (cache.Snapshot, bool) {
	if t.cache == nil || t.maxAge <= 0 {
		return cache.Snapshot{}, false
	}
	snap, ok, err := t.cache.Get(name)
	if err != nil {
		t.log.Error(err, "reading snapshot", "source", name)
		return cache.Snapshot{}, false
	}
	if !ok || t.now().Sub(snap.FetchedAt) > t.maxAge {
		return cache.Snapshot{}, false
	}
	return snap, true
}

// write converts and forwards a value to the owning source, then stores it.
func (t *Tree) write(ctx context.Context, v *Value, raw string) error {
	t.refreshMu.Lock()
	value, err := v.spec.convert(raw)
	if err != nil {
		t.refreshMu.Unlock()
		return err
	}
	path := splitPath(v.AbsolutePath())
	if err := v.writer.WriteValue(ctx, path, value); err != nil {
		t.refreshMu.Unlock()
		return fmt.Errorf("writing %s: %w", v.AbsolutePath(), err)
	}
	ev := v.update(value, v.Unit(), time.Time{})
	t.refreshMu.Unlock()

	t.log.V(1).Info("attribute written", "path", v.AbsolutePath(), "value", raw)
	t.dispatch([]notification{{node: v, event: ev}})
	return nil
}

func (t *Tree) dispatch(pending []notification) {
	for _, n := range pending {
		t.observers.notify(n.node, n.event)
	}
}

func normalizePath(p string) string {
	segs := splitPath(p)
	if len(segs) == 0 {
		return ""
	}
	return "/" + strings.Join(segs, "/")
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
