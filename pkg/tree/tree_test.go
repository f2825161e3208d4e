package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/ccs/pkg/cache"
	"github.com/oakwood-commons/ccs/pkg/loader"
)

type fakeSource struct {
	name string

	mu     sync.Mutex
	data   string
	format loader.Format
	err    error
}

func newFakeSource(name, data string) *fakeSource {
	return &fakeSource{name: name, data: data, format: loader.FormatYAML}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]byte, loader.Format, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte(f.data), f.format, nil
}

func (f *fakeSource) set(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type write struct {
	path  []string
	value any
}

type writableSource struct {
	*fakeSource
	writes []write
	err    error
}

func (w *writableSource) WriteValue(_ context.Context, path []string, value any) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, write{path: path, value: value})
	return nil
}

type memCache struct {
	snaps map[string]cache.Snapshot
}

func (m *memCache) Get(source string) (cache.Snapshot, bool, error) {
	s, ok := m.snaps[source]
	return s, ok, nil
}

func (m *memCache) Put(source string, snap cache.Snapshot) error {
	if m.snaps == nil {
		m.snaps = make(map[string]cache.Snapshot)
	}
	m.snaps[source] = snap
	return nil
}

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) observe(n Node, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, n.AbsolutePath()+" "+ev.String())
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.lines
	r.lines = nil
	return out
}

const vehicleDoc = `
vehicle1:
  mileage: 1234
  doors:
    locked: true
`

func newTestTree(t *testing.T, src Source, opts ...Option) (*Tree, *recorder) {
	t.Helper()
	rec := &recorder{}
	tr := New(append([]Option{WithSource(src)}, opts...)...)
	tr.Subscribe(rec.observe, EventAll, PriorityUserMid)
	return tr, rec
}

func childIDs(n Node) []string {
	var ids []string
	for _, c := range n.Children() {
		ids = append(ids, c.ID())
	}
	return ids
}

func TestRefreshEnablesNewNodesInPreOrder(t *testing.T) {
	tr, rec := newTestTree(t, newFakeSource("svc", vehicleDoc))
	require.NoError(t, tr.Refresh(context.Background()))

	assert.Equal(t, []string{
		"/vehicle1 Enabled",
		"/vehicle1/mileage Enabled",
		"/vehicle1/doors Enabled",
		"/vehicle1/doors/locked Enabled",
	}, rec.take())
}

func TestRefreshReportsChangedAndUnchangedValues(t *testing.T) {
	src := newFakeSource("svc", vehicleDoc)
	tr, rec := newTestTree(t, src)
	require.NoError(t, tr.Refresh(context.Background()))
	rec.take()

	src.set("vehicle1:\n  mileage: 1235\n  doors:\n    locked: true\n")
	require.NoError(t, tr.Refresh(context.Background()))

	assert.Equal(t, []string{
		"/vehicle1/mileage ValueChanged|Updated",
		"/vehicle1/doors/locked Updated",
	}, rec.take())

	n, ok := tr.Lookup("/vehicle1/mileage")
	require.True(t, ok)
	assert.Equal(t, int64(1235), n.(Attribute).Value())
}

func TestRefreshDisablesRemovedNodes(t *testing.T) {
	src := newFakeSource("svc", vehicleDoc)
	tr, rec := newTestTree(t, src)
	require.NoError(t, tr.Refresh(context.Background()))
	rec.take()

	src.set("vehicle1:\n  mileage: 1234\n")
	require.NoError(t, tr.Refresh(context.Background()))

	assert.Equal(t, []string{
		"/vehicle1/mileage Updated",
		"/vehicle1/doors Disabled",
		"/vehicle1/doors/locked Disabled",
	}, rec.take())
	_, ok := tr.Lookup("/vehicle1/doors")
	assert.False(t, ok)
}

func TestRefreshKeepsChildOrder(t *testing.T) {
	src := newFakeSource("svc", "vehicle1:\n  mileage: 1\n  doors: open\n")
	tr, _ := newTestTree(t, src)
	require.NoError(t, tr.Refresh(context.Background()))

	src.set("vehicle1:\n  range: 500\n  mileage: 2\n  doors: open\n")
	require.NoError(t, tr.Refresh(context.Background()))

	v, ok := tr.Lookup("/vehicle1")
	require.True(t, ok)
	assert.Equal(t, []string{"mileage", "doors", "range"}, childIDs(v))
}

func TestRefreshReplacesAttributeWithContainer(t *testing.T) {
	src := newFakeSource("svc", "vehicle1:\n  doors: open\n")
	tr, rec := newTestTree(t, src)
	require.NoError(t, tr.Refresh(context.Background()))
	rec.take()

	src.set("vehicle1:\n  doors:\n    front: open\n")
	require.NoError(t, tr.Refresh(context.Background()))

	assert.Equal(t, []string{
		"/vehicle1/doors Disabled",
		"/vehicle1/doors Enabled",
		"/vehicle1/doors/front Enabled",
	}, rec.take())
}

func TestRefreshNewMeasurement(t *testing.T) {
	src := newFakeSource("svc", `
vehicle1:
  mileage:
    _value: 1234
    _unit: km
    _measured: "2024-01-01T10:00:00Z"
`)
	tr, rec := newTestTree(t, src)
	require.NoError(t, tr.Refresh(context.Background()))
	rec.take()

	n, ok := tr.Lookup("/vehicle1/mileage")
	require.True(t, ok)
	attr := n.(Attribute)
	assert.Equal(t, "1234 km", attr.ValueString())
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), attr.Measured().UTC())

	src.set(`
vehicle1:
  mileage:
    _value: 1234
    _unit: km
    _measured: "2024-01-01T11:00:00Z"
`)
	require.NoError(t, tr.Refresh(context.Background()))
	assert.Equal(t, []string{"/vehicle1/mileage UpdatedNewMeasurement|Updated"}, rec.take())
}

func TestSequencesBecomeIndexedContainers(t *testing.T) {
	tr, _ := newTestTree(t, newFakeSource("svc", "vehicles:\n  - a\n  - b\n"))
	require.NoError(t, tr.Refresh(context.Background()))

	n, ok := tr.Lookup("/vehicles/1")
	require.True(t, ok)
	assert.Equal(t, "b", n.(Attribute).Value())
}

func TestMultipleSourcesMerge(t *testing.T) {
	tr := New(
		WithSource(newFakeSource("a", "vehicle1:\n  mileage: 1\n")),
		WithSource(newFakeSource("b", "vehicle2:\n  mileage: 2\n")),
	)
	require.NoError(t, tr.Refresh(context.Background()))
	assert.Equal(t, []string{"vehicle1", "vehicle2"}, childIDs(tr.Root()))
}

func TestLookup(t *testing.T) {
	tr, _ := newTestTree(t, newFakeSource("svc", vehicleDoc))
	require.NoError(t, tr.Refresh(context.Background()))

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"", "", true},
		{"/", "", true},
		{"/vehicle1/mileage", "/vehicle1/mileage", true},
		{"vehicle1//doors/", "/vehicle1/doors", true},
		{"/vehicle1/mileage/x", "", false},
		{"/vehicle2", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, ok := tr.Lookup(tt.path)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, n.AbsolutePath())
			}
		})
	}
}

func TestObjectString(t *testing.T) {
	tr, _ := newTestTree(t, newFakeSource("svc", vehicleDoc))
	require.NoError(t, tr.Refresh(context.Background()))

	out := tr.Root().String()
	assert.Contains(t, out, "vehicle1")
	assert.Contains(t, out, "mileage: 1234")
	assert.Contains(t, out, "locked: true")
}

func TestAttributes(t *testing.T) {
	tr, _ := newTestTree(t, newFakeSource("svc", vehicleDoc))
	require.NoError(t, tr.Refresh(context.Background()))

	var paths []string
	for _, a := range Attributes(tr.Root()) {
		paths = append(paths, a.AbsolutePath())
	}
	assert.Equal(t, []string{"/vehicle1/mileage", "/vehicle1/doors/locked"}, paths)
}

func TestSetValue(t *testing.T) {
	src := &writableSource{fakeSource: newFakeSource("svc", vehicleDoc)}
	tr, rec := newTestTree(t, src, WithWritable(Writable{Path: "vehicle1/mileage", Type: TypeInt}))
	require.NoError(t, tr.Refresh(context.Background()))
	rec.take()

	n, _ := tr.Lookup("/vehicle1/mileage")
	attr := n.(Attribute)
	require.True(t, attr.Writable())

	require.NoError(t, attr.SetValue(context.Background(), "10"))
	assert.Equal(t, int64(10), attr.Value())
	assert.Equal(t, []write{{path: []string{"vehicle1", "mileage"}, value: int64(10)}}, src.writes)
	assert.Equal(t, []string{"/vehicle1/mileage ValueChanged|Updated"}, rec.take())
}

func TestSetValueRejected(t *testing.T) {
	src := &writableSource{fakeSource: newFakeSource("svc", "vehicle1:\n  mileage: 1\n  mode: eco\n  locked: true\n")}
	tr, _ := newTestTree(t, src,
		WithWritable(Writable{Path: "/vehicle1/mileage", Type: TypeInt, Validate: func(v any) error {
			if v.(int64) < 0 {
				return errors.New("must not be negative")
			}
			return nil
		}}),
		WithWritable(Writable{Path: "/vehicle1/mode", Choices: []string{"eco", "sport"}}),
	)
	require.NoError(t, tr.Refresh(context.Background()))

	tests := []struct {
		path string
		raw  string
	}{
		{"/vehicle1/mileage", "abc"},
		{"/vehicle1/mileage", "-5"},
		{"/vehicle1/mode", "turbo"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"="+tt.raw, func(t *testing.T) {
			n, _ := tr.Lookup(tt.path)
			err := n.(Attribute).SetValue(context.Background(), tt.raw)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.raw, verr.Value)
		})
	}
	assert.Empty(t, src.writes)

	n, _ := tr.Lookup("/vehicle1/locked")
	assert.ErrorIs(t, n.(Attribute).SetValue(context.Background(), "false"), ErrNotWritable)
}

func TestSetValueReadOnlySource(t *testing.T) {
	tr, _ := newTestTree(t, newFakeSource("svc", vehicleDoc), WithWritable(Writable{Path: "/vehicle1/mileage", Type: TypeInt}))
	require.NoError(t, tr.Refresh(context.Background()))

	n, _ := tr.Lookup("/vehicle1/mileage")
	assert.False(t, n.(Attribute).Writable())
	assert.ErrorIs(t, n.(Attribute).SetValue(context.Background(), "1"), ErrNotWritable)
}

func TestSetValueSourceFailure(t *testing.T) {
	src := &writableSource{fakeSource: newFakeSource("svc", vehicleDoc), err: errors.New("offline")}
	tr, rec := newTestTree(t, src, WithWritable(Writable{Path: "/vehicle1/mileage", Type: TypeInt}))
	require.NoError(t, tr.Refresh(context.Background()))
	rec.take()

	n, _ := tr.Lookup("/vehicle1/mileage")
	err := n.(Attribute).SetValue(context.Background(), "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.Equal(t, int64(1234), n.(Attribute).Value())
	assert.Empty(t, rec.take())
}

func TestRefreshFallsBackToCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	src := newFakeSource("svc", vehicleDoc)
	mc := &memCache{}
	tr, _ := newTestTree(t, src, WithCache(mc), WithCacheMaxAge(time.Hour), WithClock(clock))
	require.NoError(t, tr.Refresh(context.Background()))
	require.Contains(t, mc.snaps, "svc")

	src.fail(errors.New("connection refused"))
	now = now.Add(30 * time.Minute)
	require.NoError(t, tr.Refresh(context.Background()))

	now = now.Add(time.Hour)
	err := tr.Refresh(context.Background())
	var rerr *RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "svc", rerr.Source)
}

func TestRefreshAuthErrorSkipsCache(t *testing.T) {
	src := newFakeSource("svc", vehicleDoc)
	tr, _ := newTestTree(t, src, WithCache(&memCache{}), WithCacheMaxAge(time.Hour))
	require.NoError(t, tr.Refresh(context.Background()))

	src.fail(&AuthenticationError{Source: "svc", Err: errors.New("401")})
	var aerr *AuthenticationError
	require.ErrorAs(t, tr.Refresh(context.Background()), &aerr)
}

func TestRefreshDecodeError(t *testing.T) {
	src := newFakeSource("svc", "{not json")
	src.format = loader.FormatJSON
	tr, _ := newTestTree(t, src)
	var rerr *RetrievalError
	require.ErrorAs(t, tr.Refresh(context.Background()), &rerr)
}

func TestObserverPriorityOrder(t *testing.T) {
	var order []string
	tr := New(WithSource(newFakeSource("svc", "a: 1\n")))
	sub := func(name string, prio Priority) {
		tr.Subscribe(func(Node, Event) { order = append(order, name) }, EventAll, prio)
	}
	sub("user-low", PriorityUserLow)
	sub("system-high", PrioritySystemHigh)
	sub("user-mid-1", PriorityUserMid)
	sub("user-mid-2", PriorityUserMid)
	tr.Subscribe(func(Node, Event) { order = append(order, "disabled-only") }, EventDisabled, PrioritySystemHigh)

	require.NoError(t, tr.Refresh(context.Background()))
	assert.Equal(t, []string{"system-high", "user-mid-1", "user-mid-2", "user-low"}, order)
}

func TestStartupPollsUntilShutdown(t *testing.T) {
	src := newFakeSource("svc", "vehicle1:\n  mileage: 1\n")
	tr, _ := newTestTree(t, src)
	require.NoError(t, tr.Startup(context.Background(), 10*time.Millisecond))
	defer tr.Shutdown()

	src.set("vehicle1:\n  mileage: 2\n")
	assert.Eventually(t, func() bool {
		n, ok := tr.Lookup("/vehicle1/mileage")
		return ok && n.(Attribute).Value() == int64(2)
	}, 2*time.Second, 10*time.Millisecond)

	tr.Shutdown()
	tr.Shutdown()
}

func TestExport(t *testing.T) {
	src := newFakeSource("svc", `
vehicle1:
  mileage:
    _value: 1234
    _unit: km
  doors:
    locked: true
`)
	tr, _ := newTestTree(t, src)
	require.NoError(t, tr.Refresh(context.Background()))

	got := loader.Plain(Export(tr.Root()))
	assert.Equal(t, map[string]any{
		"vehicle1": map[string]any{
			"mileage": map[string]any{"_value": int64(1234), "_unit": "km"},
			"doors":   map[string]any{"locked": true},
		},
	}, got)
}

func TestEventString(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{EventNone, "None"},
		{EventEnabled, "Enabled"},
		{EventValueChanged | EventUpdated, "ValueChanged|Updated"},
		{EventAll, "Enabled|Disabled|ValueChanged|UpdatedNewMeasurement|Updated"},
		{Event(1 << 8), "0x100"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(uint16(tt.ev)), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.String())
			assert.True(t, tt.ev == EventNone || tt.ev.Has(tt.ev))
		})
	}
}

func TestParseValueType(t *testing.T) {
	vt, err := ParseValueType("")
	require.NoError(t, err)
	assert.Equal(t, TypeString, vt)

	vt, err = ParseValueType(" Float ")
	require.NoError(t, err)
	assert.Equal(t, TypeFloat, vt)

	_, err = ParseValueType("date")
	require.Error(t, err)
}
