package tree

import (
	"strconv"
	"strings"
	"sync"
)

// Event is a bit set of change kinds. One notification may carry several.
type Event uint16

const (
	// EventEnabled reports a node that was newly created or became available.
	EventEnabled Event = 1 << iota
	// EventDisabled reports a node that is no longer available.
	EventDisabled
	// EventValueChanged reports an attribute whose value changed.
	EventValueChanged
	// EventUpdated reports an attribute refreshed from the server or cache.
	EventUpdated
	// EventUpdatedNewMeasurement reports an attribute carrying a newer
	// measurement from the vehicle.
	EventUpdatedNewMeasurement

	// EventNone is the empty set.
	EventNone Event = 0
	// EventAll selects every known kind.
	EventAll = EventEnabled | EventDisabled | EventValueChanged | EventUpdated | EventUpdatedNewMeasurement
)

var eventNames = []struct {
	kind Event
	name string
}{
	{EventEnabled, "Enabled"},
	{EventDisabled, "Disabled"},
	{EventValueChanged, "ValueChanged"},
	{EventUpdatedNewMeasurement, "UpdatedNewMeasurement"},
	{EventUpdated, "Updated"},
}

// Has reports whether every bit of kind is set in e.
func (e Event) Has(kind Event) bool {
	return kind != 0 && e&kind == kind
}

// String joins the names of the set kinds, e.g. "ValueChanged|Updated".
// Unknown bits are appended as a hexadecimal remainder.
func (e Event) String() string {
	if e == EventNone {
		return "None"
	}
	var parts []string
	rest := e
	for _, n := range eventNames {
		if e&n.kind != 0 {
			parts = append(parts, n.name)
			rest &^= n.kind
		}
	}
	if rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}

// Priority orders observer tiers. Lower values are notified first, so
// system observers run before user observers.
type Priority int

const (
	PrioritySystemHigh Priority = iota
	PrioritySystemMid
	PrioritySystemLow
	PriorityUserHigh
	PriorityUserMid
	PriorityUserLow
)

// Observer receives change notifications. It may be called from a
// background goroutine.
type Observer func(node Node, event Event)

type subscription struct {
	fn   Observer
	mask Event
}

// observers holds subscriptions per priority tier. Tiers are append-only.
type observers struct {
	mu    sync.RWMutex
	tiers map[Priority][]subscription
	order []Priority
}

func (o *observers) add(fn Observer, mask Event, prio Priority) {
	if fn == nil || mask == EventNone {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tiers == nil {
		o.tiers = make(map[Priority][]subscription)
	}
	if _, ok := o.tiers[prio]; !ok {
		o.order = insertSorted(o.order, prio)
	}
	o.tiers[prio] = append(o.tiers[prio], subscription{fn: fn, mask: mask})
}

func insertSorted(order []Priority, p Priority) []Priority {
	i := 0
	for i < len(order) && order[i] < p {
		i++
	}
	order = append(order, 0)
	copy(order[i+1:], order[i:])
	order[i] = p
	return order
}

// snapshot returns the current subscriptions in dispatch order.
func (o *observers) snapshot() []subscription {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var subs []subscription
	for _, p := range o.order {
		subs = append(subs, o.tiers[p]...)
	}
	return subs
}

func (o *observers) notify(node Node, event Event) {
	for _, s := range o.snapshot() {
		if s.mask&event != 0 {
			s.fn(node, event)
		}
	}
}
