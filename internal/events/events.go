// Package events renders tree change notifications as a timestamped stream.
package events

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/ccs/internal/formatter"
	"github.com/oakwood-commons/ccs/internal/navigator"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

// TimestampLayout is the layout of the delivery time prefixed to each line.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Subscriber is the part of the tree the printer registers with.
type Subscriber interface {
	Subscribe(fn tree.Observer, mask tree.Event, prio tree.Priority)
}

// Printer writes one line per notification, in delivery order. Observe is
// safe to call from any goroutine.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	now    func() time.Time
	styles formatter.Styles
	log    logr.Logger
}

// Option configures a Printer.
type Option func(*Printer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Printer) {
		p.now = now
	}
}

// WithStyles colors timestamps and paths.
func WithStyles(s formatter.Styles) Option {
	return func(p *Printer) {
		p.styles = s
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(l logr.Logger) Option {
	return func(p *Printer) {
		p.log = l
	}
}

// NewPrinter returns a printer writing to out.
func NewPrinter(out io.Writer, opts ...Option) *Printer {
	p := &Printer{out: out, now: time.Now, log: logr.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers the printer for every event kind at user priority.
func (p *Printer) Subscribe(s Subscriber) {
	s.Subscribe(p.Observe, tree.EventAll, tree.PriorityUserMid)
}

// Observe renders a single notification.
func (p *Printer) Observe(n tree.Node, ev tree.Event) {
	ts := p.now().Format(TimestampLayout)
	path := p.styles.Path(navigator.DisplayPath(n))

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.out, "%s: %s\n", p.styles.Timestamp(ts), describe(path, n, ev)); err != nil {
		p.log.Error(err, "writing event")
	}
}

// describe picks the message from the first matching kind, in fixed order.
func describe(path string, n tree.Node, ev tree.Event) string {
	switch {
	case ev.Has(tree.EventEnabled):
		return path + ": new object created"
	case ev.Has(tree.EventDisabled):
		return path + ": object not available anymore"
	case ev.Has(tree.EventValueChanged):
		return path + ": new value: " + valueOf(n)
	case ev.Has(tree.EventUpdatedNewMeasurement):
		return path + ": was updated from vehicle but did not change: " + valueOf(n)
	case ev.Has(tree.EventUpdated):
		return path + ": was updated from server but did not change: " + valueOf(n)
	default:
		return fmt.Sprintf("(%d): %s: %s", uint16(ev), path, valueOf(n))
	}
}

func valueOf(n tree.Node) string {
	if a, ok := n.(tree.Attribute); ok {
		return a.ValueString()
	}
	return ""
}

// Stream subscribes p to s, calls start if given, and blocks until ctx is
// done. start runs after subscribing so nothing it triggers is missed. An
// interrupt ends the stream with a nil error.
func Stream(ctx context.Context, s Subscriber, p *Printer, start func(context.Context) error) error {
	p.Subscribe(s)
	if start != nil {
		if err := start(ctx); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}
