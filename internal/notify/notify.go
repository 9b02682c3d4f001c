// Package notify implements the ordered, self-expiring notification queue that
// surfaces one-shot events to the operator.
package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags a notification for presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is one transient message.
type Notification struct {
	ID        string
	Message   string
	Kind      Kind
	CreatedAt time.Time
}

// Sink mirrors emitted notifications somewhere else, e.g. the desktop.
type Sink interface {
	Show(n Notification)
}

// Emitter is the write side used by the reconciler and command dispatcher.
type Emitter interface {
	Emit(message string, kind Kind) string
}

type timer interface {
	Stop() bool
}

// Options configures a Channel. Zero TTL disables auto-expiry; zero
// MaxVisible leaves the queue unbounded.
type Options struct {
	TTL        time.Duration
	MaxVisible int
	Sink       Sink

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
}

// Channel is safe for concurrent use.
type Channel struct {
	opts Options

	mu     sync.Mutex
	items  []Notification
	timers map[string]timer
	subs   map[chan struct{}]struct{}
	closed bool
}

// New builds a channel.
func New(opts Options) *Channel {
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.afterFunc == nil {
		opts.afterFunc = func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }
	}
	return &Channel{
		opts:   opts,
		timers: make(map[string]timer),
		subs:   make(map[chan struct{}]struct{}),
	}
}

// Emit appends a notification and returns its id. After Close it does nothing
// and returns "".
func (c *Channel) Emit(message string, kind Kind) string {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ""
	}

	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		CreatedAt: c.opts.now(),
	}
	c.items = append(c.items, n)
	if c.opts.TTL > 0 {
		id := n.ID
		c.timers[id] = c.opts.afterFunc(c.opts.TTL, func() { c.Remove(id) })
	}
	for c.opts.MaxVisible > 0 && len(c.items) > c.opts.MaxVisible {
		c.dropLocked(c.items[0].ID)
	}
	c.signalLocked()
	sink := c.opts.Sink
	c.mu.Unlock()

	if sink != nil {
		sink.Show(n)
	}
	return n.ID
}

// Remove deletes the notification with id and reports whether it existed.
func (c *Channel) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dropLocked(id) {
		return false
	}
	c.signalLocked()
	return true
}

// List returns the live notifications in emission order.
func (c *Channel) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Subscribe returns a change signal and its cancel func. Signals coalesce: a
// slow reader sees at least one pending signal, never a backlog.
func (c *Channel) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// Close stops expiry timers, closes subscriptions and turns later Emit calls
// into no-ops. Existing entries stay readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
}

func (c *Channel) dropLocked(id string) bool {
	idx := slices.IndexFunc(c.items, func(n Notification) bool { return n.ID == id })
	if idx < 0 {
		return false
	}
	c.items = slices.Delete(c.items, idx, idx+1)
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	return true
}

func (c *Channel) signalLocked() {
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
