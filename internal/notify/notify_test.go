package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) afterFunc(d time.Duration, fn func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	if !t.stopped {
		t.fn()
	}
}

type recordingSink struct {
	mu    sync.Mutex
	shown []Notification
}

func (s *recordingSink) Show(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, n)
}

func messages(list []Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Message)
	}
	return out
}

func TestEmitPreservesOrderAndAssignsIDs(t *testing.T) {
	c := New(Options{})

	first := c.Emit("one", KindSuccess)
	second := c.Emit("two", KindInfo)
	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)

	list := c.List()
	require.Equal(t, []string{"one", "two"}, messages(list))
	require.Equal(t, KindSuccess, list[0].Kind)
	require.Equal(t, first, list[0].ID)
	require.False(t, list[0].CreatedAt.IsZero())
}

func TestRemoveByID(t *testing.T) {
	c := New(Options{})
	a := c.Emit("a", KindSuccess)
	c.Emit("b", KindSuccess)

	require.True(t, c.Remove(a))
	require.False(t, c.Remove(a))
	require.False(t, c.Remove("missing"))
	require.Equal(t, []string{"b"}, messages(c.List()))
}

func TestAutoExpiry(t *testing.T) {
	clock := &fakeClock{}
	c := New(Options{TTL: 3 * time.Second, afterFunc: clock.afterFunc})

	c.Emit("first", KindSuccess)
	c.Emit("second", KindSuccess)
	require.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, clock.delays)

	clock.fire(0)
	require.Equal(t, []string{"second"}, messages(c.List()))

	clock.fire(1)
	require.Empty(t, c.List())
}

func TestManualRemoveStopsExpiryTimer(t *testing.T) {
	clock := &fakeClock{}
	c := New(Options{TTL: time.Second, afterFunc: clock.afterFunc})

	id := c.Emit("x", KindSuccess)
	require.True(t, c.Remove(id))
	require.True(t, clock.timers[0].stopped)
}

func TestZeroTTLNeverSchedulesExpiry(t *testing.T) {
	clock := &fakeClock{}
	c := New(Options{afterFunc: clock.afterFunc})
	c.Emit("sticky", KindInfo)
	require.Empty(t, clock.timers)
	require.Len(t, c.List(), 1)
}

func TestMaxVisibleDropsOldest(t *testing.T) {
	c := New(Options{MaxVisible: 2})
	c.Emit("1", KindSuccess)
	c.Emit("2", KindSuccess)
	c.Emit("3", KindSuccess)
	require.Equal(t, []string{"2", "3"}, messages(c.List()))
}

func TestEmitAfterCloseIsNoop(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordingSink{}
	c := New(Options{TTL: time.Second, Sink: sink, afterFunc: clock.afterFunc})
	c.Emit("before", KindSuccess)

	c.Close()
	c.Close()
	require.True(t, clock.timers[0].stopped)

	require.Empty(t, c.Emit("after", KindSuccess))
	require.Equal(t, []string{"before"}, messages(c.List()))
	require.Len(t, sink.shown, 1)
}

func TestSinkMirrorsEmissions(t *testing.T) {
	sink := &recordingSink{}
	c := New(Options{Sink: sink})
	id := c.Emit("PauseFake: ON", KindSuccess)

	require.Len(t, sink.shown, 1)
	require.Equal(t, id, sink.shown[0].ID)
	require.Equal(t, "PauseFake: ON", sink.shown[0].Message)
}

func TestSubscribeCoalescesSignals(t *testing.T) {
	c := New(Options{})
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Emit("a", KindSuccess)
	c.Emit("b", KindSuccess)

	select {
	case <-ch:
	default:
		t.Fatal("expected change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)
}

func TestCloseClosesSubscriptions(t *testing.T) {
	c := New(Options{})
	ch, cancel := c.Subscribe()
	c.Close()
	_, open := <-ch
	require.False(t, open)
	cancel()

	late, lateCancel := c.Subscribe()
	_, open = <-late
	require.False(t, open)
	lateCancel()
}

func TestConcurrentEmitAndRemove(t *testing.T) {
	c := New(Options{TTL: time.Millisecond})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := c.Emit("x", KindInfo)
				c.Remove(id)
			}
		}()
	}
	wg.Wait()
	c.Close()
}
