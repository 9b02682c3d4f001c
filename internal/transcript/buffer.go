// Package transcript holds the mirrored speech transcript: an ordered list of
// finalized lines plus at most one in-progress line.
package transcript

import (
	"slices"
	"strings"
	"sync"
)

// Buffer is safe for concurrent use. Writers are the reconciler; readers are
// renderers and the clipboard export.
type Buffer struct {
	mu      sync.RWMutex
	history []string
	current string
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{history: []string{}}
}

// Replace swaps the whole buffer for the engine's view and returns the lines
// that became final since the previous view.
func (b *Buffer) Replace(history []string, current string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := NewlyFinal(b.history, history)
	b.history = slices.Clone(history)
	if b.history == nil {
		b.history = []string{}
	}
	b.current = current
	return added
}

// AppendFinal finalizes line and clears the in-progress text.
func (b *Buffer) AppendFinal(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, line)
	b.current = ""
}

// SetCurrent replaces the in-progress line.
func (b *Buffer) SetCurrent(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = text
}

// Lines returns a copy of the finalized lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.history)
}

// Current returns the in-progress line, possibly empty.
func (b *Buffer) Current() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Empty reports whether there is nothing to show.
func (b *Buffer) Empty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.history) == 0 && b.current == ""
}

// Text joins finalized lines and the in-progress line, one per line, with
// whitespace runs collapsed.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := make([]string, 0, len(b.history)+1)
	for _, line := range append(slices.Clone(b.history), b.current) {
		normalized := strings.Join(strings.Fields(line), " ")
		if normalized == "" {
			continue
		}
		lines = append(lines, normalized)
	}
	return strings.Join(lines, "\n")
}

// NewlyFinal returns the lines of next that were not already final in prev.
//
// The engine keeps a bounded window of history, so next may have dropped lines
// from the front of prev. The longest suffix of prev that is a prefix of next
// is treated as already seen.
func NewlyFinal(prev, next []string) []string {
	if len(next) == 0 {
		return nil
	}
	for overlap := min(len(prev), len(next)); overlap > 0; overlap-- {
		if slices.Equal(prev[len(prev)-overlap:], next[:overlap]) {
			return slices.Clone(next[overlap:])
		}
	}
	return slices.Clone(next)
}
