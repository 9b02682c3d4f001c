// Package reconcile folds engine snapshots into the local mirror and turns
// one-shot fields and the warmup-finished edge into notifications.
package reconcile

import (
	"log/slog"
	"sync"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/logging"
	"github.com/rbright/nolook/internal/notify"
	"github.com/rbright/nolook/internal/transcript"
)

const (
	ReactionPrefix    = "🤖 "
	RecordingComplete = "✅ Recording complete!"
)

// LineSink receives transcript lines the first time they are seen as final.
type LineSink interface {
	Finalized(lines []string)
}

// Reconciler owns the mirrored model and the one bit of warmup history used
// for edge detection. Reconcile must be called from a single goroutine;
// Model may be called from any.
type Reconciler struct {
	notifier   notify.Emitter
	transcript *transcript.Buffer
	lines      LineSink
	logger     *slog.Logger

	mu            sync.RWMutex
	model         engine.State
	prevWarmingUp bool
	applied       uint64
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithLineSink forwards newly finalized transcript lines to sink.
func WithLineSink(sink LineSink) Option {
	return func(r *Reconciler) { r.lines = sink }
}

// WithLogger sets the logger used for debug traces.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New constructs a reconciler holding the default model.
func New(notifier notify.Emitter, buf *transcript.Buffer, opts ...Option) *Reconciler {
	if buf == nil {
		buf = transcript.New()
	}
	r := &Reconciler{
		notifier:   notifier,
		transcript: buf,
		model:      engine.DefaultState(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// Reconcile applies one snapshot. A nil snapshot is ignored entirely.
func (r *Reconciler) Reconcile(s *engine.Snapshot) {
	if s == nil {
		return
	}
	n := s.Normalize()

	r.mu.Lock()
	next := n.State
	if !n.HasSTT {
		next.STT = r.model.STT
	}
	if !n.HasAssistant {
		next.AssistantEnabled = r.model.AssistantEnabled
	}
	warmupDone := r.prevWarmingUp && !next.WarmingUp
	r.prevWarmingUp = next.WarmingUp
	r.model = next
	r.applied++
	r.mu.Unlock()

	if n.HasSTT {
		added := r.transcript.Replace(next.STT.History, next.STT.Current)
		if len(added) > 0 && r.lines != nil {
			r.lines.Finalized(added)
		}
	}

	r.logger.Debug("snapshot reconciled",
		"mode", next.Mode,
		"ratio", next.Ratio,
		"warming_up", next.WarmingUp,
		"remaining_sec", next.WarmupRemainingSec,
	)

	if n.Reaction != "" {
		r.emit(ReactionPrefix + n.Reaction)
	}
	if n.Notice != "" {
		r.emit(n.Notice)
	}
	if warmupDone {
		r.logger.Info("warmup finished")
		r.emit(RecordingComplete)
	}
}

// Model returns a deep copy of the mirrored state.
func (r *Reconciler) Model() engine.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model.Clone()
}

// Applied counts reconciled snapshots; nil snapshots are not counted.
func (r *Reconciler) Applied() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.applied
}

// Transcript exposes the transcript buffer kept in step with the model.
func (r *Reconciler) Transcript() *transcript.Buffer {
	return r.transcript
}

func (r *Reconciler) emit(message string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Emit(message, notify.KindSuccess)
}
