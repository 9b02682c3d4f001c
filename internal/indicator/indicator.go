// Package indicator mirrors notifications onto the desktop and plays short
// audio cues for them.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/nolook/internal/config"
	"github.com/rbright/nolook/internal/hypr"
	"github.com/rbright/nolook/internal/logging"
	"github.com/rbright/nolook/internal/notify"
)

// Backends accepted by indicator.backend.
const (
	BackendDesktop = "desktop"
	BackendHypr    = "hypr"
)

const dispatchTimeout = 400 * time.Millisecond

type style struct {
	icon    int
	color   string
	urgency byte
	cue     cueKind
}

var styles = map[notify.Kind]style{
	notify.KindSuccess: {icon: hypr.IconOK, color: "rgb(a6e3a1)", urgency: urgencyNormal, cue: cueSuccess},
	notify.KindError:   {icon: hypr.IconError, color: "rgb(f38ba8)", urgency: urgencyCritical, cue: cueError},
	notify.KindInfo:    {icon: hypr.IconInfo, color: "rgb(89b4fa)", urgency: urgencyLow},
}

// Sink is a notify.Sink. Show never blocks the caller; dispatches are
// serialized in the background.
type Sink struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	mu                    sync.Mutex
	desktopNotificationID uint32
	dispatchMu            sync.Mutex
	soundMu               sync.Mutex
	pending               sync.WaitGroup
	closed                bool

	playCue func(cueKind) error
}

// New creates a sink from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Sink {
	return &Sink{
		cfg:     cfg,
		logger:  logging.OrDiscard(logger),
		playCue: emitCue,
	}
}

// Show mirrors n through the configured backend and cue.
func (s *Sink) Show(n notify.Notification) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending.Add(2)
	s.mu.Unlock()

	st, ok := styles[n.Kind]
	if !ok {
		st = styles[notify.KindInfo]
	}

	go func() {
		defer s.pending.Done()
		s.cue(st.cue)
	}()
	go func() {
		defer s.pending.Done()
		if !s.cfg.Enable {
			return
		}
		s.dispatchMu.Lock()
		defer s.dispatchMu.Unlock()
		s.run(func(ctx context.Context) error {
			return s.notify(ctx, st, n.Message)
		})
	}()
}

// Close waits for in-flight dispatches and dismisses the desktop surface.
// Later Show calls are ignored.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.pending.Wait()
	if s.cfg.Enable {
		s.run(s.dismiss)
	}
}

func (s *Sink) timeoutMS() int {
	if s.cfg.TimeoutMS <= 0 {
		return 3000
	}
	return s.cfg.TimeoutMS
}

func (s *Sink) notify(ctx context.Context, st style, text string) error {
	if strings.EqualFold(strings.TrimSpace(s.cfg.Backend), BackendHypr) {
		return hypr.Notify(ctx, st.icon, s.timeoutMS(), st.color, text)
	}
	return s.notifyDesktop(ctx, st, text)
}

func (s *Sink) dismiss(ctx context.Context) error {
	if strings.EqualFold(strings.TrimSpace(s.cfg.Backend), BackendHypr) {
		return hypr.DismissNotify(ctx)
	}
	return s.dismissDesktop(ctx)
}

// notifyDesktop replaces the previous bubble so toasts do not pile up.
func (s *Sink) notifyDesktop(ctx context.Context, st style, text string) error {
	s.mu.Lock()
	replaceID := s.desktopNotificationID
	s.mu.Unlock()

	appName := strings.TrimSpace(s.cfg.DesktopAppName)
	if appName == "" {
		appName = "nolook"
	}

	id, err := showBubble(ctx, bubble{
		app:       appName,
		replaces:  replaceID,
		summary:   text,
		urgency:   st.urgency,
		timeoutMS: s.timeoutMS(),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.desktopNotificationID = id
	s.mu.Unlock()
	return nil
}

func (s *Sink) dismissDesktop(ctx context.Context) error {
	s.mu.Lock()
	id := s.desktopNotificationID
	s.desktopNotificationID = 0
	s.mu.Unlock()

	if id == 0 {
		return nil
	}
	return closeBubble(ctx, id)
}

func (s *Sink) run(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Debug("indicator dispatch failed", "backend", s.cfg.Backend, "error", err.Error())
	}
}

func (s *Sink) cue(kind cueKind) {
	if !s.cfg.SoundEnable || kind == cueNone {
		return
	}
	s.soundMu.Lock()
	defer s.soundMu.Unlock()
	if err := s.playCue(kind); err != nil {
		s.logger.Debug("indicator audio cue failed", "error", err.Error())
	}
}
