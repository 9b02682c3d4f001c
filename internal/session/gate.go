// Package session derives the warmup/recording gate from engine state.
//
// Nothing here is stored: every value is a pure function of the current
// mirrored state, so the gate is always consistent with the last reconcile.
package session

import (
	"fmt"

	"github.com/rbright/nolook/internal/engine"
)

// Phase names the gate's visible situation.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseWarming  Phase = "warming"
	PhaseResuming Phase = "resuming"
)

// Gate is the derived warmup signal consumed by renderers.
type Gate struct {
	Phase        Phase
	Show         bool
	Progress     float64
	RemainingSec int
	TotalSec     int
}

// FromState derives the gate for st.
func FromState(st engine.State) Gate {
	g := Gate{
		Show:         ShowGate(st.WarmingUp, st.SessionActive, st.WarmupRemainingSec),
		Progress:     Progress(st.WarmupTotalSec, st.WarmupRemainingSec),
		RemainingSec: max(st.WarmupRemainingSec, 0),
		TotalSec:     max(st.WarmupTotalSec, 0),
	}
	switch {
	case st.WarmingUp:
		g.Phase = PhaseWarming
	case g.Show:
		g.Phase = PhaseResuming
	default:
		g.Phase = PhaseIdle
	}
	return g
}

// Remaining formats the countdown as MM:SS.
func (g Gate) Remaining() string {
	return FormatMMSS(g.RemainingSec)
}

// Percent is progress as a whole percentage.
func (g Gate) Percent() int {
	return int(g.Progress * 100)
}

// Title is the overlay heading.
func (g Gate) Title() string {
	if g.Phase == PhaseResuming {
		return "Resuming recording"
	}
	return "Recording warmup"
}

// Description tells the operator what to do while the gate is up.
func (g Gate) Description() string {
	return fmt.Sprintf("Please stay still for %d seconds", g.TotalSec)
}

// Progress is (total-remaining)/total clamped to [0,1]; 0 when total is 0.
func Progress(totalSec, remainingSec int) float64 {
	if totalSec <= 0 {
		return 0
	}
	p := float64(totalSec-remainingSec) / float64(totalSec)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// ShowGate reports whether the warmup overlay is visible.
func ShowGate(warmingUp, sessionActive bool, remainingSec int) bool {
	return warmingUp || (sessionActive && remainingSec > 0)
}

// FormatMMSS renders seconds as zero-padded minutes and seconds. Negative
// input renders as 00:00; minutes are not capped at 59.
func FormatMMSS(sec int) string {
	sec = max(sec, 0)
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
