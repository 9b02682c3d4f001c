// Package engine defines the engine state snapshot, its lenient decoding from
// every supported wire format, and normalization into a fully defaulted State.
package engine

import (
	"math"
	"slices"
	"strings"
)

// Mode is the feed the engine currently presents.
type Mode string

const (
	ModeReal Mode = "REAL"
	ModeFake Mode = "FAKE"
)

// DefaultWarmupTotalSec applies when a snapshot omits warmupTotalSec.
const DefaultWarmupTotalSec = 30

// Transcript is the engine's speech-to-text view: finalized lines plus the
// line still being spoken.
type Transcript struct {
	History []string
	Current string
}

func (t Transcript) clone() Transcript {
	return Transcript{History: slices.Clone(t.History), Current: t.Current}
}

// State is the normalized, fully defaulted mirror of engine state.
// One-shot fields (reaction, notice) never live here.
type State struct {
	Mode               Mode
	Ratio              float64
	LockedFake         bool
	PauseFake          bool
	ForceReal          bool
	Reasons            []string
	STT                Transcript
	AssistantEnabled   bool
	SessionActive      bool
	WarmingUp          bool
	WarmupTotalSec     int
	WarmupRemainingSec int
}

// DefaultState is the model before any snapshot arrives.
func DefaultState() State {
	return State{
		Mode:           ModeReal,
		Reasons:        []string{},
		STT:            Transcript{History: []string{}},
		WarmupTotalSec: DefaultWarmupTotalSec,
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	out := s
	out.Reasons = slices.Clone(s.Reasons)
	out.STT = s.STT.clone()
	return out
}

// RatioPercent is the ratio rounded to a whole percentage.
func (s State) RatioPercent() int {
	return int(math.Round(s.Ratio * 100))
}

// ParseMode maps wire text to a Mode; anything unrecognized is REAL.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToUpper(strings.TrimSpace(raw))) {
	case ModeFake:
		return ModeFake
	default:
		return ModeReal
	}
}

// ClampRatio bounds r to [0,1]; NaN is treated as 0.
func ClampRatio(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

func nonNegativeInt(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
