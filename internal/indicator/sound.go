package indicator

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueNone cueKind = iota
	cueSuccess
	cueError
)

const (
	cueRate   = 16000
	cueVolume = 0.18
	cueGap    = 22 * time.Millisecond
	cueRamp   = 5 * time.Millisecond
)

// note is one sine segment of a chime.
type note struct {
	hz  float64
	dur time.Duration
}

// chime is a sequence of notes separated by short silences.
type chime []note

// Success rises, error falls.
var chimes = map[cueKind]chime{
	cueSuccess: {{hz: 740, dur: 65 * time.Millisecond}, {hz: 988, dur: 90 * time.Millisecond}},
	cueError:   {{hz: 480, dur: 75 * time.Millisecond}, {hz: 360, dur: 90 * time.Millisecond}},
}

var renderChimes = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(chimes))
	for kind, c := range chimes {
		out[kind] = c.render(cueVolume)
	}
	return out
})

func cueSamples(kind cueKind) []int16 {
	return renderChimes()[kind]
}

func emitCue(kind cueKind) error {
	pcm := cueSamples(kind)
	if len(pcm) == 0 {
		return nil
	}
	return playPCM(pcm)
}

func playPCM(pcm []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("nolook"),
		pulse.ClientApplicationIconName("camera-video"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		pcmReader(pcm),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("nolook notification cue"),
	)
	if err != nil {
		return fmt.Errorf("open cue playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}

// pcmReader feeds pcm once and then reports EndOfData.
func pcmReader(pcm []int16) pulse.Reader {
	rest := pcm
	return pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, rest)
		rest = rest[n:]
		if len(rest) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})
}

func (c chime) render(volume float64) []int16 {
	if len(c) == 0 || volume <= 0 {
		return nil
	}
	gap := sampleCount(cueGap)
	var pcm []int16
	for i, n := range c {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, n.render(volume)...)
	}
	return pcm
}

func (n note) render(volume float64) []int16 {
	count := sampleCount(n.dur)
	if count == 0 || n.hz <= 0 || volume <= 0 {
		return nil
	}
	ramp := max(min(count/10, sampleCount(cueRamp)), 1)

	pcm := make([]int16, count)
	step := 2 * math.Pi * n.hz / cueRate
	for i := range pcm {
		gain := volume * envelope(i, count, ramp)
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * gain * math.MaxInt16))
	}
	return pcm
}

// envelope ramps linearly in over the first ramp samples and out over the
// last ramp samples.
func envelope(i, count, ramp int) float64 {
	in := float64(i) / float64(ramp)
	out := float64(count-1-i) / float64(ramp)
	return min(1, in, out)
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueRate))
}
