package engine

import "math"

// Snapshot is one engine message as received. A nil pointer means the key was
// absent or carried a value of the wrong type.
type Snapshot struct {
	Mode               *string
	Ratio              *float64
	LockedFake         *bool
	PauseFake          *bool
	ForceReal          *bool
	Reasons            []string
	STT                *Transcript
	AssistantEnabled   *bool
	SessionActive      *bool
	WarmingUp          *bool
	WarmupTotalSec     *float64
	WarmupRemainingSec *float64
	Reaction           string
	Notice             string
}

// Normalized is a snapshot after defaulting. HasSTT and HasAssistant report
// whether those optional fields should replace the current model.
type Normalized struct {
	State        State
	HasSTT       bool
	HasAssistant bool
	Reaction     string
	Notice       string
}

// Normalize applies the defaulting rules to every field.
func (s *Snapshot) Normalize() Normalized {
	out := Normalized{State: DefaultState()}
	if s == nil {
		return out
	}
	st := &out.State

	if s.Mode != nil {
		st.Mode = ParseMode(*s.Mode)
	}
	if s.Ratio != nil {
		st.Ratio = ClampRatio(*s.Ratio)
	}
	st.LockedFake = deref(s.LockedFake)
	st.PauseFake = deref(s.PauseFake)
	st.ForceReal = deref(s.ForceReal)
	if s.Reasons != nil {
		st.Reasons = append([]string{}, s.Reasons...)
	}
	st.SessionActive = deref(s.SessionActive)
	st.WarmingUp = deref(s.WarmingUp)
	if s.WarmupTotalSec != nil {
		st.WarmupTotalSec = nonNegativeInt(*s.WarmupTotalSec)
	}
	if s.WarmupRemainingSec != nil {
		st.WarmupRemainingSec = nonNegativeInt(*s.WarmupRemainingSec)
	}

	if s.STT != nil {
		out.HasSTT = true
		st.STT = s.STT.clone()
		if st.STT.History == nil {
			st.STT.History = []string{}
		}
	}
	if s.AssistantEnabled != nil {
		out.HasAssistant = true
		st.AssistantEnabled = *s.AssistantEnabled
	}

	out.Reaction = s.Reaction
	out.Notice = s.Notice
	return out
}

// FromMap reads a snapshot out of a generic decoded object. It never fails:
// keys with unexpected types are treated as absent. A nil map is no snapshot
// at all, not an empty one.
func FromMap(m map[string]any) *Snapshot {
	if m == nil {
		return nil
	}
	s := &Snapshot{}

	if v, ok := m["mode"].(string); ok {
		s.Mode = &v
	}
	s.Ratio = number(m["ratio"])
	s.LockedFake = boolean(m["lockedFake"])
	s.PauseFake = boolean(m["pauseFake"])
	s.ForceReal = boolean(m["forceReal"])
	s.Reasons = stringList(m["reasons"])
	s.AssistantEnabled = boolean(m["assistantEnabled"])
	s.SessionActive = boolean(m["sessionActive"])
	s.WarmingUp = boolean(m["warmingUp"])
	s.WarmupTotalSec = number(m["warmupTotalSec"])
	s.WarmupRemainingSec = number(m["warmupRemainingSec"])

	s.STT = transcript(m["stt"])
	if s.STT == nil {
		s.STT = transcript(m["sttData"])
	}

	s.Reaction = oneShot(m["reaction"])
	s.Notice = oneShot(m["notice"])
	return s
}

func deref(b *bool) bool {
	return b != nil && *b
}

func boolean(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// number accepts every numeric type produced by the JSON, MessagePack and
// protobuf decoders.
func number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return nil
	}
	if math.IsInf(f, 0) {
		f = 0
	}
	return &f
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func transcript(v any) *Transcript {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	t := &Transcript{History: stringList(obj["history"])}
	if t.History == nil {
		t.History = []string{}
	}
	if cur, ok := obj["current"].(string); ok {
		t.Current = cur
	}
	return t
}

func oneShot(v any) string {
	s, _ := v.(string)
	return s
}
