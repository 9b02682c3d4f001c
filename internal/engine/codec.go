package engine

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// DecodeJSON decodes a JSON object snapshot. Only a top-level value that is
// not an object is an error; bad fields are defaulted later. A null body
// decodes to a nil snapshot.
func DecodeJSON(data []byte) (*Snapshot, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode json snapshot: %w", err)
	}
	return FromMap(m), nil
}

// DecodeMsgpack decodes a MessagePack map snapshot; nil decodes to nil.
func DecodeMsgpack(data []byte) (*Snapshot, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode msgpack snapshot: %w", err)
	}
	return FromMap(m), nil
}

// FromStruct reads a snapshot carried as a protobuf Struct.
func FromStruct(s *structpb.Struct) *Snapshot {
	if s == nil {
		return nil
	}
	return FromMap(s.AsMap())
}

// Wire renders state back into the engine's object shape. The fake engine in
// tests and the status command use it.
func (s State) Wire() map[string]any {
	history := make([]any, 0, len(s.STT.History))
	for _, line := range s.STT.History {
		history = append(history, line)
	}
	reasons := make([]any, 0, len(s.Reasons))
	for _, r := range s.Reasons {
		reasons = append(reasons, r)
	}
	return map[string]any{
		"mode":       string(s.Mode),
		"ratio":      s.Ratio,
		"lockedFake": s.LockedFake,
		"pauseFake":  s.PauseFake,
		"forceReal":  s.ForceReal,
		"reasons":    reasons,
		"stt": map[string]any{
			"history": history,
			"current": s.STT.Current,
		},
		"assistantEnabled":   s.AssistantEnabled,
		"sessionActive":      s.SessionActive,
		"warmingUp":          s.WarmingUp,
		"warmupTotalSec":     s.WarmupTotalSec,
		"warmupRemainingSec": s.WarmupRemainingSec,
	}
}
