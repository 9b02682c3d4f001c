package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.Len(t, normalized, len(input))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, []any{"one", "two"}, decoded["items"])
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text, }",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, "// and /* comment-like */ text, }")
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8)
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseOverlaysEverySection(t *testing.T) {
	content := `{
  "engine": {"push": " WebSocket ", "ws_path": "/push", "request_timeout_ms": 900, "discover": true},
  "reconnect": {"initial_ms": 100, "max_ms": 800},
  "notifications": {"ttl_ms": 0, "max_visible": 2},
  "indicator": {"enable": true, "backend": "HYPR", "sound_enable": true},
  "archive": {"enable": false, "path": "/tmp/nolook/transcript.jsonl", "max_backups": 0},
  "debug": {"log": true}
}`

	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Equal(t, PushWebSocket, cfg.Engine.Push)
	require.Equal(t, "/push", cfg.Engine.WSPath)
	require.Equal(t, 900, cfg.Engine.RequestTimeoutMS)
	require.True(t, cfg.Engine.Discover)
	require.Equal(t, 100, cfg.Reconnect.InitialMS)
	require.Equal(t, 800, cfg.Reconnect.MaxMS)
	require.Zero(t, cfg.Notifications.TTL())
	require.Equal(t, 2, cfg.Notifications.MaxVisible)
	require.True(t, cfg.Indicator.Enable)
	require.Equal(t, "hypr", cfg.Indicator.Backend)
	require.False(t, cfg.Archive.Enable)
	require.Equal(t, "/tmp/nolook/transcript.jsonl", cfg.Archive.Path)
	require.True(t, cfg.Debug.Log)

	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "disables auto-expiry")
}

func TestParseRejectsUnknownKeysWithPosition(t *testing.T) {
	content := "{\n  \"engine\": {\n    \"htp\": \"x\"\n  }\n}"
	_, _, err := Parse(content, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseTypeErrorReportsLineAndColumn(t *testing.T) {
	content := "{\n  // retry\n  \"reconnect\": {\"initial_ms\": \"fast\"}\n}"
	_, _, err := Parse(content, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}
