package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// jsoncLexer tracks string/escape state shared by the JSONC normalization passes.
type jsoncLexer struct {
	inString bool
	escaped  bool
}

// step consumes ch and reports whether it belongs to a string literal.
func (l *jsoncLexer) step(ch byte) bool {
	if l.inString {
		switch {
		case l.escaped:
			l.escaped = false
		case ch == '\\':
			l.escaped = true
		case ch == '"':
			l.inString = false
		}
		return true
	}
	if ch == '"' {
		l.inString = true
		return true
	}
	return false
}

// normalizeJSONC turns JSONC into strict JSON while preserving byte offsets,
// so decode errors still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	src := []byte(content)
	if err := blankComments(src); err != nil {
		return "", err
	}
	blankTrailingCommas(src)
	return string(src), nil
}

func blankComments(src []byte) error {
	var lex jsoncLexer
	for i := 0; i < len(src); i++ {
		if lex.step(src[i]) {
			continue
		}
		if src[i] != '/' || i+1 >= len(src) {
			continue
		}
		switch src[i+1] {
		case '/':
			for i < len(src) && src[i] != '\n' && src[i] != '\r' {
				src[i] = ' '
				i++
			}
		case '*':
			start := i
			end := strings.Index(string(src[i+2:]), "*/")
			if end < 0 {
				return fmt.Errorf("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for j := start; j < stop; j++ {
				if !isJSONWhitespace(src[j]) {
					src[j] = ' '
				}
			}
			i = stop - 1
		}
	}
	return nil
}

func blankTrailingCommas(src []byte) {
	var lex jsoncLexer
	for i := 0; i < len(src); i++ {
		if lex.step(src[i]) || src[i] != ',' {
			continue
		}
		j := i + 1
		for j < len(src) && isJSONWhitespace(src[j]) {
			j++
		}
		if j < len(src) && (src[j] == '}' || src[j] == ']') {
			src[i] = ' '
		}
	}
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64 = -1

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}

	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	prefix := content[:min(int(offset), len(content))]
	if len(prefix) > 0 {
		prefix = prefix[:len(prefix)-1]
	}
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndex(prefix, "\n")
	return line, col
}
