// Package archive appends finalized transcript lines to a rotating JSONL file.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rbright/nolook/internal/config"
	"github.com/rbright/nolook/internal/logging"
)

// FileName is the archive file created in the state directory by default.
const FileName = "transcript.jsonl"

// Archive is safe for concurrent use. It satisfies reconcile.LineSink.
type Archive struct {
	Path string

	mu     sync.Mutex
	out    io.WriteCloser
	logger zerolog.Logger
	seq    uint64
}

// Open prepares the archive described by cfg. The file is created lazily on
// the first write.
func Open(cfg config.ArchiveConfig) (*Archive, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		dir, err := logging.StateDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, FileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    max(cfg.MaxSizeMB, 1),
		MaxBackups: max(cfg.MaxBackups, 0),
	}
	return newArchive(path, rotator), nil
}

func newArchive(path string, out io.WriteCloser) *Archive {
	return &Archive{
		Path:   path,
		out:    out,
		logger: zerolog.New(out).With().Timestamp().Logger(),
	}
}

// Finalized writes one record per line, skipping blank lines.
func (a *Archive) Finalized(lines []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a.seq++
		a.logger.Log().Uint64("seq", a.seq).Str("text", line).Send()
	}
}

// Close flushes and closes the underlying file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Close()
}
