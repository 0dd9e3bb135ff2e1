package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const combinedLogName = "dialogs.log"

// FileSink writes JSON lines to <dir>/dialogs.log and <dir>/user_<id>/<dialog_id>.log.
type FileSink struct {
	mu       sync.Mutex
	dir      string
	limit    int
	combined *lumberjack.Logger
}

type FileSinkOptions struct {
	Dir           string
	ExcerptLength int
	MaxSizeMB     int
	MaxBackups    int
}

func NewFileSink(opts FileSinkOptions) (*FileSink, error) {
	if opts.Dir == "" {
		opts.Dir = "dialog_logs"
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = DefaultExcerptLength
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript dir: %w", err)
	}

	return &FileSink{
		dir:   opts.Dir,
		limit: opts.ExcerptLength,
		combined: &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, combinedLogName),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		},
	}, nil
}

func (s *FileSink) Append(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.Content = Excerpt(record.Content, s.limit)

	line, err := encodeLine(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.combined.Write(line); err != nil {
		return fmt.Errorf("failed to write combined transcript: %w", err)
	}

	userDir := filepath.Join(s.dir, fmt.Sprintf("user_%d", record.UserID))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return fmt.Errorf("failed to create user transcript dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(userDir, record.DialogID+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open dialog transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write dialog transcript: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combined.Close()
}

func encodeLine(record Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("failed to encode transcript record: %w", err)
	}
	return buf.Bytes(), nil
}
