package transcript

import (
	"context"
	"errors"
	"time"
)

const DefaultExcerptLength = 500

// Record is one line of the dialog transcript.
type Record struct {
	UserID    int64     `json:"user_id"`
	DialogID  string    `json:"dialog_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Model     string    `json:"model"`
	Content   string    `json:"content"`
}

type Sink interface {
	Append(ctx context.Context, record Record) error
}

// Excerpt cuts content to at most limit runes.
func Excerpt(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

type multiSink []Sink

// Multi fans a record out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	filtered := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func (m multiSink) Append(ctx context.Context, record Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discard struct{}

func (discard) Append(context.Context, Record) error { return nil }

// Discard drops every record.
var Discard Sink = discard{}
