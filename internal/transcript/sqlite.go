package transcript

import (
	"context"

	"github.com/neuroasura/neuroasura/internal/database"
)

// SQLiteSink appends records to the transcripts table.
type SQLiteSink struct {
	db    database.Database
	limit int
}

func NewSQLiteSink(db database.Database, excerptLength int) *SQLiteSink {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &SQLiteSink{db: db, limit: excerptLength}
}

func (s *SQLiteSink) Append(ctx context.Context, record Record) error {
	return s.db.InsertTranscript(ctx, database.TranscriptEntry{
		UserID:    record.UserID,
		DialogID:  record.DialogID,
		Role:      record.Role,
		Model:     record.Model,
		Content:   Excerpt(record.Content, s.limit),
		CreatedAt: record.Timestamp,
	})
}
