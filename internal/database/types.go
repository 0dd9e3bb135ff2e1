package database

import (
	"context"
	"database/sql"
	"time"
)

type Database interface {
	GetDB() *sql.DB

	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
	ExecWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Transcript storage
	InsertTranscript(ctx context.Context, entry TranscriptEntry) error
	ListTranscripts(ctx context.Context, userID int64, dialogID string) ([]TranscriptEntry, error)
	CountTranscripts(ctx context.Context, userID int64) (int, error)
}

type TranscriptEntry struct {
	UserID    int64
	DialogID  string
	Role      string
	Model     string
	Content   string
	CreatedAt time.Time
}
