package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
	_ "modernc.org/sqlite"
)

type sqliteDB struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLiteDB(cfg *config.Config, log logger.Logger) (Database, error) {
	return Open(cfg.GetDatabaseDSN(), log)
}

func Open(dsn string, log logger.Logger) (Database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"DSN": dsn,
	}).Debug("Database opened")

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(context.Background(), db, log); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(logger.Fields{
		"DSN": dsn,
	}).Debug("Database alive")

	return &sqliteDB{db: db, logger: log}, nil
}

func (s *sqliteDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqliteDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqliteDB) Close() error {
	return s.db.Close()
}

func (s *sqliteDB) ExecWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error
	for i := range 3 {
		res, err = s.ExecContext(ctx, query, args...)
		if err == nil || !strings.Contains(err.Error(), "database is locked") {
			return res, err
		}
		s.logger.WithFields(logger.Fields{
			"attempt": i + 1,
			"error":   err.Error(),
		}).Warn("Database locked, retrying...")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond * time.Duration(i+1)):
		}
	}
	return res, err
}

func (s *sqliteDB) InsertTranscript(ctx context.Context, entry TranscriptEntry) error {
	_, err := s.ExecWithRetry(ctx, `
		INSERT INTO transcripts (user_id, dialog_id, role, model, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.UserID, entry.DialogID, entry.Role, entry.Model, entry.Content, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	return nil
}

func (s *sqliteDB) ListTranscripts(ctx context.Context, userID int64, dialogID string) ([]TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, dialog_id, role, model, content, created_at
		FROM transcripts
		WHERE user_id = ? AND dialog_id = ?
		ORDER BY id
	`, userID, dialogID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var entries []TranscriptEntry
	for rows.Next() {
		var entry TranscriptEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.DialogID,
			&entry.Role,
			&entry.Model,
			&entry.Content,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

func (s *sqliteDB) CountTranscripts(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcripts WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

func (s *sqliteDB) GetDB() *sql.DB {
	return s.db
}
