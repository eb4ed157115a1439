// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store is the Article Store: the authoritative SQLite record of
// knowledge-base articles and their counters, the append-only feedback log
// the counters derive from, the ticket/conversation interaction log, and
// the suggestion and FAQ read models.
//
// Writes go through a single-connection pool whose transactions begin
// IMMEDIATE, so every read-modify-write on an article row is serialized.
// Reads use a separate pool and never wait on batch writers under WAL.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFile is the database file name inside the data directory.
const DBFile = "kb.db"

// ErrNotFound is returned when an article does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a feedback event ID was already logged.
var ErrDuplicate = errors.New("duplicate event")

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the knowledge-base SQLite database.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	path   string

	// Now supplies timestamps for records that do not carry one.
	Now func() time.Time
}

// Open opens or creates dataDir/kb.db and its schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, DBFile)

	writer, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	writer.SetMaxOpenConns(1)

	s := &Store{writer: writer, path: path, Now: time.Now}
	if err := s.createSchema(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	reader, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening read pool: %w", err)
	}
	reader.SetMaxOpenConns(8)
	s.reader = reader

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the write pool so sibling projections (the vector store) can
// share the database file and its single-writer discipline.
func (s *Store) DB() *sql.DB {
	return s.writer
}

// ReadDB exposes the read pool.
func (s *Store) ReadDB() *sql.DB {
	return s.reader
}

// Close releases both connection pools.
func (s *Store) Close() error {
	rerr := s.reader.Close()
	if err := s.writer.Close(); err != nil {
		return err
	}
	return rerr
}

func (s *Store) now() time.Time {
	return s.Now().UTC()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			quality_score INTEGER NOT NULL DEFAULT 0,
			helpfulness_ratio REAL NOT NULL DEFAULT 0,
			view_count INTEGER NOT NULL DEFAULT 0,
			helpful_count INTEGER NOT NULL DEFAULT 0,
			not_helpful_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category)`,
		`CREATE TABLE IF NOT EXISTS feedback_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			article_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			tracked INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON feedback_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_article ON feedback_events(article_id)`,
		`CREATE TABLE IF NOT EXISTS votes (
			article_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			PRIMARY KEY (article_id, actor_id)
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			resolved INTEGER NOT NULL DEFAULT 0,
			topic TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			channel TEXT NOT NULL DEFAULT '',
			answer_confidence REAL NOT NULL DEFAULT 0,
			impact REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`,
		`CREATE TABLE IF NOT EXISTS suggestions (
			id TEXT NOT NULL UNIQUE,
			norm_title TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			frequency INTEGER NOT NULL,
			priority REAL NOT NULL,
			source TEXT NOT NULL,
			evidence TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS faq_candidates (
			id TEXT NOT NULL UNIQUE,
			norm_question TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			draft_answer TEXT NOT NULL,
			frequency INTEGER NOT NULL,
			status TEXT NOT NULL,
			variants TEXT,
			sources TEXT,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.writer.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.writer.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='articles_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE articles_fts USING fts5(title, content, content=articles, content_rowid=rowid)`,
			`CREATE TRIGGER articles_ai AFTER INSERT ON articles BEGIN
				INSERT INTO articles_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
			`CREATE TRIGGER articles_ad AFTER DELETE ON articles BEGIN
				INSERT INTO articles_fts(articles_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			END`,
			`CREATE TRIGGER articles_au AFTER UPDATE OF title, content ON articles BEGIN
				INSERT INTO articles_fts(articles_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
				INSERT INTO articles_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.writer.Exec(stmt); err != nil {
				if strings.Contains(err.Error(), "no such module: fts5") {
					return fmt.Errorf("creating FTS infrastructure: %w (build with -tags sqlite_fts5)", err)
				}
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}
