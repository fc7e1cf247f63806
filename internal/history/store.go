// Package history persists what was watched in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"peerplay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS watched (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	tmdb_id       INTEGER NOT NULL,
	media_type    TEXT    NOT NULL,
	title         TEXT    NOT NULL,
	season        INTEGER NOT NULL DEFAULT 0,
	episode       INTEGER NOT NULL DEFAULT 0,
	episode_title TEXT    NOT NULL DEFAULT '',
	poster        TEXT    NOT NULL DEFAULT '',
	watched_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_watched_at ON watched(watched_at DESC);
`

type Entry struct {
	ID           int64
	TMDBID       int
	MediaType    string // movie, tv or anime
	Title        string
	Season       int
	Episode      int
	EpisodeTitle string
	Poster       string
	WatchedAt    time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single writer; SQLite locks the file anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends an entry; a zero WatchedAt means now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	watchedAt := e.WatchedAt
	if watchedAt.IsZero() {
		watchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watched (tmdb_id, media_type, title, season, episode, episode_title, poster, watched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TMDBID, e.MediaType, e.Title, e.Season, e.Episode, e.EpisodeTitle, e.Poster, watchedAt,
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tmdb_id, media_type, title, season, episode, episode_title, poster, watched_at
		FROM watched ORDER BY watched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TMDBID, &e.MediaType, &e.Title,
			&e.Season, &e.Episode, &e.EpisodeTitle, &e.Poster, &e.WatchedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Last returns the most recent entry, domain.ErrNotFound when empty.
func (s *Store) Last(ctx context.Context) (Entry, error) {
	entries, err := s.Recent(ctx, 1)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, domain.ErrNotFound
	}
	return entries[0], nil
}

// Clear drops all history.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watched`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
