package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ============================================================================
// Database
// ============================================================================

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS play_history (
			user_id TEXT NOT NULL,
			track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			url TEXT NOT NULL,
			duration_ms INTEGER DEFAULT 0,
			request_count INTEGER DEFAULT 1,
			last_played_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id)
		)`,
		`CREATE TABLE IF NOT EXISTS liked_tracks (
			user_id TEXT NOT NULL,
			track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			liked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id)
		)`,
		`CREATE TABLE IF NOT EXISTS blacklist (
			track_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			added_by TEXT,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_last_played ON play_history(last_played_at)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_count ON play_history(request_count)`,
		`CREATE INDEX IF NOT EXISTS idx_liked_tracks_user ON liked_tracks(user_id)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	migrations := []string{
		"ALTER TABLE play_history ADD COLUMN artist TEXT",
		"ALTER TABLE play_history ADD COLUMN duration_ms INTEGER DEFAULT 0",
	}

	for _, m := range migrations {
		if _, err := DB.ExecContext(initCtx, m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf(MsgDBMigrationFail, err)
			}
		}
	}

	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Play History ---

type HistoryEntry struct {
	UserID       string
	TrackID      string
	Title        string
	Artist       string
	URL          string
	Duration     time.Duration
	RequestCount int
	LastPlayedAt time.Time
}

// RecordPlay upserts a history row for (user, track), bumping the request
// counter when that user played the track before.
func RecordPlay(ctx context.Context, userID, trackID, title, artist, url string, duration time.Duration) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO play_history (user_id, track_id, title, artist, url, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, track_id) DO UPDATE SET
			request_count = request_count + 1,
			last_played_at = CURRENT_TIMESTAMP,
			title = excluded.title,
			artist = excluded.artist
	`, userID, trackID, title, artist, url, duration.Milliseconds())
	return err
}

// GetMostPlayed aggregates play counts across users.
func GetMostPlayed(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT '', track_id, title, COALESCE(artist, ''), url, duration_ms,
			SUM(request_count) AS plays, MAX(last_played_at)
		FROM play_history
		GROUP BY track_id
		ORDER BY plays DESC, MAX(last_played_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

func GetRecentHistory(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, track_id, title, COALESCE(artist, ''), url, duration_ms, request_count, last_played_at
		FROM play_history
		ORDER BY last_played_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// GetRandomHistory samples distinct tracks from the history, skipping
// anything blacklisted. userID narrows the sample to one requester.
func GetRandomHistory(ctx context.Context, count int, userID string) ([]*HistoryEntry, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, track_id, title, COALESCE(artist, ''), url, duration_ms, request_count, last_played_at
		FROM play_history
		WHERE (? = '' OR user_id = ?)
		AND track_id NOT IN (SELECT track_id FROM blacklist)
		GROUP BY track_id
		ORDER BY RANDOM()
		LIMIT ?
	`, userID, userID, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// PruneHistory drops the oldest rows beyond max, keeping the table bounded.
func PruneHistory(ctx context.Context, max int) (int64, error) {
	res, err := DB.ExecContext(ctx, `
		DELETE FROM play_history WHERE rowid IN (
			SELECT rowid FROM play_history
			ORDER BY last_played_at DESC
			LIMIT -1 OFFSET ?
		)
	`, max)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanHistoryRows(rows *sql.Rows) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		var durationMs int64
		if err := rows.Scan(&e.UserID, &e.TrackID, &e.Title, &e.Artist, &e.URL, &durationMs, &e.RequestCount, &e.LastPlayedAt); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Liked Tracks ---

type LikedTrack struct {
	UserID  string
	TrackID string
	Title   string
	URL     string
	LikedAt time.Time
}

func LikeTrack(ctx context.Context, userID, trackID, title, url string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO liked_tracks (user_id, track_id, title, url)
		VALUES (?, ?, ?, ?)
	`, userID, trackID, title, url)
	return err
}

func UnlikeTrack(ctx context.Context, userID, trackID string) (bool, error) {
	res, err := DB.ExecContext(ctx, "DELETE FROM liked_tracks WHERE user_id = ? AND track_id = ?", userID, trackID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func GetLikedTracks(ctx context.Context, userID string, limit int) ([]*LikedTrack, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, track_id, title, url, liked_at
		FROM liked_tracks
		WHERE user_id = ?
		ORDER BY liked_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*LikedTrack
	for rows.Next() {
		t := &LikedTrack{}
		if err := rows.Scan(&t.UserID, &t.TrackID, &t.Title, &t.URL, &t.LikedAt); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// --- Blacklist ---

func AddToBlacklist(ctx context.Context, trackID, title, addedBy string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO blacklist (track_id, title, added_by)
		VALUES (?, ?, ?)
	`, trackID, title, addedBy)
	return err
}

func RemoveFromBlacklist(ctx context.Context, trackID string) (bool, error) {
	res, err := DB.ExecContext(ctx, "DELETE FROM blacklist WHERE track_id = ?", trackID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func IsBlacklisted(ctx context.Context, trackID string) (bool, error) {
	var one int
	err := DB.QueryRowContext(ctx, "SELECT 1 FROM blacklist WHERE track_id = ?", trackID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func GetBlacklist(ctx context.Context, limit int) ([]string, error) {
	rows, err := DB.QueryContext(ctx, "SELECT title FROM blacklist ORDER BY added_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}
