package show

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stagecue/internal/config"
	"stagecue/internal/services"
)

// Store persists show snapshots in the sqlite show library.
type Store struct {
	db   *sql.DB
	path string
}

// ShowInfo summarizes a saved show.
type ShowInfo struct {
	Name      string
	Scenes    int
	Cues      int
	UpdatedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS shows (
    name        TEXT PRIMARY KEY,
    snapshot    TEXT NOT NULL,
    scene_count INTEGER NOT NULL DEFAULT 0,
    cue_count   INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`

// OpenStore initializes or connects to the show library database.
func OpenStore(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "shows.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Save upserts a show snapshot under the given name.
func (s *Store) Save(ctx context.Context, name string, snap Snapshot) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return services.Wrap(services.ErrValidation, "show-store", "save", "show name required", nil)
	}
	payload, err := MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	cueCount := 0
	for _, scene := range snap.Scenes {
		cueCount += len(scene.Cues)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shows (name, snapshot, scene_count, cue_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		    snapshot = excluded.snapshot,
		    scene_count = excluded.scene_count,
		    cue_count = excluded.cue_count,
		    updated_at = excluded.updated_at`,
		name, string(payload), len(snap.Scenes), cueCount, now, now,
	)
	if err != nil {
		return fmt.Errorf("save show %q: %w", name, err)
	}
	return nil
}

// Load retrieves a show snapshot by name.
func (s *Store) Load(ctx context.Context, name string) (Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM shows WHERE name = ?`, strings.TrimSpace(name)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, services.Wrap(services.ErrNotFound, "show-store", "load", fmt.Sprintf("show %q", name), nil)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load show %q: %w", name, err)
	}
	snap, err := UnmarshalSnapshot([]byte(payload))
	if err != nil {
		return Snapshot{}, err
	}
	snap.Name = strings.TrimSpace(name)
	return snap, nil
}

// List returns saved shows ordered by most recent update.
func (s *Store) List(ctx context.Context) ([]ShowInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, scene_count, cue_count, updated_at
		FROM shows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var infos []ShowInfo
	for rows.Next() {
		var info ShowInfo
		var updated string
		if err := rows.Scan(&info.Name, &info.Scenes, &info.Cues, &updated); err != nil {
			return nil, fmt.Errorf("scan show row: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, updated); parseErr == nil {
			info.UpdatedAt = ts
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a saved show. Removing an unknown show is not an error.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shows WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return false, fmt.Errorf("delete show %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
