// Package history keeps a bounded, per-file record of the text the editor
// opened and saved, so earlier versions of a document can be recovered.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/lithammer/fuzzysearch/fuzzy"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultMaxPerPath is the number of snapshots kept for each path.
const DefaultMaxPerPath = 10

// DBFile is the database file name inside the data directory.
const DBFile = "history.db"

// Fixed-width so that lexical order on created_at is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed snapshot store.
type Store struct {
	db         *sql.DB
	enc        *zstd.Encoder
	dec        *zstd.Decoder
	maxPerPath int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxPerPath sets how many snapshots are retained per path.
func WithMaxPerPath(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPerPath = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the history database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database.
func Open(dataDir string, opts ...Option) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, DBFile)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps :memory: databases shared and avoids
	// "database is locked" on file databases.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	s := &Store{
		db:         db,
		enc:        enc,
		dec:        dec,
		maxPerPath: DefaultMaxPerPath,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database and releases the codecs.
func (s *Store) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
		s.logger.Debug("history migration applied", "version", version)
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Record stores snap and drops the oldest snapshots of its path beyond the
// retention limit. ID, Name and CreatedAt are filled in when empty. A
// snapshot whose content equals the newest one for the same path is skipped;
// the returned bool reports whether a row was written.
func (s *Store) Record(snap Snapshot) (Snapshot, bool, error) {
	if snap.Path == "" {
		return Snapshot{}, false, fmt.Errorf("recording snapshot: empty path")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.Name == "" {
		snap.Name = filepath.Base(snap.Path)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.Size = len(snap.Content)

	latest, err := s.latest(snap.Path)
	if err != nil {
		return Snapshot{}, false, err
	}
	if latest != nil && latest.Content == snap.Content {
		return *latest, false, nil
	}

	compressed := s.enc.EncodeAll([]byte(snap.Content), nil)

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("beginning record transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO snapshots (id, path, name, origin, size, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Path, snap.Name, string(snap.Origin), snap.Size, compressed,
		snap.CreatedAt.Format(timeLayout),
	); err != nil {
		return Snapshot{}, false, fmt.Errorf("inserting snapshot: %w", err)
	}

	res, err := tx.Exec(`
		DELETE FROM snapshots WHERE path = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE path = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, snap.Path, snap.Path, s.maxPerPath)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("trimming snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("committing snapshot: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("old snapshots trimmed", "path", snap.Path, "removed", n)
	}
	return snap, true, nil
}

func (s *Store) latest(path string) (*Snapshot, error) {
	snap, err := s.scanOne(s.db.QueryRow(`
		SELECT id, path, name, origin, size, content, created_at
		FROM snapshots WHERE path = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, path))
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get returns the snapshot with id, including its content.
func (s *Store) Get(id string) (Snapshot, error) {
	return s.scanOne(s.db.QueryRow(`
		SELECT id, path, name, origin, size, content, created_at
		FROM snapshots WHERE id = ?`, id))
}

func (s *Store) scanOne(row *sql.Row) (Snapshot, error) {
	var snap Snapshot
	var origin, createdAt string
	var blob []byte
	err := row.Scan(&snap.ID, &snap.Path, &snap.Name, &origin, &snap.Size, &blob, &createdAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap.Origin = Origin(origin)
	if snap.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Snapshot{}, fmt.Errorf("parsing created_at: %w", err)
	}
	content, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decompressing snapshot %s: %w", snap.ID, err)
	}
	snap.Content = string(content)
	return snap, nil
}

// List returns the snapshots of path, newest first, without content.
func (s *Store) List(path string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, path, name, origin, size, created_at
		FROM snapshots WHERE path = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, path, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Snapshot
	for rows.Next() {
		var snap Snapshot
		var origin, createdAt string
		if err := rows.Scan(&snap.ID, &snap.Path, &snap.Name, &origin, &snap.Size, &createdAt); err != nil {
			return nil, err
		}
		snap.Origin = Origin(origin)
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		snap.CreatedAt = t
		results = append(results, snap)
	}
	return results, rows.Err()
}

// Recent returns one entry per path, most recently touched first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT path, name, COUNT(*), MAX(created_at) AS last_seen
		FROM snapshots GROUP BY path
		ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var e Entry
		var lastSeen string
		if err := rows.Scan(&e.Path, &e.Name, &e.Snapshots, &lastSeen); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, lastSeen)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		e.LastSeen = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// Search fuzzy-matches query against the recorded paths, closest match
// first. Ties keep recency order.
func (s *Store) Search(query string, limit int) ([]Entry, error) {
	all, err := s.Recent(0)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return truncate(all, limit), nil
	}

	paths := make([]string, len(all))
	for i, e := range all {
		paths[i] = e.Path
	}
	ranks := fuzzy.RankFindNormalizedFold(query, paths)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	results := make([]Entry, 0, len(ranks))
	for _, r := range ranks {
		results = append(results, all[r.OriginalIndex])
	}
	return truncate(results, limit), nil
}

// Forget deletes every snapshot of path and returns how many were removed.
func (s *Store) Forget(path string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE path = ?`, path)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func truncate(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
