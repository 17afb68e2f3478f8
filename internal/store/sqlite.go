package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/nipslock/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("ambiguous run prefix")
)

// Store is the sync journal: one row per completed run plus its entries
type Store struct {
	db *sql.DB
}

// New opens (or creates) the journal at dbPath
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// AddRun records a completed sync and returns it with its new ID
func (s *Store) AddRun(repo, ref, out string, generatedAt time.Time, entries []domain.NIPEntry) (*domain.Run, error) {
	run := &domain.Run{
		ID:          uuid.New().String(),
		Repo:        repo,
		Ref:         ref,
		Out:         out,
		GeneratedAt: generatedAt.UTC(),
		Entries:     entries,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, repo, ref, out, generated_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Repo, run.Ref, run.Out, run.GeneratedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	for _, e := range entries {
		_, err := tx.Exec(
			"INSERT INTO run_entries (run_id, nip, url, title, status_hint, content_sha256) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID, e.NIP, e.URL, e.Title, string(e.StatusHint), e.ContentSHA256,
		)
		if err != nil {
			return nil, fmt.Errorf("insert entry NIP-%02d: %w", e.NIP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID with its entries
func (s *Store) GetRun(id string) (*domain.Run, error) {
	var run domain.Run
	err := s.db.QueryRow(
		"SELECT id, repo, ref, out, generated_at FROM runs WHERE id = ?",
		id,
	).Scan(&run.ID, &run.Repo, &run.Ref, &run.Out, &run.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	entries, err := s.GetRunEntries(id)
	if err != nil {
		return nil, err
	}
	run.Entries = entries

	return &run, nil
}

// FindRun resolves a full run ID or a unique prefix of one. The prefix is
// compared literally and must not be empty.
func (s *Store) FindRun(prefix string) (*domain.Run, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := s.db.Query(
		"SELECT id FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2",
		prefix, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return s.GetRun(ids[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
	}
}

// ListRuns returns runs newest first, without entries
func (s *Store) ListRuns(limit, offset int) ([]domain.Run, error) {
	rows, err := s.db.Query(
		"SELECT id, repo, ref, out, generated_at FROM runs ORDER BY generated_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		if err := rows.Scan(&r.ID, &r.Repo, &r.Ref, &r.Out, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetRunEntries returns the entries of a run ordered by NIP
func (s *Store) GetRunEntries(runID string) ([]domain.NIPEntry, error) {
	rows, err := s.db.Query(`
		SELECT nip, url, title, status_hint, content_sha256
		FROM run_entries
		WHERE run_id = ?
		ORDER BY nip
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.NIPEntry
	for rows.Next() {
		var e domain.NIPEntry
		var hint string
		if err := rows.Scan(&e.NIP, &e.URL, &e.Title, &hint, &e.ContentSHA256); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.StatusHint = domain.StatusHint(hint)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
