package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite for persistence
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed verdict ledger
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	// Timestamps are unix milliseconds so ordering is numeric.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdicts (
			challenge_id TEXT PRIMARY KEY,
			subject_id INTEGER NOT NULL,
			subject_name TEXT,
			chat_id INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			issued_at INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create verdicts table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdicts_resolved_at ON verdicts (resolved_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create verdicts index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record appends a verdict. A challenge id can only be recorded once.
func (s *SQLiteStore) Record(ctx context.Context, v Verdict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts (challenge_id, subject_id, subject_name, chat_id, outcome, issued_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ChallengeID, v.Subject, v.SubjectName, v.ChatID, string(v.Outcome),
		v.IssuedAt.UnixMilli(), v.ResolvedAt.UnixMilli())

	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	return nil
}

// Recent returns up to limit verdicts, newest first
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Verdict, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT challenge_id, subject_id, subject_name, chat_id, outcome, issued_at, resolved_at
		FROM verdicts
		ORDER BY resolved_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []Verdict
	for rows.Next() {
		var (
			v          Verdict
			name       sql.NullString
			outcome    string
			issuedMs   int64
			resolvedMs int64
		)
		if err := rows.Scan(&v.ChallengeID, &v.Subject, &name, &v.ChatID, &outcome, &issuedMs, &resolvedMs); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		v.SubjectName = name.String
		v.Outcome = Outcome(outcome)
		v.IssuedAt = time.UnixMilli(issuedMs).UTC()
		v.ResolvedAt = time.UnixMilli(resolvedMs).UTC()
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}

	return verdicts, nil
}

// Counts returns the number of verdicts per outcome
func (s *SQLiteStore) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM verdicts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan verdict count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdict counts: %w", err)
	}

	return counts, nil
}

// Close releases database resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
