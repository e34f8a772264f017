package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"speaking-assessment-service/internal/domain"
)

// SessionStore is a file-backed app.SessionStore for single-device deployments
// where the local mirror must survive restarts.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(filePath string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	st := &SessionStore{db: db}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS progress (
			session_id TEXT NOT NULL,
			student TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (session_id, student)
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			student TEXT NOT NULL,
			data TEXT NOT NULL,
			UNIQUE (session_id, student)
		)`,
		`CREATE TABLE IF NOT EXISTS ranks (
			session_id TEXT NOT NULL,
			student TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (session_id, student)
		)`,
		`CREATE TABLE IF NOT EXISTS ranking_gates (
			session_id TEXT PRIMARY KEY
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) SaveProgress(ctx context.Context, sessionID string, progress domain.GameProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO progress (session_id, student, data)
		VALUES (?, ?, ?)`,
		sessionID, progress.StudentName, string(data),
	)
	return err
}

func (s *SessionStore) LoadProgress(ctx context.Context, sessionID, studentName string) (domain.GameProgress, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM progress WHERE session_id = ? AND student = ?`,
		sessionID, studentName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameProgress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.GameProgress{}, err
	}
	var progress domain.GameProgress
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return domain.GameProgress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return progress, nil
}

// AppendOrReplaceResult upserts by student; the row id, and so the list
// order, is kept from the first submission. A final result is kept over a
// later intermediate one.
func (s *SessionStore) AppendOrReplaceResult(ctx context.Context, sessionID string, result domain.StudentResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (session_id, student, data)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id, student) DO UPDATE SET data = excluded.data
		WHERE json_extract(excluded.data, '$.final') = 1
			OR json_extract(results.data, '$.final') = 0`,
		sessionID, result.StudentName, string(data),
	)
	return err
}

func (s *SessionStore) LoadResults(ctx context.Context, sessionID string) ([]domain.StudentResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM results WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.StudentResult, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var result domain.StudentResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *SessionStore) CacheRank(ctx context.Context, sessionID, studentName string, snapshot domain.RankingSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ranks (session_id, student, data)
		VALUES (?, ?, ?)`,
		sessionID, studentName, string(data),
	)
	return err
}

func (s *SessionStore) LoadRank(ctx context.Context, sessionID, studentName string) (domain.RankingSnapshot, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM ranks WHERE session_id = ? AND student = ?`,
		sessionID, studentName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RankingSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RankingSnapshot{}, false, err
	}
	var snap domain.RankingSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return domain.RankingSnapshot{}, false, fmt.Errorf("unmarshal rank: %w", err)
	}
	return snap, true, nil
}

func (s *SessionStore) OpenRankingGate(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO ranking_gates (session_id) VALUES (?)`, sessionID)
	return err
}

func (s *SessionStore) RankingGateOpen(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ranking_gates WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
