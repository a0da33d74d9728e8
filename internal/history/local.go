package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/config"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/migrations"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("submission not found")

// timestamps are stored in UTC
const timestampLayout = "2006-01-02 15:04:05"

// LocalStore is the on-disk log of completed submissions
type LocalStore struct {
	db *sql.DB
}

// OpenLocal opens (and migrates) the sqlite database at dbPath.
// ":memory:" gives a throwaway store.
func OpenLocal(dbPath string) (*LocalStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), config.DirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Save appends one submission and sets its ID
func (s *LocalStore) Save(sub *types.Submission) error {
	valuesJSON, err := nullableJSON(sub.Values, len(sub.Values) > 0)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}
	resultJSON, err := nullableJSON(sub.Result, sub.Result != nil)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ts := sub.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO submissions (
			request_id, timestamp, kind, values_json, file_name,
			status, result_json, error, duration_ms, base_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		sub.RequestID,
		ts.UTC().Format(timestampLayout),
		string(sub.Kind),
		valuesJSON,
		sub.FileName,
		sub.Status.String(),
		resultJSON,
		sub.Error,
		sub.Duration,
		sub.BaseURL,
	)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read submission id: %w", err)
	}
	sub.ID = id
	return nil
}

// List returns the newest submissions first. limit <= 0 means all.
func (s *LocalStore) List(limit int) ([]types.Submission, error) {
	query := `
		SELECT id, request_id, timestamp, kind, values_json, file_name,
		       status, result_json, error, duration_ms, base_url
		FROM submissions
		ORDER BY timestamp DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}
	defer rows.Close()

	var subs []types.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Get returns one submission by id
func (s *LocalStore) Get(id int64) (*types.Submission, error) {
	row := s.db.QueryRow(`
		SELECT id, request_id, timestamp, kind, values_json, file_name,
		       status, result_json, error, duration_ms, base_url
		FROM submissions
		WHERE id = ?
	`, id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// Clear deletes every submission
func (s *LocalStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM submissions")
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Count returns the number of stored submissions
func (s *LocalStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM submissions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get history count: %w", err)
	}
	return count, nil
}

// DB exposes the database for read-only aggregation
func (s *LocalStore) DB() *sql.DB {
	return s.db
}

func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*types.Submission, error) {
	var (
		sub        types.Submission
		timestamp  string
		kind       string
		valuesJSON sql.NullString
		fileName   sql.NullString
		status     string
		resultJSON sql.NullString
		errorMsg   sql.NullString
	)

	err := row.Scan(
		&sub.ID,
		&sub.RequestID,
		&timestamp,
		&kind,
		&valuesJSON,
		&fileName,
		&status,
		&resultJSON,
		&errorMsg,
		&sub.Duration,
		&sub.BaseURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	parsed, err := time.ParseInLocation(timestampLayout, timestamp, time.UTC)
	if err != nil {
		// go-sqlite3 may hand DATETIME columns back as RFC3339
		parsed, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			parsed = time.Time{}
		}
	}
	sub.Timestamp = parsed
	sub.Kind = types.InputKind(kind)
	sub.FileName = fileName.String
	sub.Error = errorMsg.String

	if err := sub.Status.UnmarshalText([]byte(status)); err != nil {
		return nil, err
	}
	if valuesJSON.Valid && valuesJSON.String != "" {
		if err := json.Unmarshal([]byte(valuesJSON.String), &sub.Values); err != nil {
			return nil, fmt.Errorf("failed to parse stored values: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := decodeResult(resultJSON.String, &sub.Result); err != nil {
			return nil, fmt.Errorf("failed to parse stored result: %w", err)
		}
	}

	return &sub, nil
}

func nullableJSON(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeResult(s string, out *types.PredictionResult) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	return dec.Decode(out)
}
