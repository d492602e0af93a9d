package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	source_path     TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	status          TEXT NOT NULL,
	claim_token     TEXT NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 0,
	first_seen_at   TEXT NOT NULL,
	last_attempt_at TEXT,
	completed_at    TEXT,
	updated_at      TEXT NOT NULL,
	error_details   TEXT NOT NULL DEFAULT '',
	result_path     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents(source_path);
`

const documentColumns = `id, source_path, content_hash, status, attempts, first_seen_at,
	last_attempt_at, completed_at, error_details, result_path`

// SQLiteDocumentRepository stores the status table in a local SQLite file (modernc, no cgo).
type SQLiteDocumentRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteDocumentRepository, error) {
	if log == nil {
		log = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	log.Info("opening state database", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		return nil, err
	}
	// One connection serialises writers; every transition is a single statement.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			log.Error("failed to migrate state database", "error", err)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLiteDocumentRepository{db: db, log: log}, nil
}

// HealthCheck pings the database.
func (r *SQLiteDocumentRepository) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.db.PingContext(ctx)
}

func (r *SQLiteDocumentRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteDocumentRepository) Register(ctx context.Context, doc entity.Document) (*entity.Document, bool, error) {
	now := time.Now().UTC()
	if doc.FirstSeenAt.IsZero() {
		doc.FirstSeenAt = now
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_path, content_hash, status, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		doc.ID, doc.SourcePath, doc.ContentHash, string(constants.DocumentPending),
		formatTime(doc.FirstSeenAt), formatTime(now),
	)
	if err != nil {
		r.log.Error("document register failed", "document_id", doc.ID, "err", err)
		return nil, false, err
	}
	n, _ := res.RowsAffected()
	stored, err := r.Get(ctx, doc.ID)
	if err != nil {
		return nil, false, err
	}
	if n == 1 {
		r.log.Info("document registered", "document_id", doc.ID, "path", doc.SourcePath)
	}
	return stored, n == 1, nil
}

func (r *SQLiteDocumentRepository) Get(ctx context.Context, id string) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteDocumentRepository) Claim(ctx context.Context, id, token string, at time.Time) (*entity.Document, error) {
	ts := formatTime(at)
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, claim_token = ?, attempts = attempts + 1,
		    last_attempt_at = ?, updated_at = ?, error_details = ''
		WHERE id = ? AND (status = ? OR (status = ? AND claim_token = ''))`,
		string(constants.DocumentInProgress), token, ts, ts,
		id, string(constants.DocumentPending), string(constants.DocumentInProgress),
	)
	if err := r.checkOne(ctx, res, err, id); err != nil {
		return nil, err
	}
	r.log.Debug("document claimed", "document_id", id)
	return r.Get(ctx, id)
}

func (r *SQLiteDocumentRepository) Complete(ctx context.Context, id, token, resultPath string, at time.Time) error {
	ts := formatTime(at)
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, claim_token = '', completed_at = ?, updated_at = ?, result_path = ?, error_details = ''
		WHERE id = ? AND status = ? AND claim_token = ? AND claim_token <> ''`,
		string(constants.DocumentCompleted), ts, ts, resultPath,
		id, string(constants.DocumentInProgress), token,
	)
	if err := r.checkOne(ctx, res, err, id); err != nil {
		r.log.Error("document complete failed", "document_id", id, "err", err)
		return err
	}
	r.log.Info("document completed", "document_id", id, "result_path", resultPath)
	return nil
}

func (r *SQLiteDocumentRepository) Fail(ctx context.Context, id, token, details string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, claim_token = '', updated_at = ?, error_details = ?
		WHERE id = ? AND status = ? AND claim_token = ? AND claim_token <> ''`,
		string(constants.DocumentFailed), formatTime(at), details,
		id, string(constants.DocumentInProgress), token,
	)
	if err := r.checkOne(ctx, res, err, id); err != nil {
		r.log.Error("document fail transition failed", "document_id", id, "err", err)
		return err
	}
	r.log.Warn("document failed", "document_id", id, "error", details)
	return nil
}

func (r *SQLiteDocumentRepository) Release(ctx context.Context, id, token, details string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET claim_token = '', updated_at = ?, error_details = ?
		WHERE id = ? AND status = ? AND claim_token = ? AND claim_token <> ''`,
		formatTime(time.Now()), details,
		id, string(constants.DocumentInProgress), token,
	)
	return r.checkOne(ctx, res, err, id)
}

func (r *SQLiteDocumentRepository) Requeue(ctx context.Context, id string) (*entity.Document, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_details = '', updated_at = ?
		WHERE id = ? AND status = ?`,
		string(constants.DocumentPending), formatTime(time.Now()),
		id, string(constants.DocumentFailed),
	)
	if err := r.checkOne(ctx, res, err, id); err != nil {
		return nil, err
	}
	r.log.Info("document requeued", "document_id", id)
	return r.Get(ctx, id)
}

func (r *SQLiteDocumentRepository) RecoverStale(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET claim_token = '', updated_at = ?
		WHERE status = ? AND claim_token <> ''`,
		formatTime(time.Now()), string(constants.DocumentInProgress),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if n > 0 {
		r.log.Warn("released stale claims", "count", n)
	}
	return int(n), err
}

func (r *SQLiteDocumentRepository) List(ctx context.Context, status constants.DocumentStatus) ([]entity.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY first_seen_at, rowid`
	return r.query(ctx, q, args...)
}

func (r *SQLiteDocumentRepository) FindByPath(ctx context.Context, path string) ([]entity.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents WHERE source_path = ? ORDER BY first_seen_at DESC, rowid DESC`, path)
}

func (r *SQLiteDocumentRepository) query(ctx context.Context, q string, args ...any) ([]entity.Document, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// checkOne turns "no row updated" into ErrNotFound or ErrClaimLost.
func (r *SQLiteDocumentRepository) checkOne(ctx context.Context, res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrClaimLost
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (entity.Document, error) {
	var (
		d                      entity.Document
		status, firstSeen      string
		lastAttempt, completed sql.NullString
	)
	if err := s.Scan(&d.ID, &d.SourcePath, &d.ContentHash, &status, &d.Attempts, &firstSeen,
		&lastAttempt, &completed, &d.ErrorDetails, &d.ResultPath); err != nil {
		return d, err
	}
	st, err := constants.ParseDocumentStatus(status)
	if err != nil {
		return d, err
	}
	d.Status = st
	if d.FirstSeenAt, err = parseTime(firstSeen); err != nil {
		return d, err
	}
	if d.LastAttemptAt, err = parseNullTime(lastAttempt); err != nil {
		return d, err
	}
	if d.CompletedAt, err = parseNullTime(completed); err != nil {
		return d, err
	}
	return d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
