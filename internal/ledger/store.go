package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const applicationsSchema = `
CREATE TABLE IF NOT EXISTS applications (
	id              TEXT PRIMARY KEY,
	request_id      TEXT NOT NULL,
	requester       TEXT NOT NULL,
	target_id       TEXT NOT NULL,
	cv_snapshot     TEXT NOT NULL DEFAULT '',
	match_score     INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'submitted',
	applied_at      TIMESTAMP NOT NULL,
	email_sent_at   TIMESTAMP,
	error_message   TEXT NOT NULL DEFAULT '',
	applicant_name  TEXT NOT NULL DEFAULT '',
	applicant_email TEXT NOT NULL DEFAULT '',
	applicant_phone TEXT NOT NULL DEFAULT '',
	UNIQUE (request_id, target_id)
);`

// Store wraps the durable sqlite-backed applications table.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and migrates) the applications database at path.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(applicationsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate applications table: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an already opened database, migrating the schema. The
// queue and the ledger share one sqlite file in the worker process.
func NewStoreFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(applicationsSchema); err != nil {
		return nil, fmt.Errorf("migrate applications table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert writes the record, ignoring the write when a row for the same
// (request_id, target_id) already exists. Returns whether a new row was
// added, making re-runs of the same request idempotent.
func (s *Store) Insert(ctx context.Context, r *Record) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO applications
(id, request_id, requester, target_id, cv_snapshot, match_score, status, applied_at, error_message, applicant_name, applicant_email, applicant_phone)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.ID, r.RequestID, r.Requester, r.TargetID, r.CVSnapshot, r.MatchScore,
		string(r.Status), r.AppliedAt, r.ErrorMessage, r.ApplicantName, r.ApplicantEmail, r.ApplicantPhone,
	)
	if err != nil {
		return false, fmt.Errorf("insert application: %w", err)
	}

	var changes int
	if err := s.db.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); err != nil {
		return true, nil
	}
	return changes > 0, nil
}

// UpdateDispatch applies the single post-dispatch status transition. Rows not
// in the submitted state are left untouched; status never reverts.
func (s *Store) UpdateDispatch(ctx context.Context, requestID, targetID string, status Status, errorMessage string) error {
	if status != StatusEmailSent && status != StatusEmailFailed {
		return fmt.Errorf("invalid dispatch status %q", status)
	}

	var sentAt any
	if status == StatusEmailSent {
		sentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
UPDATE applications
SET status = ?, email_sent_at = ?, error_message = ?
WHERE request_id = ? AND target_id = ? AND status = 'submitted';`,
		string(status), sentAt, errorMessage, requestID, targetID,
	)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// ByRequest returns all records for a request in insertion order.
func (s *Store) ByRequest(ctx context.Context, requestID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, request_id, requester, target_id, cv_snapshot, match_score, status,
       applied_at, email_sent_at, error_message, applicant_name, applicant_email, applicant_phone
FROM applications WHERE request_id = ? ORDER BY applied_at, target_id;`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		var status string
		var sentAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Requester, &r.TargetID, &r.CVSnapshot,
			&r.MatchScore, &status, &r.AppliedAt, &sentAt, &r.ErrorMessage,
			&r.ApplicantName, &r.ApplicantEmail, &r.ApplicantPhone); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		r.Status = Status(status)
		if sentAt.Valid {
			t := sentAt.Time
			r.EmailSentAt = &t
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}
