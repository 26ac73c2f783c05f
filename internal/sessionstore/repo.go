package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
)

const selectColumns = `
	id, session_name, case_number, police_station, district, cr_number, speaker_name,
	question_filename, control_filename, question_file_path, control_file_path,
	annotations, bandpass_enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Upsert creates a session when p.SessionID is nil and updates it otherwise.
// The second return value reports whether a new row was created.
func (db *DB) Upsert(ctx context.Context, p models.SessionPayload) (*models.Session, bool, error) {
	annJSON, err := json.Marshal(p.Annotations.Normalize())
	if err != nil {
		return nil, false, fmt.Errorf("sessionstore: encode annotations: %w", err)
	}
	now := time.Now().UTC()

	if p.SessionID == nil {
		res, err := db.conn.ExecContext(ctx, `
			INSERT INTO sessions (
				session_name, case_number, police_station, district, cr_number, speaker_name,
				question_filename, control_filename, question_file_path, control_file_path,
				annotations, bandpass_enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.SessionName, p.CaseNumber, p.PoliceStation, p.District, p.CRNumber, p.SpeakerName,
			p.QuestionFilename, p.ControlFilename, p.QuestionFilePath, p.ControlFilePath,
			string(annJSON), p.BandpassEnabled, now, now)
		if err != nil {
			return nil, false, fmt.Errorf("sessionstore: insert session: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("sessionstore: last insert id: %w", err)
		}
		s, err := db.Get(ctx, id)
		return s, true, err
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE sessions SET
			session_name       = ?,
			case_number        = ?,
			police_station     = ?,
			district           = ?,
			cr_number          = ?,
			speaker_name       = ?,
			question_filename  = ?,
			control_filename   = ?,
			question_file_path = ?,
			control_file_path  = ?,
			annotations        = ?,
			bandpass_enabled   = ?,
			updated_at         = ?
		WHERE id = ?
	`, p.SessionName, p.CaseNumber, p.PoliceStation, p.District, p.CRNumber, p.SpeakerName,
		p.QuestionFilename, p.ControlFilename, p.QuestionFilePath, p.ControlFilePath,
		string(annJSON), p.BandpassEnabled, now, *p.SessionID)
	if err != nil {
		return nil, false, fmt.Errorf("sessionstore: update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sessionstore: rows affected: %w", err)
	}
	if n == 0 {
		return nil, false, apperr.ErrNotFound
	}
	s, err := db.Get(ctx, *p.SessionID)
	return s, false, err
}

// Get returns one session with its annotations.
func (db *DB) Get(ctx context.Context, id int64) (*models.Session, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: get session %d: %w", id, err)
	}
	return s, nil
}

// List returns session summaries, most recently updated first, and the total count.
// A non-positive limit means no limit.
func (db *DB) List(ctx context.Context, limit, offset int) ([]models.SessionSummary, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sessionstore: count sessions: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM sessions ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sessionstore: list sessions: %w", err)
	}
	defer rows.Close()

	out := []models.SessionSummary{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sessionstore: scan session: %w", err)
		}
		out = append(out, s.Summary())
	}
	return out, total, rows.Err()
}

// Delete removes a session.
func (db *DB) Delete(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sessionstore: delete session %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sessionstore: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanSession(r rowScanner) (*models.Session, error) {
	var (
		s       models.Session
		annJSON string
	)
	err := r.Scan(&s.ID, &s.SessionName, &s.CaseNumber, &s.PoliceStation, &s.District, &s.CRNumber, &s.SpeakerName,
		&s.QuestionFilename, &s.ControlFilename, &s.QuestionFilePath, &s.ControlFilePath,
		&annJSON, &s.BandpassEnabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if annJSON != "" {
		if err := json.Unmarshal([]byte(annJSON), &s.Annotations); err != nil {
			return nil, fmt.Errorf("decode annotations: %w", err)
		}
	}
	s.Annotations = s.Annotations.Normalize()
	return &s, nil
}
