package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*SQLStore)(nil)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, now: time.Now}
}

func (s *SQLStore) CreateSession(ctx context.Context, se Session) (Session, error) {
	if err := ValidateQuestions(se.Questions); err != nil {
		return Session{}, err
	}
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	if se.Kind == "" {
		se.Kind = KindQuiz
	}
	if se.Questions == nil {
		se.Questions = []Question{}
	}
	qj, err := json.Marshal(se.Questions)
	if err != nil {
		return Session{}, err
	}
	ts := s.now().Unix()
	se.CreatedAt, se.UpdatedAt = ts, ts
	se.Finished, se.Progress, se.Result = false, nil, nil
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions
		(id,owner_id,title,kind,duration_sec,questions_json,question_count,finished,progress_json,result_json,score_partial,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'','',0,$9,$10)`,
		se.ID, se.OwnerID, se.Title, string(se.Kind), se.DurationSec, string(qj), len(se.Questions), false, ts, ts)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return se, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,owner_id,title,kind,duration_sec,questions_json,finished,progress_json,result_json,created_at,updated_at
		FROM sessions WHERE id=$1`, id)
	var (
		se                  Session
		kind                string
		qjson, pjson, rjson string
	)
	if err := row.Scan(&se.ID, &se.OwnerID, &se.Title, &kind, &se.DurationSec, &qjson, &se.Finished, &pjson, &rjson, &se.CreatedAt, &se.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	se.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(qjson), &se.Questions); err != nil {
		return Session{}, fmt.Errorf("decode questions: %w", err)
	}
	if pjson != "" {
		var p Progress
		if err := json.Unmarshal([]byte(pjson), &p); err != nil {
			return Session{}, fmt.Errorf("decode progress: %w", err)
		}
		se.Progress = &p
	}
	if rjson != "" {
		var r Result
		if err := json.Unmarshal([]byte(rjson), &r); err != nil {
			return Session{}, fmt.Errorf("decode result: %w", err)
		}
		se.Result = &r
	}
	return se, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, opts ListOpts) ([]SessionSummary, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.OwnerID != "" {
		where = append(where, "owner_id="+arg(opts.OwnerID))
	}
	if opts.Kind != "" {
		where = append(where, "kind="+arg(string(opts.Kind)))
	}
	q := `SELECT id,title,kind,question_count,finished,score_partial,updated_at FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY updated_at DESC, id"
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q += " LIMIT " + arg(limit) + " OFFSET " + arg(opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SessionSummary{}
	for rows.Next() {
		var (
			sum  SessionSummary
			kind string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &kind, &sum.QuestionCount, &sum.Finished, &sum.ScorePartial, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.Kind = Kind(kind)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveProgress(ctx context.Context, id string, p Progress) error {
	buf, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET progress_json=$1, updated_at=$2 WHERE id=$3 AND finished=$4`,
		string(buf), s.now().Unix(), id, false)
	if err != nil {
		return err
	}
	return s.explainNoop(ctx, res, id)
}

func (s *SQLStore) SaveResult(ctx context.Context, id string, r Result) error {
	r.Finished = true
	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET finished=$1, result_json=$2, progress_json='', score_partial=$3, updated_at=$4
		WHERE id=$5 AND finished=$6`,
		true, string(buf), r.Partial, s.now().Unix(), id, false)
	if err != nil {
		return err
	}
	return s.explainNoop(ctx, res, id)
}

// explainNoop maps a guarded UPDATE that touched nothing to ErrNotFound or ErrFinished.
func (s *SQLStore) explainNoop(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1`, id).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrFinished
}

func (s *SQLStore) ResetSession(ctx context.Context, id string) (Session, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET finished=$1, progress_json='', result_json='', score_partial=0, updated_at=$2 WHERE id=$3`,
		false, s.now().Unix(), id)
	if err != nil {
		return Session{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, ErrNotFound
	}
	return s.GetSession(ctx, id)
}

func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{`DELETE FROM notes WHERE session_id=$1`, `DELETE FROM reports WHERE session_id=$1`} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) AppendNote(ctx context.Context, n Note) (Note, error) {
	if err := s.requireSession(ctx, n.SessionID); err != nil {
		return Note{}, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO notes (id,session_id,user_id,question,text,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		n.ID, n.SessionID, n.UserID, n.Question, n.Text, n.CreatedAt)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *SQLStore) ListNotes(ctx context.Context, sessionID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,session_id,user_id,question,text,created_at FROM notes
		WHERE session_id=$1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.SessionID, &n.UserID, &n.Question, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendReport(ctx context.Context, r Report) (Report, error) {
	if err := s.requireSession(ctx, r.SessionID); err != nil {
		return Report{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO reports (id,session_id,user_id,question,reason,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.SessionID, r.UserID, r.Question, r.Reason, r.CreatedAt)
	if err != nil {
		return Report{}, err
	}
	return r, nil
}

func (s *SQLStore) requireSession(ctx context.Context, id string) error {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1`, id).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
