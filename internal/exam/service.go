package exam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	sessions map[string]Session
	notes    []Note
	reports  []Report
}

// NewInMemoryStore returns a Store for tests and offline use.
func NewInMemoryStore() Store {
	return &memoryStore{
		now:      time.Now,
		sessions: map[string]Session{},
	}
}

func (m *memoryStore) CreateSession(_ context.Context, s Session) (Session, error) {
	if err := ValidateQuestions(s.Questions); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Kind == "" {
		s.Kind = KindQuiz
	}
	ts := m.now().Unix()
	s.CreatedAt, s.UpdatedAt = ts, ts
	s.Finished, s.Progress, s.Result = false, nil, nil
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) ListSessions(_ context.Context, opts ListOpts) ([]SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		if opts.OwnerID != "" && s.OwnerID != opts.OwnerID {
			continue
		}
		if opts.Kind != "" && s.Kind != opts.Kind {
			continue
		}
		out = append(out, summarize(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) SaveProgress(_ context.Context, id string, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Finished {
		return ErrFinished
	}
	s.Progress = &p
	s.UpdatedAt = m.now().Unix()
	m.sessions[id] = s
	return nil
}

func (m *memoryStore) SaveResult(_ context.Context, id string, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Finished {
		return ErrFinished
	}
	r.Finished = true
	s.Finished = true
	s.Result = &r
	s.Progress = nil
	s.UpdatedAt = m.now().Unix()
	m.sessions[id] = s
	return nil
}

func (m *memoryStore) ResetSession(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.Finished, s.Progress, s.Result = false, nil, nil
	s.UpdatedAt = m.now().Unix()
	m.sessions[id] = s
	return s, nil
}

func (m *memoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	notes := m.notes[:0]
	for _, n := range m.notes {
		if n.SessionID != id {
			notes = append(notes, n)
		}
	}
	m.notes = notes
	reports := m.reports[:0]
	for _, r := range m.reports {
		if r.SessionID != id {
			reports = append(reports, r)
		}
	}
	m.reports = reports
	return nil
}

func (m *memoryStore) AppendNote(_ context.Context, n Note) (Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[n.SessionID]; !ok {
		return Note{}, ErrNotFound
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = m.now().Unix()
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memoryStore) ListNotes(_ context.Context, sessionID string) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Note{}
	for _, n := range m.notes {
		if n.SessionID == sessionID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryStore) AppendReport(_ context.Context, r Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[r.SessionID]; !ok {
		return Report{}, ErrNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = m.now().Unix()
	m.reports = append(m.reports, r)
	return r, nil
}

func summarize(s Session) SessionSummary {
	sum := SessionSummary{
		ID:            s.ID,
		Title:         s.Title,
		Kind:          s.Kind,
		QuestionCount: len(s.Questions),
		Finished:      s.Finished,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Result != nil {
		sum.ScorePartial = s.Result.Partial
	}
	return sum
}

func page(in []SessionSummary, limit, offset int) []SessionSummary {
	if offset >= len(in) {
		return []SessionSummary{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
