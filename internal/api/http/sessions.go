package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/session"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type createSessionReq struct {
	Title       string          `json:"title"`
	Kind        exam.Kind       `json:"kind"`
	DurationSec int             `json:"duration_sec"`
	Questions   []exam.Question `json:"questions"`
}

// POST /sessions
func CreateSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		switch req.Kind {
		case "", exam.KindQuiz, exam.KindTD:
			req.DurationSec = 0
		case exam.KindExam:
			if req.DurationSec < 0 {
				http.Error(w, "duration_sec must be >= 0", http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "kind must be quiz, exam or td", http.StatusBadRequest)
			return
		}
		s, err := d.Store.CreateSession(r.Context(), exam.Session{
			OwnerID:     auth.SubjectFromContext(r.Context()),
			Title:       strings.TrimSpace(req.Title),
			Kind:        req.Kind,
			DurationSec: req.DurationSec,
			Questions:   req.Questions,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeSessionCreated, s.ID, map[string]any{"owner_id": s.OwnerID, "kind": s.Kind, "questions": len(s.Questions)})
		respondJSON(w, http.StatusCreated, s)
	}
}

// GET /sessions?kind=&owner=&limit=&offset=
func ListSessionsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.ListOpts{
			OwnerID: auth.SubjectFromContext(r.Context()),
			Kind:    exam.Kind(q.Get("kind")),
			Limit:   parseIntDefault(q.Get("limit"), 50),
			Offset:  parseIntDefault(q.Get("offset"), 0),
		}
		if rbac.Can(r.Context(), rbac.PermSessionViewAll) {
			opts.OwnerID = strings.TrimSpace(q.Get("owner"))
		}
		list, err := d.Store.ListSessions(r.Context(), opts)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// loadSession fetches the path's session. Sessions owned by someone else
// look missing unless the caller may view everyone's.
func loadSession(d Deps, w http.ResponseWriter, r *http.Request) (exam.Session, bool) {
	s, err := d.Store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err == nil && s.OwnerID != auth.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), rbac.PermSessionViewAll) {
		err = exam.ErrNotFound
	}
	if err != nil {
		respondError(w, err)
		return exam.Session{}, false
	}
	return s, true
}

type sessionView struct {
	exam.Session
	State string `json:"state"`
}

func stateOf(s exam.Session) session.State {
	switch {
	case s.Finished:
		return session.Finished
	case s.Progress != nil:
		return session.InProgress
	default:
		return session.NotStarted
	}
}

// GET /sessions/{sessionID}
func GetSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, sessionView{Session: s, State: stateOf(s).String()})
	}
}

func timed(s exam.Session) bool {
	return s.Kind == exam.KindExam && s.DurationSec > 0
}

// resume rebuilds the engine for s, starting it when it has no progress yet.
func resume(d Deps, s exam.Session, p *exam.Progress) (*session.Engine, error) {
	if p != nil {
		s.Progress = p
	}
	e, err := session.FromSession(s, session.WithGrader(d.Grader))
	if err != nil {
		return nil, err
	}
	e.Start()
	return e, nil
}

// PUT /sessions/{sessionID}/progress  body: progress snapshot
//
// The snapshot is replayed through the engine so the stored copy is always
// consistent with the questions: unknown labels dropped, pointer clamped.
func SaveProgressHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		if s.Finished {
			respondError(w, exam.ErrFinished)
			return
		}
		var p exam.Progress
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if timed(s) && p.TimeLeft <= 0 {
			// an expired exam is finished, not saved
			http.Error(w, "timeLeft must be > 0 for a timed exam", http.StatusBadRequest)
			return
		}
		e, err := resume(d, s, &p)
		if err != nil {
			respondError(w, err)
			return
		}
		clean := e.Snapshot()
		if err := d.Store.SaveProgress(r.Context(), s.ID, clean); err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeProgressSaved, s.ID, map[string]any{"current": clean.CurrentQuestion, "answered": len(clean.SelectedAnswers)})
		respondJSON(w, http.StatusOK, clean)
	}
}

type finishReq struct {
	Confirm  bool           `json:"confirm"`
	Progress *exam.Progress `json:"progress,omitempty"` // final answers, if newer than the stored snapshot
}

// POST /sessions/{sessionID}/finish  {"confirm":true}
//
// Without confirm the call only reports that confirmation is pending.
func FinishSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finishReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		if s.Finished {
			respondError(w, exam.ErrFinished)
			return
		}
		if !req.Confirm {
			respondJSON(w, http.StatusConflict, map[string]string{"error": errConfirmRequired.Error(), "pending": session.ActionFinish.String()})
			return
		}
		e, err := resume(d, s, req.Progress)
		if err != nil {
			respondError(w, err)
			return
		}
		// a snapshot whose time has run out restores already finished
		if e.State() != session.Finished {
			if err := e.Request(session.ActionFinish); err != nil {
				respondError(w, err)
				return
			}
			if _, err := e.Confirm(); err != nil {
				respondError(w, err)
				return
			}
		}
		res, _ := e.FinalResult()
		if err := d.Store.SaveResult(r.Context(), s.ID, res); err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeSessionFinished, s.ID, res.Tuple)
		respondJSON(w, http.StatusOK, res)
	}
}

type confirmReq struct {
	Confirm bool `json:"confirm"`
}

// POST /sessions/{sessionID}/restart  {"confirm":true}
func RestartSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		if stateOf(s) == session.NotStarted {
			respondError(w, session.ErrNotAllowed)
			return
		}
		if !req.Confirm {
			respondJSON(w, http.StatusConflict, map[string]string{"error": errConfirmRequired.Error(), "pending": session.ActionRestart.String()})
			return
		}
		s, err := d.Store.ResetSession(r.Context(), s.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeSessionRestarted, s.ID, nil)
		respondJSON(w, http.StatusOK, sessionView{Session: s, State: stateOf(s).String()})
	}
}

// DELETE /sessions/{sessionID}?confirm=true
func DeleteSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		if r.URL.Query().Get("confirm") != "true" {
			respondJSON(w, http.StatusConflict, map[string]string{"error": errConfirmRequired.Error(), "pending": "delete"})
			return
		}
		if err := d.Store.DeleteSession(r.Context(), s.ID); err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeSessionDeleted, s.ID, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

var errBadQuestion = errors.New("question index out of range")
