package http

import (
	"encoding/json"
	"net/http"
	"strings"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type annotateReq struct {
	Question int    `json:"question"`
	Text     string `json:"text"`
	Reason   string `json:"reason"`
}

func decodeAnnotation(w http.ResponseWriter, r *http.Request, s exam.Session, body func(annotateReq) string) (annotateReq, bool) {
	var req annotateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return req, false
	}
	if req.Question < 0 || req.Question >= len(s.Questions) {
		http.Error(w, errBadQuestion.Error(), http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(body(req)) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// POST /sessions/{sessionID}/notes  {"question":2,"text":"..."}
func AppendNoteHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		req, ok := decodeAnnotation(w, r, s, func(a annotateReq) string { return a.Text })
		if !ok {
			return
		}
		n, err := d.Store.AppendNote(r.Context(), exam.Note{
			SessionID: s.ID,
			UserID:    auth.SubjectFromContext(r.Context()),
			Question:  req.Question,
			Text:      strings.TrimSpace(req.Text),
		})
		if err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeNoteAppended, s.ID, map[string]any{"note_id": n.ID, "question": n.Question})
		respondJSON(w, http.StatusCreated, n)
	}
}

// GET /sessions/{sessionID}/notes
func ListNotesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		notes, err := d.Store.ListNotes(r.Context(), s.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, notes)
	}
}

// POST /sessions/{sessionID}/reports  {"question":2,"reason":"..."}
func AppendReportHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(d, w, r)
		if !ok {
			return
		}
		req, ok := decodeAnnotation(w, r, s, func(a annotateReq) string { return a.Reason })
		if !ok {
			return
		}
		rep, err := d.Store.AppendReport(r.Context(), exam.Report{
			SessionID: s.ID,
			UserID:    auth.SubjectFromContext(r.Context()),
			Question:  req.Question,
			Reason:    strings.TrimSpace(req.Reason),
		})
		if err != nil {
			respondError(w, err)
			return
		}
		d.record(r.Context(), syncx.TypeReportAppended, s.ID, map[string]any{"report_id": rep.ID, "question": rep.Question})
		d.Log.Info("question reported", "session", s.ID, "question", rep.Question)
		respondJSON(w, http.StatusCreated, rep)
	}
}
