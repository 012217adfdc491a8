package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

type scoreReq struct {
	Questions []exam.Question        `json:"questions"`
	Answers   map[int]exam.Selection `json:"answers"`
}

type scoreResp struct {
	grading.Tuple
	PerQuestion []grading.Contribution `json:"per_question"`
}

// POST /score
//
// Stateless preview: scores a selection map without touching any session.
func ScorePreviewHandler(g *grading.Grader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := exam.ValidateQuestions(req.Questions); err != nil {
			respondError(w, err)
			return
		}
		items := exam.Items(req.Questions, req.Answers)
		out := scoreResp{Tuple: g.Score(items), PerQuestion: make([]grading.Contribution, len(items))}
		for i, it := range items {
			out.PerQuestion[i] = g.Grade(it)
		}
		respondJSON(w, http.StatusOK, out)
	}
}
